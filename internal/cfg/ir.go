// Package cfg lowers resolved functions into the typed control-flow
// -graph IR: basic blocks of three-operand instructions with explicit
// storage loads and stores, ended by a single terminator. Local
// variables live in a vartable of numbered slots; merging at joins is
// expressed by assigning the same slot in each predecessor.
package cfg

import (
	"math/big"

	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/sema"
)

// Operand is an instruction input: a vartable slot or a constant.
type Operand interface{ operand() }

// Var references a vartable slot.
type Var struct{ ID int }

// ConstInt is an integer constant of a concrete type.
type ConstInt struct {
	Ty    sema.Type
	Value *big.Int
}

// ConstBool is a boolean constant.
type ConstBool struct{ Value bool }

// ConstBytes is a bytes/string/address constant.
type ConstBytes struct {
	Ty    sema.Type
	Value []byte
}

func (Var) operand()        {}
func (ConstInt) operand()   {}
func (ConstBool) operand()  {}
func (ConstBytes) operand() {}

// VarDecl is one vartable slot.
type VarDecl struct {
	Name string
	Ty   sema.Type
}

// Instr is one three-operand instruction. Every instruction knows its
// source location for -g runtime diagnostics.
type Instr interface {
	Loc() diag.Loc
	// Results returns the defined slots, Uses the consumed operands.
	Results() []Var
	Uses() []Operand
	// Pure instructions have no observable effect besides their
	// results and may be removed or coalesced.
	Pure() bool
}

type instrBase struct{ At diag.Loc }

func (i instrBase) Loc() diag.Loc { return i.At }

// Set copies an operand into a slot.
type Set struct {
	instrBase
	Res Var
	Src Operand
}

func (s *Set) Results() []Var  { return []Var{s.Res} }
func (s *Set) Uses() []Operand { return []Operand{s.Src} }
func (s *Set) Pure() bool      { return true }

// BinOp is an arithmetic/bitwise/comparison operation. CheckOverflow
// requests a runtime trap on wrap, per the enclosing checked scope.
type BinOp struct {
	instrBase
	Res           Var
	Op            sema.BinaryOpKind
	Ty            sema.Type
	Left, Right   Operand
	CheckOverflow bool
}

func (b *BinOp) Results() []Var  { return []Var{b.Res} }
func (b *BinOp) Uses() []Operand { return []Operand{b.Left, b.Right} }
func (b *BinOp) Pure() bool      { return !b.CheckOverflow }

// UnOp is negation or complement.
type UnOp struct {
	instrBase
	Res           Var
	Op            sema.UnaryOpKind
	Ty            sema.Type
	Expr          Operand
	CheckOverflow bool
}

func (u *UnOp) Results() []Var  { return []Var{u.Res} }
func (u *UnOp) Uses() []Operand { return []Operand{u.Expr} }
func (u *UnOp) Pure() bool      { return !u.CheckOverflow }

// CastOp converts between representations.
type CastOp struct {
	instrBase
	Res  Var
	Ty   sema.Type
	From sema.Type
	Expr Operand
}

func (c *CastOp) Results() []Var  { return []Var{c.Res} }
func (c *CastOp) Uses() []Operand { return []Operand{c.Expr} }
func (c *CastOp) Pure() bool      { return true }

// StorageLoad reads a typed value at a storage slot.
type StorageLoad struct {
	instrBase
	Res  Var
	Ty   sema.Type
	Slot Operand
}

func (l *StorageLoad) Results() []Var  { return []Var{l.Res} }
func (l *StorageLoad) Uses() []Operand { return []Operand{l.Slot} }
func (l *StorageLoad) Pure() bool      { return false } // ordered against stores

// StorageStore writes a typed value at a storage slot. Stores to
// declared variables are never removed.
type StorageStore struct {
	instrBase
	Ty    sema.Type
	Slot  Operand
	Value Operand
}

func (s *StorageStore) Results() []Var  { return nil }
func (s *StorageStore) Uses() []Operand { return []Operand{s.Slot, s.Value} }
func (s *StorageStore) Pure() bool      { return false }

// StorageClear zeroes a slot (delete).
type StorageClear struct {
	instrBase
	Ty   sema.Type
	Slot Operand
}

func (s *StorageClear) Results() []Var  { return nil }
func (s *StorageClear) Uses() []Operand { return []Operand{s.Slot} }
func (s *StorageClear) Pure() bool      { return false }

// KeccakSlot hashes (slot, key) to derive a mapping entry's slot.
type KeccakSlot struct {
	instrBase
	Res   Var
	Slot  Operand
	Key   Operand
	KeyTy sema.Type
}

func (k *KeccakSlot) Results() []Var  { return []Var{k.Res} }
func (k *KeccakSlot) Uses() []Operand { return []Operand{k.Slot, k.Key} }
func (k *KeccakSlot) Pure() bool      { return true }

// Hash is keccak256/sha256/ripemd160/blake2 over a bytes value.
type Hash struct {
	instrBase
	Res  Var
	Kind sema.BuiltinKind
	Arg  Operand
}

func (h *Hash) Results() []Var  { return []Var{h.Res} }
func (h *Hash) Uses() []Operand { return []Operand{h.Arg} }
func (h *Hash) Pure() bool      { return true }

// EnvRead reads an environment value (msg.sender, block.number, …).
type EnvRead struct {
	instrBase
	Res  Var
	Ty   sema.Type
	Kind sema.BuiltinKind
}

func (e *EnvRead) Results() []Var  { return []Var{e.Res} }
func (e *EnvRead) Uses() []Operand { return nil }
func (e *EnvRead) Pure() bool      { return false } // environment may differ per call

// StructInit builds a memory struct.
type StructInit struct {
	instrBase
	Res    Var
	Ty     sema.Type
	Fields []Operand
}

func (s *StructInit) Results() []Var  { return []Var{s.Res} }
func (s *StructInit) Uses() []Operand { return s.Fields }
func (s *StructInit) Pure() bool      { return true }

// FieldLoad projects a struct field.
type FieldLoad struct {
	instrBase
	Res    Var
	Ty     sema.Type
	Struct Operand
	Field  int
}

func (f *FieldLoad) Results() []Var  { return []Var{f.Res} }
func (f *FieldLoad) Uses() []Operand { return []Operand{f.Struct} }
func (f *FieldLoad) Pure() bool      { return true }

// FieldStore writes a struct field in memory.
type FieldStore struct {
	instrBase
	Struct Operand
	Field  int
	Value  Operand
}

func (f *FieldStore) Results() []Var  { return nil }
func (f *FieldStore) Uses() []Operand { return []Operand{f.Struct, f.Value} }
func (f *FieldStore) Pure() bool      { return false }

// ArrayInit builds a fixed-size memory array from elements.
type ArrayInit struct {
	instrBase
	Res   Var
	Ty    sema.Type
	Items []Operand
}

func (a *ArrayInit) Results() []Var  { return []Var{a.Res} }
func (a *ArrayInit) Uses() []Operand { return a.Items }
func (a *ArrayInit) Pure() bool      { return true }

// AllocDynamic allocates a dynamic array/bytes/string from the bump
// allocator.
type AllocDynamic struct {
	instrBase
	Res     Var
	Ty      sema.Type
	Length  Operand
	Literal []byte
}

func (a *AllocDynamic) Results() []Var  { return []Var{a.Res} }
func (a *AllocDynamic) Uses() []Operand { return []Operand{a.Length} }
func (a *AllocDynamic) Pure() bool      { return true }

// IndexLoad reads a memory array/bytes element with a bounds check.
type IndexLoad struct {
	instrBase
	Res   Var
	Ty    sema.Type
	Array Operand
	Index Operand
}

func (i *IndexLoad) Results() []Var  { return []Var{i.Res} }
func (i *IndexLoad) Uses() []Operand { return []Operand{i.Array, i.Index} }
func (i *IndexLoad) Pure() bool      { return false } // bounds trap

// IndexStore writes a memory array element with a bounds check.
type IndexStore struct {
	instrBase
	Array Operand
	Index Operand
	Value Operand
}

func (i *IndexStore) Results() []Var  { return nil }
func (i *IndexStore) Uses() []Operand { return []Operand{i.Array, i.Index, i.Value} }
func (i *IndexStore) Pure() bool      { return false }

// Len reads the length of a dynamic value.
type Len struct {
	instrBase
	Res Var
	Arg Operand
}

func (l *Len) Results() []Var  { return []Var{l.Res} }
func (l *Len) Uses() []Operand { return []Operand{l.Arg} }
func (l *Len) Pure() bool      { return true }

// Push appends Value to the storage array at Slot; it defines no
// result.
type Push struct {
	instrBase
	Slot  Operand
	Ty    sema.Type
	Value Operand
}

func (p *Push) Results() []Var  { return nil }
func (p *Push) Uses() []Operand { return []Operand{p.Slot, p.Value} }
func (p *Push) Pure() bool      { return false }

// Pop removes the last element of a storage array.
type Pop struct {
	instrBase
	Res  Var
	Ty   sema.Type
	Slot Operand
}

func (p *Pop) Results() []Var  { return []Var{p.Res} }
func (p *Pop) Uses() []Operand { return []Operand{p.Slot} }
func (p *Pop) Pure() bool      { return false }

// Concat joins string/bytes operands.
type Concat struct {
	instrBase
	Res  Var
	Ty   sema.Type
	Args []Operand
}

func (c *Concat) Results() []Var  { return []Var{c.Res} }
func (c *Concat) Uses() []Operand { return c.Args }
func (c *Concat) Pure() bool      { return true }

// AbiEncode encodes operands with the target's encoder family.
type AbiEncode struct {
	instrBase
	Res      Var
	Args     []Operand
	Tys      []sema.Type
	Packed   bool
	Selector []byte // non-nil to prefix a selector
}

func (a *AbiEncode) Results() []Var  { return []Var{a.Res} }
func (a *AbiEncode) Uses() []Operand { return a.Args }
func (a *AbiEncode) Pure() bool      { return true }

// AbiDecode decodes a bytes value into typed results.
type AbiDecode struct {
	instrBase
	Ress []Var
	Tys  []sema.Type
	Data Operand
}

func (a *AbiDecode) Results() []Var  { return a.Ress }
func (a *AbiDecode) Uses() []Operand { return []Operand{a.Data} }
func (a *AbiDecode) Pure() bool      { return false } // malformed data traps

// CallInternal invokes another function in the same unit.
type CallInternal struct {
	instrBase
	Ress       []Var
	FunctionNo int
	Args       []Operand
}

func (c *CallInternal) Results() []Var  { return c.Ress }
func (c *CallInternal) Uses() []Operand { return c.Args }
func (c *CallInternal) Pure() bool      { return false }

// CallExternal invokes a function on another contract. When Success
// is non-nil a callee revert writes false there instead of
// propagating (try/catch); ErrData then receives the revert payload.
type CallExternal struct {
	instrBase
	Ress       []Var
	Address    Operand
	ContractNo int
	FunctionNo int
	Args       []Operand
	Value      Operand // nil when none
	Gas        Operand
	Success    *Var
	ErrData    *Var
}

func (c *CallExternal) Results() []Var { return c.Ress }
func (c *CallExternal) Uses() []Operand {
	uses := append([]Operand{c.Address}, c.Args...)
	if c.Value != nil {
		uses = append(uses, c.Value)
	}
	if c.Gas != nil {
		uses = append(uses, c.Gas)
	}
	return uses
}
func (c *CallExternal) Pure() bool { return false }

// Create deploys a contract instance. Success mirrors CallExternal.
type Create struct {
	instrBase
	Res        Var
	ContractNo int
	Args       []Operand
	Value      Operand
	Salt       Operand
	Space      Operand
	Success    *Var
	ErrData    *Var
}

func (c *Create) Results() []Var { return []Var{c.Res} }
func (c *Create) Uses() []Operand {
	uses := append([]Operand{}, c.Args...)
	for _, o := range []Operand{c.Value, c.Salt, c.Space} {
		if o != nil {
			uses = append(uses, o)
		}
	}
	return uses
}
func (c *Create) Pure() bool { return false }

// EmitEvent publishes an event with pre-computed topics and encoded
// data.
type EmitEvent struct {
	instrBase
	EventNo int
	Topics  []Operand
	Data    Operand
}

func (e *EmitEvent) Results() []Var  { return nil }
func (e *EmitEvent) Uses() []Operand { return append(append([]Operand{}, e.Topics...), e.Data) }
func (e *EmitEvent) Pure() bool      { return false }

// ValueTransfer moves native value to an address.
type ValueTransfer struct {
	instrBase
	Res     Var // bool success for send; unused slot for transfer
	Address Operand
	Amount  Operand
	FailOk  bool // send returns false instead of reverting
}

func (v *ValueTransfer) Results() []Var {
	if v.FailOk {
		return []Var{v.Res}
	}
	return nil
}
func (v *ValueTransfer) Uses() []Operand { return []Operand{v.Address, v.Amount} }
func (v *ValueTransfer) Pure() bool      { return false }

// Print writes to the debug buffer.
type Print struct {
	instrBase
	Arg Operand
}

func (p *Print) Results() []Var  { return nil }
func (p *Print) Uses() []Operand { return []Operand{p.Arg} }
func (p *Print) Pure() bool      { return false }

// CatchMatch tests whether revert payload data falls in a catch
// bucket (Error(string) or Panic(uint256)).
type CatchMatch struct {
	instrBase
	Res    Var
	Data   Operand
	Bucket sema.CatchKind
	Marker sema.BuiltinKind
}

func (c *CatchMatch) Results() []Var  { return []Var{c.Res} }
func (c *CatchMatch) Uses() []Operand { return []Operand{c.Data} }
func (c *CatchMatch) Pure() bool      { return true }

// CatchPayload decodes the bucket's payload (the Error string or the
// Panic code) out of revert data.
type CatchPayload struct {
	instrBase
	Res    Var
	Data   Operand
	Bucket sema.CatchKind
}

func (c *CatchPayload) Results() []Var  { return []Var{c.Res} }
func (c *CatchPayload) Uses() []Operand { return []Operand{c.Data} }
func (c *CatchPayload) Pure() bool      { return true }

// Terminator ends a basic block.
type Terminator interface{ terminator() }

// Jump transfers to another block.
type Jump struct{ Block int }

// CondJump branches on a boolean operand.
type CondJump struct {
	Cond        Operand
	True, False int
}

// Return leaves the function with values.
type Return struct{ Values []Operand }

// RevertKind buckets the error payloads of a revert terminator.
type RevertKind int

const (
	// RevertEmpty carries no data.
	RevertEmpty RevertKind = iota
	// RevertString encodes Error(string).
	RevertString
	// RevertPanic encodes Panic(uint256) with a code operand.
	RevertPanic
	// RevertCustom encodes a user-defined error.
	RevertCustom
)

// Revert aborts with encoded error data. On the wasm target the data
// travels up the call stack; on solana the transaction aborts.
type Revert struct {
	Kind    RevertKind
	ErrorNo int // RevertCustom
	Args    []Operand
}

// Unreachable marks a block that cannot fall through.
type Unreachable struct{}

// SelfDestruct terminates the contract, sending its balance on.
type SelfDestruct struct{ Recipient Operand }

func (Jump) terminator()         {}
func (CondJump) terminator()     {}
func (Return) terminator()       {}
func (Revert) terminator()       {}
func (Unreachable) terminator()  {}
func (SelfDestruct) terminator() {}

// BasicBlock is a straight-line instruction run with one terminator.
type BasicBlock struct {
	Name   string
	Instrs []Instr
	Term   Terminator
}

// Graph is the CFG of one function.
type Graph struct {
	FunctionNo int
	Name       string
	Params     []sema.Type
	Returns    []sema.Type

	Vars   []VarDecl
	Blocks []*BasicBlock

	// DebugChecks holds -g runtime-error annotations keyed by
	// instruction location, filled during lowering.
	DebugChecks []DebugCheck
}

// DebugCheck is one runtime-error annotation for the debug buffer.
type DebugCheck struct {
	Loc    diag.Loc
	Reason string
}

// NewBlock appends an empty block and returns its index.
func (g *Graph) NewBlock(name string) int {
	g.Blocks = append(g.Blocks, &BasicBlock{Name: name})
	return len(g.Blocks) - 1
}

// NewVar appends a vartable slot.
func (g *Graph) NewVar(name string, ty sema.Type) Var {
	g.Vars = append(g.Vars, VarDecl{Name: name, Ty: ty})
	return Var{ID: len(g.Vars) - 1}
}

// VarType returns a slot's type.
func (g *Graph) VarType(v Var) sema.Type { return g.Vars[v.ID].Ty }

// Reachable computes the set of blocks reachable from entry.
func (g *Graph) Reachable() []bool {
	seen := make([]bool, len(g.Blocks))
	var walk func(int)
	walk = func(no int) {
		if no < 0 || no >= len(g.Blocks) || seen[no] {
			return
		}
		seen[no] = true
		switch t := g.Blocks[no].Term.(type) {
		case Jump:
			walk(t.Block)
		case CondJump:
			walk(t.True)
			walk(t.False)
		}
	}
	walk(0)
	return seen
}
