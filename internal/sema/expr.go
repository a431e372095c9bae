package sema

import (
	"math/big"

	"github.com/standardbeagle/solis/internal/diag"
)

// Expr is a resolved, typed expression. Every node has a concrete type
// (or Unresolved when resolution already failed and reported).
type Expr interface {
	Ty() Type
	ExprLoc() diag.Loc
	exprNode()
}

type exprBase struct {
	Loc  diag.Loc
	Type Type
}

func (e exprBase) Ty() Type          { return e.Type }
func (e exprBase) ExprLoc() diag.Loc { return e.Loc }
func (exprBase) exprNode()           {}

// BoolLit is a boolean constant.
type BoolLit struct {
	exprBase
	Value bool
}

// NumberLit is an integer constant already narrowed to its type.
type NumberLit struct {
	exprBase
	Value *big.Int
}

// RationalLit is an arbitrary-precision rational constant; it only
// survives inside constant folding and is narrowed at use.
type RationalLit struct {
	exprBase
	Value *big.Rat
}

// BytesLit is a string/bytes/address constant.
type BytesLit struct {
	exprBase
	Value []byte
}

// StructLit builds a struct value field by field.
type StructLit struct {
	exprBase
	Fields []Expr
}

// ArrayLit is a fixed array literal.
type ArrayLit struct {
	exprBase
	Items []Expr
}

// ConstVar reads a file-scope or contract constant.
type ConstVar struct {
	exprBase
	ContractNo int // -1 for file scope
	VarNo      int
}

// StorageVarRef is a reference to a contract storage variable; its
// type is StorageRef(decl type).
type StorageVarRef struct {
	exprBase
	ContractNo int
	VarNo      int
}

// LocalRef is a reference to a local/parameter slot in the function's
// vartable; for value types its type is Ref(decl type).
type LocalRef struct {
	exprBase
	VarNo int
}

// Load reads through a Ref or StorageRef producing the value type.
type Load struct {
	exprBase
	Expr Expr
}

// BinaryOpKind enumerates resolved binary operations.
type BinaryOpKind int

const (
	BinAdd BinaryOpKind = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinPow
	BinShl
	BinShr
	BinBitAnd
	BinBitOr
	BinBitXor
	BinLt
	BinLe
	BinGt
	BinGe
	BinEq
	BinNe
	BinAnd // short-circuit
	BinOr  // short-circuit
)

var binKindText = map[BinaryOpKind]string{
	BinAdd: "+", BinSub: "-", BinMul: "*", BinDiv: "/", BinMod: "%",
	BinPow: "**", BinShl: "<<", BinShr: ">>", BinBitAnd: "&",
	BinBitOr: "|", BinBitXor: "^", BinLt: "<", BinLe: "<=", BinGt: ">",
	BinGe: ">=", BinEq: "==", BinNe: "!=", BinAnd: "&&", BinOr: "||",
}

func (k BinaryOpKind) String() string { return binKindText[k] }

// Binary is an arithmetic/bitwise/comparison operation. Unchecked
// records whether the enclosing scope suppresses overflow checks.
type Binary struct {
	exprBase
	Op        BinaryOpKind
	Unchecked bool
	Left      Expr
	Right     Expr
}

// UnaryOpKind enumerates resolved unary operations.
type UnaryOpKind int

const (
	UnNeg UnaryOpKind = iota
	UnNot
	UnBitNot
)

// Unary is negation or complement.
type Unary struct {
	exprBase
	Op        UnaryOpKind
	Unchecked bool
	Expr      Expr
}

// IncDec is ++/-- in pre or post position on an l-value.
type IncDec struct {
	exprBase
	Decrement bool
	Post      bool
	Unchecked bool
	Expr      Expr // l-value
}

// Assign stores Right into the l-value Left; its value is the stored
// value.
type Assign struct {
	exprBase
	Left  Expr
	Right Expr
}

// DestructureAssign unpacks a multi-valued call into l-values; nil
// targets are holes.
type DestructureAssign struct {
	exprBase
	Targets []Expr
	Right   Expr
}

// Ternary is cond ? a : b.
type Ternary struct {
	exprBase
	Cond  Expr
	True  Expr
	False Expr
}

// Cast converts between types; Implicit records whether it was
// inserted by the checker.
type Cast struct {
	exprBase
	Implicit bool
	Expr     Expr
}

// StructMember projects field MemberNo out of a struct reference.
type StructMember struct {
	exprBase
	Expr     Expr
	MemberNo int
}

// Subscript indexes an array, bytes, or mapping reference.
type Subscript struct {
	exprBase
	Array Expr
	Index Expr
}

// InternalCall invokes a function in the same code unit.
type InternalCall struct {
	exprBase
	FunctionNo int
	Args       []Expr
	// Returns holds all return types; Type is the sole return or Void.
	Returns []Type
}

// ExternalCall invokes a function on another contract instance.
type ExternalCall struct {
	exprBase
	Address    Expr
	ContractNo int
	FunctionNo int
	Args       []Expr
	Value      Expr // nil when no {value: …}
	Gas        Expr
	Returns    []Type
}

// Constructor deploys a new contract instance.
type Constructor struct {
	exprBase
	ContractNo int
	Args       []Expr
	Value      Expr
	Salt       Expr
	Space      Expr // solana account space override
}

// FunctionRef is a reference to a function used as a value.
type FunctionRef struct {
	exprBase
	FunctionNo int
}

// AllocDynamic allocates a dynamic array/bytes/string of a given
// length with zeroed or literal contents.
type AllocDynamic struct {
	exprBase
	Length  Expr
	Literal []byte // nil unless initialized from a literal
}

// Default is the zero value of a type.
type Default struct {
	exprBase
}

// BuiltinKind enumerates builtin functions and environment accessors.
type BuiltinKind int

const (
	BuiltinRequire BuiltinKind = iota
	BuiltinAssert
	BuiltinRevert
	BuiltinPrint
	BuiltinKeccak256
	BuiltinSha256
	BuiltinBlake2b256
	BuiltinRipemd160
	BuiltinMsgSender
	BuiltinMsgValue
	BuiltinMsgData
	BuiltinMsgSig
	BuiltinBlockNumber
	BuiltinTimestamp
	BuiltinSlot
	BuiltinBlockhash
	BuiltinRandom
	BuiltinGasLeft
	BuiltinAddressThis
	BuiltinBalance
	BuiltinTransfer
	BuiltinSend
	BuiltinSelfDestruct
	BuiltinArrayLength
	BuiltinArrayPush
	BuiltinArrayPop
	BuiltinStringConcat
	BuiltinBytesConcat
	BuiltinAbiEncode
	BuiltinAbiEncodePacked
	BuiltinAbiEncodeWithSelector
	BuiltinAbiEncodeWithSignature
	BuiltinAbiDecode
	BuiltinUserTypeWrap
	BuiltinUserTypeUnwrap
	BuiltinProgramID
	BuiltinAccounts
)

var builtinNames = map[BuiltinKind]string{
	BuiltinRequire: "require", BuiltinAssert: "assert", BuiltinRevert: "revert",
	BuiltinPrint: "print", BuiltinKeccak256: "keccak256", BuiltinSha256: "sha256",
	BuiltinBlake2b256: "blake2b_256", BuiltinRipemd160: "ripemd160",
	BuiltinMsgSender: "msg.sender", BuiltinMsgValue: "msg.value",
	BuiltinMsgData: "msg.data", BuiltinMsgSig: "msg.sig",
	BuiltinBlockNumber: "block.number", BuiltinTimestamp: "block.timestamp",
	BuiltinSlot: "block.slot", BuiltinBlockhash: "blockhash",
	BuiltinRandom: "random", BuiltinGasLeft: "gasleft",
	BuiltinAddressThis: "address(this)", BuiltinBalance: "balance",
	BuiltinTransfer: "transfer", BuiltinSend: "send",
	BuiltinSelfDestruct: "selfdestruct", BuiltinArrayLength: "length",
	BuiltinArrayPush: "push", BuiltinArrayPop: "pop",
	BuiltinStringConcat: "string.concat", BuiltinBytesConcat: "bytes.concat",
	BuiltinAbiEncode: "abi.encode", BuiltinAbiEncodePacked: "abi.encodePacked",
	BuiltinAbiEncodeWithSelector:  "abi.encodeWithSelector",
	BuiltinAbiEncodeWithSignature: "abi.encodeWithSignature",
	BuiltinAbiDecode:              "abi.decode", BuiltinUserTypeWrap: "wrap",
	BuiltinUserTypeUnwrap: "unwrap", BuiltinProgramID: "tx.program_id",
	BuiltinAccounts: "tx.accounts",
}

func (k BuiltinKind) String() string { return builtinNames[k] }

// Builtin is a call to a compiler-provided function or environment
// accessor.
type Builtin struct {
	exprBase
	Kind BuiltinKind
	Args []Expr
}
