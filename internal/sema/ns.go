package sema

import (
	"math/big"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/target"
)

// Mutability is a function's resolved state mutability.
type Mutability int

const (
	MutNonpayable Mutability = iota
	MutPure
	MutView
	MutPayable
)

func (m Mutability) String() string {
	switch m {
	case MutPure:
		return "pure"
	case MutView:
		return "view"
	case MutPayable:
		return "payable"
	}
	return "nonpayable"
}

// Visibility is a resolved visibility.
type Visibility int

const (
	VisPrivate Visibility = iota
	VisInternal
	VisPublic
	VisExternal
)

func (v Visibility) String() string {
	switch v {
	case VisPrivate:
		return "private"
	case VisInternal:
		return "internal"
	case VisExternal:
		return "external"
	}
	return "public"
}

// Externally reports whether functions of this visibility can be
// invoked through the dispatcher.
func (v Visibility) Externally() bool { return v == VisPublic || v == VisExternal }

// EnumDecl is a resolved enum.
type EnumDecl struct {
	Name       string
	Loc        diag.Loc
	ContractNo int // -1 at file scope
	Values     []string
	Doc        []ast.DocComment
}

// StructField is one resolved struct member.
type StructField struct {
	Name string
	Loc  diag.Loc
	Type Type
}

// StructDecl is a resolved struct.
type StructDecl struct {
	Name       string
	Loc        diag.Loc
	ContractNo int
	Fields     []StructField
	Doc        []ast.DocComment
}

// EventDecl is a resolved event.
type EventDecl struct {
	Name       string
	Loc        diag.Loc
	ContractNo int
	Fields     []EventField
	Anonymous  bool
	Used       bool
	Doc        []ast.DocComment
}

// EventField is one resolved event parameter.
type EventField struct {
	Name    string
	Loc     diag.Loc
	Type    Type
	Indexed bool
}

// ErrorDecl is a resolved user-defined error.
type ErrorDecl struct {
	Name       string
	Loc        diag.Loc
	ContractNo int
	Fields     []StructField
	Used       bool
	Doc        []ast.DocComment
}

// UserTypeDecl is a resolved `type X is prim`.
type UserTypeDecl struct {
	Name       string
	Loc        diag.Loc
	ContractNo int
	Type       Type // the wrapped primitive
	Doc        []ast.DocComment
}

// Parameter is one resolved function/event parameter or return.
type Parameter struct {
	Name      string
	Loc       diag.Loc
	Type      Type
	Indexed   bool
	Recipient bool // solana @payer-style account parameter
}

// Variable is a state variable, file constant, or local declaration
// slot.
type Variable struct {
	Name        string
	Loc         diag.Loc
	Type        Type
	Visibility  Visibility
	Constant    bool
	Immutable   bool
	Initializer Expr // nil when absent
	Read        bool
	Assigned    bool
	Doc         []ast.DocComment
}

// AccountAnnotation is one @account/@signer/@mutableAccount/
// @mutableSigner tag on a solana function.
type AccountAnnotation struct {
	Loc      diag.Loc
	Name     string
	Writable bool
	Signer   bool
}

// ConstructorAnnotations carries the solana constructor tags.
type ConstructorAnnotations struct {
	Payer    string
	PayerLoc diag.Loc
	Seeds    []Expr
	Bump     Expr
	Space    Expr
}

// Function is a resolved free function, library function, contract
// member, modifier, constructor, fallback or receive.
type Function struct {
	Name       string
	Loc        diag.Loc
	Kind       ast.FunctionKind
	ContractNo int // -1 for free functions
	FileNo     int
	Params     []Parameter
	Returns    []Parameter
	Mutability Mutability
	MutLoc     diag.Loc
	Visibility Visibility
	Virtual    bool
	Override   []int // contract numbers named in override(…)
	IsOverride bool

	Modifiers []ModifierInvocation

	Body    []Stmt
	HasBody bool

	// Symbol/layout state used by lowering.
	Locals []*Variable // vartable: params first, then locals

	SelectorOverride []byte
	Annotations      ConstructorAnnotations
	Accounts         []AccountAnnotation

	// IsAccessor marks synthesized public-variable getters;
	// AccessorVar names the storage slot they read.
	IsAccessor  bool
	AccessorVar StorageVar

	// Bookkeeping for diagnostics.
	Called        bool
	ReadsState    bool
	WritesState   bool
	ValueTransfer bool

	Doc []ast.DocComment
}

// ModifierInvocation is a resolved modifier application or base
// constructor call.
type ModifierInvocation struct {
	Loc        diag.Loc
	FunctionNo int // modifier's function index; -1 for base ctor
	BaseNo     int // contract index for base ctor calls; -1 otherwise
	Args       []Expr
}

// IsExternallyCallable reports whether the function participates in
// selector dispatch.
func (f *Function) IsExternallyCallable() bool {
	if f.Kind == ast.FnModifier {
		return false
	}
	if f.Kind == ast.FnConstructor || f.Kind == ast.FnFallback || f.Kind == ast.FnReceive {
		return true
	}
	return f.Visibility.Externally()
}

// StorageVar is one slot of a contract's storage layout.
type StorageVar struct {
	VarNo    int // index into Contract.Variables
	Slot     *big.Int
	Contract int // declaring contract (bases flattened in)
}

// ContractDecl is a resolved contract. The name Contract is taken by
// the type variant; the declaration carries the Decl suffix.
type ContractDecl struct {
	Name   string
	Loc    diag.Loc
	FileNo int
	Kind   ast.ContractKind

	Bases []int // direct bases in declaration order
	MRO   []int // C3 linearization, self first; empty on conflict

	Variables []*Variable  // state variables of this contract only
	Layout    []StorageVar // full layout, bases flattened, slot order
	Functions []int        // namespace function indices, MRO-flattened
	Modifiers []int

	ProgramID    []byte // decoded @program_id, solana
	ProgramIDLoc diag.Loc

	// Base constructor args fixed in the inheritance list.
	BaseArgs map[int][]Expr

	Doc []ast.DocComment
}

// IsConcrete reports whether the contract must have all bodies and can
// be deployed.
func (c *ContractDecl) IsConcrete() bool {
	return c.Kind == ast.KindContract
}

// Namespace is the global resolved model: the single owner of every
// declaration and of the diagnostics vector.
type Namespace struct {
	Target target.Target
	Files  *diag.FileSet

	Pragmas   []*ast.PragmaDirective
	Enums     []*EnumDecl
	Structs   []*StructDecl
	Events    []*EventDecl
	Errors    []*ErrorDecl
	UserTypes []*UserTypeDecl
	Functions []*Function
	Contracts []*ContractDecl
	Constants []*Variable

	Diagnostics []diag.Diagnostic

	// fileSymbols maps fileNo → symbol table installed by the
	// declarative pass.
	fileSymbols []*symbolTable

	// usingGlobal maps a type key to functions attached with
	// `using … for … global`.
	usingGlobal map[string][]int
}

// NewNamespace returns an empty namespace for the given target.
func NewNamespace(t target.Target, files *diag.FileSet) *Namespace {
	return &Namespace{
		Target:      t,
		Files:       files,
		usingGlobal: map[string][]int{},
	}
}

// Diag appends a diagnostic.
func (ns *Namespace) Diag(d diag.Diagnostic) {
	ns.Diagnostics = append(ns.Diagnostics, d)
}

// Errorf appends an error diagnostic.
func (ns *Namespace) Errorf(loc diag.Loc, format string, args ...any) {
	ns.Diag(diag.Error(loc, format, args...))
}

// Warnf appends a warning diagnostic.
func (ns *Namespace) Warnf(loc diag.Loc, format string, args ...any) {
	ns.Diag(diag.Warning(loc, format, args...))
}

// HasErrors reports whether any error-or-worse diagnostic accumulated.
func (ns *Namespace) HasErrors() bool { return diag.HasErrors(ns.Diagnostics) }

// ContractFunctions yields the namespace function indices reachable on
// a contract, including inherited ones, in MRO order.
func (ns *Namespace) ContractFunctions(contractNo int) []int {
	return ns.Contracts[contractNo].Functions
}
