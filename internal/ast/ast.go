// Package ast holds the positional parse tree produced by the parser.
// Every node carries a diag.Loc; nodes are immutable after parsing and
// stay alive for the whole compilation as the authoritative source of
// locations for diagnostics.
package ast

import "github.com/standardbeagle/solis/internal/diag"

// SourceUnit is the parse result for one file: an ordered list of
// top-level items.
type SourceUnit struct {
	FileNo int
	Items  []Item
}

// Item is a top-level declaration or directive.
type Item interface {
	ItemLoc() diag.Loc
}

// Identifier is a name with its location. A zero Name means the
// identifier is absent (recovered or optional).
type Identifier struct {
	Loc  diag.Loc
	Name string
}

// IdentifierPath is a dotted name such as Lib.Inner.
type IdentifierPath struct {
	Loc   diag.Loc
	Parts []Identifier
}

// DocComment is one /// or /** */ run attached to a declaration.
type DocComment struct {
	Loc  diag.Loc
	Text string
}

// Annotation is an @name or @name(args) tag before a declaration or a
// parameter. Duplicates are preserved in source order and rejected
// during resolution.
type Annotation struct {
	Loc  diag.Loc
	Name Identifier
	Args []Expression
}

// PragmaDirective records a pragma; version constraints are parsed but
// semantically ignored.
type PragmaDirective struct {
	Loc   diag.Loc
	Name  Identifier
	Value string
}

func (p *PragmaDirective) ItemLoc() diag.Loc { return p.Loc }

// ImportSymbol is one {Sym as Alias} entry of an import directive.
type ImportSymbol struct {
	Name  Identifier
	Alias Identifier // zero when no alias
}

// ImportDirective is any of the three import forms.
type ImportDirective struct {
	Loc     diag.Loc
	Path    string
	PathLoc diag.Loc
	Alias   Identifier     // import "p" as Name
	Symbols []ImportSymbol // import { A as B } from "p"

	// ResolvedFileNo is filled in by the import resolver.
	ResolvedFileNo int
}

func (i *ImportDirective) ItemLoc() diag.Loc { return i.Loc }

// ContractKind discriminates contract-like definitions.
type ContractKind int

const (
	KindContract ContractKind = iota
	KindAbstract
	KindInterface
	KindLibrary
)

func (k ContractKind) String() string {
	switch k {
	case KindAbstract:
		return "abstract contract"
	case KindInterface:
		return "interface"
	case KindLibrary:
		return "library"
	}
	return "contract"
}

// Base is one entry of a contract's inheritance list.
type Base struct {
	Loc  diag.Loc
	Name IdentifierPath
	Args []Expression // constructor arguments, may be nil
}

// ContractDefinition is a contract, abstract contract, interface or
// library with its members in source order.
type ContractDefinition struct {
	Loc         diag.Loc
	Kind        ContractKind
	Name        Identifier
	Bases       []Base
	Parts       []Item
	Doc         []DocComment
	Annotations []Annotation
}

func (c *ContractDefinition) ItemLoc() diag.Loc { return c.Loc }

// StructField is one member of a struct definition.
type StructField struct {
	Loc  diag.Loc
	Type Expression
	Name Identifier
}

// StructDefinition is a struct at file or contract scope.
type StructDefinition struct {
	Loc    diag.Loc
	Name   Identifier
	Fields []StructField
	Doc    []DocComment
}

func (s *StructDefinition) ItemLoc() diag.Loc { return s.Loc }

// EnumDefinition is an enum at file or contract scope.
type EnumDefinition struct {
	Loc    diag.Loc
	Name   Identifier
	Values []Identifier
	Doc    []DocComment
}

func (e *EnumDefinition) ItemLoc() diag.Loc { return e.Loc }

// EventField is one parameter of an event definition.
type EventField struct {
	Loc     diag.Loc
	Type    Expression
	Indexed bool
	Name    Identifier
}

// EventDefinition declares an event.
type EventDefinition struct {
	Loc       diag.Loc
	Name      Identifier
	Fields    []EventField
	Anonymous bool
	Doc       []DocComment
}

func (e *EventDefinition) ItemLoc() diag.Loc { return e.Loc }

// ErrorField is one parameter of an error definition.
type ErrorField struct {
	Loc  diag.Loc
	Type Expression
	Name Identifier
}

// ErrorDefinition declares a user-defined error.
type ErrorDefinition struct {
	Loc    diag.Loc
	Name   Identifier
	Fields []ErrorField
	Doc    []DocComment
}

func (e *ErrorDefinition) ItemLoc() diag.Loc { return e.Loc }

// UserTypeDefinition is `type Name is PrimitiveType;`.
type UserTypeDefinition struct {
	Loc  diag.Loc
	Name Identifier
	Type Expression
	Doc  []DocComment
}

func (u *UserTypeDefinition) ItemLoc() diag.Loc { return u.Loc }

// UsingList is either a library path or a list of functions.
type UsingList struct {
	Library   *IdentifierPath
	Functions []IdentifierPath
}

// UsingDirective is `using L for T;`, `using L for *;` or
// `using {f, g} for T global;`.
type UsingDirective struct {
	Loc    diag.Loc
	List   UsingList
	Type   Expression // nil for '*'
	Global bool
}

func (u *UsingDirective) ItemLoc() diag.Loc { return u.Loc }

// Mutability is a function's declared state mutability.
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

// Visibility is a declared visibility.
type Visibility int

const (
	VisDefault Visibility = iota // not written in source
	VisPrivate
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
	case VisPublic:
		return "public"
	case VisExternal:
		return "external"
	}
	return "default"
}

// StorageClass is a data-location annotation on a parameter or local.
type StorageClass int

const (
	LocationDefault StorageClass = iota
	LocationMemory
	LocationStorage
	LocationCalldata
)

// Parameter is one function/event/error parameter or return value.
type Parameter struct {
	Loc         diag.Loc
	Type        Expression
	Storage     StorageClass
	Name        Identifier
	Annotations []Annotation // parameter-bound annotations (solana)
}

// FunctionKind discriminates function-like definitions.
type FunctionKind int

const (
	FnFunction FunctionKind = iota
	FnConstructor
	FnFallback
	FnReceive
	FnModifier
)

func (k FunctionKind) String() string {
	switch k {
	case FnConstructor:
		return "constructor"
	case FnFallback:
		return "fallback"
	case FnReceive:
		return "receive"
	case FnModifier:
		return "modifier"
	}
	return "function"
}

// ModifierInvocation is one entry of a function's modifier list (also
// used for base-constructor argument lists).
type ModifierInvocation struct {
	Loc  diag.Loc
	Name IdentifierPath
	Args []Expression // nil when no parentheses were written
}

// OverrideSpec is an `override` or `override(A, B)` marker.
type OverrideSpec struct {
	Loc   diag.Loc
	Bases []IdentifierPath
}

// FunctionDefinition is a function, constructor, fallback, receive or
// modifier, free or contract-member.
type FunctionDefinition struct {
	Loc         diag.Loc
	Kind        FunctionKind
	Name        Identifier
	Params      []Parameter
	Returns     []Parameter
	Mutability  Mutability
	MutLoc      diag.Loc
	Visibility  Visibility
	Virtual     bool
	Override    *OverrideSpec
	Modifiers   []ModifierInvocation
	Body        *Block // nil when only declared
	Doc         []DocComment
	Annotations []Annotation
}

func (f *FunctionDefinition) ItemLoc() diag.Loc { return f.Loc }

// VariableDefinition is a state variable or a file-scope constant.
type VariableDefinition struct {
	Loc         diag.Loc
	Type        Expression
	Name        Identifier
	Visibility  Visibility
	Constant    bool
	Immutable   bool
	Override    *OverrideSpec
	Initializer Expression // nil when absent
	Doc         []DocComment
	Annotations []Annotation
}

func (v *VariableDefinition) ItemLoc() diag.Loc { return v.Loc }
