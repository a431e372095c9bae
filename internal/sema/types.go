// Package sema builds the namespace: the fully resolved, typed model of
// one compilation. It runs the declarative pass (install all top-level
// symbols), the body pass (resolve and type-check every function), C3
// linearization, storage layout and annotation validation. Everything
// downstream of the parser and upstream of the CFG builder lives here.
package sema

import (
	"fmt"
	"strings"
)

// Type is the resolved type of an expression or declaration. Equality
// is structural; Ref and StorageRef never equal their inner type.
type Type interface {
	String() string
	typeNode()
}

// ArrayDim is one dimension of an array type: fixed length or dynamic.
type ArrayDim struct {
	Fixed  bool
	Length uint64 // valid when Fixed
}

type (
	// Bool is the boolean type.
	Bool struct{}
	// Int is a signed integer of Width bits (8..256, multiple of 8).
	Int struct{ Width uint16 }
	// Uint is an unsigned integer of Width bits.
	Uint struct{ Width uint16 }
	// Address is the target's address type.
	Address struct{ Payable bool }
	// Bytes is a fixed byte array bytes1..bytes32.
	Bytes struct{ N uint8 }
	// String is the dynamic string type.
	String struct{}
	// DynamicBytes is `bytes`.
	DynamicBytes struct{}
	// Array is elem with one or more dimensions, outermost first.
	Array struct {
		Elem Type
		Dims []ArrayDim
	}
	// Mapping is mapping(Key => Value) with optional names.
	Mapping struct {
		Key       Type
		Value     Type
		KeyName   string
		ValueName string
	}
	// Struct refers to a struct declaration by namespace index.
	Struct struct{ Index int }
	// Enum refers to an enum declaration by namespace index.
	Enum struct{ Index int }
	// UserType refers to a user-defined value type by index.
	UserType struct{ Index int }
	// Contract refers to a contract by index.
	Contract struct{ Index int }
	// FunctionTy is the type of an internal or external function value.
	FunctionTy struct {
		Params     []Type
		Returns    []Type
		Mutability Mutability
		External   bool
	}
	// Ref is an l-value reference to memory; never stored.
	Ref struct{ Inner Type }
	// StorageRef is an l-value reference into contract storage.
	StorageRef struct {
		Inner     Type
		Immutable bool
	}
	// Void is the type of statements and zero-return calls.
	Void struct{}
	// Unresolved marks an expression whose resolution already failed;
	// it suppresses cascading diagnostics.
	Unresolved struct{}
	// Unreachable is the type of expressions that never produce a
	// value (revert, assert failures).
	Unreachable struct{}
	// Slice is an ephemeral view over an array, used for seed
	// arguments on the solana target.
	Slice struct{ Elem Type }
	// Rational is the type of rational literals before narrowing.
	Rational struct{}
)

func (Bool) typeNode()         {}
func (Int) typeNode()          {}
func (Uint) typeNode()         {}
func (Address) typeNode()      {}
func (Bytes) typeNode()        {}
func (String) typeNode()       {}
func (DynamicBytes) typeNode() {}
func (Array) typeNode()        {}
func (Mapping) typeNode()      {}
func (Struct) typeNode()       {}
func (Enum) typeNode()         {}
func (UserType) typeNode()     {}
func (Contract) typeNode()     {}
func (FunctionTy) typeNode()   {}
func (Ref) typeNode()          {}
func (StorageRef) typeNode()   {}
func (Void) typeNode()         {}
func (Unresolved) typeNode()   {}
func (Unreachable) typeNode()  {}
func (Slice) typeNode()        {}
func (Rational) typeNode()     {}

func (Bool) String() string   { return "bool" }
func (t Int) String() string  { return fmt.Sprintf("int%d", t.Width) }
func (t Uint) String() string { return fmt.Sprintf("uint%d", t.Width) }
func (t Address) String() string {
	if t.Payable {
		return "address payable"
	}
	return "address"
}
func (t Bytes) String() string      { return fmt.Sprintf("bytes%d", t.N) }
func (String) String() string       { return "string" }
func (DynamicBytes) String() string { return "bytes" }

func (t Array) String() string {
	var sb strings.Builder
	sb.WriteString(t.Elem.String())
	for _, d := range t.Dims {
		if d.Fixed {
			fmt.Fprintf(&sb, "[%d]", d.Length)
		} else {
			sb.WriteString("[]")
		}
	}
	return sb.String()
}

func (t Mapping) String() string {
	return fmt.Sprintf("mapping(%s => %s)", t.Key, t.Value)
}

func (t Struct) String() string   { return fmt.Sprintf("struct#%d", t.Index) }
func (t Enum) String() string     { return fmt.Sprintf("enum#%d", t.Index) }
func (t UserType) String() string { return fmt.Sprintf("usertype#%d", t.Index) }
func (t Contract) String() string { return fmt.Sprintf("contract#%d", t.Index) }

func (t FunctionTy) String() string {
	var sb strings.Builder
	sb.WriteString("function(")
	for i, p := range t.Params {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(p.String())
	}
	sb.WriteString(")")
	if len(t.Returns) > 0 {
		sb.WriteString(" returns (")
		for i, r := range t.Returns {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(r.String())
		}
		sb.WriteString(")")
	}
	return sb.String()
}

func (t Ref) String() string        { return t.Inner.String() }
func (t StorageRef) String() string { return t.Inner.String() + " storage" }
func (Void) String() string         { return "void" }
func (Unresolved) String() string   { return "unresolved" }
func (Unreachable) String() string  { return "unreachable" }
func (t Slice) String() string      { return t.Elem.String() + "[] slice" }
func (Rational) String() string     { return "rational" }

// Equal reports structural type equality.
func Equal(a, b Type) bool {
	switch x := a.(type) {
	case Bool:
		_, ok := b.(Bool)
		return ok
	case Int:
		y, ok := b.(Int)
		return ok && x.Width == y.Width
	case Uint:
		y, ok := b.(Uint)
		return ok && x.Width == y.Width
	case Address:
		y, ok := b.(Address)
		return ok && x.Payable == y.Payable
	case Bytes:
		y, ok := b.(Bytes)
		return ok && x.N == y.N
	case String:
		_, ok := b.(String)
		return ok
	case DynamicBytes:
		_, ok := b.(DynamicBytes)
		return ok
	case Array:
		y, ok := b.(Array)
		if !ok || len(x.Dims) != len(y.Dims) || !Equal(x.Elem, y.Elem) {
			return false
		}
		for i := range x.Dims {
			if x.Dims[i] != y.Dims[i] {
				return false
			}
		}
		return true
	case Mapping:
		y, ok := b.(Mapping)
		return ok && Equal(x.Key, y.Key) && Equal(x.Value, y.Value)
	case Struct:
		y, ok := b.(Struct)
		return ok && x.Index == y.Index
	case Enum:
		y, ok := b.(Enum)
		return ok && x.Index == y.Index
	case UserType:
		y, ok := b.(UserType)
		return ok && x.Index == y.Index
	case Contract:
		y, ok := b.(Contract)
		return ok && x.Index == y.Index
	case FunctionTy:
		y, ok := b.(FunctionTy)
		if !ok || x.Mutability != y.Mutability || x.External != y.External ||
			len(x.Params) != len(y.Params) || len(x.Returns) != len(y.Returns) {
			return false
		}
		for i := range x.Params {
			if !Equal(x.Params[i], y.Params[i]) {
				return false
			}
		}
		for i := range x.Returns {
			if !Equal(x.Returns[i], y.Returns[i]) {
				return false
			}
		}
		return true
	case Ref:
		y, ok := b.(Ref)
		return ok && Equal(x.Inner, y.Inner)
	case StorageRef:
		y, ok := b.(StorageRef)
		return ok && x.Immutable == y.Immutable && Equal(x.Inner, y.Inner)
	case Void:
		_, ok := b.(Void)
		return ok
	case Unresolved:
		_, ok := b.(Unresolved)
		return ok
	case Unreachable:
		_, ok := b.(Unreachable)
		return ok
	case Slice:
		y, ok := b.(Slice)
		return ok && Equal(x.Elem, y.Elem)
	case Rational:
		_, ok := b.(Rational)
		return ok
	}
	return false
}

// Deref strips one level of Ref/StorageRef, exposing the value type.
func Deref(t Type) Type {
	switch x := t.(type) {
	case Ref:
		return x.Inner
	case StorageRef:
		return x.Inner
	}
	return t
}

// IsInteger reports whether t (after deref) is int or uint.
func IsInteger(t Type) bool {
	switch Deref(t).(type) {
	case Int, Uint:
		return true
	}
	return false
}

// IsSigned reports whether t is a signed integer.
func IsSigned(t Type) bool {
	_, ok := Deref(t).(Int)
	return ok
}

// IntegerWidth returns the bit width of an integer type, or 0.
func IntegerWidth(t Type) uint16 {
	switch x := Deref(t).(type) {
	case Int:
		return x.Width
	case Uint:
		return x.Width
	}
	return 0
}

// IsDynamic reports whether a value of t has no fixed encoded size.
func (ns *Namespace) IsDynamic(t Type) bool {
	switch x := Deref(t).(type) {
	case String, DynamicBytes, Slice:
		return true
	case Array:
		for _, d := range x.Dims {
			if !d.Fixed {
				return true
			}
		}
		return ns.IsDynamic(x.Elem)
	case Struct:
		for _, f := range ns.Structs[x.Index].Fields {
			if ns.IsDynamic(f.Type) {
				return true
			}
		}
	}
	return false
}

// ContainsMapping reports whether t transitively holds a mapping.
func (ns *Namespace) ContainsMapping(t Type) bool {
	switch x := Deref(t).(type) {
	case Mapping:
		return true
	case Array:
		return ns.ContainsMapping(x.Elem)
	case Struct:
		for _, f := range ns.Structs[x.Index].Fields {
			if ns.ContainsMapping(f.Type) {
				return true
			}
		}
	}
	return false
}

// TypeName renders t for diagnostics, resolving declaration indices to
// their source names.
func (ns *Namespace) TypeName(t Type) string {
	switch x := t.(type) {
	case Struct:
		return "struct " + ns.Structs[x.Index].Name
	case Enum:
		return "enum " + ns.Enums[x.Index].Name
	case UserType:
		return ns.UserTypes[x.Index].Name
	case Contract:
		return "contract " + ns.Contracts[x.Index].Name
	case Array:
		var sb strings.Builder
		sb.WriteString(ns.TypeName(x.Elem))
		for _, d := range x.Dims {
			if d.Fixed {
				fmt.Fprintf(&sb, "[%d]", d.Length)
			} else {
				sb.WriteString("[]")
			}
		}
		return sb.String()
	case Mapping:
		return fmt.Sprintf("mapping(%s => %s)", ns.TypeName(x.Key), ns.TypeName(x.Value))
	case Ref:
		return ns.TypeName(x.Inner)
	case StorageRef:
		return ns.TypeName(x.Inner) + " storage"
	case Slice:
		return ns.TypeName(x.Elem) + "[] slice"
	}
	return t.String()
}

// UserTypeUnwrap resolves a user-defined value type to its primitive.
func (ns *Namespace) UserTypeUnwrap(t Type) Type {
	if ut, ok := Deref(t).(UserType); ok {
		return ns.UserTypes[ut.Index].Type
	}
	return t
}
