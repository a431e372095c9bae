package sema

import (
	"fmt"
	"strings"
)

// AbiTypeName renders a type the way function signatures and interface
// descriptions spell it: enums as their minimal unsigned integer,
// contracts as address, structs as parenthesized tuples.
func (ns *Namespace) AbiTypeName(t Type) string {
	switch x := Deref(t).(type) {
	case Bool:
		return "bool"
	case Int:
		return fmt.Sprintf("int%d", x.Width)
	case Uint:
		return fmt.Sprintf("uint%d", x.Width)
	case Address:
		return "address"
	case Bytes:
		return fmt.Sprintf("bytes%d", x.N)
	case String:
		return "string"
	case DynamicBytes:
		return "bytes"
	case Contract:
		return "address"
	case Enum:
		return "uint8"
	case UserType:
		return ns.AbiTypeName(ns.UserTypes[x.Index].Type)
	case Array:
		var sb strings.Builder
		sb.WriteString(ns.AbiTypeName(x.Elem))
		for _, d := range x.Dims {
			if d.Fixed {
				fmt.Fprintf(&sb, "[%d]", d.Length)
			} else {
				sb.WriteString("[]")
			}
		}
		return sb.String()
	case Struct:
		var sb strings.Builder
		sb.WriteString("(")
		for i, f := range ns.Structs[x.Index].Fields {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(ns.AbiTypeName(f.Type))
		}
		sb.WriteString(")")
		return sb.String()
	case Slice:
		return ns.AbiTypeName(x.Elem) + "[]"
	}
	return Deref(t).String()
}

// Signature renders the canonical external signature of a function:
// name(type1,type2,…).
func (ns *Namespace) Signature(fn *Function) string {
	var sb strings.Builder
	sb.WriteString(fn.Name)
	sb.WriteString("(")
	for i, p := range fn.Params {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(ns.AbiTypeName(p.Type))
	}
	sb.WriteString(")")
	return sb.String()
}

// EventSignature renders the canonical signature of an event.
func (ns *Namespace) EventSignature(ev *EventDecl) string {
	var sb strings.Builder
	sb.WriteString(ev.Name)
	sb.WriteString("(")
	for i, f := range ev.Fields {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(ns.AbiTypeName(f.Type))
	}
	sb.WriteString(")")
	return sb.String()
}

// ErrorSignature renders the canonical signature of an error type.
func (ns *Namespace) ErrorSignature(ed *ErrorDecl) string {
	var sb strings.Builder
	sb.WriteString(ed.Name)
	sb.WriteString("(")
	for i, f := range ed.Fields {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(ns.AbiTypeName(f.Type))
	}
	sb.WriteString(")")
	return sb.String()
}

// internalSignature distinguishes overloads for override matching; it
// uses dereferenced type strings, so parameters that differ only in
// data location produce the same signature.
func (ns *Namespace) internalSignature(fn *Function) string {
	var sb strings.Builder
	sb.WriteString(fn.Name)
	sb.WriteString("(")
	for i, p := range fn.Params {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(Deref(p.Type).String())
	}
	sb.WriteString(")")
	return sb.String()
}
