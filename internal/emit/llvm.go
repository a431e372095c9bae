// Package emit is the target code generator: it traverses optimized
// CFGs and writes one textual LLVM-IR module per contract (polkadot)
// or per compilation (solana), links in the runtime-dispatch shim and
// declares the chain's host functions. Integer types map directly to
// LLVM integers up to i256; dynamic values are pointers into a
// contract-provided bump allocator.
package emit

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/standardbeagle/solis/internal/cfg"
	"github.com/standardbeagle/solis/internal/sema"
	"github.com/standardbeagle/solis/internal/target"
)

// module accumulates one LLVM-IR module's text.
type module struct {
	ns      *sema.Namespace
	tgt     target.Target
	decls   map[string]string // name → declare line
	consts  []string          // private constant globals
	nconst  int
	release bool
}

func newModule(ns *sema.Namespace, release bool) *module {
	return &module{ns: ns, tgt: ns.Target, decls: map[string]string{}, release: release}
}

// llvmType maps a resolved type to its LLVM spelling. Fixed-width
// scalars become integers; aggregates and dynamic data are pointers.
func (m *module) llvmType(t sema.Type) string {
	switch x := sema.Deref(t).(type) {
	case sema.Bool:
		return "i1"
	case sema.Int:
		return fmt.Sprintf("i%d", x.Width)
	case sema.Uint:
		return fmt.Sprintf("i%d", x.Width)
	case sema.Enum:
		return "i8"
	case sema.UserType:
		return m.llvmType(m.ns.UserTypes[x.Index].Type)
	case sema.Address:
		return fmt.Sprintf("i%d", m.tgt.AddressLength*8)
	case sema.Contract:
		return fmt.Sprintf("i%d", m.tgt.AddressLength*8)
	case sema.Bytes:
		return fmt.Sprintf("i%d", int(x.N)*8)
	case sema.FunctionTy:
		return "i32"
	case sema.Void, sema.Unreachable:
		return "void"
	}
	// string, bytes, arrays, structs, slices: heap pointers.
	return "ptr"
}

// declare records a host/runtime function declaration.
func (m *module) declare(name, signature string) {
	m.decls[name] = fmt.Sprintf("declare %s", signature)
}

// declareVectorNew declares the literal-vector constructor used by
// constant dynamic values.
func (m *module) declareVectorNew() {
	m.declare("__vector_literal", "ptr @__vector_literal(ptr, i32)")
}

// constant interns a byte-string constant global and returns its name.
func (m *module) constant(data []byte) string {
	name := fmt.Sprintf("@.const.%d", m.nconst)
	m.nconst++
	m.consts = append(m.consts, fmt.Sprintf(
		"%s = private unnamed_addr constant [%d x i8] c\"%s\"",
		name, len(data), escapeIR(data)))
	return name
}

func escapeIR(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		if b >= 0x20 && b < 0x7f && b != '"' && b != '\\' {
			sb.WriteByte(b)
		} else {
			fmt.Fprintf(&sb, "\\%02X", b)
		}
	}
	return sb.String()
}

// fnEmitter carries per-function emission state.
type fnEmitter struct {
	m    *module
	g    *cfg.Graph
	sb   strings.Builder
	temp int
}

func (f *fnEmitter) newTemp() string {
	f.temp++
	return fmt.Sprintf("%%t%d", f.temp)
}

func (f *fnEmitter) line(format string, args ...any) {
	fmt.Fprintf(&f.sb, "  "+format+"\n", args...)
}

// slotPtr is the alloca backing a vartable slot.
func slotPtr(v cfg.Var) string { return fmt.Sprintf("%%v%d", v.ID) }

// value materializes an operand as an SSA value of its LLVM type.
func (f *fnEmitter) value(o cfg.Operand) (string, string) {
	switch x := o.(type) {
	case cfg.Var:
		ty := f.m.llvmType(f.g.VarType(x))
		t := f.newTemp()
		f.line("%s = load %s, ptr %s", t, ty, slotPtr(x))
		return t, ty
	case cfg.ConstInt:
		return x.Value.String(), f.m.llvmType(x.Ty)
	case cfg.ConstBool:
		if x.Value {
			return "true", "i1"
		}
		return "false", "i1"
	case cfg.ConstBytes:
		ty := f.m.llvmType(x.Ty)
		if ty == "ptr" {
			// Dynamic constant: a runtime vector built from the
			// interned global.
			g := f.m.constant(x.Value)
			f.m.declareVectorNew()
			t := f.newTemp()
			f.line("%s = call ptr @__vector_literal(ptr %s, i32 %d)", t, g, len(x.Value))
			return t, "ptr"
		}
		n := new(big.Int).SetBytes(x.Value)
		return n.String(), ty
	}
	return "undef", "i64"
}

// store writes an SSA value into a slot's alloca.
func (f *fnEmitter) store(v cfg.Var, val, ty string) {
	f.line("store %s %s, ptr %s", ty, val, slotPtr(v))
}

// emitFunction writes one define for a graph.
func (m *module) emitFunction(symbol string, g *cfg.Graph) string {
	f := &fnEmitter{m: m, g: g}

	var params []string
	for i, ty := range g.Params {
		params = append(params, fmt.Sprintf("%s %%p%d", m.llvmType(ty), i))
	}
	retTy := "void"
	if len(g.Returns) == 1 {
		retTy = m.llvmType(g.Returns[0])
	} else if len(g.Returns) > 1 {
		// Multiple returns via sret-style out-pointers.
		for i, ty := range g.Returns {
			params = append(params, fmt.Sprintf("ptr %%r%d.out", i))
			_ = ty
		}
	}

	var out strings.Builder
	fmt.Fprintf(&out, "define internal %s @\"%s\"(%s) {\n", retTy, symbol, strings.Join(params, ", "))

	// Vartable allocas up front, then parameter spills.
	for id, decl := range g.Vars {
		f.line("%%v%d = alloca %s", id, m.llvmType(decl.Ty))
	}
	for i := range g.Params {
		f.line("store %s %%p%d, ptr %%v%d", m.llvmType(g.Params[i]), i, i)
	}
	f.line("br label %%b0")

	for no, blk := range g.Blocks {
		fmt.Fprintf(&f.sb, "b%d:\n", no)
		for _, instr := range blk.Instrs {
			f.instr(instr)
		}
		f.term(blk.Term, g)
	}

	out.WriteString(f.sb.String())
	out.WriteString("}\n")
	return out.String()
}
