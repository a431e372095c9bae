package emit

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/solis/internal/cfg"
	"github.com/standardbeagle/solis/internal/sema"
)

// intBits parses an iN spelling.
func intBits(ty string) int {
	if !strings.HasPrefix(ty, "i") {
		return 0
	}
	n := 0
	fmt.Sscanf(ty, "i%d", &n)
	return n
}

// resize converts an integer SSA value between widths.
func (f *fnEmitter) resize(val, from, to string, signed bool) string {
	fb, tb := intBits(from), intBits(to)
	if fb == tb || fb == 0 || tb == 0 {
		return val
	}
	t := f.newTemp()
	switch {
	case fb < tb && signed:
		f.line("%s = sext %s %s to %s", t, from, val, to)
	case fb < tb:
		f.line("%s = zext %s %s to %s", t, from, val, to)
	default:
		f.line("%s = trunc %s %s to %s", t, from, val, to)
	}
	return t
}

// asCell widens a scalar to the 32-byte aggregate cell, or converts a
// pointer.
func (f *fnEmitter) asCell(val, ty string) string {
	if ty == "ptr" {
		t := f.newTemp()
		f.line("%s = ptrtoint ptr %s to i256", t, val)
		return t
	}
	if ty == "i1" {
		t := f.newTemp()
		f.line("%s = zext i1 %s to i256", t, val)
		return t
	}
	return f.resize(val, ty, "i256", false)
}

// fromCell narrows an aggregate cell back to a typed value.
func (f *fnEmitter) fromCell(val, ty string) string {
	if ty == "ptr" {
		t := f.newTemp()
		f.line("%s = inttoptr i256 %s to ptr", t, val)
		return t
	}
	if ty == "i1" {
		t := f.newTemp()
		f.line("%s = trunc i256 %s to i1", t, val)
		return t
	}
	return f.resize(val, "i256", ty, false)
}

// scratch allocates a stack buffer holding a scalar for a runtime
// call, returning (ptr, byte length).
func (f *fnEmitter) scratch(val, ty string) (string, int) {
	bits := intBits(ty)
	bytes := (bits + 7) / 8
	p := f.newTemp()
	f.line("%s = alloca [%d x i8]", p, bytes)
	f.line("store %s %s, ptr %s", ty, val, p)
	return p, bytes
}

func (f *fnEmitter) trapBlock(reason string) string {
	// Each trap gets its own tiny block; the label is derived from the
	// temp counter so it is unique.
	f.temp++
	return fmt.Sprintf("trap%d", f.temp)
}

// instr translates one CFG instruction.
func (f *fnEmitter) instr(i cfg.Instr) {
	m := f.m
	switch x := i.(type) {
	case *cfg.Set:
		val, ty := f.value(x.Src)
		want := m.llvmType(f.g.VarType(x.Res))
		if ty != want && ty != "ptr" && want != "ptr" {
			val = f.resize(val, ty, want, sema.IsSigned(f.g.VarType(x.Res)))
		}
		f.store(x.Res, val, want)

	case *cfg.BinOp:
		f.binOp(x)

	case *cfg.UnOp:
		val, ty := f.value(x.Expr)
		res := f.newTemp()
		switch x.Op {
		case sema.UnNot:
			f.line("%s = xor i1 %s, true", res, val)
			f.store(x.Res, res, "i1")
		case sema.UnBitNot:
			f.line("%s = xor %s %s, -1", res, ty, val)
			f.store(x.Res, res, ty)
		case sema.UnNeg:
			if x.CheckOverflow {
				m.declare("llvm.ssub.with.overflow."+ty, fmt.Sprintf(
					"{%s, i1} @llvm.ssub.with.overflow.%s(%s, %s)", ty, ty, ty, ty))
				pair := f.newTemp()
				f.line("%s = call {%s, i1} @llvm.ssub.with.overflow.%s(%s 0, %s %s)",
					pair, ty, ty, ty, ty, val)
				ov := f.newTemp()
				f.line("%s = extractvalue {%s, i1} %s, 1", ov, ty, pair)
				f.overflowTrap(ov)
				f.line("%s = extractvalue {%s, i1} %s, 0", res, ty, pair)
			} else {
				f.line("%s = sub %s 0, %s", res, ty, val)
			}
			f.store(x.Res, res, ty)
		}

	case *cfg.CastOp:
		val, ty := f.value(x.Expr)
		want := m.llvmType(x.Ty)
		if ty == want {
			f.store(x.Res, val, want)
			return
		}
		if ty == "ptr" || want == "ptr" {
			// Representation change between heap value and scalar is a
			// runtime conversion (bytes ↔ string share representation).
			f.store(x.Res, f.fromCell(f.asCell(val, ty), want), want)
			return
		}
		f.store(x.Res, f.resize(val, ty, want, sema.IsSigned(x.From)), want)

	case *cfg.StorageLoad:
		slot, slotTy := f.value(x.Slot)
		slot = f.resize(slot, slotTy, "i256", false)
		want := m.llvmType(x.Ty)
		if want == "ptr" {
			m.declare("__storage_load_vec", "ptr @__storage_load_vec(i256)")
			res := f.newTemp()
			f.line("%s = call ptr @__storage_load_vec(i256 %s)", res, slot)
			f.store(x.Res, res, "ptr")
			return
		}
		m.declare("__storage_load", "void @__storage_load(i256, ptr, i32)")
		buf := f.newTemp()
		bytes := (intBits(want) + 7) / 8
		f.line("%s = alloca [%d x i8]", buf, bytes)
		f.line("call void @__storage_load(i256 %s, ptr %s, i32 %d)", slot, buf, bytes)
		res := f.newTemp()
		f.line("%s = load %s, ptr %s", res, want, buf)
		f.store(x.Res, res, want)

	case *cfg.StorageStore:
		slot, slotTy := f.value(x.Slot)
		slot = f.resize(slot, slotTy, "i256", false)
		val, ty := f.value(x.Value)
		if ty == "ptr" {
			m.declare("__storage_store_vec", "void @__storage_store_vec(i256, ptr)")
			f.line("call void @__storage_store_vec(i256 %s, ptr %s)", slot, val)
			return
		}
		m.declare("__storage_store", "void @__storage_store(i256, ptr, i32)")
		buf, n := f.scratch(val, ty)
		f.line("call void @__storage_store(i256 %s, ptr %s, i32 %d)", slot, buf, n)

	case *cfg.StorageClear:
		slot, slotTy := f.value(x.Slot)
		slot = f.resize(slot, slotTy, "i256", false)
		m.declare("__storage_clear", "void @__storage_clear(i256)")
		f.line("call void @__storage_clear(i256 %s)", slot)

	case *cfg.KeccakSlot:
		slot, slotTy := f.value(x.Slot)
		slot = f.resize(slot, slotTy, "i256", false)
		key, keyTy := f.value(x.Key)
		m.declare("__slot_hash", "i256 @__slot_hash(i256, ptr, i32)")
		var buf string
		var n int
		if keyTy == "ptr" {
			m.declare("__vector_data", "ptr @__vector_data(ptr)")
			m.declare("__vector_len", "i32 @__vector_len(ptr)")
			buf = f.newTemp()
			f.line("%s = call ptr @__vector_data(ptr %s)", buf, key)
			ln := f.newTemp()
			f.line("%s = call i32 @__vector_len(ptr %s)", ln, key)
			res := f.newTemp()
			f.line("%s = call i256 @__slot_hash(i256 %s, ptr %s, i32 %s)", res, slot, buf, ln)
			f.store(x.Res, res, "i256")
			return
		}
		buf, n = f.scratch(key, keyTy)
		res := f.newTemp()
		f.line("%s = call i256 @__slot_hash(i256 %s, ptr %s, i32 %d)", res, slot, buf, n)
		f.store(x.Res, res, "i256")

	case *cfg.Hash:
		fn := map[sema.BuiltinKind]string{
			sema.BuiltinKeccak256:  "__keccak256",
			sema.BuiltinSha256:     "__sha256",
			sema.BuiltinRipemd160:  "__ripemd160",
			sema.BuiltinBlake2b256: "__blake2b_256",
		}[x.Kind]
		m.declare(fn, fmt.Sprintf("void @%s(ptr, i32, ptr)", fn))
		m.declare("__vector_data", "ptr @__vector_data(ptr)")
		m.declare("__vector_len", "i32 @__vector_len(ptr)")
		arg, _ := f.value(x.Arg)
		data := f.newTemp()
		f.line("%s = call ptr @__vector_data(ptr %s)", data, arg)
		ln := f.newTemp()
		f.line("%s = call i32 @__vector_len(ptr %s)", ln, arg)
		out := f.newTemp()
		f.line("%s = alloca [32 x i8]", out)
		f.line("call void @%s(ptr %s, i32 %s, ptr %s)", fn, data, ln, out)
		want := m.llvmType(f.g.VarType(x.Res))
		res := f.newTemp()
		f.line("%s = load %s, ptr %s", res, want, out)
		f.store(x.Res, res, want)

	case *cfg.EnvRead:
		f.envRead(x)

	case *cfg.StructInit:
		m.declare("__aggregate_new", "ptr @__aggregate_new(i32)")
		m.declare("__aggregate_set", "void @__aggregate_set(ptr, i32, i256)")
		res := f.newTemp()
		f.line("%s = call ptr @__aggregate_new(i32 %d)", res, len(x.Fields))
		for idx, field := range x.Fields {
			val, ty := f.value(field)
			f.line("call void @__aggregate_set(ptr %s, i32 %d, i256 %s)", res, idx, f.asCell(val, ty))
		}
		f.store(x.Res, res, "ptr")

	case *cfg.FieldLoad:
		m.declare("__aggregate_get", "i256 @__aggregate_get(ptr, i32)")
		agg, _ := f.value(x.Struct)
		cell := f.newTemp()
		f.line("%s = call i256 @__aggregate_get(ptr %s, i32 %d)", cell, agg, x.Field)
		want := m.llvmType(x.Ty)
		f.store(x.Res, f.fromCell(cell, want), want)

	case *cfg.FieldStore:
		m.declare("__aggregate_set", "void @__aggregate_set(ptr, i32, i256)")
		agg, _ := f.value(x.Struct)
		val, ty := f.value(x.Value)
		f.line("call void @__aggregate_set(ptr %s, i32 %d, i256 %s)", agg, x.Field, f.asCell(val, ty))

	case *cfg.ArrayInit:
		m.declare("__aggregate_new", "ptr @__aggregate_new(i32)")
		m.declare("__aggregate_set", "void @__aggregate_set(ptr, i32, i256)")
		res := f.newTemp()
		f.line("%s = call ptr @__aggregate_new(i32 %d)", res, len(x.Items))
		for idx, item := range x.Items {
			val, ty := f.value(item)
			f.line("call void @__aggregate_set(ptr %s, i32 %d, i256 %s)", res, idx, f.asCell(val, ty))
		}
		f.store(x.Res, res, "ptr")

	case *cfg.AllocDynamic:
		m.declare("__vector_new", "ptr @__vector_new(i32, i32, ptr)")
		ln, lnTy := f.value(x.Length)
		ln = f.resize(ln, lnTy, "i32", false)
		init := "null"
		if x.Literal != nil {
			init = m.constant(x.Literal)
		}
		res := f.newTemp()
		f.line("%s = call ptr @__vector_new(i32 %s, i32 1, ptr %s)", res, ln, init)
		f.store(x.Res, res, "ptr")

	case *cfg.IndexLoad:
		m.declare("__vector_get", "i256 @__vector_get(ptr, i256, i32)")
		arr, _ := f.value(x.Array)
		idx, idxTy := f.value(x.Index)
		idx = f.resize(idx, idxTy, "i256", false)
		want := m.llvmType(x.Ty)
		cellSize := (intBits(want) + 7) / 8
		if want == "ptr" {
			cellSize = 32
		}
		cell := f.newTemp()
		f.line("%s = call i256 @__vector_get(ptr %s, i256 %s, i32 %d)", cell, arr, idx, cellSize)
		f.store(x.Res, f.fromCell(cell, want), want)

	case *cfg.IndexStore:
		m.declare("__vector_set", "void @__vector_set(ptr, i256, i256, i32)")
		arr, _ := f.value(x.Array)
		idx, idxTy := f.value(x.Index)
		idx = f.resize(idx, idxTy, "i256", false)
		val, ty := f.value(x.Value)
		cellSize := (intBits(ty) + 7) / 8
		if ty == "ptr" {
			cellSize = 32
		}
		f.line("call void @__vector_set(ptr %s, i256 %s, i256 %s, i32 %d)", arr, idx, f.asCell(val, ty), cellSize)

	case *cfg.Len:
		m.declare("__vector_len", "i32 @__vector_len(ptr)")
		arg, _ := f.value(x.Arg)
		ln := f.newTemp()
		f.line("%s = call i32 @__vector_len(ptr %s)", ln, arg)
		want := m.llvmType(f.g.VarType(x.Res))
		f.store(x.Res, f.resize(ln, "i32", want, false), want)

	case *cfg.Push:
		m.declare("__storage_push", "void @__storage_push(i256, ptr, i32)")
		slot, slotTy := f.value(x.Slot)
		slot = f.resize(slot, slotTy, "i256", false)
		val, ty := f.value(x.Value)
		if ty == "ptr" {
			f.line("call void @__storage_push(i256 %s, ptr %s, i32 0)", slot, val)
			return
		}
		buf, n := f.scratch(val, ty)
		f.line("call void @__storage_push(i256 %s, ptr %s, i32 %d)", slot, buf, n)

	case *cfg.Pop:
		m.declare("__storage_pop", "void @__storage_pop(i256, ptr, i32)")
		slot, slotTy := f.value(x.Slot)
		slot = f.resize(slot, slotTy, "i256", false)
		want := m.llvmType(x.Ty)
		bytes := 32
		if b := intBits(want); b > 0 {
			bytes = (b + 7) / 8
		}
		buf := f.newTemp()
		f.line("%s = alloca [%d x i8]", buf, bytes)
		f.line("call void @__storage_pop(i256 %s, ptr %s, i32 %d)", slot, buf, bytes)
		res := f.newTemp()
		f.line("%s = load %s, ptr %s", res, want, buf)
		f.store(x.Res, res, want)

	case *cfg.Concat:
		m.declare("__vector_concat", "ptr @__vector_concat(ptr, ptr)")
		if len(x.Args) == 0 {
			m.declare("__vector_new", "ptr @__vector_new(i32, i32, ptr)")
			res := f.newTemp()
			f.line("%s = call ptr @__vector_new(i32 0, i32 1, ptr null)", res)
			f.store(x.Res, res, "ptr")
			return
		}
		acc, _ := f.value(x.Args[0])
		for _, a := range x.Args[1:] {
			next, _ := f.value(a)
			t := f.newTemp()
			f.line("%s = call ptr @__vector_concat(ptr %s, ptr %s)", t, acc, next)
			acc = t
		}
		f.store(x.Res, acc, "ptr")

	case *cfg.AbiEncode:
		f.abiEncode(x)

	case *cfg.AbiDecode:
		f.abiDecode(x)

	case *cfg.CallInternal:
		f.callInternal(x)

	case *cfg.CallExternal:
		f.callExternal(x)

	case *cfg.Create:
		f.create(x)

	case *cfg.EmitEvent:
		f.emitEvent(x)

	case *cfg.ValueTransfer:
		m.declare("__value_transfer", "i32 @__value_transfer(i256, i256)")
		addr, addrTy := f.value(x.Address)
		addr = f.resize(addr, addrTy, "i256", false)
		amt, amtTy := f.value(x.Amount)
		amt = f.resize(amt, amtTy, "i256", false)
		rc := f.newTemp()
		f.line("%s = call i32 @__value_transfer(i256 %s, i256 %s)", rc, addr, amt)
		ok := f.newTemp()
		f.line("%s = icmp eq i32 %s, 0", ok, rc)
		if x.FailOk {
			f.store(x.Res, ok, "i1")
		} else {
			f.requireOk(ok, "transfer failed")
		}

	case *cfg.Print:
		if m.release {
			return // --release strips the debug buffer
		}
		m.declare("__debug_print", "void @__debug_print(ptr)")
		arg, _ := f.value(x.Arg)
		f.line("call void @__debug_print(ptr %s)", arg)

	case *cfg.CatchMatch:
		m.declare("__catch_match", "i1 @__catch_match(ptr, i32)")
		data, _ := f.value(x.Data)
		res := f.newTemp()
		f.line("%s = call i1 @__catch_match(ptr %s, i32 %d)", res, data, int(x.Bucket))
		f.store(x.Res, res, "i1")

	case *cfg.CatchPayload:
		data, _ := f.value(x.Data)
		want := m.llvmType(f.g.VarType(x.Res))
		if want == "ptr" {
			m.declare("__catch_payload_str", "ptr @__catch_payload_str(ptr)")
			res := f.newTemp()
			f.line("%s = call ptr @__catch_payload_str(ptr %s)", res, data)
			f.store(x.Res, res, "ptr")
		} else {
			m.declare("__catch_payload_code", "i256 @__catch_payload_code(ptr)")
			cell := f.newTemp()
			f.line("%s = call i256 @__catch_payload_code(ptr %s)", cell, data)
			f.store(x.Res, f.fromCell(cell, want), want)
		}
	}
}

// overflowTrap branches to a panic block when the overflow bit is set.
func (f *fnEmitter) overflowTrap(ovBit string) {
	f.m.declare("__panic", "void @__panic(i32)")
	cont := f.trapBlock("cont")
	trap := f.trapBlock("ovf")
	f.sb.WriteString(fmt.Sprintf("  br i1 %s, label %%%s, label %%%s\n", ovBit, trap, cont))
	f.sb.WriteString(trap + ":\n")
	f.line("call void @__panic(i32 %d)", cfg.PanicOverflow)
	f.line("unreachable")
	f.sb.WriteString(cont + ":\n")
}

// requireOk reverts when a host call failed.
func (f *fnEmitter) requireOk(okBit string, what string) {
	f.m.declare("__revert_empty", "void @__revert_empty()")
	cont := f.trapBlock("cont")
	trap := f.trapBlock("fail")
	f.sb.WriteString(fmt.Sprintf("  br i1 %s, label %%%s, label %%%s\n", okBit, cont, trap))
	f.sb.WriteString(trap + ":\n")
	f.line("call void @__revert_empty()")
	f.line("unreachable")
	f.sb.WriteString(cont + ":\n")
}
