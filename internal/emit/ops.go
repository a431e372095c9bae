package emit

import (
	"fmt"

	"github.com/standardbeagle/solis/internal/cfg"
	"github.com/standardbeagle/solis/internal/sema"
)

// binOp translates arithmetic, comparison and bitwise operations,
// inserting overflow and division-by-zero traps where the CFG asked
// for them.
func (f *fnEmitter) binOp(x *cfg.BinOp) {
	m := f.m
	lv, lt := f.value(x.Left)
	rv, rt := f.value(x.Right)
	ty := m.llvmType(x.Ty)
	signed := sema.IsSigned(x.Ty)

	// Operand widths unify on the result type first.
	if lt != ty && lt != "ptr" {
		lv = f.resize(lv, lt, ty, signed)
	}
	if rt != ty && rt != "ptr" {
		rv = f.resize(rv, rt, ty, signed)
	}

	res := f.newTemp()
	switch x.Op {
	case sema.BinEq, sema.BinNe, sema.BinLt, sema.BinLe, sema.BinGt, sema.BinGe:
		if lt == "ptr" {
			// Dynamic bytes/string comparison through the runtime.
			m.declare("__vector_cmp", "i32 @__vector_cmp(ptr, ptr)")
			c := f.newTemp()
			f.line("%s = call i32 @__vector_cmp(ptr %s, ptr %s)", c, lv, rv)
			cond := "eq"
			if x.Op == sema.BinNe {
				cond = "ne"
			}
			f.line("%s = icmp %s i32 %s, 0", res, cond, c)
			f.store(x.Res, res, "i1")
			return
		}
		pred := map[sema.BinaryOpKind]string{
			sema.BinEq: "eq", sema.BinNe: "ne",
		}[x.Op]
		if pred == "" {
			if signed {
				pred = map[sema.BinaryOpKind]string{
					sema.BinLt: "slt", sema.BinLe: "sle", sema.BinGt: "sgt", sema.BinGe: "sge",
				}[x.Op]
			} else {
				pred = map[sema.BinaryOpKind]string{
					sema.BinLt: "ult", sema.BinLe: "ule", sema.BinGt: "ugt", sema.BinGe: "uge",
				}[x.Op]
			}
			// Comparison operand type comes from the operands, not the
			// boolean result.
			ty = lt
		} else {
			ty = lt
		}
		f.line("%s = icmp %s %s %s, %s", res, pred, ty, lv, rv)
		f.store(x.Res, res, "i1")
		return

	case sema.BinAdd, sema.BinSub, sema.BinMul:
		op := map[sema.BinaryOpKind]string{
			sema.BinAdd: "add", sema.BinSub: "sub", sema.BinMul: "mul",
		}[x.Op]
		if x.CheckOverflow {
			prefix := "u"
			if signed {
				prefix = "s"
			}
			intrinsic := fmt.Sprintf("llvm.%s%s.with.overflow.%s", prefix, op, ty)
			m.declare(intrinsic, fmt.Sprintf("{%s, i1} @%s(%s, %s)", ty, intrinsic, ty, ty))
			pair := f.newTemp()
			f.line("%s = call {%s, i1} @%s(%s %s, %s %s)", pair, ty, intrinsic, ty, lv, ty, rv)
			ov := f.newTemp()
			f.line("%s = extractvalue {%s, i1} %s, 1", ov, ty, pair)
			f.overflowTrap(ov)
			f.line("%s = extractvalue {%s, i1} %s, 0", res, ty, pair)
		} else {
			f.line("%s = %s %s %s, %s", res, op, ty, lv, rv)
		}

	case sema.BinDiv, sema.BinMod:
		// Division by zero always traps with the standard panic code.
		m.declare("__panic", "void @__panic(i32)")
		zero := f.newTemp()
		f.line("%s = icmp eq %s %s, 0", zero, ty, rv)
		cont := f.trapBlock("div")
		trap := f.trapBlock("divzero")
		f.sb.WriteString(fmt.Sprintf("  br i1 %s, label %%%s, label %%%s\n", zero, trap, cont))
		f.sb.WriteString(trap + ":\n")
		f.line("call void @__panic(i32 %d)", cfg.PanicDivByZero)
		f.line("unreachable")
		f.sb.WriteString(cont + ":\n")
		op := "udiv"
		if x.Op == sema.BinMod {
			op = "urem"
		}
		if signed {
			op = "sdiv"
			if x.Op == sema.BinMod {
				op = "srem"
			}
		}
		f.line("%s = %s %s %s, %s", res, op, ty, lv, rv)

	case sema.BinPow:
		fn := "__upower." + ty
		if signed {
			fn = "__spower." + ty
		}
		m.declare(fn, fmt.Sprintf("%s @%s(%s, %s, i1)", ty, fn, ty, ty))
		chk := "false"
		if x.CheckOverflow {
			chk = "true"
		}
		f.line("%s = call %s @%s(%s %s, %s %s, i1 %s)", res, ty, fn, ty, lv, ty, rv, chk)

	case sema.BinShl:
		f.line("%s = shl %s %s, %s", res, ty, lv, rv)
	case sema.BinShr:
		if signed {
			f.line("%s = ashr %s %s, %s", res, ty, lv, rv)
		} else {
			f.line("%s = lshr %s %s, %s", res, ty, lv, rv)
		}
	case sema.BinBitAnd:
		f.line("%s = and %s %s, %s", res, ty, lv, rv)
	case sema.BinBitOr:
		f.line("%s = or %s %s, %s", res, ty, lv, rv)
	case sema.BinBitXor:
		f.line("%s = xor %s %s, %s", res, ty, lv, rv)
	case sema.BinAnd, sema.BinOr:
		// Short-circuit forms lowered to control flow in the CFG;
		// anything left is a plain boolean op.
		op := "and"
		if x.Op == sema.BinOr {
			op = "or"
		}
		f.line("%s = %s i1 %s, %s", res, op, lv, rv)
		f.store(x.Res, res, "i1")
		return
	default:
		f.line("%s = add %s %s, %s", res, ty, lv, rv)
	}
	f.store(x.Res, res, ty)
}

// envRead maps environment accessors onto the host shim.
func (f *fnEmitter) envRead(x *cfg.EnvRead) {
	m := f.m
	want := m.llvmType(f.g.VarType(x.Res))
	scalar := func(fn string) {
		m.declare(fn, fmt.Sprintf("i256 @%s()", fn))
		cell := f.newTemp()
		f.line("%s = call i256 @%s()", cell, fn)
		f.store(x.Res, f.fromCell(cell, want), want)
	}
	vec := func(fn string) {
		m.declare(fn, fmt.Sprintf("ptr @%s()", fn))
		res := f.newTemp()
		f.line("%s = call ptr @%s()", res, fn)
		f.store(x.Res, res, "ptr")
	}
	switch x.Kind {
	case sema.BuiltinMsgSender:
		scalar("__caller")
	case sema.BuiltinMsgValue:
		scalar("__value_transferred")
	case sema.BuiltinMsgData:
		vec("__input_data")
	case sema.BuiltinMsgSig:
		scalar("__input_selector")
	case sema.BuiltinBlockNumber:
		scalar("__block_number")
	case sema.BuiltinTimestamp:
		scalar("__timestamp")
	case sema.BuiltinSlot:
		scalar("__slot")
	case sema.BuiltinBlockhash:
		scalar("__blockhash")
	case sema.BuiltinRandom:
		scalar("__random")
	case sema.BuiltinGasLeft:
		scalar("__gas_left")
	case sema.BuiltinAddressThis:
		scalar("__address")
	case sema.BuiltinBalance:
		scalar("__balance")
	case sema.BuiltinProgramID:
		scalar("__program_id")
	case sema.BuiltinAccounts:
		vec("__accounts")
	default:
		scalar("__caller")
	}
}

// abiTypeTag encodes a type for the runtime encoder templates.
func abiTypeTag(t sema.Type) int {
	switch x := sema.Deref(t).(type) {
	case sema.Bool:
		return 1
	case sema.Uint:
		return 2 + int(x.Width)/8
	case sema.Int:
		return 40 + int(x.Width)/8
	case sema.Address, sema.Contract:
		return 80
	case sema.Bytes:
		return 90 + int(x.N)
	case sema.String:
		return 130
	case sema.DynamicBytes:
		return 131
	case sema.Enum:
		return 132
	case sema.Array, sema.Slice:
		return 133
	case sema.Struct:
		return 134
	}
	return 0
}

// encoderSuffix picks the encoder family for the target.
func (m *module) encoderSuffix() string {
	if m.tgt.Kind == targetSolana {
		return "borsh"
	}
	return "eth"
}

func (f *fnEmitter) abiEncode(x *cfg.AbiEncode) {
	m := f.m
	family := m.encoderSuffix()
	fn := "__abi_encode_" + family
	if x.Packed {
		fn = "__abi_encode_packed"
	}
	m.declare(fn, fmt.Sprintf("ptr @%s(i32, ...)", fn))
	var args []string
	for i, a := range x.Args {
		val, ty := f.value(a)
		args = append(args, fmt.Sprintf("i32 %d, i256 %s", abiTypeTag(x.Tys[i]), f.asCell(val, ty)))
	}
	res := f.newTemp()
	call := fmt.Sprintf("%s = call ptr (i32, ...) @%s(i32 %d", res, fn, len(x.Args))
	for _, a := range args {
		call += ", " + a
	}
	call += ")"
	f.line("%s", call)
	if x.Selector != nil {
		m.declare("__vector_prefix", "ptr @__vector_prefix(ptr, ptr, i32)")
		sel := m.constant(x.Selector)
		t := f.newTemp()
		f.line("%s = call ptr @__vector_prefix(ptr %s, ptr %s, i32 %d)", t, res, sel, len(x.Selector))
		res = t
	}
	f.store(x.Res, res, "ptr")
}

func (f *fnEmitter) abiDecode(x *cfg.AbiDecode) {
	m := f.m
	family := m.encoderSuffix()
	fn := "__abi_decode_" + family
	m.declare(fn, fmt.Sprintf("i256 @%s(ptr, i32, i32)", fn))
	data, _ := f.value(x.Data)
	for i, res := range x.Ress {
		want := m.llvmType(f.g.VarType(res))
		cell := f.newTemp()
		f.line("%s = call i256 @%s(ptr %s, i32 %d, i32 %d)", cell, fn, data, i, abiTypeTag(x.Tys[i]))
		f.store(res, f.fromCell(cell, want), want)
	}
}

func (f *fnEmitter) callInternal(x *cfg.CallInternal) {
	m := f.m
	fn := m.ns.Functions[x.FunctionNo]
	symbol := functionSymbol(m.ns, x.FunctionNo)

	var args []string
	for i, a := range x.Args {
		val, ty := f.value(a)
		want := m.llvmType(fn.Params[i].Type)
		if ty != want && ty != "ptr" && want != "ptr" {
			val = f.resize(val, ty, want, sema.IsSigned(fn.Params[i].Type))
		}
		args = append(args, fmt.Sprintf("%s %s", want, val))
	}

	switch len(x.Ress) {
	case 0:
		f.line("call void @\"%s\"(%s)", symbol, joinArgs(args))
	case 1:
		retTy := m.llvmType(fn.Returns[0].Type)
		res := f.newTemp()
		f.line("%s = call %s @\"%s\"(%s)", res, retTy, symbol, joinArgs(args))
		f.store(x.Ress[0], res, retTy)
	default:
		// Multi-return: out-pointers appended to the argument list.
		var outs []string
		for _, r := range x.Ress {
			outs = append(outs, fmt.Sprintf("ptr %s", slotPtr(r)))
		}
		f.line("call void @\"%s\"(%s)", symbol, joinArgs(append(args, outs...)))
	}
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += ", "
		}
		out += a
	}
	return out
}

func (f *fnEmitter) callExternal(x *cfg.CallExternal) {
	m := f.m
	fn := m.ns.Functions[x.FunctionNo]

	// Arguments encode with the target family, prefixed by the callee
	// selector.
	enc := &cfg.AbiEncode{
		Res:      cfg.Var{ID: -1},
		Args:     x.Args,
		Selector: m.ns.FunctionSelector(fn),
	}
	for _, p := range fn.Params {
		enc.Tys = append(enc.Tys, sema.Deref(p.Type))
	}
	// Encode inline without a backing slot.
	family := m.encoderSuffix()
	encFn := "__abi_encode_" + family
	m.declare(encFn, fmt.Sprintf("ptr @%s(i32, ...)", encFn))
	var parts []string
	for i, a := range x.Args {
		val, ty := f.value(a)
		parts = append(parts, fmt.Sprintf("i32 %d, i256 %s", abiTypeTag(enc.Tys[i]), f.asCell(val, ty)))
	}
	data := f.newTemp()
	call := fmt.Sprintf("%s = call ptr (i32, ...) @%s(i32 %d", data, encFn, len(x.Args))
	for _, p := range parts {
		call += ", " + p
	}
	call += ")"
	f.line("%s", call)
	m.declare("__vector_prefix", "ptr @__vector_prefix(ptr, ptr, i32)")
	sel := m.constant(enc.Selector)
	data2 := f.newTemp()
	f.line("%s = call ptr @__vector_prefix(ptr %s, ptr %s, i32 %d)", data2, data, sel, len(enc.Selector))

	addr, addrTy := f.value(x.Address)
	addr = f.resize(addr, addrTy, "i256", false)
	value := "0"
	if x.Value != nil {
		v, vt := f.value(x.Value)
		value = f.resize(v, vt, "i256", false)
	}
	gas := "0"
	if x.Gas != nil {
		g, gt := f.value(x.Gas)
		gas = f.resize(g, gt, "i64", false)
	}
	m.declare("__external_call", "i32 @__external_call(i256, ptr, i256, i64)")
	rc := f.newTemp()
	f.line("%s = call i32 @__external_call(i256 %s, ptr %s, i256 %s, i64 %s)", rc, addr, data2, value, gas)
	ok := f.newTemp()
	f.line("%s = icmp eq i32 %s, 0", ok, rc)

	m.declare("__return_data", "ptr @__return_data()")
	if x.Success != nil {
		f.store(*x.Success, ok, "i1")
		if x.ErrData != nil {
			ret := f.newTemp()
			f.line("%s = call ptr @__return_data()", ret)
			f.store(*x.ErrData, ret, "ptr")
		}
	} else {
		// A failed call without try/catch propagates the revert.
		m.declare("__propagate_revert", "void @__propagate_revert()")
		cont := f.trapBlock("callok")
		trap := f.trapBlock("callfail")
		f.sb.WriteString(fmt.Sprintf("  br i1 %s, label %%%s, label %%%s\n", ok, cont, trap))
		f.sb.WriteString(trap + ":\n")
		f.line("call void @__propagate_revert()")
		f.line("unreachable")
		f.sb.WriteString(cont + ":\n")
	}

	if len(x.Ress) > 0 {
		ret := f.newTemp()
		f.line("%s = call ptr @__return_data()", ret)
		decFn := "__abi_decode_" + family
		m.declare(decFn, fmt.Sprintf("i256 @%s(ptr, i32, i32)", decFn))
		for i, res := range x.Ress {
			want := m.llvmType(f.g.VarType(res))
			cell := f.newTemp()
			f.line("%s = call i256 @%s(ptr %s, i32 %d, i32 %d)", cell, decFn, ret, i,
				abiTypeTag(sema.Deref(fn.Returns[i].Type)))
			f.store(res, f.fromCell(cell, want), want)
		}
	}
}

func (f *fnEmitter) create(x *cfg.Create) {
	m := f.m
	family := m.encoderSuffix()
	encFn := "__abi_encode_" + family
	m.declare(encFn, fmt.Sprintf("ptr @%s(i32, ...)", encFn))
	ctor := m.ns.ContractConstructor(x.ContractNo)
	var tys []sema.Type
	if ctor != nil {
		for _, p := range m.ns.Functions[*ctor].Params {
			tys = append(tys, sema.Deref(p.Type))
		}
	}
	var parts []string
	for i, a := range x.Args {
		val, ty := f.value(a)
		tag := 0
		if i < len(tys) {
			tag = abiTypeTag(tys[i])
		}
		parts = append(parts, fmt.Sprintf("i32 %d, i256 %s", tag, f.asCell(val, ty)))
	}
	data := f.newTemp()
	call := fmt.Sprintf("%s = call ptr (i32, ...) @%s(i32 %d", data, encFn, len(x.Args))
	for _, p := range parts {
		call += ", " + p
	}
	call += ")"
	f.line("%s", call)

	value := "0"
	if x.Value != nil {
		v, vt := f.value(x.Value)
		value = f.resize(v, vt, "i256", false)
	}
	salt := "null"
	if x.Salt != nil {
		sv, _ := f.value(x.Salt)
		buf, _ := f.scratch(sv, "i256")
		salt = buf
	}
	m.declare("__create_contract", "i32 @__create_contract(i32, ptr, i256, ptr, ptr)")
	out := f.newTemp()
	f.line("%s = alloca [32 x i8]", out)
	rc := f.newTemp()
	f.line("%s = call i32 @__create_contract(i32 %d, ptr %s, i256 %s, ptr %s, ptr %s)",
		rc, x.ContractNo, data, value, salt, out)
	ok := f.newTemp()
	f.line("%s = icmp eq i32 %s, 0", ok, rc)
	if x.Success != nil {
		f.store(*x.Success, ok, "i1")
	} else {
		m.declare("__propagate_revert", "void @__propagate_revert()")
		cont := f.trapBlock("newok")
		trap := f.trapBlock("newfail")
		f.sb.WriteString(fmt.Sprintf("  br i1 %s, label %%%s, label %%%s\n", ok, cont, trap))
		f.sb.WriteString(trap + ":\n")
		f.line("call void @__propagate_revert()")
		f.line("unreachable")
		f.sb.WriteString(cont + ":\n")
	}
	want := m.llvmType(f.g.VarType(x.Res))
	res := f.newTemp()
	f.line("%s = load %s, ptr %s", res, want, out)
	f.store(x.Res, res, want)
}

func (f *fnEmitter) emitEvent(x *cfg.EmitEvent) {
	m := f.m
	m.declare("__aggregate_new", "ptr @__aggregate_new(i32)")
	m.declare("__aggregate_set", "void @__aggregate_set(ptr, i32, i256)")
	m.declare("__emit_event", "void @__emit_event(i32, ptr, ptr)")
	topics := f.newTemp()
	f.line("%s = call ptr @__aggregate_new(i32 %d)", topics, len(x.Topics))
	for i, t := range x.Topics {
		val, ty := f.value(t)
		f.line("call void @__aggregate_set(ptr %s, i32 %d, i256 %s)", topics, i, f.asCell(val, ty))
	}
	data, _ := f.value(x.Data)
	f.line("call void @__emit_event(i32 %d, ptr %s, ptr %s)", len(x.Topics), topics, data)
}

// term translates a block terminator.
func (f *fnEmitter) term(t cfg.Terminator, g *cfg.Graph) {
	m := f.m
	switch x := t.(type) {
	case cfg.Jump:
		f.line("br label %%b%d", x.Block)
	case cfg.CondJump:
		val, _ := f.value(x.Cond)
		f.line("br i1 %s, label %%b%d, label %%b%d", val, x.True, x.False)
	case cfg.Return:
		switch len(g.Returns) {
		case 0:
			f.line("ret void")
		case 1:
			if len(x.Values) == 0 {
				f.line("ret %s zeroinitializer", m.llvmType(g.Returns[0]))
				return
			}
			val, ty := f.value(x.Values[0])
			want := m.llvmType(g.Returns[0])
			if ty != want && ty != "ptr" && want != "ptr" {
				val = f.resize(val, ty, want, sema.IsSigned(g.Returns[0]))
			}
			f.line("ret %s %s", want, val)
		default:
			for i, v := range x.Values {
				if i >= len(g.Returns) {
					break
				}
				val, ty := f.value(v)
				want := m.llvmType(g.Returns[i])
				if ty != want && ty != "ptr" && want != "ptr" {
					val = f.resize(val, ty, want, sema.IsSigned(g.Returns[i]))
				}
				f.line("store %s %s, ptr %%r%d.out", want, val, i)
			}
			f.line("ret void")
		}
	case cfg.Revert:
		f.revert(x)
	case cfg.Unreachable:
		f.line("unreachable")
	case cfg.SelfDestruct:
		m.declare("__self_destruct", "void @__self_destruct(i256)")
		val, ty := f.value(x.Recipient)
		f.line("call void @__self_destruct(i256 %s)", f.resize(val, ty, "i256", false))
		f.line("unreachable")
	case nil:
		f.line("unreachable")
	}
}

func (f *fnEmitter) revert(x cfg.Revert) {
	m := f.m
	if m.release {
		// --release strips revert payloads.
		m.declare("__revert_empty", "void @__revert_empty()")
		f.line("call void @__revert_empty()")
		f.line("unreachable")
		return
	}
	switch x.Kind {
	case cfg.RevertString:
		m.declare("__revert_error_string", "void @__revert_error_string(ptr)")
		val, _ := f.value(x.Args[0])
		f.line("call void @__revert_error_string(ptr %s)", val)
	case cfg.RevertPanic:
		m.declare("__panic", "void @__panic(i32)")
		val, ty := f.value(x.Args[0])
		f.line("call void @__panic(i32 %s)", f.resize(val, ty, "i32", false))
	case cfg.RevertCustom:
		m.declare("__revert_custom", "void @__revert_custom(ptr)")
		ed := m.ns.Errors[x.ErrorNo]
		enc := "__abi_encode_" + m.encoderSuffix()
		m.declare(enc, fmt.Sprintf("ptr @%s(i32, ...)", enc))
		var parts []string
		for i, a := range x.Args {
			val, ty := f.value(a)
			tag := 0
			if i < len(ed.Fields) {
				tag = abiTypeTag(ed.Fields[i].Type)
			}
			parts = append(parts, fmt.Sprintf("i32 %d, i256 %s", tag, f.asCell(val, ty)))
		}
		data := f.newTemp()
		call := fmt.Sprintf("%s = call ptr (i32, ...) @%s(i32 %d", data, enc, len(x.Args))
		for _, p := range parts {
			call += ", " + p
		}
		call += ")"
		f.line("%s", call)
		m.declare("__vector_prefix", "ptr @__vector_prefix(ptr, ptr, i32)")
		sel := m.constant(m.ns.ErrorSelector(ed))
		data2 := f.newTemp()
		f.line("%s = call ptr @__vector_prefix(ptr %s, ptr %s, i32 4)", data2, data, sel)
		f.line("call void @__revert_custom(ptr %s)", data2)
	default:
		m.declare("__revert_empty", "void @__revert_empty()")
		f.line("call void @__revert_empty()")
	}
	f.line("unreachable")
}
