package cfg

import (
	"fmt"
	"math/big"

	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/sema"
)

// temp allocates a fresh temporary slot.
func (b *builder) temp(hint string, ty sema.Type) Var {
	return b.g.NewVar(hint, sema.Deref(ty))
}

// debugCheck records a runtime-check location for the -g debug buffer.
func (b *builder) debugCheck(loc diag.Loc, reason string) {
	if !b.opts.DebugInfo {
		return
	}
	b.g.DebugChecks = append(b.g.DebugChecks, DebugCheck{Loc: loc, Reason: reason})
}

// multiValue lowers a multi-return call; ok is false for single-valued
// expressions.
func (b *builder) multiValue(e sema.Expr) ([]Operand, bool) {
	switch x := e.(type) {
	case *sema.InternalCall:
		if len(x.Returns) != 1 {
			instr := b.internalCall(x)
			out := make([]Operand, len(instr.Ress))
			for i, v := range instr.Ress {
				out[i] = v
			}
			return out, true
		}
	case *sema.ExternalCall:
		if len(x.Returns) != 1 {
			instr := b.externalCall(x)
			out := make([]Operand, len(instr.Ress))
			for i, v := range instr.Ress {
				out[i] = v
			}
			return out, true
		}
	}
	return nil, false
}

// expr lowers an expression to an operand, emitting instructions into
// the current block.
func (b *builder) expr(e sema.Expr) Operand {
	switch x := e.(type) {
	case *sema.BoolLit:
		return ConstBool{Value: x.Value}
	case *sema.NumberLit:
		return ConstInt{Ty: sema.Deref(x.Ty()), Value: x.Value}
	case *sema.RationalLit:
		// Rationals never reach lowering; folding narrowed them.
		return ConstInt{Ty: sema.Uint{Width: 256}, Value: x.Value.Num()}
	case *sema.BytesLit:
		return ConstBytes{Ty: sema.Deref(x.Ty()), Value: x.Value}
	case *sema.ConstVar:
		return b.constVar(x)
	case *sema.LocalRef:
		return b.vars[x.VarNo]
	case *sema.StorageVarRef:
		return b.storageSlot(x)
	case *sema.Load:
		return b.load(x)
	case *sema.StructMember:
		return b.structMember(x)
	case *sema.Subscript:
		return b.subscript(x)
	case *sema.StructLit:
		res := b.temp("struct", x.Ty())
		var fields []Operand
		for _, f := range x.Fields {
			fields = append(fields, b.expr(f))
		}
		b.emit(&StructInit{instrBase: instrBase{At: x.ExprLoc()}, Res: res, Ty: sema.Deref(x.Ty()), Fields: fields})
		return res
	case *sema.ArrayLit:
		res := b.temp("array", x.Ty())
		var items []Operand
		for _, item := range x.Items {
			items = append(items, b.expr(item))
		}
		b.emit(&ArrayInit{instrBase: instrBase{At: x.ExprLoc()}, Res: res, Ty: sema.Deref(x.Ty()), Items: items})
		return res
	case *sema.AllocDynamic:
		res := b.temp("alloc", x.Ty())
		b.emit(&AllocDynamic{
			instrBase: instrBase{At: x.ExprLoc()},
			Res:       res, Ty: sema.Deref(x.Ty()),
			Length:  b.expr(x.Length),
			Literal: x.Literal,
		})
		return res
	case *sema.Default:
		return b.zero(sema.Deref(x.Ty()))
	case *sema.Binary:
		return b.binary(x)
	case *sema.Unary:
		res := b.temp("un", x.Ty())
		b.emit(&UnOp{
			instrBase: instrBase{At: x.ExprLoc()},
			Res:       res, Op: x.Op, Ty: sema.Deref(x.Ty()),
			Expr:          b.expr(x.Expr),
			CheckOverflow: x.Op == sema.UnNeg && !x.Unchecked,
		})
		if x.Op == sema.UnNeg && !x.Unchecked {
			b.debugCheck(x.ExprLoc(), "math overflow")
		}
		return res
	case *sema.IncDec:
		return b.incDec(x)
	case *sema.Assign:
		val := b.expr(x.Right)
		b.store(x.Left, val)
		return val
	case *sema.DestructureAssign:
		vals, ok := b.multiValue(x.Right)
		if !ok {
			vals = []Operand{b.expr(x.Right)}
		}
		for i, tgt := range x.Targets {
			if tgt == nil || i >= len(vals) {
				continue
			}
			b.store(tgt, vals[i])
		}
		return ConstBool{Value: true}
	case *sema.Ternary:
		return b.ternary(x)
	case *sema.Cast:
		return b.cast(x)
	case *sema.InternalCall:
		instr := b.internalCall(x)
		if len(instr.Ress) == 1 {
			return instr.Ress[0]
		}
		return ConstBool{Value: true}
	case *sema.ExternalCall:
		instr := b.externalCall(x)
		if len(instr.Ress) == 1 {
			return instr.Ress[0]
		}
		return ConstBool{Value: true}
	case *sema.Constructor:
		return b.create(x).Res
	case *sema.FunctionRef:
		return ConstInt{Ty: sema.Uint{Width: 32}, Value: big.NewInt(int64(x.FunctionNo))}
	case *sema.Builtin:
		return b.builtin(x)
	}
	return ConstInt{Ty: sema.Uint{Width: 8}, Value: new(big.Int)}
}

// constVar folds a constant reference to its initializer value.
func (b *builder) constVar(x *sema.ConstVar) Operand {
	var v *sema.Variable
	if x.ContractNo >= 0 {
		v = b.ns.Contracts[x.ContractNo].Variables[x.VarNo]
	} else {
		v = b.ns.Constants[x.VarNo]
	}
	if v.Initializer != nil {
		return b.expr(v.Initializer)
	}
	return b.zero(sema.Deref(v.Type))
}

// storageSlot computes the root slot operand of a storage variable.
func (b *builder) storageSlot(x *sema.StorageVarRef) Operand {
	c := b.currentContract()
	if c != nil {
		for _, sv := range c.Layout {
			if sv.Contract == x.ContractNo && sv.VarNo == x.VarNo {
				return ConstInt{Ty: sema.Uint{Width: 256}, Value: new(big.Int).Set(sv.Slot)}
			}
		}
	}
	return ConstInt{Ty: sema.Uint{Width: 256}, Value: new(big.Int)}
}

func (b *builder) currentContract() *sema.ContractDecl {
	if b.fn != nil && b.fn.ContractNo >= 0 {
		return b.ns.Contracts[b.fn.ContractNo]
	}
	return nil
}

// load reads through a reference expression: storage loads become
// explicit StorageLoad instructions, memory refs read fields/elements.
func (b *builder) load(x *sema.Load) Operand {
	inner := x.Expr
	if _, isStorage := inner.Ty().(sema.StorageRef); isStorage {
		slot := b.refSlot(inner)
		return b.storageLoadValue(x.ExprLoc(), slot, sema.Deref(x.Ty()))
	}
	// Memory references resolve to the value operand directly.
	return b.expr(inner)
}

// storageLoadValue loads a (possibly aggregate) value out of storage.
func (b *builder) storageLoadValue(loc diag.Loc, slot Operand, ty sema.Type) Operand {
	if st, isStruct := ty.(sema.Struct); isStruct {
		var fields []Operand
		for fno, f := range b.ns.Structs[st.Index].Fields {
			fieldSlot := b.derivedSlot(loc, slot, ConstInt{Ty: sema.Uint{Width: 256}, Value: big.NewInt(int64(fno))}, sema.Uint{Width: 256})
			fields = append(fields, b.storageLoadValue(loc, fieldSlot, sema.Deref(f.Type)))
		}
		res := b.temp("sload.struct", ty)
		b.emit(&StructInit{instrBase: instrBase{At: loc}, Res: res, Ty: ty, Fields: fields})
		return res
	}
	res := b.temp("sload", ty)
	b.emit(&StorageLoad{instrBase: instrBase{At: loc}, Res: res, Ty: ty, Slot: slot})
	return res
}

// refSlot lowers a storage reference chain to its slot operand.
func (b *builder) refSlot(e sema.Expr) Operand {
	switch x := e.(type) {
	case *sema.StorageVarRef:
		return b.storageSlot(x)
	case *sema.Subscript:
		parent := b.refSlot(x.Array)
		key := b.expr(x.Index)
		keyTy := sema.Deref(x.Index.Ty())
		if _, isArray := sema.Deref(x.Array.Ty()).(sema.Array); isArray {
			b.debugCheck(x.ExprLoc(), "storage array index out of bounds")
		}
		return b.derivedSlot(x.ExprLoc(), parent, key, keyTy)
	case *sema.StructMember:
		parent := b.refSlot(x.Expr)
		return b.derivedSlot(x.ExprLoc(), parent,
			ConstInt{Ty: sema.Uint{Width: 256}, Value: big.NewInt(int64(x.MemberNo))}, sema.Uint{Width: 256})
	case *sema.LocalRef:
		// A storage pointer held in a local: the slot is the value.
		return b.vars[x.VarNo]
	}
	return ConstInt{Ty: sema.Uint{Width: 256}, Value: new(big.Int)}
}

// derivedSlot computes keccak256(parent ++ key): the uniform slot
// derivation for mapping entries, array elements and struct fields.
func (b *builder) derivedSlot(loc diag.Loc, parent, key Operand, keyTy sema.Type) Operand {
	res := b.temp("slot", sema.Uint{Width: 256})
	b.emit(&KeccakSlot{instrBase: instrBase{At: loc}, Res: res, Slot: parent, Key: key, KeyTy: keyTy})
	return res
}

// structMember loads or derives a struct member reference.
func (b *builder) structMember(x *sema.StructMember) Operand {
	if _, isStorage := x.Ty().(sema.StorageRef); isStorage {
		return b.refSlot(x)
	}
	res := b.temp("field", x.Ty())
	b.emit(&FieldLoad{
		instrBase: instrBase{At: x.ExprLoc()},
		Res:       res, Ty: sema.Deref(x.Ty()),
		Struct: b.expr(x.Expr), Field: x.MemberNo,
	})
	return res
}

// subscript loads an element or derives a storage slot.
func (b *builder) subscript(x *sema.Subscript) Operand {
	if _, isStorage := x.Ty().(sema.StorageRef); isStorage {
		slot := b.refSlot(x)
		// A mapping has no value representation; the slot stands for
		// the reference.
		return slot
	}
	res := b.temp("elem", x.Ty())
	b.emit(&IndexLoad{
		instrBase: instrBase{At: x.ExprLoc()},
		Res:       res, Ty: sema.Deref(x.Ty()),
		Array: b.expr(x.Array), Index: b.expr(x.Index),
	})
	b.debugCheck(x.ExprLoc(), "array index out of bounds")
	return res
}

// store writes a value through a reference expression.
func (b *builder) store(target sema.Expr, val Operand) {
	loc := target.ExprLoc()
	switch x := target.(type) {
	case *sema.LocalRef:
		if _, isStorage := x.Ty().(sema.StorageRef); isStorage {
			// Assigning a new slot value to a storage pointer local.
			b.emit(&Set{instrBase: instrBase{At: loc}, Res: b.vars[x.VarNo], Src: val})
			return
		}
		b.emit(&Set{instrBase: instrBase{At: loc}, Res: b.vars[x.VarNo], Src: val})
	case *sema.StorageVarRef:
		b.storageStoreValue(loc, b.storageSlot(x), val, sema.Deref(x.Ty()))
	case *sema.Subscript:
		if _, isStorage := x.Ty().(sema.StorageRef); isStorage {
			b.storageStoreValue(loc, b.refSlot(x), val, sema.Deref(x.Ty()))
			return
		}
		b.emit(&IndexStore{
			instrBase: instrBase{At: loc},
			Array:     b.expr(x.Array), Index: b.expr(x.Index), Value: val,
		})
		b.debugCheck(loc, "array index out of bounds")
	case *sema.StructMember:
		if _, isStorage := x.Ty().(sema.StorageRef); isStorage {
			b.storageStoreValue(loc, b.refSlot(x), val, sema.Deref(x.Ty()))
			return
		}
		b.emit(&FieldStore{
			instrBase: instrBase{At: loc},
			Struct:    b.expr(x.Expr), Field: x.MemberNo, Value: val,
		})
	}
}

// storageStoreValue writes a (possibly aggregate) value into storage.
func (b *builder) storageStoreValue(loc diag.Loc, slot Operand, val Operand, ty sema.Type) {
	if st, isStruct := ty.(sema.Struct); isStruct {
		for fno, f := range b.ns.Structs[st.Index].Fields {
			field := b.temp("field", f.Type)
			b.emit(&FieldLoad{instrBase: instrBase{At: loc}, Res: field, Ty: sema.Deref(f.Type), Struct: val, Field: fno})
			fieldSlot := b.derivedSlot(loc, slot,
				ConstInt{Ty: sema.Uint{Width: 256}, Value: big.NewInt(int64(fno))}, sema.Uint{Width: 256})
			b.storageStoreValue(loc, fieldSlot, field, sema.Deref(f.Type))
		}
		return
	}
	b.emit(&StorageStore{instrBase: instrBase{At: loc}, Ty: ty, Slot: slot, Value: val})
}

func (b *builder) binary(x *sema.Binary) Operand {
	// Short-circuit operators lower to control flow.
	if x.Op == sema.BinAnd || x.Op == sema.BinOr {
		res := b.temp("logic", sema.Bool{})
		left := b.expr(x.Left)
		rhsBlk := b.g.NewBlock("logic.rhs")
		endBlk := b.g.NewBlock("logic.end")
		b.emit(&Set{instrBase: instrBase{At: x.ExprLoc()}, Res: res, Src: left})
		if x.Op == sema.BinAnd {
			b.g.Blocks[b.cur].Term = CondJump{Cond: left, True: rhsBlk, False: endBlk}
		} else {
			b.g.Blocks[b.cur].Term = CondJump{Cond: left, True: endBlk, False: rhsBlk}
		}
		b.cur = rhsBlk
		right := b.expr(x.Right)
		b.emit(&Set{instrBase: instrBase{At: x.ExprLoc()}, Res: res, Src: right})
		b.jumpTo(endBlk)
		b.cur = endBlk
		return res
	}

	res := b.temp("bin", x.Ty())
	check := !x.Unchecked && arithmeticOp(x.Op) && sema.IsInteger(x.Ty())
	b.emit(&BinOp{
		instrBase: instrBase{At: x.ExprLoc()},
		Res:       res, Op: x.Op, Ty: sema.Deref(x.Ty()),
		Left: b.expr(x.Left), Right: b.expr(x.Right),
		CheckOverflow: check,
	})
	if check {
		b.debugCheck(x.ExprLoc(), "math overflow")
	}
	if x.Op == sema.BinDiv || x.Op == sema.BinMod {
		b.debugCheck(x.ExprLoc(), "division by zero")
	}
	return res
}

func arithmeticOp(op sema.BinaryOpKind) bool {
	switch op {
	case sema.BinAdd, sema.BinSub, sema.BinMul, sema.BinDiv, sema.BinMod, sema.BinPow:
		return true
	}
	return false
}

func (b *builder) incDec(x *sema.IncDec) Operand {
	old := b.temp("old", x.Ty())
	loaded := b.loadRef(x.Expr)
	b.emit(&Set{instrBase: instrBase{At: x.ExprLoc()}, Res: old, Src: loaded})
	op := sema.BinAdd
	if x.Decrement {
		op = sema.BinSub
	}
	updated := b.temp("upd", x.Ty())
	b.emit(&BinOp{
		instrBase: instrBase{At: x.ExprLoc()},
		Res:       updated, Op: op, Ty: sema.Deref(x.Ty()),
		Left: old, Right: ConstInt{Ty: sema.Deref(x.Ty()), Value: big.NewInt(1)},
		CheckOverflow: !x.Unchecked,
	})
	if !x.Unchecked {
		b.debugCheck(x.ExprLoc(), "math overflow")
	}
	b.store(x.Expr, updated)
	if x.Post {
		return old
	}
	return updated
}

// loadRef reads the current value behind a reference expression.
func (b *builder) loadRef(ref sema.Expr) Operand {
	if t, isStorage := ref.Ty().(sema.StorageRef); isStorage {
		return b.storageLoadValue(ref.ExprLoc(), b.refSlot(ref), sema.Deref(t.Inner))
	}
	return b.expr(ref)
}

func (b *builder) ternary(x *sema.Ternary) Operand {
	res := b.temp("ternary", x.Ty())
	cond := b.expr(x.Cond)
	trueBlk := b.g.NewBlock("tern.true")
	falseBlk := b.g.NewBlock("tern.false")
	endBlk := b.g.NewBlock("tern.end")
	b.g.Blocks[b.cur].Term = CondJump{Cond: cond, True: trueBlk, False: falseBlk}
	b.cur = trueBlk
	tv := b.expr(x.True)
	b.emit(&Set{instrBase: instrBase{At: x.ExprLoc()}, Res: res, Src: tv})
	b.jumpTo(endBlk)
	b.cur = falseBlk
	fv := b.expr(x.False)
	b.emit(&Set{instrBase: instrBase{At: x.ExprLoc()}, Res: res, Src: fv})
	b.jumpTo(endBlk)
	b.cur = endBlk
	return res
}

func (b *builder) cast(x *sema.Cast) Operand {
	val := b.expr(x.Expr)
	from := sema.Deref(x.Expr.Ty())
	to := sema.Deref(x.Ty())
	// Constant casts fold.
	if c, ok := val.(ConstInt); ok {
		return ConstInt{Ty: to, Value: c.Value}
	}
	if c, ok := val.(ConstBytes); ok {
		return ConstBytes{Ty: to, Value: c.Value}
	}
	res := b.temp("cast", to)
	b.emit(&CastOp{instrBase: instrBase{At: x.ExprLoc()}, Res: res, Ty: to, From: from, Expr: val})
	return res
}

func (b *builder) internalCall(x *sema.InternalCall) *CallInternal {
	var args []Operand
	for _, a := range x.Args {
		args = append(args, b.expr(a))
	}
	var ress []Var
	for i, ty := range x.Returns {
		ress = append(ress, b.temp(fmt.Sprintf("ret%d", i), ty))
	}
	instr := &CallInternal{
		instrBase: instrBase{At: x.ExprLoc()},
		Ress:      ress, FunctionNo: x.FunctionNo, Args: args,
	}
	b.emit(instr)
	return instr
}

func (b *builder) externalCall(x *sema.ExternalCall) *CallExternal {
	addr := b.expr(x.Address)
	var args []Operand
	for _, a := range x.Args {
		args = append(args, b.expr(a))
	}
	var ress []Var
	for i, ty := range x.Returns {
		ress = append(ress, b.temp(fmt.Sprintf("xret%d", i), ty))
	}
	instr := &CallExternal{
		instrBase: instrBase{At: x.ExprLoc()},
		Ress:      ress, Address: addr,
		ContractNo: x.ContractNo, FunctionNo: x.FunctionNo,
		Args: args,
	}
	if x.Value != nil {
		instr.Value = b.expr(x.Value)
	}
	if x.Gas != nil {
		instr.Gas = b.expr(x.Gas)
	}
	b.emit(instr)
	b.debugCheck(x.ExprLoc(), "external call failed")
	return instr
}

func (b *builder) create(x *sema.Constructor) *Create {
	var args []Operand
	for _, a := range x.Args {
		args = append(args, b.expr(a))
	}
	instr := &Create{
		instrBase:  instrBase{At: x.ExprLoc()},
		Res:        b.temp("new", x.Ty()),
		ContractNo: x.ContractNo,
		Args:       args,
	}
	if x.Value != nil {
		instr.Value = b.expr(x.Value)
	}
	if x.Salt != nil {
		instr.Salt = b.expr(x.Salt)
	}
	if x.Space != nil {
		instr.Space = b.expr(x.Space)
	}
	b.emit(instr)
	b.debugCheck(x.ExprLoc(), "contract creation failed")
	return instr
}
