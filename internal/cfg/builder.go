package cfg

import (
	"math/big"

	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/sema"
)

// Options tunes lowering.
type Options struct {
	// DebugInfo records runtime-check locations for the debug buffer.
	DebugInfo bool
}

// builder carries the lowering state of one function.
type builder struct {
	ns   *sema.Namespace
	g    *Graph
	fn   *sema.Function
	opts Options

	cur int // current block

	// vars maps sema vartable slots to graph slots.
	vars []Var

	loops []loopTargets

	// retVars holds the named-return slots when the function uses
	// them.
	retVars []Var
}

type loopTargets struct {
	breakBlk    int
	continueBlk int
}

// Build lowers one resolved function to its CFG.
func Build(ns *sema.Namespace, fnNo int, opts Options) *Graph {
	fn := ns.Functions[fnNo]
	g := &Graph{FunctionNo: fnNo, Name: fn.Name}
	for _, p := range fn.Params {
		g.Params = append(g.Params, p.Type)
	}
	for _, ret := range fn.Returns {
		g.Returns = append(g.Returns, ret.Type)
	}

	b := &builder{ns: ns, g: g, fn: fn, opts: opts}
	b.cur = g.NewBlock("entry")

	// Vartable slots mirror the sema locals; parameters come first and
	// are populated by the caller/dispatcher.
	for _, v := range fn.Locals {
		ty := v.Type
		if ty == nil {
			ty = sema.Unresolved{}
		}
		b.vars = append(b.vars, g.NewVar(v.Name, ty))
	}

	// Named returns initialize to zero. Synthesized bodies (accessors)
	// name their returns without vartable slots; they always return
	// explicitly.
	named := 0
	for _, ret := range fn.Returns {
		if ret.Name != "" {
			named++
		}
	}
	if named == len(fn.Returns) && named > 0 && len(fn.Locals) >= len(fn.Params)+named {
		for i := range fn.Returns {
			b.retVars = append(b.retVars, b.vars[len(fn.Params)+i])
		}
	}

	b.lowerWithModifiers(0)

	// Fall-through: return named returns or nothing.
	if b.g.Blocks[b.cur].Term == nil {
		b.terminateReturn(diag.Implicit())
	}
	// Any block left unterminated (loop exits etc.) is unreachable.
	for _, blk := range g.Blocks {
		if blk.Term == nil {
			blk.Term = Unreachable{}
		}
	}
	return g
}

// terminateReturn ends the current block with the implicit return.
func (b *builder) terminateReturn(loc diag.Loc) {
	var vals []Operand
	if len(b.retVars) == len(b.fn.Returns) && len(b.retVars) > 0 {
		for _, v := range b.retVars {
			vals = append(vals, v)
		}
	} else {
		for _, ret := range b.fn.Returns {
			vals = append(vals, b.zero(sema.Deref(ret.Type)))
		}
	}
	b.g.Blocks[b.cur].Term = Return{Values: vals}
}

// lowerWithModifiers splices the modifier chain around the body: each
// modifier's resolved body is lowered with its `_;` placeholder
// replaced by the next layer.
func (b *builder) lowerWithModifiers(idx int) {
	// Skip base-constructor invocations; codegen handles those in the
	// constructor prelude.
	for idx < len(b.fn.Modifiers) && b.fn.Modifiers[idx].FunctionNo < 0 {
		idx++
	}
	if idx >= len(b.fn.Modifiers) {
		b.stmts(b.fn.Body)
		return
	}
	inv := b.fn.Modifiers[idx]
	mod := b.ns.Functions[inv.FunctionNo]

	// Bind modifier parameters into fresh slots.
	saved := b.vars
	b.vars = nil
	for _, v := range mod.Locals {
		ty := v.Type
		if ty == nil {
			ty = sema.Unresolved{}
		}
		b.vars = append(b.vars, b.g.NewVar("m."+v.Name, ty))
	}
	for i, arg := range inv.Args {
		// Arguments evaluate in the wrapped function's frame.
		b.vars, saved = saved, b.vars
		val := b.expr(arg)
		b.vars, saved = saved, b.vars
		b.emit(&Set{instrBase: instrBase{At: arg.ExprLoc()}, Res: b.vars[i], Src: val})
	}

	outer := saved
	b.lowerModifierStmts(mod.Body, outer, idx)
	b.vars = saved
}

// lowerModifierStmts walks a modifier body, recursing into the next
// layer at each placeholder.
func (b *builder) lowerModifierStmts(stmts []sema.Stmt, outer []Var, idx int) {
	for _, s := range stmts {
		if _, isPlaceholder := s.(*sema.PlaceholderStmt); isPlaceholder {
			inner := b.vars
			b.vars = outer
			b.lowerWithModifiers(idx + 1)
			b.vars = inner
			continue
		}
		// Blocks and control flow may bury the placeholder; handle the
		// containers inline, everything else lowers normally.
		switch x := s.(type) {
		case *sema.BlockStmt:
			b.lowerModifierStmts(x.Stmts, outer, idx)
		case *sema.IfStmt:
			if containsPlaceholder(x.Then) || containsPlaceholder(x.Else) {
				cond := b.expr(x.Cond)
				thenBlk := b.g.NewBlock("then")
				elseBlk := b.g.NewBlock("else")
				endBlk := b.g.NewBlock("endif")
				b.g.Blocks[b.cur].Term = CondJump{Cond: cond, True: thenBlk, False: elseBlk}
				b.cur = thenBlk
				b.lowerModifierStmts(x.Then, outer, idx)
				b.jumpTo(endBlk)
				b.cur = elseBlk
				b.lowerModifierStmts(x.Else, outer, idx)
				b.jumpTo(endBlk)
				b.cur = endBlk
				continue
			}
			b.stmt(s)
		default:
			b.stmt(s)
		}
	}
}

func containsPlaceholder(stmts []sema.Stmt) bool {
	for _, s := range stmts {
		switch x := s.(type) {
		case *sema.PlaceholderStmt:
			return true
		case *sema.BlockStmt:
			if containsPlaceholder(x.Stmts) {
				return true
			}
		case *sema.IfStmt:
			if containsPlaceholder(x.Then) || containsPlaceholder(x.Else) {
				return true
			}
		}
	}
	return false
}

func (b *builder) emit(i Instr) {
	blk := b.g.Blocks[b.cur]
	if blk.Term != nil {
		return // unreachable code already diagnosed
	}
	blk.Instrs = append(blk.Instrs, i)
}

// jumpTo terminates the current block with a jump unless it already
// ended.
func (b *builder) jumpTo(block int) {
	if b.g.Blocks[b.cur].Term == nil {
		b.g.Blocks[b.cur].Term = Jump{Block: block}
	}
}

func (b *builder) stmts(list []sema.Stmt) {
	for _, s := range list {
		b.stmt(s)
	}
}

func (b *builder) stmt(s sema.Stmt) {
	switch x := s.(type) {
	case *sema.BlockStmt:
		b.stmts(x.Stmts)
	case *sema.VarDeclStmt:
		b.varDecl(x)
	case *sema.ExprStmt:
		b.exprStmt(x.Expr)
	case *sema.IfStmt:
		cond := b.expr(x.Cond)
		thenBlk := b.g.NewBlock("then")
		endBlk := b.g.NewBlock("endif")
		elseBlk := endBlk
		if x.Else != nil {
			elseBlk = b.g.NewBlock("else")
		}
		b.g.Blocks[b.cur].Term = CondJump{Cond: cond, True: thenBlk, False: elseBlk}
		b.cur = thenBlk
		b.stmts(x.Then)
		b.jumpTo(endBlk)
		if x.Else != nil {
			b.cur = elseBlk
			b.stmts(x.Else)
			b.jumpTo(endBlk)
		}
		b.cur = endBlk
	case *sema.WhileStmt:
		condBlk := b.g.NewBlock("cond")
		bodyBlk := b.g.NewBlock("body")
		endBlk := b.g.NewBlock("endwhile")
		b.jumpTo(condBlk)
		b.cur = condBlk
		cond := b.expr(x.Cond)
		b.g.Blocks[b.cur].Term = CondJump{Cond: cond, True: bodyBlk, False: endBlk}
		b.loops = append(b.loops, loopTargets{breakBlk: endBlk, continueBlk: condBlk})
		b.cur = bodyBlk
		b.stmts(x.Body)
		b.jumpTo(condBlk)
		b.loops = b.loops[:len(b.loops)-1]
		b.cur = endBlk
	case *sema.DoWhileStmt:
		bodyBlk := b.g.NewBlock("body")
		condBlk := b.g.NewBlock("cond")
		endBlk := b.g.NewBlock("enddo")
		b.jumpTo(bodyBlk)
		b.loops = append(b.loops, loopTargets{breakBlk: endBlk, continueBlk: condBlk})
		b.cur = bodyBlk
		b.stmts(x.Body)
		b.jumpTo(condBlk)
		b.loops = b.loops[:len(b.loops)-1]
		b.cur = condBlk
		cond := b.expr(x.Cond)
		b.g.Blocks[b.cur].Term = CondJump{Cond: cond, True: bodyBlk, False: endBlk}
		b.cur = endBlk
	case *sema.ForStmt:
		if x.Init != nil {
			b.stmt(x.Init)
		}
		condBlk := b.g.NewBlock("cond")
		bodyBlk := b.g.NewBlock("body")
		nextBlk := b.g.NewBlock("next")
		endBlk := b.g.NewBlock("endfor")
		b.jumpTo(condBlk)
		b.cur = condBlk
		if x.Cond != nil {
			cond := b.expr(x.Cond)
			b.g.Blocks[b.cur].Term = CondJump{Cond: cond, True: bodyBlk, False: endBlk}
		} else {
			b.jumpTo(bodyBlk)
		}
		b.loops = append(b.loops, loopTargets{breakBlk: endBlk, continueBlk: nextBlk})
		b.cur = bodyBlk
		b.stmts(x.Body)
		b.jumpTo(nextBlk)
		b.loops = b.loops[:len(b.loops)-1]
		b.cur = nextBlk
		if x.Next != nil {
			b.exprStmt(x.Next)
		}
		b.jumpTo(condBlk)
		b.cur = endBlk
	case *sema.ReturnStmt:
		if len(x.Values) == 1 {
			if multi, ok := b.multiValue(x.Values[0]); ok {
				b.g.Blocks[b.cur].Term = Return{Values: multi}
				return
			}
		}
		var vals []Operand
		for _, v := range x.Values {
			vals = append(vals, b.expr(v))
		}
		if len(vals) == 0 && len(b.retVars) > 0 {
			for _, v := range b.retVars {
				vals = append(vals, v)
			}
		}
		b.g.Blocks[b.cur].Term = Return{Values: vals}
	case *sema.BreakStmt:
		if len(b.loops) > 0 {
			b.g.Blocks[b.cur].Term = Jump{Block: b.loops[len(b.loops)-1].breakBlk}
		}
	case *sema.ContinueStmt:
		if len(b.loops) > 0 {
			b.g.Blocks[b.cur].Term = Jump{Block: b.loops[len(b.loops)-1].continueBlk}
		}
	case *sema.EmitStmt:
		b.emitEvent(x)
	case *sema.RevertStmt:
		var args []Operand
		for _, a := range x.Args {
			args = append(args, b.expr(a))
		}
		kind := RevertEmpty
		if x.ErrorNo >= 0 {
			kind = RevertCustom
		} else if len(args) == 1 {
			kind = RevertString
		}
		b.g.Blocks[b.cur].Term = Revert{Kind: kind, ErrorNo: x.ErrorNo, Args: args}
	case *sema.TryStmt:
		b.tryCatch(x)
	case *sema.PlaceholderStmt:
		// Reached only for a modifier lowered standalone; nothing to
		// splice.
	}
}

func (b *builder) varDecl(x *sema.VarDeclStmt) {
	if x.Init != nil {
		if len(x.VarNos) > 1 {
			vals, ok := b.multiValue(x.Init)
			if !ok {
				vals = []Operand{b.expr(x.Init)}
			}
			for i, no := range x.VarNos {
				if no < 0 || i >= len(vals) {
					continue
				}
				b.emit(&Set{instrBase: instrBase{At: x.Loc}, Res: b.vars[no], Src: vals[i]})
			}
			return
		}
		val := b.expr(x.Init)
		if x.VarNos[0] >= 0 {
			b.emit(&Set{instrBase: instrBase{At: x.Loc}, Res: b.vars[x.VarNos[0]], Src: val})
		}
		return
	}
	for _, no := range x.VarNos {
		if no < 0 {
			continue
		}
		ty := b.g.VarType(b.vars[no])
		b.emit(&Set{instrBase: instrBase{At: x.Loc}, Res: b.vars[no], Src: b.zero(sema.Deref(ty))})
	}
}

// exprStmt lowers an expression for effect.
func (b *builder) exprStmt(e sema.Expr) {
	if _, ok := b.multiValue(e); ok {
		return // lowered with results discarded
	}
	b.expr(e)
}

// zero is the constant zero of a value type.
func (b *builder) zero(t sema.Type) Operand {
	switch x := t.(type) {
	case sema.Bool:
		return ConstBool{Value: false}
	case sema.Int, sema.Uint, sema.Enum, sema.UserType:
		return ConstInt{Ty: t, Value: new(big.Int)}
	case sema.Address:
		return ConstBytes{Ty: t, Value: make([]byte, b.ns.Target.AddressLength)}
	case sema.Bytes:
		return ConstBytes{Ty: t, Value: make([]byte, x.N)}
	case sema.String, sema.DynamicBytes:
		return ConstBytes{Ty: t, Value: nil}
	}
	return ConstInt{Ty: sema.Uint{Width: 8}, Value: new(big.Int)}
}

func (b *builder) emitEvent(x *sema.EmitStmt) {
	ns := b.ns
	ev := ns.Events[x.EventNo]
	var topics []Operand
	var dataArgs []Operand
	var dataTys []sema.Type
	if !ev.Anonymous {
		topic := ns.EventTopic(ev)
		topics = append(topics, ConstBytes{Ty: sema.Bytes{N: 32}, Value: topic[:]})
	}
	for i, f := range ev.Fields {
		val := b.expr(x.Args[i])
		if f.Indexed {
			topics = append(topics, val)
		} else {
			dataArgs = append(dataArgs, val)
			dataTys = append(dataTys, f.Type)
		}
	}
	data := b.g.NewVar("event.data", sema.DynamicBytes{})
	b.emit(&AbiEncode{
		instrBase: instrBase{At: x.Loc},
		Res:       data, Args: dataArgs, Tys: dataTys,
	})
	b.emit(&EmitEvent{
		instrBase: instrBase{At: x.Loc},
		EventNo:   x.EventNo, Topics: topics, Data: data,
	})
}

func (b *builder) tryCatch(x *sema.TryStmt) {
	okBlk := b.g.NewBlock("try.ok")
	failBlk := b.g.NewBlock("try.catch")
	endBlk := b.g.NewBlock("try.end")

	success := b.g.NewVar("try.ok", sema.Bool{})
	errData := b.g.NewVar("try.err", sema.DynamicBytes{})

	var ress []Var
	switch call := x.Call.(type) {
	case *sema.ExternalCall:
		instr := b.externalCall(call)
		instr.Success = &success
		instr.ErrData = &errData
		ress = instr.Ress
	case *sema.Constructor:
		instr := b.create(call)
		instr.Success = &success
		instr.ErrData = &errData
		ress = []Var{instr.Res}
	default:
		b.expr(x.Call)
	}
	b.g.Blocks[b.cur].Term = CondJump{Cond: success, True: okBlk, False: failBlk}

	b.cur = okBlk
	for i, no := range x.RetVars {
		if i < len(ress) {
			b.emit(&Set{instrBase: instrBase{At: x.Loc}, Res: b.vars[no], Src: ress[i]})
		}
	}
	b.stmts(x.Ok)
	b.jumpTo(endBlk)

	// Catch dispatch: check the error selector buckets in clause
	// order, falling through to a re-revert when nothing matches.
	b.cur = failBlk
	var catchAll *sema.CatchClauseSema
	for i := range x.Catches {
		clause := &x.Catches[i]
		if clause.Kind == sema.CatchAll {
			catchAll = clause
			continue
		}
		matchBlk := b.g.NewBlock("catch.match")
		nextBlk := b.g.NewBlock("catch.next")
		matched := b.g.NewVar("catch.sel", sema.Bool{})
		kind := sema.BuiltinKind(0)
		switch clause.Kind {
		case sema.CatchError:
			kind = sema.BuiltinAbiDecode // marker: Error(string) bucket
		case sema.CatchPanic:
			kind = sema.BuiltinAssert // marker: Panic(uint256) bucket
		}
		b.emit(&CatchMatch{
			instrBase: instrBase{At: clause.Loc},
			Res:       matched, Data: errData, Bucket: clause.Kind, Marker: kind,
		})
		b.g.Blocks[b.cur].Term = CondJump{Cond: matched, True: matchBlk, False: nextBlk}
		b.cur = matchBlk
		if clause.VarNo >= 0 {
			payload := b.g.NewVar("catch.payload", b.g.VarType(b.vars[clause.VarNo]))
			b.emit(&CatchPayload{
				instrBase: instrBase{At: clause.Loc},
				Res:       payload, Data: errData, Bucket: clause.Kind,
			})
			b.emit(&Set{instrBase: instrBase{At: clause.Loc}, Res: b.vars[clause.VarNo], Src: payload})
		}
		b.stmts(clause.Body)
		b.jumpTo(endBlk)
		b.cur = nextBlk
	}
	if catchAll != nil {
		if catchAll.VarNo >= 0 {
			b.emit(&Set{instrBase: instrBase{At: catchAll.Loc}, Res: b.vars[catchAll.VarNo], Src: errData})
		}
		b.stmts(catchAll.Body)
		b.jumpTo(endBlk)
	} else {
		b.g.Blocks[b.cur].Term = Revert{Kind: RevertEmpty}
	}
	b.cur = endBlk
}
