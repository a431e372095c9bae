package sema

import (
	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/target"
)

// stmts resolves a statement list in a fresh scope.
func (b *bodyCtx) stmts(list []ast.Statement, unchecked bool) []Stmt {
	b.pushScope()
	defer b.popScope()
	savedUnchecked := b.unchecked
	if unchecked {
		b.unchecked = true
	}
	defer func() { b.unchecked = savedUnchecked }()

	var out []Stmt
	reported := false
	for _, s := range list {
		if len(out) > 0 && stmtTerminates(out[len(out)-1]) && !reported {
			b.ns.Warnf(s.StmtLoc(), "unreachable statement")
			reported = true
		}
		if rs := b.stmt(s); rs != nil {
			out = append(out, rs)
		}
	}
	return out
}

func (b *bodyCtx) stmt(s ast.Statement) Stmt {
	ns := b.ns
	switch x := s.(type) {
	case *ast.Block:
		return &BlockStmt{
			stmtBase:  stmtBase{Loc: x.Loc},
			Unchecked: x.Unchecked,
			Stmts:     b.stmts(x.Stmts, x.Unchecked),
		}
	case *ast.VariableDeclStmt:
		return b.varDeclStmt(x)
	case *ast.ExprStmt:
		e := b.exprAllowMulti(x.Expr)
		return &ExprStmt{stmtBase: stmtBase{Loc: x.Loc}, Expr: e}
	case *ast.IfStmt:
		cond := b.cond(x.Cond)
		stmt := &IfStmt{stmtBase: stmtBase{Loc: x.Loc}, Cond: cond}
		stmt.Then = b.stmts(asList(x.Then), false)
		if x.Else != nil {
			stmt.Else = b.stmts(asList(x.Else), false)
		}
		return stmt
	case *ast.WhileStmt:
		cond := b.cond(x.Cond)
		b.loops++
		body := b.stmts(asList(x.Body), false)
		b.loops--
		return &WhileStmt{stmtBase: stmtBase{Loc: x.Loc}, Cond: cond, Body: body}
	case *ast.DoWhileStmt:
		b.loops++
		body := b.stmts(asList(x.Body), false)
		b.loops--
		cond := b.cond(x.Cond)
		return &DoWhileStmt{stmtBase: stmtBase{Loc: x.Loc}, Body: body, Cond: cond}
	case *ast.ForStmt:
		b.pushScope()
		defer b.popScope()
		stmt := &ForStmt{stmtBase: stmtBase{Loc: x.Loc}}
		if x.Init != nil {
			stmt.Init = b.stmt(x.Init)
		}
		if x.Cond != nil {
			stmt.Cond = b.cond(x.Cond)
		}
		if x.Next != nil {
			stmt.Next = b.expr(x.Next)
		}
		b.loops++
		stmt.Body = b.stmts(asList(x.Body), false)
		b.loops--
		return stmt
	case *ast.ReturnStmt:
		return b.returnStmt(x)
	case *ast.BreakStmt:
		if b.loops == 0 {
			ns.Errorf(x.Loc, "'break' outside a loop")
		}
		return &BreakStmt{stmtBase: stmtBase{Loc: x.Loc}}
	case *ast.ContinueStmt:
		if b.loops == 0 {
			ns.Errorf(x.Loc, "'continue' outside a loop")
		}
		return &ContinueStmt{stmtBase: stmtBase{Loc: x.Loc}}
	case *ast.EmitStmt:
		return b.emitStmt(x)
	case *ast.RevertStmt:
		return b.revertStmt(x)
	case *ast.TryStmt:
		return b.tryStmt(x)
	case *ast.PlaceholderStmt:
		if b.fn == nil || b.fn.Kind != ast.FnModifier {
			ns.Errorf(x.Loc, "'_' is only allowed inside a modifier body")
			return nil
		}
		return &PlaceholderStmt{stmtBase: stmtBase{Loc: x.Loc}}
	}
	return nil
}

// asList flattens a statement into a list without introducing an extra
// scope for bare (non-block) bodies.
func asList(s ast.Statement) []ast.Statement {
	if s == nil {
		return nil
	}
	if blk, ok := s.(*ast.Block); ok && !blk.Unchecked {
		return blk.Stmts
	}
	return []ast.Statement{s}
}

func (b *bodyCtx) varDeclStmt(x *ast.VariableDeclStmt) Stmt {
	ns := b.ns
	stmt := &VarDeclStmt{stmtBase: stmtBase{Loc: x.Loc}}

	// Resolve declared types first.
	var types []Type
	for _, d := range x.Decls {
		if d == nil {
			types = append(types, nil)
			continue
		}
		ty := b.r.resolveType(b.tctx, d.Type)
		if d.Storage == ast.LocationStorage {
			ty = StorageRef{Inner: ty}
		}
		types = append(types, ty)
	}

	if x.Initializer != nil {
		init := b.exprAllowMulti(x.Initializer)
		rets := returnTypes(init)
		if len(x.Decls) == 1 {
			stmt.Init = b.coerce(init, types[0])
		} else {
			if len(rets) != len(x.Decls) {
				ns.Errorf(x.Loc, "cannot destructure %d values into %d variables", len(rets), len(x.Decls))
			}
			stmt.Init = init
		}
	} else {
		for _, ty := range types {
			if ty == nil {
				continue
			}
			if _, isRef := ty.(StorageRef); isRef {
				ns.Errorf(x.Loc, "storage reference must be initialized")
			}
		}
	}

	for i, d := range x.Decls {
		if d == nil {
			stmt.VarNos = append(stmt.VarNos, -1)
			continue
		}
		no := b.declareLocal(d.Name.Name, d.Name.Loc, types[i])
		if x.Initializer != nil {
			b.fn.Locals[no].Assigned = true
		}
		stmt.VarNos = append(stmt.VarNos, no)
	}
	return stmt
}

// returnTypes flattens an expression's result arity.
func returnTypes(e Expr) []Type {
	switch x := e.(type) {
	case *InternalCall:
		if len(x.Returns) != 1 {
			return x.Returns
		}
	case *ExternalCall:
		if len(x.Returns) != 1 {
			return x.Returns
		}
	}
	if _, isVoid := e.Ty().(Void); isVoid {
		return nil
	}
	return []Type{e.Ty()}
}

func (b *bodyCtx) returnStmt(x *ast.ReturnStmt) Stmt {
	ns := b.ns
	stmt := &ReturnStmt{stmtBase: stmtBase{Loc: x.Loc}}
	fn := b.fn
	if fn == nil {
		return stmt
	}
	if x.Expr == nil {
		if len(fn.Returns) > 0 && countNamedReturns(fn) != len(fn.Returns) {
			ns.Errorf(x.Loc, "return value missing; function returns %d value(s)", len(fn.Returns))
		}
		return stmt
	}
	if len(fn.Returns) == 0 {
		ns.Errorf(x.Loc, "function has no return values")
		b.expr(x.Expr)
		return stmt
	}
	if len(fn.Returns) == 1 {
		if _, isRef := fn.Returns[0].Type.(StorageRef); isRef {
			// A storage-reference return passes the slot through; the
			// value must be a reference to an existing storage
			// variable.
			v := b.lvalue(x.Expr)
			if _, ok := v.Ty().(StorageRef); !ok && !isUnresolved(v) {
				ns.Errorf(x.Expr.ExprLoc(), "function returns a storage reference; the value must be a storage variable")
			}
			stmt.Values = []Expr{v}
			return stmt
		}
		v := b.exprForType(x.Expr, fn.Returns[0].Type)
		stmt.Values = []Expr{b.coerce(v, fn.Returns[0].Type)}
		return stmt
	}
	// Multiple returns: a tuple literal or a multi-valued call.
	if tup, ok := x.Expr.(*ast.TupleExpr); ok {
		if len(tup.Items) != len(fn.Returns) {
			ns.Errorf(x.Loc, "expected %d return values, %d given", len(fn.Returns), len(tup.Items))
			return stmt
		}
		for i, item := range tup.Items {
			if item == nil {
				ns.Errorf(tup.Loc, "return value cannot be omitted")
				continue
			}
			stmt.Values = append(stmt.Values, b.coerce(b.exprForType(item, fn.Returns[i].Type), fn.Returns[i].Type))
		}
		return stmt
	}
	call := b.exprAllowMulti(x.Expr)
	rets := returnTypes(call)
	if len(rets) != len(fn.Returns) {
		ns.Errorf(x.Loc, "expected %d return values, %d given", len(fn.Returns), len(rets))
		return stmt
	}
	stmt.Values = []Expr{call}
	return stmt
}

func (b *bodyCtx) emitStmt(x *ast.EmitStmt) Stmt {
	ns := b.ns
	callee := x.Call.Callee
	var sym *symbol
	switch c := callee.(type) {
	case *ast.IdentifierExpr:
		sym = b.r.lookupSymbol(b.tctx, c.Name)
	case *ast.MemberAccess:
		if base, ok := c.Expr.(*ast.IdentifierExpr); ok {
			if q := b.r.lookupSymbol(b.tctx, base.Name); q != nil {
				switch q.Kind {
				case symContract:
					sym = b.r.contractSyms[q.no()].lookup(c.Member.Name)
				case symNamespace:
					sym = ns.fileSymbols[q.FileNo].lookup(c.Member.Name)
				}
			}
		}
	}
	if sym == nil || sym.Kind != symEvent {
		ns.Errorf(callee.ExprLoc(), "expression is not an event")
		return nil
	}
	ev := ns.Events[sym.no()]
	ev.Used = true
	if len(x.Call.Args) != len(ev.Fields) {
		ns.Errorf(x.Loc, "event '%s' has %d fields, %d given", ev.Name, len(ev.Fields), len(x.Call.Args))
		return nil
	}
	stmt := &EmitStmt{stmtBase: stmtBase{Loc: x.Loc}, EventNo: sym.no()}
	for i, a := range x.Call.Args {
		stmt.Args = append(stmt.Args, b.coerce(b.exprForType(a, ev.Fields[i].Type), ev.Fields[i].Type))
	}
	if b.fn != nil {
		b.fn.WritesState = true
	}
	return stmt
}

func (b *bodyCtx) revertStmt(x *ast.RevertStmt) Stmt {
	ns := b.ns
	stmt := &RevertStmt{stmtBase: stmtBase{Loc: x.Loc}, ErrorNo: -1}
	if x.Error == nil {
		return stmt
	}
	sym := b.r.lookupQualified(b.tctx, *x.Error)
	if sym == nil || sym.Kind != symError {
		ns.Errorf(x.Error.Loc, "'%s' is not an error type", pathName(*x.Error))
		return stmt
	}
	ed := ns.Errors[sym.no()]
	ed.Used = true
	stmt.ErrorNo = sym.no()
	if len(x.Args) != len(ed.Fields) {
		ns.Errorf(x.Loc, "error '%s' has %d fields, %d given", ed.Name, len(ed.Fields), len(x.Args))
		return stmt
	}
	for i, a := range x.Args {
		stmt.Args = append(stmt.Args, b.coerce(b.exprForType(a, ed.Fields[i].Type), ed.Fields[i].Type))
	}
	return stmt
}

func (b *bodyCtx) tryStmt(x *ast.TryStmt) Stmt {
	ns := b.ns
	if ns.Target.Kind != target.Polkadot {
		ns.Errorf(x.Loc, "try/catch is not supported when targeting %s", ns.Target.Kind)
	}
	call := b.exprAllowMulti(x.Expr)
	switch call.(type) {
	case *ExternalCall, *Constructor:
	default:
		ns.Errorf(x.Expr.ExprLoc(), "try only applies to an external call or contract creation")
	}
	stmt := &TryStmt{stmtBase: stmtBase{Loc: x.Loc}, Call: call}

	b.pushScope()
	rets := returnTypes(call)
	for i, p := range x.Returns {
		ty := b.r.resolveType(b.tctx, p.Type)
		if i < len(rets) && !Equal(Deref(ty), Deref(rets[i])) {
			ns.Errorf(p.Loc, "return type mismatch: call yields %s", ns.TypeName(rets[i]))
		}
		stmt.RetVars = append(stmt.RetVars, b.declareLocal(p.Name.Name, p.Loc, ty))
	}
	stmt.Ok = b.stmts(x.Ok.Stmts, false)
	b.popScope()

	for _, clause := range x.Catches {
		b.pushScope()
		sc := CatchClauseSema{Loc: clause.Loc, Kind: CatchKind(clause.Kind), VarNo: -1}
		if clause.Param != nil {
			ty := b.r.resolveType(b.tctx, clause.Param.Type)
			switch clause.Kind {
			case ast.CatchError:
				if !Equal(ty, String{}) {
					ns.Errorf(clause.Param.Loc, "catch Error takes a string parameter")
				}
			case ast.CatchPanic:
				if !Equal(ty, Uint{Width: 256}) {
					ns.Errorf(clause.Param.Loc, "catch Panic takes a uint256 parameter")
				}
			default:
				if !Equal(ty, DynamicBytes{}) {
					ns.Errorf(clause.Param.Loc, "catch-all takes a bytes parameter")
				}
			}
			sc.VarNo = b.declareLocal(clause.Param.Name.Name, clause.Param.Loc, ty)
			b.fn.Locals[sc.VarNo].Assigned = true
		}
		sc.Body = b.stmts(clause.Body.Stmts, false)
		b.popScope()
		stmt.Catches = append(stmt.Catches, sc)
	}
	return stmt
}
