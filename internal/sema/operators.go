package sema

import (
	"math/big"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
)

var binOpMap = map[ast.BinaryOp]BinaryOpKind{
	ast.OpAdd: BinAdd, ast.OpSub: BinSub, ast.OpMul: BinMul, ast.OpDiv: BinDiv,
	ast.OpMod: BinMod, ast.OpPower: BinPow, ast.OpShl: BinShl, ast.OpShr: BinShr,
	ast.OpBitAnd: BinBitAnd, ast.OpBitOr: BinBitOr, ast.OpBitXor: BinBitXor,
	ast.OpAnd: BinAnd, ast.OpOr: BinOr, ast.OpLt: BinLt, ast.OpLe: BinLe,
	ast.OpGt: BinGt, ast.OpGe: BinGe, ast.OpEq: BinEq, ast.OpNe: BinNe,
}

func isRationalExpr(e Expr) bool {
	_, ok := e.Ty().(Rational)
	return ok
}

// binary type-checks l <op> r, constant-folding literal operands with
// arbitrary precision.
func (b *bodyCtx) binary(x *ast.BinaryExpr, hint Type) Expr {
	ns := b.ns
	op := binOpMap[x.Op]

	// Short-circuit logical operators take booleans.
	if op == BinAnd || op == BinOr {
		l := b.cond(x.Left)
		r := b.cond(x.Right)
		return &Binary{exprBase: exprBase{Loc: x.Loc, Type: Bool{}}, Op: op, Left: l, Right: r}
	}

	l := b.exprForType(x.Left, hint)
	r := b.exprForType(x.Right, hint)
	if isUnresolved(l) || isUnresolved(r) {
		return unresolvedExpr(x.Loc)
	}

	// Rational literals fold with arbitrary precision; any mixed use
	// outside +,-,*,/,%,** is an error.
	if isRationalExpr(l) || isRationalExpr(r) {
		return b.rationalBinary(x, op, l, r)
	}

	// Literal-literal integer folding keeps full precision.
	if ln, lok := l.(*NumberLit); lok {
		if rn, rok := r.(*NumberLit); rok {
			if folded := b.foldIntBinary(x.Loc, x.Op, ln, rn, hint); folded != nil {
				return folded
			}
		}
	}

	if x.Op.IsComparison() {
		return b.comparison(x, op, l, r)
	}

	switch x.Op {
	case ast.OpShl, ast.OpShr:
		lt := Deref(l.Ty())
		switch lt.(type) {
		case Int, Uint, Bytes:
		default:
			ns.Errorf(x.Loc, "operator '%s' not allowed on %s", x.Op, ns.TypeName(lt))
			return unresolvedExpr(x.Loc)
		}
		if !IsInteger(r.Ty()) {
			ns.Errorf(x.Right.ExprLoc(), "shift amount must be an integer")
			return unresolvedExpr(x.Loc)
		}
		if rn, ok := r.(*NumberLit); ok && IsInteger(lt) {
			if rn.Value.Cmp(big.NewInt(int64(IntegerWidth(lt)))) >= 0 && x.Op == ast.OpShl {
				ns.Warnf(x.Loc, "left shift by %s or more bits truncates all bits of %s",
					rn.Value, ns.TypeName(lt))
			}
		}
		return &Binary{
			exprBase: exprBase{Loc: x.Loc, Type: lt},
			Op:       op, Unchecked: b.unchecked, Left: l, Right: r,
		}
	case ast.OpPower:
		if !IsInteger(l.Ty()) || !IsInteger(r.Ty()) {
			ns.Errorf(x.Loc, "operator '**' requires integer operands")
			return unresolvedExpr(x.Loc)
		}
		if IsSigned(r.Ty()) {
			ns.Errorf(x.Right.ExprLoc(), "exponent cannot be signed")
			return unresolvedExpr(x.Loc)
		}
		lt := Deref(l.Ty())
		return &Binary{
			exprBase: exprBase{Loc: x.Loc, Type: lt},
			Op:       op, Unchecked: b.unchecked, Left: l, Right: b.coerce(r, lt),
		}
	}

	// +, -, *, /, %, &, |, ^ on a common type.
	common, ok := b.commonType(x.Loc, l, r, x.Op)
	if !ok {
		return unresolvedExpr(x.Loc)
	}
	l = b.coerce(l, common)
	r = b.coerce(r, common)
	return &Binary{
		exprBase: exprBase{Loc: x.Loc, Type: common},
		Op:       op, Unchecked: b.unchecked, Left: l, Right: r,
	}
}

// rationalBinary handles operations with a rational operand: folding
// when both sides are constants, otherwise the strict operator rules.
func (b *bodyCtx) rationalBinary(x *ast.BinaryExpr, op BinaryOpKind, l, r Expr) Expr {
	ns := b.ns
	lv, lok := constRat(l)
	rv, rok := constRat(r)
	if lok && rok {
		switch x.Op {
		case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpPower, ast.OpMod,
			ast.OpShl, ast.OpShr, ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor:
			folded, ok := constBinary(x.Op, lv, rv)
			if !ok {
				if x.Op == ast.OpDiv || x.Op == ast.OpMod {
					ns.Errorf(x.Loc, "division by zero in constant expression")
				} else {
					ns.Errorf(x.Loc, "cannot use rational numbers with '%s' operator", x.Op)
				}
				return unresolvedExpr(x.Loc)
			}
			return b.numberValue(x.Loc, folded, nil)
		default:
			// Comparing two constant rationals is fine.
			res, ok := compareRats(x.Op, lv, rv)
			if !ok {
				ns.Errorf(x.Loc, "cannot use rational numbers with '%s' operator", x.Op)
				return unresolvedExpr(x.Loc)
			}
			return &BoolLit{exprBase: exprBase{Loc: x.Loc, Type: Bool{}}, Value: res}
		}
	}
	// One side is a non-rational runtime value: a rational may only
	// participate after converting to an integer, and never in
	// comparisons, shifts or bitwise operators.
	switch x.Op {
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe, ast.OpEq, ast.OpNe,
		ast.OpShl, ast.OpShr, ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor:
		ns.Errorf(x.Loc, "cannot use rational numbers with '%s' operator", x.Op)
		return unresolvedExpr(x.Loc)
	}
	other := l
	rat := r
	if isRationalExpr(l) {
		other, rat = r, l
	}
	converted := b.coerce(rat, Deref(other.Ty()))
	if isUnresolved(converted) {
		return unresolvedExpr(x.Loc)
	}
	lhs, rhs := l, r
	if isRationalExpr(l) {
		lhs = converted
	} else {
		rhs = converted
	}
	common := Deref(other.Ty())
	return &Binary{
		exprBase: exprBase{Loc: x.Loc, Type: common},
		Op:       op, Unchecked: b.unchecked, Left: lhs, Right: rhs,
	}
}

func constRat(e Expr) (*big.Rat, bool) {
	switch x := e.(type) {
	case *NumberLit:
		return new(big.Rat).SetInt(x.Value), true
	case *RationalLit:
		return x.Value, true
	}
	return nil, false
}

func compareRats(op ast.BinaryOp, l, r *big.Rat) (bool, bool) {
	c := l.Cmp(r)
	switch op {
	case ast.OpLt:
		return c < 0, true
	case ast.OpLe:
		return c <= 0, true
	case ast.OpGt:
		return c > 0, true
	case ast.OpGe:
		return c >= 0, true
	case ast.OpEq:
		return c == 0, true
	case ast.OpNe:
		return c != 0, true
	}
	return false, false
}

// foldIntBinary folds two integer literals, checking overflow against
// the hint when one is given. It never returns nil: a fold that fails
// reports an error and yields an unresolved expression.
func (b *bodyCtx) foldIntBinary(loc diag.Loc, op ast.BinaryOp, l, r *NumberLit, hint Type) Expr {
	ns := b.ns
	lv := new(big.Rat).SetInt(l.Value)
	rv := new(big.Rat).SetInt(r.Value)
	if op.IsComparison() {
		res, _ := compareRats(op, lv, rv)
		return &BoolLit{exprBase: exprBase{Loc: loc, Type: Bool{}}, Value: res}
	}
	folded, ok := constBinary(op, lv, rv)
	if !ok {
		if op == ast.OpDiv || op == ast.OpMod {
			ns.Errorf(loc, "division by zero in constant expression")
		} else {
			ns.Errorf(loc, "cannot fold constant expression")
		}
		return unresolvedExpr(loc)
	}
	return b.numberValue(loc, folded, hint)
}

// comparison types a relational or equality operator.
func (b *bodyCtx) comparison(x *ast.BinaryExpr, op BinaryOpKind, l, r Expr) Expr {
	ns := b.ns
	lt := Deref(l.Ty())
	rt := Deref(r.Ty())

	equality := x.Op == ast.OpEq || x.Op == ast.OpNe
	switch lt.(type) {
	case Int, Uint:
		common, ok := b.commonType(x.Loc, l, r, x.Op)
		if !ok {
			return unresolvedExpr(x.Loc)
		}
		l = b.coerce(l, common)
		r = b.coerce(r, common)
	case Bytes:
		r = b.coerce(r, lt)
	case Address:
		if !equality {
			ns.Errorf(x.Loc, "operator '%s' not allowed on %s", x.Op, ns.TypeName(lt))
			return unresolvedExpr(x.Loc)
		}
		// Payability does not affect address identity.
		switch rt.(type) {
		case Address:
		default:
			r = b.coerce(r, Address{})
		}
	case Contract, Enum, Bool, UserType:
		if !equality {
			ns.Errorf(x.Loc, "operator '%s' not allowed on %s", x.Op, ns.TypeName(lt))
			return unresolvedExpr(x.Loc)
		}
		r = b.coerce(r, lt)
	case String, DynamicBytes:
		if !equality {
			ns.Errorf(x.Loc, "operator '%s' not allowed on %s", x.Op, ns.TypeName(lt))
			return unresolvedExpr(x.Loc)
		}
		if !Equal(lt, rt) {
			ns.Errorf(x.Loc, "cannot compare %s to %s", ns.TypeName(lt), ns.TypeName(rt))
			return unresolvedExpr(x.Loc)
		}
	default:
		ns.Errorf(x.Loc, "operator '%s' not allowed on %s", x.Op, ns.TypeName(lt))
		return unresolvedExpr(x.Loc)
	}
	return &Binary{exprBase: exprBase{Loc: x.Loc, Type: Bool{}}, Op: op, Left: l, Right: r}
}

// commonType finds the type both integer operands widen to.
func (b *bodyCtx) commonType(loc diag.Loc, l, r Expr, op ast.BinaryOp) (Type, bool) {
	ns := b.ns
	lt := Deref(l.Ty())
	rt := Deref(r.Ty())

	if _, ok := lt.(String); ok && op == ast.OpAdd {
		ns.Errorf(loc, "operator '+' not allowed on string; use string.concat()")
		return nil, false
	}
	if _, ok := lt.(DynamicBytes); ok && op == ast.OpAdd {
		ns.Errorf(loc, "operator '+' not allowed on bytes; use bytes.concat()")
		return nil, false
	}

	// bytesN support bitwise operators on equal widths.
	if lb, ok := lt.(Bytes); ok {
		if op == ast.OpBitAnd || op == ast.OpBitOr || op == ast.OpBitXor {
			if rb, ok := rt.(Bytes); ok && lb.N == rb.N {
				return lt, true
			}
		}
		ns.Errorf(loc, "operator '%s' not allowed on %s", op, ns.TypeName(lt))
		return nil, false
	}

	if !IsInteger(lt) || !IsInteger(rt) {
		ns.Errorf(loc, "operator '%s' not allowed on %s and %s", op, ns.TypeName(lt), ns.TypeName(rt))
		return nil, false
	}

	// Literals adopt the other operand's type when they fit.
	if ln, ok := l.(*NumberLit); ok {
		if fitsInto(ln.Value, rt) {
			return rt, true
		}
	}
	if rn, ok := r.(*NumberLit); ok {
		if fitsInto(rn.Value, lt) {
			return lt, true
		}
	}

	ls, rs := IsSigned(lt), IsSigned(rt)
	lw, rw := IntegerWidth(lt), IntegerWidth(rt)
	if ls == rs {
		w := lw
		if rw > w {
			w = rw
		}
		if ls {
			return Int{Width: w}, true
		}
		return Uint{Width: w}, true
	}
	// Mixed signedness: the unsigned side may widen into a strictly
	// larger signed type; anything else needs an explicit cast.
	if ls && lw > rw {
		return Int{Width: lw}, true
	}
	if rs && rw > lw {
		return Int{Width: rw}, true
	}
	ns.Errorf(loc, "implicit conversion between %s and %s would change sign",
		ns.TypeName(lt), ns.TypeName(rt))
	return nil, false
}

// unary types prefix/postfix operators.
func (b *bodyCtx) unary(x *ast.UnaryExpr, hint Type) Expr {
	ns := b.ns
	switch x.Op {
	case ast.OpNeg:
		// Negated literals fold before typing so int256 minimum is
		// representable.
		if v, ok := b.r.constEval(b.tctx, x.Expr); ok {
			return b.numberValue(x.Loc, new(big.Rat).Neg(v), hint)
		}
		e := b.exprForType(x.Expr, hint)
		if isUnresolved(e) {
			return e
		}
		if !IsSigned(e.Ty()) {
			ns.Errorf(x.Loc, "cannot negate %s; only signed integers can be negated", ns.TypeName(e.Ty()))
			return unresolvedExpr(x.Loc)
		}
		return &Unary{
			exprBase: exprBase{Loc: x.Loc, Type: Deref(e.Ty())},
			Op:       UnNeg, Unchecked: b.unchecked, Expr: e,
		}
	case ast.OpNot:
		e := b.cond(x.Expr)
		return &Unary{exprBase: exprBase{Loc: x.Loc, Type: Bool{}}, Op: UnNot, Expr: e}
	case ast.OpBitNot:
		e := b.exprForType(x.Expr, hint)
		if isUnresolved(e) {
			return e
		}
		t := Deref(e.Ty())
		switch t.(type) {
		case Int, Uint, Bytes:
		default:
			ns.Errorf(x.Loc, "operator '~' not allowed on %s", ns.TypeName(t))
			return unresolvedExpr(x.Loc)
		}
		return &Unary{exprBase: exprBase{Loc: x.Loc, Type: t}, Op: UnBitNot, Expr: e}
	case ast.OpPreInc, ast.OpPreDec, ast.OpPostInc, ast.OpPostDec:
		lv := b.lvalue(x.Expr)
		if isUnresolved(lv) {
			return lv
		}
		t := Deref(lv.Ty())
		if !IsInteger(t) {
			ns.Errorf(x.Loc, "operator '%s' requires an integer l-value", x.Op)
			return unresolvedExpr(x.Loc)
		}
		b.markAssigned(lv)
		return &IncDec{
			exprBase:  exprBase{Loc: x.Loc, Type: t},
			Decrement: x.Op == ast.OpPreDec || x.Op == ast.OpPostDec,
			Post:      x.Op == ast.OpPostInc || x.Op == ast.OpPostDec,
			Unchecked: b.unchecked,
			Expr:      lv,
		}
	case ast.OpDelete:
		lv := b.lvalue(x.Expr)
		if isUnresolved(lv) {
			return lv
		}
		// delete writes the zero value.
		t := Deref(lv.Ty())
		b.markAssigned(lv)
		return &Assign{
			exprBase: exprBase{Loc: x.Loc, Type: Void{}},
			Left:     lv,
			Right:    &Default{exprBase: exprBase{Loc: x.Loc, Type: t}},
		}
	}
	return unresolvedExpr(x.Loc)
}

// assign types plain and compound assignment.
func (b *bodyCtx) assign(x *ast.AssignExpr) Expr {
	ns := b.ns

	// Destructuring assignment: (a, b) = call().
	if tup, ok := x.Left.(*ast.TupleExpr); ok && x.Op == ast.OpAssign {
		return b.destructureAssign(x, tup)
	}

	lv := b.lvalue(x.Left)
	if isUnresolved(lv) {
		b.expr(x.Right)
		return lv
	}
	want := Deref(lv.Ty())
	b.markAssigned(lv)

	var rhs Expr
	if x.Op == ast.OpAssign {
		rhs = b.coerce(b.exprForType(x.Right, want), want)
	} else {
		binOp := x.Op.Binary()
		synth := &ast.BinaryExpr{Loc: x.Loc, Op: binOp, Left: x.Left, Right: x.Right}
		folded := b.binary(synth, want)
		if isUnresolved(folded) {
			return folded
		}
		rhs = b.coerce(folded, want)
	}
	if _, isMapping := want.(Mapping); isMapping {
		ns.Errorf(x.Loc, "mappings cannot be assigned")
		return unresolvedExpr(x.Loc)
	}
	return &Assign{exprBase: exprBase{Loc: x.Loc, Type: want}, Left: lv, Right: rhs}
}

// destructureAssign handles (a, , b) = multi-valued call.
func (b *bodyCtx) destructureAssign(x *ast.AssignExpr, tup *ast.TupleExpr) Expr {
	ns := b.ns
	rhs := b.exprAllowMulti(x.Right)
	rets := returnTypes(rhs)
	if len(rets) != len(tup.Items) {
		ns.Errorf(x.Loc, "cannot destructure %d values into %d targets", len(rets), len(tup.Items))
		return unresolvedExpr(x.Loc)
	}
	targets := make([]Expr, len(tup.Items))
	for i, item := range tup.Items {
		if item == nil {
			continue
		}
		lv := b.lvalue(item)
		if !isUnresolved(lv) && !Equal(Deref(lv.Ty()), Deref(rets[i])) {
			ns.Errorf(item.ExprLoc(), "cannot assign %s to %s",
				ns.TypeName(rets[i]), ns.TypeName(lv.Ty()))
		}
		b.markAssigned(lv)
		targets[i] = lv
	}
	return &DestructureAssign{
		exprBase: exprBase{Loc: x.Loc, Type: Void{}},
		Targets:  targets,
		Right:    rhs,
	}
}

// markAssigned records a write for unused-variable analysis.
func (b *bodyCtx) markAssigned(lv Expr) {
	if ref, ok := lv.(*LocalRef); ok {
		if v := b.localVar(ref.VarNo); v != nil {
			v.Assigned = true
		}
	}
}
