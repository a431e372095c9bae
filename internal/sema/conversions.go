package sema

// coerce inserts the implicit conversions the language allows:
// lossless widening within a signedness, unsigned into strictly wider
// signed, literal narrowing at the use site, contract to address,
// payable to plain address, and fixed array literals into dynamic
// arrays. Everything else is an error.
func (b *bodyCtx) coerce(e Expr, to Type) Expr {
	ns := b.ns
	if isUnresolved(e) {
		return e
	}
	if _, bad := to.(Unresolved); bad {
		return e
	}
	from := Deref(e.Ty())
	want := Deref(to)
	if Equal(from, want) {
		return e
	}
	if _, never := from.(Unreachable); never {
		return e
	}

	// Literal narrowing.
	switch lit := e.(type) {
	case *NumberLit:
		switch want.(type) {
		case Int, Uint, Bytes:
			if fitsInto(lit.Value, want) {
				return &NumberLit{exprBase: exprBase{Loc: lit.Loc, Type: want}, Value: lit.Value}
			}
			ns.Errorf(lit.Loc, "literal %s does not fit %s", lit.Value, ns.TypeName(want))
			return unresolvedExpr(lit.Loc)
		case Address:
			if lit.Value.Sign() == 0 {
				return &BytesLit{
					exprBase: exprBase{Loc: lit.Loc, Type: want},
					Value:    make([]byte, ns.Target.AddressLength),
				}
			}
		}
	case *RationalLit:
		// A rational converts implicitly only when the denominator
		// divides out to an integer that fits.
		if IsInteger(want) {
			if lit.Value.IsInt() && fitsInto(lit.Value.Num(), want) {
				return &NumberLit{exprBase: exprBase{Loc: lit.Loc, Type: want}, Value: lit.Value.Num()}
			}
			ns.Errorf(lit.Loc, "rational %s cannot be converted to %s",
				lit.Value.RatString(), ns.TypeName(want))
			return unresolvedExpr(lit.Loc)
		}
	case *BytesLit:
		switch w := want.(type) {
		case String:
			if _, isBytes := from.(DynamicBytes); isBytes {
				break // bytes to string needs an explicit cast
			}
		case DynamicBytes:
			if _, isStr := from.(String); isStr {
				break
			}
		case Bytes:
			if len(lit.Value) == int(w.N) {
				return &BytesLit{exprBase: exprBase{Loc: lit.Loc, Type: want}, Value: lit.Value}
			}
		}
	}

	if implicitOK(ns, from, want) {
		return &Cast{exprBase: exprBase{Loc: e.ExprLoc(), Type: want}, Implicit: true, Expr: e}
	}

	ns.Errorf(e.ExprLoc(), "implicit conversion from %s to %s is not allowed",
		ns.TypeName(from), ns.TypeName(want))
	return unresolvedExpr(e.ExprLoc())
}

// implicitOK is the lossless implicit conversion matrix.
func implicitOK(ns *Namespace, from, to Type) bool {
	switch f := from.(type) {
	case Uint:
		switch t := to.(type) {
		case Uint:
			return t.Width >= f.Width
		case Int:
			return t.Width > f.Width
		}
	case Int:
		if t, ok := to.(Int); ok {
			return t.Width >= f.Width
		}
	case Address:
		if t, ok := to.(Address); ok {
			// payable narrows to plain, never the reverse.
			return f.Payable && !t.Payable
		}
	case Contract:
		switch t := to.(type) {
		case Address:
			return !t.Payable
		case Contract:
			// Derived converts to base.
			for _, cn := range ns.Contracts[f.Index].MRO {
				if cn == t.Index {
					return true
				}
			}
		}
	case Array:
		t, ok := to.(Array)
		if !ok || len(f.Dims) != len(t.Dims) || !Equal(f.Elem, t.Elem) {
			return false
		}
		// A fixed-length value converts into a dynamic slot.
		for i := range f.Dims {
			if t.Dims[i].Fixed && f.Dims[i] != t.Dims[i] {
				return false
			}
		}
		return true
	case Slice:
		if t, ok := to.(Slice); ok {
			return Equal(f.Elem, t.Elem)
		}
	}
	return false
}
