package sema

import (
	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
)

// call resolves every call-shaped expression: casts, builtins, struct
// construction, internal/library/external calls and `new`.
func (b *bodyCtx) call(x *ast.CallExpr, hint Type) Expr {
	ns := b.ns

	// Call options peel off first: f{value: v, gas: g}(…).
	callee := x.Callee
	var valueOpt, gasOpt, saltOpt, spaceOpt Expr
	if opts, ok := callee.(*ast.CallOptions); ok {
		callee = opts.Expr
		for _, o := range opts.Options {
			val := b.expr(o.Value)
			switch o.Name.Name {
			case "value":
				valueOpt = b.coerce(val, Uint{Width: uint16(ns.Target.ValueLength * 8)})
			case "gas":
				gasOpt = b.coerce(val, Uint{Width: 64})
			case "salt":
				saltOpt = b.coerce(val, Bytes{N: 32})
			case "space":
				spaceOpt = b.coerce(val, Uint{Width: 64})
			default:
				ns.Errorf(o.Loc, "unknown call option '%s'", o.Name.Name)
			}
		}
	}

	if newX, ok := callee.(*ast.NewExpr); ok {
		return b.construct(x, newX, valueOpt, saltOpt, spaceOpt)
	}

	target := b.exprInner(callee, nil)
	switch c := target.(type) {
	case *typeMarker:
		return b.explicitCast(x, c.target)
	case *userTypeConv:
		return b.wrapCall(x, c)
	case *nsMarker:
		return b.builtinCall(x, c.name, hint, valueOpt)
	case *overloadMarker:
		return b.internalCall(x, c, valueOpt)
	case *externalFnMarker:
		return b.externalCall(x, c, valueOpt, gasOpt)
	case *boundBuiltin:
		return b.boundBuiltinCall(x, c)
	case *symbolMarker:
		switch c.sym.Kind {
		case symStruct:
			return b.structLiteral(x, c.sym.no())
		case symContract:
			// Contract(addr) cast.
			if ns.Contracts[c.sym.no()].Kind == ast.KindLibrary {
				ns.Errorf(x.Loc, "library '%s' cannot be instantiated or cast", ns.Contracts[c.sym.no()].Name)
				return unresolvedExpr(x.Loc)
			}
			return b.explicitCast(x, Contract{Index: c.sym.no()})
		case symError:
			ns.Errorf(x.Loc, "error '%s' can only be used with 'revert'", c.sym.Name)
			return unresolvedExpr(x.Loc)
		}
	}
	if isUnresolved(target) {
		return target
	}
	if ft, ok := Deref(target.Ty()).(FunctionTy); ok {
		// Calling a function-typed value.
		if len(x.Args) != len(ft.Params) {
			ns.Errorf(x.Loc, "function type expects %d arguments, %d given", len(ft.Params), len(x.Args))
			return unresolvedExpr(x.Loc)
		}
		args := make([]Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = b.coerce(b.exprForType(a, ft.Params[i]), ft.Params[i])
		}
		retTy := Type(Void{})
		if len(ft.Returns) == 1 {
			retTy = ft.Returns[0]
		}
		return &InternalCall{
			exprBase:   exprBase{Loc: x.Loc, Type: retTy},
			FunctionNo: -1,
			Args:       append([]Expr{b.rvalue(target)}, args...),
			Returns:    ft.Returns,
		}
	}
	ns.Errorf(x.Loc, "expression is not callable")
	return unresolvedExpr(x.Loc)
}

// construct handles `new Contract(args)`, `new bytes(n)`,
// `new T[](n)`.
func (b *bodyCtx) construct(x *ast.CallExpr, newX *ast.NewExpr, value, salt, space Expr) Expr {
	ns := b.ns
	ty := b.r.resolveType(b.tctx, newX.Type)
	switch t := ty.(type) {
	case Contract:
		c := ns.Contracts[t.Index]
		if !c.IsConcrete() {
			ns.Errorf(x.Loc, "cannot instantiate %s '%s'", c.Kind, c.Name)
			return unresolvedExpr(x.Loc)
		}
		if b.fn != nil && b.fn.ContractNo == t.Index {
			ns.Errorf(x.Loc, "contract '%s' cannot instantiate itself", c.Name)
			return unresolvedExpr(x.Loc)
		}
		ctor := ns.ContractConstructor(t.Index)
		var args []Expr
		if ctor != nil {
			params := ns.Functions[*ctor].Params
			if len(x.Args) != len(params) {
				ns.Errorf(x.Loc, "constructor of '%s' expects %d arguments, %d given",
					c.Name, len(params), len(x.Args))
				return unresolvedExpr(x.Loc)
			}
			for i, a := range x.Args {
				args = append(args, b.coerce(b.exprForType(a, params[i].Type), params[i].Type))
			}
		} else if len(x.Args) > 0 {
			ns.Errorf(x.Loc, "contract '%s' has no constructor", c.Name)
			return unresolvedExpr(x.Loc)
		}
		if b.fn != nil {
			b.fn.WritesState = true
		}
		return &Constructor{
			exprBase:   exprBase{Loc: x.Loc, Type: Contract{Index: t.Index}},
			ContractNo: t.Index,
			Args:       args,
			Value:      value,
			Salt:       salt,
			Space:      space,
		}
	case DynamicBytes, String:
		if len(x.Args) != 1 {
			ns.Errorf(x.Loc, "new %s takes a length argument", ns.TypeName(ty))
			return unresolvedExpr(x.Loc)
		}
		length := b.coerce(b.exprForType(x.Args[0], Uint{Width: 32}), Uint{Width: 32})
		return &AllocDynamic{exprBase: exprBase{Loc: x.Loc, Type: ty}, Length: length}
	case Array:
		if t.Dims[0].Fixed {
			ns.Errorf(x.Loc, "'new' requires a dynamic array type")
			return unresolvedExpr(x.Loc)
		}
		if len(x.Args) != 1 {
			ns.Errorf(x.Loc, "new %s takes a length argument", ns.TypeName(ty))
			return unresolvedExpr(x.Loc)
		}
		length := b.coerce(b.exprForType(x.Args[0], Uint{Width: 32}), Uint{Width: 32})
		return &AllocDynamic{exprBase: exprBase{Loc: x.Loc, Type: ty}, Length: length}
	}
	ns.Errorf(newX.Loc, "cannot allocate %s with 'new'", ns.TypeName(ty))
	return unresolvedExpr(x.Loc)
}

// explicitCast checks an explicit T(expr) conversion.
func (b *bodyCtx) explicitCast(x *ast.CallExpr, to Type) Expr {
	ns := b.ns
	if len(x.Args) != 1 {
		ns.Errorf(x.Loc, "cast to %s takes exactly one argument", ns.TypeName(to))
		return unresolvedExpr(x.Loc)
	}
	v := b.exprForType(x.Args[0], to)
	if isUnresolved(v) {
		return v
	}
	from := Deref(v.Ty())
	if Equal(from, to) {
		return v
	}
	if lit, ok := v.(*NumberLit); ok {
		// Constant casts re-narrow the literal.
		if fitsInto(lit.Value, to) {
			return &NumberLit{exprBase: exprBase{Loc: x.Loc, Type: to}, Value: lit.Value}
		}
		ns.Errorf(x.Loc, "literal %s does not fit %s", lit.Value, ns.TypeName(to))
		return unresolvedExpr(x.Loc)
	}
	if explicitCastAllowed(ns, from, to) {
		return &Cast{exprBase: exprBase{Loc: x.Loc, Type: to}, Expr: v}
	}
	ns.Errorf(x.Loc, "cannot cast %s to %s", ns.TypeName(from), ns.TypeName(to))
	return unresolvedExpr(x.Loc)
}

// explicitCastAllowed is the whitelist of value-preserving explicit
// conversions.
func explicitCastAllowed(ns *Namespace, from, to Type) bool {
	switch f := from.(type) {
	case Int, Uint:
		switch t := to.(type) {
		case Int, Uint:
			return true
		case Bytes:
			return int(t.N)*8 == int(IntegerWidth(from))
		case Enum:
			return true
		case Address:
			return IntegerWidth(from) == uint16(ns.Target.AddressLength*8)
		}
	case Bytes:
		switch t := to.(type) {
		case Int, Uint:
			return int(f.N)*8 == int(IntegerWidth(to))
		case Bytes:
			return true
		case Address:
			return int(f.N) == ns.Target.AddressLength
		case DynamicBytes:
			return true
		default:
			_ = t
		}
	case Address:
		switch t := to.(type) {
		case Address:
			return true
		case Bytes:
			return int(t.N) == ns.Target.AddressLength
		case Contract:
			return true
		case Uint:
			return int(t.Width) == ns.Target.AddressLength*8
		}
	case Contract:
		switch to.(type) {
		case Address, Contract:
			return true
		}
	case Enum:
		switch to.(type) {
		case Int, Uint:
			return true
		}
	case DynamicBytes:
		switch to.(type) {
		case String:
			return true
		}
	case String:
		switch to.(type) {
		case DynamicBytes:
			return true
		}
	}
	return false
}

// wrapCall types T.wrap(x) / T.unwrap(x); both are legal in constant
// contexts because they fold to their argument.
func (b *bodyCtx) wrapCall(x *ast.CallExpr, conv *userTypeConv) Expr {
	ns := b.ns
	decl := ns.UserTypes[conv.typeNo]
	if len(x.Args) != 1 {
		ns.Errorf(x.Loc, "%s.%s takes exactly one argument", decl.Name, map[bool]string{true: "unwrap", false: "wrap"}[conv.unwrap])
		return unresolvedExpr(x.Loc)
	}
	if conv.unwrap {
		v := b.coerce(b.exprForType(x.Args[0], UserType{Index: conv.typeNo}), UserType{Index: conv.typeNo})
		if lit, ok := v.(*NumberLit); ok {
			return &NumberLit{exprBase: exprBase{Loc: x.Loc, Type: decl.Type}, Value: lit.Value}
		}
		return &Cast{exprBase: exprBase{Loc: x.Loc, Type: decl.Type}, Expr: v}
	}
	v := b.coerce(b.exprForType(x.Args[0], decl.Type), decl.Type)
	if lit, ok := v.(*NumberLit); ok {
		return &NumberLit{exprBase: exprBase{Loc: x.Loc, Type: UserType{Index: conv.typeNo}}, Value: lit.Value}
	}
	return &Cast{exprBase: exprBase{Loc: x.Loc, Type: UserType{Index: conv.typeNo}}, Expr: v}
}

// structLiteral types S(args) or S({field: value}).
func (b *bodyCtx) structLiteral(x *ast.CallExpr, structNo int) Expr {
	ns := b.ns
	decl := ns.Structs[structNo]
	fields := make([]Expr, len(decl.Fields))
	switch {
	case len(x.NamedArgs) > 0:
		assigned := map[string]bool{}
		for _, na := range x.NamedArgs {
			found := false
			for i, f := range decl.Fields {
				if f.Name == na.Name.Name {
					if assigned[f.Name] {
						ns.Errorf(na.Loc, "field '%s' assigned twice", f.Name)
					}
					assigned[f.Name] = true
					fields[i] = b.coerce(b.exprForType(na.Value, f.Type), f.Type)
					found = true
					break
				}
			}
			if !found {
				ns.Errorf(na.Name.Loc, "struct %s has no field '%s'", decl.Name, na.Name.Name)
			}
		}
		for i, f := range decl.Fields {
			if fields[i] == nil {
				ns.Errorf(x.Loc, "field '%s' of struct %s not assigned", f.Name, decl.Name)
				fields[i] = &Default{exprBase: exprBase{Loc: x.Loc, Type: f.Type}}
			}
		}
	default:
		if len(x.Args) != len(decl.Fields) {
			ns.Errorf(x.Loc, "struct %s has %d fields, %d given", decl.Name, len(decl.Fields), len(x.Args))
			return unresolvedExpr(x.Loc)
		}
		for i, a := range x.Args {
			fields[i] = b.coerce(b.exprForType(a, decl.Fields[i].Type), decl.Fields[i].Type)
		}
	}
	return &StructLit{exprBase: exprBase{Loc: x.Loc, Type: Struct{Index: structNo}}, Fields: fields}
}

// internalCall resolves an overload set and builds the call.
func (b *bodyCtx) internalCall(x *ast.CallExpr, mark *overloadMarker, value Expr) Expr {
	ns := b.ns
	if value != nil {
		ns.Errorf(x.Loc, "{value: …} is only valid on external calls and 'new'")
	}

	var prefix []Expr
	if mark.recv != nil {
		prefix = []Expr{b.rvalue(mark.recv)}
	}

	var chosen int = -1
	var args []Expr
	for _, fnNo := range mark.nos {
		fn := ns.Functions[fnNo]
		cand, ok := b.tryArgs(fn, prefix, x.Args)
		if ok {
			if chosen != -1 {
				ns.Errorf(x.Loc, "call to '%s' is ambiguous", fn.Name)
				return unresolvedExpr(x.Loc)
			}
			chosen = fnNo
			args = cand
		}
	}
	if chosen == -1 {
		name := ns.Functions[mark.nos[0]].Name
		ns.Errorf(x.Loc, "no overload of '%s' matches these arguments", name)
		return unresolvedExpr(x.Loc)
	}
	fn := ns.Functions[chosen]
	fn.Called = true
	b.propagateMutability(x.Loc, fn)

	rets := make([]Type, len(fn.Returns))
	for i, ret := range fn.Returns {
		rets[i] = ret.Type
	}
	retTy := Type(Void{})
	if len(rets) == 1 {
		retTy = rets[0]
	}
	return &InternalCall{
		exprBase:   exprBase{Loc: x.Loc, Type: retTy},
		FunctionNo: chosen,
		Args:       args,
		Returns:    rets,
	}
}

// tryArgs attempts to bind arguments to a candidate's parameters,
// discarding diagnostics on failure.
func (b *bodyCtx) tryArgs(fn *Function, prefix []Expr, astArgs []ast.Expression) ([]Expr, bool) {
	ns := b.ns
	if len(prefix)+len(astArgs) != len(fn.Params) {
		return nil, false
	}
	saved := len(ns.Diagnostics)
	args := append([]Expr(nil), prefix...)
	ok := true
	for i, a := range astArgs {
		want := fn.Params[len(prefix)+i].Type
		v := b.coerce(b.exprForType(a, want), want)
		if isUnresolved(v) {
			ok = false
			break
		}
		args = append(args, v)
	}
	if len(prefix) == 1 && ok {
		if !Equal(Deref(prefix[0].Ty()), Deref(fn.Params[0].Type)) {
			ok = false
		}
	}
	if !ok {
		ns.Diagnostics = ns.Diagnostics[:saved]
		return nil, false
	}
	return args, true
}

// propagateMutability enforces that a caller's declared mutability
// admits the callee's effects and records them.
func (b *bodyCtx) propagateMutability(loc diag.Loc, callee *Function) {
	ns := b.ns
	if b.fn == nil {
		if callee.Mutability != MutPure {
			ns.Errorf(loc, "only pure functions can be called in a constant context")
		}
		return
	}
	switch callee.Mutability {
	case MutPure:
	case MutView:
		b.fn.ReadsState = true
		if b.fn.Mutability == MutPure {
			ns.Errorf(loc, "pure function cannot call view function '%s'", callee.Name)
		}
	default:
		b.fn.WritesState = true
		if b.fn.Mutability == MutPure || b.fn.Mutability == MutView {
			ns.Errorf(loc, "%s function cannot call %s function '%s'",
				b.fn.Mutability, callee.Mutability, callee.Name)
		}
	}
}

// externalCall builds instance.method(args).
func (b *bodyCtx) externalCall(x *ast.CallExpr, mark *externalFnMarker, value, gas Expr) Expr {
	ns := b.ns
	var chosen int = -1
	var args []Expr
	for _, fnNo := range mark.nos {
		fn := ns.Functions[fnNo]
		cand, ok := b.tryArgs(fn, nil, x.Args)
		if ok {
			if chosen != -1 {
				ns.Errorf(x.Loc, "call to '%s' is ambiguous", fn.Name)
				return unresolvedExpr(x.Loc)
			}
			chosen = fnNo
			args = cand
		}
	}
	if chosen == -1 {
		ns.Errorf(x.Loc, "no overload of '%s' matches these arguments", ns.Functions[mark.nos[0]].Name)
		return unresolvedExpr(x.Loc)
	}
	fn := ns.Functions[chosen]
	fn.Called = true
	if value != nil && fn.Mutability != MutPayable {
		ns.Errorf(x.Loc, "sending value to non-payable function '%s'", fn.Name)
	}
	if b.fn != nil {
		b.fn.WritesState = true
		if b.fn.Mutability == MutPure || b.fn.Mutability == MutView {
			if fn.Mutability != MutPure && fn.Mutability != MutView {
				ns.Errorf(x.Loc, "%s function cannot make state-changing external call", b.fn.Mutability)
			}
		}
	}

	rets := make([]Type, len(fn.Returns))
	for i, ret := range fn.Returns {
		rets[i] = ret.Type
	}
	retTy := Type(Void{})
	if len(rets) == 1 {
		retTy = rets[0]
	}
	return &ExternalCall{
		exprBase:   exprBase{Loc: x.Loc, Type: retTy},
		Address:    mark.address,
		ContractNo: mark.contractNo,
		FunctionNo: chosen,
		Args:       args,
		Value:      value,
		Gas:        gas,
		Returns:    rets,
	}
}

// boundBuiltinCall finishes push/pop/transfer/send.
func (b *bodyCtx) boundBuiltinCall(x *ast.CallExpr, bound *boundBuiltin) Expr {
	ns := b.ns
	switch bound.kind {
	case BuiltinArrayPush:
		if b.fn != nil {
			b.fn.WritesState = true
		}
		args := []Expr{bound.recv}
		retTy := Type(Void{})
		switch len(x.Args) {
		case 0:
			args = append(args, &Default{exprBase: exprBase{Loc: x.Loc, Type: bound.elem}})
		case 1:
			args = append(args, b.coerce(b.exprForType(x.Args[0], bound.elem), bound.elem))
		default:
			ns.Errorf(x.Loc, "push takes at most one argument")
			return unresolvedExpr(x.Loc)
		}
		return &Builtin{exprBase: exprBase{Loc: x.Loc, Type: retTy}, Kind: BuiltinArrayPush, Args: args}
	case BuiltinArrayPop:
		if b.fn != nil {
			b.fn.WritesState = true
		}
		if len(x.Args) != 0 {
			ns.Errorf(x.Loc, "pop takes no arguments")
			return unresolvedExpr(x.Loc)
		}
		return &Builtin{
			exprBase: exprBase{Loc: x.Loc, Type: bound.elem},
			Kind:     BuiltinArrayPop,
			Args:     []Expr{bound.recv},
		}
	case BuiltinTransfer, BuiltinSend:
		if b.fn != nil {
			b.fn.WritesState = true
			b.fn.ValueTransfer = true
		}
		if len(x.Args) != 1 {
			ns.Errorf(x.Loc, "%s takes a single value argument", bound.kind)
			return unresolvedExpr(x.Loc)
		}
		valueTy := Uint{Width: uint16(ns.Target.ValueLength * 8)}
		amount := b.coerce(b.exprForType(x.Args[0], valueTy), valueTy)
		return &Builtin{
			exprBase: exprBase{Loc: x.Loc, Type: bound.Type},
			Kind:     bound.kind,
			Args:     []Expr{bound.recv, amount},
		}
	}
	return unresolvedExpr(x.Loc)
}
