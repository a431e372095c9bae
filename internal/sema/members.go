package sema

import (
	"math/big"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/target"
)

// memberAccess resolves expr.member across every base-expression
// shape: builtin namespaces, symbol scopes, enums, structs, arrays,
// addresses, contracts and user types.
func (b *bodyCtx) memberAccess(x *ast.MemberAccess) Expr {
	ns := b.ns
	name := x.Member.Name

	base := b.exprInner(x.Expr, nil)
	b.markRead(base)
	switch bx := base.(type) {
	case *nsMarker:
		return b.builtinMember(x, bx.name, name)
	case *symbolMarker:
		return b.symbolMember(x, bx.sym, name)
	case *typeMarker:
		// string.concat / bytes.concat are spelled on the elementary
		// type names.
		switch t := bx.target.(type) {
		case String:
			if name == "concat" {
				return &nsMarker{exprBase: exprBase{Loc: x.Loc, Type: Void{}}, name: "string.concat"}
			}
		case DynamicBytes:
			if name == "concat" {
				return &nsMarker{exprBase: exprBase{Loc: x.Loc, Type: Void{}}, name: "bytes.concat"}
			}
		default:
			_ = t
		}
		ns.Errorf(x.Loc, "type %s has no member '%s'", ns.TypeName(bx.target), name)
		return unresolvedExpr(x.Loc)
	case *typeInfoMarker:
		return b.typeInfoMember(x, bx, name)
	}

	if isUnresolved(base) {
		return base
	}

	ty := base.Ty()
	switch t := Deref(ty).(type) {
	case Struct:
		decl := ns.Structs[t.Index]
		for fno, f := range decl.Fields {
			if f.Name == name {
				memberTy := refLike(ty, f.Type)
				return &StructMember{
					exprBase: exprBase{Loc: x.Loc, Type: memberTy},
					Expr:     base,
					MemberNo: fno,
				}
			}
		}
		var names []string
		for _, f := range decl.Fields {
			names = append(names, f.Name)
		}
		hint := ""
		if s := diag.Suggest(name, names); s != "" {
			hint = " (did you mean '" + s + "'?)"
		}
		ns.Errorf(x.Loc, "struct %s has no field '%s'%s", decl.Name, name, hint)
		return unresolvedExpr(x.Loc)

	case Array:
		switch name {
		case "length":
			return &Builtin{
				exprBase: exprBase{Loc: x.Loc, Type: Uint{Width: 256}},
				Kind:     BuiltinArrayLength,
				Args:     []Expr{base},
			}
		case "push", "pop":
			if t.Dims[0].Fixed {
				ns.Errorf(x.Loc, "'%s' is not available on fixed-length arrays", name)
				return unresolvedExpr(x.Loc)
			}
			if _, isStorage := ty.(StorageRef); !isStorage {
				ns.Errorf(x.Loc, "'%s' is only available on storage arrays", name)
				return unresolvedExpr(x.Loc)
			}
			kind := BuiltinArrayPush
			if name == "pop" {
				kind = BuiltinArrayPop
			}
			return &boundBuiltin{
				exprBase: exprBase{Loc: x.Loc, Type: Void{}},
				kind:     kind,
				recv:     base,
				elem:     elemAfterOneDim(t),
			}
		}

	case DynamicBytes:
		switch name {
		case "length":
			return &Builtin{
				exprBase: exprBase{Loc: x.Loc, Type: Uint{Width: 256}},
				Kind:     BuiltinArrayLength,
				Args:     []Expr{b.rvalue(base)},
			}
		case "push", "pop":
			if _, isStorage := ty.(StorageRef); !isStorage {
				ns.Errorf(x.Loc, "'%s' is only available on storage bytes", name)
				return unresolvedExpr(x.Loc)
			}
			kind := BuiltinArrayPush
			if name == "pop" {
				kind = BuiltinArrayPop
			}
			return &boundBuiltin{
				exprBase: exprBase{Loc: x.Loc, Type: Void{}},
				kind:     kind,
				recv:     base,
				elem:     Bytes{N: 1},
			}
		}

	case Bytes:
		if name == "length" {
			return &NumberLit{
				exprBase: exprBase{Loc: x.Loc, Type: Uint{Width: 8}},
				Value:    big.NewInt(int64(t.N)),
			}
		}

	case Address:
		switch name {
		case "balance":
			if b.fn != nil {
				b.fn.ReadsState = true
			}
			return &Builtin{
				exprBase: exprBase{Loc: x.Loc, Type: Uint{Width: uint16(ns.Target.ValueLength * 8)}},
				Kind:     BuiltinBalance,
				Args:     []Expr{b.rvalue(base)},
			}
		case "transfer", "send":
			if !t.Payable {
				ns.Errorf(x.Loc, "'%s' requires 'address payable'", name)
				return unresolvedExpr(x.Loc)
			}
			kind := BuiltinTransfer
			retTy := Type(Void{})
			if name == "send" {
				kind = BuiltinSend
				retTy = Bool{}
			}
			return &boundBuiltin{
				exprBase: exprBase{Loc: x.Loc, Type: retTy},
				kind:     kind,
				recv:     b.rvalue(base),
			}
		}

	case Contract:
		// External call: instance.method(…) or public getter.
		addr := b.rvalue(base)
		var nos []int
		for _, fnNo := range ns.Contracts[t.Index].Functions {
			fn := ns.Functions[fnNo]
			if fn.Name == name && fn.Visibility.Externally() && fn.Kind == ast.FnFunction {
				nos = append(nos, fnNo)
			}
		}
		if len(nos) > 0 {
			return &externalFnMarker{
				exprBase:   exprBase{Loc: x.Loc, Type: Void{}},
				address:    addr,
				contractNo: t.Index,
				nos:        nos,
			}
		}

	case FunctionTy:
		switch name {
		case "selector":
			return &Builtin{
				exprBase: exprBase{Loc: x.Loc, Type: Bytes{N: uint8(ns.Target.SelectorLength())}},
				Kind:     BuiltinMsgSig,
				Args:     []Expr{b.rvalue(base)},
			}
		}
	}

	// using-attached library functions bind to any type last.
	if cands := b.r.usingCandidates(b.tctx, Deref(ty)); len(cands) > 0 {
		var nos []int
		for _, fnNo := range cands {
			if ns.Functions[fnNo].Name == name {
				nos = append(nos, fnNo)
			}
		}
		if len(nos) > 0 {
			return &overloadMarker{
				exprBase: exprBase{Loc: x.Loc, Type: Void{}},
				nos:      nos,
				recv:     base,
			}
		}
	}

	ns.Errorf(x.Loc, "%s has no member '%s'", ns.TypeName(ty), name)
	return unresolvedExpr(x.Loc)
}

// boundBuiltin is a builtin with a bound receiver waiting for its
// argument list (push/pop/transfer/send).
type boundBuiltin struct {
	exprBase
	kind BuiltinKind
	recv Expr
	elem Type
}

// refLike projects a member's type through the reference kind of its
// container.
func refLike(container Type, member Type) Type {
	switch c := container.(type) {
	case StorageRef:
		return StorageRef{Inner: member, Immutable: c.Immutable}
	case Ref:
		return Ref{Inner: member}
	}
	return member
}

// builtinMember resolves msg.*, block.*, tx.*, abi.* and super.*.
func (b *bodyCtx) builtinMember(x *ast.MemberAccess, nsName, member string) Expr {
	ns := b.ns
	loc := x.Loc
	mark := func(kind BuiltinKind, ty Type) Expr {
		if b.fn != nil {
			b.fn.ReadsState = true
		}
		return &Builtin{exprBase: exprBase{Loc: loc, Type: ty}, Kind: kind}
	}
	valueTy := Uint{Width: uint16(ns.Target.ValueLength * 8)}
	switch nsName {
	case "msg":
		switch member {
		case "sender":
			return mark(BuiltinMsgSender, Address{Payable: true})
		case "value":
			if b.fn != nil && b.fn.Mutability != MutPayable {
				ns.Errorf(loc, "msg.value is only available in payable functions")
			}
			return mark(BuiltinMsgValue, valueTy)
		case "data":
			return mark(BuiltinMsgData, DynamicBytes{})
		case "sig":
			return mark(BuiltinMsgSig, Bytes{N: uint8(ns.Target.SelectorLength())})
		}
	case "block":
		switch member {
		case "number":
			return mark(BuiltinBlockNumber, Uint{Width: 64})
		case "timestamp":
			return mark(BuiltinTimestamp, Uint{Width: 64})
		case "slot":
			if ns.Target.Kind != target.Solana {
				ns.Errorf(loc, "block.slot is only available when targeting solana")
			}
			return mark(BuiltinSlot, Uint{Width: 64})
		}
	case "tx":
		switch member {
		case "program_id":
			if ns.Target.Kind != target.Solana {
				ns.Errorf(loc, "tx.program_id is only available when targeting solana")
			}
			return mark(BuiltinProgramID, Address{})
		case "accounts":
			if ns.Target.Kind != target.Solana {
				ns.Errorf(loc, "tx.accounts is only available when targeting solana")
			}
			return mark(BuiltinAccounts, DynamicBytes{})
		}
	case "abi":
		switch member {
		case "encode", "encodePacked", "encodeWithSelector", "encodeWithSignature", "decode":
			return &nsMarker{exprBase: exprBase{Loc: loc, Type: Void{}}, name: "abi." + member}
		}
	case "super":
		// super.method resolves along the MRO past the current
		// contract.
		if b.fn == nil || b.fn.ContractNo < 0 {
			ns.Errorf(loc, "'super' is only valid inside a contract")
			return unresolvedExpr(loc)
		}
		mro := ns.Contracts[b.fn.ContractNo].MRO
		for _, cn := range mro {
			if cn == b.fn.ContractNo {
				continue
			}
			if sym := b.r.contractSyms[cn].lookup(member); sym != nil && sym.Kind == symFunction {
				return &overloadMarker{exprBase: exprBase{Loc: loc, Type: Void{}}, nos: sym.Nos}
			}
		}
		ns.Errorf(loc, "no base contract defines '%s'", member)
		return unresolvedExpr(loc)
	}
	ns.Errorf(loc, "'%s' has no member '%s'", nsName, member)
	return unresolvedExpr(loc)
}

// symbolMember resolves Scope.member for contracts, enums, namespaces
// and user types.
func (b *bodyCtx) symbolMember(x *ast.MemberAccess, sym *symbol, member string) Expr {
	ns := b.ns
	loc := x.Loc
	switch sym.Kind {
	case symEnum:
		decl := ns.Enums[sym.no()]
		for i, v := range decl.Values {
			if v == member {
				return &NumberLit{
					exprBase: exprBase{Loc: loc, Type: Enum{Index: sym.no()}},
					Value:    big.NewInt(int64(i)),
				}
			}
		}
		hint := ""
		if s := diag.Suggest(member, decl.Values); s != "" {
			hint = " (did you mean '" + s + "'?)"
		}
		ns.Errorf(loc, "enum %s has no value '%s'%s", decl.Name, member, hint)
		return unresolvedExpr(loc)
	case symContract:
		inner := b.r.contractSyms[sym.no()].lookup(member)
		if inner == nil {
			ns.Errorf(loc, "'%s' not found in contract '%s'", member, ns.Contracts[sym.no()].Name)
			return unresolvedExpr(loc)
		}
		// Library calls and qualified constants resolve statically.
		if inner.Kind == symVariable {
			v := ns.Contracts[sym.no()].Variables[inner.no()]
			if !v.Constant {
				ns.Errorf(loc, "state variable '%s' requires a contract instance", member)
				return unresolvedExpr(loc)
			}
			return &ConstVar{
				exprBase:   exprBase{Loc: loc, Type: v.Type},
				ContractNo: sym.no(), VarNo: inner.no(),
			}
		}
		return b.symbolExpr(loc, inner)
	case symNamespace:
		inner := ns.fileSymbols[sym.FileNo].lookup(member)
		if inner == nil {
			ns.Errorf(loc, "'%s' not found in import '%s'", member, sym.Name)
			return unresolvedExpr(loc)
		}
		return b.symbolExpr(loc, inner)
	case symUserType:
		switch member {
		case "wrap", "unwrap":
			return &userTypeConv{
				exprBase: exprBase{Loc: loc, Type: Void{}},
				typeNo:   sym.no(),
				unwrap:   member == "unwrap",
			}
		}
		ns.Errorf(loc, "type %s has no member '%s'", ns.UserTypes[sym.no()].Name, member)
		return unresolvedExpr(loc)
	case symStruct, symEvent, symError:
		ns.Errorf(loc, "%s '%s' has no member '%s'", sym.Kind, sym.Name, member)
		return unresolvedExpr(loc)
	}
	return unresolvedExpr(loc)
}

// userTypeConv is T.wrap / T.unwrap awaiting its argument.
type userTypeConv struct {
	exprBase
	typeNo int
	unwrap bool
}

// typeInfoMember resolves type(T).min/max/name.
func (b *bodyCtx) typeInfoMember(x *ast.MemberAccess, info *typeInfoMarker, member string) Expr {
	ns := b.ns
	loc := x.Loc
	switch member {
	case "min", "max":
		t := Deref(info.subject)
		if !IsInteger(t) {
			ns.Errorf(loc, "type(%s) has no '%s'", ns.TypeName(t), member)
			return unresolvedExpr(loc)
		}
		w := int(IntegerWidth(t))
		v := new(big.Int)
		if IsSigned(t) {
			if member == "min" {
				v.Neg(new(big.Int).Lsh(big.NewInt(1), uint(w-1)))
			} else {
				v.Sub(new(big.Int).Lsh(big.NewInt(1), uint(w-1)), big.NewInt(1))
			}
		} else if member == "max" {
			v.Sub(new(big.Int).Lsh(big.NewInt(1), uint(w)), big.NewInt(1))
		}
		return &NumberLit{exprBase: exprBase{Loc: loc, Type: t}, Value: v}
	}
	ns.Errorf(loc, "type(…) has no member '%s'", member)
	return unresolvedExpr(loc)
}

// markRead records a use of a local for unused-variable analysis even
// when the reference itself is not loaded (member access, indexing).
func (b *bodyCtx) markRead(e Expr) {
	if ref, ok := e.(*LocalRef); ok {
		if v := b.localVar(ref.VarNo); v != nil {
			v.Read = true
		}
	}
}

// subscript types expr[index] over arrays, bytes and mappings.
func (b *bodyCtx) subscript(x *ast.Subscript) Expr {
	ns := b.ns
	base := b.exprInner(x.Expr, nil)
	b.markRead(base)
	if isUnresolved(base) {
		return base
	}
	if x.Index == nil {
		ns.Errorf(x.Loc, "subscript requires an index")
		return unresolvedExpr(x.Loc)
	}
	ty := base.Ty()
	switch t := Deref(ty).(type) {
	case Mapping:
		if _, isStorage := ty.(StorageRef); !isStorage {
			ns.Errorf(x.Loc, "mappings only exist in storage")
			return unresolvedExpr(x.Loc)
		}
		idx := b.coerce(b.exprForType(x.Index, t.Key), t.Key)
		return &Subscript{
			exprBase: exprBase{Loc: x.Loc, Type: refLike(ty, t.Value)},
			Array:    base,
			Index:    idx,
		}
	case Array:
		idx := b.coerce(b.exprForType(x.Index, Uint{Width: 256}), Uint{Width: 256})
		inner := elemAfterOneDim(t)
		return &Subscript{
			exprBase: exprBase{Loc: x.Loc, Type: refLike(ty, inner)},
			Array:    base,
			Index:    idx,
		}
	case DynamicBytes:
		idx := b.coerce(b.exprForType(x.Index, Uint{Width: 256}), Uint{Width: 256})
		return &Subscript{
			exprBase: exprBase{Loc: x.Loc, Type: refLike(ty, Bytes{N: 1})},
			Array:    base,
			Index:    idx,
		}
	case Bytes:
		idx := b.coerce(b.exprForType(x.Index, Uint{Width: 256}), Uint{Width: 256})
		return &Subscript{
			exprBase: exprBase{Loc: x.Loc, Type: Bytes{N: 1}},
			Array:    b.rvalue(base),
			Index:    idx,
		}
	}
	ns.Errorf(x.Loc, "%s cannot be indexed", ns.TypeName(ty))
	return unresolvedExpr(x.Loc)
}
