package sema

import (
	"encoding/hex"
	"math/big"

	"github.com/mr-tron/base58"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/target"
)

// Marker expressions used only while resolving: they represent names
// that are not values (types, contracts, builtin namespaces, overload
// sets) and must be consumed by a call or member access. One leaking
// into value position is an error.
type typeMarker struct {
	exprBase
	target Type
}

type symbolMarker struct {
	exprBase
	sym *symbol
}

type nsMarker struct {
	exprBase
	name string
}

type overloadMarker struct {
	exprBase
	nos  []int
	recv Expr // bound receiver for using-attached calls, or nil
}

type externalFnMarker struct {
	exprBase
	address    Expr
	contractNo int
	nos        []int
}

type typeInfoMarker struct {
	exprBase
	subject Type
}

// unresolved is the poisoned expression after a reported error.
func unresolvedExpr(loc diag.Loc) Expr {
	return &BytesLit{exprBase: exprBase{Loc: loc, Type: Unresolved{}}}
}

func isUnresolved(e Expr) bool {
	_, bad := e.Ty().(Unresolved)
	return bad
}

// cond resolves an expression and coerces it to bool.
func (b *bodyCtx) cond(e ast.Expression) Expr {
	return b.coerce(b.expr(e), Bool{})
}

// expr resolves an expression to a single r-value.
func (b *bodyCtx) expr(e ast.Expression) Expr {
	return b.rvalue(b.exprInner(e, nil))
}

// exprForType resolves with an expected type so literals narrow at the
// use site.
func (b *bodyCtx) exprForType(e ast.Expression, hint Type) Expr {
	return b.rvalue(b.exprInner(e, hint))
}

// exprAllowMulti resolves an expression that may produce several
// values (a multi-return call in destructuring or return position).
func (b *bodyCtx) exprAllowMulti(e ast.Expression) Expr {
	v := b.exprInner(e, nil)
	switch v.(type) {
	case *InternalCall, *ExternalCall:
		return v
	}
	return b.rvalue(v)
}

// rvalue loads through references and rejects non-value markers.
func (b *bodyCtx) rvalue(e Expr) Expr {
	switch x := e.(type) {
	case *typeMarker, *symbolMarker, *nsMarker, *overloadMarker, *externalFnMarker, *typeInfoMarker:
		b.ns.Errorf(e.ExprLoc(), "expression is not a value")
		return unresolvedExpr(e.ExprLoc())
	case *LocalRef:
		if v := b.localVar(x.VarNo); v != nil {
			v.Read = true
		}
	}
	switch t := e.Ty().(type) {
	case Ref:
		return &Load{exprBase: exprBase{Loc: e.ExprLoc(), Type: t.Inner}, Expr: e}
	case StorageRef:
		if _, isMapping := t.Inner.(Mapping); isMapping {
			return e // mappings have no loadable value
		}
		if b.fn != nil {
			b.fn.ReadsState = true
		}
		return &Load{exprBase: exprBase{Loc: e.ExprLoc(), Type: t.Inner}, Expr: e}
	}
	return e
}

func (b *bodyCtx) localVar(no int) *Variable {
	if b.fn != nil && no < len(b.fn.Locals) {
		return b.fn.Locals[no]
	}
	return nil
}

// lvalue resolves an expression that must be assignable.
func (b *bodyCtx) lvalue(e ast.Expression) Expr {
	v := b.exprInner(e, nil)
	if isUnresolved(v) {
		return v
	}
	switch t := v.Ty().(type) {
	case Ref:
		return v
	case StorageRef:
		if t.Immutable && (b.fn == nil || b.fn.Kind != ast.FnConstructor) {
			b.ns.Errorf(e.ExprLoc(), "immutable variable can only be assigned in the constructor")
		}
		if b.fn != nil {
			b.fn.WritesState = true
			if b.fn.Mutability == MutPure || b.fn.Mutability == MutView {
				b.ns.Errorf(e.ExprLoc(), "%s function cannot write contract storage", b.fn.Mutability)
			}
		}
		return v
	}
	b.ns.Errorf(e.ExprLoc(), "expression is not assignable")
	return unresolvedExpr(e.ExprLoc())
}

// exprInner is the main resolution dispatch. The hint, when non-nil,
// narrows literals at their use site.
func (b *bodyCtx) exprInner(e ast.Expression, hint Type) Expr {
	ns := b.ns
	switch x := e.(type) {
	case *ast.BoolLiteral:
		return &BoolLit{exprBase: exprBase{Loc: x.Loc, Type: Bool{}}, Value: x.Value}

	case *ast.NumberLiteral:
		v, ok := parseNumber(x.Text)
		if !ok {
			ns.Errorf(x.Loc, "invalid number literal")
			return unresolvedExpr(x.Loc)
		}
		if x.Unit != "" {
			if ns.Target.Kind == target.Solana && (x.Unit == "wei" || x.Unit == "gwei" || x.Unit == "ether") {
				ns.Warnf(x.Loc, "ethereum currency unit used while targeting %s", ns.Target.Kind)
			}
			v.Mul(v, new(big.Rat).SetInt(unitScale[x.Unit]))
		}
		return b.numberValue(x.Loc, v, hint)

	case *ast.RationalLiteral:
		v, ok := parseNumber(x.Text)
		if !ok {
			ns.Errorf(x.Loc, "invalid number literal")
			return unresolvedExpr(x.Loc)
		}
		if x.Unit != "" {
			v.Mul(v, new(big.Rat).SetInt(unitScale[x.Unit]))
		}
		return b.numberValue(x.Loc, v, hint)

	case *ast.HexNumberLiteral:
		n, ok := parseHexNumber(x.Text)
		if !ok {
			ns.Errorf(x.Loc, "invalid hex literal")
			return unresolvedExpr(x.Loc)
		}
		// Hex literals widen into bytesN by left-padding with zeros.
		if bt, isBytes := derefHint(hint).(Bytes); isBytes {
			if (n.BitLen()+7)/8 > int(bt.N) {
				ns.Errorf(x.Loc, "hex literal does not fit %s", bt)
				return unresolvedExpr(x.Loc)
			}
			buf := make([]byte, bt.N)
			n.FillBytes(buf)
			return &BytesLit{exprBase: exprBase{Loc: x.Loc, Type: bt}, Value: buf}
		}
		return b.numberValue(x.Loc, new(big.Rat).SetInt(n), hint)

	case *ast.StringLiteral:
		ty := Type(String{})
		if _, isBytes := derefHint(hint).(DynamicBytes); isBytes {
			ty = DynamicBytes{}
		}
		return &BytesLit{exprBase: exprBase{Loc: x.Loc, Type: ty}, Value: []byte(x.Value)}

	case *ast.HexLiteral:
		data, err := hex.DecodeString(x.Value)
		if err != nil {
			ns.Errorf(x.Loc, "invalid hex string")
			return unresolvedExpr(x.Loc)
		}
		if bt, isBytes := derefHint(hint).(Bytes); isBytes && int(bt.N) >= len(data) {
			buf := make([]byte, bt.N)
			copy(buf[int(bt.N)-len(data):], data)
			return &BytesLit{exprBase: exprBase{Loc: x.Loc, Type: bt}, Value: buf}
		}
		return &BytesLit{exprBase: exprBase{Loc: x.Loc, Type: DynamicBytes{}}, Value: data}

	case *ast.AddressLiteral:
		id, err := base58.Decode(x.Value)
		if err != nil || len(id) != ns.Target.AddressLength {
			ns.Errorf(x.Loc, "'%s' is not a valid address literal", x.Value)
			return unresolvedExpr(x.Loc)
		}
		return &BytesLit{exprBase: exprBase{Loc: x.Loc, Type: Address{}}, Value: id}

	case *ast.ArrayLiteral:
		return b.arrayLiteral(x, hint)

	case *ast.IdentifierExpr:
		return b.identifier(x)

	case *ast.MemberAccess:
		return b.memberAccess(x)

	case *ast.Subscript:
		return b.subscript(x)

	case *ast.BinaryExpr:
		return b.binary(x, hint)

	case *ast.UnaryExpr:
		return b.unary(x, hint)

	case *ast.AssignExpr:
		return b.assign(x)

	case *ast.TernaryExpr:
		cond := b.cond(x.Cond)
		t := b.exprForType(x.True, hint)
		f := b.exprForType(x.False, hint)
		ty := Deref(t.Ty())
		if isUnresolved(t) || isUnresolved(f) {
			return unresolvedExpr(x.Loc)
		}
		f = b.coerce(f, ty)
		return &Ternary{exprBase: exprBase{Loc: x.Loc, Type: ty}, Cond: cond, True: t, False: f}

	case *ast.CallExpr:
		return b.call(x, hint)

	case *ast.CallOptions:
		// Options are consumed by the enclosing call; bare options are
		// an error.
		ns.Errorf(x.Loc, "call options must be followed by an argument list")
		return unresolvedExpr(x.Loc)

	case *ast.NewExpr:
		ns.Errorf(x.Loc, "'new' must be followed by an argument list")
		return unresolvedExpr(x.Loc)

	case *ast.TupleExpr:
		ns.Errorf(x.Loc, "tuple expression is only valid in destructuring position")
		return unresolvedExpr(x.Loc)

	case *ast.ElementaryType:
		ty, ok := b.r.elementaryType(x.Loc, x.Name, x.Payable)
		if !ok {
			ns.Errorf(x.Loc, "unknown type '%s'", x.Name)
			return unresolvedExpr(x.Loc)
		}
		return &typeMarker{exprBase: exprBase{Loc: x.Loc, Type: Void{}}, target: ty}

	case *ast.MappingType, *ast.FunctionType:
		ns.Errorf(e.ExprLoc(), "type is not valid in expression position")
		return unresolvedExpr(e.ExprLoc())
	}
	ns.Errorf(e.ExprLoc(), "unsupported expression")
	return unresolvedExpr(e.ExprLoc())
}

func derefHint(hint Type) Type {
	if hint == nil {
		return nil
	}
	return Deref(hint)
}

// numberValue types a rational constant: integral values narrow to the
// hint or the smallest fitting type; true rationals stay Rational and
// must be consumed by folding or coercion.
func (b *bodyCtx) numberValue(loc diag.Loc, v *big.Rat, hint Type) Expr {
	ns := b.ns
	if v.IsInt() {
		n := v.Num()
		if hint != nil {
			h := Deref(hint)
			switch h.(type) {
			case Int, Uint:
				if !fitsInto(n, h) {
					ns.Errorf(loc, "literal %s does not fit %s", n, ns.TypeName(h))
					return unresolvedExpr(loc)
				}
				return &NumberLit{exprBase: exprBase{Loc: loc, Type: h}, Value: n}
			case Address:
				if n.Sign() == 0 {
					return &BytesLit{
						exprBase: exprBase{Loc: loc, Type: h},
						Value:    make([]byte, ns.Target.AddressLength),
					}
				}
			}
		}
		var ty Type
		if n.Sign() < 0 {
			w := (n.BitLen() + 8) / 8 * 8
			if w > 256 {
				w = 256
			}
			if w == 0 {
				w = 8
			}
			ty = Int{Width: uint16(w)}
		} else {
			ty = smallestUint(n)
		}
		return &NumberLit{exprBase: exprBase{Loc: loc, Type: ty}, Value: n}
	}
	return &RationalLit{exprBase: exprBase{Loc: loc, Type: Rational{}}, Value: v}
}

// arrayLiteral types [a, b, c]; the empty literal is an error.
func (b *bodyCtx) arrayLiteral(x *ast.ArrayLiteral, hint Type) Expr {
	ns := b.ns
	if len(x.Items) == 0 {
		ns.Errorf(x.Loc, "array requires at least one element")
		return unresolvedExpr(x.Loc)
	}
	var elemHint Type
	if arr, ok := derefHint(hint).(Array); ok {
		elemHint = elemAfterOneDim(arr)
	}
	first := b.exprForType(x.Items[0], elemHint)
	if isUnresolved(first) {
		return unresolvedExpr(x.Loc)
	}
	elemTy := Deref(first.Ty())
	items := []Expr{first}
	for _, item := range x.Items[1:] {
		v := b.coerce(b.exprForType(item, elemTy), elemTy)
		items = append(items, v)
	}
	ty := Array{Elem: elemTy, Dims: []ArrayDim{{Fixed: true, Length: uint64(len(items))}}}
	return &ArrayLit{exprBase: exprBase{Loc: x.Loc, Type: ty}, Items: items}
}

// identifier resolves a bare name per the lookup order: locals,
// parameters, contract members along the MRO, file scope, builtins.
func (b *bodyCtx) identifier(x *ast.IdentifierExpr) Expr {
	ns := b.ns
	if b.fn != nil {
		if no, ok := b.lookupLocal(x.Name); ok {
			v := b.fn.Locals[no]
			ty := v.Type
			if ty == nil {
				return unresolvedExpr(x.Loc)
			}
			if _, isRef := ty.(StorageRef); !isRef {
				ty = Ref{Inner: ty}
			}
			return &LocalRef{exprBase: exprBase{Loc: x.Loc, Type: ty}, VarNo: no}
		}
	}

	if sym := b.r.lookupSymbol(b.tctx, x.Name); sym != nil {
		return b.symbolExpr(x.Loc, sym)
	}

	switch x.Name {
	case "msg", "block", "tx", "abi":
		return &nsMarker{exprBase: exprBase{Loc: x.Loc, Type: Void{}}, name: x.Name}
	case "this":
		if b.fn == nil || b.fn.ContractNo < 0 {
			ns.Errorf(x.Loc, "'this' is only valid inside a contract")
			return unresolvedExpr(x.Loc)
		}
		return &Builtin{
			exprBase: exprBase{Loc: x.Loc, Type: Contract{Index: b.fn.ContractNo}},
			Kind:     BuiltinAddressThis,
		}
	case "require", "assert", "revert", "keccak256", "sha256", "ripemd160", "blake2b_256",
		"blockhash", "random", "gasleft", "print", "type", "selfdestruct":
		return &nsMarker{exprBase: exprBase{Loc: x.Loc, Type: Void{}}, name: x.Name}
	case "super":
		return &nsMarker{exprBase: exprBase{Loc: x.Loc, Type: Void{}}, name: "super"}
	}

	hint := ""
	if s := diag.Suggest(x.Name, b.r.visibleNames(b.tctx)); s != "" {
		hint = " (did you mean '" + s + "'?)"
	}
	ns.Errorf(x.Loc, "unknown identifier '%s'%s", x.Name, hint)
	return unresolvedExpr(x.Loc)
}

// symbolExpr converts a resolved symbol into an expression or marker.
func (b *bodyCtx) symbolExpr(loc diag.Loc, sym *symbol) Expr {
	ns := b.ns
	switch sym.Kind {
	case symVariable:
		// Contract member or file constant?
		if cn := b.symbolContract(sym); cn >= 0 {
			v := ns.Contracts[cn].Variables[sym.no()]
			if v.Constant {
				return &ConstVar{
					exprBase:   exprBase{Loc: loc, Type: v.Type},
					ContractNo: cn, VarNo: sym.no(),
				}
			}
			return &StorageVarRef{
				exprBase:   exprBase{Loc: loc, Type: StorageRef{Inner: v.Type, Immutable: v.Immutable}},
				ContractNo: cn, VarNo: sym.no(),
			}
		}
		v := ns.Constants[sym.no()]
		return &ConstVar{exprBase: exprBase{Loc: loc, Type: v.Type}, ContractNo: -1, VarNo: sym.no()}
	case symFunction:
		return &overloadMarker{exprBase: exprBase{Loc: loc, Type: Void{}}, nos: append([]int(nil), sym.Nos...)}
	case symContract, symEnum, symStruct, symError, symUserType, symEvent, symNamespace:
		return &symbolMarker{exprBase: exprBase{Loc: loc, Type: Void{}}, sym: sym}
	}
	return unresolvedExpr(loc)
}

// symbolContract finds which contract's table produced a variable
// symbol by scanning the MRO; -1 means file scope.
func (b *bodyCtx) symbolContract(sym *symbol) int {
	if b.tctx.contractNo < 0 {
		return -1
	}
	mro := b.ns.Contracts[b.tctx.contractNo].MRO
	if len(mro) == 0 {
		mro = []int{b.tctx.contractNo}
	}
	for _, cn := range mro {
		if b.r.contractSyms[cn].lookup(sym.Name) == sym {
			return cn
		}
	}
	return -1
}
