package sema

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
)

// typeCtx is where a type expression is being resolved: which file's
// symbols are visible and which contract's members (via MRO).
type typeCtx struct {
	fileNo     int
	contractNo int // -1 outside a contract
}

func (r *resolver) typeCtx(fileNo, contractNo int) typeCtx {
	return typeCtx{fileNo: fileNo, contractNo: contractNo}
}

// declareContractTypes installs a contract's nested type declarations
// during the declarative pass so cross-references resolve regardless of
// order.
func (r *resolver) declareContractTypes(contractNo int, d *ast.ContractDefinition) {
	ns := r.ns
	tab := r.contractSyms[contractNo]
	for _, part := range d.Parts {
		switch p := part.(type) {
		case *ast.StructDefinition:
			no := len(ns.Structs)
			ns.Structs = append(ns.Structs, &StructDecl{
				Name: p.Name.Name, Loc: p.Name.Loc, ContractNo: contractNo, Doc: p.Doc,
			})
			r.structDefs = append(r.structDefs, p)
			tab.define(ns, &symbol{Kind: symStruct, Name: p.Name.Name, Loc: p.Name.Loc, Nos: []int{no}})
		case *ast.EnumDefinition:
			no := r.declareEnum(p, contractNo)
			tab.define(ns, &symbol{Kind: symEnum, Name: p.Name.Name, Loc: p.Name.Loc, Nos: []int{no}})
		case *ast.EventDefinition:
			no := len(ns.Events)
			ns.Events = append(ns.Events, &EventDecl{
				Name: p.Name.Name, Loc: p.Name.Loc, ContractNo: contractNo,
				Anonymous: p.Anonymous, Doc: p.Doc,
			})
			r.eventDefs = append(r.eventDefs, p)
			tab.define(ns, &symbol{Kind: symEvent, Name: p.Name.Name, Loc: p.Name.Loc, Nos: []int{no}})
		case *ast.ErrorDefinition:
			no := len(ns.Errors)
			ns.Errors = append(ns.Errors, &ErrorDecl{
				Name: p.Name.Name, Loc: p.Name.Loc, ContractNo: contractNo, Doc: p.Doc,
			})
			r.errorDefs = append(r.errorDefs, p)
			tab.define(ns, &symbol{Kind: symError, Name: p.Name.Name, Loc: p.Name.Loc, Nos: []int{no}})
		case *ast.UserTypeDefinition:
			no := len(ns.UserTypes)
			ns.UserTypes = append(ns.UserTypes, &UserTypeDecl{
				Name: p.Name.Name, Loc: p.Name.Loc, ContractNo: contractNo,
				Type: Unresolved{}, Doc: p.Doc,
			})
			r.userTypeDefs = append(r.userTypeDefs, p)
			tab.define(ns, &symbol{Kind: symUserType, Name: p.Name.Name, Loc: p.Name.Loc, Nos: []int{no}})
		case *ast.UsingDirective:
			r.pendingUsing = append(r.pendingUsing, pendingUsing{
				fileNo: ns.Contracts[contractNo].FileNo, contractNo: contractNo, dir: p,
			})
		}
	}
}

// lookupSymbol resolves a name through the context: contract members
// along the MRO first, then file scope.
func (r *resolver) lookupSymbol(ctx typeCtx, name string) *symbol {
	if ctx.contractNo >= 0 {
		mro := r.ns.Contracts[ctx.contractNo].MRO
		if len(mro) == 0 {
			mro = []int{ctx.contractNo}
		}
		for _, cn := range mro {
			if s := r.contractSyms[cn].lookup(name); s != nil {
				return s
			}
		}
	}
	if ctx.fileNo >= 0 && ctx.fileNo < len(r.ns.fileSymbols) {
		if s := r.ns.fileSymbols[ctx.fileNo].lookup(name); s != nil {
			return s
		}
	}
	return nil
}

// visibleNames collects candidate names for suggestions.
func (r *resolver) visibleNames(ctx typeCtx) []string {
	var names []string
	if ctx.contractNo >= 0 {
		mro := r.ns.Contracts[ctx.contractNo].MRO
		if len(mro) == 0 {
			mro = []int{ctx.contractNo}
		}
		for _, cn := range mro {
			names = append(names, r.contractSyms[cn].names()...)
		}
	}
	if ctx.fileNo >= 0 && ctx.fileNo < len(r.ns.fileSymbols) {
		names = append(names, r.ns.fileSymbols[ctx.fileNo].names()...)
	}
	return names
}

// elementaryType interprets a builtin type name; the bool result is
// false when the name is not elementary.
func (r *resolver) elementaryType(loc diag.Loc, name string, payable bool) (Type, bool) {
	switch name {
	case "bool":
		return Bool{}, true
	case "string":
		return String{}, true
	case "address":
		return Address{Payable: payable}, true
	case "bytes":
		return DynamicBytes{}, true
	case "byte":
		return Bytes{N: 1}, true
	case "uint":
		return Uint{Width: 256}, true
	case "int":
		return Int{Width: 256}, true
	}
	if strings.HasPrefix(name, "uint") {
		if w, ok := intWidth(name[4:]); ok {
			return Uint{Width: w}, true
		}
		r.ns.Errorf(loc, "'%s' is not a valid integer width; widths are 8 to 256 in steps of 8", name)
		return Unresolved{}, true
	}
	if strings.HasPrefix(name, "int") {
		if w, ok := intWidth(name[3:]); ok {
			return Int{Width: w}, true
		}
		r.ns.Errorf(loc, "'%s' is not a valid integer width; widths are 8 to 256 in steps of 8", name)
		return Unresolved{}, true
	}
	if strings.HasPrefix(name, "bytes") {
		n, err := strconv.Atoi(name[5:])
		if err == nil && n >= 1 && n <= 32 {
			return Bytes{N: uint8(n)}, true
		}
		r.ns.Errorf(loc, "'%s' is not a valid fixed bytes type; sizes are bytes1 to bytes32", name)
		return Unresolved{}, true
	}
	return nil, false
}

func intWidth(s string) (uint16, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 8 || n > 256 || n%8 != 0 {
		return 0, false
	}
	return uint16(n), true
}

// resolveType turns a type expression into a resolved Type, reporting
// problems as diagnostics and yielding Unresolved.
func (r *resolver) resolveType(ctx typeCtx, e ast.Expression) Type {
	ns := r.ns
	if e == nil {
		// The parser already reported the malformed type.
		return Unresolved{}
	}
	switch x := e.(type) {
	case *ast.ElementaryType:
		ty, ok := r.elementaryType(x.Loc, x.Name, x.Payable)
		if !ok {
			ns.Errorf(x.Loc, "unknown type '%s'", x.Name)
			return Unresolved{}
		}
		return ty
	case *ast.MappingType:
		key := r.resolveType(ctx, x.Key)
		value := r.resolveType(ctx, x.Value)
		switch key.(type) {
		case Bool, Int, Uint, Address, Bytes, String, DynamicBytes, Enum, UserType, Contract, Unresolved:
		default:
			ns.Errorf(x.Key.ExprLoc(), "%s cannot be used as a mapping key", ns.TypeName(key))
			key = Unresolved{}
		}
		return Mapping{Key: key, Value: value, KeyName: x.KeyName.Name, ValueName: x.ValueName.Name}
	case *ast.FunctionType:
		ft := FunctionTy{
			Mutability: Mutability(x.Mutability),
			External:   x.Visibility == ast.VisExternal,
		}
		for _, p := range x.Params {
			ft.Params = append(ft.Params, r.resolveType(ctx, p.Type))
		}
		for _, p := range x.Returns {
			ft.Returns = append(ft.Returns, r.resolveType(ctx, p.Type))
		}
		return ft
	case *ast.Subscript:
		return r.resolveArrayType(ctx, x)
	case *ast.IdentifierExpr:
		return r.namedType(ctx, x.Loc, x.Name, nil)
	case *ast.MemberAccess:
		// Qualified type: Namespace.T, Contract.T or import alias.
		if base, ok := x.Expr.(*ast.IdentifierExpr); ok {
			return r.namedType(ctx, x.Loc, x.Member.Name, &base.Name)
		}
		// Deeper nesting (A.B.C) resolves one level at a time.
		if inner, ok := x.Expr.(*ast.MemberAccess); ok {
			if base, ok := inner.Expr.(*ast.IdentifierExpr); ok {
				if sym := r.lookupSymbol(ctx, base.Name); sym != nil && sym.Kind == symNamespace {
					return r.namedType(typeCtx{fileNo: sym.FileNo, contractNo: -1},
						x.Loc, x.Member.Name, &inner.Member.Name)
				}
			}
		}
		ns.Errorf(x.Loc, "expression is not a type")
		return Unresolved{}
	}
	ns.Errorf(e.ExprLoc(), "expression is not a type")
	return Unresolved{}
}

// resolveArrayType collects the dimension chain of T[…][…].
func (r *resolver) resolveArrayType(ctx typeCtx, sub *ast.Subscript) Type {
	ns := r.ns
	// Innermost first: walk to the element type expression.
	var dims []ArrayDim
	var cur ast.Expression = sub
	for {
		s, ok := cur.(*ast.Subscript)
		if !ok {
			break
		}
		dim := ArrayDim{}
		if s.Index != nil {
			length, ok := r.constArrayLength(ctx, s.Index)
			if !ok {
				return Unresolved{}
			}
			dim = ArrayDim{Fixed: true, Length: length}
		}
		// Source order is outermost-last; prepend.
		dims = append([]ArrayDim{dim}, dims...)
		cur = s.Expr
	}
	elem := r.resolveType(ctx, cur)
	if _, bad := elem.(Unresolved); bad {
		return Unresolved{}
	}
	if _, isMap := elem.(Mapping); isMap {
		ns.Errorf(cur.ExprLoc(), "mapping is not a valid array element type")
		return Unresolved{}
	}
	return Array{Elem: elem, Dims: dims}
}

// constArrayLength evaluates a fixed dimension expression.
func (r *resolver) constArrayLength(ctx typeCtx, e ast.Expression) (uint64, bool) {
	ns := r.ns
	val, ok := r.constEval(ctx, e)
	if !ok {
		ns.Errorf(e.ExprLoc(), "array dimension must be a constant expression")
		return 0, false
	}
	if !val.IsInt() {
		ns.Errorf(e.ExprLoc(), "array dimension must be an integer")
		return 0, false
	}
	n := val.Num()
	if n.Sign() <= 0 {
		ns.Errorf(e.ExprLoc(), "array dimension must be positive")
		return 0, false
	}
	if n.Cmp(big.NewInt(1<<31)) > 0 {
		ns.Errorf(e.ExprLoc(), "array dimension too large")
		return 0, false
	}
	return n.Uint64(), true
}

// namedType resolves a (possibly qualified) user-declared type name.
func (r *resolver) namedType(ctx typeCtx, loc diag.Loc, name string, qualifier *string) Type {
	ns := r.ns
	var sym *symbol
	if qualifier != nil {
		q := r.lookupSymbol(ctx, *qualifier)
		if q == nil {
			ns.Errorf(loc, "unknown identifier '%s'", *qualifier)
			return Unresolved{}
		}
		switch q.Kind {
		case symNamespace:
			sym = ns.fileSymbols[q.FileNo].lookup(name)
		case symContract:
			sym = r.contractSyms[q.no()].lookup(name)
		default:
			ns.Errorf(loc, "'%s' is a %s, not a type scope", *qualifier, q.Kind)
			return Unresolved{}
		}
		if sym == nil {
			ns.Errorf(loc, "'%s' not found in '%s'", name, *qualifier)
			return Unresolved{}
		}
	} else {
		sym = r.lookupSymbol(ctx, name)
		if sym == nil {
			hint := ""
			if s := diag.Suggest(name, r.visibleNames(ctx)); s != "" {
				hint = " (did you mean '" + s + "'?)"
			}
			ns.Errorf(loc, "unknown type '%s'%s", name, hint)
			return Unresolved{}
		}
	}
	switch sym.Kind {
	case symStruct:
		return Struct{Index: sym.no()}
	case symEnum:
		return Enum{Index: sym.no()}
	case symUserType:
		return UserType{Index: sym.no()}
	case symContract:
		return Contract{Index: sym.no()}
	}
	ns.Errorf(loc, "'%s' is a %s, not a type", name, sym.Kind)
	return Unresolved{}
}
