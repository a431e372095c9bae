package sema

import (
	"github.com/mr-tron/base58"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/target"
)

var contractAnnotations = []string{"program_id"}
var constructorAnnotations = []string{"payer", "seed", "bump", "space", "selector"}
var functionAnnotations = []string{"account", "signer", "mutableAccount", "mutableSigner", "selector"}
var paramAnnotations = []string{"payer", "seed", "bump", "space"}

// resolveContractAnnotations validates @program_id and rejects
// anything else at contract level.
func (r *resolver) resolveContractAnnotations(no int) {
	ns := r.ns
	c := ns.Contracts[no]
	def := r.contractDefs[no]
	for _, a := range def.Annotations {
		switch a.Name.Name {
		case "program_id":
			if ns.Target.Kind != target.Solana {
				ns.Errorf(a.Loc, "annotation '@program_id' is only valid when targeting solana")
				continue
			}
			if c.ProgramID != nil {
				ns.Diag(diag.Error(a.Loc, "duplicate '@program_id' annotation").
					WithNote(c.ProgramIDLoc, "previous annotation"))
				continue
			}
			if len(a.Args) != 1 {
				ns.Errorf(a.Loc, "'@program_id' takes a single base58 string literal")
				continue
			}
			lit, ok := a.Args[0].(*ast.StringLiteral)
			if !ok {
				ns.Errorf(a.Args[0].ExprLoc(), "'@program_id' takes a base58 string literal")
				continue
			}
			id, err := base58.Decode(lit.Value)
			if err != nil || len(id) != 32 {
				ns.Errorf(lit.Loc, "'%s' is not a valid base58 program id", lit.Value)
				continue
			}
			c.ProgramID = id
			c.ProgramIDLoc = a.Loc
		default:
			r.unknownAnnotation(a, contractAnnotations)
		}
	}
}

// resolveFunctionAnnotations validates the constructor/function
// annotation sets, both above the declaration and bound to parameters.
func (r *resolver) resolveFunctionAnnotations(ctx typeCtx, fn *Function, def *ast.FunctionDefinition) {
	ns := r.ns
	isCtor := fn.Kind == ast.FnConstructor
	solana := ns.Target.Kind == target.Solana

	seenBump := false
	for _, a := range def.Annotations {
		switch {
		case a.Name.Name == "selector":
			r.resolveSelectorOverride(ctx, fn, a)
		case isCtor && a.Name.Name == "payer":
			if !solana {
				ns.Errorf(a.Loc, "annotation '@payer' is only valid when targeting solana")
				continue
			}
			if fn.Annotations.Payer != "" {
				ns.Diag(diag.Error(a.Loc, "duplicate '@payer' annotation").
					WithNote(fn.Annotations.PayerLoc, "previous annotation"))
				continue
			}
			if len(a.Args) != 1 {
				ns.Errorf(a.Loc, "'@payer' takes a single account name")
				continue
			}
			id, ok := a.Args[0].(*ast.IdentifierExpr)
			if !ok {
				ns.Errorf(a.Args[0].ExprLoc(), "'@payer' takes an account name")
				continue
			}
			fn.Annotations.Payer = id.Name
			fn.Annotations.PayerLoc = a.Loc
		case isCtor && a.Name.Name == "seed":
			if !solana {
				ns.Errorf(a.Loc, "annotation '@seed' is only valid when targeting solana")
				continue
			}
			if seenBump {
				ns.Errorf(a.Loc, "'@seed' must come before '@bump'")
			}
			if len(a.Args) != 1 {
				ns.Errorf(a.Loc, "'@seed' takes a single expression")
				continue
			}
			fn.Annotations.Seeds = append(fn.Annotations.Seeds, r.annotationExpr(ctx, fn, a.Args[0]))
		case isCtor && a.Name.Name == "bump":
			if !solana {
				ns.Errorf(a.Loc, "annotation '@bump' is only valid when targeting solana")
				continue
			}
			if fn.Annotations.Bump != nil {
				ns.Errorf(a.Loc, "duplicate '@bump' annotation")
				continue
			}
			seenBump = true
			if len(a.Args) != 1 {
				ns.Errorf(a.Loc, "'@bump' takes a single expression")
				continue
			}
			fn.Annotations.Bump = r.annotationExpr(ctx, fn, a.Args[0])
		case isCtor && a.Name.Name == "space":
			if !solana {
				ns.Errorf(a.Loc, "annotation '@space' is only valid when targeting solana")
				continue
			}
			if fn.Annotations.Space != nil {
				ns.Errorf(a.Loc, "duplicate '@space' annotation")
				continue
			}
			if len(a.Args) != 1 {
				ns.Errorf(a.Loc, "'@space' takes a single constant expression")
				continue
			}
			fn.Annotations.Space = r.annotationExpr(ctx, fn, a.Args[0])
		case !isCtor && accountAnnotationKind(a.Name.Name) != nil:
			if !solana {
				ns.Errorf(a.Loc, "annotation '@%s' is only valid when targeting solana", a.Name.Name)
				continue
			}
			kind := accountAnnotationKind(a.Name.Name)
			if len(a.Args) != 1 {
				ns.Errorf(a.Loc, "'@%s' takes a single account name", a.Name.Name)
				continue
			}
			id, ok := a.Args[0].(*ast.IdentifierExpr)
			if !ok {
				ns.Errorf(a.Args[0].ExprLoc(), "'@%s' takes an account name", a.Name.Name)
				continue
			}
			for _, acc := range fn.Accounts {
				if acc.Name == id.Name {
					ns.Diag(diag.Error(a.Loc, "duplicate account annotation for '%s'", id.Name).
						WithNote(acc.Loc, "previous annotation"))
				}
			}
			fn.Accounts = append(fn.Accounts, AccountAnnotation{
				Loc: a.Loc, Name: id.Name, Writable: kind.writable, Signer: kind.signer,
			})
		default:
			known := functionAnnotations
			if isCtor {
				known = constructorAnnotations
			}
			r.unknownAnnotation(a, known)
		}
	}

	// Annotations written immediately before a parameter bind that
	// parameter; only the recognized parameter-binding set is legal
	// there.
	for i, p := range def.Params {
		for _, a := range p.Annotations {
			if !solana || !isCtor {
				ns.Errorf(a.Loc, "annotation '@%s' not valid on a parameter", a.Name.Name)
				continue
			}
			switch a.Name.Name {
			case "seed":
				fn.Annotations.Seeds = append(fn.Annotations.Seeds, &LocalRef{
					exprBase: exprBase{Loc: p.Loc, Type: fn.Params[i].Type}, VarNo: i,
				})
			case "bump":
				if fn.Annotations.Bump != nil {
					ns.Errorf(a.Loc, "duplicate '@bump' annotation")
					continue
				}
				fn.Annotations.Bump = &LocalRef{
					exprBase: exprBase{Loc: p.Loc, Type: fn.Params[i].Type}, VarNo: i,
				}
			case "space":
				if fn.Annotations.Space != nil {
					ns.Errorf(a.Loc, "duplicate '@space' annotation")
					continue
				}
				fn.Annotations.Space = &LocalRef{
					exprBase: exprBase{Loc: p.Loc, Type: fn.Params[i].Type}, VarNo: i,
				}
			case "payer":
				if fn.Annotations.Payer != "" {
					ns.Errorf(a.Loc, "duplicate '@payer' annotation")
					continue
				}
				fn.Annotations.Payer = p.Name.Name
				fn.Annotations.PayerLoc = a.Loc
				fn.Params[i].Recipient = true
			default:
				hint := ""
				if s := diag.Suggest(a.Name.Name, paramAnnotations); s != "" {
					hint = " (did you mean '@" + s + "'?)"
				}
				ns.Errorf(a.Loc, "annotation '@%s' not valid on a parameter%s", a.Name.Name, hint)
			}
		}
	}

	if isCtor && solana && fn.Annotations.Payer == "" {
		ns.Errorf(def.Loc, "@payer annotation required for constructor")
	}
}

type accountKind struct{ writable, signer bool }

func accountAnnotationKind(name string) *accountKind {
	switch name {
	case "account":
		return &accountKind{}
	case "signer":
		return &accountKind{signer: true}
	case "mutableAccount":
		return &accountKind{writable: true}
	case "mutableSigner":
		return &accountKind{writable: true, signer: true}
	}
	return nil
}

// annotationExpr resolves an annotation argument: a literal constant
// or a reference to one of the function's parameters.
func (r *resolver) annotationExpr(ctx typeCtx, fn *Function, e ast.Expression) Expr {
	ns := r.ns
	if id, ok := e.(*ast.IdentifierExpr); ok {
		for i, p := range fn.Params {
			if p.Name == id.Name {
				return &LocalRef{exprBase: exprBase{Loc: id.Loc, Type: p.Type}, VarNo: i}
			}
		}
	}
	if val, ok := r.constEval(ctx, e); ok && val.IsInt() {
		ty := smallestUint(val.Num())
		return &NumberLit{exprBase: exprBase{Loc: e.ExprLoc(), Type: ty}, Value: val.Num()}
	}
	if lit, ok := e.(*ast.StringLiteral); ok {
		return &BytesLit{
			exprBase: exprBase{Loc: lit.Loc, Type: DynamicBytes{}},
			Value:    []byte(lit.Value),
		}
	}
	ns.Errorf(e.ExprLoc(), "annotation argument must be a literal or a parameter name")
	return &BytesLit{exprBase: exprBase{Loc: e.ExprLoc(), Type: Unresolved{}}}
}

// resolveSelectorOverride handles @selector([b0, b1, …]).
func (r *resolver) resolveSelectorOverride(ctx typeCtx, fn *Function, a ast.Annotation) {
	ns := r.ns
	if fn.SelectorOverride != nil {
		ns.Errorf(a.Loc, "duplicate '@selector' annotation")
		return
	}
	if len(a.Args) != 1 {
		ns.Errorf(a.Loc, "'@selector' takes a byte array literal")
		return
	}
	arr, ok := a.Args[0].(*ast.ArrayLiteral)
	if !ok {
		ns.Errorf(a.Args[0].ExprLoc(), "'@selector' takes a byte array literal, e.g. @selector([1, 2, 3, 4])")
		return
	}
	want := ns.Target.SelectorLength()
	if len(arr.Items) != want {
		ns.Errorf(arr.Loc, "'@selector' must be %d bytes long for target %s", want, ns.Target.Kind)
		return
	}
	sel := make([]byte, 0, want)
	for _, item := range arr.Items {
		v, ok := r.constEval(ctx, item)
		if !ok || !v.IsInt() || v.Sign() < 0 || v.Num().BitLen() > 8 {
			ns.Errorf(item.ExprLoc(), "'@selector' elements must be constant bytes")
			return
		}
		sel = append(sel, byte(v.Num().Uint64()))
	}
	fn.SelectorOverride = sel
}

// unknownAnnotation reports an unrecognized annotation with a hint.
func (r *resolver) unknownAnnotation(a ast.Annotation, known []string) {
	hint := ""
	if s := diag.Suggest(a.Name.Name, known); s != "" {
		hint = " (did you mean '@" + s + "'?)"
	}
	r.ns.Errorf(a.Loc, "unknown annotation '@%s'%s", a.Name.Name, hint)
}
