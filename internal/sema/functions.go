package sema

import (
	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
)

// bodyCtx is the mutable state of one function-body resolution:
// lexical scopes over the vartable, loop depth for break/continue, and
// the unchecked-arithmetic flag.
type bodyCtx struct {
	r    *resolver
	ns   *Namespace
	fn   *Function
	fnNo int
	tctx typeCtx

	scopes    []map[string]int
	loops     int
	unchecked bool
}

// resolveBodies runs the body pass over every function that has one.
func (r *resolver) resolveBodies() {
	ns := r.ns
	for fnNo, fn := range ns.Functions {
		if !fn.HasBody || fn.IsAccessor {
			continue
		}
		def := r.funcDefs[fnNo]
		if def == nil || def.Body == nil {
			continue
		}
		r.resolveBody(fnNo, fn, def)
	}
	// Constant initializers resolve in their own context.
	for no, def := range r.constDefs {
		v := ns.Constants[no]
		if def.Initializer == nil {
			continue
		}
		fileNo := 0
		if def.Loc.InFile() {
			fileNo = def.Loc.FileNo
		}
		b := &bodyCtx{r: r, ns: ns, tctx: r.typeCtx(fileNo, -1)}
		init := b.expr(def.Initializer)
		v.Initializer = b.coerce(init, v.Type)
	}
	// State variable initializers.
	for cn, c := range ns.Contracts {
		for _, v := range c.Variables {
			def := r.varDefs[v]
			if def == nil || def.Initializer == nil {
				continue
			}
			b := &bodyCtx{r: r, ns: ns, tctx: r.typeCtx(c.FileNo, cn)}
			init := b.expr(def.Initializer)
			v.Initializer = b.coerce(init, v.Type)
		}
	}
}

// resolveBody types one function body.
func (r *resolver) resolveBody(fnNo int, fn *Function, def *ast.FunctionDefinition) {
	ns := r.ns
	b := &bodyCtx{
		r: r, ns: ns, fn: fn, fnNo: fnNo,
		tctx: r.typeCtx(fn.FileNo, fn.ContractNo),
	}
	b.pushScope()
	defer b.popScope()

	// Parameters occupy the first vartable slots.
	for i, p := range fn.Params {
		v := &Variable{Name: p.Name, Loc: p.Loc, Type: p.Type, Assigned: true}
		fn.Locals = append(fn.Locals, v)
		if p.Name != "" {
			b.bind(p.Name, i)
		}
	}
	// Named returns get slots too.
	for _, ret := range fn.Returns {
		if ret.Name == "" {
			continue
		}
		no := len(fn.Locals)
		fn.Locals = append(fn.Locals, &Variable{Name: ret.Name, Loc: ret.Loc, Type: ret.Type, Assigned: true})
		b.bind(ret.Name, no)
	}

	r.resolveModifierList(b, fn, def)

	fn.Body = b.stmts(def.Body.Stmts, def.Body.Unchecked)

	if fn.Kind == ast.FnModifier {
		found := false
		var walk func(stmts []Stmt)
		walk = func(stmts []Stmt) {
			for _, s := range stmts {
				switch x := s.(type) {
				case *PlaceholderStmt:
					found = true
				case *BlockStmt:
					walk(x.Stmts)
				case *IfStmt:
					walk(x.Then)
					walk(x.Else)
				case *WhileStmt:
					walk(x.Body)
				case *DoWhileStmt:
					walk(x.Body)
				case *ForStmt:
					walk(x.Body)
				}
			}
		}
		walk(fn.Body)
		if !found {
			ns.Errorf(def.Loc, "modifier '%s' has no '_' placeholder", fn.Name)
		}
	}

	// A function with declared returns must either terminate on every
	// path or name all of its return variables.
	if len(fn.Returns) > 0 && fn.Kind == ast.FnFunction {
		allNamed := true
		for _, ret := range fn.Returns {
			if ret.Name == "" {
				allNamed = false
			}
		}
		if !allNamed && !stmtsTerminate(fn.Body) {
			for _, ret := range fn.Returns {
				if _, isRef := ret.Type.(StorageRef); isRef {
					ns.Errorf(def.Loc, "function '%s' returns a storage reference and must return explicitly", fn.Name)
					return
				}
			}
			ns.Errorf(def.Loc, "function '%s' does not return a value on all paths", fn.Name)
		}
	}

	// Unused local warnings, skipping parameters and named returns.
	first := len(fn.Params) + countNamedReturns(fn)
	for _, v := range fn.Locals[first:] {
		if !v.Read && v.Name != "" {
			ns.Warnf(v.Loc, "local variable '%s' is unused", v.Name)
		}
	}
}

func countNamedReturns(fn *Function) int {
	n := 0
	for _, ret := range fn.Returns {
		if ret.Name != "" {
			n++
		}
	}
	return n
}

// resolveModifierList types the modifier chain and base constructor
// invocations on a function definition.
func (r *resolver) resolveModifierList(b *bodyCtx, fn *Function, def *ast.FunctionDefinition) {
	ns := r.ns
	for _, m := range def.Modifiers {
		sym := r.lookupQualified(b.tctx, m.Name)
		if sym == nil {
			hint := ""
			if s := diag.Suggest(pathName(m.Name), r.visibleNames(b.tctx)); s != "" {
				hint = " (did you mean '" + s + "'?)"
			}
			ns.Errorf(m.Loc, "unknown modifier '%s'%s", pathName(m.Name), hint)
			continue
		}
		switch sym.Kind {
		case symFunction:
			modNo := -1
			for _, cand := range sym.Nos {
				if ns.Functions[cand].Kind == ast.FnModifier {
					modNo = cand
					break
				}
			}
			if modNo == -1 {
				ns.Errorf(m.Loc, "'%s' is a function, not a modifier", pathName(m.Name))
				continue
			}
			mod := ns.Functions[modNo]
			if len(m.Args) != len(mod.Params) {
				ns.Errorf(m.Loc, "modifier '%s' expects %d arguments, %d given",
					mod.Name, len(mod.Params), len(m.Args))
				continue
			}
			inv := ModifierInvocation{Loc: m.Loc, FunctionNo: modNo, BaseNo: -1}
			for i, a := range m.Args {
				inv.Args = append(inv.Args, b.coerce(b.expr(a), mod.Params[i].Type))
			}
			fn.Modifiers = append(fn.Modifiers, inv)
			mod.Called = true
		case symContract:
			if fn.Kind != ast.FnConstructor {
				ns.Errorf(m.Loc, "base contract arguments are only valid on a constructor")
				continue
			}
			baseNo := sym.no()
			inv := ModifierInvocation{Loc: m.Loc, FunctionNo: -1, BaseNo: baseNo}
			ctor := ns.ContractConstructor(baseNo)
			if ctor != nil {
				params := ns.Functions[*ctor].Params
				if len(m.Args) != len(params) {
					ns.Errorf(m.Loc, "constructor of '%s' expects %d arguments, %d given",
						ns.Contracts[baseNo].Name, len(params), len(m.Args))
					continue
				}
				for i, a := range m.Args {
					inv.Args = append(inv.Args, b.coerce(b.expr(a), params[i].Type))
				}
			} else if len(m.Args) > 0 {
				ns.Errorf(m.Loc, "contract '%s' has no constructor", ns.Contracts[baseNo].Name)
				continue
			}
			fn.Modifiers = append(fn.Modifiers, inv)
		default:
			ns.Errorf(m.Loc, "'%s' is a %s, not a modifier", pathName(m.Name), sym.Kind)
		}
	}
}

// ContractConstructor returns the namespace index of a contract's
// constructor, or nil.
func (ns *Namespace) ContractConstructor(contractNo int) *int {
	for fnNo, fn := range ns.Functions {
		if fn.ContractNo == contractNo && fn.Kind == ast.FnConstructor {
			no := fnNo
			return &no
		}
	}
	return nil
}

func (b *bodyCtx) pushScope() { b.scopes = append(b.scopes, map[string]int{}) }
func (b *bodyCtx) popScope()  { b.scopes = b.scopes[:len(b.scopes)-1] }

func (b *bodyCtx) bind(name string, varNo int) {
	b.scopes[len(b.scopes)-1][name] = varNo
}

// lookupLocal finds a name innermost-scope-first.
func (b *bodyCtx) lookupLocal(name string) (int, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if no, ok := b.scopes[i][name]; ok {
			return no, true
		}
	}
	return 0, false
}

// declareLocal adds a vartable slot with shadowing diagnostics: an
// error for a duplicate in the same scope, a warning when a local
// shadows a contract member or file-scope symbol.
func (b *bodyCtx) declareLocal(name string, loc diag.Loc, ty Type) int {
	ns := b.ns
	if name != "" {
		if prevNo, ok := b.scopes[len(b.scopes)-1][name]; ok {
			ns.Diag(diag.Error(loc, "'%s' is already declared in this scope", name).
				WithNote(b.fn.Locals[prevNo].Loc, "previous declaration"))
		} else if _, shadows := b.lookupLocal(name); shadows {
			// An outer local: legal, silent.
		} else if b.r.lookupSymbol(b.tctx, name) != nil {
			ns.Warnf(loc, "declaration of '%s' shadows an outer symbol", name)
		}
	}
	no := len(b.fn.Locals)
	b.fn.Locals = append(b.fn.Locals, &Variable{Name: name, Loc: loc, Type: ty})
	if name != "" {
		b.bind(name, no)
	}
	return no
}
