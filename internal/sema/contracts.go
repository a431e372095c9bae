package sema

import (
	"math/big"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
)

// resolveContracts runs the contract half of the declarative pass:
// bases and C3 linearization first (member lookup needs the MRO), then
// member installation, signatures, storage layout and accessors.
func (r *resolver) resolveContracts() {
	for no := range r.ns.Contracts {
		r.declareMembers(no)
	}
	for no := range r.ns.Contracts {
		r.resolveMemberSignatures(no)
	}
	for no := range r.ns.Contracts {
		r.flattenFunctions(no)
		r.storageLayout(no)
		r.synthesizeAccessors(no)
		r.checkBodies(no)
		r.resolveContractAnnotations(no)
	}
}

// resolveBases resolves base-name lists and computes every MRO.
func (r *resolver) resolveBases() {
	ns := r.ns
	baseMap := map[int][]int{}
	for no, def := range r.contractDefs {
		c := ns.Contracts[no]
		for _, b := range def.Bases {
			ctx := r.typeCtx(c.FileNo, -1)
			sym := r.lookupQualified(ctx, b.Name)
			if sym == nil {
				ns.Errorf(b.Name.Loc, "unknown contract '%s'", pathName(b.Name))
				continue
			}
			if sym.Kind != symContract {
				ns.Errorf(b.Name.Loc, "'%s' is a %s, not a contract", pathName(b.Name), sym.Kind)
				continue
			}
			baseNo := sym.no()
			if baseNo == no {
				ns.Errorf(b.Name.Loc, "contract '%s' cannot inherit from itself", c.Name)
				continue
			}
			base := ns.Contracts[baseNo]
			if base.Kind == ast.KindLibrary {
				ns.Errorf(b.Name.Loc, "library '%s' cannot be inherited; use 'using %s for …'",
					base.Name, base.Name)
				continue
			}
			if c.Kind == ast.KindInterface && base.Kind != ast.KindInterface {
				ns.Errorf(b.Name.Loc, "interface '%s' can only inherit interfaces", c.Name)
				continue
			}
			c.Bases = append(c.Bases, baseNo)
		}
		baseMap[no] = c.Bases
	}
	for no := range r.contractDefs {
		c := ns.Contracts[no]
		mro, ok := c3Linearize(baseMap, no)
		if !ok {
			// Reported once per contract; kept with an empty MRO so
			// downstream diagnostics stay meaningful.
			ns.Diag(diag.Fatal(c.Loc, "base contracts of '%s' have a cyclic or conflicting inheritance graph", c.Name))
			c.MRO = nil
			continue
		}
		c.MRO = mro
	}
}

// lookupQualified resolves an identifier path at file/contract scope.
func (r *resolver) lookupQualified(ctx typeCtx, path ast.IdentifierPath) *symbol {
	sym := r.lookupSymbol(ctx, path.Parts[0].Name)
	for _, part := range path.Parts[1:] {
		if sym == nil {
			return nil
		}
		switch sym.Kind {
		case symNamespace:
			sym = r.ns.fileSymbols[sym.FileNo].lookup(part.Name)
		case symContract:
			sym = r.contractSyms[sym.no()].lookup(part.Name)
		default:
			return nil
		}
	}
	return sym
}

func pathName(p ast.IdentifierPath) string {
	s := p.Parts[0].Name
	for _, part := range p.Parts[1:] {
		s += "." + part.Name
	}
	return s
}

// declareMembers installs functions, modifiers and state variables of
// one contract into the namespace and the contract's symbol table.
func (r *resolver) declareMembers(no int) {
	ns := r.ns
	c := ns.Contracts[no]
	def := r.contractDefs[no]
	tab := r.contractSyms[no]

	haveConstructor := false
	for _, part := range def.Parts {
		switch p := part.(type) {
		case *ast.FunctionDefinition:
			fnNo := len(ns.Functions)
			fn := &Function{
				Name: p.Name.Name, Loc: p.Loc, Kind: p.Kind, ContractNo: no,
				FileNo: c.FileNo, HasBody: p.Body != nil, Virtual: p.Virtual,
				IsOverride: p.Override != nil, Doc: p.Doc,
			}
			switch p.Kind {
			case ast.FnConstructor:
				if haveConstructor {
					ns.Errorf(p.Loc, "contract '%s' has more than one constructor", c.Name)
				}
				haveConstructor = true
				fn.Name = c.Name
			case ast.FnFallback:
				fn.Name = "@fallback"
			case ast.FnReceive:
				fn.Name = "@receive"
			}
			ns.Functions = append(ns.Functions, fn)
			r.funcDefs = append(r.funcDefs, p)
			if p.Kind == ast.FnModifier {
				c.Modifiers = append(c.Modifiers, fnNo)
				tab.define(ns, &symbol{Kind: symFunction, Name: fn.Name, Loc: p.Loc, Nos: []int{fnNo}})
			} else if p.Kind == ast.FnFunction {
				tab.define(ns, &symbol{Kind: symFunction, Name: fn.Name, Loc: p.Name.Loc, Nos: []int{fnNo}})
			}
		case *ast.VariableDefinition:
			v := &Variable{
				Name: p.Name.Name, Loc: p.Name.Loc, Type: Unresolved{},
				Visibility: mapVisibility(p.Visibility, VisInternal),
				Constant:   p.Constant, Immutable: p.Immutable, Doc: p.Doc,
			}
			if c.Kind == ast.KindInterface {
				ns.Errorf(p.Loc, "interface '%s' cannot have state variables", c.Name)
			}
			varNo := len(c.Variables)
			c.Variables = append(c.Variables, v)
			r.varDefs[v] = p
			tab.define(ns, &symbol{Kind: symVariable, Name: v.Name, Loc: v.Loc, Nos: []int{varNo}})
		}
	}
}

func mapVisibility(v ast.Visibility, dflt Visibility) Visibility {
	switch v {
	case ast.VisPrivate:
		return VisPrivate
	case ast.VisInternal:
		return VisInternal
	case ast.VisPublic:
		return VisPublic
	case ast.VisExternal:
		return VisExternal
	}
	return dflt
}

// resolveMemberSignatures types every member function's parameters,
// returns, attributes and annotations, and every state variable's
// type.
func (r *resolver) resolveMemberSignatures(no int) {
	ns := r.ns
	c := ns.Contracts[no]
	ctx := r.typeCtx(c.FileNo, no)

	for fnNo, fn := range ns.Functions {
		if fn.ContractNo != no {
			continue
		}
		def := r.funcDefs[fnNo]
		r.resolveSignature(ctx, fn, def)

		switch fn.Kind {
		case ast.FnConstructor:
			if len(def.Returns) > 0 {
				ns.Errorf(def.Loc, "constructor cannot have return values")
			}
			if fn.Mutability == MutPure || fn.Mutability == MutView {
				ns.Errorf(fn.MutLoc, "constructor cannot be declared '%s'", fn.Mutability)
			}
		case ast.FnReceive:
			if fn.Mutability != MutPayable {
				ns.Errorf(def.Loc, "receive function must be declared payable")
			}
			if len(fn.Params) > 0 || len(fn.Returns) > 0 {
				ns.Errorf(def.Loc, "receive function takes no parameters and returns nothing")
			}
		case ast.FnFallback:
			if len(fn.Params) > 0 || len(fn.Returns) > 0 {
				ns.Errorf(def.Loc, "fallback function takes no parameters and returns nothing")
			}
		}
		if c.Kind == ast.KindInterface && fn.Kind == ast.FnFunction {
			if fn.Visibility != VisExternal {
				ns.Errorf(def.Loc, "interface function '%s' must be declared external", fn.Name)
			}
			if fn.HasBody {
				ns.Errorf(def.Loc, "interface function '%s' cannot have a body", fn.Name)
			}
		}
		r.resolveFunctionAnnotations(ctx, fn, def)
	}

	for varNo, v := range c.Variables {
		def := r.varDefs[v]
		v.Type = r.resolveType(ctx, def.Type)
		if v.Constant && def.Initializer == nil {
			ns.Errorf(def.Loc, "constant '%s' requires an initializer", v.Name)
		}
		if v.Immutable {
			if ns.ContainsMapping(v.Type) || ns.IsDynamic(v.Type) {
				ns.Errorf(def.Loc, "immutable variable '%s' must have a value type", v.Name)
			}
		}
		_ = varNo
	}
}

// resolveSignature fills in typed parameters, returns, visibility and
// mutability from the AST definition.
func (r *resolver) resolveSignature(ctx typeCtx, fn *Function, def *ast.FunctionDefinition) {
	ns := r.ns
	fn.Mutability = Mutability(def.Mutability)
	fn.MutLoc = def.MutLoc
	dfltVis := VisPublic
	if fn.ContractNo == -1 || fn.Kind == ast.FnModifier {
		dfltVis = VisInternal
	}
	fn.Visibility = mapVisibility(def.Visibility, dfltVis)
	if fn.ContractNo == -1 && def.Visibility != ast.VisDefault {
		ns.Errorf(def.Loc, "free function '%s' cannot have a visibility", fn.Name)
	}

	seen := map[string]diag.Loc{}
	for _, p := range def.Params {
		ty := r.resolveType(ctx, p.Type)
		if p.Name.Name != "" {
			if prev, dup := seen[p.Name.Name]; dup {
				ns.Diag(diag.Error(p.Name.Loc, "duplicate parameter '%s'", p.Name.Name).
					WithNote(prev, "previous declaration"))
			}
			seen[p.Name.Name] = p.Name.Loc
		}
		fn.Params = append(fn.Params, Parameter{Name: p.Name.Name, Loc: p.Loc, Type: ty})
	}
	for _, p := range def.Returns {
		ty := r.resolveType(ctx, p.Type)
		ret := Parameter{Name: p.Name.Name, Loc: p.Loc, Type: ty}
		if p.Storage == ast.LocationStorage {
			ret.Type = StorageRef{Inner: ty}
		}
		fn.Returns = append(fn.Returns, ret)
	}
}

// flattenFunctions computes the contract's reachable function list:
// walk the MRO most-derived-first and keep the first function for each
// internal signature, enforcing virtual/override pairing.
func (r *resolver) flattenFunctions(no int) {
	ns := r.ns
	c := ns.Contracts[no]
	mro := c.MRO
	if len(mro) == 0 {
		mro = []int{no}
	}
	seen := map[string]int{}
	for _, cn := range mro {
		for fnNo, fn := range ns.Functions {
			if fn.ContractNo != cn || fn.Kind == ast.FnModifier || fn.IsAccessor {
				// Accessors synthesize per contract from the flattened
				// layout; inheriting a base's would double them.
				continue
			}
			if fn.Kind == ast.FnConstructor && cn != no {
				continue // base constructors are not dispatchable here
			}
			sig := ns.internalSignature(fn)
			if prevNo, ok := seen[sig]; ok {
				prev := ns.Functions[prevNo]
				// prev is more derived: it overrides fn.
				if cn != no && prev.ContractNo != cn {
					if !fn.Virtual && fn.Kind == ast.FnFunction {
						ns.Diag(diag.Error(prev.Loc, "function '%s' overrides a non-virtual function", prev.Name).
							WithNote(fn.Loc, "overridden function is here"))
					}
					if !prev.IsOverride && fn.Kind == ast.FnFunction {
						ns.Diag(diag.Error(prev.Loc, "function '%s' should be marked 'override'", prev.Name).
							WithNote(fn.Loc, "overridden function is here"))
					}
				}
				continue
			}
			seen[sig] = fnNo
			c.Functions = append(c.Functions, fnNo)
		}
	}
}

// storageLayout assigns slots: bases first (reverse MRO), declaration
// order within each contract. Constants take no slot; immutables take
// a slot like any other state variable, on every target.
func (r *resolver) storageLayout(no int) {
	ns := r.ns
	c := ns.Contracts[no]
	slot := big.NewInt(0)
	mro := c.MRO
	if len(mro) == 0 {
		mro = []int{no}
	}
	for i := len(mro) - 1; i >= 0; i-- {
		cn := mro[i]
		for varNo, v := range ns.Contracts[cn].Variables {
			if v.Constant {
				continue
			}
			c.Layout = append(c.Layout, StorageVar{
				VarNo:    varNo,
				Slot:     new(big.Int).Set(slot),
				Contract: cn,
			})
			slot.Add(slot, big.NewInt(1))
		}
	}
}

// checkBodies enforces the body-presence rules per contract kind.
func (r *resolver) checkBodies(no int) {
	ns := r.ns
	c := ns.Contracts[no]
	if !c.IsConcrete() {
		return
	}
	for _, fnNo := range c.Functions {
		fn := ns.Functions[fnNo]
		if !fn.HasBody {
			ns.Diag(diag.Error(c.Loc, "contract '%s' does not implement '%s'; mark the contract abstract",
				c.Name, fn.Name).WithNote(fn.Loc, "unimplemented function is here"))
		}
	}
}

// resolveFreeFunctions types free function signatures and file
// constants.
func (r *resolver) resolveFreeFunctions() {
	ns := r.ns
	for fnNo, fn := range ns.Functions {
		if fn.ContractNo != -1 {
			continue
		}
		def := r.funcDefs[fnNo]
		ctx := r.typeCtx(fn.FileNo, -1)
		r.resolveSignature(ctx, fn, def)
		if !fn.HasBody {
			ns.Errorf(def.Loc, "free function '%s' must have a body", fn.Name)
		}
	}
	for no, def := range r.constDefs {
		v := ns.Constants[no]
		fileNo := 0
		if def.Loc.InFile() {
			fileNo = def.Loc.FileNo
		}
		ctx := r.typeCtx(fileNo, -1)
		v.Type = r.resolveType(ctx, def.Type)
		if def.Initializer == nil {
			ns.Errorf(def.Loc, "constant '%s' requires an initializer", v.Name)
		}
	}
}
