package sema

import (
	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/target"
)

// resolver carries the transient state of one resolution run: the AST
// backing every namespace slot, per-file and per-contract symbol
// tables, and the using-directive attach lists.
type resolver struct {
	ns    *Namespace
	units []*ast.SourceUnit

	structDefs   []*ast.StructDefinition
	enumDefs     []*ast.EnumDefinition
	eventDefs    []*ast.EventDefinition
	errorDefs    []*ast.ErrorDefinition
	userTypeDefs []*ast.UserTypeDefinition
	funcDefs     []*ast.FunctionDefinition
	contractDefs []*ast.ContractDefinition
	constDefs    []*ast.VariableDefinition
	varDefs      map[*Variable]*ast.VariableDefinition

	// contractSyms holds each contract's own member table (no
	// inheritance); lookup walks the MRO.
	contractSyms []*symbolTable

	// using attach lists: per file, type key → library function
	// indices. A directive inside a contract attaches for its whole file.
	fileUsing []map[string][]int

	// deferred using directives, applied after all functions resolve.
	pendingUsing []pendingUsing
}

type pendingUsing struct {
	fileNo     int
	contractNo int // -1 at file scope
	dir        *ast.UsingDirective
}

// Resolve builds the namespace from the parsed files. The unit slice
// is indexed by file number; nil entries (unparsed fatal files) are
// skipped.
func Resolve(tgt target.Target, files *diag.FileSet, units []*ast.SourceUnit) *Namespace {
	ns := NewNamespace(tgt, files)
	r := &resolver{
		ns:      ns,
		units:   units,
		varDefs: map[*Variable]*ast.VariableDefinition{},
	}
	for range units {
		ns.fileSymbols = append(ns.fileSymbols, newSymbolTable())
		r.fileUsing = append(r.fileUsing, map[string][]int{})
	}

	// Declarative pass: install every top-level name.
	for fileNo, unit := range units {
		if unit == nil {
			continue
		}
		r.declareFile(fileNo, unit)
	}
	// Imports wire file tables together once all names exist.
	for fileNo, unit := range units {
		if unit == nil {
			continue
		}
		r.applyImports(fileNo, unit)
	}
	// Bases and MROs come first: type and member lookup walk them.
	r.resolveBases()
	// Types can now be resolved: fill struct fields, user types,
	// events, errors, and contract shells.
	r.resolveTypeDecls()
	// Contract pass: members, layout, signatures, accessors.
	r.resolveContracts()
	// Free function signatures and file constants.
	r.resolveFreeFunctions()
	// Using directives attach resolved functions to types.
	r.applyUsing()
	// Body pass.
	r.resolveBodies()
	// Post checks: selectors, encodability, unused declarations.
	r.checkSelectors()
	r.checkEncodable()
	r.checkUnused()

	return ns
}

// declareFile installs the file's own top-level symbols.
func (r *resolver) declareFile(fileNo int, unit *ast.SourceUnit) {
	ns := r.ns
	tab := ns.fileSymbols[fileNo]
	for _, item := range unit.Items {
		switch d := item.(type) {
		case *ast.PragmaDirective:
			ns.Pragmas = append(ns.Pragmas, d)
		case *ast.ImportDirective:
			// handled by applyImports
		case *ast.StructDefinition:
			no := len(ns.Structs)
			ns.Structs = append(ns.Structs, &StructDecl{
				Name: d.Name.Name, Loc: d.Name.Loc, ContractNo: -1, Doc: d.Doc,
			})
			r.structDefs = append(r.structDefs, d)
			tab.define(ns, &symbol{Kind: symStruct, Name: d.Name.Name, Loc: d.Name.Loc, Nos: []int{no}})
		case *ast.EnumDefinition:
			no := r.declareEnum(d, -1)
			tab.define(ns, &symbol{Kind: symEnum, Name: d.Name.Name, Loc: d.Name.Loc, Nos: []int{no}})
		case *ast.EventDefinition:
			no := len(ns.Events)
			ns.Events = append(ns.Events, &EventDecl{
				Name: d.Name.Name, Loc: d.Name.Loc, ContractNo: -1,
				Anonymous: d.Anonymous, Doc: d.Doc,
			})
			r.eventDefs = append(r.eventDefs, d)
			tab.define(ns, &symbol{Kind: symEvent, Name: d.Name.Name, Loc: d.Name.Loc, Nos: []int{no}})
		case *ast.ErrorDefinition:
			no := len(ns.Errors)
			ns.Errors = append(ns.Errors, &ErrorDecl{
				Name: d.Name.Name, Loc: d.Name.Loc, ContractNo: -1, Doc: d.Doc,
			})
			r.errorDefs = append(r.errorDefs, d)
			tab.define(ns, &symbol{Kind: symError, Name: d.Name.Name, Loc: d.Name.Loc, Nos: []int{no}})
		case *ast.UserTypeDefinition:
			no := len(ns.UserTypes)
			ns.UserTypes = append(ns.UserTypes, &UserTypeDecl{
				Name: d.Name.Name, Loc: d.Name.Loc, ContractNo: -1,
				Type: Unresolved{}, Doc: d.Doc,
			})
			r.userTypeDefs = append(r.userTypeDefs, d)
			tab.define(ns, &symbol{Kind: symUserType, Name: d.Name.Name, Loc: d.Name.Loc, Nos: []int{no}})
		case *ast.ContractDefinition:
			no := len(ns.Contracts)
			ns.Contracts = append(ns.Contracts, &ContractDecl{
				Name: d.Name.Name, Loc: d.Name.Loc, FileNo: fileNo,
				Kind: d.Kind, BaseArgs: map[int][]Expr{}, Doc: d.Doc,
			})
			r.contractDefs = append(r.contractDefs, d)
			r.contractSyms = append(r.contractSyms, newSymbolTable())
			tab.define(ns, &symbol{Kind: symContract, Name: d.Name.Name, Loc: d.Name.Loc, Nos: []int{no}})
			r.declareContractTypes(no, d)
		case *ast.FunctionDefinition:
			if d.Kind != ast.FnFunction {
				r.ns.Errorf(d.Loc, "%s is only allowed inside a contract", d.Kind)
				continue
			}
			no := len(ns.Functions)
			ns.Functions = append(ns.Functions, &Function{
				Name: d.Name.Name, Loc: d.Loc, Kind: d.Kind, ContractNo: -1,
				FileNo: fileNo, HasBody: d.Body != nil, Doc: d.Doc,
			})
			r.funcDefs = append(r.funcDefs, d)
			tab.define(ns, &symbol{Kind: symFunction, Name: d.Name.Name, Loc: d.Name.Loc, Nos: []int{no}})
		case *ast.VariableDefinition:
			if !d.Constant {
				r.ns.Errorf(d.Loc, "file-scope variable '%s' must be declared constant", d.Name.Name)
			}
			no := len(ns.Constants)
			v := &Variable{
				Name: d.Name.Name, Loc: d.Name.Loc, Type: Unresolved{},
				Constant: true, Doc: d.Doc,
			}
			ns.Constants = append(ns.Constants, v)
			r.constDefs = append(r.constDefs, d)
			r.varDefs[v] = d
			tab.define(ns, &symbol{Kind: symVariable, Name: d.Name.Name, Loc: d.Name.Loc, Nos: []int{no}})
		case *ast.UsingDirective:
			r.pendingUsing = append(r.pendingUsing, pendingUsing{fileNo: fileNo, contractNo: -1, dir: d})
		}
	}
}

func (r *resolver) declareEnum(d *ast.EnumDefinition, contractNo int) int {
	ns := r.ns
	no := len(ns.Enums)
	decl := &EnumDecl{Name: d.Name.Name, Loc: d.Name.Loc, ContractNo: contractNo, Doc: d.Doc}
	seen := map[string]diag.Loc{}
	for _, v := range d.Values {
		if prev, dup := seen[v.Name]; dup {
			ns.Diag(diag.Error(v.Loc, "duplicate enum value '%s'", v.Name).
				WithNote(prev, "previous definition"))
			continue
		}
		seen[v.Name] = v.Loc
		decl.Values = append(decl.Values, v.Name)
	}
	if len(decl.Values) == 0 {
		ns.Errorf(d.Loc, "enum '%s' has no values", d.Name.Name)
	}
	if len(decl.Values) > 256 {
		ns.Errorf(d.Loc, "enum '%s' has more than 256 values", d.Name.Name)
	}
	ns.Enums = append(ns.Enums, decl)
	r.enumDefs = append(r.enumDefs, d)
	return no
}

// applyImports copies or aliases symbols between file tables following
// each import directive. The import resolver has already filled in
// ResolvedFileNo.
func (r *resolver) applyImports(fileNo int, unit *ast.SourceUnit) {
	ns := r.ns
	tab := ns.fileSymbols[fileNo]
	for _, item := range unit.Items {
		imp, ok := item.(*ast.ImportDirective)
		if !ok {
			continue
		}
		if imp.ResolvedFileNo < 0 {
			continue // import resolution already failed with a diagnostic
		}
		src := ns.fileSymbols[imp.ResolvedFileNo]
		switch {
		case imp.Alias.Name != "":
			tab.define(ns, &symbol{
				Kind: symNamespace, Name: imp.Alias.Name, Loc: imp.Alias.Loc,
				Nos: []int{0}, FileNo: imp.ResolvedFileNo,
			})
		case len(imp.Symbols) > 0:
			for _, is := range imp.Symbols {
				sym := src.lookup(is.Name.Name)
				if sym == nil {
					hint := ""
					if s := diag.Suggest(is.Name.Name, src.names()); s != "" {
						hint = " (did you mean '" + s + "'?)"
					}
					ns.Errorf(is.Name.Loc, "'%s' is not exported by %s%s",
						is.Name.Name, imp.Path, hint)
					continue
				}
				name := is.Name.Name
				loc := is.Name.Loc
				if is.Alias.Name != "" {
					name = is.Alias.Name
					loc = is.Alias.Loc
				}
				alias := *sym
				alias.Name = name
				alias.Loc = loc
				tab.define(ns, &alias)
			}
		default:
			for _, sym := range src.syms {
				if tab.lookup(sym.Name) == nil {
					tab.syms[sym.Name] = sym
				}
			}
		}
	}
}

// resolveTypeDecls fills in the types of structs, user types, events
// and errors now that every type name is installed.
func (r *resolver) resolveTypeDecls() {
	ns := r.ns
	for no, d := range r.structDefs {
		decl := ns.Structs[no]
		ctx := r.typeCtx(r.declFile(decl.ContractNo, d.Loc), decl.ContractNo)
		seen := map[string]diag.Loc{}
		for _, f := range d.Fields {
			ty := r.resolveType(ctx, f.Type)
			if prev, dup := seen[f.Name.Name]; dup && f.Name.Name != "" {
				ns.Diag(diag.Error(f.Name.Loc, "duplicate struct field '%s'", f.Name.Name).
					WithNote(prev, "previous definition"))
				continue
			}
			seen[f.Name.Name] = f.Name.Loc
			decl.Fields = append(decl.Fields, StructField{Name: f.Name.Name, Loc: f.Loc, Type: ty})
		}
		if len(decl.Fields) == 0 {
			ns.Errorf(d.Loc, "struct '%s' has no fields", decl.Name)
		}
	}
	// Recursion through value (non-dynamic) containment is illegal.
	for no := range ns.Structs {
		if r.structCycles(no, map[int]bool{}) {
			ns.Errorf(ns.Structs[no].Loc, "struct '%s' contains itself by value", ns.Structs[no].Name)
		}
	}
	for no, d := range r.userTypeDefs {
		decl := ns.UserTypes[no]
		ctx := r.typeCtx(r.declFile(decl.ContractNo, d.Loc), decl.ContractNo)
		ty := r.resolveType(ctx, d.Type)
		switch ty.(type) {
		case Bool, Int, Uint, Address, Bytes:
			decl.Type = ty
		case Unresolved:
			decl.Type = ty
		default:
			ns.Errorf(d.Type.ExprLoc(), "user type '%s' must wrap an elementary value type, not %s",
				decl.Name, ns.TypeName(ty))
			decl.Type = Unresolved{}
		}
	}
	for no, d := range r.eventDefs {
		decl := ns.Events[no]
		ctx := r.typeCtx(r.declFile(decl.ContractNo, d.Loc), decl.ContractNo)
		indexed := 0
		for _, f := range d.Fields {
			ty := r.resolveType(ctx, f.Type)
			if f.Indexed {
				indexed++
			}
			decl.Fields = append(decl.Fields, EventField{
				Name: f.Name.Name, Loc: f.Loc, Type: ty, Indexed: f.Indexed,
			})
		}
		max := 3
		if decl.Anonymous {
			max = 4
		}
		if indexed > max {
			ns.Errorf(d.Loc, "event '%s' has %d indexed fields, maximum is %d", decl.Name, indexed, max)
		}
	}
	for no, d := range r.errorDefs {
		decl := ns.Errors[no]
		ctx := r.typeCtx(r.declFile(decl.ContractNo, d.Loc), decl.ContractNo)
		for _, f := range d.Fields {
			ty := r.resolveType(ctx, f.Type)
			decl.Fields = append(decl.Fields, StructField{Name: f.Name.Name, Loc: f.Loc, Type: ty})
		}
	}
}

// structCycles walks value containment looking for no on a cycle.
func (r *resolver) structCycles(no int, visiting map[int]bool) bool {
	if visiting[no] {
		return true
	}
	visiting[no] = true
	defer delete(visiting, no)
	for _, f := range r.ns.Structs[no].Fields {
		t := f.Type
		for {
			if arr, ok := t.(Array); ok {
				dynamic := false
				for _, d := range arr.Dims {
					if !d.Fixed {
						dynamic = true
					}
				}
				if dynamic {
					break
				}
				t = arr.Elem
				continue
			}
			break
		}
		if st, ok := t.(Struct); ok {
			if r.structCycles(st.Index, visiting) {
				return true
			}
		}
	}
	return false
}

// declFile recovers the file number a declaration was parsed in.
func (r *resolver) declFile(contractNo int, loc diag.Loc) int {
	if contractNo >= 0 {
		return r.ns.Contracts[contractNo].FileNo
	}
	if loc.InFile() {
		return loc.FileNo
	}
	return 0
}
