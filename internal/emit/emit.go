package emit

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/big"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/solis/internal/abi"
	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/cfg"
	"github.com/standardbeagle/solis/internal/passes"
	"github.com/standardbeagle/solis/internal/sema"
	"github.com/standardbeagle/solis/internal/target"
)

const targetSolana = target.Solana

// Options configures code generation.
type Options struct {
	OptLevel  passes.Level
	DebugInfo bool
	Release   bool
	Version   string
}

// Artifact is one output file.
type Artifact struct {
	Name string
	Data []byte
}

// Emitter drives codegen over the namespace.
type Emitter struct {
	ns   *sema.Namespace
	opts Options
}

// New returns an emitter for a resolved, error-free namespace.
func New(ns *sema.Namespace, opts Options) *Emitter {
	return &Emitter{ns: ns, opts: opts}
}

// functionSymbol names a function's LLVM symbol uniquely and stably.
func functionSymbol(ns *sema.Namespace, fnNo int) string {
	fn := ns.Functions[fnNo]
	prefix := "sol"
	if fn.ContractNo >= 0 {
		prefix = ns.Contracts[fn.ContractNo].Name
	}
	name := fn.Name
	switch fn.Kind {
	case ast.FnConstructor:
		name = "constructor"
	case ast.FnFallback:
		name = "fallback"
	case ast.FnReceive:
		name = "receive"
	}
	name = strings.Map(func(r rune) rune {
		if r == '@' {
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf("%s::%s::%d", prefix, name, fnNo)
}

// lowerContract builds and optimizes every graph a contract needs:
// the deploy and call dispatchers plus the reachable function set.
func (e *Emitter) lowerContract(contractNo int) (deploy, call *cfg.Graph, fns map[int]*cfg.Graph) {
	ns := e.ns
	opts := cfg.Options{DebugInfo: e.opts.DebugInfo}
	deploy = cfg.BuildDispatcher(ns, contractNo, true, opts)
	call = cfg.BuildDispatcher(ns, contractNo, false, opts)

	fns = map[int]*cfg.Graph{}
	var pending []int
	seen := map[int]bool{}
	enqueue := func(fnNo int) {
		if !seen[fnNo] {
			seen[fnNo] = true
			pending = append(pending, fnNo)
		}
	}
	for _, g := range []*cfg.Graph{deploy, call} {
		collectCalls(g, enqueue)
	}
	for len(pending) > 0 {
		fnNo := pending[0]
		pending = pending[1:]
		fn := ns.Functions[fnNo]
		if !fn.HasBody {
			continue
		}
		g := cfg.Build(ns, fnNo, opts)
		fns[fnNo] = g
		collectCalls(g, enqueue)
	}

	for _, g := range fns {
		passes.Run(g, e.opts.OptLevel)
	}
	passes.Run(deploy, e.opts.OptLevel)
	passes.Run(call, e.opts.OptLevel)
	return deploy, call, fns
}

func collectCalls(g *cfg.Graph, visit func(int)) {
	for _, blk := range g.Blocks {
		for _, instr := range blk.Instrs {
			if c, ok := instr.(*cfg.CallInternal); ok && c.FunctionNo >= 0 {
				visit(c.FunctionNo)
			}
		}
	}
}

// sortedFnNos yields deterministic emission order.
func sortedFnNos(fns map[int]*cfg.Graph) []int {
	out := make([]int, 0, len(fns))
	for no := range fns {
		out = append(out, no)
	}
	sort.Ints(out)
	return out
}

// ContractModule emits the LLVM-IR module text for one contract.
func (e *Emitter) ContractModule(contractNo int) string {
	ns := e.ns
	c := ns.Contracts[contractNo]
	deploy, call, fns := e.lowerContract(contractNo)

	m := newModule(ns, e.opts.Release)
	var body strings.Builder

	deploySym := c.Name + "::deploy_dispatch"
	callSym := c.Name + "::call_dispatch"
	body.WriteString(m.emitFunction(deploySym, deploy))
	body.WriteString(m.emitFunction(callSym, call))
	for _, fnNo := range sortedFnNos(fns) {
		body.WriteString(m.emitFunction(functionSymbol(ns, fnNo), fns[fnNo]))
	}
	body.WriteString(e.entryPoints(m, c, deploySym, callSym))

	if e.opts.DebugInfo {
		e.debugStringsGlobal(m, deploy, call, fns)
	}

	var out strings.Builder
	fmt.Fprintf(&out, "; ModuleID = '%s'\n", c.Name)
	if ns.Target.Kind == target.Solana {
		out.WriteString("target triple = \"sbf-solana-solana\"\n\n")
	} else {
		out.WriteString("target triple = \"wasm32-unknown-unknown\"\n\n")
	}
	declNames := make([]string, 0, len(m.decls))
	for name := range m.decls {
		declNames = append(declNames, name)
	}
	sort.Strings(declNames)
	for _, name := range declNames {
		out.WriteString(m.decls[name] + "\n")
	}
	out.WriteString("\n")
	for _, c := range m.consts {
		out.WriteString(c + "\n")
	}
	out.WriteString("\n")
	out.WriteString(body.String())
	return out.String()
}

// contractNoOf recovers a contract's namespace index.
func contractNoOf(ns *sema.Namespace, c *sema.ContractDecl) int {
	for no, cand := range ns.Contracts {
		if cand == c {
			return no
		}
	}
	return -1
}

// defaultConstructorSelector is the discriminator of the implicit
// constructor on the solana target.
func defaultConstructorSelector() []byte {
	sum := sha256.Sum256([]byte("global:new"))
	return sum[:8]
}

// entryPoints writes the exported entry functions the target runtime
// expects, wiring the input buffer and selector into the dispatchers.
func (e *Emitter) entryPoints(m *module, c *sema.ContractDecl, deploySym, callSym string) string {
	ns := e.ns
	selBits := ns.Target.SelectorLength() * 8
	selTy := fmt.Sprintf("i%d", selBits)
	m.declare("__input_data", "ptr @__input_data()")
	m.declare("__input_selector", "i256 @__input_selector()")
	m.declare("__return_output", "void @__return_output(ptr)")

	var sb strings.Builder
	if ns.Target.Kind == target.Solana {
		// Per-contract entry; the shared object's single exported
		// entrypoint dispatches here by program id (see Artifacts).
		// An incoming "new" discriminator routes to the deploy path.
		ctorSel := new(big.Int)
		if ctorNo := ns.ContractConstructor(contractNoOf(ns, c)); ctorNo != nil {
			ctorSel.SetBytes(ns.FunctionSelector(ns.Functions[*ctorNo]))
		} else {
			ctorSel.SetBytes(defaultConstructorSelector())
		}
		fmt.Fprintf(&sb, "define i64 @\"%s::entrypoint\"(ptr %%input) {\n", c.Name)
		fmt.Fprintf(&sb, "  %%sel256 = call i256 @__input_selector()\n")
		fmt.Fprintf(&sb, "  %%sel = trunc i256 %%sel256 to %s\n", selTy)
		fmt.Fprintf(&sb, "  %%data = call ptr @__input_data()\n")
		fmt.Fprintf(&sb, "  %%isnew = icmp eq %s %%sel, %s\n", selTy, ctorSel)
		fmt.Fprintf(&sb, "  br i1 %%isnew, label %%dep, label %%run\n")
		fmt.Fprintf(&sb, "dep:\n")
		fmt.Fprintf(&sb, "  %%newout = call ptr @\"%s\"(%s %%sel, ptr %%data)\n", deploySym, selTy)
		fmt.Fprintf(&sb, "  call void @__return_output(ptr %%newout)\n")
		fmt.Fprintf(&sb, "  ret i64 0\n")
		fmt.Fprintf(&sb, "run:\n")
		fmt.Fprintf(&sb, "  %%out = call ptr @\"%s\"(%s %%sel, ptr %%data)\n", callSym, selTy)
		fmt.Fprintf(&sb, "  call void @__return_output(ptr %%out)\n")
		fmt.Fprintf(&sb, "  ret i64 0\n")
		fmt.Fprintf(&sb, "}\n")
		return sb.String()
	}
	// Polkadot exports deploy and call.
	fmt.Fprintf(&sb, "define void @deploy() {\n")
	fmt.Fprintf(&sb, "  %%sel256 = call i256 @__input_selector()\n")
	fmt.Fprintf(&sb, "  %%sel = trunc i256 %%sel256 to %s\n", selTy)
	fmt.Fprintf(&sb, "  %%data = call ptr @__input_data()\n")
	fmt.Fprintf(&sb, "  %%out = call ptr @\"%s\"(%s %%sel, ptr %%data)\n", deploySym, selTy)
	fmt.Fprintf(&sb, "  call void @__return_output(ptr %%out)\n")
	fmt.Fprintf(&sb, "  ret void\n")
	fmt.Fprintf(&sb, "}\n")
	fmt.Fprintf(&sb, "define void @call() {\n")
	fmt.Fprintf(&sb, "  %%sel256 = call i256 @__input_selector()\n")
	fmt.Fprintf(&sb, "  %%sel = trunc i256 %%sel256 to %s\n", selTy)
	fmt.Fprintf(&sb, "  %%data = call ptr @__input_data()\n")
	fmt.Fprintf(&sb, "  %%out = call ptr @\"%s\"(%s %%sel, ptr %%data)\n", callSym, selTy)
	fmt.Fprintf(&sb, "  call void @__return_output(ptr %%out)\n")
	fmt.Fprintf(&sb, "  ret void\n")
	fmt.Fprintf(&sb, "}\n")
	return sb.String()
}

// debugStringsGlobal compiles the -g runtime-error annotations into a
// constant table the runtime prints into the debug buffer when a check
// trips.
func (e *Emitter) debugStringsGlobal(m *module, deploy, call *cfg.Graph, fns map[int]*cfg.Graph) {
	var entries []string
	add := func(g *cfg.Graph) {
		for _, chk := range g.DebugChecks {
			anchor := e.ns.Files.Anchor(chk.Loc)
			// The table names the source file without its directory.
			if f := e.ns.Files.File(chk.Loc.FileNo); chk.Loc.InFile() && f != nil {
				line, col := f.LineColumn(chk.Loc.Start)
				endLine, endCol := f.LineColumn(chk.Loc.End)
				anchor = fmt.Sprintf("%s:%d:%d-%d", filepath.Base(f.Path), line, col, endCol)
				if endLine != line {
					anchor = fmt.Sprintf("%s:%d:%d-%d:%d", filepath.Base(f.Path), line, col, endLine, endCol)
				}
			}
			entries = append(entries, fmt.Sprintf("runtime_error: %s in %s,", chk.Reason, anchor))
		}
	}
	add(deploy)
	add(call)
	for _, no := range sortedFnNos(fns) {
		add(fns[no])
	}
	if len(entries) == 0 {
		return
	}
	sort.Strings(entries)
	m.constant([]byte(strings.Join(entries, "\n")))
}

// Artifacts produces the output files for the whole compilation.
func (e *Emitter) Artifacts() ([]Artifact, error) {
	ns := e.ns
	var out []Artifact
	if ns.Target.Kind == target.Solana {
		// One shared module for every contract, plus per-contract IDL.
		for no, c := range ns.Contracts {
			if !c.IsConcrete() {
				continue
			}
			idl := abi.BuildIDL(ns, no, e.opts.Version)
			data, err := json.MarshalIndent(idl, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshal idl for %s: %w", c.Name, err)
			}
			out = append(out, Artifact{Name: c.Name + ".json", Data: data})
		}
		out = append(out, Artifact{Name: "bundle.ll", Data: []byte(e.solanaBundle())})
		return out, nil
	}

	// Per-contract modules are independent once the namespace is
	// frozen; emit them concurrently, keep output order by contract.
	results := make([]*Artifact, len(ns.Contracts))
	var g errgroup.Group
	for no, c := range ns.Contracts {
		if !c.IsConcrete() {
			continue
		}
		no, c := no, c
		g.Go(func() error {
			code := e.ContractModule(no)
			meta := abi.BuildMetadata(ns, no)
			bundle := map[string]any{
				"source": map[string]any{
					"compiler": "solis " + e.opts.Version,
					"language": "Solidity",
					"wasm":     code,
				},
				"contract": map[string]any{"name": c.Name, "version": e.opts.Version},
				"spec":     meta,
			}
			data, err := json.MarshalIndent(bundle, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal bundle for %s: %w", c.Name, err)
			}
			results[no] = &Artifact{Name: c.Name + ".contract", Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, a := range results {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

// solanaBundle emits one module holding every concrete contract: all
// dispatchers, all reachable functions (each defined once), the
// per-contract entries and the single exported entrypoint the SBF
// loader calls.
func (e *Emitter) solanaBundle() string {
	ns := e.ns
	m := newModule(ns, e.opts.Release)
	var body strings.Builder
	var concrete []string
	emitted := map[int]bool{}

	for no, c := range ns.Contracts {
		if !c.IsConcrete() {
			continue
		}
		concrete = append(concrete, c.Name)
		deploy, call, fns := e.lowerContract(no)
		deploySym := c.Name + "::deploy_dispatch"
		callSym := c.Name + "::call_dispatch"
		body.WriteString(m.emitFunction(deploySym, deploy))
		body.WriteString(m.emitFunction(callSym, call))
		for _, fnNo := range sortedFnNos(fns) {
			if emitted[fnNo] {
				continue // free functions shared between contracts
			}
			emitted[fnNo] = true
			body.WriteString(m.emitFunction(functionSymbol(ns, fnNo), fns[fnNo]))
		}
		body.WriteString(e.entryPoints(m, c, deploySym, callSym))
		if e.opts.DebugInfo {
			e.debugStringsGlobal(m, deploy, call, fns)
		}
	}

	// The exported entrypoint routes by the contract the runtime
	// invoked.
	m.declare("__contract_index", "i32 @__contract_index()")
	var entry strings.Builder
	entry.WriteString("define i64 @entrypoint(ptr %input) {\n")
	entry.WriteString("  %idx = call i32 @__contract_index()\n")
	entry.WriteString("  br label %d0\n")
	for i, name := range concrete {
		fmt.Fprintf(&entry, "d%d:\n", i)
		fmt.Fprintf(&entry, "  %%is%d = icmp eq i32 %%idx, %d\n", i, i)
		fmt.Fprintf(&entry, "  br i1 %%is%d, label %%c%d, label %%d%d\n", i, i, i+1)
		fmt.Fprintf(&entry, "c%d:\n", i)
		fmt.Fprintf(&entry, "  %%r%d = call i64 @\"%s::entrypoint\"(ptr %%input)\n", i, name)
		fmt.Fprintf(&entry, "  ret i64 %%r%d\n", i)
	}
	fmt.Fprintf(&entry, "d%d:\n", len(concrete))
	entry.WriteString("  ret i64 1\n")
	entry.WriteString("}\n")
	body.WriteString(entry.String())

	var outText strings.Builder
	outText.WriteString("; ModuleID = 'bundle'\n")
	outText.WriteString("target triple = \"sbf-solana-solana\"\n\n")
	declNames := make([]string, 0, len(m.decls))
	for name := range m.decls {
		declNames = append(declNames, name)
	}
	sort.Strings(declNames)
	for _, name := range declNames {
		outText.WriteString(m.decls[name] + "\n")
	}
	outText.WriteString("\n")
	for _, c := range m.consts {
		outText.WriteString(c + "\n")
	}
	outText.WriteString("\n")
	outText.WriteString(body.String())
	return outText.String()
}

// EmitLLVM produces only the textual IR artifacts for --emit llvm-ir.
func (e *Emitter) EmitLLVM() []Artifact {
	ns := e.ns
	if ns.Target.Kind == target.Solana {
		return []Artifact{{Name: "bundle.ll", Data: []byte(e.solanaBundle())}}
	}
	var out []Artifact
	for no, c := range ns.Contracts {
		if !c.IsConcrete() {
			continue
		}
		out = append(out, Artifact{Name: c.Name + ".ll", Data: []byte(e.ContractModule(no))})
	}
	return out
}

// EmitCFG renders every contract's graphs for --emit cfg.
func (e *Emitter) EmitCFG() string {
	ns := e.ns
	var sb strings.Builder
	for no, c := range ns.Contracts {
		if !c.IsConcrete() {
			continue
		}
		deploy, call, fns := e.lowerContract(no)
		fmt.Fprintf(&sb, "# contract %s\n", c.Name)
		sb.WriteString(deploy.String())
		sb.WriteString(call.String())
		for _, fnNo := range sortedFnNos(fns) {
			sb.WriteString(fns[fnNo].String())
		}
	}
	return sb.String()
}
