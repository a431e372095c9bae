package emit_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/emit"
	"github.com/standardbeagle/solis/internal/parser"
	"github.com/standardbeagle/solis/internal/passes"
	"github.com/standardbeagle/solis/internal/sema"
	"github.com/standardbeagle/solis/internal/target"
)

func emitterFor(t *testing.T, kind target.Kind, src string, opts emit.Options) (*sema.Namespace, *emit.Emitter) {
	t.Helper()
	fs := diag.NewFileSet()
	f := fs.Add("/test/test.sol", "test.sol", src)
	unit, _ := parser.Parse(f.FileNo, src)
	require.NotNil(t, unit)
	ns := sema.Resolve(target.Default(kind), fs, []*ast.SourceUnit{unit})
	require.False(t, ns.HasErrors(), "diags: %v", ns.Diagnostics)
	if opts.Version == "" {
		opts.Version = "0.1.0"
	}
	return ns, emit.New(ns, opts)
}

const flipperSrc = `
contract flipper {
	bool private value;

	constructor(bool initvalue) {
		value = initvalue;
	}

	function flip() public {
		value = !value;
	}

	function get() public view returns (bool) {
		return value;
	}
}`

func TestPolkadotModuleShape(t *testing.T) {
	_, e := emitterFor(t, target.Polkadot, flipperSrc, emit.Options{OptLevel: passes.Default})
	ir := e.ContractModule(0)

	assert.Contains(t, ir, "target triple = \"wasm32-unknown-unknown\"")
	assert.Contains(t, ir, "define void @deploy()")
	assert.Contains(t, ir, "define void @call()")
	assert.Contains(t, ir, "declare ptr @__input_data()")
	assert.Contains(t, ir, "@__storage_store")
	assert.Contains(t, ir, "@__storage_load")
	// One defined function per reachable contract function.
	assert.Contains(t, ir, "flipper::flip::")
	assert.Contains(t, ir, "flipper::get::")
	assert.Contains(t, ir, "flipper::constructor::")
}

func TestSolanaModuleShape(t *testing.T) {
	_, e := emitterFor(t, target.Solana, `
@program_id("11111111111111111111111111111111")
contract store {
	uint64 count;
	@payer(payer)
	constructor() {}
	function inc() public { count = count + 1; }
}`, emit.Options{OptLevel: passes.Default})
	ir := e.ContractModule(0)

	assert.Contains(t, ir, "target triple = \"sbf-solana-solana\"")
	assert.Contains(t, ir, "define i64 @\"store::entrypoint\"(ptr %input)")
	assert.NotContains(t, ir, "define void @deploy()")
}

func TestReleaseStripsRevertStrings(t *testing.T) {
	src := `
contract c {
	function f(uint x) public pure {
		require(x > 0, "x must be positive");
	}
}`
	_, debug := emitterFor(t, target.Polkadot, src, emit.Options{})
	debugIR := debug.ContractModule(0)
	assert.Contains(t, debugIR, "__revert_error_string")
	assert.Contains(t, debugIR, "x must be positive")

	_, release := emitterFor(t, target.Polkadot, src, emit.Options{Release: true})
	releaseIR := release.ContractModule(0)
	assert.NotContains(t, releaseIR, "__revert_error_string")
	assert.NotContains(t, releaseIR, "x must be positive")
}

func TestDebugInfoStrings(t *testing.T) {
	src := `
contract c {
	uint[] xs;
	function read_integer_failure(uint i) public view returns (uint) {
		return xs[i];
	}
}`
	_, e := emitterFor(t, target.Polkadot, src, emit.Options{DebugInfo: true})
	ir := e.ContractModule(0)
	assert.Contains(t, ir, "runtime_error:")
	assert.Contains(t, ir, "storage array index out of bounds in test.sol:")
}

func TestOverflowIntrinsics(t *testing.T) {
	src := `
contract c {
	function add(uint a, uint b) public pure returns (uint) {
		return a + b;
	}
	function wrapped(uint a, uint b) public pure returns (uint) {
		unchecked { return a + b; }
	}
}`
	_, e := emitterFor(t, target.Polkadot, src, emit.Options{OptLevel: passes.None})
	ir := e.ContractModule(0)
	assert.Contains(t, ir, "llvm.uadd.with.overflow.i256")
	assert.Contains(t, ir, "@__panic")
}

func TestPolkadotArtifacts(t *testing.T) {
	_, e := emitterFor(t, target.Polkadot, flipperSrc, emit.Options{OptLevel: passes.Default})
	artifacts, err := e.Artifacts()
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "flipper.contract", artifacts[0].Name)
	bundle := string(artifacts[0].Data)
	assert.Contains(t, bundle, "\"name\": \"flipper\"")
	assert.Contains(t, bundle, "initvalue")
	assert.Contains(t, bundle, "\"language\": \"Solidity\"")
}

func TestSolanaArtifacts(t *testing.T) {
	_, e := emitterFor(t, target.Solana, `
contract a {
	@payer(payer)
	constructor() {}
	function f() public {}
}
contract b {
	@payer(payer)
	constructor() {}
	function g() public {}
}`, emit.Options{OptLevel: passes.Default})
	artifacts, err := e.Artifacts()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, a := range artifacts {
		names[a.Name] = true
	}
	// A single shared module for all contracts plus per-contract IDLs.
	assert.True(t, names["bundle.ll"])
	assert.True(t, names["a.json"])
	assert.True(t, names["b.json"])
}

func TestEmitCFGDump(t *testing.T) {
	_, e := emitterFor(t, target.Polkadot, flipperSrc, emit.Options{OptLevel: passes.None})
	dump := e.EmitCFG()
	assert.Contains(t, dump, "# contract flipper")
	assert.Contains(t, dump, "cfg solis.call")
	assert.Contains(t, dump, "storage_store")
}

func TestASTDot(t *testing.T) {
	fs := diag.NewFileSet()
	f := fs.Add("/test/test.sol", "test.sol", flipperSrc)
	unit, _ := parser.Parse(f.FileNo, flipperSrc)
	dot := emit.ASTDot([]*ast.SourceUnit{unit})
	assert.True(t, strings.HasPrefix(dot, "strict digraph ast {"))
	assert.Contains(t, dot, "contract flipper")
	assert.Contains(t, dot, "function flip")
}
