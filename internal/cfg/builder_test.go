package cfg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/cfg"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/parser"
	"github.com/standardbeagle/solis/internal/sema"
	"github.com/standardbeagle/solis/internal/target"
)

func lower(t *testing.T, src string) (*sema.Namespace, map[string]*cfg.Graph) {
	t.Helper()
	fs := diag.NewFileSet()
	f := fs.Add("/test/test.sol", "test.sol", src)
	unit, pdiags := parser.Parse(f.FileNo, src)
	require.NotNil(t, unit)
	ns := sema.Resolve(target.Default(target.Polkadot), fs, []*ast.SourceUnit{unit})
	for _, d := range append(pdiags, ns.Diagnostics...) {
		if d.Level >= diag.LevelError {
			t.Fatalf("unexpected error: %s", d.Message)
		}
	}
	graphs := map[string]*cfg.Graph{}
	for fnNo, fn := range ns.Functions {
		if !fn.HasBody {
			continue
		}
		graphs[fn.Name] = cfg.Build(ns, fnNo, cfg.Options{})
	}
	return ns, graphs
}

// countInstr walks every block counting instructions of the matching
// type.
func countInstr(g *cfg.Graph, match func(cfg.Instr) bool) int {
	n := 0
	for _, blk := range g.Blocks {
		for _, instr := range blk.Instrs {
			if match(instr) {
				n++
			}
		}
	}
	return n
}

func TestBuildStorageAccess(t *testing.T) {
	_, graphs := lower(t, `
contract c {
	uint total;
	function bump(uint by) public {
		total = total + by;
	}
}`)
	g := graphs["bump"]
	require.NotNil(t, g)

	loads := countInstr(g, func(i cfg.Instr) bool { _, ok := i.(*cfg.StorageLoad); return ok })
	stores := countInstr(g, func(i cfg.Instr) bool { _, ok := i.(*cfg.StorageStore); return ok })
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, stores)
}

func TestEveryBlockReachableOrMarked(t *testing.T) {
	_, graphs := lower(t, `
contract c {
	function f(uint n) public pure returns (uint) {
		uint acc = 0;
		for (uint i = 0; i < n; i++) {
			if (i == 3) {
				break;
			}
			acc += i;
		}
		return acc;
	}
}`)
	g := graphs["f"]
	require.NotNil(t, g)
	reachable := g.Reachable()
	for no, blk := range g.Blocks {
		if reachable[no] {
			continue
		}
		_, unreachable := blk.Term.(cfg.Unreachable)
		assert.True(t, unreachable, "block %d is neither reachable nor marked unreachable", no)
	}
}

func TestRequireLowersToBranchAndRevert(t *testing.T) {
	_, graphs := lower(t, `
contract c {
	function f(uint x) public pure returns (uint) {
		require(x > 0, "x must be positive");
		return x;
	}
}`)
	g := graphs["f"]
	require.NotNil(t, g)

	reverts := 0
	for _, blk := range g.Blocks {
		if r, ok := blk.Term.(cfg.Revert); ok {
			assert.Equal(t, cfg.RevertString, r.Kind)
			reverts++
		}
	}
	assert.Equal(t, 1, reverts)
}

func TestAssertLowersToPanic(t *testing.T) {
	_, graphs := lower(t, `
contract c {
	function f(bool b) public pure {
		assert(b);
	}
}`)
	g := graphs["f"]
	found := false
	for _, blk := range g.Blocks {
		if r, ok := blk.Term.(cfg.Revert); ok && r.Kind == cfg.RevertPanic {
			found = true
			require.Len(t, r.Args, 1)
			code, isConst := r.Args[0].(cfg.ConstInt)
			require.True(t, isConst)
			assert.Equal(t, int64(cfg.PanicAssert), code.Value.Int64())
		}
	}
	assert.True(t, found, "assert should lower to a panic revert")
}

func TestModifierInlining(t *testing.T) {
	_, graphs := lower(t, `
contract c {
	address owner;
	uint count;
	modifier onlyOwner() {
		require(msg.sender == owner, "not owner");
		_;
		count = count + 1;
	}
	function guarded() public onlyOwner {
		count = count + 10;
	}
}`)
	g := graphs["guarded"]
	require.NotNil(t, g)

	// The inlined modifier contributes the caller check before the
	// body and the post-placeholder store after it: one load for the
	// owner, two adds, two stores.
	stores := countInstr(g, func(i cfg.Instr) bool { _, ok := i.(*cfg.StorageStore); return ok })
	assert.Equal(t, 2, stores, "modifier pre/post parts and body must all be present")

	reverts := 0
	for _, blk := range g.Blocks {
		if r, ok := blk.Term.(cfg.Revert); ok && r.Kind == cfg.RevertString {
			reverts++
		}
	}
	assert.Equal(t, 1, reverts, "modifier's require must be spliced in")
}

func TestOverflowChecksInserted(t *testing.T) {
	_, graphs := lower(t, `
contract c {
	function checked(uint a, uint b) public pure returns (uint) {
		return a + b;
	}
	function wrapped(uint a, uint b) public pure returns (uint) {
		unchecked {
			return a + b;
		}
	}
}`)
	checkedAdds := countInstr(graphs["checked"], func(i cfg.Instr) bool {
		b, ok := i.(*cfg.BinOp)
		return ok && b.Op == sema.BinAdd && b.CheckOverflow
	})
	assert.Equal(t, 1, checkedAdds)

	uncheckedAdds := countInstr(graphs["wrapped"], func(i cfg.Instr) bool {
		b, ok := i.(*cfg.BinOp)
		return ok && b.Op == sema.BinAdd && !b.CheckOverflow
	})
	assert.Equal(t, 1, uncheckedAdds)
}

func TestEmitEventLowering(t *testing.T) {
	_, graphs := lower(t, `
contract c {
	event Flipped(address indexed who, bool value);
	function f(bool v) public {
		emit Flipped(msg.sender, v);
	}
}`)
	g := graphs["f"]
	emits := 0
	for _, blk := range g.Blocks {
		for _, instr := range blk.Instrs {
			if ev, ok := instr.(*cfg.EmitEvent); ok {
				emits++
				// Signature topic plus the indexed field.
				assert.Len(t, ev.Topics, 2)
			}
		}
	}
	assert.Equal(t, 1, emits)
}

func TestDispatcherSwitch(t *testing.T) {
	ns, _ := lower(t, `
contract c {
	function a() public {}
	function b() public {}
}`)
	g := cfg.BuildDispatcher(ns, 0, false, cfg.Options{})
	require.NotNil(t, g)

	// Two compare arms plus a fallback revert.
	compares := countInstr(g, func(i cfg.Instr) bool {
		b, ok := i.(*cfg.BinOp)
		return ok && b.Op == sema.BinEq
	})
	assert.Equal(t, 2, compares)

	hasRevert := false
	for _, blk := range g.Blocks {
		if _, ok := blk.Term.(cfg.Revert); ok {
			hasRevert = true
		}
	}
	assert.True(t, hasRevert, "unmatched selector must revert without a fallback")
}

func TestDeployDispatcherRunsInitializers(t *testing.T) {
	ns, _ := lower(t, `
contract c {
	uint x = 42;
	constructor() {}
}`)
	g := cfg.BuildDispatcher(ns, 0, true, cfg.Options{})
	stores := countInstr(g, func(i cfg.Instr) bool { _, ok := i.(*cfg.StorageStore); return ok })
	assert.Equal(t, 1, stores, "state variable initializer must run at deploy")
}

func TestDebugChecksRecorded(t *testing.T) {
	fs := diag.NewFileSet()
	src := `
contract c {
	uint[] xs;
	function f(uint i) public view returns (uint) {
		return xs[i] + 1;
	}
}`
	f := fs.Add("/test/runtime_errors.sol", "runtime_errors.sol", src)
	unit, _ := parser.Parse(f.FileNo, src)
	ns := sema.Resolve(target.Default(target.Polkadot), fs, []*ast.SourceUnit{unit})
	require.False(t, ns.HasErrors())

	for fnNo, fn := range ns.Functions {
		if fn.Name != "f" {
			continue
		}
		g := cfg.Build(ns, fnNo, cfg.Options{DebugInfo: true})
		require.NotEmpty(t, g.DebugChecks)
		found := false
		for _, chk := range g.DebugChecks {
			if chk.Reason == "math overflow" {
				found = true
			}
		}
		assert.True(t, found)
		return
	}
	t.Fatal("function f not found")
}
