package passes_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/cfg"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/parser"
	"github.com/standardbeagle/solis/internal/passes"
	"github.com/standardbeagle/solis/internal/sema"
	"github.com/standardbeagle/solis/internal/target"
)

func build(t *testing.T, src, fnName string) (*sema.Namespace, *cfg.Graph) {
	t.Helper()
	fs := diag.NewFileSet()
	f := fs.Add("/test/test.sol", "test.sol", src)
	unit, _ := parser.Parse(f.FileNo, src)
	require.NotNil(t, unit)
	ns := sema.Resolve(target.Default(target.Polkadot), fs, []*ast.SourceUnit{unit})
	require.False(t, ns.HasErrors(), "diags: %v", ns.Diagnostics)
	for fnNo, fn := range ns.Functions {
		if fn.Name == fnName {
			return ns, cfg.Build(ns, fnNo, cfg.Options{})
		}
	}
	t.Fatalf("function %s not found", fnName)
	return nil, nil
}

func instrCount(g *cfg.Graph) int {
	n := 0
	for _, blk := range g.Blocks {
		n += len(blk.Instrs)
	}
	return n
}

func storageStores(g *cfg.Graph) int {
	n := 0
	for _, blk := range g.Blocks {
		for _, i := range blk.Instrs {
			if _, ok := i.(*cfg.StorageStore); ok {
				n++
			}
		}
	}
	return n
}

func observableEffects(g *cfg.Graph) (stores, emits, calls int) {
	for _, blk := range g.Blocks {
		for _, i := range blk.Instrs {
			switch i.(type) {
			case *cfg.StorageStore:
				stores++
			case *cfg.EmitEvent:
				emits++
			case *cfg.CallExternal, *cfg.CallInternal, *cfg.ValueTransfer:
				calls++
			}
		}
	}
	return
}

func TestFoldIsMonotonic(t *testing.T) {
	_, g := build(t, `
contract c {
	function f(uint x) public pure returns (uint) {
		uint a = 3 * 4;
		uint b = a + x;
		return b - 0;
	}
}`, "f")
	before := instrCount(g)
	passes.Fold(g)
	after := instrCount(g)
	assert.LessOrEqual(t, after, before, "constant folding may never expand a block")
}

func TestFoldEliminatesConstantBranch(t *testing.T) {
	_, g := build(t, `
contract c {
	uint v;
	function f() public {
		if (1 + 1 == 2) {
			v = 1;
		} else {
			v = 2;
		}
	}
}`, "f")
	passes.Run(g, passes.Default)
	reachable := g.Reachable()
	live := 0
	for no := range g.Blocks {
		if reachable[no] {
			live++
		}
	}
	// The dead arm must be unreachable after folding the condition.
	stores := 0
	for no, blk := range g.Blocks {
		if !reachable[no] {
			continue
		}
		for _, i := range blk.Instrs {
			if _, ok := i.(*cfg.StorageStore); ok {
				stores++
			}
		}
	}
	assert.Equal(t, 1, stores, "only the live arm's store survives")
	assert.Greater(t, live, 0)
}

func TestEffectsPreservedAcrossPasses(t *testing.T) {
	src := `
contract c {
	uint total;
	event Bumped(uint by);
	function f(uint by) public {
		uint twice = by * 2;
		total = total + twice;
		emit Bumped(twice);
	}
}`
	_, unopt := build(t, src, "f")
	_, opt := build(t, src, "f")
	passes.Run(opt, passes.Aggressive)

	s1, e1, c1 := observableEffects(unopt)
	s2, e2, c2 := observableEffects(opt)
	assert.Equal(t, s1, s2, "storage writes preserved")
	assert.Equal(t, e1, e2, "event emissions preserved")
	assert.Equal(t, c1, c2, "calls preserved")
}

func TestStorageWriteNeverRemoved(t *testing.T) {
	// The variable is written and never read anywhere; the store must
	// survive every optimization level.
	_, g := build(t, `
contract c {
	uint writeOnly;
	function f() public {
		writeOnly = 7;
	}
}`, "f")
	passes.Run(g, passes.Aggressive)
	assert.Equal(t, 1, storageStores(g))
}

func TestCSECoalescesPureOps(t *testing.T) {
	_, g := build(t, `
contract c {
	function f(uint a, uint b) public pure returns (uint) {
		unchecked {
			uint x = a * b;
			uint y = a * b;
			return x + y;
		}
	}
}`, "f")
	muls := func() int {
		n := 0
		for _, blk := range g.Blocks {
			for _, i := range blk.Instrs {
				if bin, ok := i.(*cfg.BinOp); ok && bin.Op == sema.BinMul {
					n++
				}
			}
		}
		return n
	}
	require.Equal(t, 2, muls())
	passes.CSE(g)
	passes.DCE(g)
	assert.Equal(t, 1, muls(), "identical pure multiplies must coalesce")
}

func TestCSERespectsStorageAliasing(t *testing.T) {
	_, g := build(t, `
contract c {
	uint v;
	function f(uint x) public returns (uint) {
		uint a = v;
		v = x;
		uint b = v;
		return a + b;
	}
}`, "f")
	loads := func() int {
		n := 0
		for _, blk := range g.Blocks {
			for _, i := range blk.Instrs {
				if _, ok := i.(*cfg.StorageLoad); ok {
					n++
				}
			}
		}
		return n
	}
	require.Equal(t, 2, loads())
	passes.CSE(g)
	assert.Equal(t, 2, loads(), "loads across an intervening store must not coalesce")
}

func TestCSECoalescesRepeatedLoads(t *testing.T) {
	_, g := build(t, `
contract c {
	uint v;
	function f() public view returns (uint) {
		uint a = v;
		uint b = v;
		return a + b;
	}
}`, "f")
	passes.CSE(g)
	loads := 0
	for _, blk := range g.Blocks {
		for _, i := range blk.Instrs {
			if _, ok := i.(*cfg.StorageLoad); ok {
				loads++
			}
		}
	}
	assert.Equal(t, 1, loads, "back-to-back loads of one slot coalesce")
}

func TestStrengthReduceUncheckedMul(t *testing.T) {
	_, g := build(t, `
contract c {
	function f(uint256 x) public pure returns (uint256) {
		unchecked {
			return x * 8;
		}
	}
}`, "f")
	passes.StrengthReduce(g)
	shls, muls := 0, 0
	for _, blk := range g.Blocks {
		for _, i := range blk.Instrs {
			if bin, ok := i.(*cfg.BinOp); ok {
				switch bin.Op {
				case sema.BinShl:
					shls++
					c, isConst := bin.Right.(cfg.ConstInt)
					require.True(t, isConst)
					assert.Equal(t, int64(3), c.Value.Int64())
				case sema.BinMul:
					muls++
				}
			}
		}
	}
	assert.Equal(t, 1, shls)
	assert.Equal(t, 0, muls)
}

func TestStrengthReducePreservesOverflowCheck(t *testing.T) {
	_, g := build(t, `
contract c {
	function f(uint256 x) public pure returns (uint256) {
		return x * 8;
	}
}`, "f")
	passes.StrengthReduce(g)
	for _, blk := range g.Blocks {
		for _, i := range blk.Instrs {
			if bin, ok := i.(*cfg.BinOp); ok && bin.Op == sema.BinShl {
				t.Fatal("checked multiply must not reduce to a shift")
			}
		}
	}
}

func TestStrengthReduceUnsignedDivMod(t *testing.T) {
	_, g := build(t, `
contract c {
	function f(uint256 x) public pure returns (uint256, uint256) {
		return (x / 16, x % 16);
	}
}`, "f")
	passes.StrengthReduce(g)
	shrs, ands := 0, 0
	for _, blk := range g.Blocks {
		for _, i := range blk.Instrs {
			if bin, ok := i.(*cfg.BinOp); ok {
				switch bin.Op {
				case sema.BinShr:
					shrs++
				case sema.BinBitAnd:
					ands++
					mask, isConst := bin.Right.(cfg.ConstInt)
					require.True(t, isConst)
					assert.Equal(t, int64(15), mask.Value.Int64())
				}
			}
		}
	}
	assert.Equal(t, 1, shrs)
	assert.Equal(t, 1, ands)
}

func TestPassesIdempotent(t *testing.T) {
	_, g := build(t, `
contract c {
	uint v;
	function f(uint x) public returns (uint) {
		uint a = x * 2 + 1;
		v = a;
		return a;
	}
}`, "f")
	passes.Run(g, passes.Aggressive)
	first := g.String()
	passes.Run(g, passes.Aggressive)
	assert.Equal(t, first, g.String(), "a second pass round must be a fixpoint")
}

func TestWrapArithmetic(t *testing.T) {
	// Unchecked constant arithmetic wraps to the declared type.
	_, g := build(t, `
contract c {
	function f() public pure returns (uint8) {
		unchecked {
			uint8 x = 255;
			uint8 y = x + 1;
			return y;
		}
	}
}`, "f")
	passes.Fold(g)
	// The fold must produce 0 for 255+1 on uint8 somewhere in the
	// return path.
	found := false
	for _, blk := range g.Blocks {
		if ret, ok := blk.Term.(cfg.Return); ok {
			for _, v := range ret.Values {
				if c, isConst := v.(cfg.ConstInt); isConst && c.Value.Cmp(big.NewInt(0)) == 0 {
					found = true
				}
			}
		}
	}
	assert.True(t, found, "255 + 1 must wrap to 0 under unchecked uint8 arithmetic")
}
