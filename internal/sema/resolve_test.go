package sema_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/parser"
	"github.com/standardbeagle/solis/internal/sema"
	"github.com/standardbeagle/solis/internal/target"
)

func resolveOn(t *testing.T, kind target.Kind, src string) *sema.Namespace {
	t.Helper()
	fs := diag.NewFileSet()
	f := fs.Add("/test/test.sol", "test.sol", src)
	unit, diags := parser.Parse(f.FileNo, src)
	require.NotNil(t, unit)
	ns := sema.Resolve(target.Default(kind), fs, []*ast.SourceUnit{unit})
	ns.Diagnostics = append(diags, ns.Diagnostics...)
	return ns
}

func resolve(t *testing.T, src string) *sema.Namespace {
	return resolveOn(t, target.Polkadot, src)
}

func errorMessages(ns *sema.Namespace) []string {
	var out []string
	for _, d := range ns.Diagnostics {
		if d.Level >= diag.LevelError {
			out = append(out, d.Message)
		}
	}
	return out
}

func warningMessages(ns *sema.Namespace) []string {
	var out []string
	for _, d := range ns.Diagnostics {
		if d.Level == diag.LevelWarning {
			out = append(out, d.Message)
		}
	}
	return out
}

func hasMessage(msgs []string, substr string) bool {
	for _, m := range msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
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

func TestResolveFlipper(t *testing.T) {
	ns := resolve(t, flipperSrc)
	require.Empty(t, errorMessages(ns))
	require.Len(t, ns.Contracts, 1)

	c := ns.Contracts[0]
	assert.Equal(t, "flipper", c.Name)
	require.Len(t, c.Variables, 1)
	assert.Equal(t, "value", c.Variables[0].Name)
	require.Len(t, c.Layout, 1)
	assert.Equal(t, int64(0), c.Layout[0].Slot.Int64())

	ctor := ns.ContractConstructor(0)
	require.NotNil(t, ctor)
	params := ns.Functions[*ctor].Params
	require.Len(t, params, 1)
	assert.True(t, sema.Equal(params[0].Type, sema.Bool{}))
}

func TestSelectorsDistinctAndStable(t *testing.T) {
	ns := resolve(t, flipperSrc)
	require.Empty(t, errorMessages(ns))
	c := ns.Contracts[0]
	seen := map[string]string{}
	for _, fnNo := range c.Functions {
		fn := ns.Functions[fnNo]
		if fn.Kind != ast.FnFunction || !fn.IsExternallyCallable() {
			continue
		}
		sel := ns.FunctionSelector(fn)
		require.Len(t, sel, 4)
		prev, dup := seen[string(sel)]
		require.False(t, dup, "selector of %s collides with %s", fn.Name, prev)
		seen[string(sel)] = fn.Name
	}
	assert.Len(t, seen, 2)
}

func TestDuplicateSelectorError(t *testing.T) {
	ns := resolve(t, `
contract c {
	@selector([1, 2, 3, 4])
	function a() public {}
	@selector([1, 2, 3, 4])
	function b() public {}
}`)
	assert.True(t, hasMessage(errorMessages(ns), "duplicate selector"))
}

func TestSelectorOverride(t *testing.T) {
	ns := resolve(t, `
contract c {
	@selector([0xde, 0xad, 0xbe, 0xef])
	function f() public {}
}`)
	require.Empty(t, errorMessages(ns))
	for _, fn := range ns.Functions {
		if fn.Name == "f" {
			assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, ns.FunctionSelector(fn))
			return
		}
	}
	t.Fatal("function f not found")
}

func TestPayerRequiredOnSolana(t *testing.T) {
	ns := resolveOn(t, target.Solana, `
contract c {
	constructor() {}
}`)
	msgs := errorMessages(ns)
	require.Len(t, msgs, 1)
	assert.Equal(t, "@payer annotation required for constructor", msgs[0])
}

func TestPayerPresentOnSolana(t *testing.T) {
	ns := resolveOn(t, target.Solana, `
contract c {
	@payer(payer_account)
	@seed("token")
	@bump(1)
	@space(1024)
	constructor() {}
}`)
	assert.Empty(t, errorMessages(ns))
	for _, fn := range ns.Functions {
		if fn.Kind == ast.FnConstructor {
			assert.Equal(t, "payer_account", fn.Annotations.Payer)
			assert.Len(t, fn.Annotations.Seeds, 1)
			assert.NotNil(t, fn.Annotations.Bump)
			assert.NotNil(t, fn.Annotations.Space)
			return
		}
	}
	t.Fatal("constructor not found")
}

func TestSolanaAnnotationsRejectedOnPolkadot(t *testing.T) {
	ns := resolve(t, `
contract c {
	@payer(acc)
	constructor() {}
}`)
	assert.True(t, hasMessage(errorMessages(ns), "only valid when targeting solana"))
}

func TestUnknownAnnotationSuggestion(t *testing.T) {
	ns := resolveOn(t, target.Solana, `
contract c {
	@payer(acc)
	@sead("x")
	constructor() {}
}`)
	assert.True(t, hasMessage(errorMessages(ns), "unknown annotation '@sead'"))
	assert.True(t, hasMessage(errorMessages(ns), "did you mean '@seed'"))
}

func TestEmptyArrayLiteral(t *testing.T) {
	ns := resolve(t, `
contract c {
	function f() public pure returns (uint) {
		uint[] memory xs = [];
		return xs.length;
	}
}`)
	assert.True(t, hasMessage(errorMessages(ns), "array requires at least one element"))
}

func TestRationalComparisonError(t *testing.T) {
	ns := resolve(t, `
contract c {
	function f(uint x) public pure returns (bool) {
		return 0.5 < x;
	}
}`)
	assert.True(t, hasMessage(errorMessages(ns), "cannot use rational numbers with '<' operator"))
}

func TestRationalImplicitConversion(t *testing.T) {
	// 2.5 * 4 divides out to an integer and may convert; 2.5 alone may
	// not.
	good := resolve(t, "uint constant A = 2.5 * 4;")
	assert.Empty(t, errorMessages(good))
	require.Len(t, good.Constants, 1)
	lit, ok := good.Constants[0].Initializer.(*sema.NumberLit)
	require.True(t, ok)
	assert.Equal(t, int64(10), lit.Value.Int64())

	bad := resolve(t, "uint constant B = 2.5;")
	assert.True(t, hasMessage(errorMessages(bad), "rational"))
}

func TestStringPlusRejected(t *testing.T) {
	ns := resolve(t, `
contract c {
	function f(string memory a, string memory b) public pure returns (string memory) {
		return a + b;
	}
}`)
	assert.True(t, hasMessage(errorMessages(ns), "use string.concat()"))
}

func TestStringConcatAccepted(t *testing.T) {
	ns := resolve(t, `
contract c {
	function f(string memory a, string memory b) public pure returns (string memory) {
		return string.concat(a, b);
	}
}`)
	assert.Empty(t, errorMessages(ns))
}

func TestTypeMinMaxFolding(t *testing.T) {
	ns := resolve(t, `
int256 constant MIN = type(int256).min;
int256 constant MINP1 = type(int256).min + 1;
uint256 constant MAX = type(uint256).max;
`)
	require.Empty(t, errorMessages(ns))
	require.Len(t, ns.Constants, 3)

	min := ns.Constants[0].Initializer.(*sema.NumberLit)
	expectMin := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
	assert.Zero(t, min.Value.Cmp(expectMin))

	minp1 := ns.Constants[1].Initializer.(*sema.NumberLit)
	assert.Zero(t, minp1.Value.Cmp(new(big.Int).Add(expectMin, big.NewInt(1))))

	max := ns.Constants[2].Initializer.(*sema.NumberLit)
	expectMax := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	assert.Zero(t, max.Value.Cmp(expectMax))
}

func TestLiteralOutOfRange(t *testing.T) {
	ns := resolve(t, "uint8 constant X = 256;")
	assert.True(t, hasMessage(errorMessages(ns), "does not fit"))
}

func TestC3Linearization(t *testing.T) {
	ns := resolve(t, `
contract A { function f() public virtual {} }
contract B is A { function f() public virtual override {} }
contract C is A { }
contract D is B, C { function f() public override {} }
`)
	require.Empty(t, errorMessages(ns))
	var d *sema.ContractDecl
	for _, c := range ns.Contracts {
		if c.Name == "D" {
			d = c
		}
	}
	require.NotNil(t, d)
	var names []string
	for _, cn := range d.MRO {
		names = append(names, ns.Contracts[cn].Name)
	}
	assert.Equal(t, []string{"D", "B", "C", "A"}, names)
}

func TestInheritanceCycleFatal(t *testing.T) {
	ns := resolveOn(t, target.Polkadot, `
contract A is B {}
contract B is A {}
`)
	fatal := 0
	for _, d := range ns.Diagnostics {
		if d.Level == diag.LevelFatal {
			fatal++
		}
	}
	assert.Equal(t, 2, fatal, "one fatal per contract in the cycle")
	// Contracts survive with empty MROs to keep later errors sane.
	assert.Len(t, ns.Contracts, 2)
}

func TestOverrideRequiresVirtual(t *testing.T) {
	ns := resolve(t, `
contract A { function f() public {} }
contract B is A { function f() public override {} }
`)
	assert.True(t, hasMessage(errorMessages(ns), "non-virtual"))
}

func TestUnusedLocalWarning(t *testing.T) {
	ns := resolve(t, `
contract c {
	function f() public pure {
		uint unused = 1;
	}
}`)
	assert.True(t, hasMessage(warningMessages(ns), "local variable 'unused' is unused"))
}

func TestShadowWarning(t *testing.T) {
	ns := resolve(t, `
contract c {
	uint total;
	function f() public view returns (uint) {
		uint total = 2;
		return total;
	}
}`)
	assert.True(t, hasMessage(warningMessages(ns), "shadows"))
}

func TestDuplicateLocalError(t *testing.T) {
	ns := resolve(t, `
contract c {
	function f() public pure {
		uint x = 1;
		uint x = 2;
		x;
	}
}`)
	assert.True(t, hasMessage(errorMessages(ns), "already declared in this scope"))
}

func TestCouldBeViewWarning(t *testing.T) {
	ns := resolve(t, `
contract c {
	uint v;
	function reads() public returns (uint) { return v; }
}`)
	assert.True(t, hasMessage(warningMessages(ns), "can be declared 'view'"))
}

func TestUnknownIdentifierSuggestion(t *testing.T) {
	ns := resolve(t, `
contract c {
	uint balance;
	function f() public view returns (uint) {
		return balanse;
	}
}`)
	assert.True(t, hasMessage(errorMessages(ns), "unknown identifier 'balanse'"))
	assert.True(t, hasMessage(errorMessages(ns), "did you mean 'balance'"))
}

func TestLeftShiftWarning(t *testing.T) {
	ns := resolve(t, `
contract c {
	function f(uint256 x) public pure returns (uint256) {
		return x << 300;
	}
}`)
	assert.True(t, hasMessage(warningMessages(ns), "left shift"))
}

func TestCurrencyUnitWarningOnSolana(t *testing.T) {
	ns := resolveOn(t, target.Solana, "uint constant FEE = 1 ether;")
	assert.True(t, hasMessage(warningMessages(ns), "ethereum currency unit"))
}

func TestTryCatchRejectedOnSolana(t *testing.T) {
	ns := resolveOn(t, target.Solana, `
contract other {
	function get() public pure returns (uint) { return 1; }
}
contract c {
	function f(other o) public {
		try o.get() returns (uint v) {
			v;
		} catch {}
	}
}`)
	assert.True(t, hasMessage(errorMessages(ns), "try/catch is not supported when targeting solana"))
}

func TestAccessorStructDestructured(t *testing.T) {
	// A public variable whose sole type is a struct destructures into
	// the struct's fields in its accessor.
	ns := resolve(t, `
contract c {
	struct Pair { address token0; address token1; }
	Pair public pair;
}`)
	require.Empty(t, errorMessages(ns))
	var accessor *sema.Function
	for _, fn := range ns.Functions {
		if fn.IsAccessor {
			accessor = fn
		}
	}
	require.NotNil(t, accessor)
	assert.Equal(t, "pair", accessor.Name)
	require.Len(t, accessor.Returns, 2)
	assert.Equal(t, "token0", accessor.Returns[0].Name)
	assert.Equal(t, "token1", accessor.Returns[1].Name)
	assert.Equal(t, sema.MutView, accessor.Mutability)
	assert.True(t, accessor.Visibility.Externally())
}

func TestAccessorMappingChain(t *testing.T) {
	ns := resolve(t, `
contract c {
	mapping(address => mapping(address => address)) public getPair;
}`)
	require.Empty(t, errorMessages(ns))
	var accessor *sema.Function
	for _, fn := range ns.Functions {
		if fn.IsAccessor {
			accessor = fn
		}
	}
	require.NotNil(t, accessor)
	require.Len(t, accessor.Params, 2)
	assert.True(t, sema.Equal(accessor.Params[0].Type, sema.Address{}))
	require.Len(t, accessor.Returns, 1)
	assert.True(t, sema.Equal(accessor.Returns[0].Type, sema.Address{}))
}

func TestMissingReturn(t *testing.T) {
	ns := resolve(t, `
contract c {
	function f(bool b) public pure returns (uint) {
		if (b) {
			return 1;
		}
	}
}`)
	assert.True(t, hasMessage(errorMessages(ns), "does not return a value on all paths"))
}

func TestModifierPlaceholderRequired(t *testing.T) {
	ns := resolve(t, `
contract c {
	modifier m() {
		uint x = 1;
		x;
	}
	function f() public m {}
}`)
	assert.True(t, hasMessage(errorMessages(ns), "no '_' placeholder"))
}

func TestEnumResolution(t *testing.T) {
	ns := resolve(t, `
contract primitives {
	enum oper { add, sub, mul }
	function op_u64(oper op, uint64 a, uint64 b) public pure returns (uint64) {
		if (op == oper.add) {
			return a + b;
		}
		if (op == oper.sub) {
			return a - b;
		}
		return a * b;
	}
}`)
	require.Empty(t, errorMessages(ns))
	require.Len(t, ns.Enums, 1)
	assert.Equal(t, []string{"add", "sub", "mul"}, ns.Enums[0].Values)
}

func TestRecursiveTypeNotEncodable(t *testing.T) {
	ns := resolve(t, `
contract c {
	struct Node { uint value; Node[] children; }
	function root() public pure returns (Node memory n) {
		n.value = 1;
	}
}`)
	assert.True(t, hasMessage(errorMessages(ns), "recursive type"))
}

func TestRandomBuiltin(t *testing.T) {
	src := `
contract randomizer {
	function get_random(bytes memory subject) public view returns (bytes32) {
		return random(subject);
	}
}`
	ok := resolve(t, src)
	require.Empty(t, errorMessages(ok))

	onSolana := resolveOn(t, target.Solana, src)
	assert.True(t, hasMessage(errorMessages(onSolana), "random is only available when targeting polkadot"))
}

func TestMulFoldsWithFullPrecision(t *testing.T) {
	ns := resolve(t, "uint64 constant M = 123456789 * 123456789;")
	require.Empty(t, errorMessages(ns))
	lit, ok := ns.Constants[0].Initializer.(*sema.NumberLit)
	require.True(t, ok)
	assert.Equal(t, "15241578750190521", lit.Value.String())
}

func TestEventIndexedLimit(t *testing.T) {
	ns := resolve(t, `
event TooMany(uint indexed a, uint indexed b, uint indexed c, uint indexed d);
`)
	assert.True(t, hasMessage(errorMessages(ns), "indexed"))
}

func TestUnusedErrorWarning(t *testing.T) {
	ns := resolve(t, `
error Never(uint code);
contract c { function f() public pure {} }
`)
	assert.True(t, hasMessage(warningMessages(ns), "error 'Never' is never used"))
}

func TestUserTypeWrapUnwrap(t *testing.T) {
	ns := resolve(t, `
type Price is uint128;
Price constant BASE = Price.wrap(100);
contract c {
	function f(Price p) public pure returns (uint128) {
		return Price.unwrap(p);
	}
}`)
	require.Empty(t, errorMessages(ns))
	require.Len(t, ns.UserTypes, 1)
	assert.True(t, sema.Equal(ns.UserTypes[0].Type, sema.Uint{Width: 128}))
	lit, ok := ns.Constants[0].Initializer.(*sema.NumberLit)
	require.True(t, ok)
	assert.Equal(t, int64(100), lit.Value.Int64())
}

func TestImportedSymbols(t *testing.T) {
	fs := diag.NewFileSet()
	lib := fs.Add("/test/lib.sol", "lib.sol", `
uint constant FEE = 3;
struct Point { uint x; uint y; }
`)
	main := fs.Add("/test/main.sol", "main.sol", `
import { FEE, Point as P } from "lib.sol";
contract c {
	function f() public pure returns (uint) {
		P memory pt = P(1, FEE);
		return pt.y;
	}
}`)
	libUnit, libDiags := parser.Parse(lib.FileNo, lib.Text)
	mainUnit, mainDiags := parser.Parse(main.FileNo, main.Text)
	require.Empty(t, libDiags)
	require.Empty(t, mainDiags)
	// The import resolver wires the file number before sema runs.
	for _, item := range mainUnit.Items {
		if imp, ok := item.(*ast.ImportDirective); ok {
			imp.ResolvedFileNo = lib.FileNo
		}
	}
	ns := sema.Resolve(target.Default(target.Polkadot), fs, []*ast.SourceUnit{libUnit, mainUnit})
	assert.Empty(t, errorMessages(ns))
}

func TestDiagnosticsSortedDeterministically(t *testing.T) {
	ns := resolve(t, `
contract c {
	function f() public pure returns (uint) {
		return unknown_one + unknown_two;
	}
}`)
	diag.Sort(ns.Diagnostics)
	var offsets []int
	for _, d := range ns.Diagnostics {
		if d.Loc.InFile() {
			offsets = append(offsets, d.Loc.Start)
		}
	}
	for i := 1; i < len(offsets); i++ {
		assert.LessOrEqual(t, offsets[i-1], offsets[i])
	}
}
