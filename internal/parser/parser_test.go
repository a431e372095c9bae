package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
)

func parseClean(t *testing.T, src string) *ast.SourceUnit {
	t.Helper()
	unit, diags := Parse(0, src)
	require.NotNil(t, unit)
	for _, d := range diags {
		t.Errorf("unexpected diagnostic: %s", d.Message)
	}
	return unit
}

func TestParseContract(t *testing.T) {
	unit := parseClean(t, `
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
}`)
	require.Len(t, unit.Items, 1)
	c, ok := unit.Items[0].(*ast.ContractDefinition)
	require.True(t, ok)
	assert.Equal(t, "flipper", c.Name.Name)
	assert.Equal(t, ast.KindContract, c.Kind)
	require.Len(t, c.Parts, 4)

	v, ok := c.Parts[0].(*ast.VariableDefinition)
	require.True(t, ok)
	assert.Equal(t, "value", v.Name.Name)
	assert.Equal(t, ast.VisPrivate, v.Visibility)

	ctor, ok := c.Parts[1].(*ast.FunctionDefinition)
	require.True(t, ok)
	assert.Equal(t, ast.FnConstructor, ctor.Kind)
	require.Len(t, ctor.Params, 1)
	assert.Equal(t, "initvalue", ctor.Params[0].Name.Name)

	get, ok := c.Parts[3].(*ast.FunctionDefinition)
	require.True(t, ok)
	assert.Equal(t, ast.MutView, get.Mutability)
	require.Len(t, get.Returns, 1)
}

func TestParseImportForms(t *testing.T) {
	unit := parseClean(t, `
import "lib.sol";
import "lib.sol" as Lib;
import { A, B as C } from "lib.sol";
`)
	require.Len(t, unit.Items, 3)

	plain := unit.Items[0].(*ast.ImportDirective)
	assert.Equal(t, "lib.sol", plain.Path)
	assert.Empty(t, plain.Alias.Name)

	aliased := unit.Items[1].(*ast.ImportDirective)
	assert.Equal(t, "Lib", aliased.Alias.Name)

	symbols := unit.Items[2].(*ast.ImportDirective)
	require.Len(t, symbols.Symbols, 2)
	assert.Equal(t, "A", symbols.Symbols[0].Name.Name)
	assert.Equal(t, "B", symbols.Symbols[1].Name.Name)
	assert.Equal(t, "C", symbols.Symbols[1].Alias.Name)
}

func TestParsePragmaIgnored(t *testing.T) {
	unit := parseClean(t, "pragma solidity ^0.8.0;\ncontract C {}")
	require.Len(t, unit.Items, 2)
	p := unit.Items[0].(*ast.PragmaDirective)
	assert.Equal(t, "solidity", p.Name.Name)
}

func TestParseAnnotations(t *testing.T) {
	unit := parseClean(t, `
@program_id("Foo5mMfYo5RhRcWa4NZ2bwFn4Kdhe8rNK5jchxsvrrqb")
contract c {
	@payer(payer_account)
	@seed("my_seed")
	@bump(1)
	constructor() {}

	@selector([1, 2, 3, 4])
	function f() public {}
}`)
	c := unit.Items[0].(*ast.ContractDefinition)
	require.Len(t, c.Annotations, 1)
	assert.Equal(t, "program_id", c.Annotations[0].Name.Name)

	ctor := c.Parts[0].(*ast.FunctionDefinition)
	require.Len(t, ctor.Annotations, 3)
	assert.Equal(t, "payer", ctor.Annotations[0].Name.Name)
	assert.Equal(t, "seed", ctor.Annotations[1].Name.Name)
	assert.Equal(t, "bump", ctor.Annotations[2].Name.Name)

	f := c.Parts[1].(*ast.FunctionDefinition)
	require.Len(t, f.Annotations, 1)
	require.Len(t, f.Annotations[0].Args, 1)
	_, isArray := f.Annotations[0].Args[0].(*ast.ArrayLiteral)
	assert.True(t, isArray)
}

func TestParseDocComments(t *testing.T) {
	unit := parseClean(t, `
/// Flips a coin.
/// @param x the coin
function flip(bool x) returns (bool) { return !x; }
`)
	fn := unit.Items[0].(*ast.FunctionDefinition)
	require.Len(t, fn.Doc, 2)
	assert.Equal(t, "Flips a coin.", fn.Doc[0].Text)
	assert.Equal(t, "@param x the coin", fn.Doc[1].Text)
}

func TestParseErrorRecovery(t *testing.T) {
	// The missing semicolon after `value = 1` must not abort the file:
	// both functions still parse.
	unit, diags := Parse(0, `
contract c {
	uint value;
	function bad() public { value = 1 }
	function good() public { value = 2; }
}`)
	require.NotNil(t, unit)
	assert.NotEmpty(t, diags)
	c := unit.Items[0].(*ast.ContractDefinition)
	names := []string{}
	for _, part := range c.Parts {
		if fn, ok := part.(*ast.FunctionDefinition); ok {
			names = append(names, fn.Name.Name)
		}
	}
	assert.Contains(t, names, "good")
}

func TestParseStatements(t *testing.T) {
	unit := parseClean(t, `
function f(uint n) returns (uint) {
	uint acc = 0;
	for (uint i = 0; i < n; i++) {
		if (i % 2 == 0) {
			acc += i;
		} else {
			continue;
		}
	}
	while (acc > 100) {
		acc -= 10;
	}
	do {
		acc++;
	} while (acc < 5);
	unchecked {
		acc = acc * 2;
	}
	return acc;
}`)
	fn := unit.Items[0].(*ast.FunctionDefinition)
	require.NotNil(t, fn.Body)
	require.Len(t, fn.Body.Stmts, 6)
	_, isFor := fn.Body.Stmts[1].(*ast.ForStmt)
	assert.True(t, isFor)
	_, isWhile := fn.Body.Stmts[2].(*ast.WhileStmt)
	assert.True(t, isWhile)
	_, isDo := fn.Body.Stmts[3].(*ast.DoWhileStmt)
	assert.True(t, isDo)
	blk, isBlock := fn.Body.Stmts[4].(*ast.Block)
	require.True(t, isBlock)
	assert.True(t, blk.Unchecked)
}

func TestParseExpressionPrecedence(t *testing.T) {
	unit := parseClean(t, "uint constant x = 1 + 2 * 3;")
	v := unit.Items[0].(*ast.VariableDefinition)
	add, ok := v.Initializer.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAdd, add.Op)
	mul, ok := add.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpMul, mul.Op)
}

func TestParsePowerRightAssociative(t *testing.T) {
	unit := parseClean(t, "uint constant x = 2 ** 3 ** 2;")
	v := unit.Items[0].(*ast.VariableDefinition)
	outer := v.Initializer.(*ast.BinaryExpr)
	require.Equal(t, ast.OpPower, outer.Op)
	inner, ok := outer.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpPower, inner.Op)
}

func TestParseMappingAndArrayTypes(t *testing.T) {
	unit := parseClean(t, `
contract c {
	mapping(address owner => uint256 balance) public balances;
	uint[10][] matrix;
	mapping(address => mapping(address => address)) pairs;
}`)
	c := unit.Items[0].(*ast.ContractDefinition)
	m := c.Parts[0].(*ast.VariableDefinition)
	mt, ok := m.Type.(*ast.MappingType)
	require.True(t, ok)
	assert.Equal(t, "owner", mt.KeyName.Name)
	assert.Equal(t, "balance", mt.ValueName.Name)

	arr := c.Parts[1].(*ast.VariableDefinition)
	_, ok = arr.Type.(*ast.Subscript)
	assert.True(t, ok)
}

func TestParseEventsAndErrors(t *testing.T) {
	unit := parseClean(t, `
event Transfer(address indexed from, address indexed to, uint256 value);
error InsufficientBalance(uint256 available, uint256 required);
`)
	ev := unit.Items[0].(*ast.EventDefinition)
	require.Len(t, ev.Fields, 3)
	assert.True(t, ev.Fields[0].Indexed)
	assert.False(t, ev.Fields[2].Indexed)

	ed := unit.Items[1].(*ast.ErrorDefinition)
	assert.Equal(t, "InsufficientBalance", ed.Name.Name)
	require.Len(t, ed.Fields, 2)
}

func TestParseModifierAndPlaceholder(t *testing.T) {
	unit := parseClean(t, `
contract c {
	address owner;
	modifier onlyOwner() {
		require(msg.sender == owner, "not owner");
		_;
	}
	function f() public onlyOwner {}
}`)
	c := unit.Items[0].(*ast.ContractDefinition)
	mod := c.Parts[1].(*ast.FunctionDefinition)
	require.Equal(t, ast.FnModifier, mod.Kind)
	_, isPlaceholder := mod.Body.Stmts[1].(*ast.PlaceholderStmt)
	assert.True(t, isPlaceholder)

	f := c.Parts[2].(*ast.FunctionDefinition)
	require.Len(t, f.Modifiers, 1)
	assert.Equal(t, "onlyOwner", f.Modifiers[0].Name.Parts[0].Name)
}

func TestParseTryCatch(t *testing.T) {
	unit := parseClean(t, `
contract c {
	function f(address a) public {
		try other(a).get() returns (uint v) {
			v;
		} catch Error(string memory reason) {
			reason;
		} catch (bytes memory raw) {
			raw;
		}
	}
}
contract other {
	function get() public returns (uint) { return 1; }
}`)
	c := unit.Items[0].(*ast.ContractDefinition)
	f := c.Parts[0].(*ast.FunctionDefinition)
	tryStmt, ok := f.Body.Stmts[0].(*ast.TryStmt)
	require.True(t, ok)
	require.Len(t, tryStmt.Catches, 2)
	assert.Equal(t, ast.CatchError, tryStmt.Catches[0].Kind)
	assert.Equal(t, ast.CatchAll, tryStmt.Catches[1].Kind)
}

func TestEveryItemHasFileLoc(t *testing.T) {
	src := `
pragma solidity ^0.8;
import "./lib.sol";
uint constant FEE = 3;
struct Point { uint x; uint y; }
enum Dir { Up, Down }
event E(uint a);
error Bad();
type Price is uint128;
function free() returns (uint) { return FEE; }
contract c is base { function f() public {} }
contract base {}
`
	unit, _ := Parse(7, src)
	require.NotNil(t, unit)
	for _, item := range unit.Items {
		loc := item.ItemLoc()
		assert.Equal(t, diag.LocFile, loc.Kind)
		assert.Equal(t, 7, loc.FileNo)
		assert.LessOrEqual(t, loc.Start, loc.End)
		assert.LessOrEqual(t, loc.End, len(src))
	}
}

func TestParseDestructuring(t *testing.T) {
	unit := parseClean(t, `
function pair() returns (uint, uint) { return (1, 2); }
function f() {
	(uint a, uint b) = pair();
	a; b;
}`)
	f := unit.Items[1].(*ast.FunctionDefinition)
	decl, ok := f.Body.Stmts[0].(*ast.VariableDeclStmt)
	require.True(t, ok)
	require.Len(t, decl.Decls, 2)
	assert.Equal(t, "a", decl.Decls[0].Name.Name)
	assert.Equal(t, "b", decl.Decls[1].Name.Name)
}
