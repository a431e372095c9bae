package abi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/solis/internal/abi"
	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/parser"
	"github.com/standardbeagle/solis/internal/sema"
	"github.com/standardbeagle/solis/internal/target"
)

func resolveFor(t *testing.T, kind target.Kind, src string) *sema.Namespace {
	t.Helper()
	fs := diag.NewFileSet()
	f := fs.Add("/test/test.sol", "test.sol", src)
	unit, _ := parser.Parse(f.FileNo, src)
	require.NotNil(t, unit)
	ns := sema.Resolve(target.Default(kind), fs, []*ast.SourceUnit{unit})
	require.False(t, ns.HasErrors(), "diags: %v", ns.Diagnostics)
	return ns
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

func TestFlipperMetadata(t *testing.T) {
	ns := resolveFor(t, target.Polkadot, flipperSrc)
	meta := abi.BuildMetadata(ns, 0)

	assert.Equal(t, "flipper", meta.Name)
	require.Len(t, meta.Constructors, 1)
	require.Len(t, meta.Constructors[0].Args, 1)
	assert.Equal(t, "initvalue", meta.Constructors[0].Args[0].Label)
	assert.Equal(t, "bool", meta.Constructors[0].Args[0].Type)

	labels := map[string]abi.Message{}
	for _, m := range meta.Messages {
		labels[m.Label] = m
	}
	require.Contains(t, labels, "flip")
	require.Contains(t, labels, "get")
	assert.True(t, labels["flip"].Mutates)
	assert.False(t, labels["get"].Mutates)
	require.Len(t, labels["get"].Returns, 1)
	assert.Equal(t, "bool", labels["get"].Returns[0].Type)
	assert.Len(t, labels["flip"].Selector, 2+8, "0x prefix plus four selector bytes")
}

func TestMetadataIncludesAccessor(t *testing.T) {
	ns := resolveFor(t, target.Polkadot, `
contract c {
	uint public counter;
}`)
	meta := abi.BuildMetadata(ns, 0)
	found := false
	for _, m := range meta.Messages {
		if m.Label == "counter" {
			found = true
			require.Len(t, m.Returns, 1)
			assert.Equal(t, "uint256", m.Returns[0].Type)
		}
	}
	assert.True(t, found, "public variable accessor must appear in metadata")
}

func TestMetadataEvents(t *testing.T) {
	ns := resolveFor(t, target.Polkadot, `
contract c {
	event Transfer(address indexed from, address indexed to, uint256 value);
	function f(address to) public {
		emit Transfer(msg.sender, to, 1);
	}
}`)
	meta := abi.BuildMetadata(ns, 0)
	require.Len(t, meta.Events, 1)
	ev := meta.Events[0]
	assert.Equal(t, "Transfer", ev.Label)
	require.Len(t, ev.Args, 3)
	assert.True(t, ev.Args[0].Indexed)
	assert.False(t, ev.Args[2].Indexed)
}

func TestSolanaIDL(t *testing.T) {
	ns := resolveFor(t, target.Solana, `
@program_id("11111111111111111111111111111111")
contract store {
	uint64 count;

	@payer(payer)
	@space(1024)
	constructor() {}

	@mutableSigner(admin)
	function set(uint64 v) public {
		count = v;
	}

	function get() public view returns (uint64) {
		return count;
	}
}`)
	idl := abi.BuildIDL(ns, 0, "0.1.0")

	assert.Equal(t, "store", idl.Name)
	assert.Equal(t, "11111111111111111111111111111111", idl.ProgramID)

	byName := map[string]abi.IDLInstruction{}
	for _, inst := range idl.Instructions {
		byName[inst.Name] = inst
		assert.Len(t, inst.Discriminator, 8, "solana discriminators are 8 bytes")
	}
	require.Contains(t, byName, "new")
	require.Contains(t, byName, "set")
	require.Contains(t, byName, "get")

	ctor := byName["new"]
	require.Len(t, ctor.Accounts, 1)
	assert.Equal(t, "payer", ctor.Accounts[0].Name)
	assert.True(t, ctor.Accounts[0].IsSigner)
	assert.True(t, ctor.Accounts[0].IsMut)

	set := byName["set"]
	require.Len(t, set.Accounts, 1)
	assert.Equal(t, "admin", set.Accounts[0].Name)
	assert.True(t, set.Accounts[0].IsSigner)
	require.Len(t, set.Args, 1)
	assert.Equal(t, "uint64", set.Args[0].Type)

	assert.Equal(t, "uint64", byName["get"].Returns)
}

func TestSignatureMangling(t *testing.T) {
	ns := resolveFor(t, target.Polkadot, `
contract c {
	enum Color { Red, Green }
	struct Pt { uint x; uint y; }
	function f(Color col, Pt memory p, uint[] memory xs, address who) public {}
}`)
	for _, fn := range ns.Functions {
		if fn.Name == "f" {
			sig := ns.Signature(fn)
			assert.Equal(t, "f(uint8,(uint256,uint256),uint256[],address)", sig)
			return
		}
	}
	t.Fatal("function f not found")
}

func TestErrorSelector(t *testing.T) {
	ns := resolveFor(t, target.Polkadot, `
error InsufficientBalance(uint256 available, uint256 required);
contract c {
	function f() public pure {
		revert InsufficientBalance(0, 1);
	}
}`)
	require.Len(t, ns.Errors, 1)
	sel := ns.ErrorSelector(ns.Errors[0])
	assert.Len(t, sel, 4)
	assert.Equal(t, "InsufficientBalance(uint256,uint256)", ns.ErrorSignature(ns.Errors[0]))
}
