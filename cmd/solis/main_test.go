package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// run invokes the CLI in-process and returns the exit code.
func run(t *testing.T, args ...string) int {
	t.Helper()
	app := newApp()
	err := app.Run(append([]string{"solis"}, args...))
	if err == nil {
		return 0
	}
	if ec, ok := err.(*exitCodeError); ok {
		return ec.code
	}
	return 2
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

func TestCompileFlipper(t *testing.T) {
	dir := t.TempDir()
	src := write(t, dir, "flipper.sol", flipperSrc)
	out := filepath.Join(dir, "out")

	code := run(t, "compile", "--target", "polkadot", "-o", out, "--no-color", src)
	assert.Equal(t, 0, code)

	data, err := os.ReadFile(filepath.Join(out, "flipper.contract"))
	require.NoError(t, err)
	bundle := string(data)
	assert.Contains(t, bundle, "\"name\": \"flipper\"")
	assert.Contains(t, bundle, "initvalue")
	assert.Contains(t, bundle, "\"type\": \"bool\"")
}

func TestCompileFactory(t *testing.T) {
	dir := t.TempDir()
	src := write(t, dir, "factory.sol", `
contract UniswapV2Pair {
	address public token0;
	address public token1;

	function initialize(address t0, address t1) public {
		token0 = t0;
		token1 = t1;
	}
}

contract UniswapV2Factory {
	mapping(address => mapping(address => address)) public getPair;
	address[] public allPairs;

	event PairCreated(address indexed token0, address indexed token1, address pair, uint);

	function allPairsLength() public view returns (uint) {
		return allPairs.length;
	}

	function createPair(address tokenA, address tokenB) public returns (address pair) {
		require(tokenA != tokenB, "IDENTICAL_ADDRESSES");
		require(getPair[tokenA][tokenB] == address(0), "PAIR_EXISTS");
		pair = address(new UniswapV2Pair());
		UniswapV2Pair(pair).initialize(tokenA, tokenB);
		getPair[tokenA][tokenB] = pair;
		getPair[tokenB][tokenA] = pair;
		allPairs.push(pair);
		emit PairCreated(tokenA, tokenB, pair, allPairs.length);
	}
}`)
	out := filepath.Join(dir, "out")

	code := run(t, "compile", "--target", "polkadot", "-o", out, "--no-color", src)
	assert.Equal(t, 0, code)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["UniswapV2Pair.contract"])
	assert.True(t, names["UniswapV2Factory.contract"])
}

func TestCompileErrorsExitOne(t *testing.T) {
	dir := t.TempDir()
	src := write(t, dir, "broken.sol", `
contract c {
	function f() public pure returns (uint) {
		return unknown_name;
	}
}`)
	code := run(t, "compile", "-o", filepath.Join(dir, "out"), "--no-color", src)
	assert.Equal(t, 1, code)
}

func TestCompileNoSourcesExitTwo(t *testing.T) {
	code := run(t, "compile")
	assert.Equal(t, 2, code)
}

func TestCompileUnknownTargetExitTwo(t *testing.T) {
	dir := t.TempDir()
	src := write(t, dir, "a.sol", "contract a {}")
	code := run(t, "compile", "--target", "evm", src)
	assert.Equal(t, 2, code)
}

func TestCompileSolanaBundle(t *testing.T) {
	dir := t.TempDir()
	src := write(t, dir, "store.sol", `
contract store {
	uint64 count;

	@payer(payer)
	constructor() {}

	function inc() public {
		count = count + 1;
	}
}`)
	out := filepath.Join(dir, "out")
	code := run(t, "compile", "--target", "solana", "-o", out, "--no-color", src)
	assert.Equal(t, 0, code)

	ll, err := os.ReadFile(filepath.Join(out, "bundle.ll"))
	require.NoError(t, err)
	assert.Contains(t, string(ll), "define i64 @entrypoint(ptr %input)")

	idlData, err := os.ReadFile(filepath.Join(out, "store.json"))
	require.NoError(t, err)
	assert.Contains(t, string(idlData), "\"discriminator\"")
}

func TestCompileEmitCFG(t *testing.T) {
	dir := t.TempDir()
	src := write(t, dir, "flipper.sol", flipperSrc)
	out := filepath.Join(dir, "out")
	code := run(t, "compile", "--emit", "cfg", "-o", out, "--no-color", src)
	assert.Equal(t, 0, code)

	data, err := os.ReadFile(filepath.Join(out, "cfg.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "storage_store")
}

func TestCompileEmitObjectNeedsLLVM(t *testing.T) {
	dir := t.TempDir()
	src := write(t, dir, "flipper.sol", flipperSrc)
	code := run(t, "compile", "--emit", "object", "-o", filepath.Join(dir, "out"), "--no-color", src)
	assert.Equal(t, 1, code)
}

func TestIDLSubcommand(t *testing.T) {
	dir := t.TempDir()
	idlPath := write(t, dir, "counter.json", `{
	"version": "0.1.0",
	"name": "counter",
	"instructions": [
		{
			"name": "increment",
			"discriminator": [9, 10, 11, 12, 13, 14, 15, 16],
			"accounts": [],
			"args": [{"name": "by", "type": "u64"}]
		}
	]
}`)
	out := filepath.Join(dir, "stubs")
	require.NoError(t, os.MkdirAll(out, 0755))

	code := run(t, "idl", "-o", out, idlPath)
	assert.Equal(t, 0, code)

	stub, err := os.ReadFile(filepath.Join(out, "counter.sol"))
	require.NoError(t, err)
	text := string(stub)
	assert.True(t, strings.HasPrefix(text, "interface counter {"))
	assert.Contains(t, text, "function increment(uint64 by) external;")
}
