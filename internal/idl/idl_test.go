package idl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/solis/internal/abi"
)

const sampleIDL = `{
	"version": "0.1.0",
	"name": "counter",
	"programId": "11111111111111111111111111111111",
	"instructions": [
		{
			"name": "new",
			"discriminator": [1, 2, 3, 4, 5, 6, 7, 8],
			"accounts": [{"name": "payer", "isMut": true, "isSigner": true}],
			"args": []
		},
		{
			"name": "increment",
			"discriminator": [9, 10, 11, 12, 13, 14, 15, 16],
			"accounts": [],
			"args": [{"name": "by", "type": "u64"}],
			"returns": "u64"
		},
		{
			"name": "label",
			"discriminator": [17, 18, 19, 20, 21, 22, 23, 24],
			"accounts": [],
			"args": [{"name": "text", "type": "string"}]
		}
	]
}`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleIDL), 0644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "counter", doc.Name)
	require.Len(t, doc.Instructions, 3)
	assert.Equal(t, abi.Discriminator{1, 2, 3, 4, 5, 6, 7, 8}, doc.Instructions[0].Discriminator)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadNoName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anon.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"instructions": []}`), 0644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no program name")
}

func TestInterfaceStub(t *testing.T) {
	var doc abi.IDL
	path := filepath.Join(t.TempDir(), "counter.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleIDL), 0644))
	loaded, err := Load(path)
	require.NoError(t, err)
	doc = *loaded

	stub := Interface(&doc)

	assert.Contains(t, stub, `@program_id("11111111111111111111111111111111")`)
	assert.Contains(t, stub, "interface counter {")
	// Constructors never appear in an interface stub.
	assert.NotContains(t, stub, "function new")
	// Discriminators become @selector overrides so cross-program calls
	// stay wire-compatible.
	assert.Contains(t, stub, "@selector([9, 10, 11, 12, 13, 14, 15, 16])")
	assert.Contains(t, stub, "function increment(uint64 by) external returns (uint64);")
	assert.Contains(t, stub, "function label(string memory text) external;")
}

func TestSolTypeMapping(t *testing.T) {
	tests := map[string]string{
		"u8": "uint8", "u64": "uint64", "i128": "int128",
		"bool": "bool", "string": "string", "bytes": "bytes",
		"publicKey": "address", "u32[]": "uint32[]",
	}
	for in, want := range tests {
		assert.Equal(t, want, solType(in), "solType(%q)", in)
	}
}
