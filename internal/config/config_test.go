package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingDefaultIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "solis.toml"), false)
	require.NoError(t, err)
	assert.Equal(t, "polkadot", cfg.Target)
	assert.Equal(t, "default", cfg.OptLevel)
}

func TestLoadMissingExplicitFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), true)
	assert.Error(t, err)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solis.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
target = "solana"
opt-level = "aggressive"
release = true
import-paths = ["vendor", "node_modules"]
import-map = ["lib/=vendor/lib"]
address-length = 32
`), 0644))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "solana", cfg.Target)
	assert.Equal(t, "aggressive", cfg.OptLevel)
	assert.True(t, cfg.Release)
	assert.Equal(t, []string{"vendor", "node_modules"}, cfg.ImportPaths)
	assert.Equal(t, 32, cfg.AddressLength)
	require.NoError(t, cfg.Validate())

	maps := cfg.Remappings()
	require.Len(t, maps, 1)
	assert.Equal(t, "lib/", maps[0][0])
	assert.Equal(t, "vendor/lib", maps[0][1])
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	tests := []struct {
		mutate func(*Config)
		want   string
	}{
		{func(c *Config) { c.Target = "evm" }, "unknown target"},
		{func(c *Config) { c.OptLevel = "O9" }, "unknown optimization level"},
		{func(c *Config) { c.Emit = "wat" }, "unknown emit format"},
		{func(c *Config) { c.WasmOpt = "9" }, "unknown wasm-opt level"},
		{func(c *Config) { c.AddressLength = 3 }, "address length"},
		{func(c *Config) { c.ValueLength = 99 }, "value length"},
		{func(c *Config) { c.ImportMap = []string{"noequals"} }, "prefix=path"},
	}
	for _, tt := range tests {
		cfg := Default()
		tt.mutate(cfg)
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), tt.want)
	}
}

func TestParseBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solis.toml")
	require.NoError(t, os.WriteFile(path, []byte("target = [unclosed"), 0644))
	_, err := Load(path, true)
	assert.Error(t, err)
}
