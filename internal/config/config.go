// Package config materializes the compilation configuration from the
// optional solis.toml file and the CLI flags layered on top. Every CLI
// flag has a corresponding TOML key; CLI wins key by key.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	solerrors "github.com/standardbeagle/solis/internal/errors"
)

// DefaultPath is the conventional config file location, relative to
// the working directory.
const DefaultPath = "solis.toml"

// Config is the pipeline's configuration struct; the driver builds it
// once and passes it through explicitly.
type Config struct {
	Target        string   `toml:"target"`
	Output        string   `toml:"output"`
	OptLevel      string   `toml:"opt-level"`
	Release       bool     `toml:"release"`
	DebugInfo     bool     `toml:"debug-info"`
	WasmOpt       string   `toml:"wasm-opt"`
	AddressLength int      `toml:"address-length"`
	ValueLength   int      `toml:"value-length"`
	ImportPaths   []string `toml:"import-paths"`
	ImportMap     []string `toml:"import-map"`
	Emit          string   `toml:"emit"`
	NoColor       bool     `toml:"no-color"`
	Verbose       bool     `toml:"verbose"`
}

// Default returns the configuration before any file or flag applies.
func Default() *Config {
	return &Config{
		Target:   "polkadot",
		Output:   ".",
		OptLevel: "default",
	}
}

// Load reads the TOML file at path into the defaults. A missing file
// at the conventional path is not an error; a named file that cannot
// be read is.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, solerrors.NewFileError("read", path, err)
	}
	// Keys without a Config field (such as the removed
	// no-log-api-return-codes) are rejected rather than ignored.
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(cfg); err != nil {
		return nil, solerrors.NewConfigError("file", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints once flags are applied.
func (c *Config) Validate() error {
	switch c.Target {
	case "polkadot", "solana":
	default:
		return fmt.Errorf("unknown target %q (supported: polkadot, solana)", c.Target)
	}
	switch c.OptLevel {
	case "", "none", "less", "default", "aggressive":
	default:
		return fmt.Errorf("unknown optimization level %q", c.OptLevel)
	}
	switch c.Emit {
	case "", "ast-dot", "cfg", "llvm-ir", "llvm-bc", "asm", "object":
	default:
		return fmt.Errorf("unknown emit format %q", c.Emit)
	}
	switch c.WasmOpt {
	case "", "Z", "s", "0", "1", "2", "3", "4":
	default:
		return fmt.Errorf("unknown wasm-opt level %q", c.WasmOpt)
	}
	if c.AddressLength != 0 && (c.AddressLength < 4 || c.AddressLength > 64) {
		return fmt.Errorf("address length %d out of range 4..64", c.AddressLength)
	}
	if c.ValueLength != 0 && (c.ValueLength < 4 || c.ValueLength > 32) {
		return fmt.Errorf("value length %d out of range 4..32", c.ValueLength)
	}
	for _, m := range c.ImportMap {
		if !strings.Contains(m, "=") {
			return fmt.Errorf("import map entry %q must have the form prefix=path", m)
		}
	}
	return nil
}

// Remappings parses the prefix=path entries.
func (c *Config) Remappings() [][2]string {
	var out [][2]string
	for _, m := range c.ImportMap {
		if i := strings.Index(m, "="); i > 0 {
			out = append(out, [2]string{m[:i], m[i+1:]})
		}
	}
	return out
}
