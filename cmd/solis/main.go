package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/solis/internal/config"
	"github.com/standardbeagle/solis/internal/idl"
	"github.com/standardbeagle/solis/internal/version"
)

var Version = version.Version

// exitCodeError carries a process exit code out of a command.
type exitCodeError struct {
	code int
	msg  string
}

func (e *exitCodeError) Error() string { return e.msg }

func newApp() *cli.App {
	return &cli.App{
		Name:                   "solis",
		Usage:                  "Solidity compiler for Polkadot and Solana",
		Version:                Version,
		UseShortOptionHandling: true,
		Commands: []*cli.Command{
			compileCommand(),
			idlCommand(),
		},
	}
}

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		if ec, ok := err.(*exitCodeError); ok {
			if ec.msg != "" {
				fmt.Fprintln(os.Stderr, ec.msg)
			}
			os.Exit(ec.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func compileCommand() *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Usage:     "Compile Solidity source files",
		ArgsUsage: "<file.sol> ...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Config file path",
				Value: config.DefaultPath,
			},
			&cli.StringFlag{
				Name:  "target",
				Usage: "Target chain: polkadot or solana",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory",
			},
			&cli.StringFlag{
				Name:    "opt",
				Aliases: []string{"O"},
				Usage:   "Optimization level: none, less, default, aggressive",
			},
			&cli.BoolFlag{
				Name:  "release",
				Usage: "Disable printing of errors at runtime (strips revert strings and debug buffers)",
			},
			&cli.BoolFlag{
				Name:    "debug-info",
				Aliases: []string{"g"},
				Usage:   "Emit debug info and runtime-error diagnostics to the debug buffer",
			},
			&cli.StringSliceFlag{
				Name:  "importpath",
				Usage: "Directory to search for imports (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "importmap",
				Usage: "Import path remapping prefix=path (repeatable)",
			},
			&cli.StringFlag{
				Name:  "emit",
				Usage: "Emit format: ast-dot, cfg, llvm-ir, llvm-bc, asm, object",
			},
			&cli.StringFlag{
				Name:  "wasm-opt",
				Usage: "wasm-opt pass level: Z, s, 0, 1, 2, 3, 4",
			},
			&cli.IntFlag{
				Name:  "address-length",
				Usage: "Address length in bytes (polkadot default 32)",
			},
			&cli.IntFlag{
				Name:  "value-length",
				Usage: "Value length in bytes (polkadot default 16)",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored diagnostics",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show extra information during compilation",
			},
		},
		Action: runCompile,
	}
}

// loadConfigWithOverrides loads the TOML config and applies CLI flag
// overrides key by key.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	cfg, err := config.Load(path, c.IsSet("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("target") {
		cfg.Target = c.String("target")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("opt") {
		cfg.OptLevel = c.String("opt")
	}
	if c.IsSet("release") {
		cfg.Release = c.Bool("release")
	}
	if c.IsSet("debug-info") {
		cfg.DebugInfo = c.Bool("debug-info")
	}
	if paths := c.StringSlice("importpath"); len(paths) > 0 {
		cfg.ImportPaths = paths
	}
	if maps := c.StringSlice("importmap"); len(maps) > 0 {
		cfg.ImportMap = maps
	}
	if c.IsSet("emit") {
		cfg.Emit = c.String("emit")
	}
	if c.IsSet("wasm-opt") {
		cfg.WasmOpt = c.String("wasm-opt")
	}
	if c.IsSet("address-length") {
		cfg.AddressLength = c.Int("address-length")
	}
	if c.IsSet("value-length") {
		cfg.ValueLength = c.Int("value-length")
	}
	if c.IsSet("no-color") {
		cfg.NoColor = c.Bool("no-color")
	}
	if c.IsSet("verbose") {
		cfg.Verbose = c.Bool("verbose")
	}
	return cfg, cfg.Validate()
}

func idlCommand() *cli.Command {
	return &cli.Command{
		Name:      "idl",
		Usage:     "Convert an IDL file into a Solidity interface stub",
		ArgsUsage: "<program.json> ...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory",
				Value:   ".",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return &exitCodeError{code: 2, msg: "no IDL files given"}
			}
			for _, path := range c.Args().Slice() {
				doc, err := idl.Load(path)
				if err != nil {
					return &exitCodeError{code: 2, msg: err.Error()}
				}
				stub := idl.Interface(doc)
				out := filepath.Join(c.String("output"), doc.Name+".sol")
				if err := os.WriteFile(out, []byte(stub), 0644); err != nil {
					return &exitCodeError{code: 2, msg: err.Error()}
				}
			}
			return nil
		},
	}
}
