package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/solis/internal/config"
	"github.com/standardbeagle/solis/internal/debug"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/emit"
	"github.com/standardbeagle/solis/internal/imports"
	"github.com/standardbeagle/solis/internal/passes"
	"github.com/standardbeagle/solis/internal/sema"
	"github.com/standardbeagle/solis/internal/target"
	"github.com/standardbeagle/solis/internal/version"
)

// runCompile is the compile subcommand: import resolution, parsing,
// semantic analysis, lowering, optimization and emission, with every
// diagnostic rendered at the end.
func runCompile(c *cli.Context) error {
	if c.NArg() == 0 {
		return &exitCodeError{code: 2, msg: "no source files given"}
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return &exitCodeError{code: 2, msg: err.Error()}
	}

	if cfg.Verbose {
		debug.SetDebugOutput(os.Stderr)
	}

	kind, err := target.Parse(cfg.Target)
	if err != nil {
		return &exitCodeError{code: 2, msg: err.Error()}
	}
	tgt := target.Default(kind)
	if cfg.AddressLength != 0 {
		tgt.AddressLength = cfg.AddressLength
	}
	if cfg.ValueLength != 0 {
		tgt.ValueLength = cfg.ValueLength
	}

	var remaps []imports.Remapping
	for _, m := range cfg.Remappings() {
		remaps = append(remaps, imports.Remapping{Prefix: m[0], Target: m[1]})
	}
	resolver := imports.NewResolver(cfg.ImportPaths, remaps)
	for _, path := range c.Args().Slice() {
		resolver.AddRoot(path)
	}
	debug.Logf("parsed %d files", resolver.Files.Len())

	renderer := diag.NewRenderer(os.Stderr, resolver.Files, cfg.NoColor)
	if diag.HasFatal(resolver.Diags) {
		renderer.RenderAll(resolver.Diags)
		return &exitCodeError{code: 1}
	}

	ns := sema.Resolve(tgt, resolver.Files, resolver.Units)
	ns.Diagnostics = append(resolver.Diags, ns.Diagnostics...)
	debug.Logf("resolved %d contracts, %d functions", len(ns.Contracts), len(ns.Functions))

	if cfg.Emit == "ast-dot" {
		renderer.RenderAll(ns.Diagnostics)
		return writeOutput(cfg, "ast.dot", []byte(emit.ASTDot(resolver.Units)))
	}

	if ns.HasErrors() {
		renderer.RenderAll(ns.Diagnostics)
		return &exitCodeError{code: 1}
	}

	level, _ := passes.ParseLevel(cfg.OptLevel)
	emitter := emit.New(ns, emit.Options{
		OptLevel:  level,
		DebugInfo: cfg.DebugInfo,
		Release:   cfg.Release,
		Version:   version.Version,
	})

	switch cfg.Emit {
	case "cfg":
		renderer.RenderAll(ns.Diagnostics)
		return writeOutput(cfg, "cfg.txt", []byte(emitter.EmitCFG()))
	case "llvm-ir":
		if errs := renderer.RenderAll(ns.Diagnostics); errs > 0 {
			return &exitCodeError{code: 1}
		}
		for _, a := range emitter.EmitLLVM() {
			if err := writeOutput(cfg, a.Name, a.Data); err != nil {
				return err
			}
		}
		return nil
	case "llvm-bc", "asm", "object":
		ns.Diag(diag.Error(diag.Builtin(),
			"emit format '%s' requires the external LLVM toolchain; use --emit llvm-ir", cfg.Emit))
		renderer.RenderAll(ns.Diagnostics)
		return &exitCodeError{code: 1}
	}

	artifacts, err := emitter.Artifacts()
	if err != nil {
		return &exitCodeError{code: 1, msg: err.Error()}
	}
	if errs := renderer.RenderAll(ns.Diagnostics); errs > 0 {
		return &exitCodeError{code: 1}
	}
	for _, a := range artifacts {
		if err := writeOutput(cfg, a.Name, a.Data); err != nil {
			return err
		}
		if cfg.Verbose {
			fmt.Fprintf(os.Stderr, "wrote %s\n", filepath.Join(cfg.Output, a.Name))
		}
	}
	return nil
}

func writeOutput(cfg *config.Config, name string, data []byte) error {
	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return &exitCodeError{code: 2, msg: err.Error()}
	}
	path := filepath.Join(cfg.Output, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &exitCodeError{code: 2, msg: err.Error()}
	}
	return nil
}
