// Package imports materializes the file graph of a compilation: it
// loads the root files, walks their import directives depth-first, and
// assigns each distinct absolute path a stable file number. Symbol
// semantics of imports are applied later by the resolver; this package
// only builds the closure.
package imports

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/parser"
)

// Remapping rewrites an import-path prefix to a filesystem path.
type Remapping struct {
	Prefix string
	Target string
}

// Resolver holds the search configuration for one compilation.
type Resolver struct {
	ImportPaths []string
	Remappings  []Remapping

	Files *diag.FileSet
	Units []*ast.SourceUnit // indexed by file number; nil after a fatal parse
	Diags []diag.Diagnostic
}

// NewResolver returns a resolver over the given search paths. Longer
// remapping prefixes win, so they are sorted longest-first once.
func NewResolver(importPaths []string, remappings []Remapping) *Resolver {
	sorted := append([]Remapping(nil), remappings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &Resolver{
		ImportPaths: importPaths,
		Remappings:  sorted,
		Files:       diag.NewFileSet(),
	}
}

// AddRoot loads, parses and walks one command-line source file. ok is
// false when the file could not be read or was fatally unparsable.
func (r *Resolver) AddRoot(path string) bool {
	fileNo, ok := r.load(path, path, diag.Builtin())
	return ok && fileNo >= 0
}

// load reads a file (deduplicated by canonical path), parses it and
// recurses into its imports. It returns the file number.
func (r *Resolver) load(path, importPath string, importLoc diag.Loc) (int, bool) {
	abs, err := filepath.Abs(path)
	if err == nil {
		if resolved, rerr := filepath.EvalSymlinks(abs); rerr == nil {
			abs = resolved
		}
	} else {
		abs = path
	}

	if f := r.Files.Lookup(abs); f != nil {
		return f.FileNo, true // repeat visit: no re-parse
	}

	text, err := os.ReadFile(abs)
	if err != nil {
		r.Diags = append(r.Diags, diag.Fatal(importLoc, "cannot read file '%s': %v", importPath, err))
		return -1, false
	}

	f := r.Files.Add(abs, importPath, string(text))
	// Keep Units index-aligned with file numbers.
	for len(r.Units) <= f.FileNo {
		r.Units = append(r.Units, nil)
	}

	unit, diags := parser.Parse(f.FileNo, f.Text)
	r.Diags = append(r.Diags, diags...)
	if unit == nil {
		return f.FileNo, false
	}
	r.Units[f.FileNo] = unit

	dir := filepath.Dir(abs)
	for _, item := range unit.Items {
		imp, ok := item.(*ast.ImportDirective)
		if !ok || imp.Path == "" {
			continue
		}
		resolved, found := r.resolvePath(dir, imp.Path)
		if !found {
			r.Diags = append(r.Diags, diag.Error(imp.PathLoc, "file not found '%s'", imp.Path))
			continue
		}
		fileNo, ok := r.load(resolved, imp.Path, imp.PathLoc)
		if ok {
			imp.ResolvedFileNo = fileNo
		}
	}
	return f.FileNo, true
}

// resolvePath applies the search rules: relative paths resolve against
// the importing file's directory; all other paths try remappings
// longest-prefix-first, then each import path in order. The first
// existing file wins.
func (r *Resolver) resolvePath(importingDir, path string) (string, bool) {
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") {
		cand := filepath.Join(importingDir, path)
		return cand, fileExists(cand)
	}
	if filepath.IsAbs(path) {
		return path, fileExists(path)
	}
	for _, m := range r.Remappings {
		if strings.HasPrefix(path, m.Prefix) {
			cand := filepath.Join(m.Target, strings.TrimPrefix(path, m.Prefix))
			if fileExists(cand) {
				return cand, true
			}
		}
	}
	for _, dir := range r.ImportPaths {
		// Directories may be given as globs (node_modules/*-style
		// vendor trees).
		if strings.ContainsAny(dir, "*?[") {
			matches, err := doublestar.FilepathGlob(dir)
			if err != nil {
				continue
			}
			for _, m := range matches {
				cand := filepath.Join(m, path)
				if fileExists(cand) {
					return cand, true
				}
			}
			continue
		}
		cand := filepath.Join(dir, path)
		if fileExists(cand) {
			return cand, true
		}
	}
	// Last chance: relative to the importing file without the ./
	// prefix, matching the reference compiler's lenient lookup.
	cand := filepath.Join(importingDir, path)
	return cand, fileExists(cand)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
