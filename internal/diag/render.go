package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/hbollon/go-edlib"
)

// Renderer writes diagnostics as human-readable entries with
// file:line:column anchors. Colors are applied per severity unless
// disabled.
type Renderer struct {
	out     io.Writer
	files   *FileSet
	noColor bool
}

// NewRenderer returns a renderer over the given file set.
func NewRenderer(out io.Writer, files *FileSet, noColor bool) *Renderer {
	return &Renderer{out: out, files: files, noColor: noColor}
}

var (
	fatalColor = color.New(color.FgRed, color.Bold)
	errColor   = color.New(color.FgRed)
	warnColor  = color.New(color.FgYellow)
	infoColor  = color.New(color.FgCyan)
	noteColor  = color.New(color.FgHiBlack)
)

func (r *Renderer) paint(level Level, s string) string {
	if r.noColor {
		return s
	}
	switch level {
	case LevelFatal:
		return fatalColor.Sprint(s)
	case LevelError:
		return errColor.Sprint(s)
	case LevelWarning:
		return warnColor.Sprint(s)
	default:
		return infoColor.Sprint(s)
	}
}

// Render writes one diagnostic entry plus its notes.
func (r *Renderer) Render(d Diagnostic) {
	fmt.Fprintf(r.out, "%s: %s: %s\n",
		r.files.Anchor(d.Loc), r.paint(d.Level, d.Level.String()), d.Message)
	for _, n := range d.Notes {
		label := "note"
		if !r.noColor {
			label = noteColor.Sprint(label)
		}
		fmt.Fprintf(r.out, "\t%s: %s: %s\n", r.files.Anchor(n.Loc), label, n.Message)
	}
}

// RenderAll sorts and writes every diagnostic, returning the number of
// error-or-worse entries written.
func (r *Renderer) RenderAll(diags []Diagnostic) int {
	Sort(diags)
	errs := 0
	for _, d := range diags {
		r.Render(d)
		if d.Level >= LevelError {
			errs++
		}
	}
	return errs
}

// Suggest returns the candidate within Levenshtein distance 2 of name,
// or "" when nothing is close enough. Used for did-you-mean notes on
// unknown identifiers and annotations.
func Suggest(name string, candidates []string) string {
	best := ""
	bestDist := 3
	for _, c := range candidates {
		if c == name {
			continue
		}
		// Cheap length filter before computing the distance.
		if abs(len(c)-len(name)) >= bestDist {
			continue
		}
		d := edlib.LevenshteinDistance(strings.ToLower(name), strings.ToLower(c))
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
