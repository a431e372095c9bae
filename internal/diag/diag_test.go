package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineColumn(t *testing.T) {
	f := NewFile(0, "/x/a.sol", "a.sol", "line one\nline two\nline three")
	tests := []struct {
		offset, line, col int
	}{
		{0, 1, 1},
		{7, 1, 8},
		{9, 2, 1},
		{14, 2, 6},
		{18, 3, 1},
	}
	for _, tt := range tests {
		line, col := f.LineColumn(tt.offset)
		assert.Equal(t, tt.line, line, "offset %d", tt.offset)
		assert.Equal(t, tt.col, col, "offset %d", tt.offset)
	}
}

func TestFileSetDeduplicates(t *testing.T) {
	fs := NewFileSet()
	a := fs.Add("/x/a.sol", "a.sol", "contract a {}")
	again := fs.Add("/x/a.sol", "./a.sol", "ignored")
	assert.Same(t, a, again)
	assert.Equal(t, 1, fs.Len())
	assert.Equal(t, 0, a.FileNo)
}

func TestSortOrder(t *testing.T) {
	diags := []Diagnostic{
		Error(NewLoc(1, 5, 9), "third"),
		Warning(NewLoc(0, 10, 12), "second"),
		Error(NewLoc(0, 10, 12), "second-error-sorts-after-warning"),
		Error(NewLoc(0, 2, 4), "first"),
		Fatal(Builtin(), "zeroth"),
	}
	Sort(diags)
	assert.Equal(t, "zeroth", diags[0].Message)
	assert.Equal(t, "first", diags[1].Message)
	assert.Equal(t, "second", diags[2].Message)
	assert.Equal(t, "second-error-sorts-after-warning", diags[3].Message)
	assert.Equal(t, "third", diags[4].Message)
}

func TestRenderAnchors(t *testing.T) {
	fs := NewFileSet()
	fs.Add("/x/flip.sol", "flip.sol", "contract flipper {\n\tbool value;\n}")

	var buf bytes.Buffer
	r := NewRenderer(&buf, fs, true)
	d := Error(NewLoc(0, 20, 24), "unknown type 'bool2'").
		WithNote(NewLoc(0, 0, 8), "contract declared here")
	r.Render(d)

	out := buf.String()
	assert.Contains(t, out, "/x/flip.sol:2:2-6: error: unknown type 'bool2'")
	assert.Contains(t, out, "note: contract declared here")
}

func TestRenderAllCountsErrors(t *testing.T) {
	fs := NewFileSet()
	fs.Add("/x/a.sol", "a.sol", "x")
	var buf bytes.Buffer
	r := NewRenderer(&buf, fs, true)
	n := r.RenderAll([]Diagnostic{
		Warning(NewLoc(0, 0, 1), "w"),
		Error(NewLoc(0, 0, 1), "e"),
		Fatal(NewLoc(0, 0, 1), "f"),
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
}

func TestSuggest(t *testing.T) {
	cands := []string{"balance", "transfer", "owner"}
	assert.Equal(t, "balance", Suggest("balanse", cands))
	assert.Equal(t, "owner", Suggest("Owner", cands))
	assert.Equal(t, "", Suggest("completely_different", cands))
	assert.Equal(t, "", Suggest("balance", cands), "an exact match needs no suggestion")
}

func TestHasErrors(t *testing.T) {
	require.False(t, HasErrors([]Diagnostic{Warning(Builtin(), "w")}))
	require.True(t, HasErrors([]Diagnostic{Error(Builtin(), "e")}))
	require.True(t, HasFatal([]Diagnostic{Fatal(Builtin(), "f")}))
	require.False(t, HasFatal([]Diagnostic{Error(Builtin(), "e")}))
}

func TestLocUnion(t *testing.T) {
	a := NewLoc(0, 5, 10)
	b := NewLoc(0, 8, 20)
	u := a.Union(b)
	assert.Equal(t, 5, u.Start)
	assert.Equal(t, 20, u.End)

	other := NewLoc(1, 0, 3)
	assert.Equal(t, a, a.Union(other), "cross-file unions keep the receiver")
	assert.Equal(t, a, Builtin().Union(a))
}
