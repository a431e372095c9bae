package imports

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/solis/internal/diag"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRelativeImport(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "lib/token.sol", "contract token {}")
	root := write(t, dir, "main.sol", `import "./lib/token.sol"; contract main {}`)

	r := NewResolver(nil, nil)
	require.True(t, r.AddRoot(root))
	assert.Empty(t, r.Diags)
	assert.Equal(t, 2, r.Files.Len())
	require.Len(t, r.Units, 2)
	assert.NotNil(t, r.Units[0])
	assert.NotNil(t, r.Units[1])
}

func TestImportSearchPath(t *testing.T) {
	dir := t.TempDir()
	vendorDir := filepath.Join(dir, "vendor")
	write(t, vendorDir, "openzeppelin/token.sol", "contract token {}")
	root := write(t, dir, "main.sol", `import "openzeppelin/token.sol"; contract main {}`)

	r := NewResolver([]string{vendorDir}, nil)
	require.True(t, r.AddRoot(root))
	assert.Empty(t, r.Diags)
	assert.Equal(t, 2, r.Files.Len())
}

func TestRemappingLongestPrefixWins(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "short/token.sol", "contract short {}")
	write(t, dir, "long/token.sol", "contract long {}")
	root := write(t, dir, "main.sol", `import "lib/inner/token.sol"; contract main {}`)

	r := NewResolver(nil, []Remapping{
		{Prefix: "lib/", Target: filepath.Join(dir, "short")},
		{Prefix: "lib/inner/", Target: filepath.Join(dir, "long")},
	})
	require.True(t, r.AddRoot(root))
	assert.Empty(t, r.Diags)

	found := false
	for _, f := range r.Files.Files() {
		if filepath.Dir(f.Path) == filepath.Join(dir, "long") {
			found = true
		}
	}
	assert.True(t, found, "the longer remapping prefix must win")
}

func TestImportLoopTolerated(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.sol", `import "./b.sol"; contract a {}`)
	write(t, dir, "b.sol", `import "./a.sol"; contract b {}`)
	root := filepath.Join(dir, "a.sol")

	r := NewResolver(nil, nil)
	require.True(t, r.AddRoot(root))
	assert.Empty(t, r.Diags)
	// Each file is loaded and parsed exactly once.
	assert.Equal(t, 2, r.Files.Len())
}

func TestSameFileSharedFileNo(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "shared.sol", "contract shared {}")
	write(t, dir, "a.sol", `import "./shared.sol"; contract a {}`)
	write(t, dir, "b.sol", `import "./shared.sol"; contract b {}`)
	root := write(t, dir, "main.sol", `
import "./a.sol";
import "./b.sol";
contract main {}`)

	r := NewResolver(nil, nil)
	require.True(t, r.AddRoot(root))
	assert.Empty(t, r.Diags)
	assert.Equal(t, 4, r.Files.Len(), "shared.sol must be materialized once")
}

func TestMissingImport(t *testing.T) {
	dir := t.TempDir()
	root := write(t, dir, "main.sol", `import "does/not/exist.sol"; contract main {}`)

	r := NewResolver(nil, nil)
	require.True(t, r.AddRoot(root))
	require.Len(t, r.Diags, 1)
	assert.Contains(t, r.Diags[0].Message, "file not found")
}

func TestMissingRootIsFatal(t *testing.T) {
	r := NewResolver(nil, nil)
	ok := r.AddRoot("/definitely/not/here.sol")
	assert.False(t, ok)
	require.Len(t, r.Diags, 1)
	assert.Equal(t, diag.LevelFatal, r.Diags[0].Level)
}
