package diag

import (
	"fmt"
	"os"
	"sort"

	"github.com/standardbeagle/solis/pkg/pathutil"
)

// workDir anchors diagnostics relative to the invocation directory.
var workDir, _ = os.Getwd()

// File is one loaded source file. Files are content-addressed by
// canonical absolute path; two imports resolving to the same path share
// a single File and FileNo.
type File struct {
	Path   string // canonical absolute path
	Import string // path as written in the import or on the command line
	Text   string
	FileNo int

	lineStarts []int // byte offset of each line start, built lazily
}

// NewFile builds a File and its line table.
func NewFile(fileNo int, path, importPath, text string) *File {
	f := &File{Path: path, Import: importPath, Text: text, FileNo: fileNo}
	f.lineStarts = []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			f.lineStarts = append(f.lineStarts, i+1)
		}
	}
	return f
}

// LineColumn converts a byte offset into a 1-based line and column.
func (f *File) LineColumn(offset int) (line, column int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(f.Text) {
		offset = len(f.Text)
	}
	idx := sort.Search(len(f.lineStarts), func(i int) bool {
		return f.lineStarts[i] > offset
	}) - 1
	return idx + 1, offset - f.lineStarts[idx] + 1
}

// FileSet owns every File of one compilation, in FileNo order.
type FileSet struct {
	files  []*File
	byPath map[string]*File
}

// NewFileSet returns an empty file set.
func NewFileSet() *FileSet {
	return &FileSet{byPath: make(map[string]*File)}
}

// Add registers text under the given canonical path and returns the
// file, assigning the next FileNo. Adding an existing path returns the
// original file unchanged.
func (fs *FileSet) Add(path, importPath, text string) *File {
	if f, ok := fs.byPath[path]; ok {
		return f
	}
	f := NewFile(len(fs.files), path, importPath, text)
	fs.files = append(fs.files, f)
	fs.byPath[path] = f
	return f
}

// Lookup returns the file registered under the canonical path, or nil.
func (fs *FileSet) Lookup(path string) *File {
	return fs.byPath[path]
}

// File returns the file with the given number, or nil when out of range.
func (fs *FileSet) File(fileNo int) *File {
	if fileNo < 0 || fileNo >= len(fs.files) {
		return nil
	}
	return fs.files[fileNo]
}

// Len returns the number of files.
func (fs *FileSet) Len() int { return len(fs.files) }

// Files returns the files in FileNo order. The slice is shared; callers
// must not mutate it.
func (fs *FileSet) Files() []*File { return fs.files }

// Anchor renders a loc as a file:line:column-range anchor, or the
// variant name for non-file locations.
func (fs *FileSet) Anchor(loc Loc) string {
	switch loc.Kind {
	case LocBuiltin:
		return "<builtin>"
	case LocImplicit:
		return "<implicit>"
	case LocCodegen:
		return "<codegen>"
	}
	f := fs.File(loc.FileNo)
	if f == nil {
		return fmt.Sprintf("<file %d>", loc.FileNo)
	}
	path := pathutil.ToRelative(f.Path, workDir)
	line, col := f.LineColumn(loc.Start)
	endLine, endCol := f.LineColumn(loc.End)
	if endLine == line {
		return fmt.Sprintf("%s:%d:%d-%d", path, line, col, endCol)
	}
	return fmt.Sprintf("%s:%d:%d-%d:%d", path, line, col, endLine, endCol)
}
