package sema

import (
	"sort"

	"github.com/standardbeagle/solis/internal/diag"
)

// symKind discriminates what a name resolves to.
type symKind int

const (
	symContract symKind = iota
	symFunction         // carries an overload set
	symVariable         // file constant or state variable
	symStruct
	symEnum
	symEvent
	symError
	symUserType
	symNamespace // import "…" as N
)

func (k symKind) String() string {
	switch k {
	case symContract:
		return "contract"
	case symFunction:
		return "function"
	case symVariable:
		return "variable"
	case symStruct:
		return "struct"
	case symEnum:
		return "enum"
	case symEvent:
		return "event"
	case symError:
		return "error"
	case symUserType:
		return "type"
	}
	return "import"
}

// symbol is one resolvable name. Functions keep every overload in Nos;
// other kinds use Nos[0].
type symbol struct {
	Kind   symKind
	Name   string
	Loc    diag.Loc
	Nos    []int
	FileNo int // target file for symNamespace
}

func (s *symbol) no() int { return s.Nos[0] }

// symbolTable is a flat name → symbol map with diagnostics on
// redefinition.
type symbolTable struct {
	syms map[string]*symbol
}

func newSymbolTable() *symbolTable {
	return &symbolTable{syms: map[string]*symbol{}}
}

// define installs a symbol; a redefinition that is not a function
// overload produces an error with a note at the previous definition.
func (t *symbolTable) define(ns *Namespace, s *symbol) {
	prev, ok := t.syms[s.Name]
	if !ok {
		t.syms[s.Name] = s
		return
	}
	if prev.Kind == symFunction && s.Kind == symFunction {
		prev.Nos = append(prev.Nos, s.Nos...)
		return
	}
	ns.Diag(diag.Error(s.Loc, "'%s' is already defined as a %s", s.Name, prev.Kind).
		WithNote(prev.Loc, "previous definition of '%s'", s.Name))
}

// lookup returns the symbol bound to name, or nil.
func (t *symbolTable) lookup(name string) *symbol {
	return t.syms[name]
}

// names returns all bound names, sorted, for did-you-mean hints.
func (t *symbolTable) names() []string {
	out := make([]string, 0, len(t.syms))
	for n := range t.syms {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
