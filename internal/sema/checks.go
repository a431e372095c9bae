package sema

import (
	"encoding/hex"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
)

// checkSelectors verifies that selectors within each contract are
// pairwise distinct after mangling and explicit overrides.
func (r *resolver) checkSelectors() {
	ns := r.ns
	for _, c := range ns.Contracts {
		if !c.IsConcrete() {
			continue
		}
		seen := map[string]int{}
		for _, fnNo := range c.Functions {
			fn := ns.Functions[fnNo]
			if !fn.IsExternallyCallable() || fn.Kind == ast.FnConstructor {
				continue
			}
			key := string(ns.FunctionSelector(fn))
			if prevNo, dup := seen[key]; dup {
				prev := ns.Functions[prevNo]
				ns.Diag(diag.Error(fn.Loc, "duplicate selector %s for function '%s'",
					hex.EncodeToString([]byte(key)), fn.Name).
					WithNote(prev.Loc, "'%s' has the same selector", prev.Name))
				continue
			}
			seen[key] = fnNo
		}
	}
}

// recursiveEncodable reports whether t transitively contains itself,
// including through a dynamic type. Such values have no finite
// encoding; they are rejected at the external surface.
func (ns *Namespace) recursiveEncodable(t Type, visiting map[int]bool) bool {
	switch x := Deref(t).(type) {
	case Array:
		return ns.recursiveEncodable(x.Elem, visiting)
	case Slice:
		return ns.recursiveEncodable(x.Elem, visiting)
	case Struct:
		if visiting[x.Index] {
			return true
		}
		visiting[x.Index] = true
		defer delete(visiting, x.Index)
		for _, f := range ns.Structs[x.Index].Fields {
			if ns.recursiveEncodable(f.Type, visiting) {
				return true
			}
		}
	}
	return false
}

// checkEncodable rejects recursive types on the externally callable
// surface: they cannot be ABI-encoded on either family.
func (r *resolver) checkEncodable() {
	ns := r.ns
	for _, c := range ns.Contracts {
		if !c.IsConcrete() {
			continue
		}
		for _, fnNo := range c.Functions {
			fn := ns.Functions[fnNo]
			if !fn.IsExternallyCallable() {
				continue
			}
			check := func(p Parameter) {
				if ns.recursiveEncodable(p.Type, map[int]bool{}) {
					loc := p.Loc
					if !loc.InFile() {
						loc = fn.Loc
					}
					ns.Errorf(loc, "recursive type %s cannot be ABI encoded", ns.TypeName(Deref(p.Type)))
				}
			}
			for _, p := range fn.Params {
				check(p)
			}
			for _, ret := range fn.Returns {
				check(ret)
			}
		}
	}
}

// checkUnused emits warnings for declarations that are never used:
// error types, events never emitted, and functions never called from
// anywhere (internal visibility only; external surface is always
// reachable).
func (r *resolver) checkUnused() {
	ns := r.ns
	for _, ed := range ns.Errors {
		if !ed.Used {
			ns.Warnf(ed.Loc, "error '%s' is never used", ed.Name)
		}
	}
	for _, ev := range ns.Events {
		if !ev.Used {
			ns.Warnf(ev.Loc, "event '%s' is never emitted", ev.Name)
		}
	}
	for _, fn := range ns.Functions {
		if fn.Kind != ast.FnFunction || fn.Called || fn.Visibility.Externally() {
			continue
		}
		if fn.ContractNo >= 0 && ns.Contracts[fn.ContractNo].Kind == ast.KindLibrary {
			continue
		}
		if fn.HasBody {
			ns.Warnf(fn.Loc, "function '%s' is never called", fn.Name)
		}
	}

	// Functions whose bodies touch no state could be view/pure.
	for _, fn := range ns.Functions {
		if !fn.HasBody || fn.Kind != ast.FnFunction {
			continue
		}
		switch fn.Mutability {
		case MutNonpayable:
			if !fn.WritesState && !fn.ValueTransfer {
				if fn.ReadsState {
					ns.Warnf(fn.Loc, "function '%s' can be declared 'view'", fn.Name)
				} else {
					ns.Warnf(fn.Loc, "function '%s' can be declared 'pure'", fn.Name)
				}
			}
		case MutView:
			if !fn.ReadsState && !fn.WritesState {
				ns.Warnf(fn.Loc, "function '%s' can be declared 'pure'", fn.Name)
			}
		}
	}
}
