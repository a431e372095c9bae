package sema

import (
	"github.com/standardbeagle/solis/internal/ast"
)

// usingKey identifies the attach target of a using directive; "*"
// attaches to every type.
func (ns *Namespace) usingKey(t Type) string {
	return Deref(t).String()
}

// applyUsing resolves the deferred using directives now that all
// library functions have signatures.
func (r *resolver) applyUsing() {
	ns := r.ns
	for _, pu := range r.pendingUsing {
		d := pu.dir
		ctx := r.typeCtx(pu.fileNo, pu.contractNo)

		var fnNos []int
		switch {
		case d.List.Library != nil:
			sym := r.lookupQualified(ctx, *d.List.Library)
			if sym == nil || sym.Kind != symContract {
				ns.Errorf(d.List.Library.Loc, "'%s' is not a library", pathName(*d.List.Library))
				continue
			}
			lib := ns.Contracts[sym.no()]
			if lib.Kind != ast.KindLibrary {
				ns.Errorf(d.List.Library.Loc, "'%s' is a %s, not a library", lib.Name, lib.Kind)
				continue
			}
			for fnNo, fn := range ns.Functions {
				if fn.ContractNo == sym.no() && fn.Kind == ast.FnFunction {
					fnNos = append(fnNos, fnNo)
				}
			}
		default:
			for _, path := range d.List.Functions {
				sym := r.lookupQualified(ctx, path)
				if sym == nil || sym.Kind != symFunction {
					ns.Errorf(path.Loc, "'%s' is not a function", pathName(path))
					continue
				}
				fnNos = append(fnNos, sym.Nos...)
			}
		}

		key := "*"
		if d.Type != nil {
			ty := r.resolveType(ctx, d.Type)
			if _, bad := ty.(Unresolved); bad {
				continue
			}
			key = ns.usingKey(ty)
		}

		if d.Global {
			if pu.contractNo != -1 {
				ns.Errorf(d.Loc, "'global' using directives are only allowed at file scope")
				continue
			}
			if key == "*" {
				ns.Errorf(d.Loc, "'global' requires a specific type, not '*'")
				continue
			}
			ns.usingGlobal[key] = append(ns.usingGlobal[key], fnNos...)
			continue
		}
		r.fileUsing[pu.fileNo][key] = append(r.fileUsing[pu.fileNo][key], fnNos...)
	}
}

// usingCandidates returns the library functions attached to a type in
// the given context; it does not check whether their first parameter
// accepts the type.
func (r *resolver) usingCandidates(ctx typeCtx, t Type) []int {
	ns := r.ns
	key := ns.usingKey(t)
	var out []int
	out = append(out, ns.usingGlobal[key]...)
	if ctx.fileNo >= 0 && ctx.fileNo < len(r.fileUsing) {
		out = append(out, r.fileUsing[ctx.fileNo][key]...)
		out = append(out, r.fileUsing[ctx.fileNo]["*"]...)
	}
	return out
}
