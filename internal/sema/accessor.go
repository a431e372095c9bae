package sema

import (
	"fmt"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
)

// synthesizeAccessors creates the external getter for every public
// state variable. Mapping keys and array dimensions become parameters
// in declaration order; a sole struct return is destructured into the
// struct's fields.
func (r *resolver) synthesizeAccessors(no int) {
	ns := r.ns
	c := ns.Contracts[no]
	if !c.IsConcrete() {
		return
	}
	for _, sv := range c.Layout {
		v := ns.Contracts[sv.Contract].Variables[sv.VarNo]
		if v.Visibility != VisPublic {
			continue
		}
		fnNo := len(ns.Functions)
		fn := &Function{
			Name:        v.Name,
			Loc:         diag.Implicit(),
			Kind:        ast.FnFunction,
			ContractNo:  no,
			FileNo:      c.FileNo,
			Mutability:  MutView,
			Visibility:  VisExternal,
			HasBody:     true,
			IsAccessor:  true,
			AccessorVar: sv,
		}

		// Walk off mappings and dynamic/fixed dimensions into
		// parameters; stop at the stored value type.
		ty := v.Type
		var access Expr = &StorageVarRef{
			exprBase:   exprBase{Loc: diag.Implicit(), Type: StorageRef{Inner: ty}},
			ContractNo: sv.Contract,
			VarNo:      sv.VarNo,
		}
		param := 0
		for {
			switch x := ty.(type) {
			case Mapping:
				name := x.KeyName
				if name == "" {
					name = fmt.Sprintf("key%d", param)
				}
				fn.Params = append(fn.Params, Parameter{Name: name, Loc: diag.Implicit(), Type: x.Key})
				access = &Subscript{
					exprBase: exprBase{Loc: diag.Implicit(), Type: StorageRef{Inner: x.Value}},
					Array:    access,
					Index:    &LocalRef{exprBase: exprBase{Loc: diag.Implicit(), Type: x.Key}, VarNo: param},
				}
				param++
				ty = x.Value
				continue
			case Array:
				idxTy := Type(Uint{Width: 256})
				fn.Params = append(fn.Params, Parameter{
					Name: fmt.Sprintf("index%d", param), Loc: diag.Implicit(), Type: idxTy,
				})
				inner := elemAfterOneDim(x)
				access = &Subscript{
					exprBase: exprBase{Loc: diag.Implicit(), Type: StorageRef{Inner: inner}},
					Array:    access,
					Index:    &LocalRef{exprBase: exprBase{Loc: diag.Implicit(), Type: idxTy}, VarNo: param},
				}
				param++
				ty = inner
				continue
			}
			break
		}

		fn.Locals = make([]*Variable, len(fn.Params))
		for i, p := range fn.Params {
			fn.Locals[i] = &Variable{Name: p.Name, Loc: p.Loc, Type: p.Type, Assigned: true, Read: true}
		}

		var values []Expr
		if st, ok := ty.(Struct); ok {
			// Destructure the struct into its fields, skipping members
			// that cannot be returned externally.
			for fno, f := range ns.Structs[st.Index].Fields {
				if _, isMap := f.Type.(Mapping); isMap {
					continue
				}
				fn.Returns = append(fn.Returns, Parameter{Name: f.Name, Loc: diag.Implicit(), Type: f.Type})
				values = append(values, &Load{
					exprBase: exprBase{Loc: diag.Implicit(), Type: f.Type},
					Expr: &StructMember{
						exprBase: exprBase{Loc: diag.Implicit(), Type: StorageRef{Inner: f.Type}},
						Expr:     access,
						MemberNo: fno,
					},
				})
			}
		} else {
			fn.Returns = append(fn.Returns, Parameter{Loc: diag.Implicit(), Type: ty})
			values = append(values, &Load{
				exprBase: exprBase{Loc: diag.Implicit(), Type: ty},
				Expr:     access,
			})
		}
		fn.Body = []Stmt{&ReturnStmt{stmtBase: stmtBase{Loc: diag.Implicit()}, Values: values}}
		fn.ReadsState = true

		ns.Functions = append(ns.Functions, fn)
		r.funcDefs = append(r.funcDefs, nil)
		c.Functions = append(c.Functions, fnNo)
	}
}

// elemAfterOneDim strips the outermost dimension of an array type.
func elemAfterOneDim(a Array) Type {
	if len(a.Dims) == 1 {
		return a.Elem
	}
	return Array{Elem: a.Elem, Dims: a.Dims[1:]}
}
