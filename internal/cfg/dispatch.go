package cfg

import (
	"fmt"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/sema"
)

// BuildDispatcher synthesizes the per-contract selector dispatch
// function: slot 0 holds the received selector/discriminator, slot 1
// the undecoded argument data. Each externally callable function gets
// a compare-and-jump arm that decodes its arguments, calls it, encodes
// the returns and returns the encoded buffer.
func BuildDispatcher(ns *sema.Namespace, contractNo int, deploy bool, opts Options) *Graph {
	c := ns.Contracts[contractNo]
	name := "solis.call"
	if deploy {
		name = "solis.deploy"
	}
	g := &Graph{FunctionNo: -1, Name: name}
	selTy := sema.Bytes{N: uint8(ns.Target.SelectorLength())}
	selector := g.NewVar("selector", selTy)
	input := g.NewVar("input", sema.DynamicBytes{})
	g.Params = []sema.Type{selTy, sema.DynamicBytes{}}
	g.Returns = []sema.Type{sema.DynamicBytes{}}

	b := &builder{ns: ns, g: g, opts: opts}
	b.cur = g.NewBlock("entry")

	if deploy {
		// Storage initializers run before the constructor, most-base
		// first, matching the layout order.
		pseudo := &sema.Function{Name: name, ContractNo: contractNo, Kind: ast.FnFunction}
		b.fn = pseudo
		for _, sv := range c.Layout {
			v := ns.Contracts[sv.Contract].Variables[sv.VarNo]
			if v.Initializer == nil {
				continue
			}
			val := b.expr(v.Initializer)
			b.storageStoreValue(v.Loc, ConstInt{Ty: sema.Uint{Width: 256}, Value: sv.Slot}, val, sema.Deref(v.Type))
		}
		ctorNo := ns.ContractConstructor(contractNo)
		if ctorNo != nil {
			b.callDispatchTarget(*ctorNo, input)
		}
		g.Blocks[b.cur].Term = Return{Values: []Operand{ConstBytes{Ty: sema.DynamicBytes{}}}}
		finishBlocks(g)
		return g
	}

	// Selector switch over the externally callable surface.
	fallbackBlk := g.NewBlock("fallback")
	for _, fnNo := range c.Functions {
		fn := ns.Functions[fnNo]
		if !fn.IsExternallyCallable() || fn.Kind == ast.FnConstructor ||
			fn.Kind == ast.FnFallback || fn.Kind == ast.FnReceive {
			continue
		}
		sel := ns.FunctionSelector(fn)
		matchBlk := g.NewBlock("func." + fn.Name)
		nextBlk := g.NewBlock("check.next")
		eq := b.temp("selmatch", sema.Bool{})
		b.emit(&BinOp{
			instrBase: instrBase{At: diag.Codegen()},
			Res:       eq, Op: sema.BinEq, Ty: selTy,
			Left: selector, Right: ConstBytes{Ty: selTy, Value: sel},
		})
		g.Blocks[b.cur].Term = CondJump{Cond: eq, True: matchBlk, False: nextBlk}

		b.cur = matchBlk
		b.callDispatchTarget(fnNo, input)
		b.cur = nextBlk
	}
	b.jumpTo(fallbackBlk)

	// No selector matched: run the fallback when declared, revert
	// otherwise.
	b.cur = fallbackBlk
	fallback := contractSpecial(ns, c, ast.FnFallback)
	if fallback >= 0 {
		b.emit(&CallInternal{instrBase: instrBase{At: diag.Codegen()}, FunctionNo: fallback})
		g.Blocks[b.cur].Term = Return{Values: []Operand{ConstBytes{Ty: sema.DynamicBytes{}}}}
	} else {
		g.Blocks[b.cur].Term = Revert{Kind: RevertEmpty, ErrorNo: -1}
	}
	finishBlocks(g)
	return g
}

// callDispatchTarget decodes arguments, invokes the target and
// returns its encoded results.
func (b *builder) callDispatchTarget(fnNo int, input Var) {
	ns := b.ns
	fn := ns.Functions[fnNo]
	var argVars []Var
	var argTys []sema.Type
	for i, p := range fn.Params {
		argVars = append(argVars, b.temp(fmt.Sprintf("arg%d", i), p.Type))
		argTys = append(argTys, sema.Deref(p.Type))
	}
	if len(argVars) > 0 {
		b.emit(&AbiDecode{
			instrBase: instrBase{At: diag.Codegen()},
			Ress:      argVars, Tys: argTys, Data: input,
		})
	}
	args := make([]Operand, len(argVars))
	for i, v := range argVars {
		args[i] = v
	}
	var rets []Var
	var retTys []sema.Type
	for i, ret := range fn.Returns {
		rets = append(rets, b.temp(fmt.Sprintf("out%d", i), ret.Type))
		retTys = append(retTys, sema.Deref(ret.Type))
	}
	b.emit(&CallInternal{
		instrBase: instrBase{At: diag.Codegen()},
		Ress:      rets, FunctionNo: fnNo, Args: args,
	})
	encoded := b.temp("retdata", sema.DynamicBytes{})
	retOps := make([]Operand, len(rets))
	for i, v := range rets {
		retOps[i] = v
	}
	b.emit(&AbiEncode{
		instrBase: instrBase{At: diag.Codegen()},
		Res:       encoded, Args: retOps, Tys: retTys,
	})
	b.g.Blocks[b.cur].Term = Return{Values: []Operand{encoded}}
}

// contractSpecial finds a fallback/receive function on the contract.
func contractSpecial(ns *sema.Namespace, c *sema.ContractDecl, kind ast.FunctionKind) int {
	for _, fnNo := range c.Functions {
		if ns.Functions[fnNo].Kind == kind {
			return fnNo
		}
	}
	return -1
}

func finishBlocks(g *Graph) {
	for _, blk := range g.Blocks {
		if blk.Term == nil {
			blk.Term = Unreachable{}
		}
	}
}
