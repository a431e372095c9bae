package passes

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/solis/internal/cfg"
)

// CSE eliminates common subexpressions by hash-consing pure
// instructions within each block. Storage loads participate too, but
// two loads of the same slot coalesce only when no intervening store,
// clear, push/pop or call could alias. When ordering is ambiguous the
// first (source-order) instruction survives.
func CSE(g *cfg.Graph) {
	for _, blk := range g.Blocks {
		seen := map[uint64]cfg.Var{}  // value number → defining slot
		loads := map[uint64]cfg.Var{} // storage value numbers, epoch-scoped
		copies := map[int]cfg.Var{}   // replaced slot → canonical slot
		var kept []cfg.Instr

		for _, instr := range blk.Instrs {
			rewriteOperands(instr, copies)

			switch x := instr.(type) {
			case *cfg.StorageStore, *cfg.StorageClear, *cfg.Push, *cfg.Pop,
				*cfg.CallInternal, *cfg.CallExternal, *cfg.Create:
				// Anything that may write storage invalidates the load
				// cache; stores within the block are conservative about
				// aliasing because slots may be computed.
				loads = map[uint64]cfg.Var{}
				kept = append(kept, instr)
				continue
			case *cfg.StorageLoad:
				key := hashOperandKey("sload", x.Slot, nil)
				if prev, ok := loads[key]; ok && equalTypes(g, prev, x.Res) {
					copies[x.Res.ID] = prev
					continue
				}
				loads[key] = x.Res
				kept = append(kept, instr)
				continue
			}

			if !instr.Pure() || len(instr.Results()) != 1 {
				kept = append(kept, instr)
				continue
			}
			key, ok := valueNumber(instr)
			if !ok {
				kept = append(kept, instr)
				continue
			}
			if prev, dup := seen[key]; dup && equalTypes(g, prev, instr.Results()[0]) {
				copies[instr.Results()[0].ID] = prev
				continue
			}
			seen[key] = instr.Results()[0]
			kept = append(kept, instr)
		}

		blk.Instrs = kept
		rewriteTerm(blk, copies)
	}
}

func equalTypes(g *cfg.Graph, a, b cfg.Var) bool {
	return g.VarType(a).String() == g.VarType(b).String()
}

// valueNumber hashes an instruction's operation and operands; false
// when the instruction kind does not participate in CSE.
func valueNumber(instr cfg.Instr) (uint64, bool) {
	switch x := instr.(type) {
	case *cfg.BinOp:
		return hashParts(fmt.Sprintf("bin:%d:%s:%v", x.Op, x.Ty, x.CheckOverflow), x.Left, x.Right), true
	case *cfg.UnOp:
		return hashParts(fmt.Sprintf("un:%d:%s", x.Op, x.Ty), x.Expr), true
	case *cfg.CastOp:
		return hashParts(fmt.Sprintf("cast:%s:%s", x.From, x.Ty), x.Expr), true
	case *cfg.KeccakSlot:
		return hashParts("slothash", x.Slot, x.Key), true
	case *cfg.Hash:
		return hashParts(fmt.Sprintf("hash:%d", x.Kind), x.Arg), true
	case *cfg.FieldLoad:
		return hashParts(fmt.Sprintf("field:%d", x.Field), x.Struct), true
	case *cfg.Len:
		return hashParts("len", x.Arg), true
	}
	return 0, false
}

func hashParts(tag string, ops ...cfg.Operand) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(tag)
	for _, o := range ops {
		writeOperand(h, o)
	}
	return h.Sum64()
}

func hashOperandKey(tag string, a cfg.Operand, b cfg.Operand) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(tag)
	writeOperand(h, a)
	if b != nil {
		writeOperand(h, b)
	}
	return h.Sum64()
}

func writeOperand(h *xxhash.Digest, o cfg.Operand) {
	var buf [9]byte
	switch x := o.(type) {
	case cfg.Var:
		buf[0] = 1
		binary.LittleEndian.PutUint64(buf[1:], uint64(x.ID))
		_, _ = h.Write(buf[:])
	case cfg.ConstInt:
		buf[0] = 2
		_, _ = h.Write(buf[:1])
		_, _ = h.WriteString(x.Ty.String())
		_, _ = h.Write(x.Value.Bytes())
		if x.Value.Sign() < 0 {
			_, _ = h.WriteString("-")
		}
	case cfg.ConstBool:
		buf[0] = 3
		if x.Value {
			buf[1] = 1
		}
		_, _ = h.Write(buf[:2])
	case cfg.ConstBytes:
		buf[0] = 4
		_, _ = h.Write(buf[:1])
		_, _ = h.Write(x.Value)
	}
}

// rewriteOperands redirects uses of eliminated slots to their
// canonical definition.
func rewriteOperands(instr cfg.Instr, copies map[int]cfg.Var) {
	if len(copies) == 0 {
		return
	}
	env := map[int]cfg.Operand{}
	for from, to := range copies {
		env[from] = to
	}
	switch x := instr.(type) {
	case *cfg.Set:
		x.Src = substitute(x.Src, env)
	case *cfg.BinOp:
		x.Left = substitute(x.Left, env)
		x.Right = substitute(x.Right, env)
	case *cfg.UnOp:
		x.Expr = substitute(x.Expr, env)
	case *cfg.CastOp:
		x.Expr = substitute(x.Expr, env)
	default:
		substituteUses(instr, env)
	}
}

func rewriteTerm(blk *cfg.BasicBlock, copies map[int]cfg.Var) {
	if len(copies) == 0 {
		return
	}
	env := map[int]cfg.Operand{}
	for from, to := range copies {
		env[from] = to
	}
	switch t := blk.Term.(type) {
	case cfg.CondJump:
		t.Cond = substitute(t.Cond, env)
		blk.Term = t
	case cfg.Return:
		for i := range t.Values {
			t.Values[i] = substitute(t.Values[i], env)
		}
		blk.Term = t
	case cfg.Revert:
		for i := range t.Args {
			t.Args[i] = substitute(t.Args[i], env)
		}
		blk.Term = t
	case cfg.SelfDestruct:
		t.Recipient = substitute(t.Recipient, env)
		blk.Term = t
	}
}
