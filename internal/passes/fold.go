package passes

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/standardbeagle/solis/internal/cfg"
	"github.com/standardbeagle/solis/internal/sema"
)

// Fold performs constant folding and propagation. Constants propagate
// within a block and across single-predecessor edges; a branch on a
// constant condition becomes an unconditional jump, turning its dead
// arm unreachable. Folding is monotonic: it rewrites operands in place
// and never adds an instruction to a block.
func Fold(g *cfg.Graph) {
	preds := predecessors(g)
	// Per-block incoming constant environments; nil means unknown.
	in := make([]map[int]cfg.Operand, len(g.Blocks))
	order := reversePostorder(g)

	for _, no := range order {
		env := map[int]cfg.Operand{}
		if len(preds[no]) == 1 && in[preds[no][0]] != nil {
			for k, v := range in[preds[no][0]] {
				env[k] = v
			}
		}
		blk := g.Blocks[no]
		for _, instr := range blk.Instrs {
			foldInstr(g, instr, env)
		}
		switch t := blk.Term.(type) {
		case cfg.CondJump:
			cond := substitute(t.Cond, env)
			if c, ok := cond.(cfg.ConstBool); ok {
				if c.Value {
					blk.Term = cfg.Jump{Block: t.True}
				} else {
					blk.Term = cfg.Jump{Block: t.False}
				}
			} else {
				t.Cond = cond
				blk.Term = t
			}
		case cfg.Return:
			for i, v := range t.Values {
				t.Values[i] = substitute(v, env)
			}
			blk.Term = t
		case cfg.Revert:
			for i, v := range t.Args {
				t.Args[i] = substitute(v, env)
			}
			blk.Term = t
		}
		// The outgoing environment feeds single-pred successors.
		out := env
		in[no] = out
	}
}

// substitute replaces a var operand with its known constant.
func substitute(o cfg.Operand, env map[int]cfg.Operand) cfg.Operand {
	if v, ok := o.(cfg.Var); ok {
		if c, known := env[v.ID]; known {
			return c
		}
	}
	return o
}

// foldInstr rewrites one instruction in place and updates the
// constant environment.
func foldInstr(g *cfg.Graph, instr cfg.Instr, env map[int]cfg.Operand) {
	switch x := instr.(type) {
	case *cfg.Set:
		x.Src = substitute(x.Src, env)
		if isConst(x.Src) {
			env[x.Res.ID] = x.Src
		} else {
			delete(env, x.Res.ID)
		}
	case *cfg.BinOp:
		x.Left = substitute(x.Left, env)
		x.Right = substitute(x.Right, env)
		if folded, ok := foldBinOp(x); ok {
			env[x.Res.ID] = folded
			// The instruction stays as it is so downstream passes see
			// a pure definition; DCE removes it when unused.
			replaceWithSet(g, x)
		} else {
			delete(env, x.Res.ID)
		}
	case *cfg.UnOp:
		x.Expr = substitute(x.Expr, env)
		if folded, ok := foldUnOp(x); ok {
			env[x.Res.ID] = folded
		} else {
			delete(env, x.Res.ID)
		}
	case *cfg.CastOp:
		x.Expr = substitute(x.Expr, env)
		delete(env, x.Res.ID)
	default:
		// Generic: substitute uses, kill results.
		substituteUses(instr, env)
		for _, r := range instr.Results() {
			delete(env, r.ID)
		}
	}
}

// replaceWithSet is a marker no-op: the fold result lives in env and
// reaches uses via substitution; the defining instruction stays for
// source-order stability and is cleaned by DCE.
func replaceWithSet(g *cfg.Graph, x *cfg.BinOp) {}

// substituteUses rewrites operand fields through the reflection-free
// per-type accessors.
func substituteUses(instr cfg.Instr, env map[int]cfg.Operand) {
	switch x := instr.(type) {
	case *cfg.StorageLoad:
		x.Slot = substitute(x.Slot, env)
	case *cfg.StorageStore:
		x.Slot = substitute(x.Slot, env)
		x.Value = substitute(x.Value, env)
	case *cfg.StorageClear:
		x.Slot = substitute(x.Slot, env)
	case *cfg.KeccakSlot:
		x.Slot = substitute(x.Slot, env)
		x.Key = substitute(x.Key, env)
	case *cfg.Hash:
		x.Arg = substitute(x.Arg, env)
	case *cfg.StructInit:
		for i := range x.Fields {
			x.Fields[i] = substitute(x.Fields[i], env)
		}
	case *cfg.FieldLoad:
		x.Struct = substitute(x.Struct, env)
	case *cfg.FieldStore:
		x.Struct = substitute(x.Struct, env)
		x.Value = substitute(x.Value, env)
	case *cfg.ArrayInit:
		for i := range x.Items {
			x.Items[i] = substitute(x.Items[i], env)
		}
	case *cfg.AllocDynamic:
		x.Length = substitute(x.Length, env)
	case *cfg.IndexLoad:
		x.Array = substitute(x.Array, env)
		x.Index = substitute(x.Index, env)
	case *cfg.IndexStore:
		x.Array = substitute(x.Array, env)
		x.Index = substitute(x.Index, env)
		x.Value = substitute(x.Value, env)
	case *cfg.Len:
		x.Arg = substitute(x.Arg, env)
	case *cfg.Push:
		x.Slot = substitute(x.Slot, env)
		x.Value = substitute(x.Value, env)
	case *cfg.Pop:
		x.Slot = substitute(x.Slot, env)
	case *cfg.Concat:
		for i := range x.Args {
			x.Args[i] = substitute(x.Args[i], env)
		}
	case *cfg.AbiEncode:
		for i := range x.Args {
			x.Args[i] = substitute(x.Args[i], env)
		}
	case *cfg.AbiDecode:
		x.Data = substitute(x.Data, env)
	case *cfg.CallInternal:
		for i := range x.Args {
			x.Args[i] = substitute(x.Args[i], env)
		}
	case *cfg.CallExternal:
		x.Address = substitute(x.Address, env)
		for i := range x.Args {
			x.Args[i] = substitute(x.Args[i], env)
		}
		if x.Value != nil {
			x.Value = substitute(x.Value, env)
		}
	case *cfg.Create:
		for i := range x.Args {
			x.Args[i] = substitute(x.Args[i], env)
		}
	case *cfg.EmitEvent:
		for i := range x.Topics {
			x.Topics[i] = substitute(x.Topics[i], env)
		}
		x.Data = substitute(x.Data, env)
	case *cfg.ValueTransfer:
		x.Address = substitute(x.Address, env)
		x.Amount = substitute(x.Amount, env)
	case *cfg.Print:
		x.Arg = substitute(x.Arg, env)
	case *cfg.CatchMatch:
		x.Data = substitute(x.Data, env)
	case *cfg.CatchPayload:
		x.Data = substitute(x.Data, env)
	}
}

func isConst(o cfg.Operand) bool {
	switch o.(type) {
	case cfg.ConstInt, cfg.ConstBool, cfg.ConstBytes:
		return true
	}
	return false
}

// foldBinOp evaluates a binop with two constant operands, respecting
// the declared type's wrap-around semantics. Checked operations that
// would overflow are left unfolded so the runtime trap survives.
func foldBinOp(x *cfg.BinOp) (cfg.Operand, bool) {
	switch x.Op {
	case sema.BinEq, sema.BinNe, sema.BinLt, sema.BinLe, sema.BinGt, sema.BinGe:
		return foldCompare(x)
	}
	l, lok := x.Left.(cfg.ConstInt)
	r, rok := x.Right.(cfg.ConstInt)
	if !lok || !rok {
		// bool & bool folding for completeness.
		if lb, ok := x.Left.(cfg.ConstBool); ok {
			if rb, ok2 := x.Right.(cfg.ConstBool); ok2 {
				switch x.Op {
				case sema.BinBitAnd:
					return cfg.ConstBool{Value: lb.Value && rb.Value}, true
				case sema.BinBitOr:
					return cfg.ConstBool{Value: lb.Value || rb.Value}, true
				}
			}
		}
		return nil, false
	}
	v := new(big.Int)
	switch x.Op {
	case sema.BinAdd:
		v.Add(l.Value, r.Value)
	case sema.BinSub:
		v.Sub(l.Value, r.Value)
	case sema.BinMul:
		v.Mul(l.Value, r.Value)
	case sema.BinDiv:
		if r.Value.Sign() == 0 {
			return nil, false // keep the runtime trap
		}
		v.Quo(l.Value, r.Value)
	case sema.BinMod:
		if r.Value.Sign() == 0 {
			return nil, false
		}
		v.Rem(l.Value, r.Value)
	case sema.BinPow:
		if !r.Value.IsUint64() || r.Value.Uint64() > 1<<16 {
			return nil, false
		}
		v.Exp(l.Value, r.Value, nil)
	case sema.BinShl:
		if !r.Value.IsUint64() || r.Value.Uint64() > 512 {
			return nil, false
		}
		v.Lsh(l.Value, uint(r.Value.Uint64()))
	case sema.BinShr:
		if !r.Value.IsUint64() || r.Value.Uint64() > 512 {
			return nil, false
		}
		v.Rsh(l.Value, uint(r.Value.Uint64()))
	case sema.BinBitAnd:
		v.And(l.Value, r.Value)
	case sema.BinBitOr:
		v.Or(l.Value, r.Value)
	case sema.BinBitXor:
		v.Xor(l.Value, r.Value)
	default:
		return nil, false
	}
	if x.CheckOverflow && !fits(v, x.Ty) {
		return nil, false
	}
	if !x.CheckOverflow {
		v = wrap(v, x.Ty)
	}
	return cfg.ConstInt{Ty: x.Ty, Value: v}, true
}

func foldCompare(x *cfg.BinOp) (cfg.Operand, bool) {
	l, lok := x.Left.(cfg.ConstInt)
	r, rok := x.Right.(cfg.ConstInt)
	if lok && rok {
		c := l.Value.Cmp(r.Value)
		switch x.Op {
		case sema.BinEq:
			return cfg.ConstBool{Value: c == 0}, true
		case sema.BinNe:
			return cfg.ConstBool{Value: c != 0}, true
		case sema.BinLt:
			return cfg.ConstBool{Value: c < 0}, true
		case sema.BinLe:
			return cfg.ConstBool{Value: c <= 0}, true
		case sema.BinGt:
			return cfg.ConstBool{Value: c > 0}, true
		case sema.BinGe:
			return cfg.ConstBool{Value: c >= 0}, true
		}
	}
	lb, lbok := x.Left.(cfg.ConstBytes)
	rb, rbok := x.Right.(cfg.ConstBytes)
	if lbok && rbok && (x.Op == sema.BinEq || x.Op == sema.BinNe) {
		eq := string(lb.Value) == string(rb.Value)
		if x.Op == sema.BinNe {
			eq = !eq
		}
		return cfg.ConstBool{Value: eq}, true
	}
	return nil, false
}

func foldUnOp(x *cfg.UnOp) (cfg.Operand, bool) {
	switch x.Op {
	case sema.UnNot:
		if c, ok := x.Expr.(cfg.ConstBool); ok {
			return cfg.ConstBool{Value: !c.Value}, true
		}
	case sema.UnNeg:
		if c, ok := x.Expr.(cfg.ConstInt); ok {
			v := new(big.Int).Neg(c.Value)
			if x.CheckOverflow && !fits(v, x.Ty) {
				return nil, false
			}
			return cfg.ConstInt{Ty: x.Ty, Value: v}, true
		}
	case sema.UnBitNot:
		if c, ok := x.Expr.(cfg.ConstInt); ok {
			return cfg.ConstInt{Ty: x.Ty, Value: wrap(new(big.Int).Not(c.Value), x.Ty)}, true
		}
	}
	return nil, false
}

// fits reports whether v is representable in the integer type.
func fits(v *big.Int, t sema.Type) bool {
	w := int(sema.IntegerWidth(t))
	if w == 0 {
		return true
	}
	if sema.IsSigned(t) {
		min := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(w-1)))
		max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(w-1)), big.NewInt(1))
		return v.Cmp(min) >= 0 && v.Cmp(max) <= 0
	}
	return v.Sign() >= 0 && v.BitLen() <= w
}

// wrap reduces v into the type's two's-complement range.
func wrap(v *big.Int, t sema.Type) *big.Int {
	w := uint(sema.IntegerWidth(t))
	if w == 0 {
		return v
	}
	var out *big.Int
	if w == 256 {
		// The full-width case reduces through the fixed 256-bit
		// representation, matching the machine semantics exactly.
		u := new(uint256.Int)
		u.SetFromBig(v)
		out = u.ToBig()
	} else {
		mod := new(big.Int).Lsh(big.NewInt(1), w)
		out = new(big.Int).Mod(v, mod)
		if out.Sign() < 0 {
			out.Add(out, mod)
		}
	}
	if sema.IsSigned(t) {
		mod := new(big.Int).Lsh(big.NewInt(1), w)
		half := new(big.Int).Lsh(big.NewInt(1), w-1)
		if out.Cmp(half) >= 0 {
			out.Sub(out, mod)
		}
	}
	return out
}

// predecessors maps each block to the blocks jumping to it.
func predecessors(g *cfg.Graph) [][]int {
	preds := make([][]int, len(g.Blocks))
	for no, blk := range g.Blocks {
		switch t := blk.Term.(type) {
		case cfg.Jump:
			preds[t.Block] = append(preds[t.Block], no)
		case cfg.CondJump:
			preds[t.True] = append(preds[t.True], no)
			preds[t.False] = append(preds[t.False], no)
		}
	}
	return preds
}

// reversePostorder yields a forward dataflow order from the entry.
func reversePostorder(g *cfg.Graph) []int {
	seen := make([]bool, len(g.Blocks))
	var post []int
	var walk func(int)
	walk = func(no int) {
		if no < 0 || no >= len(g.Blocks) || seen[no] {
			return
		}
		seen[no] = true
		switch t := g.Blocks[no].Term.(type) {
		case cfg.Jump:
			walk(t.Block)
		case cfg.CondJump:
			walk(t.True)
			walk(t.False)
		}
		post = append(post, no)
	}
	walk(0)
	out := make([]int, 0, len(post))
	for i := len(post) - 1; i >= 0; i-- {
		out = append(out, post[i])
	}
	return out
}
