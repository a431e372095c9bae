package passes

import (
	"math/big"

	"github.com/standardbeagle/solis/internal/cfg"
	"github.com/standardbeagle/solis/internal/sema"
)

// StrengthReduce rewrites power-of-two multiply, divide and modulo on
// wide integers into shifts and masks. A checked multiply is left
// alone: reducing it to a shift would silently drop its overflow trap.
// Signed divide/modulo round toward zero, which a plain arithmetic
// shift does not, so only unsigned operands reduce.
func StrengthReduce(g *cfg.Graph) {
	for _, blk := range g.Blocks {
		for _, instr := range blk.Instrs {
			x, ok := instr.(*cfg.BinOp)
			if !ok || !sema.IsInteger(x.Ty) {
				continue
			}
			width := sema.IntegerWidth(x.Ty)
			if width < 128 {
				continue // narrow ops are cheap natively
			}
			c, cok := x.Right.(cfg.ConstInt)
			if !cok {
				continue
			}
			shift, isPow2 := powerOfTwo(c.Value)
			if !isPow2 {
				continue
			}
			switch x.Op {
			case sema.BinMul:
				if x.CheckOverflow {
					continue
				}
				x.Op = sema.BinShl
				x.Right = cfg.ConstInt{Ty: x.Ty, Value: big.NewInt(int64(shift))}
			case sema.BinDiv:
				if sema.IsSigned(x.Ty) {
					continue
				}
				x.Op = sema.BinShr
				x.CheckOverflow = false
				x.Right = cfg.ConstInt{Ty: x.Ty, Value: big.NewInt(int64(shift))}
			case sema.BinMod:
				if sema.IsSigned(x.Ty) {
					continue
				}
				mask := new(big.Int).Sub(c.Value, big.NewInt(1))
				x.Op = sema.BinBitAnd
				x.CheckOverflow = false
				x.Right = cfg.ConstInt{Ty: x.Ty, Value: mask}
			}
		}
	}
}

// powerOfTwo returns log2(v) when v is a positive power of two.
func powerOfTwo(v *big.Int) (int, bool) {
	if v.Sign() <= 0 {
		return 0, false
	}
	if v.BitLen() == 0 {
		return 0, false
	}
	if new(big.Int).And(v, new(big.Int).Sub(v, big.NewInt(1))).Sign() != 0 {
		return 0, false
	}
	return v.BitLen() - 1, true
}
