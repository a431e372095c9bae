package sema

import (
	"math/big"
	"strings"

	"github.com/standardbeagle/solis/internal/ast"
)

// unitScale maps literal unit suffixes to their multiplier.
var unitScale = map[string]*big.Int{
	"wei":     big.NewInt(1),
	"gwei":    new(big.Int).Exp(big.NewInt(10), big.NewInt(9), nil),
	"ether":   new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
	"seconds": big.NewInt(1),
	"minutes": big.NewInt(60),
	"hours":   big.NewInt(3600),
	"days":    big.NewInt(86400),
	"weeks":   big.NewInt(604800),
}

// parseNumber interprets a decimal literal's raw text (underscores
// allowed) as an arbitrary-precision rational.
func parseNumber(text string) (*big.Rat, bool) {
	clean := strings.ReplaceAll(text, "_", "")
	r := new(big.Rat)
	if _, ok := r.SetString(clean); ok {
		return r, true
	}
	return nil, false
}

// parseHexNumber interprets an 0x literal.
func parseHexNumber(text string) (*big.Int, bool) {
	clean := strings.ReplaceAll(strings.TrimPrefix(strings.TrimPrefix(text, "0X"), "0x"), "_", "")
	n := new(big.Int)
	if _, ok := n.SetString(clean, 16); ok {
		return n, true
	}
	return nil, false
}

// constEval evaluates a syntactic expression to a rational constant
// during the declarative pass (array dimensions, @space, constant
// initializers referenced before bodies resolve). It never emits
// diagnostics; the caller decides.
func (r *resolver) constEval(ctx typeCtx, e ast.Expression) (*big.Rat, bool) {
	switch x := e.(type) {
	case *ast.NumberLiteral:
		v, ok := parseNumber(x.Text)
		if !ok {
			return nil, false
		}
		if x.Unit != "" {
			v.Mul(v, new(big.Rat).SetInt(unitScale[x.Unit]))
		}
		return v, true
	case *ast.RationalLiteral:
		v, ok := parseNumber(x.Text)
		if !ok {
			return nil, false
		}
		if x.Unit != "" {
			v.Mul(v, new(big.Rat).SetInt(unitScale[x.Unit]))
		}
		return v, true
	case *ast.HexNumberLiteral:
		n, ok := parseHexNumber(x.Text)
		if !ok {
			return nil, false
		}
		return new(big.Rat).SetInt(n), true
	case *ast.UnaryExpr:
		v, ok := r.constEval(ctx, x.Expr)
		if !ok {
			return nil, false
		}
		switch x.Op {
		case ast.OpNeg:
			return new(big.Rat).Neg(v), true
		case ast.OpBitNot:
			if !v.IsInt() {
				return nil, false
			}
			return new(big.Rat).SetInt(new(big.Int).Not(v.Num())), true
		}
		return nil, false
	case *ast.BinaryExpr:
		l, ok := r.constEval(ctx, x.Left)
		if !ok {
			return nil, false
		}
		rr, ok := r.constEval(ctx, x.Right)
		if !ok {
			return nil, false
		}
		return constBinary(x.Op, l, rr)
	case *ast.IdentifierExpr:
		// A file/contract constant referenced in constant position.
		sym := r.lookupSymbol(ctx, x.Name)
		if sym == nil || sym.Kind != symVariable {
			return nil, false
		}
		def, ok := r.constSymbolDef(sym)
		if !ok || def.Initializer == nil {
			return nil, false
		}
		return r.constEval(ctx, def.Initializer)
	}
	return nil, false
}

// constSymbolDef recovers the AST definition behind a constant symbol.
func (r *resolver) constSymbolDef(sym *symbol) (*ast.VariableDefinition, bool) {
	if sym.no() < len(r.constDefs) {
		def := r.constDefs[sym.no()]
		if def.Constant {
			return def, true
		}
	}
	return nil, false
}

// constBinary folds one binary operation over rationals.
func constBinary(op ast.BinaryOp, l, r *big.Rat) (*big.Rat, bool) {
	switch op {
	case ast.OpAdd:
		return new(big.Rat).Add(l, r), true
	case ast.OpSub:
		return new(big.Rat).Sub(l, r), true
	case ast.OpMul:
		return new(big.Rat).Mul(l, r), true
	case ast.OpDiv:
		if r.Sign() == 0 {
			return nil, false
		}
		return new(big.Rat).Quo(l, r), true
	case ast.OpMod:
		if !l.IsInt() || !r.IsInt() || r.Sign() == 0 {
			return nil, false
		}
		return new(big.Rat).SetInt(new(big.Int).Rem(l.Num(), r.Num())), true
	case ast.OpPower:
		if !l.IsInt() || !r.IsInt() || r.Sign() < 0 || !r.Num().IsInt64() {
			return nil, false
		}
		return new(big.Rat).SetInt(new(big.Int).Exp(l.Num(), r.Num(), nil)), true
	case ast.OpShl:
		if !l.IsInt() || !r.IsInt() || !r.Num().IsUint64() || r.Num().Uint64() > 512 {
			return nil, false
		}
		return new(big.Rat).SetInt(new(big.Int).Lsh(l.Num(), uint(r.Num().Uint64()))), true
	case ast.OpShr:
		if !l.IsInt() || !r.IsInt() || !r.Num().IsUint64() || r.Num().Uint64() > 512 {
			return nil, false
		}
		return new(big.Rat).SetInt(new(big.Int).Rsh(l.Num(), uint(r.Num().Uint64()))), true
	case ast.OpBitAnd:
		if !l.IsInt() || !r.IsInt() {
			return nil, false
		}
		return new(big.Rat).SetInt(new(big.Int).And(l.Num(), r.Num())), true
	case ast.OpBitOr:
		if !l.IsInt() || !r.IsInt() {
			return nil, false
		}
		return new(big.Rat).SetInt(new(big.Int).Or(l.Num(), r.Num())), true
	case ast.OpBitXor:
		if !l.IsInt() || !r.IsInt() {
			return nil, false
		}
		return new(big.Rat).SetInt(new(big.Int).Xor(l.Num(), r.Num())), true
	}
	return nil, false
}

// fitsInto reports whether integer value v fits the integer type t.
func fitsInto(v *big.Int, t Type) bool {
	switch x := Deref(t).(type) {
	case Uint:
		if v.Sign() < 0 {
			return false
		}
		return v.BitLen() <= int(x.Width)
	case Int:
		if v.Sign() >= 0 {
			return v.BitLen() <= int(x.Width)-1
		}
		// Most negative value has BitLen == width-1 plus sign.
		m := new(big.Int).Neg(v)
		m.Sub(m, big.NewInt(1))
		return m.BitLen() <= int(x.Width)-1
	case Bytes:
		return v.Sign() >= 0 && (v.BitLen()+7)/8 <= int(x.N)
	case Address:
		return v.Sign() >= 0
	}
	return false
}

// smallestUint returns the narrowest uint type holding v, for literal
// inference.
func smallestUint(v *big.Int) Type {
	bits := v.BitLen()
	if bits == 0 {
		bits = 1
	}
	width := (bits + 7) / 8 * 8
	if width > 256 {
		width = 256
	}
	return Uint{Width: uint16(width)}
}
