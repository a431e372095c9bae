package parser

import (
	"regexp"

	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/token"
)

var elementaryRe = regexp.MustCompile(`^(bool|string|address|byte|bytes([0-9]+)?|uint([0-9]+)?|int([0-9]+)?)$`)

// isElementaryName reports whether an identifier spells a builtin type.
// Width validation happens during resolution.
func isElementaryName(name string) bool {
	return elementaryRe.MatchString(name)
}

// parseTypeName parses a type expression, or returns nil with the
// cursor unchanged when the current tokens cannot start one.
func (p *Parser) parseTypeName() ast.Expression {
	var base ast.Expression
	switch p.cur().Kind {
	case token.Mapping:
		base = p.parseMappingType()
	case token.Function:
		base = p.parseFunctionType()
	case token.Ident:
		t := p.cur()
		if isElementaryName(t.Text) {
			p.advance()
			el := &ast.ElementaryType{Loc: t.Loc, Name: t.Text}
			if t.Text == "address" {
				if pay, ok := p.accept(token.Payable); ok {
					el.Payable = true
					el.Loc = el.Loc.Union(pay.Loc)
				}
			}
			base = el
		} else {
			path := p.parseIdentifierPath()
			base = pathExpr(path)
		}
	default:
		return nil
	}

	// Array dimensions: T[], T[N], possibly nested.
	for p.at(token.LBracket) {
		open := p.advance()
		sub := &ast.Subscript{Loc: base.ExprLoc().Union(open.Loc), Expr: base}
		if !p.at(token.RBracket) {
			sub.Index = p.parseExpression()
		}
		end, _ := p.expect(token.RBracket)
		sub.Loc = sub.Loc.Union(end.Loc)
		base = sub
	}
	return base
}

// pathExpr converts an identifier path to nested member accesses so
// type and value positions share one representation.
func pathExpr(path ast.IdentifierPath) ast.Expression {
	var e ast.Expression = &ast.IdentifierExpr{Loc: path.Parts[0].Loc, Name: path.Parts[0].Name}
	for _, part := range path.Parts[1:] {
		e = &ast.MemberAccess{Loc: e.ExprLoc().Union(part.Loc), Expr: e, Member: part}
	}
	return e
}

func (p *Parser) parseMappingType() ast.Expression {
	start := p.advance() // mapping
	m := &ast.MappingType{Loc: start.Loc}
	p.expect(token.LParen)
	m.Key = p.parseTypeName()
	if m.Key == nil {
		t := p.cur()
		p.errorf(t.Loc, "expected mapping key type, found %s", describe(t))
	}
	if p.atName() {
		m.KeyName = p.parseIdentifier()
	}
	p.expect(token.Arrow)
	m.Value = p.parseTypeName()
	if m.Value == nil {
		t := p.cur()
		p.errorf(t.Loc, "expected mapping value type, found %s", describe(t))
	}
	if p.atName() {
		m.ValueName = p.parseIdentifier()
	}
	end, _ := p.expect(token.RParen)
	m.Loc = m.Loc.Union(end.Loc)
	return m
}

func (p *Parser) parseFunctionType() ast.Expression {
	start := p.advance() // function
	ft := &ast.FunctionType{Loc: start.Loc}
	ft.Params = p.parseParameterList()
	for {
		switch p.cur().Kind {
		case token.Internal:
			p.advance()
			ft.Visibility = ast.VisInternal
			continue
		case token.External:
			p.advance()
			ft.Visibility = ast.VisExternal
			continue
		case token.Pure:
			p.advance()
			ft.Mutability = ast.MutPure
			continue
		case token.View:
			p.advance()
			ft.Mutability = ast.MutView
			continue
		case token.Payable:
			p.advance()
			ft.Mutability = ast.MutPayable
			continue
		case token.Returns:
			p.advance()
			ft.Returns = p.parseParameterList()
			continue
		}
		break
	}
	return ft
}

// Binary operator precedence, higher binds tighter.
func binaryPrec(k token.Kind) (ast.BinaryOp, int, bool) {
	switch k {
	case token.Power:
		return ast.OpPower, 11, true
	case token.Mul:
		return ast.OpMul, 10, true
	case token.Div:
		return ast.OpDiv, 10, true
	case token.Mod:
		return ast.OpMod, 10, true
	case token.Add:
		return ast.OpAdd, 9, true
	case token.Sub:
		return ast.OpSub, 9, true
	case token.Shl:
		return ast.OpShl, 8, true
	case token.Shr:
		return ast.OpShr, 8, true
	case token.BitAnd:
		return ast.OpBitAnd, 7, true
	case token.BitXor:
		return ast.OpBitXor, 6, true
	case token.BitOr:
		return ast.OpBitOr, 5, true
	case token.Lt:
		return ast.OpLt, 4, true
	case token.Le:
		return ast.OpLe, 4, true
	case token.Gt:
		return ast.OpGt, 4, true
	case token.Ge:
		return ast.OpGe, 4, true
	case token.Eq:
		return ast.OpEq, 3, true
	case token.Ne:
		return ast.OpNe, 3, true
	case token.And:
		return ast.OpAnd, 2, true
	case token.Or:
		return ast.OpOr, 1, true
	}
	return 0, 0, false
}

func assignOp(k token.Kind) (ast.AssignOp, bool) {
	switch k {
	case token.Assign:
		return ast.OpAssign, true
	case token.AddAssign:
		return ast.OpAssignAdd, true
	case token.SubAssign:
		return ast.OpAssignSub, true
	case token.MulAssign:
		return ast.OpAssignMul, true
	case token.DivAssign:
		return ast.OpAssignDiv, true
	case token.ModAssign:
		return ast.OpAssignMod, true
	case token.ShlAssign:
		return ast.OpAssignShl, true
	case token.ShrAssign:
		return ast.OpAssignShr, true
	case token.AndAssign:
		return ast.OpAssignAnd, true
	case token.OrAssign:
		return ast.OpAssignOr, true
	case token.XorAssign:
		return ast.OpAssignXor, true
	}
	return 0, false
}

// parseExpression parses a full expression including assignment and the
// conditional operator.
func (p *Parser) parseExpression() ast.Expression {
	left := p.parseTernary()
	if op, ok := assignOp(p.cur().Kind); ok {
		p.advance()
		right := p.parseExpression() // right-associative
		return &ast.AssignExpr{
			Loc:   left.ExprLoc().Union(right.ExprLoc()),
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseTernary() ast.Expression {
	cond := p.parseBinary(1)
	if !p.at(token.Question) {
		return cond
	}
	p.advance()
	trueExpr := p.parseTernary()
	p.expect(token.Colon)
	falseExpr := p.parseTernary()
	return &ast.TernaryExpr{
		Loc:   cond.ExprLoc().Union(falseExpr.ExprLoc()),
		Cond:  cond,
		True:  trueExpr,
		False: falseExpr,
	}
}

func (p *Parser) parseBinary(minPrec int) ast.Expression {
	left := p.parseUnary()
	for {
		op, prec, ok := binaryPrec(p.cur().Kind)
		if !ok || prec < minPrec {
			return left
		}
		p.advance()
		var right ast.Expression
		if op == ast.OpPower {
			// ** is right-associative.
			right = p.parseBinary(prec)
		} else {
			right = p.parseBinary(prec + 1)
		}
		left = &ast.BinaryExpr{
			Loc:   left.ExprLoc().Union(right.ExprLoc()),
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
}

func (p *Parser) parseUnary() ast.Expression {
	t := p.cur()
	switch t.Kind {
	case token.Sub:
		p.advance()
		e := p.parseUnary()
		return &ast.UnaryExpr{Loc: t.Loc.Union(e.ExprLoc()), Op: ast.OpNeg, Expr: e}
	case token.Not:
		p.advance()
		e := p.parseUnary()
		return &ast.UnaryExpr{Loc: t.Loc.Union(e.ExprLoc()), Op: ast.OpNot, Expr: e}
	case token.BitNot:
		p.advance()
		e := p.parseUnary()
		return &ast.UnaryExpr{Loc: t.Loc.Union(e.ExprLoc()), Op: ast.OpBitNot, Expr: e}
	case token.Inc:
		p.advance()
		e := p.parseUnary()
		return &ast.UnaryExpr{Loc: t.Loc.Union(e.ExprLoc()), Op: ast.OpPreInc, Expr: e}
	case token.Dec:
		p.advance()
		e := p.parseUnary()
		return &ast.UnaryExpr{Loc: t.Loc.Union(e.ExprLoc()), Op: ast.OpPreDec, Expr: e}
	case token.Delete:
		p.advance()
		e := p.parseUnary()
		return &ast.UnaryExpr{Loc: t.Loc.Union(e.ExprLoc()), Op: ast.OpDelete, Expr: e}
	case token.New:
		p.advance()
		ty := p.parseTypeName()
		if ty == nil {
			p.errorf(t.Loc, "expected type after 'new'")
			ty = &ast.IdentifierExpr{Loc: t.Loc}
		}
		return p.parsePostfix(&ast.NewExpr{Loc: t.Loc.Union(ty.ExprLoc()), Type: ty})
	}
	return p.parsePostfix(p.parsePrimary())
}

func (p *Parser) parsePostfix(e ast.Expression) ast.Expression {
	for {
		switch p.cur().Kind {
		case token.Dot:
			p.advance()
			member := p.parseIdentifier()
			e = &ast.MemberAccess{Loc: e.ExprLoc().Union(member.Loc), Expr: e, Member: member}
		case token.LBracket:
			p.advance()
			sub := &ast.Subscript{Loc: e.ExprLoc(), Expr: e}
			if !p.at(token.RBracket) {
				sub.Index = p.parseExpression()
			}
			end, _ := p.expect(token.RBracket)
			sub.Loc = sub.Loc.Union(end.Loc)
			e = sub
		case token.LParen:
			call := &ast.CallExpr{Loc: e.ExprLoc(), Callee: e}
			p.advance()
			if p.at(token.LBrace) {
				// f({name: value}) named-argument form.
				p.advance()
				for !p.at(token.RBrace) && !p.at(token.EOF) {
					name := p.parseIdentifier()
					p.expect(token.Colon)
					val := p.parseExpression()
					call.NamedArgs = append(call.NamedArgs, ast.NamedArg{
						Loc: name.Loc.Union(val.ExprLoc()), Name: name, Value: val,
					})
					if _, ok := p.accept(token.Comma); !ok {
						break
					}
				}
				p.expect(token.RBrace)
			} else {
				for !p.at(token.RParen) && !p.at(token.EOF) {
					call.Args = append(call.Args, p.parseExpression())
					if _, ok := p.accept(token.Comma); !ok {
						break
					}
				}
			}
			end, _ := p.expect(token.RParen)
			call.Loc = call.Loc.Union(end.Loc)
			e = call
		case token.LBrace:
			// Call options: f{value: v}(…). Only when followed by
			// name-colon, otherwise it is a block and we stop.
			if p.peekKind(1) != token.Ident || p.peekKind(2) != token.Colon {
				return e
			}
			opts := &ast.CallOptions{Loc: e.ExprLoc(), Expr: e}
			p.advance()
			for !p.at(token.RBrace) && !p.at(token.EOF) {
				name := p.parseIdentifier()
				p.expect(token.Colon)
				val := p.parseExpression()
				opts.Options = append(opts.Options, ast.NamedArg{
					Loc: name.Loc.Union(val.ExprLoc()), Name: name, Value: val,
				})
				if _, ok := p.accept(token.Comma); !ok {
					break
				}
			}
			end, _ := p.expect(token.RBrace)
			opts.Loc = opts.Loc.Union(end.Loc)
			e = opts
		case token.Inc:
			t := p.advance()
			e = &ast.UnaryExpr{Loc: e.ExprLoc().Union(t.Loc), Op: ast.OpPostInc, Expr: e}
		case token.Dec:
			t := p.advance()
			e = &ast.UnaryExpr{Loc: e.ExprLoc().Union(t.Loc), Op: ast.OpPostDec, Expr: e}
		default:
			return e
		}
	}
}

func (p *Parser) parsePrimary() ast.Expression {
	t := p.cur()
	switch t.Kind {
	case token.Number:
		p.advance()
		lit := &ast.NumberLiteral{Loc: t.Loc, Text: t.Text}
		lit.Unit, lit.Loc = p.parseUnit(lit.Loc)
		return lit
	case token.RationalNumber:
		p.advance()
		lit := &ast.RationalLiteral{Loc: t.Loc, Text: t.Text}
		lit.Unit, lit.Loc = p.parseUnit(lit.Loc)
		return lit
	case token.HexNumber:
		p.advance()
		return &ast.HexNumberLiteral{Loc: t.Loc, Text: t.Text}
	case token.StringLit, token.UnicodeStringLit:
		return p.parseStringLiteral()
	case token.HexLit:
		p.advance()
		lit := &ast.HexLiteral{Loc: t.Loc, Value: t.Text}
		// Adjacent hex literals concatenate like strings.
		for p.at(token.HexLit) {
			next := p.advance()
			lit.Value += next.Text
			lit.Loc = lit.Loc.Union(next.Loc)
		}
		return lit
	case token.AddressLit:
		p.advance()
		return &ast.AddressLiteral{Loc: t.Loc, Value: t.Text}
	case token.Ident:
		if isElementaryName(t.Text) {
			ty := p.parseTypeName()
			return ty
		}
		p.advance()
		if t.Text == "true" || t.Text == "false" {
			return &ast.BoolLiteral{Loc: t.Loc, Value: t.Text == "true"}
		}
		return &ast.IdentifierExpr{Loc: t.Loc, Name: t.Text}
	case token.Type:
		// type(T) expression.
		p.advance()
		return &ast.IdentifierExpr{Loc: t.Loc, Name: "type"}
	case token.Payable:
		// payable(addr) conversion.
		p.advance()
		return &ast.ElementaryType{Loc: t.Loc, Name: "address", Payable: true}
	case token.Error:
		// `error` used as a plain identifier (e.g. try/catch binding).
		p.advance()
		return &ast.IdentifierExpr{Loc: t.Loc, Name: "error"}
	case token.Mapping, token.Function:
		ty := p.parseTypeName()
		return ty
	case token.LBracket:
		p.advance()
		arr := &ast.ArrayLiteral{Loc: t.Loc}
		for !p.at(token.RBracket) && !p.at(token.EOF) {
			arr.Items = append(arr.Items, p.parseExpression())
			if _, ok := p.accept(token.Comma); !ok {
				break
			}
		}
		end, _ := p.expect(token.RBracket)
		arr.Loc = arr.Loc.Union(end.Loc)
		return arr
	case token.LParen:
		p.advance()
		tup := &ast.TupleExpr{Loc: t.Loc}
		for !p.at(token.RParen) && !p.at(token.EOF) {
			if p.at(token.Comma) {
				tup.Items = append(tup.Items, nil)
			} else {
				tup.Items = append(tup.Items, p.parseExpression())
			}
			if _, ok := p.accept(token.Comma); !ok {
				break
			}
		}
		end, _ := p.expect(token.RParen)
		tup.Loc = tup.Loc.Union(end.Loc)
		if len(tup.Items) == 1 && tup.Items[0] != nil {
			return tup.Items[0]
		}
		return tup
	}

	p.errorf(t.Loc, "expected expression, found %s", describe(t))
	p.advance()
	return &ast.IdentifierExpr{Loc: t.Loc}
}

// parseStringLiteral concatenates adjacent string tokens.
func (p *Parser) parseStringLiteral() ast.Expression {
	t := p.advance()
	lit := &ast.StringLiteral{
		Loc:     t.Loc,
		Value:   t.Text,
		Unicode: t.Kind == token.UnicodeStringLit,
	}
	for p.at(token.StringLit) || p.at(token.UnicodeStringLit) {
		next := p.advance()
		lit.Value += next.Text
		lit.Loc = lit.Loc.Union(next.Loc)
		if next.Kind == token.UnicodeStringLit {
			lit.Unicode = true
		}
	}
	return lit
}

var units = map[string]bool{
	"wei": true, "gwei": true, "ether": true,
	"seconds": true, "minutes": true, "hours": true,
	"days": true, "weeks": true,
}

// parseUnit consumes a currency/time unit suffix when present.
func (p *Parser) parseUnit(loc diag.Loc) (string, diag.Loc) {
	if p.at(token.Ident) && units[p.cur().Text] {
		t := p.advance()
		return t.Text, loc.Union(t.Loc)
	}
	return "", loc
}
