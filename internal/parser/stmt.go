package parser

import (
	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/token"
)

// parseCallArgs parses a parenthesized positional argument list.
func (p *Parser) parseCallArgs() []ast.Expression {
	p.expect(token.LParen)
	var args []ast.Expression
	for !p.at(token.RParen) && !p.at(token.EOF) {
		args = append(args, p.parseExpression())
		if _, ok := p.accept(token.Comma); !ok {
			break
		}
	}
	p.expect(token.RParen)
	return args
}

func (p *Parser) parseBlock(unchecked bool) *ast.Block {
	start, _ := p.expect(token.LBrace)
	block := &ast.Block{Loc: start.Loc, Unchecked: unchecked}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		before := p.pos
		stmt := p.parseStatement()
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		if p.pos == before {
			t := p.advance()
			p.errorf(t.Loc, "unexpected %s in block", describe(t))
			p.synchronize()
		}
	}
	end, _ := p.expect(token.RBrace)
	block.Loc = block.Loc.Union(end.Loc)
	return block
}

func (p *Parser) parseStatement() ast.Statement {
	t := p.cur()
	switch t.Kind {
	case token.LBrace:
		return p.parseBlock(false)
	case token.Unchecked:
		p.advance()
		return p.parseBlock(true)
	case token.If:
		return p.parseIf()
	case token.While:
		return p.parseWhile()
	case token.Do:
		return p.parseDoWhile()
	case token.For:
		return p.parseFor()
	case token.Return:
		p.advance()
		stmt := &ast.ReturnStmt{Loc: t.Loc}
		if !p.at(token.Semicolon) {
			stmt.Expr = p.parseExpression()
		}
		end, _ := p.expect(token.Semicolon)
		stmt.Loc = stmt.Loc.Union(end.Loc)
		return stmt
	case token.Break:
		p.advance()
		end, _ := p.expect(token.Semicolon)
		return &ast.BreakStmt{Loc: t.Loc.Union(end.Loc)}
	case token.Continue:
		p.advance()
		end, _ := p.expect(token.Semicolon)
		return &ast.ContinueStmt{Loc: t.Loc.Union(end.Loc)}
	case token.Emit:
		return p.parseEmit()
	case token.Try:
		return p.parseTry()
	case token.Ident:
		if t.Text == "_" && p.peekKind(1) == token.Semicolon {
			p.advance()
			end, _ := p.expect(token.Semicolon)
			return &ast.PlaceholderStmt{Loc: t.Loc.Union(end.Loc)}
		}
		if t.Text == "revert" {
			// revert; revert("…"); revert Err(args);
			if k := p.peekKind(1); k == token.Semicolon || k == token.Ident {
				return p.parseRevert()
			}
		}
	}

	// Variable declaration or expression statement.
	if stmt := p.tryParseVarDeclStmt(); stmt != nil {
		return stmt
	}
	expr := p.parseExpression()
	end, ok := p.expect(token.Semicolon)
	if !ok {
		p.synchronize()
	}
	return &ast.ExprStmt{Loc: expr.ExprLoc().Union(end.Loc), Expr: expr}
}

// tryParseVarDeclStmt speculatively parses `<type> [location] <name>
// [= expr];` and the destructuring form `(T a, , U b) = expr;`.
func (p *Parser) tryParseVarDeclStmt() ast.Statement {
	if p.at(token.LParen) {
		return p.tryParseDestructure()
	}

	m := p.mark()
	ty := p.parseTypeName()
	if ty == nil {
		return nil
	}
	decl := &ast.Parameter{Loc: ty.ExprLoc(), Type: ty}
	switch p.cur().Kind {
	case token.Memory:
		p.advance()
		decl.Storage = ast.LocationMemory
	case token.Storage:
		p.advance()
		decl.Storage = ast.LocationStorage
	case token.Calldata:
		p.advance()
		decl.Storage = ast.LocationCalldata
	}
	if !p.atName() {
		p.reset(m)
		return nil
	}
	decl.Name = p.parseIdentifier()
	decl.Loc = decl.Loc.Union(decl.Name.Loc)

	stmt := &ast.VariableDeclStmt{Loc: decl.Loc, Decls: []*ast.Parameter{decl}}
	if _, ok := p.accept(token.Assign); ok {
		stmt.Initializer = p.parseExpression()
	}
	end, ok := p.expect(token.Semicolon)
	if !ok {
		p.synchronize()
	}
	stmt.Loc = stmt.Loc.Union(end.Loc)
	return stmt
}

// tryParseDestructure handles `(T a, , U b) = rhs;`. A parenthesized
// expression statement rolls back and is parsed as an expression.
func (p *Parser) tryParseDestructure() ast.Statement {
	m := p.mark()
	open := p.advance() // (
	stmt := &ast.VariableDeclStmt{Loc: open.Loc}
	for !p.at(token.RParen) && !p.at(token.EOF) {
		if p.at(token.Comma) {
			stmt.Decls = append(stmt.Decls, nil)
			p.advance()
			continue
		}
		ty := p.parseTypeName()
		if ty == nil {
			p.reset(m)
			return nil
		}
		decl := &ast.Parameter{Loc: ty.ExprLoc(), Type: ty}
		switch p.cur().Kind {
		case token.Memory:
			p.advance()
			decl.Storage = ast.LocationMemory
		case token.Storage:
			p.advance()
			decl.Storage = ast.LocationStorage
		case token.Calldata:
			p.advance()
			decl.Storage = ast.LocationCalldata
		}
		if !p.atName() {
			p.reset(m)
			return nil
		}
		decl.Name = p.parseIdentifier()
		stmt.Decls = append(stmt.Decls, decl)
		if !p.at(token.RParen) {
			if _, ok := p.accept(token.Comma); !ok {
				p.reset(m)
				return nil
			}
		}
	}
	if _, ok := p.accept(token.RParen); !ok {
		p.reset(m)
		return nil
	}
	if _, ok := p.accept(token.Assign); !ok {
		p.reset(m)
		return nil
	}
	stmt.Initializer = p.parseExpression()
	end, ok := p.expect(token.Semicolon)
	if !ok {
		p.synchronize()
	}
	stmt.Loc = stmt.Loc.Union(end.Loc)
	return stmt
}

func (p *Parser) parseIf() ast.Statement {
	start := p.advance() // if
	stmt := &ast.IfStmt{Loc: start.Loc}
	p.expect(token.LParen)
	stmt.Cond = p.parseExpression()
	p.expect(token.RParen)
	stmt.Then = p.parseStatement()
	if stmt.Then != nil {
		stmt.Loc = stmt.Loc.Union(stmt.Then.StmtLoc())
	}
	if _, ok := p.accept(token.Else); ok {
		stmt.Else = p.parseStatement()
		if stmt.Else != nil {
			stmt.Loc = stmt.Loc.Union(stmt.Else.StmtLoc())
		}
	}
	return stmt
}

func (p *Parser) parseWhile() ast.Statement {
	start := p.advance() // while
	stmt := &ast.WhileStmt{Loc: start.Loc}
	p.expect(token.LParen)
	stmt.Cond = p.parseExpression()
	p.expect(token.RParen)
	stmt.Body = p.parseStatement()
	if stmt.Body != nil {
		stmt.Loc = stmt.Loc.Union(stmt.Body.StmtLoc())
	}
	return stmt
}

func (p *Parser) parseDoWhile() ast.Statement {
	start := p.advance() // do
	stmt := &ast.DoWhileStmt{Loc: start.Loc}
	stmt.Body = p.parseStatement()
	p.expect(token.While)
	p.expect(token.LParen)
	stmt.Cond = p.parseExpression()
	p.expect(token.RParen)
	end, _ := p.expect(token.Semicolon)
	stmt.Loc = stmt.Loc.Union(end.Loc)
	return stmt
}

func (p *Parser) parseFor() ast.Statement {
	start := p.advance() // for
	stmt := &ast.ForStmt{Loc: start.Loc}
	p.expect(token.LParen)

	if !p.at(token.Semicolon) {
		if decl := p.tryParseVarDeclStmt(); decl != nil {
			// tryParseVarDeclStmt consumed the separating semicolon.
			stmt.Init = decl
		} else {
			expr := p.parseExpression()
			stmt.Init = &ast.ExprStmt{Loc: expr.ExprLoc(), Expr: expr}
			p.expect(token.Semicolon)
		}
	} else {
		p.advance()
	}

	if !p.at(token.Semicolon) {
		stmt.Cond = p.parseExpression()
	}
	p.expect(token.Semicolon)

	if !p.at(token.RParen) {
		stmt.Next = p.parseExpression()
	}
	p.expect(token.RParen)

	stmt.Body = p.parseStatement()
	if stmt.Body != nil {
		stmt.Loc = stmt.Loc.Union(stmt.Body.StmtLoc())
	}
	return stmt
}

func (p *Parser) parseEmit() ast.Statement {
	start := p.advance() // emit
	expr := p.parseExpression()
	stmt := &ast.EmitStmt{Loc: start.Loc}
	if call, ok := expr.(*ast.CallExpr); ok {
		stmt.Call = call
	} else {
		p.errorf(expr.ExprLoc(), "expected event invocation after 'emit'")
		stmt.Call = &ast.CallExpr{Loc: expr.ExprLoc(), Callee: expr}
	}
	end, _ := p.expect(token.Semicolon)
	stmt.Loc = stmt.Loc.Union(end.Loc)
	return stmt
}

func (p *Parser) parseRevert() ast.Statement {
	start := p.advance() // 'revert' ident
	stmt := &ast.RevertStmt{Loc: start.Loc}
	if p.at(token.Ident) {
		path := p.parseIdentifierPath()
		stmt.Error = &path
		stmt.Args = p.parseCallArgs()
	}
	end, _ := p.expect(token.Semicolon)
	stmt.Loc = stmt.Loc.Union(end.Loc)
	return stmt
}

func (p *Parser) parseTry() ast.Statement {
	start := p.advance() // try
	stmt := &ast.TryStmt{Loc: start.Loc}
	stmt.Expr = p.parseExpression()
	if _, ok := p.accept(token.Returns); ok {
		stmt.Returns = p.parseParameterList()
	}
	stmt.Ok = p.parseBlock(false)
	for p.at(token.Catch) {
		p.advance()
		clause := ast.CatchClause{Loc: p.cur().Loc, Kind: ast.CatchAll}
		if p.at(token.Ident) {
			name := p.parseIdentifier()
			switch name.Name {
			case "Error":
				clause.Kind = ast.CatchError
			case "Panic":
				clause.Kind = ast.CatchPanic
			default:
				p.errorf(name.Loc, "expected 'Error', 'Panic' or a parameter list after 'catch'")
			}
			params := p.parseParameterList()
			if len(params) == 1 {
				clause.Param = &params[0]
			} else if len(params) != 0 {
				p.errorf(name.Loc, "catch clause takes a single parameter")
			}
		} else if p.at(token.LParen) {
			params := p.parseParameterList()
			if len(params) == 1 {
				clause.Param = &params[0]
			} else if len(params) != 0 {
				p.errorf(clause.Loc, "catch clause takes a single parameter")
			}
		}
		clause.Body = p.parseBlock(false)
		clause.Loc = clause.Loc.Union(clause.Body.Loc)
		stmt.Catches = append(stmt.Catches, clause)
	}
	if len(stmt.Catches) == 0 {
		p.errorf(stmt.Loc, "'try' requires at least one 'catch' clause")
	}
	stmt.Loc = stmt.Loc.Union(stmt.Ok.Loc)
	if n := len(stmt.Catches); n > 0 {
		stmt.Loc = stmt.Loc.Union(stmt.Catches[n-1].Loc)
	}
	return stmt
}
