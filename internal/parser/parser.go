// Package parser turns file text into a positional AST. The parser is
// recursive-descent and error-recovering: a syntax error produces a
// diagnostic, tokens are skipped to a synchronizing point, and parsing
// continues. A single error never aborts the file.
package parser

import (
	"github.com/standardbeagle/solis/internal/ast"
	"github.com/standardbeagle/solis/internal/diag"
	"github.com/standardbeagle/solis/internal/token"
)

// Parser holds the token cursor and accumulated diagnostics for one
// file.
type Parser struct {
	fileNo int
	toks   []token.Token
	pos    int
	diags  []diag.Diagnostic

	pendingDoc []ast.DocComment
}

// Parse scans and parses one file. The source unit is non-nil unless
// the lexer hit a fatal condition (invalid UTF-8).
func Parse(fileNo int, text string) (*ast.SourceUnit, []diag.Diagnostic) {
	toks, diags := token.Scan(fileNo, text)
	if toks == nil {
		return nil, diags
	}
	p := &Parser{fileNo: fileNo, toks: toks, diags: diags}
	unit := p.parseSourceUnit()
	return unit, p.diags
}

// cur returns the current token, doc comments skipped and collected.
func (p *Parser) cur() token.Token {
	for p.pos < len(p.toks) && p.toks[p.pos].Kind == token.DocComment {
		t := p.toks[p.pos]
		p.pendingDoc = append(p.pendingDoc, ast.DocComment{Loc: t.Loc, Text: t.Text})
		p.pos++
	}
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos]
}

// peekKind returns the kind n tokens ahead of the cursor, ignoring doc
// comments, without consuming anything.
func (p *Parser) peekKind(n int) token.Kind {
	i := p.pos
	for {
		for i < len(p.toks) && p.toks[i].Kind == token.DocComment {
			i++
		}
		if i >= len(p.toks) {
			return token.EOF
		}
		if n == 0 {
			return p.toks[i].Kind
		}
		n--
		i++
	}
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if t.Kind != token.EOF {
		p.pos++
	}
	return t
}

func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) accept(k token.Kind) (token.Token, bool) {
	if p.at(k) {
		return p.advance(), true
	}
	return token.Token{}, false
}

// expect consumes a token of kind k or reports an error at the current
// token without consuming it.
func (p *Parser) expect(k token.Kind) (token.Token, bool) {
	if p.at(k) {
		return p.advance(), true
	}
	t := p.cur()
	p.errorf(t.Loc, "expected %s, found %s", k, describe(t))
	return token.Token{Kind: k, Loc: t.Loc}, false
}

func describe(t token.Token) string {
	switch t.Kind {
	case token.Ident, token.Number, token.HexNumber, token.RationalNumber:
		return "'" + t.Text + "'"
	case token.StringLit:
		return "string literal"
	default:
		return t.Kind.String()
	}
}

func (p *Parser) errorf(loc diag.Loc, format string, args ...any) {
	p.diags = append(p.diags, diag.Error(loc, format, args...))
}

// takeDoc returns and clears the pending doc comments for the
// declaration about to be built.
func (p *Parser) takeDoc() []ast.DocComment {
	d := p.pendingDoc
	p.pendingDoc = nil
	return d
}

// synchronize skips tokens until a likely statement/declaration
// boundary: ';' (consumed), '{'/'}' (left in place), or a top-level
// keyword.
func (p *Parser) synchronize() {
	for {
		switch p.cur().Kind {
		case token.EOF, token.LBrace, token.RBrace:
			return
		case token.Semicolon:
			p.advance()
			return
		case token.Pragma, token.Import, token.Contract, token.Abstract,
			token.Interface, token.Library, token.Struct, token.Enum,
			token.Event, token.Function, token.Modifier,
			token.Constructor, token.Using, token.Type:
			return
		}
		p.advance()
	}
}

// mark/reset implement speculative parsing for the statement-level
// declaration-vs-expression ambiguity. Diagnostics produced after a
// mark are discarded by reset.
type mark struct {
	pos     int
	diags   int
	pending int
}

func (p *Parser) mark() mark {
	return mark{pos: p.pos, diags: len(p.diags), pending: len(p.pendingDoc)}
}

func (p *Parser) reset(m mark) {
	p.pos = m.pos
	p.diags = p.diags[:m.diags]
	p.pendingDoc = p.pendingDoc[:m.pending]
}

// parseSourceUnit parses the whole file.
func (p *Parser) parseSourceUnit() *ast.SourceUnit {
	unit := &ast.SourceUnit{FileNo: p.fileNo}
	for !p.at(token.EOF) {
		before := p.pos
		item := p.parseItem()
		if item != nil {
			unit.Items = append(unit.Items, item)
		}
		if p.pos == before && !p.at(token.EOF) {
			// No progress; skip the offending token to guarantee
			// termination.
			t := p.advance()
			p.errorf(t.Loc, "unexpected %s at file scope", describe(t))
			p.synchronize()
		}
	}
	return unit
}

// parseAnnotations collects a run of @name[(args)] tags.
func (p *Parser) parseAnnotations() []ast.Annotation {
	var anns []ast.Annotation
	for p.at(token.Annotation) {
		t := p.advance()
		ann := ast.Annotation{
			Loc:  t.Loc,
			Name: ast.Identifier{Loc: t.Loc, Name: t.Text},
		}
		if p.at(token.LParen) {
			p.advance()
			for !p.at(token.RParen) && !p.at(token.EOF) {
				ann.Args = append(ann.Args, p.parseExpression())
				if _, ok := p.accept(token.Comma); !ok {
					break
				}
			}
			end, _ := p.expect(token.RParen)
			ann.Loc = ann.Loc.Union(end.Loc)
		}
		anns = append(anns, ann)
	}
	return anns
}

// parseItem parses one top-level item; nil is returned after an error
// that consumed nothing useful.
func (p *Parser) parseItem() ast.Item {
	anns := p.parseAnnotations()
	switch p.cur().Kind {
	case token.Pragma:
		p.takeDoc()
		return p.rejectAnnotations(anns, p.parsePragma())
	case token.Import:
		p.takeDoc()
		return p.rejectAnnotations(anns, p.parseImport())
	case token.Contract, token.Abstract, token.Interface, token.Library:
		return p.parseContract(anns)
	case token.Struct:
		return p.rejectAnnotations(anns, p.parseStruct())
	case token.Enum:
		return p.rejectAnnotations(anns, p.parseEnum())
	case token.Event:
		return p.rejectAnnotations(anns, p.parseEvent())
	case token.Error:
		// `error` doubles as an identifier; at file scope a name must
		// follow for this to be a definition.
		if p.peekKind(1) == token.Ident {
			return p.rejectAnnotations(anns, p.parseErrorDef())
		}
	case token.Type:
		return p.rejectAnnotations(anns, p.parseUserType())
	case token.Using:
		return p.rejectAnnotations(anns, p.parseUsing())
	case token.Function:
		fn := p.parseFunction(ast.FnFunction)
		fn.Annotations = anns
		return fn
	}

	// A file-scope constant: <type> constant <name> = <expr>;
	if v := p.tryParseVariable(); v != nil {
		v.Annotations = anns
		return v
	}

	if len(anns) > 0 {
		p.errorf(anns[0].Loc, "annotation '@%s' is not followed by a declaration", anns[0].Name.Name)
		return nil
	}
	return nil
}

// rejectAnnotations reports annotations attached to an item kind that
// takes none and returns the item unchanged.
func (p *Parser) rejectAnnotations(anns []ast.Annotation, item ast.Item) ast.Item {
	for _, a := range anns {
		p.errorf(a.Loc, "annotation '@%s' not allowed here", a.Name.Name)
	}
	return item
}

func (p *Parser) parsePragma() ast.Item {
	start := p.advance() // pragma
	name := p.parseIdentifier()
	value := ""
	loc := start.Loc
	for !p.at(token.Semicolon) && !p.at(token.EOF) {
		t := p.advance()
		if value != "" {
			value += " "
		}
		value += t.Text
		loc = loc.Union(t.Loc)
	}
	if end, ok := p.expect(token.Semicolon); ok {
		loc = loc.Union(end.Loc)
	}
	return &ast.PragmaDirective{Loc: loc, Name: name, Value: value}
}

func (p *Parser) parseImport() ast.Item {
	start := p.advance() // import
	imp := &ast.ImportDirective{Loc: start.Loc, ResolvedFileNo: -1}

	if p.at(token.LBrace) {
		p.advance()
		for !p.at(token.RBrace) && !p.at(token.EOF) {
			sym := ast.ImportSymbol{Name: p.parseIdentifier()}
			if _, ok := p.accept(token.As); ok {
				sym.Alias = p.parseIdentifier()
			}
			imp.Symbols = append(imp.Symbols, sym)
			if _, ok := p.accept(token.Comma); !ok {
				break
			}
		}
		p.expect(token.RBrace)
		p.expect(token.From)
	}

	path, ok := p.expect(token.StringLit)
	if ok {
		imp.Path = path.Text
		imp.PathLoc = path.Loc
	}

	if len(imp.Symbols) == 0 {
		if _, ok := p.accept(token.As); ok {
			imp.Alias = p.parseIdentifier()
		}
	}
	end, _ := p.expect(token.Semicolon)
	imp.Loc = imp.Loc.Union(end.Loc)
	return imp
}

// atName reports whether the current token can serve as a name:
// identifiers plus the soft keywords that are only reserved in their
// own constructs.
func (p *Parser) atName() bool {
	switch p.cur().Kind {
	case token.Ident, token.From, token.Global, token.Error, token.Case, token.Default, token.Switch:
		return true
	}
	return false
}

func (p *Parser) parseIdentifier() ast.Identifier {
	if p.atName() {
		t := p.advance()
		return ast.Identifier{Loc: t.Loc, Name: t.Text}
	}
	t := p.cur()
	p.errorf(t.Loc, "expected identifier, found %s", describe(t))
	return ast.Identifier{Loc: t.Loc}
}

func (p *Parser) parseIdentifierPath() ast.IdentifierPath {
	first := p.parseIdentifier()
	path := ast.IdentifierPath{Loc: first.Loc, Parts: []ast.Identifier{first}}
	for p.at(token.Dot) && p.peekKind(1) == token.Ident {
		p.advance()
		next := p.parseIdentifier()
		path.Parts = append(path.Parts, next)
		path.Loc = path.Loc.Union(next.Loc)
	}
	return path
}

func (p *Parser) parseContract(anns []ast.Annotation) ast.Item {
	doc := p.takeDoc()
	start := p.cur()
	kind := ast.KindContract
	switch start.Kind {
	case token.Abstract:
		p.advance()
		kind = ast.KindAbstract
		p.expect(token.Contract)
	case token.Interface:
		p.advance()
		kind = ast.KindInterface
	case token.Library:
		p.advance()
		kind = ast.KindLibrary
	default:
		p.advance()
	}

	def := &ast.ContractDefinition{
		Loc:         start.Loc,
		Kind:        kind,
		Name:        p.parseIdentifier(),
		Doc:         doc,
		Annotations: anns,
	}

	if _, ok := p.accept(token.Is); ok {
		for {
			base := ast.Base{Name: p.parseIdentifierPath()}
			base.Loc = base.Name.Loc
			if p.at(token.LParen) {
				base.Args = p.parseCallArgs()
			}
			def.Bases = append(def.Bases, base)
			if _, ok := p.accept(token.Comma); !ok {
				break
			}
		}
	}

	if _, ok := p.expect(token.LBrace); !ok {
		p.synchronize()
		return def
	}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		before := p.pos
		part := p.parseContractPart()
		if part != nil {
			def.Parts = append(def.Parts, part)
		}
		if p.pos == before {
			t := p.advance()
			p.errorf(t.Loc, "unexpected %s in %s body", describe(t), kind)
			p.synchronize()
		}
	}
	end, _ := p.expect(token.RBrace)
	def.Loc = def.Loc.Union(end.Loc)
	return def
}

func (p *Parser) parseContractPart() ast.Item {
	anns := p.parseAnnotations()
	switch p.cur().Kind {
	case token.Struct:
		return p.rejectAnnotations(anns, p.parseStruct())
	case token.Enum:
		return p.rejectAnnotations(anns, p.parseEnum())
	case token.Event:
		return p.rejectAnnotations(anns, p.parseEvent())
	case token.Error:
		if p.peekKind(1) == token.Ident {
			return p.rejectAnnotations(anns, p.parseErrorDef())
		}
	case token.Type:
		return p.rejectAnnotations(anns, p.parseUserType())
	case token.Using:
		return p.rejectAnnotations(anns, p.parseUsing())
	case token.Function:
		fn := p.parseFunction(ast.FnFunction)
		fn.Annotations = anns
		return fn
	case token.Constructor:
		fn := p.parseFunction(ast.FnConstructor)
		fn.Annotations = anns
		return fn
	case token.Fallback:
		fn := p.parseFunction(ast.FnFallback)
		fn.Annotations = anns
		return fn
	case token.Receive:
		fn := p.parseFunction(ast.FnReceive)
		fn.Annotations = anns
		return fn
	case token.Modifier:
		fn := p.parseFunction(ast.FnModifier)
		fn.Annotations = anns
		return fn
	}

	if v := p.tryParseVariable(); v != nil {
		v.Annotations = anns
		return v
	}
	if len(anns) > 0 {
		p.errorf(anns[0].Loc, "annotation '@%s' is not followed by a declaration", anns[0].Name.Name)
	}
	return nil
}

func (p *Parser) parseStruct() ast.Item {
	doc := p.takeDoc()
	start := p.advance() // struct
	def := &ast.StructDefinition{Loc: start.Loc, Name: p.parseIdentifier(), Doc: doc}
	if _, ok := p.expect(token.LBrace); !ok {
		p.synchronize()
		return def
	}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		ty := p.parseTypeName()
		if ty == nil {
			p.synchronize()
			continue
		}
		name := p.parseIdentifier()
		end, _ := p.expect(token.Semicolon)
		def.Fields = append(def.Fields, ast.StructField{
			Loc:  ty.ExprLoc().Union(end.Loc),
			Type: ty,
			Name: name,
		})
	}
	end, _ := p.expect(token.RBrace)
	def.Loc = def.Loc.Union(end.Loc)
	return def
}

func (p *Parser) parseEnum() ast.Item {
	doc := p.takeDoc()
	start := p.advance() // enum
	def := &ast.EnumDefinition{Loc: start.Loc, Name: p.parseIdentifier(), Doc: doc}
	if _, ok := p.expect(token.LBrace); !ok {
		p.synchronize()
		return def
	}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		def.Values = append(def.Values, p.parseIdentifier())
		if _, ok := p.accept(token.Comma); !ok {
			break
		}
	}
	end, _ := p.expect(token.RBrace)
	def.Loc = def.Loc.Union(end.Loc)
	return def
}

func (p *Parser) parseEvent() ast.Item {
	doc := p.takeDoc()
	start := p.advance() // event
	def := &ast.EventDefinition{Loc: start.Loc, Name: p.parseIdentifier(), Doc: doc}
	p.expect(token.LParen)
	for !p.at(token.RParen) && !p.at(token.EOF) {
		ty := p.parseTypeName()
		if ty == nil {
			p.synchronize()
			break
		}
		f := ast.EventField{Loc: ty.ExprLoc(), Type: ty}
		if _, ok := p.accept(token.Indexed); ok {
			f.Indexed = true
		}
		if p.atName() {
			f.Name = p.parseIdentifier()
			f.Loc = f.Loc.Union(f.Name.Loc)
		}
		def.Fields = append(def.Fields, f)
		if _, ok := p.accept(token.Comma); !ok {
			break
		}
	}
	p.expect(token.RParen)
	if _, ok := p.accept(token.Anonymous); ok {
		def.Anonymous = true
	}
	end, _ := p.expect(token.Semicolon)
	def.Loc = def.Loc.Union(end.Loc)
	return def
}

func (p *Parser) parseErrorDef() ast.Item {
	doc := p.takeDoc()
	start := p.advance() // error
	def := &ast.ErrorDefinition{Loc: start.Loc, Name: p.parseIdentifier(), Doc: doc}
	p.expect(token.LParen)
	for !p.at(token.RParen) && !p.at(token.EOF) {
		ty := p.parseTypeName()
		if ty == nil {
			p.synchronize()
			break
		}
		f := ast.ErrorField{Loc: ty.ExprLoc(), Type: ty}
		if p.atName() {
			f.Name = p.parseIdentifier()
			f.Loc = f.Loc.Union(f.Name.Loc)
		}
		def.Fields = append(def.Fields, f)
		if _, ok := p.accept(token.Comma); !ok {
			break
		}
	}
	p.expect(token.RParen)
	end, _ := p.expect(token.Semicolon)
	def.Loc = def.Loc.Union(end.Loc)
	return def
}

func (p *Parser) parseUserType() ast.Item {
	doc := p.takeDoc()
	start := p.advance() // type
	def := &ast.UserTypeDefinition{Loc: start.Loc, Name: p.parseIdentifier(), Doc: doc}
	p.expect(token.Is)
	def.Type = p.parseTypeName()
	end, _ := p.expect(token.Semicolon)
	def.Loc = def.Loc.Union(end.Loc)
	return def
}

func (p *Parser) parseUsing() ast.Item {
	p.takeDoc()
	start := p.advance() // using
	def := &ast.UsingDirective{Loc: start.Loc}
	if p.at(token.LBrace) {
		p.advance()
		for !p.at(token.RBrace) && !p.at(token.EOF) {
			def.List.Functions = append(def.List.Functions, p.parseIdentifierPath())
			if _, ok := p.accept(token.Comma); !ok {
				break
			}
		}
		p.expect(token.RBrace)
	} else {
		path := p.parseIdentifierPath()
		def.List.Library = &path
	}
	p.expect(token.For)
	if p.at(token.Mul) {
		p.advance()
	} else {
		def.Type = p.parseTypeName()
	}
	if _, ok := p.accept(token.Global); ok {
		def.Global = true
	}
	end, _ := p.expect(token.Semicolon)
	def.Loc = def.Loc.Union(end.Loc)
	return def
}

// tryParseVariable speculatively parses a state variable or file
// constant; nil is returned with the cursor unchanged when the tokens
// do not start one.
func (p *Parser) tryParseVariable() *ast.VariableDefinition {
	m := p.mark()
	doc := p.takeDoc()
	ty := p.parseTypeName()
	if ty == nil {
		p.reset(m)
		return nil
	}
	def := &ast.VariableDefinition{Loc: ty.ExprLoc(), Type: ty, Doc: doc}
	for {
		switch p.cur().Kind {
		case token.Public:
			p.advance()
			def.Visibility = ast.VisPublic
			continue
		case token.Private:
			p.advance()
			def.Visibility = ast.VisPrivate
			continue
		case token.Internal:
			p.advance()
			def.Visibility = ast.VisInternal
			continue
		case token.Constant:
			p.advance()
			def.Constant = true
			continue
		case token.Immutable:
			p.advance()
			def.Immutable = true
			continue
		case token.Override:
			def.Override = p.parseOverride()
			continue
		}
		break
	}
	if !p.atName() {
		p.reset(m)
		return nil
	}
	def.Name = p.parseIdentifier()
	if _, ok := p.accept(token.Assign); ok {
		def.Initializer = p.parseExpression()
	}
	end, ok := p.expect(token.Semicolon)
	if !ok {
		p.synchronize()
	}
	def.Loc = def.Loc.Union(end.Loc)
	return def
}

func (p *Parser) parseOverride() *ast.OverrideSpec {
	t := p.advance() // override
	spec := &ast.OverrideSpec{Loc: t.Loc}
	if p.at(token.LParen) {
		p.advance()
		for !p.at(token.RParen) && !p.at(token.EOF) {
			spec.Bases = append(spec.Bases, p.parseIdentifierPath())
			if _, ok := p.accept(token.Comma); !ok {
				break
			}
		}
		end, _ := p.expect(token.RParen)
		spec.Loc = spec.Loc.Union(end.Loc)
	}
	return spec
}

func (p *Parser) parseFunction(kind ast.FunctionKind) *ast.FunctionDefinition {
	doc := p.takeDoc()
	start := p.advance() // function/constructor/fallback/receive/modifier
	def := &ast.FunctionDefinition{Loc: start.Loc, Kind: kind, Doc: doc}

	if kind == ast.FnFunction || kind == ast.FnModifier {
		def.Name = p.parseIdentifier()
	}

	if kind != ast.FnModifier || p.at(token.LParen) {
		def.Params = p.parseParameterList()
	}

	// Attribute soup: order-insensitive per the grammar.
	for {
		switch p.cur().Kind {
		case token.Public:
			p.advance()
			def.Visibility = ast.VisPublic
			continue
		case token.Private:
			p.advance()
			def.Visibility = ast.VisPrivate
			continue
		case token.Internal:
			p.advance()
			def.Visibility = ast.VisInternal
			continue
		case token.External:
			p.advance()
			def.Visibility = ast.VisExternal
			continue
		case token.Pure:
			t := p.advance()
			def.Mutability, def.MutLoc = ast.MutPure, t.Loc
			continue
		case token.View:
			t := p.advance()
			def.Mutability, def.MutLoc = ast.MutView, t.Loc
			continue
		case token.Payable:
			t := p.advance()
			def.Mutability, def.MutLoc = ast.MutPayable, t.Loc
			continue
		case token.Virtual:
			p.advance()
			def.Virtual = true
			continue
		case token.Override:
			def.Override = p.parseOverride()
			continue
		case token.Returns:
			p.advance()
			def.Returns = p.parseParameterList()
			continue
		case token.Ident:
			def.Modifiers = append(def.Modifiers, p.parseModifierInvocation())
			continue
		}
		break
	}

	if p.at(token.LBrace) {
		def.Body = p.parseBlock(false)
		def.Loc = def.Loc.Union(def.Body.Loc)
	} else {
		end, _ := p.expect(token.Semicolon)
		def.Loc = def.Loc.Union(end.Loc)
	}
	return def
}

func (p *Parser) parseModifierInvocation() ast.ModifierInvocation {
	path := p.parseIdentifierPath()
	inv := ast.ModifierInvocation{Loc: path.Loc, Name: path}
	if p.at(token.LParen) {
		inv.Args = p.parseCallArgs()
		if inv.Args == nil {
			inv.Args = []ast.Expression{}
		}
	}
	return inv
}

func (p *Parser) parseParameterList() []ast.Parameter {
	p.expect(token.LParen)
	var params []ast.Parameter
	for !p.at(token.RParen) && !p.at(token.EOF) {
		anns := p.parseAnnotations()
		ty := p.parseTypeName()
		if ty == nil {
			p.synchronize()
			break
		}
		param := ast.Parameter{Loc: ty.ExprLoc(), Type: ty, Annotations: anns}
		switch p.cur().Kind {
		case token.Memory:
			p.advance()
			param.Storage = ast.LocationMemory
		case token.Storage:
			p.advance()
			param.Storage = ast.LocationStorage
		case token.Calldata:
			p.advance()
			param.Storage = ast.LocationCalldata
		}
		if p.atName() {
			param.Name = p.parseIdentifier()
			param.Loc = param.Loc.Union(param.Name.Loc)
		}
		params = append(params, param)
		if _, ok := p.accept(token.Comma); !ok {
			break
		}
	}
	p.expect(token.RParen)
	return params
}
