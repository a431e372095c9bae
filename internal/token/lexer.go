package token

import (
	"strings"
	"unicode/utf8"

	"github.com/standardbeagle/solis/internal/diag"
)

// Lexer scans one file's text. Non-UTF-8 input is a fatal diagnostic;
// every other problem is recoverable and scanning continues.
type Lexer struct {
	fileNo int
	src    string
	pos    int
	diags  []diag.Diagnostic
	fatal  bool
}

// Scan tokenizes text for file fileNo. The returned slice always ends
// with an EOF token unless a fatal diagnostic was produced.
func Scan(fileNo int, text string) ([]Token, []diag.Diagnostic) {
	l := &Lexer{fileNo: fileNo, src: text}
	if !utf8.ValidString(text) {
		l.errorAt(0, len(text), "source file is not valid UTF-8")
		l.fatal = true
		l.diags[len(l.diags)-1].Level = diag.LevelFatal
		return nil, l.diags
	}
	var toks []Token
	for {
		t := l.next()
		toks = append(toks, t)
		if t.Kind == EOF {
			break
		}
	}
	return toks, l.diags
}

func (l *Lexer) loc(start, end int) diag.Loc {
	return diag.NewLoc(l.fileNo, start, end)
}

func (l *Lexer) errorAt(start, end int, format string, args ...any) {
	l.diags = append(l.diags, diag.Error(l.loc(start, end), format, args...))
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func (l *Lexer) next() Token {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return Token{Kind: EOF, Loc: l.loc(len(l.src), len(l.src))}
		}
		start := l.pos
		c := l.src[l.pos]

		switch {
		case c == '/' && l.peekAt(1) == '/':
			if l.peekAt(2) == '/' && l.peekAt(3) != '/' {
				return l.lineDocComment()
			}
			l.skipLineComment()
			continue
		case c == '/' && l.peekAt(1) == '*':
			if l.peekAt(2) == '*' && l.peekAt(3) != '*' && l.peekAt(3) != '/' {
				return l.blockDocComment()
			}
			l.skipBlockComment()
			continue
		case isDigit(c):
			return l.number()
		case c == '.' && isDigit(l.peekAt(1)):
			return l.number()
		case c == '"' || c == '\'':
			return l.stringLit(StringLit, c)
		case isIdentStart(c):
			return l.identOrKeyword()
		case c == '@':
			return l.annotation()
		}

		if t, ok := l.operator(); ok {
			return t
		}

		l.pos++
		l.errorAt(start, l.pos, "unexpected character %q", string(rune(c)))
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\r', '\n', '\v', '\f':
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.pos++
	}
}

func (l *Lexer) skipBlockComment() {
	start := l.pos
	l.pos += 2
	for l.pos < len(l.src) {
		if l.src[l.pos] == '*' && l.peekAt(1) == '/' {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.errorAt(start, l.pos, "unterminated block comment")
}

func (l *Lexer) lineDocComment() Token {
	start := l.pos
	l.pos += 3
	textStart := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.pos++
	}
	return Token{Kind: DocComment, Loc: l.loc(start, l.pos),
		Text: strings.TrimSpace(l.src[textStart:l.pos])}
}

func (l *Lexer) blockDocComment() Token {
	start := l.pos
	l.pos += 3
	textStart := l.pos
	for l.pos < len(l.src) {
		if l.src[l.pos] == '*' && l.peekAt(1) == '/' {
			text := cleanBlockDoc(l.src[textStart:l.pos])
			l.pos += 2
			return Token{Kind: DocComment, Loc: l.loc(start, l.pos), Text: text}
		}
		l.pos++
	}
	l.errorAt(start, l.pos, "unterminated block comment")
	return Token{Kind: DocComment, Loc: l.loc(start, l.pos),
		Text: cleanBlockDoc(l.src[textStart:l.pos])}
}

// cleanBlockDoc strips the conventional leading asterisks from each
// line of a /** … */ comment body.
func cleanBlockDoc(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "*")
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (l *Lexer) number() Token {
	start := l.pos
	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		l.pos += 2
		digits := 0
		for isHexDigit(l.peek()) || l.peek() == '_' {
			if l.peek() != '_' {
				digits++
			}
			l.pos++
		}
		if digits == 0 {
			l.errorAt(start, l.pos, "missing digits in hex number")
		}
		return Token{Kind: HexNumber, Loc: l.loc(start, l.pos), Text: l.src[start:l.pos]}
	}

	rational := false
	for isDigit(l.peek()) || l.peek() == '_' {
		l.pos++
	}
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		rational = true
		l.pos++
		for isDigit(l.peek()) || l.peek() == '_' {
			l.pos++
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		save := l.pos
		l.pos++
		if l.peek() == '-' {
			rational = true
			l.pos++
		} else if l.peek() == '+' {
			l.pos++
		}
		if !isDigit(l.peek()) {
			l.pos = save
		} else {
			// Exponent literals are scanned as rationals; folding
			// narrows integral values back to integers.
			rational = true
			for isDigit(l.peek()) || l.peek() == '_' {
				l.pos++
			}
		}
	}
	kind := Number
	if rational {
		kind = RationalNumber
	}
	return Token{Kind: kind, Loc: l.loc(start, l.pos), Text: l.src[start:l.pos]}
}

func (l *Lexer) identOrKeyword() Token {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	word := l.src[start:l.pos]

	// String-literal prefixes.
	if l.peek() == '"' || l.peek() == '\'' {
		switch word {
		case "hex":
			return l.hexLit(start)
		case "address":
			return l.prefixedString(start, AddressLit)
		case "unicode":
			return l.prefixedString(start, UnicodeStringLit)
		}
	}

	kind := Lookup(word)
	return Token{Kind: kind, Loc: l.loc(start, l.pos), Text: word}
}

func (l *Lexer) annotation() Token {
	start := l.pos
	l.pos++
	nameStart := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	if l.pos == nameStart {
		l.errorAt(start, l.pos, "annotation name expected after '@'")
	}
	return Token{Kind: Annotation, Loc: l.loc(start, l.pos), Text: l.src[nameStart:l.pos]}
}

func (l *Lexer) hexLit(start int) Token {
	quote := l.src[l.pos]
	l.pos++
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) || l.src[l.pos] == '\n' {
			l.errorAt(start, l.pos, "unterminated hex string")
			break
		}
		c := l.src[l.pos]
		if c == quote {
			l.pos++
			break
		}
		if c != '_' {
			if !isHexDigit(c) {
				l.errorAt(l.pos, l.pos+1, "invalid character %q in hex string", string(rune(c)))
			} else {
				sb.WriteByte(c)
			}
		}
		l.pos++
	}
	if sb.Len()%2 != 0 {
		l.errorAt(start, l.pos, "hex string length must be even")
	}
	return Token{Kind: HexLit, Loc: l.loc(start, l.pos), Text: sb.String()}
}

func (l *Lexer) prefixedString(start int, kind Kind) Token {
	t := l.stringLit(kind, l.src[l.pos])
	t.Loc = l.loc(start, t.Loc.End)
	return t
}

func (l *Lexer) stringLit(kind Kind, quote byte) Token {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) || l.src[l.pos] == '\n' {
			l.errorAt(start, l.pos, "unterminated string literal")
			break
		}
		c := l.src[l.pos]
		if c == quote {
			l.pos++
			break
		}
		if c == '\\' {
			l.escape(&sb)
			continue
		}
		sb.WriteByte(c)
		l.pos++
	}
	return Token{Kind: kind, Loc: l.loc(start, l.pos), Text: sb.String()}
}

func (l *Lexer) escape(sb *strings.Builder) {
	escStart := l.pos
	l.pos++
	if l.pos >= len(l.src) {
		l.errorAt(escStart, l.pos, "unterminated escape sequence")
		return
	}
	c := l.src[l.pos]
	l.pos++
	switch c {
	case 'n':
		sb.WriteByte('\n')
	case 'r':
		sb.WriteByte('\r')
	case 't':
		sb.WriteByte('\t')
	case '0':
		sb.WriteByte(0)
	case '\\', '\'', '"':
		sb.WriteByte(c)
	case 'x':
		sb.WriteByte(byte(l.hexDigits(escStart, 2)))
	case 'u':
		sb.WriteRune(rune(l.hexDigits(escStart, 4)))
	default:
		l.errorAt(escStart, l.pos, "unknown escape sequence '\\%s'", string(rune(c)))
	}
}

func (l *Lexer) hexDigits(escStart, n int) int {
	v := 0
	for i := 0; i < n; i++ {
		c := l.peek()
		if !isHexDigit(c) {
			l.errorAt(escStart, l.pos, "expected %d hex digits in escape sequence", n)
			return v
		}
		v = v*16 + hexVal(c)
		l.pos++
	}
	return v
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}

// operator table, longest match first per leading byte.
var operators = []struct {
	text string
	kind Kind
}{
	{"<<=", ShlAssign}, {">>=", ShrAssign},
	{"**", Power}, {"<<", Shl}, {">>", Shr},
	{"+=", AddAssign}, {"-=", SubAssign}, {"*=", MulAssign}, {"/=", DivAssign},
	{"%=", ModAssign}, {"&=", AndAssign}, {"|=", OrAssign}, {"^=", XorAssign},
	{"==", Eq}, {"!=", Ne}, {"<=", Le}, {">=", Ge},
	{"&&", And}, {"||", Or}, {"++", Inc}, {"--", Dec}, {"=>", Arrow},
	{"(", LParen}, {")", RParen}, {"{", LBrace}, {"}", RBrace},
	{"[", LBracket}, {"]", RBracket}, {";", Semicolon}, {",", Comma},
	{".", Dot}, {"?", Question}, {":", Colon},
	{"=", Assign}, {"+", Add}, {"-", Sub}, {"*", Mul}, {"/", Div}, {"%", Mod},
	{"&", BitAnd}, {"|", BitOr}, {"^", BitXor}, {"~", BitNot}, {"!", Not},
	{"<", Lt}, {">", Gt},
}

func (l *Lexer) operator() (Token, bool) {
	rest := l.src[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			start := l.pos
			l.pos += len(op.text)
			return Token{Kind: op.kind, Loc: l.loc(start, l.pos), Text: op.text}, true
		}
	}
	return Token{}, false
}
