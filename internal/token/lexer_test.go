package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/solis/internal/diag"
)

func kinds(toks []Token) []Kind {
	out := make([]Kind, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.Kind)
	}
	return out
}

func TestScanIdentifiersAndKeywords(t *testing.T) {
	toks, diags := Scan(0, "contract Flipper is Base { function flip() public virtual; }")
	require.Empty(t, diags)
	assert.Equal(t, []Kind{
		Contract, Ident, Is, Ident, LBrace, Function, Ident, LParen, RParen,
		Public, Virtual, Semicolon, RBrace, EOF,
	}, kinds(toks))
	assert.Equal(t, "Flipper", toks[1].Text)
}

func TestScanNumbers(t *testing.T) {
	tests := []struct {
		src  string
		kind Kind
		text string
	}{
		{"0", Number, "0"},
		{"123_456", Number, "123_456"},
		{"0x1234_abcd", HexNumber, "0x1234_abcd"},
		{"3.14", RationalNumber, "3.14"},
		{"1e6", RationalNumber, "1e6"},
		{"2.5e-3", RationalNumber, "2.5e-3"},
		{"1E2", RationalNumber, "1E2"},
	}
	for _, tt := range tests {
		toks, diags := Scan(0, tt.src)
		require.Empty(t, diags, "src %q", tt.src)
		require.Len(t, toks, 2, "src %q", tt.src)
		assert.Equal(t, tt.kind, toks[0].Kind, "src %q", tt.src)
		assert.Equal(t, tt.text, toks[0].Text, "src %q", tt.src)
	}
}

func TestScanStrings(t *testing.T) {
	toks, diags := Scan(0, `"hello\n" 'single' unicode"héllo" hex"DEAD_beef" address"11111111111111111111111111111111"`)
	require.Empty(t, diags)
	assert.Equal(t, []Kind{StringLit, StringLit, UnicodeStringLit, HexLit, AddressLit, EOF}, kinds(toks))
	assert.Equal(t, "hello\n", toks[0].Text)
	assert.Equal(t, "single", toks[1].Text)
	assert.Equal(t, "héllo", toks[2].Text)
	assert.Equal(t, "DEADbeef", toks[3].Text)
}

func TestScanOddLengthHexString(t *testing.T) {
	_, diags := Scan(0, `hex"abc"`)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "even")
}

func TestScanDocComments(t *testing.T) {
	src := "/// line doc\n/** block\n * doc */\ncontract C {}"
	toks, diags := Scan(0, src)
	require.Empty(t, diags)
	require.Equal(t, DocComment, toks[0].Kind)
	assert.Equal(t, "line doc", toks[0].Text)
	require.Equal(t, DocComment, toks[1].Kind)
	assert.Equal(t, "block\ndoc", toks[1].Text)
	assert.Equal(t, Contract, toks[2].Kind)
}

func TestScanPlainCommentsStripped(t *testing.T) {
	toks, diags := Scan(0, "a // comment\n/* block */ b")
	require.Empty(t, diags)
	assert.Equal(t, []Kind{Ident, Ident, EOF}, kinds(toks))
}

func TestScanAnnotations(t *testing.T) {
	toks, diags := Scan(0, `@payer(acc) @selector`)
	require.Empty(t, diags)
	assert.Equal(t, Annotation, toks[0].Kind)
	assert.Equal(t, "payer", toks[0].Text)
	assert.Equal(t, []Kind{Annotation, LParen, Ident, RParen, Annotation, EOF}, kinds(toks))
}

func TestScanOperators(t *testing.T) {
	toks, diags := Scan(0, "a <<= b >> c ** d != e => f")
	require.Empty(t, diags)
	assert.Equal(t, []Kind{
		Ident, ShlAssign, Ident, Shr, Ident, Power, Ident, Ne, Ident, Arrow, Ident, EOF,
	}, kinds(toks))
}

func TestScanInvalidUTF8IsFatal(t *testing.T) {
	toks, diags := Scan(0, "contract \xff C {}")
	assert.Nil(t, toks)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.LevelFatal, diags[0].Level)
}

func TestScanLocOffsets(t *testing.T) {
	src := "contract Foo"
	toks, _ := Scan(0, src)
	require.Len(t, toks, 3)
	assert.Equal(t, 0, toks[0].Loc.Start)
	assert.Equal(t, 8, toks[0].Loc.End)
	assert.Equal(t, 9, toks[1].Loc.Start)
	assert.Equal(t, 12, toks[1].Loc.End)
	assert.Equal(t, src[toks[1].Loc.Start:toks[1].Loc.End], "Foo")
}

func TestScanUnterminatedString(t *testing.T) {
	_, diags := Scan(0, "\"abc\nx")
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "unterminated string")
}
