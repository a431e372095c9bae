// Package token defines the lexical vocabulary of the language and the
// scanner that turns file text into a token stream. Doc comments are
// kept as their own token kind so the parser can attach them to the
// following declaration.
package token

import "github.com/standardbeagle/solis/internal/diag"

// Kind identifies a lexical token class.
type Kind int

const (
	Illegal Kind = iota
	EOF

	Ident
	Number         // decimal integer literal, underscores stripped lazily
	HexNumber      // 0x… literal
	RationalNumber // decimal point and/or exponent
	StringLit      // "…" or '…', escapes undone
	UnicodeStringLit
	HexLit     // hex"…"
	AddressLit // address"…"
	DocComment // /// or /** … */ contents

	Annotation // @name, the name only

	// Keywords.
	kwStart
	Abstract
	Anonymous
	As
	Break
	Calldata
	Case
	Catch
	Constant
	Constructor
	Continue
	Contract
	Default
	Delete
	Do
	Else
	Emit
	Enum
	Error
	Event
	External
	Fallback
	For
	From
	Function
	Global
	If
	Immutable
	Import
	Indexed
	Interface
	Internal
	Is
	Library
	Mapping
	Memory
	Modifier
	New
	Override
	Payable
	Pragma
	Private
	Public
	Pure
	Receive
	Return
	Returns
	Storage
	Struct
	Switch
	Try
	Type
	Unchecked
	Using
	View
	Virtual
	While
	kwEnd

	// Punctuation and operators.
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semicolon
	Comma
	Dot
	Question
	Colon
	Arrow // =>

	Assign
	AddAssign
	SubAssign
	MulAssign
	DivAssign
	ModAssign
	ShlAssign
	ShrAssign
	AndAssign
	OrAssign
	XorAssign

	Add
	Sub
	Mul
	Div
	Mod
	Power // **
	Shl
	Shr
	BitAnd
	BitOr
	BitXor
	BitNot
	Not
	And // &&
	Or  // ||
	Lt
	Le
	Gt
	Ge
	Eq
	Ne
	Inc
	Dec
)

var kindNames = map[Kind]string{
	Illegal: "illegal", EOF: "end of file", Ident: "identifier",
	Number: "number", HexNumber: "hex number", RationalNumber: "rational number",
	StringLit: "string", UnicodeStringLit: "unicode string", HexLit: "hex string",
	AddressLit: "address literal", DocComment: "doc comment", Annotation: "annotation",

	Abstract: "abstract", Anonymous: "anonymous", As: "as", Break: "break",
	Calldata: "calldata", Case: "case", Catch: "catch", Constant: "constant",
	Constructor: "constructor", Continue: "continue", Contract: "contract",
	Default: "default", Delete: "delete", Do: "do", Else: "else", Emit: "emit",
	Enum: "enum", Error: "error", Event: "event", External: "external",
	Fallback: "fallback", For: "for", From: "from", Function: "function",
	Global: "global", If: "if", Immutable: "immutable", Import: "import",
	Indexed: "indexed", Interface: "interface", Internal: "internal", Is: "is",
	Library: "library", Mapping: "mapping", Memory: "memory", Modifier: "modifier",
	New: "new", Override: "override", Payable: "payable", Pragma: "pragma",
	Private: "private", Public: "public", Pure: "pure", Receive: "receive",
	Return: "return", Returns: "returns", Storage: "storage", Struct: "struct",
	Switch: "switch", Try: "try", Type: "type", Unchecked: "unchecked",
	Using: "using", View: "view", Virtual: "virtual", While: "while",

	LParen: "'('", RParen: "')'", LBrace: "'{'", RBrace: "'}'",
	LBracket: "'['", RBracket: "']'", Semicolon: "';'", Comma: "','",
	Dot: "'.'", Question: "'?'", Colon: "':'", Arrow: "'=>'",

	Assign: "'='", AddAssign: "'+='", SubAssign: "'-='", MulAssign: "'*='",
	DivAssign: "'/='", ModAssign: "'%='", ShlAssign: "'<<='", ShrAssign: "'>>='",
	AndAssign: "'&='", OrAssign: "'|='", XorAssign: "'^='",

	Add: "'+'", Sub: "'-'", Mul: "'*'", Div: "'/'", Mod: "'%'", Power: "'**'",
	Shl: "'<<'", Shr: "'>>'", BitAnd: "'&'", BitOr: "'|'", BitXor: "'^'",
	BitNot: "'~'", Not: "'!'", And: "'&&'", Or: "'||'",
	Lt: "'<'", Le: "'<='", Gt: "'>'", Ge: "'>='", Eq: "'=='", Ne: "'!='",
	Inc: "'++'", Dec: "'--'",
}

// String returns a human-readable name for diagnostics.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "token"
}

// IsKeyword reports whether the kind is a reserved word.
func (k Kind) IsKeyword() bool { return k > kwStart && k < kwEnd }

var keywords = map[string]Kind{
	"abstract": Abstract, "anonymous": Anonymous, "as": As, "break": Break,
	"calldata": Calldata, "case": Case, "catch": Catch, "constant": Constant,
	"constructor": Constructor, "continue": Continue, "contract": Contract,
	"default": Default, "delete": Delete, "do": Do, "else": Else, "emit": Emit,
	"enum": Enum, "error": Error, "event": Event, "external": External,
	"fallback": Fallback, "for": For, "from": From, "function": Function,
	"global": Global, "if": If, "immutable": Immutable, "import": Import,
	"indexed": Indexed, "interface": Interface, "internal": Internal, "is": Is,
	"library": Library, "mapping": Mapping, "memory": Memory, "modifier": Modifier,
	"new": New, "override": Override, "payable": Payable, "pragma": Pragma,
	"private": Private, "public": Public, "pure": Pure, "receive": Receive,
	"return": Return, "returns": Returns, "storage": Storage, "struct": Struct,
	"switch": Switch, "try": Try, "type": Type, "unchecked": Unchecked,
	"using": Using, "view": View, "virtual": Virtual, "while": While,
}

// Lookup maps an identifier to its keyword kind, or Ident.
func Lookup(name string) Kind {
	if k, ok := keywords[name]; ok {
		return k
	}
	return Ident
}

// Token is one lexeme with its source range. Text carries the raw
// literal text for numbers (so later stages interpret them with full
// precision) and the decoded value for strings.
type Token struct {
	Kind Kind
	Loc  diag.Loc
	Text string
}
