// Package token defines the lexical token kinds produced by the lexer and
// consumed by the reader (parser), following the same
// kind-enum-plus-literal shape CUE's cue/token package uses for its own
// scanner/parser boundary.
package token

import "github.com/schemecore/sch/internal/span"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	Illegal Kind = iota
	EOF

	LParen   // (
	RParen   // )
	Quote    // '
	Backquote
	Comma     // ,
	CommaAt   // ,@
	Dot       // .

	Integer
	Float
	String
	Symbol
	Boolean
)

var kindNames = [...]string{
	Illegal:   "ILLEGAL",
	EOF:       "EOF",
	LParen:    "(",
	RParen:    ")",
	Quote:     "'",
	Backquote: "`",
	Comma:     ",",
	CommaAt:   ",@",
	Dot:       ".",
	Integer:   "INTEGER",
	Float:     "FLOAT",
	String:    "STRING",
	Symbol:    "SYMBOL",
	Boolean:   "BOOLEAN",
}

// String returns the kind's canonical name, used in diagnostics and
// test failure messages.
func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "UNKNOWN"
	}
	if s := kindNames[k]; s != "" {
		return s
	}
	return "UNKNOWN"
}

// Token is one lexed unit: its kind, its literal text, and the span it
// occupies. Lit is the source text as written for every kind except
// String, whose Lit is the decoded contents: the lexer strips the
// surrounding quotes and decodes escapes, and the reader uses Lit as is.
type Token struct {
	Kind Kind
	Lit  string
	Span span.Span
}
