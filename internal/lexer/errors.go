package lexer

import (
	"fmt"

	"github.com/schemecore/sch/internal/span"
)

// Kind classifies a lexical error, mirroring spec §7's LexError taxonomy.
type Kind int

const (
	UnterminatedString Kind = iota
	InvalidNumber
	InvalidHash
	UnexpectedChar
)

func (k Kind) String() string {
	switch k {
	case UnterminatedString:
		return "UnterminatedString"
	case InvalidNumber:
		return "InvalidNumber"
	case InvalidHash:
		return "InvalidHash"
	case UnexpectedChar:
		return "UnexpectedChar"
	default:
		return "Unknown"
	}
}

// Error is the tagged error the lexer returns: a Kind, a human-readable
// message, and the span of the offending text (for UnterminatedString
// this is the span of the opening quote, per spec §4.1).
type Error struct {
	Kind Kind
	Msg  string
	Span span.Span
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// SpanOf satisfies diagnostics.Spanned.
func (e *Error) SpanOf() span.Span {
	return e.Span
}
