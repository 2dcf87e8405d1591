package reader

import (
	"fmt"

	"github.com/schemecore/sch/internal/span"
)

// Kind classifies a parse error, mirroring spec §7's ParseError taxonomy.
type Kind int

const (
	UnexpectedRParen Kind = iota
	UnexpectedDot
	UnexpectedEof
	InvalidAtom
)

func (k Kind) String() string {
	switch k {
	case UnexpectedRParen:
		return "UnexpectedRParen"
	case UnexpectedDot:
		return "UnexpectedDot"
	case UnexpectedEof:
		return "UnexpectedEof"
	case InvalidAtom:
		return "InvalidAtom"
	default:
		return "Unknown"
	}
}

// Error is the tagged error the reader returns for structural failures.
// Soft end-of-input mid-form is not an Error at all — see Parser.Parse.
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

// errIncomplete is an internal sentinel, never returned to callers: it
// tells Parser.Parse to roll back and report "no complete expression
// yet" rather than a hard error.
var errIncomplete = fmt.Errorf("reader: incomplete form")
