// Package diagnostics renders the caret-annotated error frame described
// in spec §4.5, independent of the lexer, reader, and evaluator so a
// host can reuse it for any error that carries a span. The three-line
// layout (line before, offending line, caret line) is grounded on
// flosch-pongo2's error.go (Error.RawLine / the file+line+column
// rendering it builds for template errors), generalized from pongo2's
// single-line convenience into the full three-line frame spec §4.5
// requires, and cross-checked against the Position/Error plumbing in
// cuelang.org/go/cue/errors for the shape of a span-carrying Error
// interface reused across error taxonomies.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/schemecore/sch/internal/span"
)

// Spanned is implemented by every error taxonomy in this module
// (lexer.Error, reader.Error, eval.Error): it carries the span of the
// offending text. Render accepts this interface directly so any of
// them can be framed without a type switch at the call site.
type Spanned interface {
	error
	SpanOf() span.Span
}

// Frame renders the three-line caret frame for a span against source:
// the line before the span (if any), the line the span starts on, and
// a caret line with '^' repeated for the span's length, indented under
// its column. Column and length are both interpreted as already
// counting display cells (the lexer widens both for East Asian wide
// runes), so plain ASCII padding keeps the caret aligned.
func Frame(source string, sp span.Span) string {
	lines := strings.Split(source, "\n")
	var b strings.Builder

	if sp.Line >= 2 {
		if idx := int(sp.Line) - 2; idx >= 0 && idx < len(lines) {
			fmt.Fprintf(&b, "%s\n", lines[idx])
		}
	}
	if idx := int(sp.Line) - 1; idx >= 0 && idx < len(lines) {
		fmt.Fprintf(&b, "%s\n", lines[idx])
	}

	col := int(sp.Column)
	if col < 1 {
		col = 1
	}
	length := int(sp.Length)
	if length < 1 {
		length = 1
	}
	fmt.Fprintf(&b, "%s%s\n", strings.Repeat(" ", col-1), strings.Repeat("^", length))

	return b.String()
}

// Render formats err's message followed by its caret frame against
// source, the form most hosts want for printing a single diagnostic.
func Render(source string, err Spanned) string {
	return fmt.Sprintf("%s\n%s", err.Error(), Frame(source, err.SpanOf()))
}
