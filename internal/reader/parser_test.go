package reader_test

import (
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/google/go-cmp/cmp"
	"github.com/kr/pretty"

	"github.com/schemecore/sch/heap"
	"github.com/schemecore/sch/internal/lexer"
	"github.com/schemecore/sch/internal/reader"
	"github.com/schemecore/sch/value"
)

func parseOne(t *testing.T, src string) value.Value {
	t.Helper()
	toks, err := lexer.Tokenize(src, 0)
	qt.Assert(t, qt.IsNil(err))
	p := reader.New(heap.NewArena())
	p.PushTokens(toks)
	expr, ok, err := p.Parse()
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(ok))
	return expr
}

func mustSlice(v value.Value) []value.Value {
	var out []value.Value
	for {
		c, ok := v.(*value.Cons)
		if !ok {
			return out
		}
		out = append(out, c.Car)
		v = c.Cdr
	}
}

func symName(v value.Value) string {
	s, ok := v.(*value.Symbol)
	if !ok {
		return ""
	}
	return s.Name
}

func TestParseQuote(t *testing.T) {
	expr := parseOne(t, `'x`)
	elems := mustSlice(expr)
	qt.Assert(t, qt.HasLen(elems, 2))
	qt.Assert(t, qt.Equals(symName(elems[0]), "quote"))
	qt.Assert(t, qt.Equals(symName(elems[1]), "x"))
}

func TestParseQuasiquoteFamily(t *testing.T) {
	cases := map[string]string{
		"`x":  "quasiquote",
		",x":  "unquote",
		",@x": "unquote-splicing",
	}
	for src, want := range cases {
		expr := parseOne(t, src)
		elems := mustSlice(expr)
		qt.Assert(t, qt.Equals(symName(elems[0]), want))
	}
}

func TestParseDottedPair(t *testing.T) {
	expr := parseOne(t, `(a . b)`)
	c, ok := expr.(*value.Cons)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(symName(c.Car), "a"))
	qt.Assert(t, qt.Equals(symName(c.Cdr), "b"))
}

// TestIncompletePrefixDoesNotConsume is spec §8 invariant 2: a prefix
// missing its closing paren reports (nil, false, nil) without consuming
// any tokens, so the caller can push more and retry.
func TestIncompletePrefixDoesNotConsume(t *testing.T) {
	toks, err := lexer.Tokenize(`(+ 1 2`, 0)
	qt.Assert(t, qt.IsNil(err))
	p := reader.New(heap.NewArena())
	p.PushTokens(toks)

	_, ok, err := p.Parse()
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsFalse(ok))

	more, err := lexer.Tokenize(` 3)`, 0)
	qt.Assert(t, qt.IsNil(err))
	p.PushTokens(more)

	expr, ok, err := p.Parse()
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(ok))
	elems := mustSlice(expr)
	qt.Assert(t, qt.HasLen(elems, 4))
}

func TestUnexpectedRParen(t *testing.T) {
	toks, err := lexer.Tokenize(`)`, 0)
	qt.Assert(t, qt.IsNil(err))
	p := reader.New(heap.NewArena())
	p.PushTokens(toks)
	_, _, err = p.Parse()
	rerr, ok := err.(*reader.Error)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(rerr.Kind, reader.UnexpectedRParen))
}

// tree turns an expression into a plain Go value comparable with cmp.Diff,
// since *value.Cons/*value.Symbol pointers have no useful == semantics.
func tree(v value.Value) any {
	switch x := v.(type) {
	case *value.Symbol:
		return x.Name
	case value.Integer:
		return int64(x)
	case *value.Cons:
		var out []any
		var cur value.Value = x
		for {
			c, ok := cur.(*value.Cons)
			if !ok {
				if value.IsNil(cur) {
					return out
				}
				return append(out, ".", tree(cur))
			}
			out = append(out, tree(c.Car))
			cur = c.Cdr
		}
	default:
		if value.IsNil(v) {
			return []any{}
		}
		return v
	}
}

// TestParseNestedListShape exercises a multi-level list/quote/dotted-pair
// mix and diffs the full tree shape rather than picking it apart field by
// field, printing the parsed tree on mismatch.
func TestParseNestedListShape(t *testing.T) {
	expr := parseOne(t, `(define (f x . rest) '(a (b . c)))`)
	got := tree(expr)
	want := []any{
		"define",
		[]any{"f", "x", ".", "rest"},
		[]any{"quote", []any{"a", []any{"b", ".", "c"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parsed tree mismatch (-want +got):\n%s\nfull tree: %s", diff, pretty.Sprint(got))
	}
}

func TestParseFinalHardEof(t *testing.T) {
	toks, err := lexer.Tokenize(`(a b`, 0)
	qt.Assert(t, qt.IsNil(err))
	p := reader.New(heap.NewArena())
	p.PushTokens(toks)
	_, err = p.ParseFinal()
	rerr, ok := err.(*reader.Error)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(rerr.Kind, reader.UnexpectedEof))
}
