package lexer_test

import (
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/google/gofuzz"

	"github.com/schemecore/sch/internal/lexer"
	"github.com/schemecore/sch/internal/token"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeBasic(t *testing.T) {
	toks, err := lexer.Tokenize(`(+ 1 2.5 "hi\n" #t 'x)`, 0)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(kinds(toks), []token.Kind{
		token.LParen, token.Symbol, token.Integer, token.Float, token.String,
		token.Boolean, token.Quote, token.Symbol, token.RParen,
	}))
}

func TestTokenizeSignedSymbols(t *testing.T) {
	toks, err := lexer.Tokenize(`(+ - <= %)`, 0)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(kinds(toks), []token.Kind{
		token.LParen, token.Symbol, token.Symbol, token.Symbol, token.Symbol, token.RParen,
	}))
}

func TestTokenizeDottedPair(t *testing.T) {
	toks, err := lexer.Tokenize(`(a . b)`, 0)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(kinds(toks), []token.Kind{
		token.LParen, token.Symbol, token.Dot, token.Symbol, token.RParen,
	}))
}

func TestTokenizeComment(t *testing.T) {
	toks, err := lexer.Tokenize("1 ; trailing comment\n2", 0)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(kinds(toks), []token.Kind{token.Integer, token.Integer}))
}

func TestUnterminatedString(t *testing.T) {
	_, err := lexer.Tokenize(`"unterminated`, 0)
	qt.Assert(t, qt.Not(qt.IsNil(err)))
	lexErr, ok := err.(*lexer.Error)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(lexErr.Kind, lexer.UnterminatedString))
}

func TestInvalidHash(t *testing.T) {
	_, err := lexer.Tokenize(`#z`, 0)
	lexErr, ok := err.(*lexer.Error)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(lexErr.Kind, lexer.InvalidHash))
}

// TestSpanCoversFullToken checks spec §4.1's "spans span the full token
// including quotes/sign" rule for a signed-number token.
func TestSpanCoversFullToken(t *testing.T) {
	toks, err := lexer.Tokenize(`-42`, 0)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(toks, 1))
	qt.Assert(t, qt.Equals(toks[0].Span.Length, uint32(3)))
}

// TestRoundTripFuzz is spec §8 invariant 1: re-tokenizing the rendered
// literal form of a random token sequence of atoms reproduces the same
// kind sequence.
func TestRoundTripFuzz(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(1, 8)
	var symbolNames []string
	f.Fuzz(&symbolNames)

	for _, name := range symbolNames {
		if name == "" {
			continue
		}
		clean := sanitizeSymbol(name)
		if clean == "" {
			continue
		}
		src := "(" + clean + " " + clean + ")"
		toks1, err := lexer.Tokenize(src, 0)
		qt.Assert(t, qt.IsNil(err))
		lits := make([]string, len(toks1))
		for i, tok := range toks1 {
			lits[i] = tok.Lit
		}
		toks2, err := lexer.Tokenize(strings.Join(lits, " "), 0)
		qt.Assert(t, qt.IsNil(err))
		qt.Assert(t, qt.DeepEquals(kinds(toks1), kinds(toks2)))
	}
}

func sanitizeSymbol(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '(', ')', '"', ';', '\'', '`', ',', '.',
			'#', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
