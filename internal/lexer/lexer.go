// Package lexer turns source text into a flat stream of spanned tokens,
// the first stage of the pipeline described in spec §4.1. It is grounded
// on cuelang.org/go/cue/scanner's Scanner: a byte-oriented cursor with a
// one-rune lookahead (next/ch/offset/rdOffset), a goto-free number
// scanner, and an escape scanner for string literals. Unlike CUE's
// scanner, which reports errors through a callback and keeps scanning to
// recover, ours returns the first error immediately: spec §4.1 treats an
// unterminated string as a hard failure, not a diagnostic to collect
// alongside others.
package lexer

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"

	"github.com/schemecore/sch/internal/span"
	"github.com/schemecore/sch/internal/token"
)

const eof = -1

// Lexer scans one source buffer into tokens. It holds no state beyond a
// single scan, matching spec §4.1's "the lexer is pure" requirement: a
// host constructs a fresh Lexer (or calls Tokenize) per chunk of input.
type Lexer struct {
	src      []byte
	sourceID uint32

	ch       rune
	offset   int // byte offset of ch
	rdOffset int // byte offset just past ch

	line, col uint32 // line/col of ch, 1-based
}

// Tokenize is the embedding-API entry point from spec §6:
// tokenize(source, source_id) -> Result<Vec<Token>, LexError>.
func Tokenize(source string, sourceID uint32) ([]token.Token, error) {
	l := &Lexer{src: []byte(source), sourceID: sourceID, line: 1, col: 1}
	l.next()
	var toks []token.Token
	for {
		tok, err := l.scan()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.EOF {
			break
		}
		toks = append(toks, tok)
	}
	return toks, nil
}

func (l *Lexer) next() {
	if l.rdOffset >= len(l.src) {
		l.offset = len(l.src)
		l.ch = eof
		return
	}
	l.offset = l.rdOffset
	if l.ch == '\n' {
		l.line++
		l.col = 1
	}
	r, w := rune(l.src[l.rdOffset]), 1
	if r >= utf8.RuneSelf {
		r, w = utf8.DecodeRune(l.src[l.rdOffset:])
	}
	l.rdOffset += w
	l.ch = r
}

// advanceCol moves the column counter past the rune just consumed by
// next(), widening by 2 for East Asian wide/fullwidth runes so carets in
// the diagnostics frame (package diagnostics) line up visually instead
// of just counting runes.
func (l *Lexer) advanceCol(r rune) {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		l.col += 2
	default:
		l.col++
	}
}

func (l *Lexer) consume() rune {
	r := l.ch
	l.advanceCol(r)
	l.next()
	return r
}

func isDelimiter(ch rune) bool {
	switch ch {
	case '(', ')', '\'', '`', ',', '"', ';':
		return true
	}
	return ch == eof || unicode.IsSpace(ch)
}

func (l *Lexer) span(startLine, startCol uint32, length int) span.Span {
	sid := l.sourceID
	return span.Span{Line: startLine, Column: startCol, Length: uint32(length), SourceID: &sid}
}

func (l *Lexer) skipSpaceAndComments() {
	for {
		switch {
		case l.ch == ';':
			for l.ch != '\n' && l.ch != eof {
				l.next()
			}
		case unicode.IsSpace(l.ch):
			l.consume()
		default:
			return
		}
	}
}

func (l *Lexer) scan() (token.Token, error) {
	l.skipSpaceAndComments()
	startLine, startCol := l.line, l.col

	switch {
	case l.ch == eof:
		return token.Token{Kind: token.EOF, Span: l.span(startLine, startCol, 0)}, nil
	case l.ch == '(':
		l.consume()
		return token.Token{Kind: token.LParen, Lit: "(", Span: l.span(startLine, startCol, 1)}, nil
	case l.ch == ')':
		l.consume()
		return token.Token{Kind: token.RParen, Lit: ")", Span: l.span(startLine, startCol, 1)}, nil
	case l.ch == '\'':
		l.consume()
		return token.Token{Kind: token.Quote, Lit: "'", Span: l.span(startLine, startCol, 1)}, nil
	case l.ch == '`':
		l.consume()
		return token.Token{Kind: token.Backquote, Lit: "`", Span: l.span(startLine, startCol, 1)}, nil
	case l.ch == ',':
		l.consume()
		if l.ch == '@' {
			l.consume()
			return token.Token{Kind: token.CommaAt, Lit: ",@", Span: l.span(startLine, startCol, 2)}, nil
		}
		return token.Token{Kind: token.Comma, Lit: ",", Span: l.span(startLine, startCol, 1)}, nil
	case l.ch == '"':
		return l.scanString(startLine, startCol)
	case l.ch == '#':
		return l.scanHash(startLine, startCol)
	}

	return l.scanAtom(startLine, startCol)
}

func (l *Lexer) scanString(startLine, startCol uint32) (token.Token, error) {
	l.consume() // opening quote
	var buf []rune
	for {
		if l.ch == eof {
			return token.Token{}, &Error{
				Kind: UnterminatedString,
				Msg:  "unterminated string literal",
				Span: l.span(startLine, startCol, 1),
			}
		}
		if l.ch == '"' {
			l.consume()
			break
		}
		if l.ch == '\\' {
			l.consume()
			esc := l.ch
			switch esc {
			case 'n':
				buf = append(buf, '\n')
			case 't':
				buf = append(buf, '\t')
			case 'r':
				buf = append(buf, '\r')
			case '\\':
				buf = append(buf, '\\')
			case '"':
				buf = append(buf, '"')
			case eof:
				return token.Token{}, &Error{
					Kind: UnterminatedString,
					Msg:  "unterminated string literal",
					Span: l.span(startLine, startCol, 1),
				}
			default:
				buf = append(buf, '\\', esc)
			}
			l.consume()
			continue
		}
		buf = append(buf, l.ch)
		l.consume()
	}
	length := int(l.col - startCol)
	return token.Token{Kind: token.String, Lit: string(buf), Span: l.span(startLine, startCol, length)}, nil
}

func (l *Lexer) scanHash(startLine, startCol uint32) (token.Token, error) {
	l.consume() // '#'
	switch l.ch {
	case 't':
		l.consume()
		return token.Token{Kind: token.Boolean, Lit: "#t", Span: l.span(startLine, startCol, 2)}, nil
	case 'f':
		l.consume()
		return token.Token{Kind: token.Boolean, Lit: "#f", Span: l.span(startLine, startCol, 2)}, nil
	default:
		bad := l.ch
		return token.Token{}, &Error{
			Kind: InvalidHash,
			Msg:  "invalid # literal: #" + string(bad),
			Span: l.span(startLine, startCol, 2),
		}
	}
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

// scanAtom scans a number or a symbol: the two share a lookahead rule
// (an optional sign followed by a digit means number; anything else
// means symbol), so CUE's scanner pattern of peeking one rune ahead
// before committing to a sub-scanner applies here too.
func (l *Lexer) scanAtom(startLine, startCol uint32) (token.Token, error) {
	start := l.offset
	sign := false
	if l.ch == '+' || l.ch == '-' {
		sign = true
	}

	numeric := isDigit(l.ch) || (sign && l.peekIsDigit())

	if l.ch == '.' {
		// Could be a standalone Dot token, or the start of a symbol like
		// "...". Only a lone '.' (next char is a delimiter) is Dot.
		l.consume()
		if isDelimiter(l.ch) {
			return token.Token{Kind: token.Dot, Lit: ".", Span: l.span(startLine, startCol, 1)}, nil
		}
		return l.finishSymbol(startLine, startCol, start)
	}

	if numeric {
		return l.scanNumber(startLine, startCol, start)
	}

	return l.finishSymbol(startLine, startCol, start)
}

func (l *Lexer) peekIsDigit() bool {
	if l.rdOffset >= len(l.src) {
		return false
	}
	r, _ := utf8.DecodeRune(l.src[l.rdOffset:])
	return isDigit(r)
}

func (l *Lexer) scanNumber(startLine, startCol uint32, start int) (token.Token, error) {
	isFloat := false
	if l.ch == '+' || l.ch == '-' {
		l.consume()
	}
	for isDigit(l.ch) {
		l.consume()
	}
	if l.ch == '.' {
		// A '.' followed by a digit is a float's fractional part. Any
		// other '.' is left in place, and the trailing-junk check below
		// rejects it, so "1." is an InvalidNumber.
		if l.peekIsDigit() {
			isFloat = true
			l.consume()
			for isDigit(l.ch) {
				l.consume()
			}
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		save := *l
		l.consume()
		if l.ch == '+' || l.ch == '-' {
			l.consume()
		}
		if isDigit(l.ch) {
			isFloat = true
			for isDigit(l.ch) {
				l.consume()
			}
		} else {
			*l = save
		}
	}
	if !isDelimiter(l.ch) {
		// Trailing junk glued onto a numeral, e.g. "1abc" — not a valid
		// symbol start either since it began with a digit/sign+digit.
		for !isDelimiter(l.ch) {
			l.consume()
		}
		length := int(l.col - startCol)
		return token.Token{}, &Error{
			Kind: InvalidNumber,
			Msg:  "invalid numeric literal: " + string(l.src[start:l.offset]),
			Span: l.span(startLine, startCol, length),
		}
	}
	lit := string(l.src[start:l.offset])
	length := int(l.col - startCol)
	kind := token.Integer
	if isFloat {
		kind = token.Float
	}
	return token.Token{Kind: kind, Lit: lit, Span: l.span(startLine, startCol, length)}, nil
}

func (l *Lexer) finishSymbol(startLine, startCol uint32, start int) (token.Token, error) {
	for !isDelimiter(l.ch) {
		l.consume()
	}
	if l.offset == start {
		// Nothing was consumed: ch is itself a delimiter we didn't
		// recognize as a dedicated token (e.g. stray ')' already
		// handled above — this path is for genuinely unexpected chars).
		l.consume()
		return token.Token{}, &Error{
			Kind: UnexpectedChar,
			Msg:  "unexpected character",
			Span: l.span(startLine, startCol, 1),
		}
	}
	lit := string(l.src[start:l.offset])
	length := int(l.col - startCol)
	return token.Token{Kind: token.Symbol, Lit: lit, Span: l.span(startLine, startCol, length)}, nil
}
