// Package span tracks source positions for the lexer, parser, and
// evaluator. A Span is a flat (line, column, length) triple plus an
// optional source identifier, as opposed to CUE's token package (which
// backs positions with a compact file-relative offset and a shared
// FileSet). We keep the flat representation because every diagnostic in
// this module needs to be rendered independent of any file-set lookup
// (REPL lines have no file at all), but we keep CUE's idea of a registry
// that owns line-offset tables and raw source text. The caret renderer
// in package diagnostics does not consult the registry: it takes the
// source text directly and splits it into lines itself.
package span

import (
	"sort"
	"sync"
)

// Span is a source location: a starting (line, column) and a length in
// display columns (the lexer counts an East Asian wide rune as two),
// plus the identifier of the source it was lexed from. SourceID
// is nil for spans synthesized by the evaluator (e.g. macro expansions)
// that have no direct source text.
type Span struct {
	Line     uint32
	Column   uint32
	Length   uint32
	SourceID *uint32
}

// Zero reports whether s is the unset span.
func (s Span) Zero() bool {
	return s.Line == 0 && s.Column == 0 && s.Length == 0 && s.SourceID == nil
}

// WithLength returns a copy of s with a new Length, leaving the start
// position untouched.
func (s Span) WithLength(n uint32) Span {
	s.Length = n
	return s
}

// Registry owns the source text and line-offset tables for every source
// the host has registered, keyed by a small integer id. It is the
// flattened analogue of CUE's token.FileSet: callers ask for an id once
// per logical source (a REPL line, a loaded file) and use it to tag every
// token/expression produced from that text.
type Registry struct {
	mu      sync.RWMutex
	sources []*registeredSource
}

type registeredSource struct {
	name    string
	content []byte
	lines   []int // byte offset of the first character of each line
}

// NewRegistry returns an empty source registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers source text under name and returns its source id, for use
// as Span.SourceID on every token lexed from it.
func (r *Registry) Add(name string, content []byte) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs := &registeredSource{name: name, content: content, lines: computeLines(content)}
	r.sources = append(r.sources, rs)
	return uint32(len(r.sources) - 1)
}

func computeLines(content []byte) []int {
	lines := []int{0}
	for i, b := range content {
		if b == '\n' && i+1 < len(content) {
			lines = append(lines, i+1)
		}
	}
	return lines
}

// Name returns the registered name for id, or "" if id is unknown.
func (r *Registry) Name(id uint32) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.sources) {
		return ""
	}
	return r.sources[id].name
}

// Line returns the text of the given 1-based line number of source id,
// without its trailing newline, and whether that line exists.
func (r *Registry) Line(id uint32, line int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.sources) || line < 1 {
		return "", false
	}
	rs := r.sources[id]
	idx := line - 1
	if idx >= len(rs.lines) {
		return "", false
	}
	start := rs.lines[idx]
	end := len(rs.content)
	if idx+1 < len(rs.lines) {
		end = rs.lines[idx+1]
	}
	text := rs.content[start:end]
	for len(text) > 0 && (text[len(text)-1] == '\n' || text[len(text)-1] == '\r') {
		text = text[:len(text)-1]
	}
	return string(text), true
}

// LineColumn converts a byte offset within source id into a 1-based
// (line, column) pair. Column counts runes, not bytes; unlike the
// lexer's own column bookkeeping, an East Asian wide rune counts as one
// column here.
func (r *Registry) LineColumn(id uint32, offset int) (line, column int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.sources) {
		return 1, 1
	}
	rs := r.sources[id]
	i := sort.Search(len(rs.lines), func(i int) bool { return rs.lines[i] > offset })
	line = i // lines[i-1] <= offset < lines[i]
	lineStart := 0
	if line-1 >= 0 && line-1 < len(rs.lines) {
		lineStart = rs.lines[line-1]
	}
	col := 1
	for _, r := range string(rs.content[lineStart:min(offset, len(rs.content))]) {
		_ = r
		col++
	}
	return line, col
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
