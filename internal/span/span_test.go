package span_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/schemecore/sch/internal/span"
)

func TestRegistryLineLookup(t *testing.T) {
	r := span.NewRegistry()
	id := r.Add("test.scm", []byte("(+ 1 2)\n(- 3 4)\n"))

	line1, ok := r.Line(id, 1)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(line1, "(+ 1 2)"))

	line2, ok := r.Line(id, 2)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(line2, "(- 3 4)"))

	_, ok = r.Line(id, 3)
	qt.Assert(t, qt.IsFalse(ok))
}

func TestRegistryLineColumn(t *testing.T) {
	r := span.NewRegistry()
	id := r.Add("test.scm", []byte("ab\ncd"))
	line, col := r.LineColumn(id, 3)
	qt.Assert(t, qt.Equals(line, 2))
	qt.Assert(t, qt.Equals(col, 1))
}

func TestZero(t *testing.T) {
	qt.Assert(t, qt.IsTrue(span.Span{}.Zero()))
	qt.Assert(t, qt.IsFalse(span.Span{Line: 1, Column: 1, Length: 1}.Zero()))
}

func TestWithLength(t *testing.T) {
	s := span.Span{Line: 1, Column: 1, Length: 1}
	widened := s.WithLength(5)
	qt.Assert(t, qt.Equals(widened.Length, uint32(5)))
	qt.Assert(t, qt.Equals(s.Length, uint32(1)))
}
