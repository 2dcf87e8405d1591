package eval_test

import (
	"bytes"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-quicktest/qt"

	"github.com/schemecore/sch/eval"
	"github.com/schemecore/sch/heap"
	"github.com/schemecore/sch/internal/lexer"
	"github.com/schemecore/sch/internal/reader"
	"github.com/schemecore/sch/value"
)

// evalAll runs every top-level form in src against a fresh evaluator and
// returns the last result, the evaluator (for heap-stats assertions), and
// any error.
func evalAll(t *testing.T, src string) (value.Value, *eval.Evaluator, error) {
	t.Helper()
	arena := heap.NewArena()
	out := &bytes.Buffer{}
	ev, err := eval.WithPrelude(arena, eval.NewStdIO(bytes.NewReader(nil), out), logr.Discard())
	qt.Assert(t, qt.IsNil(err))

	toks, err := lexer.Tokenize(src, 0)
	qt.Assert(t, qt.IsNil(err))
	p := reader.New(arena)
	p.PushTokens(toks)

	var result value.Value = value.Nilv
	for {
		expr, perr := p.ParseFinal()
		qt.Assert(t, qt.IsNil(perr))
		if expr == nil {
			return result, ev, nil
		}
		result, err = ev.Eval(expr)
		if err != nil {
			return nil, ev, err
		}
	}
}

func evalOK(t *testing.T, src string) value.Value {
	t.Helper()
	v, _, err := evalAll(t, src)
	qt.Assert(t, qt.IsNil(err))
	return v
}

func TestArithmeticAndModulo(t *testing.T) {
	v := evalOK(t, `(+ 1 (% 9 2))`)
	qt.Assert(t, qt.Equals(v, value.Value(value.Integer(2))))
}

func TestReverse(t *testing.T) {
	v := evalOK(t, `(reverse '(a b c d))`)
	qt.Assert(t, qt.Equals(displayList(v), "(d c b a)"))
}

func TestSubst(t *testing.T) {
	v := evalOK(t, `(subst 'a 'b '(a b c b))`)
	qt.Assert(t, qt.Equals(displayList(v), "(a a c a)"))
}

func displayList(v value.Value) string {
	return eval.Repr(v)
}

func TestTailCallStackBound(t *testing.T) {
	v := evalOK(t, `
(define (loop n) (if (= n 0) 'done (loop (- n 1))))
(loop 1000000)`)
	qt.Assert(t, qt.Equals(eval.Repr(v), "done"))
}

func TestFactorial(t *testing.T) {
	v := evalOK(t, `
(define (factorial n)
  (define (iter n acc) (if (= n 0) acc (iter (- n 1) (* acc n))))
  (iter n 1))
(factorial 10)`)
	qt.Assert(t, qt.Equals(v, value.Value(value.Integer(3628800))))
}

func TestFibTailRecursivePairAccumulator(t *testing.T) {
	v := evalOK(t, `
(define (fib n)
  (define (iter n a b) (if (= n 0) a (iter (- n 1) b (+ a b))))
  (iter n 0 1))
(fib 20)`)
	qt.Assert(t, qt.Equals(v, value.Value(value.Integer(6765))))
}

func TestFizzBuzz(t *testing.T) {
	out := &bytes.Buffer{}
	arena := heap.NewArena()
	ev, err := eval.WithPrelude(arena, eval.NewStdIO(bytes.NewReader(nil), out), logr.Discard())
	qt.Assert(t, qt.IsNil(err))

	src := `
(define (fizzbuzz n)
  (define (go i)
    (if (> i n)
        '()
        (begin
          (cond ((= 0 (% i 15)) (println "FizzBuzz"))
                ((= 0 (% i 3)) (println "Fizz"))
                ((= 0 (% i 5)) (println "Buzz"))
                (else (println i)))
          (go (+ i 1)))))
  (go 1))
(fizzbuzz 15)`
	toks, err := lexer.Tokenize(src, 0)
	qt.Assert(t, qt.IsNil(err))
	p := reader.New(arena)
	p.PushTokens(toks)
	for {
		expr, perr := p.ParseFinal()
		qt.Assert(t, qt.IsNil(perr))
		if expr == nil {
			break
		}
		_, err := ev.Eval(expr)
		qt.Assert(t, qt.IsNil(err))
	}

	want := "1\n2\nFizz\n4\nBuzz\nFizz\n7\n8\nFizz\nBuzz\n11\nFizz\n13\n14\nFizzBuzz\n"
	qt.Assert(t, qt.Equals(out.String(), want))
}

// TestLexicalScoping is spec §8 invariant 4.
func TestLexicalScoping(t *testing.T) {
	v := evalOK(t, `
(define x 1)
(define (f) x)
(let ((x 2)) (f))`)
	qt.Assert(t, qt.Equals(v, value.Value(value.Integer(1))))
}

// TestClosureCaptureIndependence is spec §8 invariant 5 and the §6
// closure-counter worked example.
func TestClosureCaptureIndependence(t *testing.T) {
	out := &bytes.Buffer{}
	arena := heap.NewArena()
	ev, err := eval.WithPrelude(arena, eval.NewStdIO(bytes.NewReader(nil), out), logr.Discard())
	qt.Assert(t, qt.IsNil(err))

	src := `
(define (make-counter)
  (let ((x 0))
    (lambda () (set! x (+ x 1)) x)))
(define c1 (make-counter))
(define c2 (make-counter))
(c1) (c1) (c1)
(c2)`
	toks, err := lexer.Tokenize(src, 0)
	qt.Assert(t, qt.IsNil(err))
	p := reader.New(arena)
	p.PushTokens(toks)
	var last value.Value
	for {
		expr, perr := p.ParseFinal()
		qt.Assert(t, qt.IsNil(perr))
		if expr == nil {
			break
		}
		last, err = ev.Eval(expr)
		qt.Assert(t, qt.IsNil(err))
	}
	// c2's own counter is independent of c1's three increments.
	qt.Assert(t, qt.Equals(last, value.Value(value.Integer(1))))
}

// TestGCReclaimsOverwrittenClosure is spec §8 invariant 6.
func TestGCReclaimsOverwrittenClosure(t *testing.T) {
	_, ev, err := evalAll(t, `
(define c (let ((x 0)) (lambda () (set! x (+ x 1)) x)))
(c) (c)
(define c #f)`)
	qt.Assert(t, qt.IsNil(err))

	before := ev.HeapStats()
	after := ev.CollectGarbage()
	qt.Assert(t, qt.IsTrue(after.LiveEnvs <= before.LiveEnvs))
	qt.Assert(t, qt.Equals(after.Collections, before.Collections+1))
	qt.Assert(t, qt.IsTrue(after.LastFreedEnvs > 0))
}

// TestNotASymbolSpanCoversOffendingToken is spec §8's diagnostic
// scenario: a malformed lambda parameter list must report NotASymbol
// with a span over the offending token itself (the "7"), not the
// enclosing (lambda ...) form.
func TestNotASymbolSpanCoversOffendingToken(t *testing.T) {
	src := "(define plus (lambda (x 7) (+ x y)))"
	_, _, err := evalAll(t, src)
	qt.Assert(t, qt.Not(qt.IsNil(err)))
	evalErr, ok := err.(*eval.Error)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(evalErr.Kind, eval.NotASymbol))
	sp := evalErr.SpanOf()
	qt.Assert(t, qt.Equals(int(sp.Line), 1))
	qt.Assert(t, qt.Equals(src[sp.Column-1:sp.Column-1+sp.Length], "7"))
}

// TestArityMismatchUsesCallSiteSpan is spec §8 invariant 7.
func TestArityMismatchUsesCallSiteSpan(t *testing.T) {
	_, _, err := evalAll(t, `
(define (f x y) (+ x y))
(f 1)`)
	qt.Assert(t, qt.Not(qt.IsNil(err)))
	evalErr, ok := err.(*eval.Error)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(evalErr.Kind, eval.ArityMismatch))
	// The call (f 1) is on line 3; the definition is on line 2.
	qt.Assert(t, qt.Equals(int(evalErr.Span.Line), 3))
}

// TestQuasiquoteDepth is spec §8 invariant 8.
func TestQuasiquoteDepth(t *testing.T) {
	v := evalOK(t, "`(a `(b ,(+ 1 2)))")
	qt.Assert(t, qt.Equals(eval.Repr(v), "(a (quasiquote (b (unquote (+ 1 2)))))"))
}

func TestQuasiquoteSplicing(t *testing.T) {
	v := evalOK(t, "`(1 ,@(list 2 3) 4)")
	qt.Assert(t, qt.Equals(eval.Repr(v), "(1 2 3 4)"))
}

func TestWhileLoop(t *testing.T) {
	out := &bytes.Buffer{}
	arena := heap.NewArena()
	ev, err := eval.WithPrelude(arena, eval.NewStdIO(bytes.NewReader(nil), out), logr.Discard())
	qt.Assert(t, qt.IsNil(err))
	src := `(let ((n 1)) (while (<= n 3) (println n) (set! n (+ n 1))))`
	toks, err := lexer.Tokenize(src, 0)
	qt.Assert(t, qt.IsNil(err))
	p := reader.New(arena)
	p.PushTokens(toks)
	expr, perr := p.ParseFinal()
	qt.Assert(t, qt.IsNil(perr))
	result, err := ev.Eval(expr)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(out.String(), "1\n2\n3\n"))
	qt.Assert(t, qt.IsTrue(value.IsNil(result)))
}

func TestDefmacroNonHygienic(t *testing.T) {
	v := evalOK(t, `
(defmacro my-if (c t e) (list 'cond (list c t) (list 'else e)))
(my-if #t 1 2)`)
	qt.Assert(t, qt.Equals(v, value.Value(value.Integer(1))))
}

func TestSetUnboundFails(t *testing.T) {
	_, _, err := evalAll(t, `(set! nope 1)`)
	evalErr, ok := err.(*eval.Error)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(evalErr.Kind, eval.SetUnbound))
}

func TestUndefinedSymbol(t *testing.T) {
	_, _, err := evalAll(t, `nope`)
	evalErr, ok := err.(*eval.Error)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(evalErr.Kind, eval.UndefinedSymbol))
}

func TestDivByZero(t *testing.T) {
	_, _, err := evalAll(t, `(/ 1 0)`)
	evalErr, ok := err.(*eval.Error)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(evalErr.Kind, eval.DivByZero))
}

func TestDefunSugarEquivalentToDefine(t *testing.T) {
	v1 := evalOK(t, `(defun sq (x) (* x x)) (sq 5)`)
	v2 := evalOK(t, `(define (sq x) (* x x)) (sq 5)`)
	qt.Assert(t, qt.Equals(v1, v2))
}

func TestReadNum(t *testing.T) {
	arena := heap.NewArena()
	in := bytes.NewBufferString("42\n")
	out := &bytes.Buffer{}
	ev, err := eval.WithPrelude(arena, eval.NewStdIO(in, out), logr.Discard())
	qt.Assert(t, qt.IsNil(err))

	toks, err := lexer.Tokenize(`(read-num)`, 0)
	qt.Assert(t, qt.IsNil(err))
	p := reader.New(arena)
	p.PushTokens(toks)
	expr, perr := p.ParseFinal()
	qt.Assert(t, qt.IsNil(perr))
	v, err := ev.Eval(expr)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, value.Value(value.Integer(42))))
}
