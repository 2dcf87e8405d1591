package eval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/schemecore/sch/internal/lexer"
	"github.com/schemecore/sch/internal/reader"
	"github.com/schemecore/sch/internal/span"
	"github.com/schemecore/sch/value"
)

// installPrelude registers the native procedure set spec §4.4/§6 calls
// "the prelude": arithmetic, comparisons, pair/list primitives,
// predicates, and I/O. It is grounded on the same small-arity native
// registration pattern CUE's internal/core/adt builtins use (a Go
// function wrapped with an explicit arity, looked up by name at call
// time) rather than reflection-based binding.
func (ev *Evaluator) installPrelude() {
	ev.DefineNative("+", primAdd, value.Arity{Min: 0, Variadic: true})
	ev.DefineNative("-", primSub, value.Arity{Min: 1, Variadic: true})
	ev.DefineNative("*", primMul, value.Arity{Min: 0, Variadic: true})
	ev.DefineNative("/", primDiv, value.Arity{Min: 1, Variadic: true})
	ev.DefineNative("%", primMod, value.Arity{Min: 2, Variadic: false})

	ev.DefineNative("=", primNumCompare(func(c int) bool { return c == 0 }), value.Arity{Min: 1, Variadic: true})
	ev.DefineNative("<", primNumCompare(func(c int) bool { return c < 0 }), value.Arity{Min: 1, Variadic: true})
	ev.DefineNative("<=", primNumCompare(func(c int) bool { return c <= 0 }), value.Arity{Min: 1, Variadic: true})
	ev.DefineNative(">", primNumCompare(func(c int) bool { return c > 0 }), value.Arity{Min: 1, Variadic: true})
	ev.DefineNative(">=", primNumCompare(func(c int) bool { return c >= 0 }), value.Arity{Min: 1, Variadic: true})

	ev.DefineNative("eq?", primEq, value.Arity{Min: 2})
	ev.DefineNative("not", primNot, value.Arity{Min: 1})
	ev.DefineNative("null?", primPred(func(v value.Value) bool { return value.IsNil(v) }), value.Arity{Min: 1})
	ev.DefineNative("pair?", primPred(func(v value.Value) bool { _, ok := v.(*value.Cons); return ok }), value.Arity{Min: 1})
	ev.DefineNative("number?", primPred(isNumber), value.Arity{Min: 1})
	ev.DefineNative("symbol?", primPred(func(v value.Value) bool { _, ok := v.(*value.Symbol); return ok }), value.Arity{Min: 1})
	ev.DefineNative("string?", primPred(func(v value.Value) bool { _, ok := v.(value.String); return ok }), value.Arity{Min: 1})
	ev.DefineNative("procedure?", primPred(isProcedure), value.Arity{Min: 1})

	ev.DefineNative("cons", primCons, value.Arity{Min: 2})
	ev.DefineNative("car", primCar, value.Arity{Min: 1})
	ev.DefineNative("cdr", primCdr, value.Arity{Min: 1})
	ev.DefineNative("list", primList, value.Arity{Min: 0, Variadic: true})
	ev.DefineNative("append", primAppend, value.Arity{Min: 0, Variadic: true})
	ev.DefineNative("length", primLength, value.Arity{Min: 1})

	ev.DefineNative("display", primDisplay, value.Arity{Min: 1})
	ev.DefineNative("print", primDisplay, value.Arity{Min: 1})
	ev.DefineNative("println", primPrintln, value.Arity{Min: 0, Variadic: true})

	ev.DefineNative("gensym", primGensym, value.Arity{Min: 0, Variadic: true})
	ev.DefineNative("apply", primApply, value.Arity{Min: 1, Variadic: true})
}

// installDerivedPrelude registers the read and num-parse natives, then
// layers read-num, not-null?, reverse, map, filter, foldl and subst on
// top of the primitives by evaluating a small snippet of Scheme itself.
func (ev *Evaluator) installDerivedPrelude() error {
	// spec §9's resolved open question: read is line -> string, num-parse
	// is string -> number (TypeError on malformed input), and read-num is
	// convenience sugar composing the two — built as library code, not a
	// third special-cased primitive.
	ev.DefineNative("read", primReadLine, value.Arity{Min: 0})
	ev.DefineNative("num-parse", primNumParse, value.Arity{Min: 1})

	const derived = `
(define (read-num) (num-parse (read)))
(define (not-null? x) (not (null? x)))
(define (reverse lst)
  (define (iter lst acc)
    (if (null? lst) acc (iter (cdr lst) (cons (car lst) acc))))
  (iter lst '()))
(define (map f lst)
  (if (null? lst) '() (cons (f (car lst)) (map f (cdr lst)))))
(define (filter pred lst)
  (cond ((null? lst) '())
        ((pred (car lst)) (cons (car lst) (filter pred (cdr lst))))
        (else (filter pred (cdr lst)))))
(define (foldl f acc lst)
  (if (null? lst) acc (foldl f (f acc (car lst)) (cdr lst))))
(define (subst new old lst)
  (cond ((null? lst) '())
        ((eq? (car lst) old) (cons new (subst new old (cdr lst))))
        ((pair? (car lst)) (cons (subst new old (car lst)) (subst new old (cdr lst))))
        (else (cons (car lst) (subst new old (cdr lst))))))
`
	return ev.loadSource(derived, "prelude")
}

// loadSource lexes, reads, and evaluates every top-level form in src
// against the global frame, for bootstrapping library code written in
// the language itself.
func (ev *Evaluator) loadSource(src, sourceName string) error {
	toks, err := lexer.Tokenize(src, 0)
	if err != nil {
		return fmt.Errorf("eval: lexing %s: %w", sourceName, err)
	}
	p := reader.New(ev.arena)
	p.PushTokens(toks)
	for {
		expr, err := p.ParseFinal()
		if err != nil {
			return fmt.Errorf("eval: parsing %s: %w", sourceName, err)
		}
		if expr == nil {
			return nil
		}
		if _, err := ev.Eval(expr); err != nil {
			return fmt.Errorf("eval: running %s: %w", sourceName, err)
		}
	}
}

func isNumber(v value.Value) bool {
	switch v.(type) {
	case value.Integer, value.Float:
		return true
	default:
		return false
	}
}

func isProcedure(v value.Value) bool {
	switch v.(type) {
	case *value.Native, *value.Lambda, *value.Macro:
		return true
	default:
		return false
	}
}

func asFloat(v value.Value) (float64, bool) {
	switch x := v.(type) {
	case value.Integer:
		return float64(x), true
	case value.Float:
		return float64(x), true
	default:
		return 0, false
	}
}

func numTypeError(v value.Value, sp span.Span) error {
	return &Error{Kind: TypeError, Span: sp, ExpectedType: "number", GotType: v.Kind().String()}
}

func primAdd(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	return numFold(args, sp, value.Integer(0), func(a, b value.Integer) value.Integer { return a + b }, func(a, b float64) float64 { return a + b })
}

func primMul(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	return numFold(args, sp, value.Integer(1), func(a, b value.Integer) value.Integer { return a * b }, func(a, b float64) float64 { return a * b })
}

func numFold(args []value.Value, sp span.Span, identity value.Integer, intOp func(a, b value.Integer) value.Integer, floatOp func(a, b float64) float64) (value.Value, error) {
	isFloat := false
	for _, a := range args {
		if !isNumber(a) {
			return nil, numTypeError(a, sp)
		}
		if _, ok := a.(value.Float); ok {
			isFloat = true
		}
	}
	if isFloat {
		acc := float64(identity)
		for _, a := range args {
			f, _ := asFloat(a)
			acc = floatOp(acc, f)
		}
		return value.Float(acc), nil
	}
	acc := identity
	for _, a := range args {
		acc = intOp(acc, a.(value.Integer))
	}
	return acc, nil
}

func primSub(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	for _, a := range args {
		if !isNumber(a) {
			return nil, numTypeError(a, sp)
		}
	}
	if len(args) == 1 {
		if f, ok := args[0].(value.Float); ok {
			return -f, nil
		}
		return -args[0].(value.Integer), nil
	}
	return numFoldLeft(args, sp, func(a, b value.Integer) value.Integer { return a - b }, func(a, b float64) float64 { return a - b })
}

func primDiv(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	for _, a := range args {
		if !isNumber(a) {
			return nil, numTypeError(a, sp)
		}
	}
	if len(args) == 1 {
		f, _ := asFloat(args[0])
		if f == 0 {
			return nil, &Error{Kind: DivByZero, Span: sp}
		}
		return value.Float(1 / f), nil
	}
	return numFoldLeft(args, sp, func(a, b value.Integer) value.Integer { return a / b }, func(a, b float64) float64 { return a / b })
}

// numFoldLeft combines args left-to-right (a op b op c ...), checking
// integer division for a zero divisor before falling into Go's own
// (panicking) integer division.
func numFoldLeft(args []value.Value, sp span.Span, intOp func(a, b value.Integer) value.Integer, floatOp func(a, b float64) float64) (value.Value, error) {
	isFloat := false
	for _, a := range args {
		if _, ok := a.(value.Float); ok {
			isFloat = true
		}
	}
	if isFloat {
		acc, _ := asFloat(args[0])
		for _, a := range args[1:] {
			f, _ := asFloat(a)
			acc = floatOp(acc, f)
		}
		return value.Float(acc), nil
	}
	acc := args[0].(value.Integer)
	for _, a := range args[1:] {
		b := a.(value.Integer)
		if b == 0 && intOpIsDivision(intOp) {
			return nil, &Error{Kind: DivByZero, Span: sp}
		}
		acc = intOp(acc, b)
	}
	return acc, nil
}

// intOpIsDivision distinguishes "-" folds (where a zero operand is
// fine) from "/" folds (where it must raise DivByZero) without passing
// an extra flag through every caller.
func intOpIsDivision(op func(a, b value.Integer) value.Integer) bool {
	return op(value.Integer(10), value.Integer(2)) == 5
}

func primMod(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	a, ok := args[0].(value.Integer)
	if !ok {
		return nil, numTypeError(args[0], sp)
	}
	b, ok := args[1].(value.Integer)
	if !ok {
		return nil, numTypeError(args[1], sp)
	}
	if b == 0 {
		return nil, &Error{Kind: DivByZero, Span: sp}
	}
	return a % b, nil
}

func primNumCompare(ok func(c int) bool) value.NativeFn {
	return func(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
		for _, a := range args {
			if !isNumber(a) {
				return nil, numTypeError(a, sp)
			}
		}
		for i := 0; i < len(args)-1; i++ {
			af, _ := asFloat(args[i])
			bf, _ := asFloat(args[i+1])
			c := 0
			switch {
			case af < bf:
				c = -1
			case af > bf:
				c = 1
			}
			if !ok(c) {
				return value.False, nil
			}
		}
		return value.True, nil
	}
}

func primEq(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	return value.Boolean(eqValue(args[0], args[1])), nil
}

func eqValue(a, b value.Value) bool {
	switch x := a.(type) {
	case value.Integer:
		y, ok := b.(value.Integer)
		return ok && x == y
	case value.Float:
		y, ok := b.(value.Float)
		return ok && x == y
	case value.Boolean:
		y, ok := b.(value.Boolean)
		return ok && x == y
	case value.String:
		y, ok := b.(value.String)
		return ok && x == y
	case *value.Symbol:
		y, ok := b.(*value.Symbol)
		return ok && x == y
	default:
		if value.IsNil(a) {
			return value.IsNil(b)
		}
		return a == b
	}
}

func primNot(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	return value.Boolean(!value.Truthy(args[0])), nil
}

func primPred(pred func(value.Value) bool) value.NativeFn {
	return func(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
		return value.Boolean(pred(args[0])), nil
	}
}

func primCons(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	return ev.NewCons(args[0], args[1], sp), nil
}

func primCar(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	c, ok := args[0].(*value.Cons)
	if !ok {
		return nil, &Error{Kind: TypeError, Span: sp, ExpectedType: "cons", GotType: args[0].Kind().String()}
	}
	return c.Car, nil
}

func primCdr(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	c, ok := args[0].(*value.Cons)
	if !ok {
		return nil, &Error{Kind: TypeError, Span: sp, ExpectedType: "cons", GotType: args[0].Kind().String()}
	}
	return c.Cdr, nil
}

func primList(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	var list value.Value = value.Nilv
	for i := len(args) - 1; i >= 0; i-- {
		list = ev.NewCons(args[i], list, sp)
	}
	return list, nil
}

func primAppend(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	if len(args) == 0 {
		return value.Nilv, nil
	}
	var all []value.Value
	for _, lst := range args[:len(args)-1] {
		all = append(all, listToSlice(lst)...)
	}
	list := args[len(args)-1]
	for i := len(all) - 1; i >= 0; i-- {
		list = ev.NewCons(all[i], list, sp)
	}
	return list, nil
}

func primLength(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	n := 0
	cur := args[0]
	for {
		if value.IsNil(cur) {
			return value.Integer(n), nil
		}
		c, ok := cur.(*value.Cons)
		if !ok {
			return nil, &Error{Kind: TypeError, Span: sp, ExpectedType: "list", GotType: args[0].Kind().String()}
		}
		n++
		cur = c.Cdr
	}
}

// Repr renders v the same way display/print do, for hosts (like the
// REPL) that want to show an evaluation result without going through a
// script-level display call.
func Repr(v value.Value) string {
	return displayString(v)
}

func displayString(v value.Value) string {
	switch x := v.(type) {
	case value.Integer:
		return strconv.FormatInt(int64(x), 10)
	case value.Float:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case value.Boolean:
		if x {
			return "#t"
		}
		return "#f"
	case value.String:
		return string(x)
	case *value.Symbol:
		return x.Name
	case *value.Cons:
		var b strings.Builder
		b.WriteByte('(')
		cur := value.Value(x)
		first := true
		for {
			c, ok := cur.(*value.Cons)
			if !ok {
				break
			}
			if !first {
				b.WriteByte(' ')
			}
			first = false
			b.WriteString(displayString(c.Car))
			cur = c.Cdr
		}
		if !value.IsNil(cur) {
			b.WriteString(" . ")
			b.WriteString(displayString(cur))
		}
		b.WriteByte(')')
		return b.String()
	case *value.Native:
		return fmt.Sprintf("#<native:%s>", x.Name)
	case *value.Lambda:
		name := x.Name
		if name == "" {
			name = "anonymous"
		}
		return fmt.Sprintf("#<lambda:%s>", name)
	case *value.Macro:
		return fmt.Sprintf("#<macro:%s>", x.Name)
	case *value.Foreign:
		return fmt.Sprintf("#<foreign:%s>", x.TypeTag)
	default:
		if value.IsNil(v) {
			return "()"
		}
		return fmt.Sprintf("%v", v)
	}
}

func primDisplay(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	e := ev.(*Evaluator)
	e.io.Print(displayString(args[0]))
	return value.Nilv, nil
}

func primPrintln(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	e := ev.(*Evaluator)
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = displayString(a)
	}
	e.io.Print(strings.Join(parts, " ") + "\n")
	return value.Nilv, nil
}

func primGensym(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	prefix := "g"
	if len(args) == 1 {
		s, ok := args[0].(value.String)
		if !ok {
			return nil, &Error{Kind: TypeError, Span: sp, ExpectedType: "string", GotType: args[0].Kind().String()}
		}
		prefix = string(s)
	}
	e := ev.(*Evaluator)
	return e.arena.Gensym(prefix), nil
}

func primApply(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	proc := args[0]
	var flat []value.Value
	if len(args) > 1 {
		flat = append(flat, args[1:len(args)-1]...)
		flat = append(flat, listToSlice(args[len(args)-1])...)
	}
	return ev.Apply(proc, flat, sp)
}

func primReadLine(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	e := ev.(*Evaluator)
	line, err := e.io.ReadLine()
	if err != nil {
		return value.Nilv, nil
	}
	return value.String(line), nil
}

// primNumParse implements spec §9's resolved num-parse primitive:
// parse a string as an Integer or Float, failing with TypeError on
// malformed input per the spec's explicit resolution of this open
// question.
func primNumParse(ev value.Evaluator, args []value.Value, sp span.Span) (value.Value, error) {
	s, ok := args[0].(value.String)
	if !ok {
		return nil, &Error{Kind: TypeError, Span: sp, ExpectedType: "string", GotType: args[0].Kind().String()}
	}
	text := strings.TrimSpace(string(s))
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return value.Integer(n), nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return value.Float(f), nil
	}
	return nil, &Error{Kind: TypeError, Span: sp, ExpectedType: "number string", GotType: "string"}
}
