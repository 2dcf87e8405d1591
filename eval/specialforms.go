package eval

import (
	"github.com/schemecore/sch/internal/span"
	"github.com/schemecore/sch/value"
)

// specialFormFn evaluates one special form's operand list (the Cdr of
// the Cons whose Car named it) against env, returning a tailResult the
// trampoline either finishes on or bounces through.
type specialFormFn func(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error)

var specialForms map[string]specialFormFn

func init() {
	specialForms = map[string]specialFormFn{
		"quote":      sfQuote,
		"if":         sfIf,
		"cond":       sfCond,
		"define":     sfDefine,
		"defun":      sfDefun,
		"set!":       sfSet,
		"lambda":     sfLambda,
		"let":        sfLet,
		"let*":       sfLetStar,
		"begin":      sfBegin,
		"and":        sfAnd,
		"or":         sfOr,
		"while":      sfWhile,
		"quasiquote": sfQuasiquote,
		"defmacro":   sfDefmacro,
	}
}

func operands(form *value.Cons) []value.Value {
	return listToSlice(form.Cdr)
}

// operandSpans pairs with operands: spans[i] is the span of operands()[i].
func operandSpans(form *value.Cons) []span.Span {
	_, spans := listToSliceSpans(form.Cdr)
	return spans
}

func sfQuote(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	args := operands(form)
	if len(args) != 1 {
		return tailResult{}, &Error{Kind: ArityMismatch, Span: form.Span, Expected: 1, Got: len(args)}
	}
	return done(args[0])
}

func sfIf(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	args := operands(form)
	if len(args) != 2 && len(args) != 3 {
		return tailResult{}, &Error{Kind: ArityMismatch, Span: form.Span, Expected: 2, Got: len(args)}
	}
	spans := operandSpans(form)
	test, err := ev.run(args[0], env, spans[0])
	if err != nil {
		return tailResult{}, err
	}
	if value.Truthy(test) {
		return tailTo(args[1], env, spans[1])
	}
	if len(args) == 3 {
		return tailTo(args[2], env, spans[2])
	}
	return done(value.Nilv)
}

// sfCond implements the (cond (test expr...) ... (else expr...)) form.
// The last expression of the matching clause is the tail continuation.
func sfCond(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	for _, clauseExpr := range operands(form) {
		clause, ok := clauseExpr.(*value.Cons)
		if !ok {
			return tailResult{}, &Error{Kind: TypeError, Span: form.Span, ExpectedType: "cons", GotType: clauseExpr.Kind().String()}
		}
		parts, partSpans := listToSliceSpans(clause)
		if len(parts) == 0 {
			continue
		}
		isElse := false
		if sym, ok := parts[0].(*value.Symbol); ok && sym.Name == "else" {
			isElse = true
		}
		var matched bool
		if isElse {
			matched = true
		} else {
			test, err := ev.run(parts[0], env, partSpans[0])
			if err != nil {
				return tailResult{}, err
			}
			matched = value.Truthy(test)
		}
		if !matched {
			continue
		}
		body, bodySpans := parts[1:], partSpans[1:]
		if len(body) == 0 {
			return done(value.Nilv)
		}
		for i := 0; i < len(body)-1; i++ {
			if _, err := ev.run(body[i], env, bodySpans[i]); err != nil {
				return tailResult{}, err
			}
		}
		return tailTo(body[len(body)-1], env, bodySpans[len(bodySpans)-1])
	}
	return done(value.Nilv)
}

func sfDefine(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	args := operands(form)
	if len(args) < 1 {
		return tailResult{}, &Error{Kind: ArityMismatch, Span: form.Span, Expected: 2, Got: len(args)}
	}

	// (define (name params...) body...) is sugar for
	// (define name (lambda (params...) body...)), spec §9's resolved
	// define/defun equivalence.
	if sig, ok := args[0].(*value.Cons); ok {
		nameSym, ok := sig.Car.(*value.Symbol)
		if !ok {
			return tailResult{}, &Error{Kind: NotASymbol, Span: sig.Span, GotType: sig.Car.Kind().String()}
		}
		params, rest, err := parseParamList(sig.Cdr, form.Span)
		if err != nil {
			return tailResult{}, err
		}
		lambda := &value.Lambda{Name: nameSym.Name, Params: params, Rest: rest, Body: args[1:], Env: env, Span: form.Span}
		env.Define(nameSym.Name, lambda)
		return done(value.Nilv)
	}

	nameSym, ok := args[0].(*value.Symbol)
	if !ok {
		return tailResult{}, &Error{Kind: NotASymbol, Span: operandSpans(form)[0], GotType: args[0].Kind().String()}
	}
	if len(args) != 2 {
		return tailResult{}, &Error{Kind: ArityMismatch, Span: form.Span, Expected: 2, Got: len(args)}
	}
	v, err := ev.run(args[1], env, operandSpans(form)[1])
	if err != nil {
		return tailResult{}, err
	}
	if lam, ok := v.(*value.Lambda); ok && lam.Name == "" {
		lam.Name = nameSym.Name
	}
	env.Define(nameSym.Name, v)
	return done(value.Nilv)
}

// sfDefun is Lisp-style sugar: (defun name (params...) body...).
func sfDefun(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	args := operands(form)
	if len(args) < 2 {
		return tailResult{}, &Error{Kind: ArityMismatch, Span: form.Span, Expected: 3, Got: len(args)}
	}
	nameSym, ok := args[0].(*value.Symbol)
	if !ok {
		return tailResult{}, &Error{Kind: NotASymbol, Span: operandSpans(form)[0], GotType: args[0].Kind().String()}
	}
	params, rest, err := parseParamList(args[1], form.Span)
	if err != nil {
		return tailResult{}, err
	}
	lambda := &value.Lambda{Name: nameSym.Name, Params: params, Rest: rest, Body: args[2:], Env: env, Span: form.Span}
	env.Define(nameSym.Name, lambda)
	return done(value.Nilv)
}

func sfSet(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	args := operands(form)
	if len(args) != 2 {
		return tailResult{}, &Error{Kind: ArityMismatch, Span: form.Span, Expected: 2, Got: len(args)}
	}
	nameSym, ok := args[0].(*value.Symbol)
	if !ok {
		return tailResult{}, &Error{Kind: NotASymbol, Span: operandSpans(form)[0], GotType: args[0].Kind().String()}
	}
	v, err := ev.run(args[1], env, operandSpans(form)[1])
	if err != nil {
		return tailResult{}, err
	}
	if !env.Set(nameSym.Name, v) {
		return tailResult{}, &Error{Kind: SetUnbound, Span: form.Span, Name: nameSym.Name}
	}
	return done(value.Nilv)
}

func sfLambda(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	args := operands(form)
	if len(args) < 1 {
		return tailResult{}, &Error{Kind: ArityMismatch, Span: form.Span, Expected: 2, Got: len(args)}
	}
	params, rest, err := parseParamList(args[0], form.Span)
	if err != nil {
		return tailResult{}, err
	}
	return done(&value.Lambda{Params: params, Rest: rest, Body: args[1:], Env: env, Span: form.Span})
}

// parseParamList walks a formal-parameter list, which may be a proper
// list (a b c), a fully variadic single symbol (rest), or a dotted
// improper list (a b . rest).
func parseParamList(v value.Value, callSpan span.Span) (params []string, rest string, err error) {
	for {
		switch x := v.(type) {
		case *value.Cons:
			sym, ok := x.Car.(*value.Symbol)
			if !ok {
				return nil, "", &Error{Kind: NotASymbol, Span: x.Span, GotType: x.Car.Kind().String()}
			}
			params = append(params, sym.Name)
			v = x.Cdr
		case *value.Symbol:
			rest = x.Name
			return params, rest, nil
		default:
			if value.IsNil(x) {
				return params, rest, nil
			}
			return nil, "", &Error{Kind: NotASymbol, Span: callSpan, GotType: x.Kind().String()}
		}
	}
}

// sfLet implements (let ((name expr) ...) body...): all binding
// expressions are evaluated in the outer environment, matching
// let-not-let* semantics.
func sfLet(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	args := operands(form)
	if len(args) < 1 {
		return tailResult{}, &Error{Kind: ArityMismatch, Span: form.Span, Expected: 1, Got: len(args)}
	}
	bindings := listToSlice(args[0])
	newEnv := ev.arena.NewEnv(env)
	for _, b := range bindings {
		name, expr, exprSpan, err := letBinding(b, form.Span)
		if err != nil {
			return tailResult{}, err
		}
		v, err := ev.run(expr, env, exprSpan)
		if err != nil {
			return tailResult{}, err
		}
		newEnv.Define(name, v)
	}
	body, bodySpans := args[1:], operandSpans(form)[1:]
	return runBody(ev, body, bodySpans, newEnv)
}

// sfLetStar implements (let* ((name expr) ...) body...): each binding
// sees the ones before it, in a freshly nested frame per binding so an
// inner shadow never clobbers the outer let*'s own binding expression.
func sfLetStar(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	args := operands(form)
	if len(args) < 1 {
		return tailResult{}, &Error{Kind: ArityMismatch, Span: form.Span, Expected: 1, Got: len(args)}
	}
	bindings := listToSlice(args[0])
	cur := env
	for _, b := range bindings {
		name, expr, exprSpan, err := letBinding(b, form.Span)
		if err != nil {
			return tailResult{}, err
		}
		v, err := ev.run(expr, cur, exprSpan)
		if err != nil {
			return tailResult{}, err
		}
		next := ev.arena.NewEnv(cur)
		next.Define(name, v)
		cur = next
	}
	if cur == env {
		cur = ev.arena.NewEnv(env)
	}
	body, bodySpans := args[1:], operandSpans(form)[1:]
	return runBody(ev, body, bodySpans, cur)
}

// letBinding unpacks a single (name expr) binding pair. exprSpan is the
// span of expr itself: pair.Cdr is the singleton Cons holding expr, and
// every Cons carries the span of its own Car, so pair.Cdr's Span is
// exactly what's wanted here without any extra bookkeeping.
func letBinding(b value.Value, callSpan span.Span) (name string, expr value.Value, exprSpan span.Span, err error) {
	pair, ok := b.(*value.Cons)
	if !ok {
		return "", nil, span.Span{}, &Error{Kind: TypeError, Span: callSpan, ExpectedType: "cons", GotType: b.Kind().String()}
	}
	sym, ok := pair.Car.(*value.Symbol)
	if !ok {
		return "", nil, span.Span{}, &Error{Kind: NotASymbol, Span: pair.Span, GotType: pair.Car.Kind().String()}
	}
	restCons, ok := pair.Cdr.(*value.Cons)
	if !ok || !value.IsNil(restCons.Cdr) {
		rest := listToSlice(pair.Cdr)
		return "", nil, span.Span{}, &Error{Kind: ArityMismatch, Span: callSpan, Expected: 2, Got: 1 + len(rest)}
	}
	return sym.Name, restCons.Car, restCons.Span, nil
}

func runBody(ev *Evaluator, body []value.Value, spans []span.Span, env *value.Env) (tailResult, error) {
	if len(body) == 0 {
		return done(value.Nilv)
	}
	for i := 0; i < len(body)-1; i++ {
		if _, err := ev.run(body[i], env, spans[i]); err != nil {
			return tailResult{}, err
		}
	}
	return tailTo(body[len(body)-1], env, spans[len(spans)-1])
}

func sfBegin(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	return runBody(ev, operands(form), operandSpans(form), env)
}

// sfAnd short-circuits on the first falsy value; the last operand is
// evaluated in tail position.
func sfAnd(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	args := operands(form)
	if len(args) == 0 {
		return done(value.True)
	}
	spans := operandSpans(form)
	for i := 0; i < len(args)-1; i++ {
		v, err := ev.run(args[i], env, spans[i])
		if err != nil {
			return tailResult{}, err
		}
		if !value.Truthy(v) {
			return done(v)
		}
	}
	return tailTo(args[len(args)-1], env, spans[len(spans)-1])
}

// sfOr short-circuits on the first truthy value; the last operand is
// evaluated in tail position.
func sfOr(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	args := operands(form)
	if len(args) == 0 {
		return done(value.False)
	}
	spans := operandSpans(form)
	for i := 0; i < len(args)-1; i++ {
		v, err := ev.run(args[i], env, spans[i])
		if err != nil {
			return tailResult{}, err
		}
		if value.Truthy(v) {
			return done(v)
		}
	}
	return tailTo(args[len(args)-1], env, spans[len(spans)-1])
}

// sfWhile is not tail-recursive in the usual sense (it loops in place
// rather than bouncing through the trampoline), but its own body
// evaluation goes through ev.run so nested tail calls inside the loop
// body still get the benefit.
func sfWhile(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	args := operands(form)
	if len(args) < 1 {
		return tailResult{}, &Error{Kind: ArityMismatch, Span: form.Span, Expected: 1, Got: len(args)}
	}
	spans := operandSpans(form)
	for {
		test, err := ev.run(args[0], env, spans[0])
		if err != nil {
			return tailResult{}, err
		}
		if !value.Truthy(test) {
			return done(value.Nilv)
		}
		for i, b := range args[1:] {
			if _, err := ev.run(b, env, spans[1:][i]); err != nil {
				return tailResult{}, err
			}
		}
		ev.safePoint()
	}
}

func sfDefmacro(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	args := operands(form)
	if len(args) < 2 {
		return tailResult{}, &Error{Kind: ArityMismatch, Span: form.Span, Expected: 3, Got: len(args)}
	}
	nameSym, ok := args[0].(*value.Symbol)
	if !ok {
		return tailResult{}, &Error{Kind: NotASymbol, Span: operandSpans(form)[0], GotType: args[0].Kind().String()}
	}
	params, rest, err := parseParamList(args[1], form.Span)
	if err != nil {
		return tailResult{}, err
	}
	macro := &value.Macro{Name: nameSym.Name, Params: params, Rest: rest, Body: args[2:], Env: env, Span: form.Span}
	env.Define(nameSym.Name, macro)
	return done(value.Nilv)
}

// sfQuasiquote implements spec §4.4's backquote/unquote/unquote-splicing
// expansion, tracking nesting depth so a quasiquote inside a quasiquote
// only has its own unquotes resolved, never the outer form's (the
// ``(a `(b ,(+ 1 2)))`` worked example in spec §4.4).
func sfQuasiquote(ev *Evaluator, form *value.Cons, env *value.Env) (tailResult, error) {
	args := operands(form)
	if len(args) != 1 {
		return tailResult{}, &Error{Kind: ArityMismatch, Span: form.Span, Expected: 1, Got: len(args)}
	}
	v, err := ev.quasi(args[0], env, 1)
	if err != nil {
		return tailResult{}, err
	}
	return done(v)
}

// formHead reports the head symbol name of v (if any) along with its
// operand forms and each operand's own span.
func formHead(v value.Value) (string, []value.Value, []span.Span, bool) {
	c, ok := v.(*value.Cons)
	if !ok {
		return "", nil, nil, false
	}
	sym, ok := c.Car.(*value.Symbol)
	if !ok {
		return "", nil, nil, false
	}
	args, spans := listToSliceSpans(c.Cdr)
	return sym.Name, args, spans, true
}

// quasi expands a single quasiquoted expression at the given nesting
// depth. depth is always >= 1 while inside a quasiquote.
func (ev *Evaluator) quasi(expr value.Value, env *value.Env, depth int) (value.Value, error) {
	if head, args, argSpans, ok := formHead(expr); ok {
		switch head {
		case "unquote":
			if len(args) != 1 {
				return nil, &Error{Kind: ArityMismatch, Span: expr.(*value.Cons).Span, Expected: 1, Got: len(args)}
			}
			if depth == 1 {
				return ev.run(args[0], env, argSpans[0])
			}
			inner, err := ev.quasi(args[0], env, depth-1)
			if err != nil {
				return nil, err
			}
			return ev.wrap("unquote", inner, expr.(*value.Cons).Span), nil

		case "quasiquote":
			if len(args) != 1 {
				return nil, &Error{Kind: ArityMismatch, Span: expr.(*value.Cons).Span, Expected: 1, Got: len(args)}
			}
			inner, err := ev.quasi(args[0], env, depth+1)
			if err != nil {
				return nil, err
			}
			return ev.wrap("quasiquote", inner, expr.(*value.Cons).Span), nil
		}
	}

	c, ok := expr.(*value.Cons)
	if !ok {
		return expr, nil
	}
	return ev.quasiList(c, env, depth)
}

func (ev *Evaluator) wrap(head string, inner value.Value, sp span.Span) value.Value {
	return ev.arena.NewCons(ev.arena.Intern(head), ev.arena.NewCons(inner, value.Nilv, sp), sp)
}

// quasiList walks a list structure, splicing in unquote-splicing
// results and recursively expanding every other element.
func (ev *Evaluator) quasiList(c *value.Cons, env *value.Env, depth int) (value.Value, error) {
	if headSym, ok := c.Car.(*value.Symbol); ok && (headSym.Name == "unquote" || headSym.Name == "quasiquote") {
		return ev.quasi(c, env, depth)
	}

	var elems []value.Value
	cur := value.Value(c)
	tail := value.Value(value.Nilv)

	for {
		cc, ok := cur.(*value.Cons)
		if !ok {
			tail = cur
			break
		}
		if head, args, argSpans, ok := formHead(cc.Car); ok && head == "unquote-splicing" {
			if len(args) != 1 {
				return nil, &Error{Kind: ArityMismatch, Span: cc.Span, Expected: 1, Got: len(args)}
			}
			if depth == 1 {
				spliced, err := ev.run(args[0], env, argSpans[0])
				if err != nil {
					return nil, err
				}
				elems = append(elems, listToSlice(spliced)...)
			} else {
				inner, err := ev.quasi(args[0], env, depth-1)
				if err != nil {
					return nil, err
				}
				elems = append(elems, ev.wrap("unquote-splicing", inner, cc.Span))
			}
		} else {
			elemExpanded, err := ev.quasi(cc.Car, env, depth)
			if err != nil {
				return nil, err
			}
			elems = append(elems, elemExpanded)
		}
		cur = cc.Cdr
	}

	if !value.IsNil(tail) {
		expandedTail, err := ev.quasi(tail, env, depth)
		if err != nil {
			return nil, err
		}
		tail = expandedTail
	}

	list := tail
	for i := len(elems) - 1; i >= 0; i-- {
		list = ev.arena.NewCons(elems[i], list, c.Span)
	}
	return list, nil
}
