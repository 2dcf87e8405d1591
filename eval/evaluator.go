// Package eval implements the trampolined tree-walking evaluator from
// spec §4.4: lexical scoping, a tail-call loop that keeps the Go stack
// depth bounded regardless of how deep a script's self-recursion goes,
// special forms, quasiquote, macros, and the native-procedure prelude.
//
// It is grounded on the traversal shape of
// cuelang.org/go/internal/core/eval, CUE's own closed-form evaluator
// (a switch over a small set of expression kinds walking an environment
// chain) — adapted here from CUE's graph-unification model to an
// explicit (expr, env) trampoline, since spec §4.4/§9 calls for a loop
// that rewrites its own loop variables in tail position rather than
// CUE's recursive reduction. The GC-root bookkeeping (an explicit active
// frame stack and an explicit evaluated-argument stack, both handed to
// heap.Arena.Collect at safe points) exists because Go's own call stack,
// which would otherwise hold these values reachable, is invisible to
// our hand-rolled mark-sweep pass.
package eval

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/schemecore/sch/heap"
	"github.com/schemecore/sch/internal/span"
	"github.com/schemecore/sch/value"
)

// Evaluator is a single-threaded, synchronous interpreter instance: it
// owns its heap exclusively (spec §5) and is never shared across
// goroutines.
type Evaluator struct {
	arena  *heap.Arena
	global *value.Env
	io     IO
	log    logr.Logger

	frames   []*value.Env   // root source 2: active call-stack environments
	argStack []value.Value  // root source 3: in-progress application arguments
}

// New constructs a bare Evaluator with no native primitives registered
// (spec §6: Evaluator::new()). The special forms (quote, if, define,
// lambda, ...) come from a package-level table and are recognized by
// every Evaluator, including one built with New.
func New(arena *heap.Arena, io IO, log logr.Logger) *Evaluator {
	if io == nil {
		io = discardIO{}
	}
	return &Evaluator{
		arena:  arena,
		global: arena.NewEnv(nil),
		io:     io,
		log:    log,
	}
}

// WithPrelude constructs an Evaluator with the native primitive set and
// the Scheme-defined derived procedures preloaded (spec §6:
// Evaluator::with_prelude()).
func WithPrelude(arena *heap.Arena, io IO, log logr.Logger) (*Evaluator, error) {
	ev := New(arena, io, log)
	ev.installPrelude()
	if err := ev.installDerivedPrelude(); err != nil {
		return nil, fmt.Errorf("eval: installing derived prelude: %w", err)
	}
	return ev, nil
}

// Globals returns the root frame for read/write access (spec §6:
// evaluator.globals()).
func (ev *Evaluator) Globals() *value.Env {
	return ev.global
}

// Arena exposes the evaluator's heap so a host can construct its own
// reader.Parser against the same arena the evaluator allocates from —
// required since expression trees must live on the evaluator's heap to
// be reachable by its GC roots.
func (ev *Evaluator) Arena() *heap.Arena {
	return ev.arena
}

// DefineNative registers a host function under name (spec §6:
// evaluator.define_native).
func (ev *Evaluator) DefineNative(name string, fn value.NativeFn, arity value.Arity) {
	ev.global.Define(name, &value.Native{Name: name, Fn: fn, Arity: arity})
}

// RegisterForeign declares a foreign value type (spec §6:
// evaluator.register_foreign).
func (ev *Evaluator) RegisterForeign(typeTag string, trace func(*value.Foreign) []value.Value, drop func(*value.Foreign)) {
	ev.arena.RegisterForeignType(typeTag, trace, drop)
}

// NewForeign allocates a foreign value of a registered type.
func (ev *Evaluator) NewForeign(typeTag string, data any) (*value.Foreign, error) {
	return ev.arena.NewForeign(typeTag, data)
}

// Intern returns the canonical symbol for name.
func (ev *Evaluator) Intern(name string) *value.Symbol {
	return ev.arena.Intern(name)
}

// HeapStats exposes the arena's object-count hook, used by spec §8
// property 6 to observe that a forced collection actually freed the
// dead closure-counter environment's footprint.
func (ev *Evaluator) HeapStats() heap.Stats {
	return ev.arena.Stats()
}

// CollectGarbage forces a mark-sweep pass regardless of allocation
// pressure, for hosts and tests that want to observe collection
// deterministically rather than waiting on the threshold policy.
func (ev *Evaluator) CollectGarbage() heap.Stats {
	return ev.arena.Collect(ev.argStack, ev.gcEnvRoots())
}

func (ev *Evaluator) gcEnvRoots() []*value.Env {
	roots := make([]*value.Env, 0, len(ev.frames)+1)
	roots = append(roots, ev.global)
	roots = append(roots, ev.frames...)
	return roots
}

// safePoint is called between reductions (spec §4.3: "the evaluator
// announces safe points"): at the trampoline's loop head, after each
// pass of a while loop, and when Eval/EvalIn finish. No native function
// body calls it directly, but a native that re-enters the evaluator
// through Apply (as the apply primitive does) reaches these safe points
// inside that nested evaluation, so a collection can run while such a
// native is still on the stack.
func (ev *Evaluator) safePoint() {
	if ev.arena.ShouldCollect() {
		ev.arena.Collect(ev.argStack, ev.gcEnvRoots())
	}
}

// Eval evaluates one top-level expression against the global frame
// (spec §6: evaluator.eval(expr)).
func (ev *Evaluator) Eval(expr value.Value) (value.Value, error) {
	result, err := ev.run(expr, ev.global, span.Span{})
	ev.safePoint()
	return result, err
}

// EvalIn evaluates expr against an arbitrary environment, for hosts
// embedding a sub-evaluation (e.g. a REPL that wants a scratch frame
// chained off the globals). There is no enclosing form to report a span
// against at this entry point, same as Eval.
func (ev *Evaluator) EvalIn(expr value.Value, env *value.Env) (value.Value, error) {
	result, err := ev.run(expr, env, span.Span{})
	ev.safePoint()
	return result, err
}

// NewCons and NewEnv satisfy value.Evaluator, letting native procedures
// allocate through the same arena the evaluator itself uses.
func (ev *Evaluator) NewCons(car, cdr value.Value, sp span.Span) *value.Cons {
	return ev.arena.NewCons(car, cdr, sp)
}

func (ev *Evaluator) NewEnv(parent *value.Env) *value.Env {
	return ev.arena.NewEnv(parent)
}

// Apply satisfies value.Evaluator: it is the generic, non-tail-optimized
// "call this procedure with these already-evaluated arguments" path
// used by native code (and available to hosts via the embedding API).
// The hot path for ordinary source-level calls is evalApplication
// inside the trampoline, which inlines lambda application as a tail
// bounce instead of recursing through here.
func (ev *Evaluator) Apply(proc value.Value, args []value.Value, callSpan span.Span) (value.Value, error) {
	switch p := proc.(type) {
	case *value.Native:
		if !p.Arity.Accepts(len(args)) {
			return nil, &Error{Kind: ArityMismatch, Span: callSpan, Expected: p.Arity.Min, Got: len(args)}
		}
		return p.Fn(ev, args, callSpan)
	case *value.Lambda:
		newEnv, err := ev.bindLambdaParams(p, args, callSpan)
		if err != nil {
			return nil, err
		}
		var result value.Value = value.Nilv
		for _, b := range p.Body {
			result, err = ev.run(b, newEnv, callSpan)
			if err != nil {
				return nil, err
			}
		}
		return result, nil
	default:
		return nil, &Error{Kind: NotCallable, Span: callSpan, Value: proc}
	}
}

// tailResult is what every special form handler and the application
// path return: either a final Value, or the next (expr, env) pair for
// the trampoline to continue with in tail position.
type tailResult struct {
	Value    value.Value
	TailExpr value.Value
	TailEnv  *value.Env
	TailSpan span.Span
	IsTail   bool
}

func done(v value.Value) (tailResult, error) {
	return tailResult{Value: v}, nil
}

func tailTo(expr value.Value, env *value.Env, sp span.Span) (tailResult, error) {
	return tailResult{TailExpr: expr, TailEnv: env, TailSpan: sp, IsTail: true}, nil
}

// run is the trampoline described in spec §4.4: a loop over
// (current_expr, current_env) that special forms rewrite directly when
// their continuation is in tail position, instead of recursing. Genuine
// Go recursion only happens for non-tail sub-evaluations (an `if`'s
// condition, a function's arguments, ...), each of which pushes its own
// frame so GC can find it.
// sp is the best-known span of expr itself, used only to report
// UndefinedSymbol against the symbol's own originating token. Every
// caller that holds a more precise span than its own (e.g. an argument
// pulled out of a Cons chain) passes that one instead of its own form's.
func (ev *Evaluator) run(expr value.Value, env *value.Env, sp span.Span) (value.Value, error) {
	ev.frames = append(ev.frames, env)
	top := len(ev.frames) - 1
	defer func() { ev.frames = ev.frames[:top] }()

	for {
		ev.safePoint()
		ev.frames[top] = env

		switch x := expr.(type) {
		case *value.Cons:
			head := x.Car
			var tr tailResult
			var err error

			if sym, ok := head.(*value.Symbol); ok {
				if handler, ok := specialForms[sym.Name]; ok {
					tr, err = handler(ev, x, env)
				} else {
					tr, err = ev.evalApplication(x, env)
				}
			} else {
				tr, err = ev.evalApplication(x, env)
			}

			if err != nil {
				return nil, err
			}
			if tr.IsTail {
				expr, env, sp = tr.TailExpr, tr.TailEnv, tr.TailSpan
				continue
			}
			return tr.Value, nil

		case *value.Symbol:
			v, ok := env.Lookup(x.Name)
			if !ok {
				return nil, &Error{Kind: UndefinedSymbol, Name: x.Name, Span: sp}
			}
			return v, nil

		default:
			// Atoms (Nil, Integer, Float, Boolean, String) and procedure
			// values reached via quoting are self-evaluating.
			return expr, nil
		}
	}
}

// evalApplication evaluates the head of a non-special-form Cons. If it
// resolves to a Macro, the (unevaluated) argument forms are substituted
// into the macro body and the expansion is handed back as the next tail
// expression to evaluate in the *caller's* frame, per spec §4.4. If it
// resolves to a Lambda, its final body expression becomes the tail
// continuation in the freshly bound child of its *captured* frame
// (lexical scoping, not dynamic).
func (ev *Evaluator) evalApplication(form *value.Cons, env *value.Env) (tailResult, error) {
	// form.Span is the span of form.Car (every Cons carries its own
	// Car's span), i.e. exactly the head expression's own span.
	headVal, err := ev.run(form.Car, env, form.Span)
	if err != nil {
		return tailResult{}, err
	}

	argForms, argSpans := listToSliceSpans(form.Cdr)

	if macro, ok := headVal.(*value.Macro); ok {
		expansion, err := ev.expandMacro(macro, argForms, form.Span)
		if err != nil {
			return tailResult{}, err
		}
		return tailTo(expansion, env, form.Span)
	}

	mark := len(ev.argStack)
	args := make([]value.Value, 0, len(argForms))
	for i, a := range argForms {
		v, err := ev.run(a, env, argSpans[i])
		if err != nil {
			ev.argStack = ev.argStack[:mark]
			return tailResult{}, err
		}
		args = append(args, v)
		ev.argStack = append(ev.argStack, v)
	}

	switch proc := headVal.(type) {
	case *value.Native:
		if !proc.Arity.Accepts(len(args)) {
			ev.argStack = ev.argStack[:mark]
			return tailResult{}, &Error{Kind: ArityMismatch, Span: form.Span, Expected: proc.Arity.Min, Got: len(args)}
		}
		result, err := proc.Fn(ev, args, form.Span)
		ev.argStack = ev.argStack[:mark]
		if err != nil {
			return tailResult{}, err
		}
		return done(result)

	case *value.Lambda:
		newEnv, err := ev.bindLambdaParams(proc, args, form.Span)
		ev.argStack = ev.argStack[:mark]
		if err != nil {
			return tailResult{}, err
		}
		if len(proc.Body) == 0 {
			return done(value.Nilv)
		}
		// Lambda bodies have no per-statement span (Body is a plain
		// slice); the lambda's own definition-site span is the best
		// available fallback for a bare symbol lookup inside it.
		for i := 0; i < len(proc.Body)-1; i++ {
			if _, err := ev.run(proc.Body[i], newEnv, proc.Span); err != nil {
				return tailResult{}, err
			}
		}
		return tailTo(proc.Body[len(proc.Body)-1], newEnv, proc.Span)

	default:
		ev.argStack = ev.argStack[:mark]
		return tailResult{}, &Error{Kind: NotCallable, Span: form.Span, Value: headVal}
	}
}

func (ev *Evaluator) bindLambdaParams(p *value.Lambda, args []value.Value, callSpan span.Span) (*value.Env, error) {
	if p.Rest == "" {
		if len(args) != len(p.Params) {
			return nil, &Error{Kind: ArityMismatch, Span: callSpan, Expected: len(p.Params), Got: len(args)}
		}
	} else if len(args) < len(p.Params) {
		return nil, &Error{Kind: ArityMismatch, Span: callSpan, Expected: len(p.Params), Got: len(args)}
	}

	newEnv := ev.arena.NewEnv(p.Env)
	for i, name := range p.Params {
		newEnv.Define(name, args[i])
	}
	if p.Rest != "" {
		newEnv.Define(p.Rest, sliceToList(ev, args[len(p.Params):], callSpan))
	}
	return newEnv, nil
}

func (ev *Evaluator) expandMacro(m *value.Macro, argForms []value.Value, callSpan span.Span) (value.Value, error) {
	if m.Rest == "" {
		if len(argForms) != len(m.Params) {
			return nil, &Error{Kind: ArityMismatch, Span: callSpan, Expected: len(m.Params), Got: len(argForms)}
		}
	} else if len(argForms) < len(m.Params) {
		return nil, &Error{Kind: ArityMismatch, Span: callSpan, Expected: len(m.Params), Got: len(argForms)}
	}

	newEnv := ev.arena.NewEnv(m.Env)
	for i, name := range m.Params {
		newEnv.Define(name, argForms[i])
	}
	if m.Rest != "" {
		newEnv.Define(m.Rest, sliceToList(ev, argForms[len(m.Params):], callSpan))
	}

	var result value.Value = value.Nilv
	for _, b := range m.Body {
		v, err := ev.run(b, newEnv, m.Span)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

// listToSlice flattens a proper list into a Go slice. Used to read out
// a special form's operand list and by list-consuming primitives.
// An improper tail is silently dropped; callers that care (none do
// today) would need their own walk.
func listToSlice(v value.Value) []value.Value {
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

// listToSliceSpans is listToSlice paired with each element's own span
// (the Cons cell's Span field, which by construction is the span of
// that cell's own Car), so a caller can report a diagnostic against the
// exact list element instead of the enclosing form.
func listToSliceSpans(v value.Value) ([]value.Value, []span.Span) {
	var out []value.Value
	var spans []span.Span
	for {
		c, ok := v.(*value.Cons)
		if !ok {
			return out, spans
		}
		out = append(out, c.Car)
		spans = append(spans, c.Span)
		v = c.Cdr
	}
}

func sliceToList(ev *Evaluator, vs []value.Value, sp span.Span) value.Value {
	var list value.Value = value.Nilv
	for i := len(vs) - 1; i >= 0; i-- {
		list = ev.arena.NewCons(vs[i], list, sp)
	}
	return list
}
