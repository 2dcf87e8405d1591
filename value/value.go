// Package value defines the tagged Value variant described in spec §3:
// the full set of runtime values the evaluator and reader produce and
// consume. It is grounded on two references: CUE's internal/core/adt,
// which dispatches on a small closed set of value kinds rather than a
// class hierarchy (spec §9 "Polymorphic Value" design note explicitly
// asks for this), and the car/cdr/atom union in
// other_examples/936666af_robpike-lisp__lisp1_5-parse.go.go, Rob Pike's
// own Lisp 1.5, cross-checked for how an idiomatic Go pair type holds
// its two slots.
//
// Three of these types — Cons, Env, Foreign — are GC-managed: they carry
// bookkeeping fields (mark bit, arena link) that only package heap is
// meant to touch. Exported accessors here are stable API; the
// GC* fields are exported only because Go has no "friend package"
// mechanism, not because callers should write to them.
package value

import "github.com/schemecore/sch/internal/span"

// Kind identifies which case of the tagged Value variant a value is.
type Kind int

const (
	KindNil Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindString
	KindSymbol
	KindCons
	KindProcedure
	KindForeign
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindCons:
		return "cons"
	case KindProcedure:
		return "procedure"
	case KindForeign:
		return "foreign"
	default:
		return "unknown"
	}
}

// Value is implemented by every case of the tagged variant.
type Value interface {
	Kind() Kind
}

// Nil is the empty list. It is a singleton: every Nil anywhere in the
// system is the package-level Nilv, so identity comparison is just
// pointer equality.
type nilType struct{}

func (nilType) Kind() Kind { return KindNil }

// Nilv is the sole Nil value, equal to itself by identity per spec §3.
var Nilv Value = nilType{}

// IsNil reports whether v is the empty list.
func IsNil(v Value) bool {
	_, ok := v.(nilType)
	return ok
}

// Integer is a signed 64-bit integer value.
type Integer int64

func (Integer) Kind() Kind { return KindInteger }

// Float is an IEEE-754 64-bit floating point value.
type Float float64

func (Float) Kind() Kind { return KindFloat }

// Boolean is one of the two singleton truth values.
type Boolean bool

func (Boolean) Kind() Kind { return KindBoolean }

// True and False are the two Boolean singletons, #t and #f.
const (
	True  Boolean = true
	False Boolean = false
)

// Truthy reports whether v counts as true in an `if`/`cond`/`and`/`or`
// test: #f is the sole false value (spec §4.4), everything else —
// including Nilv — is truthy.
func Truthy(v Value) bool {
	b, ok := v.(Boolean)
	return !ok || bool(b)
}

// String is an immutable UTF-8 string value.
type String string

func (String) Kind() Kind { return KindString }

// Symbol is an interned name. Symbols compare by identity after
// interning (spec §3 invariant: `(eq? 'a 'a) = #t`); package heap owns
// the intern table and is the only place *Symbol values are minted,
// except for Gensym's deliberately uninterned symbols.
type Symbol struct {
	Name string
}

func (*Symbol) Kind() Kind { return KindSymbol }

// Cons is a heap-allocated pair. It is GC-managed by package heap: the
// GCMarked/GCNext fields are exported only so heap (a sibling package)
// can flip the mark bit and relink the arena's object list during
// mark-sweep; no other package should read or write them.
type Cons struct {
	Car, Cdr Value
	Span     span.Span // span of this cell's own Car (its leading token), for error reporting

	GCMarked bool
	GCNext   *Cons
}

func (*Cons) Kind() Kind { return KindCons }

// Env is a lexical scope frame: a mapping from symbol name to value,
// plus an optional parent. Closures capture an *Env; `let`/`define`
// create new ones. Like Cons, it is GC-managed by package heap.
type Env struct {
	Parent *Env
	Vars   map[string]Value

	GCMarked bool
	GCNext   *Env
}

// NewEnv is a convenience constructor for environments that do not need
// to be tracked by an arena (e.g. throwaway scopes in tests). Evaluator
// code that wants its frames garbage-collected must go through
// heap.Arena.NewEnv instead.
func NewEnv(parent *Env) *Env {
	return &Env{Parent: parent, Vars: make(map[string]Value)}
}

// Lookup walks the scope chain outward from e looking for name.
func (e *Env) Lookup(name string) (Value, bool) {
	for f := e; f != nil; f = f.Parent {
		if v, ok := f.Vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Define binds name in e's own frame, shadowing any outer binding.
func (e *Env) Define(name string, v Value) {
	e.Vars[name] = v
}

// Set rebinds an existing name in the nearest enclosing frame that
// defines it. It reports false if name is unbound anywhere in the
// chain, matching spec §4.4's `set!` semantics.
func (e *Env) Set(name string, v Value) bool {
	for f := e; f != nil; f = f.Parent {
		if _, ok := f.Vars[name]; ok {
			f.Vars[name] = v
			return true
		}
	}
	return false
}

// Arity describes how many arguments a Native procedure accepts.
type Arity struct {
	Min      int
	Variadic bool
}

// Accepts reports whether n arguments satisfy the arity.
func (a Arity) Accepts(n int) bool {
	if n < a.Min {
		return false
	}
	return a.Variadic || n == a.Min
}

// NativeFn is the signature every host-registered procedure implements,
// per spec §6's native procedure contract: the evaluator, the already
// evaluated arguments, and the call site's span for error reporting.
type NativeFn func(ev Evaluator, args []Value, callSpan span.Span) (Value, error)

// Evaluator is the minimal surface a native procedure needs from the
// evaluator that is calling it (heap access for allocation, recursive
// evaluation for higher-order primitives like map/apply-style hosts).
// It is defined here, rather than imported from package eval, to avoid
// value <-> eval import cycles — eval.Evaluator satisfies it.
type Evaluator interface {
	Apply(proc Value, args []Value, callSpan span.Span) (Value, error)
	NewCons(car, cdr Value, sp span.Span) *Cons
	NewEnv(parent *Env) *Env
}

// Native is a host-registered procedure: a Go function pointer plus an
// arity descriptor. It is not GC-managed — it holds no captured
// environment and can't participate in a reference cycle.
type Native struct {
	Name  string
	Fn    NativeFn
	Arity Arity
}

func (*Native) Kind() Kind { return KindProcedure }

// Lambda is a user-defined procedure: a parameter list, a captured
// environment, and a body. It is an ordinary Go-heap value (Go's own GC
// reclaims it once unreachable); what keeps its captured Env alive is
// the mark-sweep pass in package heap walking into Env whenever it
// marks a Lambda it finds reachable, per spec §4.3's mark traversal
// rule for "a Lambda/Macro value".
type Lambda struct {
	Name   string // empty for anonymous lambdas
	Params []string
	Rest   string // "" if no rest parameter
	Body   []Value
	Env    *Env
	Span   span.Span // definition site: the fallback span for an undefined bare symbol in the body, never used for arity-mismatch errors (spec §8 property 7 wants the *call* site's span)
}

func (*Lambda) Kind() Kind { return KindProcedure }

// Macro has the same shape as Lambda but its body is expanded, not
// applied: argument expressions reach it unevaluated, and the expansion
// is evaluated again in the caller's frame.
type Macro struct {
	Name   string
	Params []string
	Rest   string
	Body   []Value
	Env    *Env
	Span   span.Span
}

func (*Macro) Kind() Kind { return KindProcedure }

// Foreign is an opaque host object exposed to scripts under a type tag,
// with optional trace (for GC reachability of values the host object
// references) and drop (destructor) hooks. GC-managed by package heap.
type Foreign struct {
	TypeTag string
	Data    any

	trace func(*Foreign) []Value
	drop  func(*Foreign)

	GCMarked bool
	GCNext   *Foreign
}

func (*Foreign) Kind() Kind { return KindForeign }

// NewForeign constructs a Foreign value with its trace/drop hooks bound.
// Only package heap should call this, since the result still needs to
// be linked into the arena's object list before it participates in GC.
func NewForeign(typeTag string, data any, trace func(*Foreign) []Value, drop func(*Foreign)) *Foreign {
	return &Foreign{TypeTag: typeTag, Data: data, trace: trace, drop: drop}
}

// Trace returns the values this foreign object's host-supplied trace
// hook reports as reachable, or nil if none was registered.
func (f *Foreign) Trace() []Value {
	if f.trace == nil {
		return nil
	}
	return f.trace(f)
}

// Drop invokes the destructor hook, if any, exactly once during sweep.
func (f *Foreign) Drop() {
	if f.drop != nil {
		f.drop(f)
	}
}
