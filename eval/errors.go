package eval

import (
	"fmt"

	"github.com/schemecore/sch/internal/span"
	"github.com/schemecore/sch/value"
)

// Kind classifies a runtime error, mirroring spec §7's EvalError
// taxonomy exactly.
type Kind int

const (
	UndefinedSymbol Kind = iota
	NotCallable
	ArityMismatch
	TypeError
	DivByZero
	SetUnbound
	NotASymbol
	Custom
)

func (k Kind) String() string {
	switch k {
	case UndefinedSymbol:
		return "UndefinedSymbol"
	case NotCallable:
		return "NotCallable"
	case ArityMismatch:
		return "ArityMismatch"
	case TypeError:
		return "TypeError"
	case DivByZero:
		return "DivByZero"
	case SetUnbound:
		return "SetUnbound"
	case NotASymbol:
		return "NotASymbol"
	case Custom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// Error is the evaluator's structured failure type. The evaluator never
// panics (spec §4.4); every failure path, including inside native
// procedures, returns one of these. Span is the call site of the
// innermost offending sub-expression (spec §7: "the span of the
// innermost offending sub-expression"); an ArityMismatch never carries
// a definition site — see spec §8 property 7. One case is coarser: an
// UndefinedSymbol raised by a bare symbol that is itself a lambda or
// macro body statement carries that lambda's or macro's definition-site
// span, and one raised by a bare symbol handed straight to Eval/EvalIn
// carries the zero span.
type Error struct {
	Kind Kind
	Msg  string
	Span span.Span

	Name             string
	Expected, Got    int
	ExpectedType     string
	GotType          string
	Value            value.Value
}

func (e *Error) Error() string {
	switch e.Kind {
	case UndefinedSymbol:
		return fmt.Sprintf("undefined symbol: %s", e.Name)
	case NotCallable:
		return fmt.Sprintf("value of kind %s is not callable", e.Value.Kind())
	case ArityMismatch:
		return fmt.Sprintf("arity mismatch: expected %d argument(s), got %d", e.Expected, e.Got)
	case TypeError:
		return fmt.Sprintf("type error: expected %s, got %s", e.ExpectedType, e.GotType)
	case DivByZero:
		return "division by zero"
	case SetUnbound:
		return fmt.Sprintf("set!: unbound symbol: %s", e.Name)
	case NotASymbol:
		return fmt.Sprintf("expected a symbol, got %s", e.GotType)
	case Custom:
		return e.Msg
	default:
		return e.Msg
	}
}

// SpanOf satisfies diagnostics.Spanned.
func (e *Error) SpanOf() span.Span {
	return e.Span
}
