package value_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/schemecore/sch/value"
)

func TestTruthyOnlyFalseIsFalsy(t *testing.T) {
	qt.Assert(t, qt.IsFalse(value.Truthy(value.False)))
	qt.Assert(t, qt.IsTrue(value.Truthy(value.True)))
	qt.Assert(t, qt.IsTrue(value.Truthy(value.Nilv)))
	qt.Assert(t, qt.IsTrue(value.Truthy(value.Integer(0))))
	qt.Assert(t, qt.IsTrue(value.Truthy(value.String(""))))
}

func TestNilSingleton(t *testing.T) {
	qt.Assert(t, qt.IsTrue(value.IsNil(value.Nilv)))
	qt.Assert(t, qt.IsFalse(value.IsNil(value.Integer(0))))
}

func TestEnvLookupSetDefine(t *testing.T) {
	parent := value.NewEnv(nil)
	parent.Define("x", value.Integer(1))
	child := value.NewEnv(parent)

	v, ok := child.Lookup("x")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(v, value.Value(value.Integer(1))))

	qt.Assert(t, qt.IsTrue(child.Set("x", value.Integer(2))))
	v, _ = parent.Lookup("x")
	qt.Assert(t, qt.Equals(v, value.Value(value.Integer(2))))

	qt.Assert(t, qt.IsFalse(child.Set("never-defined", value.Integer(3))))
}

func TestArityAccepts(t *testing.T) {
	fixed := value.Arity{Min: 2}
	qt.Assert(t, qt.IsFalse(fixed.Accepts(1)))
	qt.Assert(t, qt.IsTrue(fixed.Accepts(2)))
	qt.Assert(t, qt.IsFalse(fixed.Accepts(3)))

	variadic := value.Arity{Min: 1, Variadic: true}
	qt.Assert(t, qt.IsFalse(variadic.Accepts(0)))
	qt.Assert(t, qt.IsTrue(variadic.Accepts(1)))
	qt.Assert(t, qt.IsTrue(variadic.Accepts(100)))
}

func TestForeignTraceAndDrop(t *testing.T) {
	var dropped bool
	f := value.NewForeign("handle", 42, func(*value.Foreign) []value.Value {
		return []value.Value{value.Integer(1)}
	}, func(*value.Foreign) { dropped = true })

	qt.Assert(t, qt.HasLen(f.Trace(), 1))
	f.Drop()
	qt.Assert(t, qt.IsTrue(dropped))
}
