// Package heap owns the GC arena described in spec §4.3: allocation of
// cons cells, environment frames, and foreign values, and the
// mark-sweep collector that reclaims them — including the cyclic
// closure/environment graphs the evaluator creates, which reference
// counting alone cannot free (spec §9). It also owns symbol interning,
// since interning is itself a small permanent arena (spec §3: "Symbols
// compare by identity after interning").
//
// The arena-of-linked-objects-with-a-mark-bit shape is grounded on
// CUE's cue/token.File/FileSet pattern of a registry that owns a
// collection of objects referenced by small handles rather than by
// value, generalized here from "files in a FileSet" to "cons cells,
// frames, and foreign values in an Arena".
package heap

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/josharian/intern"

	"github.com/schemecore/sch/internal/span"
	"github.com/schemecore/sch/value"
)

// Stats reports the arena's object counts, primarily so a host (or a
// test exercising spec §8 invariant 6, "GC reclaims cycles") can observe
// that a collection actually freed something.
type Stats struct {
	LiveCons         int
	LiveEnvs         int
	LiveForeign      int
	Collections      int
	LastFreedCons    int
	LastFreedEnvs    int
	LastFreedForeign int
}

// ForeignType is a host-registered foreign value type: a tag plus
// optional trace (GC reachability) and drop (destructor) hooks.
type ForeignType struct {
	Tag   string
	Trace func(*value.Foreign) []value.Value
	Drop  func(*value.Foreign)
}

// Arena is the evaluator's heap. An Evaluator owns exactly one Arena
// exclusively (spec §5: "An Evaluator instance is not shared across
// threads; it owns its heap exclusively").
type Arena struct {
	cons    *value.Cons
	envs    *value.Env
	foreign *value.Foreign

	consCount, envCount, foreignCount int

	liveSinceGC int
	threshold   int

	interned     map[string]*value.Symbol
	foreignTypes map[string]ForeignType

	protected       map[int]value.Value
	nextProtectedID int

	stats Stats
}

// defaultThreshold is the initial allocation-pressure trigger before the
// first collection; spec §4.3's doubling policy grows it from here.
const defaultThreshold = 512

// NewArena returns an empty arena ready for allocation.
func NewArena() *Arena {
	return &Arena{
		threshold:    defaultThreshold,
		interned:     make(map[string]*value.Symbol),
		foreignTypes: make(map[string]ForeignType),
		protected:    make(map[int]value.Value),
	}
}

// NewCons allocates a cons cell and links it into the arena.
func (a *Arena) NewCons(car, cdr value.Value, sp span.Span) *value.Cons {
	c := &value.Cons{Car: car, Cdr: cdr, Span: sp, GCNext: a.cons}
	a.cons = c
	a.consCount++
	a.liveSinceGC++
	return c
}

// NewEnv allocates a fresh lexical frame with the given parent (nil for
// the global frame) and links it into the arena.
func (a *Arena) NewEnv(parent *value.Env) *value.Env {
	e := &value.Env{Parent: parent, Vars: make(map[string]value.Value), GCNext: a.envs}
	a.envs = e
	a.envCount++
	a.liveSinceGC++
	return e
}

// RegisterForeignType declares a foreign value type under tag, per spec
// §6's register_foreign. trace and drop may be nil.
func (a *Arena) RegisterForeignType(tag string, trace func(*value.Foreign) []value.Value, drop func(*value.Foreign)) {
	a.foreignTypes[tag] = ForeignType{Tag: tag, Trace: trace, Drop: drop}
}

// NewForeign allocates a foreign value of a previously registered type.
func (a *Arena) NewForeign(tag string, data any) (*value.Foreign, error) {
	ft, ok := a.foreignTypes[tag]
	if !ok {
		return nil, fmt.Errorf("heap: foreign type %q is not registered", tag)
	}
	f := value.NewForeign(tag, data, ft.Trace, ft.Drop)
	f.GCNext = a.foreign
	a.foreign = f
	a.foreignCount++
	a.liveSinceGC++
	return f, nil
}

// Intern returns the canonical *Symbol for name, minting one on first
// use. Interned symbols live for the lifetime of the arena — this is
// the permanent part of the heap, matching how every Lisp/Scheme
// implementation treats its symbol table.
func (a *Arena) Intern(name string) *value.Symbol {
	name = intern.String(name)
	if s, ok := a.interned[name]; ok {
		return s
	}
	s := &value.Symbol{Name: name}
	a.interned[name] = s
	return s
}

// Gensym mints a symbol that is never equal, by identity, to any
// interned symbol — including one created by a prior Gensym call with
// the same prefix. It is deliberately kept out of the intern table, per
// spec §9's note that non-hygienic macros need gensym to avoid variable
// capture.
func (a *Arena) Gensym(prefix string) *value.Symbol {
	if prefix == "" {
		prefix = "g"
	}
	return &value.Symbol{Name: fmt.Sprintf("%s~%s", prefix, uuid.New().String()[:8])}
}

// Protect registers v as a GC root independent of the evaluator's call
// stack (spec §4.3 root source 4: "Host-registered protected handles"),
// returning a handle to later Unprotect it. Hosts use this to keep a
// Value alive across calls into native code that stashes it somewhere
// the evaluator's own stack walk can't see.
func (a *Arena) Protect(v value.Value) int {
	id := a.nextProtectedID
	a.nextProtectedID++
	a.protected[id] = v
	return id
}

// Unprotect releases a handle returned by Protect.
func (a *Arena) Unprotect(handle int) {
	delete(a.protected, handle)
}

// Stats returns a snapshot of the arena's object counts.
func (a *Arena) Stats() Stats {
	s := a.stats
	s.LiveCons = a.consCount
	s.LiveEnvs = a.envCount
	s.LiveForeign = a.foreignCount
	return s
}

// ShouldCollect reports whether allocation pressure since the last
// collection has crossed the growth threshold, per spec §4.3's policy:
// "Collect when live set since last collection doubles (configurable)."
func (a *Arena) ShouldCollect() bool {
	return a.liveSinceGC >= a.threshold
}
