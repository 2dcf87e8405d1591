package heap

import "github.com/schemecore/sch/value"

// Collect runs a stop-the-world mark-sweep pass using roots as the GC
// roots (spec §4.3 root sources 1-3: global frame, active call-stack
// frames, and in-progress argument stacks — the caller, package eval,
// is responsible for assembling those; root source 4, protected
// handles, is folded in here automatically). It returns updated stats.
//
// Package eval calls this between reductions, at the "safe points" spec
// §4.3 describes, and no native function body calls it directly. A
// native that re-enters the evaluator through Apply reaches those safe
// points inside the nested evaluation, so a collection can run while
// that native is still on the stack.
func (a *Arena) Collect(roots []value.Value, envRoots []*value.Env) Stats {
	for _, r := range roots {
		markValue(r)
	}
	for _, e := range envRoots {
		markEnv(e)
	}
	for _, v := range a.protected {
		markValue(v)
	}

	freedCons := a.sweepCons()
	freedEnvs := a.sweepEnvs()
	freedForeign := a.sweepForeign()

	a.stats.Collections++
	a.stats.LastFreedCons = freedCons
	a.stats.LastFreedEnvs = freedEnvs
	a.stats.LastFreedForeign = freedForeign

	a.liveSinceGC = a.consCount + a.envCount + a.foreignCount
	if next := a.liveSinceGC * 2; next > a.threshold {
		a.threshold = next
	}
	if a.threshold < defaultThreshold {
		a.threshold = defaultThreshold
	}

	return a.Stats()
}

// markValue marks v and, for the composite cases spec §4.3 names
// (Cons; Lambda/Macro via their captured environment and body; Foreign
// via its trace hook), recurses into what it references. Atomic values
// (Nil, Integer, Float, Boolean, String, Symbol, Native) have no
// children and need no mark bit — they are never arena members.
func markValue(v value.Value) {
	if v == nil {
		return
	}
	switch x := v.(type) {
	case *value.Cons:
		if x.GCMarked {
			return
		}
		x.GCMarked = true
		markValue(x.Car)
		markValue(x.Cdr)
	case *value.Lambda:
		markEnv(x.Env)
		for _, b := range x.Body {
			markValue(b)
		}
	case *value.Macro:
		markEnv(x.Env)
		for _, b := range x.Body {
			markValue(b)
		}
	case *value.Foreign:
		if x.GCMarked {
			return
		}
		x.GCMarked = true
		for _, child := range x.Trace() {
			markValue(child)
		}
	}
}

// markEnv marks e and walks its parent chain, marking every bound
// value along the way. It stops as soon as it reaches a frame already
// marked, which is what makes the cyclic closure/environment graph from
// spec §4.3 ("the environment c... is alive because the lambda is
// alive, and the lambda is alive because it is bound in the global
// frame") terminate instead of looping forever.
func markEnv(e *value.Env) {
	for f := e; f != nil; f = f.Parent {
		if f.GCMarked {
			return
		}
		f.GCMarked = true
		for _, v := range f.Vars {
			markValue(v)
		}
	}
}

func (a *Arena) sweepCons() int {
	var head, tail *value.Cons
	freed := 0
	live := 0
	for c := a.cons; c != nil; {
		next := c.GCNext
		if c.GCMarked {
			c.GCMarked = false
			c.GCNext = nil
			if tail == nil {
				head = c
			} else {
				tail.GCNext = c
			}
			tail = c
			live++
		} else {
			freed++
		}
		c = next
	}
	a.cons = head
	a.consCount = live
	return freed
}

func (a *Arena) sweepEnvs() int {
	var head, tail *value.Env
	freed := 0
	live := 0
	for e := a.envs; e != nil; {
		next := e.GCNext
		if e.GCMarked {
			e.GCMarked = false
			e.GCNext = nil
			if tail == nil {
				head = e
			} else {
				tail.GCNext = e
			}
			tail = e
			live++
		} else {
			freed++
		}
		e = next
	}
	a.envs = head
	a.envCount = live
	return freed
}

func (a *Arena) sweepForeign() int {
	var head, tail *value.Foreign
	freed := 0
	live := 0
	for f := a.foreign; f != nil; {
		next := f.GCNext
		if f.GCMarked {
			f.GCMarked = false
			f.GCNext = nil
			if tail == nil {
				head = f
			} else {
				tail.GCNext = f
			}
			tail = f
			live++
		} else {
			f.Drop()
			freed++
		}
		f = next
	}
	a.foreign = head
	a.foreignCount = live
	return freed
}
