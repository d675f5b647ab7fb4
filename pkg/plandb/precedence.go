package plandb

// PrecedenceConstraint is the binary constraint predecessor.end <=
// successor.start (§3), tracked both by the constraint engine (as a
// Propagator) and by the Object that owns it (keyed by the ordered pair of
// token keys, §4.3).
type PrecedenceConstraint struct {
	entityBase
	Predecessor, Successor *Token
	Explicit               bool
}

// precedenceKey is the exact (Key, Key) tuple key an Object uses to index
// its precedence constraints. SPEC_FULL.md §9 resolves the source's
// colliding `(pred<<16) XOR succ` encoding in favor of this exact struct
// key — Go map equality on a two-field struct needs no collision-bucket
// walk at all.
type precedenceKey struct {
	pred, succ Key
}

func keyOf(pred, succ *Token) precedenceKey {
	return precedenceKey{pred: pred.key, succ: succ.key}
}

// precedencePropagator is the Propagator implementation backing a single
// PrecedenceConstraint: predecessor.end.lb raises successor.start.lb and
// successor.start.ub lowers predecessor.end.ub, a simple bounds-consistency
// step sufficient for §4.7's scope
// (the STN handles exactness for advisor queries separately).
type precedencePropagator struct {
	pc *PrecedenceConstraint
}

func (p *precedencePropagator) Variables() []*Variable {
	return []*Variable{p.pc.Predecessor.End, p.pc.Successor.Start}
}

func (p *precedencePropagator) Propagate(eng *ConstraintEngine) error {
	predEnd, _ := p.pc.Predecessor.End.AsInterval()
	succStart, _ := p.pc.Successor.Start.AsInterval()

	// predecessor.end <= successor.start
	if predEnd.Lb > succStart.Ub {
		return &inconsistentDomain{Reason: "precedence: predecessor.end.lb exceeds successor.start.ub"}
	}
	if succStart.Ub < predEnd.Ub {
		if err := eng.restrict(p.pc.Predecessor.End, IntervalDomain{Lb: predEnd.Lb, Ub: succStart.Ub}); err != nil {
			return err
		}
	}
	if succStart.Lb < predEnd.Lb {
		if err := eng.restrict(p.pc.Successor.Start, IntervalDomain{Lb: predEnd.Lb, Ub: succStart.Ub}); err != nil {
			return err
		}
	}
	return nil
}

func (p *precedencePropagator) String() string {
	return p.pc.Predecessor.String() + " precedes " + p.pc.Successor.String()
}
