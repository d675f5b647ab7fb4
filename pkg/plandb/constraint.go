package plandb

import (
	"fmt"
)

// VarChangeEvent is published whenever a variable's derived domain changes.
// SPEC_FULL.md §3 lists the seven notification kinds a domain may emit;
// the constraint engine is the single place that actually mutates a
// variable's derived domain, so it is the single place that emits these.
type VarChangeEvent struct {
	Variable *Variable
	Kind     ChangeKind
}

// Propagator is the minimal shape the constraint engine needs from anything
// that restricts variable domains in response to other variables changing.
// It mirrors the teacher's "constraint" abstraction (constraint_store.go's
// Constraint interface) narrowed to what §4.7's equality/precedence/
// domain-restriction propagators actually need: a static variable scope and
// a fixed-point narrowing step.
//
// Propagate must be a pure narrowing function: given the engine's current
// derived domains for its Variables(), it calls engine.restrict for any
// variable whose domain it can narrow, and returns an error only when a
// domain becomes empty (inconsistentDomain). It must never widen a domain.
type Propagator interface {
	// Variables returns the (possibly overlapping) set of variables this
	// propagator restricts or reads.
	Variables() []*Variable
	// Propagate performs one narrowing pass. It may call eng.restrict on any
	// of its Variables(); the engine re-queues it if any of those variables
	// change again due to another propagator, until a fixed point.
	Propagate(eng *ConstraintEngine) error
	// String renders the propagator for diagnostics.
	String() string
}

type trailEntry struct {
	varKey Key
	prior  Domain
}

// ConstraintEngine propagates variable domains to a fixed point and answers
// the "constraint-consistent" gate every higher layer checks before trusting
// a query. It keeps an undo trail (Snapshot/Undo), in the same role as the
// teacher's FDStore.trail/undo(snapshot) (fd.go); Solver's backtracking does
// not use it, and undoes each decision through DecisionPoint.Undo instead.
//
// Concurrency: per SPEC_FULL.md §5 this is used exclusively from the single
// cooperative thread of control; there is no internal locking.
type ConstraintEngine struct {
	registry      *Registry
	vars          map[Key]*Variable
	propagators   []Propagator
	byVar         map[Key][]Propagator
	dirty         []Key
	trail         []trailEntry
	provenBad     bool
	repropagation uint64
	autoPropagate bool
	listeners     []func(VarChangeEvent)
}

// pinPropagator is the propagator form of a Specify commitment: a unary
// constraint holding v at value. Expressing Specify this way (rather than
// restricting the domain directly and forgetting about it) means the
// commitment survives RemovePropagator's reset-and-replay, so freeing an
// unrelated precedence constraint elsewhere never silently erases a
// variable binding the solver already committed to.
type pinPropagator struct {
	v     *Variable
	value int
}

func (p *pinPropagator) Variables() []*Variable { return []*Variable{p.v} }

func (p *pinPropagator) Propagate(eng *ConstraintEngine) error {
	if !domainHasMember(p.v.derived, p.value) {
		return &inconsistentDomain{Reason: fmt.Sprintf("pinned value no longer a member of %s", p.v.Name)}
	}
	if p.v.derived.IsSingleton() {
		return nil
	}
	return eng.restrict(p.v, singletonDomainLike(p.v.derived, p.value))
}

func (p *pinPropagator) String() string {
	return fmt.Sprintf("%s specified == %d", p.v.Name, p.value)
}

// NewConstraintEngine creates an empty engine backed by reg for key
// allocation.
func NewConstraintEngine(reg *Registry) *ConstraintEngine {
	return &ConstraintEngine{
		registry: reg,
		vars:     make(map[Key]*Variable),
		byVar:    make(map[Key][]Propagator),
	}
}

// SetAutoPropagate toggles the auto_propagate flag described in
// SPEC_FULL.md §5: when set, mutating operations call Propagate themselves
// before returning; otherwise the caller (the solver, always) must drive it
// explicitly.
func (e *ConstraintEngine) SetAutoPropagate(v bool) { e.autoPropagate = v }

// OnChange registers a listener invoked synchronously for every domain
// change, in causal mutation order, per SPEC_FULL.md §5's ordering
// guarantee.
func (e *ConstraintEngine) OnChange(f func(VarChangeEvent)) {
	e.listeners = append(e.listeners, f)
}

// NewVariable creates and registers a variable with base domain == derived
// domain == initial.
func (e *ConstraintEngine) NewVariable(initial Domain, name string, tmp, canSpecify bool) *Variable {
	k := e.registry.allocate()
	v := &Variable{
		entityBase: entityBase{key: k, kind: KindVariable},
		Name:       name,
		base:       initial,
		derived:    initial,
		engine:     e,
		tmp:        tmp,
		canSpecify: canSpecify,
	}
	e.registry.register(v)
	e.vars[k] = v
	return v
}

// DeleteVariable removes v from the engine and the registry.
func (e *ConstraintEngine) DeleteVariable(v *Variable) {
	delete(e.vars, v.key)
	delete(e.byVar, v.key)
	e.registry.discard(v.key)
}

// AddPropagator registers p and queues its variables for propagation.
func (e *ConstraintEngine) AddPropagator(p Propagator) {
	e.propagators = append(e.propagators, p)
	for _, v := range p.Variables() {
		e.byVar[v.key] = append(e.byVar[v.key], p)
		e.queue(v.key)
	}
}

func (e *ConstraintEngine) queue(k Key) {
	for _, q := range e.dirty {
		if q == k {
			return
		}
	}
	e.dirty = append(e.dirty, k)
}

// restrict narrows v's derived domain to newDom, recording a trail entry and
// publishing the appropriate VarChangeEvent(s). Propagators call this; it is
// unexported because only propagators running inside Propagate should mutate
// domains — external callers go through Restrict/Specify/Reset below.
func (e *ConstraintEngine) restrict(v *Variable, newDom Domain) error {
	prior := v.derived
	e.trail = append(e.trail, trailEntry{varKey: v.key, prior: prior})
	v.derived = newDom

	if newDom.IsEmpty() {
		e.publish(v, ChangeEmptied)
		return &inconsistentDomain{Reason: fmt.Sprintf("variable %s domain emptied", v.Name)}
	}
	wasSingleton := prior.IsSingleton()
	if newDom.IsSingleton() && !wasSingleton {
		e.publish(v, ChangeSetToSingleton)
	} else {
		e.publish(v, ChangeRestricted)
	}
	for _, p := range e.byVar[v.key] {
		e.queue(v.key)
		_ = p
	}
	for _, other := range e.byVar[v.key] {
		for _, ov := range other.Variables() {
			if ov.key != v.key {
				e.queue(ov.key)
			}
		}
	}
	return nil
}

func (e *ConstraintEngine) publish(v *Variable, kind ChangeKind) {
	evt := VarChangeEvent{Variable: v, Kind: kind}
	for _, l := range e.listeners {
		l(evt)
	}
}

// Restrict is the external entry point for narrowing a variable's domain
// (e.g. posting `precedes` bounds directly), used by DbClient.restrict (§6.1).
func (e *ConstraintEngine) Restrict(v *Variable, newDom Domain) error {
	if cur, ok := v.derived.(IntervalDomain); ok {
		if nd, ok := newDom.(IntervalDomain); ok {
			newDom = cur.Intersect(nd)
		}
	}
	if err := e.restrict(v, newDom); err != nil {
		e.provenBad = true
		return err
	}
	if e.autoPropagate {
		e.Propagate()
	}
	return nil
}

// Relax widens an open enumerated/object domain variable, used when the
// plan database enlarges an open type's object variable (§4.2
// make_object_variable).
func (e *ConstraintEngine) Relax(v *Variable, newDom Domain) error {
	return e.restrict(v, newDom)
}

// Specify forces v's derived domain to the singleton {value}, expressed as a
// registered pinPropagator rather than a one-off restrict so the commitment
// survives a later RemovePropagator's reset-and-replay elsewhere in the
// database. Returns false (no panic) if value is not a member of the current
// derived domain — callers (decision points) treat that as "this choice is
// infeasible" rather than a modelling error.
func (e *ConstraintEngine) Specify(v *Variable, value int) bool {
	if !domainHasMember(v.derived, value) {
		return false
	}
	if v.pin != nil {
		e.RemovePropagator(v.pin)
	}
	p := &pinPropagator{v: v, value: value}
	v.pin = p
	v.specified = true
	e.AddPropagator(p)
	if e.autoPropagate {
		e.Propagate()
	}
	return true
}

// Reset returns v to its base domain, retracting any Specify pin, and clears
// the specified flag.
func (e *ConstraintEngine) Reset(v *Variable) {
	if v.pin != nil {
		e.RemovePropagator(v.pin)
		v.pin = nil
		v.specified = false
		return
	}
	e.trail = append(e.trail, trailEntry{varKey: v.key, prior: v.derived})
	v.derived = v.base
	v.specified = false
	e.queue(v.key)
	if e.autoPropagate {
		e.Propagate()
	}
}

// RemovePropagator retracts p. Propagators narrow only, so there is no
// general inverse for a single step of prior narrowing; instead every
// variable resets to its base domain and the engine replays every remaining
// propagator (including any Specify pins, see pinPropagator) to a fixed
// point. This is more expensive than an incremental retraction would be, but
// it is correct for every caller — Object.Free/clean (an explicit database
// edit) and ThreatDecisionPoint.Undo (search backtracking) alike — without
// the two needing different retraction strategies. See DESIGN.md.
func (e *ConstraintEngine) RemovePropagator(p Propagator) {
	for i, q := range e.propagators {
		if q == p {
			e.propagators = append(e.propagators[:i], e.propagators[i+1:]...)
			break
		}
	}
	for _, v := range p.Variables() {
		list := e.byVar[v.key]
		for i, q := range list {
			if q == p {
				e.byVar[v.key] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
	for _, v := range e.vars {
		v.derived = v.base
		e.queue(v.key)
	}
	e.trail = nil
	e.provenBad = false
	e.Propagate()
}

// domainHasMember and singletonDomainLike bridge the Domain interface to the
// three concrete variants so Specify can work generically.
func domainHasMember(d Domain, value int) bool {
	switch t := d.(type) {
	case IntervalDomain:
		return t.Contains(value)
	case EnumDomain:
		return t.IsMember(value)
	case ObjectDomain:
		return t.IsMember(value)
	default:
		return false
	}
}

func singletonDomainLike(d Domain, value int) Domain {
	switch t := d.(type) {
	case IntervalDomain:
		return IntervalDomain{Lb: value, Ub: value}
	case EnumDomain:
		return NewEnumDomain(t.universe, []int{value})
	case ObjectDomain:
		return ObjectDomain{EnumDomain: NewEnumDomain(t.universe, []int{value}), TypeName: t.TypeName}
	default:
		return d
	}
}

// Propagate runs every dirty propagator to a fixed point. Returns false (and
// leaves ProvenInconsistent true) the moment any propagator reports an
// emptied domain; SPEC_FULL.md §7 specifies propagate() never throws, only
// returns this boolean.
func (e *ConstraintEngine) Propagate() bool {
	if e.provenBad {
		return false
	}
	for len(e.dirty) > 0 {
		k := e.dirty[0]
		e.dirty = e.dirty[1:]
		for _, p := range e.byVar[k] {
			if err := p.Propagate(e); err != nil {
				e.provenBad = true
				e.repropagation++
				return false
			}
		}
	}
	e.repropagation++
	return true
}

// ProvenInconsistent reports whether a Propagate run or a Restrict call has
// emptied a domain. Once true it stays true until Undo or RemovePropagator
// clears it.
func (e *ConstraintEngine) ProvenInconsistent() bool { return e.provenBad }

// ConstraintConsistent is the gate most higher-level queries (ordering
// choices, compatibility) must check before trusting their answer; it
// re-propagates first, matching Timeline::getOrderingChoices in the
// original source always calling propagate() up front.
func (e *ConstraintEngine) ConstraintConsistent() bool {
	return e.Propagate()
}

// MostRecentRepropagation returns the monotonic counter callers use to
// invalidate cached choices (§4.1).
func (e *ConstraintEngine) MostRecentRepropagation() uint64 { return e.repropagation }

// Mark is an opaque trail position returned by Snapshot.
type Mark int

// Snapshot returns the current trail length, to be passed to Undo later.
func (e *ConstraintEngine) Snapshot() Mark { return Mark(len(e.trail)) }

// Undo rewinds every domain change recorded since mark, in reverse order,
// and clears provenInconsistent. RemovePropagator empties the trail, so a
// mark taken before a propagator was removed no longer rewinds anything.
// Solver.undo() does not call this; DecisionPoint.Undo reverses its own
// bookkeeping (index entries, sequence splices) and retracts its
// propagators directly.
func (e *ConstraintEngine) Undo(mark Mark) {
	for len(e.trail) > int(mark) {
		last := e.trail[len(e.trail)-1]
		e.trail = e.trail[:len(e.trail)-1]
		if v, ok := e.vars[last.varKey]; ok {
			v.derived = last.prior
			v.specified = v.specified && last.prior.IsSingleton()
			e.queue(v.key)
		}
	}
	e.provenBad = false
	e.dirty = nil
}
