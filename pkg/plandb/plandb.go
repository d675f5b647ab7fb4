package plandb

import "sort"

// PlanDatabase is the central index over objects, tokens, and global
// variables (§4.2): the constraint engine and temporal advisor it wraps own
// the actual propagation state, while PlanDatabase answers the structural
// queries the flaw pipeline and solver need (which tokens still need
// ordering, which tokens could merge, what choices an insertion offers).
// External callers mutate it through DbClient (dbclient.go); the solver's
// decision points call the state transitions of lifecycle.go on
// PlanDatabase directly.
type PlanDatabase struct {
	registry *Registry
	engine   *ConstraintEngine
	advisor  TemporalAdvisor
	events   *eventBus

	objects       map[Key]ObjectBehavior
	objectsByType map[string][]ObjectBehavior
	typeOpen      map[string]bool
	objectVars    map[string][]*Variable // object-type variables created so far, by type name

	tokens map[Key]*Token

	globals map[string]*Variable

	tick   uint64
	closed bool
}

// NewPlanDatabase creates an empty database. useSTN selects the exact
// STN-backed temporal advisor (§4.1); when false the cheaper bound-
// arithmetic-only DefaultAdvisor is used instead.
func NewPlanDatabase(useSTN bool) *PlanDatabase {
	reg := NewRegistry()
	eng := NewConstraintEngine(reg)
	db := &PlanDatabase{
		registry:      reg,
		engine:        eng,
		events:        &eventBus{},
		objects:       make(map[Key]ObjectBehavior),
		objectsByType: make(map[string][]ObjectBehavior),
		typeOpen:      make(map[string]bool),
		objectVars:    make(map[string][]*Variable),
		tokens:        make(map[Key]*Token),
		globals:       make(map[string]*Variable),
	}
	if useSTN {
		db.advisor = NewSTNAdvisor(eng)
	} else {
		db.advisor = NewDefaultAdvisor(eng)
	}
	return db
}

func (db *PlanDatabase) Engine() *ConstraintEngine { return db.engine }
func (db *PlanDatabase) Advisor() TemporalAdvisor  { return db.advisor }
func (db *PlanDatabase) Tick() uint64              { return db.tick }

// AddObject indexes ob by key and type. Every object/timeline must be added
// before any token can be assigned to it.
func (db *PlanDatabase) AddObject(ob ObjectBehavior) error {
	base := ob.Base()
	if _, exists := db.objects[base.Key()]; exists {
		return &ModellingError{Msg: "object already added to the database"}
	}
	db.objects[base.Key()] = ob
	db.objectsByType[base.TypeName] = append(db.objectsByType[base.TypeName], ob)
	if _, seen := db.typeOpen[base.TypeName]; !seen {
		db.typeOpen[base.TypeName] = true
	}
	return nil
}

// ObjectsByType returns every object of typeName added so far, in addition
// order.
func (db *PlanDatabase) ObjectsByType(typeName string) []ObjectBehavior {
	return append([]ObjectBehavior(nil), db.objectsByType[typeName]...)
}

// Object looks up an object by key.
func (db *PlanDatabase) Object(key Key) (ObjectBehavior, bool) {
	ob, ok := db.objects[key]
	return ob, ok
}

// CloseObjectType freezes typeName: MakeObjectVariable will build closed
// ObjectDomains for it from now on, and every already-open object variable
// of this type is widened to every current member of the type, then closed
// — §4.2's "the plan database additionally closes every still-open
// object-type variable of this object's type when the database itself
// closes" generalized to a per-type operation callers may also invoke
// directly.
func (db *PlanDatabase) CloseObjectType(typeName string) error {
	if !db.typeOpen[typeName] {
		return nil
	}
	members := db.objectKeysByType(typeName)
	for _, v := range db.objectVars[typeName] {
		if _, ok := v.AsObjectDomain(); !ok {
			continue
		}
		widened := NewObjectDomain(typeName, int(db.registry.Peek()), members)
		widened.EnumDomain = widened.EnumDomain.Close()
		if err := db.engine.Relax(v, widened); err != nil {
			return err
		}
	}
	db.typeOpen[typeName] = false
	return nil
}

// Close freezes every object type still open. Called once modelling is
// complete and the database enters active/search use.
func (db *PlanDatabase) Close() error {
	if db.closed {
		return &ModellingError{Msg: "plan database already closed"}
	}
	for typeName := range db.typeOpen {
		if err := db.CloseObjectType(typeName); err != nil {
			return err
		}
	}
	db.closed = true
	return nil
}

func (db *PlanDatabase) objectKeysByType(typeName string) []Key {
	obs := db.objectsByType[typeName]
	keys := make([]Key, len(obs))
	for i, ob := range obs {
		keys[i] = ob.Base().Key()
	}
	return keys
}

// MakeObjectVariable creates a token's object variable over the current
// (and, while the type stays open, future) members of typeName (§4.2).
func (db *PlanDatabase) MakeObjectVariable(typeName string, name string, tmp bool) *Variable {
	members := db.objectKeysByType(typeName)
	universe := int(db.registry.Peek())
	if universe < 1 {
		universe = 1
	}
	var dom ObjectDomain
	if db.typeOpen[typeName] {
		dom = NewOpenObjectDomain(typeName, universe, members)
	} else {
		dom = NewObjectDomain(typeName, universe, members)
	}
	v := db.engine.NewVariable(dom, name, tmp, false)
	db.objectVars[typeName] = append(db.objectVars[typeName], v)
	return v
}

// GlobalVariable returns (creating if necessary via makeFn) a named
// variable shared across the whole database, e.g. a resource-level level
// variable. makeFn is only invoked on first access.
func (db *PlanDatabase) GlobalVariable(name string, makeFn func() *Variable) *Variable {
	if v, ok := db.globals[name]; ok {
		return v
	}
	v := makeFn()
	db.globals[name] = v
	return v
}

func (db *PlanDatabase) registerToken(t *Token) {
	db.tokens[t.key] = t
}

// Token looks up a token by key.
func (db *PlanDatabase) Token(key Key) (*Token, bool) {
	t, ok := db.tokens[key]
	return t, ok
}

// Tokens returns every token the database currently tracks (any state,
// including terminated ones still held for path lookups).
func (db *PlanDatabase) Tokens() []*Token {
	out := make([]*Token, 0, len(db.tokens))
	for _, t := range db.tokens {
		out = append(out, t)
	}
	return out
}

// ActiveTokens returns every token currently in the ACTIVE state.
func (db *PlanDatabase) ActiveTokens() []*Token {
	var out []*Token
	for _, t := range db.tokens {
		if t.IsActive() {
			out = append(out, t)
		}
	}
	return out
}

// GetCompatibleTokens returns every ACTIVE token other than candidate whose
// predicate matches and whose object/start/end/duration/parameter domains
// all still intersect candidate's — the merge-eligibility test of §4.2
// (the token's own state variable is deliberately excluded from the
// comparison, per spec).
func (db *PlanDatabase) GetCompatibleTokens(candidate *Token) []*Token {
	var out []*Token
	for _, t := range db.tokens {
		if t == candidate || !t.IsActive() || t.Predicate != candidate.Predicate {
			continue
		}
		if !domainsOverlap(t.ObjectVar.Domain(), candidate.ObjectVar.Domain()) {
			continue
		}
		if !domainsOverlap(t.Start.Domain(), candidate.Start.Domain()) {
			continue
		}
		if !domainsOverlap(t.End.Domain(), candidate.End.Domain()) {
			continue
		}
		if !domainsOverlap(t.Duration.Domain(), candidate.Duration.Domain()) {
			continue
		}
		compatible := true
		for _, name := range candidate.ParameterNames() {
			cv, ok := candidate.Parameters[name]
			if !ok {
				continue
			}
			tv, ok := t.Parameters[name]
			if !ok || !domainsOverlap(tv.Domain(), cv.Domain()) {
				compatible = false
				break
			}
		}
		if compatible {
			out = append(out, t)
		}
	}
	return out
}

// GetOrderingChoices delegates to ob's own GetOrderingChoices and fills in
// the Obj field of every result, since PlanDatabase is the one place that
// already holds ob as an ObjectBehavior handle.
func (db *PlanDatabase) GetOrderingChoices(ob ObjectBehavior, token *Token, limit int) []OrderingChoice {
	choices := ob.GetOrderingChoices(token, limit)
	for i := range choices {
		choices[i].Obj = ob
	}
	return choices
}

// OrderingChoicesForToken asks every object in token's object variable's
// derived domain for its ordering choices, concatenates, and truncates to
// limit — the plan-database-level get_ordering_choices of §4.2, one layer
// up from the single-object GetOrderingChoices above. Choices are sorted by
// object key first (ThreatDecisionPoint's candidate ordering, §4.5).
func (db *PlanDatabase) OrderingChoicesForToken(token *Token, limit int) []OrderingChoice {
	od, ok := token.ObjectVar.AsObjectDomain()
	if !ok {
		return nil
	}
	keys := od.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var out []OrderingChoice
	for _, key := range keys {
		if len(out) >= limit {
			break
		}
		ob, ok := db.Object(key)
		if !ok {
			continue
		}
		out = append(out, db.GetOrderingChoices(ob, token, limit-len(out))...)
	}
	return out
}

// domainsOverlap reports whether a and b (expected to be the same concrete
// Domain variant) have a non-empty intersection.
func domainsOverlap(a, b Domain) bool {
	switch av := a.(type) {
	case IntervalDomain:
		bv, ok := b.(IntervalDomain)
		return ok && !av.Intersect(bv).IsEmpty()
	case ObjectDomain:
		bv, ok := b.(ObjectDomain)
		return ok && !av.Intersect(bv.EnumDomain).IsEmpty()
	case EnumDomain:
		bv, ok := b.(EnumDomain)
		return ok && !av.Intersect(bv).IsEmpty()
	default:
		return false
	}
}

// AdvanceTick moves the database's logical clock forward by one. The clock
// stamps transactions and new tokens; nothing in this package advances it,
// and Archive takes its horizon as an argument instead of reading it.
func (db *PlanDatabase) AdvanceTick() { db.tick++ }

// Archive discards bookkeeping for every token whose temporal extent has
// fully passed uptoTick, except one still supporting a MERGED slave whose
// own end.ub is still beyond uptoTick. This resolves SPEC_FULL.md §9 Open
// Question 2 conservatively: a token archive() would otherwise discard
// stays reachable for as long as something still active points at it.
// Per §4.2, order of removal is by earliest start ascending. Returns the
// tokens actually archived, in that order.
func (db *PlanDatabase) Archive(uptoTick int) []*Token {
	var candidates []*Token
	for _, t := range db.tokens {
		if t.terminated {
			continue
		}
		switch t.State {
		case Active, Inactive:
			if varInterval(t.End).Ub > uptoTick {
				continue
			}
		case Rejected:
			// no temporal commitment was ever made; always archivable.
		default:
			continue
		}
		if db.hasLiveMergedSlave(t, uptoTick) {
			continue
		}
		candidates = append(candidates, t)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return varInterval(candidates[i].Start).Lb < varInterval(candidates[j].Start).Lb
	})

	archived := make([]*Token, 0, len(candidates))
	for _, t := range candidates {
		t.terminated = true
		archived = append(archived, t)
		db.publishToken(EventTokenTerminated, t)
	}
	return archived
}

// hasLiveMergedSlave reports whether any token currently MERGED onto active
// (via Token.ActiveToken, not the Master/Slave subgoal hierarchy) still has
// end.ub beyond uptoTick.
func (db *PlanDatabase) hasLiveMergedSlave(active *Token, uptoTick int) bool {
	for _, t := range db.tokens {
		if t.State == Merged && t.ActiveToken == active && varInterval(t.End).Ub > uptoTick {
			return true
		}
	}
	return false
}
