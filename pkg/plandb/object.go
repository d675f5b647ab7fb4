package plandb

import "fmt"

// ObjectState is the open/closed lifecycle of an Object (§3).
type ObjectState int

const (
	Incomplete ObjectState = iota
	Complete
)

// OrderingChoice names one way to insert token into an object's ordering:
// committing it via Obj.Constrain(Pred, Succ, true) places Token on Obj in
// that slot. Object (unordered) only ever offers the degenerate self-pair;
// Timeline offers one choice per viable insertion point (§4.4). Obj is left
// unset by the Object/Timeline methods themselves; PlanDatabase.
// GetOrderingChoices fills it in with the ObjectBehavior handle it called
// through, since that is the only place already holding it by Key.
type OrderingChoice struct {
	Obj        ObjectBehavior
	Pred, Succ *Token
}

// ObjectBehavior is the capability interface every object variant
// implements, replacing the source's Object -> Timeline -> Resource
// inheritance chain (DESIGN NOTES: "deep inheritance ... replace with a
// capability interface ... default behavior lives in a base implementation
// composed by delegation"). *Object implements the unordered default;
// *Timeline embeds *Object and overrides the ordering-sensitive methods,
// which Go dispatches correctly through the interface since Timeline's own
// method set shadows the promoted ones.
type ObjectBehavior interface {
	Entity
	Base() *Object
	GetOrderingChoices(token *Token, limit int) []OrderingChoice
	Constrain(predecessor, successor *Token, isExplicit bool) error
	Free(predecessor, successor *Token, isExplicit bool) error
	RemoveToken(token *Token) error
	HasTokensToOrder() bool
	GetTokensToOrder() []*Token
}

// Object is the base class (§4.3): token attachment and precedence-
// constraint bookkeeping, with "no ordering required beyond assignment"
// semantics (GetOrderingChoices returns the self-pair).
type Object struct {
	entityBase
	db       *PlanDatabase
	TypeName string
	Name     string
	state    ObjectState

	parent     *Object
	components []*Object
	variables  []*Variable

	tokens map[Key]*Token

	// precedence bookkeeping, grounded on Object.cc's three indexes; see
	// precedence.go / DESIGN.md for why the encoded-int key pair became an
	// exact struct key.
	byPair     map[precedenceKey]*PrecedenceConstraint
	propByPair map[precedenceKey]Propagator
	byToken    map[Key][]*PrecedenceConstraint
	eqBound    map[Key]*equalityToObjectPropagator
	explicit   map[precedenceKey]bool
	explicitBy map[Key]bool // degenerate self-order (predecessor == successor)
}

// NewObject creates an open (Incomplete) object of typeName/name, registered
// in db's registry.
func NewObject(db *PlanDatabase, typeName, name string) *Object {
	k := db.engine.registry.allocate()
	o := &Object{
		entityBase: entityBase{key: k, kind: KindObject},
		db:         db,
		TypeName:   typeName,
		Name:       name,
		tokens:     make(map[Key]*Token),
		byPair:     make(map[precedenceKey]*PrecedenceConstraint),
		propByPair: make(map[precedenceKey]Propagator),
		byToken:    make(map[Key][]*PrecedenceConstraint),
		eqBound:    make(map[Key]*equalityToObjectPropagator),
		explicit:   make(map[precedenceKey]bool),
		explicitBy: make(map[Key]bool),
	}
	db.engine.registry.register(o)
	return o
}

func (o *Object) Base() *Object { return o }

// Close transitions the object from Incomplete to Complete. Per §4.2, the
// plan database additionally closes every still-open object-type variable
// of this object's type when the database itself closes.
func (o *Object) Close() error {
	if o.state == Complete {
		return &ModellingError{Msg: fmt.Sprintf("object %q already complete", o.Name)}
	}
	o.state = Complete
	return nil
}

func (o *Object) IsComplete() bool { return o.state == Complete }

// AddVariable registers a member variable, only while the object is still
// Incomplete.
func (o *Object) AddVariable(v *Variable) error {
	if o.state == Complete {
		return &ModellingError{Msg: "cannot add a variable after an object is closed"}
	}
	o.variables = append(o.variables, v)
	return nil
}

// AddComponent registers a child object (composition).
func (o *Object) AddComponent(child *Object) {
	child.parent = o
	o.components = append(o.components, child)
}

// addToken is the passive indexing step of §4.3: "once COMPLETE, an object
// may receive a token. Reception is a passive indexing operation; it does
// not imply the token is assigned." Assignment still requires Constrain.
func (o *Object) addToken(t *Token) error {
	if o.state != Complete {
		return &ModellingError{Msg: "cannot add a token to an incomplete object"}
	}
	o.tokens[t.key] = t
	return nil
}

func (o *Object) Tokens() []*Token {
	out := make([]*Token, 0, len(o.tokens))
	for _, t := range o.tokens {
		out = append(out, t)
	}
	return out
}

// isConstrainedToThisObject reports whether any precedence or equality
// binding has ever been posted for token on this object, mirroring
// Object::isConstrainedToThisObject's m_constraintsByTokenKey lookup.
func (o *Object) isConstrainedToThisObject(t *Token) bool {
	_, hasEq := o.eqBound[t.key]
	return hasEq || len(o.byToken[t.key]) > 0
}

func (o *Object) hasExplicitConstraint(t *Token) bool {
	if o.explicitBy[t.key] {
		return true
	}
	for _, pc := range o.byToken[t.key] {
		if o.explicit[keyOf(pc.Predecessor, pc.Successor)] {
			return true
		}
	}
	return false
}

// constrainToThisObjectAsNeeded posts the implicit object-assignment
// equality constraint the first time a token touches this object, per
// §4.3 step 1 / Object::constrainToThisObjectAsNeeded.
func (o *Object) constrainToThisObjectAsNeeded(t *Token) {
	if _, already := o.eqBound[t.key]; already {
		return
	}
	p := &equalityToObjectPropagator{objectVar: t.ObjectVar, objectKey: o.key}
	o.eqBound[t.key] = p
	o.db.engine.AddPropagator(p)
}

// getPrecedenceConstraint returns the constraint from predecessor to
// successor on this object, if any.
func (o *Object) getPrecedenceConstraint(predecessor, successor *Token) (*PrecedenceConstraint, bool) {
	pc, ok := o.byPair[keyOf(predecessor, successor)]
	return pc, ok
}

func (o *Object) isConstrainedToPrecede(predecessor, successor *Token) bool {
	_, ok := o.getPrecedenceConstraint(predecessor, successor)
	return ok
}

// Constrain is the pivotal operation of §4.3.
func (o *Object) Constrain(predecessor, successor *Token, isExplicit bool) error {
	if !predecessor.IsActive() {
		return &ModellingError{Msg: "predecessor must be ACTIVE to constrain"}
	}
	if !successor.IsActive() {
		return &ModellingError{Msg: "successor must be ACTIVE to constrain"}
	}
	if o.isConstrainedToPrecede(predecessor, successor) {
		return &ModellingError{Msg: "tokens are already constrained in this direction"}
	}
	if o.db.engine.ProvenInconsistent() {
		return &ModellingError{Msg: "cannot constrain when the database is already inconsistent"}
	}

	o.constrainToThisObjectAsNeeded(predecessor)

	k := keyOf(predecessor, successor)
	if predecessor.key != successor.key {
		o.constrainToThisObjectAsNeeded(successor)

		ck := o.db.engine.registry.allocate()
		pc := &PrecedenceConstraint{
			entityBase:  entityBase{key: ck, kind: KindConstraint},
			Predecessor: predecessor,
			Successor:   successor,
			Explicit:    isExplicit,
		}
		o.db.engine.registry.register(pc)
		o.byPair[k] = pc
		o.byToken[predecessor.key] = append(o.byToken[predecessor.key], pc)
		o.byToken[successor.key] = append(o.byToken[successor.key], pc)

		prop := &precedencePropagator{pc: pc}
		o.propByPair[k] = prop
		o.db.engine.AddPropagator(prop)
		o.db.advisor.RegisterPrecedence(predecessor.End, successor.Start)
	}

	if isExplicit {
		if predecessor.key != successor.key {
			o.explicit[k] = true
		} else {
			o.explicitBy[predecessor.key] = true
		}
	}

	o.db.publishConstrained(o, predecessor, successor)
	return nil
}

// Free is the inverse of Constrain (§4.3).
func (o *Object) Free(predecessor, successor *Token, isExplicit bool) error {
	if o.db.engine.registry.IsPurging() {
		return &ModellingError{Msg: "cannot free while purging"}
	}
	if predecessor.key == successor.key {
		if isExplicit {
			if !o.explicitBy[predecessor.key] {
				return &ModellingError{Msg: "may only explicitly free an explicit self-order"}
			}
			delete(o.explicitBy, predecessor.key)
		}
		o.clean(predecessor)
		o.db.publishFreed(o, predecessor, successor)
		return nil
	}

	pc, ok := o.getPrecedenceConstraint(predecessor, successor)
	if !ok {
		return &ModellingError{Msg: "no precedence constraint to free"}
	}
	k := keyOf(predecessor, successor)
	if isExplicit {
		delete(o.explicit, k)
	}

	if o.hasExplicitConstraint(predecessor) && o.hasExplicitConstraint(successor) {
		return nil
	}

	o.removePrecedence(pc)
	o.db.advisor.UnregisterPrecedence(predecessor.End, successor.Start)

	o.clean(predecessor)
	o.clean(successor)

	o.db.publishFreed(o, predecessor, successor)
	return nil
}

func (o *Object) removePrecedence(pc *PrecedenceConstraint) {
	k := keyOf(pc.Predecessor, pc.Successor)
	delete(o.byPair, k)
	o.byToken[pc.Predecessor.key] = removePC(o.byToken[pc.Predecessor.key], pc)
	o.byToken[pc.Successor.key] = removePC(o.byToken[pc.Successor.key], pc)
	if prop, ok := o.propByPair[k]; ok {
		o.db.engine.RemovePropagator(prop)
		delete(o.propByPair, k)
	}
	o.db.engine.registry.discard(pc.key)
}

func removePC(list []*PrecedenceConstraint, target *PrecedenceConstraint) []*PrecedenceConstraint {
	out := list[:0]
	for _, pc := range list {
		if pc != target {
			out = append(out, pc)
		}
	}
	return out
}

// clean discards the implicit object-assignment constraint for token if
// exactly zero precedence constraints remain on it and it carries no
// explicit marker, per §4.3's "clean is the subtle point" note.
func (o *Object) clean(t *Token) {
	if len(o.byToken[t.key]) != 0 {
		return
	}
	if o.hasExplicitConstraint(t) {
		return
	}
	p, ok := o.eqBound[t.key]
	if !ok {
		return
	}
	delete(o.eqBound, t.key)
	o.db.engine.RemovePropagator(p)
}

// RemoveToken detaches token from this object: every precedence constraint
// touching it is gathered first (byToken holds two entries per constraint,
// one under each endpoint's key, so a naive single pass would double-free),
// then removed from every index, then discarded (§4.3 token removal).
func (o *Object) RemoveToken(t *Token) error {
	seen := map[precedenceKey]*PrecedenceConstraint{}
	for _, pc := range o.byToken[t.key] {
		seen[keyOf(pc.Predecessor, pc.Successor)] = pc
	}
	for _, pc := range seen {
		o.removePrecedence(pc)
		o.db.advisor.UnregisterPrecedence(pc.Predecessor.End, pc.Successor.Start)
	}
	delete(o.eqBound, t.key)
	delete(o.explicitBy, t.key)
	delete(o.tokens, t.key)
	return nil
}

// GetOrderingChoices for the unordered base object is always the single
// self-pair: "no ordering required beyond assigning to this object."
func (o *Object) GetOrderingChoices(token *Token, limit int) []OrderingChoice {
	if limit <= 0 {
		return nil
	}
	return []OrderingChoice{{Pred: token, Succ: token}}
}

func (o *Object) HasTokensToOrder() bool     { return false }
func (o *Object) GetTokensToOrder() []*Token { return nil }

// equalityToObjectPropagator restricts a token's object variable to a
// single object key — the implicit object-assignment constraint of §4.3
// step 1.
type equalityToObjectPropagator struct {
	objectVar *Variable
	objectKey Key
}

func (p *equalityToObjectPropagator) Variables() []*Variable { return []*Variable{p.objectVar} }

func (p *equalityToObjectPropagator) Propagate(eng *ConstraintEngine) error {
	od, ok := p.objectVar.AsObjectDomain()
	if !ok {
		return nil
	}
	if !od.IsMemberKey(p.objectKey) {
		return &inconsistentDomain{Reason: "object assignment: object no longer in candidate domain"}
	}
	if od.Count() > 1 {
		return eng.restrict(p.objectVar, ObjectDomain{
			EnumDomain: NewEnumDomain(od.universe, []int{int(p.objectKey)}),
			TypeName:   od.TypeName,
		})
	}
	return nil
}

func (p *equalityToObjectPropagator) String() string {
	return fmt.Sprintf("object-var#%d == object#%d", p.objectVar.key, p.objectKey)
}
