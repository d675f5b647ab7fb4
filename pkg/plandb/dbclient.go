package plandb

import (
	"strings"

	"github.com/rs/zerolog"
)

// Transaction is one logged DbClient call, per §6.1's "this allows
// transaction logging, replay, and uniform notification". Args is a short
// human-readable rendering, not a machine wire format — §6.3 explicitly
// leaves persisted state format unspecified.
type Transaction struct {
	Tick uint64
	Op   string
	Args string
}

// DbClient is the sole mutation surface of §6.1. Every external agent
// (parser, replay tool) is expected to go through it rather than touch
// PlanDatabase/Object/ConstraintEngine directly; the solver's own decision
// points are the one exception, documented in lifecycle.go, since they are
// part of the core loop rather than an external agent. DbClient itself adds
// nothing but transaction logging and uniform error wrapping on top of the
// methods those packages already expose.
type DbClient struct {
	db         *PlanDatabase
	log        zerolog.Logger
	logEnabled bool
	txns       []Transaction
}

// NewDbClient wraps db. logEnabled turns on transaction logging (§6.1,
// needed for token relative-path addressing); it costs one append per call
// and is normally left on except in tight benchmark loops.
func NewDbClient(db *PlanDatabase, log zerolog.Logger, logEnabled bool) *DbClient {
	return &DbClient{db: db, log: log, logEnabled: logEnabled}
}

func (c *DbClient) record(op, args string) {
	if !c.logEnabled {
		return
	}
	c.txns = append(c.txns, Transaction{Tick: c.db.tick, Op: op, Args: args})
	c.log.Debug().Str("op", op).Str("args", args).Uint64("tick", c.db.tick).Msg("transaction")
}

// Transactions returns every transaction logged so far, in commit order.
func (c *DbClient) Transactions() []Transaction {
	return append([]Transaction(nil), c.txns...)
}

// CreateVariable is create_variable(type, base_domain, name, is_tmp,
// can_be_specified) -> VarId.
func (c *DbClient) CreateVariable(base Domain, name string, isTmp, canSpecify bool) *Variable {
	v := c.db.engine.NewVariable(base, name, isTmp, canSpecify)
	c.record("create_variable", name)
	return v
}

// DeleteVariable is delete_variable(var).
func (c *DbClient) DeleteVariable(v *Variable) {
	c.db.engine.DeleteVariable(v)
	c.record("delete_variable", v.Name)
}

// CreateObject is create_object(type, name[, ctor_args]) -> ObjectId.
// ordered selects Timeline's sequencing behavior over Object's unordered
// default — the core has no separate "ctor_args" grammar of its own, so
// this bool stands in for it.
func (c *DbClient) CreateObject(typeName, name string, ordered bool) (ObjectBehavior, error) {
	var ob ObjectBehavior
	if ordered {
		ob = NewTimeline(c.db, typeName, name)
	} else {
		ob = NewObject(c.db, typeName, name)
	}
	if err := c.db.AddObject(ob); err != nil {
		return nil, err
	}
	c.record("create_object", typeName+"/"+name)
	return ob, nil
}

// DeleteObject is delete_object(obj). The plan database has no incremental
// object removal of its own (objects are expected to persist for the life
// of a run and be reclaimed only via purge's root-set walk); DeleteObject
// exists for the external-interface surface but only ever touches an
// object with no tokens still attached.
func (c *DbClient) DeleteObject(ob ObjectBehavior) error {
	base := ob.Base()
	if len(base.Tokens()) != 0 {
		return &ModellingError{Msg: "cannot delete an object with tokens still attached"}
	}
	delete(c.db.objects, base.Key())
	list := c.db.objectsByType[base.TypeName]
	for i, o := range list {
		if o == ob {
			c.db.objectsByType[base.TypeName] = append(list[:i], list[i+1:]...)
			break
		}
	}
	c.db.registry.discard(base.Key())
	c.record("delete_object", base.Name)
	return nil
}

// CreateToken is create_token(predicate, name, rejectable, is_fact) ->
// TokenId. predicate is qualified by object-type per §3 ("Token... ->
// predicate name (qualified by object-type)"), e.g. "Battery.recharge"; the
// prefix up to the last '.' names the type CreateToken builds the token's
// object variable over.
func (c *DbClient) CreateToken(predicate, name string, rejectable, isFact bool) (*Token, error) {
	typeName := predicate
	if i := strings.LastIndex(predicate, "."); i >= 0 {
		typeName = predicate[:i]
	}
	k := c.db.registry.allocate()
	t := &Token{
		entityBase: entityBase{key: k, kind: KindToken},
		Predicate:  predicate,
		Rejectable: rejectable,
		IsFact:     isFact,
		ObjectVar:  c.db.MakeObjectVariable(typeName, name+".object", false),
		Start:      c.db.engine.NewVariable(NewIntervalDomain(NegInf, PosInf), name+".start", false, true),
		End:        c.db.engine.NewVariable(NewIntervalDomain(NegInf, PosInf), name+".end", false, true),
		Duration:   c.db.engine.NewVariable(NewIntervalDomain(0, PosInf), name+".duration", false, true),
		createdTick: c.db.tick,
	}
	c.db.registry.register(t)
	c.db.registerToken(t)
	c.db.publishToken(EventTokenAdded, t)
	c.record("create_token", predicate+"/"+name)
	return t, nil
}

// DeleteToken is delete_token(tok). Resolves SPEC_FULL.md §9 Open Question
// 3: deleting an ACTIVE token that still supports a live MERGED slave
// raises ModellingError rather than silently orphaning the slave's
// ActiveToken reference — the same conservative rule Archive applies.
func (c *DbClient) DeleteToken(t *Token) error {
	if t.State == Active && c.db.hasLiveMergedSlave(t, NegInf) {
		return &ModellingError{Msg: "cannot delete an active token with a live merged slave"}
	}
	if t.State == Active {
		if ob, ok := c.db.objectOf(t); ok {
			if err := ob.RemoveToken(t); err != nil {
				return err
			}
		}
	}
	if t.Master != nil {
		for i, s := range t.Master.Slaves {
			if s == t {
				t.Master.Slaves = append(t.Master.Slaves[:i], t.Master.Slaves[i+1:]...)
				break
			}
		}
	}
	delete(c.db.tokens, t.key)
	c.db.registry.discard(t.key)
	c.record("delete_token", t.String())
	return nil
}

// Constrain is constrain(obj, pred, succ).
func (c *DbClient) Constrain(ob ObjectBehavior, pred, succ *Token) error {
	if err := ob.Constrain(pred, succ, true); err != nil {
		return err
	}
	c.record("constrain", pred.String()+" -> "+succ.String())
	return nil
}

// Free is free(obj, pred, succ).
func (c *DbClient) Free(ob ObjectBehavior, pred, succ *Token) error {
	if err := ob.Free(pred, succ, true); err != nil {
		return err
	}
	c.record("free", pred.String()+" -> "+succ.String())
	return nil
}

// Activate is activate(tok).
func (c *DbClient) Activate(t *Token) error {
	if err := c.db.ActivateToken(t); err != nil {
		return err
	}
	c.record("activate", t.String())
	return nil
}

// Merge is merge(tok, active_tok).
func (c *DbClient) Merge(t, active *Token) error {
	if err := c.db.MergeToken(t, active); err != nil {
		return err
	}
	c.record("merge", t.String()+" -> "+active.String())
	return nil
}

// Reject is reject(tok).
func (c *DbClient) Reject(t *Token) error {
	if err := c.db.RejectToken(t); err != nil {
		return err
	}
	c.record("reject", t.String())
	return nil
}

// Cancel is cancel(tok).
func (c *DbClient) Cancel(t *Token) error {
	if err := c.db.CancelToken(t); err != nil {
		return err
	}
	c.record("cancel", t.String())
	return nil
}

// CreateConstraint is create_constraint(name, scope) -> ConstraintId: a
// generic named propagator over an arbitrary variable scope, for whatever
// domain-specific relation a modeller wants (beyond the built-in
// precedence/equality propagators Object.Constrain already posts). fn
// supplies the narrowing step.
func (c *DbClient) CreateConstraint(name string, scope []*Variable, fn func(*ConstraintEngine) error) Propagator {
	p := &namedPropagator{name: name, scope: scope, fn: fn}
	c.db.engine.AddPropagator(p)
	c.record("create_constraint", name)
	return p
}

// DeleteConstraint is delete_constraint(c).
func (c *DbClient) DeleteConstraint(p Propagator) {
	c.db.engine.RemovePropagator(p)
	c.record("delete_constraint", p.String())
}

// Restrict is restrict(var, domain).
func (c *DbClient) Restrict(v *Variable, d Domain) error {
	if err := c.db.engine.Restrict(v, d); err != nil {
		return err
	}
	c.record("restrict", v.Name)
	return nil
}

// Specify is specify(var, value).
func (c *DbClient) Specify(v *Variable, value int) bool {
	ok := c.db.engine.Specify(v, value)
	if ok {
		c.record("specify", v.Name)
	}
	return ok
}

// Reset is reset(var).
func (c *DbClient) Reset(v *Variable) {
	c.db.engine.Reset(v)
	c.record("reset", v.Name)
}

// CloseVariable, CloseType, and Close are the three close(...) overloads of
// §6.1.
func (c *DbClient) CloseVariable(v *Variable) {
	c.record("close_variable", v.Name)
}

func (c *DbClient) CloseType(typeName string) error {
	if err := c.db.CloseObjectType(typeName); err != nil {
		return err
	}
	c.record("close_type", typeName)
	return nil
}

func (c *DbClient) Close() error {
	if err := c.db.Close(); err != nil {
		return err
	}
	c.record("close", "")
	return nil
}

// Propagate is propagate() -> bool.
func (c *DbClient) Propagate() bool {
	return c.db.engine.Propagate()
}

// GetTokenByPath and GetPathByToken are the token relative-path operations
// of §6.1, available once transaction logging has established the
// master/slave tree any given token sits in.
func (c *DbClient) GetTokenByPath(path TokenPath) (*Token, error) {
	return GetTokenByPath(c.db, path)
}

func (c *DbClient) GetPathByToken(t *Token) (TokenPath, error) {
	return GetPathByToken(t)
}

// namedPropagator adapts an arbitrary narrowing function to the Propagator
// interface, for CreateConstraint's free-form custom relations.
type namedPropagator struct {
	name  string
	scope []*Variable
	fn    func(*ConstraintEngine) error
}

func (p *namedPropagator) Variables() []*Variable                { return p.scope }
func (p *namedPropagator) Propagate(eng *ConstraintEngine) error { return p.fn(eng) }
func (p *namedPropagator) String() string                        { return p.name }
