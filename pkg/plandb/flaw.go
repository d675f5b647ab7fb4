package plandb

import "sort"

// Flaw is a residual choice the solver must resolve: a token (or variable)
// paired with the kind of decision still pending on it.
type Flaw struct {
	Kind     FlawKind
	Token    *Token
	Variable *Variable
	Weight   int
}

// FlawKind distinguishes the three manager families of §4.5.
type FlawKind int

const (
	FlawUnboundVariable FlawKind = iota
	FlawOpenCondition
	FlawThreat
)

func (k FlawKind) String() string {
	switch k {
	case FlawUnboundVariable:
		return "unbound-variable"
	case FlawOpenCondition:
		return "open-condition"
	case FlawThreat:
		return "threat"
	default:
		return "unknown"
	}
}

// guard is one `variable == value` equation a MatchingRule tests against a
// flaw's token (or, if Master is set, against the token's master).
type guard struct {
	Variable string
	Value    int
	Master   bool
}

// MatchingRule filters and prioritises flaws by pattern, per §4.5/§6.2:
// zero or more static filters (class/predicate/variable/master-relation/
// master-class/master-predicate) plus zero or more guard equations. The
// manager consults registered rules in order; the first whose class,
// predicate, master-relation and master-predicate filters and guards all
// hold determines the flaw's priority and contributes to its weight. The
// variable and master-class filters count toward the weight but are not
// tested when matching.
type MatchingRule struct {
	Class            string
	Predicate        string
	VariableName     string
	MasterRelation   string
	MasterClass      string
	MasterPredicate  string
	Guards           []guard
	Priority         int
}

// AddGuard registers a `variable == value` guard against the flaw's own
// token.
func (r *MatchingRule) AddGuard(variable string, value int) *MatchingRule {
	r.Guards = append(r.Guards, guard{Variable: variable, Value: value})
	return r
}

// AddMasterGuard registers a guard inspecting the master token's variables
// instead of the flaw's own.
func (r *MatchingRule) AddMasterGuard(variable string, value int) *MatchingRule {
	r.Guards = append(r.Guards, guard{Variable: variable, Value: value, Master: true})
	return r
}

func (r *MatchingRule) staticFilterCount() int {
	n := 0
	for _, s := range []string{r.Class, r.Predicate, r.VariableName, r.MasterRelation, r.MasterClass, r.MasterPredicate} {
		if s != "" {
			n++
		}
	}
	return n
}

// weight computes |priority - (N+M+2)*base|, per §4.5: N is the static
// filter count, M the guard count. Lower-numbered priorities dominate
// selection; weight only breaks ties between flaws of equal priority.
func (r *MatchingRule) weight(base int) int {
	n := r.staticFilterCount()
	m := len(r.Guards)
	target := (n + m + 2) * base
	w := r.Priority - target
	if w < 0 {
		w = -w
	}
	return w
}

// matchesToken reports whether r's static class/predicate filters
// (the ones that don't need a master) accept t.
func (r *MatchingRule) matchesToken(t *Token, className string) bool {
	if r.Class != "" && r.Class != className {
		return false
	}
	if r.Predicate != "" && r.Predicate != t.Predicate {
		return false
	}
	return true
}

func (r *MatchingRule) matchesMaster(t *Token) bool {
	if r.MasterRelation != "" && (t.Master == nil || t.MasterRel != r.MasterRelation) {
		return false
	}
	if r.MasterPredicate != "" && (t.Master == nil || t.Master.Predicate != r.MasterPredicate) {
		return false
	}
	return true
}

func (r *MatchingRule) matchesGuards(t *Token) bool {
	for _, g := range r.Guards {
		target := t
		if g.Master {
			if t.Master == nil {
				return false
			}
			target = t.Master
		}
		v, ok := target.Parameters[g.Variable]
		if !ok {
			return false
		}
		singleton, ok := v.Domain().(interface{ Singleton() (int, bool) })
		if !ok {
			return false
		}
		val, isSingleton := singleton.Singleton()
		if !isSingleton || val != g.Value {
			return false
		}
	}
	return true
}

// matches reports whether every static filter and guard on r accepts t,
// using className for the class filter (the core has no type hierarchy of
// its own to consult, so callers pass the token's owning object's TypeName
// or empty).
func (r *MatchingRule) matches(t *Token, className string) bool {
	return r.matchesToken(t, className) && r.matchesMaster(t) && r.matchesGuards(t)
}

// FlawManager is the common shape of the three manager families of §4.5: it
// walks the plan database and emits flaws. The open-condition and threat
// managers score each flaw by whichever registered rule matched first;
// UnboundVariableManager gives every flaw its default priority and does not
// consult rules.
type FlawManager interface {
	Kind() FlawKind
	CreateIterator(db *PlanDatabase) []Flaw
}

// basePriority is the base of the weight formula, and the default priority
// a manager falls back to when it is configured with a `default_priority`
// of 0.
const basePriority = 100

// ruleSet is embedded by every concrete manager: shared rule bookkeeping
// and the score-a-token helper.
type ruleSet struct {
	rules           []*MatchingRule
	defaultPriority int
}

// AddRule registers r, most-specific-first is the caller's responsibility
// (rules are tried in registration order; the first match wins, mirroring
// FirstFailLabeling's single-pass best-of scan generalized to a filter
// chain instead of a score comparison).
func (rs *ruleSet) AddRule(r *MatchingRule) { rs.rules = append(rs.rules, r) }

func (rs *ruleSet) score(t *Token, className string) int {
	for _, r := range rs.rules {
		if r.matches(t, className) {
			return r.weight(basePriority)
		}
	}
	return rs.defaultPriority
}

// NewRuleSet creates an empty rule set falling back to defaultPriority
// when no rule matches.
func newRuleSet(defaultPriority int) ruleSet {
	if defaultPriority == 0 {
		defaultPriority = basePriority
	}
	return ruleSet{defaultPriority: defaultPriority}
}

// UnboundVariableManager iterates variables whose derived domain is
// non-singleton and not yet specified.
type UnboundVariableManager struct {
	ruleSet
}

func NewUnboundVariableManager(defaultPriority int) *UnboundVariableManager {
	return &UnboundVariableManager{ruleSet: newRuleSet(defaultPriority)}
}

func (m *UnboundVariableManager) Kind() FlawKind { return FlawUnboundVariable }

func (m *UnboundVariableManager) CreateIterator(db *PlanDatabase) []Flaw {
	var out []Flaw
	for _, v := range db.engine.vars {
		if v.IsSpecified() || v.derived.IsSingleton() {
			continue
		}
		out = append(out, Flaw{Kind: FlawUnboundVariable, Variable: v, Weight: m.defaultPriority})
	}
	return out
}

// OpenConditionManager iterates inactive tokens whose state has not yet
// been decided (activate/merge/reject).
type OpenConditionManager struct {
	ruleSet
}

func NewOpenConditionManager(defaultPriority int) *OpenConditionManager {
	return &OpenConditionManager{ruleSet: newRuleSet(defaultPriority)}
}

func (m *OpenConditionManager) Kind() FlawKind { return FlawOpenCondition }

func (m *OpenConditionManager) CreateIterator(db *PlanDatabase) []Flaw {
	var out []Flaw
	for _, t := range db.tokens {
		if t.terminated || t.State != Inactive {
			continue
		}
		out = append(out, Flaw{Kind: FlawOpenCondition, Token: t, Weight: m.score(t, "")})
	}
	return out
}

// ThreatManager iterates the plan database's tokens-to-order index: active
// tokens still requiring ordering on at least one candidate object (I5).
type ThreatManager struct {
	ruleSet
}

func NewThreatManager(defaultPriority int) *ThreatManager {
	return &ThreatManager{ruleSet: newRuleSet(defaultPriority)}
}

func (m *ThreatManager) Kind() FlawKind { return FlawThreat }

func (m *ThreatManager) CreateIterator(db *PlanDatabase) []Flaw {
	var out []Flaw
	for _, t := range db.tokens {
		if !t.IsActive() {
			continue
		}
		if !tokenNeedsOrdering(db, t) {
			continue
		}
		out = append(out, Flaw{Kind: FlawThreat, Token: t, Weight: m.score(t, "")})
	}
	return out
}

// tokenNeedsOrdering reports whether t is unsequenced on at least one
// object still present in its object variable's derived domain, the
// precise condition I5 requires of plan_database.tokens_to_order.
func tokenNeedsOrdering(db *PlanDatabase, t *Token) bool {
	od, ok := t.ObjectVar.AsObjectDomain()
	if !ok {
		return false
	}
	for _, key := range od.Keys() {
		ob, ok := db.Object(key)
		if !ok {
			continue
		}
		for _, to := range ob.GetTokensToOrder() {
			if to.key == t.key {
				return true
			}
		}
	}
	return false
}

// SelectFlaw asks every manager for its flaws and returns the single
// lowest-weight flaw overall (ties broken by manager registration order,
// then by token/variable key for determinism), or ok=false if none remain
// — §4.6 step 1, "ask the flaw managers for the best remaining flaw by
// minimum weight".
func SelectFlaw(db *PlanDatabase, managers []FlawManager) (Flaw, bool) {
	var best Flaw
	found := false
	for _, mgr := range managers {
		flaws := mgr.CreateIterator(db)
		sort.SliceStable(flaws, func(i, j int) bool { return flawKey(flaws[i]) < flawKey(flaws[j]) })
		for _, f := range flaws {
			if !found || f.Weight < best.Weight {
				best, found = f, true
			}
		}
	}
	return best, found
}

func flawKey(f Flaw) int64 {
	if f.Token != nil {
		return int64(f.Token.key)
	}
	if f.Variable != nil {
		return int64(f.Variable.key)
	}
	return 0
}
