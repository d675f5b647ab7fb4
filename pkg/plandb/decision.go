package plandb

import (
	"fmt"
	"sort"
)

// DecisionPoint is a stateful wrapper around one flaw, offering a sequence
// of commit/undo choices (§4.5). The solver's step loop drives every
// implementation through the same protocol: Initialize once, then
// Execute/Undo/HasNext in a cycle until either Execute succeeds and
// propagates cleanly, or the decision becomes exhausted.
type DecisionPoint interface {
	// Initialize populates the choice list from current database state.
	Initialize() error
	// HasNext reports whether a choice remains to be tried.
	HasNext() bool
	// Execute commits the current choice. The caller propagates afterward;
	// Execute itself never propagates.
	Execute() error
	// Undo reverses the most recently executed choice and advances the
	// internal cursor so a later Execute tries the next alternative.
	Undo() error
	// IsExhausted reports whether every choice has been tried and failed.
	IsExhausted() bool
	String() string
}

// noLimit stands in for "no truncation" when a decision point asks the
// plan database for every ordering choice rather than a bounded prefix.
const noLimit = 1 << 30

// NewDecisionPoint builds the decision point matching f's kind.
func NewDecisionPoint(db *PlanDatabase, f Flaw) (DecisionPoint, error) {
	switch f.Kind {
	case FlawThreat:
		return &ThreatDecisionPoint{db: db, token: f.Token}, nil
	case FlawOpenCondition:
		return &TokenDecisionPoint{db: db, token: f.Token}, nil
	case FlawUnboundVariable:
		return &VariableDecisionPoint{db: db, variable: f.Variable}, nil
	default:
		return nil, &ModellingError{Msg: "unknown flaw kind"}
	}
}

// ThreatDecisionPoint resolves a token-ordering flaw: candidates are every
// (object, (pred, succ)) tuple the plan database offers, sorted by object
// key; choice i commits the i-th tuple via Object.Constrain, undo frees it.
type ThreatDecisionPoint struct {
	db      *PlanDatabase
	token   *Token
	choices []OrderingChoice
	cursor  int
}

func (dp *ThreatDecisionPoint) Initialize() error {
	dp.choices = dp.db.OrderingChoicesForToken(dp.token, noLimit)
	return nil
}

func (dp *ThreatDecisionPoint) HasNext() bool { return dp.cursor < len(dp.choices) }

func (dp *ThreatDecisionPoint) IsExhausted() bool { return dp.cursor >= len(dp.choices) }

func (dp *ThreatDecisionPoint) Execute() error {
	if !dp.HasNext() {
		return &ModellingError{Msg: "threat decision point has no remaining choice"}
	}
	c := dp.choices[dp.cursor]
	return c.Obj.Constrain(c.Pred, c.Succ, true)
}

// Undo frees the committed choice — reusing Object.Free/ConstraintEngine.
// RemovePropagator's reset-and-replay strategy (constraint.go) — then
// advances the cursor to the next candidate.
func (dp *ThreatDecisionPoint) Undo() error {
	c := dp.choices[dp.cursor]
	err := c.Obj.Free(c.Pred, c.Succ, true)
	dp.cursor++
	return err
}

func (dp *ThreatDecisionPoint) String() string {
	return fmt.Sprintf("threat(%s, %d/%d)", dp.token, dp.cursor, len(dp.choices))
}

// tokenChoiceKind enumerates the three things a not-yet-decided token can
// become: activated, merged onto a compatible active token, or rejected.
type tokenChoiceKind int

const (
	tokenActivate tokenChoiceKind = iota
	tokenMerge
	tokenReject
)

type tokenChoice struct {
	kind   tokenChoiceKind
	target *Token // set only for tokenMerge
}

// TokenDecisionPoint resolves an open-condition flaw: an inactive token
// must become ACTIVE, MERGED onto some compatible active token, or
// REJECTED (§4.5). Activation is always tried first (the common case),
// then merges in ascending candidate-token-key order, then rejection last
// — a fixed tie-break, since the spec leaves the exact choice order
// unspecified.
type TokenDecisionPoint struct {
	db      *PlanDatabase
	token   *Token
	choices []tokenChoice
	cursor  int
}

func (dp *TokenDecisionPoint) Initialize() error {
	dp.choices = append(dp.choices, tokenChoice{kind: tokenActivate})

	compatible := dp.db.GetCompatibleTokens(dp.token)
	sort.Slice(compatible, func(i, j int) bool { return compatible[i].key < compatible[j].key })
	for _, cand := range compatible {
		dp.choices = append(dp.choices, tokenChoice{kind: tokenMerge, target: cand})
	}

	if dp.token.Rejectable {
		dp.choices = append(dp.choices, tokenChoice{kind: tokenReject})
	}
	return nil
}

func (dp *TokenDecisionPoint) HasNext() bool { return dp.cursor < len(dp.choices) }

func (dp *TokenDecisionPoint) IsExhausted() bool { return dp.cursor >= len(dp.choices) }

func (dp *TokenDecisionPoint) Execute() error {
	if !dp.HasNext() {
		return &ModellingError{Msg: "token decision point has no remaining choice"}
	}
	c := dp.choices[dp.cursor]
	switch c.kind {
	case tokenActivate:
		return dp.db.ActivateToken(dp.token)
	case tokenMerge:
		return dp.db.MergeToken(dp.token, c.target)
	case tokenReject:
		return dp.db.RejectToken(dp.token)
	default:
		return &ModellingError{Msg: "unknown token choice kind"}
	}
}

func (dp *TokenDecisionPoint) Undo() error {
	c := dp.choices[dp.cursor]
	var err error
	switch c.kind {
	case tokenActivate:
		err = dp.db.DeactivateToken(dp.token)
	case tokenMerge:
		err = dp.db.UnmergeToken(dp.token)
	case tokenReject:
		err = dp.db.UnrejectToken(dp.token)
	}
	dp.cursor++
	return err
}

func (dp *TokenDecisionPoint) String() string {
	return fmt.Sprintf("token(%s, %d/%d)", dp.token, dp.cursor, len(dp.choices))
}

// VariableDecisionPoint resolves an unbound-variable flaw by specifying one
// value from the derived domain at a time. Interval domains are
// bound-split (try lb, then ub) rather than exhaustively enumerated, since
// an interval may be far too wide (or, at the ±∞ sentinels, unbounded) to
// walk one integer at a time; enumerated and object domains, being always
// finite, are walked in full ascending order.
type VariableDecisionPoint struct {
	db       *PlanDatabase
	variable *Variable
	choices  []int
	cursor   int
}

func (dp *VariableDecisionPoint) Initialize() error {
	dp.choices = variableChoices(dp.variable)
	return nil
}

func variableChoices(v *Variable) []int {
	switch d := v.Domain().(type) {
	case IntervalDomain:
		if d.IsEmpty() {
			return nil
		}
		if d.Lb == d.Ub {
			return []int{d.Lb}
		}
		return []int{d.Lb, d.Ub}
	case EnumDomain:
		vals := d.Members()
		sort.Ints(vals)
		return vals
	case ObjectDomain:
		vals := d.Members()
		sort.Ints(vals)
		return vals
	default:
		return nil
	}
}

func (dp *VariableDecisionPoint) HasNext() bool { return dp.cursor < len(dp.choices) }

func (dp *VariableDecisionPoint) IsExhausted() bool { return dp.cursor >= len(dp.choices) }

func (dp *VariableDecisionPoint) Execute() error {
	if !dp.HasNext() {
		return &ModellingError{Msg: "variable decision point has no remaining choice"}
	}
	if !dp.db.engine.Specify(dp.variable, dp.choices[dp.cursor]) {
		return &ModellingError{Msg: "specify: value no longer a domain member"}
	}
	return nil
}

func (dp *VariableDecisionPoint) Undo() error {
	dp.db.engine.Reset(dp.variable)
	dp.cursor++
	return nil
}

func (dp *VariableDecisionPoint) String() string {
	return fmt.Sprintf("variable(%s, %d/%d)", dp.variable, dp.cursor, len(dp.choices))
}
