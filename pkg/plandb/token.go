package plandb

import "fmt"

// TokenState is the token state variable described in SPEC_FULL.md §3.
type TokenState int

const (
	Inactive TokenState = iota
	Active
	Merged
	Rejected
)

func (s TokenState) String() string {
	switch s {
	case Inactive:
		return "INACTIVE"
	case Active:
		return "ACTIVE"
	case Merged:
		return "MERGED"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Token is a predicate instance with temporal extent (§3). Its object
// variable's derived domain lists the objects it may still be assigned to;
// its start/end/duration variables are interval-int; its parameters are an
// arbitrary named set of variables, compared pairwise by GetCompatibleTokens
// (the state variable is the one left out of that comparison, §4.2).
type Token struct {
	entityBase
	Predicate string

	ObjectVar *Variable
	Start     *Variable
	End       *Variable
	Duration  *Variable

	State      TokenState
	Rejectable bool
	IsFact     bool
	terminated bool

	Parameters map[string]*Variable
	paramOrder []string

	Master       *Token
	MasterRel    string
	Slaves       []*Token
	ActiveToken  *Token // set when State == Merged

	createdTick uint64
}

// AddParameter registers a parameter variable under name, preserving
// insertion order for deterministic iteration (GetCompatibleTokens walks
// parameters in this order).
func (t *Token) AddParameter(name string, v *Variable) {
	if t.Parameters == nil {
		t.Parameters = make(map[string]*Variable)
	}
	if _, exists := t.Parameters[name]; !exists {
		t.paramOrder = append(t.paramOrder, name)
	}
	t.Parameters[name] = v
}

// ParameterNames returns parameter names in registration order.
func (t *Token) ParameterNames() []string {
	out := make([]string, len(t.paramOrder))
	copy(out, t.paramOrder)
	return out
}

// IsActive reports whether the token is currently ACTIVE (the precondition
// for Object.constrain/free and for appearing in tokens-to-order).
func (t *Token) IsActive() bool { return t.State == Active }

// IsTerminated reports whether archive() has removed this token from active
// consideration (it stays registered for path lookups until discarded).
func (t *Token) IsTerminated() bool { return t.terminated }

func (t *Token) String() string {
	return fmt.Sprintf("%s#%d[%s]", t.Predicate, t.key, t.State)
}

// DurationLb is a small convenience used throughout the object/timeline
// layer and the temporal advisor.
func (t *Token) DurationLb() int {
	return varInterval(t.Duration).Lb
}
