package plandb

import "fmt"

// Variable is a pair of (base-domain, derived-domain) under the control of
// the constraint engine, per SPEC_FULL.md §3. The base domain never changes
// after creation; the derived domain shrinks (and, for open enumerated
// domains, grows) as propagation runs. A Variable becomes "specified" when a
// caller forces the derived domain to a singleton via the engine's
// Specify; Reset returns it to the base domain.
type Variable struct {
	entityBase
	Name       string
	base       Domain
	derived    Domain
	specified  bool
	engine     *ConstraintEngine
	tmp        bool
	canSpecify bool
	pin        *pinPropagator
}

// ID returns the variable's entity key, matching the
// TestableProperties vocabulary ("variable.derived").
func (v *Variable) ID() Key { return v.key }

// Domain returns the current derived domain.
func (v *Variable) Domain() Domain { return v.derived }

// BaseDomain returns the immutable base domain the variable was created
// with.
func (v *Variable) BaseDomain() Domain { return v.base }

// IsSpecified reports whether a caller has forced this variable to a
// singleton via Specify (as opposed to propagation alone happening to leave
// a singleton derived domain).
func (v *Variable) IsSpecified() bool { return v.specified }

// IsSingleton reports whether the derived domain currently has exactly one
// member.
func (v *Variable) IsSingleton() bool { return v.derived.IsSingleton() }

// String renders the variable for diagnostics.
func (v *Variable) String() string {
	return fmt.Sprintf("%s#%d=%s", v.Name, v.key, v.derived)
}

// AsInterval type-asserts the derived domain to IntervalDomain, for the
// temporal variables (start/end/duration) the advisor and object layer read
// directly.
func (v *Variable) AsInterval() (IntervalDomain, bool) {
	d, ok := v.derived.(IntervalDomain)
	return d, ok
}

// AsObjectDomain type-asserts the derived domain to ObjectDomain, used by
// the plan database/object layer for a token's object variable.
func (v *Variable) AsObjectDomain() (ObjectDomain, bool) {
	d, ok := v.derived.(ObjectDomain)
	return d, ok
}

// AsEnumDomain type-asserts the derived domain to EnumDomain.
func (v *Variable) AsEnumDomain() (EnumDomain, bool) {
	d, ok := v.derived.(EnumDomain)
	return d, ok
}
