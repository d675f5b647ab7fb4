package plandb

import "fmt"

// ModellingError reports a structural precondition violated by the caller
// (duplicate entity name, illegal composition, adding a variable after
// close, ...). It is fatal to the current operation; there is no recovery
// path, mirroring the teacher's sentinel-error style in fd.go generalized to
// carry context instead of being a single package-level value.
type ModellingError struct {
	Msg string
}

func (e *ModellingError) Error() string { return "modelling error: " + e.Msg }

// PurgedEntityAccess reports a lookup against an entity whose key has
// already been discarded. This is always a programmer error; it is raised
// fatally at the lookup site rather than recovered from.
type PurgedEntityAccess struct {
	Key Key
}

func (e *PurgedEntityAccess) Error() string {
	return fmt.Sprintf("access to purged entity key %d", e.Key)
}

// ConfigurationError reports that solver configuration data failed
// validation at load time (§6.2). Reported once; not recovered from.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Msg }

// SearchBudgetExceeded reports that the solver exceeded its step, time, or
// depth budget. Unlike the other kinds this is non-fatal: it is reported via
// solver state (Solver.IsTimedOut / Solver.IsExhausted), not returned as an
// error from step().
type SearchBudgetExceeded struct {
	Steps, Depth int
	TimedOut     bool
}

func (e *SearchBudgetExceeded) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("search timed out after %d steps (depth %d)", e.Steps, e.Depth)
	}
	return fmt.Sprintf("search budget exceeded after %d steps (depth %d)", e.Steps, e.Depth)
}

// inconsistentDomain is the internal signal a propagator raises when a
// domain becomes empty. SPEC_FULL.md §7 specifies this is "surfaced as a
// boolean result from propagate()", never as a returned error outside the
// engine; ConstraintEngine.Propagate folds this into its bool return and
// never lets it escape as an error value.
type inconsistentDomain struct {
	Reason string
}

func (e *inconsistentDomain) Error() string { return "inconsistent domain: " + e.Reason }

// wrapf is a small helper so call sites read like the wrapped-error idiom
// used throughout this package: fmt.Errorf("...: %w", err).
func wrapf(err error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, err)...)
}
