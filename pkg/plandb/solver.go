package plandb

import (
	"time"

	"github.com/rs/zerolog"
)

// Solver is a chronological-backtracking interpreter over a stack of live
// decision points (§4.6). Its loop structure is grounded on search.go's
// DFSSearch.Search: an iterative stack of frames rather than native
// recursion, generalized from FD-variable assignment frames to arbitrary
// DecisionPoint implementations that each own their own choice cursor.
// frame is one entry of the solver's decision stack: a decision point plus
// whether its current choice has been committed (executed and propagated
// consistently). A committed frame is only re-entered by Undo during a
// backtracking cascade — Step never re-executes it on the way forward.
type frame struct {
	dp        DecisionPoint
	committed bool
}

type Solver struct {
	db       *PlanDatabase
	managers []FlawManager

	stack []frame

	stepCount int
	depth     int
	exhausted bool
	timedOut  bool

	maxSteps    int
	maxDepth    int
	deadline    time.Time
	hasDeadline bool

	lastExecuted DecisionPoint

	log     zerolog.Logger
	metrics *MetricsSink
}

// NewSolver creates a solver over db consulting managers, in the order
// given, for the best remaining flaw each step.
func NewSolver(db *PlanDatabase, managers []FlawManager) *Solver {
	return &Solver{db: db, managers: managers, log: NewLogger("solver", nil)}
}

// WithLogger replaces the solver's logger (NewSolver defaults to a
// stderr-backed one via NewLogger).
func (s *Solver) WithLogger(log zerolog.Logger) *Solver {
	s.log = log
	return s
}

// WithMetrics attaches a MetricsSink; every commit and backtrack is reported
// to it until detached (pass nil to detach).
func (s *Solver) WithMetrics(m *MetricsSink) *Solver {
	s.metrics = m
	return s
}

func (s *Solver) budgetExceeded() bool {
	if s.maxSteps > 0 && s.stepCount >= s.maxSteps {
		return true
	}
	if s.maxDepth > 0 && s.depth > s.maxDepth {
		return true
	}
	if s.hasDeadline && time.Now().After(s.deadline) {
		return true
	}
	return false
}

// HasFlaws reports whether the flaw managers currently have anything left
// to resolve. It recomputes from live database state every call, so it
// reflects progress made by the stack even between Step calls.
func (s *Solver) HasFlaws() bool {
	_, ok := SelectFlaw(s.db, s.managers)
	return ok
}

func (s *Solver) IsExhausted() bool                   { return s.exhausted }
func (s *Solver) IsTimedOut() bool                    { return s.timedOut }
func (s *Solver) StepCount() int                      { return s.stepCount }
func (s *Solver) Depth() int                          { return s.depth }
func (s *Solver) LastExecutedDecision() DecisionPoint { return s.lastExecuted }

// Step runs exactly one "logical step" of §4.6: it either commits one new
// decision (returning immediately) or cascades backward through any chain
// of exhausted decisions until it finds one with a remaining choice to try,
// or the stack empties (IsExhausted becomes true). A non-nil return is an
// error from building, initializing or undoing a decision point; a decision
// point with zero choices is not an error, it is popped like any other
// exhausted one. InconsistentDomain during propagation is not an
// error here — it is the ordinary backtrack signal this loop exists to
// handle.
func (s *Solver) Step() error {
	if s.exhausted || s.timedOut {
		return nil
	}
	for {
		if s.budgetExceeded() {
			s.timedOut = true
			return nil
		}

		if len(s.stack) == 0 || s.stack[len(s.stack)-1].committed {
			flaw, ok := SelectFlaw(s.db, s.managers)
			if !ok {
				return nil // every flaw resolved
			}
			dp, err := NewDecisionPoint(s.db, flaw)
			if err != nil {
				return err
			}
			if err := dp.Initialize(); err != nil {
				return err
			}
			s.log.Debug().Str("flaw", flaw.Kind.String()).Msg("opened decision point")
			s.stack = append(s.stack, frame{dp: dp})
		}

		top := &s.stack[len(s.stack)-1]
		if !top.dp.HasNext() {
			s.stack = s.stack[:len(s.stack)-1]
			if len(s.stack) == 0 {
				s.exhausted = true
				s.log.Info().Int("steps", s.stepCount).Msg("search space exhausted")
				return nil
			}
			s.depth--
			if s.metrics != nil {
				s.metrics.ObserveBacktrack(s.depth)
			}
			// The parent's committed choice led only to a dead end via this
			// now-exhausted child; undo it and retry its own next choice.
			parent := &s.stack[len(s.stack)-1]
			if err := parent.dp.Undo(); err != nil {
				return err
			}
			parent.committed = false
			continue
		}

		s.stepCount++
		s.lastExecuted = top.dp
		execErr := top.dp.Execute()
		consistent := execErr == nil && s.db.engine.Propagate()
		if consistent {
			top.committed = true
			s.depth++
			if s.metrics != nil {
				s.metrics.ObserveCommit(s.depth)
			}
			s.log.Debug().Str("decision", top.dp.String()).Int("depth", s.depth).Msg("committed")
			return nil
		}
		if s.metrics != nil {
			s.metrics.ObserveBacktrack(s.depth)
		}
		if err := top.dp.Undo(); err != nil {
			return err
		}
		// Loop back: top (same decision, cursor now advanced) is
		// re-examined at the HasNext check above.
	}
}

// Solve repeats Step until every flaw is resolved, the stack empties while
// retrying (exhausted — no solution within current bounds), or the budget
// (step count, depth, or timeout) is exceeded. A zero maxSteps/maxDepth
// means unbounded on that axis; a zero timeout means no deadline.
func (s *Solver) Solve(maxSteps, maxDepth int, timeout time.Duration) error {
	s.maxSteps = maxSteps
	s.maxDepth = maxDepth
	if timeout > 0 {
		s.deadline = time.Now().Add(timeout)
		s.hasDeadline = true
	}
	for !s.exhausted && !s.timedOut {
		if !s.HasFlaws() {
			return nil
		}
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// FlawSnapshot is one entry of a Snapshot's open-flaw queue.
type FlawSnapshot struct {
	Kind   string
	Weight int
}

// Snapshot is a point-in-time, dependency-free rendering of solver state
// suitable for handing to an external sink (internal/writer) without that
// sink needing to import anything but this struct. It holds no pointers back
// into live solver state, so a sink may serialize it at its own pace.
type Snapshot struct {
	Tick      uint64
	StepCount int
	Depth     int
	Decisions []string
	OpenFlaws []FlawSnapshot
}

// Snapshot captures the current decision stack (outermost first) and the
// single best pending flaw across all managers, for §4.11's partial-plan
// writer.
func (s *Solver) Snapshot() Snapshot {
	decisions := make([]string, len(s.stack))
	for i, f := range s.stack {
		decisions[i] = f.dp.String()
	}
	var flaws []FlawSnapshot
	if flaw, ok := SelectFlaw(s.db, s.managers); ok {
		flaws = append(flaws, FlawSnapshot{Kind: flaw.Kind.String(), Weight: flaw.Weight})
	}
	return Snapshot{
		Tick:      s.db.Tick(),
		StepCount: s.stepCount,
		Depth:     s.depth,
		Decisions: decisions,
		OpenFlaws: flaws,
	}
}

// Retract pops every decision from the stack, undoing each in turn, and
// resets step/backtrack bookkeeping — the inverse of a completed or
// partial Solve, leaving the database exactly as it was found.
func (s *Solver) Retract() error {
	for len(s.stack) > 0 {
		f := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		if err := f.dp.Undo(); err != nil {
			return err
		}
		s.depth--
	}
	s.exhausted = false
	s.timedOut = false
	s.stepCount = 0
	return nil
}
