package plandb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildThreatProblem constructs two empty, closed timelines and one active,
// loosely-bounded token with no committed ordering — the same shape as
// scenario S3's starting point, underdetermined enough to give the solver a
// real threat flaw to resolve.
func buildThreatProblem(t *testing.T) (*PlanDatabase, *DbClient, *Token) {
	t.Helper()
	db, client := newTestDB(false)
	x, err := client.CreateObject("Resource", "X", true)
	require.NoError(t, err)
	y, err := client.CreateObject("Resource", "Y", true)
	require.NoError(t, err)
	require.NoError(t, x.Base().Close())
	require.NoError(t, y.Base().Close())

	tok, err := mustActivateToken(client, "Resource.use", "T", 0, 10, 1, 3)
	require.NoError(t, err)
	return db, client, tok
}

// TestSolverResolvesSingleThreat exercises a full Solve over a one-token
// threat flaw: the search loop must commit an ordering choice and leave no
// flaw behind, mirroring scenario S3.
func TestSolverResolvesSingleThreat(t *testing.T) {
	db, _, tok := buildThreatProblem(t)

	mgr := NewThreatManager(100)
	solver := NewSolver(db, []FlawManager{mgr})

	require.NoError(t, solver.Solve(100, 50, 0))

	assert.False(t, solver.IsExhausted())
	assert.False(t, solver.IsTimedOut())
	assert.False(t, tokenNeedsOrdering(db, tok))
	assert.False(t, solver.HasFlaws())
}

// TestSolverRetractRestoresInvariantI6 is invariant I6: after Solve followed
// by Retract, every committed decision is undone and the database's
// observable state — token activation, ordering, and variable domains — is
// bit-for-bit what it was before the solve began.
func TestSolverRetractRestoresInvariantI6(t *testing.T) {
	db, _, tok := buildThreatProblem(t)

	beforeOrdered := tokenNeedsOrdering(db, tok)
	beforeObjectDomain := tok.ObjectVar.Domain()
	beforeStart := tok.Start.Domain()

	mgr := NewThreatManager(100)
	solver := NewSolver(db, []FlawManager{mgr})
	require.NoError(t, solver.Solve(100, 50, 0))
	assert.False(t, tokenNeedsOrdering(db, tok)) // solve actually made progress

	require.NoError(t, solver.Retract())

	assert.Equal(t, beforeOrdered, tokenNeedsOrdering(db, tok))
	assert.Equal(t, beforeObjectDomain, tok.ObjectVar.Domain())
	assert.Equal(t, beforeStart, tok.Start.Domain())
	assert.Equal(t, 0, solver.StepCount())
	assert.False(t, solver.IsExhausted())
}

// TestSolverExhaustsOnConflict mirrors scenario S4's theme (a binding that
// cannot be reconciled with what is already committed) but drives it
// through the real Solver rather than procedurally: a token whose bounds
// fit nowhere in an already-ordered timeline's sequence yields a threat
// decision point with zero choices, which Step's cascade-on-exhaustion
// logic must pop immediately and report as an exhausted search rather than
// a false solution.
func TestSolverExhaustsOnConflict(t *testing.T) {
	db, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "TL", true)
	require.NoError(t, err)
	require.NoError(t, ob.Base().Close())

	a, err := mustActivateBoundToken(client, "Resource.use", "A", 0, 0, 5, 5, 5, 5)
	require.NoError(t, err)
	b, err := mustActivateBoundToken(client, "Resource.use", "B", 20, 20, 25, 25, 5, 5)
	require.NoError(t, err)
	require.NoError(t, client.Constrain(ob, a, b))

	// T's own window (start=3, end=11) can neither precede A (needs
	// end<=A.start) nor follow A into the A-B gap (needs A.end<=start) nor
	// follow B — every slot the timeline could offer is infeasible.
	target, err := mustActivateBoundToken(client, "Resource.use", "T", 3, 3, 11, 11, 8, 8)
	require.NoError(t, err)

	mgr := NewThreatManager(100)
	solver := NewSolver(db, []FlawManager{mgr})
	require.NoError(t, solver.Solve(200, 50, 0))

	assert.True(t, solver.IsExhausted())
	assert.True(t, tokenNeedsOrdering(db, target))
}

func TestSolverStepNoFlawsIsNoop(t *testing.T) {
	db, _ := newTestDB(false)
	solver := NewSolver(db, []FlawManager{NewThreatManager(100)})
	require.NoError(t, solver.Step())
	assert.Equal(t, 0, solver.StepCount())
	assert.False(t, solver.IsExhausted())
}

func TestSolverSnapshotReflectsProgress(t *testing.T) {
	db, _, _ := buildThreatProblem(t)
	mgr := NewThreatManager(100)
	solver := NewSolver(db, []FlawManager{mgr})

	before := solver.Snapshot()
	assert.Len(t, before.OpenFlaws, 1)

	require.NoError(t, solver.Solve(100, 50, 0))

	after := solver.Snapshot()
	assert.Empty(t, after.OpenFlaws)
	assert.Equal(t, solver.StepCount(), after.StepCount)
}
