package plandb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDecisionPointDispatchesOnFlawKind(t *testing.T) {
	db, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "TL", true)
	require.NoError(t, err)
	require.NoError(t, ob.Base().Close())

	tok, err := mustActivateToken(client, "Resource.use", "T", 0, 10, 1, 3)
	require.NoError(t, err)

	dp, err := NewDecisionPoint(db, Flaw{Kind: FlawThreat, Token: tok})
	require.NoError(t, err)
	_, ok := dp.(*ThreatDecisionPoint)
	assert.True(t, ok)

	inactive, err := client.CreateToken("Resource.use", "U", false, false)
	require.NoError(t, err)
	dp, err = NewDecisionPoint(db, Flaw{Kind: FlawOpenCondition, Token: inactive})
	require.NoError(t, err)
	_, ok = dp.(*TokenDecisionPoint)
	assert.True(t, ok)

	v := client.CreateVariable(NewIntervalDomain(0, 5), "v", false, true)
	dp, err = NewDecisionPoint(db, Flaw{Kind: FlawUnboundVariable, Variable: v})
	require.NoError(t, err)
	_, ok = dp.(*VariableDecisionPoint)
	assert.True(t, ok)
}

// TestThreatDecisionPointExecuteUndoRoundTrip exercises the commit/undo
// cycle a solver step drives: Execute commits the first ordering choice,
// Undo frees it and advances the cursor to try the next.
func TestThreatDecisionPointExecuteUndoRoundTrip(t *testing.T) {
	db, client := newTestDB(false)
	x, err := client.CreateObject("Resource", "X", true)
	require.NoError(t, err)
	y, err := client.CreateObject("Resource", "Y", true)
	require.NoError(t, err)
	require.NoError(t, x.Base().Close())
	require.NoError(t, y.Base().Close())

	tok, err := mustActivateToken(client, "Resource.use", "T", 0, 10, 1, 3)
	require.NoError(t, err)

	dp, err := NewDecisionPoint(db, Flaw{Kind: FlawThreat, Token: tok})
	require.NoError(t, err)
	require.NoError(t, dp.Initialize())
	require.True(t, dp.HasNext())

	require.NoError(t, dp.Execute())
	assert.True(t, client.Propagate())
	assert.False(t, tokenNeedsOrdering(db, tok))

	require.NoError(t, dp.Undo())
	assert.True(t, tokenNeedsOrdering(db, tok))
	assert.True(t, dp.HasNext())
}

// TestVariableDecisionPointSplitsIntervalBounds exercises
// VariableDecisionPoint's bound-split strategy for a non-trivial interval.
func TestVariableDecisionPointSplitsIntervalBounds(t *testing.T) {
	_, client := newTestDB(false)
	v := client.CreateVariable(NewIntervalDomain(2, 9), "v", false, true)

	dp := &VariableDecisionPoint{db: nil, variable: v}
	require.NoError(t, dp.Initialize())

	assert.Equal(t, []int{2, 9}, dp.choices)
}

func TestVariableDecisionPointSingletonIntervalHasOneChoice(t *testing.T) {
	_, client := newTestDB(false)
	v := client.CreateVariable(NewIntervalDomain(4, 4), "v", false, true)

	dp := &VariableDecisionPoint{variable: v}
	require.NoError(t, dp.Initialize())

	assert.Equal(t, []int{4}, dp.choices)
}
