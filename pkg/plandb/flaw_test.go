package plandb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTokenNeedsOrderingIsInvariantI5 checks I5 directly: a token appears as
// needing ordering iff it is ACTIVE, has at least one object candidate, and
// is not yet inserted on every such candidate.
func TestTokenNeedsOrderingIsInvariantI5(t *testing.T) {
	db, client := newTestDB(false)
	x, err := client.CreateObject("Resource", "X", true)
	require.NoError(t, err)
	y, err := client.CreateObject("Resource", "Y", true)
	require.NoError(t, err)
	require.NoError(t, x.Base().Close())
	require.NoError(t, y.Base().Close())

	tok, err := mustActivateToken(client, "Resource.use", "T", 0, 10, 1, 3)
	require.NoError(t, err)

	assert.True(t, tokenNeedsOrdering(db, tok))

	require.NoError(t, client.Constrain(x, tok, tok))
	require.NoError(t, client.Constrain(y, tok, tok))

	assert.False(t, tokenNeedsOrdering(db, tok))
}

// TestThreatManagerFindsUnsequencedActiveToken exercises ThreatManager's
// CreateIterator end to end against the plan database's token index.
func TestThreatManagerFindsUnsequencedActiveToken(t *testing.T) {
	db, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "TL", true)
	require.NoError(t, err)
	require.NoError(t, ob.Base().Close())

	tok, err := mustActivateToken(client, "Resource.use", "T", 0, 10, 1, 3)
	require.NoError(t, err)

	mgr := NewThreatManager(100)
	flaws := mgr.CreateIterator(db)

	require.Len(t, flaws, 1)
	assert.Equal(t, tok, flaws[0].Token)
	assert.Equal(t, FlawThreat, flaws[0].Kind)
}

// TestOpenConditionManagerIgnoresActivatedTokens exercises
// OpenConditionManager: once a token is activated it drops out of the
// open-condition flaw set.
func TestOpenConditionManagerIgnoresActivatedTokens(t *testing.T) {
	db, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "TL", true)
	require.NoError(t, err)
	require.NoError(t, ob.Base().Close())

	tok, err := client.CreateToken("Resource.use", "T", false, false)
	require.NoError(t, err)

	mgr := NewOpenConditionManager(100)
	before := mgr.CreateIterator(db)
	require.Len(t, before, 1)
	assert.Equal(t, tok, before[0].Token)

	require.NoError(t, client.Restrict(tok.Duration, NewIntervalDomain(1, 3)))
	require.NoError(t, client.Activate(tok))

	after := mgr.CreateIterator(db)
	assert.Empty(t, after)
}

// TestMatchingRuleWeightPrefersMoreSpecificRules exercises §4.5's weighting
// formula directly: a rule whose priority sits closer to its own
// (N+M+2)*base target wins a lower (more urgent) weight.
func TestMatchingRuleWeightPrefersMoreSpecificRules(t *testing.T) {
	generic := &MatchingRule{Priority: 100}
	specific := &MatchingRule{Class: "Battery", Predicate: "Battery.recharge", Priority: 400}

	// generic: N=M=0, target=(0+0+2)*100=200, weight=|100-200|=100.
	assert.Equal(t, 100, generic.weight(100))
	// specific: N=2 (class+predicate), M=0, target=(2+0+2)*100=400, weight=0.
	assert.Equal(t, 0, specific.weight(100))
}

// TestMatchingRuleGuardsRequireSingletonMatch exercises the guard-matching
// path used by §6.2 configuration rules.
func TestMatchingRuleGuardsRequireSingletonMatch(t *testing.T) {
	_, client := newTestDB(false)
	tok, err := client.CreateToken("Resource.use", "T", false, false)
	require.NoError(t, err)
	param := client.CreateVariable(NewEnumDomain(4, []int{2}), "T.mode", false, true)
	tok.AddParameter("mode", param)

	rule := &MatchingRule{}
	rule.AddGuard("mode", 2)

	assert.True(t, rule.matches(tok, ""))

	otherParam := client.CreateVariable(NewEnumDomain(4, []int{1, 2, 3}), "T.mode2", false, true)
	tok.Parameters["mode"] = otherParam
	assert.False(t, rule.matches(tok, ""))
}

// TestSelectFlawReturnsLowestWeightAcrossManagers exercises SelectFlaw's
// cross-manager minimum-weight selection.
func TestSelectFlawReturnsLowestWeightAcrossManagers(t *testing.T) {
	db, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "TL", true)
	require.NoError(t, err)
	require.NoError(t, ob.Base().Close())

	_, err = client.CreateToken("Resource.use", "Open", false, false)
	require.NoError(t, err)
	_, err = mustActivateToken(client, "Resource.use", "Threatened", 0, 10, 1, 3)
	require.NoError(t, err)

	openMgr := NewOpenConditionManager(200)
	threatMgr := NewThreatManager(50)

	flaw, ok := SelectFlaw(db, []FlawManager{openMgr, threatMgr})

	require.True(t, ok)
	assert.Equal(t, FlawThreat, flaw.Kind)
	assert.Equal(t, 50, flaw.Weight)
}

func TestSelectFlawNoneLeft(t *testing.T) {
	db, _ := newTestDB(false)
	_, ok := SelectFlaw(db, []FlawManager{NewOpenConditionManager(100)})
	assert.False(t, ok)
}
