package plandb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetCompatibleTokensIsSymmetricInvariantI7 is invariant I7 for two
// inactive tokens of the same predicate with overlapping domains: merge
// candidates are active tokens only, so neither lists the other, and the
// relation holds the same way in both directions.
func TestGetCompatibleTokensIsSymmetricInvariantI7(t *testing.T) {
	db, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "R", false)
	require.NoError(t, err)
	require.NoError(t, ob.Base().Close())

	a, err := client.CreateToken("Resource.use", "A", false, false)
	require.NoError(t, err)
	b, err := client.CreateToken("Resource.use", "B", false, false)
	require.NoError(t, err)
	require.NoError(t, client.Restrict(a.Start, NewIntervalDomain(0, 10)))
	require.NoError(t, client.Restrict(b.Start, NewIntervalDomain(5, 15)))

	assert.NotContains(t, db.GetCompatibleTokens(a), b)
	assert.NotContains(t, db.GetCompatibleTokens(b), a)
}

// TestGetCompatibleTokensIncludesActiveExcludesDifferentPredicate checks the
// filters GetCompatibleTokens applies beyond domain overlap: an ACTIVE
// token of the same predicate is a merge candidate, and predicate identity
// is required.
func TestGetCompatibleTokensIncludesActiveExcludesDifferentPredicate(t *testing.T) {
	db, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "R", false)
	require.NoError(t, err)
	require.NoError(t, ob.Base().Close())

	a, err := client.CreateToken("Resource.use", "A", false, false)
	require.NoError(t, err)
	activeSibling, err := mustActivateToken(client, "Resource.use", "Active", 0, 10, 1, 3)
	require.NoError(t, err)
	otherPredicate, err := client.CreateToken("Resource.idle", "Idle", false, false)
	require.NoError(t, err)

	compat := db.GetCompatibleTokens(a)
	assert.Contains(t, compat, activeSibling)
	assert.NotContains(t, compat, otherPredicate)
}

// TestDeleteObjectRejectsAttachedTokens exercises DeleteObject's guard: an
// object with tokens still attached refuses deletion rather than silently
// orphaning them.
func TestDeleteObjectRejectsAttachedTokens(t *testing.T) {
	_, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "R", false)
	require.NoError(t, err)
	require.NoError(t, ob.Base().Close())

	tok, err := mustActivateToken(client, "Resource.use", "T", 0, 10, 1, 3)
	require.NoError(t, err)
	require.NoError(t, client.Constrain(ob, tok, tok))

	err = client.DeleteObject(ob)
	assert.Error(t, err)
}

func TestDeleteObjectSucceedsWhenEmpty(t *testing.T) {
	db, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "R", false)
	require.NoError(t, err)

	require.NoError(t, client.DeleteObject(ob))
	_, found := db.Object(ob.Base().Key())
	assert.False(t, found)
}

// TestDeleteTokenRejectsActiveTokenWithLiveMergedSlave exercises the Open
// Question 3 guard: deleting an ACTIVE token that still supports a live
// MERGED slave is refused rather than silently orphaning the slave's
// ActiveToken reference.
func TestDeleteTokenRejectsActiveTokenWithLiveMergedSlave(t *testing.T) {
	_, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "R", false)
	require.NoError(t, err)
	require.NoError(t, ob.Base().Close())

	active, err := mustActivateToken(client, "Resource.use", "Active", 0, 10, 1, 3)
	require.NoError(t, err)

	slave, err := client.CreateToken("Resource.use", "Slave", false, false)
	require.NoError(t, err)
	require.NoError(t, client.Restrict(slave.Start, NewIntervalDomain(0, 10)))
	require.NoError(t, client.Restrict(slave.Duration, NewIntervalDomain(1, 3)))
	require.NoError(t, client.Merge(slave, active))

	err = client.DeleteToken(active)
	assert.Error(t, err)
}

func TestDeleteTokenSucceedsWithoutMergedSlaves(t *testing.T) {
	db, client := newTestDB(false)
	tok, err := client.CreateToken("Resource.use", "T", false, false)
	require.NoError(t, err)

	require.NoError(t, client.DeleteToken(tok))
	_, found := db.Token(tok.key)
	assert.False(t, found)
}

// TestTransactionsAccumulateInCommitOrder exercises the §6.1 transaction
// log: every logged operation appears, in call order.
func TestTransactionsAccumulateInCommitOrder(t *testing.T) {
	_, client := newTestDB(false)
	_, err := client.CreateObject("Resource", "R", false)
	require.NoError(t, err)
	_, err = client.CreateToken("Resource.use", "T", false, false)
	require.NoError(t, err)

	txns := client.Transactions()
	require.Len(t, txns, 2)
	assert.Equal(t, "create_object", txns[0].Op)
	assert.Equal(t, "create_token", txns[1].Op)
}

// TestCreateDeleteConstraintRoundTrip exercises CreateConstraint/
// DeleteConstraint: a custom propagator participates in Propagate while
// registered and is fully removed (and its pin undone) once deleted.
func TestCreateDeleteConstraintRoundTrip(t *testing.T) {
	_, client := newTestDB(false)
	v := client.CreateVariable(NewIntervalDomain(0, 10), "v", false, true)

	narrowed := false
	p := client.CreateConstraint("pin-to-five", []*Variable{v}, func(eng *ConstraintEngine) error {
		if !narrowed {
			narrowed = true
			return eng.Restrict(v, NewIntervalDomain(5, 5))
		}
		return nil
	})

	require.True(t, client.Propagate())
	iv, _ := v.AsInterval()
	assert.Equal(t, 5, iv.Lb)

	client.DeleteConstraint(p)
	require.True(t, client.Propagate())
	iv, _ = v.AsInterval()
	assert.Equal(t, 0, iv.Lb)
	assert.Equal(t, 10, iv.Ub)
}
