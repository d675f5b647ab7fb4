package plandb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConstrainFreeSymmetry is invariant I1: for a pair of active tokens with
// no prior ordering, constrain then free restores the precedence and
// explicit-marker bookkeeping bit-exactly.
func TestConstrainFreeSymmetry(t *testing.T) {
	_, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "R", false)
	require.NoError(t, err)
	require.NoError(t, ob.Base().Close())

	p, err := mustActivateToken(client, "Resource.use", "P", 0, 10, 1, 5)
	require.NoError(t, err)
	s, err := mustActivateToken(client, "Resource.use", "S", 0, 10, 1, 5)
	require.NoError(t, err)

	o := ob.Base()
	assert.False(t, o.isConstrainedToPrecede(p, s))
	preByPair := len(o.byPair)
	preByToken := len(o.byToken[p.key]) + len(o.byToken[s.key])
	preExplicit := len(o.explicit)

	require.NoError(t, client.Constrain(ob, p, s))
	assert.True(t, o.isConstrainedToPrecede(p, s))

	require.NoError(t, client.Free(ob, p, s))

	assert.False(t, o.isConstrainedToPrecede(p, s))
	assert.Equal(t, preByPair, len(o.byPair))
	assert.Equal(t, preByToken, len(o.byToken[p.key])+len(o.byToken[s.key]))
	assert.Equal(t, preExplicit, len(o.explicit))
}

// TestObjectDomainMembershipAfterConstrain is invariant I4: once a token is
// constrained onto an object, that object remains a member of the token's
// object-variable derived domain.
func TestObjectDomainMembershipAfterConstrain(t *testing.T) {
	_, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "R", false)
	require.NoError(t, err)
	require.NoError(t, ob.Base().Close())

	tok, err := mustActivateToken(client, "Resource.use", "T", 0, 10, 1, 5)
	require.NoError(t, err)

	require.NoError(t, client.Constrain(ob, tok, tok))
	require.True(t, client.Propagate())

	od, ok := tok.ObjectVar.AsObjectDomain()
	require.True(t, ok)
	assert.True(t, od.IsMemberKey(ob.Base().Key()))
}

// TestFreeRejectsUnconstrainedSelfOrder exercises Object.Free's guard: an
// explicit free of a self-order that was never explicitly constrained is
// rejected, not silently ignored.
func TestFreeRejectsUnconstrainedSelfOrder(t *testing.T) {
	_, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "R", false)
	require.NoError(t, err)
	require.NoError(t, ob.Base().Close())

	tok, err := mustActivateToken(client, "Resource.use", "T", 0, 10, 1, 5)
	require.NoError(t, err)

	err = client.Free(ob, tok, tok)
	assert.Error(t, err)
}

// TestRemoveTokenClearsAllBookkeeping exercises Object.RemoveToken: every
// precedence constraint touching the token is torn down from both
// endpoints' indexes, and it drops from the object's token set.
func TestRemoveTokenClearsAllBookkeeping(t *testing.T) {
	_, client := newTestDB(false)
	ob, err := client.CreateObject("Resource", "R", false)
	require.NoError(t, err)
	require.NoError(t, ob.Base().Close())

	p, err := mustActivateToken(client, "Resource.use", "P", 0, 10, 1, 5)
	require.NoError(t, err)
	s, err := mustActivateToken(client, "Resource.use", "S", 0, 10, 1, 5)
	require.NoError(t, err)
	require.NoError(t, client.Constrain(ob, p, s))

	require.NoError(t, ob.RemoveToken(p))

	o := ob.Base()
	assert.False(t, o.isConstrainedToPrecede(p, s))
	assert.Empty(t, o.byToken[p.key])
	assert.Empty(t, o.byToken[s.key])
	_, stillTracked := o.tokens[p.key]
	assert.False(t, stillTracked)
}
