package plandb

// Token state transitions (§3's "possibly cancelled back to inactive" plus
// §6.1's activate/merge/reject/cancel). These are plain PlanDatabase
// methods rather than routed through a DbClient: DbClient (dbclient.go) is
// the sole mutation surface for *external* callers (parsers, replay
// tools), but the solver's own decision points are part of the core loop
// described in §4.6 and call these directly, the same way Object.Constrain
// calls the constraint engine directly rather than through any client
// indirection. DbClient's Activate/Merge/Reject/Cancel wrap these same
// methods, adding transaction-log entries.
func (db *PlanDatabase) ActivateToken(t *Token) error {
	if t.State != Inactive {
		return &ModellingError{Msg: "token must be INACTIVE to activate"}
	}
	od, ok := t.ObjectVar.AsObjectDomain()
	if !ok || od.IsEmpty() {
		return &ModellingError{Msg: "token has no candidate object to activate onto"}
	}
	// Reception (§4.3's addToken) happens against every still-candidate
	// object, not just the one the token eventually settles on: this is what
	// lets a Timeline report the token via GetTokensToOrder/HasTokensToOrder
	// before its object variable has narrowed to a singleton, which the
	// threat manager depends on to discover it as needing ordering.
	for _, key := range od.Keys() {
		if ob, ok := db.Object(key); ok {
			if err := ob.Base().addToken(t); err != nil {
				return err
			}
		}
	}
	t.State = Active
	db.advisor.RegisterPoint(t.Start)
	db.advisor.RegisterPoint(t.End)
	db.publishToken(EventTokenActivated, t)
	return nil
}

// DeactivateToken reverses ActivateToken, for TokenDecisionPoint.Undo.
func (db *PlanDatabase) DeactivateToken(t *Token) error {
	if t.State != Active {
		return &ModellingError{Msg: "token must be ACTIVE to deactivate"}
	}
	if od, ok := t.ObjectVar.AsObjectDomain(); ok {
		for _, key := range od.Keys() {
			if ob, ok := db.Object(key); ok {
				_ = ob.RemoveToken(t)
			}
		}
	}
	t.State = Inactive
	db.advisor.UnregisterPoint(t.Start)
	db.advisor.UnregisterPoint(t.End)
	return nil
}

// MergeToken unifies inactive token t with the already-ACTIVE token active,
// per §3's MERGED state ("an inactive token unified with an active one").
func (db *PlanDatabase) MergeToken(t, active *Token) error {
	if t.State != Inactive {
		return &ModellingError{Msg: "token must be INACTIVE to merge"}
	}
	if !active.IsActive() {
		return &ModellingError{Msg: "merge target must be ACTIVE"}
	}
	t.State = Merged
	t.ActiveToken = active
	db.publishToken(EventTokenMerged, t)
	return nil
}

// UnmergeToken reverses MergeToken.
func (db *PlanDatabase) UnmergeToken(t *Token) error {
	if t.State != Merged {
		return &ModellingError{Msg: "token must be MERGED to unmerge"}
	}
	t.State = Inactive
	t.ActiveToken = nil
	return nil
}

// RejectToken marks t as never going to be scheduled.
func (db *PlanDatabase) RejectToken(t *Token) error {
	if t.State != Inactive {
		return &ModellingError{Msg: "token must be INACTIVE to reject"}
	}
	if !t.Rejectable {
		return &ModellingError{Msg: "token is not rejectable"}
	}
	t.State = Rejected
	db.publishToken(EventTokenRejected, t)
	return nil
}

// UnrejectToken reverses RejectToken.
func (db *PlanDatabase) UnrejectToken(t *Token) error {
	if t.State != Rejected {
		return &ModellingError{Msg: "token must be REJECTED to unreject"}
	}
	t.State = Inactive
	return nil
}

// CancelToken moves an ACTIVE, MERGED, or REJECTED token back to INACTIVE,
// tearing down whatever the forward transition set up. Resolves
// SPEC_FULL.md §9 Open Question 3 alongside DbClient.DeleteToken: cancelling
// a MERGED token only ever affects that token itself, never the active
// token it was merged onto, so cancel and a concurrent delete_token(active)
// can never race on overlapping state.
func (db *PlanDatabase) CancelToken(t *Token) error {
	switch t.State {
	case Active:
		if ob, ok := db.objectOf(t); ok {
			if err := ob.RemoveToken(t); err != nil {
				return err
			}
		}
		return db.DeactivateToken(t)
	case Merged:
		return db.UnmergeToken(t)
	case Rejected:
		return db.UnrejectToken(t)
	default:
		return &ModellingError{Msg: "token must be ACTIVE, MERGED, or REJECTED to cancel"}
	}
}

// objectOf returns the single object t is currently assigned to, if its
// object variable has settled on one.
func (db *PlanDatabase) objectOf(t *Token) (ObjectBehavior, bool) {
	od, ok := t.ObjectVar.AsObjectDomain()
	if !ok {
		return nil, false
	}
	key, ok := od.Singleton()
	if !ok {
		return nil, false
	}
	return db.Object(Key(key))
}
