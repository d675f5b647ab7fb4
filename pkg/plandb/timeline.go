package plandb

// Timeline is an Object whose tokens carry a total order (§4.4): besides
// the base object's assignment bookkeeping, it maintains a sequence of
// tokens and an index from token key to sequence position, and computes
// insertion points instead of offering only the degenerate self-pair.
type Timeline struct {
	*Object
	sequence []*Token
	index    map[Key]int // token key -> position in sequence
}

// NewTimeline creates an open Timeline of typeName/name, registered in db's
// registry via the embedded Object.
func NewTimeline(db *PlanDatabase, typeName, name string) *Timeline {
	return &Timeline{
		Object: NewObject(db, typeName, name),
		index:  make(map[Key]int),
	}
}

func (tl *Timeline) advisor() TemporalAdvisor { return tl.db.advisor }

func (tl *Timeline) canPrecede(a, b *Token) bool   { return tl.advisor().CanPrecede(a, b) }
func (tl *Timeline) canFitBetween(t, pred, succ *Token) bool {
	return tl.advisor().CanFitBetween(t, pred, succ)
}

// GetOrderingChoices walks the sequence to find every slot token could be
// inserted into, bounded by limit. Ported procedurally from
// Timeline::getOrderingChoices (Timeline.cc).
func (tl *Timeline) GetOrderingChoices(token *Token, limit int) []OrderingChoice {
	if limit <= 0 {
		return nil
	}
	if !tl.db.engine.ConstraintConsistent() {
		return nil
	}
	if _, already := tl.index[token.key]; already {
		return nil
	}
	if len(tl.sequence) == 0 {
		return []OrderingChoice{{Pred: token, Succ: token}}
	}

	var choices []OrderingChoice
	cur := 0
	for cur < len(tl.sequence) && !tl.canPrecede(token, tl.sequence[cur]) {
		cur++
	}
	if cur >= len(tl.sequence) {
		// token cannot precede anything already sequenced; only the append
		// choice (checked below) can possibly apply.
		if tl.canPrecede(tl.sequence[len(tl.sequence)-1], token) {
			return []OrderingChoice{{Pred: tl.sequence[len(tl.sequence)-1], Succ: token}}
		}
		return nil
	}

	if cur == 0 {
		choices = append(choices, OrderingChoice{Pred: token, Succ: tl.sequence[0]})
		cur++
	}

	prev := cur - 1
	for cur < len(tl.sequence) && len(choices) < limit {
		predecessor := tl.sequence[prev]
		successor := tl.sequence[cur]
		if !tl.canPrecede(predecessor, token) {
			break
		}
		if tl.canFitBetween(token, predecessor, successor) {
			choices = append(choices, OrderingChoice{Pred: token, Succ: successor})
		}
		prev = cur
		cur++
	}

	if len(choices) < limit {
		last := tl.sequence[len(tl.sequence)-1]
		if tl.canPrecede(last, token) {
			choices = append(choices, OrderingChoice{Pred: last, Succ: token})
		}
	}
	if len(choices) > limit {
		choices = choices[:limit]
	}
	return choices
}

// Constrain delegates to the base object's bookkeeping (equality binding,
// precedence constraint, explicit marker) then splices the sequence,
// mirroring Timeline::constrain's three cases. isExplicit is accepted only
// to satisfy ObjectBehavior; the original Timeline::constrain(pred, succ)
// takes no such parameter because every public call is, by definition, an
// explicit ordering decision — implicit chain-closure links are always
// posted directly through the embedded Object, never through this method.
func (tl *Timeline) Constrain(predecessor, successor *Token, isExplicit bool) error {
	if err := tl.Object.Constrain(predecessor, successor, true); err != nil {
		return err
	}

	_, predIn := tl.index[predecessor.key]
	succPos, succIn := tl.index[successor.key]

	switch {
	case len(tl.sequence) == 0:
		tl.sequence = append(tl.sequence, successor)
		tl.index[successor.key] = 0
		if predecessor.key != successor.key {
			tl.sequence = append([]*Token{predecessor}, tl.sequence...)
			tl.reindex()
		}

	case succIn && !predIn:
		// insert predecessor immediately before successor
		oldPredecessor := tl.tokenBefore(succPos)
		tl.sequence = insertAt(tl.sequence, succPos, predecessor)
		tl.reindex()
		if oldPredecessor != nil {
			if err := tl.Object.Constrain(oldPredecessor, predecessor, false); err != nil {
				return err
			}
		}

	case predIn && !succIn:
		predPos := tl.index[predecessor.key]
		oldSuccessor := tl.tokenAfter(predPos)
		tl.sequence = insertAt(tl.sequence, predPos+1, successor)
		tl.reindex()
		if oldSuccessor != nil {
			if err := tl.Object.Constrain(successor, oldSuccessor, false); err != nil {
				return err
			}
		}

	default:
		// Both already sequenced (or predecessor == successor and already
		// present): nothing further to splice; Object.Constrain already
		// posted the precedence/self-order bookkeeping.
	}

	return nil
}

// Free delegates to Object.Free once the explicit marker and sequence
// linkage have been resolved, mirroring Timeline::free. isExplicit is
// accepted only to satisfy ObjectBehavior; like Timeline::constrain, the
// original Timeline::free(pred, succ) takes no such parameter — every
// public call retracts an explicit ordering decision, and implicit links
// are torn down internally via freeImplicitConstraints instead.
func (tl *Timeline) Free(predecessor, successor *Token, isExplicit bool) error {
	if _, ok := tl.index[predecessor.key]; !ok {
		return &ModellingError{Msg: "predecessor is not sequenced on this timeline"}
	}
	if _, ok := tl.index[successor.key]; !ok {
		return &ModellingError{Msg: "successor is not sequenced on this timeline"}
	}

	k := keyOf(predecessor, successor)
	if predecessor.key == successor.key {
		delete(tl.explicitBy, predecessor.key)
	} else {
		delete(tl.explicit, k)
	}

	predecessorRequired := tl.hasExplicitConstraint(predecessor)
	successorRequired := tl.hasExplicitConstraint(successor)
	if predecessorRequired && successorRequired {
		return nil
	}

	if err := tl.Object.Free(predecessor, successor, false); err != nil {
		return err
	}

	if predecessor.key == successor.key {
		tl.unlink(predecessor)
		return nil
	}

	startTok, endTok := predecessor, successor
	if !successorRequired {
		endTok = tl.removeSuccessor(successor)
	}
	if !predecessorRequired {
		startTok = tl.removePredecessor(predecessor)
	}

	if startTok != nil && endTok != nil && tl.adjacent(startTok, endTok) && !tl.Object.isConstrainedToPrecede(startTok, endTok) {
		if err := tl.Object.Constrain(startTok, endTok, false); err != nil {
			return err
		}
	}
	return nil
}

// RemoveToken removes token from the sequence (closing the gap it leaves
// with an implicit constraint when both neighbors remain unconstrained)
// before delegating to the base object removal, mirroring Timeline::remove.
func (tl *Timeline) RemoveToken(token *Token) error {
	if _, ok := tl.index[token.key]; !ok {
		return tl.Object.RemoveToken(token)
	}

	earlier := tl.tokenBefore(tl.index[token.key])
	later := tl.tokenAfter(tl.index[token.key])
	if earlier != nil && later != nil && !tl.Object.isConstrainedToPrecede(earlier, later) {
		if err := tl.Object.Constrain(earlier, later, false); err != nil {
			return err
		}
	}

	pos := tl.index[token.key]
	tl.sequence = append(tl.sequence[:pos], tl.sequence[pos+1:]...)
	delete(tl.index, token.key)
	tl.reindex()

	return tl.Object.RemoveToken(token)
}

// freeImplicitConstraints drops every *implicit* precedence constraint
// touching token on this object, in preparation for unlinking it from the
// sequence. Explicit constraints are left for the caller to handle.
func (tl *Timeline) freeImplicitConstraints(token *Token) {
	for _, pc := range append([]*PrecedenceConstraint(nil), tl.byToken[token.key]...) {
		k := keyOf(pc.Predecessor, pc.Successor)
		if tl.explicit[k] {
			continue
		}
		tl.removePrecedence(pc)
		tl.db.advisor.UnregisterPrecedence(pc.Predecessor.End, pc.Successor.Start)
	}
}

// removeSuccessor unlinks token (known to be sequenced) and returns the
// token now adjacent where it used to sit, mirroring
// Timeline::removeSuccessor.
func (tl *Timeline) removeSuccessor(token *Token) *Token {
	tl.freeImplicitConstraints(token)
	pos, ok := tl.index[token.key]
	if !ok {
		return nil
	}
	delete(tl.index, token.key)
	if len(tl.sequence) == 1 {
		tl.sequence = nil
		return nil
	}
	tl.sequence = append(tl.sequence[:pos], tl.sequence[pos+1:]...)
	tl.reindex()
	if pos >= len(tl.sequence) {
		return nil
	}
	return tl.sequence[pos]
}

// removePredecessor is removeSuccessor's mirror image.
func (tl *Timeline) removePredecessor(token *Token) *Token {
	tl.freeImplicitConstraints(token)
	pos, ok := tl.index[token.key]
	if !ok {
		return nil
	}
	delete(tl.index, token.key)
	if len(tl.sequence) == 1 {
		tl.sequence = nil
		return nil
	}
	tl.sequence = append(tl.sequence[:pos], tl.sequence[pos+1:]...)
	tl.reindex()
	if pos == 0 {
		return nil
	}
	return tl.sequence[pos-1]
}

// unlink removes token from the middle of the sequence, reconnecting its
// former neighbors with an implicit constraint if they aren't already
// linked, mirroring Timeline::unlink.
func (tl *Timeline) unlink(token *Token) {
	tl.freeImplicitConstraints(token)
	pos, ok := tl.index[token.key]
	if !ok {
		return
	}
	before := tl.tokenBefore(pos)
	after := tl.tokenAfter(pos)
	delete(tl.index, token.key)
	tl.sequence = append(tl.sequence[:pos], tl.sequence[pos+1:]...)
	tl.reindex()
	if before != nil && after != nil && !tl.Object.isConstrainedToPrecede(before, after) {
		_ = tl.Object.Constrain(before, after, false)
	}
}

// adjacent reports whether y immediately follows x in the sequence.
func (tl *Timeline) adjacent(x, y *Token) bool {
	xi, ok := tl.index[x.key]
	if !ok {
		return false
	}
	yi, ok := tl.index[y.key]
	if !ok {
		return false
	}
	return yi == xi+1
}

func (tl *Timeline) tokenBefore(pos int) *Token {
	if pos <= 0 {
		return nil
	}
	return tl.sequence[pos-1]
}

func (tl *Timeline) tokenAfter(pos int) *Token {
	if pos+1 >= len(tl.sequence) {
		return nil
	}
	return tl.sequence[pos+1]
}

func (tl *Timeline) reindex() {
	for i, t := range tl.sequence {
		tl.index[t.key] = i
	}
}

func (tl *Timeline) HasTokensToOrder() bool {
	if !tl.db.engine.ConstraintConsistent() {
		return false
	}
	for _, t := range tl.GetTokensToOrder() {
		_ = t
		return true
	}
	return false
}

// GetTokensToOrder returns every active token attached to this timeline
// that has not yet been inserted into the sequence.
func (tl *Timeline) GetTokensToOrder() []*Token {
	var out []*Token
	for _, t := range tl.Tokens() {
		if !t.IsActive() {
			continue
		}
		if _, ok := tl.index[t.key]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

func insertAt(seq []*Token, pos int, t *Token) []*Token {
	seq = append(seq, nil)
	copy(seq[pos+1:], seq[pos:])
	seq[pos] = t
	return seq
}
