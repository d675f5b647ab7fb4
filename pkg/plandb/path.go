package plandb

// TokenPath addresses a token relative to its root master, per §6.1: the
// head is the root token's key; the tail is a sequence of slave positions,
// path[i] selecting which Slaves entry of the token reached by path[:i] to
// descend into next. GetTokenByPath and GetPathByToken round-trip
// bijectively as long as the master/slave tree they walk is unchanged
// between the two calls.
type TokenPath []int64

// GetPathByToken walks t up through its Master chain to the root (the
// token with no Master) and returns the path from there back down to t.
func GetPathByToken(t *Token) (TokenPath, error) {
	var tail []int64
	cur := t
	for cur.Master != nil {
		idx := -1
		for i, s := range cur.Master.Slaves {
			if s == cur {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, &ModellingError{Msg: "token path: token missing from its master's slave list"}
		}
		tail = append([]int64{int64(idx)}, tail...)
		cur = cur.Master
	}
	return append(TokenPath{int64(cur.key)}, tail...), nil
}

// GetTokenByPath resolves path against db: the root lookup is a direct key
// lookup, every subsequent element indexes into the current token's Slaves.
func GetTokenByPath(db *PlanDatabase, path TokenPath) (*Token, error) {
	if len(path) == 0 {
		return nil, &ModellingError{Msg: "token path: empty"}
	}
	cur, ok := db.Token(Key(path[0]))
	if !ok {
		return nil, &ModellingError{Msg: "token path: root token not found"}
	}
	for _, idx := range path[1:] {
		if idx < 0 || int(idx) >= len(cur.Slaves) {
			return nil, &ModellingError{Msg: "token path: slave index out of range"}
		}
		cur = cur.Slaves[idx]
	}
	return cur, nil
}
