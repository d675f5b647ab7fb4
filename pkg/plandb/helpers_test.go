package plandb

import "github.com/rs/zerolog"

// newTestDB builds a fresh plan database and client for test use; useSTN
// mirrors the constructor's own knob rather than hardcoding one choice.
func newTestDB(useSTN bool) (*PlanDatabase, *DbClient) {
	db := NewPlanDatabase(useSTN)
	client := NewDbClient(db, zerolog.Nop(), true)
	return db, client
}

// mustActivateToken creates a token of predicate on an already-created,
// already-closed object type, restricts its Start/Duration to the given
// bounds (leaving End unbounded), and activates it.
func mustActivateToken(client *DbClient, predicate, name string, startLb, startUb, durLb, durUb int) (*Token, error) {
	tok, err := client.CreateToken(predicate, name, false, false)
	if err != nil {
		return nil, err
	}
	if err := client.Restrict(tok.Start, NewIntervalDomain(startLb, startUb)); err != nil {
		return nil, err
	}
	if err := client.Restrict(tok.Duration, NewIntervalDomain(durLb, durUb)); err != nil {
		return nil, err
	}
	if err := client.Activate(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// mustActivateBoundToken is mustActivateToken plus an explicit End bound,
// for tests that need canPrecede/canFitBetween to see a finite window
// rather than the default unbounded [NegInf,PosInf].
func mustActivateBoundToken(client *DbClient, predicate, name string, startLb, startUb, endLb, endUb, durLb, durUb int) (*Token, error) {
	tok, err := client.CreateToken(predicate, name, false, false)
	if err != nil {
		return nil, err
	}
	if err := client.Restrict(tok.Start, NewIntervalDomain(startLb, startUb)); err != nil {
		return nil, err
	}
	if err := client.Restrict(tok.End, NewIntervalDomain(endLb, endUb)); err != nil {
		return nil, err
	}
	if err := client.Restrict(tok.Duration, NewIntervalDomain(durLb, durUb)); err != nil {
		return nil, err
	}
	if err := client.Activate(tok); err != nil {
		return nil, err
	}
	return tok, nil
}
