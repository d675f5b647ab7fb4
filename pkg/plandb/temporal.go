package plandb

import (
	"github.com/gitrdm/tempoplan/internal/stn"
)

// TemporalAdvisor answers feasibility and distance queries about pairs of
// time-points without the caller needing to know whether the backing store
// is a simple temporal network or a weaker bound-arithmetic propagator
// (§4.1). Queries are pure: they never mutate state and never return an
// error — a positive answer while the engine is provenInconsistent must not
// be treated as a commitment by the caller.
type TemporalAdvisor interface {
	CanPrecede(a, b *Token) bool
	CanPrecedeVars(x, y *Variable) bool
	CanFitBetween(t, pred, succ *Token) bool
	CanBeConcurrent(a, b *Token) bool
	TemporalDistanceDomain(x, y *Variable, exact bool) IntervalDomain
	MostRecentRepropagation() uint64

	// RegisterPoint/UnregisterPoint and RegisterPrecedence/UnregisterPrecedence
	// tell the advisor about tokens entering/leaving ACTIVE state and about
	// precedence constraints the object layer posts/retracts (§4.3). The
	// default advisor has nothing to track (it reads live variable bounds
	// at query time) so these are no-ops there; the STN-backed advisor uses
	// them to know what to include in the network it rebuilds per query.
	RegisterPoint(v *Variable)
	UnregisterPoint(v *Variable)
	RegisterPrecedence(predecessorEnd, successorStart *Variable)
	UnregisterPrecedence(predecessorEnd, successorStart *Variable)
}

func varInterval(v *Variable) IntervalDomain {
	if iv, ok := v.AsInterval(); ok {
		return iv
	}
	return IntervalDomain{Lb: NegInf, Ub: PosInf}
}

// DefaultAdvisor implements §4.1 purely from each variable's own interval
// bounds, with no cross-variable reasoning. It is the fallback used when no
// STN is wired in, and is always correct as a *necessary* (not exact) test.
type DefaultAdvisor struct {
	engine *ConstraintEngine
}

// NewDefaultAdvisor creates a bound-arithmetic-only advisor.
func NewDefaultAdvisor(engine *ConstraintEngine) *DefaultAdvisor {
	return &DefaultAdvisor{engine: engine}
}

func (a *DefaultAdvisor) CanPrecede(x, y *Token) bool {
	return a.CanPrecedeVars(x.End, y.Start)
}

func (a *DefaultAdvisor) CanPrecedeVars(x, y *Variable) bool {
	return varInterval(x).Lb <= varInterval(y).Ub
}

func (a *DefaultAdvisor) CanFitBetween(t, pred, succ *Token) bool {
	return varInterval(succ.Start).Ub-varInterval(pred.End).Lb >= varInterval(t.Duration).Lb
}

func (a *DefaultAdvisor) CanBeConcurrent(a2, b *Token) bool {
	return true
}

func (a *DefaultAdvisor) TemporalDistanceDomain(x, y *Variable, exact bool) IntervalDomain {
	xi, yi := varInterval(x), varInterval(y)
	return IntervalDomain{Lb: xi.Lb - yi.Ub, Ub: xi.Ub - yi.Lb}
}

func (a *DefaultAdvisor) MostRecentRepropagation() uint64 {
	if a.engine == nil {
		return 0
	}
	return a.engine.MostRecentRepropagation()
}

func (a *DefaultAdvisor) RegisterPoint(v *Variable)                                {}
func (a *DefaultAdvisor) UnregisterPoint(v *Variable)                              {}
func (a *DefaultAdvisor) RegisterPrecedence(predecessorEnd, successorStart *Variable)   {}
func (a *DefaultAdvisor) UnregisterPrecedence(predecessorEnd, successorStart *Variable) {}

// precedenceEdge is one posted `predecessor.end <= successor.start`
// relation the STNAdvisor must account for when building its query
// network, in addition to each registered point's own current bounds.
type precedenceEdge struct {
	pred, succ Key
}

// STNAdvisor is the exact implementation: it rebuilds a simple temporal
// network from each registered point's current interval bounds plus every
// posted precedence edge, then answers queries with shortest-path distance
// bounds. See internal/stn's package doc for why the network is rebuilt per
// query rather than maintained incrementally.
type STNAdvisor struct {
	engine *ConstraintEngine
	points map[Key]*Variable
	edges  []precedenceEdge
}

// NewSTNAdvisor creates an advisor with no points or edges registered yet.
func NewSTNAdvisor(engine *ConstraintEngine) *STNAdvisor {
	return &STNAdvisor{engine: engine, points: make(map[Key]*Variable)}
}

// RegisterPoint tells the advisor to track v's current bounds in future
// network rebuilds. Called whenever a token is activated (its start/end
// variables become queryable).
func (a *STNAdvisor) RegisterPoint(v *Variable) {
	a.points[v.key] = v
}

// UnregisterPoint stops tracking v, e.g. when its token is discarded.
func (a *STNAdvisor) UnregisterPoint(v *Variable) {
	delete(a.points, v.key)
}

// RegisterPrecedence records that predecessor.end <= successor.start must
// hold, for future network rebuilds. Called from Object.constrain.
func (a *STNAdvisor) RegisterPrecedence(predecessorEnd, successorStart *Variable) {
	a.edges = append(a.edges, precedenceEdge{pred: predecessorEnd.key, succ: successorStart.key})
}

// UnregisterPrecedence removes a previously registered edge. Called from
// Object.free.
func (a *STNAdvisor) UnregisterPrecedence(predecessorEnd, successorStart *Variable) {
	for i, e := range a.edges {
		if e.pred == predecessorEnd.key && e.succ == successorStart.key {
			a.edges = append(a.edges[:i], a.edges[i+1:]...)
			return
		}
	}
}

const zeroPoint stn.Point = 0

func (a *STNAdvisor) network() *stn.Network {
	net := stn.New()
	net.AddPoint(zeroPoint)
	for k, v := range a.points {
		iv := varInterval(v)
		p := stn.Point(k)
		net.AddPoint(p)
		if iv.Ub < stn.Inf {
			_ = net.AddEdge(zeroPoint, p, iv.Ub)
		}
		if iv.Lb > -stn.Inf {
			_ = net.AddEdge(p, zeroPoint, -iv.Lb)
		}
	}
	for _, e := range a.edges {
		// predecessor.end <= successor.start  <=>  x_pred.end - x_succ.start <= 0
		_ = net.AddEdge(stn.Point(e.succ), stn.Point(e.pred), 0)
	}
	return net
}

func (a *STNAdvisor) dist(x, y *Variable) (int, bool) {
	net := a.network()
	return net.ShortestPath(stn.Point(x.key), stn.Point(y.key))
}

func (a *STNAdvisor) CanPrecede(x, y *Token) bool {
	if x.Key() == y.Key() {
		return true
	}
	return a.CanPrecedeVars(x.End, y.Start)
}

// CanPrecedeVars answers exactly: x <= y is feasible iff the shortest-path
// upper bound on (y - x) is non-negative.
func (a *STNAdvisor) CanPrecedeVars(x, y *Variable) bool {
	if !NewDefaultAdvisor(a.engine).CanPrecedeVars(x, y) {
		return false
	}
	d, ok := a.dist(x, y)
	if !ok {
		return true // no path means no entailed ordering against it
	}
	return d >= 0
}

func (a *STNAdvisor) CanFitBetween(t, pred, succ *Token) bool {
	return NewDefaultAdvisor(a.engine).CanFitBetween(t, pred, succ)
}

// CanBeConcurrent answers exactly whether [a.start,a.end] and [b.start,b.end]
// can overlap given the network: both a.start<=b.end and b.start<=a.end must
// remain feasible.
func (a *STNAdvisor) CanBeConcurrent(x, y *Token) bool {
	return a.CanPrecedeVars(x.Start, y.End) && a.CanPrecedeVars(y.Start, x.End)
}

func (a *STNAdvisor) TemporalDistanceDomain(x, y *Variable, exact bool) IntervalDomain {
	if !exact {
		return NewDefaultAdvisor(a.engine).TemporalDistanceDomain(x, y, false)
	}
	if _, okx := a.points[x.key]; !okx {
		return NewDefaultAdvisor(a.engine).TemporalDistanceDomain(x, y, false)
	}
	if _, oky := a.points[y.key]; !oky {
		return NewDefaultAdvisor(a.engine).TemporalDistanceDomain(x, y, false)
	}
	ub, okUb := a.dist(x, y)
	if !okUb {
		ub = stn.Inf
	}
	lbNeg, okLb := a.dist(y, x)
	lb := -stn.Inf
	if okLb {
		lb = -lbNeg
	}
	return IntervalDomain{Lb: lb, Ub: ub}
}

func (a *STNAdvisor) MostRecentRepropagation() uint64 {
	if a.engine == nil {
		return 0
	}
	return a.engine.MostRecentRepropagation()
}
