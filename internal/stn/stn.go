// Package stn implements a simple temporal network: a directed graph of
// difference constraints x_j - x_i <= w, queried for shortest-path distance
// bounds. It backs the exact half of the temporal advisor
// (pkg/plandb/temporal.go), mirroring how the original source's STNTemporalAdvisor delegates
// precedence/fit queries to its TemporalPropagator's underlying network
// (see original_source/TemporalNetwork/component/STNTemporalAdvisor.cc).
//
// This is a reference-quality network: edges are stored as an adjacency
// list and queries run a bounded Bellman-Ford relaxation from the queried
// source point rather than maintaining an incremental all-pairs distance
// matrix. That trades some query-time cost for a much smaller, easier to
// verify implementation.
package stn

import (
	"fmt"
	"math"
)

// Point identifies a time-point variable within the network. Callers supply
// their own identifiers (typically a variable's entity key); the network
// does not interpret them.
type Point int64

// Inf is used as an edge weight meaning "effectively unbounded"; it is large
// enough that no legitimate interval arithmetic in this core overflows it.
const Inf = math.MaxInt32 / 4

// ErrInconsistent is returned by AddEdge/AddBound when the new edge would
// introduce a negative cycle (the network becomes infeasible).
type ErrInconsistent struct {
	Cycle []Point
}

func (e *ErrInconsistent) Error() string {
	return fmt.Sprintf("temporal network inconsistent: negative cycle through %v", e.Cycle)
}

type edge struct {
	to     Point
	weight int
}

// Network is a simple temporal network. The zero value is not usable; use
// New.
type Network struct {
	adj   map[Point][]edge
	known map[Point]bool
}

// New creates an empty network.
func New() *Network {
	return &Network{adj: make(map[Point][]edge), known: make(map[Point]bool)}
}

// AddPoint registers p (a no-op if already known) so queries against it
// don't silently treat it as isolated-and-unconstrained by mistake.
func (n *Network) AddPoint(p Point) {
	n.known[p] = true
	if _, ok := n.adj[p]; !ok {
		n.adj[p] = nil
	}
}

// AddEdge posts the difference constraint x_to - x_from <= weight. Returns
// ErrInconsistent (and leaves the network unchanged) if doing so would
// create a negative cycle, i.e. the network would have no feasible
// assignment.
func (n *Network) AddEdge(from, to Point, weight int) error {
	n.AddPoint(from)
	n.AddPoint(to)
	n.adj[from] = append(n.adj[from], edge{to: to, weight: weight})
	if cyc, ok := n.negativeCycle(); ok {
		n.adj[from] = n.adj[from][:len(n.adj[from])-1]
		return &ErrInconsistent{Cycle: cyc}
	}
	return nil
}

// RemoveEdge removes the single difference constraint x_to - x_from <=
// weight added first with exactly these parameters, if present.
func (n *Network) RemoveEdge(from, to Point, weight int) {
	edges := n.adj[from]
	for i, e := range edges {
		if e.to == to && e.weight == weight {
			n.adj[from] = append(edges[:i], edges[i+1:]...)
			return
		}
	}
}

// ShortestPath returns the shortest-path distance from 'from' to 'to',
// i.e. the tightest upper bound derivable for x_to - x_from, using a
// Bellman-Ford relaxation from 'from'. ok is false if 'to' is unreachable
// (no bound derivable; treat as +Inf) or if either point is unknown.
func (n *Network) ShortestPath(from, to Point) (dist int, ok bool) {
	if !n.known[from] || !n.known[to] {
		return 0, false
	}
	if from == to {
		return 0, true
	}
	d := make(map[Point]int, len(n.known))
	for p := range n.known {
		d[p] = Inf
	}
	d[from] = 0
	// |V|-1 relaxation rounds suffice for shortest paths with no negative
	// cycle (guaranteed by AddEdge's check).
	for i := 0; i < len(n.known); i++ {
		changed := false
		for u, edges := range n.adj {
			if d[u] >= Inf {
				continue
			}
			for _, e := range edges {
				if d[u]+e.weight < d[e.to] {
					d[e.to] = d[u] + e.weight
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
	if d[to] >= Inf {
		return 0, false
	}
	return d[to], true
}

// negativeCycle runs a full Bellman-Ford over every known point and reports
// whether any edge can still be relaxed after |V|-1 rounds, which witnesses
// a negative cycle. On detection it walks predecessor links back into the
// cycle for diagnostics.
func (n *Network) negativeCycle() ([]Point, bool) {
	d := make(map[Point]int, len(n.known))
	pred := make(map[Point]Point, len(n.known))
	for p := range n.known {
		d[p] = 0 // single super-source semantics: every point starts reachable at 0
	}
	var last Point
	for i := 0; i < len(n.known); i++ {
		relaxed := false
		for u, edges := range n.adj {
			for _, e := range edges {
				if d[u]+e.weight < d[e.to] {
					d[e.to] = d[u] + e.weight
					pred[e.to] = u
					last = e.to
					relaxed = true
				}
			}
		}
		if !relaxed {
			return nil, false
		}
	}
	// One more pass: any point still relaxable lies on (or reaches) a
	// negative cycle.
	for u, edges := range n.adj {
		for _, e := range edges {
			if d[u]+e.weight < d[e.to] {
				cyc := []Point{e.to}
				cur := u
				seen := map[Point]bool{e.to: true}
				for !seen[cur] {
					seen[cur] = true
					cyc = append(cyc, cur)
					p, ok := pred[cur]
					if !ok {
						break
					}
					cur = p
				}
				return cyc, true
			}
		}
	}
	_ = last
	return nil, false
}
