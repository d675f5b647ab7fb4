package stn

import "testing"

func TestShortestPathDirectEdge(t *testing.T) {
	n := New()
	if err := n.AddEdge(1, 2, 5); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	dist, ok := n.ShortestPath(1, 2)
	if !ok || dist != 5 {
		t.Fatalf("ShortestPath(1,2) = (%d, %v), want (5, true)", dist, ok)
	}
}

func TestShortestPathTransitivelyTightens(t *testing.T) {
	n := New()
	mustAddEdge(t, n, 1, 2, 10)
	mustAddEdge(t, n, 2, 3, 10)
	mustAddEdge(t, n, 1, 3, 25) // looser direct edge; the 1->2->3 path is tighter

	dist, ok := n.ShortestPath(1, 3)
	if !ok || dist != 20 {
		t.Fatalf("ShortestPath(1,3) = (%d, %v), want (20, true)", dist, ok)
	}
}

func TestShortestPathUnreachableIsNotOk(t *testing.T) {
	n := New()
	n.AddPoint(1)
	n.AddPoint(2)
	_, ok := n.ShortestPath(1, 2)
	if ok {
		t.Fatal("expected unreachable points to report ok=false")
	}
}

func TestShortestPathUnknownPointIsNotOk(t *testing.T) {
	n := New()
	n.AddPoint(1)
	_, ok := n.ShortestPath(1, 99)
	if ok {
		t.Fatal("expected an unknown point to report ok=false")
	}
}

func TestShortestPathSamePointIsZero(t *testing.T) {
	n := New()
	n.AddPoint(1)
	dist, ok := n.ShortestPath(1, 1)
	if !ok || dist != 0 {
		t.Fatalf("ShortestPath(1,1) = (%d, %v), want (0, true)", dist, ok)
	}
}

// TestAddEdgeRejectsNegativeCycle exercises AddEdge's infeasibility check: a
// 1->2->1 cycle with weights summing negative is refused, and the network
// is left exactly as it was before the attempt.
func TestAddEdgeRejectsNegativeCycle(t *testing.T) {
	n := New()
	mustAddEdge(t, n, 1, 2, -5)

	err := n.AddEdge(2, 1, 3) // sum = -2, a negative cycle
	if err == nil {
		t.Fatal("expected ErrInconsistent for a negative cycle")
	}

	// network unchanged: distance from 2 to 1 is still unreachable, not -2.
	if _, ok := n.ShortestPath(2, 1); ok {
		t.Fatal("expected the rejected edge to leave the network unchanged")
	}
}

func TestRemoveEdgeDropsExactMatch(t *testing.T) {
	n := New()
	mustAddEdge(t, n, 1, 2, 5)
	mustAddEdge(t, n, 1, 2, 7) // a second, looser parallel edge

	n.RemoveEdge(1, 2, 5)

	dist, ok := n.ShortestPath(1, 2)
	if !ok || dist != 7 {
		t.Fatalf("ShortestPath(1,2) after removing the tighter edge = (%d, %v), want (7, true)", dist, ok)
	}
}

func mustAddEdge(t *testing.T, n *Network, from, to Point, weight int) {
	t.Helper()
	if err := n.AddEdge(from, to, weight); err != nil {
		t.Fatalf("AddEdge(%d, %d, %d): %v", from, to, weight, err)
	}
}
