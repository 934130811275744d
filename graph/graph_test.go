package graph

import (
	"reflect"
	"testing"
)

func TestAddEdge_SelfEdgeDropped(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddEdge("a", "a", EdgeDep)

	if g.GetIncomingCount("a") != 0 {
		t.Fatal("self-edge must not affect in-degree")
	}
	if len(g.GetOutgoing("a")) != 0 {
		t.Fatal("self-edge must not be recorded")
	}
}

func TestAddEdge_IdempotentPerExactPairAndType(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", EdgeDep)
	g.AddEdge("a", "b", EdgeDep)

	if g.GetIncomingCount("b") != 1 {
		t.Fatalf("in-degree = %d, want 1 (duplicate edge must be a no-op)", g.GetIncomingCount("b"))
	}

	// A different edge type between the same pair is a distinct edge.
	g.AddEdge("a", "b", EdgeUser)
	if g.GetIncomingCount("b") != 2 {
		t.Fatalf("in-degree = %d, want 2 (different edge type is distinct)", g.GetIncomingCount("b"))
	}
}

func TestGetNodes_InsertionOrder(t *testing.T) {
	g := New()
	g.AddNode("c")
	g.AddNode("a")
	g.AddNode("b")

	want := []string{"c", "a", "b"}
	if got := g.GetNodes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("GetNodes() = %v, want %v", got, want)
	}
}

func TestSort_Stable_DependencyOrder(t *testing.T) {
	g := New()
	for _, n := range []string{"d", "c", "b", "a"} {
		g.AddNode(n)
	}
	g.AddEdge("a", "b", EdgeDep) // b depends on a

	order, err := Sort(g)
	if err != nil {
		t.Fatalf("Sort error: %v", err)
	}

	idx := indexOf(order)
	if idx["a"] >= idx["b"] {
		t.Fatalf("order %v: a must precede b", order)
	}
	// Nodes with no ordering constraints keep their registration order
	// among themselves: d, c come before a, b only by way of being ready
	// first (no constraint says otherwise), so insertion order wins.
	if idx["d"] >= idx["c"] {
		t.Fatalf("order %v: stable tie-break should preserve insertion order for unconstrained nodes", order)
	}
}

func TestSort_DeterministicAcrossRuns(t *testing.T) {
	build := func() *Graph {
		g := New()
		for _, n := range []string{"w", "x", "y", "z"} {
			g.AddNode(n)
		}
		g.AddEdge("w", "z", EdgeDep)
		g.AddEdge("x", "z", EdgeDep)
		return g
	}

	first, err := Sort(build())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		again, err := Sort(build())
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d: order %v != first run's order %v", i, again, first)
		}
	}
}

func TestSort_CycleDetected(t *testing.T) {
	g := New()
	g.AddEdge("x", "y", EdgeDep)
	g.AddEdge("y", "x", EdgeDep)

	order, err := Sort(g)
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	if order != nil {
		t.Fatal("Sort must return no order when a cycle exists")
	}

	cycErr, ok := err.(*CycleError)
	if !ok {
		t.Fatalf("error type = %T, want *CycleError", err)
	}
	if len(cycErr.Path) < 2 {
		t.Fatalf("cycle path too short: %v", cycErr.Path)
	}
}

func TestSort_PartialGraphNeverReturnedOnCycle(t *testing.T) {
	g := New()
	g.AddNode("isolated")
	g.AddEdge("x", "y", EdgeDep)
	g.AddEdge("y", "x", EdgeDep)

	order, err := Sort(g)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if len(order) != 0 {
		t.Fatal("no partial order should ever be returned when a cycle exists")
	}
}

func indexOf(order []string) map[string]int {
	m := make(map[string]int, len(order))
	for i, n := range order {
		m[n] = i
	}
	return m
}
