package graph

import "sort"

// CycleError reports that the graph could not be fully ordered and
// includes one concrete cycle path extracted via DFS.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	s := "dependency cycle detected: "
	for i, n := range e.Path {
		if i > 0 {
			s += " -> "
		}
		s += n
	}
	return s
}

// Sort runs Kahn's algorithm with a stable preference comparator: whenever
// more than one node has zero remaining in-degree, the node with the
// lowest insertion index is dequeued first. This makes the output
// bit-identical across runs for identical input (spec.md §4.3).
//
// Sort consumes a private copy of the graph's in-degree counters so the
// caller's Graph is left untouched (DecrementIncoming is still exposed for
// callers who want their own manual Kahn loop).
func Sort(g *Graph) ([]string, error) {
	nodes := g.GetNodes()
	indeg := make(map[string]int, len(nodes))
	for _, n := range nodes {
		indeg[n] = g.GetIncomingCount(n)
	}

	ready := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if indeg[n] == 0 {
			ready = append(ready, n)
		}
	}
	sortByIndex(g, ready)

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		// Dequeue the lowest-index ready node.
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		var freed []string
		for _, e := range g.GetOutgoing(current) {
			indeg[e.To]--
			if indeg[e.To] == 0 {
				freed = append(freed, e.To)
			}
		}
		if len(freed) > 0 {
			ready = append(ready, freed...)
			sortByIndex(g, ready)
		}
	}

	if len(order) != len(nodes) {
		return nil, &CycleError{Path: findCycle(g)}
	}
	return order, nil
}

func sortByIndex(g *Graph, names []string) {
	sort.Slice(names, func(i, j int) bool {
		return g.IndexOf(names[i]) < g.IndexOf(names[j])
	})
}

// findCycle runs a DFS recording the recursion stack to extract one
// concrete cycle path once Sort has determined the graph is not a DAG.
func findCycle(g *Graph) []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, g.NodeCount())
	stack := make([]string, 0, g.NodeCount())

	var dfs func(node string) []string
	dfs = func(node string) []string {
		state[node] = visiting
		stack = append(stack, node)

		for _, e := range g.GetOutgoing(node) {
			switch state[e.To] {
			case unvisited:
				if cyc := dfs(e.To); cyc != nil {
					return cyc
				}
			case visiting:
				// Found the back-edge; extract the cycle from the stack.
				start := len(stack) - 1
				for start >= 0 && stack[start] != e.To {
					start--
				}
				cyc := append([]string{}, stack[start:]...)
				cyc = append(cyc, e.To)
				return cyc
			case done:
				// Already fully explored with no cycle through it.
			}
		}

		stack = stack[:len(stack)-1]
		state[node] = done
		return nil
	}

	for _, n := range g.GetNodes() {
		if state[n] == unvisited {
			if cyc := dfs(n); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}
