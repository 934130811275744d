// Package graph implements the constraint graph (C2) and the stable
// topological sorter (C3) the dependency resolver runs over. Nodes are
// plugin names; edges are typed and weighted per spec.md §3/§4.2.
package graph

// EdgeType classifies why an edge exists, per spec.md §3.
type EdgeType int

const (
	// EdgeDep is a dependency->dependent edge (weight 3): "dependency
	// must be ready before dependent."
	EdgeDep EdgeType = iota
	// EdgeUser is a before->after edge (weight 2) from a user-supplied
	// ordering directive.
	EdgeUser
	// EdgeHint is a before->after edge (weight 1) from a plugin's
	// declared loadBefore/loadAfter hints.
	EdgeHint
)

// Weight returns the edge type's tie-break weight; higher wins when the
// sorter's comparator needs a secondary signal beyond insertion index
// (kept for introspection/debugging, the sort itself only needs index).
func (t EdgeType) Weight() int {
	switch t {
	case EdgeDep:
		return 3
	case EdgeUser:
		return 2
	case EdgeHint:
		return 1
	default:
		return 0
	}
}

func (t EdgeType) String() string {
	switch t {
	case EdgeDep:
		return "dep"
	case EdgeUser:
		return "user"
	case EdgeHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Edge is a directed, typed arc from one node to another.
type Edge struct {
	From string
	To   string
	Type EdgeType
}

// Graph is a directed multigraph of plugin names with typed edges and an
// incrementally maintained per-node in-degree counter.
type Graph struct {
	order    []string          // insertion order of nodes
	index    map[string]int    // node -> insertion index, for the sorter's comparator
	outgoing map[string][]Edge // from -> outgoing edges
	seen     map[string]map[string]bool // from -> edgeKey(to, type) -> seen (dedup is per exact pair+type: see AddEdge)
	indegree map[string]int
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		index:    make(map[string]int),
		outgoing: make(map[string][]Edge),
		seen:     make(map[string]map[string]bool),
		indegree: make(map[string]int),
	}
}

// AddNode registers name as a node if not already present. Idempotent.
func (g *Graph) AddNode(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.order)
	g.order = append(g.order, name)
	if _, ok := g.indegree[name]; !ok {
		g.indegree[name] = 0
	}
}

// AddEdge adds a from->to edge of the given type. Self-edges are silently
// dropped. Adding the exact same (from, to, type) triple twice is a no-op,
// matching spec.md §4.2's "idempotent per exact pair+type".
func (g *Graph) AddEdge(from, to string, edgeType EdgeType) {
	if from == to {
		return
	}
	g.AddNode(from)
	g.AddNode(to)

	key := edgeKey(from, to, edgeType)
	if g.seen[from] == nil {
		g.seen[from] = make(map[string]bool)
	}
	if g.seen[from][key] {
		return
	}
	g.seen[from][key] = true

	g.outgoing[from] = append(g.outgoing[from], Edge{From: from, To: to, Type: edgeType})
	g.indegree[to]++
}

func edgeKey(from, to string, edgeType EdgeType) string {
	return to + "\x00" + edgeType.String()
}

// GetNodes returns all node names in insertion order.
func (g *Graph) GetNodes() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// GetOutgoing returns the outgoing edges from name, in the order they were
// added.
func (g *Graph) GetOutgoing(name string) []Edge {
	edges := g.outgoing[name]
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

// GetIncomingCount returns the current in-degree of name.
func (g *Graph) GetIncomingCount(name string) int {
	return g.indegree[name]
}

// DecrementIncoming lowers name's in-degree counter by one, used by the
// topological sorter as it consumes edges. Never goes below zero.
func (g *Graph) DecrementIncoming(name string) {
	if g.indegree[name] > 0 {
		g.indegree[name]--
	}
}

// IndexOf returns the insertion index of name, used by the sorter's stable
// preference comparator. Returns -1 if name was never added.
func (g *Graph) IndexOf(name string) int {
	idx, ok := g.index[name]
	if !ok {
		return -1
	}
	return idx
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.order) }
