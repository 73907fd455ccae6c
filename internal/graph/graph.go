// Package graph provides the directed-multigraph kernel shared by the
// control-flow restructuring, bit-liveness, and data-layout subsystems.
// Nodes have stable integer identities and are iterated in insertion
// order; edges are ordered, and the successor position is meaningful to
// the callers (conditional branches and dispatchers).
package graph

// NodeID identifies a node within a single Graph.
type NodeID int

// InvalidNode is the zero value for "no node".
const InvalidNode NodeID = -1

// Graph is a directed multigraph. Parallel edges are allowed and the
// successor list keeps its insertion order.
type Graph struct {
	succs [][]NodeID
	preds [][]NodeID
	live  []bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// AddNode allocates a fresh node and returns its identity.
func (g *Graph) AddNode() NodeID {
	id := NodeID(len(g.succs))
	g.succs = append(g.succs, nil)
	g.preds = append(g.preds, nil)
	g.live = append(g.live, true)
	return id
}

// NumNodes returns the number of allocated node slots, including removed
// ones. Valid NodeIDs are in [0, NumNodes).
func (g *Graph) NumNodes() int {
	return len(g.succs)
}

// Has reports whether id refers to a live node.
func (g *Graph) Has(id NodeID) bool {
	return id >= 0 && int(id) < len(g.live) && g.live[id]
}

// Nodes returns the live nodes in insertion order.
func (g *Graph) Nodes() []NodeID {
	out := make([]NodeID, 0, len(g.succs))
	for i := range g.succs {
		if g.live[i] {
			out = append(out, NodeID(i))
		}
	}
	return out
}

// AddEdge appends an edge from -> to at the end of from's successor list.
func (g *Graph) AddEdge(from, to NodeID) {
	g.succs[from] = append(g.succs[from], to)
	g.preds[to] = append(g.preds[to], from)
}

// InsertEdge places an edge from -> to at position idx of from's
// successor list, shifting later successors right.
func (g *Graph) InsertEdge(from, to NodeID, idx int) {
	s := g.succs[from]
	s = append(s, InvalidNode)
	copy(s[idx+1:], s[idx:])
	s[idx] = to
	g.succs[from] = s
	g.preds[to] = append(g.preds[to], from)
}

// RemoveEdge removes one occurrence of from -> to. Successor order of
// the remaining edges is preserved.
func (g *Graph) RemoveEdge(from, to NodeID) {
	g.succs[from] = removeOne(g.succs[from], to)
	g.preds[to] = removeOne(g.preds[to], from)
}

// ReplaceSuccessor rewires every occurrence of old in from's successor
// list to new, keeping the position.
func (g *Graph) ReplaceSuccessor(from, old, new NodeID) {
	for i, s := range g.succs[from] {
		if s == old {
			g.succs[from][i] = new
			g.preds[old] = removeOne(g.preds[old], from)
			g.preds[new] = append(g.preds[new], from)
		}
	}
}

// RemoveNode detaches id from the graph and marks it dead. The identity
// is never reused.
func (g *Graph) RemoveNode(id NodeID) {
	for _, s := range g.succs[id] {
		g.preds[s] = removeOne(g.preds[s], id)
	}
	for _, p := range g.preds[id] {
		g.succs[p] = removeAll(g.succs[p], id)
	}
	g.succs[id] = nil
	g.preds[id] = nil
	g.live[id] = false
}

// Successors returns the ordered successor list of id. The slice is
// owned by the graph and must not be mutated by the caller.
func (g *Graph) Successors(id NodeID) []NodeID {
	return g.succs[id]
}

// Predecessors returns the predecessors of id, one entry per incoming
// edge, in no particular order.
func (g *Graph) Predecessors(id NodeID) []NodeID {
	return g.preds[id]
}

// Clone returns an independent copy sharing no storage with g.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		succs: make([][]NodeID, len(g.succs)),
		preds: make([][]NodeID, len(g.preds)),
		live:  append([]bool(nil), g.live...),
	}
	for i := range g.succs {
		out.succs[i] = append([]NodeID(nil), g.succs[i]...)
		out.preds[i] = append([]NodeID(nil), g.preds[i]...)
	}
	return out
}

// PostOrder returns a DFS postordering of the nodes reachable from
// entry, visiting successors left to right.
func (g *Graph) PostOrder(entry NodeID) []NodeID {
	seen := make([]bool, len(g.succs))
	order := make([]NodeID, 0, len(g.succs))

	type frame struct {
		n   NodeID
		idx int
	}
	stack := []frame{{n: entry}}
	seen[entry] = true
	for len(stack) > 0 {
		tos := len(stack) - 1
		f := stack[tos]
		if f.idx < len(g.succs[f.n]) {
			stack[tos].idx++
			s := g.succs[f.n][f.idx]
			if g.live[s] && !seen[s] {
				seen[s] = true
				stack = append(stack, frame{n: s})
			}
			continue
		}
		order = append(order, f.n)
		stack = stack[:tos]
	}
	return order
}

// ReversePostOrder returns the reverse postordering from entry.
func (g *Graph) ReversePostOrder(entry NodeID) []NodeID {
	po := g.PostOrder(entry)
	for i, j := 0, len(po)-1; i < j; i, j = i+1, j-1 {
		po[i], po[j] = po[j], po[i]
	}
	return po
}

// Reachable returns the set of nodes reachable from entry.
func (g *Graph) Reachable(entry NodeID) map[NodeID]bool {
	seen := map[NodeID]bool{entry: true}
	work := []NodeID{entry}
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		for _, s := range g.succs[n] {
			if g.live[s] && !seen[s] {
				seen[s] = true
				work = append(work, s)
			}
		}
	}
	return seen
}

func removeOne(s []NodeID, v NodeID) []NodeID {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func removeAll(s []NodeID, v NodeID) []NodeID {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
