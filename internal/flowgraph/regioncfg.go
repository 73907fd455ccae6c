package flowgraph

import (
	"github.com/pfez/revng-c/internal/graph"
	"github.com/pfez/revng-c/internal/ir"
)

// RegionCFG owns a set of BBNodes and their ordered edges. It has a
// single entry; the exit set is computed. Dominator and post-dominator
// trees are cached lazily and recomputed from scratch after any
// mutation: the combing phases mutate coarsely, so recomputation beats
// incremental maintenance.
type RegionCFG struct {
	g     *graph.Graph
	nodes []*BBNode
	entry graph.NodeID

	// latches is set on loop-body sub-graphs by CollapseLoops.
	latches []*BBNode

	dom  *graph.DomTree
	pdom *graph.DomTree
}

// New returns an empty RegionCFG.
func New() *RegionCFG {
	return &RegionCFG{g: graph.New(), entry: graph.InvalidNode}
}

func (rc *RegionCFG) add(n *BBNode) *BBNode {
	n.id = rc.g.AddNode()
	rc.nodes = append(rc.nodes, n)
	rc.invalidate()
	return n
}

// NewCode adds a node wrapping the given basic block. A nil block
// yields a named synthetic code node (used by the dot fixtures).
func (rc *RegionCFG) NewCode(bb *ir.Block, name string) *BBNode {
	return rc.add(&BBNode{kind: Code, bb: bb, name: name})
}

// NewEmpty adds an empty synthetic node.
func (rc *RegionCFG) NewEmpty() *BBNode {
	return rc.add(&BBNode{kind: Empty})
}

// NewSentinel adds a loop sentinel.
func (rc *RegionCFG) NewSentinel(role SentinelRole, exitIndex int) *BBNode {
	return rc.add(&BBNode{kind: Empty, role: role, exitIndex: exitIndex})
}

// NewSet adds a state-variable assignment node of the given kind.
// A set node has exactly one successor.
func (rc *RegionCFG) NewSet(kind Kind, value uint64) *BBNode {
	if kind != EntrySet && kind != ExitSet {
		panic("flowgraph: set node kind must be EntrySet or ExitSet")
	}
	return rc.add(&BBNode{kind: kind, stateVariable: value})
}

// NewDispatcher adds a dispatcher node of the given kind. The caller
// must give it at least two successors, one per state value in order.
func (rc *RegionCFG) NewDispatcher(kind Kind) *BBNode {
	if kind != EntryDispatcher && kind != ExitDispatcher {
		panic("flowgraph: dispatcher kind must be EntryDispatcher or ExitDispatcher")
	}
	return rc.add(&BBNode{kind: kind})
}

// NewCollapsed adds a node standing for the given sub-graph.
func (rc *RegionCFG) NewCollapsed(sub *RegionCFG) *BBNode {
	return rc.add(&BBNode{kind: Collapsed, sub: sub})
}

// SetEntry designates the region entry.
func (rc *RegionCFG) SetEntry(n *BBNode) {
	rc.entry = n.id
	rc.invalidate()
}

// Entry returns the region entry node.
func (rc *RegionCFG) Entry() *BBNode {
	if rc.entry == graph.InvalidNode {
		return nil
	}
	return rc.nodes[rc.entry]
}

// Node returns the node with the given identity, or nil if removed.
func (rc *RegionCFG) Node(id graph.NodeID) *BBNode {
	if !rc.g.Has(id) {
		return nil
	}
	return rc.nodes[id]
}

// Nodes returns the live nodes in insertion order.
func (rc *RegionCFG) Nodes() []*BBNode {
	ids := rc.g.Nodes()
	out := make([]*BBNode, len(ids))
	for i, id := range ids {
		out[i] = rc.nodes[id]
	}
	return out
}

// NumNodes returns the number of live nodes.
func (rc *RegionCFG) NumNodes() int {
	return len(rc.g.Nodes())
}

// AddEdge appends an edge preserving successor order.
func (rc *RegionCFG) AddEdge(from, to *BBNode) {
	rc.g.AddEdge(from.id, to.id)
	rc.invalidate()
}

// RemoveEdge removes one occurrence of from -> to.
func (rc *RegionCFG) RemoveEdge(from, to *BBNode) {
	rc.g.RemoveEdge(from.id, to.id)
	rc.invalidate()
}

// ReplaceSuccessor rewires every from -> old edge to from -> new,
// keeping its position in the successor list.
func (rc *RegionCFG) ReplaceSuccessor(from, old, new *BBNode) {
	rc.g.ReplaceSuccessor(from.id, old.id, new.id)
	rc.invalidate()
}

// RemoveNode detaches and discards a node.
func (rc *RegionCFG) RemoveNode(n *BBNode) {
	rc.g.RemoveNode(n.id)
	rc.invalidate()
}

// Successors returns the ordered successors of n.
func (rc *RegionCFG) Successors(n *BBNode) []*BBNode {
	ids := rc.g.Successors(n.id)
	out := make([]*BBNode, len(ids))
	for i, id := range ids {
		out[i] = rc.nodes[id]
	}
	return out
}

// Predecessors returns the predecessors of n, one per incoming edge.
func (rc *RegionCFG) Predecessors(n *BBNode) []*BBNode {
	ids := rc.g.Predecessors(n.id)
	out := make([]*BBNode, len(ids))
	for i, id := range ids {
		out[i] = rc.nodes[id]
	}
	return out
}

// ExitNodes returns the nodes with no successors, in insertion order.
func (rc *RegionCFG) ExitNodes() []*BBNode {
	var out []*BBNode
	for _, n := range rc.Nodes() {
		if len(rc.g.Successors(n.id)) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Graph exposes the underlying graph for the kernel algorithms.
func (rc *RegionCFG) Graph() *graph.Graph {
	return rc.g
}

func (rc *RegionCFG) invalidate() {
	rc.dom = nil
	rc.pdom = nil
}

// Dominators returns the cached dominator tree, recomputing on demand.
func (rc *RegionCFG) Dominators() *graph.DomTree {
	if rc.dom == nil {
		rc.dom = graph.Dominators(rc.g, rc.entry)
	}
	return rc.dom
}

// PostDominators returns the cached post-dominator tree.
func (rc *RegionCFG) PostDominators() *graph.DomTree {
	if rc.pdom == nil {
		exits := rc.ExitNodes()
		ids := make([]graph.NodeID, len(exits))
		for i, e := range exits {
			ids[i] = e.id
		}
		rc.pdom = graph.PostDominators(rc.g, rc.entry, ids)
	}
	return rc.pdom
}

// Canonicalize removes the nodes unreachable from the entry.
func (rc *RegionCFG) Canonicalize() {
	reach := rc.g.Reachable(rc.entry)
	for _, id := range rc.g.Nodes() {
		if !reach[id] {
			rc.g.RemoveNode(id)
		}
	}
	rc.invalidate()
}

// CloneNode duplicates n, preserving kind, name, originating basic
// block, state variable, collapsed sub-graph and loop metadata, and
// the outgoing edges in order. A cloned Collapsed node shares the
// sub-graph with the original. Incoming edges are not copied:
// inflation rewires them explicitly.
func (rc *RegionCFG) CloneNode(n *BBNode) *BBNode {
	dup := rc.add(&BBNode{
		kind:          n.kind,
		name:          n.name,
		bb:            n.bb,
		stateVariable: n.stateVariable,
		sub:           n.sub,
		loop:          n.loop,
		header:        n.header,
		role:          n.role,
		exitIndex:     n.exitIndex,
	})
	for _, s := range rc.g.Successors(n.id) {
		rc.g.AddEdge(dup.id, s)
	}
	rc.invalidate()
	return dup
}

// IsTopologicallyEquivalent reports whether rc and other are isomorphic
// under a successor-order-preserving bijection matching node kinds and
// state-variable values.
func (rc *RegionCFG) IsTopologicallyEquivalent(other *RegionCFG) bool {
	if rc.Entry() == nil || other.Entry() == nil {
		return rc.Entry() == nil && other.Entry() == nil
	}
	same := func(x, y graph.NodeID) bool {
		a, b := rc.nodes[x], other.nodes[y]
		return a.kind == b.kind && a.stateVariable == b.stateVariable
	}
	return graph.TopologicallyEquivalent(rc.g, other.g, rc.entry, other.entry, same)
}
