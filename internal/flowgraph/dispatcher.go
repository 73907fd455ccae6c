package flowgraph

// Dispatcher synthesis. A region with several entries or several exits
// is not expressible with structured constructs; a dispatcher routes
// control through a switch over a fresh state variable, with set nodes
// on each rerouted edge.

// InsertExitDispatchers gives every collapsed loop with more than one
// exit target an exit dispatcher: inside the body each break sentinel
// is prefixed with an ExitSet node carrying its exit index, and in the
// parent graph the loop node's successors are moved onto a fresh
// ExitDispatcher whose i-th successor is the i-th exit target.
func (rc *RegionCFG) InsertExitDispatchers() {
	nodes := rc.Nodes()
	for _, n := range nodes {
		if n.sub != nil {
			n.sub.InsertExitDispatchers()
		}
		if !n.IsLoop() {
			continue
		}
		targets := append([]*BBNode(nil), rc.Successors(n)...)
		if len(targets) < 2 {
			continue
		}

		for _, b := range n.sub.Nodes() {
			if b.role != BreakSentinel {
				continue
			}
			set := n.sub.NewSet(ExitSet, uint64(b.exitIndex))
			for _, p := range append([]*BBNode(nil), n.sub.Predecessors(b)...) {
				n.sub.ReplaceSuccessor(p, b, set)
			}
			n.sub.AddEdge(set, b)
		}

		d := rc.NewDispatcher(ExitDispatcher)
		for _, t := range targets {
			rc.RemoveEdge(n, t)
		}
		rc.AddEdge(n, d)
		for _, t := range targets {
			rc.AddEdge(d, t)
		}
	}
}

// InsertEntryDispatcher gives a multi-entry region a single entry:
// every incoming edge of entries[i] is rerouted through an EntrySet
// node with state value i leading to a fresh EntryDispatcher, whose
// i-th successor is entries[i]. The entries must not be reachable from
// one another, otherwise rerouting would close a cycle through the
// dispatcher.
func (rc *RegionCFG) InsertEntryDispatcher(entries []*BBNode) *BBNode {
	d := rc.NewDispatcher(EntryDispatcher)
	for i, m := range entries {
		seen := make(map[*BBNode]bool)
		for _, p := range append([]*BBNode(nil), rc.Predecessors(m)...) {
			if seen[p] {
				continue
			}
			seen[p] = true
			set := rc.NewSet(EntrySet, uint64(i))
			rc.ReplaceSuccessor(p, m, set)
			rc.AddEdge(set, d)
		}
		rc.AddEdge(d, m)
	}
	return d
}
