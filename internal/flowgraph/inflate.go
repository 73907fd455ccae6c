package flowgraph

import "github.com/pfez/revng-c/internal/graph"

// Inflate combs the region: every node reachable along multiple
// structurally-incomparable paths is duplicated, one copy per offending
// incoming edge, until every merge point is the immediate
// post-dominator of the conditional the merging paths diverged from.
// Duplication preserves the original successor ordering and the clones
// share the originating basic block.
//
// Back edges (edges to a dominator) are left alone: loops are handled
// by collapsing, and on a collapsed region the graph is acyclic.
//
// Duplication is bounded. Inflate uses the built-in budget; the merges
// it could not afford to duplicate are returned, in reverse postorder,
// for the caller to route through an entry dispatcher. An empty result
// means the region combed fully.
func (rc *RegionCFG) Inflate() []*BBNode {
	return rc.InflateBounded(64*rc.NumNodes() + 256)
}

// InflateBounded combs the region, duplicating at most maxClones nodes,
// and returns the offending merges that survived the budget.
func (rc *RegionCFG) InflateBounded(maxClones int) []*BBNode {
	clones := 0
	for {
		made := rc.inflateOne(maxClones - clones)
		if made == 0 {
			break
		}
		clones += made
	}
	return rc.OffendingMerges()
}

// inflateOne duplicates the first offending merge affordable within
// budget, found in reverse postorder, and returns the number of clones
// it made.
func (rc *RegionCFG) inflateOne(budget int) int {
	dom := rc.Dominators()
	pdom := rc.PostDominators()

	for _, id := range rc.g.ReversePostOrder(rc.entry) {
		if id == rc.entry {
			continue
		}
		m := rc.nodes[id]
		preds := rc.forwardPreds(m, dom)
		if len(preds) < 2 || rc.structuredMerge(m, preds, dom, pdom) {
			continue
		}
		if len(preds)-1 > budget {
			// Too expensive; a cheaper merge may still fit.
			continue
		}

		// Offending merge: keep the first incoming edge on the
		// original and give every other predecessor a private copy.
		for _, p := range preds[1:] {
			dup := rc.CloneNode(m)
			rc.g.ReplaceSuccessor(p.ID(), m.ID(), dup.ID())
		}
		rc.invalidate()
		return len(preds) - 1
	}
	return 0
}

// structuredMerge reports whether m is exactly where the paths from
// the nearest common dominator of its predecessors reconverge.
func (rc *RegionCFG) structuredMerge(m *BBNode, preds []*BBNode, dom, pdom *graph.DomTree) bool {
	ncd := preds[0].ID()
	for _, p := range preds[1:] {
		ncd = dom.NearestCommonDominator(ncd, p.ID())
	}
	return ncd != graph.InvalidNode && pdom.IDom(ncd) == m.ID()
}

// OffendingMerges returns, in reverse postorder, the merges the comb
// has not made structured.
func (rc *RegionCFG) OffendingMerges() []*BBNode {
	dom := rc.Dominators()
	pdom := rc.PostDominators()

	var out []*BBNode
	for _, id := range rc.g.ReversePostOrder(rc.entry) {
		if id == rc.entry {
			continue
		}
		m := rc.nodes[id]
		preds := rc.forwardPreds(m, dom)
		if len(preds) >= 2 && !rc.structuredMerge(m, preds, dom, pdom) {
			out = append(out, m)
		}
	}
	return out
}

// forwardPreds returns the distinct predecessors of m reached through
// non-back edges.
func (rc *RegionCFG) forwardPreds(m *BBNode, dom *graph.DomTree) []*BBNode {
	seen := make(map[graph.NodeID]bool)
	var out []*BBNode
	for _, p := range rc.Predecessors(m) {
		if dom.Dominates(m.ID(), p.ID()) {
			continue
		}
		if !seen[p.ID()] {
			seen[p.ID()] = true
			out = append(out, p)
		}
	}
	return out
}
