package flowgraph

import "github.com/pfez/revng-c/internal/graph"

// Region is a single-entry single-exit sub-graph: all paths into the
// members enter at Header, all paths out leave towards Exit.
type Region struct {
	Header  *BBNode
	Exit    *BBNode
	Members map[*BBNode]bool
}

// Weave identifies the non-trivial SESE regions of the graph using the
// post-dominator test: a branching node h and its immediate
// post-dominator e delimit a region when every node between them is
// dominated by h and reachable only from inside. Regions are returned
// innermost first.
func (rc *RegionCFG) Weave() []Region {
	dom := rc.Dominators()
	pdom := rc.PostDominators()

	var regions []Region
	for _, h := range rc.Nodes() {
		if len(rc.Successors(h)) < 2 {
			continue
		}
		exitID := pdom.IDom(h.ID())
		if exitID == graph.InvalidNode || !rc.g.Has(exitID) {
			continue
		}
		e := rc.nodes[exitID]
		members := rc.between(h, e)
		if members == nil || len(members) < 2 {
			continue
		}
		valid := true
		for n := range members {
			if !dom.Dominates(h.ID(), n.ID()) {
				valid = false
				break
			}
			if n == h {
				continue
			}
			for _, p := range rc.Predecessors(n) {
				if !members[p] {
					valid = false
					break
				}
			}
			if !valid {
				break
			}
		}
		if valid {
			regions = append(regions, Region{Header: h, Exit: e, Members: members})
		}
	}

	// Innermost first: fewer members, then header identity for
	// determinism.
	for i := 1; i < len(regions); i++ {
		for j := i; j > 0; j-- {
			a, b := regions[j-1], regions[j]
			if len(b.Members) < len(a.Members) ||
				(len(b.Members) == len(a.Members) && b.Header.ID() < a.Header.ID()) {
				regions[j-1], regions[j] = b, a
			}
		}
	}
	return regions
}

// between returns the nodes reachable from h without crossing e, or nil
// when some path from h escapes to a node that cannot reach e.
func (rc *RegionCFG) between(h, e *BBNode) map[*BBNode]bool {
	members := map[*BBNode]bool{h: true}
	work := []*BBNode{h}
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		if len(rc.Successors(n)) == 0 && n != h {
			// A sink strictly inside the candidate region means the
			// region has a second exit.
			return nil
		}
		for _, s := range rc.Successors(n) {
			if s == e || members[s] {
				continue
			}
			members[s] = true
			work = append(work, s)
		}
	}
	return members
}

// CollapseRegions repeatedly collapses the innermost weaveable region
// into a Collapsed node whose sub-graph ends in ExitSentinel sinks.
// The region header keeps its role as sub-graph entry; a Code header
// becomes a Tile, the one kind mutation the model allows.
func (rc *RegionCFG) CollapseRegions() {
	for {
		regions := rc.Weave()
		if len(regions) == 0 {
			return
		}
		rc.collapseRegion(regions[0])
	}
}

func (rc *RegionCFG) collapseRegion(r Region) {
	sub := New()
	clone := make(map[*BBNode]*BBNode, len(r.Members))
	var ordered []*BBNode
	for _, n := range rc.Nodes() {
		if r.Members[n] {
			ordered = append(ordered, n)
		}
	}
	for _, n := range ordered {
		kind := n.kind
		if n == r.Header && kind == Code {
			kind = Tile
		}
		clone[n] = sub.add(&BBNode{
			kind:          kind,
			name:          n.name,
			bb:            n.bb,
			stateVariable: n.stateVariable,
			sub:           n.sub,
			loop:          n.loop,
			header:        n.header,
			role:          n.role,
			exitIndex:     n.exitIndex,
		})
	}
	sub.SetEntry(clone[r.Header])

	for _, n := range ordered {
		for _, s := range rc.Successors(n) {
			if s == r.Exit {
				out := sub.NewSentinel(ExitSentinel, 0)
				sub.AddEdge(clone[n], out)
				continue
			}
			sub.AddEdge(clone[n], clone[s])
		}
	}

	coll := rc.add(&BBNode{kind: Collapsed, sub: sub})
	for _, p := range append([]*BBNode(nil), rc.Predecessors(r.Header)...) {
		if !r.Members[p] {
			rc.ReplaceSuccessor(p, r.Header, coll)
		}
	}
	rc.AddEdge(coll, r.Exit)
	if rc.entry == r.Header.ID() {
		rc.entry = coll.ID()
	}
	for n := range r.Members {
		rc.RemoveNode(n)
	}
	rc.invalidate()
}
