package flowgraph

import (
	"fmt"
)

// CollapseLoops rewrites every natural loop of the region into a single
// Collapsed node carrying the loop body as a sub-graph. Innermost loops
// collapse first, so after the pass the region and every sub-graph are
// acyclic. In the body, back edges are replaced by ContinueSentinel
// sinks and loop-leaving edges by BreakSentinel sinks remembering which
// exit target they stood for; the Collapsed node receives one ordered
// successor per distinct exit target.
//
// Requires CheckReducible to have passed: an edge entering a loop body
// anywhere but its header would make the region irreducible.
func (rc *RegionCFG) CollapseLoops() error {
	for {
		back := rc.BackEdges()
		if len(back) == 0 {
			return nil
		}

		// Group latches by header.
		latches := make(map[*BBNode][]*BBNode)
		var headers []*BBNode
		for _, e := range back {
			if _, ok := latches[e[1]]; !ok {
				headers = append(headers, e[1])
			}
			latches[e[1]] = append(latches[e[1]], e[0])
		}

		header := rc.innermost(headers, latches)
		if err := rc.collapseLoop(header, latches[header]); err != nil {
			return err
		}
	}
}

// innermost picks a header whose loop body contains no other header.
func (rc *RegionCFG) innermost(headers []*BBNode, latches map[*BBNode][]*BBNode) *BBNode {
	isHeader := make(map[*BBNode]bool, len(headers))
	for _, h := range headers {
		isHeader[h] = true
	}
	for _, h := range headers {
		body := rc.loopBody(h, latches[h])
		inner := true
		for n := range body {
			if n != h && isHeader[n] {
				inner = false
				break
			}
		}
		if inner {
			return h
		}
	}
	// Unreachable for reducible regions; pick deterministically anyway.
	return headers[0]
}

// loopBody returns the natural loop of (header, latches): the header
// plus every node that reaches a latch without passing through the
// header.
func (rc *RegionCFG) loopBody(header *BBNode, latches []*BBNode) map[*BBNode]bool {
	body := map[*BBNode]bool{header: true}
	work := make([]*BBNode, 0, len(latches))
	for _, l := range latches {
		if !body[l] {
			body[l] = true
			work = append(work, l)
		}
	}
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		for _, p := range rc.Predecessors(n) {
			if !body[p] {
				body[p] = true
				work = append(work, p)
			}
		}
	}
	return body
}

// collapseLoop extracts one loop into a Collapsed node.
func (rc *RegionCFG) collapseLoop(header *BBNode, latchList []*BBNode) error {
	body := rc.loopBody(header, latchList)

	// Any edge from outside into a non-header body node is irreducible.
	for n := range body {
		if n == header {
			continue
		}
		for _, p := range rc.Predecessors(n) {
			if !body[p] {
				return fmt.Errorf("%w: region entry %d", ErrIrreducible, header.ID())
			}
		}
	}

	sub := New()
	clone := make(map[*BBNode]*BBNode, len(body))
	// Insertion order of the parent keeps the sub-graph deterministic.
	var ordered []*BBNode
	for _, n := range rc.Nodes() {
		if body[n] {
			ordered = append(ordered, n)
		}
	}
	for _, n := range ordered {
		clone[n] = sub.add(&BBNode{
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
	}
	sub.SetEntry(clone[header])

	// Exit targets in first-seen order over the deterministic node and
	// successor ordering.
	var exitTargets []*BBNode
	exitIndex := make(map[*BBNode]int)

	var subLatches []*BBNode
	for _, n := range ordered {
		for _, s := range rc.Successors(n) {
			switch {
			case s == header:
				// Back edge becomes a private continue sentinel.
				cont := sub.NewSentinel(ContinueSentinel, 0)
				sub.AddEdge(clone[n], cont)
				if len(subLatches) == 0 || subLatches[len(subLatches)-1] != clone[n] {
					subLatches = append(subLatches, clone[n])
				}
			case body[s]:
				sub.AddEdge(clone[n], clone[s])
			default:
				idx, ok := exitIndex[s]
				if !ok {
					idx = len(exitTargets)
					exitIndex[s] = idx
					exitTargets = append(exitTargets, s)
				}
				brk := sub.NewSentinel(BreakSentinel, idx)
				sub.AddEdge(clone[n], brk)
			}
		}
	}
	sub.latches = subLatches

	// Splice the Collapsed node into the parent.
	coll := rc.add(&BBNode{kind: Collapsed, sub: sub, loop: true, header: clone[header]})
	for _, p := range append([]*BBNode(nil), rc.Predecessors(header)...) {
		if !body[p] {
			rc.ReplaceSuccessor(p, header, coll)
		}
	}
	for _, t := range exitTargets {
		rc.AddEdge(coll, t)
	}
	if rc.entry == header.ID() {
		rc.entry = coll.ID()
	}
	for n := range body {
		rc.RemoveNode(n)
	}
	rc.invalidate()

	// Loops may nest: the extracted body can still carry back edges.
	return sub.CollapseLoops()
}

// IsLoop reports whether a Collapsed node stands for a loop body.
func (n *BBNode) IsLoop() bool { return n.kind == Collapsed && n.loop }

// LoopHeader returns the header node inside the sub-graph of a
// collapsed loop.
func (n *BBNode) LoopHeader() *BBNode { return n.header }

// Latches returns the latch nodes of a collapsed loop body, inside the
// sub-graph.
func (rc *RegionCFG) Latches() []*BBNode { return rc.latches }
