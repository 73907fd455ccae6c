package graph

// TopologicallyEquivalent decides whether the graphs rooted at rootA
// and rootB are isomorphic under a bijection that preserves successor
// ordering. sameLabel compares the payloads of a candidate pair; a
// mismatched fan-out or label makes the graphs unequal.
//
// The bijection is materialised by a synchronised BFS from the two
// roots: the i-th successor of a node must map to the i-th successor of
// its image, and a node may have only one image.
func TopologicallyEquivalent(a, b *Graph, rootA, rootB NodeID, sameLabel func(x, y NodeID) bool) bool {
	if !sameLabel(rootA, rootB) {
		return false
	}

	aToB := map[NodeID]NodeID{rootA: rootB}
	bToA := map[NodeID]NodeID{rootB: rootA}

	type pair struct{ x, y NodeID }
	queue := []pair{{rootA, rootB}}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		sx := a.Successors(p.x)
		sy := b.Successors(p.y)
		if len(sx) != len(sy) {
			return false
		}
		for i := range sx {
			cx, cy := sx[i], sy[i]
			mx, okx := aToB[cx]
			my, oky := bToA[cy]
			switch {
			case okx && oky:
				// Both already mapped: the bijection must agree.
				if mx != cy || my != cx {
					return false
				}
			case okx || oky:
				// Only one side mapped: the candidate pair conflicts
				// with an established image.
				return false
			default:
				if !sameLabel(cx, cy) {
					return false
				}
				aToB[cx] = cy
				bToA[cy] = cx
				queue = append(queue, pair{cx, cy})
			}
		}
	}
	return true
}
