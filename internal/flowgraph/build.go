package flowgraph

import (
	"errors"
	"fmt"

	"github.com/pfez/revng-c/internal/ir"
)

// ErrIrreducible is returned when a region cannot be structurally
// recovered. The wrapping error carries the offending region's entry.
var ErrIrreducible = errors.New("irreducible control flow")

// FromFunction builds the RegionCFG of f: one Code node per basic
// block, edges following terminator successor order.
func FromFunction(f *ir.Function) *RegionCFG {
	rc := New()
	byBlock := make(map[*ir.Block]*BBNode, len(f.Blocks))
	for _, b := range f.Blocks {
		byBlock[b] = rc.NewCode(b, b.Name)
	}
	for _, b := range f.Blocks {
		for _, s := range b.Successors() {
			rc.AddEdge(byBlock[b], byBlock[s])
		}
	}
	if entry := f.Entry(); entry != nil {
		rc.SetEntry(byBlock[entry])
	}
	return rc
}

// CheckReducible verifies that every cycle edge targets a node
// dominating its source, i.e. that all loops are natural. Any other
// retreating edge makes the region irreducible.
func (rc *RegionCFG) CheckReducible() error {
	dom := rc.Dominators()

	const (
		white = iota
		gray
		black
	)
	color := make(map[*BBNode]int)

	var visit func(n *BBNode) error
	visit = func(n *BBNode) error {
		color[n] = gray
		for _, s := range rc.Successors(n) {
			switch color[s] {
			case white:
				if err := visit(s); err != nil {
					return err
				}
			case gray:
				if !dom.Dominates(s.ID(), n.ID()) {
					return fmt.Errorf("%w: region entry %d", ErrIrreducible, s.ID())
				}
			}
		}
		color[n] = black
		return nil
	}
	if entry := rc.Entry(); entry != nil {
		return visit(entry)
	}
	return nil
}

// BackEdges returns the natural-loop back edges (source, header) of the
// region, assuming CheckReducible passed.
func (rc *RegionCFG) BackEdges() [][2]*BBNode {
	dom := rc.Dominators()
	var out [][2]*BBNode
	for _, n := range rc.Nodes() {
		for _, s := range rc.Successors(n) {
			if dom.Dominates(s.ID(), n.ID()) {
				out = append(out, [2]*BBNode{n, s})
			}
		}
	}
	return out
}
