// Package dataflow provides a generic worklist driver for monotone
// fixpoint analyses over the graph kernel. Bit-liveness instantiates
// it; the driver itself knows nothing about lattices beyond equality
// of elements.
package dataflow

import "github.com/pfez/revng-c/internal/graph"

// Problem describes a monotone dataflow problem. Recompute must be
// monotone in the current assignment: re-evaluating a node never
// lowers its value. Under that condition the fixpoint is reached in at
// most O(nodes x lattice-height) recomputations.
type Problem[E comparable] interface {
	// Initial returns the starting value of a node.
	Initial(n graph.NodeID) E
	// Recompute returns the new value of n given the current
	// assignment of every node.
	Recompute(n graph.NodeID, values map[graph.NodeID]E) E
	// Dependents returns the nodes to revisit when n's value changes.
	Dependents(n graph.NodeID) []graph.NodeID
}

// Fixpoint runs the worklist iteration: the seeds are pushed first,
// and every change propagates to the dependents until quiescence.
func Fixpoint[E comparable](g *graph.Graph, p Problem[E], seeds []graph.NodeID) map[graph.NodeID]E {
	values := make(map[graph.NodeID]E, g.NumNodes())
	for _, n := range g.Nodes() {
		values[n] = p.Initial(n)
	}

	work := make([]graph.NodeID, 0, len(seeds))
	queued := make(map[graph.NodeID]bool, len(seeds))
	push := func(n graph.NodeID) {
		if !queued[n] {
			queued[n] = true
			work = append(work, n)
		}
	}
	for _, s := range seeds {
		push(s)
	}

	for len(work) > 0 {
		n := work[0]
		work = work[1:]
		queued[n] = false

		next := p.Recompute(n, values)
		if next == values[n] {
			continue
		}
		values[n] = next
		for _, d := range p.Dependents(n) {
			push(d)
		}
	}
	return values
}
