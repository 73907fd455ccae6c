// Package bitliveness computes, for every integer SSA value, the
// number of low-order result bits that may influence a data-flow sink.
// The analysis is a backward monotone fixpoint over a data-flow graph
// built by reversing the use-def edges of a function, and its result
// feeds the type-shrinking pass.
package bitliveness

import (
	"github.com/pfez/revng-c/internal/graph"
	"github.com/pfez/revng-c/internal/ir"
)

// DataFlowNode wraps one instruction or terminator of the function.
// Exactly one of Ins and Term is set.
type DataFlowNode struct {
	Ins  ir.Instr
	Term ir.Term
}

// Operands returns the node's inputs.
func (n *DataFlowNode) Operands() []ir.Operand {
	if n.Ins != nil {
		return n.Ins.Operands()
	}
	switch t := n.Term.(type) {
	case *ir.Ret:
		if t.HasValue {
			return []ir.Operand{t.Value}
		}
	case *ir.CondBr:
		return []ir.Operand{t.Cond}
	case *ir.Switch:
		return []ir.Operand{t.Cond}
	}
	return nil
}

// IsSink reports whether the node is a data-flow sink: an instruction
// with side effects or a control-flow terminator. Sinks observe their
// operands fully.
func (n *DataFlowNode) IsSink() bool {
	if n.Term != nil {
		return true
	}
	return ir.HasSideEffects(n.Ins)
}

// DataFlowGraph is the reversed use-def graph of one function,
// restricted to integer-typed values: an edge runs from each user to
// the definition of every integer operand it reads.
type DataFlowGraph struct {
	g     *graph.Graph
	nodes []*DataFlowNode
	defs  map[ir.ValueID]graph.NodeID
}

// BuildDataFlowGraph constructs the DFG of f.
func BuildDataFlowGraph(f *ir.Function) *DataFlowGraph {
	dfg := &DataFlowGraph{
		g:    graph.New(),
		defs: make(map[ir.ValueID]graph.NodeID),
	}

	add := func(n *DataFlowNode) graph.NodeID {
		id := dfg.g.AddNode()
		dfg.nodes = append(dfg.nodes, n)
		return id
	}

	for _, b := range f.Blocks {
		for _, ins := range b.Instrs {
			id := add(&DataFlowNode{Ins: ins})
			if res := ins.Result(); res != ir.InvalidValue {
				dfg.defs[res] = id
			}
		}
		if b.Term != nil {
			add(&DataFlowNode{Term: b.Term})
		}
	}

	for id, n := range dfg.nodes {
		for _, op := range n.Operands() {
			if op.IsConst || op.Value == ir.InvalidValue {
				continue
			}
			if _, isInt := op.IntBits(); !isInt {
				continue
			}
			def, ok := dfg.defs[op.Value]
			if !ok {
				// Parameters and externally defined values have no
				// producer to propagate into.
				continue
			}
			dfg.g.AddEdge(graph.NodeID(id), def)
		}
	}
	return dfg
}

// Node returns the payload of a DFG node.
func (d *DataFlowGraph) Node(id graph.NodeID) *DataFlowNode {
	return d.nodes[id]
}

// Graph exposes the underlying graph.
func (d *DataFlowGraph) Graph() *graph.Graph {
	return d.g
}

// Sinks returns the sink nodes.
func (d *DataFlowGraph) Sinks() []graph.NodeID {
	var out []graph.NodeID
	for id, n := range d.nodes {
		if n.IsSink() {
			out = append(out, graph.NodeID(id))
		}
	}
	return out
}
