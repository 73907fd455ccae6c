package bitliveness

import (
	"math"
	"math/bits"

	"k8s.io/klog/v2"

	"github.com/pfez/revng-c/internal/dataflow"
	"github.com/pfez/revng-c/internal/graph"
	"github.com/pfez/revng-c/internal/ir"
)

// Top means every bit may be alive (or the width is unknown).
const Top uint32 = math.MaxUint32

// The lattice is {0, 1, ..., W, Top} with meet = max. Each transfer
// answers: assuming the first E bits of a user's result are alive, how
// many low-order bits of its operands are alive?

// maxOperandWidth returns the widest integer operand, or Top as soon
// as any operand is not an integer.
func maxOperandWidth(ops []ir.Operand) uint32 {
	var max uint32
	for _, op := range ops {
		w, ok := op.IntBits()
		if !ok {
			return Top
		}
		if w > max {
			max = w
		}
	}
	return max
}

// constShift returns the shift amount when the right operand is a
// constant.
func constShift(b *ir.Binary) (uint32, bool) {
	if !b.Right.IsConst {
		return 0, false
	}
	if b.Right.Const > uint64(Top)-1 {
		return Top - 1, true
	}
	return uint32(b.Right.Const), true
}

// transferBinary dispatches the opcode-specific transfers.
func transferBinary(b *ir.Binary, e uint32) uint32 {
	ops := b.Operands()
	opWidth := maxOperandWidth(ops)

	switch b.Op {
	case ir.And:
		// A constant mask caps liveness at its most significant set
		// bit: only the masked prefix flows through.
		r := min32(e, opWidth)
		for _, op := range ops {
			if op.IsConst {
				r = min32(r, uint32(bits.Len64(op.Const)))
			}
		}
		return r

	case ir.Or, ir.Xor, ir.Add, ir.Sub, ir.Mul:
		// Mul stays deliberately conservative: refining it needs a
		// carry-propagation analysis.
		return min32(e, opWidth)

	case ir.Shl:
		if k, ok := constShift(b); ok {
			if e < k {
				return 0
			}
			return e - k
		}
		return opWidth

	case ir.LShr, ir.AShr:
		if k, ok := constShift(b); ok {
			// Saturate instead of overflowing past Top.
			if Top-k < e {
				return Top
			}
			return min32(opWidth, e+k)
		}
		return opWidth
	}
	return min32(e, opWidth)
}

// transfer computes the operand liveness of node n given that the
// first e bits of its result are alive.
func transfer(n *DataFlowNode, e uint32) uint32 {
	if n.Ins == nil {
		return maxOperandWidth(n.Operands())
	}
	switch v := n.Ins.(type) {
	case *ir.Binary:
		return transferBinary(v, e)
	case *ir.Cast:
		switch v.Kind {
		case ir.Trunc:
			if wBits, ok := intBitsOf(v); ok {
				return min32(e, wBits)
			}
			return Top
		case ir.ZExt:
			return min32(e, maxOperandWidth(v.Operands()))
		}
		return maxOperandWidth(v.Operands())
	default:
		// By default every bit of the operands can be alive.
		return maxOperandWidth(n.Ins.Operands())
	}
}

func intBitsOf(c *ir.Cast) (uint32, bool) {
	op := ir.Operand{Type: c.Type}
	return op.IntBits()
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// problem adapts the DFG to the generic fixpoint driver. Values attach
// to DFG nodes; a definition's liveness is the meet (max) of what its
// users let through.
type problem struct {
	dfg *DataFlowGraph
}

func (p *problem) Initial(graph.NodeID) uint32 { return 0 }

func (p *problem) Recompute(n graph.NodeID, values map[graph.NodeID]uint32) uint32 {
	node := p.dfg.Node(n)
	if node.IsSink() {
		return Top
	}
	var e uint32
	for _, user := range p.dfg.g.Predecessors(n) {
		t := transfer(p.dfg.Node(user), values[user])
		if t > e {
			e = t
		}
	}
	return e
}

func (p *problem) Dependents(n graph.NodeID) []graph.NodeID {
	return p.dfg.g.Successors(n)
}

// Result holds the per-instruction live prefixes of one function.
type Result struct {
	byNode  map[graph.NodeID]uint32
	dfg     *DataFlowGraph
	byValue map[ir.ValueID]uint32
}

// Analyze runs the bit-liveness fixpoint on f.
func Analyze(f *ir.Function) *Result {
	dfg := BuildDataFlowGraph(f)
	values := dataflow.Fixpoint[uint32](dfg.g, &problem{dfg: dfg}, dfg.Sinks())

	r := &Result{
		byNode:  values,
		dfg:     dfg,
		byValue: make(map[ir.ValueID]uint32, len(dfg.defs)),
	}
	for v, id := range dfg.defs {
		r.byValue[v] = values[id]
	}
	klog.V(2).Infof("bit liveness for %s: %d nodes, %d sinks",
		f.Name, len(dfg.nodes), len(dfg.Sinks()))
	return r
}

// ValueBits returns the live prefix of a defined value, or Top for
// values the analysis never saw.
func (r *Result) ValueBits(v ir.ValueID) uint32 {
	if b, ok := r.byValue[v]; ok {
		return b
	}
	return Top
}

// InstrBits returns the live prefix of an instruction's result.
func (r *Result) InstrBits(ins ir.Instr) uint32 {
	if res := ins.Result(); res != ir.InvalidValue {
		return r.ValueBits(res)
	}
	return Top
}
