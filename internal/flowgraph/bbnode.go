// Package flowgraph owns the region control-flow graph the combing
// engine restructures. A RegionCFG is an arena of BBNodes with ordered
// successor edges; the successor position is semantic for conditional
// branches (then first) and for dispatchers (case order).
package flowgraph

import (
	"fmt"

	"github.com/pfez/revng-c/internal/graph"
	"github.com/pfez/revng-c/internal/ir"
)

// Kind categorises a BBNode. The kind never mutates after creation,
// with the single exception of Code becoming Tile while a region is
// collapsed around it.
type Kind int

const (
	// Code wraps an original IR basic block.
	Code Kind = iota
	// Empty is a synthetic node with no instructions.
	Empty
	// EntrySet assigns the state variable before entering a region
	// through an entry dispatcher.
	EntrySet
	// ExitSet assigns the state variable before leaving a region
	// through an exit dispatcher.
	ExitSet
	// EntryDispatcher switches over the state variable to route a
	// multi-entry region.
	EntryDispatcher
	// ExitDispatcher switches over the state variable to route a
	// multi-exit region.
	ExitDispatcher
	// Weaved marks a node synthesised while weaving switch regions.
	Weaved
	// Tile marks a Code node acting as the entry of a collapsed region.
	Tile
	// Collapsed stands for a whole sub-graph (a collapsed SESE region
	// or loop body).
	Collapsed
)

var kindNames = [...]string{
	"code", "empty", "entry-set", "exit-set",
	"entry-dispatcher", "exit-dispatcher",
	"weaved", "tile", "collapsed",
}

func (k Kind) String() string { return kindNames[k] }

// SentinelRole distinguishes the synthetic sinks a collapsed loop body
// uses in place of its removed back and exit edges.
type SentinelRole int

const (
	// NoSentinel is the role of ordinary nodes.
	NoSentinel SentinelRole = iota
	// ContinueSentinel replaces a latch's back edge to the loop header.
	ContinueSentinel
	// BreakSentinel replaces an edge leaving the loop; ExitIndex tells
	// which exit target it stood for.
	BreakSentinel
	// ExitSentinel replaces an edge leaving a collapsed SESE region
	// towards its unique exit.
	ExitSentinel
)

// BBNode is a basic-block node owned by exactly one RegionCFG.
type BBNode struct {
	id   graph.NodeID
	kind Kind
	name string

	// bb is the originating IR basic block; nil for synthetic nodes.
	// Duplicated nodes share the pointer.
	bb *ir.Block

	// stateVariable is meaningful for dispatchers and set nodes.
	stateVariable uint64

	// sub is the inner graph of a Collapsed node.
	sub *RegionCFG
	// loop marks a Collapsed node standing for a loop body; header is
	// then the loop header inside sub.
	loop   bool
	header *BBNode

	role      SentinelRole
	exitIndex int
}

// ID returns the node identity within its RegionCFG.
func (n *BBNode) ID() graph.NodeID { return n.id }

// Kind returns the node category.
func (n *BBNode) Kind() Kind { return n.kind }

// IsCode reports whether the node wraps an original basic block.
func (n *BBNode) IsCode() bool { return n.kind == Code || n.kind == Tile }

// IsDispatcher reports whether the node is an entry or exit dispatcher.
func (n *BBNode) IsDispatcher() bool {
	return n.kind == EntryDispatcher || n.kind == ExitDispatcher
}

// IsSet reports whether the node assigns the state variable.
func (n *BBNode) IsSet() bool {
	return n.kind == EntrySet || n.kind == ExitSet
}

// Block returns the originating IR basic block, or nil.
func (n *BBNode) Block() *ir.Block { return n.bb }

// StateVariable returns the dispatcher state value of a set node.
func (n *BBNode) StateVariable() uint64 { return n.stateVariable }

// Sub returns the inner graph of a Collapsed node, or nil.
func (n *BBNode) Sub() *RegionCFG { return n.sub }

// Role returns the loop-sentinel role of the node.
func (n *BBNode) Role() SentinelRole { return n.role }

// ExitIndex returns which loop exit a BreakSentinel stands for.
func (n *BBNode) ExitIndex() int { return n.exitIndex }

// Name returns a stable human-readable label for dumps.
func (n *BBNode) Name() string {
	if n.name != "" {
		return n.name
	}
	return fmt.Sprintf("%s_%d", n.kind, n.id)
}
