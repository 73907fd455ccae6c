// Package restructure implements the combing engine: it turns the
// region CFG of a function into a structured AST through weaving,
// inflation, collapsing, loop identification, dispatcher insertion and
// a final post-order emission, followed by the beautification passes.
package restructure

import (
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/pfez/revng-c/internal/ast"
	"github.com/pfez/revng-c/internal/flowgraph"
	"github.com/pfez/revng-c/internal/graph"
	"github.com/pfez/revng-c/internal/ir"
)

// ErrDispatcherMismatch is returned when a set node exists without the
// dispatcher consuming its state variable.
var ErrDispatcherMismatch = errors.New("set node without matching dispatcher")

// Options tunes the combing engine.
type Options struct {
	// DuplicateWhileConditionInBody additionally emits the loop-test
	// block's instructions as leading statements of a while body, on
	// top of the mandated tail emission.
	DuplicateWhileConditionInBody bool

	// MaxInflation caps how many nodes inflation may duplicate per
	// region. Zero keeps the built-in bound; a negative value disables
	// duplication entirely. Merges surviving the budget are routed
	// through an entry dispatcher instead of being duplicated.
	MaxInflation int
}

// Restructure combs the function into a structured AST. The pass is
// all-or-nothing: on any fatal error no tree is returned.
func Restructure(f *ir.Function, opts Options) (*ast.Tree, error) {
	rc := flowgraph.FromFunction(f)
	if rc.Entry() == nil {
		return nil, fmt.Errorf("function %s has no entry block", f.Name)
	}
	return RestructureCFG(rc, opts)
}

// RestructureCFG combs an already-built region CFG. The graph is
// consumed: combing mutates it freely.
func RestructureCFG(rc *flowgraph.RegionCFG, opts Options) (*ast.Tree, error) {
	rc.Canonicalize()
	if err := rc.CheckReducible(); err != nil {
		return nil, err
	}

	// Loop bodies collapse innermost-first; what remains is acyclic.
	if err := rc.CollapseLoops(); err != nil {
		return nil, err
	}
	rc.InsertExitDispatchers()

	inflateAll(rc, opts)

	// Dispatcher invariants are checked before weaving: collapsing can
	// legitimately fold a dispatcher into a tile.
	if err := validateDispatchers(rc, false); err != nil {
		return nil, err
	}
	collapseAll(rc)

	e := &emitter{tree: ast.NewTree(), opts: opts}
	root, err := e.emitChain(rc, rc.Entry(), nil, nil)
	if err != nil {
		return nil, err
	}
	e.tree.SetRoot(root)
	e.tree.Flatten()

	if err := beautify(e.tree); err != nil {
		return nil, err
	}
	klog.V(2).Infof("restructured region: %d AST nodes", len(e.tree.Nodes()))
	return e.tree, nil
}

// inflateAll combs the region and, recursively, every collapsed
// sub-graph. Merges that survive the duplication budget are the
// entries of a region the comb cannot afford to copy out; they are
// routed through an entry dispatcher instead, so duplication stays
// bounded and the multi-entry region becomes a switch over a fresh
// state variable.
func inflateAll(rc *flowgraph.RegionCFG, opts Options) {
	budget := opts.MaxInflation
	if budget == 0 {
		budget = 64*rc.NumNodes() + 256
	}
	if budget < 0 {
		budget = 0
	}

	survivors := rc.InflateBounded(budget)
	if entries := independentEntries(rc, survivors); len(entries) >= 2 {
		rc.InsertEntryDispatcher(entries)
		klog.V(2).Infof("entry dispatcher over %d region entries", len(entries))
	}

	for _, n := range rc.Nodes() {
		if n.Sub() != nil {
			inflateAll(n.Sub(), opts)
		}
	}
}

// independentEntries keeps the surviving merges that are not reachable
// from one another: rerouting an edge whose source a chosen entry can
// reach would close a cycle through the dispatcher. A merge dropped
// here stays unstructured and is duplicated at emission time instead.
func independentEntries(rc *flowgraph.RegionCFG, merges []*flowgraph.BBNode) []*flowgraph.BBNode {
	var chosen []*flowgraph.BBNode
	reach := make(map[graph.NodeID]bool)
	for _, m := range merges {
		if reach[m.ID()] {
			continue
		}
		chosen = append(chosen, m)
		for id := range rc.Graph().Reachable(m.ID()) {
			reach[id] = true
		}
	}
	return chosen
}

// collapseAll weaves the region and every sub-graph into maximal SESE
// tiles.
func collapseAll(rc *flowgraph.RegionCFG) {
	rc.CollapseRegions()
	for _, n := range rc.Nodes() {
		if n.Sub() != nil {
			collapseAll(n.Sub())
		}
	}
}

// validateDispatchers checks the dispatcher invariants: dispatchers
// fan out to at least two targets, entry sets imply an entry
// dispatcher in the same graph, and exit sets only appear inside loop
// bodies that drain into an exit dispatcher.
func validateDispatchers(rc *flowgraph.RegionCFG, insideLoop bool) error {
	hasEntrySet := false
	hasEntryDispatcher := false
	for _, n := range rc.Nodes() {
		switch n.Kind() {
		case flowgraph.EntrySet:
			hasEntrySet = true
		case flowgraph.EntryDispatcher:
			hasEntryDispatcher = true
			if len(rc.Successors(n)) < 2 {
				return fmt.Errorf("%w: dispatcher %d has %d successors",
					ErrDispatcherMismatch, n.ID(), len(rc.Successors(n)))
			}
		case flowgraph.ExitDispatcher:
			if len(rc.Successors(n)) < 2 {
				return fmt.Errorf("%w: dispatcher %d has %d successors",
					ErrDispatcherMismatch, n.ID(), len(rc.Successors(n)))
			}
		case flowgraph.ExitSet:
			if !insideLoop {
				return fmt.Errorf("%w: exit set %d outside any loop",
					ErrDispatcherMismatch, n.ID())
			}
		}
		if n.IsSet() && len(rc.Successors(n)) != 1 {
			return fmt.Errorf("%w: set node %d has %d successors",
				ErrDispatcherMismatch, n.ID(), len(rc.Successors(n)))
		}
	}
	if hasEntrySet && !hasEntryDispatcher {
		return fmt.Errorf("%w: entry set without entry dispatcher", ErrDispatcherMismatch)
	}
	for _, n := range rc.Nodes() {
		if n.Sub() == nil {
			continue
		}
		if n.IsLoop() {
			if subHasExitSets(n.Sub()) && !loopHasDispatcher(rc, n) {
				return fmt.Errorf("%w: loop %d breaks with exit sets but has no exit dispatcher",
					ErrDispatcherMismatch, n.ID())
			}
		}
		if err := validateDispatchers(n.Sub(), n.IsLoop() || insideLoop); err != nil {
			return err
		}
	}
	return nil
}

func subHasExitSets(sub *flowgraph.RegionCFG) bool {
	for _, n := range sub.Nodes() {
		if n.Kind() == flowgraph.ExitSet {
			return true
		}
	}
	return false
}

func loopHasDispatcher(rc *flowgraph.RegionCFG, loop *flowgraph.BBNode) bool {
	succs := rc.Successors(loop)
	return len(succs) == 1 && succs[0].Kind() == flowgraph.ExitDispatcher
}
