package restructure

import (
	"fmt"

	"github.com/pfez/revng-c/internal/ast"
	"github.com/pfez/revng-c/internal/flowgraph"
	"github.com/pfez/revng-c/internal/graph"
	"github.com/pfez/revng-c/internal/ir"
)

// emitter materialises AST variants from the collapsed region tree.
// Construction uses the hybrid successor-pointer form: every emitted
// node is chained to the next statement, and Tree.Flatten later folds
// the chains into Sequence nodes.
type emitter struct {
	tree *ast.Tree
	opts Options
}

// loopCtx carries the enclosing-loop information a body emission
// needs: the loop test (attached to explicit continues as their
// recomputation) and, for do-whiles, the latch to stop at.
type loopCtx struct {
	condIf *ast.IfNode
	latch  *flowgraph.BBNode
}

// chain accumulates a successor-linked statement list.
type chain struct {
	head, tail ast.Node
}

func (c *chain) append(n ast.Node) {
	if n == nil {
		return
	}
	if c.head == nil {
		c.head = n
	} else {
		c.tail.SetSuccessor(n)
	}
	c.tail = n
	for c.tail.Successor() != nil {
		c.tail = c.tail.Successor()
	}
}

// emitChain emits the statements from `from` up to (excluding) `stop`.
func (e *emitter) emitChain(rc *flowgraph.RegionCFG, from, stop *flowgraph.BBNode, lc *loopCtx) (ast.Node, error) {
	var out chain
	cur := from
	for cur != nil && cur != stop {
		next, err := e.emitNode(rc, cur, stop, lc, &out)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return out.head, nil
}

// emitNode appends the statement(s) for cur and returns the node the
// chain continues at.
func (e *emitter) emitNode(rc *flowgraph.RegionCFG, cur, stop *flowgraph.BBNode, lc *loopCtx, out *chain) (*flowgraph.BBNode, error) {
	switch cur.Kind() {
	case flowgraph.Empty:
		switch cur.Role() {
		case flowgraph.ContinueSentinel:
			cont := e.tree.NewContinue()
			if lc != nil {
				cont.Computation = lc.condIf
			}
			out.append(cont)
			return nil, nil
		case flowgraph.BreakSentinel:
			out.append(e.tree.NewBreak())
			return nil, nil
		case flowgraph.ExitSentinel:
			return nil, nil
		}
		return e.singleSuccessor(rc, cur), nil

	case flowgraph.EntrySet:
		out.append(e.tree.NewSet(ast.EntryDispatcher, cur.StateVariable()))
		return e.singleSuccessor(rc, cur), nil

	case flowgraph.ExitSet:
		out.append(e.tree.NewSet(ast.ExitDispatcher, cur.StateVariable()))
		return e.singleSuccessor(rc, cur), nil

	case flowgraph.EntryDispatcher, flowgraph.ExitDispatcher:
		return e.emitDispatcher(rc, cur, stop, lc, out)

	case flowgraph.Collapsed:
		if cur.IsLoop() {
			return e.emitLoop(rc, cur, out)
		}
		body, err := e.emitChain(cur.Sub(), cur.Sub().Entry(), nil, lc)
		if err != nil {
			return nil, err
		}
		out.append(body)
		return e.singleSuccessor(rc, cur), nil

	case flowgraph.Code, flowgraph.Tile, flowgraph.Weaved:
		return e.emitCode(rc, cur, stop, lc, out)
	}
	return nil, fmt.Errorf("unexpected node kind %s in emission", cur.Kind())
}

func (e *emitter) singleSuccessor(rc *flowgraph.RegionCFG, n *flowgraph.BBNode) *flowgraph.BBNode {
	succs := rc.Successors(n)
	if len(succs) == 0 {
		return nil
	}
	return succs[0]
}

// follow resolves the immediate post-dominator of n inside rc, the
// point where the paths diverging at n reconverge.
func (e *emitter) follow(rc *flowgraph.RegionCFG, n *flowgraph.BBNode) *flowgraph.BBNode {
	id := rc.PostDominators().IDom(n.ID())
	if id == graph.InvalidNode {
		return nil
	}
	return rc.Node(id)
}

// emitCode handles nodes backed by (possibly synthetic) basic blocks:
// straight-line code, two-way conditionals, switches, and returns.
func (e *emitter) emitCode(rc *flowgraph.RegionCFG, cur, stop *flowgraph.BBNode, lc *loopCtx, out *chain) (*flowgraph.BBNode, error) {
	if lc != nil && cur == lc.latch {
		// Do-while latch: its instructions close the body, the test
		// itself lives on the loop node.
		out.append(e.tree.NewCode(cur.Block()))
		return nil, nil
	}

	succs := rc.Successors(cur)
	bb := cur.Block()

	var term ir.Term
	if bb != nil {
		term = bb.Term
	}

	switch t := term.(type) {
	case *ir.CondBr:
		return e.emitIf(rc, cur, stop, lc, out, t.Cond, t.Negated)
	case *ir.Switch:
		return e.emitSwitch(rc, cur, stop, lc, out, &t.Cond)
	}

	// Synthetic nodes (dot fixtures) branch without a terminator.
	if bb == nil && len(succs) == 2 {
		return e.emitIf(rc, cur, stop, lc, out, ir.Operand{}, false)
	}
	if bb == nil && len(succs) > 2 {
		return e.emitSwitch(rc, cur, stop, lc, out, nil)
	}

	out.append(e.tree.NewCode(bb))
	if len(succs) == 0 {
		return nil, nil
	}
	return succs[0], nil
}

func (e *emitter) emitIf(rc *flowgraph.RegionCFG, cur, stop *flowgraph.BBNode, lc *loopCtx, out *chain, cond ir.Operand, negated bool) (*flowgraph.BBNode, error) {
	succs := rc.Successors(cur)
	if len(succs) != 2 {
		return nil, fmt.Errorf("conditional node %d has %d successors", cur.ID(), len(succs))
	}
	fol := e.follow(rc, cur)
	if fol == nil {
		fol = stop
	}

	branch := func(target *flowgraph.BBNode) (ast.Node, error) {
		if target == fol || target == stop {
			return nil, nil
		}
		return e.emitChain(rc, target, fol, lc)
	}
	then, err := branch(succs[0])
	if err != nil {
		return nil, err
	}
	els, err := branch(succs[1])
	if err != nil {
		return nil, err
	}

	n := e.tree.NewIf(cur.Block(), &ast.AtomExpr{BB: cur.Block(), Cond: cond}, then, els)
	n.Negated = negated
	out.append(n)
	if fol == stop {
		return nil, nil
	}
	return fol, nil
}

func (e *emitter) emitSwitch(rc *flowgraph.RegionCFG, cur, stop *flowgraph.BBNode, lc *loopCtx, out *chain, cond *ir.Operand) (*flowgraph.BBNode, error) {
	succs := rc.Successors(cur)
	fol := e.follow(rc, cur)
	if fol == nil {
		fol = stop
	}

	// Label sets follow the terminator's case order, with the default
	// (the trailing successor) carrying the empty set.
	var labels [][]uint64
	if bb := cur.Block(); bb != nil {
		if sw, ok := bb.Term.(*ir.Switch); ok {
			for _, c := range sw.Cases {
				labels = append(labels, []uint64{c.Value})
			}
			if sw.Default != nil {
				labels = append(labels, nil)
			}
		}
	}
	for len(labels) < len(succs) {
		labels = append(labels, []uint64{uint64(len(labels))})
	}

	swNode := e.tree.NewSwitch(cur.Block(), cond, ast.NotADispatcher, nil)
	swNode.Weaved = cur.Kind() == flowgraph.Weaved
	for i, s := range succs {
		var body ast.Node
		if s != fol && s != stop {
			var err error
			body, err = e.emitChain(rc, s, fol, lc)
			if err != nil {
				return nil, err
			}
		}
		c := chain{}
		c.append(body)
		c.append(e.tree.NewSwitchBreak(swNode))
		swNode.Cases = append(swNode.Cases, ast.SwitchCase{Labels: labels[i], Body: c.head})
	}
	out.append(swNode)
	if fol == stop {
		return nil, nil
	}
	return fol, nil
}

// emitDispatcher renders a dispatcher node as a switch over the state
// variable.
func (e *emitter) emitDispatcher(rc *flowgraph.RegionCFG, cur, stop *flowgraph.BBNode, lc *loopCtx, out *chain) (*flowgraph.BBNode, error) {
	succs := rc.Successors(cur)
	if len(succs) < 2 {
		return nil, fmt.Errorf("%w: dispatcher %d has %d successors",
			ErrDispatcherMismatch, cur.ID(), len(succs))
	}
	fol := e.follow(rc, cur)
	if fol == nil {
		fol = stop
	}

	kind := ast.ExitDispatcher
	if cur.Kind() == flowgraph.EntryDispatcher {
		kind = ast.EntryDispatcher
	}
	swNode := e.tree.NewSwitch(nil, nil, kind, nil)
	for i, s := range succs {
		var body ast.Node
		if s != fol && s != stop {
			var err error
			body, err = e.emitChain(rc, s, fol, lc)
			if err != nil {
				return nil, err
			}
		}
		c := chain{}
		c.append(body)
		c.append(e.tree.NewSwitchBreak(swNode))
		swNode.Cases = append(swNode.Cases, ast.SwitchCase{Labels: []uint64{uint64(i)}, Body: c.head})
	}
	out.append(swNode)
	if fol == stop {
		return nil, nil
	}
	return fol, nil
}

// emitLoop renders a collapsed loop body as an Scs node, classifying
// it as while, do-while, or while-true.
func (e *emitter) emitLoop(rc *flowgraph.RegionCFG, cur *flowgraph.BBNode, out *chain) (*flowgraph.BBNode, error) {
	sub := cur.Sub()

	// Weaving may have folded the original header into a collapsed
	// tile; the sub-graph entry is then the loop entry.
	header := cur.LoopHeader()
	if header == nil || sub.Node(header.ID()) == nil {
		header = sub.Entry()
	}

	if whileInfo, ok := e.classifyWhile(sub, header); ok {
		return e.emitWhile(rc, cur, whileInfo, out)
	}
	if dwInfo, ok := e.classifyDoWhile(sub, header); ok {
		return e.emitDoWhile(rc, cur, dwInfo, out)
	}
	return e.emitWhileTrue(rc, cur, header, out)
}

// condExit describes a conditional loop test: the testing node, which
// successor index stays in the loop, and the branch negation.
type condExit struct {
	node    *flowgraph.BBNode
	inIdx   int
	negated bool
}

// loopExitTarget reports whether n's i-th successor leaves the loop
// body directly. An exit routed through an ExitSet keeps the loop in
// while-true form, so the state variable is assigned on every leaving
// path.
func loopExitTarget(sub *flowgraph.RegionCFG, n *flowgraph.BBNode, i int) bool {
	return sub.Successors(n)[i].Role() == flowgraph.BreakSentinel
}

func conditional(n *flowgraph.BBNode) (negated bool, ok bool) {
	if n.Block() != nil {
		_, neg, isCond := n.Block().ConditionalBranch()
		return neg, isCond
	}
	return false, false
}

// classifyWhile recognises a loop whose header is a conditional with
// exactly one branch leaving the loop.
func (e *emitter) classifyWhile(sub *flowgraph.RegionCFG, header *flowgraph.BBNode) (condExit, bool) {
	neg, ok := conditional(header)
	if !ok || len(sub.Successors(header)) != 2 {
		return condExit{}, false
	}
	exit0 := loopExitTarget(sub, header, 0)
	exit1 := loopExitTarget(sub, header, 1)
	if exit0 == exit1 {
		return condExit{}, false
	}
	in := 0
	if exit0 {
		in = 1
	}
	// The loop runs while control takes the in-loop branch: taking the
	// else branch complements the test.
	return condExit{node: header, inIdx: in, negated: neg != (in == 1)}, true
}

// classifyDoWhile recognises a loop with a unique conditional latch
// whose branches are the loopback and a loop exit.
func (e *emitter) classifyDoWhile(sub *flowgraph.RegionCFG, header *flowgraph.BBNode) (condExit, bool) {
	latches := sub.Latches()
	if len(latches) != 1 {
		return condExit{}, false
	}
	latch := latches[0]
	neg, ok := conditional(latch)
	if !ok || len(sub.Successors(latch)) != 2 {
		return condExit{}, false
	}
	var backIdx = -1
	for i, s := range sub.Successors(latch) {
		if s.Role() == flowgraph.ContinueSentinel {
			backIdx = i
		}
	}
	if backIdx < 0 {
		return condExit{}, false
	}
	if !loopExitTarget(sub, latch, 1-backIdx) {
		return condExit{}, false
	}
	return condExit{node: latch, inIdx: backIdx, negated: neg != (backIdx == 1)}, true
}

func (e *emitter) loopCondition(ce condExit) *ast.IfNode {
	var cond ir.Operand
	if ce.node.Block() != nil {
		cond, _, _ = ce.node.Block().ConditionalBranch()
	}
	n := e.tree.NewIf(ce.node.Block(), &ast.AtomExpr{BB: ce.node.Block(), Cond: cond}, nil, nil)
	n.Negated = ce.negated
	return n
}

func (e *emitter) emitWhile(rc *flowgraph.RegionCFG, cur *flowgraph.BBNode, ce condExit, out *chain) (*flowgraph.BBNode, error) {
	sub := cur.Sub()
	header := ce.node
	condIf := e.loopCondition(ce)
	lc := &loopCtx{condIf: condIf}

	bodyEntry := sub.Successors(header)[ce.inIdx]
	body, err := e.emitChain(sub, bodyEntry, nil, lc)
	if err != nil {
		return nil, err
	}

	bodyChain := chain{}
	if e.opts.DuplicateWhileConditionInBody {
		bodyChain.append(e.tree.NewCode(header.Block()))
	}
	bodyChain.append(body)
	body = e.retargetTailContinue(bodyChain.head, header)

	// The loop test's instructions run once before the loop and once
	// at the tail of every iteration; the AST statements are distinct
	// but share the block.
	out.append(e.tree.NewCode(header.Block()))

	scs := e.tree.NewScs(header.Block(), body)
	scs.SetWhile(condIf)
	out.append(scs)
	return e.singleSuccessor(rc, cur), nil
}

func (e *emitter) emitDoWhile(rc *flowgraph.RegionCFG, cur *flowgraph.BBNode, ce condExit, out *chain) (*flowgraph.BBNode, error) {
	sub := cur.Sub()
	condIf := e.loopCondition(ce)
	lc := &loopCtx{condIf: condIf, latch: ce.node}

	body, err := e.emitChain(sub, sub.Entry(), nil, lc)
	if err != nil {
		return nil, err
	}

	scs := e.tree.NewScs(ce.node.Block(), body)
	scs.SetDoWhile(condIf)
	out.append(scs)
	return e.singleSuccessor(rc, cur), nil
}

func (e *emitter) emitWhileTrue(rc *flowgraph.RegionCFG, cur, header *flowgraph.BBNode, out *chain) (*flowgraph.BBNode, error) {
	sub := cur.Sub()
	body, err := e.emitChain(sub, header, nil, nil)
	if err != nil {
		return nil, err
	}
	markTailContinueImplicit(body)
	scs := e.tree.NewScs(nil, body)
	out.append(scs)
	return e.singleSuccessor(rc, cur), nil
}

// retargetTailContinue replaces a trailing explicit continue of a
// while body with the loop-test block's instructions: the loopback is
// implicit there and only the recomputation remains.
func (e *emitter) retargetTailContinue(body ast.Node, header *flowgraph.BBNode) ast.Node {
	if body == nil {
		return e.tree.NewCode(header.Block())
	}
	var prev ast.Node
	tail := body
	for tail.Successor() != nil {
		prev = tail
		tail = tail.Successor()
	}
	if _, isCont := tail.(*ast.ContinueNode); !isCont {
		return body
	}
	code := e.tree.NewCode(header.Block())
	if prev == nil {
		return code
	}
	prev.SetSuccessor(code)
	return body
}

func markTailContinueImplicit(body ast.Node) {
	if body == nil {
		return
	}
	tail := body
	for tail.Successor() != nil {
		tail = tail.Successor()
	}
	if c, ok := tail.(*ast.ContinueNode); ok {
		c.Implicit = true
	}
}
