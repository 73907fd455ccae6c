package ast

import "github.com/pfez/revng-c/internal/ir"

// Tree owns every node of one function's AST. Nodes are created
// through the tree so their IDs stay stable and dense; deletion is a
// single sweep when the tree itself is dropped.
type Tree struct {
	root  Node
	nodes []Node
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// Root returns the tree root.
func (t *Tree) Root() Node { return t.root }

// SetRoot designates the tree root.
func (t *Tree) SetRoot(n Node) { t.root = n }

// Nodes returns every node owned by the tree in creation order,
// including nodes no longer linked from the root.
func (t *Tree) Nodes() []Node { return t.nodes }

func (t *Tree) register(n Node, b *base) Node {
	b.id = len(t.nodes)
	t.nodes = append(t.nodes, n)
	return n
}

// NewCode creates a Code node for bb.
func (t *Tree) NewCode(bb *ir.Block) *CodeNode {
	n := &CodeNode{}
	n.bb = bb
	t.register(n, &n.base)
	return n
}

// NewIf creates an If node; bb is the condition block.
func (t *Tree) NewIf(bb *ir.Block, cond Expr, then, els Node) *IfNode {
	n := &IfNode{Cond: cond, Then: then, Else: els}
	n.bb = bb
	t.register(n, &n.base)
	return n
}

// NewScs creates a loop node, initially classified WhileTrue.
func (t *Tree) NewScs(bb *ir.Block, body Node) *ScsNode {
	n := &ScsNode{Kind: WhileTrue, Body: body}
	n.bb = bb
	t.register(n, &n.base)
	return n
}

// NewSequence creates an empty sequence.
func (t *Tree) NewSequence() *SequenceNode {
	n := &SequenceNode{}
	t.register(n, &n.base)
	return n
}

// NewSwitch creates a switch over cond; a nil cond makes a dispatcher
// switch testing the state variable.
func (t *Tree) NewSwitch(bb *ir.Block, cond *ir.Operand, kind DispatcherKind, cases []SwitchCase) *SwitchNode {
	n := &SwitchNode{Cond: cond, Dispatcher: kind, Cases: cases}
	n.bb = bb
	t.register(n, &n.base)
	return n
}

// NewSwitchBreak creates a break out of parent.
func (t *Tree) NewSwitchBreak(parent *SwitchNode) *SwitchBreakNode {
	n := &SwitchBreakNode{Parent: parent}
	t.register(n, &n.base)
	return n
}

// NewBreak creates a loop break.
func (t *Tree) NewBreak() *BreakNode {
	n := &BreakNode{}
	t.register(n, &n.base)
	return n
}

// NewContinue creates a loop continue.
func (t *Tree) NewContinue() *ContinueNode {
	n := &ContinueNode{}
	t.register(n, &n.base)
	return n
}

// NewSet creates a state-variable assignment.
func (t *Tree) NewSet(kind DispatcherKind, value uint64) *SetNode {
	n := &SetNode{StateVariable: value, Dispatcher: kind}
	t.register(n, &n.base)
	return n
}

// Clone returns a deep copy of the tree. Basic-block references and
// expression atoms are shared; every node and internal cross-pointer
// (switch-break parents, loop conditions) is remapped.
func (t *Tree) Clone() *Tree {
	out := NewTree()
	subst := make(map[Node]Node, len(t.nodes))
	for _, n := range t.nodes {
		subst[n] = out.cloneShallow(n)
	}
	for _, n := range t.nodes {
		updatePointers(subst[n], subst)
	}
	if t.root != nil {
		out.root = subst[t.root]
	}
	return out
}

func (t *Tree) cloneShallow(n Node) Node {
	switch v := n.(type) {
	case *CodeNode:
		c := *v
		t.register(&c, &c.base)
		return &c
	case *IfNode:
		c := *v
		t.register(&c, &c.base)
		return &c
	case *ScsNode:
		c := *v
		t.register(&c, &c.base)
		return &c
	case *SequenceNode:
		c := *v
		c.Children = append([]Node(nil), v.Children...)
		t.register(&c, &c.base)
		return &c
	case *SwitchNode:
		c := *v
		c.Cases = make([]SwitchCase, len(v.Cases))
		for i, cs := range v.Cases {
			c.Cases[i] = SwitchCase{
				Labels: append([]uint64(nil), cs.Labels...),
				Body:   cs.Body,
			}
		}
		t.register(&c, &c.base)
		return &c
	case *SwitchBreakNode:
		c := *v
		t.register(&c, &c.base)
		return &c
	case *BreakNode:
		c := *v
		t.register(&c, &c.base)
		return &c
	case *ContinueNode:
		c := *v
		t.register(&c, &c.base)
		return &c
	case *SetNode:
		c := *v
		t.register(&c, &c.base)
		return &c
	}
	panic("ast: unknown node kind")
}

func lookup(subst map[Node]Node, n Node) Node {
	if n == nil {
		return nil
	}
	if m, ok := subst[n]; ok {
		return m
	}
	return n
}

// updatePointers rewrites every child and successor reference of n
// through the substitution map. References missing from the map are
// kept as-is.
func updatePointers(n Node, subst map[Node]Node) {
	switch v := n.(type) {
	case *IfNode:
		v.Then = lookup(subst, v.Then)
		v.Else = lookup(subst, v.Else)
	case *ScsNode:
		v.Body = lookup(subst, v.Body)
		if v.RelatedCondition != nil {
			if cond, ok := lookup(subst, v.RelatedCondition).(*IfNode); ok {
				v.RelatedCondition = cond
			}
		}
	case *SequenceNode:
		for i := range v.Children {
			v.Children[i] = lookup(subst, v.Children[i])
		}
	case *SwitchNode:
		for i := range v.Cases {
			v.Cases[i].Body = lookup(subst, v.Cases[i].Body)
		}
	case *SwitchBreakNode:
		// A break may outlive its switch when the switch is promoted
		// or inlined away; only rewrites to another switch apply.
		if v.Parent != nil {
			if sw, ok := lookup(subst, v.Parent).(*SwitchNode); ok {
				v.Parent = sw
			}
		}
	case *ContinueNode:
		if v.Computation != nil {
			if comp, ok := lookup(subst, v.Computation).(*IfNode); ok {
				v.Computation = comp
			}
		}
	}
	if s := n.Successor(); s != nil {
		n.SetSuccessor(lookup(subst, s))
	}
}

// Substitute rewrites child pointers of every tree node through the
// given map.
func (t *Tree) Substitute(subst map[Node]Node) {
	for _, n := range t.nodes {
		updatePointers(n, subst)
	}
	if t.root != nil {
		t.root = lookup(subst, t.root)
	}
}

// Walk visits n and its children depth-first, pre-order.
func Walk(n Node, visit func(Node)) {
	if n == nil {
		return
	}
	visit(n)
	switch v := n.(type) {
	case *IfNode:
		Walk(v.Then, visit)
		Walk(v.Else, visit)
	case *ScsNode:
		Walk(v.Body, visit)
	case *SequenceNode:
		for _, c := range v.Children {
			Walk(c, visit)
		}
	case *SwitchNode:
		for _, c := range v.Cases {
			Walk(c.Body, visit)
		}
	}
	Walk(n.Successor(), visit)
}

// Equal reports structural equality of two subtrees. IDs are ignored;
// basic-block references compare by pointer, synthetic code nodes by
// nothing further.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !Equal(a.Successor(), b.Successor()) {
		return false
	}
	switch x := a.(type) {
	case *CodeNode:
		y, ok := b.(*CodeNode)
		return ok && x.BB() == y.BB() && x.ImplicitReturn == y.ImplicitReturn
	case *IfNode:
		y, ok := b.(*IfNode)
		return ok && x.BB() == y.BB() &&
			x.Negated == y.Negated &&
			ExprEqual(x.Cond, y.Cond) &&
			Equal(x.Then, y.Then) && Equal(x.Else, y.Else)
	case *ScsNode:
		y, ok := b.(*ScsNode)
		if !ok || x.Kind != y.Kind || !Equal(x.Body, y.Body) {
			return false
		}
		if (x.RelatedCondition == nil) != (y.RelatedCondition == nil) {
			return false
		}
		return x.RelatedCondition == nil || Equal(x.RelatedCondition, y.RelatedCondition)
	case *SequenceNode:
		y, ok := b.(*SequenceNode)
		if !ok || len(x.Children) != len(y.Children) {
			return false
		}
		for i := range x.Children {
			if !Equal(x.Children[i], y.Children[i]) {
				return false
			}
		}
		return true
	case *SwitchNode:
		y, ok := b.(*SwitchNode)
		if !ok || len(x.Cases) != len(y.Cases) ||
			x.Dispatcher != y.Dispatcher || x.Weaved != y.Weaved {
			return false
		}
		if (x.Cond == nil) != (y.Cond == nil) {
			return false
		}
		if x.Cond != nil && *x.Cond != *y.Cond {
			return false
		}
		for i := range x.Cases {
			cx, cy := x.Cases[i], y.Cases[i]
			if len(cx.Labels) != len(cy.Labels) {
				return false
			}
			for j := range cx.Labels {
				if cx.Labels[j] != cy.Labels[j] {
					return false
				}
			}
			if !Equal(cx.Body, cy.Body) {
				return false
			}
		}
		return true
	case *SwitchBreakNode:
		_, ok := b.(*SwitchBreakNode)
		return ok
	case *BreakNode:
		y, ok := b.(*BreakNode)
		return ok && x.FromWithinSwitch == y.FromWithinSwitch
	case *ContinueNode:
		y, ok := b.(*ContinueNode)
		if !ok || x.Implicit != y.Implicit {
			return false
		}
		if (x.Computation == nil) != (y.Computation == nil) {
			return false
		}
		return x.Computation == nil || Equal(x.Computation, y.Computation)
	case *SetNode:
		y, ok := b.(*SetNode)
		return ok && x.StateVariable == y.StateVariable && x.Dispatcher == y.Dispatcher
	}
	return false
}

// Flatten rewrites the whole tree into pure-tree form: every successor
// chain is absorbed into a Sequence, after which no non-Sequence node
// carries a successor.
func (t *Tree) Flatten() {
	t.root = t.flattenChain(t.root)
}

// flattenChain flattens the interiors of every node on the successor
// chain starting at head, then absorbs the chain into a Sequence when
// it is longer than one node.
func (t *Tree) flattenChain(head Node) Node {
	if head == nil {
		return nil
	}
	for n := head; n != nil; n = n.Successor() {
		t.flattenInterior(n)
	}
	if head.Successor() == nil {
		return head
	}
	seq := t.NewSequence()
	seq.AddNode(head)
	return seq
}

func (t *Tree) flattenInterior(n Node) {
	switch v := n.(type) {
	case *IfNode:
		v.Then = t.flattenChain(v.Then)
		v.Else = t.flattenChain(v.Else)
	case *ScsNode:
		v.Body = t.flattenChain(v.Body)
	case *SequenceNode:
		for i := range v.Children {
			v.Children[i] = t.flattenChain(v.Children[i])
		}
	case *SwitchNode:
		for i := range v.Cases {
			v.Cases[i].Body = t.flattenChain(v.Cases[i].Body)
		}
	}
}
