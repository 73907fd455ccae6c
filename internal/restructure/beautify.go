package restructure

import (
	"github.com/pfez/revng-c/internal/ast"
	"github.com/pfez/revng-c/internal/ir"
)

// Beautification passes. Ordering matters: inlineDispatcherSwitch must
// run before simplifyDualSwitch, because it reads the dispatcher-kind
// attribute of Switch nodes, which If nodes do not carry; once a two-case
// dispatcher switch has been promoted to an If the attribute is gone.
func beautify(t *ast.Tree) error {
	inlineDispatcherSwitch(t)
	simplifyDualSwitch(t)
	simplifySequences(t)
	markBreaksWithinSwitch(t)
	markImplicitReturns(t)
	return nil
}

// markBreaksWithinSwitch flags loop breaks nested in switch cases: the
// printer must route them around the implicit break of the switch.
func markBreaksWithinSwitch(t *ast.Tree) {
	var mark func(n ast.Node, inSwitch bool)
	mark = func(n ast.Node, inSwitch bool) {
		switch v := n.(type) {
		case nil:
		case *ast.BreakNode:
			if inSwitch {
				v.FromWithinSwitch = true
			}
		case *ast.SwitchNode:
			for _, c := range v.Cases {
				mark(c.Body, true)
			}
		case *ast.SequenceNode:
			for _, c := range v.Children {
				mark(c, inSwitch)
			}
		case *ast.IfNode:
			mark(v.Then, inSwitch)
			mark(v.Else, inSwitch)
		case *ast.ScsNode:
			// A nested loop captures its own breaks.
			mark(v.Body, false)
		}
	}
	mark(t.Root(), false)
}

// inlineDispatcherSwitch removes dispatcher switches whose state
// variable can only ever hold one value: the matching case is the only
// reachable one, so the switch collapses to its body and the dead set
// nodes disappear.
func inlineDispatcherSwitch(t *ast.Tree) {
	// Collect the values each dispatcher kind actually assigns.
	assigned := map[ast.DispatcherKind]map[uint64]int{
		ast.EntryDispatcher: {},
		ast.ExitDispatcher:  {},
	}
	ast.Walk(t.Root(), func(n ast.Node) {
		if s, ok := n.(*ast.SetNode); ok && s.Dispatcher != ast.NotADispatcher {
			assigned[s.Dispatcher][s.StateVariable]++
		}
	})

	single := func(kind ast.DispatcherKind) (uint64, bool) {
		if len(assigned[kind]) != 1 {
			return 0, false
		}
		for v := range assigned[kind] {
			return v, true
		}
		return 0, false
	}

	subst := make(map[ast.Node]ast.Node)
	ast.Walk(t.Root(), func(n ast.Node) {
		sw, ok := n.(*ast.SwitchNode)
		if !ok || sw.Dispatcher == ast.NotADispatcher {
			return
		}
		v, ok := single(sw.Dispatcher)
		if !ok {
			return
		}
		for _, c := range sw.Cases {
			if !matchesLabel(c, v) {
				continue
			}
			body := stripSwitchBreaks(t, c.Body, sw)
			if body == nil {
				body = t.NewSequence()
			}
			subst[sw] = body
			return
		}
	})
	if len(subst) > 0 {
		t.Substitute(subst)
		dropSingleValueSets(t)
	}
}

func matchesLabel(c ast.SwitchCase, v uint64) bool {
	for _, l := range c.Labels {
		if l == v {
			return true
		}
	}
	return c.IsDefault()
}

// stripSwitchBreaks removes the breaks referencing sw from an inlined
// case body.
func stripSwitchBreaks(t *ast.Tree, body ast.Node, sw *ast.SwitchNode) ast.Node {
	switch v := body.(type) {
	case nil:
		return nil
	case *ast.SwitchBreakNode:
		if v.Parent == sw {
			return nil
		}
	case *ast.SequenceNode:
		out := v.Children[:0]
		for _, c := range v.Children {
			if sb, ok := c.(*ast.SwitchBreakNode); ok && sb.Parent == sw {
				continue
			}
			out = append(out, c)
		}
		v.Children = out
	}
	return body
}

// dropSingleValueSets deletes the set nodes of a dispatcher kind once
// its switch is gone.
func dropSingleValueSets(t *ast.Tree) {
	stillSwitched := map[ast.DispatcherKind]bool{}
	ast.Walk(t.Root(), func(n ast.Node) {
		if sw, ok := n.(*ast.SwitchNode); ok && sw.Dispatcher != ast.NotADispatcher {
			stillSwitched[sw.Dispatcher] = true
		}
	})
	ast.Walk(t.Root(), func(n ast.Node) {
		seq, ok := n.(*ast.SequenceNode)
		if !ok {
			return
		}
		out := seq.Children[:0]
		for _, c := range seq.Children {
			if s, isSet := c.(*ast.SetNode); isSet && !stillSwitched[s.Dispatcher] {
				continue
			}
			out = append(out, c)
		}
		seq.Children = out
	})
}

// simplifyDualSwitch promotes dispatcher switches with one or two
// cases to If nodes testing the state variable.
func simplifyDualSwitch(t *ast.Tree) {
	subst := make(map[ast.Node]ast.Node)
	ast.Walk(t.Root(), func(n ast.Node) {
		sw, ok := n.(*ast.SwitchNode)
		if !ok || sw.Dispatcher == ast.NotADispatcher || len(sw.Cases) > 2 {
			return
		}
		if len(sw.Cases) == 0 {
			subst[sw] = t.NewSequence()
			return
		}

		first := sw.Cases[0]
		var cond ast.Expr
		if first.IsDefault() {
			// A leading default tests nothing; swap so the labelled
			// case drives the condition.
			if len(sw.Cases) == 1 {
				body := stripSwitchBreaks(t, first.Body, sw)
				if body == nil {
					body = t.NewSequence()
				}
				subst[sw] = body
				return
			}
			sw.Cases[0], sw.Cases[1] = sw.Cases[1], sw.Cases[0]
			first = sw.Cases[0]
		}
		cond = &ast.StateEqualsExpr{Value: first.Labels[0]}

		then := stripSwitchBreaks(t, first.Body, sw)
		var els ast.Node
		if len(sw.Cases) == 2 {
			els = stripSwitchBreaks(t, sw.Cases[1].Body, sw)
		}
		promoted := t.NewIf(sw.BB(), cond, then, els)
		promoted.Weaved = sw.Weaved
		subst[sw] = promoted
	})
	if len(subst) > 0 {
		t.Substitute(subst)
	}
}

// simplifySequences flattens nested sequences and unwraps those with a
// single statement.
func simplifySequences(t *ast.Tree) {
	var simplify func(n ast.Node) ast.Node
	simplify = func(n ast.Node) ast.Node {
		switch v := n.(type) {
		case nil:
			return nil
		case *ast.SequenceNode:
			var flat []ast.Node
			for _, c := range v.Children {
				c = simplify(c)
				if c == nil {
					continue
				}
				if inner, ok := c.(*ast.SequenceNode); ok {
					flat = append(flat, inner.Children...)
					continue
				}
				flat = append(flat, c)
			}
			v.Children = flat
			if len(flat) == 1 {
				return flat[0]
			}
			return v
		case *ast.IfNode:
			v.Then = simplify(v.Then)
			v.Else = simplify(v.Else)
			if seq, ok := v.Then.(*ast.SequenceNode); ok && len(seq.Children) == 0 {
				v.Then = nil
			}
			if seq, ok := v.Else.(*ast.SequenceNode); ok && len(seq.Children) == 0 {
				v.Else = nil
			}
			return v
		case *ast.ScsNode:
			v.Body = simplify(v.Body)
			return v
		case *ast.SwitchNode:
			for i := range v.Cases {
				v.Cases[i].Body = simplify(v.Cases[i].Body)
			}
			return v
		}
		return n
	}
	t.SetRoot(simplify(t.Root()))
}

// markImplicitReturns flags trailing code blocks that end in a bare
// return: the printer can leave the statement out.
func markImplicitReturns(t *ast.Tree) {
	var last ast.Node = t.Root()
	if seq, ok := last.(*ast.SequenceNode); ok && len(seq.Children) > 0 {
		last = seq.Children[len(seq.Children)-1]
	}
	code, ok := last.(*ast.CodeNode)
	if !ok || code.BB() == nil {
		return
	}
	if ret, isRet := code.BB().Term.(*ir.Ret); isRet && !ret.HasValue {
		code.ImplicitReturn = true
	}
}
