package ast

import (
	"fmt"
	"io"

	"github.com/emicklei/dot"
)

// WriteDot renders the tree to w for debugging. The format mirrors the
// CFG dump: one node per AST node, named after its ID and labelled with
// its kind, child edges in structural order.
func (t *Tree) WriteDot(w io.Writer) error {
	g := dot.NewGraph(dot.Directed)
	var render func(n Node) (dot.Node, bool)
	render = func(n Node) (dot.Node, bool) {
		if n == nil {
			return dot.Node{}, false
		}
		dn := g.Node(fmt.Sprintf("n%d", n.ID()))
		dn.Attr("label", label(n))
		link := func(c Node, edge string) {
			if dc, ok := render(c); ok {
				g.Edge(dn, dc).Attr("label", edge)
			}
		}
		switch v := n.(type) {
		case *IfNode:
			link(v.Then, "then")
			link(v.Else, "else")
		case *ScsNode:
			link(v.Body, "body")
		case *SequenceNode:
			for i, c := range v.Children {
				link(c, fmt.Sprintf("%d", i))
			}
		case *SwitchNode:
			for i, c := range v.Cases {
				name := fmt.Sprintf("case %d", i)
				if c.IsDefault() {
					name = "default"
				}
				link(c.Body, name)
			}
		}
		link(n.Successor(), "succ")
		return dn, true
	}
	render(t.root)
	_, err := io.WriteString(w, g.String())
	return err
}

func label(n Node) string {
	switch v := n.(type) {
	case *CodeNode:
		if v.BB() != nil {
			return fmt.Sprintf("code %s", v.BB().Name)
		}
		return "code"
	case *IfNode:
		if v.Negated {
			return "if (negated)"
		}
		return "if"
	case *ScsNode:
		return v.Kind.String()
	case *SequenceNode:
		return "sequence"
	case *SwitchNode:
		switch v.Dispatcher {
		case EntryDispatcher:
			return "switch (entry dispatcher)"
		case ExitDispatcher:
			return "switch (exit dispatcher)"
		}
		return "switch"
	case *SwitchBreakNode:
		return "switch break"
	case *BreakNode:
		return "break"
	case *ContinueNode:
		if v.Implicit {
			return "continue (implicit)"
		}
		return "continue"
	case *SetNode:
		return fmt.Sprintf("set %d", v.StateVariable)
	}
	return "?"
}
