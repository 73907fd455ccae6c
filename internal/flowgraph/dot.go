package flowgraph

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/emicklei/dot"
)

// This file gives the RegionCFG a dot surface: WriteDot renders the
// graph for debugging, ParseDot loads the plain fixture grammar the
// combing tests use (node id, ordered successor edges, entry named by
// the caller). The dump format is not normative.

// WriteDot renders the region to w in graphviz dot syntax. Successor
// edges keep their semantic order.
func (rc *RegionCFG) WriteDot(w io.Writer) error {
	g := dot.NewGraph(dot.Directed)
	byNode := make(map[*BBNode]dot.Node)
	for _, n := range rc.Nodes() {
		dn := g.Node(n.Name())
		if n.IsDispatcher() || n.IsSet() {
			dn.Attr("shape", "diamond")
			dn.Attr("label", fmt.Sprintf("%s %d", n.kind, n.stateVariable))
		}
		if n == rc.Entry() {
			dn.Attr("shape", "box")
		}
		byNode[n] = dn
	}
	for _, n := range rc.Nodes() {
		for i, s := range rc.Successors(n) {
			e := g.Edge(byNode[n], byNode[s])
			if len(rc.Successors(n)) > 1 {
				e.Attr("label", fmt.Sprintf("%d", i))
			}
		}
	}
	_, err := io.WriteString(w, g.String())
	return err
}

// ParseDot reads a fixture graph: one "a -> b;" statement per edge,
// successor order following statement order, optional bare node
// statements introducing isolated nodes. The node named entryName
// becomes the region entry; every node is a synthetic Code node.
func ParseDot(r io.Reader, entryName string) (*RegionCFG, error) {
	rc := New()
	byName := make(map[string]*BBNode)
	node := func(name string) *BBNode {
		if n, ok := byName[name]; ok {
			return n
		}
		n := rc.NewCode(nil, name)
		byName[name] = n
		return n
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.Index(line, "//"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" || strings.HasPrefix(line, "digraph") ||
			line == "{" || line == "}" {
			continue
		}
		for _, stmt := range strings.Split(line, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" || stmt == "}" {
				continue
			}
			// Drop attribute lists; the fixtures carry none we honour.
			if i := strings.Index(stmt, "["); i >= 0 {
				stmt = strings.TrimSpace(stmt[:i])
			}
			if stmt == "" {
				continue
			}
			parts := strings.Split(stmt, "->")
			if len(parts) == 1 {
				node(strings.TrimSpace(parts[0]))
				continue
			}
			for i := 0; i+1 < len(parts); i++ {
				from := node(strings.TrimSpace(parts[i]))
				to := node(strings.TrimSpace(parts[i+1]))
				rc.AddEdge(from, to)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	entry, ok := byName[entryName]
	if !ok {
		return nil, fmt.Errorf("dot graph has no %q node", entryName)
	}
	rc.SetEntry(entry)
	return rc, nil
}
