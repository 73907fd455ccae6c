package dla

import (
	"errors"
	"fmt"
	"sort"

	"k8s.io/klog/v2"

	"github.com/pfez/revng-c/internal/ir"
)

// Fatal materialisation errors. MakeLayouts returns no layouts on any
// of them; there is no partial output.
var (
	// ErrUnclassifiedNode reports a reachable node whose interference
	// was never decided by the pre-pass.
	ErrUnclassifiedNode = errors.New("unclassified layout node")
	// ErrFieldOverlap reports struct children violating disjointness.
	ErrFieldOverlap = errors.New("overlapping struct fields")
)

// MakeInstanceChild shapes a child layout according to an offset
// expression: outer-to-inner, every (trip count, stride) pair wraps
// the child in an array of that stride, padding the element when the
// stride exceeds its size. A stride smaller than the element abandons
// the edge (nil). A positive offset finally prepends padding.
func MakeInstanceChild(lv *LayoutVector, child Layout, oe OffsetExpression) Layout {
	if oe.Offset < 0 {
		return nil
	}
	if len(oe.Strides) != len(oe.TripCounts) {
		panic("dla: offset expression with mismatched strides and trip counts")
	}

	for i := range oe.TripCounts {
		stride, trip := oe.Strides[i], oe.TripCounts[i]
		if stride <= 0 {
			return nil
		}
		strideSize := uint64(stride)

		// An element larger than its stride is not representable.
		if strideSize < child.Size() {
			return nil
		}
		if strideSize > child.Size() {
			child = lv.NewStruct(child, lv.NewPadding(strideSize-child.Size()))
		}
		child = lv.NewArray(child, strideSize, trip)
	}

	if oe.Offset > 0 {
		child = lv.NewStruct(lv.NewPadding(uint64(oe.Offset)), child)
	}
	return child
}

// orderedChild is a struct member candidate, sortable by
// (offset, size, child ID).
type orderedChild struct {
	offset int64
	size   uint64
	child  *Node
}

// childSpan folds the trip counts right-to-left into the accessed
// span: size becomes (numElems-1)*stride + size per dimension, with
// unknown-length arrays counting as one element. A non-positive stride
// voids the span.
func childSpan(child *Node, oe OffsetExpression) uint64 {
	size := child.Size
	for i := len(oe.Strides) - 1; i >= 0; i-- {
		stride, trip := oe.Strides[i], oe.TripCounts[i]
		if stride <= 0 {
			return 0
		}
		numElems := uint64(1)
		if trip != nil {
			if *trip <= 0 {
				return 0
			}
			numElems = uint64(*trip)
		}
		size = (numElems-1)*uint64(stride) + size
	}
	return size
}

// makeLayout materialises one node given the layouts of its children,
// already stored in ordered by equivalence class.
func makeLayout(ts *TypeSystem, n *Node, lv *LayoutVector, ordered []Layout) (Layout, error) {
	childLayout := func(c *Node) Layout {
		cls, ok := ts.EqClasses().EqClassID(c.ID)
		if !ok || cls >= len(ordered) {
			return nil
		}
		return ordered[cls]
	}

	switch n.Interfering {
	case AllChildrenAreNonInterfering:
		accesses := n.AccessSizes()
		if len(accesses) > 1 {
			return nil, fmt.Errorf("%w: node %d mixes %d access sizes in a struct",
				ErrFieldOverlap, n.ID, len(accesses))
		}
		var accessSize uint64
		if len(accesses) == 1 {
			accessSize = accesses[0]
		}

		var children []orderedChild
		inherits := false
		for _, e := range n.Edges() {
			switch e.Kind {
			case Instance:
				if e.OE.Offset < 0 {
					continue
				}
				oc := orderedChild{offset: e.OE.Offset, size: childSpan(e.Target, e.OE), child: e.Target}
				if oc.size > 0 {
					children = append(children, oc)
				}
			case Inheritance:
				if inherits {
					return nil, fmt.Errorf("node %d inherits twice", n.ID)
				}
				if accessSize != 0 {
					// Direct accesses interfering with an inherited
					// layout should have produced a union upstream.
					return nil, fmt.Errorf("%w: node %d mixes inheritance and accesses",
						ErrFieldOverlap, n.ID)
				}
				inherits = true
				oc := orderedChild{offset: 0, size: e.Target.Size, child: e.Target}
				if oc.size > 0 {
					children = append(children, oc)
				}
			}
		}

		sort.Slice(children, func(i, j int) bool {
			a, b := children[i], children[j]
			if a.offset != b.offset {
				return a.offset < b.offset
			}
			if a.size != b.size {
				return a.size < b.size
			}
			return a.child.ID < b.child.ID
		})

		for i := 0; i+1 < len(children); i++ {
			end := children[i].offset + int64(children[i].size)
			if end > children[i+1].offset {
				return nil, fmt.Errorf("%w: node %d children at %d+%d and %d",
					ErrFieldOverlap, n.ID,
					children[i].offset, children[i].size, children[i+1].offset)
			}
		}

		var fields []Layout
		if accessSize > 0 {
			fields = append(fields, lv.NewBase(accessSize))
		}
		covered := accessSize
		for _, oc := range children {
			start := uint64(oc.offset)
			if start < covered {
				return nil, fmt.Errorf("%w: node %d child at %d under access of %d",
					ErrFieldOverlap, n.ID, start, covered)
			}
			if pad := start - covered; pad > 0 {
				fields = append(fields, lv.NewPadding(pad))
			}
			covered = start + oc.size

			cl := childLayout(oc.child)
			if cl == nil {
				klog.V(3).Infof("dla: node %d has no layout, skipped as child of %d",
					oc.child.ID, n.ID)
				continue
			}
			fields = append(fields, cl)
		}

		if len(fields) == 0 {
			return nil, nil
		}
		if len(fields) == 1 {
			return fields[0], nil
		}
		return lv.NewStruct(fields...), nil

	case AllChildrenAreInterfering:
		var alts []Layout
		for _, size := range n.AccessSizes() {
			alts = append(alts, lv.NewBase(size))
		}

		inherits := false
		for _, e := range n.Edges() {
			cl := childLayout(e.Target)
			if cl == nil {
				klog.V(3).Infof("dla: node %d has no layout, skipped as child of %d",
					e.Target.ID, n.ID)
				continue
			}
			switch e.Kind {
			case Instance:
				cl = MakeInstanceChild(lv, cl, e.OE)
			case Inheritance:
				// An inherited layout overlays at offset zero; only
				// one parent is allowed.
				if inherits {
					return nil, fmt.Errorf("node %d inherits twice", n.ID)
				}
				inherits = true
			}
			if cl != nil {
				alts = append(alts, cl)
			}
		}

		if len(alts) == 0 {
			return nil, nil
		}
		return lv.NewUnion(alts...), nil
	}

	return nil, fmt.Errorf("%w: node %d", ErrUnclassifiedNode, n.ID)
}

// MakeLayouts materialises every node reachable from a root, post
// order, and returns the layouts indexed by equivalence class. A class
// whose layout exists already is reused without re-materialising.
func MakeLayouts(ts *TypeSystem, lv *LayoutVector) ([]Layout, error) {
	ordered := make([]Layout, ts.EqClasses().NumClasses())
	visited := make(map[*Node]bool)

	var walk func(n *Node) error
	walk = func(n *Node) error {
		if visited[n] {
			return nil
		}
		visited[n] = true
		for _, e := range n.Edges() {
			if err := walk(e.Target); err != nil {
				return err
			}
		}

		cls, ok := ts.EqClasses().EqClassID(n.ID)
		if !ok {
			return nil
		}
		if ordered[cls] != nil {
			return nil
		}
		l, err := makeLayout(ts, n, lv, ordered)
		if err != nil {
			return err
		}
		if l == nil {
			klog.V(2).Infof("dla: node %d yields no layout", n.ID)
			return nil
		}
		ordered[cls] = l
		klog.V(2).Infof("dla: node %d -> %s", n.ID, Print(l))
		return nil
	}

	for _, root := range ts.Roots() {
		if err := walk(root); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// ValueLayoutMap associates IR values with their reconstructed layout.
type ValueLayoutMap map[ir.ValueID]Layout

// MakeLayoutMap indexes the ordered layouts by the values they
// describe: value i belongs to the equivalence class of node i.
func MakeLayoutMap(values []ir.ValueID, layouts []Layout, eq *VectEqClasses) ValueLayoutMap {
	out := make(ValueLayoutMap, len(values))
	for i, v := range values {
		cls, ok := eq.EqClassID(NodeID(i))
		if !ok || cls >= len(layouts) || layouts[cls] == nil {
			continue
		}
		out[v] = layouts[cls]
	}
	return out
}
