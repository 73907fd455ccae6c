package dla

import "sort"

// NodeID identifies a node of the layout type system.
type NodeID int

// InterferingInfo classifies how a node's children relate: the pre-pass
// must have decided for every reachable node whether the children can
// overlap (union) or not (struct).
type InterferingInfo int

const (
	Unknown InterferingInfo = iota
	AllChildrenAreNonInterfering
	AllChildrenAreInterfering
)

var interferingNames = [...]string{
	"unknown", "non-interfering", "interfering",
}

func (i InterferingInfo) String() string { return interferingNames[i] }

// OffsetExpression describes where instances of a child live inside
// its parent: offset + sum(stride_i * index_i), with an optional
// positive trip count per dimension. A missing trip count means an
// unknown-length array, treated as a single element.
type OffsetExpression struct {
	Offset     int64
	Strides    []int64
	TripCounts []*int64
}

// Trip is a convenience for building known trip counts.
func Trip(v int64) *int64 { return &v }

// EdgeKind tags an edge of the type system.
type EdgeKind int

const (
	// Instance links a parent to a child located by an offset
	// expression.
	Instance EdgeKind = iota
	// Inheritance links a node to the type it extends at offset zero.
	Inheritance
)

// Edge is an outgoing link of a node.
type Edge struct {
	Target *Node
	Kind   EdgeKind
	OE     OffsetExpression
}

// Node is a layout type system node.
type Node struct {
	ID   NodeID
	Size uint64
	// accessSizes is the sorted set of observed access widths.
	accessSizes []uint64
	Interfering InterferingInfo

	edges []Edge
	indeg int
}

// AccessSizes returns the observed access widths in ascending order.
func (n *Node) AccessSizes() []uint64 { return n.accessSizes }

// AddAccessSize records an observed access width.
func (n *Node) AddAccessSize(size uint64) {
	i := sort.Search(len(n.accessSizes), func(i int) bool { return n.accessSizes[i] >= size })
	if i < len(n.accessSizes) && n.accessSizes[i] == size {
		return
	}
	n.accessSizes = append(n.accessSizes, 0)
	copy(n.accessSizes[i+1:], n.accessSizes[i:])
	n.accessSizes[i] = size
}

// Edges returns the outgoing edges in insertion order.
func (n *Node) Edges() []Edge { return n.edges }

// TypeSystem owns the layout nodes and their equivalence classes.
type TypeSystem struct {
	nodes []*Node
	eq    *VectEqClasses
}

// NewTypeSystem returns an empty type system.
func NewTypeSystem() *TypeSystem {
	return &TypeSystem{eq: NewVectEqClasses()}
}

// NewNode adds a node of the given size, in its own equivalence class.
func (ts *TypeSystem) NewNode(size uint64) *Node {
	n := &Node{ID: NodeID(len(ts.nodes)), Size: size, Interfering: Unknown}
	ts.nodes = append(ts.nodes, n)
	ts.eq.grow()
	return n
}

// Nodes returns every node in creation order.
func (ts *TypeSystem) Nodes() []*Node { return ts.nodes }

// Node returns the node with the given ID.
func (ts *TypeSystem) Node(id NodeID) *Node { return ts.nodes[id] }

// EqClasses exposes the union-find side structure.
func (ts *TypeSystem) EqClasses() *VectEqClasses { return ts.eq }

// AddInstanceEdge links parent to child at the given offset
// expression.
func (ts *TypeSystem) AddInstanceEdge(parent, child *Node, oe OffsetExpression) {
	parent.edges = append(parent.edges, Edge{Target: child, Kind: Instance, OE: oe})
	child.indeg++
}

// AddInheritanceEdge links parent to the node it extends.
func (ts *TypeSystem) AddInheritanceEdge(parent, child *Node) {
	parent.edges = append(parent.edges, Edge{Target: child, Kind: Inheritance})
	child.indeg++
}

// Roots returns the nodes without incoming edges.
func (ts *TypeSystem) Roots() []*Node {
	var out []*Node
	for _, n := range ts.nodes {
		if n.indeg == 0 {
			out = append(out, n)
		}
	}
	return out
}

// VectEqClasses is a union-find over node IDs handing out dense class
// indices. Its lifetime equals the type system's.
type VectEqClasses struct {
	parent  []int
	removed []bool

	// classes caches the dense numbering; any union invalidates it.
	classes []int
	num     int
}

// NewVectEqClasses returns an empty structure.
func NewVectEqClasses() *VectEqClasses {
	return &VectEqClasses{}
}

func (eq *VectEqClasses) grow() {
	eq.parent = append(eq.parent, len(eq.parent))
	eq.removed = append(eq.removed, false)
	eq.classes = nil
}

// Union merges the classes of a and b.
func (eq *VectEqClasses) Union(a, b NodeID) {
	ra, rb := eq.find(int(a)), eq.find(int(b))
	if ra != rb {
		eq.parent[rb] = ra
	}
	eq.classes = nil
}

// Remove drops a node from the classes: EqClassID then answers false
// for it.
func (eq *VectEqClasses) Remove(n NodeID) {
	eq.removed[n] = true
	eq.classes = nil
}

func (eq *VectEqClasses) find(n int) int {
	for eq.parent[n] != n {
		eq.parent[n] = eq.parent[eq.parent[n]]
		n = eq.parent[n]
	}
	return n
}

func (eq *VectEqClasses) compress() {
	if eq.classes != nil {
		return
	}
	eq.classes = make([]int, len(eq.parent))
	for i := range eq.classes {
		eq.classes[i] = -1
	}
	eq.num = 0
	for i := range eq.parent {
		if eq.removed[i] {
			continue
		}
		root := eq.find(i)
		if eq.classes[root] == -1 {
			eq.classes[root] = eq.num
			eq.num++
		}
		eq.classes[i] = eq.classes[root]
	}
}

// EqClassID returns the dense class index of n, or false when n was
// removed.
func (eq *VectEqClasses) EqClassID(n NodeID) (int, bool) {
	if int(n) >= len(eq.parent) || eq.removed[n] {
		return 0, false
	}
	eq.compress()
	return eq.classes[n], true
}

// NumClasses returns the number of dense classes.
func (eq *VectEqClasses) NumClasses() int {
	eq.compress()
	return eq.num
}
