package dla

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pfez/revng-c/internal/ir"
)

func TestLayoutVectorSharesEqualTerms(t *testing.T) {
	t.Parallel()
	lv := NewLayoutVector()

	a := lv.NewStruct(lv.NewBase(4), lv.NewPadding(4))
	b := lv.NewStruct(lv.NewBase(4), lv.NewPadding(4))
	require.Same(t, a, b)
	require.Equal(t, 3, lv.Len())

	c := lv.NewStruct(lv.NewBase(4), lv.NewPadding(8))
	require.NotSame(t, a, c)
}

func TestLayoutSizes(t *testing.T) {
	t.Parallel()
	lv := NewLayoutVector()

	require.Equal(t, uint64(4), lv.NewBase(4).Size())
	require.Equal(t, uint64(12), lv.NewStruct(lv.NewBase(4), lv.NewPadding(8)).Size())
	require.Equal(t, uint64(24), lv.NewArray(lv.NewBase(8), 8, Trip(3)).Size())
	// Unknown-length arrays count as one element.
	require.Equal(t, uint64(8), lv.NewArray(lv.NewBase(8), 8, nil).Size())
	require.Equal(t, uint64(8),
		lv.NewUnion(lv.NewBase(4), lv.NewBase(8)).Size())
}

func TestUnionCollapsesToSingleAlternative(t *testing.T) {
	t.Parallel()
	lv := NewLayoutVector()

	// All alternatives are structurally Base(4): no union survives.
	l := lv.NewUnion(lv.NewBase(4), lv.NewBase(4), lv.NewBase(4))
	require.IsType(t, &BaseLayout{}, l)
	require.Equal(t, uint64(4), l.Size())
}

func TestMakeInstanceChildStridePadding(t *testing.T) {
	t.Parallel()
	lv := NewLayoutVector()

	// Element of size 4 repeated with stride 8: each slot pads to the
	// stride before the array wraps it.
	child := MakeInstanceChild(lv, lv.NewBase(4), OffsetExpression{
		Offset:     0,
		Strides:    []int64{8},
		TripCounts: []*int64{Trip(3)},
	})
	require.NotNil(t, child)

	arr, ok := child.(*ArrayLayout)
	require.True(t, ok)
	require.Equal(t, uint64(8), arr.Stride)
	require.Equal(t, uint64(3), arr.NumElems)

	elem, ok := arr.Elem.(*StructLayout)
	require.True(t, ok)
	require.Len(t, elem.Fields, 2)
	require.True(t, Equal(elem.Fields[0], lv.NewBase(4)))
	require.True(t, Equal(elem.Fields[1], lv.NewPadding(4)))
}

func TestMakeInstanceChildRejectsSmallStride(t *testing.T) {
	t.Parallel()
	lv := NewLayoutVector()

	require.Nil(t, MakeInstanceChild(lv, lv.NewBase(8), OffsetExpression{
		Strides:    []int64{4},
		TripCounts: []*int64{Trip(2)},
	}))
	require.Nil(t, MakeInstanceChild(lv, lv.NewBase(4), OffsetExpression{Offset: -8}))
}

func TestMakeInstanceChildOffsetRoundTrip(t *testing.T) {
	t.Parallel()
	lv := NewLayoutVector()

	oe := OffsetExpression{
		Offset:     16,
		Strides:    []int64{8},
		TripCounts: []*int64{Trip(4)},
	}
	child := MakeInstanceChild(lv, lv.NewBase(8), oe)
	require.NotNil(t, child)

	// With a single dimension the shaped size is offset + trip*stride.
	require.Equal(t, uint64(16+4*8), child.Size())
}

func TestStructMaterialisation(t *testing.T) {
	t.Parallel()
	ts := NewTypeSystem()
	parent := ts.NewNode(16)
	parent.Interfering = AllChildrenAreNonInterfering
	parent.AddAccessSize(4)

	child := ts.NewNode(4)
	child.Interfering = AllChildrenAreNonInterfering
	child.AddAccessSize(4)

	// The child sits at offset 8: a base field, then padding, then the
	// child.
	ts.AddInstanceEdge(parent, child, OffsetExpression{Offset: 8})

	lv := NewLayoutVector()
	ordered, err := MakeLayouts(ts, lv)
	require.NoError(t, err)

	cls, ok := ts.EqClasses().EqClassID(parent.ID)
	require.True(t, ok)
	l := ordered[cls]
	require.NotNil(t, l)

	st, ok := l.(*StructLayout)
	require.True(t, ok)
	require.Len(t, st.Fields, 3)
	require.True(t, Equal(st.Fields[0], lv.NewBase(4)))
	require.True(t, Equal(st.Fields[1], lv.NewPadding(4)))
	require.True(t, Equal(st.Fields[2], lv.NewBase(4)))
	require.Equal(t, uint64(12), l.Size())
}

func TestStructSingleFieldUnwrapped(t *testing.T) {
	t.Parallel()
	ts := NewTypeSystem()
	n := ts.NewNode(4)
	n.Interfering = AllChildrenAreNonInterfering
	n.AddAccessSize(4)

	lv := NewLayoutVector()
	ordered, err := MakeLayouts(ts, lv)
	require.NoError(t, err)

	cls, _ := ts.EqClasses().EqClassID(n.ID)
	require.IsType(t, &BaseLayout{}, ordered[cls])
}

func TestOverlappingFieldsAreFatal(t *testing.T) {
	t.Parallel()
	ts := NewTypeSystem()
	parent := ts.NewNode(8)
	parent.Interfering = AllChildrenAreNonInterfering

	a := ts.NewNode(4)
	a.Interfering = AllChildrenAreNonInterfering
	a.AddAccessSize(4)
	b := ts.NewNode(4)
	b.Interfering = AllChildrenAreNonInterfering
	b.AddAccessSize(4)

	ts.AddInstanceEdge(parent, a, OffsetExpression{Offset: 0})
	ts.AddInstanceEdge(parent, b, OffsetExpression{Offset: 2})

	_, err := MakeLayouts(ts, NewLayoutVector())
	require.ErrorIs(t, err, ErrFieldOverlap)
}

func TestUnclassifiedNodeIsFatal(t *testing.T) {
	t.Parallel()
	ts := NewTypeSystem()
	n := ts.NewNode(4)
	n.AddAccessSize(4)
	// Interfering stays Unknown.

	_, err := MakeLayouts(ts, NewLayoutVector())
	require.ErrorIs(t, err, ErrUnclassifiedNode)
}

func TestUnionMaterialisationCollapsesEqualAlternatives(t *testing.T) {
	t.Parallel()
	ts := NewTypeSystem()
	parent := ts.NewNode(4)
	parent.Interfering = AllChildrenAreInterfering
	parent.AddAccessSize(4)

	child := ts.NewNode(4)
	child.Interfering = AllChildrenAreNonInterfering
	child.AddAccessSize(4)

	ts.AddInstanceEdge(parent, child, OffsetExpression{Offset: 0})

	lv := NewLayoutVector()
	ordered, err := MakeLayouts(ts, lv)
	require.NoError(t, err)

	cls, _ := ts.EqClasses().EqClassID(parent.ID)
	// Both alternatives are Base(4): the union collapses.
	require.IsType(t, &BaseLayout{}, ordered[cls])
	require.Equal(t, uint64(4), ordered[cls].Size())
}

func TestUnionKeepsDistinctAlternatives(t *testing.T) {
	t.Parallel()
	ts := NewTypeSystem()
	parent := ts.NewNode(8)
	parent.Interfering = AllChildrenAreInterfering
	parent.AddAccessSize(4)
	parent.AddAccessSize(8)

	child := ts.NewNode(4)
	child.Interfering = AllChildrenAreNonInterfering
	child.AddAccessSize(4)

	ts.AddInstanceEdge(parent, child, OffsetExpression{
		Offset:     0,
		Strides:    []int64{8},
		TripCounts: []*int64{Trip(2)},
	})

	lv := NewLayoutVector()
	ordered, err := MakeLayouts(ts, lv)
	require.NoError(t, err)

	cls, _ := ts.EqClasses().EqClassID(parent.ID)
	u, ok := ordered[cls].(*UnionLayout)
	require.True(t, ok)
	// Base(4), Base(8), and the shaped array.
	require.Len(t, u.Alternatives, 3)
}

func TestEquivalenceClassesShareLayouts(t *testing.T) {
	t.Parallel()
	ts := NewTypeSystem()
	a := ts.NewNode(4)
	a.Interfering = AllChildrenAreNonInterfering
	a.AddAccessSize(4)
	b := ts.NewNode(4)
	b.Interfering = AllChildrenAreNonInterfering
	b.AddAccessSize(4)

	ts.EqClasses().Union(a.ID, b.ID)
	require.Equal(t, 1, ts.EqClasses().NumClasses())

	lv := NewLayoutVector()
	ordered, err := MakeLayouts(ts, lv)
	require.NoError(t, err)
	require.Len(t, ordered, 1)
	require.NotNil(t, ordered[0])
}

func TestEqClassRemoval(t *testing.T) {
	t.Parallel()
	ts := NewTypeSystem()
	a := ts.NewNode(4)
	b := ts.NewNode(4)

	ts.EqClasses().Remove(a.ID)
	_, ok := ts.EqClasses().EqClassID(a.ID)
	require.False(t, ok)
	cls, ok := ts.EqClasses().EqClassID(b.ID)
	require.True(t, ok)
	require.Equal(t, 0, cls)
	require.Equal(t, 1, ts.EqClasses().NumClasses())
}

func TestMakeLayoutMap(t *testing.T) {
	t.Parallel()
	ts := NewTypeSystem()
	a := ts.NewNode(4)
	a.Interfering = AllChildrenAreNonInterfering
	a.AddAccessSize(4)
	b := ts.NewNode(8)
	b.Interfering = AllChildrenAreNonInterfering
	b.AddAccessSize(8)

	lv := NewLayoutVector()
	ordered, err := MakeLayouts(ts, lv)
	require.NoError(t, err)

	values := []ir.ValueID{41, 42}
	m := MakeLayoutMap(values, ordered, ts.EqClasses())
	require.Len(t, m, 2)
	require.Equal(t, uint64(4), m[41].Size())
	require.Equal(t, uint64(8), m[42].Size())
}

func TestPrintRendersTerms(t *testing.T) {
	t.Parallel()
	lv := NewLayoutVector()
	l := lv.NewStruct(lv.NewBase(4), lv.NewPadding(4))
	require.Equal(t, "struct{base4, pad4}", Print(l))

	arr := lv.NewArray(lv.NewBase(2), 2, Trip(5))
	require.Equal(t, "array[5 x base2 @2]", Print(arr))
}
