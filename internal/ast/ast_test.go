package ast

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pfez/revng-c/internal/ir"
)

func TestSequenceAddNodeAbsorbsSuccessorChain(t *testing.T) {
	t.Parallel()
	tr := NewTree()
	a := tr.NewCode(nil)
	b := tr.NewCode(nil)
	c := tr.NewCode(nil)
	a.SetSuccessor(b)
	b.SetSuccessor(c)

	seq := tr.NewSequence()
	seq.AddNode(a)

	require.Len(t, seq.Children, 3)
	require.Equal(t, Node(a), seq.Children[0])
	require.Equal(t, Node(b), seq.Children[1])
	require.Equal(t, Node(c), seq.Children[2])
	for _, n := range seq.Children {
		require.Nil(t, n.Successor())
	}
}

func TestFlattenLeavesNoSuccessors(t *testing.T) {
	t.Parallel()
	tr := NewTree()
	thenA := tr.NewCode(nil)
	thenB := tr.NewCode(nil)
	thenA.SetSuccessor(thenB)
	cond := tr.NewIf(nil, &AtomExpr{}, thenA, nil)
	tail := tr.NewCode(nil)
	cond.SetSuccessor(tail)
	tr.SetRoot(cond)

	tr.Flatten()

	root, ok := tr.Root().(*SequenceNode)
	require.True(t, ok)
	require.Len(t, root.Children, 2)

	flatIf, ok := root.Children[0].(*IfNode)
	require.True(t, ok)
	thenSeq, ok := flatIf.Then.(*SequenceNode)
	require.True(t, ok)
	require.Len(t, thenSeq.Children, 2)

	Walk(tr.Root(), func(n Node) {
		if _, isSeq := n.(*SequenceNode); !isSeq {
			require.Nil(t, n.Successor())
		}
	})
}

func TestCloneIsDeepAndEqual(t *testing.T) {
	t.Parallel()
	bb := &ir.Block{Name: "bb"}
	tr := NewTree()
	body := tr.NewCode(bb)
	scs := tr.NewScs(bb, body)
	condIf := tr.NewIf(bb, &AtomExpr{BB: bb}, nil, nil)
	scs.SetWhile(condIf)
	seq := tr.NewSequence()
	seq.AddNode(scs)
	tr.SetRoot(seq)

	clone := tr.Clone()
	require.True(t, Equal(tr.Root(), clone.Root()))

	// The copies are distinct nodes sharing only the BB pointer.
	origScs := tr.Root().(*SequenceNode).Children[0].(*ScsNode)
	cloneScs := clone.Root().(*SequenceNode).Children[0].(*ScsNode)
	require.NotSame(t, origScs, cloneScs)
	require.NotSame(t, origScs.RelatedCondition, cloneScs.RelatedCondition)
	require.Same(t, origScs.BB(), cloneScs.BB())

	// Mutating the clone leaves the original untouched.
	cloneScs.Kind = WhileTrue
	require.Equal(t, While, origScs.Kind)
	require.False(t, Equal(tr.Root(), clone.Root()))
}

func TestSubstituteRewritesChildren(t *testing.T) {
	t.Parallel()
	tr := NewTree()
	oldThen := tr.NewCode(nil)
	cond := tr.NewIf(nil, &AtomExpr{}, oldThen, nil)
	tr.SetRoot(cond)

	newThen := tr.NewBreak()
	tr.Substitute(map[Node]Node{oldThen: newThen})
	require.Equal(t, Node(newThen), cond.Then)
}

func TestSwitchDefaultIsEmptyLabelSet(t *testing.T) {
	t.Parallel()
	tr := NewTree()
	caseBody := tr.NewCode(nil)
	defBody := tr.NewCode(nil)
	sw := tr.NewSwitch(nil, nil, NotADispatcher, []SwitchCase{
		{Labels: []uint64{3}, Body: caseBody},
		{Labels: nil, Body: defBody},
	})

	require.True(t, sw.HasDefault())
	require.Equal(t, Node(defBody), sw.Default())

	sw.RemoveCase(1)
	require.False(t, sw.HasDefault())
}

func TestExprEqualAndNot(t *testing.T) {
	t.Parallel()
	bb := &ir.Block{Name: "c"}
	atom := &AtomExpr{BB: bb}

	require.True(t, ExprEqual(atom, &AtomExpr{BB: bb}))
	require.False(t, ExprEqual(atom, &AtomExpr{BB: &ir.Block{}}))

	neg := Not(atom)
	require.IsType(t, &NotExpr{}, neg)
	require.Equal(t, Expr(atom), Not(neg))

	both := &AndExpr{L: atom, R: Not(atom)}
	require.True(t, ExprEqual(both, &AndExpr{L: atom, R: &NotExpr{X: atom}}))
	require.True(t, ExprEqual(&StateEqualsExpr{Value: 2}, &StateEqualsExpr{Value: 2}))
	require.False(t, ExprEqual(&StateEqualsExpr{Value: 2}, &StateEqualsExpr{Value: 3}))
}

func TestWriteDotRendersTree(t *testing.T) {
	t.Parallel()
	tr := NewTree()
	code := tr.NewCode(&ir.Block{Name: "a"})
	cond := tr.NewIf(nil, &AtomExpr{}, code, nil)
	tr.SetRoot(cond)

	var buf bytes.Buffer
	require.NoError(t, tr.WriteDot(&buf))
	out := buf.String()
	require.Contains(t, out, "if")
	require.Contains(t, out, "code a")
}
