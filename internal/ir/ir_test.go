package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pfez/revng-c/internal/model"
)

func TestBuilderSuccessorsFollowTerminatorOrder(t *testing.T) {
	t.Parallel()
	b := NewBuilder("f")
	then := b.Block("then")
	els := b.Block("else")

	cond := b.Param(1)
	b.CondBr(cond, then, els)

	entry := b.Function().Entry()
	require.Equal(t, "entry", entry.Name)
	succs := entry.Successors()
	require.Len(t, succs, 2)
	require.Same(t, then, succs[0])
	require.Same(t, els, succs[1])

	got, negated, ok := entry.ConditionalBranch()
	require.True(t, ok)
	require.False(t, negated)
	require.Equal(t, cond, got)
}

func TestSwitchSuccessorsKeepCaseOrderWithDefaultLast(t *testing.T) {
	t.Parallel()
	b := NewBuilder("f")
	c0 := b.Block("c0")
	c1 := b.Block("c1")
	def := b.Block("def")

	sel := b.Param(32)
	b.Switch(sel, def, SwitchCase{Value: 1, Target: c0}, SwitchCase{Value: 2, Target: c1})

	succs := b.Function().Entry().Successors()
	require.Len(t, succs, 3)
	require.Same(t, c0, succs[0])
	require.Same(t, c1, succs[1])
	require.Same(t, def, succs[2])
}

func TestOperandIntBits(t *testing.T) {
	t.Parallel()
	v := Val(1, model.IntType{Bits: 16})
	bits, ok := v.IntBits()
	require.True(t, ok)
	require.Equal(t, uint32(16), bits)

	p := Val(2, model.PointerType{Arch: model.Architecture{PointerSize: 8}})
	_, ok = p.IntBits()
	require.False(t, ok)

	c := ConstInt(0xFF, 8)
	require.True(t, c.IsConst)
	bits, ok = c.IntBits()
	require.True(t, ok)
	require.Equal(t, uint32(8), bits)
}

func TestTagSets(t *testing.T) {
	t.Parallel()
	s := NewTagSet(TagQEMU, TagHelper)
	require.True(t, s.Has(TagQEMU))
	require.True(t, s.Has(TagHelper))
	require.False(t, s.Has(TagExceptional))

	call := &Call{Tags: s, Isolated: true}
	require.True(t, call.IsQEMUHelper())
	require.True(t, call.IsHelper())
	require.False(t, call.IsAssign())
	require.True(t, IsCallToIsolatedFunction(call))
}

func TestSideEffectsAndResults(t *testing.T) {
	t.Parallel()
	st := &Store{}
	require.True(t, HasSideEffects(st))
	require.Equal(t, InvalidValue, st.Result())

	add := &Binary{Res: 7, Op: Add, Type: model.IntType{Bits: 32}}
	require.False(t, HasSideEffects(add))
	require.Equal(t, ValueID(7), add.Result())
	require.Equal(t, model.IntType{Bits: 32}, ResultType(add))
}
