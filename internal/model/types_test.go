package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypePredicates(t *testing.T) {
	t.Parallel()

	i32 := IntType{Bits: 32}
	require.True(t, i32.IsScalar())
	require.False(t, i32.IsPointer())
	size, ok := i32.Size()
	require.True(t, ok)
	require.Equal(t, uint64(4), size)

	// Sub-byte widths round up.
	i1 := IntType{Bits: 1}
	size, _ = i1.Size()
	require.Equal(t, uint64(1), size)

	p := PointerType{Arch: Architecture{PointerSize: 8}}
	require.True(t, p.IsPointer())
	require.False(t, p.IsScalar())
	size, ok = p.Size()
	require.True(t, ok)
	require.Equal(t, uint64(8), size)

	v := VoidType{}
	require.True(t, v.IsVoid())
	_, ok = v.Size()
	require.False(t, ok)
}

func TestIntBits(t *testing.T) {
	t.Parallel()

	bits, ok := IntBits(IntType{Bits: 17})
	require.True(t, ok)
	require.Equal(t, uint32(17), bits)

	_, ok = IntBits(FloatType{Bits: 64})
	require.False(t, ok)
	_, ok = IntBits(PointerType{})
	require.False(t, ok)
}
