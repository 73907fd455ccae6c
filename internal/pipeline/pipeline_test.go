package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pfez/revng-c/internal/config"
	"github.com/pfez/revng-c/internal/dla"
	"github.com/pfez/revng-c/internal/ir"
	"github.com/pfez/revng-c/internal/model"
)

func goodFunction() *ir.Function {
	b := ir.NewBuilder("good")
	then := b.Block("then")
	els := b.Block("else")
	exit := b.Block("exit")

	cond := b.Param(1)
	b.CondBr(cond, then, els)
	b.SetBlock(then)
	b.Br(exit)
	b.SetBlock(els)
	b.Br(exit)
	b.SetBlock(exit)
	b.Ret()
	return b.Function()
}

func irreducibleFunction() *ir.Function {
	b := ir.NewBuilder("bad")
	a := b.Block("a")
	c := b.Block("c")
	d := b.Block("d")

	cond := b.Param(1)
	b.CondBr(cond, a, c)
	b.SetBlock(a)
	b.Br(d)
	b.SetBlock(c)
	b.Br(d)
	b.SetBlock(d)
	b.Br(a)
	return b.Function()
}

func TestRunIsAllOrNothingPerFunction(t *testing.T) {
	t.Parallel()
	m := &ir.Module{
		Name:      "test",
		Arch:      model.Architecture{PointerSize: 8},
		Functions: []*ir.Function{goodFunction(), irreducibleFunction()},
	}

	res, err := New(config.Default()).Run(m, nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Functions, 2)

	good := res.Functions[0]
	require.NoError(t, good.Err)
	require.NotNil(t, good.AST)
	require.NotNil(t, good.Liveness)

	// The irreducible function is dropped whole; the other one is
	// unaffected.
	bad := res.Functions[1]
	require.Error(t, bad.Err)
	require.Nil(t, bad.AST)
}

func TestRunMaterialisesLayouts(t *testing.T) {
	t.Parallel()
	ts := dla.NewTypeSystem()
	n := ts.NewNode(4)
	n.Interfering = dla.AllChildrenAreNonInterfering
	n.AddAccessSize(4)

	m := &ir.Module{Functions: []*ir.Function{goodFunction()}}
	res, err := New(config.Default()).Run(m, ts, []ir.ValueID{7})
	require.NoError(t, err)
	require.Len(t, res.Layouts, 1)
	require.Equal(t, uint64(4), res.Layouts[7].Size())
}

func TestRunWritesDotDumps(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DumpDir = dir

	m := &ir.Module{Functions: []*ir.Function{goodFunction()}}
	_, err := New(cfg).Run(m, nil, nil)
	require.NoError(t, err)

	for _, name := range []string{"good.cfg.dot", "good.ast.dot"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NotEmpty(t, data)
	}
}
