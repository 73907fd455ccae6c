package flowgraph

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lithammer/dedent"
	"github.com/stretchr/testify/require"

	"github.com/pfez/revng-c/internal/ir"
)

func parse(t *testing.T, src string) *RegionCFG {
	t.Helper()
	rc, err := ParseDot(strings.NewReader(dedent.Dedent(src)), "entry")
	require.NoError(t, err)
	return rc
}

const trivialDot = `
	digraph trivial {
		entry -> a;
		a -> exit;
	}
`

const simpleDot = `
	digraph simple {
		entry -> a;
		entry -> b;
		a -> exit;
		b -> exit;
	}
`

const whileDot = `
	digraph while {
		entry -> h;
		h -> b;
		h -> e;
		b -> h;
	}
`

func TestParseDotBuildsOrderedSuccessors(t *testing.T) {
	t.Parallel()
	rc := parse(t, simpleDot)

	require.Equal(t, 4, rc.NumNodes())
	entry := rc.Entry()
	require.NotNil(t, entry)
	succs := rc.Successors(entry)
	require.Len(t, succs, 2)
	require.Equal(t, "a", succs[0].Name())
	require.Equal(t, "b", succs[1].Name())
}

func TestTrivialGraphEquivalentToItself(t *testing.T) {
	t.Parallel()
	input := parse(t, trivialDot)
	reference := parse(t, trivialDot)

	require.Empty(t, input.Inflate())
	require.True(t, input.IsTopologicallyEquivalent(reference))
}

func TestSimpleGraphEquivalentToItself(t *testing.T) {
	t.Parallel()
	input := parse(t, simpleDot)
	reference := parse(t, simpleDot)

	require.Empty(t, input.Inflate())
	require.True(t, input.IsTopologicallyEquivalent(reference))
}

func TestSimpleGraphNotEquivalentToTrivial(t *testing.T) {
	t.Parallel()
	require.False(t, parse(t, simpleDot).IsTopologicallyEquivalent(parse(t, trivialDot)))
}

func TestCanonicalizeRemovesUnreachable(t *testing.T) {
	t.Parallel()
	rc := parse(t, `
		digraph g {
			entry -> a;
			dead -> a;
			other;
		}
	`)
	require.Equal(t, 4, rc.NumNodes())
	rc.Canonicalize()
	require.Equal(t, 2, rc.NumNodes())
}

func TestCloneNodePreservesSuccessorOrder(t *testing.T) {
	t.Parallel()
	rc := parse(t, simpleDot)
	entry := rc.Entry()

	dup := rc.CloneNode(entry)
	require.Equal(t, entry.Kind(), dup.Kind())
	orig := rc.Successors(entry)
	copied := rc.Successors(dup)
	require.Len(t, copied, 2)
	require.Equal(t, orig[0], copied[0])
	require.Equal(t, orig[1], copied[1])
	require.Empty(t, rc.Predecessors(dup))
}

func TestCheckReducibleAcceptsNaturalLoop(t *testing.T) {
	t.Parallel()
	require.NoError(t, parse(t, whileDot).CheckReducible())
}

func TestCheckReducibleRejectsIrreducible(t *testing.T) {
	t.Parallel()
	rc := parse(t, `
		digraph g {
			entry -> a;
			entry -> b;
			a -> c;
			b -> c;
			c -> a;
		}
	`)
	err := rc.CheckReducible()
	require.ErrorIs(t, err, ErrIrreducible)
}

func TestInflateLeavesStructuredMergeAlone(t *testing.T) {
	t.Parallel()
	input := parse(t, simpleDot)
	before := input.NumNodes()
	require.Empty(t, input.Inflate())
	require.Equal(t, before, input.NumNodes())
}

func TestInflateSkipsBackEdges(t *testing.T) {
	t.Parallel()
	input := parse(t, whileDot)
	reference := parse(t, whileDot)
	require.Empty(t, input.Inflate())
	require.True(t, input.IsTopologicallyEquivalent(reference))
}

func TestInflateDuplicatesUnstructuredMerge(t *testing.T) {
	t.Parallel()
	input := parse(t, `
		digraph g {
			entry -> a;
			entry -> b;
			a -> c;
			a -> d;
			b -> d;
			c -> exit;
			d -> exit;
		}
	`)
	reference := parse(t, `
		digraph g {
			entry -> a;
			entry -> b;
			a -> c;
			a -> d1;
			b -> d2;
			c -> exit;
			d1 -> exit;
			d2 -> exit;
		}
	`)

	require.Empty(t, input.Inflate())
	require.Equal(t, 7, input.NumNodes())
	require.True(t, input.IsTopologicallyEquivalent(reference))
}

func TestInflateBoundedLeavesSurvivors(t *testing.T) {
	t.Parallel()
	input := parse(t, `
		digraph g {
			entry -> a;
			entry -> b;
			a -> c;
			a -> d;
			b -> d;
			c -> exit;
			d -> exit;
		}
	`)
	before := input.NumNodes()

	// With no clone budget the offending merge survives untouched.
	survivors := input.InflateBounded(0)
	require.Len(t, survivors, 1)
	require.Equal(t, "d", survivors[0].Name())
	require.Equal(t, before, input.NumNodes())
}

func TestWriteDotRendersNodesAndEdges(t *testing.T) {
	t.Parallel()
	rc := parse(t, simpleDot)

	var buf bytes.Buffer
	require.NoError(t, rc.WriteDot(&buf))
	out := buf.String()
	for _, name := range []string{"entry", "a", "b", "exit"} {
		require.Contains(t, out, name)
	}
	// Four edges, two of them labelled with their successor index.
	require.Equal(t, 4, strings.Count(out, "->"))
	require.Contains(t, out, `"0"`)
	require.Contains(t, out, `"1"`)
}

func buildWhileFunction(t *testing.T) *ir.Function {
	t.Helper()
	b := ir.NewBuilder("while")
	h := b.Block("h")
	body := b.Block("body")
	exit := b.Block("exit")

	cond := b.Param(1)
	b.Br(h)
	b.SetBlock(h)
	b.CondBr(cond, body, exit)
	b.SetBlock(body)
	b.Br(h)
	b.SetBlock(exit)
	b.Ret()
	return b.Function()
}

func TestCollapseLoopsExtractsWhileBody(t *testing.T) {
	t.Parallel()
	rc := FromFunction(buildWhileFunction(t))
	require.NoError(t, rc.CollapseLoops())

	var coll *BBNode
	for _, n := range rc.Nodes() {
		if n.Kind() == Collapsed {
			coll = n
		}
	}
	require.NotNil(t, coll)
	require.True(t, coll.IsLoop())
	require.Empty(t, rc.BackEdges())

	sub := coll.Sub()
	require.NotNil(t, sub)
	require.Len(t, sub.Latches(), 1)
	require.Equal(t, coll.LoopHeader(), sub.Entry())

	// The loop has a single exit target.
	require.Len(t, rc.Successors(coll), 1)
	require.Equal(t, "exit", rc.Successors(coll)[0].Name())

	// Back and exit edges became sentinels inside the body.
	var continues, breaks int
	for _, n := range sub.Nodes() {
		switch n.Role() {
		case ContinueSentinel:
			continues++
		case BreakSentinel:
			breaks++
		}
	}
	require.Equal(t, 1, continues)
	require.Equal(t, 1, breaks)
}

func TestCloneNodePreservesLoopMetadata(t *testing.T) {
	t.Parallel()
	rc := FromFunction(buildWhileFunction(t))
	require.NoError(t, rc.CollapseLoops())

	var coll *BBNode
	for _, n := range rc.Nodes() {
		if n.Kind() == Collapsed {
			coll = n
		}
	}
	require.NotNil(t, coll)

	dup := rc.CloneNode(coll)
	require.Equal(t, Collapsed, dup.Kind())
	require.True(t, dup.IsLoop())
	require.Same(t, coll.Sub(), dup.Sub())
	require.Same(t, coll.LoopHeader(), dup.LoopHeader())
}

func TestInsertExitDispatchersOnMultiExitLoop(t *testing.T) {
	t.Parallel()
	b := ir.NewBuilder("multiexit")
	h := b.Block("h")
	mid := b.Block("mid")
	e1 := b.Block("e1")
	e2 := b.Block("e2")

	c1 := b.Param(1)
	c2 := b.Param(1)
	b.Br(h)
	b.SetBlock(h)
	b.CondBr(c1, mid, e1)
	b.SetBlock(mid)
	b.CondBr(c2, h, e2)
	b.SetBlock(e1)
	b.Ret()
	b.SetBlock(e2)
	b.Ret()

	rc := FromFunction(b.Function())
	require.NoError(t, rc.CollapseLoops())
	rc.InsertExitDispatchers()

	var coll *BBNode
	for _, n := range rc.Nodes() {
		if n.Kind() == Collapsed {
			coll = n
		}
	}
	require.NotNil(t, coll)

	succs := rc.Successors(coll)
	require.Len(t, succs, 1)
	disp := succs[0]
	require.Equal(t, ExitDispatcher, disp.Kind())
	require.Len(t, rc.Successors(disp), 2)

	var sets int
	for _, n := range coll.Sub().Nodes() {
		if n.Kind() == ExitSet {
			require.Len(t, coll.Sub().Successors(n), 1)
			sets++
		}
	}
	require.Equal(t, 2, sets)
}

func TestInsertEntryDispatcher(t *testing.T) {
	t.Parallel()
	rc := parse(t, `
		digraph g {
			entry -> a;
			entry -> b;
			a -> x;
			b -> x;
			a -> y;
			b -> y;
		}
	`)
	var a, b, x, y *BBNode
	for _, n := range rc.Nodes() {
		switch n.Name() {
		case "a":
			a = n
		case "b":
			b = n
		case "x":
			x = n
		case "y":
			y = n
		}
	}

	d := rc.InsertEntryDispatcher([]*BBNode{x, y})
	require.Equal(t, EntryDispatcher, d.Kind())
	require.Len(t, rc.Successors(d), 2)
	require.Equal(t, x, rc.Successors(d)[0])
	require.Equal(t, y, rc.Successors(d)[1])

	// Every former edge into x and y now runs through an entry set
	// feeding the dispatcher.
	require.Equal(t, []*BBNode{d}, rc.Predecessors(x))
	require.Equal(t, []*BBNode{d}, rc.Predecessors(y))
	for _, from := range []*BBNode{a, b} {
		succs := rc.Successors(from)
		require.Len(t, succs, 2)
		require.Equal(t, EntrySet, succs[0].Kind())
		require.Equal(t, uint64(0), succs[0].StateVariable())
		require.Equal(t, EntrySet, succs[1].Kind())
		require.Equal(t, uint64(1), succs[1].StateVariable())
		for _, set := range succs {
			require.Equal(t, []*BBNode{d}, rc.Successors(set))
		}
	}
}
