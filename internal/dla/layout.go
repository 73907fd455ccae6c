// Package dla reconstructs aggregate data layouts (structs, unions,
// arrays, padding) from the layout type system the type-inference
// phase populates: a DAG of nodes carrying access sizes, connected by
// instance and inheritance edges with offset expressions.
package dla

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Layout is a materialised type term. Layouts are content-addressed
// and shared through a LayoutVector, which outlives every reference it
// hands out.
type Layout interface {
	layoutTerm()
	// Size returns the term size in bytes.
	Size() uint64
}

// BaseLayout is a directly accessed scalar of a fixed size.
type BaseLayout struct {
	size uint64
}

func (l *BaseLayout) layoutTerm()  {}
func (l *BaseLayout) Size() uint64 { return l.size }

// PaddingLayout reserves unaccessed space.
type PaddingLayout struct {
	size uint64
}

func (l *PaddingLayout) layoutTerm()  {}
func (l *PaddingLayout) Size() uint64 { return l.size }

// ArrayLayout repeats an element with a fixed stride. NumElems may be
// unknown, in which case the array counts as a single element.
type ArrayLayout struct {
	Elem     Layout
	Stride   uint64
	NumElems uint64
	Known    bool
}

func (l *ArrayLayout) layoutTerm() {}

func (l *ArrayLayout) Size() uint64 {
	if !l.Known {
		return l.Stride
	}
	return l.Stride * l.NumElems
}

// StructLayout is an ordered field list; padding fields make the
// offsets explicit.
type StructLayout struct {
	Fields []Layout
}

func (l *StructLayout) layoutTerm() {}

func (l *StructLayout) Size() uint64 {
	var total uint64
	for _, f := range l.Fields {
		total += f.Size()
	}
	return total
}

// UnionLayout is a set of alternatives sharing the same storage.
type UnionLayout struct {
	Alternatives []Layout
}

func (l *UnionLayout) layoutTerm() {}

func (l *UnionLayout) Size() uint64 {
	var max uint64
	for _, a := range l.Alternatives {
		if s := a.Size(); s > max {
			max = s
		}
	}
	return max
}

// LayoutVector is the owning arena of layout terms. Terms are interned
// by content, so structurally equal layouts share one instance and
// equality checks on interned terms reduce to pointer comparisons.
type LayoutVector struct {
	byDigest map[uint64][]Layout
	all      []Layout
}

// NewLayoutVector returns an empty arena.
func NewLayoutVector() *LayoutVector {
	return &LayoutVector{byDigest: make(map[uint64][]Layout)}
}

// Len returns the number of distinct terms in the arena.
func (lv *LayoutVector) Len() int { return len(lv.all) }

func (lv *LayoutVector) intern(l Layout) Layout {
	d := xxhash.Sum64String(encode(l))
	for _, existing := range lv.byDigest[d] {
		if Equal(existing, l) {
			return existing
		}
	}
	lv.byDigest[d] = append(lv.byDigest[d], l)
	lv.all = append(lv.all, l)
	return l
}

// NewBase interns a base layout.
func (lv *LayoutVector) NewBase(size uint64) Layout {
	return lv.intern(&BaseLayout{size: size})
}

// NewPadding interns a padding layout.
func (lv *LayoutVector) NewPadding(size uint64) Layout {
	return lv.intern(&PaddingLayout{size: size})
}

// NewArray interns an array layout; a nil trip count marks an
// unknown-length array.
func (lv *LayoutVector) NewArray(elem Layout, stride uint64, trip *int64) Layout {
	a := &ArrayLayout{Elem: elem, Stride: stride}
	if trip != nil {
		a.NumElems = uint64(*trip)
		a.Known = true
	}
	return lv.intern(a)
}

// NewStruct interns a struct layout.
func (lv *LayoutVector) NewStruct(fields ...Layout) Layout {
	return lv.intern(&StructLayout{Fields: fields})
}

// NewUnion interns a union over the given alternatives, deduplicating
// structurally equal ones. A single surviving alternative is returned
// directly instead of a one-armed union.
func (lv *LayoutVector) NewUnion(alts ...Layout) Layout {
	var distinct []Layout
	for _, a := range alts {
		dup := false
		for _, d := range distinct {
			if Equal(d, a) {
				dup = true
				break
			}
		}
		if !dup {
			distinct = append(distinct, a)
		}
	}
	if len(distinct) == 1 {
		return distinct[0]
	}
	return lv.intern(&UnionLayout{Alternatives: distinct})
}

// encode produces the canonical content key of a term. Interned
// children are encoded recursively; the terms are small, so the cost
// stays negligible next to materialisation.
func encode(l Layout) string {
	var sb strings.Builder
	write(&sb, l)
	return sb.String()
}

func write(sb *strings.Builder, l Layout) {
	switch v := l.(type) {
	case *BaseLayout:
		fmt.Fprintf(sb, "b%d", v.size)
	case *PaddingLayout:
		fmt.Fprintf(sb, "p%d", v.size)
	case *ArrayLayout:
		if v.Known {
			fmt.Fprintf(sb, "a%d:%d(", v.Stride, v.NumElems)
		} else {
			fmt.Fprintf(sb, "a%d:?(", v.Stride)
		}
		write(sb, v.Elem)
		sb.WriteByte(')')
	case *StructLayout:
		sb.WriteString("s(")
		for i, f := range v.Fields {
			if i > 0 {
				sb.WriteByte(',')
			}
			write(sb, f)
		}
		sb.WriteByte(')')
	case *UnionLayout:
		sb.WriteString("u(")
		for i, a := range v.Alternatives {
			if i > 0 {
				sb.WriteByte('|')
			}
			write(sb, a)
		}
		sb.WriteByte(')')
	}
}

// Equal reports structural equality of two layout terms.
func Equal(a, b Layout) bool {
	if a == b {
		return true
	}
	switch x := a.(type) {
	case *BaseLayout:
		y, ok := b.(*BaseLayout)
		return ok && x.size == y.size
	case *PaddingLayout:
		y, ok := b.(*PaddingLayout)
		return ok && x.size == y.size
	case *ArrayLayout:
		y, ok := b.(*ArrayLayout)
		return ok && x.Stride == y.Stride && x.Known == y.Known &&
			(!x.Known || x.NumElems == y.NumElems) && Equal(x.Elem, y.Elem)
	case *StructLayout:
		y, ok := b.(*StructLayout)
		if !ok || len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if !Equal(x.Fields[i], y.Fields[i]) {
				return false
			}
		}
		return true
	case *UnionLayout:
		y, ok := b.(*UnionLayout)
		if !ok || len(x.Alternatives) != len(y.Alternatives) {
			return false
		}
		for i := range x.Alternatives {
			if !Equal(x.Alternatives[i], y.Alternatives[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Print renders a compact textual form of the term, for debug logs
// and tests.
func Print(l Layout) string {
	switch v := l.(type) {
	case nil:
		return "<none>"
	case *BaseLayout:
		return fmt.Sprintf("base%d", v.size)
	case *PaddingLayout:
		return fmt.Sprintf("pad%d", v.size)
	case *ArrayLayout:
		if v.Known {
			return fmt.Sprintf("array[%d x %s @%d]", v.NumElems, Print(v.Elem), v.Stride)
		}
		return fmt.Sprintf("array[? x %s @%d]", Print(v.Elem), v.Stride)
	case *StructLayout:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = Print(f)
		}
		return "struct{" + strings.Join(parts, ", ") + "}"
	case *UnionLayout:
		parts := make([]string, len(v.Alternatives))
		for i, a := range v.Alternatives {
			parts[i] = Print(a)
		}
		return "union{" + strings.Join(parts, " | ") + "}"
	}
	return "?"
}
