package probe

import (
	"container/heap"

	"github.com/liliang-cn/annlsh/internal/sig"
)

// Edge is one candidate single-symbol perturbation: shifting symbol Dim by
// Delta (+1 or -1) costs Score (the distance from the projection value to
// the bucket edge on that side).
type Edge struct {
	Dim   int
	Delta int64
	Score float64
}

// Directed enumerates multi-symbol perturbations of an L2/MIPS signature in
// increasing cumulative score order, following the shift/expand canonical
// enumeration: each popped perturbation set produces a "shift" successor
// (advance its last edge to the next-cheapest one) and an "expand"
// successor (append the next-cheapest edge after it), without building the
// full 2^|edges| search space up front. Each set is produced at most once. A
// successor that would perturb a dimension already in its set is dropped
// together with everything that would have been generated from it, so some
// sets with no repeated dimension are never produced.
type Directed struct {
	base   sig.Signature
	sorted []Edge // edges sorted ascending by Score
	h      setHeap
	seen   map[string]bool
}

// NewDirected builds a query-directed generator from the primary signature
// and the per-symbol edge distances computed by the L2/MIPS family.
func NewDirected(base sig.Signature, edges []Edge) *Directed {
	sorted := make([]Edge, len(edges))
	copy(sorted, edges)
	insertionSortByScore(sorted)

	d := &Directed{base: base, sorted: sorted, seen: map[string]bool{}}
	if len(sorted) > 0 {
		heap.Init(&d.h)
		first := &perturbSet{idx: []int{0}, score: sorted[0].Score}
		d.push(first)
	}
	return d
}

func insertionSortByScore(e []Edge) {
	for i := 1; i < len(e); i++ {
		for j := i; j > 0 && e[j].Score < e[j-1].Score; j-- {
			e[j], e[j-1] = e[j-1], e[j]
		}
	}
}

// Next implements Generator: pops the lowest-score remaining perturbation
// set, schedules its shift/expand successors, and returns the signature
// obtained by applying that set's edges to the primary signature.
func (d *Directed) Next() (sig.Signature, bool) {
	if d.h.Len() == 0 {
		return sig.Signature{}, false
	}
	cur := heap.Pop(&d.h).(*perturbSet)

	if last := cur.idx[len(cur.idx)-1]; last+1 < len(d.sorted) {
		d.push(d.shift(cur))
		d.push(d.expand(cur))
	}

	out := d.apply(cur)
	return out, true
}

func (d *Directed) key(idx []int) string {
	b := make([]byte, 0, len(idx)*2)
	for _, i := range idx {
		b = append(b, byte(i), byte(i>>8))
	}
	return string(b)
}

func (d *Directed) push(p *perturbSet) {
	if p == nil {
		return
	}
	key := d.key(p.idx)
	if d.seen[key] {
		return
	}
	d.seen[key] = true
	heap.Push(&d.h, p)
}

// shift replaces the last edge index with the next one in sorted order.
func (d *Directed) shift(p *perturbSet) *perturbSet {
	last := p.idx[len(p.idx)-1]
	next := last + 1
	if next >= len(d.sorted) || conflicts(d.sorted, p.idx[:len(p.idx)-1], next) {
		return nil
	}
	idx := append(append([]int{}, p.idx[:len(p.idx)-1]...), next)
	return &perturbSet{idx: idx, score: p.score - d.sorted[last].Score + d.sorted[next].Score}
}

// expand appends the next edge index after the last one used.
func (d *Directed) expand(p *perturbSet) *perturbSet {
	last := p.idx[len(p.idx)-1]
	next := last + 1
	if next >= len(d.sorted) || conflicts(d.sorted, p.idx, next) {
		return nil
	}
	idx := append(append([]int{}, p.idx...), next)
	return &perturbSet{idx: idx, score: p.score + d.sorted[next].Score}
}

// conflicts reports whether adding edge `next` would perturb a dimension
// already present among idx (e.g. +1 and -1 on the same symbol).
func conflicts(edges []Edge, idx []int, next int) bool {
	dim := edges[next].Dim
	for _, i := range idx {
		if edges[i].Dim == dim {
			return true
		}
	}
	return false
}

func (d *Directed) apply(p *perturbSet) sig.Signature {
	out := d.base
	if !out.Packed {
		sym := make([]int64, len(d.base.Sym))
		copy(sym, d.base.Sym)
		out = sig.Signature{Sym: sym}
	}
	for _, i := range p.idx {
		e := d.sorted[i]
		out = out.WithSym(e.Dim, out.Sym[e.Dim]+e.Delta)
	}
	return out
}

// perturbSet is one node of the shift/expand search: an ascending list of
// indices into the sorted edge list, and the cumulative score of applying
// all of them.
type perturbSet struct {
	idx   []int
	score float64
}

type setHeap []*perturbSet

func (h setHeap) Len() int            { return len(h) }
func (h setHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h setHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *setHeap) Push(x interface{}) { *h = append(*h, x.(*perturbSet)) }
func (h *setHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
