package probe

import (
	"testing"

	"github.com/liliang-cn/annlsh/internal/sig"
)

func TestDirectedYieldsPerturbations(t *testing.T) {
	base := sig.Signature{Sym: []int64{0, 0, 0}}
	edges := []Edge{
		{Dim: 0, Delta: 1, Score: 0.5},
		{Dim: 0, Delta: -1, Score: 0.2},
		{Dim: 1, Delta: 1, Score: 0.1},
		{Dim: 1, Delta: -1, Score: 0.9},
		{Dim: 2, Delta: 1, Score: 0.3},
	}
	d := NewDirected(base, edges)

	count := 0
	for i := 0; i < 20; i++ {
		if _, ok := d.Next(); !ok {
			break
		}
		count++
	}
	if count == 0 {
		t.Fatal("expected at least one perturbation")
	}
}

func TestDirectedNoDimensionConflict(t *testing.T) {
	base := sig.Signature{Sym: []int64{0, 0}}
	edges := []Edge{
		{Dim: 0, Delta: 1, Score: 0.1},
		{Dim: 0, Delta: -1, Score: 0.2},
		{Dim: 1, Delta: 1, Score: 0.3},
	}
	d := NewDirected(base, edges)
	for i := 0; i < 10; i++ {
		s, ok := d.Next()
		if !ok {
			break
		}
		if s.Sym[0] != 0 && s.Sym[0] != 1 && s.Sym[0] != -1 {
			t.Fatalf("dim 0 perturbed by an unexpected amount: %d", s.Sym[0])
		}
	}
}

func TestDirectedFirstIsLowestScore(t *testing.T) {
	base := sig.Signature{Sym: []int64{5, 5}}
	edges := []Edge{
		{Dim: 0, Delta: 1, Score: 0.9},
		{Dim: 1, Delta: -1, Score: 0.05},
	}
	d := NewDirected(base, edges)
	first, ok := d.Next()
	if !ok {
		t.Fatal("expected a perturbation")
	}
	if first.Sym[1] != 4 || first.Sym[0] != 5 {
		t.Fatalf("expected the cheapest edge (dim 1, -1) first, got %v", first.Sym)
	}
}

func TestDirectedEmptyEdges(t *testing.T) {
	base := sig.Signature{Sym: []int64{1}}
	d := NewDirected(base, nil)
	if _, ok := d.Next(); ok {
		t.Fatal("no edges must yield nothing")
	}
}
