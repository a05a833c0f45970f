package family

import (
	"math"
	"testing"

	"github.com/liliang-cn/annlsh/internal/rng"
)

func TestL2Deterministic(t *testing.T) {
	f := l2Family{}
	cfg := Config{R: 1.0}
	p1, _ := f.InitParams(rng.New(7, 0), 4, 2, cfg)
	p2, _ := f.InitParams(rng.New(7, 0), 4, 2, cfg)

	v := []float64{0.3, -1.1}
	s1, _ := f.HashIndexVec(p1, v, &Context{})
	s2, _ := f.HashIndexVec(p2, v, &Context{})
	if !s1.Equal(s2) {
		t.Fatal("same seed must produce identical bucket symbols")
	}
}

func TestL2SameBucketForNearbyPoints(t *testing.T) {
	f := l2Family{}
	cfg := Config{R: 5.0}
	p, _ := f.InitParams(rng.New(3, 0), 4, 2, cfg)

	a := []float64{0, 0}
	b := []float64{0.01, -0.01}
	sa, _ := f.HashIndexVec(p, a, &Context{})
	sb, _ := f.HashIndexVec(p, b, &Context{})
	if !sa.Equal(sb) {
		t.Fatal("points 0.01 apart with bucket width 5.0 should almost always share a bucket")
	}
}

func TestL2ExactSimilarityIsNegativeDistance(t *testing.T) {
	f := l2Family{}
	got := f.ExactSimilarity([]float64{0, 0}, []float64{3, 4})
	if math.Abs(got-(-5)) > 1e-9 {
		t.Fatalf("NegEuclideanDistance = %v, want -5", got)
	}
}

func TestL2Edges(t *testing.T) {
	m := [][]float64{{1, 0}}
	b := []float64{0}
	edges := l2Edges(m, b, 2.0, []float64{0.5, 0})
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges (upper/lower) for 1 symbol, got %d", len(edges))
	}
	for _, e := range edges {
		if e.Score < 0 {
			t.Fatalf("edge distances must be non-negative, got %v", e.Score)
		}
	}
}
