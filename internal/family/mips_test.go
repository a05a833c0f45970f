package family

import (
	"testing"

	"github.com/liliang-cn/annlsh/internal/rng"
)

func TestMIPSDeterministic(t *testing.T) {
	f := mipsFamily{}
	cfg := Config{R: 1.0, U: 0.75, M: 3}
	p1, _ := f.InitParams(rng.New(9, 0), 6, 3, cfg)
	p2, _ := f.InitParams(rng.New(9, 0), 6, 3, cfg)

	ctx := &Context{MaxNorm: 2.0, Frozen: true}
	v := []float64{1, 0.5, -0.2}
	s1, _ := f.HashIndexVec(p1, v, ctx)
	s2, _ := f.HashIndexVec(p2, v, ctx)
	if !s1.Equal(s2) {
		t.Fatal("same seed must produce identical signatures")
	}
}

func TestMIPSExactSimilarityIsDotProduct(t *testing.T) {
	f := mipsFamily{}
	got := f.ExactSimilarity([]float64{1, 2, 3}, []float64{4, 5, 6})
	want := 1*4 + 2*5 + 3*6
	if got != float64(want) {
		t.Fatalf("MIPS ExactSimilarity = %v, want %v", got, want)
	}
}

func TestMIPSAugmentIndexScalesToWithinU(t *testing.T) {
	cfg := Config{R: 1.0, U: 0.5, M: 2}
	l2p, _ := (l2Family{}).InitParams(rng.New(1, 0), 4, 5, cfg)
	p := mipsParams{L2: l2p.(l2Params), U: cfg.U, M: cfg.M, OrigD: 3}

	v := []float64{3, 4, 0} // norm 5
	maxNorm := 5.0
	aug := p.augmentIndex(v, maxNorm)
	if len(aug) != 3+2 {
		t.Fatalf("augmented vector length = %d, want %d", len(aug), 5)
	}
	var norm2 float64
	for _, x := range aug[:3] {
		norm2 += x * x
	}
	// scaled norm should be U * (||v||/maxNorm) = 0.5 * 1 = 0.5, so norm2 ~ 0.25.
	if norm2 < 0.2 || norm2 > 0.3 {
		t.Fatalf("scaled squared norm = %v, want ~0.25", norm2)
	}
}

func TestMIPSAugmentQueryIsUnitNormPlusHalves(t *testing.T) {
	cfg := Config{R: 1.0, U: 0.5, M: 2}
	l2p, _ := (l2Family{}).InitParams(rng.New(1, 0), 4, 5, cfg)
	p := mipsParams{L2: l2p.(l2Params), U: cfg.U, M: cfg.M, OrigD: 3}

	aug := p.augmentQuery([]float64{3, 4, 0})
	var norm2 float64
	for _, x := range aug[:3] {
		norm2 += x * x
	}
	if norm2 < 0.99 || norm2 > 1.01 {
		t.Fatalf("query augmentation must normalize to unit L2, got squared norm %v", norm2)
	}
	if aug[3] != 0.5 || aug[4] != 0.5 {
		t.Fatalf("query augmentation must append M copies of 0.5, got %v", aug[3:])
	}
}
