package family

import (
	"math"

	"github.com/liliang-cn/annlsh/internal/probe"
	"github.com/liliang-cn/annlsh/internal/rng"
	"github.com/liliang-cn/annlsh/internal/sig"
)

// mipsParams augments vectors with the Shrivastava-Li transform (spec
// §4.1) before hashing them with an embedded L2 projection over the
// augmented d+m dimensions.
type mipsParams struct {
	L2    l2Params
	U     float64
	M     int
	OrigD int
}

func (p mipsParams) dim() int { return p.OrigD }

type mipsFamily struct{}

func (mipsFamily) Tag() Tag { return TagMIPS }

func (mipsFamily) InitParams(r *rng.TableRNG, k, d int, cfg Config) (Params, error) {
	l2p, err := (l2Family{}).InitParams(r, k, d+cfg.M, cfg)
	if err != nil {
		return nil, err
	}
	return mipsParams{L2: l2p.(l2Params), U: cfg.U, M: cfg.M, OrigD: d}, nil
}

// augmentIndex implements the indexed-point transform: scale to
// p' = p * (U/max_norm), then append powers of ‖p'‖² up to the 2m-th
// moment.
func (p mipsParams) augmentIndex(v []float64, maxNorm float64) []float64 {
	scale := p.U / maxNorm
	aug := make([]float64, p.OrigD+p.M)
	var norm2 float64
	for i, x := range v {
		s := x * scale
		aug[i] = s
		norm2 += s * s
	}
	pow := norm2
	for i := 0; i < p.M; i++ {
		aug[p.OrigD+i] = pow
		pow *= norm2
	}
	return aug
}

// augmentQuery implements the query transform: normalize to unit L2, then
// append m copies of 1/2.
func (p mipsParams) augmentQuery(v []float64) []float64 {
	var norm2 float64
	for _, x := range v {
		norm2 += x * x
	}
	norm := math.Sqrt(norm2)
	aug := make([]float64, p.OrigD+p.M)
	if norm > 0 {
		for i, x := range v {
			aug[i] = x / norm
		}
	} else {
		copy(aug, v)
	}
	for i := 0; i < p.M; i++ {
		aug[p.OrigD+i] = 0.5
	}
	return aug
}

func (mipsFamily) HashIndexVec(p Params, v []float64, ctx *Context) (sig.Signature, error) {
	mp := p.(mipsParams)
	aug := mp.augmentIndex(v, ctx.MaxNorm)
	return (l2Family{}).hash(mp.L2, aug)
}

func (mipsFamily) HashQueryVec(p Params, v []float64, ctx *Context) (sig.Signature, error) {
	mp := p.(mipsParams)
	aug := mp.augmentQuery(v)
	return (l2Family{}).hash(mp.L2, aug)
}

// Perturb drives the same query-directed enumeration as L2 over the
// augmented query vector.
func (mipsFamily) Perturb(p Params, v []float64, ctx *Context, budget int) probe.Generator {
	mp := p.(mipsParams)
	aug := mp.augmentQuery(v)
	base, err := (l2Family{}).hash(mp.L2, aug)
	if err != nil {
		return probe.Empty{}
	}
	edges := l2Edges(mp.L2.M, mp.L2.B, mp.L2.R, aug)
	return probe.NewDirected(base, edges)
}

// ExactSimilarity re-ranks by raw inner product (maximum inner product
// search has no notion of normalized similarity).
func (mipsFamily) ExactSimilarity(a, b []float64) float64 {
	return dot(a, b)
}
