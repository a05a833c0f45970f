package family

import (
	"errors"
	"math"

	"github.com/liliang-cn/annlsh/internal/probe"
	"github.com/liliang-cn/annlsh/internal/rng"
	"github.com/liliang-cn/annlsh/internal/sig"
)

// ErrNumerical is returned when a projection produces a non-finite value;
// the offending point must be rejected (spec §7).
var ErrNumerical = errors.New("non-finite projection result")

// srpParams is a K x d matrix of i.i.d. standard normal entries.
type srpParams struct {
	M [][]float64
	D int
}

func (p srpParams) dim() int { return p.D }

type srpFamily struct{}

func (srpFamily) Tag() Tag { return TagSRP }

func (srpFamily) InitParams(r *rng.TableRNG, k, d int, _ Config) (Params, error) {
	m := make([][]float64, k)
	for i := range m {
		row := make([]float64, d)
		for j := range row {
			row[j] = r.NormFloat64()
		}
		m[i] = row
	}
	return srpParams{M: m, D: d}, nil
}

// HashIndexVec and HashQueryVec coincide for SRP: cosine similarity needs
// no augmentation.
func (f srpFamily) HashIndexVec(p Params, v []float64, ctx *Context) (sig.Signature, error) {
	return f.hash(p.(srpParams), v)
}

func (f srpFamily) HashQueryVec(p Params, v []float64, ctx *Context) (sig.Signature, error) {
	return f.hash(p.(srpParams), v)
}

func (srpFamily) hash(p srpParams, v []float64) (sig.Signature, error) {
	k := len(p.M)
	if k <= 64 {
		var bits uint64
		for i, row := range p.M {
			dp := dot(row, v)
			if math.IsNaN(dp) || math.IsInf(dp, 0) {
				return sig.Signature{}, ErrNumerical
			}
			if dp >= 0 {
				bits |= uint64(1) << uint(i)
			}
		}
		return sig.Signature{Packed: true, Bits: bits}, nil
	}
	sym := make([]int64, k)
	for i, row := range p.M {
		dp := dot(row, v)
		if math.IsNaN(dp) || math.IsInf(dp, 0) {
			return sig.Signature{}, ErrNumerical
		}
		if dp >= 0 {
			sym[i] = 1
		}
	}
	return sig.Signature{Sym: sym}, nil
}

// Perturb yields the step-wise bit-flip enumeration (spec §4.2). It only
// applies when K<=64 (packed signatures); wider SRP signatures fall back to
// no multi-probe, documented as a scale limit of the packed bit trick.
func (srpFamily) Perturb(p Params, v []float64, ctx *Context, budget int) probe.Generator {
	sp := p.(srpParams)
	base, err := srpFamily{}.hash(sp, v)
	if err != nil || !base.Packed {
		return probe.Empty{}
	}
	return probe.NewStepwise(base.Bits, len(sp.M), budget)
}

func (srpFamily) ExactSimilarity(a, b []float64) float64 {
	return cosineSimilarity(a, b)
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func cosineSimilarity(a, b []float64) float64 {
	var dp, na, nb float64
	for i := range a {
		dp += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dp / (math.Sqrt(na) * math.Sqrt(nb))
}
