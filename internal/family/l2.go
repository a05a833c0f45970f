package family

import (
	"math"

	"github.com/liliang-cn/annlsh/internal/probe"
	"github.com/liliang-cn/annlsh/internal/rng"
	"github.com/liliang-cn/annlsh/internal/sig"
)

// l2Params is a K x d p-stable projection matrix, K offsets drawn from
// Uniform[0, r), and the bucket width r.
type l2Params struct {
	M [][]float64
	B []float64
	R float64
	D int
}

func (p l2Params) dim() int { return p.D }

type l2Family struct{}

func (l2Family) Tag() Tag { return TagL2 }

func (l2Family) InitParams(r *rng.TableRNG, k, d int, cfg Config) (Params, error) {
	m := make([][]float64, k)
	b := make([]float64, k)
	for i := 0; i < k; i++ {
		row := make([]float64, d)
		for j := range row {
			row[j] = r.NormFloat64()
		}
		m[i] = row
		b[i] = r.Float64() * cfg.R
	}
	return l2Params{M: m, B: b, R: cfg.R, D: d}, nil
}

func (f l2Family) HashIndexVec(p Params, v []float64, ctx *Context) (sig.Signature, error) {
	return f.hash(p.(l2Params), v)
}

func (f l2Family) HashQueryVec(p Params, v []float64, ctx *Context) (sig.Signature, error) {
	return f.hash(p.(l2Params), v)
}

func (l2Family) hash(p l2Params, v []float64) (sig.Signature, error) {
	sym := make([]int64, len(p.M))
	for i := range p.M {
		proj := dot(p.M[i], v) + p.B[i]
		if math.IsNaN(proj) || math.IsInf(proj, 0) {
			return sig.Signature{}, ErrNumerical
		}
		sym[i] = int64(math.Floor(proj / p.R))
	}
	return sig.Signature{Sym: sym}, nil
}

// Perturb computes the two edge distances per symbol and drives the
// query-directed min-heap enumeration (spec §4.2).
func (l2Family) Perturb(p Params, v []float64, ctx *Context, budget int) probe.Generator {
	lp := p.(l2Params)
	base, err := (l2Family{}).hash(lp, v)
	if err != nil {
		return probe.Empty{}
	}
	edges := l2Edges(lp.M, lp.B, lp.R, v)
	return probe.NewDirected(base, edges)
}

// l2Edges computes, for every symbol, the distance from its projection
// value to the upper and lower bucket edge.
func l2Edges(m [][]float64, b []float64, r float64, v []float64) []probe.Edge {
	edges := make([]probe.Edge, 0, 2*len(m))
	for i := range m {
		proj := dot(m[i], v) + b[i]
		symbol := math.Floor(proj / r)
		upper := (symbol+1)*r - proj
		lower := proj - symbol*r
		edges = append(edges,
			probe.Edge{Dim: i, Delta: 1, Score: upper},
			probe.Edge{Dim: i, Delta: -1, Score: lower},
		)
	}
	return edges
}

func (l2Family) ExactSimilarity(a, b []float64) float64 {
	return -euclidean(a, b)
}

func euclidean(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}
