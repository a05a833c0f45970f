package family

import (
	"math"
	"math/bits"

	"github.com/liliang-cn/annlsh/internal/probe"
	"github.com/liliang-cn/annlsh/internal/rng"
	"github.com/liliang-cn/annlsh/internal/sig"
)

// minHashPrime is a large prime safely above any realistic set-element
// value (spec §4.1: "P where P is a large prime > max element").
const minHashPrime = (uint64(1) << 61) - 1

// minHashParams holds K independent (a, b) permutation coefficient pairs
// drawn from Uniform[1, P).
type minHashParams struct {
	A []uint64
	B []uint64
	D int
}

func (p minHashParams) dim() int { return p.D }

type minHashFamily struct{}

func (minHashFamily) Tag() Tag { return TagMinHash }

func (minHashFamily) InitParams(r *rng.TableRNG, k, d int, _ Config) (Params, error) {
	a := make([]uint64, k)
	b := make([]uint64, k)
	for i := 0; i < k; i++ {
		a[i] = 1 + r.Uint64N(minHashPrime-1)
		b[i] = 1 + r.Uint64N(minHashPrime-1)
	}
	return minHashParams{A: a, B: b, D: d}, nil
}

// MinHash's input vector is a set of integer members carried as float64
// values (each entry a distinct member, order irrelevant); indexed points
// and queries are hashed identically.
func (f minHashFamily) HashIndexVec(p Params, v []float64, ctx *Context) (sig.Signature, error) {
	return f.hash(p.(minHashParams), v)
}

func (f minHashFamily) HashQueryVec(p Params, v []float64, ctx *Context) (sig.Signature, error) {
	return f.hash(p.(minHashParams), v)
}

func (minHashFamily) hash(p minHashParams, v []float64) (sig.Signature, error) {
	set := make([]uint64, len(v))
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return sig.Signature{}, ErrNumerical
		}
		set[i] = uint64(math.Round(x))
	}
	sym := make([]int64, len(p.A))
	for l := range p.A {
		min := ^uint64(0)
		for _, x := range set {
			hi, lo := bits.Mul64(p.A[l], x)
			lo, carry := bits.Add64(lo, p.B[l], 0)
			h := bits.Rem64(hi+carry, lo, minHashPrime)
			if h < min {
				min = h
			}
		}
		sym[l] = int64(min)
	}
	return sig.Signature{Sym: sym}, nil
}

// Perturb: the spec defines multi-probe for sign (SRP) and bucketed (L2,
// MIPS) signatures only; MinHash relies on K and L alone for recall, so no
// perturbation strategy is defined here.
func (minHashFamily) Perturb(p Params, v []float64, ctx *Context, budget int) probe.Generator {
	return probe.Empty{}
}

func (minHashFamily) ExactSimilarity(a, b []float64) float64 {
	return jaccard(a, b)
}

func jaccard(a, b []float64) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	inter := 0
	for x := range setA {
		if setB[x] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(v []float64) map[uint64]bool {
	s := make(map[uint64]bool, len(v))
	for _, x := range v {
		s[uint64(math.Round(x))] = true
	}
	return s
}
