// Package family implements the four hash families (SRP, L2, MIPS,
// MinHash): deterministic per-table parameter construction, vector
// hashing, multi-probe perturbation, and exact similarity scoring.
package family

import (
	"github.com/liliang-cn/annlsh/internal/probe"
	"github.com/liliang-cn/annlsh/internal/rng"
	"github.com/liliang-cn/annlsh/internal/sig"
)

// Tag identifies a family in configuration and in the serialized format.
type Tag byte

const (
	TagSRP Tag = iota + 1
	TagL2
	TagMIPS
	TagMinHash
)

func (t Tag) String() string {
	switch t {
	case TagSRP:
		return "srp"
	case TagL2:
		return "l2"
	case TagMIPS:
		return "mips"
	case TagMinHash:
		return "minhash"
	default:
		return "unknown"
	}
}

// Config carries the family-specific parameters a Builder validates before
// constructing an Index (spec §4.5: r>0 for L2/MIPS, 0<U<1 and m>=1 for
// MIPS).
type Config struct {
	R float64 // L2/MIPS bucket width
	U float64 // MIPS bound
	M int     // MIPS concatenation count
}

// Params is the opaque, family-specific per-table hasher state produced by
// InitParams (projection matrix for SRP, projection matrix plus offsets and
// bucket width for L2/MIPS, permutation coefficients for MinHash).
type Params interface {
	dim() int
}

// Context carries state a family needs across calls that a single Params
// value cannot, namely MIPS's frozen max_norm scale (spec §4.1): the index
// owns one Context per Index instance (not per table) and passes it to
// every hash call.
type Context struct {
	MaxNorm float64
	Frozen  bool
}

// Family is the capability set a hash family exposes: parameter
// construction, vector hashing for indexed points and for queries (they
// differ only for MIPS), multi-probe perturbation, and exact re-ranking
// similarity.
type Family interface {
	Tag() Tag
	InitParams(r *rng.TableRNG, k, d int, cfg Config) (Params, error)
	HashIndexVec(p Params, v []float64, ctx *Context) (sig.Signature, error)
	HashQueryVec(p Params, v []float64, ctx *Context) (sig.Signature, error)
	Perturb(p Params, v []float64, ctx *Context, budget int) probe.Generator
	ExactSimilarity(a, b []float64) float64
}

// For builds the Family implementation for a tag.
func For(t Tag) Family {
	switch t {
	case TagSRP:
		return srpFamily{}
	case TagL2:
		return l2Family{}
	case TagMIPS:
		return mipsFamily{}
	case TagMinHash:
		return minHashFamily{}
	default:
		return nil
	}
}
