package annlsh

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Float is the element type constraint for vectors: float32 or float64
// (spec §3.1 "generic over element type f32/f64"). The index computes in
// float64 internally (internal/family, internal/backend, internal/probe
// are float64-only) and converts at the public API boundary; the
// conversion is lossless both ways since widening float32->float64 and
// narrowing back reproduces the original bits exactly.
type Float = constraints.Float

// toFloat64 widens a vector of any Float element type to float64.
func toFloat64[T Float](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// fromFloat64 narrows a float64 vector back to T.
func fromFloat64[T Float](v []float64) []T {
	out := make([]T, len(v))
	for i, x := range v {
		out[i] = T(x)
	}
	return out
}

// dot is the plain dot product, used by norm. The hash families compute
// their projections and scores with their own copy in internal/family.
func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// norm is the L2 norm, used by MIPS's max_norm bookkeeping.
func norm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}

// validateFinite rejects vectors carrying a NaN or Inf entry (spec §7
// Numerical).
func validateFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
