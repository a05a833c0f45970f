// Package rng provides the reproducible per-table random streams the LSH
// builder draws hasher parameters from.
package rng

import (
	"encoding/binary"
	"math/rand/v2"
)

// TableRNG is a deterministic source keyed by (seed, table index). Two
// TableRNGs built from the same pair always produce the same sequence of
// draws, which is what makes two indexes with the same seed and parameters
// produce identical signatures.
type TableRNG struct {
	r *rand.Rand
}

// New derives a ChaCha8-seeded stream for table tableIdx of an index
// constructed with the given user seed. The seed and table index are mixed
// into the 32-byte ChaCha8 key so that every table gets an independent
// stream without needing L separate user-supplied seeds.
func New(seed uint64, tableIdx int) *TableRNG {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[0:8], seed)
	binary.LittleEndian.PutUint64(key[8:16], uint64(tableIdx))
	// The remaining 16 bytes repeat seed and tableIdx XORed with fixed
	// constants, so the whole 32-byte key still depends only on
	// (seed, tableIdx), which is the whole reproducibility contract.
	binary.LittleEndian.PutUint64(key[16:24], seed^0x9E3779B97F4A7C15)
	binary.LittleEndian.PutUint64(key[24:32], uint64(tableIdx)^0xD1B54A32D192ED03)
	src := rand.NewChaCha8(key)
	return &TableRNG{r: rand.New(src)}
}

// NormFloat64 draws from the standard normal distribution, used to fill the
// SRP/L2/MIPS random projection matrices.
func (t *TableRNG) NormFloat64() float64 {
	return t.r.NormFloat64()
}

// Float64 draws a uniform value in [0, 1), used for L2/MIPS offsets.
func (t *TableRNG) Float64() float64 {
	return t.r.Float64()
}

// Uint64N draws a uniform value in [0, n), used for MinHash coefficients.
func (t *TableRNG) Uint64N(n uint64) uint64 {
	return t.r.Uint64N(n)
}
