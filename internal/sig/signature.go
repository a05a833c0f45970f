// Package sig defines the hash signature type shared by the hash family,
// multi-probe, and storage backend packages.
package sig

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Signature is the K-symbol output of one hasher applied to a vector for one
// table. SRP signatures with K<=64 pack into Bits (Packed==true); every
// other family, and SRP with K>64, carries its symbols in Sym.
type Signature struct {
	Packed bool
	Bits   uint64
	Sym    []int64
}

// Equal reports whether two signatures carry the same symbols. Hash64
// collisions must always be confirmed with Equal before being treated as a
// bucket match.
func (s Signature) Equal(o Signature) bool {
	if s.Packed != o.Packed {
		return false
	}
	if s.Packed {
		return s.Bits == o.Bits
	}
	if len(s.Sym) != len(o.Sym) {
		return false
	}
	for i, v := range s.Sym {
		if o.Sym[i] != v {
			return false
		}
	}
	return true
}

// Hash64 returns a 64-bit digest for use as an open-addressing bucket key.
// It is not collision-free: callers must confirm a candidate match with
// Equal.
func (s Signature) Hash64() uint64 {
	if s.Packed {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], s.Bits)
		return xxhash.Sum64(b[:])
	}
	h := xxhash.New()
	var b [8]byte
	for _, v := range s.Sym {
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		_, _ = h.Write(b[:])
	}
	return h.Sum64()
}

// Flip returns a copy of a packed signature with the given bits XORed in.
func (s Signature) Flip(mask uint64) Signature {
	return Signature{Packed: true, Bits: s.Bits ^ mask}
}

// WithSym returns a copy of a symbol-tuple signature with symbol at index i
// replaced by v.
func (s Signature) WithSym(i int, v int64) Signature {
	out := Signature{Sym: make([]int64, len(s.Sym))}
	copy(out.Sym, s.Sym)
	out.Sym[i] = v
	return out
}
