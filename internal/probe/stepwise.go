package probe

import "github.com/liliang-cn/annlsh/internal/sig"

// Stepwise enumerates bit-flip perturbations of a packed SRP signature: all
// single-bit flips in ascending bit-index order, then all two-bit flips in
// ascending (i,j) order, stopping once budget perturbations have been
// produced (or the one- and two-bit flips run out, whichever comes first).
// Flips of three or more bits are never produced.
type Stepwise struct {
	masks []uint64
	base  uint64
	pos   int
}

// NewStepwise builds the fixed perturbation order once so that increasing
// budget only appends to the same prefix sequence (candidates(b) is always
// a subset of candidates(b+1)).
func NewStepwise(base uint64, k, budget int) *Stepwise {
	s := &Stepwise{base: base}
	if budget <= 0 || k <= 0 {
		return s
	}
	for i := 0; i < k && len(s.masks) < budget; i++ {
		s.masks = append(s.masks, uint64(1)<<uint(i))
	}
	for i := 0; i < k && len(s.masks) < budget; i++ {
		for j := i + 1; j < k && len(s.masks) < budget; j++ {
			s.masks = append(s.masks, (uint64(1)<<uint(i))|(uint64(1)<<uint(j)))
		}
	}
	return s
}

// Next implements Generator.
func (s *Stepwise) Next() (sig.Signature, bool) {
	if s.pos >= len(s.masks) {
		return sig.Signature{}, false
	}
	m := s.masks[s.pos]
	s.pos++
	return sig.Signature{Packed: true, Bits: s.base ^ m}, true
}
