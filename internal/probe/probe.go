// Package probe implements the multi-probe perturbation generators: a
// step-wise bit-flip enumerator for sign-projection (SRP) signatures, and a
// query-directed min-heap enumerator for the bucketed-integer signatures
// produced by the L2 and MIPS families.
package probe

import "github.com/liliang-cn/annlsh/internal/sig"

// Generator yields an ordered sequence of perturbed signatures beyond the
// primary one already examined by the caller. Next returns ok==false once
// the generator is exhausted (either it ran out of perturbations or the
// caller stops pulling after its budget).
type Generator interface {
	Next() (sig.Signature, bool)
}

// Empty is a Generator that yields nothing, used by families (MinHash) that
// define no multi-probe strategy.
type Empty struct{}

func (Empty) Next() (sig.Signature, bool) { return sig.Signature{}, false }
