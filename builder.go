package annlsh

import (
	"fmt"

	"github.com/liliang-cn/annlsh/internal/backend"
	"github.com/liliang-cn/annlsh/internal/family"
	"github.com/liliang-cn/annlsh/internal/rng"
)

// Builder validates parameters and constructs an Index with a chosen hash
// family (spec §4.5). Validation order: K,L,D positivity, then
// family-specific bounds (r>0; 0<U<1 and m>=1 for MIPS), then seed
// realization — a finalized builder draws each table's hasher parameters
// from an independent ChaCha8 stream keyed by (seed, table index).
type Builder[T Float] struct {
	k, l, d int

	seed        uint64
	onlyIndex   bool
	probeBudget int
	reserve     int
	logger      Logger

	sqlPath string
	err     error
}

// New validates K, L, D >= 1 and returns a Builder for further
// configuration. A Builder carrying a validation error from New or a later
// option call fails every finalizer (Srp/L2/Mips/MinHash) with that error.
func New[T Float](k, l, d int) *Builder[T] {
	b := &Builder[T]{k: k, l: l, d: d, logger: NopLogger()}
	if k < 1 || l < 1 || d < 1 {
		b.err = wrapError("new", fmt.Errorf("%w: k=%d l=%d d=%d must all be >= 1", ErrInvalidConfig, k, l, d))
	}
	return b
}

// Seed sets the index's reproducibility seed (spec §3.2 invariant 2).
func (b *Builder[T]) Seed(seed uint64) *Builder[T] {
	b.seed = seed
	return b
}

// OnlyIndex puts the index in only-index mode: point ids are retained but
// vectors are not, disabling re-ranking (spec §3.1, §4.4).
func (b *Builder[T]) OnlyIndex(v bool) *Builder[T] {
	b.onlyIndex = v
	return b
}

// MultiProbe sets the maximum number of additional per-table probes beyond
// the primary bucket (spec §4.2). budget=0 (the default) disables
// multi-probe.
func (b *Builder[T]) MultiProbe(budget int) *Builder[T] {
	if budget < 0 {
		b.err = wrapError("multi_probe", fmt.Errorf("%w: budget must be >= 0", ErrInvalidConfig))
		return b
	}
	b.probeBudget = budget
	return b
}

// IncreaseStorage pre-reserves bucket capacity: factor is multiplied by an
// internal baseline to size each table's initial map allocation (spec §4.4
// increase_storage, §5 "pre-sizing hint").
func (b *Builder[T]) IncreaseStorage(factor float64) *Builder[T] {
	if factor < 0 {
		b.err = wrapError("increase_storage", fmt.Errorf("%w: factor must be >= 0", ErrInvalidConfig))
		return b
	}
	b.reserve = int(factor * 64)
	return b
}

// WithLogger overrides the default no-op Logger.
func (b *Builder[T]) WithLogger(l Logger) *Builder[T] {
	b.logger = l
	return b
}

// WithSQLBackend switches the finalized index from the default in-memory
// backend to the SQLite-backed persistent backend at path (spec §6.3).
func (b *Builder[T]) WithSQLBackend(path string) *Builder[T] {
	b.sqlPath = path
	return b
}

// Srp finalizes the builder with the SignRandomProjection (cosine) family.
func (b *Builder[T]) Srp() (*Index[T], error) {
	return b.build(family.TagSRP, family.Config{})
}

// L2 finalizes the builder with the Euclidean p-stable family; r is the
// bucket width and must be > 0.
func (b *Builder[T]) L2(r float64) (*Index[T], error) {
	if b.err != nil {
		return nil, b.err
	}
	if r <= 0 {
		return nil, wrapError("l2", fmt.Errorf("%w: r must be > 0", ErrInvalidConfig))
	}
	return b.build(family.TagL2, family.Config{R: r})
}

// Mips finalizes the builder with the maximum-inner-product family; r is
// the L2 bucket width applied to the augmented vectors, u must be in
// (0, 1), and m (the concatenation count) must be >= 1.
func (b *Builder[T]) Mips(r, u float64, m int) (*Index[T], error) {
	if b.err != nil {
		return nil, b.err
	}
	if r <= 0 {
		return nil, wrapError("mips", fmt.Errorf("%w: r must be > 0", ErrInvalidConfig))
	}
	if u <= 0 || u >= 1 {
		return nil, wrapError("mips", fmt.Errorf("%w: u must be in (0, 1)", ErrInvalidConfig))
	}
	if m < 1 {
		return nil, wrapError("mips", fmt.Errorf("%w: m must be >= 1", ErrInvalidConfig))
	}
	return b.build(family.TagMIPS, family.Config{R: r, U: u, M: m})
}

// MinHash finalizes the builder with the Jaccard family over integer
// set-valued inputs.
func (b *Builder[T]) MinHash() (*Index[T], error) {
	return b.build(family.TagMinHash, family.Config{})
}

func (b *Builder[T]) build(tag family.Tag, cfg family.Config) (*Index[T], error) {
	if b.err != nil {
		return nil, b.err
	}

	fam := family.For(tag)
	params := make([]family.Params, b.l)
	for t := 0; t < b.l; t++ {
		r := rng.New(b.seed, t)
		p, err := fam.InitParams(r, b.k, b.d, cfg)
		if err != nil {
			return nil, wrapError(tag.String(), err)
		}
		params[t] = p
	}

	var store backend.Backend
	var err error
	if b.sqlPath != "" {
		store, err = backend.OpenSQL(b.sqlPath, !b.onlyIndex)
		if err != nil {
			return nil, wrapError(tag.String(), &BackendError{Err: err})
		}
	} else {
		store = backend.NewMemory(b.l, b.reserve)
	}

	idx := &Index[T]{
		k:           b.k,
		l:           b.l,
		d:           b.d,
		seed:        b.seed,
		tag:         tag,
		fam:         fam,
		cfg:         cfg,
		params:      params,
		probeBudget: b.probeBudget,
		onlyIndex:   b.onlyIndex,
		backend:     store,
		logger:      b.logger,
	}
	if tag != family.TagMIPS {
		idx.ctx.Frozen = true
	}
	idx.logger.Info("index built", "family", tag.String(), "k", b.k, "l", b.l, "d", b.d)
	return idx, nil
}
