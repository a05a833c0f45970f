package annlsh

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/liliang-cn/annlsh/internal/backend"
	"github.com/liliang-cn/annlsh/internal/family"
	"github.com/liliang-cn/annlsh/internal/sig"
)

// Result is one re-ranked candidate from a top-k query: the point id and its
// exact similarity score under the index's family (spec §4.4).
type Result[T Float] struct {
	ID    int64
	Score float64
}

// Index is an LSH-backed approximate nearest-neighbor index over K*L
// hashers grouped into L tables (spec §3.1). Construct one with New(...)
// and a family finalizer on Builder. An Index is safe for concurrent use:
// mutating operations take a write lock and serialize against each other
// and against readers; queries take a read lock and run concurrently with
// each other (spec §5).
type Index[T Float] struct {
	mu sync.RWMutex

	k, l, d int
	seed    uint64

	tag    family.Tag
	fam    family.Family
	cfg    family.Config
	params []family.Params
	ctx    family.Context

	probeBudget int
	onlyIndex   bool

	backend backend.Backend
	logger  Logger
}

// Fit establishes the global statistics the family needs before any vector
// can be hashed (currently only MIPS's max_norm, spec §4.1). Calling Fit a
// second time, or on a family with no such requirement, is a no-op.
// StoreVecs also performs this automatically from its own batch if Fit was
// never called.
func (idx *Index[T]) Fit(vs [][]T) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.tag != family.TagMIPS || idx.ctx.Frozen {
		return nil
	}
	idx.freezeMaxNorm(vs)
	idx.logger.Info("fit complete", "max_norm", idx.ctx.MaxNorm, "points", len(vs))
	return nil
}

func (idx *Index[T]) freezeMaxNorm(vs [][]T) {
	var maxNorm float64
	for _, v := range vs {
		if n := norm(toFloat64(v)); n > maxNorm {
			maxNorm = n
		}
	}
	idx.ctx.MaxNorm = maxNorm
	idx.ctx.Frozen = true
}

// StoreVec inserts one vector, minting and returning its point id. For
// MIPS, Fit (or a prior StoreVecs call) must have run first; otherwise
// StoreVec fails with ErrNotFit, since a single point cannot establish the
// dataset-wide max norm the family's augmentation needs (spec §4.1, §4.4).
func (idx *Index[T]) StoreVec(ctx context.Context, v []T) (int64, error) {
	if len(v) != idx.d {
		return 0, wrapError("store_vec", ErrDimensionMismatch)
	}
	fv := toFloat64(v)
	if !validateFinite(fv) {
		idx.logger.Warn("dropped point with non-finite projection", "op", "store_vec")
		return 0, wrapError("store_vec", ErrNumerical)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.tag == family.TagMIPS && !idx.ctx.Frozen {
		return 0, wrapError("store_vec", ErrNotFit)
	}

	id, err := idx.backend.StoreVector(ctx, fv, !idx.onlyIndex)
	if err != nil {
		return 0, wrapError("store_vec", &BackendError{Err: err})
	}
	if err := idx.insertAllTables(ctx, fv, id); err != nil {
		return id, wrapError("store_vec", &BackendError{Err: err})
	}
	return id, nil
}

// StoreVecs inserts a batch of vectors and returns their minted ids in
// order. For MIPS, if Fit has not already run, StoreVecs computes max_norm
// from this batch and freezes it before hashing any of them (spec §4.1). On
// a mid-batch error the ids minted so far are returned alongside the error;
// points already stored are not rolled back (spec §5).
func (idx *Index[T]) StoreVecs(ctx context.Context, vs [][]T) ([]int64, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.tag == family.TagMIPS && !idx.ctx.Frozen {
		idx.freezeMaxNorm(vs)
	}

	ids := make([]int64, 0, len(vs))
	for _, v := range vs {
		if len(v) != idx.d {
			return ids, wrapError("store_vecs", ErrDimensionMismatch)
		}
		fv := toFloat64(v)
		if !validateFinite(fv) {
			idx.logger.Warn("dropped point with non-finite projection", "op", "store_vecs", "index", len(ids))
			return ids, wrapError("store_vecs", ErrNumerical)
		}
		id, err := idx.backend.StoreVector(ctx, fv, !idx.onlyIndex)
		if err != nil {
			return ids, wrapError("store_vecs", &BackendError{Err: err})
		}
		if err := idx.insertAllTables(ctx, fv, id); err != nil {
			ids = append(ids, id)
			return ids, wrapError("store_vecs", &BackendError{Err: err})
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// insertAllTables hashes fv under all L tables in parallel and writes each
// resulting bucket entry (spec §4.7 "per-table fan-out"); the caller holds
// idx.mu for writing, so idx.ctx is read-only for the duration.
func (idx *Index[T]) insertAllTables(ctx context.Context, fv []float64, id int64) error {
	g, gctx := errgroup.WithContext(ctx)
	for t := 0; t < idx.l; t++ {
		t := t
		g.Go(func() error {
			s, err := idx.fam.HashIndexVec(idx.params[t], fv, &idx.ctx)
			if err != nil {
				return err
			}
			return idx.backend.Put(gctx, t, s, id)
		})
	}
	return g.Wait()
}

// candidateIDs unions the primary bucket of all L tables plus, when
// multi-probe is enabled, up to probeBudget perturbed buckets per table
// (spec §4.2, §4.4 query algorithm).
func (idx *Index[T]) candidateIDs(ctx context.Context, q []T) (map[int64]bool, error) {
	if len(q) != idx.d {
		return nil, ErrDimensionMismatch
	}
	fv := toFloat64(q)
	if !validateFinite(fv) {
		return nil, ErrNumerical
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	cand := make(map[int64]bool)
	for t := 0; t < idx.l; t++ {
		s, err := idx.fam.HashQueryVec(idx.params[t], fv, &idx.ctx)
		if err != nil {
			return nil, err
		}
		ids, err := idx.backend.Query(ctx, t, s)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			cand[id] = true
		}

		if idx.probeBudget <= 0 {
			continue
		}
		gen := idx.fam.Perturb(idx.params[t], fv, &idx.ctx, idx.probeBudget)
		for i := 0; i < idx.probeBudget; i++ {
			ps, ok := gen.Next()
			if !ok {
				break
			}
			pids, err := idx.backend.Query(ctx, t, ps)
			if err != nil {
				return nil, err
			}
			for _, id := range pids {
				cand[id] = true
			}
		}
	}
	return cand, nil
}

// QueryBucketIds returns the union of ids colliding with q across all
// tables (and multi-probe expansions), sorted ascending for determinism.
func (idx *Index[T]) QueryBucketIds(ctx context.Context, q []T) ([]int64, error) {
	cand, err := idx.candidateIDs(ctx, q)
	if err != nil {
		return nil, wrapError("query_bucket_ids", err)
	}
	ids := make([]int64, 0, len(cand))
	for id := range cand {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// QueryBucket returns the retained vectors colliding with q. It fails with
// ErrNoVectorStore on an only_index index (spec §4.4).
func (idx *Index[T]) QueryBucket(ctx context.Context, q []T) ([][]T, error) {
	if idx.onlyIndex {
		return nil, wrapError("query_bucket", ErrNoVectorStore)
	}
	ids, err := idx.QueryBucketIds(ctx, q)
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([][]T, 0, len(ids))
	for _, id := range ids {
		v, err := idx.backend.GetVector(ctx, id)
		if err != nil {
			return nil, wrapError("query_bucket", translateBackendErr(err))
		}
		out = append(out, fromFloat64[T](v))
	}
	return out, nil
}

// QueryBucketIdsTopK re-ranks the bucket union by the family's exact
// similarity and returns the top k, ties broken by ascending id for
// determinism (spec §4.4, §8 testable property "top-k ordering").
func (idx *Index[T]) QueryBucketIdsTopK(ctx context.Context, q []T, k int) ([]Result[T], error) {
	return idx.QueryBucketIdsTopKExcluding(ctx, q, k)
}

// QueryBucketIdsTopKExcluding is QueryBucketIdsTopK with a set of ids
// removed from consideration before ranking — the hook a foreign binding's
// predict_trainset uses to exclude a query's own training-set id (spec §6.4).
func (idx *Index[T]) QueryBucketIdsTopKExcluding(ctx context.Context, q []T, k int, exclude ...int64) ([]Result[T], error) {
	if idx.onlyIndex {
		return nil, wrapError("query_bucket_ids_topk", ErrNoVectorStore)
	}
	cand, err := idx.candidateIDs(ctx, q)
	if err != nil {
		return nil, wrapError("query_bucket_ids_topk", err)
	}
	excl := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		excl[id] = true
	}
	fv := toFloat64(q)

	type scored struct {
		id    int64
		score float64
	}
	idx.mu.RLock()
	results := make([]scored, 0, len(cand))
	for id := range cand {
		if excl[id] {
			continue
		}
		v, err := idx.backend.GetVector(ctx, id)
		if err != nil {
			idx.mu.RUnlock()
			return nil, wrapError("query_bucket_ids_topk", translateBackendErr(err))
		}
		results = append(results, scored{id: id, score: idx.fam.ExactSimilarity(fv, v)})
	}
	idx.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})
	if k >= 0 && len(results) > k {
		results = results[:k]
	}

	out := make([]Result[T], len(results))
	for i, r := range results {
		out[i] = Result[T]{ID: r.id, Score: r.score}
	}
	return out, nil
}

// DeleteVec removes one id whose stored vector exactly matches v from every
// bucket it occupies (spec §4.4). When several ids share the same vector,
// the lowest id is removed. It fails with ErrNotFound if no stored vector
// matches, and with ErrNoVectorStore on an only_index index, since matching
// requires the retained vector.
func (idx *Index[T]) DeleteVec(ctx context.Context, v []T) error {
	if idx.onlyIndex {
		return wrapError("delete_vec", ErrNoVectorStore)
	}
	if len(v) != idx.d {
		return wrapError("delete_vec", ErrDimensionMismatch)
	}
	fv := toFloat64(v)
	if !validateFinite(fv) {
		return wrapError("delete_vec", ErrNumerical)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	sigs := make([]sig.Signature, idx.l)
	candidates := map[int64]bool{}
	for t := 0; t < idx.l; t++ {
		s, err := idx.fam.HashIndexVec(idx.params[t], fv, &idx.ctx)
		if err != nil {
			return wrapError("delete_vec", err)
		}
		sigs[t] = s
		ids, err := idx.backend.Query(ctx, t, s)
		if err != nil {
			return wrapError("delete_vec", err)
		}
		for _, id := range ids {
			candidates[id] = true
		}
	}

	ordered := make([]int64, 0, len(candidates))
	for id := range candidates {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	match := int64(-1)
	for _, id := range ordered {
		stored, err := idx.backend.GetVector(ctx, id)
		if err != nil {
			continue
		}
		if vectorEqual(stored, fv) {
			match = id
			break
		}
	}
	if match < 0 {
		return wrapError("delete_vec", ErrNotFound)
	}

	for t := 0; t < idx.l; t++ {
		if err := idx.backend.DeleteFromBucket(ctx, t, sigs[t], match); err != nil {
			return wrapError("delete_vec", &BackendError{Err: err})
		}
	}
	return nil
}

// UpdateByVector replaces a stored point (matched by exact vector equality)
// with a new vector, returning the newly minted id. It is DeleteVec
// followed by StoreVec and carries the same preconditions as each.
func (idx *Index[T]) UpdateByVector(ctx context.Context, oldV, newV []T) (int64, error) {
	if err := idx.DeleteVec(ctx, oldV); err != nil {
		return 0, err
	}
	return idx.StoreVec(ctx, newV)
}

// VectorByID returns the retained vector for a point id, the hook a
// foreign binding's predict_trainset uses to recover a training point's own
// vector before querying with it excluded (spec §6.4). It fails with
// ErrNoVectorStore on an only_index index and ErrNotFound for an unknown id.
func (idx *Index[T]) VectorByID(ctx context.Context, id int64) ([]T, error) {
	if idx.onlyIndex {
		return nil, wrapError("vector_by_id", ErrNoVectorStore)
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, err := idx.backend.GetVector(ctx, id)
	if err != nil {
		return nil, wrapError("vector_by_id", translateBackendErr(err))
	}
	return fromFloat64[T](v), nil
}

// Describe reports bucket-occupancy statistics for diagnostics.
func (idx *Index[T]) Describe(ctx context.Context) (backend.Stats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	stats, err := idx.backend.Describe(ctx)
	if err != nil {
		return stats, wrapError("describe", &BackendError{Err: err})
	}
	return stats, nil
}

// Close releases the backend's resources (a no-op for the in-memory
// backend, a DB handle close for the SQL backend).
func (idx *Index[T]) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.backend.Close()
}

// translateBackendErr maps the backend package's own not-found sentinel to
// the public ErrNotFound so callers can errors.Is against one constant
// regardless of which backend is in use.
func translateBackendErr(err error) error {
	if errors.Is(err, backend.ErrNotFound) {
		return ErrNotFound
	}
	return &BackendError{Err: err}
}

func vectorEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
