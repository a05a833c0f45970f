// Package backend implements the storage contract of spec §4.3: mapping
// (table, signature) to point-id buckets, minting and retrieving point
// vectors, and (for persistent backends) committing writes.
package backend

import (
	"context"
	"errors"

	"github.com/liliang-cn/annlsh/internal/sig"
)

// ErrNotFound is returned by GetVector for an id with no retained vector.
var ErrNotFound = errors.New("point not found")

// Stats summarizes bucket occupancy for Index.Describe.
type Stats struct {
	Points       int
	TotalBuckets int
	MeanBucket   float64
	VarBucket    float64
}

// SnapshotEntry is one (table, signature) bucket's id list, used by
// Export/Import to move backend contents across the serialized format of
// spec §6.2.
type SnapshotEntry struct {
	Table  int
	Packed bool
	Bits   uint64
	Sym    []int64
	IDs    []int64
}

// Snapshot is the full contents of a backend: every bucket entry, every
// retained vector, and the next id to mint.
type Snapshot struct {
	Entries []SnapshotEntry
	Vectors map[int64][]float64
	NextID  int64
}

// Backend is the storage capability set every LSH backend implements.
// put is idempotent; query returns exactly the ids previously put under a
// key. The index serializes its own mutations and allows concurrent reads,
// but it issues the L per-table Put calls of one insert concurrently, so an
// implementation must be safe for concurrent use (Memory locks internally).
type Backend interface {
	Put(ctx context.Context, table int, s sig.Signature, id int64) error
	Query(ctx context.Context, table int, s sig.Signature) ([]int64, error)
	DeleteFromBucket(ctx context.Context, table int, s sig.Signature, id int64) error

	StoreVector(ctx context.Context, v []float64, retain bool) (int64, error)
	GetVector(ctx context.Context, id int64) ([]float64, error)

	Commit(ctx context.Context) error
	Describe(ctx context.Context) (Stats, error)
	Close() error

	// Export and Import move a backend's entire contents to and from a
	// Snapshot, used by the root package's Save/Load (spec §6.2).
	Export(ctx context.Context) (*Snapshot, error)
	Import(ctx context.Context, snap *Snapshot) error
}
