package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/liliang-cn/annlsh/internal/sig"
)

// entry chains the exact signature and its id set behind one xxhash bucket
// key, so a 64-bit digest collision between two distinct signatures never
// merges their ids (spec §4.3's "open-addressing hash table keyed on the
// packed signature", recommended in spec §9).
type entry struct {
	sig sig.Signature
	ids []int64
}

// Memory is the in-memory backend: L independent hash tables plus an
// optional vector store, grounded in the teacher's LSHIndex.hashTables /
// LSHIndex.vectors fields, generalized into its own Backend implementation
// so it's interchangeable with the SQL backend.
type Memory struct {
	mu      sync.RWMutex
	tables  []map[uint64][]*entry
	vectors map[int64][]float64
	nextID  int64
}

// NewMemory creates an in-memory backend with L tables. reserve is a
// capacity hint per table (spec §4.4 Builder.increase_storage).
func NewMemory(l, reserve int) *Memory {
	tables := make([]map[uint64][]*entry, l)
	for i := range tables {
		tables[i] = make(map[uint64][]*entry, reserve)
	}
	return &Memory{tables: tables, vectors: make(map[int64][]float64)}
}

func (m *Memory) Put(_ context.Context, table int, s sig.Signature, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := s.Hash64()
	bucket := m.tables[table][key]
	for _, e := range bucket {
		if e.sig.Equal(s) {
			for _, existing := range e.ids {
				if existing == id {
					return nil // idempotent
				}
			}
			e.ids = append(e.ids, id)
			return nil
		}
	}
	m.tables[table][key] = append(bucket, &entry{sig: s, ids: []int64{id}})
	return nil
}

func (m *Memory) Query(_ context.Context, table int, s sig.Signature) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.tables[table][s.Hash64()] {
		if e.sig.Equal(s) {
			out := make([]int64, len(e.ids))
			copy(out, e.ids)
			return out, nil
		}
	}
	return nil, nil
}

func (m *Memory) DeleteFromBucket(_ context.Context, table int, s sig.Signature, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := s.Hash64()
	bucket := m.tables[table][key]
	for bi, e := range bucket {
		if !e.sig.Equal(s) {
			continue
		}
		for i, existing := range e.ids {
			if existing == id {
				e.ids = append(e.ids[:i], e.ids[i+1:]...)
				if len(e.ids) == 0 {
					m.tables[table][key] = append(bucket[:bi], bucket[bi+1:]...)
				}
				return nil
			}
		}
	}
	return nil
}

func (m *Memory) StoreVector(_ context.Context, v []float64, retain bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	if retain {
		cp := make([]float64, len(v))
		copy(cp, v)
		m.vectors[id] = cp
	}
	return id, nil
}

func (m *Memory) GetVector(_ context.Context, id int64) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vectors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]float64, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *Memory) Commit(context.Context) error { return nil }

func (m *Memory) Describe(context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var totalBuckets, totalItems int
	sizes := make([]int, 0)
	for _, t := range m.tables {
		totalBuckets += len(t)
		for _, bucket := range t {
			for _, e := range bucket {
				totalItems += len(e.ids)
				sizes = append(sizes, len(e.ids))
			}
		}
	}
	stats := Stats{Points: len(m.vectors), TotalBuckets: totalBuckets}
	if len(sizes) == 0 {
		return stats, nil
	}
	var sum float64
	for _, s := range sizes {
		sum += float64(s)
	}
	mean := sum / float64(len(sizes))
	var varSum float64
	for _, s := range sizes {
		d := float64(s) - mean
		varSum += d * d
	}
	stats.MeanBucket = mean
	stats.VarBucket = varSum / float64(len(sizes))
	return stats, nil
}

func (m *Memory) Close() error { return nil }

// Export dumps every bucket entry and retained vector.
func (m *Memory) Export(context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &Snapshot{NextID: m.nextID, Vectors: make(map[int64][]float64, len(m.vectors))}
	for id, v := range m.vectors {
		cp := make([]float64, len(v))
		copy(cp, v)
		snap.Vectors[id] = cp
	}
	for t, table := range m.tables {
		for _, bucket := range table {
			for _, e := range bucket {
				ids := make([]int64, len(e.ids))
				copy(ids, e.ids)
				snap.Entries = append(snap.Entries, SnapshotEntry{
					Table: t, Packed: e.sig.Packed, Bits: e.sig.Bits, Sym: e.sig.Sym, IDs: ids,
				})
			}
		}
	}
	return snap, nil
}

// Import replaces the backend's contents with snap, used by Load to
// rebuild a deserialized index (spec §6.2 round-trip guarantee).
func (m *Memory) Import(_ context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.tables {
		m.tables[i] = make(map[uint64][]*entry, len(m.tables[i]))
	}
	m.vectors = make(map[int64][]float64, len(snap.Vectors))
	for id, v := range snap.Vectors {
		cp := make([]float64, len(v))
		copy(cp, v)
		m.vectors[id] = cp
	}
	m.nextID = snap.NextID

	for _, e := range snap.Entries {
		if e.Table < 0 || e.Table >= len(m.tables) {
			return fmt.Errorf("snapshot table index %d out of range", e.Table)
		}
		s := sig.Signature{Packed: e.Packed, Bits: e.Bits, Sym: e.Sym}
		key := s.Hash64()
		m.tables[e.Table][key] = append(m.tables[e.Table][key], &entry{sig: s, ids: e.IDs})
	}
	return nil
}
