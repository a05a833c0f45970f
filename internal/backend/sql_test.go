package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/liliang-cn/annlsh/internal/sig"
)

func openTestSQL(t *testing.T, retain bool) *SQL {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := OpenSQL(path, retain)
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLPutQueryDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestSQL(t, true)
	sg := sig.Signature{Sym: []int64{1, 2, 3}}

	if err := s.Put(ctx, 0, sg, 10); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, 0, sg, 20); err != nil {
		t.Fatal(err)
	}
	ids, err := s.Query(ctx, 0, sg)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}

	if err := s.DeleteFromBucket(ctx, 0, sg, 10); err != nil {
		t.Fatal(err)
	}
	ids, _ = s.Query(ctx, 0, sg)
	if len(ids) != 1 || ids[0] != 20 {
		t.Fatalf("expected only id 20 remaining, got %v", ids)
	}
}

func TestSQLPutIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestSQL(t, true)
	sg := sig.Signature{Packed: true, Bits: 42}
	s.Put(ctx, 0, sg, 1)
	s.Put(ctx, 0, sg, 1)
	ids, _ := s.Query(ctx, 0, sg)
	if len(ids) != 1 {
		t.Fatalf("duplicate Put must be idempotent, got %d", len(ids))
	}
}

func TestSQLStoreVectorSequentialIDs(t *testing.T) {
	ctx := context.Background()
	s := openTestSQL(t, true)
	id1, err := s.StoreVector(ctx, []float64{1, 2}, true)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.StoreVector(ctx, []float64{3, 4}, true)
	if err != nil {
		t.Fatal(err)
	}
	if id2 != id1+1 {
		t.Fatalf("expected sequential ids, got %d then %d", id1, id2)
	}
	v, err := s.GetVector(ctx, id1)
	if err != nil {
		t.Fatal(err)
	}
	if v[0] != 1 || v[1] != 2 {
		t.Fatalf("round-tripped vector mismatch: %v", v)
	}
}

func TestSQLOnlyIndexDropsVectors(t *testing.T) {
	ctx := context.Background()
	s := openTestSQL(t, false)
	id, err := s.StoreVector(ctx, []float64{1, 2}, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetVector(ctx, id); err != ErrNotFound {
		t.Fatalf("only-index backend must not retain vectors, got err=%v", err)
	}
}

func TestSQLGetVectorNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestSQL(t, true)
	if _, err := s.GetVector(ctx, 999); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestSQL(t, true)
	id, err := s.StoreVector(ctx, []float64{1, 2, 3}, true)
	if err != nil {
		t.Fatal(err)
	}
	sg := sig.Signature{Sym: []int64{5, 6}}
	if err := s.Put(ctx, 2, sg, id); err != nil {
		t.Fatal(err)
	}

	snap, err := s.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}

	dst := openTestSQL(t, true)
	if err := dst.Import(ctx, snap); err != nil {
		t.Fatal(err)
	}
	v, err := dst.GetVector(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 3 || v[2] != 3 {
		t.Fatalf("imported vector mismatch: %v", v)
	}
	ids, err := dst.Query(ctx, 2, sg)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("imported bucket mismatch: %v", ids)
	}

	nextID, err := dst.StoreVector(ctx, []float64{9}, true)
	if err != nil {
		t.Fatal(err)
	}
	if nextID != snap.NextID {
		t.Fatalf("next_id not restored: got %d, want %d", nextID, snap.NextID)
	}
}

func TestSQLDescribe(t *testing.T) {
	ctx := context.Background()
	s := openTestSQL(t, true)
	id1, _ := s.StoreVector(ctx, []float64{1}, true)
	id2, _ := s.StoreVector(ctx, []float64{2}, true)
	sg := sig.Signature{Sym: []int64{1}}
	s.Put(ctx, 0, sg, id1)
	s.Put(ctx, 0, sg, id2)

	stats, err := s.Describe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Points != 2 {
		t.Fatalf("Points = %d, want 2", stats.Points)
	}
	if stats.TotalBuckets != 1 {
		t.Fatalf("TotalBuckets = %d, want 1", stats.TotalBuckets)
	}
}
