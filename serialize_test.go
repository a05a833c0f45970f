package annlsh

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestSaveLoadRoundTripPreservesQueries(t *testing.T) {
	ctx := context.Background()
	idx, err := New[float64](6, 4, 3).Seed(17).MultiProbe(2).Srp()
	if err != nil {
		t.Fatal(err)
	}
	vecs := [][]float64{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}, {-1, 0, 0}}
	if _, err := idx.StoreVecs(ctx, vecs); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := idx.Save(ctx, &buf); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load[float64](&buf)
	if err != nil {
		t.Fatal(err)
	}

	q := []float64{1, 0, 0}
	before, err := idx.QueryBucketIdsTopK(ctx, q, 4)
	if err != nil {
		t.Fatal(err)
	}
	after, err := loaded.QueryBucketIdsTopK(ctx, q, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != len(after) {
		t.Fatalf("result count changed across round trip: before=%d after=%d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID || before[i].Score != after[i].Score {
			t.Fatalf("result %d changed across round trip: before=%v after=%v", i, before[i], after[i])
		}
	}
}

func TestSaveLoadPreservesBucketMembership(t *testing.T) {
	ctx := context.Background()
	idx, err := New[float64](4, 3, 2).Seed(4).L2(2.0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.StoreVecs(ctx, [][]float64{{0, 0}, {0.1, -0.1}, {5, 5}}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := idx.Save(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load[float64](&buf)
	if err != nil {
		t.Fatal(err)
	}

	before, err := idx.QueryBucketIds(ctx, []float64{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	after, err := loaded.QueryBucketIds(ctx, []float64{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != len(after) {
		t.Fatalf("bucket membership changed across round trip: before=%v after=%v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("bucket membership changed across round trip: before=%v after=%v", before, after)
		}
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	bad := bytes.NewBufferString("NOPE!garbage")
	if _, err := Load[float64](bad); !errors.Is(err, ErrCorruptedState) {
		t.Fatalf("expected ErrCorruptedState for bad magic, got %v", err)
	}
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	ctx := context.Background()
	idx, err := New[float64](4, 2, 2).Srp()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := idx.Save(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	raw[4] = 255 // corrupt the version byte
	if _, err := Load[float64](bytes.NewReader(raw)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestLoadRejectsTruncatedStream(t *testing.T) {
	ctx := context.Background()
	idx, err := New[float64](4, 2, 2).Srp()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.StoreVec(ctx, []float64{1, 2}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := idx.Save(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()-3]
	if _, err := Load[float64](bytes.NewReader(truncated)); !errors.Is(err, ErrCorruptedState) {
		t.Fatalf("expected ErrCorruptedState for truncated stream, got %v", err)
	}
}

func TestSaveLoadPreservesMipsFreezeState(t *testing.T) {
	ctx := context.Background()
	idx, err := New[float64](4, 2, 2).Mips(1.0, 0.5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.StoreVecs(ctx, [][]float64{{3, 4}}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := idx.Save(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load[float64](&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.ctx.Frozen {
		t.Fatal("loaded MIPS index must preserve frozen max_norm state")
	}
	if _, err := loaded.StoreVec(ctx, []float64{1, 1}); err != nil {
		t.Fatalf("loaded frozen MIPS index should accept new vectors without re-fitting, got %v", err)
	}
}
