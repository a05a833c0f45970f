package annlsh

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/liliang-cn/annlsh/internal/backend"
	"github.com/liliang-cn/annlsh/internal/encoding"
	"github.com/liliang-cn/annlsh/internal/family"
	"github.com/liliang-cn/annlsh/internal/rng"
)

var fileMagic = [4]byte{'L', 'S', 'H', 'X'}

const formatVersion byte = 1

// Save writes a self-describing binary encoding of the index: magic
// header, version, configuration, and backend contents (spec §6.2). Hasher
// parameters are not written separately — they are re-derived from the
// seed and configuration at Load time, which is equivalent by construction
// (spec §3.2 invariant 2: identical seed and configuration always reproduce
// identical tables) and avoids duplicating potentially large projection
// matrices on disk.
func (idx *Index[T]) Save(ctx context.Context, w io.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	buf := new(bytes.Buffer)
	buf.Write(fileMagic[:])
	buf.WriteByte(formatVersion)
	buf.WriteByte(byte(idx.tag))

	writeInt32(buf, int32(idx.k))
	writeInt32(buf, int32(idx.l))
	writeInt32(buf, int32(idx.d))
	writeUint64(buf, idx.seed)
	writeBool(buf, idx.onlyIndex)
	writeInt32(buf, int32(idx.probeBudget))

	writeFloat64(buf, idx.cfg.R)
	writeFloat64(buf, idx.cfg.U)
	writeInt32(buf, int32(idx.cfg.M))

	writeFloat64(buf, idx.ctx.MaxNorm)
	writeBool(buf, idx.ctx.Frozen)

	snap, err := idx.backend.Export(ctx)
	if err != nil {
		return wrapError("save", &BackendError{Err: err})
	}
	if err := writeSnapshot(buf, snap); err != nil {
		return wrapError("save", err)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return wrapError("save", fmt.Errorf("write: %w", err))
	}
	idx.logger.Info("index saved", "family", idx.tag.String(), "points", len(snap.Vectors), "entries", len(snap.Entries))
	return nil
}

// Load reconstructs an Index from bytes written by Save. Backend contents
// are always restored into a fresh in-memory backend: the serialized
// format is backend-agnostic data, and an in-memory backend is sufficient
// to satisfy the round-trip guarantee of bit-identical signatures and
// bucket memberships (spec §6.2). Use WithSQLBackend on a fresh Builder and
// StoreVecs instead of Load when durable on-disk storage is required.
func Load[T Float](r io.Reader) (*Index[T], error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, wrapError("load", fmt.Errorf("%w: %v", ErrCorruptedState, err))
	}
	if hdr[0] != fileMagic[0] || hdr[1] != fileMagic[1] || hdr[2] != fileMagic[2] || hdr[3] != fileMagic[3] {
		return nil, wrapError("load", ErrCorruptedState)
	}
	if hdr[4] != formatVersion {
		return nil, wrapError("load", ErrVersionMismatch)
	}

	tagByte, err := readByte(r)
	if err != nil {
		return nil, wrapError("load", err)
	}
	tag := family.Tag(tagByte)

	k, err := readInt32(r)
	if err != nil {
		return nil, wrapError("load", err)
	}
	l, err := readInt32(r)
	if err != nil {
		return nil, wrapError("load", err)
	}
	d, err := readInt32(r)
	if err != nil {
		return nil, wrapError("load", err)
	}
	seed, err := readUint64(r)
	if err != nil {
		return nil, wrapError("load", err)
	}
	onlyIndex, err := readBool(r)
	if err != nil {
		return nil, wrapError("load", err)
	}
	probeBudget, err := readInt32(r)
	if err != nil {
		return nil, wrapError("load", err)
	}

	var cfg family.Config
	if cfg.R, err = readFloat64(r); err != nil {
		return nil, wrapError("load", err)
	}
	if cfg.U, err = readFloat64(r); err != nil {
		return nil, wrapError("load", err)
	}
	m, err := readInt32(r)
	if err != nil {
		return nil, wrapError("load", err)
	}
	cfg.M = int(m)

	var ctx family.Context
	if ctx.MaxNorm, err = readFloat64(r); err != nil {
		return nil, wrapError("load", err)
	}
	if ctx.Frozen, err = readBool(r); err != nil {
		return nil, wrapError("load", err)
	}

	snap, err := readSnapshot(r)
	if err != nil {
		return nil, wrapError("load", err)
	}

	fam := family.For(tag)
	if fam == nil {
		return nil, wrapError("load", fmt.Errorf("%w: unknown family tag %d", ErrCorruptedState, tagByte))
	}
	params := make([]family.Params, l)
	for t := 0; t < int(l); t++ {
		p, err := fam.InitParams(rng.New(seed, t), int(k), int(d), cfg)
		if err != nil {
			return nil, wrapError("load", fmt.Errorf("%w: %v", ErrCorruptedState, err))
		}
		params[t] = p
	}

	store := backend.NewMemory(int(l), 0)
	if err := store.Import(context.Background(), snap); err != nil {
		return nil, wrapError("load", fmt.Errorf("%w: %v", ErrCorruptedState, err))
	}

	idx := &Index[T]{
		k: int(k), l: int(l), d: int(d), seed: seed,
		tag: tag, fam: fam, cfg: cfg, params: params, ctx: ctx,
		probeBudget: int(probeBudget), onlyIndex: onlyIndex,
		backend: store, logger: NopLogger(),
	}
	idx.logger.Info("index loaded", "family", tag.String(), "points", len(snap.Vectors), "entries", len(snap.Entries))
	return idx, nil
}

func writeSnapshot(buf *bytes.Buffer, snap *backend.Snapshot) error {
	writeInt64(buf, snap.NextID)
	writeInt32(buf, int32(len(snap.Vectors)))
	for id, v := range snap.Vectors {
		writeInt64(buf, id)
		vb, err := encoding.EncodeVector(v)
		if err != nil {
			return fmt.Errorf("encode vector %d: %w", id, err)
		}
		writeInt32(buf, int32(len(vb)))
		buf.Write(vb)
	}
	writeInt32(buf, int32(len(snap.Entries)))
	for _, e := range snap.Entries {
		writeInt32(buf, int32(e.Table))
		sb, err := encoding.EncodeSignature(e.Packed, e.Bits, e.Sym)
		if err != nil {
			return fmt.Errorf("encode signature: %w", err)
		}
		writeInt32(buf, int32(len(sb)))
		buf.Write(sb)
		writeInt32(buf, int32(len(e.IDs)))
		for _, id := range e.IDs {
			writeInt64(buf, id)
		}
	}
	return nil
}

func readSnapshot(r io.Reader) (*backend.Snapshot, error) {
	nextID, err := readInt64(r)
	if err != nil {
		return nil, err
	}
	vecCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if vecCount < 0 {
		return nil, ErrCorruptedState
	}
	vectors := make(map[int64][]float64, vecCount)
	for i := int32(0); i < vecCount; i++ {
		id, err := readInt64(r)
		if err != nil {
			return nil, err
		}
		blob, err := readBlob(r)
		if err != nil {
			return nil, err
		}
		v, err := encoding.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptedState, err)
		}
		vectors[id] = v
	}

	entryCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if entryCount < 0 {
		return nil, ErrCorruptedState
	}
	entries := make([]backend.SnapshotEntry, 0, entryCount)
	for i := int32(0); i < entryCount; i++ {
		table, err := readInt32(r)
		if err != nil {
			return nil, err
		}
		sigBlob, err := readBlob(r)
		if err != nil {
			return nil, err
		}
		packed, bits, sym, err := encoding.DecodeSignature(sigBlob)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptedState, err)
		}
		idCount, err := readInt32(r)
		if err != nil {
			return nil, err
		}
		if idCount < 0 {
			return nil, ErrCorruptedState
		}
		ids := make([]int64, idCount)
		for j := range ids {
			ids[j], err = readInt64(r)
			if err != nil {
				return nil, err
			}
		}
		entries = append(entries, backend.SnapshotEntry{
			Table: int(table), Packed: packed, Bits: bits, Sym: sym, IDs: ids,
		})
	}

	return &backend.Snapshot{NextID: nextID, Vectors: vectors, Entries: entries}, nil
}

func writeInt32(buf *bytes.Buffer, v int32)     { _ = binary.Write(buf, binary.LittleEndian, v) }
func writeInt64(buf *bytes.Buffer, v int64)     { _ = binary.Write(buf, binary.LittleEndian, v) }
func writeUint64(buf *bytes.Buffer, v uint64)   { _ = binary.Write(buf, binary.LittleEndian, v) }
func writeFloat64(buf *bytes.Buffer, v float64) { _ = binary.Write(buf, binary.LittleEndian, v) }
func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
		return
	}
	buf.WriteByte(0)
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptedState, err)
	}
	return b[0], nil
}

func readBool(r io.Reader) (bool, error) {
	b, err := readByte(r)
	return b != 0, err
}

func readInt32(r io.Reader) (int32, error) {
	var v int32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptedState, err)
	}
	return v, nil
}

func readInt64(r io.Reader) (int64, error) {
	var v int64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptedState, err)
	}
	return v, nil
}

func readUint64(r io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptedState, err)
	}
	return v, nil
}

func readFloat64(r io.Reader) (float64, error) {
	var v float64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptedState, err)
	}
	return v, nil
}

func readBlob(r io.Reader) ([]byte, error) {
	n, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrCorruptedState
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedState, err)
	}
	return b, nil
}
