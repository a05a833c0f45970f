package backend

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	"github.com/liliang-cn/annlsh/internal/encoding"
	"github.com/liliang-cn/annlsh/internal/sig"
)

// SQL is the persistent backend of spec §6.3, following the logical schema
// sketch (hashes/vectors/meta) and grounded in the teacher's
// pkg/core/store_init.go WAL-mode DSN and createTables conventions.
type SQL struct {
	db     *sql.DB
	retain bool
}

// OpenSQL opens (creating if necessary) a SQLite-backed backend at path.
// retain controls whether StoreVector persists the vector blob (only-index
// mode keeps ids but drops vectors).
func OpenSQL(path string, retain bool) (*SQL, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &SQL{db: db, retain: retain}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) createTables() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS hashes (
		table_id INTEGER NOT NULL,
		hash BLOB NOT NULL,
		id INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_hashes_table_hash ON hashes(table_id, hash);

	CREATE TABLE IF NOT EXISTS vectors (
		id INTEGER PRIMARY KEY,
		blob BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value BLOB
	);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES ('next_id', ?)`, encodeInt64(0))
	if err != nil {
		return fmt.Errorf("seed next_id: %w", err)
	}
	return nil
}

func encodeInt64(v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

func decodeInt64(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b))
}

func (s *SQL) Put(ctx context.Context, table int, sg sig.Signature, id int64) error {
	key, err := encodeSig(sg)
	if err != nil {
		return err
	}
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM hashes WHERE table_id=? AND hash=? AND id=?`, table, key, id)
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("check existing entry: %w", err)
	}
	if count > 0 {
		return nil // idempotent
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO hashes (table_id, hash, id) VALUES (?, ?, ?)`, table, key, id)
	if err != nil {
		return fmt.Errorf("insert hash entry: %w", err)
	}
	return nil
}

func (s *SQL) Query(ctx context.Context, table int, sg sig.Signature) ([]int64, error) {
	key, err := encodeSig(sg)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM hashes WHERE table_id=? AND hash=?`, table, key)
	if err != nil {
		return nil, fmt.Errorf("query bucket: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan bucket row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQL) DeleteFromBucket(ctx context.Context, table int, sg sig.Signature, id int64) error {
	key, err := encodeSig(sg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM hashes WHERE table_id=? AND hash=? AND id=?`, table, key, id)
	if err != nil {
		return fmt.Errorf("delete bucket entry: %w", err)
	}
	return nil
}

func (s *SQL) StoreVector(ctx context.Context, v []float64, retain bool) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var raw []byte
	row := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='next_id'`)
	if err := row.Scan(&raw); err != nil {
		return 0, fmt.Errorf("read next_id: %w", err)
	}
	id := decodeInt64(raw)

	if _, err := tx.ExecContext(ctx, `UPDATE meta SET value=? WHERE key='next_id'`, encodeInt64(id+1)); err != nil {
		return 0, fmt.Errorf("advance next_id: %w", err)
	}

	if retain && s.retain {
		blob, err := encoding.EncodeVector(v)
		if err != nil {
			return 0, fmt.Errorf("encode vector: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO vectors (id, blob) VALUES (?, ?)`, id, blob); err != nil {
			return 0, fmt.Errorf("insert vector: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func (s *SQL) GetVector(ctx context.Context, id int64) ([]float64, error) {
	var blob []byte
	row := s.db.QueryRowContext(ctx, `SELECT blob FROM vectors WHERE id=?`, id)
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select vector: %w", err)
	}
	return encoding.DecodeVector(blob)
}

func (s *SQL) Commit(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(PASSIVE)`)
	return err
}

func (s *SQL) Describe(ctx context.Context) (Stats, error) {
	var stats Stats
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM vectors`)
	if err := row.Scan(&stats.Points); err != nil {
		return stats, fmt.Errorf("count vectors: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT COUNT(1) FROM (SELECT table_id, hash, COUNT(1) c FROM hashes GROUP BY table_id, hash) b`)
	if err != nil {
		return stats, fmt.Errorf("count buckets: %w", err)
	}
	if rows.Next() {
		_ = rows.Scan(&stats.TotalBuckets)
	}
	rows.Close()

	sizeRows, err := s.db.QueryContext(ctx, `SELECT c FROM (SELECT COUNT(1) c FROM hashes GROUP BY table_id, hash)`)
	if err != nil {
		return stats, fmt.Errorf("bucket sizes: %w", err)
	}
	defer sizeRows.Close()
	var sizes []float64
	for sizeRows.Next() {
		var c float64
		if err := sizeRows.Scan(&c); err != nil {
			return stats, fmt.Errorf("scan bucket size: %w", err)
		}
		sizes = append(sizes, c)
	}
	if len(sizes) == 0 {
		return stats, nil
	}
	var sum float64
	for _, v := range sizes {
		sum += v
	}
	mean := sum / float64(len(sizes))
	var varSum float64
	for _, v := range sizes {
		d := v - mean
		varSum += d * d
	}
	stats.MeanBucket = mean
	stats.VarBucket = varSum / float64(len(sizes))
	return stats, nil
}

func (s *SQL) Close() error { return s.db.Close() }

// Export dumps every bucket entry and retained vector.
func (s *SQL) Export(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Vectors: make(map[int64][]float64)}

	var raw []byte
	row := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='next_id'`)
	if err := row.Scan(&raw); err != nil {
		return nil, fmt.Errorf("read next_id: %w", err)
	}
	snap.NextID = decodeInt64(raw)

	vrows, err := s.db.QueryContext(ctx, `SELECT id, blob FROM vectors`)
	if err != nil {
		return nil, fmt.Errorf("export vectors: %w", err)
	}
	for vrows.Next() {
		var id int64
		var blob []byte
		if err := vrows.Scan(&id, &blob); err != nil {
			vrows.Close()
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		v, err := encoding.DecodeVector(blob)
		if err != nil {
			vrows.Close()
			return nil, fmt.Errorf("decode exported vector: %w", err)
		}
		snap.Vectors[id] = v
	}
	if err := vrows.Err(); err != nil {
		vrows.Close()
		return nil, err
	}
	vrows.Close()

	hrows, err := s.db.QueryContext(ctx, `SELECT table_id, hash, id FROM hashes ORDER BY table_id, hash`)
	if err != nil {
		return nil, fmt.Errorf("export hashes: %w", err)
	}
	defer hrows.Close()

	grouped := map[string]*SnapshotEntry{}
	var order []string
	for hrows.Next() {
		var table int
		var hash []byte
		var id int64
		if err := hrows.Scan(&table, &hash, &id); err != nil {
			return nil, fmt.Errorf("scan hash row: %w", err)
		}
		packed, bits, sym, err := encoding.DecodeSignature(hash)
		if err != nil {
			return nil, fmt.Errorf("decode exported signature: %w", err)
		}
		key := fmt.Sprintf("%d:%x", table, hash)
		e, ok := grouped[key]
		if !ok {
			e = &SnapshotEntry{Table: table, Packed: packed, Bits: bits, Sym: sym}
			grouped[key] = e
			order = append(order, key)
		}
		e.IDs = append(e.IDs, id)
	}
	if err := hrows.Err(); err != nil {
		return nil, err
	}
	for _, key := range order {
		snap.Entries = append(snap.Entries, *grouped[key])
	}
	return snap, nil
}

// Import replaces the backend's contents with snap.
func (s *SQL) Import(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM hashes`, `DELETE FROM vectors`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear table: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE meta SET value=? WHERE key='next_id'`, encodeInt64(snap.NextID)); err != nil {
		return fmt.Errorf("reset next_id: %w", err)
	}

	for id, v := range snap.Vectors {
		blob, err := encoding.EncodeVector(v)
		if err != nil {
			return fmt.Errorf("encode imported vector: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO vectors (id, blob) VALUES (?, ?)`, id, blob); err != nil {
			return fmt.Errorf("insert imported vector: %w", err)
		}
	}

	for _, e := range snap.Entries {
		key, err := encoding.EncodeSignature(e.Packed, e.Bits, e.Sym)
		if err != nil {
			return fmt.Errorf("encode imported signature: %w", err)
		}
		for _, id := range e.IDs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO hashes (table_id, hash, id) VALUES (?, ?, ?)`, e.Table, key, id); err != nil {
				return fmt.Errorf("insert imported hash entry: %w", err)
			}
		}
	}

	return tx.Commit()
}

func encodeSig(s sig.Signature) ([]byte, error) {
	return encoding.EncodeSignature(s.Packed, s.Bits, s.Sym)
}
