// Package vectorstore provides persistent implementations of the
// rag.VectorStore contract. The default backend is a local SQLite database
// (one file per collection); a Qdrant backend is available for remote
// deployments. Both enforce the same invariants: batch-atomic upserts with a
// fixed per-collection embedding dimensionality, stable iteration order, and
// all-or-nothing metadata updates.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/ragchat-go/internal/rag"
)

// SQLiteStore is a rag.VectorStore backed by a local SQLite database.
// Similarity search is a brute-force cosine scan over all stored vectors,
// which is the right trade-off at the corpus sizes this tool targets
// (thousands of pages, not millions).
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the vector collection database.
// It resolves to ~/.ragchat/<collection>.db, creating the directory if needed.
func DefaultDBPath(collection string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("vectorstore: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("vectorstore: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, collection+".db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests. Journal mode
// is WAL with synchronous=FULL so a successful mutation survives a crash
// immediately after the call returns.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under
	// concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist. The records table
// keeps a monotonically increasing seq column so iteration order is stable
// across calls and ties in Query resolve by insertion order. The collection
// table holds the embedding dimensionality fixed by the first insert.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS collection (
    key   TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
    id         TEXT    PRIMARY KEY,
    seq        INTEGER NOT NULL,
    text       TEXT    NOT NULL,
    source     TEXT    NOT NULL,
    page       INTEGER NOT NULL,
    cluster_id INTEGER NOT NULL DEFAULT -1,
    embedding  BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_seq ON records (seq);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("vectorstore: migrate: %w", err)
	}
	return nil
}

// dimensionality returns the collection's established embedding size, or 0 if
// no record has ever been inserted.
func (s *SQLiteStore) dimensionality(ctx context.Context, q queryer) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, `SELECT value FROM collection WHERE key = 'dimensionality'`).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("vectorstore: read dimensionality: %w", err)
	}
	return dim, nil
}

// queryer is the subset of *sql.DB / *sql.Tx used by read helpers.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Insert upserts a batch of records inside a single transaction. The first
// ever insert fixes the collection's dimensionality; every later batch must
// match it. Any failure rolls the whole batch back.
func (s *SQLiteStore) Insert(ctx context.Context, records []rag.Record) error {
	if len(records) == 0 {
		return fmt.Errorf("vectorstore: insert: %w", rag.ErrEmptyBatch)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: begin insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	dim, err := s.dimensionality(ctx, tx)
	if err != nil {
		return err
	}
	if dim == 0 {
		dim = len(records[0].Embedding)
		if dim == 0 {
			return fmt.Errorf("vectorstore: insert %q: zero-length embedding: %w", records[0].ID, rag.ErrDimensionMismatch)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO collection (key, value) VALUES ('dimensionality', ?)`, dim); err != nil {
			return fmt.Errorf("vectorstore: set dimensionality: %w", err)
		}
	}

	const upsert = `
INSERT INTO records (id, seq, text, source, page, cluster_id, embedding)
VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records), ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    text       = excluded.text,
    source     = excluded.source,
    page       = excluded.page,
    cluster_id = excluded.cluster_id,
    embedding  = excluded.embedding`

	for _, rec := range records {
		if len(rec.Embedding) != dim {
			return fmt.Errorf("vectorstore: insert %q: got %d dimensions, collection has %d: %w",
				rec.ID, len(rec.Embedding), dim, rag.ErrDimensionMismatch)
		}
		if _, err := tx.ExecContext(ctx, upsert,
			rec.ID, rec.Text, rec.Metadata.Source, rec.Metadata.Page,
			rec.Metadata.ClusterID, encodeEmbedding(rec.Embedding),
		); err != nil {
			return fmt.Errorf("vectorstore: insert %q: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vectorstore: commit insert: %w", err)
	}
	return nil
}

// GetAll returns every stored record ordered by insertion sequence, so two
// consecutive calls with no intervening write see the same relative order.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]rag.Record, error) {
	const q = `SELECT id, text, source, page, cluster_id, embedding FROM records ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: get all: %w", err)
	}
	defer rows.Close()

	var out []rag.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorstore: get all rows: %w", err)
	}
	return out, nil
}

// Query scans every stored vector, computes cosine distance to the query
// embedding, and returns up to topN hits by ascending distance with ties
// broken by insertion order.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, topN int) ([]rag.ScoredRecord, error) {
	if topN <= 0 {
		topN = 1
	}

	const q = `SELECT id, text, source, page, cluster_id, embedding FROM records ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query: %w", err)
	}
	defer rows.Close()

	var hits []rag.ScoredRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		dist := cosineDistance(embedding, rec.Embedding)
		hits = append(hits, rag.ScoredRecord{
			Record:    rec,
			Distance:  dist,
			Relevance: 1 - dist,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorstore: query rows: %w", err)
	}

	if len(hits) == 0 {
		return nil, fmt.Errorf("vectorstore: query: %w", rag.ErrEmptyCollection)
	}

	// SliceStable keeps the seq-ordered input order for equal distances.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}

// UpdateMetadata replaces the metadata of every identified record inside one
// transaction. Each id is verified before any write, so a missing id leaves
// the collection untouched.
func (s *SQLiteStore) UpdateMetadata(ctx context.Context, updates map[string]rag.Metadata) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: begin metadata update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for id := range updates {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM records WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("vectorstore: update metadata %q: %w", id, rag.ErrIDNotFound)
		}
		if err != nil {
			return fmt.Errorf("vectorstore: update metadata %q: %w", id, err)
		}
	}

	const upd = `UPDATE records SET source = ?, page = ?, cluster_id = ? WHERE id = ?`
	for id, md := range updates {
		if _, err := tx.ExecContext(ctx, upd, md.Source, md.Page, md.ClusterID, id); err != nil {
			return fmt.Errorf("vectorstore: update metadata %q: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vectorstore: commit metadata update: %w", err)
	}
	return nil
}

// Count returns the number of records currently stored.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("vectorstore: count: %w", err)
	}
	return n, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("vectorstore: close: %w", err)
	}
	return nil
}

// scanRecord reads one row of the records projection used by GetAll/Query.
func scanRecord(rows *sql.Rows) (rag.Record, error) {
	var rec rag.Record
	var blob []byte
	if err := rows.Scan(&rec.ID, &rec.Text, &rec.Metadata.Source, &rec.Metadata.Page,
		&rec.Metadata.ClusterID, &blob); err != nil {
		return rag.Record{}, fmt.Errorf("vectorstore: scan record: %w", err)
	}
	emb, err := decodeEmbedding(blob)
	if err != nil {
		return rag.Record{}, fmt.Errorf("vectorstore: record %q: %w", rec.ID, err)
	}
	rec.Embedding = emb
	return rec, nil
}

// encodeEmbedding packs a float32 vector into a little-endian byte blob.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding unpacks a little-endian byte blob into a float32 vector.
func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("malformed embedding blob of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

// cosineDistance returns 1 - cosine similarity between a and b. A zero-norm
// vector yields the maximum distance of 1 so degenerate inputs sort last
// instead of dividing by zero.
func cosineDistance(a, b []float32) float32 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}
