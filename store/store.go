package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/go-crypt/x/blake2b"
	_ "github.com/mattn/go-sqlite3"

	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/retrieval"
)

func init() {
	sqlite_vec.Auto()
}

// ErrNotFound is returned when a record id is unknown.
var ErrNotFound = errors.New("store: not found")

// Document represents a row in the documents table.
type Document struct {
	ID          int64          `json:"id"`
	DocID       string         `json:"doc_id"`
	Source      string         `json:"source"`
	ContentHash string         `json:"content_hash"`
	Fields      map[string]any `json:"fields"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// QueryLog represents a row in the query_log table.
type QueryLog struct {
	RequestID  string   `json:"request_id"`
	Query      string   `json:"query"`
	Rewritten  string   `json:"rewritten"`
	Answer     string   `json:"answer"`
	Intent     string   `json:"intent"`
	Outcome    string   `json:"outcome"`
	Severity   string   `json:"severity"`
	Confidence float64  `json:"confidence"`
	Strategy   string   `json:"strategy"`
	Sources    []string `json:"sources"`
	LatencyMS  int64    `json:"latency_ms"`
}

// Store wraps the SQLite database holding the corpus, its embeddings and
// the query log.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including sqlite-vec and FTS5 virtual tables.
func New(dbPath string, embeddingDim int) (*Store, error) {
	if embeddingDim <= 0 {
		return nil, fmt.Errorf("store: embedding dimension must be positive, got %d", embeddingDim)
	}

	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Document operations ---

// UpsertDocument inserts or updates the record docID. It reports whether
// the stored content changed, so callers can skip re-embedding.
func (s *Store) UpsertDocument(ctx context.Context, docID, source string, fields map[string]any) (int64, bool, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return 0, false, fmt.Errorf("encoding record %s: %w", docID, err)
	}
	hash := contentHash(raw)

	var id int64
	var oldHash string
	err = s.db.QueryRowContext(ctx, "SELECT id, content_hash FROM documents WHERE doc_id = ?", docID).Scan(&id, &oldHash)
	switch {
	case err == nil && oldHash == hash:
		return id, false, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return 0, false, err
	}

	d := kb.NewDocument(fields, docID)
	var from, to sql.NullInt64
	if d.Year.Known() {
		from = sql.NullInt64{Int64: int64(d.Year.From), Valid: true}
		to = sql.NullInt64{Int64: int64(d.Year.To), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (doc_id, source, content_hash, fields, title, body, year_from, year_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			source = excluded.source,
			content_hash = excluded.content_hash,
			fields = excluded.fields,
			title = excluded.title,
			body = excluded.body,
			year_from = excluded.year_from,
			year_to = excluded.year_to,
			updated_at = CURRENT_TIMESTAMP
	`, docID, source, hash, string(raw), d.Title, searchBody(&d), from, to)
	if err != nil {
		return 0, false, err
	}

	if err := s.db.QueryRowContext(ctx, "SELECT id FROM documents WHERE doc_id = ?", docID).Scan(&id); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// GetDocument retrieves a record by its id.
func (s *Store) GetDocument(ctx context.Context, docID string) (*Document, error) {
	doc := &Document{}
	var fields string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, doc_id, source, content_hash, fields, created_at, updated_at
		FROM documents WHERE doc_id = ?
	`, docID).Scan(&doc.ID, &doc.DocID, &doc.Source, &doc.ContentHash, &fields, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", docID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &doc.Fields); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", docID, err)
	}
	return doc, nil
}

// DeleteDocument removes a record and its embedding.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE doc_id = ?", docID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("record %s: %w", docID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_documents WHERE document_id = ?", id); err != nil {
			return fmt.Errorf("deleting embedding: %w", err)
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
		return err
	})
}

// LoadDocuments returns every record in insertion order, normalised through
// kb.NewDocument. A record whose fields no longer decode is skipped.
func (s *Store) LoadDocuments(ctx context.Context) ([]kb.Document, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT doc_id, fields FROM documents ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []kb.Document
	for rows.Next() {
		var docID, fields string
		if err := rows.Scan(&docID, &fields); err != nil {
			return nil, err
		}
		var raw map[string]any
		if err := json.Unmarshal([]byte(fields), &raw); err != nil {
			continue
		}
		docs = append(docs, kb.NewDocument(raw, docID))
	}
	return docs, rows.Err()
}

// --- Embedding operations ---

// InsertEmbedding stores the vector embedding of a record.
func (s *Store) InsertEmbedding(ctx context.Context, docID string, embedding []float32) error {
	if len(embedding) != s.embeddingDim {
		return fmt.Errorf("embedding for %s has %d dimensions, want %d", docID, len(embedding), s.embeddingDim)
	}
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM documents WHERE doc_id = ?", docID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("record %s: %w", docID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	// vec0 tables ignore OR REPLACE, so an existing vector is removed first.
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_documents WHERE document_id = ?", id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO vec_documents (document_id, embedding) VALUES (?, ?)",
			id, serializeFloat32(embedding))
		return err
	})
}

// HasEmbedding checks if a record has a vector embedding.
func (s *Store) HasEmbedding(ctx context.Context, docID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vec_documents v
		JOIN documents d ON d.id = v.document_id
		WHERE d.doc_id = ?
	`, docID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// VectorSearch performs a KNN search returning the top-k nearest records.
func (s *Store) VectorSearch(ctx context.Context, queryEmbedding []float32, k int) ([]retrieval.Hit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.doc_id, v.distance
		FROM vec_documents v
		JOIN documents d ON d.id = v.document_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []retrieval.Hit
	for rows.Next() {
		var h retrieval.Hit
		var distance float64
		if err := rows.Scan(&h.ID, &distance); err != nil {
			return nil, err
		}
		// Cosine distance to similarity
		h.Score = 1.0 - distance
		results = append(results, h)
	}
	return results, rows.Err()
}

// FTSSearch performs a full-text search using FTS5 BM25 ranking. The query
// is sanitised first; a query without searchable words returns nothing.
func (s *Store) FTSSearch(ctx context.Context, query string, limit int) ([]retrieval.Hit, error) {
	match := sanitizeFTSQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.doc_id, f.rank
		FROM documents_fts f
		JOIN documents d ON d.id = f.rowid
		WHERE documents_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []retrieval.Hit
	for rows.Next() {
		var h retrieval.Hit
		var rank float64
		if err := rows.Scan(&h.ID, &rank); err != nil {
			return nil, err
		}
		// FTS5 rank is negative (lower = better), convert to positive score
		h.Score = -rank
		results = append(results, h)
	}
	return results, rows.Err()
}

// --- Query log ---

// LogQuery writes an entry to the query audit log.
func (s *Store) LogQuery(ctx context.Context, q QueryLog) error {
	sourcesJSON, _ := json.Marshal(q.Sources)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log (request_id, query, rewritten, answer, intent, outcome, severity, confidence, strategy, sources, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.RequestID, q.Query, q.Rewritten, q.Answer, q.Intent, q.Outcome, q.Severity, q.Confidence,
		q.Strategy, string(sourcesJSON), q.LatencyMS)
	return err
}

// RecentQueries returns the latest n query log entries, newest first.
func (s *Store) RecentQueries(ctx context.Context, n int) ([]QueryLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(request_id, ''), query, COALESCE(rewritten, ''), COALESCE(answer, ''),
			COALESCE(intent, ''), COALESCE(outcome, ''), COALESCE(severity, ''),
			COALESCE(confidence, 0), COALESCE(strategy, ''), COALESCE(sources, '[]'), latency_ms
		FROM query_log ORDER BY id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QueryLog
	for rows.Next() {
		var q QueryLog
		var sources string
		if err := rows.Scan(&q.RequestID, &q.Query, &q.Rewritten, &q.Answer, &q.Intent, &q.Outcome,
			&q.Severity, &q.Confidence, &q.Strategy, &sources, &q.LatencyMS); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(sources), &q.Sources)
		out = append(out, q)
	}
	return out, rows.Err()
}

// DBStats holds counts of key database objects.
type DBStats struct {
	Documents  int `json:"documents"`
	Embeddings int `json:"embeddings"`
	Queries    int `json:"queries"`
	MinYear    int `json:"min_year"`
	MaxYear    int `json:"max_year"`
}

// Stats returns record, embedding and query counts and the dated span.
func (s *Store) Stats(ctx context.Context) (*DBStats, error) {
	stats := &DBStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", &stats.Documents},
		{"SELECT COUNT(*) FROM vec_documents", &stats.Embeddings},
		{"SELECT COUNT(*) FROM query_log", &stats.Queries},
		{"SELECT COALESCE(MIN(year_from), 0) FROM documents", &stats.MinYear},
		{"SELECT COALESCE(MAX(year_to), 0) FROM documents", &stats.MaxYear},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

// searchBody is the lexical text of a record: its narrative plus the
// entity and keyword fields.
func searchBody(d *kb.Document) string {
	parts := []string{d.Text()}
	if d.Event != "" && d.Event != d.Text() {
		parts = append(parts, d.Event)
	}
	if d.Dynasty != "" {
		parts = append(parts, d.Dynasty)
	}
	parts = append(parts, d.AllPersons()...)
	parts = append(parts, d.Places...)
	for _, k := range d.Keywords {
		parts = append(parts, strings.ReplaceAll(k, "_", " "))
	}
	return strings.Join(parts, " ")
}

func contentHash(b []byte) string {
	h, _ := blake2b.New(16, nil)
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
