//go:build cgo

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/historymind/kb/kbtest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 4) // dim=4 for test vectors
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	for _, rec := range kbtest.Records() {
		id := rec["id"].(string)
		if _, _, err := s.UpsertDocument(ctx, id, "fixture.json", rec); err != nil {
			t.Fatalf("upserting %s: %v", id, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.EmbeddingDim() != 4 {
		t.Fatalf("expected embedding dim 4, got %d", s.EmbeddingDim())
	}
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
	v, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if v != len(migrations) {
		t.Fatalf("expected schema version %d, got %d", len(migrations), v)
	}
}

func TestNewRejectsZeroDim(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "x.db"), 0); err == nil {
		t.Fatal("expected error for zero embedding dimension")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	s, err := New(filepath.Join(dir, "test.db"), 4)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

func TestReopenKeepsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := New(path, 4)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = New(path, 4)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer s.Close()
	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != len(migrations) {
		t.Fatalf("expected %d migration rows, got %d", len(migrations), n)
	}
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

func TestUpsertAndLoadDocuments(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	got, err := s.LoadDocuments(context.Background())
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	want := kbtest.Documents()
	if len(got) != len(want) {
		t.Fatalf("expected %d documents, got %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if g.ID != w.ID || g.Year != w.Year || g.Title != w.Title || g.Text() != w.Text() || g.Tone != w.Tone {
			t.Errorf("document %d: got %+v, want %+v", i, g, w)
		}
		if len(g.AllPersons()) != len(w.AllPersons()) {
			t.Errorf("%s persons: got %v, want %v", w.ID, g.AllPersons(), w.AllPersons())
		}
	}
}

func TestUpsertDocumentChangeDetection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := map[string]any{"id": "a", "year": 1010, "title": "Chiếu dời đô", "story": "Dời đô về Thăng Long."}

	id1, changed, err := s.UpsertDocument(ctx, "a", "x.json", rec)
	if err != nil || !changed {
		t.Fatalf("first upsert: changed=%v err=%v", changed, err)
	}

	id2, changed, err := s.UpsertDocument(ctx, "a", "x.json", rec)
	if err != nil {
		t.Fatal(err)
	}
	if changed || id2 != id1 {
		t.Fatalf("identical upsert: changed=%v id=%d, want unchanged id=%d", changed, id2, id1)
	}

	rec["story"] = "Lý Công Uẩn dời đô về Thăng Long."
	id3, changed, err := s.UpsertDocument(ctx, "a", "y.json", rec)
	if err != nil {
		t.Fatal(err)
	}
	if !changed || id3 != id1 {
		t.Fatalf("modified upsert: changed=%v id=%d, want changed id=%d", changed, id3, id1)
	}

	doc, err := s.GetDocument(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Source != "y.json" || doc.Fields["story"] != "Lý Công Uẩn dời đô về Thăng Long." {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocument(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDocument(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	if err := s.InsertEmbedding(ctx, "dbp-1954", []float32{1, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteDocument(ctx, "dbp-1954"); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	hits, err := s.FTSSearch(ctx, "Điện Biên Phủ", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.ID == "dbp-1954" {
			t.Fatal("deleted record still searchable")
		}
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Embeddings != 0 || st.Documents != len(kbtest.Records())-1 {
		t.Fatalf("unexpected stats after delete: %+v", st)
	}
	if err := s.DeleteDocument(ctx, "dbp-1954"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

func TestFTSSearch(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		query string
		want  string
	}{
		{"Điện Biên Phủ", "dbp-1954"},
		{"nhu nguyet", "nhunguyet-1077"},
		{"Chiếu dời đô", "doido-1010"},
		{"Cach mang thang Tam", "cmtt-1945"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			hits, err := s.FTSSearch(ctx, tt.query, 5)
			if err != nil {
				t.Fatalf("searching: %v", err)
			}
			if len(hits) == 0 || hits[0].ID != tt.want {
				t.Fatalf("expected %s first, got %+v", tt.want, hits)
			}
			if hits[0].Score <= 0 {
				t.Fatalf("expected positive score, got %f", hits[0].Score)
			}
		})
	}
}

func TestFTSSearchNoMatch(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	for _, q := range []string{"xyzabc", "là gì", "???"} {
		hits, err := s.FTSSearch(context.Background(), q, 5)
		if err != nil {
			t.Fatalf("%q: %v", q, err)
		}
		if len(hits) != 0 {
			t.Fatalf("%q: expected no hits, got %+v", q, hits)
		}
	}
}

func TestInsertEmbeddingAndVectorSearch(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	vecs := map[string][]float32{
		"bachdang-938": {1, 0, 0, 0},
		"doido-1010":   {0, 1, 0, 0},
		"cmtt-1945":    {0.7, 0.7, 0, 0},
	}
	for id, v := range vecs {
		if err := s.InsertEmbedding(ctx, id, v); err != nil {
			t.Fatalf("inserting %s: %v", id, err)
		}
	}

	hits, err := s.VectorSearch(ctx, []float32{1, 0.1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("vector search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "bachdang-938" || hits[1].ID != "cmtt-1945" {
		t.Fatalf("unexpected order: %+v", hits)
	}
	if hits[0].Score <= hits[1].Score || hits[0].Score > 1.0001 {
		t.Fatalf("unexpected scores: %+v", hits)
	}

	ok, err := s.HasEmbedding(ctx, "doido-1010")
	if err != nil || !ok {
		t.Fatalf("expected embedding for doido-1010: %v %v", ok, err)
	}
	ok, err = s.HasEmbedding(ctx, "dbp-1954")
	if err != nil || ok {
		t.Fatalf("expected no embedding for dbp-1954: %v %v", ok, err)
	}
}

func TestInsertEmbeddingReplacesVector(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	if err := s.InsertEmbedding(ctx, "doido-1010", []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.InsertEmbedding(ctx, "doido-1010", []float32{0, 0, 0, 1}); err != nil {
		t.Fatalf("re-embedding: %v", err)
	}

	hits, err := s.VectorSearch(ctx, []float32{0, 0, 0, 1}, 5)
	if err != nil {
		t.Fatalf("vector search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "doido-1010" {
		t.Fatalf("expected a single replaced vector, got %+v", hits)
	}
	if hits[0].Score < 0.999 {
		t.Fatalf("search still matches the old vector: %+v", hits)
	}
}

func TestInsertEmbeddingErrors(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	if err := s.InsertEmbedding(ctx, "doido-1010", []float32{1, 0}); err == nil {
		t.Fatal("expected dimension error")
	}
	if err := s.InsertEmbedding(ctx, "missing", []float32{1, 0, 0, 0}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Query log / stats
// ---------------------------------------------------------------------------

func TestLogQueryAndStats(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	entries := []QueryLog{
		{RequestID: "r1", Query: "xin chào", Outcome: "canned", Intent: "greeting"},
		{RequestID: "r2", Query: "Trận Bạch Đằng năm 1288", Outcome: "answered", Intent: "event_query",
			Severity: "OK", Confidence: 0.8, Strategy: "year", Sources: []string{"bachdang-1288"}, LatencyMS: 12},
	}
	for _, q := range entries {
		if err := s.LogQuery(ctx, q); err != nil {
			t.Fatalf("logging: %v", err)
		}
	}

	recent, err := s.RecentQueries(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].RequestID != "r2" {
		t.Fatalf("unexpected recent queries: %+v", recent)
	}
	if len(recent[0].Sources) != 1 || recent[0].Sources[0] != "bachdang-1288" || recent[0].LatencyMS != 12 {
		t.Fatalf("unexpected entry: %+v", recent[0])
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Documents != len(kbtest.Records()) || st.Queries != 2 || st.Embeddings != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if st.MinYear != 938 || st.MaxYear != 1975 {
		t.Fatalf("unexpected year span: %d–%d", st.MinYear, st.MaxYear)
	}
}
