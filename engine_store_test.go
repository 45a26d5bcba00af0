//go:build cgo

package historymind

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/historymind/kb/kbtest"
	"github.com/brunobiangulo/historymind/llm"
	"github.com/brunobiangulo/historymind/llm/llmtest"
	"github.com/brunobiangulo/historymind/parser"
	"github.com/brunobiangulo/historymind/store"
)

func writeCorpus(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(kbtest.Records())
	if err != nil {
		t.Fatalf("encoding corpus: %v", err)
	}
	path := filepath.Join(t.TempDir(), "corpus.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing corpus: %v", err)
	}
	return path
}

func storeConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "historymind.db")
	cfg.Embedding = llm.Config{}
	cfg.EmbeddingDim = llmtest.Dims
	cfg.LogQueries = true
	return cfg
}

func TestNewImportsCorpusFiles(t *testing.T) {
	cfg := storeConfig(t)
	cfg.CorpusFiles = []string{writeCorpus(t)}

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	if got, want := e.Snapshot().Len(), len(kbtest.Records()); got != want {
		t.Fatalf("snapshot holds %d documents, want %d", got, want)
	}

	a := e.Query(context.Background(), "Năm 1945 có sự kiện gì?")
	if a.Outcome != OutcomeAnswered || len(a.Sources) != 1 || a.Sources[0].ID != "cmtt-1945" {
		t.Fatalf("unexpected answer: outcome=%s sources=%+v", a.Outcome, a.Sources)
	}
	e.Query(context.Background(), "hello", WithoutLog())

	st, err := e.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Store == nil || st.Store.Documents != len(kbtest.Records()) {
		t.Fatalf("unexpected store stats %+v", st.Store)
	}
	if st.Store.Queries != 1 {
		t.Errorf("expected 1 logged query, got %d", st.Store.Queries)
	}
	if st.Store.Embeddings != 0 {
		t.Errorf("expected no embeddings without an encoder, got %d", st.Store.Embeddings)
	}
}

func TestNewLexicalFallbackThroughFTS(t *testing.T) {
	cfg := storeConfig(t)
	cfg.CorpusFiles = []string{writeCorpus(t)}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	a := e.Query(context.Background(), "Chiếu dời đô")
	found := false
	for _, s := range a.Sources {
		if s.ID == "doido-1010" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected doido-1010 among sources, got %+v (outcome %s)", a.Sources, a.Outcome)
	}
}

func TestNewEmptyStore(t *testing.T) {
	_, err := New(storeConfig(t))
	if !errors.Is(err, ErrNoCorpus) {
		t.Fatalf("expected ErrNoCorpus, got %v", err)
	}
}

func TestImportAndEmbedCorpus(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(filepath.Join(t.TempDir(), "c.db"), llmtest.Dims)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer s.Close()

	path := writeCorpus(t)
	res, err := Import(ctx, s, parser.NewRegistry(), path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Format != "json" || res.Records != len(kbtest.Records()) || len(res.Changed) != res.Records {
		t.Fatalf("unexpected import result %+v", res)
	}

	again, err := Import(ctx, s, nil, path)
	if err != nil {
		t.Fatalf("re-Import: %v", err)
	}
	if len(again.Changed) != 0 {
		t.Errorf("unchanged file reported %d changed records", len(again.Changed))
	}

	enc := &llmtest.Encoder{}
	n, err := EmbedCorpus(ctx, s, enc, 4)
	if err != nil {
		t.Fatalf("EmbedCorpus: %v", err)
	}
	if n != res.Records {
		t.Errorf("embedded %d records, want %d", n, res.Records)
	}

	n, err = EmbedCorpus(ctx, s, enc, 4, "doido-1010")
	if err != nil {
		t.Fatalf("EmbedCorpus refresh: %v", err)
	}
	if n != 1 {
		t.Errorf("refresh embedded %d records, want 1", n)
	}
}

func TestImportUnsupportedFormat(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "c.db"), llmtest.Dims)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer s.Close()
	if _, err := Import(context.Background(), s, nil, "corpus.pdf"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
