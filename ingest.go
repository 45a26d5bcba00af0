package historymind

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/brunobiangulo/historymind/llm"
	"github.com/brunobiangulo/historymind/parser"
	"github.com/brunobiangulo/historymind/retrieval"
	"github.com/brunobiangulo/historymind/store"
)

// ImportResult reports the outcome of importing one corpus file.
type ImportResult struct {
	Path    string `json:"path"`
	Format  string `json:"format"`
	Records int    `json:"records"`
	Skipped int    `json:"skipped"`

	// Changed lists the ids of new or modified records. Their embeddings
	// need refreshing.
	Changed []string `json:"changed,omitempty"`
}

// OpenStore opens the corpus database the configuration points at.
func OpenStore(cfg Config) (*store.Store, error) {
	s, err := store.New(cfg.resolveDBPath(), cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

// Import parses path with the parser registered for its extension and
// upserts every record into s. Unchanged records are left alone.
func Import(ctx context.Context, s *store.Store, reg *parser.Registry, path string) (*ImportResult, error) {
	if reg == nil {
		reg = parser.NewRegistry()
	}
	start := time.Now()
	parsed, err := reg.ParseFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	res := &ImportResult{Path: path, Format: parsed.Format, Records: len(parsed.Records), Skipped: parsed.Skipped}
	for _, r := range parsed.Records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, changed, err := s.UpsertDocument(ctx, r.ID, r.Source, r.Fields)
		if err != nil {
			return res, fmt.Errorf("storing record %s: %w", r.ID, err)
		}
		if changed {
			res.Changed = append(res.Changed, r.ID)
		}
	}

	slog.Info("import: file done",
		"file", filepath.Base(path), "format", res.Format, "records", res.Records,
		"changed", len(res.Changed), "skipped", res.Skipped,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// EmbedCorpus stores an embedding for every record of s that has none,
// and re-embeds the records named in refresh. It returns the number of
// records embedded.
func EmbedCorpus(ctx context.Context, s *store.Store, enc llm.Encoder, batch int, refresh ...string) (int, error) {
	if batch <= 0 {
		batch = 32
	}
	docs, err := s.LoadDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading documents: %w", err)
	}

	stale := make(map[string]bool, len(refresh))
	for _, id := range refresh {
		stale[id] = true
	}

	var ids, texts []string
	for i := range docs {
		d := &docs[i]
		if !stale[d.ID] {
			has, err := s.HasEmbedding(ctx, d.ID)
			if err != nil {
				return 0, fmt.Errorf("checking embedding %s: %w", d.ID, err)
			}
			if has {
				continue
			}
		}
		ids = append(ids, d.ID)
		texts = append(texts, retrieval.IndexText(d))
	}
	if len(ids) == 0 {
		return 0, nil
	}

	slog.Info("import: generating embeddings", "records", len(ids), "batch", batch)
	start := time.Now()
	done := 0
	for from := 0; from < len(ids); from += batch {
		to := min(from+batch, len(ids))
		vecs, err := enc.Embed(ctx, texts[from:to])
		if err != nil {
			return done, fmt.Errorf("embedding records: %w", err)
		}
		if len(vecs) != to-from {
			return done, fmt.Errorf("embedding records: got %d vectors for %d texts", len(vecs), to-from)
		}
		for j, v := range vecs {
			if err := s.InsertEmbedding(ctx, ids[from+j], v); err != nil {
				return done, fmt.Errorf("storing embedding %s: %w", ids[from+j], err)
			}
			done++
		}
	}
	slog.Info("import: embeddings complete", "records", done,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return done, nil
}
