package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/llm"
	"github.com/brunobiangulo/historymind/vntext"
)

// MemoryIndex is an in-process vector and lexical index over a snapshot,
// used when no SQLite store is configured. Vector search is exhaustive;
// lexical search ranks by folded word overlap with title, story and
// keywords.
type MemoryIndex struct {
	ids     []string
	vectors [][]float32
	terms   []map[string]bool
}

var (
	_ VectorIndex  = (*MemoryIndex)(nil)
	_ LexicalIndex = (*MemoryIndex)(nil)
)

// IndexText is the text a document is embedded and matched by.
func IndexText(d *kb.Document) string {
	return d.Title + ". " + d.Text()
}

// NewMemoryIndex builds the index. enc may be nil, in which case only
// lexical search is available. Documents are encoded in batches.
func NewMemoryIndex(ctx context.Context, snap *kb.Snapshot, enc llm.Encoder, batch int) (*MemoryIndex, error) {
	if batch <= 0 {
		batch = 32
	}
	m := &MemoryIndex{}
	texts := make([]string, snap.Len())
	for pos := 0; pos < snap.Len(); pos++ {
		d := snap.Doc(pos)
		m.ids = append(m.ids, d.ID)
		texts[pos] = IndexText(d)
		terms := make(map[string]bool)
		for _, w := range vntext.Words(vntext.Fold(texts[pos] + " " + joinKeywords(d))) {
			terms[w] = true
		}
		m.terms = append(m.terms, terms)
	}
	if enc == nil {
		return m, nil
	}
	m.vectors = make([][]float32, len(texts))
	for start := 0; start < len(texts); start += batch {
		end := min(start+batch, len(texts))
		vecs, err := enc.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding corpus: %w", err)
		}
		copy(m.vectors[start:end], vecs)
	}
	return m, nil
}

func joinKeywords(d *kb.Document) string { return strings.Join(d.Keywords, " ") }

// VectorSearch returns the k most cosine-similar documents.
func (m *MemoryIndex) VectorSearch(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	if m.vectors == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(m.ids))
	for i, v := range m.vectors {
		hits = append(hits, Hit{ID: m.ids[i], Score: cosine(embedding, v)})
	}
	return topK(hits, k), nil
}

// FTSSearch ranks documents by the number of significant query words they
// contain, ignoring diacritics.
func (m *MemoryIndex) FTSSearch(ctx context.Context, query string, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var words []string
	for _, w := range vntext.SignificantWords(query) {
		words = append(words, vntext.StripDiacritics(w))
	}
	if len(words) == 0 {
		return nil, nil
	}
	var hits []Hit
	for i, terms := range m.terms {
		n := 0
		for _, w := range words {
			if terms[w] {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, Hit{ID: m.ids[i], Score: float64(n) / float64(len(words))})
		}
	}
	return topK(hits, k), nil
}

func topK(hits []Hit, k int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
