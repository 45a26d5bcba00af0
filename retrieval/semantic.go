package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// semantic runs vector and lexical search concurrently, fuses them with
// RRF and maps the hits back onto the snapshot. The year constraint and
// the dynasty filter apply to the fused list.
func (o *Orchestrator) semantic(ctx context.Context, p *pass, query, name string) []Candidate {
	p.tried[query] = true
	if query == "" || ctx.Err() != nil {
		return nil
	}

	trace := SearchTrace{Query: query}
	start := time.Now()

	type result struct {
		hits []Hit
		err  error
	}
	vecCh := make(chan result, 1)
	ftsCh := make(chan result, 1)

	go func() {
		r, err := o.vectorSearch(ctx, query)
		vecCh <- result{r, err}
	}()
	go func() {
		r, err := o.lexicalSearch(ctx, query)
		ftsCh <- result{r, err}
	}()

	vecRes := <-vecCh
	ftsRes := <-ftsCh
	if vecRes.err != nil {
		slog.Warn("retrieval: vector search failed", "query", query, "error", vecRes.err)
		trace.VecError = vecRes.err.Error()
	}
	if ftsRes.err != nil {
		slog.Warn("retrieval: fts search failed", "query", query, "error", ftsRes.err)
		trace.FTSError = ftsRes.err.Error()
	}
	trace.VecResults = len(vecRes.hits)
	trace.FTSResults = len(ftsRes.hits)

	fused, info := fuseRRF(vecRes.hits, ftsRes.hits, o.cfg.WeightVector, o.cfg.WeightFTS, 0)

	cands := make([]Candidate, 0, len(fused))
	for _, h := range fused {
		pos, ok := o.snap.Position(h.ID)
		if !ok {
			trace.Dropped++
			slog.Warn("retrieval: index returned unknown document", "id", h.ID)
			continue
		}
		cands = append(cands, Candidate{
			Doc:      o.snap.Doc(pos),
			Pos:      pos,
			Score:    h.Score,
			Strategy: name,
			Methods:  info[h.ID].Methods,
		})
	}
	cands = filterYears(p.c, cands)
	cands = o.filterDynasty(p.c, cands)

	trace.FusedResults = len(cands)
	trace.PerResult = info
	trace.ElapsedMs = time.Since(start).Milliseconds()
	p.out.Searches = append(p.out.Searches, trace)

	slog.Debug("retrieval: semantic search",
		"query", query, "vec", trace.VecResults, "fts", trace.FTSResults,
		"kept", len(cands), "elapsed", time.Since(start).Round(time.Millisecond))
	return cands
}

// vectorSearch encodes the query and keeps hits above the similarity
// threshold.
func (o *Orchestrator) vectorSearch(ctx context.Context, query string) ([]Hit, error) {
	if o.enc == nil || o.vec == nil {
		return nil, nil
	}
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	embeddings, err := o.enc.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	hits, err := o.vec.VectorSearch(ctx, embeddings[0], o.cfg.TopK)
	if err != nil {
		return nil, err
	}
	out := hits[:0:0]
	for _, h := range hits {
		if h.Score >= o.cfg.SimilarityThreshold {
			out = append(out, h)
		}
	}
	return out, nil
}

func (o *Orchestrator) lexicalSearch(ctx context.Context, query string) ([]Hit, error) {
	if o.lex == nil {
		return nil, nil
	}
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	return o.lex.FTSSearch(ctx, query, o.cfg.TopK)
}

func (o *Orchestrator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.cfg.Timeout)
}
