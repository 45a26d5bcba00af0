// Package rerank orders retrieval candidates by cross-encoder relevance and
// removes candidates the NLI oracle judges contradictory or unrelated.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/brunobiangulo/historymind/constraint"
	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/llm"
	"github.com/brunobiangulo/historymind/retrieval"
)

// Config holds rerank configuration.
type Config struct {
	// PoolSize is the number of concurrent oracle calls. Zero means
	// runtime.NumCPU().
	PoolSize      int           `json:"pool_size" yaml:"pool_size" mapstructure:"pool_size"`
	ScorerTimeout time.Duration `json:"scorer_timeout" yaml:"scorer_timeout" mapstructure:"scorer_timeout"`

	// A candidate survives NLI when entailment >= EntailStrong, or when it
	// beats contradiction and reaches EntailWeak.
	EntailStrong float64 `json:"entail_strong" yaml:"entail_strong" mapstructure:"entail_strong"`
	EntailWeak   float64 `json:"entail_weak" yaml:"entail_weak" mapstructure:"entail_weak"`

	// KeepTop is the minimum kept by the NLI fallback and the relative floor.
	KeepTop int `json:"keep_top" yaml:"keep_top" mapstructure:"keep_top"`

	// RelativeFloor drops candidates scoring below best*RelativeFloor.
	RelativeFloor float64 `json:"relative_floor" yaml:"relative_floor" mapstructure:"relative_floor"`

	// PremiseRunes bounds the story excerpt sent as NLI premise.
	PremiseRunes int `json:"premise_runes" yaml:"premise_runes" mapstructure:"premise_runes"`

	Weights KeywordWeights `json:"keyword_weights" yaml:"keyword_weights" mapstructure:"keyword_weights"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		ScorerTimeout: 3 * time.Second,
		EntailStrong:  0.5,
		EntailWeak:    0.2,
		KeepTop:       3,
		RelativeFloor: 0.5,
		PremiseRunes:  300,
		Weights:       DefaultKeywordWeights(),
	}
}

// Filter reranks and filters candidates. Either oracle may be nil.
type Filter struct {
	snap  *kb.Snapshot
	cross llm.CrossEncoder
	nli   llm.NLI
	pool  *ants.Pool
	cfg   Config
}

// New creates a Filter with its worker pool. Call Release when done.
func New(snap *kb.Snapshot, cross llm.CrossEncoder, nli llm.NLI, cfg Config) (*Filter, error) {
	size := cfg.PoolSize
	if size <= 0 {
		size = runtime.NumCPU()
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("creating scorer pool: %w", err)
	}
	return &Filter{snap: snap, cross: cross, nli: nli, pool: pool, cfg: cfg}, nil
}

// Release stops the worker pool.
func (f *Filter) Release() {
	if f.pool != nil {
		f.pool.Release()
	}
}

// Apply scores, sorts and filters cands for c. The input slice is not
// modified. Oracle failures degrade to keyword scoring and an unfiltered
// NLI pass; Apply itself never fails.
func (f *Filter) Apply(ctx context.Context, cands []retrieval.Candidate, c *constraint.QueryConstraint) []retrieval.Candidate {
	if len(cands) == 0 {
		return nil
	}
	out := make([]retrieval.Candidate, len(cands))
	copy(out, cands)

	query := c.Rewritten
	if query == "" {
		query = c.Raw
	}

	if err := f.crossScores(ctx, query, out); err != nil {
		slog.Warn("rerank: cross-encoder unavailable, using keyword scores", "error", err)
		ks := newKeywordScorer(f.cfg.Weights, f.snap, c)
		for i := range out {
			out[i].CrossScore = ks.score(out[i].Doc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CrossScore > out[j].CrossScore })

	out = f.entailmentFilter(ctx, query, out)

	if c.Years.Kind != constraint.YearsRange && !c.IsMultiYear() {
		out = f.relativeFloor(out)
	}

	slog.Debug("rerank: done", "in", len(cands), "out", len(out))
	return out
}

// crossScores fills CrossScore for every candidate. Any failed call
// invalidates the whole set.
func (f *Filter) crossScores(ctx context.Context, query string, cands []retrieval.Candidate) error {
	if f.cross == nil {
		return llm.ErrScorerUnavailable
	}
	scores := make([]float64, len(cands))
	err := f.fanOut(ctx, len(cands), func(ctx context.Context, i int) error {
		s, err := f.cross.Score(ctx, query, PassageText(cands[i].Doc))
		scores[i] = s
		return err
	})
	if err != nil {
		return err
	}
	for i := range cands {
		cands[i].CrossScore = scores[i]
	}
	return nil
}

// entailmentFilter drops candidates the NLI oracle does not judge as
// supporting the question. If NLI fails the candidates pass unchanged.
func (f *Filter) entailmentFilter(ctx context.Context, query string, cands []retrieval.Candidate) []retrieval.Candidate {
	if f.nli == nil {
		return cands
	}
	results := make([]llm.Entailment, len(cands))
	err := f.fanOut(ctx, len(cands), func(ctx context.Context, i int) error {
		e, err := f.nli.Entail(ctx, f.premise(cands[i].Doc), query)
		results[i] = e
		return err
	})
	if err != nil {
		slog.Warn("rerank: nli unavailable, keeping candidates", "error", err)
		return cands
	}

	kept := make([]retrieval.Candidate, 0, len(cands))
	for i := range cands {
		e := results[i]
		cands[i].NLI = &e
		if e.Entail >= f.cfg.EntailStrong || (e.Entail > e.Contradict && e.Entail >= f.cfg.EntailWeak) {
			kept = append(kept, cands[i])
		}
	}
	if len(kept) > 0 {
		slog.Debug("rerank: nli filter", "kept", len(kept), "dropped", len(cands)-len(kept))
		return kept
	}

	byEntail := make([]retrieval.Candidate, len(cands))
	copy(byEntail, cands)
	sort.SliceStable(byEntail, func(i, j int) bool { return byEntail[i].NLI.Entail > byEntail[j].NLI.Entail })
	if len(byEntail) > f.cfg.KeepTop {
		byEntail = byEntail[:f.cfg.KeepTop]
	}
	slog.Debug("rerank: nli rejected all, keeping best entailed", "kept", len(byEntail))
	return byEntail
}

// relativeFloor keeps candidates scoring at least best*RelativeFloor and
// always the first KeepTop. Non-positive bests disable the floor.
func (f *Filter) relativeFloor(cands []retrieval.Candidate) []retrieval.Candidate {
	if len(cands) <= f.cfg.KeepTop {
		return cands
	}
	best := cands[0].CrossScore
	for _, cd := range cands[1:] {
		best = max(best, cd.CrossScore)
	}
	if best <= 0 {
		return cands
	}
	threshold := best * f.cfg.RelativeFloor
	out := cands[:0:0]
	for i, cd := range cands {
		if i < f.cfg.KeepTop || cd.CrossScore >= threshold {
			out = append(out, cd)
		}
	}
	return out
}

// fanOut runs fn for 0..n-1 on the worker pool, each call under its own
// timeout, and joins the errors.
func (f *Filter) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			callCtx, cancel := f.callContext(ctx)
			defer cancel()
			errs[i] = fn(callCtx, i)
		}
		if err := f.pool.Submit(task); err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (f *Filter) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.cfg.ScorerTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.cfg.ScorerTimeout)
}
