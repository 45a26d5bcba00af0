// Package retrieval selects candidate documents for a constraint through
// an ordered list of strategies, with a semantic fallback chain when the
// chosen strategy finds nothing.
package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/brunobiangulo/historymind/constraint"
	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/llm"
	"github.com/brunobiangulo/historymind/vntext"
)

// Hit is one result of an index lookup. For vector search Score is the
// cosine similarity; for lexical search only the rank matters.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// VectorIndex finds the k documents nearest to an embedding.
type VectorIndex interface {
	VectorSearch(ctx context.Context, embedding []float32, k int) ([]Hit, error)
}

// LexicalIndex finds up to k documents matching the words of a query.
type LexicalIndex interface {
	FTSSearch(ctx context.Context, query string, k int) ([]Hit, error)
}

// Candidate is a document selected for a request together with its scores.
type Candidate struct {
	Doc        *kb.Document    `json:"doc"`
	Pos        int             `json:"-"`
	Score      float64         `json:"score"`
	CrossScore float64         `json:"cross_score,omitempty"`
	NLI        *llm.Entailment `json:"nli,omitempty"`
	Strategy   string          `json:"strategy"`
	Methods    []string        `json:"methods,omitempty"`
}

// Kind classifies an Outcome.
type Kind string

const (
	KindCandidates Kind = "candidates"
	KindCanned     Kind = "canned"
	KindIdentity   Kind = "identity"
	KindNoResults  Kind = "no_results"
)

// Attempt records one step of retrieval.
type Attempt struct {
	Step  string `json:"step"`
	Query string `json:"query,omitempty"`
	Count int    `json:"count"`
}

// SearchTrace records the breakdown of one hybrid search.
type SearchTrace struct {
	Query        string               `json:"query"`
	VecResults   int                  `json:"vec_results"`
	FTSResults   int                  `json:"fts_results"`
	FusedResults int                  `json:"fused_results"`
	Dropped      int                  `json:"dropped,omitempty"`
	VecError     string               `json:"vec_error,omitempty"`
	FTSError     string               `json:"fts_error,omitempty"`
	ElapsedMs    int64                `json:"elapsed_ms"`
	PerResult    map[string]FusedInfo `json:"per_result,omitempty"`
}

// Outcome is the result of Retrieve. Candidates is only set for
// KindCandidates.
type Outcome struct {
	Kind       Kind          `json:"kind"`
	Candidates []Candidate   `json:"candidates,omitempty"`
	Strategy   string        `json:"strategy"`
	Fallback   string        `json:"fallback,omitempty"`
	Attempts   []Attempt     `json:"attempts,omitempty"`
	Searches   []SearchTrace `json:"searches,omitempty"`
}

// Config holds retrieval configuration.
type Config struct {
	TopK                int     `json:"top_k" yaml:"top_k" mapstructure:"top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	WeightVector        float64 `json:"weight_vector" yaml:"weight_vector" mapstructure:"weight_vector"`
	WeightFTS           float64 `json:"weight_fts" yaml:"weight_fts" mapstructure:"weight_fts"`

	// RangeCap bounds year-range and multi-year scans.
	RangeCap int `json:"range_cap" yaml:"range_cap" mapstructure:"range_cap"`

	// The keyword filter keeps candidates scoring at least
	// max(KeywordFloorMin, best*KeywordFloorRatio).
	KeywordFloorMin   int     `json:"keyword_floor_min" yaml:"keyword_floor_min" mapstructure:"keyword_floor_min"`
	KeywordFloorRatio float64 `json:"keyword_floor_ratio" yaml:"keyword_floor_ratio" mapstructure:"keyword_floor_ratio"`

	// Entity scans with fewer hits than SupplementBelow are topped up with
	// a semantic search.
	SupplementBelow int `json:"supplement_below" yaml:"supplement_below" mapstructure:"supplement_below"`

	// Texts of at least ContainmentMinRunes runes contained in an earlier
	// candidate of the same year are merged into it.
	ContainmentMinRunes int `json:"containment_min_runes" yaml:"containment_min_runes" mapstructure:"containment_min_runes"`

	// Timeout bounds each encoder and index call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		TopK:                15,
		SimilarityThreshold: 0.45,
		WeightVector:        1.0,
		WeightFTS:           1.0,
		RangeCap:            50,
		KeywordFloorMin:     2,
		KeywordFloorRatio:   0.5,
		SupplementBelow:     3,
		ContainmentMinRunes: 15,
		Timeout:             2 * time.Second,
	}
}

// Orchestrator runs the strategy cascade against a snapshot and the
// optional semantic indexes. Any of enc, vec and lex may be nil; semantic
// search then uses whatever remains.
type Orchestrator struct {
	snap       *kb.Snapshot
	enc        llm.Encoder
	vec        VectorIndex
	lex        LexicalIndex
	cfg        Config
	strategies []strategy
}

// New creates an orchestrator.
func New(snap *kb.Snapshot, enc llm.Encoder, vec VectorIndex, lex LexicalIndex, cfg Config) *Orchestrator {
	o := &Orchestrator{snap: snap, enc: enc, vec: vec, lex: lex, cfg: cfg}
	o.strategies = o.cascade()
	return o
}

// pass is the per-request state shared by strategies.
type pass struct {
	c     *constraint.QueryConstraint
	out   *Outcome
	tried map[string]bool // queries already sent to semantic search
}

// Retrieve selects candidates for c. It never fails: oracle errors count
// as empty results and exhaust into KindNoResults.
func (o *Orchestrator) Retrieve(ctx context.Context, c *constraint.QueryConstraint) Outcome {
	out := Outcome{}
	p := &pass{c: c, out: &out, tried: make(map[string]bool)}

	for _, s := range o.strategies {
		if !s.applies(c) {
			continue
		}
		out.Strategy = s.name
		kind, cands := s.run(ctx, p)
		if kind != KindCandidates {
			out.Kind = kind
			slog.Debug("retrieval: short-circuit", "strategy", s.name, "kind", kind)
			return out
		}
		out.Attempts = append(out.Attempts, Attempt{Step: s.name, Query: c.Rewritten, Count: len(cands)})

		if len(cands) == 0 {
			cands = o.fallback(ctx, p)
		}
		if len(cands) == 0 {
			out.Kind = KindNoResults
			slog.Debug("retrieval: no results", "strategy", s.name, "attempts", len(out.Attempts))
			return out
		}
		out.Kind = KindCandidates
		out.Candidates = dedup(cands, o.cfg.ContainmentMinRunes)
		slog.Debug("retrieval: done", "strategy", s.name, "fallback", out.Fallback,
			"candidates", len(out.Candidates), "merged", len(cands)-len(out.Candidates))
		return out
	}
	out.Kind = KindNoResults
	return out
}

// fallback tries the rewritten query, each variant and the raw query in
// turn, stopping at the first non-empty semantic search.
func (o *Orchestrator) fallback(ctx context.Context, p *pass) []Candidate {
	type step struct{ name, query string }
	steps := []step{{"rewritten", p.c.Rewritten}}
	for _, v := range p.c.Variants {
		steps = append(steps, step{"variant", v})
	}
	steps = append(steps, step{"raw", p.c.Raw})

	for _, s := range steps {
		q := vntext.Normalize(s.query)
		if q == "" || p.tried[q] {
			continue
		}
		cands := o.semantic(ctx, p, q, "fallback_"+s.name)
		p.out.Attempts = append(p.out.Attempts, Attempt{Step: "fallback_" + s.name, Query: q, Count: len(cands)})
		if len(cands) > 0 {
			p.out.Fallback = s.name
			slog.Debug("retrieval: fallback succeeded", "step", s.name, "query", q, "candidates", len(cands))
			return cands
		}
	}
	return nil
}
