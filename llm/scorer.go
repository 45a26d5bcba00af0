package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// httpCrossEncoder calls a reranking service:
//
//	POST {base}/rerank {"model": m, "query": q, "passages": [p]} -> {"scores": [s]}
type httpCrossEncoder struct {
	base openAICompatClient
}

// NewHTTPCrossEncoder returns a cross-encoder backed by a /rerank service.
func NewHTTPCrossEncoder(cfg Config) CrossEncoder {
	return &httpCrossEncoder{base: newOpenAICompatClientPrefix(cfg, "")}
}

type rerankRequest struct {
	Model    string   `json:"model,omitempty"`
	Query    string   `json:"query"`
	Passages []string `json:"passages"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

func (c *httpCrossEncoder) Score(ctx context.Context, query, passage string) (float64, error) {
	respBody, err := c.base.doPost(ctx, "/rerank", rerankRequest{
		Model:    c.base.cfg.Model,
		Query:    query,
		Passages: []string{passage},
	})
	if err != nil {
		return 0, fmt.Errorf("rerank: %w", err)
	}
	var resp rerankResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("decoding rerank response: %w", err)
	}
	if len(resp.Scores) != 1 {
		return 0, fmt.Errorf("rerank: expected 1 score, got %d", len(resp.Scores))
	}
	return resp.Scores[0], nil
}

// httpNLI calls an entailment service:
//
//	POST {base}/nli {"model": m, "premise": p, "hypothesis": h}
//	  -> {"entailment": e, "neutral": n, "contradiction": c}
type httpNLI struct {
	base openAICompatClient
}

// NewHTTPNLI returns an NLI client backed by a /nli service.
func NewHTTPNLI(cfg Config) NLI {
	return &httpNLI{base: newOpenAICompatClientPrefix(cfg, "")}
}

type nliRequest struct {
	Model      string `json:"model,omitempty"`
	Premise    string `json:"premise"`
	Hypothesis string `json:"hypothesis"`
}

func (c *httpNLI) Entail(ctx context.Context, premise, hypothesis string) (Entailment, error) {
	respBody, err := c.base.doPost(ctx, "/nli", nliRequest{
		Model:      c.base.cfg.Model,
		Premise:    premise,
		Hypothesis: hypothesis,
	})
	if err != nil {
		return Entailment{}, fmt.Errorf("nli: %w", err)
	}
	var e Entailment
	if err := json.Unmarshal(respBody, &e); err != nil {
		return Entailment{}, fmt.Errorf("decoding nli response: %w", err)
	}
	return e, nil
}
