// Package llm holds the model oracles the engine consults: a sentence
// encoder for semantic search, a cross-encoder for reranking and an NLI
// model for entailment filtering, together with their HTTP adapters.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoProvider is returned when a constructor is given no provider.
	ErrNoProvider = errors.New("llm: provider not specified")

	// ErrScorerUnavailable is returned by scorers that cannot answer, for
	// example when no endpoint is configured.
	ErrScorerUnavailable = errors.New("llm: scorer unavailable")
)

// Encoder generates embeddings for a batch of texts. The result has one
// vector per input, in input order.
type Encoder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CrossEncoder scores how well a passage answers a query. Higher is better;
// the scale is model specific.
type CrossEncoder interface {
	Score(ctx context.Context, query, passage string) (float64, error)
}

// Entailment holds the three NLI class probabilities for one
// premise/hypothesis pair.
type Entailment struct {
	Entail     float64 `json:"entailment"`
	Neutral    float64 `json:"neutral"`
	Contradict float64 `json:"contradiction"`
}

// NLI classifies whether a premise entails a hypothesis.
type NLI interface {
	Entail(ctx context.Context, premise, hypothesis string) (Entailment, error)
}

// Config configures one oracle endpoint.
type Config struct {
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"` // ollama, openai, lmstudio, custom, http
	Model    string `json:"model" yaml:"model" mapstructure:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key" mapstructure:"api_key"`

	// MaxRetries bounds doPost retries; 0 uses the default.
	MaxRetries int           `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// RequestsPerSecond enables client-side rate limiting when > 0.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst" mapstructure:"burst"`
}

// NewEncoder creates an embedding encoder from configuration.
func NewEncoder(cfg Config) (Encoder, error) {
	var enc Encoder
	switch cfg.Provider {
	case "ollama":
		enc = NewOllama(cfg)
	case "openai":
		e, err := NewOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		enc = e
	case "lmstudio":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:1234"
		}
		enc = NewOpenAICompat(cfg)
	case "custom":
		enc = NewOpenAICompat(cfg)
	case "":
		return nil, ErrNoProvider
	default:
		return nil, fmt.Errorf("llm: unknown encoder provider: %s", cfg.Provider)
	}
	if cfg.RequestsPerSecond > 0 {
		enc = RateLimitEncoder(enc, cfg.RequestsPerSecond, cfg.Burst)
	}
	return enc, nil
}

// NewCrossEncoder creates a cross-encoder client. Only the "http"
// provider exists: a POST /rerank endpoint.
func NewCrossEncoder(cfg Config) (CrossEncoder, error) {
	switch cfg.Provider {
	case "http":
	case "":
		return nil, ErrNoProvider
	default:
		return nil, fmt.Errorf("llm: unknown cross-encoder provider: %s", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm: cross-encoder base_url: %w", ErrScorerUnavailable)
	}
	var ce CrossEncoder = NewHTTPCrossEncoder(cfg)
	if cfg.RequestsPerSecond > 0 {
		ce = RateLimitCrossEncoder(ce, cfg.RequestsPerSecond, cfg.Burst)
	}
	return ce, nil
}

// NewNLI creates an NLI client backed by a POST /nli endpoint.
func NewNLI(cfg Config) (NLI, error) {
	switch cfg.Provider {
	case "http":
	case "":
		return nil, ErrNoProvider
	default:
		return nil, fmt.Errorf("llm: unknown nli provider: %s", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm: nli base_url: %w", ErrScorerUnavailable)
	}
	var n NLI = NewHTTPNLI(cfg)
	if cfg.RequestsPerSecond > 0 {
		n = RateLimitNLI(n, cfg.RequestsPerSecond, cfg.Burst)
	}
	return n, nil
}
