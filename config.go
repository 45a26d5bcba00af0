package historymind

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/brunobiangulo/historymind/entity"
	"github.com/brunobiangulo/historymind/llm"
	"github.com/brunobiangulo/historymind/nlu"
	"github.com/brunobiangulo/historymind/rerank"
	"github.com/brunobiangulo/historymind/retrieval"
	"github.com/brunobiangulo/historymind/synth"
	"github.com/brunobiangulo/historymind/verify"
)

// Config holds all configuration for the HistoryMind engine.
type Config struct {
	// DBPath is the full path to the SQLite corpus database.
	// If empty, defaults to ~/.historymind/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name" mapstructure:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.historymind/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir" mapstructure:"storage_dir"`

	// KnowledgePath overrides the embedded alias and entity tables.
	KnowledgePath string `json:"knowledge_path" yaml:"knowledge_path" mapstructure:"knowledge_path"`

	// CorpusFiles are imported into the store when it holds no documents.
	CorpusFiles []string `json:"corpus_files" yaml:"corpus_files" mapstructure:"corpus_files"`

	// Oracles. CrossEncoder and NLI are optional; without them rerank falls
	// back to keyword scoring and keeps every candidate.
	Embedding    llm.Config `json:"embedding" yaml:"embedding" mapstructure:"embedding"`
	CrossEncoder llm.Config `json:"cross_encoder" yaml:"cross_encoder" mapstructure:"cross_encoder"`
	NLI          llm.Config `json:"nli" yaml:"nli" mapstructure:"nli"`

	// Embedding dimensions (must match model)
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim" mapstructure:"embedding_dim"`
	EmbedBatch   int `json:"embed_batch" yaml:"embed_batch" mapstructure:"embed_batch"`

	// Query embeddings are memoised for EmbedCacheTTL, and on disk in
	// EmbedCacheDir when set.
	EmbedCacheTTL time.Duration `json:"embed_cache_ttl" yaml:"embed_cache_ttl" mapstructure:"embed_cache_ttl"`
	EmbedCacheDir string        `json:"embed_cache_dir" yaml:"embed_cache_dir" mapstructure:"embed_cache_dir"`

	// LogQueries records every answered request in the query_log table.
	LogQueries bool `json:"log_queries" yaml:"log_queries" mapstructure:"log_queries"`

	NLU        nlu.Options              `json:"nlu" yaml:"nlu" mapstructure:"nlu"`
	Entity     entity.Options           `json:"entity" yaml:"entity" mapstructure:"entity"`
	Retrieval  retrieval.Config         `json:"retrieval" yaml:"retrieval" mapstructure:"retrieval"`
	Rerank     rerank.Config            `json:"rerank" yaml:"rerank" mapstructure:"rerank"`
	Synth      synth.Config             `json:"synth" yaml:"synth" mapstructure:"synth"`
	Verify     verify.Config            `json:"verify" yaml:"verify" mapstructure:"verify"`
	Confidence verify.ConfidenceWeights `json:"confidence" yaml:"confidence" mapstructure:"confidence"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.historymind/historymind.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "historymind",
		StorageDir: "home",
		Embedding: llm.Config{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		EmbeddingDim:  768,
		EmbedBatch:    32,
		EmbedCacheTTL: time.Hour,
		NLU:           nlu.DefaultOptions(),
		Entity:        entity.DefaultOptions(),
		Retrieval:     retrieval.DefaultConfig(),
		Rerank:        rerank.DefaultConfig(),
		Synth:         synth.DefaultConfig(),
		Verify:        verify.DefaultConfig(),
		Confidence:    verify.DefaultConfidenceWeights(),
	}
}

// envKeys are the settings that can be overridden with HISTORYMIND_*
// variables, e.g. HISTORYMIND_EMBEDDING_BASE_URL.
var envKeys = []string{
	"db_path", "db_name", "storage_dir", "knowledge_path",
	"embedding.provider", "embedding.model", "embedding.base_url", "embedding.api_key",
	"cross_encoder.provider", "cross_encoder.base_url", "cross_encoder.api_key",
	"nli.provider", "nli.base_url", "nli.api_key",
	"embedding_dim", "embed_cache_dir", "log_queries",
}

// LoadConfig reads path (YAML, JSON or TOML, by extension) over the
// defaults and applies HISTORYMIND_* environment overrides. An empty path
// reads the environment only.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("HISTORYMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return cfg, fmt.Errorf("binding %s: %w", k, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	switch c.StorageDir {
	case "", "home", "local", "cwd":
	default:
		check(false, "storage_dir %q", c.StorageDir)
	}
	check(c.EmbeddingDim > 0, "embedding_dim must be positive")
	check(c.EmbedBatch >= 0, "embed_batch must not be negative")
	check(c.Retrieval.TopK > 0, "retrieval.top_k must be positive")
	check(unit(c.Retrieval.SimilarityThreshold), "retrieval.similarity_threshold must be in [0,1]")
	check(c.Retrieval.RangeCap > 0, "retrieval.range_cap must be positive")
	check(unit(c.Rerank.EntailStrong) && unit(c.Rerank.EntailWeak), "rerank entailment thresholds must be in [0,1]")
	check(c.Rerank.EntailWeak <= c.Rerank.EntailStrong, "rerank.entail_weak exceeds entail_strong")
	check(unit(c.Rerank.RelativeFloor), "rerank.relative_floor must be in [0,1]")
	check(c.Rerank.PoolSize >= 0, "rerank.pool_size must not be negative")
	check(unit(c.Verify.DriftThreshold), "verify.drift_threshold must be in [0,1]")
	check(c.Verify.MinYear < c.Verify.MaxYear, "verify.min_year must be below max_year")
	check(c.Synth.DefaultCap > 0 && c.Synth.RangeCap > 0, "synth caps must be positive")

	w := c.Confidence
	check(w.SourceCoverage >= 0 && w.YearGrounding >= 0 && w.Verification >= 0 && w.AnswerLength >= 0,
		"confidence weights must not be negative")
	check(w.SourceCoverage+w.YearGrounding+w.Verification+w.AnswerLength > 0, "confidence weights are all zero")

	return errors.Join(errs...)
}

func unit(f float64) bool { return f >= 0 && f <= 1 }

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "historymind"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".historymind", name+".db")
	}
}
