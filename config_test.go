package historymind

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brunobiangulo/historymind/verify"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "historymind.yaml")
	body := `db_path: /tmp/hm-test.db
embedding_dim: 384
embed_cache_ttl: 30m
embedding:
  provider: openai
  model: text-embedding-3-small
retrieval:
  top_k: 7
corpus_files:
  - events.json
  - timeline.txt
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPath != "/tmp/hm-test.db" {
		t.Errorf("db_path = %q", cfg.DBPath)
	}
	if cfg.EmbeddingDim != 384 {
		t.Errorf("embedding_dim = %d", cfg.EmbeddingDim)
	}
	if cfg.EmbedCacheTTL != 30*time.Minute {
		t.Errorf("embed_cache_ttl = %v", cfg.EmbedCacheTTL)
	}
	if cfg.Embedding.Provider != "openai" || cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	if cfg.Retrieval.TopK != 7 {
		t.Errorf("retrieval.top_k = %d", cfg.Retrieval.TopK)
	}
	if len(cfg.CorpusFiles) != 2 {
		t.Errorf("corpus_files = %v", cfg.CorpusFiles)
	}

	// Unset fields keep their defaults.
	def := DefaultConfig()
	if cfg.Retrieval.RangeCap != def.Retrieval.RangeCap {
		t.Errorf("range_cap = %d, want default %d", cfg.Retrieval.RangeCap, def.Retrieval.RangeCap)
	}
	if cfg.DBName != def.DBName {
		t.Errorf("db_name = %q, want default %q", cfg.DBName, def.DBName)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("HISTORYMIND_DB_PATH", "/var/lib/hm.db")
	t.Setenv("HISTORYMIND_EMBEDDING_MODEL", "bge-m3")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPath != "/var/lib/hm.db" {
		t.Errorf("db_path = %q", cfg.DBPath)
	}
	if cfg.Embedding.Model != "bge-m3" {
		t.Errorf("embedding.model = %q", cfg.Embedding.Model)
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("embedding.provider = %q, want default", cfg.Embedding.Provider)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"storage dir", func(c *Config) { c.StorageDir = "cloud" }},
		{"embedding dim", func(c *Config) { c.EmbeddingDim = 0 }},
		{"top k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"threshold", func(c *Config) { c.Retrieval.SimilarityThreshold = 1.5 }},
		{"entail order", func(c *Config) { c.Rerank.EntailWeak, c.Rerank.EntailStrong = 0.9, 0.5 }},
		{"year bounds", func(c *Config) { c.Verify.MinYear = c.Verify.MaxYear }},
		{"weights", func(c *Config) { c.Confidence = verify.ConfidenceWeights{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidateReportsEveryField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbeddingDim = -1
	cfg.Retrieval.TopK = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok || len(joined.Unwrap()) != 2 {
		t.Fatalf("expected two joined errors, got %v", err)
	}
}

func TestResolveDBPath(t *testing.T) {
	cfg := Config{DBPath: "/x/y.db"}
	if got := cfg.resolveDBPath(); got != "/x/y.db" {
		t.Errorf("explicit path = %q", got)
	}
	cfg = Config{DBName: "lich-su", StorageDir: "local"}
	if got := cfg.resolveDBPath(); got != "lich-su.db" {
		t.Errorf("local path = %q", got)
	}
	cfg = Config{StorageDir: "home"}
	if got := cfg.resolveDBPath(); filepath.Base(got) != "historymind.db" || filepath.Base(filepath.Dir(got)) != ".historymind" {
		t.Errorf("home path = %q", got)
	}
}
