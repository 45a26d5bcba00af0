package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// ollamaProvider embeds through Ollama's native /api/embed endpoint,
// which batches inputs.
type ollamaProvider struct {
	base openAICompatClient
}

// NewOllama creates an encoder for Ollama.
func NewOllama(cfg Config) Encoder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	return &ollamaProvider{base: newOpenAICompatClientPrefix(cfg, "")}
}

func (p *ollamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := ollamaEmbedRequest{
		Model: p.base.cfg.Model,
		Input: texts,
	}

	respBody, err := p.base.doPost(ctx, "/api/embed", body)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	var embedResp ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &embedResp); err != nil {
		return nil, fmt.Errorf("decoding ollama embed response: %w", err)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(embedResp.Embeddings), len(texts))
	}

	result := make([][]float32, len(embedResp.Embeddings))
	for i, emb := range embedResp.Embeddings {
		result[i] = float64sToFloat32s(emb)
	}
	return result, nil
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func float64sToFloat32s(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
