package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// openAIEncoder embeds through the official OpenAI API.
//
// Supported embedding models:
//
//	text-embedding-3-small  (1536 dim)  default
//	text-embedding-3-large  (3072 dim)
//	text-embedding-ada-002  (1536 dim)
type openAIEncoder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAI creates an encoder for OpenAI. BaseURL, when set, must include
// the API version path (e.g. "https://api.openai.com/v1").
func NewOpenAI(cfg Config) (Encoder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: OpenAI API key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := openai.SmallEmbedding3
	if cfg.Model != "" {
		model = openai.EmbeddingModel(cfg.Model)
	}
	return &openAIEncoder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

func (e *openAIEncoder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embeddings: %w", err)
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	return out, nil
}
