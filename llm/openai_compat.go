package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// openAICompatClient is the shared HTTP base for every JSON endpoint the
// engine talks to: OpenAI-compatible embeddings, Ollama and the scorer
// services.
type openAICompatClient struct {
	cfg        Config
	client     *http.Client
	pathPrefix string // API path prefix, defaults to "/v1"
	retries    int
}

func newOpenAICompatClient(cfg Config) openAICompatClient {
	return newOpenAICompatClientPrefix(cfg, "/v1")
}

func newOpenAICompatClientPrefix(cfg Config, prefix string) openAICompatClient {
	// Generous for local providers which may load models on first request.
	timeout := 120 * time.Second
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	retries := defaultMaxRetries
	if cfg.MaxRetries > 0 {
		retries = cfg.MaxRetries
	}
	return openAICompatClient{
		cfg:        cfg,
		pathPrefix: prefix,
		retries:    retries,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewOpenAICompat creates an encoder for any OpenAI-compatible
// /v1/embeddings endpoint.
func NewOpenAICompat(cfg Config) Encoder {
	return &openAICompatProvider{base: newOpenAICompatClient(cfg)}
}

type openAICompatProvider struct {
	base openAICompatClient
}

func (p *openAICompatProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *openAICompatClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := embeddingRequest{
		Model: c.cfg.Model,
		Input: texts,
	}

	respBody, err := c.doPost(ctx, c.pathPrefix+"/embeddings", body)
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}

	// Sort by index to ensure correct ordering
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(embeddings) {
			embeddings[d.Index] = d.Embedding
		}
	}
	return embeddings, nil
}

const (
	defaultMaxRetries = 3
	baseRetryDelay    = 500 * time.Millisecond
	minRateLimitDelay = 2 * time.Second // minimum delay for 429 errors
)

// retryableStatusCode returns true for HTTP status codes that warrant a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func (c *openAICompatClient) doPost(ctx context.Context, path string, body interface{}) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := c.cfg.BaseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<(attempt-1))
			slog.Warn("llm: retrying request",
				"url", url,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			// Retry on network/timeout errors (not context cancellation).
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request to %s failed: %w", url, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}

		lastErr = fmt.Errorf("model API error %d: %s", resp.StatusCode, string(respBody))

		if !retryableStatusCode(resp.StatusCode) {
			return nil, lastErr
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			rateLimitDelay := minRateLimitDelay * time.Duration(1<<attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
					headerDelay := time.Duration(seconds) * time.Second
					if headerDelay > rateLimitDelay {
						rateLimitDelay = headerDelay
					}
				}
			}
			slog.Warn("llm: rate limited, waiting before retry",
				"url", url,
				"attempt", attempt+1,
				"delay", rateLimitDelay,
			)
			select {
			case <-time.After(rateLimitDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
