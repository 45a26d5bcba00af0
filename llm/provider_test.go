package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEncoder(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"ollama", "*llm.ollamaProvider"},
		{"lmstudio", "*llm.openAICompatProvider"},
		{"custom", "*llm.openAICompatProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			enc, err := NewEncoder(Config{Provider: tt.provider, Model: "test-model"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, fmt.Sprintf("%T", enc))
		})
	}
}

func TestNewEncoderErrors(t *testing.T) {
	_, err := NewEncoder(Config{})
	assert.ErrorIs(t, err, ErrNoProvider)

	_, err = NewEncoder(Config{Provider: "doesnotexist"})
	require.Error(t, err)
	assert.Equal(t, "llm: unknown encoder provider: doesnotexist", err.Error())

	_, err = NewEncoder(Config{Provider: "openai"})
	assert.Error(t, err, "openai needs an API key")
}

func TestNewEncoderRateLimited(t *testing.T) {
	enc, err := NewEncoder(Config{Provider: "custom", RequestsPerSecond: 10})
	require.NoError(t, err)
	assert.Equal(t, "*llm.limitedEncoder", fmt.Sprintf("%T", enc))
}

// baseURL reaches base.cfg.BaseURL on the concrete type.
func baseURL(v any) string {
	return reflect.ValueOf(v).Elem().FieldByName("base").FieldByName("cfg").FieldByName("BaseURL").String()
}

func TestDefaultBaseURLs(t *testing.T) {
	tests := []struct {
		provider string
		wantURL  string
	}{
		{"ollama", "http://localhost:11434"},
		{"lmstudio", "http://localhost:1234"},
		{"custom", ""},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			enc, err := NewEncoder(Config{Provider: tt.provider})
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, baseURL(enc))
		})
	}
}

func TestExplicitBaseURLPreserved(t *testing.T) {
	for _, provider := range []string{"ollama", "lmstudio", "custom"} {
		t.Run(provider, func(t *testing.T) {
			enc, err := NewEncoder(Config{Provider: provider, BaseURL: "http://my-server:9999"})
			require.NoError(t, err)
			assert.Equal(t, "http://my-server:9999", baseURL(enc))
		})
	}
}

func TestNewScorers(t *testing.T) {
	_, err := NewCrossEncoder(Config{})
	assert.ErrorIs(t, err, ErrNoProvider)
	_, err = NewCrossEncoder(Config{Provider: "http"})
	assert.ErrorIs(t, err, ErrScorerUnavailable)
	_, err = NewNLI(Config{Provider: "grpc", BaseURL: "http://x"})
	assert.Error(t, err)

	ce, err := NewCrossEncoder(Config{Provider: "http", BaseURL: "http://x"})
	require.NoError(t, err)
	assert.Equal(t, "*llm.httpCrossEncoder", fmt.Sprintf("%T", ce))
}

func TestEmbedOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)
		fmt.Fprint(w, `{"data":[{"embedding":[2],"index":1},{"embedding":[1],"index":0}]}`)
	}))
	defer srv.Close()

	enc := NewOpenAICompat(Config{BaseURL: srv.URL, APIKey: "sk-test", Model: "m"})
	vecs, err := enc.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, vecs)
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		fmt.Fprint(w, `{"embeddings":[[0.5,0.25]]}`)
	}))
	defer srv.Close()

	vecs, err := NewOllama(Config{BaseURL: srv.URL}).Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0.25}}, vecs)
}

func TestDoPostRetriesUnavailable(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"scores":[0.75]}`)
	}))
	defer srv.Close()

	s, err := NewHTTPCrossEncoder(Config{BaseURL: srv.URL}).Score(context.Background(), "q", "p")
	require.NoError(t, err)
	assert.Equal(t, 0.75, s)
	assert.Equal(t, int32(2), hits.Load())
}

func TestDoPostDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewHTTPNLI(Config{BaseURL: srv.URL}).Entail(context.Background(), "p", "h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), hits.Load())
}

func TestDoPostHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := NewHTTPCrossEncoder(Config{BaseURL: srv.URL}).Score(ctx, "q", "p")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNLIDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req nliRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "premise", req.Premise)
		assert.Equal(t, "hypothesis", req.Hypothesis)
		fmt.Fprint(w, `{"entailment":0.7,"neutral":0.2,"contradiction":0.1}`)
	}))
	defer srv.Close()

	e, err := NewHTTPNLI(Config{BaseURL: srv.URL}).Entail(context.Background(), "premise", "hypothesis")
	require.NoError(t, err)
	assert.Equal(t, Entailment{Entail: 0.7, Neutral: 0.2, Contradict: 0.1}, e)
}
