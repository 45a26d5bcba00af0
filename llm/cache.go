package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// VectorCache is a persistent embedding store sitting behind the memory
// tier of a CachedEncoder.
type VectorCache interface {
	Get(key string) ([]float32, bool)
	Set(key string, vec []float32) error
}

// CachedEncoder memoises embeddings by model and text. The memory tier
// expires entries after ttl; the optional persistent tier never does.
type CachedEncoder struct {
	next  Encoder
	model string
	mem   *gocache.Cache
	disk  VectorCache
}

// NewCachedEncoder wraps next. disk may be nil.
func NewCachedEncoder(next Encoder, model string, ttl time.Duration, disk VectorCache) *CachedEncoder {
	return &CachedEncoder{
		next:  next,
		model: model,
		mem:   gocache.New(ttl, 2*ttl),
		disk:  disk,
	}
}

func (c *CachedEncoder) key(text string) string { return c.model + "\x00" + text }

// Embed returns cached vectors and encodes the rest in one batch.
func (c *CachedEncoder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		k := c.key(t)
		if v, ok := c.mem.Get(k); ok {
			out[i] = v.([]float32)
			continue
		}
		if c.disk != nil {
			if v, ok := c.disk.Get(k); ok {
				c.mem.SetDefault(k, v)
				out[i] = v
				continue
			}
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("llm: encoder returned %d vectors for %d texts", len(vecs), len(missing))
	}
	for j, v := range vecs {
		k := c.key(missing[j])
		c.mem.SetDefault(k, v)
		if c.disk != nil {
			if err := c.disk.Set(k, v); err != nil {
				slog.Warn("llm: persisting embedding failed", "error", err)
			}
		}
		out[missingIdx[j]] = v
	}
	return out, nil
}

// Len reports the number of vectors held in memory.
func (c *CachedEncoder) Len() int { return c.mem.ItemCount() }
