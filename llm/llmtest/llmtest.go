// Package llmtest provides deterministic in-process oracles for tests.
package llmtest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/brunobiangulo/historymind/llm"
	"github.com/brunobiangulo/historymind/vntext"
)

// Dims is the vector size produced by Encoder.
const Dims = 64

// Encoder hashes diacritic-folded words into a normalised bag-of-words
// vector, so texts sharing words are close.
type Encoder struct {
	Err   error
	calls atomic.Int64
}

var _ llm.Encoder = (*Encoder)(nil)

// Embed implements llm.Encoder.
func (e *Encoder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t)
	}
	return out, nil
}

// Calls reports how many Embed calls were made.
func (e *Encoder) Calls() int { return int(e.calls.Load()) }

// Vector returns the embedding Encoder produces for text.
func Vector(text string) []float32 {
	v := make([]float32, Dims)
	for _, w := range vntext.Words(vntext.Fold(text)) {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%Dims]++
	}
	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	if norm == 0 {
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// CrossEncoder scores a passage by the fraction of folded query words it
// contains. FailOn makes calls whose passage contains the substring fail.
type CrossEncoder struct {
	Err    error
	FailOn string

	mu    sync.Mutex
	calls int
}

var _ llm.CrossEncoder = (*CrossEncoder)(nil)

// Score implements llm.CrossEncoder.
func (c *CrossEncoder) Score(ctx context.Context, query, passage string) (float64, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	if c.FailOn != "" && strings.Contains(passage, c.FailOn) {
		return 0, llm.ErrScorerUnavailable
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return Overlap(query, passage), nil
}

// Calls reports how many Score calls were made.
func (c *CrossEncoder) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// NLI returns a fixed Entailment for premises containing a key of Fixed,
// and otherwise derives one from word overlap.
type NLI struct {
	Err   error
	Fixed map[string]llm.Entailment
}

var _ llm.NLI = (*NLI)(nil)

// Entail implements llm.NLI.
func (n *NLI) Entail(ctx context.Context, premise, hypothesis string) (llm.Entailment, error) {
	if n.Err != nil {
		return llm.Entailment{}, n.Err
	}
	if err := ctx.Err(); err != nil {
		return llm.Entailment{}, err
	}
	for k, e := range n.Fixed {
		if strings.Contains(premise, k) {
			return e, nil
		}
	}
	o := Overlap(hypothesis, premise)
	return llm.Entailment{Entail: o, Neutral: 1 - o, Contradict: 0}, nil
}

// Overlap is the fraction of folded words of a found in b.
func Overlap(a, b string) float64 {
	words := vntext.Words(vntext.Fold(a))
	if len(words) == 0 {
		return 0
	}
	have := make(map[string]bool)
	for _, w := range vntext.Words(vntext.Fold(b)) {
		have[w] = true
	}
	hit := 0
	for _, w := range words {
		if have[w] {
			hit++
		}
	}
	return float64(hit) / float64(len(words))
}
