package llm

import (
	"context"

	"golang.org/x/time/rate"
)

func newLimiter(rps float64, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 5
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

type limitedEncoder struct {
	next Encoder
	lim  *rate.Limiter
}

// RateLimitEncoder wraps an encoder so that calls wait for limiter clearance.
func RateLimitEncoder(next Encoder, rps float64, burst int) Encoder {
	return &limitedEncoder{next: next, lim: newLimiter(rps, burst)}
}

func (l *limitedEncoder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.Embed(ctx, texts)
}

type limitedCrossEncoder struct {
	next CrossEncoder
	lim  *rate.Limiter
}

// RateLimitCrossEncoder wraps a cross-encoder with a token bucket.
func RateLimitCrossEncoder(next CrossEncoder, rps float64, burst int) CrossEncoder {
	return &limitedCrossEncoder{next: next, lim: newLimiter(rps, burst)}
}

func (l *limitedCrossEncoder) Score(ctx context.Context, query, passage string) (float64, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return 0, err
	}
	return l.next.Score(ctx, query, passage)
}

type limitedNLI struct {
	next NLI
	lim  *rate.Limiter
}

// RateLimitNLI wraps an NLI client with a token bucket.
func RateLimitNLI(next NLI, rps float64, burst int) NLI {
	return &limitedNLI{next: next, lim: newLimiter(rps, burst)}
}

func (l *limitedNLI) Entail(ctx context.Context, premise, hypothesis string) (Entailment, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return Entailment{}, err
	}
	return l.next.Entail(ctx, premise, hypothesis)
}
