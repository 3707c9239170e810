package embed

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// Retry defaults: up to 2 retries with linear backoff (1s, 2s).
const (
	DefaultRetries = 2
	DefaultBackoff = time.Second
)

// Pipeline composes the standard production stack around a provider:
// rate limiting, bounded retry, and unit-norm enforcement. limiter may be
// nil to disable rate limiting.
func Pipeline(e Embedder, limiter *rate.Limiter) Embedder {
	wrapped := e
	if limiter != nil {
		wrapped = &Limited{Inner: wrapped, Limiter: limiter}
	}
	wrapped = &Retry{Inner: wrapped, Retries: DefaultRetries, Backoff: DefaultBackoff}
	return &Normalized{Inner: wrapped}
}

// ---------------------------------------------------------------------------
// Normalized: unit-norm enforcement
// ---------------------------------------------------------------------------

// Normalized wraps an Embedder and scales every output vector to unit norm.
// Zero vectors are passed through unchanged.
type Normalized struct {
	Inner Embedder
}

var _ Embedder = (*Normalized)(nil)

func (n *Normalized) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := n.Inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	Normalize(vec)
	return vec, nil
}

func (n *Normalized) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := n.Inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for _, v := range vecs {
		Normalize(v)
	}
	return vecs, nil
}

func (n *Normalized) Dimension() int { return n.Inner.Dimension() }

// Normalize scales vec to unit norm in place. A zero vector is left as is.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
}

// ---------------------------------------------------------------------------
// Retry: bounded retries with linear backoff
// ---------------------------------------------------------------------------

// Retry wraps an Embedder and retries failed calls with linear backoff:
// the n-th retry waits n*Backoff. Context cancellation aborts the wait.
type Retry struct {
	Inner   Embedder
	Retries int           // additional attempts after the first failure
	Backoff time.Duration // base wait; attempt n waits n*Backoff
}

var _ Embedder = (*Retry)(nil)

func (r *Retry) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := r.do(ctx, func() error {
		var err error
		vec, err = r.Inner.Embed(ctx, text)
		return err
	})
	return vec, err
}

func (r *Retry) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := r.do(ctx, func() error {
		var err error
		vecs, err = r.Inner.EmbedBatch(ctx, texts)
		return err
	})
	return vecs, err
}

func (r *Retry) Dimension() int { return r.Inner.Dimension() }

func (r *Retry) do(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.Retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * r.Backoff
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = call(); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, r.Retries+1, lastErr)
}

// ---------------------------------------------------------------------------
// Limited: shared token-bucket rate limiting
// ---------------------------------------------------------------------------

// Limited wraps an Embedder with a token-bucket rate limiter. The limiter is
// typically shared with the extraction orchestrator so that total upstream
// load stays bounded.
type Limited struct {
	Inner   Embedder
	Limiter *rate.Limiter
}

var _ Embedder = (*Limited)(nil)

func (l *Limited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := l.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.Inner.Embed(ctx, text)
}

func (l *Limited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := l.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.Inner.EmbedBatch(ctx, texts)
}

func (l *Limited) Dimension() int { return l.Inner.Dimension() }
