// Package embed provides the text embedding adapter: an interface converting
// text into fixed-dimension unit vectors, with remote API implementations.
//
// # Implementations
//
//   - [OpenAI] — OpenAI text-embedding-3-small / text-embedding-3-large
//   - [DashScope] — Aliyun DashScope text-embedding-v4 (OpenAI-compatible)
//
// Both reuse a single long-lived HTTP client, so connections are pooled
// across calls. Batch calls re-sort results by the index the upstream
// returns, so output order always matches input order.
//
// # Wrappers
//
// Production pipelines compose the provider with the decorators in this
// package: [Normalized] guarantees unit-norm output, [Retry] adds bounded
// retries with linear backoff, and [Limited] applies a shared token-bucket
// rate limiter.
//
//	e := embed.Pipeline(embed.NewOpenAI(key), limiter)
package embed

import (
	"context"
	"errors"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts, in input
	// order. Implementations may split large batches into smaller API
	// calls transparently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// Common errors.
var (
	// ErrEmptyInput is returned when the input text is empty.
	ErrEmptyInput = errors.New("embed: empty input")

	// ErrExhausted is returned when all retry attempts have failed.
	ErrExhausted = errors.New("embed: retries exhausted")
)
