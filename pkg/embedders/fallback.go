package embedders

import (
	"context"
	"log/slog"
	"math/rand/v2"
)

// FallbackEmbedder wraps an Embedder and substitutes a vector of
// uniform random values in [-1, 1] when no credential is available or
// the upstream call fails. Retrieval built on such a vector is
// semantically meaningless; the substitution is logged and reported so
// callers can surface the degraded mode instead of hiding it.
type FallbackEmbedder struct {
	inner Embedder // nil when no credential was available
	model string
	log   *slog.Logger
}

// NewFallbackEmbedder wraps inner. Pass a nil inner to always degrade
// (the no-credential case); model then decides the dimensionality.
func NewFallbackEmbedder(inner Embedder, model string) *FallbackEmbedder {
	if inner != nil {
		model = inner.Model()
	}
	if model == "" {
		model = DefaultModel
	}
	return &FallbackEmbedder{
		inner: inner,
		model: model,
		log:   slog.Default().With("component", "embedders"),
	}
}

// Embed returns the embedding and whether it was degraded to random
// values. The error is never non-nil; it is part of the signature so
// the type still reads as an embedding operation.
func (f *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, bool, error) {
	if f.inner == nil {
		f.log.Warn("no embedding credential available, using random embedding", "model", f.model)
		return f.randomVector(), true, nil
	}

	vector, err := f.inner.Embed(ctx, text)
	if err != nil {
		f.log.Warn("embedding call failed, using random embedding", "model", f.model, "error", err)
		return f.randomVector(), true, nil
	}
	return vector, false, nil
}

func (f *FallbackEmbedder) randomVector() []float32 {
	vector := make([]float32, f.Dimension())
	for i := range vector {
		vector[i] = float32(rand.Float64()*2 - 1)
	}
	return vector
}

// Model returns the model the embeddings are shaped for.
func (f *FallbackEmbedder) Model() string { return f.model }

// Dimension returns the vector length both paths produce.
func (f *FallbackEmbedder) Dimension() int { return DimensionForModel(f.model) }
