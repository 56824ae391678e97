package embed

import (
	"context"

	teacheremb "github.com/raptorlabs/raptor/internal/embed"
)

// staticAdapter narrows the teacher's internal/embed.StaticEmbedder down
// to the Embedder interface RAPTOR depends on, so the engine has a
// deterministic, dependency-free default without a second hash-embedding
// implementation to maintain.
type staticAdapter struct {
	inner *teacheremb.StaticEmbedder
}

// NewDefaultEmbedder returns the hash-based static embedder already
// shipped for the hybrid search path, reused here as RAPTOR's default.
// Swap in a real model-backed Embedder by constructing an Engine with a
// different implementation of this interface.
func NewDefaultEmbedder() Embedder {
	return &staticAdapter{inner: teacheremb.NewStaticEmbedder()}
}

func (a *staticAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	return a.inner.Embed(ctx, text)
}

func (a *staticAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return a.inner.EmbedBatch(ctx, texts)
}

func (a *staticAdapter) Dimensions() int { return a.inner.Dimensions() }

func (a *staticAdapter) ModelName() string { return a.inner.ModelName() }
