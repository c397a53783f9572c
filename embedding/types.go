// Package embedding provides the unified embedding-provider interface and
// implementations.
package embedding

import "context"

// Provider generates dense vector representations of text. Implementations
// must be deterministic for identical input given a fixed model and must
// report their output dimension so the vector index can validate writes.
type Provider interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the output vector dimension.
	Dimensions() int

	// Name returns the provider name.
	Name() string
}
