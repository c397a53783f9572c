package mocks

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/hoplite-ai/hoplite/types"
)

// MockEmbedder implements embedding.Provider with deterministic vectors:
// the same text always embeds to the same unit vector, and different texts
// almost always differ. Suitable for index and retrieval tests that need
// stable nearest-neighbor behavior without a model.
type MockEmbedder struct {
	mu sync.Mutex

	dims  int
	err   error
	calls int
}

// NewMockEmbedder creates an embedder producing dims-dimensional vectors.
func NewMockEmbedder(dims int) *MockEmbedder {
	return &MockEmbedder{dims: dims}
}

// WithError makes every call fail with err.
func (m *MockEmbedder) WithError(err error) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Embed implements embedding.Provider.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch implements embedding.Provider.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	m.mu.Lock()
	m.calls++
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, types.NewError(types.KindProvider, "embedding cancelled").WithCause(ctx.Err())
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = m.vectorFor(text)
	}
	return out, nil
}

// Dimensions implements embedding.Provider.
func (m *MockEmbedder) Dimensions() int { return m.dims }

// Name implements embedding.Provider.
func (m *MockEmbedder) Name() string { return "mock" }

// Calls returns how many EmbedBatch calls have been made.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// vectorFor derives a unit vector from the text's FNV hash stream.
func (m *MockEmbedder) vectorFor(text string) []float64 {
	vec := make([]float64, m.dims)
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float64(int64(seed>>11))/float64(1<<52) - 1
		norm += vec[i] * vec[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
