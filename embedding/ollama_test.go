package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/types"
)

func newEmbedTestServer(t *testing.T, handler http.HandlerFunc) *OllamaProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOllamaProvider(OllamaConfig{
		BaseURL:    srv.URL,
		Model:      "test-embed",
		Dimensions: 4,
		Timeout:    5 * time.Second,
	}, zap.NewNop())
}

func TestEmbed(t *testing.T) {
	var got ollamaEmbedRequest
	provider := newEmbedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float64{1, 0, 0, 0}})
	})

	vec, err := provider.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 0}, vec)
	assert.Equal(t, "test-embed", got.Model)
	assert.Equal(t, "some text", got.Prompt)
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	provider := newEmbedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		vec := []float64{0, 0, 0, 0}
		if req.Prompt == "first" {
			vec[0] = 1
		} else {
			vec[1] = 1
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vec})
	})

	vectors, err := provider.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, 1.0, vectors[0][0])
	assert.Equal(t, 1.0, vectors[1][1])
}

func TestEmbedDimensionMismatch(t *testing.T) {
	provider := newEmbedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float64{1, 0}})
	})

	_, err := provider.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, types.KindProvider, types.KindOf(err))
	assert.Contains(t, err.Error(), "dimension")
}

func TestEmbedEmptyEmbedding(t *testing.T) {
	provider := newEmbedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{})
	})

	_, err := provider.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty embedding")
}

func TestEmbedServerErrorRetryable(t *testing.T) {
	provider := newEmbedTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := provider.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, types.IsRetryable(err))
}
