// Package testutil holds shared test helpers.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/hoplite-ai/hoplite/types"
)

// TestContext returns a context that is cancelled when the test ends, with a
// 30 second safety timeout.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext returns an already-cancelled context.
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// Chunk builds a test chunk with the given ids and text.
func Chunk(tenantID, docID, chunkID, text string, vector []float64) *types.Chunk {
	return &types.Chunk{
		ChunkID:  chunkID,
		DocID:    docID,
		TenantID: tenantID,
		Text:     text,
		Vector:   vector,
	}
}
