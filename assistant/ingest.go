package assistant

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/internal/textutil"
	"github.com/hoplite-ai/hoplite/types"
)

// AddDocumentChunks ingests chunks into the tenant's slice of the index.
// Chunks arriving without vectors are embedded in one batch; chunks arriving
// without entities get them extracted from the text. The chunks are not
// visible to searches until the index has acknowledged the write.
func (e *Engine) AddDocumentChunks(ctx context.Context, tenantID string, chunks []*types.Chunk) error {
	if tenantID == "" {
		return types.NewError(types.KindValidation, "tenant id is required")
	}
	if len(chunks) == 0 {
		return types.NewError(types.KindValidation, "no chunks to add")
	}

	var pending []*types.Chunk
	for _, chunk := range chunks {
		if chunk == nil {
			return types.NewError(types.KindValidation, "nil chunk")
		}
		if strings.TrimSpace(chunk.Text) == "" {
			return types.NewError(types.KindValidation, "chunk text is empty")
		}
		if chunk.ChunkID == "" {
			chunk.ChunkID = uuid.NewString()
		}
		if chunk.TenantID == "" {
			chunk.TenantID = tenantID
		}
		if len(chunk.Entities) == 0 {
			chunk.Entities = textutil.ExtractEntities(chunk.Text)
		}
		if len(chunk.Vector) == 0 {
			pending = append(pending, chunk)
		}
	}

	if len(pending) > 0 {
		if e.embedder == nil {
			return types.NewError(types.KindValidation, "chunks without vectors need an embedding provider")
		}
		texts := make([]string, len(pending))
		for i, chunk := range pending {
			texts[i] = chunk.Text
		}
		vectors, err := e.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return types.NewError(types.KindProvider, "embed chunks").WithCause(err).WithRetryable(true)
		}
		if len(vectors) != len(pending) {
			return types.Errorf(types.KindProvider, "embedder returned %d vectors for %d texts", len(vectors), len(pending))
		}
		for i, chunk := range pending {
			chunk.Vector = vectors[i]
		}
	}

	if err := e.index.AddChunks(ctx, tenantID, chunks); err != nil {
		return err
	}

	if e.collector != nil {
		e.collector.SetIndexedChunks(tenantID, e.index.Stats(tenantID).Count)
	}
	e.logger.Info("chunks indexed",
		zap.String("tenant_id", tenantID),
		zap.Int("count", len(chunks)),
		zap.Int("embedded", len(pending)))
	return nil
}

// DeleteDocument tombstones every chunk of the document and returns how many
// were affected.
func (e *Engine) DeleteDocument(ctx context.Context, tenantID, docID string) (int, error) {
	if tenantID == "" {
		return 0, types.NewError(types.KindValidation, "tenant id is required")
	}
	if docID == "" {
		return 0, types.NewError(types.KindValidation, "doc id is required")
	}

	removed, err := e.index.DeleteDocument(ctx, tenantID, docID)
	if err != nil {
		return 0, err
	}

	if e.collector != nil {
		e.collector.SetIndexedChunks(tenantID, e.index.Stats(tenantID).Count)
	}
	e.logger.Info("document deleted",
		zap.String("tenant_id", tenantID),
		zap.String("doc_id", docID),
		zap.Int("chunks_removed", removed))
	return removed, nil
}

// TenantStats reports the tenant's live chunk count and vector dimension.
func (e *Engine) TenantStats(tenantID string) types.TenantStats {
	return e.index.Stats(tenantID)
}

// ListTenants returns the tenants present in the index, sorted.
func (e *Engine) ListTenants() []string {
	return e.index.ListTenants()
}
