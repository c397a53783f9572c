package types

// Chunk is the immutable unit of indexed text. Chunks are created at
// ingestion time and never modified afterwards; deletion only hides them
// from future searches.
type Chunk struct {
	ChunkID  string         `json:"chunk_id"`
	DocID    string         `json:"doc_id"`
	TenantID string         `json:"tenant_id"`
	Text     string         `json:"text"`
	Vector   []float64      `json:"vector"`
	StartPos int            `json:"start_pos"`
	EndPos   int            `json:"end_pos"`
	Entities []string       `json:"entities,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RetrievedCandidate is one passage returned by the retrieval coordinator.
type RetrievedCandidate struct {
	ChunkID  string         `json:"chunk_id"`
	DocID    string         `json:"doc_id"`
	Text     string         `json:"text"`
	Score    float64        `json:"score"` // similarity in [0,1]
	Snippet  string         `json:"snippet,omitempty"`
	StartPos int            `json:"start_pos"`
	Entities []string       `json:"entities,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RankedCandidate is a retrieved candidate after multi-signal reranking.
type RankedCandidate struct {
	RetrievedCandidate

	RerankScore float64 `json:"rerank_score"`
	RerankRank  int     `json:"rerank_rank"` // 1-based position after reranking
}

// TenantStats describes one tenant's slice of the vector index.
type TenantStats struct {
	TenantID  string `json:"tenant_id"`
	Count     int    `json:"count"` // live chunks, tombstoned excluded
	Dimension int    `json:"dimension"`
}
