package index

import (
	"sync"

	"github.com/hoplite-ai/hoplite/types"
)

// tenantIndex is one tenant's fully isolated slice of the vector store: its
// own chunk map, its own tombstone set, its own HNSW graph. Cross-tenant
// leakage is impossible by construction rather than by filtering.
type tenantIndex struct {
	mu         sync.RWMutex
	tenantID   string
	dimension  int
	chunks     map[string]*types.Chunk
	tombstones map[string]bool
	graph      *hnsw
}

func newTenantIndex(tenantID string, dimension int, cfg HNSWConfig, seed int64) *tenantIndex {
	return &tenantIndex{
		tenantID:   tenantID,
		dimension:  dimension,
		chunks:     make(map[string]*types.Chunk),
		tombstones: make(map[string]bool),
		graph:      newHNSW(cfg, seed),
	}
}

// add inserts chunks and, still holding the write lock, persists the
// post-insert state through persist (nil disables persistence). Keeping the
// lock across persistence makes writers mutually exclusive with snapshotting:
// concurrent adds can neither interleave their snapshot files nor persist a
// state that is missing an already-acknowledged insert.
func (t *tenantIndex) add(chunks []*types.Chunk, persist func(*tenantSnapshot) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range chunks {
		if len(c.Vector) != t.dimension {
			return types.Errorf(types.KindValidation,
				"chunk %s vector dimension %d, tenant %s expects %d",
				c.ChunkID, len(c.Vector), t.tenantID, t.dimension)
		}
	}
	for _, c := range chunks {
		t.chunks[c.ChunkID] = c
		delete(t.tombstones, c.ChunkID)
		t.graph.add(c.ChunkID, c.Vector)
	}
	if persist != nil {
		return persist(t.snapshotLocked())
	}
	return nil
}

// search runs ANN search under the read lock. Tombstoned chunks are skipped;
// results below threshold are dropped by the graph itself.
func (t *tenantIndex) search(vector []float64, k int, threshold float64) ([]types.RetrievedCandidate, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(vector) != t.dimension {
		return nil, types.Errorf(types.KindValidation,
			"query vector dimension %d, tenant %s expects %d",
			len(vector), t.tenantID, t.dimension)
	}

	hits := t.graph.search(vector, k, threshold, func(id string) bool {
		return !t.tombstones[id]
	})

	out := make([]types.RetrievedCandidate, 0, len(hits))
	for _, hit := range hits {
		c, ok := t.chunks[hit.ID]
		if !ok {
			continue
		}
		out = append(out, types.RetrievedCandidate{
			ChunkID:  c.ChunkID,
			DocID:    c.DocID,
			Text:     c.Text,
			Score:    hit.Score,
			StartPos: c.StartPos,
			Entities: c.Entities,
			Metadata: c.Metadata,
		})
	}
	return out, nil
}

// deleteDoc tombstones every chunk belonging to docID and persists the
// post-delete state under the same write lock, like add. Vectors stay in the
// graph; they just stop appearing in results. Returns the number of chunks
// newly tombstoned.
func (t *tenantIndex) deleteDoc(docID string, persist func(*tenantSnapshot) error) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, c := range t.chunks {
		if c.DocID == docID && !t.tombstones[id] {
			t.tombstones[id] = true
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if persist != nil {
		return removed, persist(t.snapshotLocked())
	}
	return removed, nil
}

func (t *tenantIndex) stats() types.TenantStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return types.TenantStats{
		TenantID:  t.tenantID,
		Count:     len(t.chunks) - len(t.tombstones),
		Dimension: t.dimension,
	}
}

// snapshotLocked captures the tenant state for persistence. Caller holds at
// least the read lock.
func (t *tenantIndex) snapshotLocked() *tenantSnapshot {
	snap := &tenantSnapshot{
		TenantID:  t.tenantID,
		Dimension: t.dimension,
		Chunks:    make([]*types.Chunk, 0, len(t.chunks)),
	}
	for _, c := range t.chunks {
		snap.Chunks = append(snap.Chunks, c)
	}
	for id := range t.tombstones {
		snap.Tombstones = append(snap.Tombstones, id)
	}
	return snap
}

// restore rebuilds the in-memory state, including the HNSW graph, from a
// snapshot. Graph topology is not persisted; it is reconstructed by
// re-inserting every vector.
func (t *tenantIndex) restore(snap *tenantSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range snap.Chunks {
		t.chunks[c.ChunkID] = c
		t.graph.add(c.ChunkID, c.Vector)
	}
	for _, id := range snap.Tombstones {
		t.tombstones[id] = true
	}
}
