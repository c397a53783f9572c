// Package index implements the tenant-partitioned vector store. Every tenant
// gets its own HNSW graph and chunk map; deletion is logical (tombstones) and
// every mutation is followed by a synchronous atomic snapshot to disk.
package index

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/types"
)

// Config configures the vector index.
type Config struct {
	Dir       string     `yaml:"dir" json:"dir"`             // snapshot directory; empty disables persistence
	Dimension int        `yaml:"dimension" json:"dimension"` // required vector dimension for all tenants
	HNSW      HNSWConfig `yaml:"hnsw" json:"hnsw"`
}

// DefaultConfig returns the default index configuration.
func DefaultConfig() Config {
	return Config{
		Dir:       "data/index",
		Dimension: 768,
		HNSW:      DefaultHNSWConfig(),
	}
}

// Index is the tenant-partitioned vector store. Tenants are created lazily
// on first write; searching an unknown tenant returns no results rather than
// an error, matching the behavior of an empty tenant.
type Index struct {
	cfg     Config
	mu      sync.RWMutex // guards the tenants map, not per-tenant state
	tenants map[string]*tenantIndex
	logger  *zap.Logger
}

// New creates the index and loads any existing tenant snapshots from disk.
func New(cfg Config, logger *zap.Logger) (*Index, error) {
	if cfg.Dimension <= 0 {
		return nil, types.NewError(types.KindValidation, "index dimension must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	idx := &Index{
		cfg:     cfg,
		tenants: make(map[string]*tenantIndex),
		logger:  logger.With(zap.String("component", "vector_index")),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, types.NewError(types.KindStorage, "create snapshot directory").WithCause(err)
		}
		snaps, err := loadSnapshots(cfg.Dir)
		if err != nil {
			return nil, err
		}
		for _, snap := range snaps {
			dim := snap.Dimension
			if dim <= 0 {
				dim = cfg.Dimension
			}
			t := newTenantIndex(snap.TenantID, dim, cfg.HNSW, seedFor(snap.TenantID))
			t.restore(snap)
			idx.tenants[snap.TenantID] = t
			idx.logger.Info("tenant restored from snapshot",
				zap.String("tenant_id", snap.TenantID),
				zap.Int("chunks", len(snap.Chunks)),
				zap.Int("tombstones", len(snap.Tombstones)))
		}
	}
	return idx, nil
}

// AddChunks inserts chunks into the tenant's index, creating the tenant on
// first use, and persists a snapshot before returning. The write is only
// acknowledged once the snapshot is durably on disk, and the snapshot is
// written while the tenant's write lock is still held, so concurrent writes
// to the same tenant serialize through mutate-then-persist as a unit.
func (idx *Index) AddChunks(ctx context.Context, tenantID string, chunks []*types.Chunk) error {
	if tenantID == "" {
		return types.NewError(types.KindValidation, "tenant id is required")
	}
	if len(chunks) == 0 {
		return nil
	}
	for _, c := range chunks {
		if c.ChunkID == "" {
			return types.NewError(types.KindValidation, "chunk id is required")
		}
		if c.TenantID != "" && c.TenantID != tenantID {
			return types.Errorf(types.KindValidation,
				"chunk %s carries tenant %s, expected %s", c.ChunkID, c.TenantID, tenantID)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t := idx.ensureTenant(tenantID)

	start := time.Now()
	if err := t.add(chunks, idx.persister()); err != nil {
		return err
	}

	idx.logger.Info("chunks indexed",
		zap.String("tenant_id", tenantID),
		zap.Int("count", len(chunks)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Search returns up to k live chunks for the tenant with similarity at or
// above threshold, best first. An unknown tenant yields an empty result.
func (idx *Index) Search(ctx context.Context, tenantID string, vector []float64, k int, threshold float64) ([]types.RetrievedCandidate, error) {
	if tenantID == "" {
		return nil, types.NewError(types.KindValidation, "tenant id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := idx.lookupTenant(tenantID)
	if t == nil {
		return nil, nil
	}
	return t.search(vector, k, threshold)
}

// DeleteDocument tombstones every chunk of docID in the tenant and persists
// the change. It returns the number of chunks tombstoned; deleting an
// unknown document or tenant is a no-op.
func (idx *Index) DeleteDocument(ctx context.Context, tenantID, docID string) (int, error) {
	if tenantID == "" || docID == "" {
		return 0, types.NewError(types.KindValidation, "tenant id and doc id are required")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t := idx.lookupTenant(tenantID)
	if t == nil {
		return 0, nil
	}

	removed, err := t.deleteDoc(docID, idx.persister())
	if err != nil {
		return removed, err
	}
	if removed == 0 {
		return 0, nil
	}

	idx.logger.Info("document tombstoned",
		zap.String("tenant_id", tenantID),
		zap.String("doc_id", docID),
		zap.Int("chunks", removed))
	return removed, nil
}

// Stats returns the tenant's live chunk count and dimension. An unknown
// tenant reports a zero count with the index-wide dimension.
func (idx *Index) Stats(tenantID string) types.TenantStats {
	t := idx.lookupTenant(tenantID)
	if t == nil {
		return types.TenantStats{TenantID: tenantID, Dimension: idx.cfg.Dimension}
	}
	return t.stats()
}

// ListTenants returns all known tenant ids, sorted.
func (idx *Index) ListTenants() []string {
	idx.mu.RLock()
	ids := make([]string, 0, len(idx.tenants))
	for id := range idx.tenants {
		ids = append(ids, id)
	}
	idx.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Dimension returns the vector dimension new tenants are created with.
func (idx *Index) Dimension() int { return idx.cfg.Dimension }

func (idx *Index) ensureTenant(tenantID string) *tenantIndex {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if t, ok := idx.tenants[tenantID]; ok {
		return t
	}
	t := newTenantIndex(tenantID, idx.cfg.Dimension, idx.cfg.HNSW, seedFor(tenantID))
	idx.tenants[tenantID] = t
	idx.logger.Info("tenant created", zap.String("tenant_id", tenantID))
	return t
}

// persister returns the snapshot-save callback tenant mutations run under
// their write lock, or nil when persistence is disabled.
func (idx *Index) persister() func(*tenantSnapshot) error {
	if idx.cfg.Dir == "" {
		return nil
	}
	return func(snap *tenantSnapshot) error {
		return saveSnapshot(idx.cfg.Dir, snap)
	}
}

func (idx *Index) lookupTenant(tenantID string) *tenantIndex {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tenants[tenantID]
}

// seedFor derives a stable per-tenant seed so graph construction is
// reproducible across restarts for the same insert order.
func seedFor(tenantID string) int64 {
	var h int64 = 1469598103934665603
	for _, b := range []byte(tenantID) {
		h ^= int64(b)
		h *= 1099511628211
	}
	return h
}
