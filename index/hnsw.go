package index

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
)

// HNSWConfig tunes the per-tenant HNSW graph.
type HNSWConfig struct {
	M              int `yaml:"m" json:"m"`                             // max connections per node per layer
	EfConstruction int `yaml:"ef_construction" json:"ef_construction"` // search width while inserting
	EfSearch       int `yaml:"ef_search" json:"ef_search"`             // search width while querying
	MaxLevel       int `yaml:"max_level" json:"max_level"`
}

// DefaultHNSWConfig returns a configuration balancing recall and latency for
// corpora up to the low hundreds of thousands of chunks.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{
		M:              16,
		EfConstruction: 200,
		EfSearch:       100,
		MaxLevel:       16,
	}
}

// hnswHit is one approximate-nearest-neighbor match.
type hnswHit struct {
	ID    string
	Score float64 // cosine similarity, 1 - distance
}

// hnsw is a Hierarchical Navigable Small World graph over chunk vectors.
// It is not safe for concurrent use; the owning tenant index serializes
// access.
type hnsw struct {
	cfg        HNSWConfig
	vectors    map[string][]float64
	graph      map[string]map[int][]string // id -> level -> neighbor ids
	entryPoint string
	maxLevel   int
	rng        *rand.Rand
}

func newHNSW(cfg HNSWConfig, seed int64) *hnsw {
	if cfg.M <= 0 {
		cfg = DefaultHNSWConfig()
	}
	return &hnsw{
		cfg:     cfg,
		vectors: make(map[string][]float64),
		graph:   make(map[string]map[int][]string),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// add inserts a vector under the given id. Duplicate ids overwrite the
// stored vector but keep the existing graph position.
func (h *hnsw) add(id string, vector []float64) {
	if _, exists := h.vectors[id]; exists {
		h.vectors[id] = vector
		return
	}

	h.vectors[id] = vector
	level := h.randomLevel()
	if level > h.maxLevel {
		h.maxLevel = level
	}

	h.graph[id] = make(map[int][]string)
	for l := 0; l <= level; l++ {
		h.graph[id][l] = []string{}
	}

	if h.entryPoint == "" {
		h.entryPoint = id
		return
	}
	h.insert(id, vector, level)
}

// search returns up to k live hits with similarity >= threshold, best first.
// keep filters out logically deleted ids without touching the graph.
func (h *hnsw) search(query []float64, k int, threshold float64, keep func(id string) bool) []hnswHit {
	if len(h.vectors) == 0 || k <= 0 {
		return nil
	}

	ep := h.entryPoint
	for level := h.maxLevel; level > 0; level-- {
		if next := h.searchLayer(query, ep, 1, level); len(next) > 0 {
			ep = next[0]
		}
	}

	// Widen the layer-0 sweep so tombstoned and sub-threshold candidates
	// do not starve the result set.
	ef := h.cfg.EfSearch
	if ef < 2*k {
		ef = 2 * k
	}
	candidates := h.searchLayer(query, ep, ef, 0)

	hits := make([]hnswHit, 0, k)
	for _, id := range candidates {
		if keep != nil && !keep(id) {
			continue
		}
		score := 1.0 - h.distance(query, h.vectors[id])
		if score < threshold {
			continue
		}
		hits = append(hits, hnswHit{ID: id, Score: score})
		if len(hits) == k {
			break
		}
	}
	return hits
}

func (h *hnsw) size() int { return len(h.vectors) }

func (h *hnsw) insert(id string, vector []float64, level int) {
	ep := h.entryPoint
	for lc := h.maxLevel; lc > level; lc-- {
		if next := h.searchLayer(vector, ep, 1, lc); len(next) > 0 {
			ep = next[0]
		}
	}

	for lc := level; lc >= 0; lc-- {
		candidates := h.searchLayer(vector, ep, h.cfg.EfConstruction, lc)

		m := h.cfg.M
		if lc == 0 {
			m = h.cfg.M * 2
		}

		neighbors := h.selectNeighbors(id, candidates, m)
		h.graph[id][lc] = neighbors

		for _, nid := range neighbors {
			h.graph[nid][lc] = append(h.graph[nid][lc], id)
			if len(h.graph[nid][lc]) > m {
				h.graph[nid][lc] = h.selectNeighbors(nid, h.graph[nid][lc], m)
			}
		}

		if len(candidates) > 0 {
			ep = candidates[0]
		}
	}
}

// searchLayer greedily explores one layer, returning up to ef ids ordered by
// increasing distance from the query.
func (h *hnsw) searchLayer(query []float64, ep string, ef int, level int) []string {
	if _, ok := h.vectors[ep]; !ok {
		return nil
	}

	visited := map[string]bool{ep: true}
	dist := h.distance(query, h.vectors[ep])

	candidates := &minHeap{{id: ep, dist: dist}}
	result := &maxHeap{{id: ep, dist: dist}}

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(*heapItem)
		if c.dist > (*result)[0].dist && result.Len() >= ef {
			break
		}

		for _, nid := range h.graph[c.id][level] {
			if visited[nid] {
				continue
			}
			visited[nid] = true

			d := h.distance(query, h.vectors[nid])
			if result.Len() < ef || d < (*result)[0].dist {
				heap.Push(candidates, &heapItem{id: nid, dist: d})
				heap.Push(result, &heapItem{id: nid, dist: d})
				if result.Len() > ef {
					heap.Pop(result)
				}
			}
		}
	}

	out := make([]string, result.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(result).(*heapItem).id
	}
	return out
}

func (h *hnsw) selectNeighbors(id string, candidates []string, m int) []string {
	if len(candidates) <= m {
		return candidates
	}

	type scored struct {
		id   string
		dist float64
	}
	cands := make([]scored, len(candidates))
	for i, cid := range candidates {
		cands[i] = scored{id: cid, dist: h.distance(h.vectors[id], h.vectors[cid])}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	out := make([]string, m)
	for i := 0; i < m; i++ {
		out[i] = cands[i].id
	}
	return out
}

func (h *hnsw) randomLevel() int {
	level := 0
	for h.rng.Float64() < 0.5 && level < h.cfg.MaxLevel {
		level++
	}
	return level
}

// distance is cosine distance (1 - similarity).
func (h *hnsw) distance(a, b []float64) float64 {
	if len(a) != len(b) {
		return 1.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1.0
	}
	return 1.0 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

type heapItem struct {
	id   string
	dist float64
}

type minHeap []*heapItem

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)         { *h = append(*h, x.(*heapItem)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type maxHeap []*heapItem

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)         { *h = append(*h, x.(*heapItem)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
