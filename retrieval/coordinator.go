// Package retrieval turns a query string into ranked candidate passages:
// the coordinator embeds the query and searches the tenant's vector index,
// and the reranking engine re-scores the hits with lexical, positional,
// length, and entity signals.
package retrieval

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/embedding"
	"github.com/hoplite-ai/hoplite/types"
)

// Searcher is the slice of the vector index the coordinator needs.
type Searcher interface {
	Search(ctx context.Context, tenantID string, vector []float64, k int, threshold float64) ([]types.RetrievedCandidate, error)
}

// Config configures the retrieval coordinator.
type Config struct {
	TopK          int     `yaml:"top_k" json:"top_k"`                   // default candidate count
	Threshold     float64 `yaml:"threshold" json:"threshold"`           // default minimum similarity
	SnippetLength int     `yaml:"snippet_length" json:"snippet_length"` // max snippet characters
}

// DefaultConfig returns the default retrieval configuration.
func DefaultConfig() Config {
	return Config{
		TopK:          10,
		Threshold:     0.3,
		SnippetLength: 200,
	}
}

// Coordinator embeds queries and searches the tenant-scoped index. An empty
// result is a normal outcome, not an error: "no evidence found" is a valid
// answer to many questions.
type Coordinator struct {
	cfg      Config
	embedder embedding.Provider
	searcher Searcher
	logger   *zap.Logger
}

// NewCoordinator creates a retrieval coordinator.
func NewCoordinator(cfg Config, embedder embedding.Provider, searcher Searcher, logger *zap.Logger) *Coordinator {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.SnippetLength <= 0 {
		cfg.SnippetLength = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cfg:      cfg,
		embedder: embedder,
		searcher: searcher,
		logger:   logger.With(zap.String("component", "retrieval_coordinator")),
	}
}

// Retrieve returns up to topK candidates for the query, each with similarity
// at or above threshold. Candidates below threshold are dropped, not
// down-ranked. topK <= 0 and threshold < 0 fall back to the configured
// defaults.
func (c *Coordinator) Retrieve(ctx context.Context, tenantID, query string, topK int, threshold float64) ([]types.RetrievedCandidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.NewError(types.KindValidation, "query is empty")
	}
	if topK <= 0 {
		topK = c.cfg.TopK
	}
	if threshold < 0 {
		threshold = c.cfg.Threshold
	}

	start := time.Now()
	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, types.NewError(types.KindRetrieval, "embed query").WithCause(err)
	}

	candidates, err := c.searcher.Search(ctx, tenantID, vector, topK, threshold)
	if err != nil {
		return nil, types.NewError(types.KindRetrieval, "index search").WithCause(err)
	}

	for i := range candidates {
		candidates[i].Snippet = makeSnippet(candidates[i].Text, query, c.cfg.SnippetLength)
	}

	c.logger.Debug("retrieval completed",
		zap.String("tenant_id", tenantID),
		zap.Int("candidates", len(candidates)),
		zap.Duration("duration", time.Since(start)))
	return candidates, nil
}

// makeSnippet extracts a window of text around the first query-term hit, or
// the passage prefix when no term matches.
func makeSnippet(text, query string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}

	lower := strings.ToLower(text)
	pos := -1
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if len(term) < 3 {
			continue
		}
		if i := strings.Index(lower, term); i >= 0 && (pos == -1 || i < pos) {
			pos = i
		}
	}

	start := 0
	if pos > maxLen/2 {
		start = pos - maxLen/2
	}
	end := start + maxLen
	if end > len(text) {
		end = len(text)
		start = end - maxLen
	}

	// byte offsets can land mid-rune; widen to the enclosing boundaries so
	// the snippet stays valid UTF-8
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}

	snippet := text[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet += "..."
	}
	return snippet
}
