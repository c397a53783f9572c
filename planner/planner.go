package planner

import (
	"context"

	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/llm"
	"github.com/hoplite-ai/hoplite/types"
)

// Retriever is the slice of the retrieval coordinator the planner needs.
type Retriever interface {
	Retrieve(ctx context.Context, tenantID, query string, topK int, threshold float64) ([]types.RetrievedCandidate, error)
}

// Reranker re-scores retrieval candidates for a query.
type Reranker interface {
	Rerank(query string, candidates []types.RetrievedCandidate, topN int) []types.RankedCandidate
}

// Config configures planning and hop execution.
type Config struct {
	MaxHops      int     `yaml:"max_hops" json:"max_hops"`
	TopKPerHop   int     `yaml:"top_k_per_hop" json:"top_k_per_hop"`
	TopNPerHop   int     `yaml:"top_n_per_hop" json:"top_n_per_hop"` // after reranking
	HopThreshold float64 `yaml:"hop_threshold" json:"hop_threshold"`
}

// DefaultConfig returns the default planner configuration.
func DefaultConfig() Config {
	return Config{
		MaxHops:      4,
		TopKPerHop:   10,
		TopNPerHop:   5,
		HopThreshold: 0.3,
	}
}

// Planner decomposes questions and executes the resulting hop plans.
type Planner struct {
	cfg       Config
	provider  llm.Provider
	retriever Retriever
	reranker  Reranker
	logger    *zap.Logger
}

// New creates a planner. The LLM provider is only consulted when template
// decomposition fails on a multi-hop question.
func New(cfg Config, provider llm.Provider, retriever Retriever, reranker Reranker, logger *zap.Logger) *Planner {
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = 4
	}
	if cfg.TopKPerHop <= 0 {
		cfg.TopKPerHop = 10
	}
	if cfg.TopNPerHop <= 0 {
		cfg.TopNPerHop = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		cfg:       cfg,
		provider:  provider,
		retriever: retriever,
		reranker:  reranker,
		logger:    logger.With(zap.String("component", "query_planner")),
	}
}
