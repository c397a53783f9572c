package retrieval

import (
	"sort"

	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/internal/textutil"
	"github.com/hoplite-ai/hoplite/types"
)

// RerankConfig carries the signal weights and the length-preference band.
// Weights should sum to 1; they are applied as-is without renormalization.
type RerankConfig struct {
	WeightOriginal float64 `yaml:"weight_original" json:"weight_original"`
	WeightLexical  float64 `yaml:"weight_lexical" json:"weight_lexical"`
	WeightLength   float64 `yaml:"weight_length" json:"weight_length"`
	WeightPosition float64 `yaml:"weight_position" json:"weight_position"`
	WeightEntity   float64 `yaml:"weight_entity" json:"weight_entity"`

	IdealMinWords int `yaml:"ideal_min_words" json:"ideal_min_words"`
	IdealMaxWords int `yaml:"ideal_max_words" json:"ideal_max_words"`
}

// DefaultRerankConfig returns the default reranking weights.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		WeightOriginal: 0.4,
		WeightLexical:  0.3,
		WeightLength:   0.1,
		WeightPosition: 0.1,
		WeightEntity:   0.1,
		IdealMinWords:  100,
		IdealMaxWords:  500,
	}
}

// Reranker re-scores retrieval candidates with five bounded signals:
// the original similarity, lexical term-frequency cosine against the query,
// a length preference peaking in the configured word band, a positional
// preference for passages early in their source document, and entity-set
// overlap with the query. A signal that cannot be computed contributes the
// neutral value 0.5 instead of failing the rerank.
type Reranker struct {
	cfg    RerankConfig
	logger *zap.Logger
}

// NewReranker creates a reranking engine.
func NewReranker(cfg RerankConfig, logger *zap.Logger) *Reranker {
	if cfg.WeightOriginal == 0 && cfg.WeightLexical == 0 {
		cfg = DefaultRerankConfig()
	}
	if cfg.IdealMinWords <= 0 {
		cfg.IdealMinWords = 100
	}
	if cfg.IdealMaxWords <= cfg.IdealMinWords {
		cfg.IdealMaxWords = cfg.IdealMinWords * 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{cfg: cfg, logger: logger.With(zap.String("component", "reranker"))}
}

// Rerank returns the top-N candidates ordered by weighted signal score,
// descending, with ties broken by original retrieval score. When the input
// already fits within topN the original order is preserved untouched.
func (r *Reranker) Rerank(query string, candidates []types.RetrievedCandidate, topN int) []types.RankedCandidate {
	if topN <= 0 {
		topN = len(candidates)
	}

	if len(candidates) <= topN {
		out := make([]types.RankedCandidate, len(candidates))
		for i, c := range candidates {
			out[i] = types.RankedCandidate{
				RetrievedCandidate: c,
				RerankScore:        c.Score,
				RerankRank:         i + 1,
			}
		}
		return out
	}

	queryEntities := textutil.ExtractEntities(query)

	scored := make([]types.RankedCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = types.RankedCandidate{
			RetrievedCandidate: c,
			RerankScore:        r.score(query, queryEntities, c),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RerankScore != scored[j].RerankScore {
			return scored[i].RerankScore > scored[j].RerankScore
		}
		return scored[i].Score > scored[j].Score
	})

	scored = scored[:topN]
	for i := range scored {
		scored[i].RerankRank = i + 1
	}
	return scored
}

func (r *Reranker) score(query string, queryEntities []string, c types.RetrievedCandidate) float64 {
	original := textutil.Clamp01(c.Score)

	lexical, err := lexicalSignal(query, c.Text)
	if err != nil {
		lexical = 0.5
	}
	length, err := r.lengthSignal(c.Text)
	if err != nil {
		length = 0.5
	}

	sum := r.cfg.WeightOriginal*original +
		r.cfg.WeightLexical*lexical +
		r.cfg.WeightLength*length +
		r.cfg.WeightPosition*positionSignal(c.StartPos) +
		r.cfg.WeightEntity*entitySignal(queryEntities, c.Entities)
	return textutil.Clamp01(sum)
}

func lexicalSignal(query, text string) (float64, error) {
	if query == "" || text == "" {
		return 0, types.NewError(types.KindInternal, "empty text for lexical signal")
	}
	return textutil.TermFrequencyCosine(query, text), nil
}

// lengthSignal peaks at 1.0 inside the ideal word band and decays linearly
// to 0 outside it.
func (r *Reranker) lengthSignal(text string) (float64, error) {
	words := len(textutil.Tokenize(text))
	if words == 0 {
		return 0, types.NewError(types.KindInternal, "empty text for length signal")
	}
	min, max := r.cfg.IdealMinWords, r.cfg.IdealMaxWords
	switch {
	case words < min:
		return float64(words) / float64(min), nil
	case words <= max:
		return 1.0, nil
	default:
		return textutil.Clamp01(1.0 - float64(words-max)/float64(max)), nil
	}
}

// positionSignal prefers passages earlier in their source document, in
// discrete buckets by character offset.
func positionSignal(startPos int) float64 {
	switch {
	case startPos < 1000:
		return 1.0
	case startPos < 5000:
		return 0.8
	default:
		return 0.6
	}
}

// entitySignal is the Jaccard overlap between query entities and the
// candidate's attached entities. No entities on either side is neutral, not
// zero: absence of entities says nothing about relevance.
func entitySignal(queryEntities, candidateEntities []string) float64 {
	if len(queryEntities) == 0 || len(candidateEntities) == 0 {
		return 0.5
	}
	return textutil.JaccardFold(queryEntities, candidateEntities)
}
