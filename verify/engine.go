package verify

import (
	"strings"

	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/internal/textutil"
	"github.com/hoplite-ai/hoplite/types"
)

// Config configures claim verification.
type Config struct {
	// SimilarityThreshold is the minimum evidence confidence that counts
	// as verification, and the cutoff for the semantic-match check.
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`

	// DirectOverlapRatio is the fraction of a claim's terms that must
	// appear verbatim in a source for a direct match.
	DirectOverlapRatio float64 `yaml:"direct_overlap_ratio" json:"direct_overlap_ratio"`
}

// DefaultConfig returns the default verification configuration.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.7,
		DirectOverlapRatio:  0.3,
	}
}

// Engine verifies extracted claims against evidence sources.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a verification engine.
func New(cfg Config, logger *zap.Logger) *Engine {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.7
	}
	if cfg.DirectOverlapRatio <= 0 {
		cfg.DirectOverlapRatio = 0.3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger.With(zap.String("component", "verification_engine"))}
}

// Verify extracts the answer's factual claims and checks each against the
// sources. An answer with no factual claims verifies trivially at full
// confidence; an answer with claims but no supporting sources does not.
func (e *Engine) Verify(answer string, sources []types.RankedCandidate) *types.VerificationResult {
	claims := ExtractClaims(answer)
	result := &types.VerificationResult{TotalClaims: len(claims)}

	if len(claims) == 0 {
		result.Verified = true
		result.Confidence = 1.0
		return result
	}

	for _, claim := range claims {
		verified, evidence := e.verifyClaim(claim, sources)
		result.Evidence = append(result.Evidence, evidence...)
		if verified {
			result.VerifiedClaims = append(result.VerifiedClaims, claim)
		} else {
			result.UnverifiedClaims = append(result.UnverifiedClaims, claim)
		}
	}

	result.Verified = len(result.UnverifiedClaims) == 0
	result.Confidence = float64(len(result.VerifiedClaims)) / float64(len(claims))

	e.logger.Debug("verification completed",
		zap.Int("total_claims", len(claims)),
		zap.Int("verified", len(result.VerifiedClaims)),
		zap.Int("unverified", len(result.UnverifiedClaims)))
	return result
}

// verifyClaim runs the three checks per source in order, stopping at the
// first strong match: direct lexical overlap, then term-set similarity, then
// entity overlap. Weak evidence is still recorded; the claim counts as
// verified only when some evidence reaches the similarity threshold.
func (e *Engine) verifyClaim(claim string, sources []types.RankedCandidate) (bool, []types.Evidence) {
	claimTerms := textutil.TermSet(claim)
	claimEntities := textutil.ExtractEntities(claim)

	var evidence []types.Evidence
	for _, source := range sources {
		sourceTerms := textutil.TermSet(source.Text)

		if overlapRatio(claimTerms, sourceTerms) >= e.cfg.DirectOverlapRatio {
			evidence = append(evidence, types.Evidence{
				Claim:         claim,
				SourceChunkID: source.ChunkID,
				MatchType:     types.MatchDirect,
				Confidence:    1.0,
				MatchedText:   bestMatchingSentence(claimTerms, source.Text),
			})
			return true, evidence
		}

		if sim := textutil.Jaccard(claimTerms, sourceTerms); sim >= e.cfg.SimilarityThreshold {
			evidence = append(evidence, types.Evidence{
				Claim:         claim,
				SourceChunkID: source.ChunkID,
				MatchType:     types.MatchSemantic,
				Confidence:    sim,
				MatchedText:   bestMatchingSentence(claimTerms, source.Text),
			})
			return true, evidence
		}

		if matched := entityOverlap(claimEntities, source.Entities); len(matched) > 0 {
			conf := float64(len(matched)) / float64(len(claimEntities))
			evidence = append(evidence, types.Evidence{
				Claim:           claim,
				SourceChunkID:   source.ChunkID,
				MatchType:       types.MatchEntity,
				Confidence:      conf,
				MatchedEntities: matched,
			})
			if conf >= e.cfg.SimilarityThreshold {
				return true, evidence
			}
		}
	}
	return false, evidence
}

// overlapRatio is the fraction of claim terms present in the source.
func overlapRatio(claimTerms, sourceTerms map[string]bool) float64 {
	if len(claimTerms) == 0 {
		return 0
	}
	n := 0
	for term := range claimTerms {
		if sourceTerms[term] {
			n++
		}
	}
	return float64(n) / float64(len(claimTerms))
}

// bestMatchingSentence returns the source sentence sharing the most terms
// with the claim.
func bestMatchingSentence(claimTerms map[string]bool, sourceText string) string {
	best := ""
	bestScore := 0
	for _, sentence := range textutil.Sentences(sourceText) {
		score := 0
		for term := range textutil.TermSet(sentence) {
			if claimTerms[term] {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = sentence
		}
	}
	if best == "" && len(sourceText) > 0 {
		if len(sourceText) > 200 {
			return sourceText[:200] + "..."
		}
		return sourceText
	}
	return best
}

func entityOverlap(claimEntities, sourceEntities []string) []string {
	if len(claimEntities) == 0 || len(sourceEntities) == 0 {
		return nil
	}
	sourceSet := make(map[string]bool, len(sourceEntities))
	for _, e := range sourceEntities {
		sourceSet[strings.ToLower(e)] = true
	}
	var matched []string
	for _, e := range claimEntities {
		if sourceSet[strings.ToLower(e)] {
			matched = append(matched, e)
		}
	}
	return matched
}
