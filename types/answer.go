package types

import "time"

// ReasoningTrace is one sampled generation for a question.
type ReasoningTrace struct {
	TraceID     string   `json:"trace_id"`
	Answer      string   `json:"answer"`
	Reasoning   string   `json:"reasoning,omitempty"`
	Steps       []string `json:"steps,omitempty"` // numbered/bulleted reasoning lines
	Confidence  float64  `json:"confidence"`
	Temperature float64  `json:"temperature,omitempty"`
}

// ConsensusResult reconciles one or more reasoning traces into a single
// answer. AgreementScore is zero when only one sample was requested.
type ConsensusResult struct {
	Answer         string           `json:"answer"`
	Reasoning      string           `json:"reasoning,omitempty"`
	Confidence     float64          `json:"confidence"`
	AgreementScore float64          `json:"agreement_score,omitempty"`
	Traces         []ReasoningTrace `json:"traces"`
	SampleCount    int              `json:"sample_count"`
}

// MatchType classifies how a claim was matched against a source.
type MatchType string

const (
	MatchDirect   MatchType = "direct"
	MatchSemantic MatchType = "semantic"
	MatchEntity   MatchType = "entity"
)

// Evidence links a claim to a source chunk that supports it.
type Evidence struct {
	Claim           string    `json:"claim"`
	SourceChunkID   string    `json:"source_chunk_id"`
	MatchType       MatchType `json:"match_type"`
	Confidence      float64   `json:"confidence"`
	MatchedText     string    `json:"matched_text,omitempty"`
	MatchedEntities []string  `json:"matched_entities,omitempty"`
}

// VerificationResult is the outcome of checking an answer's claims against
// retrieved evidence. Unsupported claims lower confidence but never fail
// the request.
type VerificationResult struct {
	Verified         bool       `json:"verified"`
	Confidence       float64    `json:"confidence"`
	VerifiedClaims   []string   `json:"verified_claims,omitempty"`
	UnverifiedClaims []string   `json:"unverified_claims,omitempty"`
	Evidence         []Evidence `json:"evidence,omitempty"`
	TotalClaims      int        `json:"total_claims"`
}

// Answer is the structured response of the engine's primary entry point.
type Answer struct {
	QueryID      string              `json:"query_id"`
	Answer       string              `json:"answer"`
	Sources      []RankedCandidate   `json:"sources"`
	Confidence   float64             `json:"confidence"`
	Traces       []ReasoningTrace    `json:"reasoning_traces,omitempty"`
	HopCount     int                 `json:"hop_count"`
	Verification *VerificationResult `json:"verification,omitempty"`
	Duration     time.Duration       `json:"duration"`
}
