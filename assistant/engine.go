// Package assistant wires planning, retrieval, consensus generation, and
// verification into the engine's primary entry point: ask a question against
// a tenant's corpus, get back a structured answer with sources, reasoning
// traces, and a verification report.
package assistant

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/embedding"
	"github.com/hoplite-ai/hoplite/internal/metrics"
	"github.com/hoplite-ai/hoplite/planner"
	"github.com/hoplite-ai/hoplite/types"
)

// noEvidenceAnswer is returned without consulting the language model when a
// single-hop query retrieves nothing.
const noEvidenceAnswer = "I couldn't find relevant information to answer your question."

// QueryPlanner plans and executes multi-hop queries.
type QueryPlanner interface {
	Plan(ctx context.Context, question string) (*types.ExecutionPlan, error)
	Execute(ctx context.Context, tenantID string, plan *types.ExecutionPlan) (*planner.Execution, error)
}

// AnswerGenerator produces a consensus answer from question and evidence.
type AnswerGenerator interface {
	Answer(ctx context.Context, question, evidence string, sampleCount int, useCoT bool) (*types.ConsensusResult, error)
}

// Verifier checks an answer's claims against its sources.
type Verifier interface {
	Verify(answer string, sources []types.RankedCandidate) *types.VerificationResult
}

// DocumentIndex is the tenant-scoped administrative surface of the vector
// index.
type DocumentIndex interface {
	AddChunks(ctx context.Context, tenantID string, chunks []*types.Chunk) error
	DeleteDocument(ctx context.Context, tenantID, docID string) (int, error)
	Stats(tenantID string) types.TenantStats
	ListTenants() []string
	Dimension() int
}

// Options tune one PlanAndAnswer call. Zero values select the configured
// defaults.
type Options struct {
	SampleCount int  `json:"sample_count,omitempty"`
	UseCoT      bool `json:"use_cot,omitempty"`
	SkipVerify  bool `json:"skip_verify,omitempty"`
}

// Config configures the engine.
type Config struct {
	DefaultSamples int  `yaml:"default_samples" json:"default_samples"`
	MaxSamples     int  `yaml:"max_samples" json:"max_samples"`
	MaxSources     int  `yaml:"max_sources" json:"max_sources"` // sources returned to the caller
	UseCoT         bool `yaml:"use_cot" json:"use_cot"`
	MaxQuestionLen int  `yaml:"max_question_len" json:"max_question_len"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		DefaultSamples: 3,
		MaxSamples:     10,
		MaxSources:     5,
		UseCoT:         true,
		MaxQuestionLen: 2000,
	}
}

// Engine is the query-side orchestrator.
type Engine struct {
	cfg       Config
	planner   QueryPlanner
	generator AnswerGenerator
	verifier  Verifier
	index     DocumentIndex
	embedder  embedding.Provider
	collector *metrics.Collector
	logger    *zap.Logger
}

// New creates the engine. collector may be nil to disable instrumentation.
func New(cfg Config, qp QueryPlanner, gen AnswerGenerator, ver Verifier, idx DocumentIndex,
	embedder embedding.Provider, collector *metrics.Collector, logger *zap.Logger) *Engine {
	if cfg.DefaultSamples <= 0 {
		cfg.DefaultSamples = 3
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = 10
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 5
	}
	if cfg.MaxQuestionLen <= 0 {
		cfg.MaxQuestionLen = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		planner:   qp,
		generator: gen,
		verifier:  ver,
		index:     idx,
		embedder:  embedder,
		collector: collector,
		logger:    logger.With(zap.String("component", "engine")),
	}
}

// PlanAndAnswer answers a question against the tenant's corpus: plan,
// execute hops, generate a consensus answer over the accumulated evidence,
// and verify the answer's claims. Cancelling ctx aborts all in-flight work.
func (e *Engine) PlanAndAnswer(ctx context.Context, question, tenantID string, opts Options) (*types.Answer, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, types.NewError(types.KindValidation, "question is empty")
	}
	if len(question) > e.cfg.MaxQuestionLen {
		return nil, types.Errorf(types.KindValidation, "question exceeds %d characters", e.cfg.MaxQuestionLen)
	}
	if tenantID == "" {
		return nil, types.NewError(types.KindValidation, "tenant id is required")
	}
	if opts.SampleCount < 0 {
		return nil, types.NewError(types.KindValidation, "sample count must not be negative")
	}
	if opts.SampleCount == 0 {
		opts.SampleCount = e.cfg.DefaultSamples
	}
	if opts.SampleCount > e.cfg.MaxSamples {
		opts.SampleCount = e.cfg.MaxSamples
	}

	answer, err := e.answer(ctx, question, tenantID, opts)

	status := "ok"
	if err != nil {
		status = "error"
	}
	if e.collector != nil {
		hops := 0
		if answer != nil {
			hops = answer.HopCount
		}
		e.collector.ObserveQuery(tenantID, status, time.Since(start), hops)
	}
	if err != nil {
		e.logger.Warn("query failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return nil, err
	}

	answer.Duration = time.Since(start)
	e.logger.Info("query answered",
		zap.String("tenant_id", tenantID),
		zap.String("query_id", answer.QueryID),
		zap.Int("hop_count", answer.HopCount),
		zap.Float64("confidence", answer.Confidence),
		zap.Duration("duration", answer.Duration))
	return answer, nil
}

func (e *Engine) answer(ctx context.Context, question, tenantID string, opts Options) (*types.Answer, error) {
	plan, err := e.planner.Plan(ctx, question)
	if err != nil {
		return nil, err
	}

	exec, err := e.planner.Execute(ctx, tenantID, plan)
	if err != nil {
		return nil, err
	}
	answer := &types.Answer{
		QueryID:  plan.QueryID,
		HopCount: len(exec.Hops),
		Sources:  capSources(exec.Sources, e.cfg.MaxSources),
	}

	// a single-hop query with no evidence gets the canned reply without
	// burning a generation; multi-hop queries proceed, the model may still
	// synthesize something useful from partial hops
	if len(plan.SubQueries) == 1 && len(exec.Sources) == 0 {
		answer.Answer = noEvidenceAnswer
		answer.Confidence = 0
		answer.Verification = e.verifyIfEnabled(answer.Answer, exec.Sources, opts)
		return answer, nil
	}

	result, err := e.generator.Answer(ctx, question, exec.Context, opts.SampleCount, opts.UseCoT || e.cfg.UseCoT)
	if err != nil {
		return nil, err
	}
	if e.collector != nil {
		e.collector.AddDroppedSamples(result.SampleCount - len(result.Traces))
	}

	answer.Answer = result.Answer
	answer.Confidence = result.Confidence
	answer.Traces = result.Traces

	// claims are checked against everything the hops retrieved, not just the
	// capped source list returned to the caller: a claim supported only by a
	// lower-ranked passage still verifies
	answer.Verification = e.verifyIfEnabled(answer.Answer, exec.Sources, opts)
	if v := answer.Verification; v != nil && v.TotalClaims > 0 {
		// unsupported claims degrade confidence but never fail the call
		answer.Confidence *= 0.5 + 0.5*v.Confidence
		if e.collector != nil {
			e.collector.ObserveVerification(len(v.VerifiedClaims), len(v.UnverifiedClaims))
		}
	}
	return answer, nil
}

func (e *Engine) verifyIfEnabled(answer string, sources []types.RankedCandidate, opts Options) *types.VerificationResult {
	if opts.SkipVerify || e.verifier == nil {
		return nil
	}
	return e.verifier.Verify(answer, sources)
}

func capSources(sources []types.RankedCandidate, max int) []types.RankedCandidate {
	if len(sources) <= max {
		return sources
	}
	return sources[:max]
}
