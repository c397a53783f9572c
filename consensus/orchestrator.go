// Package consensus drives self-consistency answer generation: several
// reasoning traces are sampled concurrently at staggered temperatures, then
// reconciled by majority vote into a single answer with a confidence score.
package consensus

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/internal/textutil"
	"github.com/hoplite-ai/hoplite/llm"
	"github.com/hoplite-ai/hoplite/types"
)

// Config configures sampling.
type Config struct {
	SampleCount     int     `yaml:"sample_count" json:"sample_count"`
	BaseTemperature float64 `yaml:"base_temperature" json:"base_temperature"`
	TemperatureStep float64 `yaml:"temperature_step" json:"temperature_step"` // per-sample increment for diversity
	MaxTokens       int     `yaml:"max_tokens" json:"max_tokens"`
}

// DefaultConfig returns the default consensus configuration.
func DefaultConfig() Config {
	return Config{
		SampleCount:     3,
		BaseTemperature: 0.7,
		TemperatureStep: 0.1,
		MaxTokens:       1000,
	}
}

// Orchestrator generates and reconciles reasoning traces.
type Orchestrator struct {
	cfg      Config
	provider llm.Provider
	logger   *zap.Logger
}

// New creates a consensus orchestrator.
func New(cfg Config, provider llm.Provider, logger *zap.Logger) *Orchestrator {
	if cfg.SampleCount <= 0 {
		cfg.SampleCount = 3
	}
	if cfg.BaseTemperature <= 0 {
		cfg.BaseTemperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		provider: provider,
		logger:   logger.With(zap.String("component", "consensus_orchestrator")),
	}
}

// Answer generates sampleCount reasoning traces for the question over the
// given evidence context and reconciles them. Empty context is a valid
// input: the model answers from its own knowledge and the caller decides
// how much to trust it. Individual sample failures are dropped; the call
// fails only when every sample failed.
func (o *Orchestrator) Answer(ctx context.Context, question, evidence string, sampleCount int, useCoT bool) (*types.ConsensusResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, types.NewError(types.KindValidation, "question is empty")
	}
	if sampleCount <= 0 {
		sampleCount = o.cfg.SampleCount
	}

	if sampleCount == 1 {
		trace, err := o.generateTrace(ctx, question, evidence, o.cfg.BaseTemperature, useCoT)
		if err != nil {
			return nil, types.NewError(types.KindGeneration, "the only sample failed").WithCause(err)
		}
		return &types.ConsensusResult{
			Answer:      trace.Answer,
			Reasoning:   trace.Reasoning,
			Confidence:  trace.Confidence,
			Traces:      []types.ReasoningTrace{*trace},
			SampleCount: 1,
		}, nil
	}

	traces := o.generateConcurrently(ctx, question, evidence, sampleCount, useCoT)
	if len(traces) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, types.Errorf(types.KindGeneration, "all %d samples failed", sampleCount)
	}

	result := findConsensus(traces)
	result.SampleCount = sampleCount

	o.logger.Info("consensus reached",
		zap.Int("requested_samples", sampleCount),
		zap.Int("successful_samples", len(traces)),
		zap.Float64("agreement", result.AgreementScore),
		zap.Float64("confidence", result.Confidence))
	return result, nil
}

// generateConcurrently fans out sampleCount generations and collects the
// ones that succeeded. Each sample gets a distinct temperature and a fresh
// trace id; a failed sample is dropped, not retried.
func (o *Orchestrator) generateConcurrently(ctx context.Context, question, evidence string, sampleCount int, useCoT bool) []types.ReasoningTrace {
	results := make([]*types.ReasoningTrace, sampleCount)

	var wg sync.WaitGroup
	for i := 0; i < sampleCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			temp := o.cfg.BaseTemperature + float64(i)*o.cfg.TemperatureStep
			trace, err := o.generateTrace(ctx, question, evidence, temp, useCoT)
			if err != nil {
				o.logger.Warn("sample dropped",
					zap.Int("sample", i),
					zap.Float64("temperature", temp),
					zap.Error(err))
				return
			}
			results[i] = trace
		}()
	}
	wg.Wait()

	traces := make([]types.ReasoningTrace, 0, sampleCount)
	for _, t := range results {
		if t != nil {
			traces = append(traces, *t)
		}
	}
	return traces
}

func (o *Orchestrator) generateTrace(ctx context.Context, question, evidence string, temperature float64, useCoT bool) (*types.ReasoningTrace, error) {
	traceID := uuid.NewString()

	resp, err := o.provider.Generate(ctx, &llm.GenerateRequest{
		TraceID:     traceID,
		Prompt:      buildPrompt(question, evidence, useCoT),
		Temperature: temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	answer, reasoning := parseResponse(resp.Text)
	trace := &types.ReasoningTrace{
		TraceID:     traceID,
		Answer:      answer,
		Reasoning:   reasoning,
		Steps:       parseSteps(reasoning),
		Confidence:  traceConfidence(answer, reasoning),
		Temperature: temperature,
	}
	return trace, nil
}

func buildPrompt(question, evidence string, useCoT bool) string {
	var b strings.Builder
	b.WriteString("You are an assistant answering questions from retrieved evidence.\n\n")
	b.WriteString("Question: " + question + "\n")
	if evidence != "" {
		b.WriteString("\nContext:\n" + evidence + "\n")
	}
	if useCoT {
		b.WriteString(`
Work through the question step by step, then give your final answer.

Format your response as:
Reasoning: [your step-by-step reasoning]
Answer: [your final answer]`)
	} else {
		b.WriteString("\nAnswer concisely. Format your response as:\nAnswer: [your answer]")
	}
	return b.String()
}

// parseResponse splits a generation into answer and reasoning. Without an
// "Answer:" marker the whole response is the answer and reasoning is empty.
func parseResponse(response string) (answer, reasoning string) {
	response = strings.TrimSpace(response)

	idx := strings.LastIndex(response, "Answer:")
	if idx < 0 {
		return response, ""
	}

	answer = strings.TrimSpace(response[idx+len("Answer:"):])
	if nl := strings.IndexByte(answer, '\n'); nl >= 0 {
		answer = strings.TrimSpace(answer[:nl])
	}

	reasoning = response[:idx]
	if ridx := strings.Index(reasoning, "Reasoning:"); ridx >= 0 {
		reasoning = reasoning[ridx+len("Reasoning:"):]
	}
	return answer, strings.TrimSpace(reasoning)
}

// parseSteps pulls numbered or bulleted lines out of the reasoning text.
func parseSteps(reasoning string) []string {
	var steps []string
	for _, line := range strings.Split(reasoning, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") ||
			(line[0] >= '1' && line[0] <= '9' && strings.ContainsAny(line[:minInt(3, len(line))], ".)")) {
			steps = append(steps, strings.TrimLeft(line, "-*0123456789.) "))
		}
	}
	return steps
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// hedgingPhrases each multiply a trace's confidence by 0.8 when present.
var hedgingPhrases = []string{
	"maybe", "perhaps", "might", "could", "possibly",
	"unclear", "uncertain", "not sure", "don't know",
}

// traceConfidence scores one trace from answer and reasoning length, with a
// compounding 0.8 penalty per distinct hedging phrase detected.
func traceConfidence(answer, reasoning string) float64 {
	answerConf := float64(len(answer)) / 100
	if answerConf > 1 {
		answerConf = 1
	}
	reasoningConf := float64(len(reasoning)) / 500
	if reasoningConf > 1 {
		reasoningConf = 1
	}

	penalty := 1.0
	text := strings.ToLower(answer + " " + reasoning)
	for _, phrase := range hedgingPhrases {
		if strings.Contains(text, phrase) {
			penalty *= 0.8
		}
	}

	return textutil.Clamp01((answerConf + reasoningConf) / 2 * penalty)
}

// findConsensus reconciles traces by majority vote over normalized answers.
// The returned answer and reasoning are taken verbatim from the first trace
// whose normalized answer matches the winning vote, preserving the original
// casing and wording.
func findConsensus(traces []types.ReasoningTrace) *types.ConsensusResult {
	votes := make(map[string]int, len(traces))
	for _, t := range traces {
		votes[normalizeAnswer(t.Answer)]++
	}

	winner := ""
	winnerVotes := 0
	for _, t := range traces {
		key := normalizeAnswer(t.Answer)
		if votes[key] > winnerVotes {
			winner = key
			winnerVotes = votes[key]
		}
	}

	var best *types.ReasoningTrace
	for i := range traces {
		if normalizeAnswer(traces[i].Answer) == winner {
			best = &traces[i]
			break
		}
	}

	agreement := float64(winnerVotes) / float64(len(traces))

	var confSum float64
	for _, t := range traces {
		confSum += t.Confidence
	}
	avgConf := confSum / float64(len(traces))

	return &types.ConsensusResult{
		Answer:         best.Answer,
		Reasoning:      best.Reasoning,
		Confidence:     textutil.Clamp01((agreement + avgConf) / 2),
		AgreementScore: agreement,
		Traces:         traces,
	}
}

func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
