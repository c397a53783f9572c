package consensus

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoplite-ai/hoplite/llm"
	"github.com/hoplite-ai/hoplite/types"
)

// scriptedLLM returns canned responses in call order; a response of "ERR"
// fails that call.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	calls     int
	prompts   []string
	temps     []float64
}

func (s *scriptedLLM) Generate(_ context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, req.Prompt)
	s.temps = append(s.temps, req.Temperature)
	if i >= len(s.responses) {
		return nil, types.NewError(types.KindProvider, "no scripted response")
	}
	if s.responses[i] == "ERR" {
		return nil, types.NewError(types.KindProvider, "scripted failure").WithRetryable(true)
	}
	return &llm.GenerateResponse{Text: s.responses[i], Provider: "scripted"}, nil
}

func (s *scriptedLLM) Name() string { return "scripted" }

func TestConsensusMajorityVote(t *testing.T) {
	traces := []types.ReasoningTrace{
		{TraceID: "t1", Answer: "Paris", Confidence: 0.8},
		{TraceID: "t2", Answer: "paris ", Confidence: 0.7},
		{TraceID: "t3", Answer: "Lyon", Confidence: 0.9},
	}

	result := findConsensus(traces)
	assert.Equal(t, "Paris", result.Answer, "verbatim from the first matching trace")
	assert.InDelta(t, 2.0/3.0, result.AgreementScore, 1e-9)
	assert.InDelta(t, (2.0/3.0+0.8)/2, result.Confidence, 1e-9)
}

func TestConsensusAllAgree(t *testing.T) {
	traces := []types.ReasoningTrace{
		{Answer: "42", Confidence: 1.0},
		{Answer: "42", Confidence: 1.0},
	}
	result := findConsensus(traces)
	assert.Equal(t, 1.0, result.AgreementScore)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestSingleSampleNoContext(t *testing.T) {
	provider := &scriptedLLM{responses: []string{"Answer: 4"}}
	o := New(DefaultConfig(), provider, nil)

	result, err := o.Answer(context.Background(), "What is 2+2?", "", 1, false)
	require.NoError(t, err)
	assert.Equal(t, "4", result.Answer)
	assert.Zero(t, result.AgreementScore, "single sample has no agreement score")
	assert.Equal(t, 1, result.SampleCount)
	require.Len(t, result.Traces, 1)
	assert.Equal(t, result.Traces[0].Confidence, result.Confidence,
		"single-sample confidence comes purely from trace heuristics")
}

func TestMultiSampleConsensus(t *testing.T) {
	provider := &scriptedLLM{responses: []string{
		"Reasoning: capital cities are well known\nAnswer: Paris",
		"Reasoning: France's capital\nAnswer: Paris",
		"Answer: Lyon",
	}}
	o := New(DefaultConfig(), provider, nil)

	result, err := o.Answer(context.Background(), "What is the capital of France?", "", 3, true)
	require.NoError(t, err)
	assert.Equal(t, "Paris", result.Answer)
	assert.InDelta(t, 2.0/3.0, result.AgreementScore, 1e-9)
	assert.Equal(t, 3, result.SampleCount)
	assert.Len(t, result.Traces, 3)
	assert.Equal(t, 3, provider.calls)
}

func TestTemperatureStaggering(t *testing.T) {
	provider := &scriptedLLM{responses: []string{"Answer: a", "Answer: a", "Answer: a"}}
	cfg := DefaultConfig()
	o := New(cfg, provider, nil)

	_, err := o.Answer(context.Background(), "q", "", 3, false)
	require.NoError(t, err)

	temps := append([]float64(nil), provider.temps...)
	sort.Float64s(temps)
	require.Len(t, temps, 3)
	assert.InDelta(t, 0.7, temps[0], 1e-9)
	assert.InDelta(t, 0.8, temps[1], 1e-9)
	assert.InDelta(t, 0.9, temps[2], 1e-9)
}

func TestPartialFailureTolerated(t *testing.T) {
	provider := &scriptedLLM{responses: []string{"Answer: yes", "ERR", "Answer: yes"}}
	o := New(DefaultConfig(), provider, nil)

	result, err := o.Answer(context.Background(), "q", "", 3, false)
	require.NoError(t, err)
	assert.Equal(t, "yes", result.Answer)
	assert.Len(t, result.Traces, 2, "the failed sample is dropped, not retried")
	assert.Equal(t, 1.0, result.AgreementScore)
	assert.Equal(t, 3, result.SampleCount)
}

func TestAllSamplesFailed(t *testing.T) {
	provider := &scriptedLLM{responses: []string{"ERR", "ERR", "ERR"}}
	o := New(DefaultConfig(), provider, nil)

	_, err := o.Answer(context.Background(), "q", "", 3, false)
	require.Error(t, err)
	assert.Equal(t, types.KindGeneration, types.KindOf(err))
}

func TestContextIncludedInPrompt(t *testing.T) {
	provider := &scriptedLLM{responses: []string{"Answer: from evidence"}}
	o := New(DefaultConfig(), provider, nil)

	_, err := o.Answer(context.Background(), "q", "the refund window is 30 days", 1, true)
	require.NoError(t, err)
	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "refund window")
	assert.Contains(t, provider.prompts[0], "step by step")
}

func TestEmptyQuestionRejected(t *testing.T) {
	o := New(DefaultConfig(), &scriptedLLM{}, nil)
	_, err := o.Answer(context.Background(), " ", "", 1, false)
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestParseResponse(t *testing.T) {
	answer, reasoning := parseResponse("Reasoning: step one\nstep two\nAnswer: Paris")
	assert.Equal(t, "Paris", answer)
	assert.Equal(t, "step one\nstep two", reasoning)

	answer, reasoning = parseResponse("just a bare reply")
	assert.Equal(t, "just a bare reply", answer)
	assert.Empty(t, reasoning)

	answer, _ = parseResponse("Answer: first line\ntrailing noise")
	assert.Equal(t, "first line", answer)
}

func TestParseSteps(t *testing.T) {
	steps := parseSteps("1. look up the capital\n2) confirm with evidence\n- cross-check\nplain line")
	assert.Equal(t, []string{"look up the capital", "confirm with evidence", "cross-check"}, steps)
}

func TestTraceConfidenceHedgingPenalty(t *testing.T) {
	long := strings.Repeat("a", 100)
	confident := traceConfidence(long, strings.Repeat("b", 500))
	assert.Equal(t, 1.0, confident)

	hedged := traceConfidence("maybe "+long, strings.Repeat("b", 500))
	assert.InDelta(t, 0.8, hedged, 1e-9)

	doubleHedged := traceConfidence("maybe, perhaps "+long, strings.Repeat("b", 500))
	assert.InDelta(t, 0.64, doubleHedged, 1e-9)

	assert.Equal(t, 0.0, traceConfidence("", ""))
}
