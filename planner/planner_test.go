package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hoplite-ai/hoplite/llm"
	"github.com/hoplite-ai/hoplite/types"
)

type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Generate(_ context.Context, _ *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResponse{Text: f.response}, nil
}

func (f *fakeLLM) Name() string { return "fake" }

func newTestPlanner(provider llm.Provider) *Planner {
	return New(DefaultConfig(), provider, nil, nil, nil)
}

func TestAnalyzeComplexityLevels(t *testing.T) {
	high := AnalyzeComplexity("Compare the pricing and support of Vendor A and Vendor B")
	assert.Equal(t, types.ComplexityHigh, high.Level)
	assert.True(t, high.RequiresMultiHop)
	assert.True(t, high.Indicators["comparison"])
	assert.True(t, high.Indicators["multi_part"])

	low := AnalyzeComplexity("What is 2+2?")
	assert.Equal(t, types.ComplexityLow, low.Level)
	assert.False(t, low.RequiresMultiHop)
	assert.LessOrEqual(t, low.Score, 0.25)
}

func TestAnalyzeComplexityBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		question := rapid.StringN(0, 200, 200).Draw(t, "question")
		c := AnalyzeComplexity(question)
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
		assert.Equal(t, c.Score >= 0.5, c.RequiresMultiHop)
	})
}

func TestPlanCompareTemplate(t *testing.T) {
	provider := &fakeLLM{err: errors.New("should not be called")}
	p := newTestPlanner(provider)

	plan, err := p.Plan(context.Background(), "Compare the pricing and support of Vendor A and Vendor B")
	require.NoError(t, err)
	require.Len(t, plan.SubQueries, 3)
	assert.Zero(t, provider.calls, "template decomposition must not consult the LLM")

	byID := map[string]types.SubQuery{}
	for _, sq := range plan.SubQueries {
		byID[sq.ID] = sq
	}

	compare := byID["sq-3"]
	assert.Equal(t, types.SubQueryCompare, compare.Type)
	assert.ElementsMatch(t, []string{"sq-1", "sq-2"}, compare.DependsOn)
	assert.Contains(t, compare.Text, "Vendor A")
	assert.Contains(t, compare.Text, "Vendor B")

	// both lookups are scheduled before the compare hop
	assert.Equal(t, "sq-3", plan.SubQueries[2].ID)
	assert.Equal(t, types.SubQueryRetrieve, plan.SubQueries[0].Type)
	assert.Equal(t, types.SubQueryRetrieve, plan.SubQueries[1].Type)
}

func TestPlanSimpleQuestionIsDirect(t *testing.T) {
	p := newTestPlanner(&fakeLLM{err: errors.New("unused")})

	plan, err := p.Plan(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	require.Len(t, plan.SubQueries, 1)
	assert.Equal(t, types.SubQueryDirect, plan.SubQueries[0].Type)
	assert.Equal(t, "What is the capital of France?", plan.SubQueries[0].Text)
}

func TestPlanEmptyQuestionRejected(t *testing.T) {
	p := newTestPlanner(&fakeLLM{})

	_, err := p.Plan(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestPlanLLMDecomposition(t *testing.T) {
	provider := &fakeLLM{response: `Here is the decomposition:

Sub-query 1: When did the contract start?
Type: retrieve
Priority: 1
Dependencies: none

Sub-query 2: Extract the renewal date
Type: extraction
Priority: garbage
Dependencies: 1
`}
	p := newTestPlanner(provider)

	// multi-hop but matches no template
	plan, err := p.Plan(context.Background(), "When did the contract start and when must we renew before the deadline?")
	require.NoError(t, err)
	require.Len(t, plan.SubQueries, 2)
	assert.Equal(t, 1, provider.calls)

	assert.Equal(t, "When did the contract start?", plan.SubQueries[0].Text)
	assert.Equal(t, types.SubQueryRetrieve, plan.SubQueries[0].Type)

	second := plan.SubQueries[1]
	assert.Equal(t, types.SubQueryExtract, second.Type)
	assert.Equal(t, 1, second.Priority, "garbled priority defaults to 1")
	assert.Equal(t, []string{"sq-1"}, second.DependsOn)
}

func TestPlanConjunctionFallback(t *testing.T) {
	p := newTestPlanner(&fakeLLM{err: errors.New("llm down")})

	plan, err := p.Plan(context.Background(), "List every active vendor and count all open contracts")
	require.NoError(t, err)
	require.Len(t, plan.SubQueries, 2)
	assert.Equal(t, "List every active vendor", plan.SubQueries[0].Text)
	assert.Equal(t, "count all open contracts", plan.SubQueries[1].Text)
	assert.NotEmpty(t, plan.Anomalies)
}

func TestPlanDirectFallbackWhenNothingParses(t *testing.T) {
	p := newTestPlanner(&fakeLLM{response: "no structure here at all"})

	plan, err := p.Plan(context.Background(), "Why would the highest total differ if every previous count also changed?")
	require.NoError(t, err)
	require.NotEmpty(t, plan.SubQueries)
	assert.NotEmpty(t, plan.Anomalies)
}

func TestParseDecompositionLenient(t *testing.T) {
	subQueries := parseDecomposition(`
Sub-query 1: [Find the vendor list]
Type: [retrieval]
Priority: [2]
Dependencies: [none]

Sub-query 2: Compare them
Type: comparison
Dependencies: 1, 2
`)
	require.Len(t, subQueries, 2)
	assert.Equal(t, "Find the vendor list", subQueries[0].Text)
	assert.Equal(t, types.SubQueryRetrieve, subQueries[0].Type)
	assert.Equal(t, 2, subQueries[0].Priority)
	assert.Empty(t, subQueries[0].DependsOn)

	assert.Equal(t, types.SubQueryCompare, subQueries[1].Type)
	assert.Equal(t, []string{"sq-1", "sq-2"}, subQueries[1].DependsOn)
}

func TestParseDecompositionEmpty(t *testing.T) {
	assert.Empty(t, parseDecomposition("free-form prose without any markers"))
}

func TestScheduleBreaksCycles(t *testing.T) {
	plan := &types.ExecutionPlan{}
	ordered := scheduleSubQueries([]types.SubQuery{
		{ID: "a", Priority: 1, DependsOn: []string{"b"}},
		{ID: "b", Priority: 2, DependsOn: []string{"a"}},
	}, plan)

	require.Len(t, ordered, 2)
	assert.Equal(t, "a", ordered[0].ID, "highest priority wins the deadlock break")
	assert.NotEmpty(t, plan.Anomalies)
}

func TestScheduleTopologicalProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(t, "n")
		subQueries := make([]types.SubQuery, n)
		for i := range subQueries {
			var deps []string
			if i > 0 {
				for _, j := range rapid.SliceOfN(rapid.IntRange(0, i-1), 0, i).Draw(t, fmt.Sprintf("deps%d", i)) {
					deps = append(deps, fmt.Sprintf("sq-%d", j))
				}
			}
			subQueries[i] = types.SubQuery{
				ID:        fmt.Sprintf("sq-%d", i),
				Text:      fmt.Sprintf("question %d", i),
				Type:      types.SubQueryRetrieve,
				Priority:  rapid.IntRange(1, 3).Draw(t, fmt.Sprintf("prio%d", i)),
				DependsOn: deps,
			}
		}

		plan := &types.ExecutionPlan{}
		ordered := scheduleSubQueries(subQueries, plan)
		require.Len(t, ordered, n)
		assert.Empty(t, plan.Anomalies, "a DAG never needs force-scheduling")

		pos := map[string]int{}
		for i, sq := range ordered {
			pos[sq.ID] = i
		}
		for _, sq := range ordered {
			for _, dep := range sq.DependsOn {
				assert.Less(t, pos[dep], pos[sq.ID],
					"%s must be scheduled before %s", dep, sq.ID)
			}
		}
	})
}
