package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/planner"
	"github.com/hoplite-ai/hoplite/types"
)

type fakePlanner struct {
	plan    *types.ExecutionPlan
	exec    *planner.Execution
	planErr error
	execErr error

	gotTenant string
}

func (f *fakePlanner) Plan(ctx context.Context, question string) (*types.ExecutionPlan, error) {
	if f.planErr != nil {
		return nil, f.planErr
	}
	return f.plan, nil
}

func (f *fakePlanner) Execute(ctx context.Context, tenantID string, plan *types.ExecutionPlan) (*planner.Execution, error) {
	f.gotTenant = tenantID
	if f.execErr != nil {
		return nil, f.execErr
	}
	return f.exec, nil
}

type fakeGenerator struct {
	result *types.ConsensusResult
	err    error

	called      bool
	gotEvidence string
	gotSamples  int
	gotCoT      bool
}

func (f *fakeGenerator) Answer(ctx context.Context, question, evidence string, sampleCount int, useCoT bool) (*types.ConsensusResult, error) {
	f.called = true
	f.gotEvidence = evidence
	f.gotSamples = sampleCount
	f.gotCoT = useCoT
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeVerifier struct {
	result *types.VerificationResult

	called     bool
	gotAnswer  string
	gotSources []types.RankedCandidate
}

func (f *fakeVerifier) Verify(answer string, sources []types.RankedCandidate) *types.VerificationResult {
	f.called = true
	f.gotAnswer = answer
	f.gotSources = sources
	return f.result
}

type fakeIndex struct {
	addErr  error
	removed int

	added   []*types.Chunk
	deleted []string
	stats   types.TenantStats
}

func (f *fakeIndex) AddChunks(ctx context.Context, tenantID string, chunks []*types.Chunk) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, chunks...)
	return nil
}

func (f *fakeIndex) DeleteDocument(ctx context.Context, tenantID, docID string) (int, error) {
	f.deleted = append(f.deleted, docID)
	return f.removed, nil
}

func (f *fakeIndex) Stats(tenantID string) types.TenantStats { return f.stats }
func (f *fakeIndex) ListTenants() []string                   { return []string{"acme", "globex"} }
func (f *fakeIndex) Dimension() int                          { return 4 }

type fakeEmbedder struct {
	err  error
	dims int

	gotTexts []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotTexts = append(f.gotTexts, texts...)
	out := make([][]float64, len(texts))
	for i := range texts {
		vec := make([]float64, f.dims)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }
func (f *fakeEmbedder) Name() string    { return "fake" }

func ranked(id, text string, score float64) types.RankedCandidate {
	return types.RankedCandidate{
		RetrievedCandidate: types.RetrievedCandidate{ChunkID: id, Text: text, Score: score},
	}
}

func directPlan(question string) *types.ExecutionPlan {
	return &types.ExecutionPlan{
		QueryID:  "q-1",
		Question: question,
		SubQueries: []types.SubQuery{
			{ID: "sq-1", Text: question, Type: types.SubQueryDirect, Priority: 1},
		},
	}
}

func newTestEngine(p QueryPlanner, g AnswerGenerator, v Verifier, idx DocumentIndex, emb *fakeEmbedder) *Engine {
	if emb == nil {
		return New(DefaultConfig(), p, g, v, idx, nil, nil, zap.NewNop())
	}
	return New(DefaultConfig(), p, g, v, idx, emb, nil, zap.NewNop())
}

func TestPlanAndAnswerHappyPath(t *testing.T) {
	sources := []types.RankedCandidate{ranked("c1", "the refund window is 30 days", 0.9)}
	p := &fakePlanner{
		plan: directPlan("What is the refund window?"),
		exec: &planner.Execution{
			Hops:    []types.HopResult{{SubQueryID: "sq-1", Type: types.SubQueryDirect, Results: sources}},
			Sources: sources,
			Context: "- the refund window is 30 days",
		},
	}
	g := &fakeGenerator{result: &types.ConsensusResult{
		Answer:      "The refund window is 30 days.",
		Confidence:  0.8,
		Traces:      []types.ReasoningTrace{{TraceID: "t1", Answer: "The refund window is 30 days."}},
		SampleCount: 3,
	}}
	v := &fakeVerifier{result: &types.VerificationResult{
		Verified:       true,
		Confidence:     1.0,
		TotalClaims:    1,
		VerifiedClaims: []string{"The refund window is 30 days"},
	}}

	e := newTestEngine(p, g, v, &fakeIndex{}, nil)
	answer, err := e.PlanAndAnswer(context.Background(), "What is the refund window?", "acme", Options{})
	require.NoError(t, err)

	assert.Equal(t, "q-1", answer.QueryID)
	assert.Equal(t, "The refund window is 30 days.", answer.Answer)
	assert.Equal(t, 1, answer.HopCount)
	assert.Len(t, answer.Sources, 1)
	require.NotNil(t, answer.Verification)
	assert.True(t, answer.Verification.Verified)
	// fully verified: confidence passes through undamped
	assert.InDelta(t, 0.8, answer.Confidence, 1e-9)
	assert.Equal(t, "acme", p.gotTenant)
	assert.Equal(t, "- the refund window is 30 days", g.gotEvidence)
	assert.Equal(t, 3, g.gotSamples)
}

func TestPlanAndAnswerNoEvidenceSingleHop(t *testing.T) {
	p := &fakePlanner{
		plan: directPlan("What is the warranty?"),
		exec: &planner.Execution{
			Hops: []types.HopResult{{SubQueryID: "sq-1", Type: types.SubQueryDirect}},
		},
	}
	g := &fakeGenerator{}

	e := newTestEngine(p, g, &fakeVerifier{result: &types.VerificationResult{Verified: true, Confidence: 1}}, &fakeIndex{}, nil)
	answer, err := e.PlanAndAnswer(context.Background(), "What is the warranty?", "acme", Options{})
	require.NoError(t, err)

	assert.Equal(t, noEvidenceAnswer, answer.Answer)
	assert.Zero(t, answer.Confidence)
	assert.Empty(t, answer.Sources)
	assert.False(t, g.called, "no generation should happen without evidence")
}

func TestPlanAndAnswerMultiHopGeneratesDespiteNoSources(t *testing.T) {
	p := &fakePlanner{
		plan: &types.ExecutionPlan{
			QueryID:  "q-2",
			Question: "Compare A and B",
			SubQueries: []types.SubQuery{
				{ID: "sq-1", Text: "A", Type: types.SubQueryRetrieve, Priority: 1},
				{ID: "sq-2", Text: "B", Type: types.SubQueryRetrieve, Priority: 2},
			},
		},
		exec: &planner.Execution{
			Hops: []types.HopResult{
				{SubQueryID: "sq-1", Type: types.SubQueryRetrieve},
				{SubQueryID: "sq-2", Type: types.SubQueryRetrieve},
			},
		},
	}
	g := &fakeGenerator{result: &types.ConsensusResult{Answer: "No documents mention either.", Confidence: 0.2, SampleCount: 3}}

	e := newTestEngine(p, g, nil, &fakeIndex{}, nil)
	answer, err := e.PlanAndAnswer(context.Background(), "Compare A and B", "acme", Options{})
	require.NoError(t, err)

	assert.True(t, g.called)
	assert.Equal(t, "No documents mention either.", answer.Answer)
	assert.Equal(t, 2, answer.HopCount)
}

func TestPlanAndAnswerSourceCap(t *testing.T) {
	var sources []types.RankedCandidate
	for i := 0; i < 9; i++ {
		sources = append(sources, ranked(strings.Repeat("c", i+1), "text", 0.9))
	}
	p := &fakePlanner{
		plan: directPlan("q"),
		exec: &planner.Execution{
			Hops:    []types.HopResult{{SubQueryID: "sq-1", Type: types.SubQueryDirect, Results: sources}},
			Sources: sources,
			Context: "ctx",
		},
	}
	g := &fakeGenerator{result: &types.ConsensusResult{Answer: "a", Confidence: 0.5, SampleCount: 3}}

	e := newTestEngine(p, g, nil, &fakeIndex{}, nil)
	answer, err := e.PlanAndAnswer(context.Background(), "what is the policy", "acme", Options{})
	require.NoError(t, err)
	assert.Len(t, answer.Sources, 5)
	assert.Equal(t, "c", answer.Sources[0].ChunkID)
}

func TestPlanAndAnswerVerifiesAgainstAllSources(t *testing.T) {
	var sources []types.RankedCandidate
	for i := 0; i < 9; i++ {
		sources = append(sources, ranked(strings.Repeat("c", i+1), "text", 0.9))
	}
	p := &fakePlanner{
		plan: directPlan("q"),
		exec: &planner.Execution{
			Hops:    []types.HopResult{{SubQueryID: "sq-1", Type: types.SubQueryDirect, Results: sources}},
			Sources: sources,
			Context: "ctx",
		},
	}
	g := &fakeGenerator{result: &types.ConsensusResult{Answer: "a", Confidence: 0.5, SampleCount: 3}}
	v := &fakeVerifier{result: &types.VerificationResult{Verified: true, Confidence: 1, TotalClaims: 1}}

	e := newTestEngine(p, g, v, &fakeIndex{}, nil)
	answer, err := e.PlanAndAnswer(context.Background(), "what is the policy", "acme", Options{})
	require.NoError(t, err)

	// the caller gets the capped list, the verifier sees every retrieved
	// passage so lower-ranked evidence still counts
	assert.Len(t, answer.Sources, 5)
	assert.Len(t, v.gotSources, 9)
}

func TestPlanAndAnswerVerificationDegradesConfidence(t *testing.T) {
	sources := []types.RankedCandidate{ranked("c1", "text", 0.9)}
	p := &fakePlanner{
		plan: directPlan("q"),
		exec: &planner.Execution{
			Hops:    []types.HopResult{{SubQueryID: "sq-1", Type: types.SubQueryDirect, Results: sources}},
			Sources: sources,
			Context: "ctx",
		},
	}
	g := &fakeGenerator{result: &types.ConsensusResult{Answer: "a", Confidence: 0.8, SampleCount: 3}}
	v := &fakeVerifier{result: &types.VerificationResult{
		Verified:    false,
		Confidence:  0.5,
		TotalClaims: 2,
	}}

	e := newTestEngine(p, g, v, &fakeIndex{}, nil)
	answer, err := e.PlanAndAnswer(context.Background(), "what is the policy", "acme", Options{})
	require.NoError(t, err)

	// 0.8 * (0.5 + 0.5*0.5)
	assert.InDelta(t, 0.6, answer.Confidence, 1e-9)
	assert.False(t, answer.Verification.Verified)
}

func TestPlanAndAnswerSkipVerify(t *testing.T) {
	sources := []types.RankedCandidate{ranked("c1", "text", 0.9)}
	p := &fakePlanner{
		plan: directPlan("q"),
		exec: &planner.Execution{
			Hops:    []types.HopResult{{SubQueryID: "sq-1", Type: types.SubQueryDirect, Results: sources}},
			Sources: sources,
			Context: "ctx",
		},
	}
	g := &fakeGenerator{result: &types.ConsensusResult{Answer: "a", Confidence: 0.8, SampleCount: 3}}
	v := &fakeVerifier{result: &types.VerificationResult{Verified: false, Confidence: 0, TotalClaims: 1}}

	e := newTestEngine(p, g, v, &fakeIndex{}, nil)
	answer, err := e.PlanAndAnswer(context.Background(), "what is the policy", "acme", Options{SkipVerify: true})
	require.NoError(t, err)

	assert.False(t, v.called)
	assert.Nil(t, answer.Verification)
	assert.InDelta(t, 0.8, answer.Confidence, 1e-9)
}

func TestPlanAndAnswerValidation(t *testing.T) {
	e := newTestEngine(&fakePlanner{}, &fakeGenerator{}, nil, &fakeIndex{}, nil)

	_, err := e.PlanAndAnswer(context.Background(), "  ", "acme", Options{})
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	_, err = e.PlanAndAnswer(context.Background(), "question", "", Options{})
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	_, err = e.PlanAndAnswer(context.Background(), "question", "acme", Options{SampleCount: -1})
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	_, err = e.PlanAndAnswer(context.Background(), strings.Repeat("x", 2001), "acme", Options{})
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestPlanAndAnswerSampleCountClamped(t *testing.T) {
	sources := []types.RankedCandidate{ranked("c1", "text", 0.9)}
	p := &fakePlanner{
		plan: directPlan("q"),
		exec: &planner.Execution{Sources: sources, Context: "ctx",
			Hops: []types.HopResult{{SubQueryID: "sq-1", Type: types.SubQueryDirect, Results: sources}}},
	}
	g := &fakeGenerator{result: &types.ConsensusResult{Answer: "a", SampleCount: 10}}

	e := newTestEngine(p, g, nil, &fakeIndex{}, nil)
	_, err := e.PlanAndAnswer(context.Background(), "what is the policy", "acme", Options{SampleCount: 99})
	require.NoError(t, err)
	assert.Equal(t, 10, g.gotSamples)
}

func TestPlanAndAnswerPlannerErrorPropagates(t *testing.T) {
	wantErr := types.NewError(types.KindRetrieval, "index down")
	p := &fakePlanner{plan: directPlan("q"), execErr: wantErr}

	e := newTestEngine(p, &fakeGenerator{}, nil, &fakeIndex{}, nil)
	_, err := e.PlanAndAnswer(context.Background(), "what is the policy", "acme", Options{})
	assert.True(t, errors.Is(err, wantErr))
}

func TestAddDocumentChunksEmbedsMissingVectors(t *testing.T) {
	idx := &fakeIndex{stats: types.TenantStats{TenantID: "acme", Count: 2, Dimension: 4}}
	emb := &fakeEmbedder{dims: 4}
	e := newTestEngine(&fakePlanner{}, &fakeGenerator{}, nil, idx, emb)

	chunks := []*types.Chunk{
		{DocID: "d1", Text: "Acme Corp ships widgets."},
		{DocID: "d1", Text: "already vectorized", Vector: []float64{1, 0, 0, 0}},
	}
	require.NoError(t, e.AddDocumentChunks(context.Background(), "acme", chunks))

	require.Len(t, idx.added, 2)
	assert.Equal(t, []string{"Acme Corp ships widgets."}, emb.gotTexts)
	assert.Len(t, chunks[0].Vector, 4)
	assert.NotEmpty(t, chunks[0].ChunkID)
	assert.Equal(t, "acme", chunks[0].TenantID)
	assert.Contains(t, chunks[0].Entities, "Acme Corp")
}

func TestAddDocumentChunksValidation(t *testing.T) {
	e := newTestEngine(&fakePlanner{}, &fakeGenerator{}, nil, &fakeIndex{}, &fakeEmbedder{dims: 4})

	err := e.AddDocumentChunks(context.Background(), "", []*types.Chunk{{Text: "x y z"}})
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	err = e.AddDocumentChunks(context.Background(), "acme", nil)
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	err = e.AddDocumentChunks(context.Background(), "acme", []*types.Chunk{{Text: "   "}})
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestAddDocumentChunksEmbedderFailure(t *testing.T) {
	emb := &fakeEmbedder{dims: 4, err: errors.New("connection refused")}
	e := newTestEngine(&fakePlanner{}, &fakeGenerator{}, nil, &fakeIndex{}, emb)

	err := e.AddDocumentChunks(context.Background(), "acme", []*types.Chunk{{Text: "needs a vector"}})
	assert.Equal(t, types.KindProvider, types.KindOf(err))
	assert.True(t, types.IsRetryable(err))
}

func TestDeleteDocument(t *testing.T) {
	idx := &fakeIndex{removed: 3}
	e := newTestEngine(&fakePlanner{}, &fakeGenerator{}, nil, idx, nil)

	removed, err := e.DeleteDocument(context.Background(), "acme", "d1")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, []string{"d1"}, idx.deleted)

	_, err = e.DeleteDocument(context.Background(), "acme", "")
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestListTenants(t *testing.T) {
	e := newTestEngine(&fakePlanner{}, &fakeGenerator{}, nil, &fakeIndex{}, nil)
	assert.Equal(t, []string{"acme", "globex"}, e.ListTenants())
}
