package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoplite-ai/hoplite/types"
)

type fakeEmbedder struct {
	vector []float64
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	f.calls++
	return f.vector, f.err
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }
func (f *fakeEmbedder) Name() string    { return "fake" }

type fakeSearcher struct {
	results []types.RetrievedCandidate
	err     error

	gotTenant    string
	gotK         int
	gotThreshold float64
}

func (f *fakeSearcher) Search(_ context.Context, tenantID string, _ []float64, k int, threshold float64) ([]types.RetrievedCandidate, error) {
	f.gotTenant = tenantID
	f.gotK = k
	f.gotThreshold = threshold
	return f.results, f.err
}

func TestRetrievePassesTenantAndLimits(t *testing.T) {
	searcher := &fakeSearcher{results: []types.RetrievedCandidate{
		{ChunkID: "c1", Text: "short text", Score: 0.9},
	}}
	c := NewCoordinator(DefaultConfig(), &fakeEmbedder{vector: []float64{1, 0}}, searcher, nil)

	results, err := c.Retrieve(context.Background(), "acme", "what is the refund policy", 5, 0.4)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "acme", searcher.gotTenant)
	assert.Equal(t, 5, searcher.gotK)
	assert.Equal(t, 0.4, searcher.gotThreshold)
}

func TestRetrieveDefaults(t *testing.T) {
	searcher := &fakeSearcher{}
	c := NewCoordinator(Config{TopK: 7, Threshold: 0.25}, &fakeEmbedder{vector: []float64{1}}, searcher, nil)

	_, err := c.Retrieve(context.Background(), "acme", "anything", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, 7, searcher.gotK)
	assert.Equal(t, 0.25, searcher.gotThreshold)
}

func TestRetrieveEmptyIsNotAnError(t *testing.T) {
	c := NewCoordinator(DefaultConfig(), &fakeEmbedder{vector: []float64{1}}, &fakeSearcher{}, nil)

	results, err := c.Retrieve(context.Background(), "acme", "no matches here", 5, 0.9)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveEmbedFailure(t *testing.T) {
	c := NewCoordinator(DefaultConfig(), &fakeEmbedder{err: errors.New("boom")}, &fakeSearcher{}, nil)

	_, err := c.Retrieve(context.Background(), "acme", "query", 5, 0)
	require.Error(t, err)
	assert.Equal(t, types.KindRetrieval, types.KindOf(err))
}

func TestRetrieveEmptyQueryRejected(t *testing.T) {
	c := NewCoordinator(DefaultConfig(), &fakeEmbedder{vector: []float64{1}}, &fakeSearcher{}, nil)

	_, err := c.Retrieve(context.Background(), "acme", "   ", 5, 0)
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestSnippetWindowsAroundMatch(t *testing.T) {
	long := strings.Repeat("filler ", 100) + "the refund policy allows returns within thirty days " + strings.Repeat("tail ", 100)
	searcher := &fakeSearcher{results: []types.RetrievedCandidate{
		{ChunkID: "c1", Text: long, Score: 0.9},
	}}
	c := NewCoordinator(Config{TopK: 5, SnippetLength: 80}, &fakeEmbedder{vector: []float64{1}}, searcher, nil)

	results, err := c.Retrieve(context.Background(), "acme", "refund policy", 5, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Snippet, "refund")
	assert.LessOrEqual(t, len(results[0].Snippet), 80+6) // ellipses on both sides
}

func TestSnippetShortTextUnchanged(t *testing.T) {
	assert.Equal(t, "tiny", makeSnippet("tiny", "query", 100))
}

func TestSnippetKeepsRunesIntact(t *testing.T) {
	// no term match: the window is the passage prefix, cut inside runes
	snippet := makeSnippet(strings.Repeat("é", 200), "nothing matches", 51)
	assert.True(t, utf8.ValidString(snippet))

	// match deep in multi-byte text: both window edges land mid-passage
	text := strings.Repeat("ü", 100) + " refund " + strings.Repeat("ö", 100)
	snippet = makeSnippet(text, "refund policy", 51)
	assert.True(t, utf8.ValidString(snippet))
	assert.Contains(t, snippet, "refund")
}
