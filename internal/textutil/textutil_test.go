package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"vendor", "a's", "pricing", "is", "49"},
		Tokenize("Vendor A's pricing is $49!"))
	assert.Empty(t, Tokenize("—…—"))
}

func TestExtractEntities(t *testing.T) {
	entities := ExtractEntities("Compare the pricing of Vendor A and Vendor B.")
	assert.Contains(t, entities, "Vendor A")
	assert.Contains(t, entities, "Vendor B")
	// leading scaffolding is stripped, the names survive
	assert.NotContains(t, entities, "Compare")
}

func TestExtractEntitiesDeduplicates(t *testing.T) {
	entities := ExtractEntities("Acme Corp partnered with Acme Corp again.")
	assert.Equal(t, []string{"Acme Corp"}, entities)
}

func TestSentencesKeepPunctuation(t *testing.T) {
	sentences := Sentences("The total is 42. Is that right? Yes!")
	assert.Equal(t, []string{"The total is 42.", "Is that right?", "Yes!"}, sentences)
}

func TestSentencesSkipsPunctuationOnly(t *testing.T) {
	assert.Empty(t, Sentences("... !!!"))
	assert.Len(t, Sentences("no terminal punctuation"), 1)
}

func TestJaccard(t *testing.T) {
	a := map[string]bool{"x": true, "y": true}
	b := map[string]bool{"y": true, "z": true}
	assert.InDelta(t, 1.0/3.0, Jaccard(a, b), 1e-9)
	assert.Zero(t, Jaccard(nil, nil))
	assert.Equal(t, 1.0, Jaccard(a, a))
}

func TestTermFrequencyCosine(t *testing.T) {
	assert.InDelta(t, 1.0, TermFrequencyCosine("the cat sat", "the cat sat"), 1e-9)
	assert.Zero(t, TermFrequencyCosine("alpha beta", "gamma delta"))
	assert.Zero(t, TermFrequencyCosine("", "words"))
}

func TestSimilaritiesBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.StringMatching(`[a-zA-Z .!?]{0,80}`).Draw(t, "a")
		b := rapid.StringMatching(`[a-zA-Z .!?]{0,80}`).Draw(t, "b")

		cos := TermFrequencyCosine(a, b)
		assert.GreaterOrEqual(t, cos, 0.0)
		assert.LessOrEqual(t, cos, 1.0+1e-9)

		jac := Jaccard(TermSet(a), TermSet(b))
		assert.GreaterOrEqual(t, jac, 0.0)
		assert.LessOrEqual(t, jac, 1.0)
	})
}
