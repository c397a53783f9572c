// Package textutil holds the lexical helpers shared by reranking, planning,
// and verification: tokenization, naive entity spotting, sentence splitting,
// and set/vector similarity.
package textutil

import (
	"math"
	"regexp"
	"strings"
)

var (
	wordRe     = regexp.MustCompile(`[a-zA-Z0-9']+`)
	entityRe   = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*(?:\s+[A-Z][a-zA-Z0-9]*)*\b`)
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*`)
)

// entityStopwords are capitalized tokens that are sentence scaffolding, not
// named entities.
var entityStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "i": true,
	"what": true, "which": true, "who": true, "whom": true, "whose": true,
	"when": true, "where": true, "why": true, "how": true,
	"is": true, "are": true, "was": true, "were": true,
	"do": true, "does": true, "did": true, "can": true, "could": true,
	"will": true, "would": true, "should": true, "if": true,
	"compare": true, "list": true, "explain": true, "describe": true,
	"and": true, "or": true, "but": true, "of": true, "in": true, "on": true,
	"it": true, "this": true, "that": true, "these": true, "those": true,
}

// Tokenize lowercases and splits text into word tokens.
func Tokenize(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// TermSet returns the set of distinct lowercase tokens in text.
func TermSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range Tokenize(text) {
		set[tok] = true
	}
	return set
}

// ExtractEntities spots capitalized word sequences that look like named
// entities. It is a heuristic stand-in for real NER: good enough to link
// "Vendor A" across sub-queries, not a linguistic claim.
func ExtractEntities(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, match := range entityRe.FindAllString(text, -1) {
		// strip leading scaffolding words (sentence starters) from the
		// match; trailing words stay, "Vendor A" is a real name
		words := strings.Fields(match)
		for len(words) > 0 && entityStopwords[strings.ToLower(words[0])] {
			words = words[1:]
		}
		if len(words) == 0 {
			continue
		}
		entity := strings.Join(words, " ")
		key := strings.ToLower(entity)
		if !seen[key] {
			seen[key] = true
			out = append(out, entity)
		}
	}
	return out
}

// Sentences splits text at terminal punctuation. Each sentence keeps its
// trailing punctuation so callers can still tell questions from statements.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" && strings.Trim(s, ".!? ") != "" {
			out = append(out, s)
		}
	}
	return out
}

// Jaccard computes |a∩b| / |a∪b| over two string sets. Two empty sets have
// similarity 0.
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// JaccardFold is Jaccard over two string slices, case-folded.
func JaccardFold(a, b []string) float64 {
	sa := make(map[string]bool, len(a))
	for _, s := range a {
		sa[strings.ToLower(s)] = true
	}
	sb := make(map[string]bool, len(b))
	for _, s := range b {
		sb[strings.ToLower(s)] = true
	}
	return Jaccard(sa, sb)
}

// TermFrequencyCosine computes the cosine similarity of the two texts'
// term-frequency vectors.
func TermFrequencyCosine(a, b string) float64 {
	ta := Tokenize(a)
	tb := Tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	fa := make(map[string]float64)
	for _, tok := range ta {
		fa[tok]++
	}
	fb := make(map[string]float64)
	for _, tok := range tb {
		fb[tok]++
	}

	var dot, normA, normB float64
	for tok, va := range fa {
		normA += va * va
		if vb, ok := fb[tok]; ok {
			dot += va * vb
		}
	}
	for _, vb := range fb {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
