// Package verify checks an answer's factual claims against the retrieved
// evidence and reports which claims no source supports. Unsupported claims
// lower confidence; they never fail the request.
package verify

import (
	"regexp"
	"strings"

	"github.com/hoplite-ai/hoplite/internal/textutil"
)

// factualIndicators mark a sentence as making a checkable statement.
var factualIndicators = []*regexp.Regexp{
	regexp.MustCompile(`\b(is|are|was|were|has|have|had)\b`),
	regexp.MustCompile(`\b(contains|includes|shows|indicates|suggests)\b`),
	regexp.MustCompile(`\b(according to|based on|the data shows)\b`),
	regexp.MustCompile(`\b\d+\b`),
	regexp.MustCompile(`\b(expires|expired|valid|invalid)\b`),
	regexp.MustCompile(`\b(domain|email|date|time|period)\b`),
}

// conversationalPhrases disqualify a sentence from being a claim.
var conversationalPhrases = []string{
	"i apologize", "i'm sorry", "i don't know", "i can't",
	"please", "thank you", "you're welcome",
}

var opinionPrefixes = []string{"i think", "i believe", "i feel", "i guess"}

// ExtractClaims splits the answer into sentences and keeps the ones that
// state checkable facts: at least one factual indicator, not conversational,
// at least three words.
func ExtractClaims(answer string) []string {
	var claims []string
	for _, sentence := range textutil.Sentences(answer) {
		if strings.HasSuffix(sentence, "?") {
			continue
		}
		lower := strings.ToLower(sentence)
		if hasPrefix(lower, opinionPrefixes) {
			continue
		}
		if isFactualClaim(lower) {
			claims = append(claims, strings.TrimRight(sentence, ".! "))
		}
	}
	return claims
}

func isFactualClaim(lowerSentence string) bool {
	if len(strings.Fields(lowerSentence)) < 3 {
		return false
	}
	for _, phrase := range conversationalPhrases {
		if strings.Contains(lowerSentence, phrase) {
			return false
		}
	}
	for _, re := range factualIndicators {
		if re.MatchString(lowerSentence) {
			return true
		}
	}
	return false
}

func hasPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
