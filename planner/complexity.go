// Package planner analyzes question complexity, decomposes complex questions
// into dependency-ordered sub-queries, and drives hop-by-hop execution with a
// per-request result cache.
package planner

import (
	"regexp"

	"github.com/hoplite-ai/hoplite/types"
)

// indicatorFamily is one dimension of question complexity, detected by a
// single alternation regex.
type indicatorFamily struct {
	name string
	re   *regexp.Regexp
}

var indicatorFamilies = []indicatorFamily{
	{"multi_part", regexp.MustCompile(`(?i)\b(and|or|but|however|additionally|compare|contrast)\b|\?.*\?`)},
	{"comparison", regexp.MustCompile(`(?i)\b(compare|contrast|versus|vs|better|worse|difference|similar|different|than)\b`)},
	{"temporal", regexp.MustCompile(`(?i)\b(when|time|date|year|month|day|before|after|during|until|since|ago|previous|current)\b`)},
	{"conditional", regexp.MustCompile(`(?i)\b(if|unless|provided|assuming|suppose|would|could|should|might)\b`)},
	{"aggregation", regexp.MustCompile(`(?i)\b(total|sum|average|count|number|all|every|each|most|least|highest|lowest|maximum|minimum|overall)\b|\bhow\s+many\b`)},
	{"explanation", regexp.MustCompile(`(?i)\b(why|how|explain|describe|analyze|evaluate|implications|consequences|effects|causes|reasons|factors|process)\b`)},
}

// indicatorSaturation is the number of indicator hits at which the
// complexity score reaches 1.0. A question stacking four or more complexity
// signals is as complex as the planner cares to distinguish.
const indicatorSaturation = 4

// AnalyzeComplexity scores a question by counting indicator occurrences
// across six families (conjunctions, comparison, temporal, conditional,
// aggregation, explanation-seeking). The score saturates at
// indicatorSaturation hits; multi-hop planning kicks in at 0.5.
func AnalyzeComplexity(question string) types.Complexity {
	indicators := make(map[string]bool, len(indicatorFamilies))
	hits := 0
	for _, fam := range indicatorFamilies {
		matches := fam.re.FindAllString(question, -1)
		indicators[fam.name] = len(matches) > 0
		hits += len(matches)
	}

	score := float64(hits) / indicatorSaturation
	if score > 1 {
		score = 1
	}

	level := types.ComplexityLow
	switch {
	case score >= 0.7:
		level = types.ComplexityHigh
	case score >= 0.4:
		level = types.ComplexityMedium
	}

	return types.Complexity{
		Score:            score,
		Level:            level,
		Indicators:       indicators,
		RequiresMultiHop: score >= 0.5,
	}
}
