package planner

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/llm"
	"github.com/hoplite-ai/hoplite/types"
)

// Decomposition template patterns. These are illustrative shapes mined from
// real question logs, not an exhaustive grammar; anything they miss falls
// through to the LLM decomposition path.
var (
	// "compare the P of E1 and E2"
	compareAttrRe = regexp.MustCompile(`(?i)compare\s+(?:the\s+)?(.+?)\s+of\s+(.+?)\s+and\s+(.+?)[?.!]?$`)
	// "compare E1 and E2"
	compareRe = regexp.MustCompile(`(?i)compare\s+(.+?)\s+and\s+(.+?)[?.!]?$`)
	// "which X do A and B"
	whichRe = regexp.MustCompile(`(?i)which\s+(\w+)\s+(?:do|does|have|has|are|is)\s+(.+?)\s+and\s+(.+?)[?.!]?$`)
	// "what are the P and Q of E"
	whatOfRe = regexp.MustCompile(`(?i)what\s+are\s+the\s+(.+?)\s+and\s+(.+?)\s+of\s+(.+?)[?.!]?$`)
)

func subQueryID(n int) string { return fmt.Sprintf("sq-%d", n) }

// decomposeByTemplate matches the question against the known linguistic
// templates. A nil return means no template applied.
func decomposeByTemplate(question string) []types.SubQuery {
	if m := compareAttrRe.FindStringSubmatch(question); m != nil {
		attrs, e1, e2 := m[1], m[2], m[3]
		return []types.SubQuery{
			{ID: subQueryID(1), Text: fmt.Sprintf("Find the %s of %s", attrs, e1), Type: types.SubQueryRetrieve, Priority: 1},
			{ID: subQueryID(2), Text: fmt.Sprintf("Find the %s of %s", attrs, e2), Type: types.SubQueryRetrieve, Priority: 1},
			{ID: subQueryID(3), Text: fmt.Sprintf("Compare the %s of %s and %s", attrs, e1, e2),
				Type: types.SubQueryCompare, Priority: 2, DependsOn: []string{subQueryID(1), subQueryID(2)}},
		}
	}

	if m := compareRe.FindStringSubmatch(question); m != nil {
		e1, e2 := m[1], m[2]
		return []types.SubQuery{
			{ID: subQueryID(1), Text: "Find information about " + e1, Type: types.SubQueryRetrieve, Priority: 1},
			{ID: subQueryID(2), Text: "Find information about " + e2, Type: types.SubQueryRetrieve, Priority: 1},
			{ID: subQueryID(3), Text: fmt.Sprintf("Compare %s and %s", e1, e2),
				Type: types.SubQueryCompare, Priority: 2, DependsOn: []string{subQueryID(1), subQueryID(2)}},
		}
	}

	if m := whichRe.FindStringSubmatch(question); m != nil {
		entityType, cond1, cond2 := m[1], m[2], m[3]
		return []types.SubQuery{
			{ID: subQueryID(1), Text: fmt.Sprintf("Find all %s that %s", entityType, cond1), Type: types.SubQueryRetrieve, Priority: 1},
			{ID: subQueryID(2), Text: fmt.Sprintf("%s %s", entityType, cond2),
				Type: types.SubQueryFilter, Priority: 2, DependsOn: []string{subQueryID(1)}},
		}
	}

	if m := whatOfRe.FindStringSubmatch(question); m != nil {
		attr1, attr2, entity := m[1], m[2], m[3]
		return []types.SubQuery{
			{ID: subQueryID(1), Text: "Find information about " + entity, Type: types.SubQueryRetrieve, Priority: 1},
			{ID: subQueryID(2), Text: fmt.Sprintf("Extract the %s and %s", attr1, attr2),
				Type: types.SubQueryExtract, Priority: 2, DependsOn: []string{subQueryID(1)}},
		}
	}

	return nil
}

const decompositionPromptFormat = `Decompose the following complex question into simpler sub-questions that can be answered independently or in sequence.

Original Question: %s

Provide 2-4 sub-questions that, when answered together, answer the original question. For each sub-question, state its text, type, priority and dependencies in exactly this format:

Sub-query 1: [question text]
Type: [direct|retrieve|filter|extract|compare]
Priority: [1-3]
Dependencies: [comma-separated sub-query numbers, or "none"]

Sub-query 2: ...`

// decomposeByLLM asks the language model to propose sub-queries in a
// structured line format and parses the response leniently: a garbled
// priority defaults to 1, garbled dependencies default to none, an unknown
// type maps to retrieve. Returns nil when no usable sub-query was parsed.
func (p *Planner) decomposeByLLM(ctx context.Context, question string) []types.SubQuery {
	resp, err := p.provider.Generate(ctx, &llm.GenerateRequest{
		Prompt:      fmt.Sprintf(decompositionPromptFormat, question),
		Temperature: 0.2,
		MaxTokens:   500,
	})
	if err != nil {
		p.logger.Warn("llm decomposition failed", zap.Error(err))
		return nil
	}
	return parseDecomposition(resp.Text)
}

var subQueryLineRe = regexp.MustCompile(`(?i)^sub-?query\s*(\d+)\s*:\s*(.*)$`)

func parseDecomposition(response string) []types.SubQuery {
	var out []types.SubQuery
	var current *types.SubQuery

	flush := func() {
		if current != nil && strings.TrimSpace(current.Text) != "" {
			out = append(out, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case subQueryLineRe.MatchString(line):
			flush()
			m := subQueryLineRe.FindStringSubmatch(line)
			current = &types.SubQuery{
				ID:       "sq-" + m[1],
				Text:     strings.Trim(m[2], " []"),
				Type:     types.SubQueryRetrieve,
				Priority: 1,
			}
		case current == nil:
			// preamble before the first sub-query line

		case strings.HasPrefix(strings.ToLower(line), "type:"):
			current.Type = parseSubQueryType(valueAfterColon(line))
		case strings.HasPrefix(strings.ToLower(line), "priority:"):
			if n, err := strconv.Atoi(valueAfterColon(line)); err == nil && n > 0 {
				current.Priority = n
			}
		case strings.HasPrefix(strings.ToLower(line), "dependencies:"):
			current.DependsOn = parseDependencies(valueAfterColon(line))
		}
	}
	flush()
	return out
}

func valueAfterColon(line string) string {
	_, v, _ := strings.Cut(line, ":")
	return strings.Trim(v, " []")
}

func parseSubQueryType(s string) types.SubQueryType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct", "simple", "answer":
		return types.SubQueryDirect
	case "filter", "filtering":
		return types.SubQueryFilter
	case "extract", "extraction", "analysis":
		return types.SubQueryExtract
	case "compare", "comparison":
		return types.SubQueryCompare
	default:
		return types.SubQueryRetrieve
	}
}

var depNumRe = regexp.MustCompile(`\d+`)

func parseDependencies(s string) []string {
	if strings.EqualFold(strings.TrimSpace(s), "none") {
		return nil
	}
	var deps []string
	for _, n := range depNumRe.FindAllString(s, -1) {
		deps = append(deps, "sq-"+n)
	}
	return deps
}

// decomposeByConjunction splits the question on its first "and"/"or". An
// "and" implies sequence (second part may build on the first); an "or"
// implies independent alternatives.
func decomposeByConjunction(question string) []types.SubQuery {
	lower := strings.ToLower(question)
	for _, conj := range []string{" and ", " or "} {
		idx := strings.Index(lower, conj)
		if idx <= 0 {
			continue
		}
		first := strings.TrimSpace(question[:idx])
		second := strings.TrimSpace(strings.TrimSuffix(question[idx+len(conj):], "?"))
		if first == "" || second == "" {
			continue
		}
		secondPriority := 2
		if conj == " or " {
			secondPriority = 1
		}
		return []types.SubQuery{
			{ID: subQueryID(1), Text: first, Type: types.SubQueryRetrieve, Priority: 1},
			{ID: subQueryID(2), Text: second, Type: types.SubQueryRetrieve, Priority: secondPriority},
		}
	}
	return nil
}

func directPlan(question string) []types.SubQuery {
	return []types.SubQuery{{
		ID:       subQueryID(1),
		Text:     question,
		Type:     types.SubQueryDirect,
		Priority: 1,
	}}
}
