package planner

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/types"
)

// Plan analyzes the question and produces a dependency-ordered execution
// plan. Decomposition never fails outright: templates first, then the LLM's
// structured proposal, then a conjunction split, and finally the whole
// question as a single direct hop.
func (p *Planner) Plan(ctx context.Context, question string) (*types.ExecutionPlan, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, types.NewError(types.KindValidation, "question is empty")
	}

	complexity := AnalyzeComplexity(question)
	plan := &types.ExecutionPlan{
		QueryID:    uuid.NewString(),
		Question:   question,
		Complexity: complexity,
	}

	var subQueries []types.SubQuery
	switch {
	case !complexity.RequiresMultiHop:
		subQueries = directPlan(question)

	default:
		subQueries = decomposeByTemplate(question)
		if subQueries == nil {
			subQueries = p.decomposeByLLM(ctx, question)
			if subQueries != nil {
				subQueries = sanitizeSubQueries(subQueries, plan)
			}
		}
		if len(subQueries) == 0 {
			subQueries = decomposeByConjunction(question)
			if subQueries != nil {
				plan.Anomalies = append(plan.Anomalies, "decomposition fell back to conjunction split")
			}
		}
		if len(subQueries) == 0 {
			subQueries = directPlan(question)
			plan.Anomalies = append(plan.Anomalies, "decomposition fell back to single direct hop")
		}
	}

	if len(subQueries) > p.cfg.MaxHops {
		subQueries = subQueries[:p.cfg.MaxHops]
		plan.Anomalies = append(plan.Anomalies, "plan truncated to max hops")
	}

	plan.SubQueries = scheduleSubQueries(subQueries, plan)

	p.logger.Info("query planned",
		zap.String("query_id", plan.QueryID),
		zap.Float64("complexity_score", complexity.Score),
		zap.String("complexity_level", string(complexity.Level)),
		zap.Int("hops", len(plan.SubQueries)),
		zap.Strings("anomalies", plan.Anomalies))
	return plan, nil
}

// sanitizeSubQueries repairs an LLM-proposed decomposition: invalid types
// become retrieve, non-positive priorities become 1, and dependencies on
// unknown ids are dropped. Each repair is recorded as an anomaly.
func sanitizeSubQueries(subQueries []types.SubQuery, plan *types.ExecutionPlan) []types.SubQuery {
	known := make(map[string]bool, len(subQueries))
	for _, sq := range subQueries {
		known[sq.ID] = true
	}

	out := subQueries[:0]
	for _, sq := range subQueries {
		if !sq.Type.Valid() {
			sq.Type = types.SubQueryRetrieve
		}
		if sq.Priority <= 0 {
			sq.Priority = 1
		}
		var deps []string
		for _, dep := range sq.DependsOn {
			if dep == sq.ID {
				continue
			}
			if !known[dep] {
				plan.Anomalies = append(plan.Anomalies, "dropped dangling dependency "+dep+" of "+sq.ID)
				continue
			}
			deps = append(deps, dep)
		}
		sq.DependsOn = deps
		out = append(out, sq)
	}
	return out
}

// scheduleSubQueries orders sub-queries so that every satisfiable dependency
// appears before its dependent: repeatedly pick the highest-priority ready
// sub-query; when none is ready (cycle or dangling reference), force-schedule
// the highest-priority remaining one and record the anomaly instead of
// aborting.
func scheduleSubQueries(subQueries []types.SubQuery, plan *types.ExecutionPlan) []types.SubQuery {
	scheduled := make(map[string]bool, len(subQueries))
	remaining := make([]types.SubQuery, len(subQueries))
	copy(remaining, subQueries)

	out := make([]types.SubQuery, 0, len(subQueries))
	for len(remaining) > 0 {
		best := -1
		for i, sq := range remaining {
			ready := true
			for _, dep := range sq.DependsOn {
				if !scheduled[dep] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			if best == -1 || sq.Priority < remaining[best].Priority {
				best = i
			}
		}

		if best == -1 {
			// dependency cycle or dangling reference: break the deadlock
			for i, sq := range remaining {
				if best == -1 || sq.Priority < remaining[best].Priority {
					best = i
				}
			}
			plan.Anomalies = append(plan.Anomalies,
				"force-scheduled "+remaining[best].ID+" to break a dependency deadlock")
		}

		sq := remaining[best]
		scheduled[sq.ID] = true
		out = append(out, sq)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return out
}
