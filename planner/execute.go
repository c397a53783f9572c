package planner

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hoplite-ai/hoplite/internal/textutil"
	"github.com/hoplite-ai/hoplite/types"
)

// maxContextChars caps the evidence text handed to the orchestrator. Roughly
// four characters per token keeps this well inside common context windows.
const maxContextChars = 6000

// Execution is the accumulated outcome of running a plan: every hop's
// result, the deduplicated evidence passages, discovered entities, and the
// formatted context string for answer generation.
type Execution struct {
	Hops     []types.HopResult
	Sources  []types.RankedCandidate
	Entities []string
	Context  string
	Failures []string // absorbed hop failures, for the caller's log
}

type hopCacheKey struct {
	subQueryID string
	textHash   uint64
}

func hashText(text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	return h.Sum64()
}

// execState is the per-request mutable state threaded through hop execution.
// It is created fresh for every top-level query and discarded with it; the
// hop cache inside it is never shared across requests.
type execState struct {
	mu        sync.Mutex
	tenantID  string
	results   map[string]*types.HopResult
	order     []string
	entities  []string
	entitySet map[string]bool
	cache     map[hopCacheKey]*types.HopResult
}

func newExecState(tenantID string) *execState {
	return &execState{
		tenantID:  tenantID,
		results:   make(map[string]*types.HopResult),
		entitySet: make(map[string]bool),
		cache:     make(map[hopCacheKey]*types.HopResult),
	}
}

func (s *execState) record(sq types.SubQuery, result *types.HopResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[sq.ID]; !exists {
		s.order = append(s.order, sq.ID)
	}
	s.results[sq.ID] = result
	s.cache[hopCacheKey{sq.ID, hashText(sq.Text)}] = result
	for _, e := range result.Entities {
		key := strings.ToLower(e)
		if !s.entitySet[key] {
			s.entitySet[key] = true
			s.entities = append(s.entities, e)
		}
	}
}

func (s *execState) cached(sq types.SubQuery) *types.HopResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[hopCacheKey{sq.ID, hashText(sq.Text)}]
}

// priorResults returns the results a hop builds on: its declared
// dependencies when it has any, otherwise every hop executed so far.
func (s *execState) priorResults(sq types.SubQuery) [][]types.RankedCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := sq.DependsOn
	if len(ids) == 0 {
		ids = s.order
	}
	var out [][]types.RankedCandidate
	for _, id := range ids {
		if r, ok := s.results[id]; ok {
			out = append(out, r.Results)
		}
	}
	return out
}

func (s *execState) snapshotEntities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.entities...)
}

// Execute runs the plan's hops in dependency order. Hops on the same
// dependency level run concurrently. A failed hop among several is absorbed
// (recorded, not fatal); the failure of the plan's only hop fails the query.
func (p *Planner) Execute(ctx context.Context, tenantID string, plan *types.ExecutionPlan) (*Execution, error) {
	if tenantID == "" {
		return nil, types.NewError(types.KindValidation, "tenant id is required")
	}
	if plan == nil || len(plan.SubQueries) == 0 {
		return nil, types.NewError(types.KindValidation, "execution plan is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state := newExecState(tenantID)
	singleHop := len(plan.SubQueries) == 1

	var failMu sync.Mutex
	var failures []string

	for _, level := range dependencyLevels(plan.SubQueries) {
		g, gctx := errgroup.WithContext(ctx)
		for _, sq := range level {
			g.Go(func() error {
				err := p.executeHop(gctx, sq, state)
				if err == nil {
					return nil
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if singleHop {
					return err
				}
				p.logger.Warn("hop failed, continuing",
					zap.String("sub_query_id", sq.ID), zap.Error(err))
				failMu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", sq.ID, err))
				failMu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return p.collect(plan, state, failures), nil
}

// dependencyLevels groups the already ordered sub-queries into levels where
// no sub-query depends on another in the same level. Hops within one level
// may run concurrently.
func dependencyLevels(subQueries []types.SubQuery) [][]types.SubQuery {
	levelOf := make(map[string]int, len(subQueries))
	var levels [][]types.SubQuery

	for _, sq := range subQueries {
		level := 0
		for _, dep := range sq.DependsOn {
			if dl, ok := levelOf[dep]; ok && dl+1 > level {
				level = dl + 1
			}
		}
		levelOf[sq.ID] = level
		for len(levels) <= level {
			levels = append(levels, nil)
		}
		levels[level] = append(levels[level], sq)
	}
	return levels
}

// executeHop runs one sub-query, consulting the per-request cache first.
func (p *Planner) executeHop(ctx context.Context, sq types.SubQuery, state *execState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cached := state.cached(sq); cached != nil {
		p.logger.Debug("hop cache hit", zap.String("sub_query_id", sq.ID))
		state.record(sq, cached)
		return nil
	}

	var (
		result *types.HopResult
		err    error
	)
	switch sq.Type {
	case types.SubQueryDirect, types.SubQueryRetrieve:
		result, err = p.hopRetrieve(ctx, sq, state)
	case types.SubQueryFilter:
		result = p.hopFilter(sq, state)
	case types.SubQueryExtract:
		result = p.hopExtract(sq, state)
	case types.SubQueryCompare:
		result = p.hopCompare(sq, state)
	default:
		result, err = p.hopRetrieve(ctx, sq, state)
	}
	if err != nil {
		return err
	}

	state.record(sq, result)
	return nil
}

// hopRetrieve is the direct/retrieve strategy: embed-and-search the
// sub-query, enhanced with entities discovered by earlier hops, then rerank.
func (p *Planner) hopRetrieve(ctx context.Context, sq types.SubQuery, state *execState) (*types.HopResult, error) {
	query := enhanceQuery(sq.Text, state.snapshotEntities())

	candidates, err := p.retriever.Retrieve(ctx, state.tenantID, query, p.cfg.TopKPerHop, p.cfg.HopThreshold)
	if err != nil {
		return nil, err
	}
	ranked := p.reranker.Rerank(sq.Text, candidates, p.cfg.TopNPerHop)

	return &types.HopResult{
		SubQueryID: sq.ID,
		Type:       sq.Type,
		Results:    ranked,
		Entities:   entitiesFromResults(ranked),
	}, nil
}

// hopFilter keeps only prior-hop results whose text contains at least one
// keyword from the sub-query.
func (p *Planner) hopFilter(sq types.SubQuery, state *execState) *types.HopResult {
	keywords := filterKeywords(sq.Text)

	var kept []types.RankedCandidate
	seen := make(map[string]bool)
	for _, set := range state.priorResults(sq) {
		for _, c := range set {
			if seen[c.ChunkID] {
				continue
			}
			text := strings.ToLower(c.Text)
			for _, kw := range keywords {
				if strings.Contains(text, kw) {
					seen[c.ChunkID] = true
					kept = append(kept, c)
					break
				}
			}
		}
	}

	return &types.HopResult{
		SubQueryID: sq.ID,
		Type:       types.SubQueryFilter,
		Results:    kept,
		Entities:   entitiesFromResults(kept),
	}
}

var (
	dateRe  = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b\d{4}-\d{2}-\d{2}\b`)
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// hopExtract pulls structured fields out of prior-hop text. The sub-query's
// wording selects the field kinds; with no hint, both kinds are extracted.
func (p *Planner) hopExtract(sq types.SubQuery, state *execState) *types.HopResult {
	lower := strings.ToLower(sq.Text)
	wantDates := strings.Contains(lower, "date") || strings.Contains(lower, "when") || strings.Contains(lower, "time")
	wantEmails := strings.Contains(lower, "email") || strings.Contains(lower, "contact")
	if !wantDates && !wantEmails {
		wantDates, wantEmails = true, true
	}

	var extracted []types.ExtractedField
	var sources []types.RankedCandidate
	seen := make(map[string]bool)
	for _, set := range state.priorResults(sq) {
		for _, c := range set {
			if seen[c.ChunkID] {
				continue
			}
			seen[c.ChunkID] = true
			sources = append(sources, c)

			if wantDates {
				for _, v := range dateRe.FindAllString(c.Text, -1) {
					extracted = append(extracted, types.ExtractedField{Kind: "date", Value: v, ChunkID: c.ChunkID})
				}
			}
			if wantEmails {
				for _, v := range emailRe.FindAllString(c.Text, -1) {
					extracted = append(extracted, types.ExtractedField{Kind: "email", Value: v, ChunkID: c.ChunkID})
				}
			}
		}
	}

	return &types.HopResult{
		SubQueryID: sq.ID,
		Type:       types.SubQueryExtract,
		Results:    sources,
		Extracted:  extracted,
	}
}

// hopCompare produces a structural summary of at least two prior result
// sets. Fewer than two sets is an absorbed degenerate case, not an error.
func (p *Planner) hopCompare(sq types.SubQuery, state *execState) *types.HopResult {
	sets := state.priorResults(sq)

	result := &types.HopResult{
		SubQueryID: sq.ID,
		Type:       types.SubQueryCompare,
	}
	if len(sets) < 2 {
		result.Summary = "comparison needs at least two prior result sets"
		return result
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Comparison across %d result sets:\n", len(sets)))
	var allEntities [][]string
	seen := make(map[string]bool)
	for i, set := range sets {
		entities := entitiesFromResults(set)
		allEntities = append(allEntities, entities)
		top := "no passages"
		if len(set) > 0 {
			top = firstN(set[0].Text, 120)
		}
		b.WriteString(fmt.Sprintf("Set %d: %d passages; top passage: %s\n", i+1, len(set), top))
		for _, c := range set {
			if !seen[c.ChunkID] {
				seen[c.ChunkID] = true
				result.Results = append(result.Results, c)
			}
		}
	}
	if shared := sharedEntities(allEntities); len(shared) > 0 {
		b.WriteString("Shared entities: " + strings.Join(shared, ", "))
	}

	result.Summary = strings.TrimSpace(b.String())
	result.Entities = sharedEntities(allEntities)
	return result
}

// collect flattens hop results into the final Execution.
func (p *Planner) collect(plan *types.ExecutionPlan, state *execState, failures []string) *Execution {
	exec := &Execution{
		Entities: state.snapshotEntities(),
		Failures: failures,
	}

	var b strings.Builder
	seen := make(map[string]bool)

	state.mu.Lock()
	defer state.mu.Unlock()
	for _, sq := range plan.SubQueries {
		r, ok := state.results[sq.ID]
		if !ok {
			continue
		}
		exec.Hops = append(exec.Hops, *r)

		if r.Summary != "" && b.Len() < maxContextChars {
			b.WriteString(r.Summary + "\n")
		}
		for _, f := range r.Extracted {
			if b.Len() < maxContextChars {
				b.WriteString(fmt.Sprintf("%s: %s\n", f.Kind, f.Value))
			}
		}
		for _, c := range r.Results {
			if seen[c.ChunkID] {
				continue
			}
			seen[c.ChunkID] = true
			exec.Sources = append(exec.Sources, c)
			if b.Len() < maxContextChars {
				b.WriteString("- " + firstN(c.Text, 300) + "\n")
			}
		}
	}

	exec.Context = strings.TrimSpace(b.String())
	return exec
}

// enhanceQuery appends up to three accumulated entities that the sub-query
// does not already mention, linking later hops to earlier discoveries.
func enhanceQuery(text string, entities []string) string {
	lower := strings.ToLower(text)
	var extra []string
	for _, e := range entities {
		if len(extra) == 3 {
			break
		}
		if !strings.Contains(lower, strings.ToLower(e)) {
			extra = append(extra, e)
		}
	}
	if len(extra) == 0 {
		return text
	}
	return text + " (context: " + strings.Join(extra, ", ") + ")"
}

var filterStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "in": true, "on": true,
	"for": true, "with": true, "that": true, "this": true, "which": true,
	"check": true, "these": true, "also": true, "only": true, "keep": true,
	"results": true, "find": true, "all": true, "and": true, "or": true,
}

func filterKeywords(text string) []string {
	var out []string
	for _, tok := range textutil.Tokenize(text) {
		if len(tok) >= 3 && !filterStopwords[tok] {
			out = append(out, tok)
		}
	}
	return out
}

func entitiesFromResults(results []types.RankedCandidate) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(e string) {
		key := strings.ToLower(e)
		if !seen[key] {
			seen[key] = true
			out = append(out, e)
		}
	}
	for _, c := range results {
		for _, e := range c.Entities {
			add(e)
		}
		for _, e := range textutil.ExtractEntities(c.Text) {
			add(e)
		}
	}
	return out
}

func sharedEntities(sets [][]string) []string {
	if len(sets) == 0 {
		return nil
	}
	counts := make(map[string]int)
	display := make(map[string]string)
	for _, set := range sets {
		seen := make(map[string]bool)
		for _, e := range set {
			key := strings.ToLower(e)
			if !seen[key] {
				seen[key] = true
				counts[key]++
				display[key] = e
			}
		}
	}
	var out []string
	for key, n := range counts {
		if n == len(sets) {
			out = append(out, display[key])
		}
	}
	sort.Strings(out)
	return out
}

func firstN(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
