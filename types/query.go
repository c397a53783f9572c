package types

// SubQueryType is the closed set of hop strategies. Dispatch on it with a
// switch over these constants; anything else is a planning bug surfaced by
// Valid.
type SubQueryType string

const (
	SubQueryDirect   SubQueryType = "direct"   // plain retrieval of the question itself
	SubQueryRetrieve SubQueryType = "retrieve" // entity/topic lookup feeding later hops
	SubQueryFilter   SubQueryType = "filter"   // narrow prior-hop results by keywords
	SubQueryExtract  SubQueryType = "extract"  // pull structured fields out of prior hops
	SubQueryCompare  SubQueryType = "compare"  // structural summary of >=2 prior result sets
)

// Valid reports whether t is one of the known sub-query types.
func (t SubQueryType) Valid() bool {
	switch t {
	case SubQueryDirect, SubQueryRetrieve, SubQueryFilter, SubQueryExtract, SubQueryCompare:
		return true
	}
	return false
}

// SubQuery is one node of a decomposed question. Dependencies reference
// other SubQuery IDs and must form a DAG; the planner breaks cycles by
// force-scheduling rather than failing.
type SubQuery struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Type      SubQueryType `json:"type"`
	Priority  int          `json:"priority"` // 1 = highest
	DependsOn []string     `json:"depends_on,omitempty"`
}

// ComplexityLevel buckets the complexity score.
type ComplexityLevel string

const (
	ComplexityLow    ComplexityLevel = "low"
	ComplexityMedium ComplexityLevel = "medium"
	ComplexityHigh   ComplexityLevel = "high"
)

// Complexity is the outcome of analyzing a question before planning.
type Complexity struct {
	Score            float64         `json:"score"` // occurrence-weighted indicator score in [0,1]
	Level            ComplexityLevel `json:"level"`
	Indicators       map[string]bool `json:"indicators,omitempty"`
	RequiresMultiHop bool            `json:"requires_multi_hop"`
}

// ExecutionPlan is a topologically ordered sequence of sub-queries: every
// sub-query appears after all of its satisfiable dependencies. Built once
// per question and immutable during execution.
type ExecutionPlan struct {
	QueryID    string     `json:"query_id"`
	Question   string     `json:"question"`
	Complexity Complexity `json:"complexity"`
	SubQueries []SubQuery `json:"sub_queries"`

	// Anomalies records planning fallbacks (cycle breaks, unparseable
	// decompositions) that were absorbed rather than surfaced.
	Anomalies []string `json:"anomalies,omitempty"`
}

// ExtractedField is a structured value pulled out of hop results by an
// extract hop.
type ExtractedField struct {
	Kind    string `json:"kind"` // "date", "email", ...
	Value   string `json:"value"`
	ChunkID string `json:"chunk_id"`
}

// HopResult is the output of executing one sub-query.
type HopResult struct {
	SubQueryID string            `json:"sub_query_id"`
	Type       SubQueryType      `json:"type"`
	Results    []RankedCandidate `json:"results"`
	Entities   []string          `json:"entities,omitempty"`
	Extracted  []ExtractedField  `json:"extracted,omitempty"`
	Summary    string            `json:"summary,omitempty"` // compare hops only
}
