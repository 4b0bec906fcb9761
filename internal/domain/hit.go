package domain

// FindingHit is one finding-level retrieval result. A finding is a single
// audit-exception record inside a source document; hits are created fresh per
// query and are read-only after construction.
type FindingHit struct {
	FindingID  string
	DocID      string
	Item       string
	ItemDetail string
	Code       string

	ScoreBM25     float64
	ScoreVector   float64
	ScoreCombined float64
}

// ChunkHit is one passage of a finding section. Unique by ChunkID; the
// natural reading order within a finding is (SectionOrder, ChunkOrder).
// Page/StartLine/EndLine are zero when the ingestion job had no layout
// information for the passage.
type ChunkHit struct {
	ChunkID   string
	FindingID string
	DocID     string

	Section      string
	SectionOrder int
	ChunkOrder   int

	Code     string
	Item     string
	ItemNorm string

	Page      int
	StartLine int
	EndLine   int

	Text     string
	TextNorm string

	ScoreBM25     float64
	ScoreVector   float64
	ScoreField    float64
	ScoreCombined float64
}

// DocScore is a document-level relevance score produced by keyword
// resolution.
type DocScore struct {
	DocID string
	Score float64
}

// DocFilterMode describes how a document filter was derived from the query
// keywords.
type DocFilterMode string

const (
	// DocFilterNone means no document filter applies (full corpus eligible).
	DocFilterNone DocFilterMode = "none"
	// DocFilterSingle is the raw document set of a single keyword.
	DocFilterSingle DocFilterMode = "single"
	// DocFilterIntersection means every keyword matched each document.
	DocFilterIntersection DocFilterMode = "intersection"
	// DocFilterUnion is the degraded fallback when keyword document sets
	// never co-occur; the set is capped.
	DocFilterUnion DocFilterMode = "union"
)

// DocFilter is the resolved document scope for a query.
type DocFilter struct {
	DocIDs []string
	Mode   DocFilterMode
}

// Active reports whether the filter restricts the corpus.
func (f DocFilter) Active() bool {
	return f.Mode != DocFilterNone && len(f.DocIDs) > 0
}

// BoostedTerm is a query term with a per-term ranking boost.
type BoostedTerm struct {
	Term  string
	Boost float64
}

// FindingQuery describes a lexical finding-level search. When Boosted is
// non-empty the terms form an OR ranking query; otherwise Text is matched
// across the item/reason/detail fields.
type FindingQuery struct {
	Text    string
	Boosted []BoostedTerm
	DocIDs  []string
	Codes   []string
	TopK    int
}

// ChunkQuery describes a lexical passage search scoped to one section and a
// finding-id allowlist.
type ChunkQuery struct {
	Text       string
	Section    string
	FindingIDs []string
	DocIDs     []string
	Codes      []string
	TopK       int
}
