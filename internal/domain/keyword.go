package domain

// KeywordRole is the retrieval role of a query keyword. Context keywords
// scope which documents are eligible; target keywords filter which blocks
// within those documents qualify.
type KeywordRole string

const (
	// KeywordRoleContext marks document-scoping keywords (industry, entity
	// characteristics, transaction setting).
	KeywordRoleContext KeywordRole = "context"
	// KeywordRoleTarget marks item-filtering keywords (accounts, adjustment
	// items, specific transactions).
	KeywordRoleTarget KeywordRole = "target"
)

// RoleResult is the outcome of keyword role classification.
type RoleResult struct {
	ContextKeywords []string
	TargetKeywords  []string
	UnknownKeywords []string

	// Confidence is in [0,1] and reflects dictionary coverage blended with
	// the secondary classifier's own confidence.
	Confidence float64

	// NeedsConfirmation is a hard gate: when set, the caller must request
	// disambiguation instead of ranking.
	NeedsConfirmation bool

	// Method records how the partition was produced: "dictionary" when the
	// dictionary covered every keyword, "hybrid" otherwise.
	Method string
}

// ClassifierResult is the raw reply of a secondary keyword classifier for
// the keywords the dictionary did not know.
type ClassifierResult struct {
	ContextKeywords []string
	TargetKeywords  []string
	Confidence      float64
}

// Expansion is a query expansion: the core keywords the user named, optional
// supporting keywords, related vocabulary, and per-term boost weights.
type Expansion struct {
	MustHave     []string
	ShouldHave   []string
	RelatedTerms []string
	BoostWeights map[string]float64
}

// Boost returns the boost weight for term, or def when none was assigned.
func (e Expansion) Boost(term string, def float64) float64 {
	if w, ok := e.BoostWeights[term]; ok && w > 0 {
		return w
	}
	return def
}
