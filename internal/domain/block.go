package domain

// RankedBlock aggregates the retrieved passages of one finding. Chunks are
// owned exclusively by the block and sorted by combined score descending.
type RankedBlock struct {
	FindingID string
	DocID     string
	Item      string
	Code      string
	Score     float64

	Chunks         []ChunkHit
	SourceSections []string
}

// Promotion is the outcome of one block-promotion pass. Excluded holds
// candidates that were scored but filtered out (keyword mismatch or
// per-document cap); downstream disambiguation can disclose them as
// "there were N more matches".
type Promotion struct {
	Blocks   []RankedBlock
	Excluded []RankedBlock

	// KeywordBlockCounts records, per query keyword, how many scored
	// candidate blocks contained it.
	KeywordBlockCounts map[string]int
}
