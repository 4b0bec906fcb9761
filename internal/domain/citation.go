package domain

// Citation is the provenance record of one packed passage. Derived 1:1 from
// packed (post-merge) passages and never mutated afterwards.
type Citation struct {
	DocID     string
	FindingID string
	ChunkID   string
	Page      int
	StartLine int
	EndLine   int
	Text      string
	Section   string
}

// PackedContext is the budgeted text package handed to the answer generator.
// Citations keeps per-chunk provenance; Summary is deduplicated by finding id
// for top-level display.
type PackedContext struct {
	Text          string
	Citations     []Citation
	Summary       []Citation
	TokenEstimate int
}
