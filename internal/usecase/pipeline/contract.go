package pipeline

import (
	"context"

	"github.com/findex-kr/findex/internal/domain"
)

// RoleClassifier splits query keywords into context and target roles.
type RoleClassifier interface {
	Classify(ctx context.Context, keywords []string) (domain.RoleResult, error)
}

// DocResolver maps context keywords to a document filter and reports how
// often target keywords occur in the filtered documents.
type DocResolver interface {
	Resolve(ctx context.Context, keywords []string) (domain.DocFilter, error)
	KeywordFrequency(ctx context.Context, filter domain.DocFilter, keywords []string) map[string]int
}

// Expander turns target keywords into a weighted retrieval query.
type Expander interface {
	Expand(ctx context.Context, targets []string) (domain.Expansion, error)
}

// FindingSearcher ranks findings for an expanded keyword query.
type FindingSearcher interface {
	Search(ctx context.Context, exp domain.Expansion, filter domain.DocFilter, codes []string) ([]domain.FindingHit, error)
}

// SectionRetriever retrieves passages of one finding section.
type SectionRetriever interface {
	SearchSection(ctx context.Context, queryText, section string, findingIDs []string, filter domain.DocFilter, codes []string) ([]domain.ChunkHit, error)
}

// Promoter lifts section passages into ranked finding blocks.
type Promoter interface {
	Promote(sections map[string][]domain.ChunkHit, targetKeywords []string) domain.Promotion
}

// Packer renders ranked blocks into generation context.
type Packer interface {
	Pack(blocks []domain.RankedBlock) domain.PackedContext
}
