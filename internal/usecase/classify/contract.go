package classify

import (
	"context"

	"github.com/findex-kr/findex/internal/domain"
)

// Dictionary resolves keywords against the curated role dictionary.
type Dictionary interface {
	Lookup(keyword string) (domain.KeywordRole, bool)
}

// Classifier assigns roles to keywords the dictionary does not know.
type Classifier interface {
	Classify(ctx context.Context, keywords []string) (domain.ClassifierResult, error)
}
