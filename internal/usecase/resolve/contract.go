package resolve

import (
	"context"

	"github.com/findex-kr/findex/internal/domain"
)

// Repository resolves keywords against the finding index.
type Repository interface {
	FindDocsByKeyword(ctx context.Context, keyword string) ([]domain.DocScore, error)
	CountFindings(ctx context.Context, docID, keyword string) (int, error)
}
