package findings

import (
	"context"

	"github.com/findex-kr/findex/internal/domain"
)

// LexicalRepository is the BM25 leg over the finding index.
type LexicalRepository interface {
	SearchFindings(ctx context.Context, q domain.FindingQuery) ([]domain.FindingHit, error)
}

// VectorRepository is the similarity leg over finding embeddings.
type VectorRepository interface {
	SearchFindings(
		ctx context.Context, vector []float32,
		docIDs, codes []string, threshold float32, topK int,
	) ([]domain.FindingHit, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
