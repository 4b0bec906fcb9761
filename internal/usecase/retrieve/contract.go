package retrieve

import (
	"context"

	"github.com/findex-kr/findex/internal/domain"
)

// LexicalRepository is the BM25 leg over the chunk index plus the point
// lookup used for text backfill.
type LexicalRepository interface {
	SearchChunks(ctx context.Context, q domain.ChunkQuery) ([]domain.ChunkHit, error)
	GetChunk(ctx context.Context, chunkID string) (domain.ChunkHit, error)
}

// VectorRepository is the similarity leg over chunk embeddings.
type VectorRepository interface {
	SearchChunks(
		ctx context.Context, vector []float32, section string,
		findingIDs, docIDs, codes []string, threshold float32, topK int,
	) ([]domain.ChunkHit, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
