package domain

import "context"

// EmbeddingResult is an embedding vector with provider token usage.
// Cache hits report zero tokens.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text into a fixed-length embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}
