// Package embcache decorates an embedder with an in-process LRU so repeated
// query legs reuse the same vector within a session.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/findex-kr/findex/internal/cache"
	"github.com/findex-kr/findex/internal/domain"
)

// DefaultCapacity bounds the cache; query texts are short and few per
// request, so a small cache covers the repeat lookups of one session.
const DefaultCapacity = 100

// CachedEmbedder caches embeddings in memory.
type CachedEmbedder struct {
	inner      domain.Embedder
	lru        *cache.LRU[string, []float32]
	cacheTotal *prometheus.CounterVec
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(inner domain.Embedder, capacity int, cacheTotal *prometheus.CounterVec) *CachedEmbedder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &CachedEmbedder{
		inner:      inner,
		lru:        cache.New[string, []float32](capacity),
		cacheTotal: cacheTotal,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
// Cache miss: full EmbeddingResult from inner.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := cacheKey(text)

	if vec, ok := c.lru.Get(key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	c.incCache("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.lru.Put(key, result.Embedding)
	return result, nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
