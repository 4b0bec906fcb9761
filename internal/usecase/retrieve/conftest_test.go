package retrieve

import (
	"context"
	"sync"
	"testing"

	"github.com/findex-kr/findex/internal/domain"
)

type mockLexical struct {
	mu        sync.Mutex
	hits      []domain.ChunkHit
	err       error
	got       domain.ChunkQuery
	chunks    map[string]domain.ChunkHit
	chunkErr  error
	getCalls  int
	lastGetID string
}

func (m *mockLexical) SearchChunks(_ context.Context, q domain.ChunkQuery) ([]domain.ChunkHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = q
	return m.hits, m.err
}

func (m *mockLexical) GetChunk(_ context.Context, chunkID string) (domain.ChunkHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	m.lastGetID = chunkID
	if m.chunkErr != nil {
		return domain.ChunkHit{}, m.chunkErr
	}
	h, ok := m.chunks[chunkID]
	if !ok {
		return domain.ChunkHit{}, m.chunkErr
	}
	return h, nil
}

type mockVector struct {
	mu    sync.Mutex
	hits  []domain.ChunkHit
	err   error
	calls int
}

func (m *mockVector) SearchChunks(
	_ context.Context, _ []float32, _ string, _, _, _ []string, _ float32, _ int,
) ([]domain.ChunkHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.hits, m.err
}

type mockEmbedder struct {
	mu  sync.Mutex
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1}}, nil
}

func newTestService(t *testing.T) (*Service, *mockLexical, *mockVector, *mockEmbedder) {
	t.Helper()
	lex := &mockLexical{chunks: map[string]domain.ChunkHit{}}
	vec := &mockVector{}
	emb := &mockEmbedder{}
	return New(lex, vec, emb), lex, vec, emb
}

func lexChunk(id string, score float64, text string) domain.ChunkHit {
	return domain.ChunkHit{ChunkID: id, FindingID: "f-" + id, Section: "조사기법", Text: text, ScoreBM25: score}
}

func vecChunk(id string, score float64, text string) domain.ChunkHit {
	return domain.ChunkHit{ChunkID: id, FindingID: "f-" + id, Section: "조사기법", Text: text, ScoreVector: score}
}
