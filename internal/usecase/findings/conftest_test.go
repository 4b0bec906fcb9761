package findings

import (
	"context"
	"testing"

	"github.com/findex-kr/findex/internal/domain"
)

type mockLexical struct {
	hits []domain.FindingHit
	err  error
	got  domain.FindingQuery
}

func (m *mockLexical) SearchFindings(_ context.Context, q domain.FindingQuery) ([]domain.FindingHit, error) {
	m.got = q
	return m.hits, m.err
}

type mockVector struct {
	hits  []domain.FindingHit
	err   error
	calls int
}

func (m *mockVector) SearchFindings(
	_ context.Context, _ []float32, _, _ []string, _ float32, _ int,
) ([]domain.FindingHit, error) {
	m.calls++
	return m.hits, m.err
}

type mockEmbedder struct {
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

func newTestService(t *testing.T) (*Service, *mockLexical, *mockVector, *mockEmbedder) {
	t.Helper()
	lex := &mockLexical{}
	vec := &mockVector{}
	emb := &mockEmbedder{}
	return New(lex, vec, emb), lex, vec, emb
}

func lexHit(id string, score float64) domain.FindingHit {
	return domain.FindingHit{FindingID: id, DocID: "doc-" + id, Item: "항목-" + id, ScoreBM25: score}
}

func vecHit(id string, score float64) domain.FindingHit {
	return domain.FindingHit{FindingID: id, DocID: "doc-" + id, Item: "항목-" + id, ScoreVector: score}
}
