package lexical

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/findex-kr/findex/internal/db"
	"github.com/findex-kr/findex/internal/domain"
)

func TestFindDocsByKeyword_DedupsByBestScore(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchTextFn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		if q.Index != findingIndex {
			t.Errorf("unexpected index %s", q.Index)
		}
		if len(q.Should) != 3 {
			t.Errorf("expected 3 should clauses, got %d", len(q.Should))
		}
		return &db.SearchResult{Total: 4, Entries: []db.SearchEntry{
			findingEntry("f1", 3.0, "doc-b", "접대비"),
			findingEntry("f2", 5.0, "doc-a", "접대비"),
			findingEntry("f3", 1.0, "doc-b", "접대비"),
			findingEntry("f4", 5.0, "doc-c", "접대비"),
		}}, nil
	}

	docs, err := repo.FindDocsByKeyword(context.Background(), "접대비")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(docs))
	}
	// doc-a and doc-c tie at 5.0; id ascending breaks the tie.
	if docs[0].DocID != "doc-a" || docs[1].DocID != "doc-c" || docs[2].DocID != "doc-b" {
		t.Errorf("unexpected order: %v", docs)
	}
	if docs[2].Score != 3.0 {
		t.Errorf("doc-b should keep its best score, got %f", docs[2].Score)
	}
}

func TestFindDocsByKeyword_Empty(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchTextFn = func(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
		return &db.SearchResult{}, nil
	}

	docs, err := repo.FindDocsByKeyword(context.Background(), "없는말")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs != nil {
		t.Errorf("expected nil, got %v", docs)
	}
}

func TestSearchFindings_BoostedTerms(t *testing.T) {
	repo, ms := newTestRepo(t)
	var captured *db.TextQuery
	ms.searchTextFn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		captured = q
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
			findingEntry("f1", 2.5, "doc-1", "가공경비"),
		}}, nil
	}

	hits, err := repo.SearchFindings(context.Background(), domain.FindingQuery{
		Boosted: []domain.BoostedTerm{
			{Term: "가공경비", Boost: 3.0},
			{Term: "세금계산서", Boost: 1.5},
		},
		DocIDs: []string{"doc-1"},
		TopK:   150,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2 terms across 3 fields each.
	if len(captured.Should) != 6 {
		t.Fatalf("expected 6 should clauses, got %d", len(captured.Should))
	}
	if captured.Should[0].Weight != 3.0 {
		t.Errorf("item weight = %f, want 3.0", captured.Should[0].Weight)
	}
	if math.Abs(captured.Should[1].Weight-3.0*findingReasonScale) > 1e-9 {
		t.Errorf("reason weight = %f, want %f", captured.Should[1].Weight, 3.0*findingReasonScale)
	}
	if len(captured.Terms) != 1 || captured.Terms[0].Field != "doc_id" {
		t.Errorf("expected doc_id term filter, got %v", captured.Terms)
	}

	if hits[0].FindingID != "f1" || hits[0].ScoreBM25 != 2.5 {
		t.Errorf("unexpected hit: %+v", hits[0])
	}
}

func TestSearchFindings_PlainText(t *testing.T) {
	repo, ms := newTestRepo(t)
	var captured *db.TextQuery
	ms.searchTextFn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		captured = q
		return &db.SearchResult{}, nil
	}

	_, err := repo.SearchFindings(context.Background(), domain.FindingQuery{
		Text: "가공경비 접대비",
		TopK: 150,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(captured.Should) != 3 {
		t.Fatalf("expected 3 should clauses, got %d", len(captured.Should))
	}
	if captured.Should[0].Field != "item" || captured.Should[0].Weight != docItemBoost {
		t.Errorf("unexpected first clause: %+v", captured.Should[0])
	}
}

func TestSearchChunks_Scoping(t *testing.T) {
	repo, ms := newTestRepo(t)
	var captured *db.TextQuery
	ms.searchTextFn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		captured = q
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
			chunkEntry("c1", 1.2, "f1", "조사기법", "현금매출 누락 확인 절차"),
		}}, nil
	}

	hits, err := repo.SearchChunks(context.Background(), domain.ChunkQuery{
		Text:       "현금매출",
		Section:    "조사기법",
		FindingIDs: []string{"f1", "f2"},
		TopK:       300,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.Index != chunkIndex {
		t.Errorf("unexpected index %s", captured.Index)
	}
	if len(captured.Terms) != 2 {
		t.Fatalf("expected section+finding_id filters, got %v", captured.Terms)
	}
	// Raw text, normalized text and item name form the required group.
	if len(captured.MustAny) != 3 {
		t.Fatalf("expected 3 must-any clauses, got %v", captured.MustAny)
	}
	if captured.MustAny[0].Field != "text" || captured.MustAny[0].Weight != chunkTextBoost {
		t.Errorf("unexpected first clause: %+v", captured.MustAny[0])
	}
	if captured.MustAny[1].Field != "text_norm" || captured.MustAny[2].Field != "item" {
		t.Errorf("unexpected clause fields: %+v", captured.MustAny)
	}

	h := hits[0]
	if h.ChunkID != "c1" || h.FindingID != "f1" || h.Section != "조사기법" {
		t.Errorf("unexpected hit: %+v", h)
	}
	if h.Page != 12 || h.StartLine != 3 || h.EndLine != 9 || h.ChunkOrder != 2 {
		t.Errorf("numeric fields not parsed: %+v", h)
	}
}

func TestGetChunk_Success(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hGetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key != chunkPrefix+"c9" {
			t.Errorf("unexpected key %s", key)
		}
		return map[string]string{
			"finding_id": "f1",
			"doc_id":     "doc-1",
			"section":    "과세논리",
			"text":       "매출누락에 대한 과세 근거",
		}, nil
	}

	hit, err := repo.GetChunk(context.Background(), "c9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit.ChunkID != "c9" || hit.Text != "매출누락에 대한 과세 근거" {
		t.Errorf("unexpected hit: %+v", hit)
	}
}

func TestGetChunk_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.GetChunk(context.Background(), "missing")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestCountFindings(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchCountFn = func(_ context.Context, q *db.TextQuery) (int, error) {
		if len(q.Terms) != 1 || q.Terms[0].Values[0] != "doc-1" {
			t.Errorf("expected doc filter, got %v", q.Terms)
		}
		return 7, nil
	}

	n, err := repo.CountFindings(context.Background(), "doc-1", "접대비")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("expected 7, got %d", n)
	}
}
