package lexical

import (
	"context"
	"testing"

	"github.com/findex-kr/findex/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchTextFn  func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	searchCountFn func(ctx context.Context, q *db.TextQuery) (int, error)
	hGetAllFn     func(ctx context.Context, key string) (map[string]string, error)
}

func (m *mockStore) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, q *db.TextQuery) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, q)
	}
	return 0, nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hGetAllFn != nil {
		return m.hGetAllFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func findingEntry(id string, score float64, docID, item string) db.SearchEntry {
	return db.SearchEntry{
		Key:   findingPrefix + id,
		Score: score,
		Fields: map[string]string{
			"doc_id":      docID,
			"item":        item,
			"item_detail": item + " 상세",
			"code":        "법인세",
		},
	}
}

func chunkEntry(id string, score float64, findingID, section, text string) db.SearchEntry {
	return db.SearchEntry{
		Key:   chunkPrefix + id,
		Score: score,
		Fields: map[string]string{
			"finding_id":    findingID,
			"doc_id":        "doc-1",
			"section":       section,
			"section_order": "1",
			"chunk_order":   "2",
			"code":          "법인세",
			"item":          "가공경비",
			"item_norm":     "가공경비",
			"page":          "12",
			"start_line":    "3",
			"end_line":      "9",
			"text":          text,
			"text_norm":     text,
		},
	}
}
