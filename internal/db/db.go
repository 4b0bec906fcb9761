// Package db defines the storage interfaces and query types used by the
// lexical retrieval layer.
package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces, not on Store.
type Store interface {
	Pinger
	HashReader
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashReader provides point lookups on hash documents.
type HashReader interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// TextClause is one full-text match on a single field. Weight scales the
// field's contribution to the BM25 score; zero means the index default.
type TextClause struct {
	Field  string
	Query  string
	Weight float64
}

// TermFilter restricts results to documents whose tag field holds any of
// Values.
type TermFilter struct {
	Field  string
	Values []string
}

// TextQuery is a BM25 search request. MustText clauses all have to match;
// MustAny clauses form one required group of which at least one has to match;
// Should clauses only influence ranking when any must part or Terms filter is
// present, and act as matching clauses otherwise.
type TextQuery struct {
	Index        string
	MustText     []TextClause
	MustAny      []TextClause
	Should       []TextClause
	Terms        []TermFilter
	TopK         int
	ReturnFields []string
}

// SearchEntry is a single search result: the document key, its BM25 score
// and the returned fields.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// SearchResult holds search entries plus the total match count.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchText(ctx context.Context, q *TextQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, q *TextQuery) (int, error)
}
