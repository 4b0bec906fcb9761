// Package lexical implements BM25 retrieval over the finding and chunk
// indexes.
package lexical

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/findex-kr/findex/internal/db"
	"github.com/findex-kr/findex/internal/domain"
)

const (
	findingPrefix = "findex:findings:"
	chunkPrefix   = "findex:chunks:"
	findingIndex  = "findex:findings:idx"
	chunkIndex    = "findex:chunks:idx"

	// Field boosts for keyword-to-document resolution. The item name is the
	// strongest signal, normalized reason keywords next, free-form detail
	// last.
	docItemBoost   = 2.0
	docReasonBoost = 1.5
	docDetailBoost = 1.0

	// Relative field boosts for finding-level ranking, scaled by the
	// per-term boost weight.
	findingReasonScale = 0.8
	findingDetailScale = 0.5

	// chunkTextBoost favors the raw passage text over its normalized form
	// and item name in passage search.
	chunkTextBoost = 2.0

	docResolveTopK = 100
)

var findingReturnFields = []string{"doc_id", "item", "item_detail", "code"}

var chunkReturnFields = []string{
	"finding_id", "doc_id", "section", "section_order", "chunk_order",
	"code", "item", "item_norm", "page", "start_line", "end_line",
	"text", "text_norm",
}

// store is the consumer interface for lexical search operations (ISP).
type store interface {
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, q *db.TextQuery) (int, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo implements the lexical legs of the retrieval pipeline.
type Repo struct {
	store   store
	timeout time.Duration
}

// New creates a lexical repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// WithTimeout bounds every backend call. Zero disables the bound.
func (r *Repo) WithTimeout(d time.Duration) *Repo {
	r.timeout = d
	return r
}

func (r *Repo) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// FindDocsByKeyword resolves a keyword to the documents containing findings
// that match it. Each document keeps the score of its best finding; the
// result is sorted by score descending, ties by doc id ascending.
func (r *Repo) FindDocsByKeyword(ctx context.Context, keyword string) ([]domain.DocScore, error) {
	q := &db.TextQuery{
		Index: findingIndex,
		Should: []db.TextClause{
			{Field: "item", Query: keyword, Weight: docItemBoost},
			{Field: "reason_kw_norm", Query: keyword, Weight: docReasonBoost},
			{Field: "item_detail", Query: keyword, Weight: docDetailBoost},
		},
		TopK:         docResolveTopK,
		ReturnFields: []string{"doc_id"},
	}

	cctx, cancel := r.callCtx(ctx)
	defer cancel()
	sr, err := r.store.SearchText(cctx, q)
	if err != nil {
		return nil, fmt.Errorf("find docs by keyword: %w", err)
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	best := make(map[string]float64)
	for _, entry := range sr.Entries {
		docID := entry.Fields["doc_id"]
		if docID == "" {
			continue
		}
		if entry.Score > best[docID] {
			best[docID] = entry.Score
		}
	}

	docs := make([]domain.DocScore, 0, len(best))
	for id, score := range best {
		docs = append(docs, domain.DocScore{DocID: id, Score: score})
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocID < docs[j].DocID
	})
	return docs, nil
}

// SearchFindings runs a BM25 finding-level search. Boosted terms form an OR
// ranking query across the item, reason and detail fields; without boosted
// terms the plain query text is matched over the same fields.
func (r *Repo) SearchFindings(ctx context.Context, q domain.FindingQuery) ([]domain.FindingHit, error) {
	tq := &db.TextQuery{
		Index:        findingIndex,
		TopK:         q.TopK,
		ReturnFields: findingReturnFields,
	}
	if len(q.DocIDs) > 0 {
		tq.Terms = append(tq.Terms, db.TermFilter{Field: "doc_id", Values: q.DocIDs})
	}
	if len(q.Codes) > 0 {
		tq.Terms = append(tq.Terms, db.TermFilter{Field: "code", Values: q.Codes})
	}

	if len(q.Boosted) > 0 {
		for _, bt := range q.Boosted {
			b := bt.Boost
			if b <= 0 {
				b = 1
			}
			tq.Should = append(tq.Should,
				db.TextClause{Field: "item", Query: bt.Term, Weight: b},
				db.TextClause{Field: "reason_kw_norm", Query: bt.Term, Weight: b * findingReasonScale},
				db.TextClause{Field: "item_detail", Query: bt.Term, Weight: b * findingDetailScale},
			)
		}
	} else if q.Text != "" {
		tq.Should = append(tq.Should,
			db.TextClause{Field: "item", Query: q.Text, Weight: docItemBoost},
			db.TextClause{Field: "reason_kw_norm", Query: q.Text, Weight: docReasonBoost},
			db.TextClause{Field: "item_detail", Query: q.Text, Weight: docDetailBoost},
		)
	}

	cctx, cancel := r.callCtx(ctx)
	defer cancel()
	sr, err := r.store.SearchText(cctx, tq)
	if err != nil {
		return nil, fmt.Errorf("search findings: %w", err)
	}
	return parseFindingResults(sr), nil
}

// SearchChunks runs a BM25 passage search scoped to one section and an
// optional finding-id allowlist.
func (r *Repo) SearchChunks(ctx context.Context, q domain.ChunkQuery) ([]domain.ChunkHit, error) {
	tq := &db.TextQuery{
		Index:        chunkIndex,
		TopK:         q.TopK,
		ReturnFields: chunkReturnFields,
	}
	if q.Section != "" {
		tq.Terms = append(tq.Terms, db.TermFilter{Field: "section", Values: []string{q.Section}})
	}
	if len(q.FindingIDs) > 0 {
		tq.Terms = append(tq.Terms, db.TermFilter{Field: "finding_id", Values: q.FindingIDs})
	}
	if len(q.DocIDs) > 0 {
		tq.Terms = append(tq.Terms, db.TermFilter{Field: "doc_id", Values: q.DocIDs})
	}
	if len(q.Codes) > 0 {
		tq.Terms = append(tq.Terms, db.TermFilter{Field: "code", Values: q.Codes})
	}
	if q.Text != "" {
		tq.MustAny = append(tq.MustAny,
			db.TextClause{Field: "text", Query: q.Text, Weight: chunkTextBoost},
			db.TextClause{Field: "text_norm", Query: q.Text},
			db.TextClause{Field: "item", Query: q.Text},
		)
	}

	cctx, cancel := r.callCtx(ctx)
	defer cancel()
	sr, err := r.store.SearchText(cctx, tq)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	return parseChunkResults(sr), nil
}

// GetChunk fetches one passage by id via point lookup.
func (r *Repo) GetChunk(ctx context.Context, chunkID string) (domain.ChunkHit, error) {
	cctx, cancel := r.callCtx(ctx)
	defer cancel()
	fields, err := r.store.HGetAll(cctx, chunkPrefix+chunkID)
	if err != nil {
		return domain.ChunkHit{}, fmt.Errorf("get chunk %s: %w", chunkID, err)
	}
	return chunkFromFields(chunkID, 0, fields), nil
}

// CountFindings counts the findings of one document matching a keyword.
func (r *Repo) CountFindings(ctx context.Context, docID, keyword string) (int, error) {
	q := &db.TextQuery{
		Index: findingIndex,
		Terms: []db.TermFilter{{Field: "doc_id", Values: []string{docID}}},
		Should: []db.TextClause{
			{Field: "item", Query: keyword},
			{Field: "reason_kw_norm", Query: keyword},
			{Field: "item_detail", Query: keyword},
		},
	}
	cctx, cancel := r.callCtx(ctx)
	defer cancel()
	n, err := r.store.SearchCount(cctx, q)
	if err != nil {
		return 0, fmt.Errorf("count findings: %w", err)
	}
	return n, nil
}

// --- Result parsing ---

func parseFindingResults(sr *db.SearchResult) []domain.FindingHit {
	if sr == nil || sr.Total == 0 {
		return nil
	}
	hits := make([]domain.FindingHit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		hits = append(hits, domain.FindingHit{
			FindingID:  strings.TrimPrefix(entry.Key, findingPrefix),
			DocID:      entry.Fields["doc_id"],
			Item:       entry.Fields["item"],
			ItemDetail: entry.Fields["item_detail"],
			Code:       entry.Fields["code"],
			ScoreBM25:  entry.Score,
		})
	}
	return hits
}

func parseChunkResults(sr *db.SearchResult) []domain.ChunkHit {
	if sr == nil || sr.Total == 0 {
		return nil
	}
	hits := make([]domain.ChunkHit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, chunkPrefix)
		hits = append(hits, chunkFromFields(id, entry.Score, entry.Fields))
	}
	return hits
}

func chunkFromFields(id string, score float64, fields map[string]string) domain.ChunkHit {
	return domain.ChunkHit{
		ChunkID:      id,
		FindingID:    fields["finding_id"],
		DocID:        fields["doc_id"],
		Section:      fields["section"],
		SectionOrder: atoi(fields["section_order"]),
		ChunkOrder:   atoi(fields["chunk_order"]),
		Code:         fields["code"],
		Item:         fields["item"],
		ItemNorm:     fields["item_norm"],
		Page:         atoi(fields["page"]),
		StartLine:    atoi(fields["start_line"]),
		EndLine:      atoi(fields["end_line"]),
		Text:         fields["text"],
		TextNorm:     fields["text_norm"],
		ScoreBM25:    score,
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
