// Package retrieve runs section-scoped hybrid passage retrieval: a BM25 leg
// and a vector leg in parallel, fused by RRF.
package retrieve

import (
	"context"
	"sort"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/findex-kr/findex/internal/domain"
	"github.com/findex-kr/findex/internal/logger"
	"github.com/findex-kr/findex/internal/metrics"
	"github.com/findex-kr/findex/internal/rank"
)

const (
	legTopK = 300

	// vectorThreshold cuts weak passage similarity server-side.
	vectorThreshold = 0.35

	// minTextRunes marks a passage text as unusable; shorter texts are
	// backfilled via point lookup.
	minTextRunes = 10
)

// Service retrieves passages for one section role.
type Service struct {
	lexical LexicalRepository
	vector  VectorRepository
	embed   Embedder
}

// New creates a passage retrieval service.
func New(lexical LexicalRepository, vector VectorRepository, embed Embedder) *Service {
	return &Service{lexical: lexical, vector: vector, embed: embed}
}

// SearchSection retrieves passages of one section, scoped to the finding
// allowlist and document filter. The legs run in parallel; a failed leg
// degrades to empty and the fused result of the other leg is returned.
// Passages whose text cannot be recovered are dropped with a warning.
func (s *Service) SearchSection(
	ctx context.Context, queryText, section string,
	findingIDs []string, filter domain.DocFilter, codes []string,
) ([]domain.ChunkHit, error) {
	log := logger.FromContext(ctx)

	var docIDs []string
	if filter.Active() {
		docIDs = filter.DocIDs
	}

	var (
		wg      sync.WaitGroup
		lexHits []domain.ChunkHit
		vecHits []domain.ChunkHit
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		hits, err := s.lexical.SearchChunks(ctx, domain.ChunkQuery{
			Text:       queryText,
			Section:    section,
			FindingIDs: findingIDs,
			DocIDs:     docIDs,
			Codes:      codes,
			TopK:       legTopK,
		})
		if err != nil {
			log.Warn("lexical chunk search failed, degrading to empty",
				zap.String("section", section), zap.Error(err))
			metrics.BackendErrorsTotal.WithLabelValues("lexical", "chunks").Inc()
			return
		}
		lexHits = hits
	}()
	go func() {
		defer wg.Done()
		emb, err := s.embed.Embed(ctx, queryText)
		if err != nil {
			log.Warn("query embedding failed, skipping vector leg",
				zap.String("section", section), zap.Error(err))
			metrics.BackendErrorsTotal.WithLabelValues("embedding", "chunks").Inc()
			return
		}
		hits, err := s.vector.SearchChunks(
			ctx, emb.Embedding, section, findingIDs, docIDs, codes, vectorThreshold, legTopK,
		)
		if err != nil {
			log.Warn("vector chunk search failed, degrading to empty",
				zap.String("section", section), zap.Error(err))
			metrics.BackendErrorsTotal.WithLabelValues("vector", "chunks").Inc()
			return
		}
		vecHits = hits
	}()
	wg.Wait()

	metrics.CandidatesTotal.WithLabelValues("chunks_lexical").Observe(float64(len(lexHits)))
	metrics.CandidatesTotal.WithLabelValues("chunks_vector").Observe(float64(len(vecHits)))

	fused := s.fuseAndBackfill(ctx, lexHits, vecHits)
	return fused, nil
}

// fuseAndBackfill merges the legs via RRF. The lexical entry wins on
// collision since it carries the text; vector-only passages with missing or
// truncated text are backfilled by point lookup and dropped when that fails.
func (s *Service) fuseAndBackfill(
	ctx context.Context, lexHits, vecHits []domain.ChunkHit,
) []domain.ChunkHit {
	log := logger.FromContext(ctx)

	lexEntries := make([]rank.Entry, len(lexHits))
	for i, h := range lexHits {
		lexEntries[i] = rank.Entry{ID: h.ChunkID, Score: h.ScoreBM25}
	}
	vecEntries := make([]rank.Entry, len(vecHits))
	for i, h := range vecHits {
		vecEntries[i] = rank.Entry{ID: h.ChunkID, Score: h.ScoreVector}
	}

	byID := make(map[string]domain.ChunkHit, len(lexHits)+len(vecHits))
	for _, h := range vecHits {
		byID[h.ChunkID] = h
	}
	for _, h := range lexHits {
		if existing, ok := byID[h.ChunkID]; ok {
			h.ScoreVector = existing.ScoreVector
		}
		byID[h.ChunkID] = h
	}

	fused := rank.Fuse(lexEntries, vecEntries, rank.DefaultK, 0)

	out := make([]domain.ChunkHit, 0, len(fused))
	for _, e := range fused {
		h := byID[e.ID]
		h.ScoreCombined = e.Score

		if textUsable(h.Text) {
			out = append(out, h)
			continue
		}

		full, err := s.lexical.GetChunk(ctx, h.ChunkID)
		if err != nil || !textUsable(full.Text) {
			log.Warn("passage text unrecoverable, dropping",
				zap.String("chunk_id", h.ChunkID), zap.Error(err))
			continue
		}
		full.ScoreBM25 = h.ScoreBM25
		full.ScoreVector = h.ScoreVector
		full.ScoreCombined = h.ScoreCombined
		out = append(out, full)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ScoreCombined != out[j].ScoreCombined {
			return out[i].ScoreCombined > out[j].ScoreCombined
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

func textUsable(text string) bool {
	return utf8.RuneCountInString(text) >= minTextRunes
}
