// Package resolve turns context keywords into a document filter:
// intersection first, capped union as the degraded fallback.
package resolve

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/findex-kr/findex/internal/cache"
	"github.com/findex-kr/findex/internal/domain"
	"github.com/findex-kr/findex/internal/logger"
	"github.com/findex-kr/findex/internal/metrics"
)

const (
	// unionCap bounds the degraded union fallback so a broad keyword pair
	// cannot drag in the whole corpus.
	unionCap = 30

	// cacheCapacity bounds the per-keyword document set cache. Context
	// keywords repeat heavily across queries (industries, entity types).
	cacheCapacity = 256

	// frequencyDocCap bounds how many filter documents feed the per-keyword
	// finding counts.
	frequencyDocCap = 5
)

// Service resolves context keywords to a document scope.
type Service struct {
	repo Repository
	byKw *cache.LRU[string, []domain.DocScore]
}

// New creates a resolution service.
func New(repo Repository) *Service {
	return &Service{
		repo: repo,
		byKw: cache.New[string, []domain.DocScore](cacheCapacity),
	}
}

// Resolve maps keywords to a document filter. With two or more keywords the
// document sets are intersected; an empty intersection degrades to the
// score-ranked union capped at unionCap. One keyword passes its raw set
// through. Zero keywords, or keywords that matched nothing, mean no filter.
// Backend failures degrade a keyword to an empty set and never surface.
func (s *Service) Resolve(ctx context.Context, keywords []string) (domain.DocFilter, error) {
	log := logger.FromContext(ctx)

	if len(keywords) == 0 {
		return domain.DocFilter{Mode: domain.DocFilterNone}, nil
	}

	sets := make([]map[string]float64, 0, len(keywords))
	for _, kw := range keywords {
		docs, err := s.docsByKeyword(ctx, kw)
		if err != nil {
			log.Warn("keyword document lookup failed, treating as empty",
				zap.String("keyword", kw), zap.Error(err))
			metrics.BackendErrorsTotal.WithLabelValues("lexical", "resolve").Inc()
			sets = append(sets, map[string]float64{})
			continue
		}
		set := make(map[string]float64, len(docs))
		for _, d := range docs {
			if d.Score > set[d.DocID] {
				set[d.DocID] = d.Score
			}
		}
		sets = append(sets, set)
	}

	if len(sets) == 1 {
		ids := rankedIDs(sets[0], 0)
		if len(ids) == 0 {
			return domain.DocFilter{Mode: domain.DocFilterNone}, nil
		}
		return domain.DocFilter{DocIDs: ids, Mode: domain.DocFilterSingle}, nil
	}

	if ids := intersect(sets); len(ids) > 0 {
		return domain.DocFilter{DocIDs: ids, Mode: domain.DocFilterIntersection}, nil
	}

	union := make(map[string]float64)
	for _, set := range sets {
		for id, score := range set {
			if score > union[id] {
				union[id] = score
			}
		}
	}
	ids := rankedIDs(union, unionCap)
	if len(ids) == 0 {
		return domain.DocFilter{Mode: domain.DocFilterNone}, nil
	}

	log.Info("keyword document sets never co-occur, degrading to capped union",
		zap.Int("keywords", len(keywords)), zap.Int("docs", len(ids)))
	return domain.DocFilter{DocIDs: ids, Mode: domain.DocFilterUnion}, nil
}

// KeywordFrequency counts, for each keyword, how many findings in the top
// filter documents mention it. Count failures degrade that pair to zero.
func (s *Service) KeywordFrequency(
	ctx context.Context, filter domain.DocFilter, keywords []string,
) map[string]int {
	if !filter.Active() || len(keywords) == 0 {
		return nil
	}
	docIDs := filter.DocIDs
	if len(docIDs) > frequencyDocCap {
		docIDs = docIDs[:frequencyDocCap]
	}

	log := logger.FromContext(ctx)
	freq := make(map[string]int, len(keywords))
	for _, kw := range keywords {
		for _, docID := range docIDs {
			n, err := s.repo.CountFindings(ctx, docID, kw)
			if err != nil {
				log.Warn("keyword frequency count failed",
					zap.String("keyword", kw), zap.String("doc_id", docID), zap.Error(err))
				metrics.BackendErrorsTotal.WithLabelValues("lexical", "frequency").Inc()
				continue
			}
			freq[kw] += n
		}
	}
	return freq
}

// docsByKeyword serves keyword document sets through the LRU. Errors are not
// cached.
func (s *Service) docsByKeyword(ctx context.Context, keyword string) ([]domain.DocScore, error) {
	if docs, ok := s.byKw.Get(keyword); ok {
		return docs, nil
	}
	docs, err := s.repo.FindDocsByKeyword(ctx, keyword)
	if err != nil {
		return nil, err
	}
	s.byKw.Put(keyword, docs)
	return docs, nil
}

// intersect returns the doc ids present in every set, ranked by their best
// score.
func intersect(sets []map[string]float64) []string {
	scores := make(map[string]float64, len(sets[0]))
	for id, score := range sets[0] {
		scores[id] = score
	}
	for _, set := range sets[1:] {
		for id := range scores {
			score, ok := set[id]
			if !ok {
				delete(scores, id)
				continue
			}
			if score > scores[id] {
				scores[id] = score
			}
		}
	}
	return rankedIDs(scores, 0)
}

// rankedIDs sorts ids by score descending, ties by id ascending, capped at
// limit (0 means no cap).
func rankedIDs(scores map[string]float64, limit int) []string {
	type docScore struct {
		id    string
		score float64
	}
	ranked := make([]docScore, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, docScore{id: id, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	ids := make([]string, len(ranked))
	for i, d := range ranked {
		ids[i] = d.id
	}
	return ids
}
