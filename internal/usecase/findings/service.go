// Package findings ranks finding records against an expanded keyword query,
// fusing a boosted BM25 leg with an optional vector leg.
package findings

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/findex-kr/findex/internal/domain"
	"github.com/findex-kr/findex/internal/logger"
	"github.com/findex-kr/findex/internal/metrics"
	"github.com/findex-kr/findex/internal/rank"
)

const (
	lexicalTopK = 150
	vectorTopK  = 150
	finalTopN   = 30

	// vectorThreshold is stricter at the finding level than for passages:
	// finding texts are short, so weak similarity is mostly noise.
	vectorThreshold = 0.65

	mustBoost   = 3.0
	shouldBoost = 1.5

	// hybridMinMust gates the vector leg: a single must keyword embeds to
	// an unspecific vector, so hybrid needs at least two.
	hybridMinMust = 2

	// scoreCutoffRatio drops the tail below half the top fused score when a
	// document filter narrowed the corpus.
	scoreCutoffRatio = 0.5
)

// Service retrieves and ranks findings.
type Service struct {
	lexical LexicalRepository
	vector  VectorRepository
	embed   Embedder
}

// New creates a finding retrieval service.
func New(lexical LexicalRepository, vector VectorRepository, embed Embedder) *Service {
	return &Service{lexical: lexical, vector: vector, embed: embed}
}

// Search ranks findings for the expansion within the document filter.
// Backend failures degrade the affected leg to an empty list; the fused
// result of the surviving leg is still returned.
func (s *Service) Search(
	ctx context.Context, exp domain.Expansion,
	filter domain.DocFilter, codes []string,
) ([]domain.FindingHit, error) {
	log := logger.FromContext(ctx)

	var docIDs []string
	if filter.Active() {
		docIDs = filter.DocIDs
	}

	lexHits := s.lexicalLeg(ctx, exp, docIDs, codes)
	metrics.CandidatesTotal.WithLabelValues("findings_lexical").Observe(float64(len(lexHits)))

	var vecHits []domain.FindingHit
	if len(exp.MustHave) >= hybridMinMust {
		vecHits = s.vectorLeg(ctx, exp, docIDs, codes)
		metrics.CandidatesTotal.WithLabelValues("findings_vector").Observe(float64(len(vecHits)))
	}

	fused := fuse(lexHits, vecHits)

	if filter.Active() && len(fused) > 1 {
		cutoff := fused[0].ScoreCombined * scoreCutoffRatio
		kept := fused[:1]
		for _, h := range fused[1:] {
			if h.ScoreCombined >= cutoff {
				kept = append(kept, h)
			}
		}
		if len(kept) < len(fused) {
			log.Debug("cut finding tail below score ratio",
				zap.Int("dropped", len(fused)-len(kept)))
		}
		fused = kept
	}

	if len(fused) > finalTopN {
		fused = fused[:finalTopN]
	}
	return fused, nil
}

func (s *Service) lexicalLeg(
	ctx context.Context, exp domain.Expansion, docIDs, codes []string,
) []domain.FindingHit {
	boosted := make([]domain.BoostedTerm, 0, len(exp.MustHave)+len(exp.ShouldHave))
	for _, term := range exp.MustHave {
		boosted = append(boosted, domain.BoostedTerm{Term: term, Boost: exp.Boost(term, mustBoost)})
	}
	for _, term := range exp.ShouldHave {
		boosted = append(boosted, domain.BoostedTerm{Term: term, Boost: exp.Boost(term, shouldBoost)})
	}

	hits, err := s.lexical.SearchFindings(ctx, domain.FindingQuery{
		Boosted: boosted,
		DocIDs:  docIDs,
		Codes:   codes,
		TopK:    lexicalTopK,
	})
	if err != nil {
		logger.FromContext(ctx).Warn("lexical finding search failed, degrading to empty",
			zap.Error(err))
		metrics.BackendErrorsTotal.WithLabelValues("lexical", "findings").Inc()
		return nil
	}
	return hits
}

func (s *Service) vectorLeg(
	ctx context.Context, exp domain.Expansion, docIDs, codes []string,
) []domain.FindingHit {
	log := logger.FromContext(ctx)

	emb, err := s.embed.Embed(ctx, strings.Join(exp.MustHave, " "))
	if err != nil {
		log.Warn("query embedding failed, skipping vector leg", zap.Error(err))
		metrics.BackendErrorsTotal.WithLabelValues("embedding", "findings").Inc()
		return nil
	}

	hits, err := s.vector.SearchFindings(ctx, emb.Embedding, docIDs, codes, vectorThreshold, vectorTopK)
	if err != nil {
		log.Warn("vector finding search failed, degrading to empty", zap.Error(err))
		metrics.BackendErrorsTotal.WithLabelValues("vector", "findings").Inc()
		return nil
	}
	return hits
}

// fuse merges the two legs via RRF, carrying per-leg scores and metadata
// from whichever leg saw the finding.
func fuse(lexHits, vecHits []domain.FindingHit) []domain.FindingHit {
	lexEntries := make([]rank.Entry, len(lexHits))
	for i, h := range lexHits {
		lexEntries[i] = rank.Entry{ID: h.FindingID, Score: h.ScoreBM25}
	}
	vecEntries := make([]rank.Entry, len(vecHits))
	for i, h := range vecHits {
		vecEntries[i] = rank.Entry{ID: h.FindingID, Score: h.ScoreVector}
	}

	byID := make(map[string]domain.FindingHit, len(lexHits)+len(vecHits))
	for _, h := range lexHits {
		byID[h.FindingID] = h
	}
	for _, h := range vecHits {
		if existing, ok := byID[h.FindingID]; ok {
			existing.ScoreVector = h.ScoreVector
			byID[h.FindingID] = existing
			continue
		}
		byID[h.FindingID] = h
	}

	fused := rank.Fuse(lexEntries, vecEntries, rank.DefaultK, 0)
	out := make([]domain.FindingHit, 0, len(fused))
	for _, e := range fused {
		h := byID[e.ID]
		h.ScoreCombined = e.Score
		out = append(out, h)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ScoreCombined != out[j].ScoreCombined {
			return out[i].ScoreCombined > out[j].ScoreCombined
		}
		return out[i].FindingID < out[j].FindingID
	})
	return out
}
