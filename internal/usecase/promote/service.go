// Package promote lifts section-level passage hits into ranked finding
// blocks: one block per finding, scored by its best passages across the
// retrieved sections.
package promote

import (
	"sort"
	"strings"

	"github.com/findex-kr/findex/internal/domain"
)

// Options tune block scoring and selection.
type Options struct {
	// TopKChunks is how many section-deduplicated passages feed a block's
	// average score.
	TopKChunks int
	// IntersectionMin is the smallest count of findings present in every
	// section group that keeps scoring intersection-first.
	IntersectionMin int
	// SectionWeight is the per-group weight on the blended union path.
	SectionWeight float64
	// MaxBlocksPerDoc caps how many blocks one document may contribute.
	MaxBlocksPerDoc int
	// FinalTopN caps the promoted blocks.
	FinalTopN int
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		TopKChunks:      3,
		IntersectionMin: 2,
		SectionWeight:   0.5,
		MaxBlocksPerDoc: 2,
		FinalTopN:       3,
	}
}

// Service promotes passage hits into ranked blocks.
type Service struct {
	opts Options
}

// New creates a promotion service.
func New(opts Options) *Service {
	if opts.TopKChunks <= 0 {
		opts.TopKChunks = 3
	}
	if opts.IntersectionMin <= 0 {
		opts.IntersectionMin = 2
	}
	if opts.SectionWeight <= 0 {
		opts.SectionWeight = 0.5
	}
	if opts.MaxBlocksPerDoc <= 0 {
		opts.MaxBlocksPerDoc = 2
	}
	if opts.FinalTopN <= 0 {
		opts.FinalTopN = 3
	}
	return &Service{opts: opts}
}

// Promote groups passages by finding, scores the blocks, filters them by the
// target keywords, and applies the per-document and global caps. Candidates
// that were scored but filtered out are retained in Excluded.
func (s *Service) Promote(sections map[string][]domain.ChunkHit, targetKeywords []string) domain.Promotion {
	candidates := s.buildBlocks(sections)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].FindingID < candidates[j].FindingID
	})

	counts := keywordBlockCounts(candidates, targetKeywords)

	var (
		blocks   []domain.RankedBlock
		excluded []domain.RankedBlock
		perDoc   = make(map[string]int)
	)
	for _, b := range candidates {
		if !matchesAnyKeyword(b, targetKeywords) {
			excluded = append(excluded, b)
			continue
		}
		if perDoc[b.DocID] >= s.opts.MaxBlocksPerDoc {
			excluded = append(excluded, b)
			continue
		}
		if len(blocks) >= s.opts.FinalTopN {
			excluded = append(excluded, b)
			continue
		}
		perDoc[b.DocID]++
		blocks = append(blocks, b)
	}

	return domain.Promotion{
		Blocks:             blocks,
		Excluded:           excluded,
		KeywordBlockCounts: counts,
	}
}

// buildBlocks groups hits by finding id across the section groups. When
// enough findings appear in every group, only those findings become
// candidates, each scored on its combined passages. Otherwise every finding
// in the union is a candidate, scored as the weighted sum of its per-group
// averages.
func (s *Service) buildBlocks(sections map[string][]domain.ChunkHit) []domain.RankedBlock {
	type group struct {
		bySection map[string][]domain.ChunkHit
		order     []string
	}
	groups := make(map[string]*group)
	var findingOrder []string

	sectionNames := make([]string, 0, len(sections))
	for name := range sections {
		sectionNames = append(sectionNames, name)
	}
	sort.Strings(sectionNames)

	for _, name := range sectionNames {
		for _, h := range sections[name] {
			if h.FindingID == "" {
				continue
			}
			g, ok := groups[h.FindingID]
			if !ok {
				g = &group{bySection: make(map[string][]domain.ChunkHit)}
				groups[h.FindingID] = g
				findingOrder = append(findingOrder, h.FindingID)
			}
			if _, seen := g.bySection[name]; !seen {
				g.order = append(g.order, name)
			}
			g.bySection[name] = append(g.bySection[name], h)
		}
	}

	intersection := 0
	for _, g := range groups {
		if len(g.bySection) == len(sectionNames) {
			intersection++
		}
	}
	intersectionFirst := len(sectionNames) >= 2 && intersection >= s.opts.IntersectionMin

	blocks := make([]domain.RankedBlock, 0, len(groups))
	for _, id := range findingOrder {
		g := groups[id]

		var score float64
		if intersectionFirst {
			if len(g.bySection) != len(sectionNames) {
				continue
			}
			combined := make([]domain.ChunkHit, 0)
			for _, name := range g.order {
				combined = append(combined, g.bySection[name]...)
			}
			score = dedupTopKAvg(combined, s.opts.TopKChunks)
		} else {
			for _, name := range g.order {
				score += s.opts.SectionWeight * dedupTopKAvg(g.bySection[name], s.opts.TopKChunks)
			}
		}

		pool := chunkPool(g.bySection)
		first := pool[0]
		blocks = append(blocks, domain.RankedBlock{
			FindingID:      id,
			DocID:          first.DocID,
			Item:           first.Item,
			Code:           first.Code,
			Score:          score,
			Chunks:         pool,
			SourceSections: g.order,
		})
	}
	return blocks
}

// chunkPool flattens the per-section lists into the block's passage pool,
// keeping the best-scoring copy of each passage, sorted by combined score
// descending.
func chunkPool(bySection map[string][]domain.ChunkHit) []domain.ChunkHit {
	best := make(map[string]domain.ChunkHit)
	for _, hits := range bySection {
		for _, h := range hits {
			if cur, ok := best[h.ChunkID]; !ok || h.ScoreCombined > cur.ScoreCombined {
				best[h.ChunkID] = h
			}
		}
	}
	pool := make([]domain.ChunkHit, 0, len(best))
	for _, h := range best {
		pool = append(pool, h)
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].ScoreCombined != pool[j].ScoreCombined {
			return pool[i].ScoreCombined > pool[j].ScoreCombined
		}
		return pool[i].ChunkID < pool[j].ChunkID
	})
	return pool
}

// dedupTopKAvg keeps the best passage per distinct section name, then
// averages the top k surviving combined scores.
func dedupTopKAvg(hits []domain.ChunkHit, k int) float64 {
	if len(hits) == 0 {
		return 0
	}
	sorted := make([]domain.ChunkHit, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ScoreCombined != sorted[j].ScoreCombined {
			return sorted[i].ScoreCombined > sorted[j].ScoreCombined
		}
		return sorted[i].ChunkID < sorted[j].ChunkID
	})

	seen := make(map[string]bool)
	var sum float64
	n := 0
	for _, h := range sorted {
		if seen[h.Section] {
			continue
		}
		seen[h.Section] = true
		sum += h.ScoreCombined
		n++
		if n == k {
			break
		}
	}
	return sum / float64(n)
}

// matchesAnyKeyword reports whether any target keyword occurs in the block's
// item or passage texts. No keywords means no filtering.
func matchesAnyKeyword(b domain.RankedBlock, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, kw := range keywords {
		if blockContains(b, kw) {
			return true
		}
	}
	return false
}

func keywordBlockCounts(blocks []domain.RankedBlock, keywords []string) map[string]int {
	if len(keywords) == 0 {
		return nil
	}
	counts := make(map[string]int, len(keywords))
	for _, kw := range keywords {
		for _, b := range blocks {
			if blockContains(b, kw) {
				counts[kw]++
			}
		}
	}
	return counts
}

func blockContains(b domain.RankedBlock, keyword string) bool {
	kw := strings.ToLower(keyword)
	if strings.Contains(strings.ToLower(b.Item), kw) {
		return true
	}
	for _, c := range b.Chunks {
		if strings.Contains(strings.ToLower(c.ItemNorm), kw) ||
			strings.Contains(strings.ToLower(c.Text), kw) ||
			strings.Contains(strings.ToLower(c.TextNorm), kw) {
			return true
		}
	}
	return false
}
