// Package pack assembles promoted blocks into a token-budgeted context text
// with per-passage citations.
package pack

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/findex-kr/findex/internal/domain"
)

// DefaultSectionOrder is the canonical reading order of finding sections.
// Unknown sections sort after all known ones.
var DefaultSectionOrder = []string{"조사기법", "과세논리", "증빙 및 리스크", "조사착안"}

// Options tune packing.
type Options struct {
	// TokenBudget bounds the packed text. The passage that crosses the
	// budget is still included; packing stops after it.
	TokenBudget int
	// ChunksPerBlock caps how many passages of one block are packed.
	ChunksPerBlock int
	// MergeAdjacent joins passages that are contiguous in the source
	// document into one passage.
	MergeAdjacent bool
	// SectionOrder overrides DefaultSectionOrder.
	SectionOrder []string
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		TokenBudget:    4000,
		ChunksPerBlock: 3,
		MergeAdjacent:  true,
	}
}

// Service packs ranked blocks into generation context.
type Service struct {
	opts     Options
	priority map[string]int
}

// New creates a packing service.
func New(opts Options) *Service {
	if opts.TokenBudget <= 0 {
		opts.TokenBudget = 4000
	}
	if opts.ChunksPerBlock <= 0 {
		opts.ChunksPerBlock = 3
	}
	order := opts.SectionOrder
	if len(order) == 0 {
		order = DefaultSectionOrder
	}
	priority := make(map[string]int, len(order))
	for i, s := range order {
		priority[s] = i + 1
	}
	return &Service{opts: opts, priority: priority}
}

// passage is a packable unit: one chunk, or several adjacent chunks merged.
type passage struct {
	docID     string
	findingID string
	chunkID   string
	section   string
	page      int
	startLine int
	endLine   int
	text      string
	header    string
}

// Pack renders blocks in rank order, sections in canonical order within a
// block, passages in reading order within a section. Packing stops at the
// first passage that crosses the token budget; that passage is kept.
func (s *Service) Pack(blocks []domain.RankedBlock) domain.PackedContext {
	var (
		sb        strings.Builder
		citations []domain.Citation
		summary   []domain.Citation
		seenDocs  = make(map[string]bool)
		tokens    int
		full      bool
	)

	for _, b := range blocks {
		if full {
			break
		}
		passages := s.blockPassages(b)
		if len(passages) == 0 {
			continue
		}

		blockFirst := true
		for _, p := range passages {
			piece := p.text
			if blockFirst {
				piece = p.header + piece
			}

			sb.WriteString(piece)
			sb.WriteString("\n\n")
			tokens += estimateTokens(piece)

			citations = append(citations, domain.Citation{
				DocID:     p.docID,
				FindingID: p.findingID,
				ChunkID:   p.chunkID,
				Page:      p.page,
				StartLine: p.startLine,
				EndLine:   p.endLine,
				Text:      p.text,
				Section:   p.section,
			})
			if blockFirst && !seenDocs[b.FindingID] {
				seenDocs[b.FindingID] = true
				summary = append(summary, domain.Citation{
					DocID:     p.docID,
					FindingID: b.FindingID,
					ChunkID:   p.chunkID,
					Page:      p.page,
					Section:   p.section,
					Text:      b.Item,
				})
			}
			blockFirst = false

			if tokens >= s.opts.TokenBudget {
				full = true
				break
			}
		}
	}

	return domain.PackedContext{
		Text:          strings.TrimRight(sb.String(), "\n"),
		Citations:     citations,
		Summary:       summary,
		TokenEstimate: tokens,
	}
}

// blockPassages walks a block's sections in canonical order, takes up to
// ChunksPerBlock passages per section in reading order, and merges
// document-adjacent ones.
func (s *Service) blockPassages(b domain.RankedBlock) []passage {
	bySection := make(map[string][]domain.ChunkHit)
	var names []string
	for _, c := range b.Chunks {
		if _, ok := bySection[c.Section]; !ok {
			names = append(names, c.Section)
		}
		bySection[c.Section] = append(bySection[c.Section], c)
	}
	sort.SliceStable(names, func(i, j int) bool {
		pi, pj := s.sectionPriority(names[i]), s.sectionPriority(names[j])
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})

	var ordered []domain.ChunkHit
	for _, name := range names {
		chunks := bySection[name]
		sort.SliceStable(chunks, func(i, j int) bool {
			if chunks[i].SectionOrder != chunks[j].SectionOrder {
				return chunks[i].SectionOrder < chunks[j].SectionOrder
			}
			return chunks[i].ChunkOrder < chunks[j].ChunkOrder
		})
		if len(chunks) > s.opts.ChunksPerBlock {
			chunks = chunks[:s.opts.ChunksPerBlock]
		}
		if s.opts.MergeAdjacent {
			chunks = mergeAdjacent(chunks)
		}
		ordered = append(ordered, chunks...)
	}

	header := fmt.Sprintf("[%s | %s]\n", b.Item, b.DocID)
	passages := make([]passage, 0, len(ordered))
	prevSection := ""
	for _, c := range ordered {
		text := c.Text
		if c.Section != prevSection {
			text = fmt.Sprintf("(%s)\n%s", c.Section, text)
			prevSection = c.Section
		}
		passages = append(passages, passage{
			docID:     c.DocID,
			findingID: c.FindingID,
			chunkID:   c.ChunkID,
			section:   c.Section,
			page:      c.Page,
			startLine: c.StartLine,
			endLine:   c.EndLine,
			text:      text,
			header:    header,
		})
	}
	return passages
}

// mergeAdjacent joins runs of chunks that are contiguous in the source:
// same finding and section, consecutive chunk order. The merged passage
// keeps the first chunk's id and page and the union of the line ranges.
func mergeAdjacent(chunks []domain.ChunkHit) []domain.ChunkHit {
	if len(chunks) < 2 {
		return chunks
	}
	out := make([]domain.ChunkHit, 0, len(chunks))
	cur := chunks[0]
	for _, c := range chunks[1:] {
		if c.FindingID == cur.FindingID && c.Section == cur.Section &&
			c.ChunkOrder == cur.ChunkOrder+1 {
			cur.Text = cur.Text + "\n" + c.Text
			cur.ChunkOrder = c.ChunkOrder
			if c.StartLine > 0 && (cur.StartLine == 0 || c.StartLine < cur.StartLine) {
				cur.StartLine = c.StartLine
			}
			if c.EndLine > cur.EndLine {
				cur.EndLine = c.EndLine
			}
			continue
		}
		out = append(out, cur)
		cur = c
	}
	return append(out, cur)
}

func (s *Service) sectionPriority(section string) int {
	if p, ok := s.priority[section]; ok {
		return p
	}
	return len(s.priority) + 1
}

// estimateTokens approximates token counts as runes/4, which tracks Korean
// and mixed text closely enough for budgeting.
func estimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}
