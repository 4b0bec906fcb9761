package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/findex-kr/findex/internal/domain"
)

type stubClassifier struct {
	roles domain.RoleResult
	err   error
	got   []string
}

func (s *stubClassifier) Classify(_ context.Context, keywords []string) (domain.RoleResult, error) {
	s.got = keywords
	return s.roles, s.err
}

type stubResolver struct {
	filter  domain.DocFilter
	err     error
	got     []string
	freq    map[string]int
	freqGot []string
}

func (s *stubResolver) Resolve(_ context.Context, keywords []string) (domain.DocFilter, error) {
	s.got = keywords
	return s.filter, s.err
}

func (s *stubResolver) KeywordFrequency(
	_ context.Context, _ domain.DocFilter, keywords []string,
) map[string]int {
	s.freqGot = keywords
	return s.freq
}

type stubFindings struct {
	hits      []domain.FindingHit
	err       error
	gotExp    domain.Expansion
	gotFilter domain.DocFilter
	gotCodes  []string
}

func (s *stubFindings) Search(
	_ context.Context, exp domain.Expansion, filter domain.DocFilter, codes []string,
) ([]domain.FindingHit, error) {
	s.gotExp = exp
	s.gotFilter = filter
	s.gotCodes = codes
	return s.hits, s.err
}

type stubRetriever struct {
	mu         sync.Mutex
	bySection  map[string][]domain.ChunkHit
	errSection string
	err        error
	gotQuery   string
	gotIDs     []string
	sections   []string
}

func (s *stubRetriever) SearchSection(
	_ context.Context, queryText, section string,
	findingIDs []string, _ domain.DocFilter, _ []string,
) ([]domain.ChunkHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gotQuery = queryText
	s.gotIDs = findingIDs
	s.sections = append(s.sections, section)
	if section == s.errSection {
		return nil, s.err
	}
	return s.bySection[section], nil
}

type stubPromoter struct {
	promotion   domain.Promotion
	gotSections map[string][]domain.ChunkHit
	gotTargets  []string
}

func (s *stubPromoter) Promote(sections map[string][]domain.ChunkHit, targets []string) domain.Promotion {
	s.gotSections = sections
	s.gotTargets = targets
	return s.promotion
}

type stubPacker struct {
	packed    domain.PackedContext
	gotBlocks []domain.RankedBlock
}

func (s *stubPacker) Pack(blocks []domain.RankedBlock) domain.PackedContext {
	s.gotBlocks = blocks
	return s.packed
}

type fixture struct {
	svc        *Service
	classifier *stubClassifier
	resolver   *stubResolver
	findings   *stubFindings
	retriever  *stubRetriever
	promoter   *stubPromoter
	packer     *stubPacker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		classifier: &stubClassifier{},
		resolver:   &stubResolver{},
		findings:   &stubFindings{},
		retriever:  &stubRetriever{bySection: map[string][]domain.ChunkHit{}},
		promoter:   &stubPromoter{},
		packer:     &stubPacker{},
	}
	f.svc = New(f.classifier, f.resolver, f.findings, f.retriever, f.promoter, f.packer)
	return f
}
