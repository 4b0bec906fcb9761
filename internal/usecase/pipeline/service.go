// Package pipeline runs the full retrieval flow: keyword role classification,
// document resolution, finding ranking, section passage retrieval, block
// promotion, and context packing.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/findex-kr/findex/internal/domain"
	"github.com/findex-kr/findex/internal/logger"
	"github.com/findex-kr/findex/internal/metrics"
)

// DefaultSections are the sections retrieved when a request names none.
var DefaultSections = []string{"조사착안", "조사기법"}

// Request is one retrieval run.
type Request struct {
	Keywords []string
	Codes    []string
	// Sections overrides DefaultSections.
	Sections []string
}

// Result carries each stage's output. When Roles.NeedsConfirmation is set the
// pipeline stopped after classification and the later fields are zero.
type Result struct {
	QueryID            string
	Roles              domain.RoleResult
	Filter             domain.DocFilter
	KeywordFrequencies map[string]int
	Findings           []domain.FindingHit
	Promotion          domain.Promotion
	Context            domain.PackedContext
}

// Service wires the retrieval stages.
type Service struct {
	classifier RoleClassifier
	resolver   DocResolver
	expander   Expander
	findings   FindingSearcher
	retriever  SectionRetriever
	promoter   Promoter
	packer     Packer
	sections   []string
}

// New creates the pipeline with the deterministic rule expander.
func New(
	classifier RoleClassifier,
	resolver DocResolver,
	findings FindingSearcher,
	retriever SectionRetriever,
	promoter Promoter,
	packer Packer,
) *Service {
	return &Service{
		classifier: classifier,
		resolver:   resolver,
		expander:   ruleExpander{},
		findings:   findings,
		retriever:  retriever,
		promoter:   promoter,
		packer:     packer,
		sections:   DefaultSections,
	}
}

// WithExpander replaces the rule expander, e.g. with an LLM-backed one.
func (s *Service) WithExpander(e Expander) *Service {
	if e != nil {
		s.expander = e
	}
	return s
}

// WithSections replaces DefaultSections for requests that name none.
func (s *Service) WithSections(sections []string) *Service {
	if len(sections) > 0 {
		s.sections = sections
	}
	return s
}

// ruleExpander is the deterministic default: every target keyword is a must
// term at the default boost.
type ruleExpander struct{}

func (ruleExpander) Expand(_ context.Context, targets []string) (domain.Expansion, error) {
	return domain.Expansion{MustHave: targets}, nil
}

// Run executes the stages in order. Classification that needs user
// confirmation short-circuits the run; callers inspect Roles and re-submit
// with corrected keywords.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	queryID := uuid.NewString()
	log := logger.FromContext(ctx).With(zap.String("query_id", queryID))
	ctx = logger.ContextWithLogger(ctx, log)

	roles, err := s.timedClassify(ctx, req.Keywords)
	if err != nil {
		return Result{}, err
	}
	if roles.NeedsConfirmation {
		log.Info("classification needs confirmation, stopping early",
			zap.Float64("confidence", roles.Confidence),
			zap.Int("target_count", len(roles.TargetKeywords)))
		return Result{QueryID: queryID, Roles: roles}, nil
	}

	// The document scope is resolved from every core keyword; the target
	// list additionally filters blocks during promotion.
	core := make([]string, 0, len(roles.ContextKeywords)+len(roles.TargetKeywords))
	core = append(core, roles.ContextKeywords...)
	core = append(core, roles.TargetKeywords...)

	filter, err := s.timedResolve(ctx, core)
	if err != nil {
		return Result{}, err
	}
	log.Debug("resolved document filter",
		zap.String("mode", string(filter.Mode)), zap.Int("docs", len(filter.DocIDs)))

	frequencies := s.timedFrequency(ctx, filter, roles.TargetKeywords)

	exp, err := s.expander.Expand(ctx, roles.TargetKeywords)
	if err != nil {
		log.Warn("query expansion failed, falling back to plain must terms", zap.Error(err))
		exp = domain.Expansion{MustHave: roles.TargetKeywords}
	}

	hits, err := s.timedFindings(ctx, exp, filter, req.Codes)
	if err != nil {
		return Result{}, err
	}

	sections := req.Sections
	if len(sections) == 0 {
		sections = s.sections
	}
	bySection := s.timedSections(ctx, roles.TargetKeywords, sections, hits, filter, req.Codes)

	promotion := s.timedPromote(bySection, roles.TargetKeywords)
	packed := s.timedPack(promotion.Blocks)

	log.Info("pipeline complete",
		zap.Int("findings", len(hits)),
		zap.Int("blocks", len(promotion.Blocks)),
		zap.Int("token_estimate", packed.TokenEstimate))

	return Result{
		QueryID:            queryID,
		Roles:              roles,
		Filter:             filter,
		KeywordFrequencies: frequencies,
		Findings:           hits,
		Promotion:          promotion,
		Context:            packed,
	}, nil
}

func (s *Service) timedClassify(ctx context.Context, keywords []string) (domain.RoleResult, error) {
	defer observeStage("classify")()
	return s.classifier.Classify(ctx, keywords)
}

func (s *Service) timedResolve(ctx context.Context, contextKeywords []string) (domain.DocFilter, error) {
	defer observeStage("resolve")()
	return s.resolver.Resolve(ctx, contextKeywords)
}

func (s *Service) timedFrequency(
	ctx context.Context, filter domain.DocFilter, targets []string,
) map[string]int {
	defer observeStage("frequency")()
	return s.resolver.KeywordFrequency(ctx, filter, targets)
}

func (s *Service) timedFindings(
	ctx context.Context, exp domain.Expansion, filter domain.DocFilter, codes []string,
) ([]domain.FindingHit, error) {
	defer observeStage("findings")()
	return s.findings.Search(ctx, exp, filter, codes)
}

// timedSections retrieves every requested section in parallel. A section
// whose retrieval fails contributes an empty list.
func (s *Service) timedSections(
	ctx context.Context, targets, sections []string,
	hits []domain.FindingHit, filter domain.DocFilter, codes []string,
) map[string][]domain.ChunkHit {
	defer observeStage("sections")()

	findingIDs := make([]string, len(hits))
	for i, h := range hits {
		findingIDs[i] = h.FindingID
	}
	queryText := strings.Join(targets, " ")

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		bySection = make(map[string][]domain.ChunkHit, len(sections))
	)
	for _, section := range sections {
		wg.Add(1)
		go func(section string) {
			defer wg.Done()
			chunks, err := s.retriever.SearchSection(ctx, queryText, section, findingIDs, filter, codes)
			if err != nil {
				logger.FromContext(ctx).Warn("section retrieval failed",
					zap.String("section", section), zap.Error(err))
				chunks = nil
			}
			mu.Lock()
			bySection[section] = chunks
			mu.Unlock()
		}(section)
	}
	wg.Wait()
	return bySection
}

func (s *Service) timedPromote(sections map[string][]domain.ChunkHit, targets []string) domain.Promotion {
	defer observeStage("promote")()
	return s.promoter.Promote(sections, targets)
}

func (s *Service) timedPack(blocks []domain.RankedBlock) domain.PackedContext {
	defer observeStage("pack")()
	return s.packer.Pack(blocks)
}

func observeStage(stage string) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
