// Package classify partitions query keywords into document-scoping context
// keywords and block-filtering target keywords.
package classify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/findex-kr/findex/internal/domain"
	"github.com/findex-kr/findex/internal/logger"
)

const (
	// dictionaryConfidence weighs dictionary-covered keywords in the
	// blended confidence.
	dictionaryConfidence = 0.95
	// fallbackConfidence applies when unknown keywords are routed by the
	// default rule instead of a real classifier.
	fallbackConfidence = 0.5
	// confirmThreshold gates disambiguation: below it the caller must ask
	// the user instead of ranking.
	confirmThreshold = 0.7
	// targetFloodCount triggers confirmation when the partition produced no
	// context keyword but this many target keywords.
	targetFloodCount = 3
)

const (
	methodDictionary = "dictionary"
	methodHybrid     = "hybrid"
)

// Service classifies keywords dictionary-first, delegating the remainder to
// a secondary classifier.
type Service struct {
	dict      Dictionary
	secondary Classifier
}

// New creates a classification service. secondary may be nil; unknown
// keywords then fall back to the target role.
func New(dict Dictionary, secondary Classifier) *Service {
	return &Service{dict: dict, secondary: secondary}
}

// Classify partitions keywords into roles. The dictionary decides first;
// keywords it does not know go to the secondary classifier, and to the
// target role when that is unavailable or fails. Classification never
// returns an error for a degraded secondary: confidence reflects it instead.
func (s *Service) Classify(ctx context.Context, keywords []string) (domain.RoleResult, error) {
	log := logger.FromContext(ctx)

	keywords = dedup(keywords)
	if len(keywords) == 0 {
		return domain.RoleResult{Confidence: 1, Method: methodDictionary}, nil
	}

	res := domain.RoleResult{Method: methodDictionary}
	var unknown []string
	for _, kw := range keywords {
		role, ok := s.dict.Lookup(kw)
		if !ok {
			unknown = append(unknown, kw)
			continue
		}
		switch role {
		case domain.KeywordRoleContext:
			res.ContextKeywords = append(res.ContextKeywords, kw)
		case domain.KeywordRoleTarget:
			res.TargetKeywords = append(res.TargetKeywords, kw)
		}
	}

	knownRatio := float64(len(keywords)-len(unknown)) / float64(len(keywords))

	if len(unknown) == 0 {
		res.Confidence = dictionaryConfidence
		res.NeedsConfirmation = needsConfirmation(res)
		return res, nil
	}

	res.Method = methodHybrid
	res.UnknownKeywords = unknown

	secondaryConf := fallbackConfidence
	cr, err := s.classifyUnknown(ctx, unknown)
	if err != nil {
		log.Warn("secondary keyword classification failed, falling back to target role",
			zap.Strings("keywords", unknown), zap.Error(err))
		res.TargetKeywords = append(res.TargetKeywords, unknown...)
	} else {
		res.ContextKeywords = append(res.ContextKeywords, cr.ContextKeywords...)
		res.TargetKeywords = append(res.TargetKeywords, cr.TargetKeywords...)
		secondaryConf = cr.Confidence
		// Keywords the classifier dropped still have to land somewhere.
		for _, kw := range missing(unknown, cr) {
			res.TargetKeywords = append(res.TargetKeywords, kw)
		}
	}

	res.Confidence = knownRatio*dictionaryConfidence + (1-knownRatio)*secondaryConf
	res.NeedsConfirmation = needsConfirmation(res)
	return res, nil
}

func (s *Service) classifyUnknown(ctx context.Context, unknown []string) (domain.ClassifierResult, error) {
	if s.secondary == nil {
		return domain.ClassifierResult{
			TargetKeywords: unknown,
			Confidence:     fallbackConfidence,
		}, nil
	}
	return s.secondary.Classify(ctx, unknown)
}

func needsConfirmation(res domain.RoleResult) bool {
	if res.Confidence < confirmThreshold {
		return true
	}
	return len(res.ContextKeywords) == 0 && len(res.TargetKeywords) >= targetFloodCount
}

func missing(unknown []string, cr domain.ClassifierResult) []string {
	seen := make(map[string]bool, len(cr.ContextKeywords)+len(cr.TargetKeywords))
	for _, kw := range cr.ContextKeywords {
		seen[strings.ToLower(kw)] = true
	}
	for _, kw := range cr.TargetKeywords {
		seen[strings.ToLower(kw)] = true
	}
	var out []string
	for _, kw := range unknown {
		if !seen[strings.ToLower(kw)] {
			out = append(out, kw)
		}
	}
	return out
}

func dedup(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
	}
	return out
}
