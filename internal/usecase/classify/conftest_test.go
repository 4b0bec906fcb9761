package classify

import (
	"context"

	"github.com/findex-kr/findex/internal/domain"
)

// mapDictionary is a fixed-role dictionary for tests.
type mapDictionary map[string]domain.KeywordRole

func (m mapDictionary) Lookup(keyword string) (domain.KeywordRole, bool) {
	role, ok := m[keyword]
	return role, ok
}

// mockClassifier implements the secondary classifier for tests.
type mockClassifier struct {
	result domain.ClassifierResult
	err    error
	calls  int
	got    []string
}

func (m *mockClassifier) Classify(_ context.Context, keywords []string) (domain.ClassifierResult, error) {
	m.calls++
	m.got = keywords
	return m.result, m.err
}

var testDict = mapDictionary{
	"음식점업": domain.KeywordRoleContext,
	"수출기업": domain.KeywordRoleContext,
	"가공경비": domain.KeywordRoleTarget,
	"현금매출": domain.KeywordRoleTarget,
	"접대비":  domain.KeywordRoleTarget,
}
