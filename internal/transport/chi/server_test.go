package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/findex-kr/findex/internal/domain"
	"github.com/findex-kr/findex/internal/usecase/pipeline"
)

type stubPipeline struct {
	result pipeline.Result
	err    error
	got    pipeline.Request
}

func (s *stubPipeline) Run(_ context.Context, req pipeline.Request) (pipeline.Result, error) {
	s.got = req
	return s.result, s.err
}

type stubHealth struct {
	err error
}

func (s *stubHealth) Ping(context.Context) error { return s.err }

func newTestServer(t *testing.T, p *stubPipeline, h *stubHealth) http.Handler {
	t.Helper()
	srv := NewServer(p, h, zap.NewNop())
	r := chi.NewRouter()
	srv.Routes(r)
	return r
}

func postContext(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/context", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestBuildContext_Success(t *testing.T) {
	p := &stubPipeline{result: pipeline.Result{
		Roles: domain.RoleResult{
			ContextKeywords: []string{"음식점업"},
			TargetKeywords:  []string{"현금매출"},
			Confidence:      0.95,
			Method:          "dictionary",
		},
		Filter:             domain.DocFilter{Mode: domain.DocFilterSingle, DocIDs: []string{"d1"}},
		KeywordFrequencies: map[string]int{"현금매출": 4},
		Promotion: domain.Promotion{
			Blocks: []domain.RankedBlock{
				{FindingID: "f1", DocID: "d1", Item: "현금매출 누락", Score: 0.8},
			},
			Excluded: []domain.RankedBlock{
				{FindingID: "f9", DocID: "d9", Item: "기타 항목", Score: 0.2},
			},
		},
		Context: domain.PackedContext{
			Text:          "패킹된 본문",
			Citations:     []domain.Citation{{DocID: "d1", FindingID: "f1", ChunkID: "c1", Page: 3}},
			TokenEstimate: 42,
		},
	}}
	handler := newTestServer(t, p, nil)

	rec := postContext(t, handler, `{"keywords":["음식점업","현금매출"],"codes":["법인세"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(p.got.Keywords) != 2 || p.got.Codes[0] != "법인세" {
		t.Errorf("unexpected pipeline request: %+v", p.got)
	}

	var resp ContextResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	if resp.NeedsConfirmation {
		t.Error("needs_confirmation must be false")
	}
	if resp.Context != "패킹된 본문" || resp.TokenEstimate != 42 {
		t.Errorf("unexpected context payload: %+v", resp)
	}
	if resp.Filter == nil || resp.Filter.Mode != "single" {
		t.Errorf("unexpected filter payload: %+v", resp.Filter)
	}
	if len(resp.Blocks) != 1 || resp.Blocks[0].FindingID != "f1" {
		t.Errorf("unexpected blocks payload: %+v", resp.Blocks)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].Page != 3 {
		t.Errorf("unexpected citations payload: %+v", resp.Citations)
	}
	if len(resp.ExcludedBlocks) != 1 || resp.ExcludedBlocks[0].FindingID != "f9" {
		t.Errorf("unexpected excluded blocks payload: %+v", resp.ExcludedBlocks)
	}
	if resp.KeywordFrequencies["현금매출"] != 4 {
		t.Errorf("unexpected keyword frequencies: %v", resp.KeywordFrequencies)
	}
}

func TestBuildContext_NeedsConfirmation(t *testing.T) {
	p := &stubPipeline{result: pipeline.Result{
		Roles: domain.RoleResult{
			TargetKeywords:    []string{"가공경비", "현금매출", "접대비"},
			Confidence:        0.5,
			NeedsConfirmation: true,
			Method:            "hybrid",
		},
	}}
	handler := newTestServer(t, p, nil)

	rec := postContext(t, handler, `{"keywords":["가공경비","현금매출","접대비"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp ContextResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.NeedsConfirmation {
		t.Error("needs_confirmation must be set")
	}
	if resp.Filter != nil || resp.Context != "" {
		t.Errorf("later stage fields must be omitted: %+v", resp)
	}
	if len(resp.Roles.TargetKeywords) != 3 {
		t.Errorf("roles must be surfaced: %+v", resp.Roles)
	}
}

func TestBuildContext_EmptyKeywords(t *testing.T) {
	handler := newTestServer(t, &stubPipeline{}, nil)

	rec := postContext(t, handler, `{"keywords":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestBuildContext_InvalidBody(t *testing.T) {
	handler := newTestServer(t, &stubPipeline{}, nil)

	rec := postContext(t, handler, `{keywords`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestBuildContext_ProviderErrorMapsTo502(t *testing.T) {
	p := &stubPipeline{err: domain.ErrEmbeddingProviderError}
	handler := newTestServer(t, p, nil)

	rec := postContext(t, handler, `{"keywords":["가공경비"]}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "embedding_provider_error") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestBuildContext_UnknownErrorMapsTo500(t *testing.T) {
	p := &stubPipeline{err: errors.New("boom")}
	handler := newTestServer(t, p, nil)

	rec := postContext(t, handler, `{"keywords":["가공경비"]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(t, &stubPipeline{}, &stubHealth{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHealthz_BackendDown(t *testing.T) {
	handler := newTestServer(t, &stubPipeline{}, &stubHealth{err: errors.New("down")})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
