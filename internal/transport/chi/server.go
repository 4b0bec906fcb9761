// Package chi exposes the retrieval pipeline over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/findex-kr/findex/internal/domain"
	"github.com/findex-kr/findex/internal/usecase/pipeline"
)

// ContextPipeline runs the retrieval pipeline for one request.
type ContextPipeline interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// HealthChecker reports readiness of a backend.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server handles the retrieval API.
type Server struct {
	pipeline      ContextPipeline
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(p ContextPipeline, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		pipeline: p,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrMalformedClassifierResponse, http.StatusBadGateway, "classifier_error"),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, "backend_unavailable"),
		sentinelHandler(domain.ErrDictionaryNotLoaded, http.StatusServiceUnavailable, "dictionary_not_loaded"),
	}
	return s
}

// Routes registers the API endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/context", s.buildContext)
	r.Get("/healthz", s.healthz)
}

// ContextRequest is the POST /v1/context body.
type ContextRequest struct {
	Keywords []string `json:"keywords"`
	Codes    []string `json:"codes,omitempty"`
	Sections []string `json:"sections,omitempty"`
}

// ContextResponse is the POST /v1/context reply.
type ContextResponse struct {
	QueryID            string            `json:"query_id"`
	Roles              RolesPayload      `json:"roles"`
	NeedsConfirmation  bool              `json:"needs_confirmation"`
	Filter             *FilterPayload    `json:"filter,omitempty"`
	KeywordFrequencies map[string]int    `json:"keyword_frequencies,omitempty"`
	Blocks             []BlockPayload    `json:"blocks,omitempty"`
	ExcludedBlocks     []BlockPayload    `json:"excluded_blocks,omitempty"`
	Context            string            `json:"context,omitempty"`
	Citations          []CitationPayload `json:"citations,omitempty"`
	Summary            []CitationPayload `json:"summary,omitempty"`
	TokenEstimate      int               `json:"token_estimate,omitempty"`
}

// RolesPayload mirrors the keyword role classification.
type RolesPayload struct {
	ContextKeywords []string `json:"context_keywords"`
	TargetKeywords  []string `json:"target_keywords"`
	UnknownKeywords []string `json:"unknown_keywords,omitempty"`
	Confidence      float64  `json:"confidence"`
	Method          string   `json:"method"`
}

// FilterPayload mirrors the resolved document filter.
type FilterPayload struct {
	Mode   string   `json:"mode"`
	DocIDs []string `json:"doc_ids,omitempty"`
}

// BlockPayload is one promoted finding block.
type BlockPayload struct {
	FindingID      string   `json:"finding_id"`
	DocID          string   `json:"doc_id"`
	Item           string   `json:"item"`
	Code           string   `json:"code,omitempty"`
	Score          float64  `json:"score"`
	SourceSections []string `json:"source_sections,omitempty"`
}

// CitationPayload locates a packed passage in its source document.
type CitationPayload struct {
	DocID     string `json:"doc_id"`
	FindingID string `json:"finding_id"`
	ChunkID   string `json:"chunk_id"`
	Section   string `json:"section,omitempty"`
	Page      int    `json:"page,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	Text      string `json:"text,omitempty"`
}

func (s *Server) buildContext(w http.ResponseWriter, r *http.Request) {
	var req ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if len(req.Keywords) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "At least one keyword is required")
		return
	}

	res, err := s.pipeline.Run(r.Context(), pipeline.Request{
		Keywords: req.Keywords,
		Codes:    req.Codes,
		Sections: req.Sections,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toContextResponse(res))
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toContextResponse(res pipeline.Result) ContextResponse {
	out := ContextResponse{
		QueryID: res.QueryID,
		Roles: RolesPayload{
			ContextKeywords: emptyIfNil(res.Roles.ContextKeywords),
			TargetKeywords:  emptyIfNil(res.Roles.TargetKeywords),
			UnknownKeywords: res.Roles.UnknownKeywords,
			Confidence:      res.Roles.Confidence,
			Method:          res.Roles.Method,
		},
		NeedsConfirmation: res.Roles.NeedsConfirmation,
	}
	if res.Roles.NeedsConfirmation {
		return out
	}

	out.Filter = &FilterPayload{Mode: string(res.Filter.Mode), DocIDs: res.Filter.DocIDs}
	out.KeywordFrequencies = res.KeywordFrequencies
	out.Blocks = toBlocks(res.Promotion.Blocks)
	out.ExcludedBlocks = toBlocks(res.Promotion.Excluded)
	out.Context = res.Context.Text
	out.Citations = toCitations(res.Context.Citations)
	out.Summary = toCitations(res.Context.Summary)
	out.TokenEstimate = res.Context.TokenEstimate
	return out
}

func toBlocks(blocks []domain.RankedBlock) []BlockPayload {
	out := make([]BlockPayload, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, BlockPayload{
			FindingID:      b.FindingID,
			DocID:          b.DocID,
			Item:           b.Item,
			Code:           b.Code,
			Score:          b.Score,
			SourceSections: b.SourceSections,
		})
	}
	return out
}

func toCitations(citations []domain.Citation) []CitationPayload {
	out := make([]CitationPayload, 0, len(citations))
	for _, c := range citations {
		out = append(out, CitationPayload{
			DocID:     c.DocID,
			FindingID: c.FindingID,
			ChunkID:   c.ChunkID,
			Section:   c.Section,
			Page:      c.Page,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Text:      c.Text,
		})
	}
	return out
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("unhandled pipeline error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// ErrorResponse is the error reply body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
