// Package vector implements similarity retrieval over the Qdrant
// collections holding finding and chunk embeddings.
package vector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/findex-kr/findex/internal/domain"
)

const (
	findingsCollection = "findings_vectors"
	chunksCollection   = "chunks_vectors"
)

// querier is the consumer interface over the Qdrant client (ISP).
type querier interface {
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// Repo implements the vector legs of the retrieval pipeline.
type Repo struct {
	client  querier
	timeout time.Duration
}

// New creates a vector repository over an established Qdrant client.
func New(c querier) *Repo {
	return &Repo{client: c}
}

// WithTimeout bounds every query. Zero disables the bound.
func (r *Repo) WithTimeout(d time.Duration) *Repo {
	r.timeout = d
	return r
}

func (r *Repo) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Config holds connection parameters for Qdrant.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// NewClient dials Qdrant over gRPC.
func NewClient(cfg Config) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return client, nil
}

// SearchFindings runs a similarity search over finding embeddings. Results
// below threshold are cut server-side.
func (r *Repo) SearchFindings(
	ctx context.Context, vector []float32,
	docIDs, codes []string, threshold float32, topK int,
) ([]domain.FindingHit, error) {
	limit := uint64(topK)
	req := &qdrant.QueryPoints{
		CollectionName: findingsCollection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildFindingFilter(docIDs, codes),
	}
	if threshold > 0 {
		req.ScoreThreshold = &threshold
	}

	cctx, cancel := r.callCtx(ctx)
	defer cancel()
	points, err := r.client.Query(cctx, req)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}

	hits := make([]domain.FindingHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, findingFromPoint(p))
	}
	return hits, nil
}

// SearchChunks runs a similarity search over passage embeddings, scoped to
// one section and an optional finding-id allowlist.
func (r *Repo) SearchChunks(
	ctx context.Context, vector []float32, section string,
	findingIDs, docIDs, codes []string, threshold float32, topK int,
) ([]domain.ChunkHit, error) {
	limit := uint64(topK)
	req := &qdrant.QueryPoints{
		CollectionName: chunksCollection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildChunkFilter(section, findingIDs, docIDs, codes),
	}
	if threshold > 0 {
		req.ScoreThreshold = &threshold
	}

	cctx, cancel := r.callCtx(ctx)
	defer cancel()
	points, err := r.client.Query(cctx, req)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}

	hits := make([]domain.ChunkHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, chunkFromPoint(p))
	}
	return hits, nil
}

// --- Filter building ---

func buildFindingFilter(docIDs, codes []string) *qdrant.Filter {
	var must []*qdrant.Condition
	if len(docIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords("doc_id", docIDs...))
	}
	if len(codes) > 0 {
		must = append(must, qdrant.NewMatchKeywords("code", codes...))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func buildChunkFilter(section string, findingIDs, docIDs, codes []string) *qdrant.Filter {
	var must []*qdrant.Condition
	if section != "" {
		must = append(must, qdrant.NewMatch("section", section))
	}
	if len(findingIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords("finding_id", findingIDs...))
	}
	if len(docIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords("doc_id", docIDs...))
	}
	if len(codes) > 0 {
		must = append(must, qdrant.NewMatchKeywords("code", codes...))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// --- Payload conversion ---

func findingFromPoint(p *qdrant.ScoredPoint) domain.FindingHit {
	return domain.FindingHit{
		FindingID:   pointID(p),
		DocID:       payloadString(p.Payload, "doc_id"),
		Item:        payloadString(p.Payload, "item"),
		ItemDetail:  payloadString(p.Payload, "item_detail"),
		Code:        payloadString(p.Payload, "code"),
		ScoreVector: float64(p.Score),
	}
}

func chunkFromPoint(p *qdrant.ScoredPoint) domain.ChunkHit {
	return domain.ChunkHit{
		ChunkID:      pointID(p),
		FindingID:    payloadString(p.Payload, "finding_id"),
		DocID:        payloadString(p.Payload, "doc_id"),
		Section:      payloadString(p.Payload, "section"),
		SectionOrder: payloadInt(p.Payload, "section_order"),
		ChunkOrder:   payloadInt(p.Payload, "chunk_order"),
		Code:         payloadString(p.Payload, "code"),
		Item:         payloadString(p.Payload, "item"),
		ItemNorm:     payloadString(p.Payload, "item_norm"),
		Page:         payloadInt(p.Payload, "page"),
		StartLine:    payloadInt(p.Payload, "start_line"),
		EndLine:      payloadInt(p.Payload, "end_line"),
		Text:         payloadString(p.Payload, "text"),
		TextNorm:     payloadString(p.Payload, "text_norm"),
		ScoreVector:  float64(p.Score),
	}
}

func pointID(p *qdrant.ScoredPoint) string {
	if p.Id == nil {
		return ""
	}
	if uuid := p.Id.GetUuid(); uuid != "" {
		return uuid
	}
	return strconv.FormatUint(p.Id.GetNum(), 10)
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	return v.GetStringValue()
}

func payloadInt(payload map[string]*qdrant.Value, key string) int {
	v, ok := payload[key]
	if !ok || v == nil {
		return 0
	}
	switch kind := v.Kind.(type) {
	case *qdrant.Value_IntegerValue:
		return int(kind.IntegerValue)
	case *qdrant.Value_DoubleValue:
		return int(kind.DoubleValue)
	case *qdrant.Value_StringValue:
		n, _ := strconv.Atoi(kind.StringValue)
		return n
	default:
		return 0
	}
}
