package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

// mockQuerier implements the consumer interface for tests.
type mockQuerier struct {
	queryFn func(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

func (m *mockQuerier) Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, req)
	}
	return nil, nil
}

func scoredChunk(id string, score float32, findingID, section, text string) *qdrant.ScoredPoint {
	return &qdrant.ScoredPoint{
		Id:    qdrant.NewID(id),
		Score: score,
		Payload: map[string]*qdrant.Value{
			"finding_id":  {Kind: &qdrant.Value_StringValue{StringValue: findingID}},
			"doc_id":      {Kind: &qdrant.Value_StringValue{StringValue: "doc-1"}},
			"section":     {Kind: &qdrant.Value_StringValue{StringValue: section}},
			"chunk_order": {Kind: &qdrant.Value_IntegerValue{IntegerValue: 4}},
			"page":        {Kind: &qdrant.Value_IntegerValue{IntegerValue: 7}},
			"text":        {Kind: &qdrant.Value_StringValue{StringValue: text}},
		},
	}
}

func TestBuildChunkFilter_AllParts(t *testing.T) {
	f := buildChunkFilter("조사기법", []string{"f1", "f2"}, []string{"d1"}, []string{"법인세"})
	if f == nil {
		t.Fatal("expected filter")
	}
	if len(f.Must) != 4 {
		t.Fatalf("expected 4 must conditions, got %d", len(f.Must))
	}
}

func TestBuildChunkFilter_Empty(t *testing.T) {
	if f := buildChunkFilter("", nil, nil, nil); f != nil {
		t.Errorf("expected nil filter, got %v", f)
	}
}

func TestBuildFindingFilter_DocsOnly(t *testing.T) {
	f := buildFindingFilter([]string{"d1", "d2"}, nil)
	if f == nil || len(f.Must) != 1 {
		t.Fatalf("expected 1 must condition, got %v", f)
	}
}

func TestSearchChunks_MapsPayload(t *testing.T) {
	var captured *qdrant.QueryPoints
	repo := New(&mockQuerier{
		queryFn: func(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
			captured = req
			return []*qdrant.ScoredPoint{
				scoredChunk("11111111-1111-1111-1111-111111111111", 0.82, "f1", "조사기법", "현금매출 누락 확인"),
			}, nil
		},
	})

	hits, err := repo.SearchChunks(
		context.Background(), []float32{0.1, 0.2}, "조사기법",
		[]string{"f1"}, nil, nil, 0.35, 300,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.CollectionName != chunksCollection {
		t.Errorf("unexpected collection %s", captured.CollectionName)
	}
	if captured.ScoreThreshold == nil || *captured.ScoreThreshold != 0.35 {
		t.Errorf("expected threshold 0.35, got %v", captured.ScoreThreshold)
	}
	if captured.Limit == nil || *captured.Limit != 300 {
		t.Errorf("expected limit 300, got %v", captured.Limit)
	}

	h := hits[0]
	if h.ChunkID != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("unexpected chunk id %s", h.ChunkID)
	}
	if h.FindingID != "f1" || h.Section != "조사기법" || h.ChunkOrder != 4 || h.Page != 7 {
		t.Errorf("payload not mapped: %+v", h)
	}
	if h.ScoreVector != float64(float32(0.82)) {
		t.Errorf("unexpected score %f", h.ScoreVector)
	}
}

func TestSearchChunks_NoThresholdWhenZero(t *testing.T) {
	var captured *qdrant.QueryPoints
	repo := New(&mockQuerier{
		queryFn: func(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
			captured = req
			return nil, nil
		},
	})

	_, err := repo.SearchChunks(context.Background(), []float32{0.1}, "", nil, nil, nil, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.ScoreThreshold != nil {
		t.Errorf("expected no threshold, got %v", *captured.ScoreThreshold)
	}
	if captured.Filter != nil {
		t.Errorf("expected no filter, got %v", captured.Filter)
	}
}

func TestSearchFindings_Error(t *testing.T) {
	repo := New(&mockQuerier{
		queryFn: func(_ context.Context, _ *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
			return nil, errors.New("connection refused")
		},
	})

	_, err := repo.SearchFindings(context.Background(), []float32{0.1}, nil, nil, 0.65, 150)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSearchFindings_MapsPayload(t *testing.T) {
	repo := New(&mockQuerier{
		queryFn: func(_ context.Context, _ *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
			return []*qdrant.ScoredPoint{{
				Id:    qdrant.NewID("22222222-2222-2222-2222-222222222222"),
				Score: 0.7,
				Payload: map[string]*qdrant.Value{
					"doc_id": {Kind: &qdrant.Value_StringValue{StringValue: "doc-3"}},
					"item":   {Kind: &qdrant.Value_StringValue{StringValue: "가공경비"}},
					"code":   {Kind: &qdrant.Value_StringValue{StringValue: "법인세"}},
				},
			}}, nil
		},
	})

	hits, err := repo.SearchFindings(context.Background(), []float32{0.1}, []string{"doc-3"}, nil, 0.65, 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].DocID != "doc-3" || hits[0].Item != "가공경비" {
		t.Errorf("unexpected hit: %+v", hits[0])
	}
}
