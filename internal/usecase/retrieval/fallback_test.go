package retrieval

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/retriever/internal/domain"
	"github.com/kailas-cloud/retriever/internal/domain/search/hybrid"
	"github.com/kailas-cloud/retriever/internal/domain/search/mode"
	"github.com/kailas-cloud/retriever/internal/domain/search/result"
)

func newFallback(idx SearchIndex) *FallbackSearcher {
	return NewFallbackSearcher(idx, nil, NewSynthesizer(testOptions()), testOptions(), zap.NewNop())
}

func TestFallback_SingleSemanticSearch(t *testing.T) {
	idx := &mockIndex{handle: func(*hybrid.Request) (*hybrid.Response, error) {
		return &hybrid.Response{
			Documents: []result.Document{doc("a", 0.2, 0), doc("b", 0.4, 0.8)},
			Count:     17,
		}, nil
	}}

	res, err := newFallback(idx).Search(context.Background(), "equipment DLS-168 location",
		map[string]string{"equipo": "DLS-168"}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reqs := idx.calls()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 index call, got %d", len(reqs))
	}
	req := reqs[0]
	if !req.Semantic || req.Answers || req.HasVector() || req.Top != 5 {
		t.Errorf("unexpected fallback request: %+v", req)
	}
	if req.Filter != "equipo eq 'DLS-168'" {
		t.Errorf("filter = %q", req.Filter)
	}

	if res.Documents[0].ID != "a" {
		t.Error("fallback keeps the service order")
	}
	if res.Documents[1].CombinedScore < 0.679 || res.Documents[1].CombinedScore > 0.681 {
		t.Errorf("combined score = %v", res.Documents[1].CombinedScore)
	}
	if res.Grounding.TotalDocumentsFound != 17 || res.Grounding.DocumentsReturned != 2 {
		t.Errorf("grounding = %+v", res.Grounding)
	}
	s := res.Grounding.SubqueriesExecuted
	if len(s) != 1 || s[0].Intent != fallbackIntent || s[0].Query != "equipment DLS-168 location" || s[0].DocumentsFound != 2 {
		t.Errorf("summaries = %+v", s)
	}
	if res.Metadata.Mode != mode.Fallback {
		t.Errorf("mode = %s", res.Metadata.Mode)
	}
}

func TestFallback_UnknownCount(t *testing.T) {
	idx := &mockIndex{handle: func(*hybrid.Request) (*hybrid.Response, error) {
		return &hybrid.Response{Documents: []result.Document{doc("a", 1, 0)}, Count: -1}, nil
	}}
	res, _ := newFallback(idx).Search(context.Background(), "q", nil, 5)
	if res.Grounding.TotalDocumentsFound != 1 {
		t.Errorf("total = %d, want len(documents)", res.Grounding.TotalDocumentsFound)
	}
}

func TestFallback_Error(t *testing.T) {
	idx := &mockIndex{handle: func(*hybrid.Request) (*hybrid.Response, error) {
		return nil, domain.ErrSearchIndexError
	}}
	_, err := newFallback(idx).Search(context.Background(), "q", nil, 5)
	if !errors.Is(err, domain.ErrSearchUnavailable) || !errors.Is(err, domain.ErrSearchIndexError) {
		t.Fatalf("expected wrapped ErrSearchUnavailable, got %v", err)
	}
}
