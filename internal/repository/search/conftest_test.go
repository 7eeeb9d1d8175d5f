package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/retriever/internal/db"
	"github.com/kailas-cloud/retriever/internal/domain/search/filter"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchBM25Fn  func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	searchCountFn func(ctx context.Context, index, query string) (int, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchBM25Fn != nil {
		return m.searchBM25Fn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func testSchema() Schema {
	return Schema{
		Index:       "retriever:chunks:idx",
		KeyPrefix:   "retriever:chunk:",
		VectorField: "text_vector",
		ID:          "chunk_id",
		ParentID:    "parent_id",
		Content:     "chunk_content",
		ChunkIndex:  "chunk_index",
		Header1:     "header_1",
		Header2:     "header_2",
		Header3:     "header_3",
		TagFields:   []string{"pozo", "equipo"},
	}
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, testSchema()), ms
}

func testVector() []float32 {
	return []float32{0.1, 0.1, 0.1, 0.1}
}

func mustExpression(t *testing.T, kv ...string) filter.Expression {
	t.Helper()
	conds := make([]filter.Condition, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		c, err := filter.NewMatch(kv[i], kv[i+1])
		if err != nil {
			t.Fatalf("NewMatch: %v", err)
		}
		conds = append(conds, c)
	}
	e, err := filter.NewExpression(conds)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}
	return e
}
