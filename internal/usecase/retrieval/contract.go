package retrieval

import (
	"context"

	"github.com/kailas-cloud/retriever/internal/domain"
	"github.com/kailas-cloud/retriever/internal/domain/search/hybrid"
)

// SearchIndex runs one hybrid (keyword + vector + semantic) query against the index.
type SearchIndex interface {
	Hybrid(ctx context.Context, req *hybrid.Request) (*hybrid.Response, error)
}

// Completer produces planner output from a prompt.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// VectorSource returns a query embedding, or nil when none is available.
type VectorSource interface {
	Get(ctx context.Context, text string) []float32
}
