package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/retriever/internal/db"
	"github.com/kailas-cloud/retriever/internal/domain"
	"github.com/kailas-cloud/retriever/internal/domain/search/hybrid"
	"github.com/kailas-cloud/retriever/internal/domain/search/result"
	"github.com/kailas-cloud/retriever/internal/metrics"
)

const backendLabel = "redis"

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Schema maps document attributes onto hash fields of the FT index.
type Schema struct {
	Index       string
	KeyPrefix   string // stripped from keys when the id field is absent
	VectorField string
	ID          string
	ParentID    string
	Content     string
	ChunkIndex  string
	Header1     string
	Header2     string
	Header3     string
	TagFields   []string
}

// Repo is a hybrid search index over RediSearch: BM25 and KNN legs fused with RRF.
// It has no semantic reranker, so documents carry RerankerScore 0 and no answers.
type Repo struct {
	store  store
	schema Schema
}

// New creates a search repository.
func New(s store, schema Schema) *Repo {
	return &Repo{store: s, schema: schema}
}

// Hybrid runs the keyword leg and, when a vector is present, the KNN leg concurrently.
func (r *Repo) Hybrid(ctx context.Context, req *hybrid.Request) (*hybrid.Response, error) {
	if req.Top <= 0 {
		return nil, fmt.Errorf("top must be positive: %w", domain.ErrInvalidQuery)
	}

	var knn, bm25 []result.Document
	g, gctx := errgroup.WithContext(ctx)

	if strings.TrimSpace(req.Text) != "" {
		g.Go(func() error {
			sr, err := r.store.SearchBM25(gctx, &db.TextQuery{
				IndexName:    r.schema.Index,
				Query:        req.Text,
				TextField:    r.schema.Content,
				Filters:      req.Conditions,
				TopK:         req.Top,
				ReturnFields: r.returnFields(),
			})
			if err != nil {
				return fmt.Errorf("bm25: %w", err)
			}
			bm25 = r.toDocuments(sr)
			return nil
		})
	}

	if req.HasVector() {
		g.Go(func() error {
			sr, err := r.store.SearchKNN(gctx, &db.KNNQuery{
				IndexName:    r.schema.Index,
				Filters:      req.Conditions,
				Vector:       req.Vector,
				VectorField:  r.schema.VectorField,
				K:            req.KNN,
				ReturnFields: r.returnFields(),
			})
			if err != nil {
				return fmt.Errorf("knn: %w", err)
			}
			knn = r.toDocuments(sr)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		metrics.SearchIndexRequestsTotal.WithLabelValues(backendLabel, "error").Inc()
		return nil, fmt.Errorf("redis hybrid search %s: %w: %w", r.schema.Index, domain.ErrSearchIndexError, err)
	}
	metrics.SearchIndexRequestsTotal.WithLabelValues(backendLabel, "success").Inc()

	docs := fuseRRF(knn, bm25, req.Top)
	return &hybrid.Response{Documents: docs, Count: -1}, nil
}

// HealthCheck verifies the index answers a count query.
func (r *Repo) HealthCheck(ctx context.Context) error {
	if _, err := r.store.SearchCount(ctx, r.schema.Index, "*"); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("index %s missing: %w", r.schema.Index, err)
		}
		return fmt.Errorf("count %s: %w", r.schema.Index, err)
	}
	return nil
}

func (r *Repo) returnFields() []string {
	s := r.schema
	fields := []string{s.ID, s.ParentID, s.Content, s.ChunkIndex, s.Header1, s.Header2, s.Header3}
	fields = append(fields, s.TagFields...)
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func (r *Repo) toDocuments(sr *db.SearchResult) []result.Document {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	docs := make([]result.Document, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		docs = append(docs, r.toDocument(entry))
	}
	return docs
}

func (r *Repo) toDocument(entry db.SearchEntry) result.Document {
	s := r.schema
	f := entry.Fields

	id := f[s.ID]
	if id == "" {
		id = strings.TrimPrefix(entry.Key, s.KeyPrefix)
	}

	doc := result.Document{
		ID:       id,
		ParentID: f[s.ParentID],
		Content:  f[s.Content],
		Headers: result.Headers{
			H1: f[s.Header1],
			H2: f[s.Header2],
			H3: f[s.Header3],
		},
		Score: entry.Score,
	}
	if ci, err := strconv.Atoi(f[s.ChunkIndex]); err == nil {
		doc.ChunkIndex = ci
	}
	if len(s.TagFields) > 0 {
		doc.Tags = make(map[string]string, len(s.TagFields))
		for _, tf := range s.TagFields {
			if v, ok := f[tf]; ok && v != "" {
				doc.Tags[tf] = v
			}
		}
	}
	return doc
}
