package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/retriever/internal/domain/search/filter"
	"github.com/kailas-cloud/retriever/internal/domain/search/hybrid"
	"github.com/kailas-cloud/retriever/internal/domain/search/query"
	"github.com/kailas-cloud/retriever/internal/domain/search/result"
	"github.com/kailas-cloud/retriever/internal/metrics"
)

// Executor runs a single subquery against the search index.
type Executor struct {
	index   SearchIndex
	vectors VectorSource
	filters *filter.Builder
	opts    Options
	logger  *zap.Logger
}

// NewExecutor creates an Executor. vectors may be nil for keyword-only search.
func NewExecutor(
	index SearchIndex, vectors VectorSource, filters *filter.Builder, opts Options, logger *zap.Logger,
) *Executor {
	opts.applyDefaults()
	if filters == nil {
		filters = filter.NewBuilder()
	}
	return &Executor{index: index, vectors: vectors, filters: filters, opts: opts, logger: logger}
}

// Execute never returns an error: failures, timeouts and panics end up in SubqueryResult.Err.
func (e *Executor) Execute(
	ctx context.Context, sq query.Subquery, baseFilters map[string]string,
) (res result.SubqueryResult) {
	start := time.Now()
	log := logFor(ctx, e.logger)

	defer func() {
		if r := recover(); r != nil {
			res = result.Failure(sq, fmt.Errorf("panic: %v", r), time.Since(start))
		}
		status := "ok"
		if res.Failed() {
			status = "error"
			log.Warn("subquery failed",
				zap.String("subquery", sq.Text()),
				zap.String("error", res.Err),
				zap.Duration("duration", res.Duration),
			)
		}
		metrics.SubqueriesTotal.WithLabelValues(status).Inc()
		metrics.SubqueryDuration.Observe(res.Duration.Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, e.opts.SubqueryTimeout)
	defer cancel()

	req := e.request(ctx, sq, baseFilters)
	resp, err := e.index.Hybrid(ctx, req)
	if err != nil {
		return result.Failure(sq, fmt.Errorf("hybrid search: %w", err), time.Since(start))
	}

	docs := resp.Documents
	if len(docs) > e.opts.MaxDocsPerSubquery {
		docs = docs[:e.opts.MaxDocsPerSubquery]
	}
	out := make([]result.Document, len(docs))
	for i, d := range docs {
		if len(d.Captions) > hybrid.MaxCaptions {
			d.Captions = d.Captions[:hybrid.MaxCaptions]
		}
		out[i] = d
	}

	answers := resp.Answers
	if len(answers) > hybrid.MaxAnswers {
		answers = answers[:hybrid.MaxAnswers]
	}

	total := resp.Count
	if total < 0 {
		total = len(resp.Documents)
	}

	return result.SubqueryResult{
		Subquery:   sq,
		Documents:  out,
		Answers:    answers,
		TotalCount: total,
		Duration:   time.Since(start),
	}
}

func (e *Executor) request(ctx context.Context, sq query.Subquery, baseFilters map[string]string) *hybrid.Request {
	merged := query.MergeFilters(baseFilters, sq.Filters())
	odata, _ := e.filters.Build(merged)

	req := &hybrid.Request{
		Text:       sq.Text(),
		Filter:     odata,
		Conditions: e.filters.Expression(merged),
		Top:        e.opts.MaxDocsPerSubquery,
		Semantic:   true,
		Captions:   true,
		Answers:    true,
	}
	if e.vectors != nil {
		if vec := e.vectors.Get(ctx, sq.Text()); len(vec) > 0 {
			req.Vector = vec
			req.KNN = min(hybrid.MaxKNN, e.opts.MaxDocsPerSubquery)
		}
	}
	return req
}
