package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/retriever/internal/domain"
	"github.com/kailas-cloud/retriever/internal/domain/search/filter"
	"github.com/kailas-cloud/retriever/internal/domain/search/hybrid"
	"github.com/kailas-cloud/retriever/internal/domain/search/mode"
	"github.com/kailas-cloud/retriever/internal/domain/search/result"
)

// fallbackIntent labels the single summary of a fallback run.
const fallbackIntent = "fallback"

// FallbackSearcher runs one non-decomposed semantic search for the whole question.
type FallbackSearcher struct {
	index   SearchIndex
	filters *filter.Builder
	synth   *Synthesizer
	opts    Options
	logger  *zap.Logger
}

// NewFallbackSearcher creates a FallbackSearcher.
func NewFallbackSearcher(
	index SearchIndex, filters *filter.Builder, synth *Synthesizer, opts Options, logger *zap.Logger,
) *FallbackSearcher {
	opts.applyDefaults()
	if filters == nil {
		filters = filter.NewBuilder()
	}
	return &FallbackSearcher{index: index, filters: filters, synth: synth, opts: opts, logger: logger}
}

// Search keeps the service's document order. Errors wrap domain.ErrSearchUnavailable.
func (f *FallbackSearcher) Search(
	ctx context.Context, question string, filters map[string]string, topK int,
) (result.Synthesized, error) {
	logFor(ctx, f.logger).Info("falling back to single hybrid search")

	ctx, cancel := context.WithTimeout(ctx, f.opts.FallbackTimeout)
	defer cancel()

	odata, _ := f.filters.Build(filters)
	resp, err := f.index.Hybrid(ctx, &hybrid.Request{
		Text:       question,
		Filter:     odata,
		Conditions: f.filters.Expression(filters),
		Top:        topK,
		Semantic:   true,
	})
	if err != nil {
		return result.Synthesized{}, fmt.Errorf("%w: fallback search: %w", domain.ErrSearchUnavailable, err)
	}

	docs := resp.Documents
	if len(docs) > topK {
		docs = docs[:topK]
	}
	out := make([]result.Document, len(docs))
	for i, d := range docs {
		d.CombinedScore = f.synth.Combined(&d)
		out[i] = d
	}

	total := resp.Count
	if total < 0 {
		total = len(out)
	}

	return result.Synthesized{
		Documents: out,
		Answers:   []result.Answer{},
		Grounding: result.Grounding{
			TotalDocumentsFound: total,
			DocumentsReturned:   len(out),
			SubqueriesExecuted: []result.SubquerySummary{{
				Query:          question,
				Intent:         fallbackIntent,
				DocumentsFound: len(out),
			}},
		},
		Metadata: result.Metadata{Mode: mode.Fallback},
	}, nil
}
