// Package retrieval answers a question by planning subqueries, running them
// concurrently against the search index and fusing their results.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/retriever/internal/domain"
	"github.com/kailas-cloud/retriever/internal/domain/search/filter"
	"github.com/kailas-cloud/retriever/internal/domain/search/mode"
	"github.com/kailas-cloud/retriever/internal/domain/search/query"
	"github.com/kailas-cloud/retriever/internal/domain/search/result"
	"github.com/kailas-cloud/retriever/internal/logger"
	"github.com/kailas-cloud/retriever/internal/metrics"
)

// subqueryRunner is the Service's view of Runner.
type subqueryRunner interface {
	RunAll(ctx context.Context, subqueries []query.Subquery, baseFilters map[string]string) ([]result.SubqueryResult, error)
}

// Service orchestrates a retrieval run: plan, execute, synthesize, and fall back when needed.
type Service struct {
	planner  *Planner
	runner   subqueryRunner
	synth    *Synthesizer
	fallback *FallbackSearcher
	logger   *zap.Logger
	now      func() time.Time
}

// Deps are the collaborators of a Service.
type Deps struct {
	Index     SearchIndex
	Completer Completer
	Vectors   VectorSource // nil disables the vector leg
	Filters   *filter.Builder
	// PoolFactory overrides the subquery worker pool; nil uses ants.
	PoolFactory PoolFactory
}

// New wires a Service from its collaborators.
func New(deps Deps, opts Options, logger *zap.Logger) *Service {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	filters := deps.Filters
	if filters == nil {
		filters = filter.NewBuilder()
	}
	synth := NewSynthesizer(opts)
	exec := NewExecutor(deps.Index, deps.Vectors, filters, opts, logger)
	return &Service{
		planner:  NewPlanner(deps.Completer, opts, logger),
		runner:   NewRunner(exec, opts.MaxSubqueries, deps.PoolFactory, logger),
		synth:    synth,
		fallback: NewFallbackSearcher(deps.Index, filters, synth, opts, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// SearchText validates the inputs and runs Search.
func (s *Service) SearchText(
	ctx context.Context, question string, history []query.Message, filters map[string]string, topK int,
) (result.Synthesized, error) {
	q, err := query.New(question, history, filters, topK)
	if err != nil {
		return result.Synthesized{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	return s.Search(ctx, q)
}

// Search runs the agentic pipeline. Planner and subquery failures are absorbed;
// an error is returned only when the fallback search fails too.
func (s *Service) Search(ctx context.Context, q query.Query) (res result.Synthesized, err error) {
	start := s.now()
	runID := uuid.NewString()
	ctx = logger.ContextWithLogger(ctx, logFor(ctx, s.logger).With(zap.String("run_id", runID)))
	ctx, usage := domain.NewContextWithUsage(ctx)
	log := logger.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error("retrieval panicked, using fallback", zap.Any("panic", r), zap.Stack("stack"))
			res, err = s.runFallback(ctx, q, false)
		}
		if err == nil {
			res.Metadata.RunID = runID
			res.Metadata.Duration = s.now().Sub(start)
			res.Metadata.EmbeddingTokens = usage.TotalTokens()
			res.Metadata.Timestamp = s.now().UTC()
		}
		s.record(log, res, err, s.now().Sub(start))
	}()

	plan := s.planner.Plan(ctx, q.Text(), q.History())
	if plan.Outcome == PlanUnavailable {
		return s.runFallback(ctx, q, true)
	}

	results, err := s.runner.RunAll(ctx, plan.Subqueries, q.Filters())
	if err != nil {
		log.Warn("subquery runner unavailable", zap.Error(err))
		return s.runFallback(ctx, q, plan.Degraded())
	}

	res = s.synth.Synthesize(results, q.TopK())

	succeeded := 0
	for i := range results {
		if !results[i].Failed() {
			succeeded++
		}
	}
	res.Metadata = result.Metadata{
		Mode:                mode.Agentic,
		SubqueriesExecuted:  len(plan.Subqueries),
		SubqueriesSucceeded: succeeded,
		PlannerDegraded:     plan.Degraded(),
	}
	return res, nil
}

// Plan exposes the planner on its own, without executing the subqueries.
func (s *Service) Plan(ctx context.Context, question string, history []query.Message) Plan {
	return s.planner.Plan(ctx, question, history)
}

func (s *Service) runFallback(ctx context.Context, q query.Query, degraded bool) (result.Synthesized, error) {
	res, err := s.fallback.Search(ctx, q.Text(), q.Filters(), q.TopK())
	if err != nil {
		return result.Synthesized{}, err
	}
	res.Metadata.Mode = mode.Fallback
	res.Metadata.SubqueriesExecuted = 1
	res.Metadata.SubqueriesSucceeded = 1
	res.Metadata.PlannerDegraded = degraded
	return res, nil
}

// record emits one wide event per run.
func (s *Service) record(log *zap.Logger, res result.Synthesized, err error, took time.Duration) {
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues("error").Inc()
		log.Error("retrieval_failed", zap.Error(err), zap.Duration("duration", took))
		return
	}
	m := res.Metadata
	metrics.RetrievalRequestsTotal.WithLabelValues(string(m.Mode)).Inc()
	metrics.RetrievalDuration.WithLabelValues(string(m.Mode)).Observe(took.Seconds())
	log.Info("retrieval_completed",
		zap.String("mode", string(m.Mode)),
		zap.Int("subqueries", m.SubqueriesExecuted),
		zap.Int("succeeded", m.SubqueriesSucceeded),
		zap.Bool("planner_degraded", m.PlannerDegraded),
		zap.Int("documents_found", res.Grounding.TotalDocumentsFound),
		zap.Int("documents_returned", res.Grounding.DocumentsReturned),
		zap.Int("answers", len(res.Answers)),
		zap.Int("embedding_tokens", m.EmbeddingTokens),
		zap.Duration("duration", took),
	)
}
