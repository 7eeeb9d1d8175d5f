package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/retriever/internal/domain"
	"github.com/kailas-cloud/retriever/internal/domain/search/query"
	"github.com/kailas-cloud/retriever/internal/domain/search/result"
)

// Pool accepts tasks for bounded concurrent execution.
type Pool interface {
	Submit(task func()) error
	Release()
}

// PoolFactory creates a pool with the given number of workers.
type PoolFactory func(size int) (Pool, error)

// NewAntsPool is the default PoolFactory.
func NewAntsPool(size int) (Pool, error) {
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create ants pool: %w", err)
	}
	return p, nil
}

// subqueryExecutor is the Runner's view of Executor.
type subqueryExecutor interface {
	Execute(ctx context.Context, sq query.Subquery, baseFilters map[string]string) result.SubqueryResult
}

// Runner fans subqueries out over a per-call worker pool.
type Runner struct {
	exec       subqueryExecutor
	maxWorkers int
	newPool    PoolFactory
	logger     *zap.Logger
}

// NewRunner creates a Runner. newPool defaults to NewAntsPool.
func NewRunner(exec subqueryExecutor, maxWorkers int, newPool PoolFactory, logger *zap.Logger) *Runner {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxSubqueries
	}
	if newPool == nil {
		newPool = NewAntsPool
	}
	return &Runner{exec: exec, maxWorkers: maxWorkers, newPool: newPool, logger: logger}
}

// RunAll executes every subquery and returns results index-aligned with the input.
// An error means the pool could not run anything.
func (r *Runner) RunAll(
	ctx context.Context, subqueries []query.Subquery, baseFilters map[string]string,
) ([]result.SubqueryResult, error) {
	if len(subqueries) == 0 {
		return []result.SubqueryResult{}, nil
	}

	pool, err := r.newPool(min(len(subqueries), r.maxWorkers))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRunnerUnavailable, err)
	}
	defer pool.Release()

	results := make([]result.SubqueryResult, len(subqueries))
	var wg sync.WaitGroup
	submitted := 0

	for i, sq := range subqueries {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results[i] = r.runOne(ctx, sq, baseFilters)
		})
		if err != nil {
			wg.Done()
			results[i] = result.Failure(sq, fmt.Errorf("%w: %w", domain.ErrRunnerUnavailable, err), 0)
			logFor(ctx, r.logger).Warn("subquery not scheduled", zap.Int("index", i), zap.Error(err))
			continue
		}
		submitted++
	}

	wg.Wait()

	if submitted == 0 {
		return nil, fmt.Errorf("%w: no subquery accepted", domain.ErrRunnerUnavailable)
	}
	return results, nil
}

func (r *Runner) runOne(
	ctx context.Context, sq query.Subquery, baseFilters map[string]string,
) (res result.SubqueryResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = result.Failure(sq, fmt.Errorf("panic: %v", p), time.Since(start))
		}
	}()
	if err := ctx.Err(); err != nil {
		return result.Failure(sq, err, 0)
	}
	return r.exec.Execute(ctx, sq, baseFilters)
}
