package domain

import (
	"context"
	"sync/atomic"
)

type embeddingUsageKey struct{}

// EmbeddingUsage collects token usage for a single search run.
// Subqueries embed concurrently, so counters are atomic.
type EmbeddingUsage struct {
	totalTokens atomic.Int64
	calls       atomic.Int64
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens. A cache hit records a call with 0 tokens.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.totalTokens.Add(int64(n))
	u.calls.Add(1)
}

// TotalTokens returns the tokens consumed so far.
func (u *EmbeddingUsage) TotalTokens() int {
	if u == nil {
		return 0
	}
	return int(u.totalTokens.Load())
}

// Calls returns how many embeddings were requested, cached or not.
func (u *EmbeddingUsage) Calls() int {
	if u == nil {
		return 0
	}
	return int(u.calls.Load())
}
