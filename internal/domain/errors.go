package domain

import "errors"

var (
	// ErrInvalidQuery signals a malformed search request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrSearchUnavailable signals that neither the agentic nor the fallback path produced a result.
	ErrSearchUnavailable = errors.New("search unavailable")
	// ErrSearchIndexError signals a search index service failure.
	ErrSearchIndexError = errors.New("search index error")
	// ErrCompletionProviderError signals a text-completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrRunnerUnavailable signals that the subquery worker pool could not accept work.
	ErrRunnerUnavailable = errors.New("runner unavailable")
)
