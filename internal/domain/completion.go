package domain

import "context"

// Completer is the text-completion contract used for query planning.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is a single system+user prompt exchange.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	JSON        bool // ask the provider for a JSON object response
}
