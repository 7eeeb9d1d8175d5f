package health

import "context"

// Checker verifies that a dependency is reachable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function (for example a store's Ping) to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
