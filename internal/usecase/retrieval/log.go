package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/retriever/internal/logger"
)

// logFor prefers the run-scoped logger carried in ctx.
func logFor(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l := logger.FromContext(ctx); l.Core().Enabled(zap.WarnLevel) {
		return l
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}
