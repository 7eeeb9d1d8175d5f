package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/retriever/internal/domain"
	"github.com/kailas-cloud/retriever/internal/logger"
	"github.com/kailas-cloud/retriever/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type mockEmbedder struct {
	mu     sync.Mutex
	result domain.EmbeddingResult
	err    error
	calls  int
	texts  []string
	block  chan struct{} // when set, Embed waits for close
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.texts = append(m.texts, text)
	return m.result, m.err
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestInstrumentedEmbedder_Success(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:   []float32{0.1, 0.2, 0.3},
		TotalTokens: 7,
	}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", zap.NewNop())

	result, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.TotalTokens != 7 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestInstrumentedEmbedder_Error(t *testing.T) {
	inner := &mockEmbedder{err: fmt.Errorf("api error: %w", domain.ErrEmbeddingProviderError)}
	p := NewInstrumentedEmbedder(inner, "test-err", "test-model-e", zap.NewNop())

	_, err := p.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestInstrumentedEmbedder_LogsToContextLogger(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx := logger.ContextWithLogger(context.Background(), zap.New(core).With(zap.String("run_id", "r1")))

	inner := &mockEmbedder{err: errors.New("down")}
	p := NewInstrumentedEmbedder(inner, "test", "m", zap.NewNop())
	_, _ = p.Embed(ctx, "hello")

	entries := logs.FilterMessage("Embedding request failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 warn entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["run_id"] != "r1" {
		t.Errorf("expected run_id from context logger, got %v", entries[0].ContextMap())
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", domain.ErrRateLimited), "rate_limited"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{errors.New("other"), "provider_error"},
	}
	for _, tc := range tests {
		if got := errorType(tc.err); got != tc.want {
			t.Errorf("errorType(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

type healthEmbedder struct {
	mockEmbedder
	err error
}

func (h *healthEmbedder) HealthCheck(context.Context) error { return h.err }

func TestInstrumentedEmbedder_HealthCheck(t *testing.T) {
	want := errors.New("unhealthy")
	p := NewInstrumentedEmbedder(&healthEmbedder{err: want}, "p", "m", zap.NewNop())
	if err := p.HealthCheck(context.Background()); !errors.Is(err, want) {
		t.Fatalf("expected forwarded error, got %v", err)
	}

	plain := NewInstrumentedEmbedder(&mockEmbedder{}, "p", "m", zap.NewNop())
	if err := plain.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected nil for non-checker, got %v", err)
	}
}
