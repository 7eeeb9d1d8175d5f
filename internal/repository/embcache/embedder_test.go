package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/retriever/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	var setKey string
	var setTTL time.Duration
	ms.setFn = func(_ context.Context, key string, _ []byte, ttl time.Duration) error {
		setKey, setTTL = key, ttl
		return nil
	}

	result, err := ce.Embed(ctx, "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if !strings.HasPrefix(setKey, "test:emb_cache:m1:") {
		t.Fatalf("unexpected cache key %q", setKey)
	}
	if setTTL != time.Hour {
		t.Errorf("expected ttl 1h, got %v", setTTL)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{0.1, 0.2, 0.3},
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	cached := vectorToCacheBytes([]float32{0.4, 0.5, 0.6})
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}
	if inner.calls != 0 {
		t.Errorf("expected no inner calls on hit, got %d", inner.calls)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)

	var setCalled bool
	ms.setFn = func(context.Context, string, []byte, time.Duration) error {
		setCalled = true
		return nil
	}

	if _, err := ce.Embed(context.Background(), "test text"); err == nil {
		t.Fatal("expected error from inner embedder")
	}
	if setCalled {
		t.Error("failed embeddings must not be cached")
	}
}

func TestEmbed_StoreErrorFallsThrough(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(context.Context, string) ([]byte, error) {
		return nil, errors.New("connection reset")
	}
	ms.setFn = func(context.Context, string, []byte, time.Duration) error {
		return errors.New("connection reset")
	}

	result, err := ce.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("store errors must not fail Embed: %v", err)
	}
	if len(result.Embedding) != 1 || inner.calls != 1 {
		t.Fatalf("expected inner result, got %v (calls=%d)", result.Embedding, inner.calls)
	}
}

func TestEmbed_CorruptEntryIsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(context.Context, string) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}

	if _, err := ce.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected inner call on corrupt entry, got %d", inner.calls)
	}
}

func TestEmbed_ModelScopedKeys(t *testing.T) {
	ms := &mockKVStore{}
	var keys []string
	ms.setFn = func(_ context.Context, key string, _ []byte, _ time.Duration) error {
		keys = append(keys, key)
		return nil
	}
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}

	a := New(inner, ms, Options{Model: "a"}, nil, zap.NewNop())
	b := New(inner, ms, Options{Model: "b"}, nil, zap.NewNop())
	_, _ = a.Embed(context.Background(), "same")
	_, _ = b.Embed(context.Background(), "same")

	if len(keys) != 2 || keys[0] == keys[1] {
		t.Fatalf("expected distinct keys per model, got %v", keys)
	}
}

func TestEmbed_Metrics(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"tier", "result"})
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce := New(inner, &mockKVStore{}, Options{}, counter, zap.NewNop())

	_, _ = ce.Embed(context.Background(), "x")

	if got := testutil.ToFloat64(counter.WithLabelValues("redis", "miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
}

func TestVectorBytesRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("index %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

