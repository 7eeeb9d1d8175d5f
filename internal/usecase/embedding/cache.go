package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/retriever/internal/domain"
	"github.com/kailas-cloud/retriever/internal/domain/search/query"
	"github.com/kailas-cloud/retriever/internal/logger"
	"github.com/kailas-cloud/retriever/internal/metrics"
)

// Cache defaults.
const (
	DefaultCapacity      = 200
	DefaultEvictFraction = 0.25
	DefaultMaxInputChars = 8000
	DefaultEmbedTimeout  = 30 * time.Second
)

const memoryTier = "memory"

// CacheConfig configures the in-process embedding cache.
type CacheConfig struct {
	Enabled       bool
	Capacity      int
	EvictFraction float64
	MaxInputChars int
	Timeout       time.Duration // bounds a shared provider call, independent of any caller
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Failures  int64
}

// Cache memoizes text → vector for the lifetime of the process.
// Embedding failures are logged and yield a nil vector; they never fail the caller.
type Cache struct {
	embedder domain.Embedder
	cfg      CacheConfig
	logger   *zap.Logger

	mu      sync.Mutex
	entries map[string][]float32
	order   []string // insertion order, oldest first

	group singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	failures  atomic.Int64
}

// NewCache creates an embedding cache in front of embedder.
func NewCache(embedder domain.Embedder, cfg CacheConfig, logger *zap.Logger) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.EvictFraction <= 0 || cfg.EvictFraction > 1 {
		cfg.EvictFraction = DefaultEvictFraction
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultEmbedTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
		entries:  make(map[string][]float32, cfg.Capacity+1),
	}
}

// Get returns the embedding for text, or nil when none could be produced.
// Tokens consumed by real provider calls are added to the run's usage in ctx.
func (c *Cache) Get(ctx context.Context, text string) []float32 {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if !c.cfg.Enabled {
		return c.embed(ctx, text)
	}

	key := cacheKey(text)

	c.mu.Lock()
	vec, ok := c.entries[key]
	c.mu.Unlock()

	if ok {
		c.hits.Add(1)
		metrics.EmbeddingCacheTotal.WithLabelValues(memoryTier, "hit").Inc()
		domain.UsageFromContext(ctx).AddTokens(0)
		return vec
	}

	c.misses.Add(1)
	metrics.EmbeddingCacheTotal.WithLabelValues(memoryTier, "miss").Inc()

	// The shared call outlives any single waiter.
	ch := c.group.DoChan(key, func() (any, error) {
		embedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()
		vec := c.embed(embedCtx, text)
		if vec != nil {
			c.store(key, vec)
		}
		return vec, nil
	})

	select {
	case res := <-ch:
		vec, _ = res.Val.([]float32)
		return vec
	case <-ctx.Done():
		return nil
	}
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Failures:  c.failures.Load(),
	}
}

func (c *Cache) embed(ctx context.Context, text string) []float32 {
	res, err := c.embedder.Embed(ctx, query.Truncate(text, c.cfg.MaxInputChars))
	if err != nil {
		c.failures.Add(1)
		c.logFor(ctx).Warn("Embedding unavailable, continuing without vector",
			zap.Int("text_len", len(text)),
			zap.Error(err),
		)
		return nil
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	if len(res.Embedding) == 0 {
		return nil
	}
	return res.Embedding
}

// store inserts vec and, once the map grows past capacity, drops the oldest
// ceil(capacity*evictFraction) entries.
func (c *Cache) store(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		return
	}
	c.entries[key] = vec
	c.order = append(c.order, key)

	if len(c.entries) > c.cfg.Capacity {
		n := int(math.Ceil(float64(c.cfg.Capacity) * c.cfg.EvictFraction))
		n = max(1, min(n, len(c.order)))
		for _, k := range c.order[:n] {
			delete(c.entries, k)
		}
		c.order = append([]string(nil), c.order[n:]...)
		c.evictions.Add(int64(n))
		metrics.EmbeddingCacheEvictionsTotal.Add(float64(n))
	}
	metrics.EmbeddingCacheSize.Set(float64(len(c.entries)))
}

func (c *Cache) logFor(ctx context.Context) *zap.Logger {
	if l := logger.FromContext(ctx); l.Core().Enabled(zap.WarnLevel) {
		return l
	}
	return c.logger
}

func cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
