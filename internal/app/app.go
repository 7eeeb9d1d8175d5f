// Package app is the composition root shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/retriever/internal/config"
	"github.com/kailas-cloud/retriever/internal/db"
	dbRedis "github.com/kailas-cloud/retriever/internal/db/redis"
	"github.com/kailas-cloud/retriever/internal/domain"
	"github.com/kailas-cloud/retriever/internal/domain/search/filter"
	"github.com/kailas-cloud/retriever/internal/metrics"
	"github.com/kailas-cloud/retriever/internal/repository/embcache"
	searchrepo "github.com/kailas-cloud/retriever/internal/repository/search"
	"github.com/kailas-cloud/retriever/internal/transport/azsearch"
	openaiTransport "github.com/kailas-cloud/retriever/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/retriever/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/retriever/internal/usecase/health"
	"github.com/kailas-cloud/retriever/internal/usecase/retrieval"
)

// App holds the wired services.
type App struct {
	Retrieval *retrieval.Service
	Health    *healthuc.Service
	Cache     *embeddinguc.Cache

	store db.Store
}

// Build wires every dependency from cfg. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()
	metrics.RegisterHTTPMetrics()

	a := &App{}

	if cfg.SearchIndex.Driver == config.DriverRedis || cfg.Cache.Persistent {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		a.store = store
		if err := store.WaitForReady(ctx, seconds(cfg.Database.ReadinessTimeout)); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Database.Addrs))
	}

	index, indexHealth, err := a.buildIndex(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	completer := openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
		APIKey:  cfg.Completion.APIKey,
		BaseURL: cfg.Completion.BaseURL,
		Model:   cfg.Completion.Model,
		Timeout: seconds(cfg.Completion.TimeoutSec),
		Limiter: openaiTransport.NewLimiter(cfg.Completion.RequestsPerSecond, cfg.Completion.Burst),
		Logger:  logger,
	})

	embedder := a.buildEmbedder(cfg, logger)
	a.Cache = embeddinguc.NewCache(embedder, embeddinguc.CacheConfig{
		Enabled:       cfg.Cache.IsEnabled(),
		Capacity:      cfg.Cache.Capacity,
		EvictFraction: cfg.Cache.EvictFraction,
		MaxInputChars: cfg.Embedding.MaxInputChars,
		Timeout:       seconds(cfg.Embedding.TimeoutSec),
	}, logger)

	filters := filter.NewBuilder(
		filter.WithDateFields(cfg.SearchIndex.DateFields...),
		filter.WithAllowedFields(cfg.SearchIndex.FilterFields...),
	)

	o := cfg.Orchestrator
	a.Retrieval = retrieval.New(retrieval.Deps{
		Index:     index,
		Completer: completer,
		Vectors:   a.Cache,
		Filters:   filters,
	}, retrieval.Options{
		MaxSubqueries:      o.MaxSubqueries,
		MaxDocsPerSubquery: o.MaxDocsPerSubquery,
		MaxAnswers:         o.MaxAnswers,
		HistoryTurns:       o.HistoryTurns,
		ScoreWeight:        o.ScoreWeight,
		RerankerWeight:     o.RerankerWeight,
		SubqueryTimeout:    seconds(o.SubqueryTimeoutSec),
		PlannerTimeout:     seconds(o.PlannerTimeoutSec),
		FallbackTimeout:    seconds(o.FallbackTimeoutSec),
		PlannerTemperature: cfg.Completion.Temperature,
		PlannerMaxTokens:   cfg.Completion.MaxTokens,
	}, logger)

	components := []healthuc.Component{
		{Name: "search_index", Checker: indexHealth, Critical: true},
		{Name: "completion", Checker: completer},
		{Name: "embedding", Checker: healthuc.CheckerFunc(func(ctx context.Context) error {
			if hc, ok := embedder.(domain.HealthChecker); ok {
				if err := hc.HealthCheck(ctx); err != nil {
					return fmt.Errorf("embedding health check: %w", err)
				}
			}
			return nil
		})},
	}
	if a.store != nil {
		components = append(components, healthuc.Component{
			Name: "database", Checker: healthuc.CheckerFunc(a.store.Ping),
		})
	}
	a.Health = healthuc.New(components...)

	logger.Info("Retrieval service ready",
		zap.String("search_driver", cfg.SearchIndex.Driver),
		zap.String("index", cfg.SearchIndex.Index),
		zap.String("completion_model", cfg.Completion.Model),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Bool("embedding_cache", cfg.Cache.IsEnabled()),
		zap.Bool("persistent_cache", cfg.Cache.Persistent),
	)
	return a, nil
}

// Close releases the Redis connection, if any.
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

func (a *App) buildIndex(cfg *config.Config, logger *zap.Logger) (retrieval.SearchIndex, healthuc.Checker, error) {
	si := cfg.SearchIndex
	switch si.Driver {
	case config.DriverAzure:
		client, err := azsearch.New(azsearch.Config{
			Endpoint:              si.Endpoint,
			APIKey:                si.APIKey,
			Index:                 si.Index,
			APIVersion:            si.APIVersion,
			SemanticConfiguration: si.SemanticConfiguration,
			VectorField:           si.VectorField,
			Fields: azsearch.Fields{
				ID:         si.Fields.ID,
				ParentID:   si.Fields.ParentID,
				Content:    si.Fields.Content,
				ChunkIndex: si.Fields.ChunkIndex,
				Header1:    si.Fields.Header1,
				Header2:    si.Fields.Header2,
				Header3:    si.Fields.Header3,
			},
			TagFields: si.TagFields,
			Timeout:   seconds(si.TimeoutSec),
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create azure search client: %w", err)
		}
		return client, client, nil
	case config.DriverRedis:
		repo := searchrepo.New(a.store, searchrepo.Schema{
			Index:       si.Index,
			KeyPrefix:   cfg.Database.KeyPrefix,
			VectorField: si.VectorField,
			ID:          si.Fields.ID,
			ParentID:    si.Fields.ParentID,
			Content:     si.Fields.Content,
			ChunkIndex:  si.Fields.ChunkIndex,
			Header1:     si.Fields.Header1,
			Header2:     si.Fields.Header2,
			Header3:     si.Fields.Header3,
			TagFields:   si.TagFields,
		})
		return repo, repo, nil
	default:
		return nil, nil, fmt.Errorf("unknown search index driver %q", si.Driver)
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> [Redis cache] -> Instrumented -> Instruction.
func (a *App) buildEmbedder(cfg *config.Config, logger *zap.Logger) domain.Embedder {
	ec := cfg.Embedding

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Timeout:    seconds(ec.TimeoutSec),
		Limiter:    openaiTransport.NewLimiter(ec.RequestsPerSecond, ec.Burst),
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cfg.Cache.Persistent && a.store != nil {
		embedder = embcache.New(base, a.store, embcache.Options{
			KeyPrefix: cfg.Database.KeyPrefix,
			Model:     ec.Model,
			TTL:       time.Duration(cfg.Cache.PersistentTTLHours) * time.Hour,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, ec.Provider, ec.Model, logger)

	// Instruction prefix (outermost, so the Redis tier keys on the prefixed text)
	if ec.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, ec.QueryInstruction)
	}
	return embedder
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
