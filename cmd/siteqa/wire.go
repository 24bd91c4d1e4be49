package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/siteqa/internal/config"
	"github.com/kailas-cloud/siteqa/internal/db"
	dbMemory "github.com/kailas-cloud/siteqa/internal/db/memory"
	dbRedis "github.com/kailas-cloud/siteqa/internal/db/redis"
	"github.com/kailas-cloud/siteqa/internal/domain"
	"github.com/kailas-cloud/siteqa/internal/extract"
	logpkg "github.com/kailas-cloud/siteqa/internal/logger"
	"github.com/kailas-cloud/siteqa/internal/metrics"
	"github.com/kailas-cloud/siteqa/internal/repository/embcache"
	"github.com/kailas-cloud/siteqa/internal/repository/session"
	"github.com/kailas-cloud/siteqa/internal/retry"
	"github.com/kailas-cloud/siteqa/internal/transport/browser"
	ollamaTransport "github.com/kailas-cloud/siteqa/internal/transport/ollama"
	openaiTransport "github.com/kailas-cloud/siteqa/internal/transport/openai"
	"github.com/kailas-cloud/siteqa/internal/transport/web"
	"github.com/kailas-cloud/siteqa/internal/usecase/crawl"
	embeddinguc "github.com/kailas-cloud/siteqa/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/siteqa/internal/usecase/health"
	"github.com/kailas-cloud/siteqa/internal/usecase/indexing"
	qauc "github.com/kailas-cloud/siteqa/internal/usecase/qa"
	"github.com/kailas-cloud/siteqa/internal/version"
)

// app is the composition root shared by the serve and ask commands.
type app struct {
	env      string
	cfg      config.Config
	logger   *zap.Logger
	store    db.Store
	builder  *indexing.Builder
	sessions *session.Store
	qa       *qauc.Service
	health   *healthuc.Service
}

func newApp(ctx context.Context, env string) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, logpkg.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Starting siteqa",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("provider", cfg.Provider.Kind),
		zap.String("embed_model", cfg.Provider.EmbedModel),
		zap.String("gen_model", cfg.Provider.GenModel),
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.String("renderer", cfg.Crawl.Renderer),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	store, err := newCacheStore(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	embedBase, generator, providerHealth := newProvider(cfg.Provider, logger)
	embedder := newEmbedder(embedBase, store, cfg, logger)
	logger.Info("Embedder created",
		zap.Bool("disabled", cfg.Embedding.Disabled),
		zap.Int("max_chars", cfg.Embedding.MaxChars),
		zap.Int("num_ctx", cfg.Embedding.NumCtx),
	)

	policy := retry.Policy{
		Attempts: cfg.Embedding.RetryAttempts,
		Step:     time.Duration(cfg.Embedding.RetryStepMs) * time.Millisecond,
	}
	httpFetcher := web.NewFetcher(web.Config{
		Timeout:          time.Duration(cfg.Crawl.RequestTimeoutSec) * time.Second,
		MaxRedirects:     cfg.Crawl.MaxRedirects,
		UserAgent:        cfg.Crawl.UserAgent,
		MaxDocumentBytes: cfg.Crawl.MaxDocumentBytes,
		Retry:            policy,
	}, logger)
	var fetcher crawl.Fetcher = httpFetcher
	if cfg.Crawl.Renderer == config.RendererChromedp {
		fetcher = browser.NewFetcher(browser.Config{
			Timeout:   time.Duration(cfg.Crawl.RequestTimeoutSec) * time.Second,
			UserAgent: cfg.Crawl.UserAgent,
			Retry:     policy,
		}, httpFetcher, logger)
	}

	extractor := extract.New(extract.Config{
		Readability:      cfg.Extract.Readability,
		PDFMaxPages:      cfg.Extract.PDFMaxPages,
		PDFToText:        cfg.Extract.PDFToTextPath,
		MaxDocumentBytes: cfg.Crawl.MaxDocumentBytes,
	}, logger)

	crawler := crawl.New(fetcher, extractor, crawl.Config{
		MaxLinksPerPage: cfg.Crawl.MaxLinksPerPage,
		Politeness:      time.Duration(cfg.Crawl.PolitenessMs) * time.Millisecond,
		FollowDocuments: cfg.Crawl.FollowDocuments,
	}, logger)

	builder, err := indexing.New(embedder, indexing.Config{
		Chunking: domain.ChunkingConfig{
			TargetChars:  cfg.Index.ChunkTargetChars,
			OverlapChars: cfg.Index.ChunkOverlapChars,
		},
		Workers: cfg.Index.EmbedWorkers,
	}, logger)
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("create index builder: %w", err)
	}

	sessions := session.NewStore()
	qa := qauc.New(sessions, crawler, builder, extractor, embedder, generator, qauc.Config{
		DefaultDepth:       cfg.Crawl.DefaultDepth,
		DefaultMaxPages:    cfg.Crawl.DefaultMaxPages,
		DefaultK:           cfg.Retrieval.DefaultK,
		ListK:              cfg.Retrieval.ListK,
		DefaultTemperature: cfg.Retrieval.DefaultTemperature,
		MaxSources:         cfg.Retrieval.MaxSources,
		MaxDocumentBytes:   cfg.Crawl.MaxDocumentBytes,
		EmbedModel:         cfg.Provider.EmbedModel,
		GenModel:           cfg.Provider.GenModel,
	}, logger)

	// Pass nil interface (not typed nil pointer!) when no cache is configured.
	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	health := healthuc.New(cachePinger, providerHealth, sessions)

	return &app{
		env:      env,
		cfg:      cfg,
		logger:   logger,
		store:    store,
		builder:  builder,
		sessions: sessions,
		qa:       qa,
		health:   health,
	}, nil
}

func (a *app) Close() {
	a.builder.Release()
	closeStore(a.store)
	_ = a.logger.Sync()
}

func closeStore(s db.Store) {
	if s != nil {
		s.Close()
	}
}

// newCacheStore returns nil for the "none" driver.
func newCacheStore(ctx context.Context, cfg config.CacheConfig) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case config.CacheNone:
		return nil, nil
	case config.CacheMemory:
		store, err = dbMemory.NewStore(dbMemory.Config{MaxEntries: cfg.MaxEntries})
	case config.CacheRedis:
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:          cfg.Addrs,
			Username:       cfg.Username,
			Password:       cfg.Password,
			DB:             cfg.DB,
			ClientCacheTTL: time.Duration(cfg.ClientCacheSec) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s cache: %w", cfg.Driver, err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s cache not ready: %w", cfg.Driver, err)
	}
	return store, nil
}

// newProvider returns the embedding base, the generator and the provider health check.
func newProvider(
	cfg config.ProviderConfig, logger *zap.Logger,
) (domain.Embedder, domain.Generator, domain.HealthChecker) {
	if cfg.Kind == config.ProviderOpenAI {
		embedCfg := &openaiTransport.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.EmbedModel,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Kind,
			Logger:     logger,
		}
		genCfg := *embedCfg
		genCfg.Model = cfg.GenModel
		embedder := openaiTransport.NewEmbedder(embedCfg)
		return embedder, openaiTransport.NewGenerator(&genCfg), embedder
	}

	client := ollamaTransport.New(ollamaTransport.Config{
		ServerURL:  cfg.BaseURL,
		EmbedModel: cfg.EmbedModel,
		GenModel:   cfg.GenModel,
		Logger:     logger,
	})
	return client, client, client
}

// newEmbedder assembles the decorator chain:
// provider -> Cached -> Instrumented -> Retrying -> Shrinking (outermost).
func newEmbedder(base domain.Embedder, store db.Store, cfg config.Config, logger *zap.Logger) domain.Embedder {
	if cfg.Embedding.Disabled {
		return embeddinguc.DisabledEmbedder{}
	}

	embedder := base
	if store != nil {
		embedder = embcache.New(embedder, store, embcache.Config{
			Model: cfg.Provider.EmbedModel,
			TTL:   time.Duration(cfg.Cache.TTLHours) * time.Hour,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider.Kind, cfg.Provider.EmbedModel, logger)
	embedder = embeddinguc.NewRetryingEmbedder(embedder, retry.Policy{
		Attempts: cfg.Embedding.RetryAttempts,
		Step:     time.Duration(cfg.Embedding.RetryStepMs) * time.Millisecond,
	}, logger)

	// Shrinking is outermost: every rung of the ladder gets its own retries.
	return embeddinguc.NewShrinkingEmbedder(embedder, cfg.Embedding.MaxChars, cfg.Embedding.NumCtx, logger)
}
