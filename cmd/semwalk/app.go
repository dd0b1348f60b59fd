package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semwalk/internal/config"
	"github.com/kailas-cloud/semwalk/internal/db"
	"github.com/kailas-cloud/semwalk/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/semwalk/internal/db/redis"
	dbValkey "github.com/kailas-cloud/semwalk/internal/db/valkey"
	"github.com/kailas-cloud/semwalk/internal/domain"
	domwalk "github.com/kailas-cloud/semwalk/internal/domain/walk"
	"github.com/kailas-cloud/semwalk/internal/metrics"
	"github.com/kailas-cloud/semwalk/internal/repository/conversation"
	"github.com/kailas-cloud/semwalk/internal/repository/embcache"
	"github.com/kailas-cloud/semwalk/internal/repository/index"
	"github.com/kailas-cloud/semwalk/internal/repository/pgvector"
	"github.com/kailas-cloud/semwalk/internal/repository/table"
	openaiTransport "github.com/kailas-cloud/semwalk/internal/transport/openai"
	chatuc "github.com/kailas-cloud/semwalk/internal/usecase/chat"
	corpusuc "github.com/kailas-cloud/semwalk/internal/usecase/corpus"
	embeddinguc "github.com/kailas-cloud/semwalk/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/semwalk/internal/usecase/health"
	walkuc "github.com/kailas-cloud/semwalk/internal/usecase/walk"
)

// app holds the services a command works with.
type app struct {
	walks    *walkuc.Service
	corpora  *corpusuc.Service
	chat     *chatuc.Service // nil when chat.model is empty
	health   *healthuc.Service
	defaults domwalk.Defaults
	closers  []func()
}

// Close releases backends in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// backend is what every search backend provides to the services.
type backend interface {
	walkuc.Provider
	corpusuc.Manager
}

// buildApp is the composition root: backend, embedder chain, chat and health.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	metrics.Register()

	a := &app{defaults: walkDefaults(cfg.Search.Walk)}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.Provider.APIKey,
		BaseURL:    cfg.Embedding.Provider.BaseURL,
		Model:      cfg.Embedding.Vectorizer.Model,
		Dimensions: cfg.Embedding.Vectorizer.Dimensions,
		User:       cfg.Embedding.Provider.User,
		Provider:   cfg.Embedding.Provider.Name,
		Logger:     logger,
	})

	var (
		be         backend
		searchPing healthuc.Pinger
		embedder   domain.Embedder
	)

	switch cfg.Search.Backend {
	case config.BackendIndex:
		store, err := openStore(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		searchPing = store

		embedder = buildEmbedder(cfg.Embedding, base, store, logger)
		be = index.New(store, embedder, cfg.Search.KeyPrefix).WithHNSW(index.HNSWConfig{
			M:           cfg.Search.HNSWM,
			EFConstruct: cfg.Search.HNSWEF,
		})

	case config.BackendPgvector:
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			return nil, fmt.Errorf("postgres not ready: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		searchPing = store

		embedder = buildEmbedder(cfg.Embedding, base, nil, logger)
		be = pgvector.New(store, embedder, cfg.Search.KeyPrefix)

	case config.BackendTable:
		embedder = buildEmbedder(cfg.Embedding, base, nil, logger)
		sources := make([]table.Source, len(cfg.Search.Tables))
		for i, t := range cfg.Search.Tables {
			sources[i] = table.Source{
				Name:            t.Name,
				Path:            t.Path,
				TextColumn:      t.TextColumn,
				EmbeddingColumn: t.EmbeddingColumn,
			}
		}
		repo, err := table.Load(embedder, sources)
		if err != nil {
			return nil, fmt.Errorf("load tables: %w", err)
		}
		be = repo

	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.Search.Backend)
	}

	logger.Info("Search backend ready",
		zap.String("backend", cfg.Search.Backend),
		zap.String("embedding_model", cfg.Embedding.Vectorizer.Model),
		zap.Int("dimensions", cfg.Embedding.Vectorizer.Dimensions),
	)

	walkOpts := []walkuc.Option{
		walkuc.WithConcurrency(cfg.Search.Concurrency),
		walkuc.WithLogger(logger),
	}

	// Pass nil interfaces, never typed nil pointers, to health.New.
	var conversations healthuc.Pinger
	if cfg.Chat.Model != "" {
		completer := openaiTransport.NewCompleter(&openaiTransport.Config{
			APIKey:   cfg.Chat.APIKey,
			BaseURL:  cfg.Chat.BaseURL,
			Model:    cfg.Chat.Model,
			User:     cfg.Embedding.Provider.User,
			Provider: cfg.Embedding.Provider.Name,
			Logger:   logger,
		})
		walkOpts = append(walkOpts, walkuc.WithCompleter(completer))

		log, err := conversation.Open(ctx, cfg.Conversation.Path)
		if err != nil {
			return nil, fmt.Errorf("open conversation log: %w", err)
		}
		a.closers = append(a.closers, func() { _ = log.Close() })
		conversations = log

		chatOpts := []chatuc.Option{
			chatuc.WithHistoryLimit(cfg.Chat.HistoryLimit),
			chatuc.WithLogger(logger),
		}
		if cfg.Chat.Temperature != nil {
			chatOpts = append(chatOpts, chatuc.WithTemperature(*cfg.Chat.Temperature))
		}
		a.chat = chatuc.New(completer, log, chatOpts...)
	}

	a.walks = walkuc.New(be, walkOpts...)
	a.corpora = corpusuc.New(be, embedder, cfg.Embedding.Vectorizer.Dimensions, cfg.Embedding.BatchSize, logger)

	var embeddingCheck healthuc.EmbeddingChecker
	if hc, isChecker := embedder.(domain.HealthChecker); isChecker {
		embeddingCheck = hc
	}
	a.health = healthuc.New(searchPing, embeddingCheck, conversations)

	ok = true
	return a, nil
}

// openStore connects to Valkey or Redis and waits until it answers.
func openStore(ctx context.Context, dbCfg config.DatabaseConfig) (db.Store, error) {
	rc := dbRedis.Config{
		Addrs:    dbCfg.Addrs,
		Username: dbCfg.Username,
		Password: dbCfg.Password,
		DB:       dbCfg.DB,
	}

	var (
		store db.Store
		err   error
	)
	switch dbCfg.Driver {
	case "valkey":
		store, err = dbValkey.NewStore(rc)
	case "redis":
		store, err = dbRedis.NewStore(rc)
	default:
		return nil, fmt.Errorf("unknown database driver %q", dbCfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", dbCfg.Driver, err)
	}

	if err := store.WaitForReady(ctx, time.Duration(dbCfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s not ready: %w", dbCfg.Driver, err)
	}
	return store, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
// A nil store disables the cache.
func buildEmbedder(
	embCfg config.EmbeddingConfig,
	base *openaiTransport.Embedder,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = base
	if store != nil && embCfg.Cache.Enabled {
		embedder = embcache.New(base, store, embcache.Config{
			Prefix: "semwalk:emb_cache:",
			Model:  embCfg.Vectorizer.Model,
			TTL:    time.Duration(embCfg.Cache.TTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	// Go gotcha: (*RateLimiter)(nil) wrapped in Limiter != nil, so only
	// assign when a limiter was actually built.
	var limiter embeddinguc.Limiter
	if rl := embeddinguc.NewRateLimiter(embeddinguc.RateLimitConfig{
		RequestsPerSecond: embCfg.RateLimit.RequestsPerSecond,
		Burst:             embCfg.RateLimit.Burst,
		Action:            embeddinguc.RateLimitAction(embCfg.RateLimit.Action),
	}); rl != nil {
		limiter = rl
	}

	return embeddinguc.NewInstrumentedEmbedder(
		embedder, embCfg.Provider.Name, embCfg.Vectorizer.Model, limiter, logger,
	).WithBatchSize(embCfg.BatchSize)
}

func walkDefaults(w config.WalkConfig) domwalk.Defaults {
	d := domwalk.StandardDefaults()
	if w.TopK > 0 {
		d.TopK = w.TopK
	}
	if w.MaxDepth > 0 {
		d.MaxDepth = w.MaxDepth
	}
	if w.Threshold != nil {
		d.Threshold = *w.Threshold
	}
	if w.Mode != "" {
		d.Mode = domwalk.Mode(w.Mode)
	}
	return d
}
