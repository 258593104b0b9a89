// Package server builds the application's dependencies and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/ai-readiness-scorer/internal/api"
	"github.com/JakeFAU/ai-readiness-scorer/internal/benchmark"
	"github.com/JakeFAU/ai-readiness-scorer/internal/clock/system"
	"github.com/JakeFAU/ai-readiness-scorer/internal/competitor"
	"github.com/JakeFAU/ai-readiness-scorer/internal/config"
	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/crawlservice"
	"github.com/JakeFAU/ai-readiness-scorer/internal/dispatcher"
	"github.com/JakeFAU/ai-readiness-scorer/internal/enrichment"
	"github.com/JakeFAU/ai-readiness-scorer/internal/hash/sha256"
	"github.com/JakeFAU/ai-readiness-scorer/internal/id/uuid"
	"github.com/JakeFAU/ai-readiness-scorer/internal/ingest"
	"github.com/JakeFAU/ai-readiness-scorer/internal/metrics"
	"github.com/JakeFAU/ai-readiness-scorer/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/ai-readiness-scorer/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/ai-readiness-scorer/internal/publisher/pubsub"
	"github.com/JakeFAU/ai-readiness-scorer/internal/quickwin"
	queuememory "github.com/JakeFAU/ai-readiness-scorer/internal/queue/memory"
	queueredis "github.com/JakeFAU/ai-readiness-scorer/internal/queue/redis"
	"github.com/JakeFAU/ai-readiness-scorer/internal/readiness"
	"github.com/JakeFAU/ai-readiness-scorer/internal/scoring"
	gcsstorage "github.com/JakeFAU/ai-readiness-scorer/internal/storage/gcs"
	localstorage "github.com/JakeFAU/ai-readiness-scorer/internal/storage/local"
	memorystorage "github.com/JakeFAU/ai-readiness-scorer/internal/storage/memory"
	pgstore "github.com/JakeFAU/ai-readiness-scorer/internal/storage/postgres"
	"github.com/JakeFAU/ai-readiness-scorer/internal/store"
)

// ErrCrawlerNotConfigured is returned by dispatch when no crawler URL is set.
var ErrCrawlerNotConfigured = errors.New("crawler_service.base_url is not configured")

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	repo     store.Repository
	postgres *pgstore.Repository
	blobs    crawler.BlobStore
	pipeline *ingest.Pipeline
	jobs     *crawlservice.Service
	api      *api.Server

	queue       crawler.Queue
	closeQueue  func() error
	redisClient *goredis.Client
	dispatch    *dispatcher.Dispatcher

	scheduler    *competitor.Scheduler
	cron         *competitor.CronRunner
	pubsubClient *pubsub.Client
	publisher    *gcppublisher.Publisher
	gcsClient    *storage.Client
}

type unconfiguredDispatcher struct{}

func (unconfiguredDispatcher) Dispatch(context.Context, crawler.Job) error {
	return ErrCrawlerNotConfigured
}

// Build creates the application's dependencies. Clients opened before a
// failure are closed before returning.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	app := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			app.closeInfrastructure()
		}
	}()

	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("postgres", cfg.Database.DSN != ""),
		zap.Bool("enrichment", cfg.Enrichment.Enabled),
		zap.Bool("competitor_monitoring", cfg.Competitor.Enabled),
	)

	clock := system.New()
	ids := uuid.New()
	engine := scoring.MustEngine(nil)

	if err = app.setupRepository(ctx); err != nil {
		return nil, err
	}
	if err = app.setupStorage(ctx); err != nil {
		return nil, err
	}

	pipelineOpts := []ingest.Option{
		ingest.WithBlobStore(app.blobs),
		ingest.WithHasher(sha256.New(sha256.WithWhitespaceNormalization())),
		ingest.WithBlobPrefix(cfg.Storage.Prefix),
		ingest.WithMinWordCount(cfg.Ingest.MinWordCount),
		ingest.WithEnqueueTimeout(time.Duration(cfg.Ingest.EnqueueTimeoutSeconds) * time.Second),
		ingest.WithLogger(logger.Named("ingest")),
	}
	if cfg.Enrichment.Enabled {
		if err = app.setupEnrichment(ctx, engine, ids, clock); err != nil {
			return nil, err
		}
		pipelineOpts = append(pipelineOpts, ingest.WithEnqueuer(app.dispatch))
	}
	app.pipeline = ingest.New(app.repo, engine, clock, ids, pipelineOpts...)

	var crawlDispatcher crawlservice.Dispatcher = unconfiguredDispatcher{}
	if cfg.CrawlerService.BaseURL != "" {
		crawlDispatcher, err = crawlservice.NewClient(crawlservice.ClientConfig{
			BaseURL:     cfg.CrawlerService.BaseURL,
			CallbackURL: cfg.CrawlerService.CallbackURL,
			APIKey:      cfg.CrawlerService.APIKey,
			Timeout:     cfg.CrawlerTimeout(),
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("crawler client init failed: %w", err)
		}
	} else {
		logger.Warn("no crawler service configured; new jobs will fail dispatch")
	}
	app.jobs = crawlservice.NewService(app.repo, crawlDispatcher, ids, clock, logger.Named("crawlservice"))

	if err = app.setupCompetitors(ctx, engine, ids, clock); err != nil {
		return nil, err
	}

	apiOpts := []api.Option{api.WithLogger(logger.Named("api"))}
	if cfg.Auth.Enabled {
		apiOpts = append(apiOpts, api.WithAPIKey(cfg.Auth.APIKey))
	}
	if app.postgres != nil {
		apiOpts = append(apiOpts, api.WithReadyCheck(app.postgres.Ping))
	}
	if app.redisClient != nil {
		client := app.redisClient
		apiOpts = append(apiOpts, api.WithReadyCheck(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}
	app.api = api.NewServer(api.Deps{
		Ingester:  app.pipeline,
		Jobs:      app.jobs,
		Store:     app.repo,
		Ranker:    quickwin.NewRanker(engine.Catalog()),
		Evaluator: readiness.NewEvaluator(readiness.DefaultRequirements()),
		IDs:       ids,
		Clock:     clock,
	}, apiOpts...)

	return app, nil
}

func (a *App) setupRepository(ctx context.Context) error {
	if a.cfg.Database.DSN == "" {
		a.logger.Warn("no database DSN configured, using in-memory repository")
		a.repo = memorystorage.NewRepository()
		return nil
	}
	repo, err := pgstore.New(ctx, pgstore.Config{
		DSN:             a.cfg.Database.DSN,
		MaxConns:        a.cfg.Database.MaxConns,
		MinConns:        a.cfg.Database.MinConns,
		MaxConnLifetime: a.cfg.ConnLifetime(),
	})
	if err != nil {
		return fmt.Errorf("postgres init failed: %w", err)
	}
	a.postgres = repo
	a.repo = repo
	if a.cfg.Database.Migrate {
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("postgres migrate failed: %w", err)
		}
		a.logger.Info("postgres schema applied")
	}
	return nil
}

func (a *App) setupStorage(ctx context.Context) error {
	var err error
	switch a.cfg.Storage.Backend {
	case config.StorageGCS:
		a.logger.Info("using GCS storage backend", zap.String("bucket", a.cfg.Storage.Bucket))
		a.gcsClient, err = storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.blobs, err = gcsstorage.New(a.gcsClient, gcsstorage.Config{Bucket: a.cfg.Storage.Bucket})
		if err != nil {
			return fmt.Errorf("gcs blob store init failed: %w", err)
		}
	case config.StorageLocal:
		a.logger.Info("using local storage backend", zap.String("path", a.cfg.Storage.Local.BaseDir))
		a.blobs, err = localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.Local.BaseDir})
		if err != nil {
			return fmt.Errorf("local blob store init failed: %w", err)
		}
	default:
		a.logger.Info("using in-memory storage backend")
		a.blobs = memorystorage.NewBlobStore()
	}
	return nil
}

func (a *App) setupEnrichment(ctx context.Context, engine *scoring.Engine, ids crawler.IDGenerator, clock crawler.Clock) error {
	ecfg := a.cfg.Enrichment
	switch ecfg.Queue {
	case config.QueueRedis:
		client, err := queueredis.NewClient(ctx, queueredis.Config{
			Address:  a.cfg.Redis.Address,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
		a.redisClient = client
		q := queueredis.New(client, a.cfg.Redis.ListKey)
		a.queue = q
		a.closeQueue = q.Close
		a.logger.Info("using redis enrichment queue", zap.String("list_key", a.cfg.Redis.ListKey))
	default:
		q := queuememory.NewQueue(ecfg.QueueDepth)
		a.queue = q
		a.closeQueue = func() error { q.Close(); return nil }
		a.logger.Info("using in-memory enrichment queue", zap.Int("depth", ecfg.QueueDepth))
	}

	limiter := ratelimit.New(ratelimit.Config{DefaultRPS: ecfg.LLM.RequestsPerSecond, DefaultBurst: 1})
	scorer := enrichment.NewAnthropicScorer(enrichment.AnthropicConfig{
		APIKey:    ecfg.LLM.APIKey,
		Model:     ecfg.LLM.Model,
		MaxTokens: ecfg.LLM.MaxTokens,
	}, limiter)
	processor := enrichment.NewProcessor(a.repo, a.blobs, scorer, engine, ids, clock,
		enrichment.WithRequeue(a.queue),
		enrichment.WithRetryPolicy(enrichment.NewRetryPolicy(ecfg.MaxAttempts, 0, 0)),
		enrichment.WithMaxChars(ecfg.MaxChars),
		enrichment.WithLogger(a.logger.Named("enrichment")),
	)
	a.dispatch = dispatcher.New(a.queue, processor, ecfg.Workers, a.logger.Named("worker"))
	a.logger.Info("enrichment enabled",
		zap.Int("workers", a.dispatch.Size()),
		zap.String("model", ecfg.LLM.Model),
		zap.Float64("llm_rps", ecfg.LLM.RequestsPerSecond),
	)
	return nil
}

func (a *App) setupCompetitors(ctx context.Context, engine *scoring.Engine, ids crawler.IDGenerator, clock crawler.Clock) error {
	ccfg := a.cfg.Competitor
	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		return err
	}
	prober := NewProber(a.cfg, a.logger.Named("benchmark"), benchmark.WithEngine(engine))
	a.scheduler = competitor.NewScheduler(a.repo, prober, ids, clock,
		competitor.WithBatchSize(ccfg.BatchSize),
		competitor.WithNotifier(competitor.NewOutbox(publisher, a.cfg.PubSub.TopicName)),
		competitor.WithLogger(a.logger.Named("competitor")),
	)
	if !ccfg.Enabled {
		a.logger.Info("competitor monitoring schedule disabled")
		return nil
	}
	a.cron, err = competitor.NewCronRunner(ccfg.Schedule, a.scheduler, a.logger.Named("competitor_cron"))
	if err != nil {
		return fmt.Errorf("competitor schedule init failed: %w", err)
	}
	return nil
}

func (a *App) setupPublisher(ctx context.Context) (crawler.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	var err error
	a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.publisher = gcppublisher.New(a.pubsubClient, a.cfg.PubSub.TopicName)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return a.publisher, nil
}

// NewProber builds the benchmark prober from competitor settings.
func NewProber(cfg config.Config, logger *zap.Logger, opts ...benchmark.Option) *benchmark.Prober {
	limiter := ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Competitor.RequestsPerSecond, DefaultBurst: 1})
	opts = append([]benchmark.Option{benchmark.WithLimiter(limiter), benchmark.WithLogger(logger)}, opts...)
	return benchmark.New(benchmark.Config{
		UserAgent: cfg.Competitor.UserAgent,
		Timeout:   cfg.CompetitorTimeout(),
	}, opts...)
}

// Handler exposes the HTTP API.
func (a *App) Handler() http.Handler {
	return a.api.Handler()
}

// Sweep runs one competitor benchmark sweep.
func (a *App) Sweep(ctx context.Context) (competitor.SweepResult, error) {
	return a.scheduler.Sweep(ctx)
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workersDone := make(chan struct{})
	if a.dispatch != nil {
		go func() {
			defer close(workersDone)
			a.logger.Info("enrichment workers started", zap.Int("workers", a.dispatch.Size()))
			a.dispatch.Run(ctx)
		}()
	} else {
		close(workersDone)
	}
	if a.cron != nil {
		a.cron.Start(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if a.cron != nil {
		a.cron.Stop()
	}
	a.pipeline.Wait()
	<-workersDone
	a.Close()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases every client the app opened.
func (a *App) Close() {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure() {
	if a.closeQueue != nil {
		if err := a.closeQueue(); err != nil {
			a.logger.Warn("queue close failed", zap.Error(err))
		}
		a.closeQueue = nil
	}
	if a.publisher != nil {
		a.publisher.Close()
		a.publisher = nil
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.pubsubClient = nil
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.gcsClient = nil
	}
	if a.postgres != nil {
		a.postgres.Close()
		a.postgres = nil
	}
}
