// Package server assembles the crawler's components and runs them as one
// process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/seawork/vacancy-crawler/internal/api"
	"github.com/seawork/vacancy-crawler/internal/archive"
	"github.com/seawork/vacancy-crawler/internal/clock/system"
	"github.com/seawork/vacancy-crawler/internal/config"
	"github.com/seawork/vacancy-crawler/internal/enrich"
	collyfetcher "github.com/seawork/vacancy-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/seawork/vacancy-crawler/internal/fetcher/headless"
	"github.com/seawork/vacancy-crawler/internal/hash/sha256"
	"github.com/seawork/vacancy-crawler/internal/id/uuid"
	"github.com/seawork/vacancy-crawler/internal/logging"
	"github.com/seawork/vacancy-crawler/internal/progress"
	progresssinks "github.com/seawork/vacancy-crawler/internal/progress/sinks"
	"github.com/seawork/vacancy-crawler/internal/publish"
	memorypublisher "github.com/seawork/vacancy-crawler/internal/publish/memory"
	gcppublisher "github.com/seawork/vacancy-crawler/internal/publish/pubsub"
	"github.com/seawork/vacancy-crawler/internal/resolve"
	"github.com/seawork/vacancy-crawler/internal/scan"
	"github.com/seawork/vacancy-crawler/internal/schedule"
	memorystorage "github.com/seawork/vacancy-crawler/internal/storage/memory"
	pgstore "github.com/seawork/vacancy-crawler/internal/storage/postgres"
	"github.com/seawork/vacancy-crawler/internal/store"
)

// App contains the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	apiServer   *api.Server
	controller  *scan.Controller
	scheduler   *schedule.Scheduler
	progressHub *progress.Hub

	pool          *pgxpool.Pool
	pubsubClient  *pubsub.Client
	pubsubTopic   *pubsub.Topic
	storageClient *storage.Client
	headless      *headlessfetcher.Fetcher
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Log only non-sensitive config fields; the DSN and API key stay out.
	type sanitizedConfig struct {
		ServerPort      int    `json:"server_port"`
		SourceBaseURL   string `json:"source_base_url"`
		ArchiveBackend  string `json:"archive_backend"`
		EnrichEnabled   bool   `json:"enrich_enabled"`
		ScheduleEnabled bool   `json:"schedule_enabled"`
	}
	safeCfg := sanitizedConfig{
		ServerPort:      cfg.Server.Port,
		SourceBaseURL:   cfg.Source.BaseURL,
		ArchiveBackend:  cfg.Archive.Backend,
		EnrichEnabled:   cfg.Enrich.Enabled,
		ScheduleEnabled: cfg.Schedule.Enabled,
	}
	logger.Info("creating application", zap.Any("config", safeCfg))
	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.scheduler != nil {
		if err := a.scheduler.Start(); err != nil {
			return fmt.Errorf("start scan schedule: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application. The scheduler stops before
// the controller so no new scan starts mid-shutdown, and the hub flushes
// the final run events before the sinks' backing clients go away.
func (a *App) Close(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.controller != nil {
		if err := a.controller.Close(ctx); err != nil {
			a.logger.Warn("scan controller close failed", zap.Error(err))
		}
	}
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.pubsubTopic != nil {
		a.pubsubTopic.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.headless != nil {
		a.headless.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	a.logger.Info("shutdown complete")
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	return nil
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}

	app.logger.Info("building application dependencies")

	repos, err := setupStores(ctx, app)
	if err != nil {
		return nil, err
	}

	pageArchiver, err := setupArchive(ctx, app)
	if err != nil {
		return nil, err
	}

	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	emitter, err := setupProgress(ctx, app, repos.runs)
	if err != nil {
		return nil, err
	}

	// One pacing delay per process. Spacing IDs and retry backoff share it.
	baseDelay := scan.RandomBaseDelay(cfg.Scan.DelayRange())
	app.logger.Info("request pacing selected", zap.Duration("base_delay", baseDelay))

	probeFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Source.UserAgent,
		RespectRobots: cfg.Source.RespectRobots,
		Timeout:       cfg.Source.Timeout(),
	})
	app.logger.Info("using colly page fetcher", zap.String("user_agent", cfg.Source.UserAgent))

	resolver := resolve.New(
		repos.companies,
		resolve.NewStoreMatcher(repos.companies),
		probeFetcher,
		cfg.Source.BaseURL,
		logger.Named("resolve"),
	)

	processor := scan.NewProcessor(scan.ProcessorConfig{
		BaseURL:    cfg.Source.BaseURL,
		MaxRetries: cfg.Scan.MaxRetries,
		BaseDelay:  baseDelay,
	}, probeFetcher, repos.vacancies, resolver, pageArchiver, logger.Named("processor"))

	scanner := scan.NewScanner(scan.ScannerConfig{
		BaseURL:       cfg.Source.BaseURL,
		BaseDelay:     baseDelay,
		MissThreshold: cfg.Scan.MissThreshold,
		BoundedSpan:   cfg.Scan.BoundedSpan,
		Topic:         cfg.Publisher.Topic,
	}, processor, repos.vacancies, uuid.New(), system.New(), emitter, publisher, logger.Named("scanner"))

	app.controller = scan.NewController(scanner, ctx, logger.Named("scan_controller"))

	enricher, err := setupEnricher(app, repos.companies)
	if err != nil {
		return nil, err
	}

	if cfg.Schedule.Enabled {
		app.scheduler = schedule.New(app.controller, cfg.Schedule.EveryMinutes, logger.Named("schedule"))
	}

	deps := api.Deps{
		Vacancies:  repos.vacancies,
		Companies:  repos.companies,
		Runs:       repos.runs,
		Processor:  processor,
		Controller: app.controller,
		Logger:     logger.Named("api"),
		APIKey:     cfg.Server.APIKey,
	}
	if enricher != nil {
		deps.Enricher = enricher
	}
	if app.pool != nil {
		deps.Pinger = app.pool
	}
	app.apiServer = api.NewServer(deps)

	return app, nil
}

// repositories groups the three persistence interfaces the pipeline needs.
type repositories struct {
	vacancies store.VacancyRepository
	companies store.CompanyRepository
	runs      store.RunRepository
}

func setupStores(ctx context.Context, app *App) (repositories, error) {
	cfg := app.cfg
	if cfg.Database.DSN == "" {
		app.logger.Warn("no database dsn configured, using in-memory stores")
		return repositories{
			vacancies: memorystorage.NewVacancyStore(cfg.Scan.SeedID),
			companies: memorystorage.NewCompanyStore(),
			runs:      memorystorage.NewRunStore(),
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, pgstore.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime(),
	})
	if err != nil {
		return repositories{}, fmt.Errorf("postgres pool init failed: %w", err)
	}
	app.pool = pool

	if err := pgstore.Migrate(ctx, pool); err != nil {
		return repositories{}, fmt.Errorf("migrate schema: %w", err)
	}
	app.logger.Info("postgres stores initialized")

	return repositories{
		vacancies: pgstore.NewVacancyStore(pool, cfg.Scan.SeedID),
		companies: pgstore.NewCompanyStore(pool),
		runs:      pgstore.NewRunStore(pool),
	}, nil
}

func setupArchive(ctx context.Context, app *App) (scan.Archiver, error) {
	cfg := app.cfg.Archive
	hasher := sha256.New()
	switch cfg.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storageClient = client
		gcsStore, err := archive.NewGCSStore(client, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("gcs archive store init failed: %w", err)
		}
		archiver, err := archive.New(gcsStore, hasher, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("archiver init failed: %w", err)
		}
		app.logger.Info("archiving pages to gcs", zap.String("bucket", cfg.Bucket))
		return archiver, nil
	case "local":
		localStore, err := archive.NewLocalStore(cfg.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("local archive store init failed: %w", err)
		}
		archiver, err := archive.New(localStore, hasher, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("archiver init failed: %w", err)
		}
		app.logger.Info("archiving pages locally", zap.String("base_dir", cfg.BaseDir))
		return archiver, nil
	case "memory":
		archiver, err := archive.New(archive.NewMemoryStore(), hasher, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("archiver init failed: %w", err)
		}
		app.logger.Info("archiving pages in memory")
		return archiver, nil
	default:
		app.logger.Info("page archiving disabled")
		return nil, nil
	}
}

func setupPublisher(ctx context.Context, app *App) (publish.Publisher, error) {
	cfg := app.cfg.Publisher
	if cfg.ProjectID == "" || cfg.Topic == "" {
		app.logger.Warn("no pub/sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.pubsubTopic = client.Topic(cfg.Topic)
	app.logger.Info("pub/sub publisher initialized",
		zap.String("project", cfg.ProjectID),
		zap.String("topic", cfg.Topic),
	)
	return gcppublisher.New(app.pubsubTopic), nil
}

func setupProgress(ctx context.Context, app *App, runs store.RunRepository) (progress.Emitter, error) {
	if !app.cfg.Progress.Enabled {
		app.logger.Info("progress tracking disabled")
		return nil, nil
	}

	sinkList := []progress.Sink{
		progresssinks.NewStoreSink(runs, app.logger.Named("progress_store")),
	}
	promSink, err := progresssinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink init failed: %w", err)
	}
	sinkList = append(sinkList, promSink)
	if app.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, progresssinks.NewLogSink(app.logger.Named("progress_log")))
	}

	hubCfg := progress.Config{
		BufferSize:     app.cfg.Progress.BufferSize,
		MaxBatchEvents: app.cfg.Progress.Batch.MaxEvents,
		MaxBatchWait:   time.Duration(app.cfg.Progress.Batch.MaxWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(app.cfg.Progress.SinkTimeoutMs) * time.Millisecond,
		BaseContext:    ctx,
		Logger:         app.logger.Named("progress_hub"),
	}
	app.progressHub = progress.NewHub(hubCfg, sinkList...)
	app.logger.Info("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Duration("sink_timeout", hubCfg.SinkTimeout),
	)
	return app.progressHub, nil
}

func setupEnricher(app *App, companies store.CompanyRepository) (*enrich.Enricher, error) {
	cfg := app.cfg
	if !cfg.Enrich.Enabled {
		app.logger.Info("company enrichment disabled")
		return nil, nil
	}
	headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       cfg.Enrich.MaxParallel,
		UserAgent:         cfg.Source.UserAgent,
		NavigationTimeout: time.Duration(cfg.Enrich.NavTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	app.headless = headless
	app.logger.Info("company enrichment enabled", zap.Int("max_parallel", cfg.Enrich.MaxParallel))

	return enrich.New(enrich.Config{
		Delay: time.Duration(cfg.Enrich.DelaySeconds) * time.Second,
	}, companies, headless, app.logger.Named("enrich")), nil
}
