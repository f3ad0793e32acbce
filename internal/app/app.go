// Package app wires configuration into a runnable crawl: fetch pool,
// orchestrator, sinks, and the status API.
package app

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
	"go.uber.org/zap"

	"github.com/qfrontier/qfrontier/internal/api"
	"github.com/qfrontier/qfrontier/internal/archive"
	gcsblob "github.com/qfrontier/qfrontier/internal/blob/gcs"
	localblob "github.com/qfrontier/qfrontier/internal/blob/local"
	memoryblob "github.com/qfrontier/qfrontier/internal/blob/memory"
	"github.com/qfrontier/qfrontier/internal/clock/system"
	"github.com/qfrontier/qfrontier/internal/config"
	"github.com/qfrontier/qfrontier/internal/crawler"
	collyfetch "github.com/qfrontier/qfrontier/internal/fetch/colly"
	"github.com/qfrontier/qfrontier/internal/fetch/headless"
	"github.com/qfrontier/qfrontier/internal/hash/sha256"
	"github.com/qfrontier/qfrontier/internal/id/uuid"
	"github.com/qfrontier/qfrontier/internal/logging"
	"github.com/qfrontier/qfrontier/internal/metrics"
	"github.com/qfrontier/qfrontier/internal/publish/memory"
	gcppublisher "github.com/qfrontier/qfrontier/internal/publish/pubsub"
	"github.com/qfrontier/qfrontier/internal/ratelimit"
	"github.com/qfrontier/qfrontier/internal/rl"
	"github.com/qfrontier/qfrontier/internal/score"
)

// App contains the crawl's long-lived dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	orchestrator *crawler.Orchestrator
	pool         *crawler.Pool
	recorder     *crawler.Recorder
	apiServer    *api.Server

	headless     *headless.Fetcher
	pubsubClient *pubsub.Client
	pubsubTopic  *pubsub.Topic
	storage      *storage.Client
	archive      *archive.Store
}

// Build creates the crawl's dependencies from configuration. The
// returned App is ready to Run; seeds are already queued.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building crawl",
		zap.Int("port", cfg.Server.Port),
		zap.Int("concurrency", cfg.Crawler.Concurrency),
		zap.Int("seeds", len(cfg.Crawler.Seeds)),
		zap.Float64("epsilon", cfg.RL.Epsilon),
	)

	crawlID, err := uuid.New().NewID()
	if err != nil {
		return nil, fmt.Errorf("crawl id generation failed: %w", err)
	}

	scorer := score.NewFormScorer()
	estimator := rl.NewTDEstimator(scorer.Types(), rl.EstimatorParams{
		Gamma:      cfg.RL.Gamma,
		LearnRate:  cfg.RL.LearnRate,
		ActionDims: cfg.RL.ActionDims,
	})

	blobStore, err := setupStorage(ctx, app)
	if err != nil {
		return nil, err
	}
	if err := setupArchive(ctx, app); err != nil {
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	clk := system.New()
	var checkpointer *crawler.Checkpointer
	if blobStore != nil {
		checkpointer = crawler.NewCheckpointer(blobStore, clk, crawlID, logger.Named("checkpoint"))
	}
	var archiveSink crawler.Archive
	if app.archive != nil {
		archiveSink = app.archive
	}
	app.recorder = crawler.NewRecorder(archiveSink, publisher, cfg.Publish.Topic, logger.Named("recorder"))

	fetcher, err := setupFetcher(app)
	if err != nil {
		return nil, err
	}

	app.pool, err = crawler.NewPool(cfg.Crawler.Concurrency, cfg.Crawler.MaxDepth, crawler.PoolDeps{
		Fetcher: fetcher,
		Scorer:  scorer,
		Links:   score.NewExtractor(),
		Limiter: ratelimit.New(ratelimit.Config{QPS: cfg.Crawler.DomainQPS, Burst: cfg.Crawler.DomainBurst}),
		Hasher:  sha256.New(),
	}, logger.Named("pool"))
	if err != nil {
		return nil, fmt.Errorf("pool init failed: %w", err)
	}

	app.orchestrator, err = crawler.New(crawler.Config{
		CrawlID:            crawlID,
		Seeds:              cfg.Crawler.Seeds,
		BlockedDomains:     cfg.Crawler.BlockedDomains,
		Epsilon:            cfg.RL.Epsilon,
		Concurrency:        cfg.Crawler.Concurrency,
		MaxDepth:           cfg.Crawler.MaxDepth,
		MaxPages:           cfg.Crawler.MaxPages,
		UpdateInterval:     cfg.RL.UpdateInterval,
		ResweepReward:      cfg.RL.ResweepReward,
		StatsInterval:      cfg.Crawler.StatsEvery(),
		CheckpointInterval: cfg.Crawler.CheckpointEvery(),
	}, crawler.Deps{
		Estimator:    estimator,
		ScoreTypes:   scorer.Types(),
		Checkpointer: checkpointer,
		Recorder:     app.recorder,
		Clock:        clk,
	}, logger.Named("crawler"))
	if err != nil {
		return nil, fmt.Errorf("orchestrator init failed: %w", err)
	}
	if err := app.orchestrator.Seed(cfg.Crawler.Seeds); err != nil {
		return nil, fmt.Errorf("seed frontier: %w", err)
	}

	if cfg.API.Enabled {
		apiCfg := api.Config{}
		if cfg.Auth.Enabled {
			apiCfg.APIKey = cfg.Auth.APIKey
		}
		app.apiServer = api.NewServer(app.orchestrator, apiCfg, logger.Named("api"))
	}

	return app, nil
}

// Run starts the crawl and blocks until it finishes or the context is
// canceled. SIGINT and SIGTERM trigger a graceful stop.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.pool.Run(ctx, a.orchestrator.Requests(), a.orchestrator.Completions())

	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		a.recorder.Run(ctx)
	}()

	var srv *http.Server
	if a.apiServer != nil {
		srv = &http.Server{
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
	}

	runErr := a.orchestrator.Run(ctx)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	select {
	case <-recorderDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("recorder drain timed out")
	}

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
		}
	}

	a.Close()
	return runErr
}

// Close releases every external resource. Safe to call when Build only
// partially completed.
func (a *App) Close() {
	if a.headless != nil {
		a.headless.Close()
	}
	if a.pubsubTopic != nil {
		a.pubsubTopic.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.archive != nil {
		a.archive.Close()
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
}

func setupStorage(ctx context.Context, app *App) (crawler.BlobStore, error) {
	switch app.cfg.Storage.Provider {
	case "gcs":
		app.logger.Info("using GCS checkpoint storage", zap.String("bucket", app.cfg.Storage.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobStore, err := gcsblob.New(client, gcsblob.Config{Bucket: app.cfg.Storage.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobStore, nil
	case "local":
		app.logger.Info("using local checkpoint storage", zap.String("path", app.cfg.Storage.Local.BaseDir))
		blobStore, err := localblob.New(localblob.Config{BaseDir: app.cfg.Storage.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobStore, nil
	case "memory":
		app.logger.Info("using in-memory checkpoint storage")
		return memoryblob.NewBlobStore(), nil
	case "none":
		app.logger.Warn("checkpointing disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", app.cfg.Storage.Provider)
	}
}

func setupArchive(ctx context.Context, app *App) error {
	if app.cfg.DB.DSN == "" {
		app.logger.Warn("no database DSN configured, skipping page archive")
		return nil
	}
	store, err := archive.New(ctx, archive.Config{
		DSN:             app.cfg.DB.DSN,
		Table:           app.cfg.DB.Table,
		MaxConns:        app.cfg.DB.MaxConns,
		MinConns:        app.cfg.DB.MinConns,
		MaxConnLifetime: app.cfg.DB.ConnLifetime(),
	})
	if err != nil {
		return fmt.Errorf("page archive init failed: %w", err)
	}
	app.archive = store
	app.logger.Info("page archive initialized", zap.String("table", app.cfg.DB.Table))
	return nil
}

func setupPublisher(ctx context.Context, app *App) (crawler.Publisher, error) {
	switch app.cfg.Publish.Provider {
	case "pubsub":
		client, err := pubsub.NewClient(ctx, app.cfg.Publish.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		app.pubsubClient = client
		app.pubsubTopic = client.Topic(app.cfg.Publish.Topic)
		app.logger.Info("pubsub publisher initialized",
			zap.String("project", app.cfg.Publish.ProjectID),
			zap.String("topic", app.cfg.Publish.Topic),
		)
		return gcppublisher.New(app.pubsubTopic), nil
	case "memory":
		app.logger.Info("using in-memory publisher")
		return memory.New(), nil
	default:
		app.logger.Info("publishing disabled")
		return nil, nil
	}
}

func setupFetcher(app *App) (crawler.Fetcher, error) {
	if app.cfg.Fetcher.Headless.Enabled {
		f, err := headless.NewChromedp(headless.Config{
			MaxParallel:       app.cfg.Fetcher.Headless.MaxParallel,
			UserAgent:         app.cfg.Crawler.UserAgent,
			NavigationTimeout: app.cfg.Fetcher.Headless.NavTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		app.headless = f
		app.logger.Info("using headless fetcher", zap.Int("max_parallel", app.cfg.Fetcher.Headless.MaxParallel))
		return f, nil
	}
	return collyfetch.New(collyfetch.Config{
		UserAgent:     app.cfg.Crawler.UserAgent,
		RespectRobots: !app.cfg.Crawler.IgnoreRobots,
		Timeout:       app.cfg.Fetcher.FetchTimeout(),
	}), nil
}
