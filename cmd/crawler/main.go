// Command crawler runs the crawlerd daemon: it drains the Scheduler's job
// queue (crawl_domain, crawl_site, refresh, cleanup, sync jobs) against the
// Domain/Site Registry until terminated, exposing /healthz, /readyz and
// /metrics on the configured health port.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/fcollova/tanea-crawler/internal/coordinator"
	"github.com/fcollova/tanea-crawler/internal/core/embeddings"
	"github.com/fcollova/tanea-crawler/internal/daemon"
	"github.com/fcollova/tanea-crawler/internal/discovery"
	"github.com/fcollova/tanea-crawler/internal/extract"
	"github.com/fcollova/tanea-crawler/internal/orchestrator"
	"github.com/fcollova/tanea-crawler/internal/pacer"
	"github.com/fcollova/tanea-crawler/internal/platform/clock"
	"github.com/fcollova/tanea-crawler/internal/platform/config"
	"github.com/fcollova/tanea-crawler/internal/platform/observability"
	"github.com/fcollova/tanea-crawler/internal/registry"
	"github.com/fcollova/tanea-crawler/internal/scheduler"
	"github.com/fcollova/tanea-crawler/internal/storage"
	"github.com/fcollova/tanea-crawler/internal/vectorstore"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	dbCfg := cfg.DatabaseCfg()
	db, err := storage.NewWithOptions(ctx, dbCfg.PostgresDSN, storage.PoolOptions{
		MaxConns:          dbCfg.MaxConnections,
		MinConns:          dbCfg.MinConnections,
		MaxConnIdleTime:   dbCfg.MaxConnIdleTime,
		MaxConnLifetime:   dbCfg.MaxConnLifetime,
		HealthCheckPeriod: dbCfg.HealthCheckPeriod,
	}, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	regCfg := cfg.RegistryCfg()
	reg, err := registry.Load(regCfg.DomainsPath, regCfg.SitesPath, regCfg.Env)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load domain/site registry")
	}

	crawlCfg := cfg.CrawlerCfg()
	p := pacer.New(pacer.Config{
		DefaultRPS:           crawlCfg.DefaultRequestsPerSec,
		DefaultMaxConcurrent: crawlCfg.DefaultMaxConcurrent,
		UserAgent:            crawlCfg.UserAgent,
	}, logger)

	disc := discovery.New(logger,
		discovery.NewFocusedSpiderStrategy(crawlCfg.UserAgent, defaultSpiderMaxPages, defaultSpiderMaxDepth, logger),
		discovery.NewSitemapStrategy(crawlCfg.UserAgent, logger),
		discovery.NewFeedStrategy(crawlCfg.UserAgent, logger),
		discovery.NewCategoryPageStrategy(crawlCfg.UserAgent, logger),
		discovery.NewHomepageFallbackStrategy(crawlCfg.UserAgent, logger),
	)

	extractor := extract.New(crawlCfg.UserAgent, p, logger)

	vectors := vectorstore.New(db.Pool)
	embedClient := embeddings.NewClient(ctx, cfg.EmbeddingCfg(), &logger)
	coord := coordinator.New(db, vectors, embedClient, logger)
	orch := orchestrator.New(db, disc, extractor, coord, logger)

	if err := orch.RecoverOrphans(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to recover orphaned links")
	}

	schedCfg := cfg.SchedulerCfg()
	runner := daemon.New(reg, orch, db, disc, db, vectors, p, crawlCfg.AttemptRetention, logger)
	sched := scheduler.New(runner, clock.New(), logger, schedCfg.HistorySize)

	healthServer := observability.NewServer(db, cfg.HealthPort, &logger)
	go func() {
		logger.Info().Int("port", cfg.HealthPort).Msg("starting health server")
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("health server error")
		}
	}()

	logger.Info().Msg("starting crawler daemon")
	err = sched.Run(ctx, scheduler.LoopConfig{
		DrainInterval: schedCfg.DrainInterval,
		SeedInterval:  schedCfg.SeedInterval,
		Seed:          runner.Seed,
	}, &logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("crawler daemon stopped with error")
	}

	logger.Info().Msg("crawler daemon stopped")
}

const (
	defaultSpiderMaxPages = 50
	defaultSpiderMaxDepth = 2
)
