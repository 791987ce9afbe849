// Command newsctl is the administrative CLI for the crawler: it runs a
// single crawl/cleanup/sync/search/stats operation against the same stores
// and collaborators the crawlerd daemon uses, then exits.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fcollova/tanea-crawler/internal/coordinator"
	"github.com/fcollova/tanea-crawler/internal/core/domain"
	"github.com/fcollova/tanea-crawler/internal/core/embeddings"
	"github.com/fcollova/tanea-crawler/internal/daemon"
	"github.com/fcollova/tanea-crawler/internal/discovery"
	"github.com/fcollova/tanea-crawler/internal/extract"
	"github.com/fcollova/tanea-crawler/internal/orchestrator"
	"github.com/fcollova/tanea-crawler/internal/pacer"
	"github.com/fcollova/tanea-crawler/internal/platform/config"
	"github.com/fcollova/tanea-crawler/internal/registry"
	"github.com/fcollova/tanea-crawler/internal/retriever"
	"github.com/fcollova/tanea-crawler/internal/storage"
	"github.com/fcollova/tanea-crawler/internal/vectorstore"
)

const (
	defaultSpiderMaxPages = 50
	defaultSpiderMaxDepth = 2
	defaultCleanupDays    = 30
	defaultSearchK        = 10
)

// app bundles the collaborators every subcommand needs; built once per
// invocation from the same config the daemon loads.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	db     *storage.DB
	reg    *registry.Registry
	vec    *vectorstore.Store
	runner *daemon.Runner
	retr   *retriever.Retriever
}

func newApp(ctx context.Context) (*app, error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	dbCfg := cfg.DatabaseCfg()
	db, err := storage.NewWithOptions(ctx, dbCfg.PostgresDSN, storage.PoolOptions{
		MaxConns:          dbCfg.MaxConnections,
		MinConns:          dbCfg.MinConnections,
		MaxConnIdleTime:   dbCfg.MaxConnIdleTime,
		MaxConnLifetime:   dbCfg.MaxConnLifetime,
		HealthCheckPeriod: dbCfg.HealthCheckPeriod,
	}, &logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	regCfg := cfg.RegistryCfg()
	reg, err := registry.Load(regCfg.DomainsPath, regCfg.SitesPath, regCfg.Env)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load domain/site registry: %w", err)
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

	vec := vectorstore.New(db.Pool)
	embedClient := embeddings.NewClient(ctx, cfg.EmbeddingCfg(), &logger)
	coord := coordinator.New(db, vec, embedClient, logger)
	orch := orchestrator.New(db, disc, extractor, coord, logger)
	runner := daemon.New(reg, orch, db, disc, db, vec, p, crawlCfg.AttemptRetention, logger)
	retr := retriever.New(embedClient, vec, reg)

	return &app{cfg: cfg, logger: logger, db: db, reg: reg, vec: vec, runner: runner, retr: retr}, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func main() {
	root := &cobra.Command{
		Use:   "newsctl",
		Short: "Administrative CLI for the news crawler",
	}

	root.AddCommand(crawlDomainCmd(), crawlSiteCmd(), crawlAllCmd(), cleanupCmd(), syncCmd(), searchCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func crawlDomainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl-domain <domain-id>",
		Short: "Crawl every active site under one domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.runner.CrawlDomain(ctx, args[0])
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
}

func crawlSiteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl-site <site-id>",
		Short: "Crawl a single site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.runner.CrawlSite(ctx, args[0])
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
}

func crawlAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl-all",
		Short: "Crawl every active site under every active domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.runner.CrawlAll(ctx)
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
}

func cleanupCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Prune old crawl attempts and retire obsolete links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			retention := time.Duration(days) * 24 * time.Hour
			if err := a.runner.Cleanup(ctx, retention); err != nil {
				return err
			}
			fmt.Printf("cleanup complete (retention %s)\n", retention)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", defaultCleanupDays, "retention window in days")
	return cmd
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile dangling vector references and pending reconciliation hints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.runner.Run(ctx, domain.Job{Type: domain.JobTypeSync}); err != nil {
				return err
			}
			fmt.Println("sync complete")
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	var domainID string
	var k int
	cmd := &cobra.Command{
		Use:   "search <question>",
		Short: "Semantic search over stored articles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			matches, err := a.retr.Search(ctx, retriever.Query{Text: args[0], DomainID: domainID, K: k})
			if err != nil {
				return err
			}
			for _, m := range matches {
				fmt.Printf("%.4f  %-8s  %s\n       %s\n", m.Distance, m.SourceSite, m.Title, m.URL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&domainID, "domain", "", "restrict to one domain id")
	cmd.Flags().IntVar(&k, "k", defaultSearchK, "number of results")
	return cmd
}

func statsCmd() *cobra.Command {
	var domainID string
	var limit int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recent crawl run statistics for a domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.db.StatsForDomain(ctx, domainID, limit)
			if err != nil {
				return err
			}
			for _, s := range rows {
				fmt.Printf("%s  site=%-12s discovered=%-4d crawled=%-4d extracted=%-4d errors=%-3d (%s -> %s)\n",
					s.JobID, s.SiteID, s.LinksDiscovered, s.LinksCrawled, s.ArticlesExtracted, s.Errors,
					s.StartedAt.Format(time.RFC3339), s.FinishedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&domainID, "domain", "", "domain id")
	cmd.Flags().IntVar(&limit, "limit", defaultSearchK, "maximum rows")
	return cmd
}

func printResult(r orchestrator.Result) {
	fmt.Printf("sites=%d discovered=%d crawled=%d extracted=%d errors=%d\n",
		r.SitesProcessed, r.LinksDiscovered, r.LinksCrawled, r.ArticlesExtracted, r.Errors)
}
