package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fcollova/tanea-crawler/internal/platform/worker"
)

// LoopConfig tunes how often the Scheduler drains its pending queue and how
// often it seeds new crawl_domain jobs from the active Domain/Site set.
type LoopConfig struct {
	DrainInterval time.Duration
	SeedInterval  time.Duration
	Seed          func(ctx context.Context, s *Scheduler)
}

// Run drives the Scheduler with the platform's single-ticker worker loop:
// the primary tick drains pending jobs, the secondary tick reseeds
// recurring crawl/refresh/cleanup/sync jobs from current configuration.
func (s *Scheduler) Run(ctx context.Context, cfg LoopConfig, logger *zerolog.Logger) error {
	return worker.SingleTickerLoop(ctx, worker.SingleTickerConfig{
		Name:              "crawl-scheduler",
		Interval:          cfg.DrainInterval,
		OnTick:            func(tctx context.Context) { s.Drain(tctx) },
		RunOnStart:        true,
		SecondaryInterval: cfg.SeedInterval,
		OnSecondaryTick: func(tctx context.Context) {
			if cfg.Seed != nil {
				cfg.Seed(tctx, s)
			}
		},
		Logger: logger,
	})
}
