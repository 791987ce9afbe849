// Package orchestrator implements the Crawl Orchestrator: the worker loop
// that discovers links for a Site, claims them one at a time from the Link
// Store, extracts and scores each through the Content Extractor, and
// commits successes through the Store Coordinator.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
	crawlerrors "github.com/fcollova/tanea-crawler/internal/core/errors"
	"github.com/fcollova/tanea-crawler/internal/extract"
	"github.com/fcollova/tanea-crawler/internal/platform/observability"
)

// LinkStore is the subset of the relational store the orchestrator drives.
type LinkStore interface {
	InsertLink(ctx context.Context, siteID, url, discoveredVia string, depth int) (string, error)
	ClaimForCrawl(ctx context.Context, siteID string) (*domain.DiscoveredLink, error)
	MarkFailed(ctx context.Context, linkID, reason string, maxFailures int) error
	InsertCrawlAttempt(ctx context.Context, a domain.CrawlAttempt) error
	InsertCrawlStats(ctx context.Context, s domain.CrawlStats) error
	RecoverOrphans(ctx context.Context) (int64, error)
}

// Discoverer finds candidate URLs under a Site, relevance-filtered against
// the owning Domain's keywords.
type Discoverer interface {
	Discover(ctx context.Context, site domain.Site, keywords []string) ([]string, error)
}

// Extractor fetches and scores one URL.
type Extractor interface {
	Extract(ctx context.Context, url string, keywords []string) (*extract.Article, error)
}

// Committer writes a successful extraction through the dual-store sequence.
type Committer interface {
	Commit(ctx context.Context, link *domain.DiscoveredLink, site domain.Site, a *extract.Article, sourceName string) error
}

// Result is the job summary returned by RunSite, matching the stats
// contract the Scheduler and admin CLI report back to the caller.
type Result struct {
	SitesProcessed   int
	LinksDiscovered int
	LinksCrawled    int
	ArticlesExtracted int
	Errors          int
}

// Orchestrator drives the discover -> claim -> extract -> commit loop for
// one or more Sites under a Domain.
type Orchestrator struct {
	links      LinkStore
	discoverer Discoverer
	extractor  Extractor
	committer  Committer
	logger     zerolog.Logger
}

// New builds an Orchestrator.
func New(links LinkStore, discoverer Discoverer, extractor Extractor, committer Committer, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{links: links, discoverer: discoverer, extractor: extractor, committer: committer, logger: logger}
}

// RecoverOrphans resets links stuck in CRAWLING back to NEW; called once at
// process startup to undo the effect of a crash mid-crawl.
func (o *Orchestrator) RecoverOrphans(ctx context.Context) error {
	n, err := o.links.RecoverOrphans(ctx)
	if err != nil {
		return fmt.Errorf("recover orphans: %w", err)
	}
	if n > 0 {
		o.logger.Warn().Int64("count", n).Msg("recovered orphaned crawling links")
	}
	return nil
}

// RunSite discovers new links for site, then drains its NEW queue one link
// at a time until no NEW link remains or ctx is cancelled.
func (o *Orchestrator) RunSite(ctx context.Context, dom domain.Domain, site domain.Site) Result {
	started := time.Now()
	result := Result{SitesProcessed: 1}

	discovered, err := o.discoverer.Discover(ctx, site, dom.Keywords)
	if err != nil {
		o.logger.Warn().Err(err).Str("site_id", site.ID).Msg("discovery failed")
	}

	for _, link := range discovered {
		if _, err := o.links.InsertLink(ctx, site.ID, link, "", 0); err != nil {
			o.logger.Warn().Err(err).Str("url", link).Msg("insert discovered link failed")
			continue
		}
		result.LinksDiscovered++
	}
	observability.LinksDiscovered.WithLabelValues(site.ID, "all").Add(float64(result.LinksDiscovered))

	policy := site.EffectivePolicy(dom.Policy)

	for {
		select {
		case <-ctx.Done():
			o.finish(ctx, dom, site, started, result)
			return result
		default:
		}

		link, err := o.links.ClaimForCrawl(ctx, site.ID)
		if errors.Is(err, crawlerrors.ErrNotFound) {
			break
		}
		if err != nil {
			o.logger.Error().Err(err).Str("site_id", site.ID).Msg("claim for crawl failed")
			break
		}

		if o.processLink(ctx, dom, site, link, policy.MaxFailures) {
			result.ArticlesExtracted++
		} else {
			result.Errors++
		}
		result.LinksCrawled++
	}

	o.finish(ctx, dom, site, started, result)
	return result
}

// processLink extracts and commits one claimed link, recovering from any
// panic so a single malformed page cannot take down the worker loop.
func (o *Orchestrator) processLink(ctx context.Context, dom domain.Domain, site domain.Site, link *domain.DiscoveredLink, maxFailures int) (success bool) {
	startedAt := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Interface("panic", r).Str("url", link.URL).Msg("recovered from panic during link processing")
			_ = o.links.MarkFailed(ctx, link.ID, "internal error", maxFailures)
			success = false
		}
	}()

	article, err := o.extractor.Extract(ctx, link.URL, dom.Keywords)
	finishedAt := time.Now()

	httpStatus := 0
	attemptErr := ""
	if err != nil {
		attemptErr = err.Error()
	}
	_ = o.links.InsertCrawlAttempt(ctx, domain.CrawlAttempt{
		LinkID: link.ID, StartedAt: startedAt, FinishedAt: finishedAt,
		Success: err == nil, Error: attemptErr, HTTPStatus: httpStatus,
	})

	if err != nil {
		reason := failureReason(err)
		if markErr := o.links.MarkFailed(ctx, link.ID, reason, maxFailures); markErr != nil {
			o.logger.Error().Err(markErr).Str("link_id", link.ID).Msg("mark failed error")
		}
		observability.LinksCrawled.WithLabelValues(site.ID, reason).Inc()
		return false
	}

	if err := o.committer.Commit(ctx, link, site, article, site.Name); err != nil {
		reason := failureReason(err)
		if markErr := o.links.MarkFailed(ctx, link.ID, reason, maxFailures); markErr != nil {
			o.logger.Error().Err(markErr).Str("link_id", link.ID).Msg("mark failed error")
		}
		observability.LinksCrawled.WithLabelValues(site.ID, reason).Inc()
		return false
	}

	observability.LinksCrawled.WithLabelValues(site.ID, "crawled").Inc()
	return true
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, crawlerrors.ErrLowQuality):
		return "low-quality"
	case errors.Is(err, crawlerrors.ErrOffTopic):
		return "off-topic"
	case errors.Is(err, crawlerrors.ErrPoliteness):
		return "politeness"
	case errors.Is(err, crawlerrors.ErrDuplicateContent):
		return "duplicate-content"
	case errors.Is(err, crawlerrors.ErrStoreFatal):
		return "inconsistent"
	default:
		return "transport"
	}
}

func (o *Orchestrator) finish(ctx context.Context, dom domain.Domain, site domain.Site, started time.Time, result Result) {
	stats := domain.CrawlStats{
		SiteID:            site.ID,
		DomainID:          dom.ID,
		LinksDiscovered:   result.LinksDiscovered,
		LinksCrawled:      result.LinksCrawled,
		ArticlesExtracted: result.ArticlesExtracted,
		Errors:            result.Errors,
		StartedAt:         started,
		FinishedAt:        time.Now(),
	}
	if err := o.links.InsertCrawlStats(ctx, stats); err != nil {
		o.logger.Error().Err(err).Str("site_id", site.ID).Msg("insert crawl stats failed")
	}
}
