// Package daemon wires the Domain/Site Registry, Crawl Orchestrator, Store
// Coordinator and Scheduler together into the long-running crawlerd
// process: it implements scheduler.Runner by dispatching each Job to the
// crawl_domain/crawl_site/refresh/cleanup/sync handler named by its type,
// and seeds the Scheduler's recurring jobs from the active Registry.
package daemon

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
	"github.com/fcollova/tanea-crawler/internal/orchestrator"
	"github.com/fcollova/tanea-crawler/internal/registry"
)

// LinkStore is the subset of the relational store the Runner drives
// directly, beyond what it delegates to the Orchestrator.
type LinkStore interface {
	InsertLink(ctx context.Context, siteID, url, discoveredVia string, depth int) (string, error)
	LinksDueForRefresh(ctx context.Context, siteID string, cutoffSeconds int64) ([]*domain.DiscoveredLink, error)
	MarkObsolete(ctx context.Context, siteID string, keepIDs []string) (int64, error)
	PruneAttemptsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Discoverer finds candidate URLs under a Site, the same cascade the
// Orchestrator uses to seed new links.
type Discoverer interface {
	Discover(ctx context.Context, site domain.Site, keywords []string) ([]string, error)
}

// Syncer is the subset of the relational/vector stores the Sync job needs
// to reconcile dangling vector references and pending hints.
type Syncer interface {
	ArticlesWithVectorID(ctx context.Context) ([]*domain.ExtractedArticle, error)
	OrphanVectorIDs(ctx context.Context) ([]string, error)
	ResetToStoreWriteFailure(ctx context.Context, linkID string, maxFailures int) error
	PendingReconciliationHints(ctx context.Context, limit int) ([]domain.ReconciliationHint, error)
	DeleteReconciliationHint(ctx context.Context, id string) error
}

// VectorExistence is the narrow vector-store check the Sync job needs.
type VectorExistence interface {
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// HostOverrider applies a per-host politeness override to the Pacer shared
// by every fetch the process makes. New resolves one override per active
// Site from its effective Policy, so hosts with a PolicyOverride get it
// before the first crawl ever touches them.
type HostOverrider interface {
	SetHostOverride(host string, rps float64, maxConcurrent int)
}

const (
	defaultAttemptRetentionDays = 30
	pendingHintBatchSize        = 100
)

// Runner dispatches scheduled Jobs to the crawl/refresh/cleanup/sync
// handlers. It holds no state of its own beyond its collaborators, so it is
// safe to run concurrently with itself only in the sense the Scheduler
// already guarantees: one Job in flight at a time.
type Runner struct {
	reg        *registry.Registry
	orch       *orchestrator.Orchestrator
	links      LinkStore
	discoverer Discoverer
	sync       Syncer
	vector     VectorExistence
	logger     zerolog.Logger

	attemptRetention time.Duration
}

// New builds a Runner and, if overrider is non-nil, applies every active
// Site's effective Policy to it as a per-host override.
func New(reg *registry.Registry, orch *orchestrator.Orchestrator, links LinkStore, discoverer Discoverer, sync Syncer, vector VectorExistence, overrider HostOverrider, attemptRetention time.Duration, logger zerolog.Logger) *Runner {
	if attemptRetention <= 0 {
		attemptRetention = defaultAttemptRetentionDays * 24 * time.Hour
	}
	applyHostOverrides(reg, overrider, logger)
	return &Runner{reg: reg, orch: orch, links: links, discoverer: discoverer, sync: sync, vector: vector, attemptRetention: attemptRetention, logger: logger}
}

// applyHostOverrides resolves each active Site's effective Policy and
// installs it as a per-host override, so politeness parameters set at the
// Site level (beyond a Domain's defaults) take effect before the Site is
// ever crawled.
func applyHostOverrides(reg *registry.Registry, overrider HostOverrider, logger zerolog.Logger) {
	if overrider == nil {
		return
	}
	for _, dom := range reg.ActiveDomains() {
		for _, site := range reg.SitesForDomain(dom.ID) {
			policy := site.EffectivePolicy(dom.Policy)
			u, err := url.Parse(site.BaseURL)
			if err != nil || u.Host == "" {
				logger.Warn().Str("site", site.ID).Err(err).Msg("skipping host override: invalid base_url")
				continue
			}
			overrider.SetHostOverride(strings.ToLower(u.Host), policy.RequestsPerSecond, policy.MaxConcurrent)
		}
	}
}

// Run executes one Job by type. It satisfies scheduler.Runner.
func (r *Runner) Run(ctx context.Context, job domain.Job) error {
	switch job.Type {
	case domain.JobTypeCrawlDomain:
		return r.runCrawlDomain(ctx, job.TargetID)
	case domain.JobTypeCrawlSite:
		return r.runCrawlSite(ctx, job.TargetID)
	case domain.JobTypeRefresh:
		return r.runRefresh(ctx, job.TargetID)
	case domain.JobTypeCleanup:
		return r.runCleanup(ctx)
	case domain.JobTypeSync:
		return r.runSync(ctx)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// CrawlDomain runs the Orchestrator against every active Site under a
// Domain, continuing past a single site's failure.
func (r *Runner) CrawlDomain(ctx context.Context, domainID string) (total orchestrator.Result, err error) {
	dom, err := r.reg.Domain(domainID)
	if err != nil {
		return total, fmt.Errorf("lookup domain %q: %w", domainID, err)
	}
	sites := r.reg.SitesForDomain(domainID)
	for _, site := range sites {
		if !site.Active {
			continue
		}
		res := r.orch.RunSite(ctx, dom, site)
		total.SitesProcessed += res.SitesProcessed
		total.LinksDiscovered += res.LinksDiscovered
		total.LinksCrawled += res.LinksCrawled
		total.ArticlesExtracted += res.ArticlesExtracted
		total.Errors += res.Errors
	}
	return total, nil
}

func (r *Runner) runCrawlDomain(ctx context.Context, domainID string) error {
	_, err := r.CrawlDomain(ctx, domainID)
	return err
}

// CrawlSite runs the Orchestrator against a single Site.
func (r *Runner) CrawlSite(ctx context.Context, siteID string) (orchestrator.Result, error) {
	site, err := r.reg.Site(siteID)
	if err != nil {
		return orchestrator.Result{}, fmt.Errorf("lookup site %q: %w", siteID, err)
	}
	dom, err := r.reg.Domain(site.DomainID)
	if err != nil {
		return orchestrator.Result{}, fmt.Errorf("lookup domain %q for site %q: %w", site.DomainID, siteID, err)
	}
	return r.orch.RunSite(ctx, dom, site), nil
}

func (r *Runner) runCrawlSite(ctx context.Context, siteID string) error {
	_, err := r.CrawlSite(ctx, siteID)
	return err
}

// CrawlAll runs the Orchestrator against every active Site of every active
// Domain, used by the admin CLI's crawl-all command and not scheduled
// directly (each Domain instead gets its own recurring crawl_domain job).
func (r *Runner) CrawlAll(ctx context.Context) (orchestrator.Result, error) {
	var total orchestrator.Result
	for _, dom := range r.reg.ActiveDomains() {
		res, err := r.CrawlDomain(ctx, dom.ID)
		if err != nil {
			r.logger.Error().Err(err).Str("domain_id", dom.ID).Msg("crawl-all: domain failed")
			total.Errors++
			continue
		}
		total.SitesProcessed += res.SitesProcessed
		total.LinksDiscovered += res.LinksDiscovered
		total.LinksCrawled += res.LinksCrawled
		total.ArticlesExtracted += res.ArticlesExtracted
		total.Errors += res.Errors
	}
	return total, nil
}

// runRefresh re-queues CRAWLED links older than their Domain/Site's
// refresh_after back to NEW, then drives the same discover/drain loop a
// fresh crawl would, so they flow through extraction and commit again.
func (r *Runner) runRefresh(ctx context.Context, domainID string) error {
	dom, err := r.reg.Domain(domainID)
	if err != nil {
		return fmt.Errorf("lookup domain %q: %w", domainID, err)
	}
	for _, site := range r.reg.SitesForDomain(domainID) {
		if !site.Active {
			continue
		}
		policy := site.EffectivePolicy(dom.Policy)
		if policy.RefreshAfter <= 0 {
			continue
		}
		if _, err := r.links.LinksDueForRefresh(ctx, site.ID, int64(policy.RefreshAfter.Seconds())); err != nil {
			r.logger.Error().Err(err).Str("site_id", site.ID).Msg("refresh: select due links failed")
			continue
		}
		r.orch.RunSite(ctx, dom, site)
	}
	return nil
}

func (r *Runner) runCleanup(ctx context.Context) error {
	return r.Cleanup(ctx, r.attemptRetention)
}

// Cleanup prunes crawl_attempts rows older than retention, then re-runs
// discovery for every active Site to retire links the site no longer links
// to: anything currently CRAWLED/FAILED but absent from today's discovery
// cascade transitions to OBSOLETE.
func (r *Runner) Cleanup(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().Add(-retention)
	n, err := r.links.PruneAttemptsOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune crawl attempts: %w", err)
	}
	r.logger.Info().Int64("pruned", n).Time("cutoff", cutoff).Msg("cleanup: pruned crawl attempts")

	for _, dom := range r.reg.ActiveDomains() {
		for _, site := range r.reg.SitesForDomain(dom.ID) {
			if !site.Active {
				continue
			}
			if err := r.retireObsoleteLinks(ctx, site, dom.Keywords); err != nil {
				r.logger.Error().Err(err).Str("site_id", site.ID).Msg("cleanup: retire obsolete links failed")
			}
		}
	}
	return nil
}

func (r *Runner) retireObsoleteLinks(ctx context.Context, site domain.Site, keywords []string) error {
	discovered, err := r.discoverer.Discover(ctx, site, keywords)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	keepIDs := make([]string, 0, len(discovered))
	for _, url := range discovered {
		id, err := r.links.InsertLink(ctx, site.ID, url, "", 0)
		if err != nil {
			r.logger.Warn().Err(err).Str("url", url).Msg("cleanup: insert link failed")
			continue
		}
		keepIDs = append(keepIDs, id)
	}

	n, err := r.links.MarkObsolete(ctx, site.ID, keepIDs)
	if err != nil {
		return fmt.Errorf("mark obsolete: %w", err)
	}
	if n > 0 {
		r.logger.Info().Int64("count", n).Str("site_id", site.ID).Msg("cleanup: retired obsolete links")
	}
	return nil
}

// runSync reconciles the relational and vector stores: clears dangling
// vector references whose object no longer exists (resetting the owning
// link to FAILED "store-write"), deletes vector objects no article still
// points at, and drains pending ReconciliationHints.
func (r *Runner) runSync(ctx context.Context) error {
	articles, err := r.sync.ArticlesWithVectorID(ctx)
	if err != nil {
		return fmt.Errorf("list articles with vector id: %w", err)
	}
	for _, a := range articles {
		if a.VectorID == nil {
			continue
		}
		ok, err := r.vector.Exists(ctx, *a.VectorID)
		if err != nil {
			r.logger.Error().Err(err).Str("article_id", a.ID).Msg("sync: vector existence check failed")
			continue
		}
		if ok {
			continue
		}
		if err := r.sync.ResetToStoreWriteFailure(ctx, a.LinkID, defaultMaxFailuresFallback); err != nil {
			r.logger.Error().Err(err).Str("article_id", a.ID).Msg("sync: reset store-write failure failed")
			continue
		}
		if clearer, ok := r.sync.(interface {
			ClearVectorID(ctx context.Context, articleID string) error
		}); ok {
			if err := clearer.ClearVectorID(ctx, a.ID); err != nil {
				r.logger.Error().Err(err).Str("article_id", a.ID).Msg("sync: clear vector id failed")
			}
		}
	}

	orphans, err := r.sync.OrphanVectorIDs(ctx)
	if err != nil {
		return fmt.Errorf("list orphan vector ids: %w", err)
	}
	for _, id := range orphans {
		if err := r.vector.Delete(ctx, id); err != nil {
			r.logger.Error().Err(err).Str("vector_id", id).Msg("sync: delete orphan vector failed")
		}
	}

	hints, err := r.sync.PendingReconciliationHints(ctx, pendingHintBatchSize)
	if err != nil {
		return fmt.Errorf("list pending reconciliation hints: %w", err)
	}
	for _, h := range hints {
		ok, err := r.vector.Exists(ctx, h.VectorID)
		if err != nil {
			r.logger.Error().Err(err).Str("hint_id", h.ID).Msg("sync: hint vector existence check failed")
			continue
		}
		if !ok {
			if err := r.sync.ResetToStoreWriteFailure(ctx, h.LinkID, defaultMaxFailuresFallback); err != nil {
				r.logger.Error().Err(err).Str("hint_id", h.ID).Msg("sync: hint reset failed")
				continue
			}
		}
		if err := r.sync.DeleteReconciliationHint(ctx, h.ID); err != nil {
			r.logger.Error().Err(err).Str("hint_id", h.ID).Msg("sync: delete hint failed")
		}
	}
	return nil
}

// defaultMaxFailuresFallback bounds the error_count bump the Sync job
// applies when it cannot consult the owning Site's policy directly.
const defaultMaxFailuresFallback = 3
