package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
	crawlerrors "github.com/fcollova/tanea-crawler/internal/core/errors"
	"github.com/fcollova/tanea-crawler/internal/extract"
	"github.com/fcollova/tanea-crawler/internal/orchestrator"
	"github.com/fcollova/tanea-crawler/internal/registry"
)

const domainsYAML = `
domains:
  football:
    name: Football
    active: true
    keywords: [Inter]
    policy: { requests_per_second: 1, max_concurrent: 2, max_pages_per_site: 10, max_depth: 1, refresh_after_hours: 1, max_failures: 3 }
  tech:
    name: Tech
    active: false
    keywords: [AI]
`

const sitesYAML = `
sites:
  gazzetta:
    name: Gazzetta
    base_url: https://example.test
    domain: football
    active: true
    priority: 1
  corriere:
    name: Corriere
    base_url: https://inactive.example.test
    domain: football
    active: false
    priority: 2
domain_mapping:
  football: [gazzetta, corriere]
`

func buildRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	domainsPath := filepath.Join(dir, "domains.yaml")
	sitesPath := filepath.Join(dir, "sites.yaml")
	require.NoError(t, os.WriteFile(domainsPath, []byte(domainsYAML), 0o644))
	require.NoError(t, os.WriteFile(sitesPath, []byte(sitesYAML), 0o644))

	r, err := registry.Load(domainsPath, sitesPath, "dev")
	require.NoError(t, err)
	return r
}

type fakeOrchLinks struct {
	queue    []*domain.DiscoveredLink
	inserted []string
}

func (f *fakeOrchLinks) InsertLink(_ context.Context, _, url, _ string, _ int) (string, error) {
	f.inserted = append(f.inserted, url)
	return "link-" + url, nil
}
func (f *fakeOrchLinks) ClaimForCrawl(_ context.Context, _ string) (*domain.DiscoveredLink, error) {
	if len(f.queue) == 0 {
		return nil, crawlerrors.ErrNotFound
	}
	l := f.queue[0]
	f.queue = f.queue[1:]
	return l, nil
}
func (f *fakeOrchLinks) MarkFailed(_ context.Context, _, _ string, _ int) error { return nil }
func (f *fakeOrchLinks) InsertCrawlAttempt(_ context.Context, _ domain.CrawlAttempt) error {
	return nil
}
func (f *fakeOrchLinks) InsertCrawlStats(_ context.Context, _ domain.CrawlStats) error { return nil }
func (f *fakeOrchLinks) RecoverOrphans(_ context.Context) (int64, error)               { return 0, nil }

type fakeDiscoverer struct {
	urls []string
}

func (f fakeDiscoverer) Discover(_ context.Context, _ domain.Site, _ []string) ([]string, error) {
	return f.urls, nil
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(_ context.Context, url string, _ []string) (*extract.Article, error) {
	return &extract.Article{URL: url, Title: "t"}, nil
}

type fakeCommitter struct{}

func (fakeCommitter) Commit(_ context.Context, _ *domain.DiscoveredLink, _ domain.Site, _ *extract.Article, _ string) error {
	return nil
}

type fakeDaemonLinks struct {
	*fakeOrchLinks
	dueForRefresh map[string][]*domain.DiscoveredLink
	obsoleteSites []string
	obsoleteKeep  [][]string
	pruned        bool
}

func (f *fakeDaemonLinks) LinksDueForRefresh(_ context.Context, siteID string, _ int64) ([]*domain.DiscoveredLink, error) {
	return f.dueForRefresh[siteID], nil
}
func (f *fakeDaemonLinks) MarkObsolete(_ context.Context, siteID string, keepIDs []string) (int64, error) {
	f.obsoleteSites = append(f.obsoleteSites, siteID)
	f.obsoleteKeep = append(f.obsoleteKeep, keepIDs)
	return int64(len(keepIDs)), nil
}
func (f *fakeDaemonLinks) PruneAttemptsOlderThan(_ context.Context, _ time.Time) (int64, error) {
	f.pruned = true
	return 3, nil
}

type fakeSyncer struct {
	articles       []*domain.ExtractedArticle
	orphans        []string
	resetLinkIDs   []string
	hints          []domain.ReconciliationHint
	deletedHintIDs []string
}

func (f *fakeSyncer) ArticlesWithVectorID(_ context.Context) ([]*domain.ExtractedArticle, error) {
	return f.articles, nil
}
func (f *fakeSyncer) OrphanVectorIDs(_ context.Context) ([]string, error) { return f.orphans, nil }
func (f *fakeSyncer) ResetToStoreWriteFailure(_ context.Context, linkID string, _ int) error {
	f.resetLinkIDs = append(f.resetLinkIDs, linkID)
	return nil
}
func (f *fakeSyncer) PendingReconciliationHints(_ context.Context, _ int) ([]domain.ReconciliationHint, error) {
	return f.hints, nil
}
func (f *fakeSyncer) DeleteReconciliationHint(_ context.Context, id string) error {
	f.deletedHintIDs = append(f.deletedHintIDs, id)
	return nil
}

type fakeVectorExistence struct {
	existing map[string]bool
	deleted  []string
}

func (f *fakeVectorExistence) Exists(_ context.Context, id string) (bool, error) {
	return f.existing[id], nil
}
func (f *fakeVectorExistence) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type hostOverrideCall struct {
	host          string
	rps           float64
	maxConcurrent int
}

type fakeHostOverrider struct {
	calls []hostOverrideCall
}

func (f *fakeHostOverrider) SetHostOverride(host string, rps float64, maxConcurrent int) {
	f.calls = append(f.calls, hostOverrideCall{host: host, rps: rps, maxConcurrent: maxConcurrent})
}

func newTestRunner(t *testing.T, links *fakeDaemonLinks, disc fakeDiscoverer, sync *fakeSyncer, vec *fakeVectorExistence) *Runner {
	t.Helper()
	reg := buildRegistry(t)
	orch := orchestrator.New(links.fakeOrchLinks, disc, fakeExtractor{}, fakeCommitter{}, zerolog.Nop())
	return New(reg, orch, links, disc, sync, vec, nil, 0, zerolog.Nop())
}

func TestCrawlDomain_SkipsInactiveSites(t *testing.T) {
	links := &fakeDaemonLinks{fakeOrchLinks: &fakeOrchLinks{
		queue: []*domain.DiscoveredLink{{ID: "l1", URL: "https://example.test/a"}},
	}}
	r := newTestRunner(t, links, fakeDiscoverer{}, &fakeSyncer{}, &fakeVectorExistence{})

	result, err := r.CrawlDomain(t.Context(), "football")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SitesProcessed)
	assert.Equal(t, 1, result.ArticlesExtracted)
}

func TestCrawlSite_UnknownSiteErrors(t *testing.T) {
	links := &fakeDaemonLinks{fakeOrchLinks: &fakeOrchLinks{}}
	r := newTestRunner(t, links, fakeDiscoverer{}, &fakeSyncer{}, &fakeVectorExistence{})

	_, err := r.CrawlSite(t.Context(), "nope")
	require.Error(t, err)
}

func TestCrawlAll_AggregatesAcrossActiveDomains(t *testing.T) {
	links := &fakeDaemonLinks{fakeOrchLinks: &fakeOrchLinks{
		queue: []*domain.DiscoveredLink{{ID: "l1", URL: "https://example.test/a"}},
	}}
	r := newTestRunner(t, links, fakeDiscoverer{}, &fakeSyncer{}, &fakeVectorExistence{})

	result, err := r.CrawlAll(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, result.SitesProcessed)
}

func TestCleanup_RetiresObsoleteLinksAndPrunesAttempts(t *testing.T) {
	links := &fakeDaemonLinks{fakeOrchLinks: &fakeOrchLinks{}}
	disc := fakeDiscoverer{urls: []string{"https://example.test/keep"}}
	r := newTestRunner(t, links, disc, &fakeSyncer{}, &fakeVectorExistence{})

	err := r.Cleanup(t.Context(), 0)
	require.NoError(t, err)
	assert.True(t, links.pruned)
	assert.Equal(t, []string{"gazzetta"}, links.obsoleteSites)
	assert.Equal(t, []string{"link-https://example.test/keep"}, links.obsoleteKeep[0])
}

func TestSync_ResetsArticlesWithMissingVectorAndDeletesOrphans(t *testing.T) {
	links := &fakeDaemonLinks{fakeOrchLinks: &fakeOrchLinks{}}
	vid := "vec-1"
	sync := &fakeSyncer{
		articles: []*domain.ExtractedArticle{{ID: "a1", LinkID: "l1", VectorID: &vid}},
		orphans:  []string{"vec-orphan"},
		hints:    []domain.ReconciliationHint{{ID: "h1", LinkID: "l2", VectorID: "vec-2"}},
	}
	vec := &fakeVectorExistence{existing: map[string]bool{"vec-2": true}}
	r := newTestRunner(t, links, fakeDiscoverer{}, sync, vec)

	err := r.Run(t.Context(), domain.Job{Type: domain.JobTypeSync})
	require.NoError(t, err)

	assert.Equal(t, []string{"l1"}, sync.resetLinkIDs)
	assert.Equal(t, []string{"vec-orphan"}, vec.deleted)
	assert.Equal(t, []string{"h1"}, sync.deletedHintIDs)
}

func TestRun_UnknownJobTypeErrors(t *testing.T) {
	links := &fakeDaemonLinks{fakeOrchLinks: &fakeOrchLinks{}}
	r := newTestRunner(t, links, fakeDiscoverer{}, &fakeSyncer{}, &fakeVectorExistence{})

	err := r.Run(t.Context(), domain.Job{Type: "bogus"})
	require.Error(t, err)
}

func TestNew_AppliesHostOverrideForEveryActiveSite(t *testing.T) {
	reg := buildRegistry(t)
	links := &fakeDaemonLinks{fakeOrchLinks: &fakeOrchLinks{}}
	orch := orchestrator.New(links.fakeOrchLinks, fakeDiscoverer{}, fakeExtractor{}, fakeCommitter{}, zerolog.Nop())
	overrider := &fakeHostOverrider{}

	New(reg, orch, links, fakeDiscoverer{}, &fakeSyncer{}, &fakeVectorExistence{}, overrider, 0, zerolog.Nop())

	require.Len(t, overrider.calls, 1)
	assert.Equal(t, "example.test", overrider.calls[0].host)
	assert.Equal(t, 1.0, overrider.calls[0].rps)
	assert.Equal(t, 2, overrider.calls[0].maxConcurrent)
}
