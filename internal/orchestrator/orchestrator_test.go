package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
	crawlerrors "github.com/fcollova/tanea-crawler/internal/core/errors"
	"github.com/fcollova/tanea-crawler/internal/extract"
)

type fakeLinks struct {
	queue      []*domain.DiscoveredLink
	inserted   []string
	failed     map[string]string
	statsCalls int
}

func (f *fakeLinks) InsertLink(_ context.Context, _, url, _ string, _ int) (string, error) {
	f.inserted = append(f.inserted, url)
	return "link-" + url, nil
}
func (f *fakeLinks) ClaimForCrawl(_ context.Context, _ string) (*domain.DiscoveredLink, error) {
	if len(f.queue) == 0 {
		return nil, crawlerrors.ErrNotFound
	}
	l := f.queue[0]
	f.queue = f.queue[1:]
	return l, nil
}
func (f *fakeLinks) MarkFailed(_ context.Context, linkID, reason string, _ int) error {
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[linkID] = reason
	return nil
}
func (f *fakeLinks) InsertCrawlAttempt(_ context.Context, _ domain.CrawlAttempt) error { return nil }
func (f *fakeLinks) InsertCrawlStats(_ context.Context, _ domain.CrawlStats) error {
	f.statsCalls++
	return nil
}
func (f *fakeLinks) RecoverOrphans(_ context.Context) (int64, error) { return 0, nil }

type fakeDiscoverer struct {
	urls []string
	err  error
}

func (f fakeDiscoverer) Discover(_ context.Context, _ domain.Site, _ []string) ([]string, error) {
	return f.urls, f.err
}

type fakeExtractor struct {
	results map[string]*extract.Article
	errs    map[string]error
}

func (f fakeExtractor) Extract(_ context.Context, url string, _ []string) (*extract.Article, error) {
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	return f.results[url], nil
}

type fakeCommitter struct {
	committed []string
	err       error
}

func (f *fakeCommitter) Commit(_ context.Context, link *domain.DiscoveredLink, _ domain.Site, _ *extract.Article, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.committed = append(f.committed, link.ID)
	return nil
}

func TestRunSite_ProcessesEveryClaimedLink(t *testing.T) {
	links := &fakeLinks{queue: []*domain.DiscoveredLink{
		{ID: "l1", URL: "https://example.com/a"},
		{ID: "l2", URL: "https://example.com/b"},
	}}
	extractor := fakeExtractor{results: map[string]*extract.Article{
		"https://example.com/a": {URL: "https://example.com/a", Title: "A"},
		"https://example.com/b": {URL: "https://example.com/b", Title: "B"},
	}}
	committer := &fakeCommitter{}

	o := New(links, fakeDiscoverer{}, extractor, committer, zerolog.Nop())
	result := o.RunSite(t.Context(), domain.Domain{ID: "football", Policy: domain.Policy{MaxFailures: 3}}, domain.Site{ID: "s1", DomainID: "football"})

	assert.Equal(t, 2, result.LinksCrawled)
	assert.Equal(t, 2, result.ArticlesExtracted)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, 1, links.statsCalls)
	assert.ElementsMatch(t, []string{"l1", "l2"}, committer.committed)
}

func TestRunSite_ExtractionFailureMarksLinkFailed(t *testing.T) {
	links := &fakeLinks{queue: []*domain.DiscoveredLink{{ID: "l1", URL: "https://example.com/a"}}}
	extractor := fakeExtractor{errs: map[string]error{"https://example.com/a": crawlerrors.ErrLowQuality}}
	committer := &fakeCommitter{}

	o := New(links, fakeDiscoverer{}, extractor, committer, zerolog.Nop())
	result := o.RunSite(t.Context(), domain.Domain{ID: "football"}, domain.Site{ID: "s1", DomainID: "football"})

	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, "low-quality", links.failed["l1"])
}

func TestRunSite_DiscoveryErrorDoesNotBlockCrawling(t *testing.T) {
	links := &fakeLinks{queue: []*domain.DiscoveredLink{{ID: "l1", URL: "https://example.com/a"}}}
	extractor := fakeExtractor{results: map[string]*extract.Article{"https://example.com/a": {URL: "https://example.com/a"}}}
	committer := &fakeCommitter{}

	o := New(links, fakeDiscoverer{err: errors.New("boom")}, extractor, committer, zerolog.Nop())
	result := o.RunSite(t.Context(), domain.Domain{}, domain.Site{ID: "s1"})

	require.Equal(t, 1, result.LinksCrawled)
}
