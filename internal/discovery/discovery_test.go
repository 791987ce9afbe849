package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
)

type fakeStrategy struct {
	name string
	urls []string
	err  error
}

func (f fakeStrategy) Name() string { return f.name }
func (f fakeStrategy) Discover(ctx context.Context, site domain.Site) ([]string, error) {
	return f.urls, f.err
}

func TestDiscoverer_CascadeFallsThroughOnEmptyOrError(t *testing.T) {
	d := New(zerolog.Nop(),
		fakeStrategy{name: "spider", err: errors.New("boom")},
		fakeStrategy{name: "sitemap", urls: nil},
		fakeStrategy{name: "category", urls: []string{"https://example.com/news/article-1", "https://example.com/news/article-2"}},
		fakeStrategy{name: "homepage", urls: []string{"https://example.com/news/never-reached"}},
	)

	urls, err := d.Discover(context.Background(), domain.Site{ID: "s1", BaseURL: "https://example.com"}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://example.com/news/article-1", "https://example.com/news/article-2"}, urls)
}

func TestDiscoverer_DeduplicatesWithinRun(t *testing.T) {
	d := New(zerolog.Nop(),
		fakeStrategy{name: "spider", urls: []string{"https://example.com/news/article-1", "https://example.com/news/article-1"}},
	)

	urls, err := d.Discover(context.Background(), domain.Site{ID: "s1", BaseURL: "https://example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/news/article-1"}, urls)

	urls2, err := d.Discover(context.Background(), domain.Site{ID: "s1", BaseURL: "https://example.com"}, nil)
	require.NoError(t, err)
	assert.Empty(t, urls2)
}

func TestDiscoverer_DropsLowRelevanceCandidates(t *testing.T) {
	d := New(zerolog.Nop(),
		fakeStrategy{name: "spider", urls: []string{"https://example.com/about", "https://example.com/news/article-1"}},
	)

	urls, err := d.Discover(context.Background(), domain.Site{ID: "s1", BaseURL: "https://example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/news/article-1"}, urls)
}

func TestDiscoverer_KeywordInPathLiftsShallowCandidateOverThreshold(t *testing.T) {
	d := New(zerolog.Nop(),
		fakeStrategy{name: "spider", urls: []string{"https://example.com/inter-derby"}},
	)

	urls, err := d.Discover(context.Background(), domain.Site{ID: "s1", BaseURL: "https://example.com"}, []string{"Inter"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/inter-derby"}, urls)
}

func TestIsValidCrawlURL(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/news/article-1":     true,
		"https://example.com/login":              false,
		"https://example.com/style.css":          false,
		"ftp://example.com/a":                    false,
		"https://example.com/share?utm_source=x": false,
	}
	for url, want := range cases {
		assert.Equal(t, want, isValidCrawlURL(url), url)
	}
}
