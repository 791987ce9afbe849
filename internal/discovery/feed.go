package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
)

const maxFeedEntries = 50

// FeedStrategy probes the common RSS/Atom feed paths under a Site's base
// URL and returns entry links from the first one found.
type FeedStrategy struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string
	logger     zerolog.Logger
}

// NewFeedStrategy builds a FeedStrategy.
func NewFeedStrategy(userAgent string, logger zerolog.Logger) *FeedStrategy {
	return &FeedStrategy{
		httpClient: &http.Client{Timeout: discoveryTimeout},
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		logger:     logger,
	}
}

func (f *FeedStrategy) Name() string { return "feed" }

func (f *FeedStrategy) Discover(ctx context.Context, site domain.Site) ([]string, error) {
	root := strings.TrimRight(site.BaseURL, "/")

	paths := []string{"/feed", "/feed.xml", "/rss", "/rss.xml", "/atom.xml", "/index.xml", "/feed/atom", "/feed/rss"}

	for _, path := range paths {
		urls, err := f.fetchFeed(ctx, root+path)
		if err == nil && len(urls) > 0 {
			return urls, nil
		}
	}

	return nil, fmt.Errorf("no feed found under %s", root)
}

func (f *FeedStrategy) fetchFeed(ctx context.Context, feedURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(headerUserAgent, f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errSitemapHTTPError, resp.StatusCode)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var urls []string
	for i, item := range feed.Items {
		if i >= maxFeedEntries {
			break
		}
		if item.Link != "" {
			urls = append(urls, item.Link)
		}
	}
	return urls, nil
}
