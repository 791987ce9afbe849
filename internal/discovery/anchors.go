package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
)

// anchorsFrom fetches target and returns absolute same-host anchor hrefs,
// resolved against target's base URL.
func anchorsFrom(ctx context.Context, client *http.Client, userAgent, target string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(headerUserAgent, userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errSitemapHTTPError, resp.StatusCode)
	}

	base, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if !strings.EqualFold(resolved.Host, base.Host) {
			return
		}
		resolved.Fragment = ""
		links = append(links, resolved.String())
	})

	return links, nil
}

// CategoryPageStrategy fetches each of a Site's DiscoveryHints (category
// index pages) and returns same-host article candidate links found on them.
type CategoryPageStrategy struct {
	httpClient *http.Client
	userAgent  string
	logger     zerolog.Logger
}

// NewCategoryPageStrategy builds a CategoryPageStrategy.
func NewCategoryPageStrategy(userAgent string, logger zerolog.Logger) *CategoryPageStrategy {
	return &CategoryPageStrategy{
		httpClient: &http.Client{Timeout: discoveryTimeout},
		userAgent:  userAgent,
		logger:     logger,
	}
}

func (c *CategoryPageStrategy) Name() string { return "category_page" }

func (c *CategoryPageStrategy) Discover(ctx context.Context, site domain.Site) ([]string, error) {
	if len(site.DiscoveryHints) == 0 {
		return nil, fmt.Errorf("site %s has no category hints configured", site.ID)
	}

	root := strings.TrimRight(site.BaseURL, "/")
	var all []string
	for _, hint := range site.DiscoveryHints {
		target := root + "/" + strings.TrimLeft(hint, "/")
		links, err := anchorsFrom(ctx, c.httpClient, c.userAgent, target)
		if err != nil {
			c.logger.Debug().Err(err).Str("page", target).Msg("category page fetch failed")
			continue
		}
		all = append(all, links...)
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("no links found on category pages for site %s", site.ID)
	}
	return all, nil
}

// HomepageFallbackStrategy is the discoverer of last resort: it fetches the
// Site's base URL and returns whatever same-host links it finds.
type HomepageFallbackStrategy struct {
	httpClient *http.Client
	userAgent  string
	logger     zerolog.Logger
}

// NewHomepageFallbackStrategy builds a HomepageFallbackStrategy.
func NewHomepageFallbackStrategy(userAgent string, logger zerolog.Logger) *HomepageFallbackStrategy {
	return &HomepageFallbackStrategy{
		httpClient: &http.Client{Timeout: discoveryTimeout},
		userAgent:  userAgent,
		logger:     logger,
	}
}

func (h *HomepageFallbackStrategy) Name() string { return "homepage_fallback" }

func (h *HomepageFallbackStrategy) Discover(ctx context.Context, site domain.Site) ([]string, error) {
	return anchorsFrom(ctx, h.httpClient, h.userAgent, site.BaseURL)
}
