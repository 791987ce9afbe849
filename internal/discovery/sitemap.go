package discovery

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
)

const (
	discoveryTimeout = 15 * time.Second
	maxSitemapURLs   = 200
	maxBodySize      = 10 * 1024 * 1024
	headerUserAgent  = "User-Agent"
)

var errSitemapHTTPError = errors.New("sitemap HTTP error")

// sitemapURLSet is a sitemap XML <urlset>.
type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

// sitemapIndex is a sitemap index XML, pointing at child sitemaps.
type sitemapIndex struct {
	XMLName  xml.Name            `xml:"sitemapindex"`
	Sitemaps []sitemapIndexEntry `xml:"sitemap"`
}

type sitemapIndexEntry struct {
	Loc string `xml:"loc"`
}

// SitemapStrategy enumerates a Site's sitemap(s), recursing one level into
// a sitemap index, and returns the article URLs it contains.
type SitemapStrategy struct {
	httpClient *http.Client
	userAgent  string
	logger     zerolog.Logger
}

// NewSitemapStrategy builds a SitemapStrategy.
func NewSitemapStrategy(userAgent string, logger zerolog.Logger) *SitemapStrategy {
	return &SitemapStrategy{
		httpClient: &http.Client{Timeout: discoveryTimeout},
		userAgent:  userAgent,
		logger:     logger,
	}
}

func (s *SitemapStrategy) Name() string { return "sitemap" }

func (s *SitemapStrategy) Discover(ctx context.Context, site domain.Site) ([]string, error) {
	base, err := url.Parse(site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	root := fmt.Sprintf("%s://%s", base.Scheme, base.Host)

	for _, path := range []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemap-index.xml", "/news-sitemap.xml"} {
		urls, err := s.fetchSitemap(ctx, root+path, 0)
		if err == nil && len(urls) > 0 {
			return urls, nil
		}
	}

	return nil, errors.New("no usable sitemap found")
}

func (s *SitemapStrategy) fetchSitemap(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	if depth > 1 {
		return nil, nil
	}

	body, err := s.fetchBody(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		var all []string
		for _, sm := range index.Sitemaps {
			if len(all) >= maxSitemapURLs {
				break
			}
			urls, err := s.fetchSitemap(ctx, sm.Loc, depth+1)
			if err != nil {
				s.logger.Debug().Err(err).Str("sitemap", sm.Loc).Msg("failed to fetch child sitemap")
				continue
			}
			all = append(all, urls...)
		}
		return capURLs(all), nil
	}

	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parse sitemap xml: %w", err)
	}

	var urls []string
	for _, u := range set.URLs {
		if u.Loc != "" {
			urls = append(urls, u.Loc)
		}
	}
	return capURLs(urls), nil
}

func (s *SitemapStrategy) fetchBody(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(headerUserAgent, s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errSitemapHTTPError, resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

func capURLs(urls []string) []string {
	if len(urls) > maxSitemapURLs {
		return urls[:maxSitemapURLs]
	}
	return urls
}
