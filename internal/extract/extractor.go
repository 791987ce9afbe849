// Package extract implements the Content Extractor: admission through the
// Host Pacer, HTTP fetch, main-text extraction via readability, metadata
// fallback chain, validation, quality scoring and keyword extraction.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	crawlerrors "github.com/fcollova/tanea-crawler/internal/core/errors"
	"github.com/fcollova/tanea-crawler/internal/core/links"
	"github.com/fcollova/tanea-crawler/internal/pacer"
	"github.com/fcollova/tanea-crawler/internal/platform/observability"
)

const (
	extractionTimeout  = 30 * time.Second
	maxContentLength   = 10 * 1024 * 1024
	maxExtractedLength = 50000
	maxExcerptLength   = 500

	minTitleLength = 10
	minBodyLength  = 200

	maxMatchedKeywords = 10

	headerUserAgent = "User-Agent"
	headerCT        = "Content-Type"

	ogTitle            = "og:title"
	ogDescription      = "og:description"
	ogLocale           = "og:locale"
	articlePublishedAt = "article:published_time"
)

var errUnsupportedContentType = errors.New("unsupported content type")

// Article is the Content Extractor's output, before it is assigned an ID
// and written to the stores by the Store Coordinator.
type Article struct {
	URL          string
	Title        string
	Content      string
	Description  string
	Author       string
	Language     string
	PublishedAt  *time.Time
	WordCount    int
	QualityScore float64
	Keywords     []string
}

// Extractor fetches and extracts one URL at a time, gated by a Pacer.
type Extractor struct {
	httpClient *http.Client
	pacer      *pacer.Pacer
	userAgent  string
	logger     zerolog.Logger
}

// New builds an Extractor that admits every fetch through p.
func New(userAgent string, p *pacer.Pacer, logger zerolog.Logger) *Extractor {
	return &Extractor{
		httpClient: &http.Client{
			Timeout: extractionTimeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		pacer:     p,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Extract runs the full pipeline for one URL: admission, fetch, main-text
// extraction, validation, scoring and keyword matching against keywords.
// It returns crawlerrors.ErrPoliteness, ErrTransport, ErrLowQuality or
// ErrOffTopic to let the caller pick the right link-state transition.
func (e *Extractor) Extract(ctx context.Context, rawURL string, keywords []string) (*Article, error) {
	started := time.Now()
	parsed, parseErr := url.Parse(rawURL)
	host := ""
	if parseErr == nil {
		host = parsed.Host
	}
	defer func() {
		observability.ExtractionDuration.WithLabelValues(host).Observe(time.Since(started).Seconds())
	}()

	grant, err := e.pacer.Acquire(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", crawlerrors.ErrPoliteness, err)
	}

	body, status, err := e.fetchPage(ctx, rawURL)
	grant.Release(err == nil, status, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", crawlerrors.ErrTransport, err)
	}

	if parseErr != nil {
		return nil, fmt.Errorf("%w: %w", crawlerrors.ErrTransport, parseErr)
	}

	article := e.buildArticle(parsed, body)

	if len(article.Title) < minTitleLength || len(article.Content) < minBodyLength {
		return nil, fmt.Errorf("%w: title=%d body=%d", crawlerrors.ErrLowQuality, len(article.Title), len(article.Content))
	}

	matched := matchKeywords(article.Title+" "+article.Content, keywords)
	if len(keywords) > 0 && len(matched) == 0 {
		return nil, crawlerrors.ErrOffTopic
	}
	article.Keywords = matched

	article.WordCount = len(strings.Fields(article.Content))
	article.QualityScore = scoreQuality(article, matched, keywords)
	observability.ExtractionQuality.Observe(article.QualityScore)

	return article, nil
}

func (e *Extractor) fetchPage(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(headerUserAgent, e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("http status %d", resp.StatusCode)
	}

	ct := resp.Header.Get(headerCT)
	if !isAcceptableContentType(ct) {
		return nil, resp.StatusCode, fmt.Errorf("%w: %s", errUnsupportedContentType, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentLength))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	return body, resp.StatusCode, nil
}

func isAcceptableContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// buildArticle extracts main text via readability, falling back to a raw
// tag-stripped rendering, and layers JSON-LD/OG metadata on top per the
// fallback chain JSON-LD -> OG -> readability.
func (e *Extractor) buildArticle(parsed *url.URL, body []byte) *Article {
	htmlContent := string(body)

	jsonLD := extractJSONLD(htmlContent)
	ogTitleVal := extractMetaContent(htmlContent, ogTitle)
	ogDescVal := extractMetaContent(htmlContent, ogDescription)
	ogLocaleVal := extractMetaContent(htmlContent, ogLocale)
	articlePubVal := extractMetaContent(htmlContent, articlePublishedAt)

	art, readErr := readability.FromReader(strings.NewReader(htmlContent), parsed)

	var textContent, readTitle, readExcerpt, readByline string
	var readPublished *time.Time

	if readErr == nil && art.Node != nil {
		var buf bytes.Buffer
		if err := art.RenderText(&buf); err == nil {
			textContent = buf.String()
		}
		readTitle = art.Title()
		readExcerpt = art.Excerpt()
		readByline = art.Byline()
		if t, err := art.PublishedTime(); err == nil {
			readPublished = &t
		}
	}

	if textContent == "" {
		textContent = extractRawText(htmlContent)
	}

	result := &Article{
		URL:         parsed.String(),
		Title:       coalesce(jsonLD.Headline, ogTitleVal, readTitle, extractHTMLTitle(htmlContent)),
		Content:     truncate(textContent, maxExtractedLength),
		Description: truncate(coalesce(jsonLD.Description, ogDescVal, readExcerpt), maxExcerptLength),
		Author:      coalesce(jsonLD.Author, readByline),
	}

	result.PublishedAt = resolvePublishedDate(jsonLD.DatePublished, articlePubVal, readPublished)
	result.Language = detectLanguage(jsonLD.Language, ogLocaleVal, result.Title, textContent)

	return result
}

// resolvePublishedDate tries each candidate with araddon/dateparse, which
// (unlike a strict RFC3339 parse) also accepts bare dates; a date with no
// time-of-day is interpreted at midday UTC, a conventional daytime hour.
func resolvePublishedDate(candidates ...string) *time.Time {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		t, err := dateparse.ParseAny(c)
		if err != nil {
			continue
		}
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && !strings.ContainsAny(c, "Tt:") {
			t = time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
		}
		t = t.UTC()
		return &t
	}
	return nil
}

func detectLanguage(jsonLDLang, ogLocaleVal, title, content string) string {
	const minLangCodeLen = 2
	if len(jsonLDLang) >= minLangCodeLen {
		return strings.ToLower(jsonLDLang[:minLangCodeLen])
	}
	if len(ogLocaleVal) >= minLangCodeLen {
		return strings.ToLower(ogLocaleVal[:minLangCodeLen])
	}
	const maxLangDetectionLen = 1000
	text := title + " " + content
	if len(text) > maxLangDetectionLen {
		text = text[:maxLangDetectionLen]
	}
	return links.DetectLanguage(text)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
