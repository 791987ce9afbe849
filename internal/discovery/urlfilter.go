package discovery

import (
	"net/url"
	"strings"
	"unicode"
)

// minRelevanceScore is the threshold a candidate's relevanceScore must meet
// or exceed to survive the Discoverer's filter.
const minRelevanceScore = 2

// articleSegments are path segments conventionally used for individual
// article pages, as opposed to index/listing pages.
var articleSegments = []string{"article", "articles", "story", "stories", "post", "posts", "news"}

// deepPathSegments is the segment count at or above which a path is
// considered "deep" for relevance-scoring purposes.
const deepPathSegments = 5

// isValidCrawlURL reports whether a discovered URL is worth queuing at all:
// it must be absolute HTTP(S), and not match a known non-article pattern
// (social share links, auth pages, API endpoints, trackers, static assets).
func isValidCrawlURL(rawURL string) bool {
	if len(rawURL) < 8 {
		return false
	}

	if rawURL[:7] != "http://" && rawURL[:8] != "https://" {
		return false
	}

	if matchesSkipPattern(rawURL) {
		return false
	}

	if hasSkipSuffix(rawURL) {
		return false
	}

	return true
}

func matchesSkipPattern(rawURL string) bool {
	skipPatterns := []string{
		// Social share URLs
		"twitter.com/share", "twitter.com/intent/", "x.com/share", "x.com/intent/",
		"facebook.com/sharer", "facebook.com/share.php",
		"pinterest.com/pin/create", "reddit.com/submit",
		"linkedin.com/shareArticle", "linkedin.com/cws/share",
		"telegram.me/share", "t.me/share", "bsky.app/intent/",
		"api.whatsapp.com/send", "wa.me/", "mailto:",
		"vk.com/share.php", "tumblr.com/share", "getpocket.com/save", "share.flipboard.com",
		// Auth/login pages
		"/login", "/signin", "/signup", "/register", "/auth/", "/oauth/", "/cas/login",
		// API endpoints
		"/wp-json/", "/graphql", "/.well-known/",
		// Tracking and ads
		"/track/", "/pixel/", "/beacon/",
		"doubleclick.net", "googlesyndication.com", "googleadservices.com",
		// Print/email versions
		"/print/", "?print=", "&print=", "/email/", "?email=",
		// Non-content URL patterns
		"/ajax/", "/api/", "/_next/static/", "/static/css/", "/static/js/",
		"/wp-content/uploads/", "/wp-includes/",
		"xmlrpc.php",
		"%7B%7B", "{{", "#",
		"?replytocom=", "?share=", "?action=", "?utm_", "&utm_",
		// Listing/index pages, not individual articles
		"/tag/", "/category/", "/categories/", "/author/", "/paginator",
	}

	for _, pattern := range skipPatterns {
		if strings.Contains(rawURL, pattern) {
			return true
		}
	}

	return false
}

func hasSkipSuffix(rawURL string) bool {
	skipSuffixes := []string{
		".pdf", ".zip", ".exe", ".dmg", ".mp3", ".mp4", ".avi", ".mov", ".webm", ".flv",
		".rar", ".tar", ".gz", ".7z", ".iso", ".bin", ".apk", ".deb", ".rpm",
		".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".bmp", ".tiff",
		".css", ".js", ".woff", ".woff2", ".ttf", ".eot", ".map", ".webmanifest",
		".json", ".xml", ".rss", ".atom", ".csv", ".tsv", ".xls", ".xlsx",
		".doc", ".docx", ".ppt", ".pptx", ".odt", ".ods", ".odp",
	}

	path := rawURL
	if idx := strings.Index(rawURL, "?"); idx != -1 {
		path = rawURL[:idx]
	}
	if idx := strings.Index(path, "#"); idx != -1 {
		path = path[:idx]
	}

	for _, suffix := range skipSuffixes {
		if len(path) > len(suffix) && path[len(path)-len(suffix):] == suffix {
			return true
		}
	}

	return false
}

// relevanceScore scores rawURL's path against the positive signals a real
// article page tends to carry: an article-like segment, a Domain keyword,
// a deep path, and digits (dates, ids). Candidates below minRelevanceScore
// are dropped even when they pass the negative-pattern filter.
func relevanceScore(rawURL string, keywords []string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	path := strings.ToLower(u.Path)

	var score int

	for _, seg := range articleSegments {
		if strings.Contains(path, seg) {
			score += 3
			break
		}
	}

	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(path, kw) {
			score += 2
		}
	}

	segments := 0
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments++
		}
	}
	if segments >= deepPathSegments {
		score++
	}

	if strings.ContainsFunc(path, unicode.IsDigit) {
		score++
	}

	return score
}
