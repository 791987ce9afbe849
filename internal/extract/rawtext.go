package extract

import (
	"regexp"
	"strings"
)

var (
	scriptStyleBlock = regexp.MustCompile(`(?is)<(script|style|noscript|nav|footer|header)[^>]*>.*?</(script|style|noscript|nav|footer|header)>`)
	htmlTag          = regexp.MustCompile(`(?s)<[^>]+>`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// extractRawText is the fallback for pages readability could not parse: it
// strips script/style/nav/footer blocks and remaining tags, leaving plain
// text. It produces lower-quality output than readability but never fails.
func extractRawText(html string) string {
	stripped := scriptStyleBlock.ReplaceAllString(html, " ")
	stripped = htmlTag.ReplaceAllString(stripped, " ")
	return normalizeWhitespace(stripped)
}

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
