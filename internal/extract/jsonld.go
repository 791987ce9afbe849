package extract

import "strings"

// articleJSONLD holds the subset of schema.org/NewsArticle JSON-LD fields
// the extractor cares about. It is populated by scanning the raw HTML for
// <script type="application/ld+json"> blocks rather than a full JSON
// decode, since JSON-LD blocks in the wild are frequently malformed enough
// that a strict parse fails where a field-scan still succeeds.
type articleJSONLD struct {
	Headline      string
	Description   string
	Author        string
	DatePublished string
	Language      string
}

func extractJSONLD(html string) articleJSONLD {
	var result articleJSONLD

	start := 0
	for {
		blockStart := strings.Index(html[start:], `<script type="application/ld+json"`)
		if blockStart < 0 {
			break
		}
		blockStart += start
		tagEnd := strings.Index(html[blockStart:], ">")
		if tagEnd < 0 {
			break
		}
		tagEnd += blockStart + 1
		blockEnd := strings.Index(html[tagEnd:], "</script>")
		if blockEnd < 0 {
			break
		}
		blockEnd += tagEnd

		block := html[tagEnd:blockEnd]
		if result.Headline == "" {
			result.Headline = extractJSONField(block, `"headline"`)
		}
		if result.Description == "" {
			result.Description = extractJSONField(block, `"description"`)
		}
		if result.Author == "" {
			result.Author = extractJSONAuthorName(block)
		}
		if result.DatePublished == "" {
			result.DatePublished = extractJSONField(block, `"datePublished"`)
		}
		if result.Language == "" {
			result.Language = extractJSONField(block, `"inLanguage"`)
		}

		start = blockEnd + len("</script>")
	}

	return result
}

// extractJSONField returns the string value that follows key in a JSON
// text, without a full decode: it finds key, skips to the first quoted
// value after its colon, and reads until the closing unescaped quote.
func extractJSONField(block, key string) string {
	idx := strings.Index(block, key)
	if idx < 0 {
		return ""
	}
	rest := block[idx+len(key):]

	colon := strings.Index(rest, ":")
	if colon < 0 {
		return ""
	}
	rest = strings.TrimSpace(rest[colon+1:])
	if len(rest) == 0 || rest[0] != '"' {
		return ""
	}
	rest = rest[1:]

	end := findJSONStringEnd(rest)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// extractJSONAuthorName handles the common "author": {"name": "..."} shape
// as well as the simpler "author": "..." string shape.
func extractJSONAuthorName(block string) string {
	if name := extractJSONField(block, `"author"`); name != "" && !strings.HasPrefix(strings.TrimSpace(name), "{") {
		return name
	}
	idx := strings.Index(block, `"author"`)
	if idx < 0 {
		return ""
	}
	rest := block[idx:]
	nameIdx := strings.Index(rest, `"name"`)
	if nameIdx < 0 {
		return ""
	}
	return extractJSONField(rest[nameIdx:], `"name"`)
}

func findJSONStringEnd(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == '"' {
			return i
		}
	}
	return -1
}
