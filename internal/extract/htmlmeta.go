package extract

import "strings"

// extractMetaContent scans raw HTML for a <meta property="name" content="...">
// or <meta name="name" content="..."> tag and returns its content attribute.
func extractMetaContent(html, name string) string {
	for _, attr := range []string{"property", "name"} {
		needle := attr + `="` + name + `"`
		idx := strings.Index(html, needle)
		if idx < 0 {
			needle = attr + `='` + name + `'`
			idx = strings.Index(html, needle)
		}
		if idx < 0 {
			continue
		}

		tagStart := strings.LastIndex(html[:idx], "<meta")
		tagEnd := strings.Index(html[idx:], ">")
		if tagStart < 0 || tagEnd < 0 {
			continue
		}
		tag := html[tagStart : idx+tagEnd]

		if content := extractAttr(tag, "content"); content != "" {
			return content
		}
	}
	return ""
}

func extractAttr(tag, attr string) string {
	for _, quote := range []byte{'"', '\''} {
		needle := attr + "=" + string(quote)
		idx := strings.Index(tag, needle)
		if idx < 0 {
			continue
		}
		rest := tag[idx+len(needle):]
		end := strings.IndexByte(rest, quote)
		if end < 0 {
			continue
		}
		return rest[:end]
	}
	return ""
}

func extractHTMLTitle(html string) string {
	start := strings.Index(strings.ToLower(html), "<title>")
	if start < 0 {
		return ""
	}
	start += len("<title>")
	end := strings.Index(strings.ToLower(html[start:]), "</title>")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(html[start : start+end])
}
