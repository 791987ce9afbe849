package extract

import "strings"

const (
	baseScore = 0.5

	authorBonus      = 0.15
	dateBonus        = 0.15
	descriptionBonus = 0.10

	idealLengthBonus    = 0.20
	acceptableLenBonus  = 0.10
	tooShortPenalty     = 0.20
	idealMinLength      = 1000
	idealMaxLength      = 8000
	acceptableMinLength = 500
	acceptableMaxLength = 15000
	tooShortLength      = 200

	titleLengthBonus = 0.10
	titleMinLength   = 20
	titleMaxLength   = 150

	lineBreakBonus = 0.05
	minLineBreaks  = 4
)

// scoreQuality implements the seven-term extraction quality heuristic:
// a 0.5 baseline adjusted for presence of author/date/description, content
// length versus an ideal band, title length, and paragraph structure.
// keywords/matched are accepted for symmetry with the keyword-extraction
// step but do not currently contribute a term.
func scoreQuality(a *Article, _ []string, _ []string) float64 {
	score := baseScore

	if a.Author != "" {
		score += authorBonus
	}
	if a.PublishedAt != nil {
		score += dateBonus
	}
	if a.Description != "" {
		score += descriptionBonus
	}

	textLen := len(a.Content)
	switch {
	case textLen >= idealMinLength && textLen <= idealMaxLength:
		score += idealLengthBonus
	case textLen >= acceptableMinLength && textLen <= acceptableMaxLength:
		score += acceptableLenBonus
	case textLen < tooShortLength:
		score -= tooShortPenalty
	}

	titleLen := len(a.Title)
	if titleLen >= titleMinLength && titleLen <= titleMaxLength {
		score += titleLengthBonus
	}

	if strings.Count(a.Content, "\n") >= minLineBreaks {
		score += lineBreakBonus
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// matchKeywords intersects keywords (in Domain order) with the lowercased
// text, keeping at most maxMatchedKeywords matches.
func matchKeywords(text string, keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	lower := strings.ToLower(text)

	var matched []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
			if len(matched) >= maxMatchedKeywords {
				break
			}
		}
	}
	return matched
}
