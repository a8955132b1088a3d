package search

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const prefixHeadlineRunes = 200

var (
	highlightPolicy = bluemonday.NewPolicy().AllowElements("b")
	textPolicy      = bluemonday.StrictPolicy()
)

// sanitizeHighlight keeps the <b> markers produced by ts_headline and escapes
// everything else the transcript may contain.
func sanitizeHighlight(s string) string {
	return highlightPolicy.Sanitize(s)
}

// prefixHeadline is the fixed-length snippet used when the backend cannot
// locate the match.
func prefixHeadline(title, transcript string) string {
	src := strings.TrimSpace(transcript)
	if src == "" {
		src = strings.TrimSpace(title)
	}
	src = strings.Join(strings.Fields(src), " ")
	if utf8.RuneCountInString(src) > prefixHeadlineRunes {
		src = string([]rune(src)[:prefixHeadlineRunes]) + "..."
	}
	return textPolicy.Sanitize(src)
}
