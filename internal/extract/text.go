package extract

import (
	"html"
	"regexp"
	"strings"
)

var (
	// Block-level tags become spaces so words on either side stay separated.
	blockTagPattern   = regexp.MustCompile(`(?i)<(?:br|p|div|li|tr|td|th)[^>]*>`)
	anyTagPattern     = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	scriptPattern   = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	stylePattern    = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptPattern = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
)

// stripTags removes HTML tags from markup, replacing block elements with
// spaces so the surrounding words keep their boundaries.
func stripTags(markup string) string {
	if markup == "" {
		return ""
	}
	text := blockTagPattern.ReplaceAllString(markup, " ")
	text = anyTagPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// cleanText decodes HTML entities and collapses runs of whitespace.
// Non-breaking spaces become plain spaces so the collapse catches them.
func cleanText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// removeScriptStyle drops script, style and noscript blocks with their
// content so inline code never leaks into extracted text.
func removeScriptStyle(markup string) string {
	if markup == "" {
		return ""
	}
	markup = scriptPattern.ReplaceAllString(markup, "")
	markup = stylePattern.ReplaceAllString(markup, "")
	return noscriptPattern.ReplaceAllString(markup, "")
}
