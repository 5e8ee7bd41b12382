package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// Address fragments introduced by a keyword like "Address:" or "Visit us".
	addressKeywordPattern = regexp.MustCompile(`(?is)(?:address|location|visit\s+us|headquarters?|office)[:\s]+([^<]+?(?:street|st|ave|avenue|road|rd|blvd|boulevard|drive|dr)[^<]{0,100})`)

	// Full street + city + state + zip shapes in running text.
	addressStructuredPattern = regexp.MustCompile(`(?i)\d+\s+[A-Za-z0-9\s]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Way|Court|Ct)\.?,?\s*(?:Suite|Ste|Unit|#)?\s*[A-Za-z0-9]*,?\s*[A-Za-z\s]+,\s*(?:[A-Z]{2}|[A-Za-z\s]+)\s*\d{4,5}(?:-\d{4})?`)

	// Words that mark the end of address context, like opening hours or
	// contact details that follow the address in a footer.
	addressStopWordPattern = regexp.MustCompile(`(?i)\b(?:business\s+hours?|hours?|open|closed|monday|tuesday|wednesday|thursday|friday|saturday|sunday|phone|email|fax|contact)\b`)
)

// Address extracts a postal address from a page. Strategies run from the
// most structured source to the loosest: JSON-LD PostalAddress, microdata
// street addresses, the <address> element, then keyword and street-shape
// matches over the visible text.
func Address(markup string) string {
	if markup == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	if addr := addressFromJSONLD(doc); addr != "" {
		return addr
	}

	// Inline code must not pollute the text strategies below.
	doc.Find("script, style, noscript").Remove()
	if addr := addressFromMicrodata(doc); addr != "" {
		return addr
	}
	if addr := addressFromTag(doc); addr != "" {
		return addr
	}

	text := stripTags(removeScriptStyle(markup))
	if addr := addressFromKeyword(text); addr != "" {
		return addr
	}
	return addressFromShape(text)
}

func addressFromJSONLD(doc *goquery.Document) string {
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, item := range decodeJSONLD(s.Text()) {
			address, ok := item["address"].(map[string]any)
			if !ok {
				continue
			}
			parts := make([]string, 0, 4)
			for _, key := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode"} {
				if value, ok := address[key].(string); ok {
					if cleaned := cleanText(value); cleaned != "" {
						parts = append(parts, cleaned)
					}
				}
			}
			if len(parts) > 0 {
				found = strings.Join(parts, ", ")
				return false
			}
		}
		return true
	})
	return found
}

func addressFromMicrodata(doc *goquery.Document) string {
	street := doc.Find(`[itemprop="address"] [itemprop="streetAddress"]`).First()
	if street.Length() == 0 {
		return ""
	}
	inner, err := street.Html()
	if err != nil {
		return ""
	}
	addr := cleanText(stripTags(inner))
	if plausibleAddress(addr) {
		return addr
	}
	return ""
}

func addressFromTag(doc *goquery.Document) string {
	tag := doc.Find("address").First()
	if tag.Length() == 0 {
		return ""
	}
	inner, err := tag.Html()
	if err != nil {
		return ""
	}
	addr := truncateAtStopWord(cleanText(stripTags(inner)))
	if plausibleAddress(addr) {
		return addr
	}
	return ""
}

func addressFromKeyword(text string) string {
	match := addressKeywordPattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	addr := truncateAtStopWord(cleanText(strings.TrimSpace(match[1])))
	if !plausibleAddress(addr) {
		return ""
	}
	if normalised := normaliseAddress(addr); normalised != "" {
		return normalised
	}
	return addr
}

func addressFromShape(text string) string {
	match := addressStructuredPattern.FindString(text)
	if match == "" {
		return ""
	}
	addr := cleanText(strings.TrimSpace(match))
	if plausibleAddress(addr) {
		return addr
	}
	return ""
}

// plausibleAddress bounds address length: long enough to carry a street,
// short enough to not be a paragraph that happened to mention one.
func plausibleAddress(addr string) bool {
	return len(addr) > 10 && len(addr) < 200
}

func truncateAtStopWord(text string) string {
	if loc := addressStopWordPattern.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[:loc[0]])
	}
	return text
}

// normaliseAddress splits a free-form address on commas and rejoins the
// street, city and state components, separating a trailing "ST 12345"
// state/zip pair into its own components. Components past the state are
// dropped.
func normaliseAddress(raw string) string {
	parts := make([]string, 0, 4)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	if len(parts) > 3 {
		parts = parts[:3]
	}
	if len(parts) == 3 {
		tokens := strings.Fields(parts[2])
		if len(tokens) == 2 && allDigits(tokens[1]) {
			parts = append(parts[:2], tokens[0], tokens[1])
		}
	}
	return strings.Join(parts, ", ")
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
