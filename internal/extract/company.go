package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// Trailing separators left behind after suffix removal ("Acme -", "Acme |").
	trailingSeparatorPattern = regexp.MustCompile(`[\s\-–—|:.,!;]+$`)

	// Title suffixes introduced by a separator ("Acme | Home", "Acme - Contact").
	titleSuffixPattern = regexp.MustCompile(`(?i)\s*[|\-–—:]\s*(?:Home|About|Services|Contact|Welcome|Official|Site|Website|Estate|Planning|Law|Legal).*$`)

	// Taglines after a separator ("Acme - Tech Support That Never Sleeps").
	titleTaglinePattern = regexp.MustCompile(`\s*[|\-–—]\s+.{15,}$`)
	titleTrailerPattern = regexp.MustCompile(`\s*[|\-–—]\s+[^|]+$`)
	titleEndingPattern  = regexp.MustCompile(`\s*[|\-–—:.,!;]+\s*$`)

	// Suffixes with no separator ("NCCA Home Page").
	titleBareSuffixPattern = regexp.MustCompile(`(?i)\s+(?:Home\s+Page|Home|Website|Official\s+Site|Official\s+Website|Web\s+Site)$`)
)

// CompanyName extracts the company name from a page, trying JSON-LD
// structured data first, then the og:site_name meta tag, then the title tag
// with common suffixes and taglines removed. Returns "" when nothing
// plausible is found so callers can fall back to a domain-derived name.
func CompanyName(markup string) string {
	if markup == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	if name := companyFromJSONLD(doc); name != "" {
		return name
	}
	if name := companyFromOpenGraph(doc); name != "" {
		return name
	}
	return companyFromTitle(doc)
}

func companyFromJSONLD(doc *goquery.Document) string {
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, item := range decodeJSONLD(s.Text()) {
			if !isOrganisation(item) {
				continue
			}
			name, _ := item["name"].(string)
			if name == "" {
				name, _ = item["legalName"].(string)
			}
			if name == "" {
				continue
			}
			if cleaned := cleanText(name); validCompanyName(cleaned) {
				found = cleaned
				return false
			}
		}
		return true
	})
	return found
}

func companyFromOpenGraph(doc *goquery.Document) string {
	content, ok := doc.Find(`meta[property="og:site_name"]`).First().Attr("content")
	if !ok {
		return ""
	}
	name := cleanText(content)
	name = trailingSeparatorPattern.ReplaceAllString(name, "")
	if validCompanyName(name) {
		return name
	}
	return ""
}

func companyFromTitle(doc *goquery.Document) string {
	title := doc.Find("title").First().Text()
	if title == "" {
		return ""
	}
	title = titleSuffixPattern.ReplaceAllString(title, "")
	title = titleTaglinePattern.ReplaceAllString(title, "")
	title = titleTrailerPattern.ReplaceAllString(title, "")
	title = titleEndingPattern.ReplaceAllString(title, "")
	title = titleBareSuffixPattern.ReplaceAllString(title, "")
	title = cleanText(title)
	if validCompanyName(title) && len(title) < 50 {
		return title
	}
	return ""
}

// validCompanyName rejects candidates that are too short, too long to be a
// name rather than a sentence, or look like a URL.
func validCompanyName(name string) bool {
	if len(name) < 2 || len(name) > 80 {
		return false
	}
	lower := strings.ToLower(name)
	for _, marker := range []string{"http://", "https://", "www.", ".com/", ".org/", ".net/"} {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}
