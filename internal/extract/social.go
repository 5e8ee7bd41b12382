package extract

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	facebookPattern  = regexp.MustCompile(`(?i)href=["'](https?://(?:www\.)?(?:facebook\.com|fb\.com)/[^"']+)["']`)
	linkedinPattern  = regexp.MustCompile(`(?i)href=["'](https?://(?:www\.)?linkedin\.com/(?:company|in)/[^"']+)["']`)
	twitterPattern   = regexp.MustCompile(`(?i)href=["'](https?://(?:www\.)?(?:twitter\.com|x\.com)/[^"']+)["']`)
	instagramPattern = regexp.MustCompile(`(?i)href=["'](https?://(?:www\.)?instagram\.com/[^"']+)["']`)

	schemePattern = regexp.MustCompile(`^https?://`)
)

// Facebook returns the first Facebook profile link in the markup as a
// canonical "facebook.com/name" string, or "" when none is present.
func Facebook(markup string) string {
	match := facebookPattern.FindStringSubmatch(markup)
	if match == nil {
		return ""
	}
	return canonicaliseFacebook(match[1])
}

// LinkedIn returns the first LinkedIn company or personal profile link in
// the markup as a canonical "linkedin.com/company/name" string.
func LinkedIn(markup string) string {
	match := linkedinPattern.FindStringSubmatch(markup)
	if match == nil {
		return ""
	}
	return canonicalHostPath(match[1])
}

// Twitter returns the first Twitter or X profile link in the markup as a
// canonical "twitter.com/name" or "x.com/name" string.
func Twitter(markup string) string {
	match := twitterPattern.FindStringSubmatch(markup)
	if match == nil {
		return ""
	}
	return canonicalHostPath(match[1])
}

// Instagram returns the first Instagram profile link in the markup as a
// canonical "instagram.com/name" string.
func Instagram(markup string) string {
	match := instagramPattern.FindStringSubmatch(markup)
	if match == nil {
		return ""
	}
	link := strings.ToLower(match[1])
	link = strings.ReplaceAll(link, "www.", "")
	link = schemePattern.ReplaceAllString(link, "")
	link = strings.TrimRight(link, "/")
	if !strings.HasPrefix(link, "instagram.com/") {
		return ""
	}
	return link
}

// canonicalHostPath reduces a URL or bare host/path input to a normalised
// "host[/path]" string: lowercased host, www. prefix dropped, surrounding
// slashes trimmed from the path.
func canonicalHostPath(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	var host, path string
	if parsed, err := url.Parse(value); err == nil && parsed.Host != "" {
		host = strings.ToLower(parsed.Host)
		path = strings.Trim(parsed.Path, "/")
	} else {
		parts := strings.SplitN(value, "/", 2)
		host = strings.ToLower(parts[0])
		if len(parts) > 1 {
			path = strings.Trim(parts[1], "/")
		}
	}
	host = strings.TrimPrefix(host, "www.")
	if path == "" {
		return host
	}
	return host + "/" + path
}

// canonicaliseFacebook maps fb.com shorthand onto facebook.com and turns a
// bare handle into a facebook.com path, collapsing any accidentally doubled
// facebook.com prefixes.
func canonicaliseFacebook(raw string) string {
	c := canonicalHostPath(raw)
	if c == "" {
		return ""
	}
	if c == "fb.com" {
		c = "facebook.com"
	} else if strings.HasPrefix(c, "fb.com/") {
		c = "facebook.com" + strings.TrimPrefix(c, "fb.com")
	}
	if !strings.Contains(c, "/") && !strings.Contains(c, ".") {
		c = "facebook.com/" + c
	}
	for strings.Contains(c, "facebook.com/facebook.com") {
		c = strings.ReplaceAll(c, "facebook.com/facebook.com", "facebook.com")
	}
	return c
}
