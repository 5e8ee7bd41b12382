package domains

import (
	"fmt"
	"net/url"
	"strings"
)

// schemeTokens are fragments left behind when a URL carries a doubled or
// broken scheme, e.g. https://https//example.com or https:///example.com.
var schemeTokens = map[string]bool{
	"http":   true,
	"https":  true,
	"http:":  true,
	"https:": true,
}

// Canonicalise reduces a raw input value to a bare canonical domain:
// lowercase, no scheme, no www. prefix, no path/query/fragment, no
// trailing dots or slashes. Returns "" when no usable domain remains.
func Canonicalise(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}

	// Repair malformed URLs with doubled or empty schemes before parsing,
	// e.g. https://https//example.com or https:///example.com.
	if strings.Contains(v, "//") {
		v = repairDoubledScheme(v)
	}

	host := v
	if strings.Contains(v, "://") {
		if parsed, err := url.Parse(v); err == nil {
			host = parsed.Host
			if host == "" {
				host = parsed.Path
			}
		}
	}

	// Strip leading slashes left over from empty-netloc URLs, then cut
	// any path, query, or fragment.
	host = strings.TrimLeft(host, "/")
	host = strings.SplitN(host, "/", 2)[0]
	host = strings.SplitN(host, "?", 2)[0]
	host = strings.SplitN(host, "#", 2)[0]

	// Trim trailing dots and slashes, then lowercase.
	host = strings.TrimRight(host, "./")
	host = strings.ToLower(host)

	// Remove www. prefix if present
	host = strings.TrimPrefix(host, "www.")

	// Internal whitespace means the value was never a domain.
	if strings.ContainsAny(host, " \t") {
		return ""
	}

	return host
}

// repairDoubledScheme recovers the host from values damaged by duplicated
// or empty schemes, e.g. https://https//example.com or
// https:///example.com. A healthy URL splits on "//" into exactly two
// parts with a non-scheme remainder; anything else signals damage, and the
// first domain-looking segment after the scheme wins.
func repairDoubledScheme(v string) string {
	parts := strings.Split(v, "//")

	firstSegment := func(s string) string {
		return strings.TrimSpace(strings.SplitN(s, "/", 2)[0])
	}

	damaged := len(parts) > 2 ||
		(len(parts) == 2 && parts[1] != "" && schemeTokens[firstSegment(parts[1])])
	if !damaged {
		return v
	}

	for _, part := range parts[1:] {
		seg := firstSegment(part)
		if seg != "" && strings.Contains(seg, ".") && !schemeTokens[seg] {
			return seg
		}
	}
	return v
}

// Validate checks whether a canonical domain looks like a resolvable
// public hostname. Returns an error describing why the domain is
// invalid, or nil if valid.
func Validate(domain string) error {
	if domain == "" {
		return fmt.Errorf("domain cannot be empty")
	}

	// Must contain at least one dot (for TLD)
	if !strings.Contains(domain, ".") {
		return fmt.Errorf("domain must contain a TLD (e.g., .com, .co.uk)")
	}

	// Split into parts and validate each
	parts := strings.Split(domain, ".")
	for _, part := range parts {
		if part == "" {
			return fmt.Errorf("domain contains empty segment")
		}

		// Check for valid characters (alphanumeric and hyphens)
		for _, c := range part {
			isLower := c >= 'a' && c <= 'z'
			isDigit := c >= '0' && c <= '9'
			isHyphen := c == '-'
			if !isLower && !isDigit && !isHyphen {
				return fmt.Errorf("domain contains invalid character: %c", c)
			}
		}

		// Cannot start or end with hyphen
		if strings.HasPrefix(part, "-") || strings.HasSuffix(part, "-") {
			return fmt.Errorf("domain segment cannot start or end with hyphen")
		}
	}

	// TLD must be at least 2 characters
	tld := parts[len(parts)-1]
	if len(tld) < 2 {
		return fmt.Errorf("TLD must be at least 2 characters")
	}

	// Block localhost and common internal hostnames
	blockedDomains := []string{"localhost", "localhost.localdomain", "local", "internal"}
	for _, blocked := range blockedDomains {
		if domain == blocked || strings.HasSuffix(domain, "."+blocked) {
			return fmt.Errorf("domain %q is not allowed", domain)
		}
	}

	return nil
}
