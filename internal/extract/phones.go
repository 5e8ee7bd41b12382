package extract

import (
	"regexp"
	"sort"
	"strings"
)

var (
	// Matches common phone shapes like (212) 555-1234, 212-555-1234,
	// +1-212-555-1234 and +44 20 1234 5678.
	phonePattern = regexp.MustCompile(`\b(?:\+?\d{1,3}[-.\s()]*)?(?:\(?\d{2,4}\)?[-.\s]*)?\d{2,4}[-.\s]*\d{2,4}[-.\s]*\d{2,4}\b`)

	extensionPattern = regexp.MustCompile(`(?i)\s*(?:ext(?:ension)?|x)\s*\.?\s*\d+.*$`)
	nonDigitPattern  = regexp.MustCompile(`\D+`)
	datePattern      = regexp.MustCompile(`^\d{4}[-/]\d{2}[-/]\d{2}$`)
	pricePattern     = regexp.MustCompile(`^[$€£]\s*[\d,]+\.?\d*$`)
)

// Phones extracts phone numbers from markup or plain text, normalised to
// E.164-like strings, deduplicated and sorted.
func Phones(text string) []string {
	if text == "" {
		return nil
	}
	plain := stripTags(text)
	seen := make(map[string]struct{})
	for _, candidate := range phoneCandidates(plain) {
		if phone := normalisePhone(candidate); phone != "" {
			seen[phone] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	phones := make([]string, 0, len(seen))
	for phone := range seen {
		phones = append(phones, phone)
	}
	sort.Strings(phones)
	return phones
}

// phoneCandidates finds potential phone numbers in plain text, dropping
// matches that are really dates, prices or have an implausible digit count.
func phoneCandidates(text string) []string {
	var candidates []string
	for _, match := range phonePattern.FindAllString(text, -1) {
		digits := nonDigitPattern.ReplaceAllString(match, "")
		if len(digits) < 8 || len(digits) > 15 {
			continue
		}
		trimmed := strings.TrimSpace(match)
		if datePattern.MatchString(trimmed) || pricePattern.MatchString(trimmed) {
			continue
		}
		candidates = append(candidates, match)
	}
	return candidates
}

// normalisePhone reduces a raw phone candidate to a +<digits> form. Bare
// ten-digit numbers are assumed to be US and get a +1 prefix, an explicit
// leading + is trusted as-is, and extensions like "ext 123" or "x456" are
// stripped first. Returns "" when the candidate cannot be a phone number.
func normalisePhone(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.TrimSpace(extensionPattern.ReplaceAllString(s, ""))
	hasPlus := strings.HasPrefix(s, "+")
	digits := nonDigitPattern.ReplaceAllString(s, "")
	if digits == "" {
		return ""
	}
	if hasPlus {
		if len(digits) >= 8 {
			return "+" + digits
		}
		return ""
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		return "+" + digits
	}
	if len(digits) == 10 {
		return "+1" + digits
	}
	if len(digits) >= 8 {
		return "+" + digits
	}
	return ""
}
