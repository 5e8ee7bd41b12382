package crawl

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/vladbalan/phidi/internal/extract"
	"github.com/vladbalan/phidi/internal/fetch"
)

// robotsDisallowed is the error value on records for domains whose
// robots.txt forbids crawling.
const robotsDisallowed = "robots_disallowed"

// maxPanicLen caps the error message built from a recovered panic.
const maxPanicLen = 200

// Result is one output record: the crawl outcome and extracted contact
// data for a single domain. Exactly one Result is emitted per unique
// input domain, serialised as one NDJSON line.
type Result struct {
	Domain         string   `json:"domain"`
	URL            string   `json:"url"`
	Phones         []string `json:"phones"`
	CompanyName    *string  `json:"company_name"`
	FacebookURL    *string  `json:"facebook_url"`
	LinkedInURL    *string  `json:"linkedin_url"`
	TwitterURL     *string  `json:"twitter_url"`
	InstagramURL   *string  `json:"instagram_url"`
	Address        *string  `json:"address"`
	CrawledAt      string   `json:"crawled_at"`
	HTTPStatus     int      `json:"http_status"`
	ResponseTimeMs int64    `json:"response_time_ms"`
	PageSizeBytes  int      `json:"page_size_bytes"`
	Method         string   `json:"method"`
	Error          *string  `json:"error"`
	RedirectChain  []string `json:"redirect_chain,omitempty"`
	Note           string   `json:"note,omitempty"`
}

// successResult builds the record for a fetch that returned a page.
// The extracted company name falls back to one derived from the domain.
func successResult(domain string, res *fetch.Result, fields extract.Fields) Result {
	phones := fields.Phones
	if phones == nil {
		phones = []string{}
	}

	company := optional(fields.CompanyName)
	if company == nil {
		company = deriveCompanyName(domain)
	}

	return Result{
		Domain:         domain,
		URL:            res.URL,
		Phones:         phones,
		CompanyName:    company,
		FacebookURL:    optional(fields.FacebookURL),
		LinkedInURL:    optional(fields.LinkedInURL),
		TwitterURL:     optional(fields.TwitterURL),
		InstagramURL:   optional(fields.InstagramURL),
		Address:        optional(fields.Address),
		CrawledAt:      nowISO(),
		HTTPStatus:     res.StatusCode,
		ResponseTimeMs: res.ResponseTime.Milliseconds(),
		PageSizeBytes:  res.PageSizeBytes,
		Method:         res.Protocol,
		RedirectChain:  res.RedirectChain,
	}
}

// robotsResult builds the record for a domain whose robots.txt disallows
// crawling. No fetch was attempted, so status and timing are zero.
func robotsResult(domain string) Result {
	err := robotsDisallowed
	return Result{
		Domain:      domain,
		URL:         "https://" + domain + "/",
		Phones:      []string{},
		CompanyName: deriveCompanyName(domain),
		CrawledAt:   nowISO(),
		Method:      "http",
		Error:       &err,
		Note:        "Disallowed by robots.txt - respecting site's crawl policy",
	}
}

// errorResult builds the record for a fetch that exhausted every attempt.
// Method reflects the protocol of the final attempt; response time is the
// total elapsed across all attempts.
func errorResult(domain string, out *fetch.Outcome) Result {
	method := out.Protocol
	if method == "" {
		method = "http"
	}

	msg := out.Err.Message
	return Result{
		Domain:         domain,
		URL:            "https://" + domain,
		Phones:         []string{},
		CompanyName:    deriveCompanyName(domain),
		CrawledAt:      nowISO(),
		ResponseTimeMs: out.Elapsed.Milliseconds(),
		Method:         method,
		Error:          &msg,
	}
}

// panicResult builds the record for a pipeline that panicked, so one bad
// domain still emits its line instead of killing the run.
func panicResult(domain string, cause any) Result {
	err := truncate(fmt.Sprintf("Unexpected error: %v", cause), maxPanicLen)
	return Result{
		Domain:      domain,
		URL:         "https://" + domain,
		Phones:      []string{},
		CompanyName: deriveCompanyName(domain),
		CrawledAt:   nowISO(),
		Method:      "http",
		Error:       &err,
	}
}

// nowISO formats the current UTC time with millisecond precision and a
// literal Z suffix, the timestamp shape downstream consumers parse.
func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// deriveCompanyName guesses a display name from the domain's first label:
// punctuation becomes spaces and each token gets an upper-cased first rune.
// Returns nil when nothing usable remains.
func deriveCompanyName(domain string) *string {
	label, _, _ := strings.Cut(domain, ".")

	var b strings.Builder
	for _, r := range label {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	for i, tok := range tokens {
		r, size := utf8.DecodeRuneInString(tok)
		tokens[i] = string(unicode.ToUpper(r)) + tok[size:]
	}

	name := strings.Join(tokens, " ")
	if name == "" {
		return nil
	}
	return &name
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
