package fetch

import "time"

// Error kinds used by the retry, protocol-fallback, and skip lists in the
// resolved policy. Classification maps raw transport errors onto these.
const (
	KindDNS           = "dns_error"
	KindInvalidDomain = "invalid_domain"
	KindSSL           = "ssl_error"
	KindCertificate   = "certificate_error"
	KindHandshake     = "handshake_error"
	KindTimeout       = "timeout"
	KindConnReset     = "connection_reset"
	KindConnRefused   = "connection_refused"
	KindTemporary     = "temporary_error"
	KindCanceled      = "canceled"
)

// ClassifiedError pairs an error kind with the operator-facing message
// recorded on the crawl result.
type ClassifiedError struct {
	Kind    string
	Message string
}

func (e *ClassifiedError) Error() string {
	return e.Message
}

// Result holds the payload of a successful fetch.
type Result struct {
	URL           string        // final URL after redirects
	Protocol      string        // protocol that produced the response
	StatusCode    int
	HTML          string
	PageSizeBytes int
	ResponseTime  time.Duration // duration of the successful attempt
	RedirectChain []string      // every hop including the final URL, nil unless redirected
}

// Outcome is the terminal state of the fetch state machine for one domain.
// Exactly one of Result or Err is set. A populated Err is a normal outcome,
// not a failure of the engine itself.
type Outcome struct {
	Result   *Result
	Err      *ClassifiedError
	Protocol string        // protocol of the final attempt, "" if none ran
	Elapsed  time.Duration // total time across all attempts and protocols
}
