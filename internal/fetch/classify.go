package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// maxErrorLen caps transport error messages so a pathological error string
// cannot bloat the output records.
const maxErrorLen = 100

// Classify maps a raw transport error onto the error kinds consulted by the
// retry, skip, and protocol-fallback lists, along with the message recorded
// on the crawl result.
func Classify(err error, timeout time.Duration) *ClassifiedError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return &ClassifiedError{Kind: KindCanceled, Message: "Canceled"}
	}

	// DNS failures are terminal, but a DNS lookup that merely timed out is
	// still worth retrying.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return timeoutError(timeout)
		}
		return &ClassifiedError{Kind: KindDNS, Message: "DNS error: domain not found"}
	}

	if isTimeout(err) {
		return timeoutError(timeout)
	}

	if kind, ok := classifyTLS(err); ok {
		return &ClassifiedError{Kind: kind, Message: "SSL error"}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &ClassifiedError{Kind: KindConnRefused, Message: "Connection refused"}
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return &ClassifiedError{Kind: KindConnReset, Message: "Connection reset"}
	}

	if errors.Is(err, errTooManyRedirects) {
		return &ClassifiedError{Kind: KindTemporary, Message: "HTTP error: too many redirects"}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &ClassifiedError{Kind: KindTemporary, Message: truncate("Connection error: "+rootCause(opErr).Error(), maxErrorLen)}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &ClassifiedError{Kind: KindTemporary, Message: truncate("HTTP error: "+rootCause(urlErr).Error(), maxErrorLen)}
	}

	return &ClassifiedError{Kind: KindTemporary, Message: truncate("Error: "+err.Error(), maxErrorLen)}
}

func timeoutError(timeout time.Duration) *ClassifiedError {
	return &ClassifiedError{Kind: KindTimeout, Message: fmt.Sprintf("Timeout after %gs", timeout.Seconds())}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classifyTLS distinguishes certificate, handshake, and generic TLS
// failures. All of them trigger protocol fallback; the distinction only
// shows up in metrics and the fallback policy list.
func classifyTLS(err error) (string, bool) {
	var certInvalid x509.CertificateInvalidError
	var hostname x509.HostnameError
	var unknownAuthority x509.UnknownAuthorityError
	var verification *tls.CertificateVerificationError
	if errors.As(err, &certInvalid) || errors.As(err, &hostname) ||
		errors.As(err, &unknownAuthority) || errors.As(err, &verification) {
		return KindCertificate, true
	}

	var recordHeader tls.RecordHeaderError
	if errors.As(err, &recordHeader) {
		return KindHandshake, true
	}

	// A plain-HTTP server answering an HTTPS request is the classic reason
	// to fall back to http.
	if errors.Is(err, http.ErrSchemeMismatch) {
		return KindSSL, true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "certificate"):
		return KindCertificate, true
	case strings.Contains(msg, "handshake"):
		return KindHandshake, true
	case strings.Contains(msg, "tls"), strings.Contains(msg, "ssl"):
		return KindSSL, true
	}

	return "", false
}

// rootCause unwraps to the innermost error so messages skip the layers of
// url.Error and OpError wrapping.
func rootCause(err error) error {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
