package fetch

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vladbalan/phidi/internal/domains"
	"github.com/vladbalan/phidi/internal/observability"
	"github.com/vladbalan/phidi/internal/policy"
)

var errTooManyRedirects = errors.New("too many redirects")

// redirectChainKey carries a per-request chain collector through the
// shared client's CheckRedirect callback.
type redirectChainKey struct{}

// Engine runs the protocol-fallback retry state machine for one domain at
// a time. A single Engine is shared by every concurrent pipeline; all
// mutable state lives in the connection pool.
type Engine struct {
	client *http.Client
	policy policy.Policy

	// attemptFn is swapped out in tests to script attempt outcomes.
	attemptFn func(ctx context.Context, target, userAgent string) (*Result, error)
}

// New builds an Engine with a pooled transport shared by every fetch.
func New(pol policy.Policy, prov *observability.Providers) *Engine {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 25,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     120 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	client := &http.Client{
		Timeout:       pol.HTTP.Timeout(),
		Transport:     observability.ClientTransport(transport, prov),
		CheckRedirect: redirectPolicy(pol.HTTP),
	}

	e := &Engine{client: client, policy: pol}
	e.attemptFn = e.attempt
	return e
}

// redirectPolicy enforces the redirect cap and records the hop chain into
// the collector carried by the request context.
func redirectPolicy(httpPol policy.HTTPPolicy) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if !httpPol.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) > httpPol.MaxRedirects {
			return errTooManyRedirects
		}
		if chain, ok := req.Context().Value(redirectChainKey{}).(*[]string); ok {
			if len(*chain) == 0 {
				*chain = append(*chain, via[0].URL.String())
			}
			*chain = append(*chain, req.URL.String())
		}
		return nil
	}
}

// Fetch drives the state machine for a single domain: for each protocol in
// policy order, up to max_attempts timed GETs with exponential backoff
// between retries. Terminal errors abandon everything immediately,
// fallback-triggering errors abandon only the current protocol, and an
// exhausted protocol advances to the next one carrying the latest error.
func (e *Engine) Fetch(ctx context.Context, domain, userAgent string) *Outcome {
	start := time.Now()

	if err := domains.Validate(domain); err != nil {
		log.Debug().Str("domain", domain).Err(err).Msg("Refusing to fetch invalid domain")
		return &Outcome{
			Err:     &ClassifiedError{Kind: KindInvalidDomain, Message: "Invalid domain"},
			Elapsed: time.Since(start),
		}
	}

	retry := e.policy.Retry
	var lastErr *ClassifiedError
	var lastProtocol string

protocols:
	for _, protocol := range e.policy.Protocols() {
		target := protocol + "://" + domain
		lastProtocol = protocol

		for attempt := 0; attempt < retry.MaxAttempts; attempt++ {
			if ctx.Err() != nil {
				return &Outcome{Err: &ClassifiedError{Kind: KindCanceled, Message: "Canceled"}, Protocol: protocol, Elapsed: time.Since(start)}
			}

			result, err := e.attemptFn(ctx, target, userAgent)
			if err == nil {
				result.Protocol = protocol
				observability.RecordAttempt(ctx, protocol, "success")
				return &Outcome{Result: result, Protocol: protocol, Elapsed: time.Since(start)}
			}

			classified := Classify(err, e.policy.HTTP.Timeout())
			observability.RecordAttempt(ctx, protocol, classified.Kind)

			if classified.Kind == KindCanceled {
				return &Outcome{Err: classified, Protocol: protocol, Elapsed: time.Since(start)}
			}

			lastErr = classified
			log.Debug().
				Str("domain", domain).
				Str("protocol", protocol).
				Int("attempt", attempt).
				Str("kind", classified.Kind).
				Str("error", classified.Message).
				Msg("Fetch attempt failed")

			if retry.SkipRetry(classified.Kind) {
				return &Outcome{Err: classified, Protocol: protocol, Elapsed: time.Since(start)}
			}
			if e.policy.Protocol.TriggersFallback(classified.Kind) {
				continue protocols
			}
			if !retry.Retryable(classified.Kind) {
				continue protocols
			}
			if attempt < retry.MaxAttempts-1 {
				if err := e.sleepBackoff(ctx, attempt); err != nil {
					return &Outcome{Err: &ClassifiedError{Kind: KindCanceled, Message: "Canceled"}, Protocol: protocol, Elapsed: time.Since(start)}
				}
			}
		}
	}

	if lastErr == nil {
		lastErr = &ClassifiedError{Kind: KindTemporary, Message: "Unknown error"}
	}
	return &Outcome{Err: lastErr, Protocol: lastProtocol, Elapsed: time.Since(start)}
}

// Get performs one plain timed GET with no retries. The robots checker uses
// it so robots.txt fetches share the engine's transport, timeout, and
// instrumentation.
func (e *Engine) Get(ctx context.Context, rawURL, userAgent string, maxBytes int64) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func (e *Engine) attempt(ctx context.Context, target, userAgent string) (*Result, error) {
	var chain []string
	ctx = context.WithValue(ctx, redirectChainKey{}, &chain)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	// Browser-like headers to avoid blocking
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.policy.HTTP.MaxBodyBytes))
	if err != nil {
		return nil, err
	}

	// Any response counts as success; status interpretation is left to the
	// output consumer.
	if len(chain) < 2 {
		chain = nil
	}
	return &Result{
		URL:           resp.Request.URL.String(),
		StatusCode:    resp.StatusCode,
		HTML:          string(body),
		PageSizeBytes: len(body),
		ResponseTime:  time.Since(start),
		RedirectChain: chain,
	}, nil
}

// BackoffDelay returns the pause before retry number attempt (0-indexed):
// base * 2^attempt plus uniform jitter in [0, jitter_max).
func BackoffDelay(attempt int, retry policy.RetryPolicy) time.Duration {
	delay := time.Duration(1<<uint(attempt)) * retry.BackoffBase()
	if jitter := retry.JitterMax(); jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(jitter)))
	}
	return delay
}

func (e *Engine) sleepBackoff(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(BackoffDelay(attempt, e.policy.Retry)):
		return nil
	}
}
