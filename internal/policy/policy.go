package policy

import (
	"time"
)

// Policy is the fully resolved crawl configuration. It is built once at
// startup by Resolve and never mutated afterwards.
type Policy struct {
	HTTP     HTTPPolicy
	Retry    RetryPolicy
	Protocol ProtocolPolicy
	Robots   RobotsPolicy
	Rotation RotationPolicy
}

// HTTPPolicy controls the fetch client and the scheduler's wave size.
type HTTPPolicy struct {
	TimeoutSeconds  float64 // Per-request timeout in seconds
	Concurrency     int     // Wave size: max pipelines in flight
	UserAgent       string  // Fallback UA when rotation is disabled
	FollowRedirects bool    // Follow HTTP redirects
	MaxRedirects    int     // Redirect hop limit
	MaxBodyBytes    int64   // Response body read cap
	GlobalRPS       float64 // Global requests/sec throttle, 0 disables
}

// RetryPolicy controls per-protocol retry attempts and backoff.
type RetryPolicy struct {
	MaxAttempts        int
	BackoffBaseSeconds float64
	JitterMaxSeconds   float64
	RetryOn            []string // Error kinds that trigger a retry
	SkipRetryOn        []string // Error kinds that abort immediately
}

// ProtocolPolicy controls the https-then-http fallback order.
type ProtocolPolicy struct {
	TryHTTPSFirst  bool
	FallbackToHTTP bool
	HTTPFallbackOn []string // Error kinds that trigger a protocol switch
}

// RobotsPolicy controls robots.txt compliance behaviour.
type RobotsPolicy struct {
	Enabled           bool
	CacheTTLSeconds   int
	RespectCrawlDelay bool
	FailOpen          bool // Unreachable robots.txt grants permission
}

// RotationPolicy controls user-agent rotation.
type RotationPolicy struct {
	Enabled  bool
	Identify bool // Append the crawler identification suffix
}

// Timeout returns the per-request timeout as a duration.
func (h HTTPPolicy) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds * float64(time.Second))
}

// BackoffBase returns the first retry delay as a duration.
func (r RetryPolicy) BackoffBase() time.Duration {
	return time.Duration(r.BackoffBaseSeconds * float64(time.Second))
}

// JitterMax returns the jitter upper bound as a duration.
func (r RetryPolicy) JitterMax() time.Duration {
	return time.Duration(r.JitterMaxSeconds * float64(time.Second))
}

// Retryable reports whether an error kind is worth another attempt on the
// same protocol.
func (r RetryPolicy) Retryable(kind string) bool {
	return containsKind(r.RetryOn, kind)
}

// SkipRetry reports whether an error kind is terminal, abandoning all
// remaining attempts and protocols.
func (r RetryPolicy) SkipRetry(kind string) bool {
	return containsKind(r.SkipRetryOn, kind)
}

// TriggersFallback reports whether an error kind should abandon the current
// protocol and move straight to the next one.
func (p ProtocolPolicy) TriggersFallback(kind string) bool {
	return containsKind(p.HTTPFallbackOn, kind)
}

func containsKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// CacheTTL returns the robots cache entry lifetime.
func (r RobotsPolicy) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSeconds) * time.Second
}

// Protocols returns the ordered protocol list to attempt. At least one
// protocol is always present.
func (p Policy) Protocols() []string {
	var protocols []string
	if p.Protocol.TryHTTPSFirst {
		protocols = append(protocols, "https")
	}
	if p.Protocol.FallbackToHTTP {
		protocols = append(protocols, "http")
	}
	if len(protocols) == 0 {
		protocols = []string{"https"}
	}
	return protocols
}

// Default returns the compiled-in policy, the lowest merge layer.
func Default() Policy {
	return Policy{
		HTTP: HTTPPolicy{
			TimeoutSeconds:  12,
			Concurrency:     50,
			UserAgent:       "Mozilla/5.0 (compatible; SpaceCrawler/1.0)",
			FollowRedirects: true,
			MaxRedirects:    5,
			MaxBodyBytes:    10 << 20,
			GlobalRPS:       0,
		},
		Retry: RetryPolicy{
			MaxAttempts:        3,
			BackoffBaseSeconds: 0.5,
			JitterMaxSeconds:   0.5,
			RetryOn:            []string{"timeout", "connection_reset", "connection_refused", "temporary_error"},
			SkipRetryOn:        []string{"dns_error", "invalid_domain"},
		},
		Protocol: ProtocolPolicy{
			TryHTTPSFirst:  true,
			FallbackToHTTP: true,
			HTTPFallbackOn: []string{"ssl_error", "certificate_error", "handshake_error"},
		},
		Robots: RobotsPolicy{
			Enabled:           true,
			CacheTTLSeconds:   86400,
			RespectCrawlDelay: true,
			FailOpen:          true,
		},
		Rotation: RotationPolicy{
			Enabled:  true,
			Identify: true,
		},
	}
}

// clamp pulls out-of-range values back to usable minimums. Resolution never
// fails outright, so nonsense values degrade rather than abort.
func (p *Policy) clamp() {
	if p.HTTP.TimeoutSeconds <= 0 {
		p.HTTP.TimeoutSeconds = Default().HTTP.TimeoutSeconds
	}
	if p.HTTP.Concurrency < 1 {
		p.HTTP.Concurrency = 1
	}
	if p.HTTP.MaxRedirects < 0 {
		p.HTTP.MaxRedirects = 0
	}
	if p.HTTP.MaxBodyBytes <= 0 {
		p.HTTP.MaxBodyBytes = Default().HTTP.MaxBodyBytes
	}
	if p.HTTP.GlobalRPS < 0 {
		p.HTTP.GlobalRPS = 0
	}
	if p.Retry.MaxAttempts < 1 {
		p.Retry.MaxAttempts = 1
	}
	if p.Retry.BackoffBaseSeconds < 0 {
		p.Retry.BackoffBaseSeconds = 0
	}
	if p.Retry.JitterMaxSeconds < 0 {
		p.Retry.JitterMaxSeconds = 0
	}
	if p.Robots.CacheTTLSeconds < 0 {
		p.Robots.CacheTTLSeconds = 0
	}
}
