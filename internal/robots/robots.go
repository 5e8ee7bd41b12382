package robots

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"

	"github.com/vladbalan/phidi/internal/observability"
	"github.com/vladbalan/phidi/internal/policy"
)

// maxRobotsBytes caps robots.txt bodies; anything larger is not a good
// faith robots file.
const maxRobotsBytes = 1 << 20

// Decision is the outcome of a robots.txt check.
type Decision struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// Fetcher issues the single plain GET used to retrieve robots.txt.
type Fetcher interface {
	Get(ctx context.Context, rawURL, userAgent string, maxBytes int64) (int, []byte, error)
}

// Checker answers allow/deny questions against per-domain robots.txt
// rules, cached with a TTL. Safe for concurrent use; the cache is the only
// state shared between crawl pipelines.
type Checker struct {
	fetcher Fetcher
	policy  policy.RobotsPolicy
	store   *store
}

// NewChecker builds a Checker that fetches robots.txt through the given
// Fetcher. With robots checking disabled the Checker allows everything and
// never fetches.
func NewChecker(fetcher Fetcher, pol policy.RobotsPolicy) *Checker {
	return &Checker{
		fetcher: fetcher,
		policy:  pol,
		store:   newStore(pol.CacheTTL()),
	}
}

// Check reports whether path on domain may be crawled by userAgent.
// Fetch and parse failures resolve according to the fail-open policy and
// are cached for the normal TTL like any other answer.
func (c *Checker) Check(ctx context.Context, domain, path, userAgent string) Decision {
	if !c.policy.Enabled {
		return Decision{Allowed: true}
	}

	now := time.Now()
	e, lookup := c.store.get(domain, now)
	observability.RecordRobotsCache(ctx, lookup)
	if lookup != lookupHit {
		e = c.refresh(ctx, domain, userAgent, now)
	}

	return c.decide(e, path, userAgent)
}

// refresh fetches and parses robots.txt for domain, storing the result
// even when the fetch failed so the failure is not retried until the TTL
// lapses.
func (c *Checker) refresh(ctx context.Context, domain, userAgent string, now time.Time) *entry {
	robotsURL := fmt.Sprintf("https://%s/robots.txt", domain)
	e := &entry{fetchedAt: now}

	status, body, err := c.fetcher.Get(ctx, robotsURL, userAgent, maxRobotsBytes)
	switch {
	case err != nil:
		log.Debug().
			Str("domain", domain).
			Err(err).
			Bool("fail_open", c.policy.FailOpen).
			Msg("robots.txt fetch failed")
	case status < 200 || status > 299:
		log.Debug().
			Str("domain", domain).
			Int("status", status).
			Bool("fail_open", c.policy.FailOpen).
			Msg("robots.txt fetch returned non-2xx status")
	default:
		data, parseErr := robotstxt.FromStatusAndBytes(status, body)
		if parseErr != nil {
			log.Warn().Str("domain", domain).Err(parseErr).Msg("Failed to parse robots.txt")
		} else {
			e.data = data
		}
	}

	c.store.putIfStale(domain, e, now)
	return e
}

// decide evaluates one cache entry. Entries without parsed data resolve by
// the fail-open policy.
func (c *Checker) decide(e *entry, path, userAgent string) Decision {
	if e == nil || e.data == nil {
		return Decision{Allowed: c.policy.FailOpen}
	}

	group := e.data.FindGroup(userAgent)
	if group == nil {
		return Decision{Allowed: true}
	}

	decision := Decision{Allowed: group.Test(path)}
	if c.policy.RespectCrawlDelay && group.CrawlDelay > 0 {
		decision.CrawlDelay = group.CrawlDelay
	}
	return decision
}
