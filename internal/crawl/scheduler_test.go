package crawl

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladbalan/phidi/internal/fetch"
	"github.com/vladbalan/phidi/internal/policy"
	"github.com/vladbalan/phidi/internal/robots"
	"github.com/vladbalan/phidi/internal/useragent"
)

type fetcherFunc func(ctx context.Context, domain, userAgent string) *fetch.Outcome

func (f fetcherFunc) Fetch(ctx context.Context, domain, userAgent string) *fetch.Outcome {
	return f(ctx, domain, userAgent)
}

type checkerFunc func(ctx context.Context, domain, path, userAgent string) robots.Decision

func (f checkerFunc) Check(ctx context.Context, domain, path, userAgent string) robots.Decision {
	return f(ctx, domain, path, userAgent)
}

func allowAll(context.Context, string, string, string) robots.Decision {
	return robots.Decision{Allowed: true}
}

func successOutcome(domain string) *fetch.Outcome {
	return &fetch.Outcome{
		Result: &fetch.Result{
			URL:           "https://" + domain + "/",
			Protocol:      "https",
			StatusCode:    200,
			HTML:          "<html><head><title>" + domain + "</title></head></html>",
			PageSizeBytes: 64,
			ResponseTime:  5 * time.Millisecond,
		},
		Protocol: "https",
		Elapsed:  5 * time.Millisecond,
	}
}

func timeoutOutcome() *fetch.Outcome {
	return &fetch.Outcome{
		Err:      &fetch.ClassifiedError{Kind: fetch.KindTimeout, Message: "Timeout after 12s"},
		Protocol: "http",
		Elapsed:  30 * time.Millisecond,
	}
}

func newTestScheduler(t *testing.T, concurrency int, f Fetcher, c RobotsChecker) (*Scheduler, string) {
	t.Helper()

	pol := policy.Default()
	pol.HTTP.Concurrency = concurrency

	path := filepath.Join(t.TempDir(), "results.ndjson")
	sink, err := NewSink(path)
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })

	rotator := useragent.New(false, false, "test-agent")
	return NewScheduler(pol, f, c, rotator, sink), path
}

func readResults(t *testing.T, path string) []Result {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var out []Result
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var r Result
		require.NoError(t, json.Unmarshal([]byte(line), &r))
		out = append(out, r)
	}
	return out
}

func TestRunEmitsOneRecordPerDomain(t *testing.T) {
	domains := []string{"a.example", "b.example", "c.example", "d.example", "e.example"}
	fetcher := fetcherFunc(func(_ context.Context, domain, _ string) *fetch.Outcome {
		if domain == "c.example" {
			return timeoutOutcome()
		}
		return successOutcome(domain)
	})
	sched, path := newTestScheduler(t, 2, fetcher, checkerFunc(allowAll))

	summary, err := sched.Run(context.Background(), domains)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Domains)
	assert.Equal(t, 5, summary.Written)
	assert.Equal(t, 4, summary.OK)
	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, summary.RobotsDisallowed)
	assert.Greater(t, summary.Elapsed, time.Duration(0))

	records := readResults(t, path)
	require.Len(t, records, 5)

	seen := make(map[string]int)
	for _, r := range records {
		seen[r.Domain]++
	}
	for _, d := range domains {
		assert.Equal(t, 1, seen[d], "expected exactly one record for %s", d)
	}

	for _, r := range records {
		if r.Domain == "c.example" {
			require.NotNil(t, r.Error)
			assert.Equal(t, "Timeout after 12s", *r.Error)
			assert.Zero(t, r.HTTPStatus)
		} else {
			assert.Nil(t, r.Error)
			assert.Equal(t, 200, r.HTTPStatus)
			assert.Equal(t, "https", r.Method)
		}
	}
}

func TestRunRobotsDisallowedSkipsFetch(t *testing.T) {
	var mu sync.Mutex
	fetched := make(map[string]int)
	fetcher := fetcherFunc(func(_ context.Context, domain, _ string) *fetch.Outcome {
		mu.Lock()
		fetched[domain]++
		mu.Unlock()
		return successOutcome(domain)
	})
	checker := checkerFunc(func(_ context.Context, domain, _, _ string) robots.Decision {
		return robots.Decision{Allowed: domain != "blocked.example"}
	})
	sched, path := newTestScheduler(t, 2, fetcher, checker)

	summary, err := sched.Run(context.Background(), []string{"open.example", "blocked.example"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.OK)
	assert.Equal(t, 1, summary.RobotsDisallowed)
	assert.Zero(t, summary.Failed)

	mu.Lock()
	assert.Equal(t, map[string]int{"open.example": 1}, fetched)
	mu.Unlock()

	records := readResults(t, path)
	require.Len(t, records, 2)
	for _, r := range records {
		if r.Domain != "blocked.example" {
			continue
		}
		require.NotNil(t, r.Error)
		assert.Equal(t, "robots_disallowed", *r.Error)
		assert.Equal(t, "https://blocked.example/", r.URL)
		assert.Equal(t, "Disallowed by robots.txt - respecting site's crawl policy", r.Note)
		assert.Zero(t, r.HTTPStatus)
	}
}

func TestRunRecoversPipelinePanic(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, domain, _ string) *fetch.Outcome {
		if domain == "bad.example" {
			panic("extractor exploded")
		}
		return successOutcome(domain)
	})
	sched, path := newTestScheduler(t, 2, fetcher, checkerFunc(allowAll))

	summary, err := sched.Run(context.Background(), []string{"good.example", "bad.example"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 1, summary.OK)
	assert.Equal(t, 1, summary.Failed)

	records := readResults(t, path)
	require.Len(t, records, 2)
	for _, r := range records {
		if r.Domain != "bad.example" {
			continue
		}
		require.NotNil(t, r.Error)
		assert.Equal(t, "Unexpected error: extractor exploded", *r.Error)
	}
}

func TestRunCancellationStopsWithoutPartialRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := fetcherFunc(func(_ context.Context, domain, _ string) *fetch.Outcome {
		if domain == "second.example" {
			cancel()
			return &fetch.Outcome{
				Err:      &fetch.ClassifiedError{Kind: fetch.KindCanceled, Message: "canceled"},
				Protocol: "https",
			}
		}
		return successOutcome(domain)
	})
	sched, path := newTestScheduler(t, 1, fetcher, checkerFunc(allowAll))

	summary, err := sched.Run(ctx, []string{"first.example", "second.example", "third.example"})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 3, summary.Domains)
	assert.Equal(t, 1, summary.Written)

	records := readResults(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, "first.example", records[0].Domain)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := fetcherFunc(func(_ context.Context, domain, _ string) *fetch.Outcome {
		t.Errorf("unexpected fetch for %s", domain)
		return successOutcome(domain)
	})
	sched, path := newTestScheduler(t, 2, fetcher, checkerFunc(allowAll))

	summary, err := sched.Run(ctx, []string{"a.example", "b.example"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Written)
	assert.Empty(t, readResults(t, path))
}

func TestRunBoundsInFlightPipelines(t *testing.T) {
	var mu sync.Mutex
	inflight, maxInflight := 0, 0
	fetcher := fetcherFunc(func(_ context.Context, domain, _ string) *fetch.Outcome {
		mu.Lock()
		inflight++
		if inflight > maxInflight {
			maxInflight = inflight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inflight--
		mu.Unlock()
		return successOutcome(domain)
	})
	sched, _ := newTestScheduler(t, 3, fetcher, checkerFunc(allowAll))

	domains := make([]string, 9)
	for i := range domains {
		domains[i] = strings.Repeat("x", i+1) + ".example"
	}
	summary, err := sched.Run(context.Background(), domains)
	require.NoError(t, err)
	assert.Equal(t, 9, summary.Written)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxInflight, 3)
	assert.GreaterOrEqual(t, maxInflight, 2)
}

func TestRunStreamsResultsInCompletionOrder(t *testing.T) {
	delays := map[string]time.Duration{
		"slow.example":   80 * time.Millisecond,
		"quick.example":  0,
		"medium.example": 40 * time.Millisecond,
	}
	fetcher := fetcherFunc(func(_ context.Context, domain, _ string) *fetch.Outcome {
		time.Sleep(delays[domain])
		return successOutcome(domain)
	})
	sched, path := newTestScheduler(t, 3, fetcher, checkerFunc(allowAll))

	_, err := sched.Run(context.Background(), []string{"slow.example", "quick.example", "medium.example"})
	require.NoError(t, err)

	records := readResults(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, "quick.example", records[0].Domain)
	assert.Equal(t, "medium.example", records[1].Domain)
	assert.Equal(t, "slow.example", records[2].Domain)
}

func TestRunHonoursCrawlDelay(t *testing.T) {
	checker := checkerFunc(func(_ context.Context, _, _, _ string) robots.Decision {
		return robots.Decision{Allowed: true, CrawlDelay: 60 * time.Millisecond}
	})
	fetcher := fetcherFunc(func(_ context.Context, domain, _ string) *fetch.Outcome {
		return successOutcome(domain)
	})
	sched, _ := newTestScheduler(t, 1, fetcher, checker)

	start := time.Now()
	summary, err := sched.Run(context.Background(), []string{"slowpoke.example"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Written)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRunAppliesGlobalThrottle(t *testing.T) {
	pol := policy.Default()
	pol.HTTP.Concurrency = 11
	pol.HTTP.GlobalRPS = 10

	path := filepath.Join(t.TempDir(), "results.ndjson")
	sink, err := NewSink(path)
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })

	fetcher := fetcherFunc(func(_ context.Context, domain, _ string) *fetch.Outcome {
		return successOutcome(domain)
	})
	rotator := useragent.New(false, false, "test-agent")
	sched := NewScheduler(pol, fetcher, checkerFunc(allowAll), rotator, sink)

	domains := make([]string, 11)
	for i := range domains {
		domains[i] = strings.Repeat("d", i+1) + ".example"
	}

	// Burst covers the first ten; the eleventh has to wait one token.
	start := time.Now()
	summary, err := sched.Run(context.Background(), domains)
	require.NoError(t, err)

	assert.Equal(t, 11, summary.Written)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRunUsesOneUserAgentPerDomain(t *testing.T) {
	var mu sync.Mutex
	robotsUA := make(map[string]string)
	fetchUA := make(map[string]string)

	checker := checkerFunc(func(_ context.Context, domain, _, userAgent string) robots.Decision {
		mu.Lock()
		robotsUA[domain] = userAgent
		mu.Unlock()
		return robots.Decision{Allowed: true}
	})
	fetcher := fetcherFunc(func(_ context.Context, domain, userAgent string) *fetch.Outcome {
		mu.Lock()
		fetchUA[domain] = userAgent
		mu.Unlock()
		return successOutcome(domain)
	})

	pol := policy.Default()
	pol.HTTP.Concurrency = 2

	path := filepath.Join(t.TempDir(), "results.ndjson")
	sink, err := NewSink(path)
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })

	sched := NewScheduler(pol, fetcher, checker, useragent.New(true, true, "fallback"), sink)

	domains := []string{"a.example", "b.example", "c.example", "d.example"}
	_, err = sched.Run(context.Background(), domains)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	for _, d := range domains {
		require.NotEmpty(t, robotsUA[d])
		assert.Equal(t, robotsUA[d], fetchUA[d], "robots and fetch must share one user-agent for %s", d)
	}
}

func TestRunWithNoDomains(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, domain, _ string) *fetch.Outcome {
		return successOutcome(domain)
	})
	sched, path := newTestScheduler(t, 4, fetcher, checkerFunc(allowAll))

	summary, err := sched.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, summary.Domains)
	assert.Zero(t, summary.Written)
	assert.Empty(t, readResults(t, path))
}

func TestSummaryDomainsPerSecond(t *testing.T) {
	s := Summary{Written: 100, Elapsed: 4 * time.Second}
	assert.InDelta(t, 25.0, s.DomainsPerSecond(), 0.001)

	assert.Zero(t, Summary{Written: 10}.DomainsPerSecond())
}
