package crawl

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vladbalan/phidi/internal/extract"
	"github.com/vladbalan/phidi/internal/fetch"
	"github.com/vladbalan/phidi/internal/observability"
	"github.com/vladbalan/phidi/internal/policy"
	"github.com/vladbalan/phidi/internal/robots"
	"github.com/vladbalan/phidi/internal/useragent"
)

// Fetcher runs the protocol-fallback fetch state machine for one domain.
type Fetcher interface {
	Fetch(ctx context.Context, domain, userAgent string) *fetch.Outcome
}

// RobotsChecker answers whether a path on a domain may be crawled.
type RobotsChecker interface {
	Check(ctx context.Context, domain, path, userAgent string) robots.Decision
}

// Scheduler runs domain pipelines in consecutive waves of the configured
// concurrency and streams each result to the sink as its pipeline
// completes. The wave barrier bounds in-flight work to one wave.
type Scheduler struct {
	policy  policy.Policy
	fetcher Fetcher
	robots  RobotsChecker
	rotator *useragent.Rotator
	sink    *Sink
	limiter *rate.Limiter
}

// Summary reports the totals of one finished run.
type Summary struct {
	Domains          int
	OK               int
	Failed           int
	RobotsDisallowed int
	Written          int
	Elapsed          time.Duration
}

// DomainsPerSecond is the average write throughput over the whole run.
func (s Summary) DomainsPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Written) / s.Elapsed.Seconds()
}

// NewScheduler builds a Scheduler. The sink stays open after Run; closing
// it is the caller's job.
func NewScheduler(pol policy.Policy, fetcher Fetcher, checker RobotsChecker, rotator *useragent.Rotator, sink *Sink) *Scheduler {
	var limiter *rate.Limiter
	if pol.HTTP.GlobalRPS > 0 {
		burst := int(pol.HTTP.GlobalRPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(pol.HTTP.GlobalRPS), burst)
	}

	return &Scheduler{
		policy:  pol,
		fetcher: fetcher,
		robots:  checker,
		rotator: rotator,
		sink:    sink,
		limiter: limiter,
	}
}

// Run crawls every domain and returns the totals. Results are written in
// completion order, exactly one per domain. Cancelling ctx aborts
// in-flight pipelines without emitting their records and returns the
// context error alongside the partial summary.
func (s *Scheduler) Run(ctx context.Context, domains []string) (Summary, error) {
	started := time.Now()
	summary := Summary{Domains: len(domains)}

	waveSize := s.policy.HTTP.Concurrency
	if waveSize < 1 {
		waveSize = 1
	}
	totalWaves := (len(domains) + waveSize - 1) / waveSize

	var ok, failed, robotsBlocked, written int
	var writeErr, runErr error

	for start := 0; start < len(domains); start += waveSize {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		wave := domains[start:min(start+waveSize, len(domains))]
		waveStart := time.Now()

		// Buffered to the wave size so pipelines never block on the
		// writer; the writer drains in arrival order, which is
		// completion order.
		results := make(chan Result, len(wave))
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for r := range results {
				if err := s.sink.Write(r); err != nil {
					if writeErr == nil {
						writeErr = err
					}
					continue
				}
				written++
				switch {
				case r.Error == nil:
					ok++
				case *r.Error == robotsDisallowed:
					robotsBlocked++
				default:
					failed++
				}
			}
		}()

		g, waveCtx := errgroup.WithContext(ctx)
		for _, domain := range wave {
			domain := domain
			g.Go(func() error {
				r, emit := s.crawlDomain(waveCtx, domain)
				if !emit {
					return waveCtx.Err()
				}
				results <- r
				return nil
			})
		}
		waveErr := g.Wait()
		close(results)
		<-writerDone

		if waveErr != nil {
			runErr = waveErr
			break
		}
		if writeErr != nil {
			break
		}

		observability.RecordWave(ctx, time.Since(waveStart))
		log.Info().
			Int("wave", start/waveSize+1).
			Int("total_waves", totalWaves).
			Int("size", len(wave)).
			Int("written", written).
			Msg("Wave complete")
	}

	summary.OK = ok
	summary.Failed = failed
	summary.RobotsDisallowed = robotsBlocked
	summary.Written = written
	summary.Elapsed = time.Since(started)

	if writeErr != nil {
		return summary, fmt.Errorf("writing crawl result: %w", writeErr)
	}
	return summary, runErr
}

// crawlDomain runs one domain's pipeline: robots check, optional
// crawl-delay and global throttle, fetch, extract. It reports emit=false
// when the pipeline was interrupted, so cancelled work never produces a
// partial record. Panics are converted into an error record so one domain
// cannot abort the run.
func (s *Scheduler) crawlDomain(ctx context.Context, domain string) (res Result, emit bool) {
	ctx, span := observability.StartDomainSpan(ctx, domain)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("domain", domain).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in crawl pipeline")
			observability.RecordResult(ctx, "error")
			res, emit = panicResult(domain, r), true
		}
	}()

	if ctx.Err() != nil {
		return Result{}, false
	}

	userAgent := s.rotator.Next()

	decision := s.robots.Check(ctx, domain, "/", userAgent)
	if !decision.Allowed {
		log.Debug().Str("domain", domain).Msg("Blocked by robots.txt")
		observability.RecordResult(ctx, robotsDisallowed)
		return robotsResult(domain), true
	}
	if decision.CrawlDelay > 0 {
		if err := sleepCtx(ctx, decision.CrawlDelay); err != nil {
			return Result{}, false
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return Result{}, false
		}
	}

	outcome := s.fetcher.Fetch(ctx, domain, userAgent)
	observability.RecordFetch(ctx, observability.FetchMetrics{
		Protocol: outcome.Protocol,
		Outcome:  outcomeLabel(outcome),
		Duration: outcome.Elapsed,
	})

	if outcome.Err != nil {
		if outcome.Err.Kind == fetch.KindCanceled {
			return Result{}, false
		}
		observability.RecordResult(ctx, "error")
		return errorResult(domain, outcome), true
	}

	fields := extract.All(outcome.Result.HTML)
	observability.RecordResult(ctx, "ok")
	return successResult(domain, outcome.Result, fields), true
}

func outcomeLabel(out *fetch.Outcome) string {
	if out.Err != nil {
		return out.Err.Kind
	}
	return "success"
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
