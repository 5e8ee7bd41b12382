package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/vladbalan/phidi/internal/crawl"
	"github.com/vladbalan/phidi/internal/domains"
	"github.com/vladbalan/phidi/internal/fetch"
	"github.com/vladbalan/phidi/internal/notify"
	"github.com/vladbalan/phidi/internal/observability"
	"github.com/vladbalan/phidi/internal/policy"
	"github.com/vladbalan/phidi/internal/robots"
	"github.com/vladbalan/phidi/internal/useragent"
)

func main() {
	// Load .env files - .env.local takes priority for development
	godotenv.Load(".env.local", ".env")

	app := &cli.App{
		Name:  "crawler",
		Usage: "crawl domains and extract company contact data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "delimited file of domains to crawl",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "NDJSON output path",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "config",
				Value: "configs/crawl.policy.yaml",
				Usage: "base policy file",
			},
			&cli.StringFlag{
				Name:  "profile",
				Usage: "policy profile overlay from configs/profiles/<name>.yaml",
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"c"},
				Usage:   "wave size override",
			},
			&cli.Float64Flag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "per-request timeout override in seconds",
			},
			&cli.StringFlag{
				Name:  "user-agent",
				Usage: "fixed user-agent override, disables rotation",
			},
			&cli.BoolFlag{
				Name:  "no-robots",
				Usage: "skip robots.txt compliance checks",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: getEnvWithDefault("CRAWLER_LOG_LEVEL", getEnvWithDefault("LOG_LEVEL", "info")),
				Usage: "log level: trace, debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: getEnvWithDefault("LOG_FORMAT", "json"),
				Usage: "log format: json or pretty",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Crawler failed")
	}
}

func run(c *cli.Context) error {
	setupLogging(c.String("log-level"), c.String("log-format"))

	runID := uuid.New().String()
	log.Logger = log.Logger.With().Str("run_id", runID).Logger()

	env := getEnvWithDefault("APP_ENV", "development")

	// Initialise Sentry for error tracking and performance monitoring
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: env,
			TracesSampleRate: func() float64 {
				if env == "production" {
					return 0.1 // 10% sampling in production
				}
				return 1.0 // 100% sampling in development
			}(),
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise Sentry")
		} else {
			sentry.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetTag("run_id", runID)
			})
			log.Info().Str("environment", env).Msg("Sentry initialised successfully")
			defer sentry.Flush(2 * time.Second)
		}
	}

	prov, err := observability.Init(c.Context, observability.Config{
		Enabled:        getEnvWithDefault("OBSERVABILITY_ENABLED", "true") == "true",
		ServiceName:    "phidi-crawler",
		Environment:    env,
		RunID:          runID,
		OTLPEndpoint:   strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTLPHeaders:    parseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		OTLPInsecure:   getEnvWithDefault("OTEL_EXPORTER_OTLP_INSECURE", "false") == "true",
		MetricsAddress: getEnvWithDefault("METRICS_ADDR", ":9090"),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialise observability")
	}
	if prov != nil {
		defer func() {
			if err := prov.Shutdown(context.Background()); err != nil {
				log.Warn().Err(err).Msg("Observability shutdown failed")
			}
		}()

		metricsSrv := startMetricsServer(prov)
		defer stopMetricsServer(metricsSrv)
	}

	list, err := domains.Load(c.String("input"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Fatal error: %v", err), 1)
	}

	pol := policy.Resolve(c.String("config"), c.String("profile"))
	if v := c.Int("concurrency"); c.IsSet("concurrency") && v > 0 {
		pol.HTTP.Concurrency = v
	}
	if v := c.Float64("timeout"); c.IsSet("timeout") && v > 0 {
		pol.HTTP.TimeoutSeconds = v
	}
	if c.IsSet("user-agent") {
		pol.HTTP.UserAgent = c.String("user-agent")
		pol.Rotation.Enabled = false
	}
	if c.Bool("no-robots") {
		pol.Robots.Enabled = false
	}

	rotator := useragent.New(pol.Rotation.Enabled, pol.Rotation.Identify, pol.HTTP.UserAgent)

	uaMode := pol.HTTP.UserAgent
	if pol.Rotation.Enabled {
		uaMode = fmt.Sprintf("rotating (%d variants)", len(rotator.Pool()))
	}
	log.Info().
		Int("domains", len(list)).
		Int("concurrency", pol.HTTP.Concurrency).
		Float64("timeout_seconds", pol.HTTP.TimeoutSeconds).
		Str("user_agent", uaMode).
		Bool("robots", pol.Robots.Enabled).
		Str("output", c.String("output")).
		Msg("Crawler starting")

	engine := fetch.New(pol, prov)
	checker := robots.NewChecker(engine, pol.Robots)

	sink, err := crawl.NewSink(c.String("output"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Fatal error: %v", err), 1)
	}
	defer sink.Close()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Info().Msg("Interrupt received, cancelling crawl")
		cancel()
	}()

	scheduler := crawl.NewScheduler(pol, engine, checker, rotator, sink)
	summary, err := scheduler.Run(ctx, list)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Int("written", summary.Written).Msg("Crawl interrupted")
			return cli.Exit("Interrupted", 130)
		}
		sentry.CaptureException(err)
		return cli.Exit(fmt.Sprintf("Fatal error: %v", err), 1)
	}

	log.Info().
		Int("domains", summary.Domains).
		Int("ok", summary.OK).
		Int("failed", summary.Failed).
		Int("robots_disallowed", summary.RobotsDisallowed).
		Int("written", summary.Written).
		Dur("elapsed", summary.Elapsed).
		Float64("domains_per_sec", summary.DomainsPerSecond()).
		Str("output", c.String("output")).
		Msg("Crawl finished")

	slack := notify.NewSlack(os.Getenv("SLACK_BOT_TOKEN"), os.Getenv("SLACK_CHANNEL_ID"))
	slack.NotifyRunComplete(c.Context, notify.RunReport{
		RunID:      runID,
		Summary:    summary,
		OutputPath: c.String("output"),
	})

	return nil
}

// setupLogging configures the logging system
func setupLogging(levelName, format string) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	if format == "pretty" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Str("service", "phidi-crawler").
			Logger()
	}
}

// startMetricsServer serves /metrics and /health in the background.
func startMetricsServer(prov *observability.Providers) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prov.MetricsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: prov.Config.MetricsAddress, Handler: mux}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Msg("Metrics server stopped")
		}
	}()
	return server
}

func stopMetricsServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Metrics server shutdown failed")
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseOTLPHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return headers
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}

		headers[key] = value
	}

	return headers
}
