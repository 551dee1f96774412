package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/riverqueue/river"
	"github.com/spf13/cobra"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"riverqueue.com/riverui"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/api"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/api/v1handler"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/blocklist"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/config"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/linkcheck"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/safety"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/scan"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/worker"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/bookmarks"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/cache"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/limiter"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/logger"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/metrics"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/reputation"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/reputation/multiscan"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/reputation/safebrowsing"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/storage"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/storage/postgres"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/urlutil"
)

// engine bundles everything the serve command assembles before the HTTP
// server goes up.
type engine struct {
	orchestrator *scan.Orchestrator
	links        *linkcheck.Checker
	safety       *safety.Evaluator
	blocklist    *blocklist.Aggregator
	events       *scan.Events
	linkCache    *cache.Cache[domain.LinkResult]
	safetyCache  *cache.Cache[domain.SafetyResult]
	metrics      *metrics.Engine
	meter        metric.MeterProvider
}

// blocklistSources converts the config feed table, falling back to the
// built-in defaults when the config names none.
func blocklistSources(cfg *config.Config) []blocklist.Source {
	if len(cfg.Blocklist.Sources) == 0 {
		return blocklist.DefaultSources()
	}

	sources := make([]blocklist.Source, 0, len(cfg.Blocklist.Sources))
	for _, s := range cfg.Blocklist.Sources {
		sources = append(sources, blocklist.Source{
			Name:   s.Name,
			URL:    s.URL,
			Format: blocklist.Format(s.Format),
		})
	}

	return sources
}

// reputationClients builds the configured providers. A provider with no API
// key is simply not consulted.
func reputationClients(cfg *config.Config) []reputation.Client {
	var clients []reputation.Client

	if cfg.Safety.SafeBrowsingAPIKey != "" {
		clients = append(clients, safebrowsing.New(safebrowsing.Options{
			Name:     "Google Safe Browsing",
			APIKey:   cfg.Safety.SafeBrowsingAPIKey,
			Endpoint: cfg.Safety.SafeBrowsingEndpoint,
		}))
	}

	if cfg.Safety.VirusTotalAPIKey != "" {
		clients = append(clients, multiscan.New(multiscan.Options{
			Name:    "VirusTotal",
			APIKey:  cfg.Safety.VirusTotalAPIKey,
			BaseURL: cfg.Safety.VirusTotalBaseURL,
		}))
	}

	return clients
}

// setupEngine wires caches, blocklist, checkers and the orchestrator on top
// of the storage layer. Previously cached results are loaded up front so
// restarts don't forget a week of verdicts.
func setupEngine(ctx context.Context, cfg *config.Config, strg *postgres.PgSQL) *engine {
	linkCache := cache.New[domain.LinkResult](cache.Options{
		Namespace: storage.NamespaceLink,
		Storage:   strg,
		TTL:       cfg.Cache.TTL,
	})
	safetyCache := cache.New[domain.SafetyResult](cache.Options{
		Namespace: storage.NamespaceSafety,
		Storage:   strg,
		TTL:       cfg.Cache.TTL,
	})

	if err := linkCache.Load(ctx); err != nil {
		logger.Fatal(ctx, "could not load link cache", zap.Error(err))
	}
	if err := safetyCache.Load(ctx); err != nil {
		logger.Fatal(ctx, "could not load safety cache", zap.Error(err))
	}
	logger.Info(ctx, "result caches loaded",
		zap.Int("links", linkCache.Len()),
		zap.Int("safety", safetyCache.Len()))

	aggregator := blocklist.New(blocklist.Options{
		Sources:       blocklistSources(cfg),
		SourceTimeout: cfg.Blocklist.SourceTimeout,
		Storage:       strg,
	})

	links := linkcheck.New(linkcheck.Options{
		Cache:   linkCache,
		Timeout: cfg.Checker.Timeout,
	})
	evaluator := safety.New(safety.Options{
		Cache:     safetyCache,
		Blocklist: aggregator,
		Clients:   reputationClients(cfg),
	})

	events := scan.NewEvents()

	exp, err := otelprom.New(otelprom.WithRegisterer(prometheus.DefaultRegisterer))
	if err != nil {
		logger.Fatal(ctx, "could not create otel exporter", zap.Error(err))
	}
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	engineMetrics, err := metrics.NewEngine(meterProvider)
	if err != nil {
		logger.Fatal(ctx, "could not create engine metrics", zap.Error(err))
	}

	orchestrator := scan.New(scan.Options{
		Provider:     bookmarks.NewFileProvider(cfg.Bookmarks.FilePath),
		Links:        links,
		Safety:       evaluator,
		Blocklist:    aggregator,
		Limiter:      limiter.New(cfg.Checker.MaxConcurrent),
		Events:       events,
		LinkCache:    linkCache,
		SafetyCache:  safetyCache,
		BatchSize:    cfg.Scan.BatchSize,
		BatchDelay:   cfg.Scan.BatchDelay,
		ResultBuffer: cfg.Scan.ResultBuffer,
		ResultFlush:  cfg.Scan.ResultFlush,
		Validate:     urlutil.Validate,
	})

	return &engine{
		orchestrator: orchestrator,
		links:        links,
		safety:       evaluator,
		blocklist:    aggregator,
		events:       events,
		linkCache:    linkCache,
		safetyCache:  safetyCache,
		metrics:      engineMetrics,
		meter:        meterProvider,
	}
}

// setupJobsUI builds the River UI handler for the background job dashboard.
// The dashboard is optional; failure to build it is logged and skipped.
func setupJobsUI(ctx context.Context, riverClient *river.Client[pgx.Tx], dbPool *pgxpool.Pool) http.Handler {
	ui, err := riverui.NewServer(&riverui.ServerOpts{
		Client: riverClient,
		DB:     dbPool,
		Logger: slog.New(zapslog.NewHandler(logger.Get(ctx).Core())),
		Prefix: "/riverui",
	})
	if err != nil {
		logger.Warn(ctx, "could not create river UI", zap.Error(err))

		return nil
	}

	go func() {
		if err := ui.Start(ctx); err != nil {
			logger.Warn(ctx, "could not start river UI services", zap.Error(err))
		}
	}()

	return ui
}

func setupServer(ctx context.Context,
	cfg *config.Config,
	eng *engine,
	strg *postgres.PgSQL,
	jobsUI http.Handler) func(ctx context.Context) {
	opts := api.NewOptions(cfg)
	opts.MeterProvider = eng.meter
	opts.JobsUI = jobsUI

	server, err := api.NewServer(api.Deps{
		Deps: v1handler.Deps{
			Orchestrator: eng.orchestrator,
			Links:        eng.links,
			Safety:       eng.safety,
			Blocklist:    eng.blocklist,
			Events:       eng.events,
			Storage:      strg,
			LinkCache:    eng.linkCache,
			SafetyCache:  eng.safetyCache,
			Metrics:      eng.metrics,
		},
	}, opts)
	if err != nil {
		logger.Fatal(ctx, "could not create webserver", zap.Error(err))
	}

	go func() {
		logger.Info(ctx, "starting webserver...")
		if err := server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "could not start webserver", zap.Error(err))
			}
		}
	}()

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping webserver...")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(ctx, "could not stop webserver", zap.Error(err))
		}
	}
}

func serveCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts API server and background workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

			strg, closeStrg := getPostgres(ctx, cfg)
			defer closeStrg()

			eng := setupEngine(ctx, cfg, strg)

			riverClient, err := worker.Start(ctx, strg.Pool, eng.blocklist, eng.events, eng.metrics)
			if err != nil {
				logger.Fatal(ctx, "could not start background workers", zap.Error(err))
			}

			jobsUI := setupJobsUI(ctx, riverClient, strg.Pool)

			stopWebserver := setupServer(ctx, cfg, eng, strg, jobsUI)

			// wait for interrupt
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()

			stopWebserver(shutdownCtx)

			logger.Info(shutdownCtx, "stopping background workers...")
			if err := riverClient.Stop(shutdownCtx); err != nil {
				logger.Error(shutdownCtx, "could not stop background workers", zap.Error(err))
			}
		},
	}

	return cmd
}
