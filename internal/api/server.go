// Package api configures and exposes the HTTP server, routes, metrics, docs
// and related middleware for the bookmark scan engine.
package api

import (
	_ "embed"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggest/swgui/v5emb"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/api/v1handler"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/config"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/controller"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/metrics"
)

// v1Spec contains the embedded OpenAPI specification for version 1 of the API.
//
//go:embed specs/v1.yaml
var v1Spec []byte

// Options holds configuration for the HTTP server and its dependencies.
// All durations are used to configure server timeouts, and zero values
// should be considered as using the defaults provided by net/http where applicable.
type Options struct {
	// SecPublicKey is the PEM-encoded RSA public key used to verify bearer
	// tokens. Empty disables authentication.
	SecPublicKey string

	// MeterProvider supplies the OpenTelemetry instruments. When nil, a
	// provider backed by the default Prometheus registerer is created.
	MeterProvider metric.MeterProvider

	// JobsUI, when set, is mounted at /riverui/ to expose the background job
	// dashboard.
	JobsUI http.Handler

	// Addr is the TCP address the server listens on, e.g. ":8080".
	Addr string
	// ReadTimeout is the maximum duration for reading the entire request, including the body.
	ReadTimeout time.Duration
	// ReadHeaderTimeout is the amount of time allowed to read request headers.
	ReadHeaderTimeout time.Duration
	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
	// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration
	// RequestTimeout is the timeout applied via http.TimeoutHandler to every
	// v1 endpoint except the event stream.
	RequestTimeout time.Duration
	// MaxHeaderBytes controls the maximum number of bytes the server
	// will read parsing the request header's keys and values, including the request line.
	MaxHeaderBytes int
	// MetricsPath is the HTTP path at which Prometheus metrics are served.
	MetricsPath string
}

// NewOptions constructs an Options value from the provided application configuration.
func NewOptions(cfg *config.Config) Options {
	return Options{
		SecPublicKey: cfg.JWT.PublicKey,

		Addr:              cfg.HTTP.Addr,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		RequestTimeout:    cfg.HTTP.RequestTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
		MetricsPath:       cfg.HTTP.MetricsPath,
	}
}

type Deps struct {
	v1handler.Deps
}

// NewServer wires up and returns a configured *http.Server using the provided Options.
// It sets up:
// - Prometheus metrics endpoint (MetricsPath)
// - OpenTelemetry metrics exporter (Prometheus) and per-route HTTP instruments
// - Embedded OpenAPI v1 spec and Swagger UI
// - v1 API routes and the server-sent event stream
// - pprof endpoints for profiling
// It also wraps the mux with CORS and logging middlewares and applies a request
// timeout to everything except the event stream, which stays open indefinitely.
func NewServer(deps Deps, opts Options) (*http.Server, error) {
	root := chi.NewRouter()

	// prometheus metrics server
	root.Handle(opts.MetricsPath, promhttp.Handler())

	// otel
	mp := opts.MeterProvider
	if mp == nil {
		exp, err := otelprom.New(otelprom.WithRegisterer(prometheus.DefaultRegisterer))
		if err != nil {
			return nil, fmt.Errorf("could not create otel exporter: %w", err)
		}
		mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	}
	httpMetrics, err := metrics.NewHTTP(mp)
	if err != nil {
		return nil, fmt.Errorf("could not create http metrics: %w", err)
	}

	// v1 specs file
	root.Get("/specs/v1.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(v1Spec)
	})
	// v1 api swagger playground
	root.Mount("/v1/docs/", v5emb.New(
		"Bookmark Scan Engine",
		"/specs/v1.yaml",
		"/v1/docs/",
	))

	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	auth, err := v1handler.WithAuth(opts.SecPublicKey)
	if err != nil {
		return nil, fmt.Errorf("could not create auth middleware: %w", err)
	}
	h := v1handler.New(deps.Deps)

	// v1 api, everything except the event stream behind the request timeout
	v1 := chi.NewRouter()
	v1.Use(auth)
	v1.Use(withMetrics(httpMetrics))
	h.Routes(v1)
	root.Mount("/v1", http.TimeoutHandler(v1, opts.RequestTimeout, `{"error":"request timed out"}`))

	// the event stream holds its connection open far past any request timeout
	root.With(auth, withMetrics(httpMetrics)).Get("/v1/events", h.EventStream)

	// background job dashboard
	if opts.JobsUI != nil {
		root.Mount("/riverui", opts.JobsUI)
	}

	// pprof
	root.Mount("/debug/pprof", controller.PprofMux())

	// cors
	handler := controller.WithCORS(root)

	// logger
	handler = controller.WithLogger(handler)

	return &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
		MaxHeaderBytes:    opts.MaxHeaderBytes,
	}, nil
}

// withMetrics records the per-route request counter and latency histogram.
func withMetrics(m *metrics.HTTP) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			attrs := metric.WithAttributes(
				attribute.String("route", route),
				attribute.String("method", r.Method),
				attribute.Int("status", ww.Status()),
			)
			m.Requests.Add(r.Context(), 1, attrs)
			m.Duration.Record(r.Context(), time.Since(start).Seconds(), attrs)
		})
	}
}
