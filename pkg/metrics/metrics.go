// Package metrics holds the OpenTelemetry instruments shared by the HTTP
// layer and the scan engine.
package metrics

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// DefaultBuckets provides a common set of histogram buckets in seconds that can
// be reused across the application for latency metrics.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10} //nolint: gochecknoglobals

// HTTP bundles the request-level instruments recorded by the API middleware.
type HTTP struct {
	// Requests counts handled requests by route, method and status class.
	Requests metric.Int64Counter
	// Duration observes request handling time in seconds.
	Duration metric.Float64Histogram
}

// NewHTTP registers the HTTP instruments on the given provider.
func NewHTTP(provider metric.MeterProvider) (*HTTP, error) {
	meter := provider.Meter("bookmarks/api")

	requests, err := meter.Int64Counter("http_requests_total",
		metric.WithDescription("Number of handled HTTP requests"))
	if err != nil {
		return nil, fmt.Errorf("could not create request counter: %w", err)
	}

	duration, err := meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request handling time in seconds"),
		metric.WithExplicitBucketBoundaries(DefaultBuckets...))
	if err != nil {
		return nil, fmt.Errorf("could not create duration histogram: %w", err)
	}

	return &HTTP{Requests: requests, Duration: duration}, nil
}

// Engine bundles the scan-engine instruments.
type Engine struct {
	// Checks counts individual bookmark checks by kind and outcome.
	Checks metric.Int64Counter
	// CheckDuration observes how long one bookmark check takes in seconds.
	CheckDuration metric.Float64Histogram
	// BlocklistEntries reports the current size of the threat index.
	BlocklistEntries metric.Int64Gauge
}

// NewEngine registers the scan-engine instruments on the given provider.
func NewEngine(provider metric.MeterProvider) (*Engine, error) {
	meter := provider.Meter("bookmarks/engine")

	checks, err := meter.Int64Counter("scan_checks_total",
		metric.WithDescription("Number of bookmark checks by kind and outcome"))
	if err != nil {
		return nil, fmt.Errorf("could not create check counter: %w", err)
	}

	checkDuration, err := meter.Float64Histogram("scan_check_duration_seconds",
		metric.WithDescription("Duration of one bookmark check in seconds"),
		metric.WithExplicitBucketBoundaries(DefaultBuckets...))
	if err != nil {
		return nil, fmt.Errorf("could not create check duration histogram: %w", err)
	}

	blocklistEntries, err := meter.Int64Gauge("blocklist_entries",
		metric.WithDescription("Current number of entries in the threat index"))
	if err != nil {
		return nil, fmt.Errorf("could not create blocklist gauge: %w", err)
	}

	return &Engine{
		Checks:           checks,
		CheckDuration:    checkDuration,
		BlocklistEntries: blocklistEntries,
	}, nil
}
