package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/blocklist"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/scan"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/logger"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/metrics"
)

// refreshMaxAttempts bounds retries of a failed refresh; a feed outage fixes
// itself, hammering the mirrors does not.
const refreshMaxAttempts = 3

// refreshUniquePeriod deduplicates refresh jobs enqueued close together, e.g.
// a manual refresh racing the daily periodic one.
const refreshUniquePeriod = time.Hour

// BlocklistRefreshArgs is the payload of a blocklist refresh job. Force skips
// the same-calendar-day staleness check.
type BlocklistRefreshArgs struct {
	Force bool `json:"force"`
}

// Kind returns the River job kind used to register and dispatch the refresh worker.
func (args BlocklistRefreshArgs) Kind() string { return "BlocklistRefreshJob" }

// InsertOpts returns the River options that control how the job is enqueued.
// Uniqueness keeps at most one refresh in flight or queued at a time.
func (args BlocklistRefreshArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: refreshMaxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: refreshUniquePeriod,
			ByState: []rivertype.JobState{
				rivertype.JobStateAvailable,
				rivertype.JobStatePending,
				rivertype.JobStateRunning,
				rivertype.JobStateRetryable,
				rivertype.JobStateScheduled,
			},
		},
	}
}

// BlocklistRefreshWorker is a River worker that re-downloads the threat feeds
// and swaps the in-memory index. Per-source progress is published on the
// event bus so connected clients can render a progress bar.
type BlocklistRefreshWorker struct {
	river.WorkerDefaults[BlocklistRefreshArgs]

	aggregator *blocklist.Aggregator
	events     *scan.Events
	metrics    *metrics.Engine
}

// NewBlocklistRefreshWorker constructs a BlocklistRefreshWorker. The metrics
// set may be nil.
func NewBlocklistRefreshWorker(aggregator *blocklist.Aggregator,
	events *scan.Events,
	engineMetrics *metrics.Engine) *BlocklistRefreshWorker {
	return &BlocklistRefreshWorker{
		aggregator: aggregator,
		events:     events,
		metrics:    engineMetrics,
	}
}

// Work executes one refresh. A scheduled run that finds the index already
// fresh for today is a no-op; a forced run always re-downloads.
func (w *BlocklistRefreshWorker) Work(ctx context.Context, job *river.Job[BlocklistRefreshArgs]) error {
	ctx = logger.WithFields(ctx, zap.Int64("jobID", job.ID), zap.Bool("force", job.Args.Force))

	progress := func(current, total int, source string) {
		w.events.Publish(scan.Event{
			Type:       scan.EventDBProgress,
			DBProgress: &scan.DBProgress{Current: current, Total: total, Source: source},
		})
	}

	run := w.aggregator.EnsureFresh
	if job.Args.Force {
		run = w.aggregator.Refresh
	}

	// feed outages and storage hiccups both fix themselves; let River retry
	if err := run(ctx, progress); err != nil {
		logger.Error(ctx, "error refreshing blocklist", zap.Error(err))

		return fmt.Errorf("could not refresh blocklist: %w", err)
	}

	if w.metrics != nil {
		w.metrics.BlocklistEntries.Record(ctx, int64(w.aggregator.Size()))
	}

	logger.Info(ctx, "blocklist refreshed", zap.Int("entries", w.aggregator.Size()))

	return nil
}
