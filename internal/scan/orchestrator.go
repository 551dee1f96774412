// Package scan orchestrates full bookmark scans: it enumerates the bookmark
// tree, drives the link and safety checks in limiter-gated batches, tracks
// progress and delivers results over the event bus. One scan runs at a time.
package scan

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/blocklist"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/linkcheck"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/safety"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/bookmarks"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/cache"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/limiter"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/logger"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/serrors"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/urlutil"
)

// Batch and delivery defaults.
const (
	DefaultBatchSize    = 10
	DefaultBatchDelay   = 100 * time.Millisecond
	DefaultResultBuffer = 25
	DefaultResultFlush  = 500 * time.Millisecond
)

// State is the orchestrator lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Checks selects which verdicts a scan produces. Disabling one leaves the
// corresponding result unknown.
type Checks struct {
	Link   bool
	Safety bool
}

// Status is the externally visible scan state.
type Status struct {
	IsScanning bool  `json:"isScanning"`
	Scanned    int   `json:"scanned"`
	Total      int   `json:"total"`
	State      State `json:"state"`
}

// StartRequest parameterizes one scan.
type StartRequest struct {
	// Bookmarks is an explicit list to scan. Empty means the provider's full
	// tree.
	Bookmarks []domain.Bookmark
	// BypassCache purges both result namespaces first (rescan mode).
	BypassCache bool
}

// Options wires an Orchestrator.
type Options struct {
	Provider    bookmarks.Provider
	Links       *linkcheck.Checker
	Safety      *safety.Evaluator
	Blocklist   *blocklist.Aggregator
	Limiter     *limiter.Limiter
	Events      *Events
	LinkCache   *cache.Cache[domain.LinkResult]
	SafetyCache *cache.Cache[domain.SafetyResult]
	// Checks defaults to both enabled when zero.
	Checks *Checks
	// BatchSize and BatchDelay shape the batch loop. Defaults 10 and 100ms.
	BatchSize  int
	BatchDelay time.Duration
	// ResultBuffer results, or ResultFlush elapsed, triggers a scan-results
	// delivery. Defaults 25 and 500ms.
	ResultBuffer int
	ResultFlush  time.Duration
	// Validate overrides the URL validation policy. Defaults to
	// urlutil.Validate.
	Validate func(raw string) (*urlutil.Validated, error)
}

// Orchestrator runs at most one scan at a time. Cancellation is cooperative:
// the flag is read before each batch, in-flight bookmarks always drain.
type Orchestrator struct {
	provider    bookmarks.Provider
	links       *linkcheck.Checker
	safety      *safety.Evaluator
	blocklist   *blocklist.Aggregator
	limiter     *limiter.Limiter
	events      *Events
	linkCache   *cache.Cache[domain.LinkResult]
	safetyCache *cache.Cache[domain.SafetyResult]
	checks      Checks
	validate    func(raw string) (*urlutil.Validated, error)

	batchSize    int
	batchDelay   time.Duration
	resultBuffer int
	resultFlush  time.Duration

	mu        sync.Mutex
	state     State
	scanned   int
	total     int
	processed map[domain.BookmarkID]struct{}
	cancelled bool
}

// New creates an idle Orchestrator.
func New(options Options) *Orchestrator {
	checks := Checks{Link: true, Safety: true}
	if options.Checks != nil {
		checks = *options.Checks
	}
	if options.BatchSize <= 0 {
		options.BatchSize = DefaultBatchSize
	}
	if options.BatchDelay <= 0 {
		options.BatchDelay = DefaultBatchDelay
	}
	if options.ResultBuffer <= 0 {
		options.ResultBuffer = DefaultResultBuffer
	}
	if options.ResultFlush <= 0 {
		options.ResultFlush = DefaultResultFlush
	}
	if options.Validate == nil {
		options.Validate = urlutil.Validate
	}

	return &Orchestrator{
		provider:     options.Provider,
		links:        options.Links,
		safety:       options.Safety,
		blocklist:    options.Blocklist,
		limiter:      options.Limiter,
		events:       options.Events,
		linkCache:    options.LinkCache,
		safetyCache:  options.SafetyCache,
		checks:       checks,
		validate:     options.Validate,
		batchSize:    options.BatchSize,
		batchDelay:   options.BatchDelay,
		resultBuffer: options.ResultBuffer,
		resultFlush:  options.ResultFlush,
		state:        StateIdle,
		processed:    make(map[domain.BookmarkID]struct{}),
	}
}

// Start begins a scan and returns the number of bookmarks queued. A scan
// already in progress yields serrors.ErrConflict; it is a rejection, not a
// queue. The scan itself runs on a background goroutine detached from the
// caller's context cancellation.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (int, error) {
	if !o.checks.Link && !o.checks.Safety {
		return 0, serrors.With(serrors.ErrBadRequest, "both check types are disabled")
	}

	items := req.Bookmarks
	if len(items) == 0 {
		roots, err := o.provider.Tree(ctx)
		if err != nil {
			return 0, serrors.Wrap(serrors.ErrInternal, err, "could not enumerate bookmarks")
		}

		items = bookmarks.Flatten(roots)
	}

	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()

		return 0, serrors.With(serrors.ErrConflict, "a scan is already running")
	}

	o.state = StateRunning
	o.scanned = 0
	o.total = len(items)
	o.processed = make(map[domain.BookmarkID]struct{})
	o.cancelled = false
	o.mu.Unlock()

	if req.BypassCache {
		if err := o.linkCache.Purge(ctx); err != nil {
			logger.Warn(ctx, "could not purge link cache", zap.Error(err))
		}
		if err := o.safetyCache.Purge(ctx); err != nil {
			logger.Warn(ctx, "could not purge safety cache", zap.Error(err))
		}
	}

	o.safety.ResetDisabled()

	go o.run(context.WithoutCancel(ctx), items, req.BypassCache)

	return len(items), nil
}

// Stop requests cooperative cancellation. In-flight bookmarks drain; no
// further batch starts. Returns false when no scan is running.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateRunning {
		return false
	}

	o.cancelled = true

	return true
}

// Status reports the current scan state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	return Status{
		IsScanning: o.state == StateRunning,
		Scanned:    o.scanned,
		Total:      o.total,
		State:      o.state,
	}
}

func (o *Orchestrator) run(ctx context.Context, items []domain.Bookmark, bypassCache bool) {
	o.events.Publish(Event{Type: EventScanStarted, Summary: &Summary{Total: len(items)}})

	// A stale or empty blocklist would race every safety check into spurious
	// verdicts; load it first and let observers see why the scan is waiting.
	if err := o.blocklist.EnsureFresh(ctx, func(current, total int, source string) {
		o.events.Publish(Event{Type: EventDBProgress, DBProgress: &DBProgress{
			Current: current,
			Total:   total,
			Source:  source,
		}})
	}); err != nil {
		logger.Warn(ctx, "blocklist refresh failed, safety checks may degrade", zap.Error(err))
	}

	results := make(chan BookmarkResult, o.resultBuffer)

	var deliveryDone sync.WaitGroup
	deliveryDone.Add(1)
	go func() {
		defer deliveryDone.Done()
		o.deliver(results)
	}()

	for start := 0; start < len(items); start += o.batchSize {
		if o.isCancelled() {
			break
		}

		end := min(start+o.batchSize, len(items))

		var wg sync.WaitGroup
		for _, bm := range items[start:end] {
			wg.Add(1)
			go func(bm domain.Bookmark) {
				defer wg.Done()
				o.process(ctx, bm, bypassCache, results)
			}(bm)
		}
		wg.Wait()

		if end < len(items) && !o.isCancelled() {
			time.Sleep(o.batchDelay)
		}
	}

	close(results)
	deliveryDone.Wait()

	o.mu.Lock()
	cancelled := o.cancelled
	if cancelled {
		o.state = StateCancelled
	} else {
		o.state = StateCompleted
	}
	summary := Summary{Scanned: o.scanned, Total: o.total, Cancelled: cancelled}
	o.mu.Unlock()

	if cancelled {
		o.events.Publish(Event{Type: EventScanCancelled, Summary: &summary})
	} else {
		o.events.Publish(Event{Type: EventScanComplete, Summary: &summary})
	}

	logger.Info(ctx, "scan finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("total", summary.Total),
		zap.Bool("cancelled", cancelled))
}

// process checks one bookmark and always counts it exactly once, whatever
// goes wrong. The link check runs first so the safety heuristics can reuse
// its redirect trace instead of probing again; each check acquires its own
// limiter slot, so the batch stays bounded by the limiter either way.
func (o *Orchestrator) process(ctx context.Context, bm domain.Bookmark, bypassCache bool, results chan<- BookmarkResult) {
	o.mu.Lock()
	if _, dup := o.processed[bm.ID]; dup {
		o.mu.Unlock()

		return
	}
	o.processed[bm.ID] = struct{}{}
	o.mu.Unlock()

	o.events.Publish(Event{Type: EventChecking, Checking: &Checking{
		BookmarkID: bm.ID,
		Status:     domain.LinkStatusChecking,
	}})

	link := domain.LinkResult{Status: domain.LinkStatusUnknown}
	saf := domain.SafetyResult{Status: domain.SafetyStatusUnknown, Sources: []string{}}

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "bookmark check panicked",
				zap.String("bookmark", string(bm.ID)),
				zap.Any("panic", r))

			// conservative fallback verdicts, bookmark still counts
			link = domain.LinkResult{Status: domain.LinkStatusDead}
			saf = domain.SafetyResult{Status: domain.SafetyStatusUnknown, Sources: []string{}}
		}

		o.finish(bm, link, saf, results)
	}()

	v, err := o.validate(bm.URL)
	if err != nil {
		logger.Debug(ctx, "bookmark URL rejected",
			zap.String("bookmark", string(bm.ID)),
			zap.Error(err))

		// validation rejections are terminal: dead + unsafe, cached under the
		// raw URL so a rescan short-circuits without re-validating
		link, saf = urlutil.RejectionVerdicts(err)
		if err := o.linkCache.Put(ctx, bm.URL, link); err != nil {
			logger.Warn(ctx, "could not cache rejected link verdict", zap.Error(err))
		}
		if err := o.safetyCache.Put(ctx, bm.URL, saf); err != nil {
			logger.Warn(ctx, "could not cache rejected safety verdict", zap.Error(err))
		}

		return
	}

	if o.checks.Link {
		if err := o.limiter.Do(ctx, func() error {
			link = o.links.Check(ctx, v, bypassCache)

			return nil
		}); err != nil {
			link = domain.LinkResult{Status: domain.LinkStatusDead}
		}
	}

	if o.checks.Safety {
		if err := o.limiter.Do(ctx, func() error {
			saf = o.safety.Evaluate(ctx, v, bypassCache, &link)

			return nil
		}); err != nil {
			saf = domain.SafetyResult{Status: domain.SafetyStatusUnknown, Sources: []string{}}
		}
	}
}

// finish increments the progress counter, emits the per-bookmark progress
// event and hands the result to the delivery goroutine.
func (o *Orchestrator) finish(bm domain.Bookmark, link domain.LinkResult, saf domain.SafetyResult, results chan<- BookmarkResult) {
	o.mu.Lock()
	o.scanned++
	progress := Progress{Scanned: o.scanned, Total: o.total, BookmarkID: bm.ID}
	// published under the lock so observers see the counter strictly
	// increasing; Publish never blocks
	o.events.Publish(Event{Type: EventScanProgress, Progress: &progress})
	o.mu.Unlock()

	results <- BookmarkResult{Bookmark: bm, Link: link, Safety: saf}
}

// deliver batches results: a full buffer or the flush interval, whichever
// comes first, triggers one scan-results event.
func (o *Orchestrator) deliver(results <-chan BookmarkResult) {
	buf := make([]BookmarkResult, 0, o.resultBuffer)

	flush := func() {
		if len(buf) == 0 {
			return
		}

		batch := make([]BookmarkResult, len(buf))
		copy(batch, buf)
		o.events.Publish(Event{Type: EventScanResults, Results: batch})
		buf = buf[:0]
	}

	ticker := time.NewTicker(o.resultFlush)
	defer ticker.Stop()

	for {
		select {
		case r, ok := <-results:
			if !ok {
				flush()

				return
			}

			buf = append(buf, r)
			if len(buf) >= o.resultBuffer {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (o *Orchestrator) isCancelled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.cancelled
}
