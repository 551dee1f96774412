// Package blocklist downloads third-party threat feeds, aggregates them into
// a single lookup index and answers "which sources list this URL" queries for
// the safety evaluator. The index is rebuilt wholesale on refresh and swapped
// in atomically; lookups never block behind a refresh.
package blocklist

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/logger"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/serrors"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/storage"
)

// DefaultSourceTimeout bounds the download of a single feed.
const DefaultSourceTimeout = 60 * time.Second

// maxLineLength caps feed lines; URLhaus URLs can get long but anything past
// this is garbage.
const maxLineLength = 8 * 1024

// ProgressFunc receives one call per source as the refresh walks the feed
// table. current is 1-based.
type ProgressFunc func(current, total int, source string)

// Options configures an Aggregator.
type Options struct {
	// Sources is the feed table. Defaults to DefaultSources().
	Sources []Source
	// Client performs the feed downloads. Defaults to http.DefaultClient.
	Client *http.Client
	// SourceTimeout bounds each individual download. Defaults to
	// DefaultSourceTimeout.
	SourceTimeout time.Duration
	// Storage records the last successful refresh time.
	Storage storage.MetaStorage
	// Now overrides the clock, used by tests.
	Now func() time.Time
}

// Aggregator owns the blocklist index and its refresh lifecycle. Lookups read
// the current index through an atomic pointer; refreshes are single-flight.
type Aggregator struct {
	sources       []Source
	client        *http.Client
	sourceTimeout time.Duration
	storage       storage.MetaStorage
	now           func() time.Time

	index atomic.Pointer[index]

	mu       sync.Mutex
	inflight *flight
}

// flight is one in-progress refresh. err is written before done is closed, so
// coalesced waiters observe the awaited refresh's outcome instead of a blind
// nil.
type flight struct {
	done chan struct{}
	err  error
}

// New creates an Aggregator with an empty index. Call EnsureFresh or Refresh
// before expecting lookups to match anything.
func New(options Options) *Aggregator {
	if len(options.Sources) == 0 {
		options.Sources = DefaultSources()
	}
	if options.Client == nil {
		options.Client = http.DefaultClient
	}
	if options.SourceTimeout <= 0 {
		options.SourceTimeout = DefaultSourceTimeout
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	a := &Aggregator{
		sources:       options.Sources,
		client:        options.Client,
		sourceTimeout: options.SourceTimeout,
		storage:       options.Storage,
		now:           options.Now,
	}
	a.index.Store(newIndex())

	return a
}

// Lookup returns the names of every source listing the URL, or an empty
// result when no source does. It never blocks, even mid-refresh.
func (a *Aggregator) Lookup(u *url.URL) []string {
	return a.index.Load().lookup(u)
}

// Size reports the number of distinct entries in the current index.
func (a *Aggregator) Size() int {
	return a.index.Load().size()
}

// LastRefresh returns the recorded time of the last successful refresh, or
// the zero time when none has completed yet.
func (a *Aggregator) LastRefresh(ctx context.Context) (time.Time, error) {
	return a.storage.LastBlocklistRefresh(ctx)
}

// Refresh unconditionally rebuilds the index from all sources. If another
// refresh is already in flight it waits for that one instead of starting a
// duplicate.
func (a *Aggregator) Refresh(ctx context.Context, progress ProgressFunc) error {
	return a.run(ctx, progress, true)
}

// EnsureFresh refreshes only when due: the index is empty, no refresh has
// ever succeeded, or the last successful refresh happened on an earlier
// calendar day (UTC). Concurrent callers coalesce onto one in-flight refresh.
func (a *Aggregator) EnsureFresh(ctx context.Context, progress ProgressFunc) error {
	return a.run(ctx, progress, false)
}

func (a *Aggregator) run(ctx context.Context, progress ProgressFunc, force bool) (err error) {
	a.mu.Lock()
	if f := a.inflight; f != nil {
		a.mu.Unlock()

		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return fmt.Errorf("could not wait for in-flight refresh: %w", ctx.Err())
		}
	}

	f := &flight{done: make(chan struct{})}
	a.inflight = f
	a.mu.Unlock()

	defer func() {
		f.err = err
		a.mu.Lock()
		a.inflight = nil
		a.mu.Unlock()
		close(f.done)
	}()

	if !force {
		due, err := a.due(ctx)
		if err != nil {
			logger.Warn(ctx, "could not determine blocklist staleness, refreshing anyway", zap.Error(err))

			due = true
		}
		if !due {
			return nil
		}
	}

	return a.refresh(ctx, progress)
}

// due implements the staleness policy: refresh once per UTC calendar day, or
// immediately when the index holds nothing.
func (a *Aggregator) due(ctx context.Context) (bool, error) {
	if a.index.Load().size() == 0 {
		return true, nil
	}

	last, err := a.storage.LastBlocklistRefresh(ctx)
	if err != nil {
		return false, fmt.Errorf("could not read last refresh time: %w", err)
	}
	if last.IsZero() {
		return true, nil
	}

	ly, lm, ld := last.UTC().Date()
	ny, nm, nd := a.now().UTC().Date()

	return ly != ny || lm != nm || ld != nd, nil
}

func (a *Aggregator) refresh(ctx context.Context, progress ProgressFunc) error {
	next := newIndex()
	succeeded := 0

	// Sequential on purpose: observers get a per-source progress signal.
	for i, src := range a.sources {
		if progress != nil {
			progress(i+1, len(a.sources), src.Name)
		}

		added, err := a.download(ctx, src, next)
		if err != nil {
			logger.Warn(ctx, "blocklist source failed, contributing zero entries",
				zap.String("source", src.Name),
				zap.Error(err))

			continue
		}

		succeeded++

		logger.Info(ctx, "blocklist source loaded",
			zap.String("source", src.Name),
			zap.Int("entries", added))
	}

	if succeeded == 0 {
		return serrors.With(serrors.ErrSourceDownload, "all %d blocklist sources failed", len(a.sources))
	}

	a.index.Store(next)

	if err := a.storage.SetLastBlocklistRefresh(ctx, a.now()); err != nil {
		logger.Warn(ctx, "could not record blocklist refresh time", zap.Error(err))
	}

	logger.Info(ctx, "blocklist refreshed",
		zap.Int("sources_ok", succeeded),
		zap.Int("sources_total", len(a.sources)),
		zap.Int("entries", next.size()))

	return nil
}

func (a *Aggregator) download(ctx context.Context, src Source, into *index) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, serrors.Wrap(serrors.ErrSourceDownload, err, "could not download source")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, serrors.With(serrors.ErrSourceDownload, "unexpected status %d", resp.StatusCode)
	}

	added := 0
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, maxLineLength), maxLineLength)

	for scanner.Scan() {
		entry, ok := ParseLine(scanner.Text(), src.Format)
		if !ok {
			continue
		}

		into.add(entry, src.Name)
		added++
	}

	if err := scanner.Err(); err != nil {
		return 0, serrors.Wrap(serrors.ErrSourceDownload, err, "could not read source body")
	}

	return added, nil
}
