// Package safety aggregates blocklist lookups, external reputation providers
// and local heuristics into a single safety verdict per URL. Every layer runs
// to completion; the final status is the worst finding, and the sources list
// names everything that contributed.
package safety

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/blocklist"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/cache"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/logger"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/reputation"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/serrors"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/urlutil"
)

// privilegedSource marks internal pages that are never scanned.
const privilegedSource = "not scanned (internal page)"

// Options configures an Evaluator.
type Options struct {
	// Cache holds safety results under the safety namespace.
	Cache *cache.Cache[domain.SafetyResult]
	// Blocklist answers which threat feeds list a URL.
	Blocklist *blocklist.Aggregator
	// Clients are the configured reputation providers, in consultation order.
	// Providers without credentials are simply absent.
	Clients []reputation.Client
}

// Evaluator runs the safety pipeline. A provider that reports throttling is
// disabled until ResetDisabled, which the scan orchestrator calls at the
// start of every scan.
type Evaluator struct {
	cache     *cache.Cache[domain.SafetyResult]
	blocklist *blocklist.Aggregator
	clients   []reputation.Client

	mu       sync.Mutex
	disabled map[string]struct{}
}

// New creates an Evaluator.
func New(options Options) *Evaluator {
	return &Evaluator{
		cache:     options.Cache,
		blocklist: options.Blocklist,
		clients:   options.Clients,
		disabled:  make(map[string]struct{}),
	}
}

// ResetDisabled re-enables every reputation provider. Called at scan start so
// a rate limit hit in one scan does not silence the provider forever.
func (e *Evaluator) ResetDisabled() {
	e.mu.Lock()
	e.disabled = make(map[string]struct{})
	e.mu.Unlock()
}

// Evaluate classifies a validated URL. link, when non-nil, supplies the
// redirect trace from an already-performed reachability probe so the HTTP
// heuristic can word its finding without a second request.
//
// The pipeline never short-circuits on a finding: a blocklist hit sets the
// verdict unsafe and the remaining layers still run to accumulate additional
// sources. Errors never propagate; a wholly failed evaluation yields an
// unknown verdict, cached like any other so a consistently erroring target
// does not turn into a failure storm.
func (e *Evaluator) Evaluate(ctx context.Context, v *urlutil.Validated, bypassCache bool, link *domain.LinkResult) (result domain.SafetyResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "safety evaluation panicked",
				zap.String("url", v.Normalized),
				zap.Any("panic", r))

			result = domain.SafetyResult{Status: domain.SafetyStatusUnknown, Sources: []string{}}
			e.store(ctx, v.Normalized, result)
		}
	}()

	if v.Privileged {
		result = domain.SafetyResult{Status: domain.SafetyStatusSafe, Sources: []string{privilegedSource}}
		e.store(ctx, v.Normalized, result)

		return result
	}

	if !bypassCache {
		if cached, ok := e.cache.Get(v.Normalized); ok {
			return cached
		}
	}

	result = domain.SafetyResult{Status: domain.SafetyStatusSafe}

	// Local blocklists false-positive on big platforms; trusted hosts skip
	// this layer only, never the reputation or heuristic layers.
	if !isTrustedDomain(v.URL.Hostname()) {
		if sources := e.blocklist.Lookup(v.URL); len(sources) > 0 {
			result.Status = result.Status.Escalate(domain.SafetyStatusUnsafe)
			for _, source := range sources {
				result.AddSource("Blocklist: " + source)
			}
		}
	}

	for _, client := range e.clients {
		if e.isDisabled(client.Name()) {
			continue
		}

		verdict, _, err := client.Check(ctx, v.Normalized)
		if err != nil {
			if errors.Is(err, serrors.ErrRateLimited) {
				e.disable(client.Name())
				logger.Warn(ctx, "reputation provider rate limited, disabling for this scan",
					zap.String("provider", client.Name()))
			} else {
				logger.Warn(ctx, "reputation check failed",
					zap.String("provider", client.Name()),
					zap.String("url", v.Normalized),
					zap.Error(err))
			}

			// unknown contributes nothing
			continue
		}

		result.Status = result.Status.Escalate(verdict.Status)
		if verdict.Source != "" {
			result.AddSource(verdict.Source)
		}
	}

	for _, f := range heuristics(v, link) {
		result.Status = result.Status.Escalate(f.status)
		result.AddSource(f.source)
	}

	e.store(ctx, v.Normalized, result)

	return result
}

func (e *Evaluator) isDisabled(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.disabled[name]

	return ok
}

func (e *Evaluator) disable(name string) {
	e.mu.Lock()
	e.disabled[name] = struct{}{}
	e.mu.Unlock()
}

func (e *Evaluator) store(ctx context.Context, key string, result domain.SafetyResult) {
	if err := e.cache.Put(ctx, key, result); err != nil {
		logger.Warn(ctx, "could not cache safety result",
			zap.String("url", key),
			zap.Error(err))
	}
}
