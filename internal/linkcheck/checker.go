// Package linkcheck probes bookmark URLs and classifies them live, dead or
// parked. Every code path yields a terminal status; transport failures are
// classified, never propagated.
package linkcheck

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/cache"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/logger"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/urlutil"
)

// DefaultTimeout bounds each probe attempt. Timeouts classify as live: a slow
// server is not a dead link, and skipping the GET fallback on timeout keeps
// the worst case at one timeout instead of two.
const DefaultTimeout = 5 * time.Second

// drainLimit is how much of a GET body gets read before closing, enough to
// let the transport reuse the connection.
const drainLimit = 4 * 1024

// Options configures a Checker.
type Options struct {
	// Cache holds link results under the link namespace.
	Cache *cache.Cache[domain.LinkResult]
	// Client performs the probes. It must follow redirects (the default) and
	// carry no ambient credentials. Defaults to http.DefaultClient.
	Client *http.Client
	// Timeout bounds each individual attempt. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Checker classifies URL reachability with a HEAD probe and a single GET
// retry on non-timeout transport failure.
type Checker struct {
	cache   *cache.Cache[domain.LinkResult]
	client  *http.Client
	timeout time.Duration
}

// New creates a Checker.
func New(options Options) *Checker {
	if options.Client == nil {
		options.Client = http.DefaultClient
	}
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}

	return &Checker{
		cache:   options.Cache,
		client:  options.Client,
		timeout: options.Timeout,
	}
}

// Check classifies a validated URL. bypassCache forces a fresh probe; the
// outcome is written to the cache either way.
//
// Classification order:
//  1. privileged scheme: live, no network access
//  2. cache hit (unless bypassing)
//  3. hostname on the parking list: parked, no network access
//  4. HEAD probe: redirect destination on the parking list parked,
//     404/410/451 dead, anything else live; timeout live
//  5. non-timeout HEAD failure: one GET retry with the same rules; a further
//     failure is dead
func (c *Checker) Check(ctx context.Context, v *urlutil.Validated, bypassCache bool) domain.LinkResult {
	if v.Privileged {
		result := domain.LinkResult{Status: domain.LinkStatusLive}
		c.store(ctx, v.Normalized, result)

		return result
	}

	if !bypassCache {
		if result, ok := c.cache.Get(v.Normalized); ok {
			return result
		}
	}

	if isParkedHost(v.URL.Hostname()) {
		result := domain.LinkResult{Status: domain.LinkStatusParked}
		c.store(ctx, v.Normalized, result)

		return result
	}

	result, ok := c.probe(ctx, v, http.MethodHead)
	if !ok {
		result, ok = c.probe(ctx, v, http.MethodGet)
		if !ok {
			result = domain.LinkResult{Status: domain.LinkStatusDead}
		}
	}

	c.store(ctx, v.Normalized, result)

	return result
}

// probe runs one attempt. The second return is false only for non-timeout
// transport failures, where the caller may retry with GET.
func (c *Checker) probe(ctx context.Context, v *urlutil.Validated, method string) (domain.LinkResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, v.URL.String(), nil)
	if err != nil {
		return domain.LinkResult{Status: domain.LinkStatusDead}, true
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			// Slow server, not a dead link. Deliberately no GET fallback so a
			// slow host costs one timeout, not two.
			return domain.LinkResult{Status: domain.LinkStatusLive}, true
		}

		return domain.LinkResult{}, false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
		_ = resp.Body.Close()
	}()

	result := domain.LinkResult{Status: domain.LinkStatusLive}

	final := resp.Request.URL
	if final.String() != v.URL.String() {
		result.RedirectedTo = final.String()
	}

	if final.Hostname() != v.URL.Hostname() && isParkedHost(final.Hostname()) {
		result.Status = domain.LinkStatusParked

		return result, true
	}

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone, http.StatusUnavailableForLegalReasons:
		result.Status = domain.LinkStatusDead
	}

	return result, true
}

func (c *Checker) store(ctx context.Context, key string, result domain.LinkResult) {
	if err := c.cache.Put(ctx, key, result); err != nil {
		logger.Warn(ctx, "could not cache link result",
			zap.String("url", key),
			zap.Error(err))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var nerr net.Error

	return errors.As(err, &nerr) && nerr.Timeout()
}
