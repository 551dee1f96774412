package v1handler

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/logger"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/urlutil"
)

// checkRequest is the body of both one-off check endpoints.
type checkRequest struct {
	URL         string `json:"url"`
	BypassCache bool   `json:"bypassCache"`
}

// CheckLink probes a single URL and returns its reachability verdict. A URL
// that fails validation is not an HTTP error: it gets the terminal dead
// verdict, cached so a recheck never re-evaluates it.
func (h *Handler) CheckLink(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)

		return
	}

	start := time.Now()

	v, err := h.deps.Validate(req.URL)
	if err != nil {
		link, _ := h.rejected(r.Context(), req.URL, err)
		h.recordCheck(r, "link", string(link.Status), time.Since(start))

		writeJSON(w, http.StatusOK, link)

		return
	}

	result := h.deps.Links.Check(r.Context(), v, req.BypassCache)
	h.recordCheck(r, "link", string(result.Status), time.Since(start))

	writeJSON(w, http.StatusOK, result)
}

// CheckSafety runs the safety pipeline for a single URL. The link check is
// run first so the heuristics can see the redirect trace.
func (h *Handler) CheckSafety(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)

		return
	}

	start := time.Now()

	v, err := h.deps.Validate(req.URL)
	if err != nil {
		_, saf := h.rejected(r.Context(), req.URL, err)
		h.recordCheck(r, "safety", string(saf.Status), time.Since(start))

		writeJSON(w, http.StatusOK, saf)

		return
	}

	link := h.deps.Links.Check(r.Context(), v, req.BypassCache)
	result := h.deps.Safety.Evaluate(r.Context(), v, req.BypassCache, &link)
	h.recordCheck(r, "safety", string(result.Status), time.Since(start))

	writeJSON(w, http.StatusOK, result)
}

// rejected caches the terminal verdicts for a URL that failed validation and
// returns them. A rejection is a property of the URL itself, so both
// namespaces are written regardless of which check was asked, keyed by the
// raw string since there is no normalized form to key by.
func (h *Handler) rejected(ctx context.Context, raw string, cause error) (domain.LinkResult, domain.SafetyResult) {
	link, saf := urlutil.RejectionVerdicts(cause)

	if err := h.deps.LinkCache.Put(ctx, raw, link); err != nil {
		logger.Warn(ctx, "could not cache rejected link verdict", zap.Error(err))
	}
	if err := h.deps.SafetyCache.Put(ctx, raw, saf); err != nil {
		logger.Warn(ctx, "could not cache rejected safety verdict", zap.Error(err))
	}

	return link, saf
}

func (h *Handler) recordCheck(r *http.Request, kind, outcome string, elapsed time.Duration) {
	if h.deps.Metrics == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	h.deps.Metrics.Checks.Add(r.Context(), 1, attrs)
	h.deps.Metrics.CheckDuration.Record(r.Context(), elapsed.Seconds(), attrs)
}
