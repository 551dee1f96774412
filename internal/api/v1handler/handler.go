// Package v1handler implements the v1 REST surface of the scan engine:
// one-off link and safety checks, scan lifecycle, blocklist management and
// the server-sent event stream.
package v1handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/blocklist"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/linkcheck"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/safety"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/scan"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/cache"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/logger"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/metrics"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/serrors"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/storage"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/urlutil"
	"go.uber.org/zap"
)

// Deps holds everything the handlers need. All fields are required except
// Validate, which defaults to urlutil.Validate.
type Deps struct {
	Orchestrator *scan.Orchestrator
	Links        *linkcheck.Checker
	Safety       *safety.Evaluator
	Blocklist    *blocklist.Aggregator
	Events       *scan.Events
	Storage      storage.JobStorage
	LinkCache    *cache.Cache[domain.LinkResult]
	SafetyCache  *cache.Cache[domain.SafetyResult]

	// Metrics records per-check instruments when set.
	Metrics *metrics.Engine

	Validate func(raw string) (*urlutil.Validated, error)
}

type Handler struct {
	deps Deps
}

// New creates the v1 handler set.
func New(deps Deps) *Handler {
	if deps.Validate == nil {
		deps.Validate = urlutil.Validate
	}

	return &Handler{deps: deps}
}

// Routes registers every v1 endpoint except the event stream, which the
// server mounts outside the request timeout wrapper.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/checks/link", h.CheckLink)
	r.Post("/checks/safety", h.CheckSafety)
	r.Post("/scan", h.StartScan)
	r.Delete("/scan", h.StopScan)
	r.Get("/scan", h.ScanStatus)
	r.Get("/blocklist", h.BlocklistStatus)
	r.Post("/blocklist/refresh", h.RefreshBlocklist)
}

// errorResponse is the uniform error payload.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps semantic error kinds to HTTP statuses. Anything unmapped is
// a 500 with a generic body so internals don't leak.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, serrors.ErrBadRequest), errors.Is(err, serrors.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, serrors.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, serrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, serrors.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, serrors.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, serrors.ErrTimeout):
		status = http.StatusGatewayTimeout
	}

	resp := errorResponse{Error: "internal error"}

	var serr *serrors.Error
	if errors.As(err, &serr) {
		resp.Code = serr.Kind().Error()
		if status != http.StatusInternalServerError {
			resp.Error = serr.Message()
		}
	}

	if status == http.StatusInternalServerError {
		logger.Error(r.Context(), "request failed", zap.Error(err))
	}

	writeJSON(w, status, resp)
}

func decodeBody(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return serrors.Wrap(serrors.ErrBadRequest, err, "invalid request body")
	}

	return nil
}
