package v1handler

import (
	"net/http"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/scan"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/serrors"
)

// startScanRequest is the body of POST /scan. Empty bookmarks means the
// configured provider's full tree.
type startScanRequest struct {
	Bookmarks   []domain.Bookmark `json:"bookmarks"`
	BypassCache bool              `json:"bypassCache"`
}

// startScanResponse reports how many bookmarks the scan will cover.
type startScanResponse struct {
	Total int `json:"total"`
}

// StartScan kicks off a scan. At most one scan runs at a time; a second
// request while one is active gets a conflict.
func (h *Handler) StartScan(w http.ResponseWriter, r *http.Request) {
	var req startScanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)

		return
	}

	total, err := h.deps.Orchestrator.Start(r.Context(), scan.StartRequest{
		Bookmarks:   req.Bookmarks,
		BypassCache: req.BypassCache,
	})
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusAccepted, startScanResponse{Total: total})
}

// StopScan requests cooperative cancellation. Bookmarks already dispatched
// still finish; the scan winds down at the next batch boundary.
func (h *Handler) StopScan(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Orchestrator.Stop() {
		writeError(w, r, serrors.With(serrors.ErrNotFound, "no active scan"))

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ScanStatus reports the orchestrator's current state and counters.
func (h *Handler) ScanStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Orchestrator.Status())
}
