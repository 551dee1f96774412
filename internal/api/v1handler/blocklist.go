package v1handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/worker"
)

// blocklistStatusResponse describes the current threat index.
type blocklistStatusResponse struct {
	Entries     int        `json:"entries"`
	LastRefresh *time.Time `json:"lastRefresh,omitempty"`
}

// refreshResponse reports whether a refresh job was actually enqueued; false
// means one is already queued or running.
type refreshResponse struct {
	Queued bool `json:"queued"`
}

// BlocklistStatus reports the index size and the last successful refresh.
func (h *Handler) BlocklistStatus(w http.ResponseWriter, r *http.Request) {
	resp := blocklistStatusResponse{Entries: h.deps.Blocklist.Size()}

	last, err := h.deps.Blocklist.LastRefresh(r.Context())
	if err != nil {
		writeError(w, r, fmt.Errorf("could not read last refresh time: %w", err))

		return
	}
	if !last.IsZero() {
		resp.LastRefresh = &last
	}

	writeJSON(w, http.StatusOK, resp)
}

// RefreshBlocklist enqueues a forced refresh. The job re-downloads every
// feed regardless of staleness and streams db-progress events while at it.
func (h *Handler) RefreshBlocklist(w http.ResponseWriter, r *http.Request) {
	queued, err := h.deps.Storage.AddJob(r.Context(), worker.BlocklistRefreshArgs{Force: true}, nil)
	if err != nil {
		writeError(w, r, fmt.Errorf("could not enqueue refresh job: %w", err))

		return
	}

	writeJSON(w, http.StatusAccepted, refreshResponse{Queued: queued})
}
