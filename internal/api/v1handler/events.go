package v1handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/scan"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/logger"
)

// eventBuffer is the per-subscriber channel depth. A client that falls this
// far behind starts losing events instead of stalling the engine.
const eventBuffer = 256

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 15 * time.Second

// EventStream is the server-sent events endpoint. Every engine signal is
// delivered as one SSE message whose data is the JSON-encoded event.
func (h *Handler) EventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, fmt.Errorf("response writer does not support streaming"))

		return
	}

	// the stream outlives the server's write timeout
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logger.Warn(r.Context(), "could not clear write deadline", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, cancel := h.deps.Events.Subscribe(eventBuffer)
	defer cancel()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	var enc jx.Encoder
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-ch:
			payload, err := encodeEvent(&enc, ev)
			if err != nil {
				logger.Error(r.Context(), "could not encode event", zap.Error(err))

				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// encodeEvent renders one event as JSON. The result payloads carry their own
// struct tags and go through encoding/json; the envelope is built directly.
func encodeEvent(e *jx.Encoder, ev scan.Event) ([]byte, error) {
	e.Reset()
	e.ObjStart()

	e.FieldStart("type")
	e.Str(string(ev.Type))

	if ev.DBProgress != nil {
		e.FieldStart("dbProgress")
		e.ObjStart()
		e.FieldStart("current")
		e.Int(ev.DBProgress.Current)
		e.FieldStart("total")
		e.Int(ev.DBProgress.Total)
		e.FieldStart("source")
		e.Str(ev.DBProgress.Source)
		e.ObjEnd()
	}

	if ev.Checking != nil {
		e.FieldStart("checking")
		e.ObjStart()
		e.FieldStart("bookmarkId")
		e.Str(string(ev.Checking.BookmarkID))
		e.FieldStart("status")
		e.Str(string(ev.Checking.Status))
		e.ObjEnd()
	}

	if ev.Progress != nil {
		e.FieldStart("progress")
		e.ObjStart()
		e.FieldStart("scanned")
		e.Int(ev.Progress.Scanned)
		e.FieldStart("total")
		e.Int(ev.Progress.Total)
		e.FieldStart("bookmarkId")
		e.Str(string(ev.Progress.BookmarkID))
		e.ObjEnd()
	}

	if len(ev.Results) > 0 {
		raw, err := json.Marshal(ev.Results)
		if err != nil {
			return nil, fmt.Errorf("could not marshal results: %w", err)
		}
		e.FieldStart("results")
		e.Raw(raw)
	}

	if ev.Summary != nil {
		e.FieldStart("summary")
		e.ObjStart()
		e.FieldStart("scanned")
		e.Int(ev.Summary.Scanned)
		e.FieldStart("total")
		e.Int(ev.Summary.Total)
		e.FieldStart("cancelled")
		e.Bool(ev.Summary.Cancelled)
		e.ObjEnd()
	}

	e.ObjEnd()

	return e.Bytes(), nil
}
