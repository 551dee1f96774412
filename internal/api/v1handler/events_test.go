package v1handler_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/scan"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
)

// readEvent scans the SSE stream until one full message is read, returning
// the event name and its data line.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()

	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")

		switch {
		case line == "" && event != "":
			return event, data
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEventStream(t *testing.T) {
	api := newTestAPI(t)

	srv := httptest.NewServer(api.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	// let the subscription register before publishing
	time.Sleep(50 * time.Millisecond)

	api.events.Publish(scan.Event{
		Type:     scan.EventChecking,
		Checking: &scan.Checking{BookmarkID: "bm-3", Status: domain.LinkStatusChecking},
	})
	api.events.Publish(scan.Event{
		Type:     scan.EventScanProgress,
		Progress: &scan.Progress{Scanned: 3, Total: 10, BookmarkID: "bm-3"},
	})
	api.events.Publish(scan.Event{
		Type: scan.EventScanResults,
		Results: []scan.BookmarkResult{{
			Bookmark: domain.Bookmark{ID: "bm-3", URL: "https://example.com/"},
			Link:     domain.LinkResult{Status: domain.LinkStatusLive},
			Safety:   domain.SafetyResult{Status: domain.SafetyStatusSafe, Sources: []string{}},
		}},
	})

	reader := bufio.NewReader(res.Body)

	event, data := readEvent(t, reader)
	require.Equal(t, "checking", event)

	var checking struct {
		Type     string        `json:"type"`
		Checking scan.Checking `json:"checking"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &checking))
	require.Equal(t, domain.BookmarkID("bm-3"), checking.Checking.BookmarkID)
	require.Equal(t, domain.LinkStatusChecking, checking.Checking.Status)

	event, data = readEvent(t, reader)
	require.Equal(t, "scan-progress", event)

	var progress struct {
		Type     string        `json:"type"`
		Progress scan.Progress `json:"progress"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &progress))
	require.Equal(t, "scan-progress", progress.Type)
	require.Equal(t, 3, progress.Progress.Scanned)
	require.Equal(t, 10, progress.Progress.Total)
	require.Equal(t, domain.BookmarkID("bm-3"), progress.Progress.BookmarkID)

	event, data = readEvent(t, reader)
	require.Equal(t, "scan-results", event)

	var results struct {
		Type    string                `json:"type"`
		Results []scan.BookmarkResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &results))
	require.Len(t, results.Results, 1)
	require.Equal(t, domain.BookmarkID("bm-3"), results.Results[0].Bookmark.ID)
	require.Equal(t, domain.LinkStatusLive, results.Results[0].Link.Status)
}
