package v1handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/api/v1handler"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/blocklist"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/linkcheck"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/safety"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/internal/scan"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/cache"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/limiter"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/logger"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/storage"
	mockstorage "github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/storage/mock"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/urlutil"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.DevelopmentEnvironment)
	m.Run()
}

type testAPI struct {
	router  chi.Router
	store   *mockstorage.MockAllStorage
	events  *scan.Events
	handler *v1handler.Handler
	target  *httptest.Server
}

// newTestAPI assembles a real engine behind the v1 routes: live link checker
// and safety evaluator, a blocklist fed from a local server, and a mocked
// persistence layer.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctrl := gomock.NewController(t)

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/slow":
			time.Sleep(400 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(target.Close)

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("blocked.invalid\n"))
	}))
	t.Cleanup(feed.Close)

	store := mockstorage.NewMockAllStorage(ctrl)
	store.EXPECT().UpsertEntry(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	store.EXPECT().PurgeNamespace(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	store.EXPECT().SetLastBlocklistRefresh(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	store.EXPECT().LastBlocklistRefresh(gomock.Any()).Return(time.Now(), nil).AnyTimes()

	linkCache := cache.New[domain.LinkResult](cache.Options{Namespace: storage.NamespaceLink, Storage: store})
	safetyCache := cache.New[domain.SafetyResult](cache.Options{Namespace: storage.NamespaceSafety, Storage: store})
	agg := blocklist.New(blocklist.Options{
		Sources: []blocklist.Source{{Name: "feed", URL: feed.URL, Format: blocklist.FormatDomains}},
		Storage: store,
	})
	links := linkcheck.New(linkcheck.Options{Cache: linkCache, Timeout: 100 * time.Millisecond})
	evaluator := safety.New(safety.Options{Cache: safetyCache, Blocklist: agg})
	events := scan.NewEvents()

	// loopback is where all the test servers live
	validate := func(raw string) (*urlutil.Validated, error) {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, err
		}

		return &urlutil.Validated{URL: u, Normalized: raw}, nil
	}

	orchestrator := scan.New(scan.Options{
		Links:       links,
		Safety:      evaluator,
		Blocklist:   agg,
		Limiter:     limiter.New(limiter.DefaultMaxConcurrent),
		Events:      events,
		LinkCache:   linkCache,
		SafetyCache: safetyCache,
		Validate:    validate,
	})

	handler := v1handler.New(v1handler.Deps{
		Orchestrator: orchestrator,
		Links:        links,
		Safety:       evaluator,
		Blocklist:    agg,
		Events:       events,
		Storage:      store,
		LinkCache:    linkCache,
		SafetyCache:  safetyCache,
		Validate:     validate,
	})

	router := chi.NewRouter()
	handler.Routes(router)
	router.Get("/events", handler.EventStream)

	return &testAPI{
		router:  router,
		store:   store,
		events:  events,
		handler: handler,
		target:  target,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	return rec
}

func TestCheckLink(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/checks/link", map[string]any{"url": api.target.URL + "/ok"})
	require.Equal(t, http.StatusOK, rec.Code)

	var res domain.LinkResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, domain.LinkStatusLive, res.Status)

	rec = api.do(t, http.MethodPost, "/checks/link", map[string]any{"url": api.target.URL + "/missing"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, domain.LinkStatusDead, res.Status)
}

func TestCheckLink_MalformedBody(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/checks/link", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid request body")
}

func TestCheckSafety(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/checks/safety", map[string]any{"url": api.target.URL + "/ok"})
	require.Equal(t, http.StatusOK, rec.Code)

	var res domain.SafetyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	// loopback target is plain http, the heuristics flag it but nothing worse
	require.Equal(t, domain.SafetyStatusWarning, res.Status)
	require.Contains(t, res.Sources, "HTTP Only")
}

func TestChecks_RejectedURLIsTerminalAndCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockAllStorage(ctrl)
	store.EXPECT().UpsertEntry(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	linkCache := cache.New[domain.LinkResult](cache.Options{Namespace: storage.NamespaceLink, Storage: store})
	safetyCache := cache.New[domain.SafetyResult](cache.Options{Namespace: storage.NamespaceSafety, Storage: store})

	// default validation policy this time: javascript: is denied before any
	// network access
	handler := v1handler.New(v1handler.Deps{
		Links:       linkcheck.New(linkcheck.Options{Cache: linkCache}),
		LinkCache:   linkCache,
		SafetyCache: safetyCache,
	})
	router := chi.NewRouter()
	handler.Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/checks/link", bytes.NewBufferString(`{"url":"javascript:alert(1)"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var link domain.LinkResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &link))
	require.Equal(t, domain.LinkStatusDead, link.Status)

	// both namespaces hold the terminal verdicts under the raw URL
	cachedLink, ok := linkCache.Get("javascript:alert(1)")
	require.True(t, ok)
	require.Equal(t, domain.LinkStatusDead, cachedLink.Status)

	cachedSaf, ok := safetyCache.Get("javascript:alert(1)")
	require.True(t, ok)
	require.Equal(t, domain.SafetyStatusUnsafe, cachedSaf.Status)

	req = httptest.NewRequest(http.MethodPost, "/checks/safety", bytes.NewBufferString(`{"url":"javascript:alert(1)"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var saf domain.SafetyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saf))
	require.Equal(t, domain.SafetyStatusUnsafe, saf.Status)
	require.NotEmpty(t, saf.Sources)
}

func TestScanLifecycle(t *testing.T) {
	api := newTestAPI(t)

	ch, cancel := api.events.Subscribe(256)
	defer cancel()

	bms := []domain.Bookmark{
		{ID: "1", URL: api.target.URL + "/slow"},
		{ID: "2", URL: api.target.URL + "/slow"},
	}

	rec := api.do(t, http.MethodPost, "/scan", map[string]any{"bookmarks": bms})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.JSONEq(t, `{"total":2}`, rec.Body.String())

	// a second start while running is a conflict
	rec = api.do(t, http.MethodPost, "/scan", map[string]any{"bookmarks": bms})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodGet, "/scan", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status scan.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.True(t, status.IsScanning)
	require.Equal(t, 2, status.Total)

	rec = api.do(t, http.MethodDelete, "/scan", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// drain until the terminal event so the engine goroutine finishes
	deadline := time.After(10 * time.Second)
	for {
		var done bool
		select {
		case ev := <-ch:
			done = ev.Type == scan.EventScanCancelled || ev.Type == scan.EventScanComplete
		case <-deadline:
			t.Fatal("no terminal event")
		}
		if done {
			break
		}
	}

	// cancelling again: nothing to cancel
	rec = api.do(t, http.MethodDelete, "/scan", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBlocklistStatus(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/blocklist", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Entries     int        `json:"entries"`
		LastRefresh *time.Time `json:"lastRefresh"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Zero(t, res.Entries) // nothing refreshed yet
	require.NotNil(t, res.LastRefresh)
}

func TestRefreshBlocklist(t *testing.T) {
	api := newTestAPI(t)

	api.store.EXPECT().AddJob(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)

	rec := api.do(t, http.MethodPost, "/blocklist/refresh", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.JSONEq(t, `{"queued":true}`, rec.Body.String())
}
