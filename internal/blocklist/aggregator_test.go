package blocklist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mockstorage "github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/storage/mock"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)

	return u
}

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestAggregator_RefreshAndLookup(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockAllStorage(ctrl)
	store.EXPECT().SetLastBlocklistRefresh(gomock.Any(), gomock.Any()).Return(nil)

	hosts := feedServer(t, "# header\n0.0.0.0 bad.example\n0.0.0.0 localhost\n")
	domains := feedServer(t, "*.wild.example\nbad.example\npathy.example:8080/malware\n")

	agg := New(Options{
		Sources: []Source{
			{Name: "hosts-feed", URL: hosts.URL, Format: FormatHosts},
			{Name: "domains-feed", URL: domains.URL, Format: FormatDomains},
		},
		Storage: store,
	})

	require.NoError(t, agg.Refresh(context.Background(), nil))
	require.Equal(t, 3, agg.Size())

	// bare domain match, sources deduplicated across feeds
	sources := agg.Lookup(mustParse(t, "https://bad.example/whatever"))
	require.ElementsMatch(t, []string{"hosts-feed", "domains-feed"}, sources)

	// wildcard entries match the bare domain
	require.Equal(t, []string{"domains-feed"}, agg.Lookup(mustParse(t, "http://wild.example/")))

	// a differently-pathed URL on a listed host matches via the path index
	require.Equal(t, []string{"domains-feed"}, agg.Lookup(mustParse(t, "http://pathy.example:8080/other/path")))

	// unlisted hosts do not match
	require.Empty(t, agg.Lookup(mustParse(t, "https://clean.example/")))
}

func TestAggregator_FullURLMatchBeforeDomain(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockAllStorage(ctrl)
	store.EXPECT().SetLastBlocklistRefresh(gomock.Any(), gomock.Any()).Return(nil)

	domains := feedServer(t, "bad.example/exact/path\n")

	agg := New(Options{
		Sources: []Source{{Name: "feed", URL: domains.URL, Format: FormatDomains}},
		Storage: store,
	})
	require.NoError(t, agg.Refresh(context.Background(), nil))

	require.Equal(t, []string{"feed"}, agg.Lookup(mustParse(t, "https://bad.example/exact/path")))
	// same host, different path still matches through the path index
	require.Equal(t, []string{"feed"}, agg.Lookup(mustParse(t, "https://bad.example/other")))
}

func TestAggregator_FailedSourceContributesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockAllStorage(ctrl)
	store.EXPECT().SetLastBlocklistRefresh(gomock.Any(), gomock.Any()).Return(nil)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)
	good := feedServer(t, "bad.example\n")

	var progressed []string
	agg := New(Options{
		Sources: []Source{
			{Name: "broken", URL: broken.URL, Format: FormatDomains},
			{Name: "good", URL: good.URL, Format: FormatDomains},
		},
		Storage: store,
	})

	err := agg.Refresh(context.Background(), func(current, total int, source string) {
		require.Equal(t, 2, total)
		progressed = append(progressed, source)
	})
	require.NoError(t, err)

	// progress is reported source-by-source, including the failed one
	require.Equal(t, []string{"broken", "good"}, progressed)
	require.Equal(t, 1, agg.Size())
}

func TestAggregator_AllSourcesFailedKeepsOldIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockAllStorage(ctrl)
	store.EXPECT().SetLastBlocklistRefresh(gomock.Any(), gomock.Any()).Return(nil)

	feed := feedServer(t, "bad.example\n")
	agg := New(Options{
		Sources: []Source{{Name: "feed", URL: feed.URL, Format: FormatDomains}},
		Storage: store,
	})
	require.NoError(t, agg.Refresh(context.Background(), nil))
	require.Equal(t, 1, agg.Size())

	feed.Close()

	// the failed refresh errors but the previous index keeps serving
	require.Error(t, agg.Refresh(context.Background(), nil))
	require.Equal(t, 1, agg.Size())
	require.Equal(t, []string{"feed"}, agg.Lookup(mustParse(t, "https://bad.example/")))
}

func TestAggregator_EnsureFreshSkipsSameDay(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockAllStorage(ctrl)

	now := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

	var hits atomic.Int32
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("bad.example\n"))
	}))
	t.Cleanup(feed.Close)

	agg := New(Options{
		Sources: []Source{{Name: "feed", URL: feed.URL, Format: FormatDomains}},
		Storage: store,
		Now:     func() time.Time { return now },
	})

	// empty index: always refreshes no matter the timestamp
	store.EXPECT().SetLastBlocklistRefresh(gomock.Any(), now).Return(nil)
	require.NoError(t, agg.EnsureFresh(context.Background(), nil))
	require.Equal(t, int32(1), hits.Load())

	// refreshed earlier the same UTC day: no-op
	store.EXPECT().LastBlocklistRefresh(gomock.Any()).Return(now.Add(-2*time.Hour), nil)
	require.NoError(t, agg.EnsureFresh(context.Background(), nil))
	require.Equal(t, int32(1), hits.Load())

	// last refresh on a previous calendar day: due again
	store.EXPECT().LastBlocklistRefresh(gomock.Any()).Return(now.Add(-24*time.Hour), nil)
	store.EXPECT().SetLastBlocklistRefresh(gomock.Any(), now).Return(nil)
	require.NoError(t, agg.EnsureFresh(context.Background(), nil))
	require.Equal(t, int32(2), hits.Load())
}

func TestAggregator_ConcurrentEnsureFreshCoalesces(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockAllStorage(ctrl)
	store.EXPECT().SetLastBlocklistRefresh(gomock.Any(), gomock.Any()).Return(nil)
	store.EXPECT().LastBlocklistRefresh(gomock.Any()).Return(time.Now(), nil).AnyTimes()

	var hits atomic.Int32
	release := make(chan struct{})
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte("bad.example\n"))
	}))
	t.Cleanup(feed.Close)

	agg := New(Options{
		Sources: []Source{{Name: "feed", URL: feed.URL, Format: FormatDomains}},
		Storage: store,
	})

	first := make(chan error, 1)
	go func() {
		first <- agg.EnsureFresh(context.Background(), nil)
	}()

	// wait until the first refresh is inside the download
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() {
		second <- agg.EnsureFresh(context.Background(), nil)
	}()

	// give the second caller a moment to land on the in-flight wait
	time.Sleep(50 * time.Millisecond)

	close(release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	// the second caller waited on the in-flight refresh, no duplicate download
	require.Equal(t, int32(1), hits.Load())
}

func TestAggregator_CoalescedWaiterSeesRefreshFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockAllStorage(ctrl)
	store.EXPECT().LastBlocklistRefresh(gomock.Any()).Return(time.Time{}, nil).AnyTimes()

	var hits atomic.Int32
	release := make(chan struct{})
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(feed.Close)

	agg := New(Options{
		Sources: []Source{{Name: "feed", URL: feed.URL, Format: FormatDomains}},
		Storage: store,
	})

	first := make(chan error, 1)
	go func() {
		first <- agg.EnsureFresh(context.Background(), nil)
	}()

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() {
		second <- agg.EnsureFresh(context.Background(), nil)
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)

	// the lone source failed, so both the refresh owner and the coalesced
	// waiter get the failure
	require.Error(t, <-first)
	require.Error(t, <-second)
	require.Equal(t, int32(1), hits.Load())
}
