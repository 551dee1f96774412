package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/cache"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/storage"
	mockstorage "github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/storage/mock"
)

type verdict struct {
	Status string `json:"status"`
}

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	current time.Time
}

func (f *fakeClock) Now() time.Time          { return f.current }
func (f *fakeClock) Advance(d time.Duration) { f.current = f.current.Add(d) }

func newTestCache(t *testing.T) (*cache.Cache[verdict], *mockstorage.MockAllStorage, *fakeClock) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockAllStorage(ctrl)
	clock := &fakeClock{current: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}

	c := cache.New[verdict](cache.Options{
		Namespace: storage.NamespaceLink,
		Storage:   store,
		Now:       clock.Now,
	})

	return c, store, clock
}

func TestCache_PutWritesThroughAndGetHits(t *testing.T) {
	c, store, clock := newTestCache(t)
	ctx := context.Background()

	store.EXPECT().
		UpsertEntry(ctx, storage.CacheEntry{
			Namespace: storage.NamespaceLink,
			URL:       "https://example.com/",
			Payload:   json.RawMessage(`{"status":"live"}`),
			CheckedAt: clock.Now(),
		}).
		Return(nil)

	require.NoError(t, c.Put(ctx, "https://example.com/", verdict{Status: "live"}))

	got, ok := c.Get("https://example.com/")
	require.True(t, ok)
	require.Equal(t, verdict{Status: "live"}, got)

	_, ok = c.Get("https://other.example/")
	require.False(t, ok)
}

func TestCache_GetExpiresLazily(t *testing.T) {
	c, store, clock := newTestCache(t)
	ctx := context.Background()

	store.EXPECT().UpsertEntry(ctx, gomock.Any()).Return(nil)
	require.NoError(t, c.Put(ctx, "https://example.com/", verdict{Status: "live"}))

	// just below the TTL the entry still serves
	clock.Advance(cache.DefaultTTL - time.Second)
	_, ok := c.Get("https://example.com/")
	require.True(t, ok)

	// at the TTL boundary the entry is dropped
	clock.Advance(time.Second)
	_, ok = c.Get("https://example.com/")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestCache_PutKeepsMemoryEntryOnStorageFailure(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	store.EXPECT().UpsertEntry(ctx, gomock.Any()).Return(errors.New("db down"))

	err := c.Put(ctx, "https://example.com/", verdict{Status: "dead"})
	require.Error(t, err)

	// the verdict still serves this session
	got, ok := c.Get("https://example.com/")
	require.True(t, ok)
	require.Equal(t, verdict{Status: "dead"}, got)
}

func TestCache_LoadFiltersExpiredAndUndecodable(t *testing.T) {
	c, store, clock := newTestCache(t)
	ctx := context.Background()

	store.EXPECT().
		Entries(ctx, storage.NamespaceLink).
		Return([]storage.CacheEntry{
			{
				Namespace: storage.NamespaceLink,
				URL:       "https://fresh.example/",
				Payload:   json.RawMessage(`{"status":"live"}`),
				CheckedAt: clock.Now().Add(-time.Hour),
			},
			{
				Namespace: storage.NamespaceLink,
				URL:       "https://stale.example/",
				Payload:   json.RawMessage(`{"status":"dead"}`),
				CheckedAt: clock.Now().Add(-cache.DefaultTTL),
			},
			{
				Namespace: storage.NamespaceLink,
				URL:       "https://broken.example/",
				Payload:   json.RawMessage(`{nope`),
				CheckedAt: clock.Now().Add(-time.Hour),
			},
		}, nil)

	require.NoError(t, c.Load(ctx))
	require.Equal(t, 1, c.Len())

	got, ok := c.Get("https://fresh.example/")
	require.True(t, ok)
	require.Equal(t, verdict{Status: "live"}, got)

	_, ok = c.Get("https://stale.example/")
	require.False(t, ok)
}

func TestCache_LoadPropagatesStorageError(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	store.EXPECT().Entries(ctx, storage.NamespaceLink).Return(nil, errors.New("db down"))

	require.Error(t, c.Load(ctx))
}

func TestCache_ConcurrentPutsLoseNoEntry(t *testing.T) {
	const writers = 64

	c, store, _ := newTestCache(t)

	// record every write-through so a lost update shows up on either side
	var mu sync.Mutex
	persisted := make(map[string]struct{}, writers)
	store.EXPECT().
		UpsertEntry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e storage.CacheEntry) error {
			mu.Lock()
			persisted[e.URL] = struct{}{}
			mu.Unlock()

			return nil
		}).
		Times(writers)

	errs := make(chan error, writers)

	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			url := fmt.Sprintf("https://host-%d.example/", i)
			errs <- c.Put(context.Background(), url, verdict{Status: "live"})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, writers, c.Len())
	require.Len(t, persisted, writers)

	for i := range writers {
		got, ok := c.Get(fmt.Sprintf("https://host-%d.example/", i))
		require.True(t, ok)
		require.Equal(t, verdict{Status: "live"}, got)
	}
}

func TestCache_Purge(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	store.EXPECT().UpsertEntry(ctx, gomock.Any()).Return(nil)
	require.NoError(t, c.Put(ctx, "https://example.com/", verdict{Status: "live"}))

	store.EXPECT().PurgeNamespace(ctx, storage.NamespaceLink).Return(nil)
	require.NoError(t, c.Purge(ctx))
	require.Equal(t, 0, c.Len())

	_, ok := c.Get("https://example.com/")
	require.False(t, ok)
}
