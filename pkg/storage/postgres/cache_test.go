package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/storage"
)

func TestPgSQL_UpsertAndEntries(t *testing.T) {
	pg := setupTestDB(t)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	entry := storage.CacheEntry{
		Namespace: storage.NamespaceLink,
		URL:       "https://example.com/",
		Payload:   json.RawMessage(`{"status":"live"}`),
		CheckedAt: now,
	}
	require.NoError(t, pg.UpsertEntry(ctx, entry))

	// same key again overwrites, no duplicate rows
	entry.Payload = json.RawMessage(`{"status":"dead"}`)
	require.NoError(t, pg.UpsertEntry(ctx, entry))

	entries, err := pg.Entries(ctx, storage.NamespaceLink)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "https://example.com/", entries[0].URL)
	require.JSONEq(t, `{"status":"dead"}`, string(entries[0].Payload))

	// namespaces never cross-read
	entries, err = pg.Entries(ctx, storage.NamespaceSafety)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestPgSQL_PurgeNamespace(t *testing.T) {
	pg := setupTestDB(t)

	ctx := context.Background()
	for _, ns := range []storage.Namespace{storage.NamespaceLink, storage.NamespaceSafety} {
		require.NoError(t, pg.UpsertEntry(ctx, storage.CacheEntry{
			Namespace: ns,
			URL:       "https://example.com/",
			Payload:   json.RawMessage(`{}`),
			CheckedAt: time.Now(),
		}))
	}

	require.NoError(t, pg.PurgeNamespace(ctx, storage.NamespaceLink))

	entries, err := pg.Entries(ctx, storage.NamespaceLink)
	require.NoError(t, err)
	require.Empty(t, entries)

	// the other namespace is untouched
	entries, err = pg.Entries(ctx, storage.NamespaceSafety)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestPgSQL_LastBlocklistRefresh(t *testing.T) {
	pg := setupTestDB(t)

	ctx := context.Background()

	// zero time when never recorded
	got, err := pg.LastBlocklistRefresh(ctx)
	require.NoError(t, err)
	require.True(t, got.IsZero())

	want := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	require.NoError(t, pg.SetLastBlocklistRefresh(ctx, want))

	got, err = pg.LastBlocklistRefresh(ctx)
	require.NoError(t, err)
	require.True(t, got.Equal(want))

	// overwrite
	later := want.Add(24 * time.Hour)
	require.NoError(t, pg.SetLastBlocklistRefresh(ctx, later))

	got, err = pg.LastBlocklistRefresh(ctx)
	require.NoError(t, err)
	require.True(t, got.Equal(later))
}
