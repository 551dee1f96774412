package storage

import (
	"context"
	"encoding/json"
	"time"
)

// Namespace identifies one of the independent result-cache namespaces. The
// same URL key may exist in both, but they are never cross-read.
type Namespace string

const (
	// NamespaceLink holds link-reachability results.
	NamespaceLink Namespace = "link"
	// NamespaceSafety holds safety verdicts.
	NamespaceSafety Namespace = "safety"
)

// CacheEntry is one persisted check result. Payload is the JSON encoding of
// either a domain.LinkResult or a domain.SafetyResult depending on the
// namespace; CheckedAt drives the 7-day TTL applied by the in-memory cache.
type CacheEntry struct {
	Namespace Namespace
	URL       string
	Payload   json.RawMessage
	CheckedAt time.Time
}

// CacheStorage persists check results so verdicts survive process restarts.
// Implementations must make UpsertEntry last-writer-wins per (namespace, url)
// key; serialization of concurrent writers to the same namespace is handled
// by the in-memory cache layer above.
type CacheStorage interface {
	// Entries returns every persisted entry of a namespace. Used to hydrate
	// the in-memory cache at startup; expired entries are filtered by the
	// caller, not here (lazy expiry).
	Entries(ctx context.Context, ns Namespace) ([]CacheEntry, error)
	// UpsertEntry inserts or replaces the entry for (entry.Namespace, entry.URL).
	UpsertEntry(ctx context.Context, entry CacheEntry) error
	// PurgeNamespace removes every entry of a namespace (rescan mode).
	PurgeNamespace(ctx context.Context, ns Namespace) error
}

// MetaStorage keeps small engine-level bookkeeping values, currently the
// timestamp of the last successful blocklist refresh.
type MetaStorage interface {
	// LastBlocklistRefresh returns the time of the last successful refresh,
	// or the zero time when no refresh has completed yet.
	LastBlocklistRefresh(ctx context.Context) (time.Time, error)
	// SetLastBlocklistRefresh records a successful refresh.
	SetLastBlocklistRefresh(ctx context.Context, t time.Time) error
}
