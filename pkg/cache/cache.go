// Package cache provides the in-memory, write-through result cache sitting in
// front of storage.CacheStorage. Each instance owns exactly one namespace;
// link and safety results live in separate instances and never cross-read.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/logger"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/storage"
)

// DefaultTTL is how long a cached verdict stays usable. Expiry is lazy: an
// entry past its TTL is dropped on the next Get, not by a background sweeper.
const DefaultTTL = 7 * 24 * time.Hour

// Options configures a Cache instance.
type Options struct {
	// Namespace selects which storage namespace this cache owns.
	Namespace storage.Namespace
	// Storage is the persistence layer written through on every Put.
	Storage storage.CacheStorage
	// TTL overrides DefaultTTL when positive.
	TTL time.Duration
	// Now overrides the clock, used by tests. Defaults to time.Now.
	Now func() time.Time
}

type entry[T any] struct {
	value     T
	checkedAt time.Time
}

// Cache is a TTL cache keyed by normalized URL. The mutex is held across the
// write-through to storage, which serializes concurrent writers within the
// namespace; reads only touch the in-memory map.
type Cache[T any] struct {
	namespace storage.Namespace
	storage   storage.CacheStorage
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]entry[T]
}

// New creates an empty cache for the given namespace. Call Load to hydrate it
// from storage before serving reads.
func New[T any](options Options) *Cache[T] {
	ttl := options.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := options.Now
	if now == nil {
		now = time.Now
	}

	return &Cache[T]{
		namespace: options.Namespace,
		storage:   options.Storage,
		ttl:       ttl,
		now:       now,
		entries:   make(map[string]entry[T]),
	}
}

// Load hydrates the cache from storage, replacing the in-memory map. Entries
// already past their TTL and entries whose payload no longer decodes are
// skipped, not deleted; the former expire in place, the latter get overwritten
// on the next check of that URL.
func (c *Cache[T]) Load(ctx context.Context) error {
	persisted, err := c.storage.Entries(ctx, c.namespace)
	if err != nil {
		return fmt.Errorf("could not load cache entries: %w", err)
	}

	now := c.now()
	entries := make(map[string]entry[T], len(persisted))
	for _, row := range persisted {
		if now.Sub(row.CheckedAt) >= c.ttl {
			continue
		}

		var value T
		if err := json.Unmarshal(row.Payload, &value); err != nil {
			logger.Warn(ctx, "skipping undecodable cache entry",
				zap.String("namespace", string(c.namespace)),
				zap.String("url", row.URL),
				zap.Error(err))

			continue
		}

		entries[row.URL] = entry[T]{value: value, checkedAt: row.CheckedAt}
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	return nil
}

// Get returns the cached value for a normalized URL when present and fresh.
// An expired entry is removed and reported as a miss.
func (c *Cache[T]) Get(url string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T

	e, ok := c.entries[url]
	if !ok {
		return zero, false
	}

	if c.now().Sub(e.checkedAt) >= c.ttl {
		delete(c.entries, url)

		return zero, false
	}

	return e.value, true
}

// Put stores a value for a normalized URL and writes it through to storage.
// When the write-through fails the in-memory entry is kept anyway so the
// verdict still serves this session; it just will not survive a restart.
func (c *Cache[T]) Put(ctx context.Context, url string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not encode cache entry: %w", err)
	}

	checkedAt := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[url] = entry[T]{value: value, checkedAt: checkedAt}

	if err := c.storage.UpsertEntry(ctx, storage.CacheEntry{
		Namespace: c.namespace,
		URL:       url,
		Payload:   payload,
		CheckedAt: checkedAt,
	}); err != nil {
		return fmt.Errorf("could not persist cache entry: %w", err)
	}

	return nil
}

// Purge drops every entry of the namespace, in memory and in storage.
func (c *Cache[T]) Purge(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[T])

	if err := c.storage.PurgeNamespace(ctx, c.namespace); err != nil {
		return fmt.Errorf("could not purge cache namespace: %w", err)
	}

	return nil
}

// Len reports the number of entries currently held in memory, including any
// that have expired but have not been touched by Get yet.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
