package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/storage"
)

const (
	checkResultsTable = "check_results"
	engineMetaTable   = "engine_meta"

	lastBlocklistRefreshKey = "last_blocklist_refresh"
)

// pgCheckResult mirrors one row of the check_results table.
type pgCheckResult struct {
	Namespace string          `db:"namespace"`
	URL       string          `db:"url"`
	Payload   json.RawMessage `db:"payload"`
	CheckedAt time.Time       `db:"checked_at"`
}

func (r *pgCheckResult) toEntry() storage.CacheEntry {
	return storage.CacheEntry{
		Namespace: storage.Namespace(r.Namespace),
		URL:       r.URL,
		Payload:   r.Payload,
		CheckedAt: r.CheckedAt,
	}
}

// Entries returns every persisted entry of the given namespace.
func (p *PgSQL) Entries(ctx context.Context, ns storage.Namespace) ([]storage.CacheEntry, error) {
	var rows []pgCheckResult
	if err := p.Builder.From(checkResultsTable).
		Where(goqu.I("namespace").Eq(string(ns))).
		Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("could not fetch cache entries from pg: %w", err)
	}

	out := make([]storage.CacheEntry, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntry())
	}

	return out, nil
}

// UpsertEntry inserts or replaces the entry for (namespace, url).
// Last-writer-wins: a concurrent upsert for the same key simply overwrites.
func (p *PgSQL) UpsertEntry(ctx context.Context, entry storage.CacheEntry) error {
	row := pgCheckResult{
		Namespace: string(entry.Namespace),
		URL:       entry.URL,
		Payload:   entry.Payload,
		CheckedAt: entry.CheckedAt,
	}

	if _, err := p.Builder.Insert(checkResultsTable).
		Rows(row).
		OnConflict(goqu.DoUpdate("namespace, url", goqu.Record{
			"payload":    row.Payload,
			"checked_at": row.CheckedAt,
		})).
		Executor().ExecContext(ctx); err != nil {
		return fmt.Errorf("could not upsert cache entry into pg: %w", err)
	}

	return nil
}

// PurgeNamespace removes every entry of the namespace.
func (p *PgSQL) PurgeNamespace(ctx context.Context, ns storage.Namespace) error {
	if _, err := p.Builder.Delete(checkResultsTable).
		Where(goqu.I("namespace").Eq(string(ns))).
		Executor().ExecContext(ctx); err != nil {
		return fmt.Errorf("could not purge cache namespace in pg: %w", err)
	}

	return nil
}

// LastBlocklistRefresh returns the recorded refresh time, or the zero time
// when no refresh has completed yet.
func (p *PgSQL) LastBlocklistRefresh(ctx context.Context) (time.Time, error) {
	var row struct {
		Value string `db:"value"`
	}
	found, err := p.Builder.From(engineMetaTable).
		Select(goqu.I("value")).
		Where(goqu.I("key").Eq(lastBlocklistRefreshKey)).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not fetch last blocklist refresh from pg: %w", err)
	}
	if !found {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, row.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse last blocklist refresh: %w", err)
	}

	return t, nil
}

// SetLastBlocklistRefresh records a successful blocklist refresh.
func (p *PgSQL) SetLastBlocklistRefresh(ctx context.Context, t time.Time) error {
	value := t.UTC().Format(time.RFC3339Nano)

	if _, err := p.Builder.Insert(engineMetaTable).
		Rows(goqu.Record{
			"key":        lastBlocklistRefreshKey,
			"value":      value,
			"updated_at": goqu.L("CURRENT_TIMESTAMP"),
		}).
		OnConflict(goqu.DoUpdate("key", goqu.Record{
			"value":      value,
			"updated_at": goqu.L("CURRENT_TIMESTAMP"),
		})).
		Executor().ExecContext(ctx); err != nil {
		return fmt.Errorf("could not store last blocklist refresh in pg: %w", err)
	}

	return nil
}
