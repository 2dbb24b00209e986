package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roniherschmann/go-linkboard/internal/catalog"
	"github.com/roniherschmann/go-linkboard/internal/period"
	"github.com/roniherschmann/go-linkboard/internal/store"
)

var (
	errBoom = errors.New("boom")
	zone    = period.Zone(8)
)

func newTestStore(t *testing.T) *store.SQLite {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000", filepath.Join(t.TempDir(), "core.db"))
	db, err := store.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewSQLite(db)
}

// at parses a display-zone timestamp.
func at(t *testing.T, ts string) time.Time {
	t.Helper()
	v, err := time.ParseInLocation(period.TimeLayout, ts, zone)
	require.NoError(t, err)
	return v
}

// flakyStore fails selected operations and delegates the rest.
type flakyStore struct {
	store.Store
	fail map[string]bool
}

func (f *flakyStore) InsertClick(ctx context.Context, c store.Click) error {
	if f.fail["insert"] {
		return errBoom
	}
	return f.Store.InsertClick(ctx, c)
}

func (f *flakyStore) UpsertCounter(ctx context.Context, id string, fn store.CounterFunc) error {
	if f.fail["upsert"] {
		return errBoom
	}
	return f.Store.UpsertCounter(ctx, id, fn)
}

func (f *flakyStore) Counters(ctx context.Context) ([]store.Counter, error) {
	if f.fail["counters"] {
		return nil, errBoom
	}
	return f.Store.Counters(ctx)
}

func (f *flakyStore) CountByPrefix(ctx context.Context, prefix string) (map[string]int64, error) {
	if f.fail["prefix"] {
		return nil, errBoom
	}
	return f.Store.CountByPrefix(ctx, prefix)
}

func (f *flakyStore) CountByMonthKey(ctx context.Context, monthKey string) (map[string]int64, error) {
	if f.fail["month_context"] {
		return nil, errBoom
	}
	return f.Store.CountByMonthKey(ctx, monthKey)
}

func (f *flakyStore) MonthTotal(ctx context.Context, monthKey string) (int64, error) {
	if f.fail["month_total"] {
		return 0, errBoom
	}
	return f.Store.MonthTotal(ctx, monthKey)
}

func (f *flakyStore) RecentClicks(ctx context.Context, id, prefix string, limit int) ([]store.Click, error) {
	if f.fail["recent"] {
		return nil, errBoom
	}
	return f.Store.RecentClicks(ctx, id, prefix, limit)
}

func entries(ids ...string) []catalog.Entry {
	out := make([]catalog.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.Entry{ID: id, Name: id, Category: catalog.CategoryLink})
	}
	return out
}
