package store

import (
	"context"
	"errors"
)

// Click is one row of the append-only click log.
type Click struct {
	LinkID    string `json:"link_id"`
	Name      string `json:"-"`
	Category  string `json:"-"`
	Year      string `json:"-"`
	MonthKey  string `json:"month_key"`
	Time      string `json:"click_time"`
	IP        string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// Counter is the rolling per-identifier summary row.
type Counter struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	TotalClicks int64  `json:"total_clicks"`
	YearClicks  int64  `json:"year_clicks"`
	MonthClicks int64  `json:"month_clicks"`
	DayClicks   int64  `json:"day_clicks"`
	LastYear    string `json:"last_year"`
	LastMonth   string `json:"last_month"`
	LastDay     string `json:"last_day"`
	LastTime    string `json:"last_time"`
}

// CounterFunc computes the new counter row from the stored one. prev is nil
// when no row exists for the identifier yet.
type CounterFunc func(prev *Counter) Counter

type Store interface {
	InsertClick(ctx context.Context, c Click) error
	// UpsertCounter runs fn inside a write transaction so the read-modify-write
	// of a single row is serialized against concurrent writers.
	UpsertCounter(ctx context.Context, id string, fn CounterFunc) error
	Counter(ctx context.Context, id string) (Counter, error)
	Counters(ctx context.Context) ([]Counter, error)
	// CountByPrefix counts log rows per link_id whose click_time starts with prefix.
	CountByPrefix(ctx context.Context, prefix string) (map[string]int64, error)
	CountByMonthKey(ctx context.Context, monthKey string) (map[string]int64, error)
	MonthTotal(ctx context.Context, monthKey string) (int64, error)
	RecentClicks(ctx context.Context, id, prefix string, limit int) ([]Click, error)
	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")
