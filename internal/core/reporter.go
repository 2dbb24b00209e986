package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/roniherschmann/go-linkboard/internal/catalog"
	"github.com/roniherschmann/go-linkboard/internal/clock"
	"github.com/roniherschmann/go-linkboard/internal/metrics"
	"github.com/roniherschmann/go-linkboard/internal/period"
	"github.com/roniherschmann/go-linkboard/internal/store"
)

// MaxRecentEvents bounds drill-down listings.
const MaxRecentEvents = 50

var ErrNoStore = errors.New("store not configured")

type Row struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Emoji             string           `json:"emoji,omitempty"`
	Category          catalog.Category `json:"category"`
	Backup            bool             `json:"backup,omitempty"`
	LifetimeTotal     int64            `json:"lifetime_total"`
	TodayCount        int64            `json:"today_count"`
	PeriodCount       int64            `json:"period_count"`
	MonthContextCount int64            `json:"month_context_count,omitempty"`
	LastSeen          string           `json:"last_seen,omitempty"`
	Percent           float64          `json:"percent"`
}

type Nav struct {
	PrevDay   string `json:"prev_day"`
	NextDay   string `json:"next_day"`
	PrevMonth string `json:"prev_month"`
	NextMonth string `json:"next_month"`
	Today     string `json:"today"`
	ThisMonth string `json:"this_month"`
}

type Summary struct {
	Period         string `json:"period"`
	DayMode        bool   `json:"day_mode"`
	Today          string `json:"today"`
	MonthKey       string `json:"month_key"`
	Rows           []Row  `json:"rows"`
	MonthTotal     int64  `json:"month_total"`
	HistoryTotal   int64  `json:"history_total"`
	LifetimeActive int    `json:"lifetime_active"`
	PeriodActive   int    `json:"period_active"`
	Nav            Nav    `json:"nav"`
}

// Reporter derives dashboard figures from the click log and the rolling
// counters. Nothing is cached; every call re-queries the store.
type Reporter struct {
	store store.Store
	clock clock.Clock
	loc   *time.Location
}

func NewReporter(s store.Store, c clock.Clock, loc *time.Location) *Reporter {
	return &Reporter{store: s, clock: c, loc: loc}
}

func (r *Reporter) today() time.Time {
	return period.Today(r.clock.Now(), r.loc)
}

// Summarize reports on the known identifiers for the selected day or month,
// plus any unlisted backup route of a known link that has recorded clicks.
// Each store query runs concurrently; a failed query degrades its figure to
// zero instead of failing the report.
func (r *Reporter) Summarize(ctx context.Context, selected string, known []catalog.Entry) (Summary, error) {
	if r.store == nil {
		return Summary{}, ErrNoStore
	}

	today := r.today()
	sel := period.Parse(selected, today)
	todayDay := period.Day(today)

	var (
		counters     []store.Counter
		todayCounts  map[string]int64
		periodCounts map[string]int64
		monthCounts  map[string]int64
		monthTotal   int64
		g            errgroup.Group
	)
	run := func(query string, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				metrics.ReportQueryFailures.WithLabelValues(query).Inc()
				log.Error().Err(err).Str("query", query).Str("period", sel.String()).Msg("report query")
			}
			return nil
		})
	}

	run("counters", func() error {
		res, err := r.store.Counters(ctx)
		if err != nil {
			return err
		}
		counters = res
		return nil
	})
	run("today", func() error {
		res, err := r.store.CountByPrefix(ctx, todayDay.Prefix())
		if err != nil {
			return err
		}
		todayCounts = res
		return nil
	})
	run("period", func() error {
		res, err := r.store.CountByPrefix(ctx, sel.Prefix())
		if err != nil {
			return err
		}
		periodCounts = res
		return nil
	})
	run("month_total", func() error {
		res, err := r.store.MonthTotal(ctx, sel.MonthKey())
		if err != nil {
			return err
		}
		monthTotal = res
		return nil
	})
	if sel.IsDay() {
		run("month_context", func() error {
			res, err := r.store.CountByMonthKey(ctx, sel.MonthKey())
			if err != nil {
				return err
			}
			monthCounts = res
			return nil
		})
	}
	_ = g.Wait()

	out := Summary{
		Period:     sel.String(),
		DayMode:    sel.IsDay(),
		Today:      todayDay.String(),
		MonthKey:   sel.MonthKey(),
		MonthTotal: monthTotal,
		Rows:       make([]Row, 0, len(known)),
		Nav: Nav{
			PrevDay:   sel.PrevDay().String(),
			NextDay:   sel.NextDay().String(),
			PrevMonth: sel.PrevMonth().String(),
			NextMonth: sel.NextMonth().String(),
			Today:     todayDay.String(),
			ThisMonth: period.Month(today).String(),
		},
	}

	byID := make(map[string]store.Counter, len(counters))
	for _, c := range counters {
		byID[c.ID] = c
		out.HistoryTotal += c.TotalClicks
	}
	known = withBackupTraffic(known, byID)

	var visible int64
	for _, e := range known {
		c := byID[e.ID]
		row := Row{
			ID:            e.ID,
			Name:          e.Name,
			Emoji:         e.Emoji,
			Category:      e.Category,
			Backup:        e.Backup,
			LifetimeTotal: c.TotalClicks,
			TodayCount:    todayCounts[e.ID],
			PeriodCount:   periodCounts[e.ID],
			LastSeen:      lastSeen(c.LastTime, sel.IsDay()),
		}
		if sel.IsDay() {
			row.MonthContextCount = monthCounts[e.ID]
		}
		visible += share(row, sel.IsDay())
		if row.LifetimeTotal > 0 {
			out.LifetimeActive++
		}
		if row.PeriodCount > 0 {
			out.PeriodActive++
		}
		out.Rows = append(out.Rows, row)
	}

	if visible > 0 {
		for i := range out.Rows {
			out.Rows[i].Percent = float64(share(out.Rows[i], sel.IsDay())) * 100 / float64(visible)
		}
	}
	return out, nil
}

// withBackupTraffic inserts a backup row after each link whose backup route
// has recorded clicks but is not listed, so that traffic stays visible.
func withBackupTraffic(known []catalog.Entry, counters map[string]store.Counter) []catalog.Entry {
	listed := make(map[string]bool, len(known))
	for _, e := range known {
		listed[e.ID] = true
	}
	out := make([]catalog.Entry, 0, len(known))
	for _, e := range known {
		out = append(out, e)
		if e.Category != catalog.CategoryLink || e.Backup || catalog.IsBackupID(e.ID) {
			continue
		}
		id := catalog.BackupID(e.ID)
		if _, ok := counters[id]; ok && !listed[id] {
			out = append(out, catalog.Entry{
				ID:       id,
				Name:     catalog.BackupName(e.Name),
				Emoji:    e.Emoji,
				Category: catalog.CategoryLink,
				Backup:   true,
			})
		}
	}
	return out
}

// share is the count a row's percentage is computed from: the month context
// when a single day is shown, the period count otherwise.
func share(r Row, dayMode bool) int64 {
	if dayMode {
		return r.MonthContextCount
	}
	return r.PeriodCount
}

// lastSeen renders a click timestamp as HH:MM:SS in day mode and MM-DD in
// month mode.
func lastSeen(ts string, dayMode bool) string {
	if len(ts) < len(period.TimeLayout) {
		return ""
	}
	if dayMode {
		return ts[11:]
	}
	return ts[5:10]
}

// RecentEvents lists the newest clicks for one identifier within a day or
// month, at most MaxRecentEvents entries.
func (r *Reporter) RecentEvents(ctx context.Context, id, selected string, limit int) ([]store.Click, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	if limit <= 0 || limit > MaxRecentEvents {
		limit = MaxRecentEvents
	}
	if id == "" {
		return []store.Click{}, nil
	}
	sel := period.Parse(selected, r.today())
	clicks, err := r.store.RecentClicks(ctx, id, sel.Prefix(), limit)
	if err != nil {
		return nil, fmt.Errorf("recent clicks for %s: %w", id, err)
	}
	return clicks, nil
}
