package core

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/go-linkboard/internal/catalog"
	"github.com/roniherschmann/go-linkboard/internal/metrics"
	"github.com/roniherschmann/go-linkboard/internal/period"
	"github.com/roniherschmann/go-linkboard/internal/store"
)

const unknown = "unknown"

// Recorder appends click log rows and maintains the rolling counters.
// Recording is best effort: failures are logged and counted, never returned.
type Recorder struct {
	store  store.Store
	loc    *time.Location
	clicks chan store.Click
}

func NewRecorder(s store.Store, loc *time.Location, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 1
	}
	return &Recorder{
		store:  s,
		loc:    loc,
		clicks: make(chan store.Click, buffer),
	}
}

// NewClick builds the log entry for a redirect that happened at t.
func (r *Recorder) NewClick(id, name string, category catalog.Category, t time.Time, ip, ua string) store.Click {
	st := period.NewStamp(t, r.loc)
	if ip == "" {
		ip = unknown
	}
	if ua == "" {
		ua = unknown
	}
	return store.Click{
		LinkID:    id,
		Name:      name,
		Category:  string(category),
		Year:      st.Year,
		MonthKey:  st.MonthKey,
		Time:      st.Time,
		IP:        ip,
		UserAgent: ua,
	}
}

// Submit queues a click for the ingester and returns immediately. Clicks
// are dropped when the buffer is full or no store is configured.
func (r *Recorder) Submit(c store.Click) {
	if r.store == nil {
		return
	}
	select {
	case r.clicks <- c:
	default:
		// Drop if buffer full to keep redirect fast
		metrics.ClicksDropped.Inc()
	}
}

// Run drains submitted clicks until ctx is cancelled, then records whatever
// is still buffered. Cancellation stops the loop, not in-flight writes.
func (r *Recorder) Run(ctx context.Context) {
	wctx := context.WithoutCancel(ctx)
	for {
		select {
		case c := <-r.clicks:
			r.Record(wctx, c)
		case <-ctx.Done():
			r.drain(wctx)
			return
		}
	}
}

func (r *Recorder) drain(ctx context.Context) {
	for {
		select {
		case c := <-r.clicks:
			r.Record(ctx, c)
		default:
			return
		}
	}
}

// Record writes the log row and then upserts the counter. The two writes are
// independent; one failing does not skip the other.
func (r *Recorder) Record(ctx context.Context, c store.Click) {
	if r.store == nil {
		return
	}
	if c.LinkID == "" {
		log.Warn().Str("click_time", c.Time).Msg("click without identifier ignored")
		return
	}

	logErr := r.store.InsertClick(ctx, c)
	if logErr != nil {
		metrics.RecordFailures.WithLabelValues("log").Inc()
		log.Error().Err(logErr).Str("link_id", c.LinkID).Msg("insert click log")
	}

	counterErr := r.store.UpsertCounter(ctx, c.LinkID, func(prev *store.Counter) store.Counter {
		return Advance(prev, c)
	})
	if counterErr != nil {
		metrics.RecordFailures.WithLabelValues("counter").Inc()
		log.Error().Err(counterErr).Str("link_id", c.LinkID).Msg("upsert click counter")
	}

	if logErr == nil || counterErr == nil {
		metrics.ClicksRecorded.Inc()
	}
}

// Advance applies one click to a counter row. Period counters continue when
// the click falls in the stored watermark period and restart at 1 otherwise.
// Clicks are assumed to arrive in timestamp order per identifier; an older
// click arriving late resets the period it belongs to.
func Advance(prev *store.Counter, c store.Click) store.Counter {
	day := period.DayOf(c.Time)
	if prev == nil {
		return store.Counter{
			ID:          c.LinkID,
			Name:        c.Name,
			Type:        c.Category,
			TotalClicks: 1,
			YearClicks:  1,
			MonthClicks: 1,
			DayClicks:   1,
			LastYear:    c.Year,
			LastMonth:   c.MonthKey,
			LastDay:     day,
			LastTime:    c.Time,
		}
	}

	next := *prev
	next.Name = c.Name
	next.Type = c.Category
	next.TotalClicks++
	next.YearClicks = roll(prev.YearClicks, prev.LastYear, c.Year)
	next.MonthClicks = roll(prev.MonthClicks, prev.LastMonth, c.MonthKey)
	next.DayClicks = roll(prev.DayClicks, prev.LastDay, day)
	next.LastYear = c.Year
	next.LastMonth = c.MonthKey
	next.LastDay = day
	next.LastTime = c.Time
	return next
}

func roll(count int64, watermark, incoming string) int64 {
	if watermark == incoming {
		return count + 1
	}
	return 1
}
