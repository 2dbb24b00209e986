// Package period holds the calendar keys used by click accounting: the
// display-zone timestamp stamps written with every click and the day/month
// periods the dashboard can be scoped to.
package period

import (
	"fmt"
	"strings"
	"time"
)

const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
	TimeLayout  = "2006-01-02 15:04:05"
)

// Zone returns the fixed display offset, e.g. UTC+8.
func Zone(offsetHours int) *time.Location {
	name := fmt.Sprintf("UTC%+d", offsetHours)
	return time.FixedZone(name, offsetHours*3600)
}

// Stamp is the set of keys derived from one click instant.
type Stamp struct {
	Year     string // YYYY
	MonthKey string // YYYY_MM
	Day      string // YYYY-MM-DD
	Time     string // YYYY-MM-DD HH:MM:SS
}

func NewStamp(t time.Time, loc *time.Location) Stamp {
	t = t.In(loc)
	return Stamp{
		Year:     t.Format("2006"),
		MonthKey: t.Format("2006_01"),
		Day:      t.Format(DayLayout),
		Time:     t.Format(TimeLayout),
	}
}

// DayOf returns the YYYY-MM-DD portion of a click timestamp.
func DayOf(timestamp string) string {
	if len(timestamp) < len(DayLayout) {
		return timestamp
	}
	return timestamp[:len(DayLayout)]
}

// Period is a day (YYYY-MM-DD) or a month (YYYY-MM).
type Period struct {
	start time.Time
	day   bool
}

// Parse picks day mode for a ten character YYYY-MM-DD string and month mode
// otherwise. Month input may use '-' or '_' as separator. Input that is
// neither falls back to the month containing today. An empty string selects
// today.
func Parse(s string, today time.Time) Period {
	s = strings.TrimSpace(s)
	if s == "" {
		return Day(today)
	}
	if len(s) == len(DayLayout) {
		if t, err := time.Parse(DayLayout, s); err == nil {
			return Period{start: t, day: true}
		}
	}
	if t, err := time.Parse(MonthLayout, strings.Replace(s, "_", "-", 1)); err == nil {
		return Period{start: t}
	}
	return Month(today)
}

func Day(t time.Time) Period {
	return Period{start: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), day: true}
}

func Month(t time.Time) Period {
	return Period{start: time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)}
}

func (p Period) IsDay() bool { return p.day }

// String renders the period as YYYY-MM-DD or YYYY-MM. It doubles as the
// prefix matched against click_time.
func (p Period) String() string {
	if p.day {
		return p.start.Format(DayLayout)
	}
	return p.start.Format(MonthLayout)
}

func (p Period) Prefix() string { return p.String() }

// MonthKey is the YYYY_MM key of the month containing the period.
func (p Period) MonthKey() string {
	return p.start.Format("2006_01")
}

// Month returns the month containing the period.
func (p Period) Month() Period {
	return Month(p.start)
}

// PrevDay and NextDay are identity for month periods.
func (p Period) PrevDay() Period {
	if !p.day {
		return p
	}
	return Day(p.start.AddDate(0, 0, -1))
}

func (p Period) NextDay() Period {
	if !p.day {
		return p
	}
	return Day(p.start.AddDate(0, 0, 1))
}

func (p Period) PrevMonth() Period {
	return Month(p.start.AddDate(0, -1, 0))
}

func (p Period) NextMonth() Period {
	return Month(p.start.AddDate(0, 1, 0))
}

// Today returns the display-zone calendar date of t.
func Today(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
