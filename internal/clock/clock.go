// Package clock supplies the current instant, regular-session windows, and
// days-to-expiration math, with a small built-in US equity holiday table.
package clock

import (
	"time"

	"github.com/aristath/goldcore/internal/config"
)

// Clock is the single source of "now" for the rest of the core, so tests can
// substitute a fixed instant instead of reaching for time.Now() directly.
type Clock interface {
	Now() time.Time
	Today() time.Time // midnight, local to the clock's location
}

// System is the production Clock backed by time.Now().
type System struct {
	Location *time.Location
}

// NewSystem returns a Clock in loc, defaulting to time.Local.
func NewSystem(loc *time.Location) *System {
	if loc == nil {
		loc = time.Local
	}
	return &System{Location: loc}
}

func (s *System) Now() time.Time {
	return time.Now().In(s.Location)
}

func (s *System) Today() time.Time {
	n := s.Now()
	y, m, d := n.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.Location)
}

// Fixed is a Clock frozen at a single instant, used by tests.
type Fixed struct {
	Instant time.Time
}

func (f Fixed) Now() time.Time { return f.Instant }
func (f Fixed) Today() time.Time {
	y, m, d := f.Instant.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, f.Instant.Location())
}

// Calendar answers market-session questions layered on top of a Clock.
// Grounded on the sibling trader module's MarketHoursService: a holiday
// cache plus weekday/session-window checks, rather than an external
// calendar library (none of the retrieval pack carries one for US equities).
type Calendar struct {
	clock    Clock
	hours    config.MarketHoursConfig
	holidays map[string]struct{} // "YYYY-MM-DD" -> present
}

// NewCalendar builds a Calendar with the given regular-hours config and a
// static holiday set for the given years. Holidays beyond the configured
// range are simply absent from the gate (trading would incorrectly be
// allowed); callers should extend Holidays for multi-year deployments.
func NewCalendar(clk Clock, hours config.MarketHoursConfig, holidays []time.Time) *Calendar {
	m := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		m[h.Format("2006-01-02")] = struct{}{}
	}
	return &Calendar{clock: clk, hours: hours, holidays: m}
}

// IsHoliday reports whether day (any time on that date) falls on a configured
// market holiday.
func (c *Calendar) IsHoliday(day time.Time) bool {
	_, ok := c.holidays[day.Format("2006-01-02")]
	return ok
}

// IsWeekend reports Saturday/Sunday.
func (c *Calendar) IsWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsMarketOpen reports whether instant t falls within regular trading hours
// on a non-holiday weekday.
func (c *Calendar) IsMarketOpen(t time.Time) bool {
	if c.IsWeekend(t) || c.IsHoliday(t) {
		return false
	}
	start, end, err := c.hours.RegularHoursWindow(t)
	if err != nil {
		return false
	}
	return !t.Before(start) && t.Before(end)
}

// IsEndOfDay reports whether t is within the configured pre-close window
// (minutesBeforeClose) of the regular session end; the orchestrator uses it
// to gate the trailing engine's EOD ratchet.
func (c *Calendar) IsEndOfDay(t time.Time, minutesBeforeClose int) bool {
	_, end, err := c.hours.RegularHoursWindow(t)
	if err != nil {
		return false
	}
	window := end.Add(-time.Duration(minutesBeforeClose) * time.Minute)
	return !t.Before(window) && t.Before(end)
}

// DaysToExpiration returns the whole-day count from "today" to expiration,
// truncated to midnight boundaries so same-day expirations report 0.
func DaysToExpiration(today, expiration time.Time) int {
	ty, tm, td := today.Date()
	ey, em, ed := expiration.Date()
	t0 := time.Date(ty, tm, td, 0, 0, 0, 0, today.Location())
	e0 := time.Date(ey, em, ed, 0, 0, 0, 0, today.Location())
	return int(e0.Sub(t0).Hours() / 24)
}

// IsExpired reports whether a play's GTD play_expiration_date has passed
// relative to today (P1 invariant from the data model).
func IsExpired(today, playExpiration time.Time) bool {
	return DaysToExpiration(today, playExpiration) < 0
}
