package di

import "time"

// usMarketHolidays returns a fixed-date approximation of the US equity
// market holiday calendar for the given years: New Year's Day, Juneteenth,
// Independence Day, and Christmas. It does not observe weekend-shift rules
// or the floating holidays (MLK Day, Presidents' Day, Good Friday, Memorial
// Day, Labor Day, Thanksgiving) — matching the same hand-rolled, partial
// table shape as the market-hours calendar's stdlib justification in
// internal/clock.
func usMarketHolidays(years ...int) []time.Time {
	var out []time.Time
	for _, y := range years {
		out = append(out,
			time.Date(y, time.January, 1, 0, 0, 0, 0, time.Local),
			time.Date(y, time.June, 19, 0, 0, 0, 0, time.Local),
			time.Date(y, time.July, 4, 0, 0, 0, 0, time.Local),
			time.Date(y, time.December, 25, 0, 0, 0, 0, time.Local),
		)
	}
	return out
}
