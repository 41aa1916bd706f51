package presentation

import (
	"time"

	"RecoBoard/pkg/util"
)

// Calendar does weekday-only date arithmetic in a single reference zone.
// Public holidays are not modeled: every Monday to Friday is a trading day.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar pinned to loc (UTC when nil).
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// Location returns the reference zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// day maps an instant to midnight UTC of its calendar day in the reference
// zone, so day differences are exact regardless of DST.
func (c Calendar) day(t time.Time) time.Time {
	y, m, d := t.In(c.Location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ElapsedTradingDays counts weekdays in [anchor, today] with the anchor day
// itself counting as day 0. Absent anchors and anchors after today yield 0.
func (c Calendar) ElapsedTradingDays(anchor, today time.Time) int {
	if anchor.IsZero() || today.IsZero() {
		return 0
	}
	from, to := c.day(anchor), c.day(today)
	if from.After(to) {
		return 0
	}
	n := weekdaysInclusive(from, to)
	if !isWeekendDay(from.Weekday()) {
		n--
	}
	if n < 0 {
		return 0
	}
	return n
}

// IsSameCalendarDay compares two instants by their reference-zone date.
// Absent values never match.
func (c Calendar) IsSameCalendarDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return c.day(a).Equal(c.day(b))
}

// IsWeekend reports Saturday or Sunday in the reference zone.
func (c Calendar) IsWeekend(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	return isWeekendDay(t.In(c.Location()).Weekday())
}

// DateKey formats the reference-zone date of t as YYYY-MM-DD.
func (c Calendar) DateKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return util.DateKey(t, c.Location())
}

func isWeekendDay(wd time.Weekday) bool {
	return wd == time.Saturday || wd == time.Sunday
}

// weekdaysInclusive counts Mon-Fri dates in [from, to]; both are UTC midnights, from <= to.
func weekdaysInclusive(from, to time.Time) int {
	days := int(to.Sub(from).Hours()/24) + 1
	count := (days / 7) * 5
	start := int(from.Weekday())
	for i := 0; i < days%7; i++ {
		if !isWeekendDay(time.Weekday((start + i) % 7)) {
			count++
		}
	}
	return count
}
