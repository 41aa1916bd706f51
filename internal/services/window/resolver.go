package window

import (
	"time"

	"RecoBoard/internal/domain/models"
)

// Resolver derives the display time window from the wall clock. Weekends
// and configured holidays are HOLIDAY; otherwise the daily cutoff splits
// BEFORE_CUTOFF from AFTER_CUTOFF.
type Resolver struct {
	loc      *time.Location
	cutoff   time.Duration
	holidays map[string]struct{}
}

type Option func(*Resolver)

// WithHolidays marks YYYY-MM-DD dates as market holidays.
func WithHolidays(dates map[string]struct{}) Option {
	return func(r *Resolver) {
		for d := range dates {
			r.holidays[d] = struct{}{}
		}
	}
}

// NewResolver returns a resolver for cutoff (offset from local midnight) in loc.
func NewResolver(loc *time.Location, cutoff time.Duration, opts ...Option) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	r := &Resolver{loc: loc, cutoff: cutoff, holidays: make(map[string]struct{})}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the window now falls into.
func (r *Resolver) Resolve(now time.Time) models.TimeWindow {
	local := now.In(r.loc)
	if r.IsHoliday(local) {
		return models.WindowHoliday
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)
	if local.Before(midnight.Add(r.cutoff)) {
		return models.WindowBeforeCutoff
	}
	return models.WindowAfterCutoff
}

// IsHoliday reports weekends and configured holiday dates.
func (r *Resolver) IsHoliday(t time.Time) bool {
	local := t.In(r.loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return true
	}
	_, ok := r.holidays[local.Format("2006-01-02")]
	return ok
}

// NoticeWindowID identifies the notice period, e.g. "20240506-AFTER_CUTOFF".
// Dismissals are scoped to it.
func (r *Resolver) NoticeWindowID(now time.Time) string {
	return now.In(r.loc).Format("20060102") + "-" + string(r.Resolve(now))
}

// Location returns the reference zone.
func (r *Resolver) Location() *time.Location { return r.loc }
