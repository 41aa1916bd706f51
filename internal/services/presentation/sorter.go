package presentation

import (
	"bytes"
	"slices"
	"strings"
	"time"

	"RecoBoard/internal/domain/models"
)

// SortActive orders by anchor date, newest first, then instrument id.
// The input slice is not modified.
func SortActive(records []models.Record) []models.Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b models.Record) int {
		if c := compareTimeDesc(a.AnchorDate, b.AnchorDate); c != 0 {
			return c
		}
		if c := strings.Compare(a.InstrumentID, b.InstrumentID); c != 0 {
			return c
		}
		return compareRemaining(a, b)
	})
	if out == nil {
		out = []models.Record{}
	}
	return out
}

// SortNeedsAttention orders by termination time (statusChangedAt, else
// anchorDate), newest first, then instrument id.
// The input slice is not modified.
func SortNeedsAttention(records []models.Record) []models.Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b models.Record) int {
		if c := compareTimeDesc(terminatedAt(a), terminatedAt(b)); c != 0 {
			return c
		}
		if c := strings.Compare(a.InstrumentID, b.InstrumentID); c != 0 {
			return c
		}
		return compareRemaining(a, b)
	})
	if out == nil {
		out = []models.Record{}
	}
	return out
}

func terminatedAt(r models.Record) time.Time {
	if !r.StatusChangedAt.IsZero() {
		return r.StatusChangedAt
	}
	return r.AnchorDate
}

// compareTimeDesc sorts later instants first and absent values last.
func compareTimeDesc(a, b time.Time) int {
	switch {
	case a.IsZero() && b.IsZero():
		return 0
	case a.IsZero():
		return 1
	case b.IsZero():
		return -1
	case a.After(b):
		return -1
	case a.Before(b):
		return 1
	}
	return 0
}

// compareRemaining breaks ties on every remaining field so that only
// identical records compare equal, making the order independent of input order.
func compareRemaining(a, b models.Record) int {
	if c := strings.Compare(string(a.Status), string(b.Status)); c != 0 {
		return c
	}
	if c := compareTimeDesc(a.StatusChangedAt, b.StatusChangedAt); c != 0 {
		return c
	}
	if c := compareTimeDesc(a.AnchorDate, b.AnchorDate); c != 0 {
		return c
	}
	if c := strings.Compare(a.DisplayName, b.DisplayName); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.ArchiveReason), string(b.ArchiveReason)); c != 0 {
		return c
	}
	return bytes.Compare(a.ReturnMetrics, b.ReturnMetrics)
}
