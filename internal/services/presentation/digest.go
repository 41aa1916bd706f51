package presentation

import (
	"time"

	"RecoBoard/internal/domain/models"
)

// Summarize lists active records issued today and rendered records whose
// status changed today. It reads the uncapped active section, so the
// digest does not depend on the display cap.
func Summarize(vm models.SectionedViewModel, today time.Time, cal Calendar) models.DailyDigest {
	digest := models.DailyDigest{
		NewToday:     []models.Record{},
		ChangedToday: []models.Record{},
	}

	active := vm.FullActive()
	for _, r := range active {
		if cal.IsSameCalendarDay(r.AnchorDate, today) {
			digest.NewToday = append(digest.NewToday, r)
		}
	}
	for _, section := range [][]models.Record{active, vm.NeedsAttention} {
		for _, r := range section {
			if cal.IsSameCalendarDay(r.StatusChangedAt, today) {
				digest.ChangedToday = append(digest.ChangedToday, r)
			}
		}
	}
	return digest
}

// InstrumentIDs returns the instrument ids of records in order.
func InstrumentIDs(records []models.Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.InstrumentID)
	}
	return ids
}
