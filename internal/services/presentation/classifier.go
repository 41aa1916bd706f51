package presentation

import "RecoBoard/internal/domain/models"

// Classify partitions records by section, deduplicates and sorts each
// partition, and applies displayCap to the active section only. Hidden
// statuses are never rendered; ARCHIVED instruments are counted.
// Records whose status the registry does not know are skipped.
//
// A nil slice is an empty feed. The input is never modified.
func Classify(records []models.Record, displayCap int, reg Registry) models.SectionedViewModel {
	var active, attention []models.Record
	archived := make(map[string]struct{})

	for _, r := range records {
		rule, ok := reg.Rule(r.Status)
		if !ok {
			continue
		}
		switch rule.Section {
		case models.SectionActive:
			active = append(active, r)
		case models.SectionNeedsAttention:
			attention = append(attention, r)
		case models.SectionHidden:
			if r.Status == models.StatusArchived {
				archived[r.InstrumentID] = struct{}{}
			}
		}
	}

	active = SortActive(Dedupe(active, reg))
	attention = SortNeedsAttention(Dedupe(attention, reg))

	return models.NewSectionedViewModel(active, attention, len(archived), displayCap)
}
