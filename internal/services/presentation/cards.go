package presentation

import (
	"time"

	"RecoBoard/internal/domain/models"
)

// BuildCards maps the rendered records to cards: needs-attention first,
// then the visible (capped) active section.
func BuildCards(vm models.SectionedViewModel, today time.Time, cal Calendar) []models.Card {
	cards := make([]models.Card, 0, len(vm.NeedsAttention)+len(vm.Active))
	for _, r := range vm.NeedsAttention {
		cards = append(cards, buildCard(r, models.SectionNeedsAttention, today, cal))
	}
	for _, r := range vm.Active {
		cards = append(cards, buildCard(r, models.SectionActive, today, cal))
	}
	return cards
}

func buildCard(r models.Record, section models.Section, today time.Time, cal Calendar) models.Card {
	return models.Card{
		InstrumentID:       r.InstrumentID,
		DisplayName:        r.Name(),
		Status:             r.Status,
		Section:            section,
		AnchorDate:         cal.DateKey(r.AnchorDate),
		TradingDaysElapsed: cal.ElapsedTradingDays(r.AnchorDate, today),
		IsNewToday:         section == models.SectionActive && cal.IsSameCalendarDay(r.AnchorDate, today),
		ChangedToday:       cal.IsSameCalendarDay(r.StatusChangedAt, today),
		ArchiveReason:      r.ArchiveReason,
		ReturnMetrics:      r.ReturnMetrics,
	}
}
