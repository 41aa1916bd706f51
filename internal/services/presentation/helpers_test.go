package presentation

import (
	"time"

	"RecoBoard/internal/domain/models"
)

var kst = time.FixedZone("KST", 9*60*60)

// day returns midnight UTC of the given date.
func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rec(id string, status models.Status, anchor time.Time) models.Record {
	return models.Record{InstrumentID: id, Status: status, AnchorDate: anchor}
}

func ids(records []models.Record) []string {
	return InstrumentIDs(records)
}
