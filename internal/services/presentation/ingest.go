package presentation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"RecoBoard/internal/domain/models"
	"RecoBoard/pkg/util"
)

// Anomaly kinds reported by Ingest.
const (
	AnomalyMissingStatus           = "missing_status"
	AnomalyUnknownStatus           = "unknown_status"
	AnomalyMissingInstrument       = "missing_instrument"
	AnomalyMalformedDate           = "malformed_date"
	AnomalyUnexpectedArchiveReason = "unexpected_archive_reason"
)

// ErrContractViolation is wrapped by every *ContractError.
var ErrContractViolation = errors.New("feed contract violation")

// ContractError lists the records excluded at ingestion.
type ContractError struct {
	Anomalies []models.Anomaly
}

func (e *ContractError) Error() string {
	if len(e.Anomalies) == 0 {
		return ErrContractViolation.Error()
	}
	first := e.Anomalies[0]
	return fmt.Sprintf("%s: %d record(s) excluded, first at index %d (%s)",
		ErrContractViolation, len(e.Anomalies), first.Index, first.Kind)
}

func (e *ContractError) Unwrap() error { return ErrContractViolation }

// IsExclusion reports whether an anomaly kind drops the record.
func IsExclusion(kind string) bool {
	switch kind {
	case AnomalyMissingStatus, AnomalyUnknownStatus, AnomalyMissingInstrument:
		return true
	}
	return false
}

// Ingest converts wire records into Records. Records without an instrument
// id or with a missing or unknown status are excluded; unparseable dates
// become absent; archive reasons on statuses that do not carry one are
// dropped. Every problem is returned as an Anomaly. Ingest never fails.
func Ingest(raw []models.RawRecord, loc *time.Location, reg Registry) ([]models.Record, []models.Anomaly) {
	records := make([]models.Record, 0, len(raw))
	var anomalies []models.Anomaly

	for i, rr := range raw {
		id := strings.TrimSpace(rr.InstrumentID)
		if id == "" {
			anomalies = append(anomalies, models.Anomaly{Kind: AnomalyMissingInstrument, Index: i, Field: "instrumentId"})
			continue
		}

		rawStatus := strings.TrimSpace(rr.Status)
		if rawStatus == "" {
			anomalies = append(anomalies, models.Anomaly{Kind: AnomalyMissingStatus, Index: i, InstrumentID: id, Field: "status"})
			continue
		}
		status, ok := models.ParseStatus(rawStatus)
		if !ok || !reg.Known(status) {
			anomalies = append(anomalies, models.Anomaly{Kind: AnomalyUnknownStatus, Index: i, InstrumentID: id, Field: "status", Value: rawStatus})
			continue
		}

		rec := models.Record{
			InstrumentID:  id,
			DisplayName:   strings.TrimSpace(rr.DisplayName),
			Status:        status,
			ReturnMetrics: rr.ReturnMetrics,
		}

		var bad bool
		if rec.AnchorDate, bad = parseOptionalDate(rr.AnchorDate, loc); bad {
			anomalies = append(anomalies, models.Anomaly{Kind: AnomalyMalformedDate, Index: i, InstrumentID: id, Field: "anchorDate", Value: rr.AnchorDate})
		}
		if rec.StatusChangedAt, bad = parseOptionalDate(rr.StatusChangedAt, loc); bad {
			anomalies = append(anomalies, models.Anomaly{Kind: AnomalyMalformedDate, Index: i, InstrumentID: id, Field: "statusChangedAt", Value: rr.StatusChangedAt})
		}

		if reason := strings.TrimSpace(rr.ArchiveReason); reason != "" {
			rule, _ := reg.Rule(status)
			if rule.CarriesArchiveReason {
				rec.ArchiveReason = models.ArchiveReason(reason)
			} else {
				anomalies = append(anomalies, models.Anomaly{Kind: AnomalyUnexpectedArchiveReason, Index: i, InstrumentID: id, Field: "archiveReason", Value: reason})
			}
		}

		records = append(records, rec)
	}
	return records, anomalies
}

// parseOptionalDate returns the zero time for empty input. bad is true when
// a non-empty value could not be parsed.
func parseOptionalDate(s string, loc *time.Location) (t time.Time, bad bool) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, false
	}
	t, ok := util.ParseDateIn(s, loc)
	if !ok {
		return time.Time{}, true
	}
	return t, false
}

// exclusions filters anomalies down to those that dropped a record.
func exclusions(anomalies []models.Anomaly) []models.Anomaly {
	var out []models.Anomaly
	for _, a := range anomalies {
		if IsExclusion(a.Kind) {
			out = append(out, a)
		}
	}
	return out
}
