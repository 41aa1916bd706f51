package presentation

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RecoBoard/internal/domain/models"
)

func TestIngest(t *testing.T) {
	raw := []models.RawRecord{
		{InstrumentID: "005930", DisplayName: "Samsung", Status: "ACTIVE", AnchorDate: "2024-05-06", ReturnMetrics: json.RawMessage(`{"pct":1.5}`)},
		{InstrumentID: "000660", Status: "BROKEN", AnchorDate: "20240402", StatusChangedAt: "2024-05-06T01:00:00Z", ArchiveReason: "STOP_LOSS"},
		{InstrumentID: "035420", Status: ""},
		{InstrumentID: "035720", Status: "PENDING"},
		{InstrumentID: "", Status: "ACTIVE"},
		{InstrumentID: "051910", Status: "WEAK_WARNING", AnchorDate: "yesterday", ArchiveReason: "MANUAL"},
		{InstrumentID: "207940", Status: "ARCHIVED", ArchiveReason: "SOMETHING_NEW"},
	}

	records, anomalies := Ingest(raw, kst, DefaultRegistry())

	require.Len(t, records, 4)
	assert.Equal(t, []string{"005930", "000660", "051910", "207940"}, ids(records))

	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, kst), records[0].AnchorDate)
	assert.JSONEq(t, `{"pct":1.5}`, string(records[0].ReturnMetrics))
	assert.Equal(t, time.Date(2024, 4, 2, 0, 0, 0, 0, kst), records[1].AnchorDate)
	assert.True(t, records[1].StatusChangedAt.Equal(time.Date(2024, 5, 6, 10, 0, 0, 0, kst)))
	assert.Equal(t, models.ArchiveReasonStopLoss, records[1].ArchiveReason)
	assert.False(t, records[2].HasAnchor())
	assert.Empty(t, records[2].ArchiveReason)
	assert.Equal(t, models.ArchiveReason("SOMETHING_NEW"), records[3].ArchiveReason)

	kinds := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		kinds = append(kinds, a.Kind)
	}
	assert.Equal(t, []string{
		AnomalyMissingStatus,
		AnomalyUnknownStatus,
		AnomalyMissingInstrument,
		AnomalyMalformedDate,
		AnomalyUnexpectedArchiveReason,
	}, kinds)
	assert.Equal(t, 3, anomalies[1].Index)
	assert.Equal(t, "PENDING", anomalies[1].Value)
}

func TestIngestEmpty(t *testing.T) {
	records, anomalies := Ingest(nil, time.UTC, DefaultRegistry())

	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.Empty(t, anomalies)
}

func TestEngineIngestStrictMode(t *testing.T) {
	raw := []models.RawRecord{
		{InstrumentID: "A", Status: "ACTIVE"},
		{InstrumentID: "B"},
		{InstrumentID: "C", Status: "ACTIVE", AnchorDate: "not-a-date"},
	}

	t.Run("strict", func(t *testing.T) {
		records, anomalies, err := NewEngine(WithStrictContract(true)).Ingest(raw)

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrContractViolation))

		var contractErr *ContractError
		require.True(t, errors.As(err, &contractErr))
		require.Len(t, contractErr.Anomalies, 1)
		assert.Equal(t, AnomalyMissingStatus, contractErr.Anomalies[0].Kind)
		assert.Contains(t, err.Error(), "1 record(s) excluded")

		assert.Len(t, records, 2)
		assert.Len(t, anomalies, 2)
	})

	t.Run("production", func(t *testing.T) {
		records, anomalies, err := NewEngine().Ingest(raw)

		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Len(t, anomalies, 2)
	})

	t.Run("strict ignores degradations", func(t *testing.T) {
		_, anomalies, err := NewEngine(WithStrictContract(true)).Ingest(raw[2:])

		require.NoError(t, err)
		assert.Len(t, anomalies, 1)
	})
}
