package presentation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RecoBoard/internal/domain/models"
)

func TestDedupeKeepsLatestAnchor(t *testing.T) {
	today := day(2024, 5, 10)
	in := []models.Record{
		rec("X", models.StatusActive, today.AddDate(0, 0, -3)),
		rec("X", models.StatusActive, today.AddDate(0, 0, -1)),
	}

	out := Dedupe(in, DefaultRegistry())

	require.Len(t, out, 1)
	assert.Equal(t, today.AddDate(0, 0, -1), out[0].AnchorDate)
}

func TestDedupeTieBreaks(t *testing.T) {
	reg := DefaultRegistry()
	anchor := day(2024, 5, 6)

	t.Run("present anchor beats absent", func(t *testing.T) {
		absent := models.Record{InstrumentID: "A", Status: models.StatusActive, DisplayName: "absent"}
		present := models.Record{InstrumentID: "A", Status: models.StatusActive, DisplayName: "present", AnchorDate: anchor}

		out := Dedupe([]models.Record{absent, present}, reg)
		require.Len(t, out, 1)
		assert.Equal(t, "present", out[0].DisplayName)

		out = Dedupe([]models.Record{present, absent}, reg)
		require.Len(t, out, 1)
		assert.Equal(t, "present", out[0].DisplayName)
	})

	t.Run("full tie keeps first", func(t *testing.T) {
		first := models.Record{InstrumentID: "A", Status: models.StatusActive, DisplayName: "first", AnchorDate: anchor}
		second := models.Record{InstrumentID: "A", Status: models.StatusWeakWarning, DisplayName: "second", AnchorDate: anchor}

		out := Dedupe([]models.Record{first, second}, reg)
		require.Len(t, out, 1)
		assert.Equal(t, "first", out[0].DisplayName)
	})

	t.Run("both absent keeps first", func(t *testing.T) {
		first := models.Record{InstrumentID: "A", Status: models.StatusActive, DisplayName: "first"}
		second := models.Record{InstrumentID: "A", Status: models.StatusActive, DisplayName: "second"}

		out := Dedupe([]models.Record{first, second}, reg)
		require.Len(t, out, 1)
		assert.Equal(t, "first", out[0].DisplayName)
	})
}

func TestDedupeKeepsBrokenHistory(t *testing.T) {
	in := []models.Record{
		rec("B", models.StatusBroken, day(2024, 4, 1)),
		rec("B", models.StatusBroken, day(2024, 4, 20)),
		rec("B", models.StatusBroken, day(2024, 4, 20)),
		rec("B", models.StatusActive, day(2024, 5, 2)),
	}

	out := Dedupe(in, DefaultRegistry())

	assert.Len(t, out, 4)
}

func TestDedupePreservesFirstOccurrenceOrder(t *testing.T) {
	in := []models.Record{
		rec("A", models.StatusActive, day(2024, 5, 1)),
		rec("B", models.StatusActive, day(2024, 5, 2)),
		rec("A", models.StatusActive, day(2024, 5, 3)),
		rec("C", models.StatusActive, day(2024, 5, 1)),
	}

	out := Dedupe(in, DefaultRegistry())

	assert.Equal(t, []string{"A", "B", "C"}, ids(out))
	assert.Equal(t, day(2024, 5, 3), out[0].AnchorDate)
}

func TestDedupeDoesNotMutateInput(t *testing.T) {
	in := []models.Record{
		rec("A", models.StatusActive, day(2024, 5, 1)),
		rec("A", models.StatusActive, day(2024, 5, 3)),
	}
	snapshot := append([]models.Record(nil), in...)

	Dedupe(in, DefaultRegistry())

	assert.Equal(t, snapshot, in)
}

func TestDedupeProperties(t *testing.T) {
	reg := DefaultRegistry()
	rnd := rand.New(rand.NewSource(7))
	statuses := []models.Status{models.StatusActive, models.StatusWeakWarning, models.StatusBroken}
	instruments := []string{"A", "B", "C", "D"}

	for round := 0; round < 200; round++ {
		n := rnd.Intn(12)
		in := make([]models.Record, 0, n)
		for i := 0; i < n; i++ {
			r := rec(instruments[rnd.Intn(len(instruments))], statuses[rnd.Intn(len(statuses))], day(2024, 5, 1+rnd.Intn(5)))
			if rnd.Intn(4) == 0 {
				r.AnchorDate = time.Time{}
			}
			in = append(in, r)
		}

		once := Dedupe(in, reg)
		require.Equal(t, once, Dedupe(once, reg), "dedupe is not idempotent for %v", in)

		for _, id := range instruments {
			var singleIn, singleOut, brokenIn, brokenOut int
			for _, r := range in {
				if r.InstrumentID != id {
					continue
				}
				if r.Status == models.StatusBroken {
					brokenIn++
				} else {
					singleIn++
				}
			}
			for _, r := range once {
				if r.InstrumentID != id {
					continue
				}
				if r.Status == models.StatusBroken {
					brokenOut++
				} else {
					singleOut++
				}
			}
			assert.Equal(t, brokenIn, brokenOut)
			if singleIn > 0 {
				assert.Equal(t, 1, singleOut)
			} else {
				assert.Zero(t, singleOut)
			}
		}
	}
}
