package presentation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"RecoBoard/internal/domain/models"
)

func TestResolveBannerTable(t *testing.T) {
	today := day(2024, 5, 6)
	withNew := Classify([]models.Record{rec("N", models.StatusActive, today)}, 10, DefaultRegistry())
	withOld := Classify([]models.Record{rec("O", models.StatusActive, day(2024, 5, 2))}, 10, DefaultRegistry())
	empty := Classify(nil, 10, DefaultRegistry())
	cal := NewCalendar(nil)

	tests := []struct {
		name   string
		window models.TimeWindow
		vm     models.SectionedViewModel
		want   models.BannerState
	}{
		{"holiday", models.WindowHoliday, withNew, models.BannerMarketHoliday},
		{"before cutoff", models.WindowBeforeCutoff, withNew, models.BannerBeforeCutoff},
		{"after cutoff new", models.WindowAfterCutoff, withNew, models.BannerNewAfterCutoff},
		{"after cutoff maintained", models.WindowAfterCutoff, withOld, models.BannerMaintainedAfterCutoff},
		{"after cutoff none", models.WindowAfterCutoff, empty, models.BannerNoneAfterCutoff},
		{"garbage window", models.TimeWindow("LUNCH"), withNew, models.BannerBeforeCutoff},
		{"empty window", models.TimeWindow(""), empty, models.BannerBeforeCutoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveBanner(tt.window, Summarize(tt.vm, today, cal), tt.vm)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveBannerIsTotal(t *testing.T) {
	today := day(2024, 5, 6)
	windows := []models.TimeWindow{models.WindowBeforeCutoff, models.WindowAfterCutoff, models.WindowHoliday, "garbage"}
	feeds := [][]models.Record{
		nil,
		{rec("N", models.StatusActive, today)},
		{rec("O", models.StatusActive, day(2024, 5, 1))},
		{rec("B", models.StatusBroken, day(2024, 5, 1))},
	}

	for _, w := range windows {
		for _, feed := range feeds {
			for _, displayCap := range []int{0, 10} {
				vm := Classify(feed, displayCap, DefaultRegistry())
				got := ResolveBanner(w, Summarize(vm, today, NewCalendar(nil)), vm)
				assert.Contains(t, models.AllBannerStates(), got)
			}
		}
	}
}

func TestResolveBannerIgnoresDisplayCap(t *testing.T) {
	vm := Classify([]models.Record{rec("O", models.StatusActive, day(2024, 5, 1))}, 0, DefaultRegistry())

	got := ResolveBanner(models.WindowAfterCutoff, models.DailyDigest{}, vm)

	assert.Equal(t, models.BannerMaintainedAfterCutoff, got)
}

// A broken record changed today with and without an unrelated active record.
func TestBrokenChangedTodayBanner(t *testing.T) {
	today := day(2024, 5, 6).Add(17 * time.Hour)
	y := rec("Y", models.StatusBroken, day(2024, 4, 1))
	y.StatusChangedAt = day(2024, 5, 6).Add(9 * time.Hour)
	cal := NewCalendar(nil)

	vm := Classify([]models.Record{y}, 10, DefaultRegistry())
	digest := Summarize(vm, today, cal)
	assert.Equal(t, []string{"Y"}, ids(digest.ChangedToday))
	assert.Equal(t, models.BannerNoneAfterCutoff, ResolveBanner(models.WindowAfterCutoff, digest, vm))

	vm = Classify([]models.Record{y, rec("Z", models.StatusActive, day(2024, 5, 2))}, 10, DefaultRegistry())
	digest = Summarize(vm, today, cal)
	assert.Equal(t, []string{"Y"}, ids(digest.ChangedToday))
	assert.Equal(t, models.BannerMaintainedAfterCutoff, ResolveBanner(models.WindowAfterCutoff, digest, vm))
}
