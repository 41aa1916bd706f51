package presentation

import "RecoBoard/internal/domain/models"

// ResolveBanner picks the day-status banner.
//
//	HOLIDAY                            -> MARKET_HOLIDAY
//	BEFORE_CUTOFF                      -> BEFORE_CUTOFF
//	AFTER_CUTOFF, new today            -> NEW_AFTER_CUTOFF
//	AFTER_CUTOFF, none new, active     -> MAINTAINED_AFTER_CUTOFF
//	AFTER_CUTOFF, none new, no active  -> NONE_AFTER_CUTOFF
//	anything else                      -> BEFORE_CUTOFF
//
// The active check ignores the display cap.
func ResolveBanner(window models.TimeWindow, digest models.DailyDigest, vm models.SectionedViewModel) models.BannerState {
	switch window {
	case models.WindowHoliday:
		return models.BannerMarketHoliday
	case models.WindowBeforeCutoff:
		return models.BannerBeforeCutoff
	case models.WindowAfterCutoff:
		switch {
		case len(digest.NewToday) > 0:
			return models.BannerNewAfterCutoff
		case len(vm.FullActive()) > 0:
			return models.BannerMaintainedAfterCutoff
		default:
			return models.BannerNoneAfterCutoff
		}
	}
	return models.BannerBeforeCutoff
}
