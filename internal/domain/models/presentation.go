package models

import (
	"encoding/json"
	"time"
)

// Section is the UI grouping a status maps to.
type Section string

const (
	SectionActive         Section = "active"
	SectionNeedsAttention Section = "needs-attention"
	SectionHidden         Section = "hidden"
)

// SectionedViewModel is the classifier output.
type SectionedViewModel struct {
	NeedsAttention []Record `json:"needsAttention"`
	Active         []Record `json:"active"`
	ActiveTotal    int      `json:"activeTotal"`
	HasMore        bool     `json:"hasMore"`
	ArchivedCount  int      `json:"archivedCount"`

	// full active list before the display cap
	activeAll []Record
}

// NewSectionedViewModel assembles a view model from sorted partitions and
// applies the display cap to the active section.
func NewSectionedViewModel(active, needsAttention []Record, archivedCount, displayCap int) SectionedViewModel {
	if displayCap < 0 {
		displayCap = 0
	}
	visible := active
	hasMore := false
	if len(active) > displayCap {
		visible = active[:displayCap:displayCap]
		hasMore = true
	}
	if visible == nil {
		visible = []Record{}
	}
	if needsAttention == nil {
		needsAttention = []Record{}
	}
	return SectionedViewModel{
		NeedsAttention: needsAttention,
		Active:         visible,
		ActiveTotal:    len(active),
		HasMore:        hasMore,
		ArchivedCount:  archivedCount,
		activeAll:      active,
	}
}

// FullActive returns the sorted active section ignoring the display cap.
func (vm SectionedViewModel) FullActive() []Record {
	if vm.activeAll == nil {
		return vm.Active
	}
	return vm.activeAll
}

// DailyDigest summarizes what happened on the trading date.
type DailyDigest struct {
	NewToday     []Record `json:"newToday"`
	ChangedToday []Record `json:"changedToday"`
}

// IsEmpty reports whether nothing was issued or changed today.
func (d DailyDigest) IsEmpty() bool {
	return len(d.NewToday) == 0 && len(d.ChangedToday) == 0
}

// TimeWindow is supplied by the window collaborator.
type TimeWindow string

const (
	WindowBeforeCutoff TimeWindow = "BEFORE_CUTOFF"
	WindowAfterCutoff  TimeWindow = "AFTER_CUTOFF"
	WindowHoliday      TimeWindow = "HOLIDAY"
)

// BannerState is the single day-status banner shown above the feed.
type BannerState string

const (
	BannerBeforeCutoff          BannerState = "BEFORE_CUTOFF"
	BannerNewAfterCutoff        BannerState = "NEW_AFTER_CUTOFF"
	BannerMaintainedAfterCutoff BannerState = "MAINTAINED_AFTER_CUTOFF"
	BannerNoneAfterCutoff       BannerState = "NONE_AFTER_CUTOFF"
	BannerMarketHoliday         BannerState = "MARKET_HOLIDAY"
)

// AllBannerStates lists every banner state.
func AllBannerStates() []BannerState {
	return []BannerState{BannerBeforeCutoff, BannerNewAfterCutoff, BannerMaintainedAfterCutoff, BannerNoneAfterCutoff, BannerMarketHoliday}
}

// Card is the per-record view model handed to the rendering layer.
type Card struct {
	InstrumentID       string          `json:"instrumentId"`
	DisplayName        string          `json:"displayName"`
	Status             Status          `json:"status"`
	Section            Section         `json:"section"`
	AnchorDate         string          `json:"anchorDate,omitempty"`
	TradingDaysElapsed int             `json:"tradingDaysElapsed"`
	IsNewToday         bool            `json:"isNewToday"`
	ChangedToday       bool            `json:"changedToday"`
	ArchiveReason      ArchiveReason   `json:"archiveReason,omitempty"`
	ReturnMetrics      json.RawMessage `json:"returnMetrics,omitempty"`
}

// Anomaly is a data-contract problem found at the ingestion boundary.
type Anomaly struct {
	Kind         string `json:"kind"`
	Index        int    `json:"index"`
	InstrumentID string `json:"instrumentId,omitempty"`
	Field        string `json:"field,omitempty"`
	Value        string `json:"value,omitempty"`
}

// Presentation is the final payload consumed by the rendering layer.
type Presentation struct {
	SnapshotID  string             `json:"snapshotId"`
	AsOf        time.Time          `json:"asOf"`
	TradingDate string             `json:"tradingDate"`
	Window      TimeWindow         `json:"window"`
	Banner      BannerState        `json:"banner"`
	Sections    SectionedViewModel `json:"sections"`
	Digest      DailyDigest        `json:"digest"`
	Cards       []Card             `json:"cards"`
	Anomalies   int                `json:"anomalies"`
}
