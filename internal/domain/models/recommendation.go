package models

import (
	"encoding/json"
	"time"
)

// Status is the authoritative lifecycle status decided by the backend.
// The set is closed; see AllStatuses.
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusWeakWarning Status = "WEAK_WARNING"
	StatusBroken      Status = "BROKEN"
	StatusArchived    Status = "ARCHIVED"
	StatusReplaced    Status = "REPLACED"
)

// AllStatuses lists every known status in declaration order.
func AllStatuses() []Status {
	return []Status{StatusActive, StatusWeakWarning, StatusBroken, StatusArchived, StatusReplaced}
}

// ParseStatus maps a wire value onto the closed status set.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusActive, StatusWeakWarning, StatusBroken, StatusArchived, StatusReplaced:
		return Status(s), true
	default:
		return "", false
	}
}

// ArchiveReason is the backend's termination code. Only meaningful for
// ARCHIVED and BROKEN records; unknown codes are passed through verbatim.
type ArchiveReason string

const (
	ArchiveReasonStopLoss    ArchiveReason = "STOP_LOSS"
	ArchiveReasonTargetHit   ArchiveReason = "TARGET_HIT"
	ArchiveReasonExpired     ArchiveReason = "EXPIRED"
	ArchiveReasonTrendBroken ArchiveReason = "TREND_BROKEN"
	ArchiveReasonManual      ArchiveReason = "MANUAL"
	ArchiveReasonSuperseded  ArchiveReason = "SUPERSEDED"
)

// Record is one backend recommendation event after ingestion. Records are
// not unique per instrument and are never mutated once built.
// Zero-valued times mean "absent".
type Record struct {
	InstrumentID    string          `json:"instrumentId"`
	DisplayName     string          `json:"displayName,omitempty"`
	Status          Status          `json:"status"`
	AnchorDate      time.Time       `json:"anchorDate,omitempty"`
	StatusChangedAt time.Time       `json:"statusChangedAt,omitempty"`
	ArchiveReason   ArchiveReason   `json:"archiveReason,omitempty"`
	ReturnMetrics   json.RawMessage `json:"returnMetrics,omitempty"`
}

// Name returns the display name, falling back to the instrument id.
func (r Record) Name() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.InstrumentID
}

// MarshalJSON leaves absent dates out instead of writing the zero time.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	out := struct {
		plain
		AnchorDate      *time.Time `json:"anchorDate,omitempty"`
		StatusChangedAt *time.Time `json:"statusChangedAt,omitempty"`
	}{plain: plain(r)}
	if !r.AnchorDate.IsZero() {
		out.AnchorDate = &r.AnchorDate
	}
	if !r.StatusChangedAt.IsZero() {
		out.StatusChangedAt = &r.StatusChangedAt
	}
	return json.Marshal(out)
}

// HasAnchor reports whether the anchor date is present.
func (r Record) HasAnchor() bool { return !r.AnchorDate.IsZero() }

// RawRecord is the wire shape delivered by the feed collaborator.
type RawRecord struct {
	InstrumentID    string          `json:"instrumentId" yaml:"instrumentId"`
	DisplayName     string          `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Status          string          `json:"status" yaml:"status"`
	AnchorDate      string          `json:"anchorDate,omitempty" yaml:"anchorDate,omitempty"`
	StatusChangedAt string          `json:"statusChangedAt,omitempty" yaml:"statusChangedAt,omitempty"`
	ArchiveReason   string          `json:"archiveReason,omitempty" yaml:"archiveReason,omitempty"`
	ReturnMetrics   json.RawMessage `json:"returnMetrics,omitempty" yaml:"-"`
}

// Snapshot is one complete feed delivery.
type Snapshot struct {
	ID         string
	Hash       string
	ReceivedAt time.Time
	Source     string // "http", "kafka", "file"
	Records    []RawRecord
}
