package models

import "time"

// PresentationAudit is one persisted presentation pass.
type PresentationAudit struct {
	ID             string    `json:"id"`
	SnapshotID     string    `json:"snapshot_id"`
	TradingDate    string    `json:"trading_date"`
	Window         string    `json:"window"`
	Banner         string    `json:"banner"`
	ActiveTotal    int       `json:"active_total"`
	NeedsAttention int       `json:"needs_attention"`
	ArchivedCount  int       `json:"archived_count"`
	NewToday       int       `json:"new_today"`
	ChangedToday   int       `json:"changed_today"`
	Anomalies      int       `json:"anomalies"`
	CreatedAt      time.Time `json:"created_at"`
}

// AnomalyDigest is an aggregated diagnostic entry shipped by the log collector.
type AnomalyDigest struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// BannerChangedEvent is published when the banner differs from the last pass.
type BannerChangedEvent struct {
	SnapshotID  string    `json:"snapshot_id"`
	TradingDate string    `json:"trading_date"`
	Previous    string    `json:"previous,omitempty"`
	Current     string    `json:"current"`
	NewToday    []string  `json:"new_today,omitempty"`
	At          time.Time `json:"at"`
}
