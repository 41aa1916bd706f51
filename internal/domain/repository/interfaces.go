package repository

import (
	"context"
	"errors"
	"time"

	"RecoBoard/internal/domain/models"
)

// ErrNoSnapshot is returned when no feed snapshot has been received yet.
var ErrNoSnapshot = errors.New("no feed snapshot available")

// FeedSource fetches the raw recommendation feed from the backend.
type FeedSource interface {
	Fetch(ctx context.Context) ([]models.RawRecord, error)
}

// SnapshotStore holds the latest accepted feed snapshot.
type SnapshotStore interface {
	Latest(ctx context.Context) (*models.Snapshot, error)
	Replace(ctx context.Context, records []models.RawRecord, source string) (*models.Snapshot, bool, error)
}

// NoticeStore persists "dismiss permanently" flags.
type NoticeStore interface {
	Dismiss(ctx context.Context, key string, ttl time.Duration) error
	IsDismissed(ctx context.Context, key string) (bool, error)
}

// AuditStore persists presentation passes and anomaly digests.
type AuditStore interface {
	Init(ctx context.Context) error
	InsertPresentation(ctx context.Context, a *models.PresentationAudit) error
	InsertAnomalies(ctx context.Context, entries []models.AnomalyDigest) error
	Health(ctx context.Context) error
	Close() error
}

// EventPublisher ships presentation events to downstream notifiers.
type EventPublisher interface {
	PublishBannerChanged(ctx context.Context, ev *models.BannerChangedEvent) error
	Close() error
}

// JobQueue enqueues background work.
type JobQueue interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

type Metrics interface {
	RecordSnapshot(source string, records int)
	RecordAnomaly(kind string)
	RecordBanner(state string)
	RecordSections(active, needsAttention, archived int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
