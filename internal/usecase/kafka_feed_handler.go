package usecase

import (
	"context"
	"time"

	domrepo "RecoBoard/internal/domain/repository"
	"RecoBoard/internal/service/feed"
	pkgkafka "RecoBoard/pkg/kafka"
	"RecoBoard/pkg/logger"
)

// KafkaFeedHandler consumes full snapshots pushed by the backend.
type KafkaFeedHandler struct {
	topic     string
	snapshots domrepo.SnapshotStore
	refresher Refresher
	metrics   domrepo.Metrics
	log       *logger.Logger
}

func NewKafkaFeedHandler(topic string, snapshots domrepo.SnapshotStore, refresher Refresher, metrics domrepo.Metrics, log *logger.Logger) *KafkaFeedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaFeedHandler{
		topic:     topic,
		snapshots: snapshots,
		refresher: refresher,
		metrics:   metrics,
		log:       log.With("kafka_feed"),
	}
}

func (h *KafkaFeedHandler) Topic() string { return h.topic }

// message schema: JSON array of records or {"records": [...]}
func (h *KafkaFeedHandler) Handle(ctx context.Context, b []byte) error {
	raw, err := feed.Decode(b)
	if err != nil {
		// a malformed snapshot is never retried
		h.metrics.RecordError("consumer_unmarshal")
		h.log.Warn("dropping undecodable snapshot", logger.Int("bytes", len(b)), logger.Error(err))
		return nil
	}

	start := time.Now()
	snap, changed, err := h.snapshots.Replace(ctx, raw, "kafka")
	h.metrics.RecordLatency("snapshot_replace_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("snapshot_replace")
		return err
	}
	if !changed {
		return nil
	}
	h.metrics.RecordSnapshot(snap.Source, len(snap.Records))
	h.log.Info("snapshot replaced", logger.String("snapshot", snap.ID), logger.Int("records", len(snap.Records)))

	if h.refresher != nil {
		if err := h.refresher.Refresh(ctx); err != nil {
			h.metrics.RecordError("refresh")
			h.log.Warn("refresh after snapshot failed", logger.String("snapshot", snap.ID), logger.Error(err))
		}
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaFeedHandler)(nil)
