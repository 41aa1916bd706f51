package repository

import (
	"context"
	"fmt"

	"RecoBoard/internal/domain/models"
	pkgkafka "RecoBoard/pkg/kafka"
)

const eventBannerChanged = "banner.changed"

// recordSender is the slice of pkg/kafka.Producer the publisher needs.
type recordSender interface {
	Send(ctx context.Context, records ...pkgkafka.Record) error
	Close() error
}

// KafkaEventPublisher implements EventPublisher. Events are keyed by
// trading date so one day's transitions stay ordered on one partition.
// The snapshot id travels as the trace id.
type KafkaEventPublisher struct {
	producer recordSender
	topic    string
}

func NewKafkaEventPublisher(producer recordSender, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishBannerChanged(ctx context.Context, ev *models.BannerChangedEvent) error {
	msg := struct {
		Type string `json:"type"`
		*models.BannerChangedEvent
	}{Type: eventBannerChanged, BannerChangedEvent: ev}

	err := p.producer.Send(ctx, pkgkafka.Record{
		Topic: p.topic,
		Key:   []byte(ev.TradingDate),
		Value: msg,
		Headers: map[string]string{
			"event_type":           eventBannerChanged,
			pkgkafka.HeaderTraceID: ev.SnapshotID,
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventBannerChanged, err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}

// NoopEventPublisher is used when Kafka is disabled.
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishBannerChanged(context.Context, *models.BannerChangedEvent) error {
	return nil
}

func (NoopEventPublisher) Close() error { return nil }
