package usecase

import (
	"context"
	"fmt"
	"time"

	"RecoBoard/internal/domain/models"
	domrepo "RecoBoard/internal/domain/repository"
	"RecoBoard/pkg/logger"
	"RecoBoard/pkg/queue"
)

// AuditJobs persists queue messages to the audit store.
type AuditJobs struct {
	store   domrepo.AuditStore
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewAuditJobs(store domrepo.AuditStore, metrics domrepo.Metrics, log *logger.Logger) *AuditJobs {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditJobs{store: store, metrics: metrics, log: log.With("audit_jobs")}
}

// Jobs lists the queue jobs to register with the consumer.
func (a *AuditJobs) Jobs() []queue.Job {
	return []queue.Job{
		queue.NewJob("presentation-audit", JobPresentationAudit, a.HandlePresentation),
		queue.NewJob("anomaly-digest", JobAnomalyDigest, a.HandleAnomalies),
	}
}

func (a *AuditJobs) HandlePresentation(ctx context.Context, payload interface{}) error {
	audit, err := queue.ParsePayload[models.PresentationAudit](payload)
	if err != nil {
		a.metrics.RecordError("audit_decode")
		return err
	}
	if audit.ID == "" || audit.SnapshotID == "" {
		return fmt.Errorf("presentation audit missing id or snapshot")
	}
	start := time.Now()
	err = a.store.InsertPresentation(ctx, audit)
	a.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		a.metrics.RecordError("audit_insert")
		return err
	}
	return nil
}

func (a *AuditJobs) HandleAnomalies(ctx context.Context, payload interface{}) error {
	entries, err := queue.ParsePayload[[]models.AnomalyDigest](payload)
	if err != nil {
		a.metrics.RecordError("audit_decode")
		return err
	}
	if len(*entries) == 0 {
		return nil
	}
	if err := a.store.InsertAnomalies(ctx, *entries); err != nil {
		a.metrics.RecordError("anomaly_insert")
		return err
	}
	a.log.Debug("anomaly digest stored", logger.Int("entries", len(*entries)))
	return nil
}
