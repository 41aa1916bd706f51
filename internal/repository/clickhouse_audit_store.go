package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"RecoBoard/internal/domain/models"
	pkgch "RecoBoard/pkg/clickhouse"
	applogger "RecoBoard/pkg/logger"
)

// CHAuditStore implements AuditStore backed by ClickHouse.
type CHAuditStore struct {
	ch *pkgch.Client
	db string
	l  *applogger.Logger
}

func NewCHAuditStore(ch *pkgch.Client, l *applogger.Logger) *CHAuditStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHAuditStore{ch: ch, db: ch.Database(), l: l.With("audit_store")}
}

func (s *CHAuditStore) presentationTable() string { return s.db + ".presentation_audit" }
func (s *CHAuditStore) anomalyTable() string      { return s.db + ".ingest_anomalies" }

// Schema returns the DDL Init runs, in order.
func (s *CHAuditStore) Schema() []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id String,
			snapshot_id String,
			trading_date Date,
			time_window LowCardinality(String),
			banner LowCardinality(String),
			active_total UInt32,
			needs_attention UInt32,
			archived_count UInt32,
			new_today UInt32,
			changed_today UInt32,
			anomalies UInt32,
			created_at DateTime64(3)
		) ENGINE = MergeTree ORDER BY (trading_date, created_at)`, s.presentationTable()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			level LowCardinality(String),
			message String,
			fields String,
			caller String,
			count UInt32,
			first_seen DateTime64(3),
			last_seen DateTime64(3)
		) ENGINE = MergeTree ORDER BY last_seen TTL toDateTime(last_seen) + INTERVAL 90 DAY`, s.anomalyTable()),
	}
}

func (s *CHAuditStore) Init(ctx context.Context) error {
	if err := s.ch.InitSchema(ctx, s.Schema()); err != nil {
		return fmt.Errorf("audit schema: %w", err)
	}
	return nil
}

func (s *CHAuditStore) InsertPresentation(ctx context.Context, a *models.PresentationAudit) error {
	start := time.Now()
	day, err := time.Parse("2006-01-02", a.TradingDate)
	if err != nil {
		return fmt.Errorf("audit trading date %q: %w", a.TradingDate, err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, snapshot_id, trading_date, time_window, banner, active_total,
		needs_attention, archived_count, new_today, changed_today, anomalies, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.presentationTable())

	err = s.ch.Batch(ctx, q, 1, func(stmt *sql.Stmt, _ int) error {
		_, err := stmt.ExecContext(ctx,
			a.ID,
			a.SnapshotID,
			day,
			a.Window,
			a.Banner,
			uint32(a.ActiveTotal),
			uint32(a.NeedsAttention),
			uint32(a.ArchivedCount),
			uint32(a.NewToday),
			uint32(a.ChangedToday),
			uint32(a.Anomalies),
			a.CreatedAt,
		)
		return err
	})
	if err != nil {
		s.l.Error("clickhouse insert presentation audit failed",
			applogger.String("table", s.presentationTable()),
			applogger.String("snapshot_id", a.SnapshotID),
			applogger.Error(err))
		return fmt.Errorf("insert presentation audit: %w", err)
	}
	s.l.Debug("presentation audit stored",
		applogger.String("id", a.ID),
		applogger.Duration("elapsed_ms", time.Since(start)))
	return nil
}

func (s *CHAuditStore) InsertAnomalies(ctx context.Context, entries []models.AnomalyDigest) error {
	if len(entries) == 0 {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s (level, message, fields, caller, count, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, s.anomalyTable())

	err := s.ch.Batch(ctx, q, len(entries), func(stmt *sql.Stmt, i int) error {
		e := entries[i]
		fields, err := json.Marshal(e.Fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			e.Level,
			e.Message,
			string(fields),
			e.Caller,
			uint32(e.Count),
			e.FirstSeen,
			e.LastSeen,
		)
		return err
	})
	if err != nil {
		s.l.Error("clickhouse insert anomalies failed",
			applogger.String("table", s.anomalyTable()),
			applogger.Int("rows", len(entries)),
			applogger.Error(err))
		return fmt.Errorf("insert anomalies: %w", err)
	}
	return nil
}

func (s *CHAuditStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *CHAuditStore) Close() error {
	return s.ch.Close()
}
