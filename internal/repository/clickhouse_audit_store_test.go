package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"RecoBoard/internal/domain/models"
	pkgch "RecoBoard/pkg/clickhouse"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockAuditStore(t *testing.T) (*CHAuditStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewCHAuditStore(pkgch.NewClientFromDB(db, "recoboard"), nil), mock
}

func TestAuditInit(t *testing.T) {
	s, mock := newMockAuditStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE DATABASE IF NOT EXISTS recoboard")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS recoboard.presentation_audit")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS recoboard.ingest_anomalies")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPresentation(t *testing.T) {
	s, mock := newMockAuditStore(t)
	created := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO recoboard.presentation_audit")).
		ExpectExec().
		WithArgs("a-1", "snap-1", time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), "AFTER_CUTOFF", "NEW_AFTER_CUTOFF",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), created).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.InsertPresentation(context.Background(), &models.PresentationAudit{
		ID:          "a-1",
		SnapshotID:  "snap-1",
		TradingDate: "2024-05-06",
		Window:      "AFTER_CUTOFF",
		Banner:      "NEW_AFTER_CUTOFF",
		ActiveTotal: 3,
		CreatedAt:   created,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPresentationRejectsBadDate(t *testing.T) {
	s, mock := newMockAuditStore(t)
	err := s.InsertPresentation(context.Background(), &models.PresentationAudit{TradingDate: "yesterday"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAnomaliesRollsBackOnError(t *testing.T) {
	s, mock := newMockAuditStore(t)
	now := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	entries := []models.AnomalyDigest{
		{Level: "warn", Message: "ingest anomaly", Fields: map[string]interface{}{"kind": "missing_status"}, Count: 3, FirstSeen: now, LastSeen: now},
		{Level: "warn", Message: "ingest anomaly", Fields: map[string]interface{}{"kind": "malformed_date"}, Count: 1, FirstSeen: now, LastSeen: now},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO recoboard.ingest_anomalies"))
	prep.ExpectExec().
		WithArgs("warn", "ingest anomaly", `{"kind":"missing_status"}`, "", sqlmock.AnyArg(), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(errors.New("too many parts"))
	mock.ExpectRollback()

	err := s.InsertAnomalies(context.Background(), entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many parts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAnomaliesEmpty(t *testing.T) {
	s, mock := newMockAuditStore(t)
	require.NoError(t, s.InsertAnomalies(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
