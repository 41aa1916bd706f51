package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RecoBoard/internal/domain/models"
	"RecoBoard/internal/repository"
	"RecoBoard/internal/usecase"
	"RecoBoard/pkg/config"
	"RecoBoard/pkg/logger"
)

type countingSource struct{ n atomic.Int32 }

func (s *countingSource) Fetch(context.Context) ([]models.RawRecord, error) {
	s.n.Add(1)
	return []models.RawRecord{}, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordSnapshot(string, int) {}
func (nopMetrics) RecordAnomaly(string) {}
func (nopMetrics) RecordBanner(string) {}
func (nopMetrics) RecordSections(int, int, int) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordLatency(string, float64) {}

func TestAppRunsAndClosesInOrder(t *testing.T) {
	cfg := &config.Config{Environment: "test"}
	cfg.Server.ShutdownTimeout = time.Second

	var order []string
	app := New(cfg, logger.Nop(), nil,
		WithCloser("producer", func() error { order = append(order, "producer"); return nil }),
		WithCloser("clickhouse", func() error { order = append(order, "clickhouse"); return errors.New("already closed") }),
		WithCloser("redis", func() error { order = append(order, "redis"); return nil }),
		WithCloser("nil", nil),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := app.RunContext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clickhouse: already closed")
	assert.Equal(t, []string{"producer", "clickhouse", "redis"}, order)
}

func TestAppStopsRefresher(t *testing.T) {
	cfg := &config.Config{Environment: "test"}
	src := &countingSource{}
	ref := usecase.NewFeedRefresher(src, repository.NewMemorySnapshotStore(), nil, nopMetrics{}, nil, "@every 1h", 0)
	app := New(cfg, logger.Nop(), nil, WithFeedRefresher(ref))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	require.Eventually(t, func() bool { return src.n.Load() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
}
