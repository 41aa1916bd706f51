package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	domrepo "RecoBoard/internal/domain/repository"
	"RecoBoard/pkg/logger"
)

// Refresher re-renders the default payload after a snapshot change.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context) error

func (f RefreshFunc) Refresh(ctx context.Context) error { return f(ctx) }

// PresenterRefresher wraps Presenter.Refresh for the feed paths.
func PresenterRefresher(p *Presenter) Refresher {
	return RefreshFunc(func(ctx context.Context) error {
		_, err := p.Refresh(ctx)
		return err
	})
}

// FeedRefresher polls the HTTP feed on a cron schedule.
type FeedRefresher struct {
	source    domrepo.FeedSource
	snapshots domrepo.SnapshotStore
	refresher Refresher
	metrics   domrepo.Metrics
	log       *logger.Logger
	schedule  string
	timeout   time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	initial sync.WaitGroup
}

func NewFeedRefresher(
	source domrepo.FeedSource,
	snapshots domrepo.SnapshotStore,
	refresher Refresher,
	metrics domrepo.Metrics,
	log *logger.Logger,
	schedule string,
	timeout time.Duration,
) *FeedRefresher {
	if log == nil {
		log = logger.Nop()
	}
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &FeedRefresher{
		source:    source,
		snapshots: snapshots,
		refresher: refresher,
		metrics:   metrics,
		log:       log.With("feed_refresher"),
		schedule:  schedule,
		timeout:   timeout,
	}
}

// Start runs one poll immediately and then on every schedule tick. Ticks
// that fire while a poll is still running are skipped.
func (r *FeedRefresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{r.log})))
	id, err := c.AddFunc(r.schedule, func() { r.poll(ctx) })
	if err != nil {
		return fmt.Errorf("feed schedule %q: %w", r.schedule, err)
	}
	c.Start()
	r.cron = c
	r.log.Info("feed refresher started", logger.String("schedule", r.schedule))

	// the first poll goes through the same chain, so a tick during it is skipped
	first := c.Entry(id).WrappedJob
	r.initial.Add(1)
	go func() {
		defer r.initial.Done()
		first.Run()
	}()
	return nil
}

// Stop waits for a running poll to finish or ctx to expire.
func (r *FeedRefresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		r.initial.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("feed refresher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *FeedRefresher) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := r.RunOnce(ctx); err != nil {
		r.log.Warn("feed poll failed", logger.Error(err))
	}
}

// RunOnce fetches the feed, replaces the held snapshot and refreshes the
// payload. The refresh runs even for unchanged content so window and date
// transitions reach subscribers.
func (r *FeedRefresher) RunOnce(ctx context.Context) (bool, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := r.source.Fetch(ctx)
	r.metrics.RecordLatency("feed_fetch_seconds", time.Since(start).Seconds())
	if err != nil {
		r.metrics.RecordError("feed_fetch")
		return false, err
	}

	snap, changed, err := r.snapshots.Replace(ctx, raw, "http")
	if err != nil {
		r.metrics.RecordError("snapshot_replace")
		return false, err
	}
	if changed {
		r.metrics.RecordSnapshot(snap.Source, len(snap.Records))
		r.log.Info("snapshot replaced",
			logger.String("snapshot", snap.ID),
			logger.Int("records", len(snap.Records)),
		)
	}

	if r.refresher != nil {
		if err := r.refresher.Refresh(ctx); err != nil {
			return changed, fmt.Errorf("refresh payload: %w", err)
		}
	}
	return changed, nil
}

// cronLogger adapts the app logger to cron.Logger.
type cronLogger struct {
	l *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
