package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RecoBoard/internal/domain/models"
	"RecoBoard/internal/repository"
)

func TestFeedRefresherRunOnce(t *testing.T) {
	src := &fakeSource{records: sampleFeed()}
	store := repository.NewMemorySnapshotStore()
	ref := &fakeRefresher{}
	m := newFakeMetrics()
	r := NewFeedRefresher(src, store, ref, m, nil, "@every 1m", time.Second)
	ctx := context.Background()

	changed, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	snap, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "http", snap.Source)
	assert.Len(t, snap.Records, 5)
	assert.Equal(t, 1, m.snapshots["http"])

	// same content: no new snapshot, payload still refreshed
	changed, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, m.snapshots["http"])
	assert.Equal(t, 2, ref.Calls())
}

func TestFeedRefresherFetchError(t *testing.T) {
	src := &fakeSource{err: errBoom}
	store := repository.NewMemorySnapshotStore()
	ref := &fakeRefresher{}
	m := newFakeMetrics()
	r := NewFeedRefresher(src, store, ref, m, nil, "", 0)

	_, err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, m.errorCount("feed_fetch"))
	assert.Zero(t, ref.Calls())
}

func TestFeedRefresherRefreshError(t *testing.T) {
	src := &fakeSource{records: sampleFeed()}
	ref := &fakeRefresher{err: errBoom}
	r := NewFeedRefresher(src, repository.NewMemorySnapshotStore(), ref, newFakeMetrics(), nil, "", 0)

	changed, err := r.RunOnce(context.Background())
	assert.True(t, changed)
	assert.ErrorIs(t, err, errBoom)
}

func TestFeedRefresherStartStop(t *testing.T) {
	src := &fakeSource{records: sampleFeed()}
	ref := &fakeRefresher{}
	r := NewFeedRefresher(src, repository.NewMemorySnapshotStore(), ref, newFakeMetrics(), nil, "@every 1h", 0)

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Start(context.Background()), "second start is a no-op")
	require.Eventually(t, func() bool { return ref.Calls() == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
	require.NoError(t, r.Stop(ctx))
	assert.Equal(t, 1, src.Calls())
}

type slowSource struct {
	calls   atomic.Int32
	release chan struct{}
}

func (s *slowSource) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	if s.calls.Add(1) == 1 {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return sampleFeed(), nil
}

func TestFeedRefresherSkipsTicksDuringFirstPoll(t *testing.T) {
	src := &slowSource{release: make(chan struct{})}
	ref := &fakeRefresher{}
	r := NewFeedRefresher(src, repository.NewMemorySnapshotStore(), ref, newFakeMetrics(), nil, "@every 1s", 0)

	require.NoError(t, r.Start(context.Background()))
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	// at least one tick fires while the first poll is blocked
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, int32(1), src.calls.Load())

	close(src.release)
	require.Eventually(t, func() bool { return ref.Calls() >= 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
}

func TestFeedRefresherBadSchedule(t *testing.T) {
	r := NewFeedRefresher(&fakeSource{}, repository.NewMemorySnapshotStore(), nil, newFakeMetrics(), nil, "every now and then", 0)
	assert.Error(t, r.Start(context.Background()))
}

func TestKvFields(t *testing.T) {
	fields := kvFields([]interface{}{"now", 1, "entry", 2, "dangling"})
	assert.Len(t, fields, 2)
}
