package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RecoBoard/internal/repository"
)

func TestKafkaFeedHandler(t *testing.T) {
	store := repository.NewMemorySnapshotStore()
	ref := &fakeRefresher{}
	m := newFakeMetrics()
	h := NewKafkaFeedHandler("reco.feed", store, ref, m, nil)
	ctx := context.Background()

	assert.Equal(t, "reco.feed", h.Topic())

	msg := []byte(`{"records":[{"instrumentId":"005930","status":"ACTIVE","anchorDate":"2024-05-06"}]}`)
	require.NoError(t, h.Handle(ctx, msg))
	snap, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "kafka", snap.Source)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "005930", snap.Records[0].InstrumentID)
	assert.Equal(t, 1, ref.Calls())
	assert.Equal(t, 1, m.snapshots["kafka"])

	// redelivery of the same content does not refresh
	require.NoError(t, h.Handle(ctx, msg))
	assert.Equal(t, 1, ref.Calls())
}

func TestKafkaFeedHandlerDropsGarbage(t *testing.T) {
	store := repository.NewMemorySnapshotStore()
	m := newFakeMetrics()
	h := NewKafkaFeedHandler("reco.feed", store, nil, m, nil)

	require.NoError(t, h.Handle(context.Background(), []byte(`{not json`)))
	assert.Equal(t, 1, m.errorCount("consumer_unmarshal"))
	_, err := store.Latest(context.Background())
	assert.Error(t, err)
}

func TestKafkaFeedHandlerRefreshErrorIsLogged(t *testing.T) {
	ref := &fakeRefresher{err: errBoom}
	m := newFakeMetrics()
	h := NewKafkaFeedHandler("reco.feed", repository.NewMemorySnapshotStore(), ref, m, nil)

	require.NoError(t, h.Handle(context.Background(), []byte(`[{"instrumentId":"1","status":"ACTIVE"}]`)))
	assert.Equal(t, 1, m.errorCount("refresh"))
}
