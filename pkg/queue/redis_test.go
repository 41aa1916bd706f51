package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 6, 7, 30, 0, 0, time.UTC)

func newTestQueue(t *testing.T, mode Mode, cfg *Config) (*RedisQueue, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	q := NewRedisQueue(nil, cfg, db, mode)
	q.now = func() time.Time { return fixedNow }
	q.newID = func() string { return "msg-1" }
	return q, mock
}

func encoded(t *testing.T, msg Message) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return b
}

func TestEnqueueRequiresStart(t *testing.T) {
	q, _ := newTestQueue(t, ModeProducerOnly, nil)
	err := q.Enqueue(context.Background(), "x", 1)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestEnqueuePushesEnvelope(t *testing.T) {
	q, mock := newTestQueue(t, ModeProducerOnly, nil)

	mock.ExpectPing().SetVal("PONG")
	require.NoError(t, q.Start())
	assert.ErrorIs(t, q.Start(), ErrAlreadyRunning)

	want := encoded(t, Message{
		ID:        "msg-1",
		Type:      "presentation.audit",
		Payload:   json.RawMessage(`{"a":1}`),
		Timestamp: fixedNow,
	})
	mock.ExpectLPush("recoboard:queue:messages", want).SetVal(1)

	require.NoError(t, q.PublishMessage(context.Background(), "presentation.audit", map[string]int{"a": 1}))
	assert.NoError(t, mock.ExpectationsWereMet())
	require.NoError(t, q.Stop(context.Background()))
}

func TestEnqueueUnknownTypeInConsumerMode(t *testing.T) {
	q, mock := newTestQueue(t, ModeProducerConsumer, nil)
	mock.ExpectPing().SetVal("PONG")
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())

	err := q.Enqueue(context.Background(), "nobody.handles.this", 1)
	assert.ErrorContains(t, err, "no job registered")
}

func TestProcessMessageSuccess(t *testing.T) {
	q, mock := newTestQueue(t, ModeConsumerOnly, nil)
	type payload struct {
		Name string `json:"name"`
	}
	var got *payload
	q.RegisterJob(NewJob("echo", "echo", func(ctx context.Context, p interface{}) error {
		var err error
		got, err = ParsePayload[payload](p)
		return err
	}))

	q.processMessage(Message{ID: "1", Type: "echo", Payload: json.RawMessage(`{"name":"aaa"}`)})
	require.NotNil(t, got)
	assert.Equal(t, "aaa", got.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMessageFailureSchedulesRetry(t *testing.T) {
	q, mock := newTestQueue(t, ModeConsumerOnly, &Config{RetryLimit: 1, RetryDelay: time.Minute})
	q.RegisterJob(NewJob("fail", "fail", func(context.Context, interface{}) error {
		return errors.New("boom")
	}))

	msg := Message{ID: "1", Type: "fail", Payload: json.RawMessage(`{}`)}
	retried := msg
	retried.Attempts = 1
	mock.ExpectZAdd("recoboard:queue:retry", redis.Z{
		Score:  float64(fixedNow.Add(time.Minute).Unix()),
		Member: encoded(t, retried),
	}).SetVal(1)
	q.processMessage(msg)

	mock.ExpectLPush("recoboard:queue:dlq", encoded(t, retried)).SetVal(1)
	q.processMessage(retried)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMessageUnknownTypeDeadLetters(t *testing.T) {
	q, mock := newTestQueue(t, ModeConsumerOnly, nil)
	msg := Message{ID: "1", Type: "ghost", Payload: json.RawMessage(`null`)}
	mock.ExpectLPush("recoboard:queue:dlq", encoded(t, msg)).SetVal(1)

	q.processMessage(msg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	q, mock := newTestQueue(t, ModeProducerOnly, nil)
	mock.ExpectLLen("recoboard:queue:messages").SetVal(3)
	mock.ExpectZCard("recoboard:queue:retry").SetVal(1)
	mock.ExpectLLen("recoboard:queue:dlq").SetVal(0)

	st, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Pending: 3, Retrying: 1, DeadLetter: 0}, st)
}

func TestPromoteDueMovesRetriesBack(t *testing.T) {
	q, mock := newTestQueue(t, ModeConsumerOnly, nil)
	mock.ExpectEval(promoteScript, []string{"recoboard:queue:retry", "recoboard:queue:messages"},
		fixedNow.Unix(), promoteBatch).SetVal(int64(2))

	n, err := q.promoteDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKeyPrefixOption(t *testing.T) {
	db, _ := redismock.NewClientMock()
	q := NewRedisQueue(nil, nil, db, ModeProducerOnly, WithKeyPrefix("rb:queue"))
	assert.Equal(t, redisKeys{pending: "rb:queue:messages", retry: "rb:queue:retry", dead: "rb:queue:dlq"}, q.keys)
	assert.Equal(t, 1, q.cfg.Workers)
	assert.Equal(t, "producer-only", q.mode.String())
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, retryDelay(time.Second, 0, 1))
	assert.Equal(t, 4*time.Second, retryDelay(time.Second, 0, 3))
	assert.Equal(t, 5*time.Second, retryDelay(time.Second, 5*time.Second, 10))
	assert.Equal(t, 10*time.Second, retryDelay(0, 0, 1))
}

func TestParsePayload(t *testing.T) {
	type item struct {
		ID int `json:"id"`
	}

	p, err := ParsePayload[item](json.RawMessage(`{"id":7}`))
	require.NoError(t, err)
	assert.Equal(t, 7, p.ID)

	p, err = ParsePayload[item](map[string]interface{}{"id": 8})
	require.NoError(t, err)
	assert.Equal(t, 8, p.ID)

	list, err := ParsePayload[[]item]([]interface{}{map[string]interface{}{"id": 1}})
	require.NoError(t, err)
	assert.Len(t, *list, 1)

	p, err = ParsePayload[item](item{ID: 9})
	require.NoError(t, err)
	assert.Equal(t, 9, p.ID)

	_, err = ParsePayload[item](42)
	assert.Error(t, err)
}
