package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	xhttp "RecoBoard/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) Config {
	return Config{
		URL:     url,
		Timeout: time.Second,
		Retries: 2,
		Backoff: time.Millisecond,
		Breaker: BreakerConfig{MaxRequests: 1, Timeout: time.Minute, FailureThreshold: 10},
	}
}

func TestDecode(t *testing.T) {
	recs, err := Decode([]byte(` [{"instrumentId":"AAA","status":"ACTIVE"}]`))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "AAA", recs[0].InstrumentID)

	recs, err = Decode([]byte(`{"records":[{"instrumentId":"BBB","status":"BROKEN","returnMetrics":{"pnl":1.5}}]}`))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.JSONEq(t, `{"pnl":1.5}`, string(recs[0].ReturnMetrics))

	recs, err = Decode([]byte(`{"records":[]}`))
	require.NoError(t, err)
	assert.Empty(t, recs)

	for _, bad := range []string{"", `{"items":[]}`, `"x"`, `[{"instrumentId":1}]`} {
		_, err := Decode([]byte(bad))
		var de *DecodeError
		assert.True(t, errors.As(err, &de), bad)
	}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"instrumentId":"AAA","status":"ACTIVE"}]`))
	}))
	defer srv.Close()

	recs, err := NewClient(testConfig(srv.URL), nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchDoesNotRetryPermanentFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL), nil).Fetch(context.Background())
	var se *xhttp.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchDoesNotRetryMalformedBody(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL), nil).Fetch(context.Background())
	var de *DecodeError
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestBreakerOpens(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Retries = 0
	cfg.Breaker.FailureThreshold = 2
	c := NewClient(cfg, nil)

	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background())
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnavailable))
	}
	assert.Equal(t, "open", c.State())

	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFetchRequiresURL(t *testing.T) {
	_, err := NewClient(Config{}, nil).Fetch(context.Background())
	assert.Error(t, err)
}

func TestWaitHonoursRetryAfter(t *testing.T) {
	c := NewClient(testConfig("http://feed"), nil)

	assert.Equal(t, 2*time.Millisecond, c.wait(2, errors.New("reset")))
	assert.Equal(t, 3*time.Second, c.wait(1, &xhttp.StatusError{Code: 429, RetryAfter: 3 * time.Second}))
	assert.Equal(t, time.Millisecond, c.wait(1, &xhttp.StatusError{Code: 503}))
}
