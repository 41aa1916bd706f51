package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAndParseJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "recoboard-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "1", r.URL.Query().Get("v"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"records":[{"instrumentId":"AAA"}]}`)
	}))
	defer srv.Close()

	c := NewClient(WithUserAgent("recoboard-test"))
	var out struct {
		Records []struct {
			InstrumentID string `json:"instrumentId"`
		} `json:"records"`
	}
	err := c.SendAndParse(context.Background(), &RequestOptions{
		URL:         srv.URL,
		QueryParams: map[string][]string{"v": {"1"}},
	}, &out)
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "AAA", out.Records[0].InstrumentID)
}

func TestSendAndParseRawBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	var raw []byte
	err := NewClient().SendAndParse(context.Background(), &RequestOptions{
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   map[string]int{"a": 1},
	}, &raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestSendAndParseStatusError(t *testing.T) {
	tests := []struct {
		code      int
		temporary bool
	}{
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusNotFound, false},
		{http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.code)
			}))
			defer srv.Close()

			err := NewClient().SendAndParse(context.Background(), &RequestOptions{URL: srv.URL}, nil)
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, "nope", se.Body)
			assert.Equal(t, tt.temporary, se.Temporary())
		})
	}
}

func TestStatusErrorCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient().SendAndParse(context.Background(), &RequestOptions{URL: srv.URL}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 7*time.Second, se.RetryAfter)
	assert.True(t, se.Temporary())
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 0, 0, 0, time.UTC)
	assert.Zero(t, parseRetryAfter("", now))
	assert.Zero(t, parseRetryAfter("-3", now))
	assert.Zero(t, parseRetryAfter("soon", now))
	assert.Equal(t, 2*time.Second, parseRetryAfter("2", now))
	assert.Equal(t, 90*time.Second, parseRetryAfter("Mon, 06 May 2024 07:01:30 GMT", now))
	assert.Zero(t, parseRetryAfter("Mon, 06 May 2024 06:00:00 GMT", now))
}
