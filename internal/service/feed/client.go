package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"RecoBoard/internal/domain/models"
	xhttp "RecoBoard/pkg/http"
	"RecoBoard/pkg/logger"

	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("feed unavailable")

type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

type Config struct {
	URL     string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
	Breaker BreakerConfig
}

// Client fetches the raw recommendation feed over HTTP. Transient failures
// are retried with linear backoff; repeated failures open the breaker.
type Client struct {
	url     string
	http    *xhttp.Client
	retries int
	backoff time.Duration
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger, opts ...xhttp.ClientOption) *Client {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("feed")
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}

	threshold := cfg.Breaker.FailureThreshold
	st := gobreaker.Settings{
		Name:        "feed",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("feed breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	}

	httpOpts := append([]xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}, opts...)
	return &Client{
		url:     cfg.URL,
		http:    xhttp.NewClient(httpOpts...),
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		breaker: gobreaker.NewCircuitBreaker(st),
		log:     log,
	}
}

// Fetch implements repository.FeedSource.
func (c *Client) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	if c.url == "" {
		return nil, fmt.Errorf("feed url not configured")
	}

	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.wait(attempt, err)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var out interface{}
		out, err = c.breaker.Execute(func() (interface{}, error) {
			return c.fetchOnce(ctx)
		})
		if err == nil {
			return out.([]models.RawRecord), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if !retryable(err) {
			return nil, err
		}
		c.log.Warn("feed fetch attempt failed",
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.retries+1),
			logger.Error(err))
	}
	return nil, fmt.Errorf("fetch feed after %d attempts: %w", c.retries+1, err)
}

// wait backs off linearly, or longer when the feed asked for it.
func (c *Client) wait(attempt int, prev error) time.Duration {
	d := time.Duration(attempt) * c.backoff
	var se *xhttp.StatusError
	if errors.As(prev, &se) && se.RetryAfter > d {
		return se.RetryAfter
	}
	return d
}

// State exposes the breaker state for health checks.
func (c *Client) State() string {
	return c.breaker.State().String()
}

func (c *Client) fetchOnce(ctx context.Context) ([]models.RawRecord, error) {
	var body []byte
	if err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{URL: c.url}, &body); err != nil {
		return nil, err
	}
	return Decode(body)
}

// DecodeError marks a payload that arrived intact but does not have the
// expected shape. It is never retried.
type DecodeError struct{ Err error }

func (e *DecodeError) Error() string { return "decode feed: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Decode accepts a bare JSON array of records or an object with a
// "records" array.
func Decode(b []byte) ([]models.RawRecord, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, &DecodeError{Err: errors.New("empty body")}
	}
	switch b[0] {
	case '[':
		var recs []models.RawRecord
		if err := json.Unmarshal(b, &recs); err != nil {
			return nil, &DecodeError{Err: err}
		}
		return recs, nil
	case '{':
		var env struct {
			Records *[]models.RawRecord `json:"records"`
		}
		if err := json.Unmarshal(b, &env); err != nil {
			return nil, &DecodeError{Err: err}
		}
		if env.Records == nil {
			return nil, &DecodeError{Err: errors.New(`object without "records"`)}
		}
		return *env.Records, nil
	default:
		return nil, &DecodeError{Err: fmt.Errorf("unexpected leading byte %q", b[0])}
	}
}

// retryable: decode failures and permanent HTTP statuses are not.
func retryable(err error) bool {
	var de *DecodeError
	if errors.As(err, &de) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}
