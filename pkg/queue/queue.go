package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher is the producer side of the queue. The log collector and the
// presenter only ever need this.
type Publisher interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

type MessageHandler func(ctx context.Context, payload interface{}) error

// Mode selects which halves of the queue run in this process.
type Mode int

const (
	ModeProducerConsumer Mode = iota
	ModeProducerOnly
	ModeConsumerOnly
)

func (m Mode) String() string {
	switch m {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	default:
		return "producer-consumer"
	}
}

func (m Mode) consumes() bool { return m != ModeProducerOnly }

type Config struct {
	Workers    int
	RetryLimit int
	// RetryDelay doubles per attempt up to MaxDelay.
	RetryDelay time.Duration
	MaxDelay   time.Duration
	// JobTimeout bounds one Handle call; 0 means no deadline.
	JobTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = 10 * time.Second
	}
	return out
}

// Message is the envelope stored in Redis. Payload stays raw until a job
// decodes it with ParsePayload.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

type Stats struct {
	Pending    int64 `json:"pending"`
	Retrying   int64 `json:"retrying"`
	DeadLetter int64 `json:"dead_letter"`
}

// ParsePayload decodes whatever a job was handed into T. Raw JSON is the
// usual case; decoded maps and slices are re-encoded first.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var raw []byte
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("re-encode payload: %w", err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("unsupported payload type %T", payload)
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &out, nil
}

// retryDelay is base * 2^(attempt-1), capped at max when max > 0.
func retryDelay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 10 * time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		if max > 0 && d >= max {
			break
		}
		d *= 2
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
