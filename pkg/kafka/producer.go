package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// HeaderTraceID is read back by ExtractTraceID on the consumer side.
const HeaderTraceID = "trace_id"

// Record is one outgoing message. Value is JSON-encoded unless it is
// already []byte or string.
type Record struct {
	Topic   string
	Key     []byte
	Value   interface{}
	Headers map[string]string
}

var compressionCodecs = map[string]kafka.Compression{
	"":       0,
	"none":   0,
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

// Producer publishes records through a single kafka.Writer. The writer
// routes by Record.Topic, so one producer serves every topic.
type Producer struct {
	writer *kafka.Writer
	comp   string
	now    func() time.Time
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var bal kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  compressionCodecs[cfg.Compression],
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
	}

	initProducerMetricsOnce()
	comp := cfg.Compression
	if comp == "" {
		comp = "none"
	}
	return &Producer{writer: writer, comp: comp, now: time.Now}, nil
}

// Publish sends one value to topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.Send(ctx, Record{Topic: topic, Key: key, Value: value})
}

// Send writes records in one batch. Encoding fails the whole call before
// anything is written.
func (p *Producer) Send(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		m, err := toMessage(r, p.now())
		if err != nil {
			return err
		}
		msgs = append(msgs, m)
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx, msgs...)
	elapsed := time.Since(start)
	for _, m := range msgs {
		observeProducerMetrics(m.Topic, p.comp, int64(len(m.Value)), elapsed, err)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", msgs[0].Topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func toMessage(r Record, at time.Time) (kafka.Message, error) {
	if r.Topic == "" {
		return kafka.Message{}, errors.New("kafka record without topic")
	}
	v, err := encodeValue(r.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s: %w", r.Topic, err)
	}
	return kafka.Message{Topic: r.Topic, Key: r.Key, Value: v, Headers: toHeaders(r.Headers), Time: at}, nil
}

func encodeValue(value interface{}) ([]byte, error) {
	switch val := value.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	case nil:
		return nil, nil
	default:
		return json.Marshal(value)
	}
}

// toHeaders sorts by key so the wire order is stable.
func toHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafka.Header{Key: k, Value: []byte(h[k])})
	}
	return out
}

var (
	producerMsgsTotal   *prometheus.CounterVec
	producerBytesTotal  *prometheus.CounterVec
	producerLatencyHist *prometheus.HistogramVec
	producerOnce        sync.Once
)

func initProducerMetricsOnce() {
	producerOnce.Do(func() {
		producerMsgsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "recoboard",
				Subsystem: "kafka_producer",
				Name:      "messages_total",
				Help:      "Messages written to Kafka by result",
			},
			[]string{"topic", "compression", "result"},
		)
		producerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "recoboard",
				Subsystem: "kafka_producer",
				Name:      "bytes_total",
				Help:      "Payload bytes written to Kafka",
			},
			[]string{"topic"},
		)
		producerLatencyHist = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "recoboard",
				Subsystem: "kafka_producer",
				Name:      "write_seconds",
				Help:      "Batch write latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"topic"},
		)
	})
}

func observeProducerMetrics(topic, comp string, bytes int64, dur time.Duration, err error) {
	if producerMsgsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMsgsTotal.WithLabelValues(topic, comp, result).Inc()
	producerBytesTotal.WithLabelValues(topic).Add(float64(bytes))
	producerLatencyHist.WithLabelValues(topic).Observe(dur.Seconds())
}
