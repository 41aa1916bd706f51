package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships aggregated log entries; the Redis job queue implements it.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval, default 30s
	CountThreshold int           // unique entries that force a flush, default 100
	Topic          string
	Publisher      Publisher
	// IgnoreFields are left out of the dedupe key, so entries that differ
	// only in e.g. record index or raw value aggregate into one.
	IgnoreFields []string
	// PublishTimeout bounds one publish call, default 10s.
	PublishTimeout time.Duration
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector aggregates repeated warn/error entries and publishes them
// in batches. Fields of the first occurrence are kept.
type LogCollector struct {
	cfg    CollectionConfig
	ignore map[string]struct{}

	mu      sync.Mutex
	entries map[string]*AggregatedLogEntry

	stop     chan struct{}
	loopDone chan struct{}
	inflight sync.WaitGroup
	once     sync.Once
	now      func() time.Time
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}
	ignore := make(map[string]struct{}, len(cfg.IgnoreFields))
	for _, f := range cfg.IgnoreFields {
		ignore[f] = struct{}{}
	}

	c := &LogCollector{
		cfg:      cfg,
		ignore:   ignore,
		entries:  make(map[string]*AggregatedLogEntry),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
		now:      time.Now,
	}
	go c.loop()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	key := c.key(level, message, fields, caller)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		return
	}
	c.entries[key] = &AggregatedLogEntry{
		Level:     level,
		Message:   message,
		Fields:    fields,
		Caller:    caller,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	if len(c.entries) >= c.cfg.CountThreshold {
		c.flushLocked()
	}
}

// key hashes everything that identifies an entry. json.Marshal sorts map
// keys, so equal field sets hash equally.
func (c *LogCollector) key(level, message string, fields map[string]interface{}, caller string) string {
	keyed := fields
	if len(c.ignore) > 0 {
		keyed = make(map[string]interface{}, len(fields))
		for k, v := range fields {
			if _, skip := c.ignore[k]; !skip {
				keyed[k] = v
			}
		}
	}
	b, err := json.Marshal([]interface{}{level, message, caller, keyed})
	if err != nil {
		b = []byte(fmt.Sprint(level, message, caller, keyed))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (c *LogCollector) loop() {
	defer close(c.loopDone)
	ticker := time.NewTicker(c.cfg.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Flush()
		case <-c.stop:
			c.Flush()
			return
		}
	}
}

// Flush publishes whatever has been aggregated so far.
func (c *LogCollector) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

func (c *LogCollector) flushLocked() {
	if len(c.entries) == 0 {
		return
	}
	batch := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		batch = append(batch, *e)
	}
	c.entries = make(map[string]*AggregatedLogEntry)
	if c.cfg.Publisher == nil {
		return
	}

	// noisiest first, so a truncating consumer keeps what matters
	sort.Slice(batch, func(i, j int) bool {
		if batch[i].Count != batch[j].Count {
			return batch[i].Count > batch[j].Count
		}
		return batch[i].FirstSeen.Before(batch[j].FirstSeen)
	})

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublishTimeout)
		defer cancel()
		if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
			// the logger itself feeds this collector, so report out of band
			fmt.Fprintf(os.Stderr, "log collector: publish %d entries to %s: %v\n", len(batch), c.cfg.Topic, err)
		}
	}()
}

// Close flushes and waits for in-flight publishes. Safe to call twice.
func (c *LogCollector) Close() {
	c.once.Do(func() {
		close(c.stop)
		<-c.loopDone
		c.inflight.Wait()
	})
}
