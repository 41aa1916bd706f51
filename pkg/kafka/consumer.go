package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"RecoBoard/pkg/logger"
)

// MessageHandler consumes one topic.
type MessageHandler interface {
	Topic() string
	Handle(ctx context.Context, value []byte) error
}

// dlqSender is the part of Producer the consumer needs for dead letters.
type dlqSender interface {
	Send(ctx context.Context, records ...Record) error
	Close() error
}

// committer is the part of kafka.Reader used after a message is settled.
type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type delivery struct {
	topic string
	km    kafka.Message
}

// Consumer reads every registered topic in one group. Each partition is
// pinned to a lane (one goroutine), so a partition's messages are handled
// and committed in offset order while partitions proceed in parallel.
type Consumer struct {
	cfg      ConsumerConfig
	log      *logger.Logger
	hook     ConsumerHook
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	commit   map[string]committer
	lanes    []chan delivery
	dlq      dlqSender
	sleep    func(time.Duration, <-chan struct{}) bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	c := &Consumer{
		cfg:      cfg,
		log:      cfg.Logger.With("kafka_consumer"),
		hook:     NoopHook{},
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		commit:   make(map[string]committer),
		sleep:    sleepOrStop,
		stop:     make(chan struct{}),
	}
	if cfg.DLQTopic != "" {
		p, err := NewProducer(WithBrokers(cfg.Brokers), WithClientID(cfg.GroupID+"-dlq"), WithHashByKey(true))
		if err != nil {
			return nil, fmt.Errorf("dlq producer: %w", err)
		}
		c.dlq = p
	}
	initConsumerMetricsOnce()
	return c, nil
}

// Use installs the hook run around every handler attempt.
func (c *Consumer) Use(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler must be called before Start. A second handler for the
// same topic is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, dup := c.handlers[h.Topic()]; dup {
		c.log.Warn("duplicate kafka handler ignored", logger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}

	c.lanes = make([]chan delivery, c.cfg.Workers)
	for i := range c.lanes {
		c.lanes[i] = make(chan delivery, c.cfg.BufferSize)
		c.wg.Add(1)
		go c.runLane(i)
	}
	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			GroupID:     c.cfg.GroupID,
			Topic:       topic,
			StartOffset: c.cfg.StartOffset,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
		})
		c.readers[topic] = r
		c.commit[topic] = r
		c.wg.Add(1)
		go c.fetch(topic, r)
	}

	c.log.Info("kafka consumer started",
		logger.String("group", c.cfg.GroupID),
		logger.Int("topics", len(c.readers)),
		logger.Int("lanes", len(c.lanes)),
		logger.Bool("dlq", c.dlq != nil))
	return nil
}

// Stop lets lanes finish the message in hand, then closes readers and the
// dead-letter producer. Buffered, unhandled messages stay uncommitted.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stop)
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("close reader", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.log.Warn("close dlq producer", logger.Error(cerr))
			}
		}
	})
	return err
}

func (c *Consumer) fetch(topic string, r *kafka.Reader) {
	defer c.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.stop
		cancel()
	}()

	for {
		km, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch", logger.String("topic", topic), logger.Error(err))
			if !c.sleep(time.Second, c.stop) {
				return
			}
			continue
		}

		lane := laneFor(topic, km.Partition, len(c.lanes))
		select {
		case c.lanes[lane] <- delivery{topic: topic, km: km}:
			laneDepth.WithLabelValues(strconv.Itoa(lane)).Set(float64(len(c.lanes[lane])))
		case <-c.stop:
			return
		}
	}
}

// laneFor maps a partition to a lane index in [0, n).
func laneFor(topic string, partition, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	return int((h.Sum32() + uint32(partition)) % uint32(n))
}

func (c *Consumer) runLane(i int) {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case d := <-c.lanes[i]:
			c.settle(d)
		}
	}
}

// settle handles d and commits it on success, or once it is safely in
// the dead-letter topic.
func (c *Consumer) settle(d delivery) {
	h, ok := c.handlers[d.topic]
	if !ok {
		return
	}
	start := time.Now()
	attempts, err := c.handle(h, d)
	handleSeconds.WithLabelValues(d.topic).Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "failed"
		if errors.Is(err, errStopped) {
			return
		}
		c.hook.OnError(context.Background(), d.topic, d.km, d.km.Value, err)
		c.log.Error("kafka message failed",
			logger.String("topic", d.topic),
			logger.Int("partition", d.km.Partition),
			logger.Int64("offset", d.km.Offset),
			logger.Int("attempts", attempts),
			logger.Error(err))
		if !c.deadLetter(d, err) {
			messagesTotal.WithLabelValues(d.topic, result).Inc()
			return
		}
		result = "dead_lettered"
	}
	messagesTotal.WithLabelValues(d.topic, result).Inc()

	if cm := c.commit[d.topic]; cm != nil {
		c.commitWithRetry(cm, d.km)
	}
}

var errStopped = errors.New("consumer stopping")

// handle runs the hook chain and handler until success or RetryMax
// retries. A panicking handler counts as a failed attempt.
func (c *Consumer) handle(h MessageHandler, d delivery) (int, error) {
	var err error
	for attempt := 1; ; attempt++ {
		err = c.attempt(h, d)
		if err == nil || attempt > c.cfg.RetryMax {
			return attempt, err
		}
		if !c.sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt), c.stop) {
			return attempt, errStopped
		}
	}
}

func (c *Consumer) attempt(h MessageHandler, d delivery) (err error) {
	ctx, km, data, err := c.hook.BeforeHandle(context.Background(), d.topic, d.km, d.km.Value)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		c.hook.AfterHandle(ctx, d.topic, km, data, err)
	}()
	return h.Handle(ctx, data)
}

// deadLetter reports whether d may now be committed.
func (c *Consumer) deadLetter(d delivery, cause error) bool {
	if c.dlq == nil {
		return false
	}
	headers := map[string]string{
		"source_topic":     d.topic,
		"source_partition": strconv.Itoa(d.km.Partition),
		"source_offset":    strconv.FormatInt(d.km.Offset, 10),
		"error":            cause.Error(),
	}
	if id := ExtractTraceID(d.km); id != "" {
		headers[HeaderTraceID] = id
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := c.dlq.Send(ctx, Record{Topic: c.cfg.DLQTopic, Key: d.km.Key, Value: d.km.Value, Headers: headers})
	if err != nil {
		c.log.Error("dead-letter write", logger.String("topic", c.cfg.DLQTopic), logger.Error(err))
		return false
	}
	return true
}

func (c *Consumer) commitWithRetry(cm committer, km kafka.Message) {
	const tries = 3
	var err error
	for i := 1; i <= tries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = cm.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return
		}
		if !c.sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, i), c.stop) {
			break
		}
	}
	c.log.Error("kafka commit failed",
		logger.String("topic", km.Topic),
		logger.Int64("offset", km.Offset),
		logger.Error(err))
}

// sleepOrStop reports false when stop closed first.
func sleepOrStop(d time.Duration, stop <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	}
}

// backoffWithJitter doubles min per attempt up to max and subtracts up
// to half of it at random.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := max
	if attempt < 32 {
		if exp := min << uint(attempt-1); exp > 0 && exp < max {
			d = exp
		}
	}
	if half := int64(d) / 2; half > 0 {
		d -= time.Duration(rand.Int63n(half))
	}
	return d
}

var (
	laneDepth     *prometheus.GaugeVec
	handleSeconds *prometheus.HistogramVec
	messagesTotal *prometheus.CounterVec
	consumerOnce  sync.Once
)

func initConsumerMetricsOnce() {
	consumerOnce.Do(func() {
		laneDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "recoboard", Subsystem: "kafka_consumer",
			Name: "lane_depth", Help: "Messages buffered per lane",
		}, []string{"lane"})
		handleSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "recoboard", Subsystem: "kafka_consumer",
			Name: "handle_seconds", Help: "Handling time per message, retries included",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
		messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recoboard", Subsystem: "kafka_consumer",
			Name: "messages_total", Help: "Settled messages by result",
		}, []string{"topic", "result"})
	})
}
