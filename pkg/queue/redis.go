package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"RecoBoard/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotRunning     = errors.New("queue not running")
	ErrAlreadyRunning = errors.New("queue already running")
)

// redisKeys are the three structures behind one queue: the pending list,
// the retry sorted set scored by due time, and the dead-letter list.
type redisKeys struct {
	pending, retry, dead string
}

func newRedisKeys(prefix string) redisKeys {
	return redisKeys{pending: prefix + ":messages", retry: prefix + ":retry", dead: prefix + ":dlq"}
}

// RedisQueue is a Redis list-backed job queue. Presentation audits and
// anomaly digests flow through it.
type RedisQueue struct {
	log    *logger.Logger
	cfg    Config
	client redis.UniversalClient
	mode   Mode
	keys   redisKeys

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now   func() time.Time
	newID func() string
}

type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix namespaces every queue key, e.g. "recoboard:queue".
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.keys = newRedisKeys(prefix)
		}
	}
}

func NewRedisQueue(lgr *logger.Logger, cfg *Config, client redis.UniversalClient, mode Mode, opts ...RedisQueueOption) *RedisQueue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &RedisQueue{
		log:    lgr.With("queue"),
		cfg:    cfg.withDefaults(),
		client: client,
		mode:   mode,
		keys:   newRedisKeys("recoboard:queue"),
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisQueue) RegisterJobs(jobs []Job) {
	for _, j := range jobs {
		r.RegisterJob(j)
	}
}

// RegisterJob is ignored in producer-only mode. The first job registered
// for a type wins.
func (r *RedisQueue) RegisterJob(job Job) {
	if !r.mode.consumes() {
		r.log.Warn("job ignored in producer-only mode", logger.String("job", job.Name()))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.jobs[job.Type()]; ok {
		r.log.Warn("duplicate job type",
			logger.String("type", job.Type()),
			logger.String("kept", prev.Name()),
			logger.String("dropped", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
}

func (r *RedisQueue) job(msgType string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[msgType]
	return j, ok
}

// Start pings Redis, then launches workers and the retry promoter when
// this process consumes.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	r.running = true

	if r.mode.consumes() {
		for i := 0; i < r.cfg.Workers; i++ {
			r.wg.Add(1)
			go r.work(i)
		}
		r.wg.Add(1)
		go r.promoteLoop()
	}
	r.log.Info("queue started",
		logger.String("mode", r.mode.String()),
		logger.Int("workers", r.cfg.Workers),
		logger.Int("jobs", len(r.jobs)),
		logger.String("pending_key", r.keys.pending))
	return nil
}

// Stop cancels workers and waits for them until ctx expires. A message
// interrupted mid-handle is pushed back for the next process.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	}
}

// Enqueue wraps payload in a Message and pushes it. A consuming queue
// rejects types it has no job for, since nothing would ever drain them.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()

	if !running {
		return ErrNotRunning
	}
	if r.mode.consumes() && !known {
		return fmt.Errorf("no job registered for type %q", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Message{ID: r.newID(), Type: msgType, Payload: raw, Timestamp: r.now()})
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msgType, err)
	}
	if err := r.client.LPush(ctx, r.keys.pending, data).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", msgType, err)
	}
	return nil
}

func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return r.Enqueue(ctx, msgType, payload)
}

func (r *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := r.client.Pipeline()
	pending := pipe.LLen(ctx, r.keys.pending)
	retrying := pipe.ZCard(ctx, r.keys.retry)
	dead := pipe.LLen(ctx, r.keys.dead)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Pending: pending.Val(), Retrying: retrying.Val(), DeadLetter: dead.Val()}, nil
}

var _ Publisher = (*RedisQueue)(nil)
