package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"RecoBoard/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	popTimeout      = time.Second
	promoteInterval = 5 * time.Second
	promoteBatch    = 100
)

// promoteScript moves due retries back to the pending list atomically, so
// two replicas never promote the same message twice.
const promoteScript = `
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
for _, m in ipairs(due) do
  redis.call("ZREM", KEYS[1], m)
  redis.call("LPUSH", KEYS[2], m)
end
return #due`

func (r *RedisQueue) work(id int) {
	defer r.wg.Done()
	for r.ctx.Err() == nil {
		msg, ok := r.pop()
		if ok {
			r.processMessage(msg)
		}
	}
	r.log.Debug("worker exited", logger.Int("worker", id))
}

func (r *RedisQueue) pop() (Message, bool) {
	res, err := r.client.BRPop(r.ctx, popTimeout, r.keys.pending).Result()
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil), r.ctx.Err() != nil:
		return Message{}, false
	default:
		r.log.Error("pop failed", logger.Error(err))
		r.sleep(time.Second)
		return Message{}, false
	}
	if len(res) != 2 {
		return Message{}, false
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		r.log.Error("undecodable message dropped", logger.Error(err), logger.Int("bytes", len(res[1])))
		return Message{}, false
	}
	return msg, true
}

func (r *RedisQueue) processMessage(msg Message) {
	job, ok := r.job(msg.Type)
	if !ok {
		r.log.Error("no job for message type", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.deadLetter(msg)
		return
	}

	ctx := r.ctx
	if r.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	err := job.Handle(ctx, msg.Payload)
	switch {
	case err == nil:
		r.log.Debug("message handled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Duration("latency_ms", time.Since(start)))
	case r.ctx.Err() != nil && errors.Is(err, context.Canceled):
		r.push(r.keys.pending, msg, true)
	default:
		r.fail(msg, job, err)
	}
}

// fail schedules another attempt or, past RetryLimit, dead-letters msg.
func (r *RedisQueue) fail(msg Message, job Job, err error) {
	fields := []logger.Field{
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err),
	}
	if msg.Attempts >= r.cfg.RetryLimit {
		r.log.Error("job failed, dead-lettering", fields...)
		r.deadLetter(msg)
		return
	}

	msg.Attempts++
	due := r.now().Add(retryDelay(r.cfg.RetryDelay, r.cfg.MaxDelay, msg.Attempts))
	r.log.Warn("job failed, retrying", append(fields, logger.Time("retry_at", due))...)

	data, mErr := json.Marshal(msg)
	if mErr != nil {
		r.log.Error("encode retry", logger.Error(mErr))
		return
	}
	z := redis.Z{Score: float64(due.Unix()), Member: data}
	if zErr := r.client.ZAdd(context.Background(), r.keys.retry, z).Err(); zErr != nil {
		r.log.Error("schedule retry", logger.Error(zErr), logger.String("id", msg.ID))
	}
}

func (r *RedisQueue) deadLetter(msg Message) {
	r.push(r.keys.dead, msg, false)
}

// push writes msg to a list. front puts it where BRPOP reads next.
func (r *RedisQueue) push(key string, msg Message, front bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("encode message", logger.Error(err), logger.String("id", msg.ID))
		return
	}
	ctx := context.Background()
	if front {
		err = r.client.RPush(ctx, key, data).Err()
	} else {
		err = r.client.LPush(ctx, key, data).Err()
	}
	if err != nil {
		r.log.Error("push message", logger.Error(err), logger.String("key", key), logger.String("id", msg.ID))
	}
}

func (r *RedisQueue) promoteLoop() {
	defer r.wg.Done()
	t := time.NewTicker(promoteInterval)
	defer t.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-t.C:
			if _, err := r.promoteDue(r.ctx); err != nil && r.ctx.Err() == nil {
				r.log.Error("promote retries", logger.Error(err))
			}
		}
	}
}

// promoteDue moves up to promoteBatch due retries to the pending list and
// reports how many moved.
func (r *RedisQueue) promoteDue(ctx context.Context) (int64, error) {
	keys := []string{r.keys.retry, r.keys.pending}
	return r.client.Eval(ctx, promoteScript, keys, r.now().Unix(), promoteBatch).Int64()
}

func (r *RedisQueue) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-r.ctx.Done():
	}
}
