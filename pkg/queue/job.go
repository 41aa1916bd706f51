package queue

import "context"

// Job handles one message type. Type must be unique per queue.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}

type funcJob struct {
	name, typ string
	fn        MessageHandler
}

func NewJob(name, msgType string, fn MessageHandler) Job {
	return &funcJob{name: name, typ: msgType, fn: fn}
}

func (j *funcJob) Name() string { return j.name }
func (j *funcJob) Type() string { return j.typ }

func (j *funcJob) Handle(ctx context.Context, payload interface{}) error {
	return j.fn(ctx, payload)
}
