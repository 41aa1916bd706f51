package cache

import (
	"context"
	"time"
)

// BytesCache stores rendered payloads as raw bytes with a TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
