package repository

import (
	"context"
	"fmt"
	"time"

	"RecoBoard/pkg/cache"
)

type dismissal struct {
	DismissedAt time.Time `json:"dismissed_at"`
}

// CacheNoticeStore implements NoticeStore on a cache.Service, normally the
// layered memory+Redis cache.
type CacheNoticeStore struct {
	c   cache.Service
	now func() time.Time
}

func NewCacheNoticeStore(c cache.Service) *CacheNoticeStore {
	return &CacheNoticeStore{c: c, now: time.Now}
}

func (s *CacheNoticeStore) Dismiss(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.c.Set(ctx, key, dismissal{DismissedAt: s.now().UTC()}, ttl); err != nil {
		return fmt.Errorf("dismiss %s: %w", key, err)
	}
	return nil
}

func (s *CacheNoticeStore) IsDismissed(ctx context.Context, key string) (bool, error) {
	ok, err := s.c.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("notice %s: %w", key, err)
	}
	return ok, nil
}
