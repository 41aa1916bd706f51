package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	domrepo "RecoBoard/internal/domain/repository"
	domsvc "RecoBoard/internal/domain/service"
	pkgcache "RecoBoard/pkg/cache"
)

var ErrInvalidNotice = errors.New("user and notice ids are required")

// NoticeService records "do not show again" choices for window-scoped notices.
type NoticeService struct {
	store   domrepo.NoticeStore
	windows domsvc.WindowResolver
	clock   domsvc.Clock
	ttl     time.Duration
}

func NewNoticeService(store domrepo.NoticeStore, windows domsvc.WindowResolver, clock domsvc.Clock, ttl time.Duration) *NoticeService {
	if clock == nil {
		clock = domsvc.SystemClock{}
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &NoticeService{store: store, windows: windows, clock: clock, ttl: ttl}
}

// Dismiss stores the flag and returns the window id it was stored under.
// An empty windowID means the current window.
func (s *NoticeService) Dismiss(ctx context.Context, userID, noticeID, windowID string) (string, error) {
	key, windowID, err := s.key(userID, noticeID, windowID)
	if err != nil {
		return "", err
	}
	if err := s.store.Dismiss(ctx, key, s.ttl); err != nil {
		return "", err
	}
	return windowID, nil
}

func (s *NoticeService) IsDismissed(ctx context.Context, userID, noticeID, windowID string) (bool, string, error) {
	key, windowID, err := s.key(userID, noticeID, windowID)
	if err != nil {
		return false, "", err
	}
	ok, err := s.store.IsDismissed(ctx, key)
	return ok, windowID, err
}

func (s *NoticeService) key(userID, noticeID, windowID string) (string, string, error) {
	userID, noticeID = strings.TrimSpace(userID), strings.TrimSpace(noticeID)
	if userID == "" || noticeID == "" {
		return "", "", ErrInvalidNotice
	}
	if windowID == "" {
		windowID = s.windows.NoticeWindowID(s.clock.Now())
	}
	return pkgcache.Key("notice", userID, noticeID, windowID), windowID, nil
}
