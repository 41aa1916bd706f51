package service

import (
	"time"

	"RecoBoard/internal/domain/models"
)

// Clock provides wall-clock time. Only collaborators read it; the engine takes "today" as a parameter.
type Clock interface {
	Now() time.Time
}

// WindowResolver derives the display time window for an instant.
type WindowResolver interface {
	Resolve(now time.Time) models.TimeWindow
	NoticeWindowID(now time.Time) string
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
