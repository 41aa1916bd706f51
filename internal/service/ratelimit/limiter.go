package ratelimit

import (
	"sync"
	"time"

	apphttp "RecoBoard/pkg/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const (
	defaultIdle = 10 * time.Minute
	sweepEvery  = time.Minute
)

type entry struct {
	lim  *rate.Limiter
	last time.Time
}

// Limiter keeps one token bucket per key. Keys idle for longer than the
// idle window are swept on access, so the map only holds active clients.
type Limiter struct {
	mu        sync.Mutex
	m         map[string]*entry
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func New() *Limiter {
	return &Limiter{m: make(map[string]*entry), idle: defaultIdle, now: time.Now}
}

// Allow returns true if one token can be consumed for key. capacity is the
// burst, refillPerSec the steady rate.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= sweepEvery {
		l.pruneLocked(now)
		l.lastSweep = now
	}

	e, ok := l.m[key]
	if !ok {
		burst := int(capacity)
		if burst < 1 {
			burst = 1
		}
		e = &entry{lim: rate.NewLimiter(rate.Limit(refillPerSec), burst)}
		l.m[key] = e
	}
	e.last = now
	return e.lim.AllowN(now, 1)
}

// Prune drops buckets idle for longer than idle and reports how many went.
func (l *Limiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	saved := l.idle
	l.idle = idle
	n := l.pruneLocked(l.now())
	l.idle = saved
	return n
}

// pruneLocked only drops buckets that have refilled, so an evicted client
// comes back with the same budget it would have had.
func (l *Limiter) pruneLocked(now time.Time) int {
	cutoff := now.Add(-l.idle)
	n := 0
	for k, e := range l.m {
		if e.last.Before(cutoff) && e.lim.TokensAt(now) >= float64(e.lim.Burst()) {
			delete(l.m, k)
			n++
		}
	}
	return n
}

// Len reports how many client buckets are held.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// Middleware rejects requests over the per-client budget with 429. Clients
// are keyed by route and real IP.
func (l *Limiter) Middleware(capacity, refillPerSec float64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.Path()+"|"+c.RealIP(), capacity, refillPerSec) {
				return apphttp.TooManyRequestsResponse(c)
			}
			return next(c)
		}
	}
}
