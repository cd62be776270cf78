package http

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepEvery = 256
)

type sessionLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter is a token bucket per session allowing limit sends per minute.
type rateLimiter struct {
	limit int

	mu       sync.Mutex
	sessions map[string]*sessionLimiter
	calls    int
	now      func() time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		limit:    limit,
		sessions: make(map[string]*sessionLimiter),
		now:      time.Now,
	}
}

func (r *rateLimiter) allow(key string) bool {
	if r == nil || r.limit <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.calls++
	if r.calls%limiterSweepEvery == 0 {
		r.sweepLocked(now)
	}

	entry, ok := r.sessions[key]
	if !ok {
		entry = &sessionLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.limit)), r.limit),
		}
		r.sessions[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweepLocked forgets sessions idle long enough for their bucket to be full again.
func (r *rateLimiter) sweepLocked(now time.Time) {
	for key, entry := range r.sessions {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(r.sessions, key)
		}
	}
}
