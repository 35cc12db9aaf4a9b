package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window admission counter keyed by an arbitrary string
// (client IP, wallet address). Allow records a hit when under the limit and
// reports how much headroom remains in the window.
type Limiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:    max,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) Allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.hits[key][:0]
	for _, hit := range l.hits[key] {
		if hit.After(cutoff) {
			recent = append(recent, hit)
		}
	}

	if len(recent) >= l.max {
		l.hits[key] = recent
		return false, 0
	}
	recent = append(recent, now)
	l.hits[key] = recent
	return true, l.max - len(recent)
}

// Window returns the configured window, for Retry-After headers.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Max returns the configured limit, for X-RateLimit-Limit headers.
func (l *Limiter) Max() int {
	return l.max
}

// Sweep drops keys whose hits all aged out. Callers may run it periodically
// to bound memory on long-lived processes.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for key, hits := range l.hits {
		live := false
		for _, hit := range hits {
			if hit.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.hits, key)
		}
	}
}
