// Package ratelimit implements per-client sliding-log rate limiting.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Default policy: 100 requests per rolling minute.
const (
	DefaultMaxRequests = 100
	DefaultWindow      = time.Minute
)

// Limiter decides whether a client may proceed.
type Limiter interface {
	// Allow records an admitted attempt for key and reports whether it was admitted.
	// Rejected attempts are not recorded.
	Allow(ctx context.Context, key string) bool
}

// Option configures a limiter.
type Option func(*settings)

type settings struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time
	keyPrefix   string
}

func defaults() settings {
	return settings{
		maxRequests: DefaultMaxRequests,
		window:      DefaultWindow,
		now:         time.Now,
		keyPrefix:   "ratelimit:",
	}
}

// WithMaxRequests sets how many attempts fit in one window.
func WithMaxRequests(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxRequests = n
		}
	}
}

// WithWindow sets the sliding window length.
func WithWindow(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *settings) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// MemoryLimiter keeps one sliding log per key in process memory.
type MemoryLimiter struct {
	settings
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewMemory creates an in-process limiter.
func NewMemory(opts ...Option) *MemoryLimiter {
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}
	return &MemoryLimiter{settings: s, windows: make(map[string][]time.Time)}
}

// Allow implements Limiter. Timestamps exactly one window old still count.
func (l *MemoryLimiter) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Read the clock under the lock so each log stays in ascending order.
	now := l.now()
	cutoff := now.Add(-l.window)

	recent := prune(l.windows[key], cutoff)
	if len(recent) >= l.maxRequests {
		l.windows[key] = recent
		return false
	}
	l.windows[key] = append(recent, now)
	return true
}

// RetryAfter returns how long until key has room again.
func (l *MemoryLimiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	recent := prune(l.windows[key], now.Add(-l.window))
	if len(recent) < l.maxRequests {
		return 0
	}
	return recent[len(recent)-l.maxRequests].Add(l.window).Sub(now) + time.Millisecond
}

// Sweep drops keys with no attempt inside the window and returns how many remain.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	for key, ts := range l.windows {
		recent := prune(ts, cutoff)
		if len(recent) == 0 {
			delete(l.windows, key)
			continue
		}
		l.windows[key] = recent
	}
	return len(l.windows)
}

// Run sweeps once per window until ctx ends.
func (l *MemoryLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// prune drops timestamps strictly older than cutoff. ts is in ascending order.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0:0], ts[i:]...)
}
