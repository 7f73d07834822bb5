// Package ratelimit implements the fixed-window, atomically-incremented
// per-endpoint request counter (C4). Deliberately coarse: a fixed window,
// not a sliding window or token bucket — the request log is the source of
// truth and the limiter is only a damper.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// DefaultWindow is the fixed-window size used when none is configured.
const DefaultWindow = 60 * time.Second

type counterKey struct {
	endpointID  string
	windowStart int64
}

type counter struct {
	count   int
	expires time.Time
}

// Limiter tracks per-(endpoint, window) counters in memory. Counters expire
// automatically after two window lengths, which is enforced by a background
// sweep rather than a true TTL store, since the counters never need to
// survive a process restart.
type Limiter struct {
	window time.Duration

	mu       sync.Mutex
	counters map[counterKey]*counter

	stop chan struct{}
	once sync.Once
}

// New creates a Limiter with the given fixed-window size. A non-positive
// window falls back to DefaultWindow.
func New(window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		window:   window,
		counters: make(map[counterKey]*counter),
		stop:     make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Close stops the background expiry sweep.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) sweep() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, c := range l.counters {
		if now.After(c.expires) {
			delete(l.counters, k)
		}
	}
}

func (l *Limiter) windowStart(now time.Time) int64 {
	return now.Unix() / int64(l.window/time.Second)
}

// Result carries the outcome of a rate-limit check plus the values needed
// to populate the X-RateLimit-* response headers.
type Result struct {
	Allowed           bool
	Limit             int
	Count             int
	Remaining         int
	ResetUnix         int64
	RetryAfterSeconds int
}

// Check evaluates and, if allowed, atomically increments the counter for
// (endpointID, current window). The compare-and-increment happens inside a
// single critical section so concurrent requests can never both observe
// count == limit-1 and both succeed. A denied request does not increment
// the counter.
func (l *Limiter) Check(endpointID string, limit int) Result {
	if limit < 1 {
		limit = 1
	}

	now := time.Now()
	start := l.windowStart(now)
	key := counterKey{endpointID: endpointID, windowStart: start}
	windowEnd := (start + 1) * int64(l.window/time.Second)

	l.mu.Lock()
	c, ok := l.counters[key]
	if !ok {
		c = &counter{expires: now.Add(2 * l.window)}
		l.counters[key] = c
	}

	allowed := c.count < limit
	if allowed {
		c.count++
	}
	count := c.count
	l.mu.Unlock()

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	retryAfter := int(math.Ceil(time.Until(time.Unix(windowEnd, 0)).Seconds()))
	if retryAfter < 0 {
		retryAfter = 0
	}

	return Result{
		Allowed:           allowed,
		Limit:             limit,
		Count:             count,
		Remaining:         remaining,
		ResetUnix:         windowEnd,
		RetryAfterSeconds: retryAfter,
	}
}
