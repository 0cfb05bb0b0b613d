package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter admits or rejects requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Reset(ctx context.Context, key string) error
}

// WindowLimiter is an in-process sliding window limiter. It is used when
// no shared store is configured.
type WindowLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	size    time.Duration
	now     func() time.Time
}

// NewWindowLimiter admits at most limit requests per key in any window of
// length size.
func NewWindowLimiter(limit int, size time.Duration) *WindowLimiter {
	return &WindowLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		size:    size,
		now:     time.Now,
	}
}

// Allow implements Limiter
func (l *WindowLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	start := now.Add(-l.size)

	kept := l.windows[key][:0]
	for _, at := range l.windows[key] {
		if at.After(start) {
			kept = append(kept, at)
		}
	}

	d := Decision{Limit: l.limit, ResetAt: now.Add(l.size)}
	if len(kept) > 0 {
		d.ResetAt = kept[0].Add(l.size)
	}

	if len(kept) >= l.limit {
		l.windows[key] = kept
		return d, nil
	}

	kept = append(kept, now)
	l.windows[key] = kept
	d.Allowed = true
	d.Remaining = l.limit - len(kept)
	return d, nil
}

// Reset implements Limiter
func (l *WindowLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}

// Sweep drops keys with no requests inside the window.
func (l *WindowLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := l.now().Add(-l.size)
	for key, times := range l.windows {
		if len(times) == 0 || !times[len(times)-1].After(start) {
			delete(l.windows, key)
		}
	}
}

// RunSweeper calls Sweep every interval until ctx is done.
func (l *WindowLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
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
