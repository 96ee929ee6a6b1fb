package fetch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const secondsPerDay = 86400

// Limiter spaces requests so each source stays inside its daily budget.
// A budget of 1000/day yields one request per 86.4s. Checking and
// consuming a slot is a single critical section, so concurrent callers
// never jointly overdraw a source.
type Limiter struct {
	mu   sync.Mutex
	gap  map[string]time.Duration
	next map[string]time.Time
	now  func() time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{
		gap:  make(map[string]time.Duration),
		next: make(map[string]time.Time),
		now:  time.Now,
	}
}

// SetBudget registers a source's daily request budget. Sources without
// a budget are not limited.
func (l *Limiter) SetBudget(source string, perDay int) {
	if perDay < 1 {
		perDay = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.gap[source] = time.Duration(float64(secondsPerDay) / float64(perDay) * float64(time.Second))
}

// Interval returns the minimum spacing between requests to a source.
func (l *Limiter) Interval(source string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gap[source]
}

// Allow consumes a slot if one is open now, without blocking.
func (l *Limiter) Allow(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if next, ok := l.next[source]; ok && now.Before(next) {
		return false
	}
	l.next[source] = now.Add(l.gap[source])
	return true
}

// Acquire blocks until a slot opens or ctx is done.
func (l *Limiter) Acquire(ctx context.Context, source string) error {
	for {
		l.mu.Lock()
		now := l.now()
		next, ok := l.next[source]
		if !ok || !now.Before(next) {
			l.next[source] = now.Add(l.gap[source])
			l.mu.Unlock()
			return nil
		}
		wait := next.Sub(now)
		l.mu.Unlock()

		slog.Debug("rate limit reached, waiting", "source", source, "wait", wait.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
