package runner

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces one provider's request budgets: a smoothed
// per-minute rate and a hard per-day cap. Exhausting either budget
// suspends callers instead of failing the run.
type Limiter struct {
	minute *rate.Limiter

	mu       sync.Mutex
	perDay   int
	used     int
	dayReset time.Time

	now func() time.Time
}

// NewLimiter builds a limiter from per-minute and per-day caps. A zero
// or negative cap disables that budget.
func NewLimiter(perMinute, perDay int) *Limiter {
	lim := rate.Inf
	if perMinute > 0 {
		// Spread the minute budget evenly instead of allowing bursts
		// that trip upstream 429s.
		lim = rate.Limit(float64(perMinute) / 60.0)
	}
	return &Limiter{
		minute: rate.NewLimiter(lim, 1),
		perDay: perDay,
		now:    time.Now,
	}
}

// Acquire blocks until one request is permitted under both budgets, or
// until the context is done. Daily exhaustion sleeps until the UTC day
// rolls over.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now().UTC()
		if !now.Before(l.dayReset) {
			l.used = 0
			l.dayReset = now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		}
		if l.perDay <= 0 || l.used < l.perDay {
			l.used++
			l.mu.Unlock()
			break
		}
		wait := l.dayReset.Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return l.minute.Wait(ctx)
}

// DailyRemaining reports how many requests the day budget still
// allows. Unlimited budgets report -1.
func (l *Limiter) DailyRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.perDay <= 0 {
		return -1
	}
	if l.now().UTC().Before(l.dayReset) {
		return l.perDay - l.used
	}
	return l.perDay
}
