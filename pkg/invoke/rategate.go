package invoke

import (
	"context"
	"sync"
	"time"
)

// RateGate spaces requests at least MinInterval apart.
//
// The gate is safe for concurrent use and may be shared by several
// Invokers so that every request in the process counts against one budget.
// Waiting callers are served one at a time.
type RateGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
	sleep    SleepFunc
}

// NewRateGate creates a gate with the given minimum interval.
// A zero or negative interval disables waiting.
func NewRateGate(interval time.Duration) *RateGate {
	return &RateGate{
		interval: interval,
		now:      time.Now,
		sleep:    Sleep,
	}
}

// Interval returns the configured minimum interval.
func (g *RateGate) Interval() time.Duration {
	return g.interval
}

// Wait blocks until the interval has elapsed since the previous request
// that passed the gate, then records the current request.
// Returns ctx.Err() if ctx is done while waiting.
func (g *RateGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.IsZero() && g.interval > 0 {
		if remaining := g.interval - g.now().Sub(g.last); remaining > 0 {
			if err := g.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	g.last = g.now()
	return nil
}
