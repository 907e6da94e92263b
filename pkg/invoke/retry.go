package invoke

import (
	"context"
	"time"
)

// RetryPolicy configures per-provider retries of transient failures.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of calls to one provider
	// (including the first).
	MaxAttempts int

	// BackoffStep is the linear backoff unit: the wait before retry i
	// (1-based) is i * BackoffStep.
	BackoffStep time.Duration

	// MaxBackoff caps a single wait. Zero means no cap.
	MaxBackoff time.Duration
}

// DefaultRetry is the standard retry policy.
var DefaultRetry = RetryPolicy{
	MaxAttempts: 3,
	BackoffStep: 10 * time.Second,
	MaxBackoff:  time.Minute,
}

// NoRetry makes one call per provider.
var NoRetry = RetryPolicy{
	MaxAttempts: 1,
}

// Backoff returns the wait before retry number retry (1-based).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	d := time.Duration(retry) * p.BackoffStep
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// RetryResult contains the result of a retry operation.
type RetryResult[T any] struct {
	Value    T
	Err      error
	Attempts int
	Duration time.Duration
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn until it succeeds, returns a non-transient error, or the
// policy's attempt ceiling is reached. fn receives the 1-based attempt.
// Waits between attempts follow policy.Backoff and abort when ctx is done.
func Retry[T any](ctx context.Context, policy RetryPolicy, sleep SleepFunc, fn func(ctx context.Context, attempt int) (T, error)) RetryResult[T] {
	if sleep == nil {
		sleep = Sleep
	}
	start := time.Now()
	maxAttempts := policy.attempts()

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return RetryResult[T]{
				Err:      &CategorizedError{Err: err, Category: CategoryPermanent, Attempts: attempts},
				Attempts: attempts,
				Duration: time.Since(start),
			}
		}

		attempts = attempt
		value, err := fn(ctx, attempt)
		if err == nil {
			return RetryResult[T]{Value: value, Attempts: attempts, Duration: time.Since(start)}
		}
		lastErr = err

		if !IsRetryable(err) || attempt == maxAttempts {
			break
		}

		if err := sleep(ctx, policy.Backoff(attempt)); err != nil {
			return RetryResult[T]{
				Err:      &CategorizedError{Err: err, Category: CategoryPermanent, Attempts: attempts},
				Attempts: attempts,
				Duration: time.Since(start),
			}
		}
	}

	return RetryResult[T]{
		Err:      &CategorizedError{Err: lastErr, Category: Classify(lastErr), Attempts: attempts},
		Attempts: attempts,
		Duration: time.Since(start),
	}
}
