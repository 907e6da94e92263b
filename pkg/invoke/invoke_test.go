package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/researchflow/pkg/document"
	"github.com/randalmurphal/researchflow/pkg/fallback"
	"github.com/randalmurphal/researchflow/pkg/llm"
	"github.com/randalmurphal/researchflow/pkg/pipeline/observability"
)

var (
	errThrottled = &llm.APIError{Provider: "test", StatusCode: 429, Message: "slow down"}
	errQuota     = &llm.APIError{Provider: "test", StatusCode: 429, Code: "insufficient_quota", Message: "quota exceeded", QuotaExceeded: true}
	errAuth      = &llm.APIError{Provider: "test", StatusCode: 401, Message: "bad key"}
)

// sleepRecorder is a SleepFunc that returns immediately and remembers
// every requested wait.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) Waits() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

// fakeClock drives a RateGate without real waiting.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func fakeGate(interval time.Duration) (*RateGate, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	gate := NewRateGate(interval)
	gate.now = clock.Now
	gate.sleep = clock.Sleep
	return gate, clock
}

// metricsRecorder captures provider attempts and fallbacks.
type metricsRecorder struct {
	observability.NoopMetrics
	mu        sync.Mutex
	outcomes  []string
	fallbacks []string
}

func (m *metricsRecorder) RecordProviderAttempt(_ context.Context, provider, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, provider+":"+outcome)
}

func (m *metricsRecorder) RecordFallback(_ context.Context, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks = append(m.fallbacks, status)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestInvoker(sleep *sleepRecorder, providers ...Provider) *Invoker {
	return New(providers,
		WithLogger(quietLogger()),
		WithSleep(sleep.Sleep),
	)
}

func testDocs() []document.Document {
	return []document.Document{
		document.New("Cats sleep most of the day. Cats also purr when content.", "https://pets.example/cats", "Cats"),
	}
}

func TestClassify(t *testing.T) {
	timeout := &timeoutError{}

	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryPermanent},
		{"rate limited", errThrottled, CategoryTransient},
		{"overloaded", &llm.APIError{StatusCode: 503}, CategoryTransient},
		{"rate limit code", &llm.APIError{StatusCode: 400, Code: "rate_limit_exceeded"}, CategoryTransient},
		{"quota", errQuota, CategoryQuota},
		{"auth", errAuth, CategoryPermanent},
		{"wrapped api error", fmt.Errorf("call: %w", errThrottled), CategoryTransient},
		{"empty", llm.ErrEmptyResponse, CategoryEmpty},
		{"not configured", llm.ErrNotConfigured, CategoryPermanent},
		{"canceled", context.Canceled, CategoryPermanent},
		{"deadline", context.DeadlineExceeded, CategoryPermanent},
		{"net timeout", timeout, CategoryTransient},
		{"categorized", &CategorizedError{Err: errAuth, Category: CategoryQuota}, CategoryQuota},
		{"unknown", errors.New("boom"), CategoryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

type timeoutError struct{}

func (*timeoutError) Error() string   { return "i/o timeout" }
func (*timeoutError) Timeout() bool   { return true }
func (*timeoutError) Temporary() bool { return true }

func TestCategory_String(t *testing.T) {
	assert.Equal(t, "transient", CategoryTransient.String())
	assert.Equal(t, "quota", CategoryQuota.String())
	assert.Equal(t, "empty", CategoryEmpty.String())
	assert.Equal(t, "permanent", CategoryPermanent.String())
	assert.Equal(t, "unknown", Category(99).String())
}

func TestCategorizedError(t *testing.T) {
	err := &CategorizedError{Err: errQuota, Category: CategoryQuota, Provider: "azure-openai", Attempts: 1}

	assert.Contains(t, err.Error(), "azure-openai")
	assert.Contains(t, err.Error(), "category: quota")

	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.QuotaExceeded)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BackoffStep: 10 * time.Second, MaxBackoff: 25 * time.Second}

	assert.Equal(t, time.Duration(0), p.Backoff(0))
	assert.Equal(t, 10*time.Second, p.Backoff(1))
	assert.Equal(t, 20*time.Second, p.Backoff(2))
	assert.Equal(t, 25*time.Second, p.Backoff(3))

	uncapped := RetryPolicy{BackoffStep: time.Second}
	assert.Equal(t, 7*time.Second, uncapped.Backoff(7))
}

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	sleep := &sleepRecorder{}
	calls := 0

	result := Retry(context.Background(), DefaultRetry, sleep.Sleep, func(_ context.Context, attempt int) (string, error) {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 3 {
			return "", errThrottled
		}
		return "done", nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, "done", result.Value)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, sleep.Waits())
}

func TestRetry_StopsOnPermanent(t *testing.T) {
	sleep := &sleepRecorder{}
	calls := 0

	result := Retry(context.Background(), DefaultRetry, sleep.Sleep, func(context.Context, int) (int, error) {
		calls++
		return 0, errAuth
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, result.Attempts)
	assert.Empty(t, sleep.Waits())

	var catErr *CategorizedError
	require.ErrorAs(t, result.Err, &catErr)
	assert.Equal(t, CategoryPermanent, catErr.Category)
	assert.Equal(t, 1, catErr.Attempts)
}

func TestRetry_Exhausted(t *testing.T) {
	sleep := &sleepRecorder{}

	result := Retry(context.Background(), RetryPolicy{MaxAttempts: 2, BackoffStep: time.Second}, sleep.Sleep,
		func(context.Context, int) (int, error) { return 0, errThrottled })

	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, CategoryTransient, Classify(result.Err))
	assert.Equal(t, []time.Duration{time.Second}, sleep.Waits())
}

func TestRetry_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	result := Retry(ctx, DefaultRetry, nil, func(context.Context, int) (int, error) {
		called = true
		return 1, nil
	})

	assert.False(t, called)
	assert.Equal(t, 0, result.Attempts)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestRetry_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sleep := func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	result := Retry(ctx, DefaultRetry, sleep, func(context.Context, int) (int, error) {
		return 0, errThrottled
	})

	assert.Equal(t, 1, result.Attempts)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, CategoryPermanent, Classify(result.Err))
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestRateGate_Spacing(t *testing.T) {
	gate, clock := fakeGate(time.Second)
	ctx := context.Background()

	require.NoError(t, gate.Wait(ctx))
	require.NoError(t, gate.Wait(ctx))
	clock.Advance(400 * time.Millisecond)
	require.NoError(t, gate.Wait(ctx))
	clock.Advance(2 * time.Second)
	require.NoError(t, gate.Wait(ctx))

	assert.Equal(t, []time.Duration{time.Second, 600 * time.Millisecond}, clock.slept)
}

func TestRateGate_RealClock(t *testing.T) {
	const interval = 30 * time.Millisecond
	gate := NewRateGate(interval)
	ctx := context.Background()

	var stamps []time.Time
	for range 3 {
		require.NoError(t, gate.Wait(ctx))
		stamps = append(stamps, time.Now())
	}

	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), interval)
	}
}

func TestRateGate_Concurrent(t *testing.T) {
	gate, clock := fakeGate(time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gate.Wait(ctx))
		}()
	}
	wg.Wait()

	// The first caller passes freely; each later caller waits a full interval.
	assert.Len(t, clock.slept, 4)
	for _, d := range clock.slept {
		assert.Equal(t, time.Second, d)
	}
}

func TestRateGate_Cancelled(t *testing.T) {
	gate := NewRateGate(time.Hour)
	require.NoError(t, gate.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, gate.Wait(ctx), context.DeadlineExceeded)
}

func TestRateGate_Disabled(t *testing.T) {
	gate, clock := fakeGate(0)

	for range 3 {
		require.NoError(t, gate.Wait(context.Background()))
	}
	assert.Empty(t, clock.slept)
}

func TestInvoker_FirstProviderAnswers(t *testing.T) {
	primary := llm.NewMockClient("  an answer  ").WithName("primary")
	secondary := llm.NewMockClient("unused").WithName("secondary")

	resp := newTestInvoker(&sleepRecorder{}, primary, secondary).Generate(context.Background(), "prompt")

	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, "an answer", resp.Text)
	assert.Equal(t, "primary", resp.Provider)
	assert.Equal(t, 1, resp.Attempts)
	assert.NoError(t, resp.Err)
	assert.Equal(t, 0, secondary.CallCount())
	assert.Equal(t, "prompt", primary.Calls()[0].Messages[0].Content)
}

func TestInvoker_TransientRetriedOnSameProvider(t *testing.T) {
	for k := 0; k < 3; k++ {
		t.Run(fmt.Sprintf("failures=%d", k), func(t *testing.T) {
			errs := make([]error, k)
			for i := range errs {
				errs[i] = errThrottled
			}
			primary := llm.NewMockClient("ok").WithName("primary").WithErrors(errs...)
			secondary := llm.NewMockClient("unused").WithName("secondary")
			sleep := &sleepRecorder{}

			resp := newTestInvoker(sleep, primary, secondary).Generate(context.Background(), "prompt")

			assert.Equal(t, StatusOK, resp.Status)
			assert.Equal(t, "primary", resp.Provider)
			assert.Equal(t, k+1, primary.CallCount())
			assert.Equal(t, k+1, resp.Attempts)
			assert.Equal(t, 0, secondary.CallCount())
			assert.Len(t, sleep.Waits(), k)
		})
	}
}

func TestInvoker_TransientExhaustedFailsOver(t *testing.T) {
	primary := llm.NewMockClient("").WithName("primary").WithError(errThrottled)
	secondary := llm.NewMockClient("from secondary").WithName("secondary")
	sleep := &sleepRecorder{}

	resp := newTestInvoker(sleep, primary, secondary).Generate(context.Background(), "prompt")

	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, "secondary", resp.Provider)
	assert.Equal(t, DefaultRetry.MaxAttempts, primary.CallCount())
	assert.Equal(t, DefaultRetry.MaxAttempts+1, resp.Attempts)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, sleep.Waits())
}

func TestInvoker_QuotaNotRetried(t *testing.T) {
	primary := llm.NewMockClient("").WithName("primary").WithError(errQuota)
	secondary := llm.NewMockClient("from secondary").WithName("secondary")
	sleep := &sleepRecorder{}

	resp := newTestInvoker(sleep, primary, secondary).Generate(context.Background(), "prompt")

	assert.Equal(t, 1, primary.CallCount())
	assert.Equal(t, 1, secondary.CallCount())
	assert.Equal(t, "secondary", resp.Provider)
	assert.Empty(t, sleep.Waits())
}

func TestInvoker_EmptyTextFailsOver(t *testing.T) {
	primary := llm.NewMockClient(" \n ").WithName("primary")
	secondary := llm.NewMockClient("real text").WithName("secondary")

	resp := newTestInvoker(&sleepRecorder{}, primary, secondary).Generate(context.Background(), "prompt")

	assert.Equal(t, 1, primary.CallCount())
	assert.Equal(t, "real text", resp.Text)
	assert.Equal(t, "secondary", resp.Provider)
}

func TestInvoker_AllFailWithFallbackContext(t *testing.T) {
	primary := llm.NewMockClient("").WithName("primary").WithError(errQuota)
	secondary := llm.NewMockClient("").WithName("secondary").WithError(errAuth)
	docs := testDocs()

	resp := newTestInvoker(&sleepRecorder{}, primary, secondary).
		Generate(context.Background(), "prompt", WithFallback("cats", docs))

	assert.Equal(t, StatusFallback, resp.Status)
	assert.Equal(t, fallback.Generate("cats", docs), resp.Text)
	assert.Empty(t, resp.Provider)
	assert.Equal(t, 2, resp.Attempts)
	require.Error(t, resp.Err)

	var catErr *CategorizedError
	require.ErrorAs(t, resp.Err, &catErr)
	assert.Equal(t, "primary", catErr.Provider)
	assert.Equal(t, CategoryQuota, catErr.Category)
}

func TestInvoker_AllFailWithoutDocuments(t *testing.T) {
	primary := llm.NewMockClient("").WithName("primary").WithError(errAuth)

	resp := newTestInvoker(&sleepRecorder{}, primary).
		Generate(context.Background(), "prompt", WithFallback("cats", nil))

	assert.Equal(t, StatusBusy, resp.Status)
	assert.Equal(t, BusyMessage, resp.Text)
}

func TestInvoker_NoProviders(t *testing.T) {
	resp := newTestInvoker(&sleepRecorder{}).Generate(context.Background(), "prompt")

	assert.Equal(t, StatusBusy, resp.Status)
	assert.Equal(t, BusyMessage, resp.Text)
	assert.ErrorIs(t, resp.Err, ErrNoProviders)
	assert.Zero(t, resp.Attempts)
}

func TestInvoker_NoProvidersWithDocuments(t *testing.T) {
	docs := testDocs()

	resp := newTestInvoker(&sleepRecorder{}).Generate(context.Background(), "prompt", WithFallback("cats", docs))

	assert.Equal(t, StatusFallback, resp.Status)
	assert.Contains(t, resp.Text, "Cats sleep most of the day")
}

func TestInvoker_CancelledContext(t *testing.T) {
	primary := llm.NewMockClient("never").WithName("primary")
	secondary := llm.NewMockClient("never").WithName("secondary")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := newTestInvoker(&sleepRecorder{}, primary, secondary).Generate(ctx, "prompt")

	assert.Equal(t, StatusBusy, resp.Status)
	assert.Equal(t, 0, primary.CallCount())
	assert.Equal(t, 0, secondary.CallCount())
	assert.ErrorIs(t, resp.Err, context.Canceled)
}

func TestInvoker_SharedGate(t *testing.T) {
	gate, clock := fakeGate(time.Second)
	a := New([]Provider{llm.NewMockClient("a")}, WithRateGate(gate), WithLogger(quietLogger()))
	b := New([]Provider{llm.NewMockClient("b")}, WithRateGate(gate), WithLogger(quietLogger()))

	a.Generate(context.Background(), "one")
	b.Generate(context.Background(), "two")
	a.Generate(context.Background(), "three")

	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.slept)
}

func TestInvoker_GateAppliesToRetries(t *testing.T) {
	gate, clock := fakeGate(time.Second)
	primary := llm.NewMockClient("ok").WithErrors(errThrottled)
	sleep := &sleepRecorder{}
	inv := New([]Provider{primary}, WithRateGate(gate), WithSleep(sleep.Sleep), WithLogger(quietLogger()))

	resp := inv.Generate(context.Background(), "prompt")

	assert.Equal(t, StatusOK, resp.Status)
	// The backoff sleep does not advance the fake clock, so the gate
	// still enforces its own interval before the retry.
	assert.Equal(t, []time.Duration{time.Second}, clock.slept)
}

func TestInvoker_RequestOptions(t *testing.T) {
	primary := llm.NewMockClient("ok")
	inv := New([]Provider{primary},
		WithLogger(quietLogger()),
		WithDefaultMaxTokens(500),
		WithDefaultTemperature(0.2),
	)

	inv.Generate(context.Background(), "first")
	inv.Generate(context.Background(), "second", WithMaxTokens(64))

	calls := primary.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, 500, calls[0].MaxTokens)
	assert.Equal(t, 64, calls[1].MaxTokens)
	assert.InDelta(t, 0.2, calls[1].Temperature, 1e-9)
}

func TestInvoker_RecordsMetrics(t *testing.T) {
	metrics := &metricsRecorder{}
	primary := llm.NewMockClient("").WithName("primary").WithError(errQuota)
	secondary := llm.NewMockClient("").WithName("secondary")
	inv := New([]Provider{primary, secondary},
		WithLogger(quietLogger()),
		WithMetrics(metrics),
		WithTracing(true),
	)

	resp := inv.Generate(context.Background(), "prompt", WithFallback("cats", testDocs()))

	assert.Equal(t, StatusFallback, resp.Status)
	assert.Equal(t, []string{"primary:quota", "secondary:empty"}, metrics.outcomes)
	assert.Equal(t, []string{"fallback"}, metrics.fallbacks)
}

func TestInvoker_BusyMessageOverride(t *testing.T) {
	inv := New(nil, WithLogger(quietLogger()), WithBusyMessage("try later"))

	assert.Equal(t, "try later", inv.Generate(context.Background(), "prompt").Text)
}

func TestInvoker_Providers(t *testing.T) {
	inv := New([]Provider{
		llm.NewMockClient("").WithName("azure-openai"),
		llm.NewMockClient("").WithName("gemini"),
	})

	assert.Equal(t, []string{"azure-openai", "gemini"}, inv.Providers())
}

func TestStatus_Degraded(t *testing.T) {
	assert.False(t, StatusOK.Degraded())
	assert.True(t, StatusFallback.Degraded())
	assert.True(t, StatusBusy.Degraded())
	assert.True(t, StatusSkipped.Degraded())
}
