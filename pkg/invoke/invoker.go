package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/researchflow/pkg/fallback"
	"github.com/randalmurphal/researchflow/pkg/llm"
	"github.com/randalmurphal/researchflow/pkg/pipeline/observability"
)

// ErrNoProviders indicates Generate was called on an invoker with no providers.
var ErrNoProviders = errors.New("no providers configured")

// Provider is a text generation backend. llm.ChatClient, llm.PromptClient,
// and llm.MockClient all satisfy it.
type Provider = llm.Client

// Invoker issues prompts to an ordered list of providers.
//
// For each call it waits on the rate gate before every request, retries
// transient failures on the same provider, fails over to the next provider
// on anything else, and when all providers fail returns a deterministic
// fallback or the busy message. Generate never returns an error.
//
// An Invoker is safe for concurrent use.
type Invoker struct {
	providers   []Provider
	gate        *RateGate
	policy      RetryPolicy
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	tracing     bool
	busyMessage string
	sleep       SleepFunc
	maxTokens   int
	temperature float64
}

// New creates an Invoker that tries providers in the given order.
//
// Example:
//
//	gate := invoke.NewRateGate(time.Second)
//	inv := invoke.New([]invoke.Provider{azure, gemini},
//	    invoke.WithRateGate(gate),
//	    invoke.WithRetryPolicy(invoke.DefaultRetry))
//	resp := inv.Generate(ctx, prompt, invoke.WithFallback(query, docs))
func New(providers []Provider, opts ...Option) *Invoker {
	inv := &Invoker{
		providers:   append([]Provider(nil), providers...),
		gate:        NewRateGate(0),
		policy:      DefaultRetry,
		logger:      slog.Default(),
		metrics:     observability.NoopMetrics{},
		busyMessage: BusyMessage,
		sleep:       Sleep,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Providers returns the provider names in priority order.
func (inv *Invoker) Providers() []string {
	names := make([]string, len(inv.providers))
	for i, p := range inv.providers {
		names[i] = p.Name()
	}
	return names
}

// Generate sends prompt to the first provider that answers with text.
func (inv *Invoker) Generate(ctx context.Context, prompt string, opts ...CallOption) Response {
	var call callConfig
	for _, opt := range opts {
		opt(&call)
	}

	req := llm.UserPrompt(prompt)
	req.MaxTokens = inv.maxTokens
	if call.maxTokens > 0 {
		req.MaxTokens = call.maxTokens
	}
	req.Temperature = inv.temperature

	var errs []error
	attempts := 0
	for _, p := range inv.providers {
		result := Retry(ctx, inv.policy, inv.sleep, func(ctx context.Context, attempt int) (string, error) {
			return inv.attempt(ctx, p, attempt, req)
		})
		attempts += result.Attempts

		if result.Err == nil {
			return Response{
				Text:     result.Value,
				Status:   StatusOK,
				Provider: p.Name(),
				Attempts: attempts,
			}
		}

		var catErr *CategorizedError
		if errors.As(result.Err, &catErr) {
			catErr.Provider = p.Name()
		}
		errs = append(errs, result.Err)

		if ctx.Err() != nil {
			break
		}
		inv.logger.Info("failing over to next provider",
			slog.String("provider", p.Name()),
			slog.String("category", Classify(result.Err).String()),
		)
	}

	if len(inv.providers) == 0 {
		errs = append(errs, ErrNoProviders)
	}
	return inv.degrade(ctx, call, attempts, errors.Join(errs...))
}

// attempt makes one gated call to p. Blank text counts as a failure.
func (inv *Invoker) attempt(ctx context.Context, p Provider, attempt int, req llm.CompletionRequest) (text string, err error) {
	if err := inv.gate.Wait(ctx); err != nil {
		return "", err
	}

	if inv.tracing {
		var span trace.Span
		ctx, span = observability.StartProviderSpan(ctx, p.Name(), attempt)
		defer func() { observability.EndSpanWithError(span, err) }()
	}

	start := time.Now()
	resp, err := p.Complete(ctx, req)
	if err == nil {
		text = strings.TrimSpace(resp.Content)
		if text == "" {
			err = &CategorizedError{
				Err:      fmt.Errorf("%s: %w", p.Name(), llm.ErrEmptyResponse),
				Category: CategoryEmpty,
				Attempts: attempt,
			}
		}
	}
	duration := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = Classify(err).String()
	}
	observability.LogProviderAttempt(inv.logger, p.Name(), attempt, outcome, float64(duration.Milliseconds()), err)
	inv.metrics.RecordProviderAttempt(ctx, p.Name(), outcome, duration)

	return text, err
}

// degrade builds the answer used when no provider produced text.
func (inv *Invoker) degrade(ctx context.Context, call callConfig, attempts int, err error) Response {
	resp := Response{
		Text:     inv.busyMessage,
		Status:   StatusBusy,
		Attempts: attempts,
		Err:      err,
	}
	if len(call.docs) > 0 {
		resp.Text = fallback.Generate(call.query, call.docs)
		resp.Status = StatusFallback
	}

	observability.LogFallback(inv.logger, string(resp.Status), len(inv.providers))
	inv.metrics.RecordFallback(ctx, string(resp.Status))
	return resp
}
