package invoke

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/researchflow/pkg/document"
	"github.com/randalmurphal/researchflow/pkg/pipeline/observability"
)

// Option configures an Invoker.
type Option func(*Invoker)

// WithRateGate shares gate with other invokers.
func WithRateGate(gate *RateGate) Option {
	return func(inv *Invoker) {
		if gate != nil {
			inv.gate = gate
		}
	}
}

// WithMinInterval gives the invoker its own gate with the given interval.
func WithMinInterval(d time.Duration) Option {
	return func(inv *Invoker) {
		inv.gate = NewRateGate(d)
	}
}

// WithRetryPolicy sets the per-provider retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(inv *Invoker) {
		inv.policy = p
	}
}

// WithLogger sets the logger for attempt and fallback events.
func WithLogger(logger *slog.Logger) Option {
	return func(inv *Invoker) {
		inv.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(inv *Invoker) {
		if m != nil {
			inv.metrics = m
		}
	}
}

// WithTracing wraps every provider call in a client span.
func WithTracing(enabled bool) Option {
	return func(inv *Invoker) {
		inv.tracing = enabled
	}
}

// WithBusyMessage overrides BusyMessage.
func WithBusyMessage(msg string) Option {
	return func(inv *Invoker) {
		if msg != "" {
			inv.busyMessage = msg
		}
	}
}

// WithSleep replaces the function used for backoff waits.
func WithSleep(fn SleepFunc) Option {
	return func(inv *Invoker) {
		if fn != nil {
			inv.sleep = fn
		}
	}
}

// WithDefaultMaxTokens sets max_tokens for calls that don't set their own.
func WithDefaultMaxTokens(n int) Option {
	return func(inv *Invoker) {
		inv.maxTokens = n
	}
}

// WithDefaultTemperature sets the sampling temperature for every call.
func WithDefaultTemperature(t float64) Option {
	return func(inv *Invoker) {
		inv.temperature = t
	}
}

// CallOption configures one Generate call.
type CallOption func(*callConfig)

type callConfig struct {
	query     string
	docs      []document.Document
	maxTokens int
}

// WithFallback supplies the context for a deterministic answer when every
// provider fails. Without it, or with no documents, Generate returns the
// busy message instead.
func WithFallback(query string, docs []document.Document) CallOption {
	return func(c *callConfig) {
		c.query = query
		c.docs = docs
	}
}

// WithMaxTokens bounds the length of this call's answer.
func WithMaxTokens(n int) CallOption {
	return func(c *callConfig) {
		c.maxTokens = n
	}
}
