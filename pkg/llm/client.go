// Package llm provides request/response types and HTTP clients for text
// generation providers.
//
// Two API shapes are supported:
//   - ChatClient: chat-completions (OpenAI and Azure OpenAI)
//   - PromptClient: single-prompt generateContent (Gemini)
//
// Clients make exactly one HTTP request per call. Rate limiting, retries,
// and failover live in package invoke. Failed calls return *APIError so the
// caller can tell a short-term throttle from an exhausted quota.
package llm

import "context"

// Client completes a prompt against one provider.
type Client interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Complete performs a single completion request.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

var (
	_ Client = (*ChatClient)(nil)
	_ Client = (*PromptClient)(nil)
	_ Client = (*MockClient)(nil)
)
