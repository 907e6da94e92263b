package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors returned by clients.
var (
	// ErrEmptyResponse indicates the provider answered without any text.
	ErrEmptyResponse = errors.New("empty response from provider")

	// ErrNotConfigured indicates a client is missing an endpoint or key.
	ErrNotConfigured = errors.New("provider not configured")
)

// APIError is a non-2xx answer from a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	// Code is the provider's own error code ("insufficient_quota",
	// "rate_limit_exceeded", "RESOURCE_EXHAUSTED", ...).
	Code    string
	Message string
	// QuotaExceeded is set when the provider reports an exhausted quota
	// rather than a short-term rate limit.
	QuotaExceeded bool
}

// Error implements the error interface.
func (e *APIError) Error() string {
	code := e.Code
	if code == "" {
		code = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d %s: %s", e.Provider, e.StatusCode, code, e.Message)
}

// RateLimited reports whether the error is a short-term throttle.
func (e *APIError) RateLimited() bool {
	if e.QuotaExceeded {
		return false
	}
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	switch strings.ToLower(e.Code) {
	case "rate_limit_exceeded", "ratelimitexceeded", "429", "unavailable":
		return true
	}
	return false
}

// errorEnvelope covers both {"error":{"code":"x","message":"y"}} and
// {"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"y"}}.
type errorEnvelope struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Type    string          `json:"type"`
		Status  string          `json:"status"`
		Message string          `json:"message"`
	} `json:"error"`
}

// parseAPIError builds an APIError from a failed response body.
func parseAPIError(provider string, status int, body []byte) *APIError {
	apiErr := &APIError{Provider: provider, StatusCode: status}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}

	apiErr.Message = env.Error.Message
	apiErr.Code = strings.Trim(string(env.Error.Code), `"`)
	if apiErr.Code == "null" {
		apiErr.Code = ""
	}
	// Status strings are more descriptive than numeric codes.
	if env.Error.Status != "" {
		apiErr.Code = env.Error.Status
	}
	if apiErr.Code == "" {
		apiErr.Code = env.Error.Type
	}

	apiErr.QuotaExceeded = isQuotaSignal(apiErr.Code, apiErr.Message)
	return apiErr
}

// isQuotaSignal recognizes exhausted-quota answers from both API families.
func isQuotaSignal(code, message string) bool {
	switch code {
	case "insufficient_quota":
		return true
	case "RESOURCE_EXHAUSTED":
		return strings.Contains(strings.ToLower(message), "quota")
	}
	return false
}
