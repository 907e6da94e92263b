package invoke

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/randalmurphal/researchflow/pkg/llm"
)

// Category represents how a provider failure should be handled.
type Category int

const (
	// CategoryTransient indicates retrying the same provider will likely help.
	// Examples: HTTP 429 rate limits, 503 overload, network timeouts.
	CategoryTransient Category = iota

	// CategoryQuota indicates the provider's quota is exhausted.
	// The provider is abandoned immediately.
	CategoryQuota

	// CategoryEmpty indicates the provider answered with blank text.
	CategoryEmpty

	// CategoryPermanent indicates retrying won't help.
	// Examples: authentication failures, bad requests, missing configuration.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryQuota:
		return "quota"
	case CategoryEmpty:
		return "empty"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// CategorizedError wraps a provider failure with its category.
type CategorizedError struct {
	Err      error
	Category Category
	Provider string
	// Attempts is the number of calls made to Provider.
	Attempts int
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Provider, e.Err, e.Category, e.Attempts)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)", e.Err, e.Category, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Classify determines how a provider failure should be handled.
func Classify(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	// A cancelled caller is never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryPermanent
	}

	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.QuotaExceeded:
			return CategoryQuota
		case apiErr.RateLimited():
			return CategoryTransient
		default:
			return CategoryPermanent
		}
	}

	if errors.Is(err, llm.ErrEmptyResponse) {
		return CategoryEmpty
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTransient
	}

	return CategoryPermanent
}

// IsRetryable reports whether the same provider should be tried again.
func IsRetryable(err error) bool {
	return Classify(err) == CategoryTransient
}
