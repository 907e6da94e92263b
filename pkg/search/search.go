// Package search provides web search backends for the research stage.
package search

import (
	"context"
	"sync"
)

// DefaultMaxResults is the number of results requested when the caller
// does not choose.
const DefaultMaxResults = 10

// Result is a single search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Searcher executes a query and returns at most maxResults results.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Static is a Searcher that returns fixed results. It is used for offline
// runs and tests.
type Static struct {
	Results []Result
	Err     error

	mu      sync.Mutex
	queries []string
}

// NewStatic creates a Static searcher.
func NewStatic(results ...Result) *Static {
	return &Static{Results: results}
}

// Search implements Searcher.
func (s *Static) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}

	out := s.Results
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return append([]Result(nil), out...), nil
}

// Queries returns every query received so far.
func (s *Static) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

var (
	_ Searcher = (*Static)(nil)
	_ Searcher = (*Tavily)(nil)
)
