package llm

import (
	"context"
	"sync"
)

// MockClient is a scripted Client for tests and offline runs.
//
// Scripted errors are returned first, one per call, then responses are
// returned in order, cycling when exhausted.
type MockClient struct {
	mu        sync.Mutex
	name      string
	responses []string
	errs      []error
	fixedErr  error
	calls     []CompletionRequest
}

// NewMockClient creates a mock that always answers with response.
func NewMockClient(response string) *MockClient {
	return &MockClient{name: "mock", responses: []string{response}}
}

// WithName sets the provider name.
func (m *MockClient) WithName(name string) *MockClient {
	m.name = name
	return m
}

// WithResponses replaces the response script.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.responses = responses
	return m
}

// WithErrors makes the next len(errs) calls fail in order.
func (m *MockClient) WithErrors(errs ...error) *MockClient {
	m.errs = append(m.errs, errs...)
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.fixedErr = err
	return m
}

// Name implements Client.
func (m *MockClient) Name() string { return m.name }

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := len(m.calls)
	m.calls = append(m.calls, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.fixedErr != nil {
		return nil, m.fixedErr
	}
	if call < len(m.errs) {
		return nil, m.errs[call]
	}

	content := ""
	if len(m.responses) > 0 {
		content = m.responses[(call-len(m.errs))%len(m.responses)]
	}
	return &CompletionResponse{
		Content:      content,
		Model:        m.name,
		FinishReason: "stop",
	}, nil
}

// Calls returns the requests received so far.
func (m *MockClient) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]CompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Complete was called.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
