package llm

import (
	"context"
	"sync"
)

// MockProvider is a scripted Provider for tests. Responses are returned in
// order; once exhausted, the last one repeats. Calls counts completions so
// cache-behavior tests can assert the upstream was or was not reached.
type MockProvider struct {
	mu        sync.Mutex
	responses []*Response
	errs      []error
	calls     int
	requests  []Request
}

// NewMockProvider builds a mock returning the given responses in order
func NewMockProvider(responses ...*Response) *MockProvider {
	return &MockProvider{responses: responses}
}

// FailWith queues an error before the scripted responses
func (m *MockProvider) FailWith(errs ...error) *MockProvider {
	m.errs = append(m.errs, errs...)
	return m
}

// Complete returns the next scripted error or response
func (m *MockProvider) Complete(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	idx := m.calls
	m.calls++

	if idx < len(m.errs) {
		return nil, m.errs[idx]
	}
	idx -= len(m.errs)

	if len(m.responses) == 0 {
		return &Response{Text: "{}"}, nil
	}
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// Calls returns how many completions were requested
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of every request seen so far
func (m *MockProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Name identifies the mock
func (m *MockProvider) Name() string { return "mock" }

// Close is a no-op
func (m *MockProvider) Close() error { return nil }
