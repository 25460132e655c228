package executor

import (
	"context"
	"sync"
)

// MockHandler answers one document at a location.
type MockHandler func(ctx context.Context, document string, variables map[string]any) (*ExecutionResult, error)

// NewMockDataHandler returns a MockHandler that always answers data.
func NewMockDataHandler(data map[string]any) MockHandler {
	return func(ctx context.Context, document string, variables map[string]any) (*ExecutionResult, error) {
		return &ExecutionResult{Data: data}, nil
	}
}

// NewMockErrorHandler returns a MockHandler that always fails with err.
func NewMockErrorHandler(err error) MockHandler {
	return func(ctx context.Context, document string, variables map[string]any) (*ExecutionResult, error) {
		return nil, err
	}
}

// Call records one executable invocation.
type Call struct {
	Location  string
	Document  string
	Variables map[string]any
}

// MockExecutables serves every location from an in-memory handler registry
// with a single call log.
type MockExecutables struct {
	mu       sync.Mutex
	handlers map[string]MockHandler
	calls    []Call
}

// NewMockExecutables creates MockExecutables keyed by location.
func NewMockExecutables(handlers map[string]MockHandler) *MockExecutables {
	m := &MockExecutables{handlers: make(map[string]MockHandler)}
	for k, v := range handlers {
		m.handlers[k] = v
	}
	return m
}

// SetHandler registers or replaces the handler for a location.
func (m *MockExecutables) SetHandler(location string, h MockHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[location] = h
}

// Executables returns one Executable per registered location.
func (m *MockExecutables) Executables() map[string]Executable {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Executable, len(m.handlers))
	for loc := range m.handlers {
		loc := loc
		out[loc] = ExecutableFunc(func(ctx context.Context, document string, variables map[string]any) (*ExecutionResult, error) {
			m.mu.Lock()
			h := m.handlers[loc]
			m.calls = append(m.calls, Call{Location: loc, Document: document, Variables: variables})
			m.mu.Unlock()
			if h == nil {
				return &ExecutionResult{}, nil
			}
			return h(ctx, document, variables)
		})
	}
	return out
}

// GetCalls returns a copy of the recorded calls in order.
func (m *MockExecutables) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls (handlers remain).
func (m *MockExecutables) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
