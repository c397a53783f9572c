// MockProvider is a language-model test double.
//
// Supports canned responses, per-call scripting, error injection, and call
// recording. Safe for concurrent use; the consensus orchestrator fans out
// Generate calls in parallel.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/hoplite-ai/hoplite/llm"
	"github.com/hoplite-ai/hoplite/types"
)

// MockProvider implements llm.Provider.
type MockProvider struct {
	mu sync.Mutex

	response  string
	responses []string // consumed in call order when set
	err       error
	delay     time.Duration
	handler   func(req *llm.GenerateRequest) (string, error)

	calls    int
	requests []llm.GenerateRequest
}

// NewMockProvider creates a provider answering every request with response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{response: response}
}

// WithResponses scripts one response per call, in order. Calls past the end
// of the script repeat the last entry.
func (m *MockProvider) WithResponses(responses ...string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	return m
}

// WithError makes every call fail with err.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay adds latency before each response, for cancellation tests.
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithHandler routes every call through fn, overriding canned responses.
func (m *MockProvider) WithHandler(fn func(req *llm.GenerateRequest) (string, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
	return m
}

// Generate implements llm.Provider.
func (m *MockProvider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	m.mu.Lock()
	call := m.calls
	m.calls++
	m.requests = append(m.requests, *req)
	err := m.err
	delay := m.delay
	handler := m.handler
	text := m.response
	if len(m.responses) > 0 {
		if call < len(m.responses) {
			text = m.responses[call]
		} else {
			text = m.responses[len(m.responses)-1]
		}
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, types.NewError(types.KindProvider, "generation cancelled").WithCause(ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}
	if handler != nil {
		out, herr := handler(req)
		if herr != nil {
			return nil, herr
		}
		text = out
	}

	return &llm.GenerateResponse{
		Text:      text,
		Provider:  m.Name(),
		Model:     "mock",
		CreatedAt: time.Now(),
	}, nil
}

// Name implements llm.Provider.
func (m *MockProvider) Name() string { return "mock" }

// Calls returns how many Generate calls have been made.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns copies of all recorded requests.
func (m *MockProvider) Requests() []llm.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.GenerateRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
