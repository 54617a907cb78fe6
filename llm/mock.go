package llm

import (
	"context"
	"sync/atomic"
)

// MockProvider is a deterministic Provider used by tests, where invoking a
// real provider would be both slow and non-reproducible. Responses are served
// in order from Responses; once exhausted, the last response is repeated. A
// non-nil Err is returned from every call instead of a response.
type MockProvider struct {
	ProviderName string
	Responses    []Response
	Err          error
	calls        int64
}

// NewMockProvider constructs a MockProvider that always returns resp.
func NewMockProvider(name string, resp Response) *MockProvider {
	return &MockProvider{ProviderName: name, Responses: []Response{resp}}
}

func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Calls returns the number of times Generate has been invoked.
func (m *MockProvider) Calls() int64 { return atomic.LoadInt64(&m.calls) }

func (m *MockProvider) Generate(ctx context.Context, _ Request) (Response, error) {
	n := atomic.AddInt64(&m.calls, 1) - 1
	if m.Err != nil {
		return Response{}, m.Err
	}
	if len(m.Responses) == 0 {
		return Response{}, nil
	}
	idx := int(n)
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}
