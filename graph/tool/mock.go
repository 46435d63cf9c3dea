package tool

import (
	"context"
	"sync"
)

// MockTool is a Tool for tests.
//
// Handle, when set, computes each response from the input. Otherwise
// Responses are returned in order with the last repeated, or Err for every
// call.
type MockTool struct {
	ToolName  string
	Handle    func(input map[string]interface{}) (map[string]interface{}, error)
	Responses []map[string]interface{}
	Err       error

	mu        sync.Mutex
	calls     []map[string]interface{}
	callIndex int
}

// Name returns ToolName, or "mock" when unset.
func (m *MockTool) Name() string {
	if m.ToolName == "" {
		return "mock"
	}
	return m.ToolName
}

// Call records input and answers from the first configured source: Err,
// then Handle, then Responses in order. Once Responses is exhausted the
// last one repeats.
func (m *MockTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, input)

	switch {
	case m.Err != nil:
		return nil, m.Err
	case m.Handle != nil:
		return m.Handle(input)
	case len(m.Responses) == 0:
		return map[string]interface{}{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Calls returns the recorded inputs.
func (m *MockTool) Calls() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]interface{}(nil), m.calls...)
}

// CallCount returns the number of calls made.
func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
