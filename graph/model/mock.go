package model

import (
	"context"
	"sync"
)

// MockTextModel is a TextModel for tests.
//
// Responses are returned in order; once exhausted the last one repeats. When
// Err is set every call fails with it. Respond, when set, takes precedence and
// computes the response from the request.
type MockTextModel struct {
	Responses []TextResponse
	Respond   func(TextRequest) (TextResponse, error)
	Err       error

	mu        sync.Mutex
	calls     []TextRequest
	callIndex int
}

// Generate records the request and returns the next configured response.
func (m *MockTextModel) Generate(ctx context.Context, req TextRequest) (TextResponse, error) {
	if err := ctx.Err(); err != nil {
		return TextResponse{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)

	if m.Err != nil {
		return TextResponse{}, m.Err
	}
	if m.Respond != nil {
		return m.Respond(req)
	}
	if len(m.Responses) == 0 {
		return TextResponse{Model: req.Model}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Calls returns a copy of the recorded requests.
func (m *MockTextModel) Calls() []TextRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TextRequest(nil), m.calls...)
}

// CallCount returns the number of Generate calls.
func (m *MockTextModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears recorded calls and rewinds the response sequence.
func (m *MockTextModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.callIndex = 0
}

// MockImageModel is an ImageModel for tests. It returns Response, or Err.
type MockImageModel struct {
	Response ImageResponse
	Err      error

	mu    sync.Mutex
	calls []ImageRequest
}

// GenerateImage records req and returns Err when set, Response otherwise.
func (m *MockImageModel) GenerateImage(ctx context.Context, req ImageRequest) (ImageResponse, error) {
	if err := ctx.Err(); err != nil {
		return ImageResponse{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.Err != nil {
		return ImageResponse{}, m.Err
	}
	return m.Response, nil
}

// Calls returns a copy of the recorded requests.
func (m *MockImageModel) Calls() []ImageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ImageRequest(nil), m.calls...)
}
