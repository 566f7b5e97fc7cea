package llm

import (
	"context"
	"sync"
)

// MockClient is a test double for Client. Responses are returned in order;
// when exhausted, the last response repeats. An Err takes precedence over
// responses.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Calls     int
	Prompts   []string
}

// GenerateResponse returns the next canned response or the configured error.
func (m *MockClient) GenerateResponse(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	m.Prompts = append(m.Prompts, prompt)

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	idx := m.Calls - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// GetModel returns a fixed model name.
func (m *MockClient) GetModel() string {
	return "mock-model"
}
