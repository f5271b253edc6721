package llm

import (
	"context"
	"sync"
)

// MockDriver implements Driver for testing.
type MockDriver struct {
	GenerateFunc    func(ctx context.Context, prompt string) (string, error)
	HealthCheckFunc func(ctx context.Context) error
	prompts         []string
	mu              sync.Mutex
}

// NewMockDriver creates a mock that answers every prompt with suggestion.
func NewMockDriver(suggestion string) *MockDriver {
	return &MockDriver{
		GenerateFunc: func(context.Context, string) (string, error) {
			return suggestion, nil
		},
	}
}

// Generate implements Driver.
func (m *MockDriver) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "mock suggestion", nil
}

// GetCapabilities implements Driver.
func (m *MockDriver) GetCapabilities() Capabilities {
	return Capabilities{Driver: "mock", ModelName: "mock-model"}
}

// HealthCheck implements Driver.
func (m *MockDriver) HealthCheck(ctx context.Context) error {
	if m.HealthCheckFunc != nil {
		return m.HealthCheckFunc(ctx)
	}
	return nil
}

// Calls returns how many prompts were sent.
func (m *MockDriver) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt sent so far.
func (m *MockDriver) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}
