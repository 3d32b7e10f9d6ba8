package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/lectern/ai"
)

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, returns Response (or a fixed answer when Response is empty).
	GenerateFunc func(ctx context.Context, req ai.GenerateRequest) (*ai.Generation, error)

	// Response is the default completion text.
	Response string

	mu       sync.Mutex
	requests []ai.GenerateRequest
}

// NewMockGenerator creates a generator that always answers with response.
func NewMockGenerator(response string) *MockGenerator {
	return &MockGenerator{Response: response}
}

// Generate records req and returns the configured completion.
func (m *MockGenerator) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.Generation, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ai.ErrEmptyPrompt
	}

	text := m.Response
	if text == "" {
		text = "mock answer"
	}
	prompt := len(strings.Fields(req.System)) + len(strings.Fields(req.Prompt))
	completion := len(strings.Fields(text))
	return &ai.Generation{
		Text:  text,
		Model: req.Model,
		Usage: ai.Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}

// Requests returns a copy of every request received so far.
func (m *MockGenerator) Requests() []ai.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ai.GenerateRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
