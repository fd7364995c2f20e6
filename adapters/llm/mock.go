package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockLLM answers without calling any provider. Useful for local runs
// without an API key.
type MockLLM struct{}

// NewMockLLM creates a new mock LLM
func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// Generate implements repositories.LargeLanguageModel
func (m *MockLLM) Generate(ctx context.Context, systemInstruction, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(prompt) == "" {
		return "I'm here whenever you want to talk.", nil
	}
	return fmt.Sprintf("I hear you: %q. You are doing a wonderful job.", prompt), nil
}
