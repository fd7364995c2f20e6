package repositories

import "context"

// LargeLanguageModel abstracts any chat/LLM provider
type LargeLanguageModel interface {
	// Generate takes a system instruction and a user prompt and returns the model's reply
	Generate(ctx context.Context, systemInstruction, prompt string) (string, error)
}
