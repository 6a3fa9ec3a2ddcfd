// Package llm provides the provider-selectable completion client used
// for strategy selection, direct answering, and code generation.
package llm

import (
	"context"
	"fmt"

	"quizsolver/internal/config"
)

// Client is the minimal completion interface the solver needs.
type Client interface {
	// Complete sends a prompt and returns the completion text.
	Complete(ctx context.Context, prompt string) (string, error)

	// Model returns the configured model name.
	Model() string
}

// NewFromConfig builds a client for the configured provider.
func NewFromConfig(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(cfg), nil
	case "gemini":
		return NewGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
