package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"quizsolver/internal/config"
	"quizsolver/internal/logging"
)

// GeminiClient generates completions through the Google GenAI SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(cfg config.LLMConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		timeout: cfg.RequestTimeout(),
	}, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.LLMDebug("[Gemini] Complete: model=%s prompt_len=%d", c.model, len(prompt))

	temperature := float32(0.1)
	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature: &temperature,
		},
	)
	if err != nil {
		logging.LLMError("[Gemini] Complete: %v", err)
		return "", fmt.Errorf("GenAI completion failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}

	logging.LLM("[Gemini] Complete: finished in %v response_len=%d", time.Since(startTime), len(text))
	return text, nil
}
