// Package synth turns questions plus file materials into answers: either
// a direct LLM answer or generated Python code for the sandbox.
package synth

import (
	"context"
	"fmt"

	"quizsolver/internal/answer"
	"quizsolver/internal/llm"
	"quizsolver/internal/logging"
	"quizsolver/internal/material"
	"quizsolver/internal/prompt"
	"quizsolver/internal/strategy"
)

// Synthesizer produces answers through the configured LLM.
type Synthesizer struct {
	client        llm.Client
	operatorEmail string
}

// New returns a synthesizer. operatorEmail personalizes questions that
// reference the operator's identity.
func New(client llm.Client, operatorEmail string) *Synthesizer {
	return &Synthesizer{client: client, operatorEmail: operatorEmail}
}

// AnswerDirectly asks the LLM for the final answer and extracts a typed
// value from the free-text response.
func (s *Synthesizer) AnswerDirectly(ctx context.Context, question string, files *material.Set) (answer.Value, error) {
	p := prompt.Direct(question, files, s.operatorEmail)
	logging.LLMDebug("direct answer prompt: %d chars, %d files", len(p), files.Len())

	response, err := s.client.Complete(ctx, p)
	if err != nil {
		return answer.Value{}, fmt.Errorf("direct answer: %w", err)
	}

	value := answer.Extract(response)
	logging.Chain("direct answer extracted: %s", value.String())
	return value, nil
}

// GenerateCode asks the LLM for a complete Python solution and returns
// the extracted code block.
func (s *Synthesizer) GenerateCode(ctx context.Context, question string, files *material.Set) (string, error) {
	p := prompt.CodeGeneration(question, files)
	logging.LLMDebug("code generation prompt: %d chars, %d files", len(p), files.Len())

	response, err := s.client.Complete(ctx, p)
	if err != nil {
		return "", fmt.Errorf("code generation: %w", err)
	}

	code := strategy.ExtractCode(response)
	if code == "" {
		return "", fmt.Errorf("no code block in response")
	}
	logging.Chain("generated %d chars of code", len(code))
	return code, nil
}
