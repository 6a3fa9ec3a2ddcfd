// Package strategy decides whether a question is answered directly by
// the LLM or by generating and executing analysis code.
package strategy

import (
	"context"
	"regexp"
	"strings"

	"quizsolver/internal/llm"
	"quizsolver/internal/logging"
	"quizsolver/internal/material"
	"quizsolver/internal/prompt"
)

// DecisionKind is the chosen resolution path.
type DecisionKind int

const (
	// Direct answers through the LLM alone.
	Direct DecisionKind = iota
	// CodeExecution runs extracted Python code in the sandbox.
	CodeExecution
)

// Decision carries the chosen path and, for CodeExecution, the code.
type Decision struct {
	Kind DecisionKind
	Code string
}

// executionKeywords in the question text suggest the answer needs code
// even when the LLM response does not declare a strategy.
var executionKeywords = []string{
	"visualization", "visualize", "plot", "chart", "graph",
	"machine learning", "regression", "classification", "clustering",
	"model", "predict", "train",
	"generate", "create a file", "create csv",
	"statistical analysis", "hypothesis test",
	"correlation", "distribution",
}

var codeFence = regexp.MustCompile("(?s)```(?:python|Python)?\\s*(.*?)```")

// ExtractCode returns the first fenced code block from an LLM response,
// trimmed, or "" when no block is present.
func ExtractCode(response string) string {
	matches := codeFence.FindStringSubmatch(response)
	if len(matches) < 2 {
		return ""
	}
	return strings.TrimSpace(matches[1])
}

// Selector asks the LLM for a strategy and interprets its response.
type Selector struct {
	client llm.Client
}

// NewSelector returns a selector backed by the given client.
func NewSelector(client llm.Client) *Selector {
	return &Selector{client: client}
}

// Select chooses the resolution path for a question. Failures and
// responses without extractable code degrade to Direct.
func (s *Selector) Select(ctx context.Context, question string, files *material.Set) Decision {
	response, err := s.client.Complete(ctx, prompt.Strategy(question, files))
	if err != nil {
		logging.ChainWarn("strategy selection failed, defaulting to direct: %v", err)
		return Decision{Kind: Direct}
	}

	if needsCodeExecution(response, question) {
		if code := ExtractCode(response); code != "" {
			logging.Chain("strategy: code execution (%d chars of code)", len(code))
			return Decision{Kind: CodeExecution, Code: code}
		}
		logging.ChainDebug("strategy: code suggested but no code block found, using direct")
	}

	logging.Chain("strategy: direct answer")
	return Decision{Kind: Direct}
}

func needsCodeExecution(response, question string) bool {
	if strings.Contains(strings.ToUpper(response), "STRATEGY: CODE_EXECUTION") {
		return true
	}
	if strings.Contains(response, "```python") || strings.Contains(response, "```Python") {
		return true
	}

	questionLower := strings.ToLower(question)
	for _, keyword := range executionKeywords {
		if strings.Contains(questionLower, keyword) {
			// Question suggests a complex task and the LLM provided code
			return strings.Contains(response, "```")
		}
	}
	return false
}
