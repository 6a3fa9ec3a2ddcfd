package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"quizsolver/internal/answer"
	"quizsolver/internal/logging"
)

// SubmissionResponse is the grader's verdict for one submitted answer.
type SubmissionResponse struct {
	Correct bool   `json:"correct"`
	Reason  string `json:"reason,omitempty"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

// submissionPayload is the body posted to the grader.
type submissionPayload struct {
	Email  string       `json:"email"`
	Secret string       `json:"secret"`
	URL    string       `json:"url"`
	Answer answer.Value `json:"answer"`
}

// Submitter delivers an answer and reports the verdict.
type Submitter interface {
	Submit(ctx context.Context, submitURL, quizURL string, ans answer.Value) (*SubmissionResponse, error)
}

// HTTPSubmitter posts answers to the grader endpoint.
type HTTPSubmitter struct {
	email      string
	secret     string
	httpClient *http.Client
}

// NewHTTPSubmitter returns a submitter carrying the operator identity.
func NewHTTPSubmitter(email, secret string, httpClient *http.Client) *HTTPSubmitter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSubmitter{email: email, secret: secret, httpClient: httpClient}
}

// Submit posts the answer. A non-200 status is a negative verdict with
// the status and body as the reason, not an error: only transport
// failures return an error.
func (s *HTTPSubmitter) Submit(ctx context.Context, submitURL, quizURL string, ans answer.Value) (*SubmissionResponse, error) {
	body, err := json.Marshal(submissionPayload{
		Email:  s.email,
		Secret: s.secret,
		URL:    quizURL,
		Answer: ans,
	})
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", submitURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logging.Submit("posting answer for %s to %s (%d bytes)", quizURL, submitURL, len(body))
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit to %s: %w", submitURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read submission response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.SubmitError("grader returned HTTP %d: %s", resp.StatusCode, respBody)
		return &SubmissionResponse{
			Correct: false,
			Reason:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, respBody),
		}, nil
	}

	var verdict SubmissionResponse
	if err := json.Unmarshal(respBody, &verdict); err != nil {
		return nil, fmt.Errorf("decode submission response: %w", err)
	}
	logging.Submit("verdict: correct=%v reason=%q next=%q", verdict.Correct, verdict.Reason, verdict.URL)
	return &verdict, nil
}
