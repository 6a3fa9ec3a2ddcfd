package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizsolver/internal/config"
)

func testServerConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Operator.Email = "op@example.com"
	cfg.Operator.Secret = "s3cret"
	return cfg
}

func postSolve(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSolveAccepted(t *testing.T) {
	var launchedURL string
	srv := New(testServerConfig(), func(url string) string {
		launchedURL = url
		return "run-1234"
	})

	rec := postSolve(t, srv.Handler(),
		`{"email":"op@example.com","secret":"s3cret","url":"http://quiz.test/q/1"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "accepted", body["status"])
	assert.Equal(t, "run-1234", body["run_id"])
	assert.Equal(t, "http://quiz.test/q/1", body["url"])
	assert.Equal(t, "http://quiz.test/q/1", launchedURL)
}

func TestSolveIgnoresUnknownFields(t *testing.T) {
	srv := New(testServerConfig(), func(url string) string { return "run-1" })

	rec := postSolve(t, srv.Handler(),
		`{"email":"op@example.com","secret":"s3cret","url":"http://quiz.test/q/1","client":"curl","retry":true}`)

	assert.Equal(t, http.StatusAccepted, rec.Code, "extra JSON keys must not reject an otherwise valid request")
}

func TestSolveInvalidSecretRejectedBeforeLaunch(t *testing.T) {
	launched := false
	srv := New(testServerConfig(), func(url string) string {
		launched = true
		return "x"
	})

	rec := postSolve(t, srv.Handler(),
		`{"email":"op@example.com","secret":"wrong","url":"http://quiz.test/q/1"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Invalid secret", decodeBody(t, rec)["detail"])
	assert.False(t, launched, "an unauthorized request must never start a run")
}

func TestSolveEmailMismatchRejected(t *testing.T) {
	launched := false
	srv := New(testServerConfig(), func(url string) string {
		launched = true
		return "x"
	})

	rec := postSolve(t, srv.Handler(),
		`{"email":"someone@else.com","secret":"s3cret","url":"http://quiz.test/q/1"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, launched)
}

func TestSolveEmailCaseInsensitive(t *testing.T) {
	srv := New(testServerConfig(), func(url string) string { return "r" })

	rec := postSolve(t, srv.Handler(),
		`{"email":"OP@Example.COM","secret":"s3cret","url":"http://quiz.test/q/1"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSolveMalformedJSON(t *testing.T) {
	srv := New(testServerConfig(), func(url string) string { return "x" })

	rec := postSolve(t, srv.Handler(), `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON payload", decodeBody(t, rec)["detail"])
}

func TestSolveMissingFields(t *testing.T) {
	srv := New(testServerConfig(), func(url string) string { return "x" })

	rec := postSolve(t, srv.Handler(), `{"email":"op@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSolveRelativeURLRejected(t *testing.T) {
	srv := New(testServerConfig(), func(url string) string { return "x" })

	rec := postSolve(t, srv.Handler(),
		`{"email":"op@example.com","secret":"s3cret","url":"/quiz/1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	srv := New(testServerConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "quizsolver", body["service"])
}

func TestRootInfo(t *testing.T) {
	srv := New(testServerConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quizsolver")
}

func TestUnknownPathIs404(t *testing.T) {
	srv := New(testServerConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
