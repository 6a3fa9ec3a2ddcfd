package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "quizsolver", cfg.Name)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
operator:
  email: op@example.com
  secret: s3cret
llm:
  provider: gemini
  api_key: key123
  model: gemini-2.0-flash
server:
  port: 9000
solver:
  max_retries: 3
  retry_backoff: 5s
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "op@example.com", cfg.Operator.Email)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Solver.Attempts())
	assert.Equal(t, 5*time.Second, cfg.Solver.Backoff())

	// Untouched sections keep defaults
	assert.Equal(t, "python3", cfg.Solver.Python())
	assert.True(t, cfg.Store.Enabled)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("operator:\n  email: file@example.com\n"), 0644))

	t.Setenv("QUIZSOLVER_EMAIL", "env@example.com")
	t.Setenv("QUIZSOLVER_PORT", "7777")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", cfg.Operator.Email)
	assert.Equal(t, 7777, cfg.Server.Port)
}

func TestSolverPolicyDefaults(t *testing.T) {
	var s SolverConfig // zero value falls back everywhere

	assert.Equal(t, 160*time.Second, s.QuestionBudget())
	assert.Equal(t, 60*time.Second, s.ExecutionDeadline())
	assert.Equal(t, 2*time.Second, s.Backoff())
	assert.Equal(t, 2, s.Attempts())
	assert.Equal(t, 2, s.CodeEscalationAttempt())
	assert.Equal(t, "python3", s.Python())
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate(), "missing operator identity must fail")

	cfg.Operator.Email = "op@example.com"
	cfg.Operator.Secret = "s3cret"
	cfg.LLM.APIKey = "key"
	assert.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "mystery"
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Operator.Email = "op@example.com"
	cfg.Solver.MaxRetries = 4
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "op@example.com", loaded.Operator.Email)
	assert.Equal(t, 4, loaded.Solver.MaxRetries)
}

func TestAddr(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8000}
	assert.Equal(t, "127.0.0.1:8000", c.Addr())
}
