// Package config loads and validates quizsolver configuration from
// config.yaml with QUIZSOLVER_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all quizsolver configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Operator identity used for submissions and personalization
	Operator OperatorConfig `yaml:"operator"`

	// LLM backend configuration
	LLM LLMConfig `yaml:"llm"`

	// Inbound HTTP service
	Server ServerConfig `yaml:"server"`

	// Headless browser settings
	Browser BrowserConfig `yaml:"browser"`

	// Per-question solving policy
	Solver SolverConfig `yaml:"solver"`

	// Run-history persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// OperatorConfig identifies the account the solver acts as.
type OperatorConfig struct {
	Email  string `yaml:"email"`
	Secret string `yaml:"secret"`
}

// LLMConfig configures the answer-synthesis backend.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// RequestTimeout returns the per-request LLM timeout.
func (c LLMConfig) RequestTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		return d
	}
	return 2 * time.Minute
}

// ServerConfig configures the inbound HTTP service.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BrowserConfig configures the headless Chrome renderer.
type BrowserConfig struct {
	Headless            bool   `yaml:"headless"`
	Bin                 string `yaml:"bin"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
	SettleMs            int    `yaml:"settle_ms"`
}

// NavigationTimeout returns the page navigation timeout.
func (c BrowserConfig) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// SettleDelay returns the post-load delay for JS-rendered content.
func (c BrowserConfig) SettleDelay() time.Duration {
	if c.SettleMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.SettleMs) * time.Millisecond
}

// SolverConfig configures the per-question retry and timeout policy.
type SolverConfig struct {
	// MaxRetries is the total attempt budget per question.
	MaxRetries int `yaml:"max_retries"`

	// ForceCodeAfter forces code generation from this attempt number on.
	ForceCodeAfter int `yaml:"force_code_after"`

	// QuestionTimeout is the advisory per-question wall-clock budget,
	// checked between attempts.
	QuestionTimeout string `yaml:"question_timeout"`

	// ExecutionTimeout is the hard kill deadline for generated code.
	ExecutionTimeout string `yaml:"execution_timeout"`

	// RetryBackoff is the delay between attempts on the same question.
	RetryBackoff string `yaml:"retry_backoff"`

	// SubmitURL overrides the in-page submit endpoint heuristic when set.
	SubmitURL string `yaml:"submit_url"`

	// PythonBinary runs generated analysis code.
	PythonBinary string `yaml:"python_binary"`

	// ManualFallback enables the interactive escape hatch in the CLI.
	ManualFallback bool `yaml:"manual_fallback"`
}

// QuestionBudget returns the advisory per-question time budget.
func (c SolverConfig) QuestionBudget() time.Duration {
	if d, err := time.ParseDuration(c.QuestionTimeout); err == nil && d > 0 {
		return d
	}
	return 160 * time.Second
}

// ExecutionDeadline returns the hard execution kill deadline.
func (c SolverConfig) ExecutionDeadline() time.Duration {
	if d, err := time.ParseDuration(c.ExecutionTimeout); err == nil && d > 0 {
		return d
	}
	return 60 * time.Second
}

// Backoff returns the between-attempt delay.
func (c SolverConfig) Backoff() time.Duration {
	if d, err := time.ParseDuration(c.RetryBackoff); err == nil && d >= 0 {
		return d
	}
	return 2 * time.Second
}

// Attempts returns the total attempt budget.
func (c SolverConfig) Attempts() int {
	if c.MaxRetries <= 0 {
		return 2
	}
	return c.MaxRetries
}

// CodeEscalationAttempt returns the attempt number from which code
// generation is forced.
func (c SolverConfig) CodeEscalationAttempt() int {
	if c.ForceCodeAfter <= 0 {
		return 2
	}
	return c.ForceCodeAfter
}

// Python returns the interpreter binary for generated code.
func (c SolverConfig) Python() string {
	if c.PythonBinary == "" {
		return "python3"
	}
	return c.PythonBinary
}

// StoreConfig configures the run-history database.
type StoreConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "quizsolver",
		Version: "1.0.0",
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "2m",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Browser: BrowserConfig{
			Headless:            true,
			NavigationTimeoutMs: 30000,
			SettleMs:            2000,
		},
		Solver: SolverConfig{
			MaxRetries:       2,
			ForceCodeAfter:   2,
			QuestionTimeout:  "160s",
			ExecutionTimeout: "60s",
			RetryBackoff:     "2s",
			PythonBinary:     "python3",
		},
		Store: StoreConfig{
			Enabled:      true,
			DatabasePath: ".quizsolver/history.db",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads configuration from the given path, falling back to defaults
// when the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides lets the environment override file settings.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("QUIZSOLVER_EMAIL"); v != "" {
		c.Operator.Email = v
	}
	if v := os.Getenv("QUIZSOLVER_SECRET"); v != "" {
		c.Operator.Secret = v
	}
	if v := os.Getenv("QUIZSOLVER_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("QUIZSOLVER_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("QUIZSOLVER_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("QUIZSOLVER_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("QUIZSOLVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
}

// Validate checks that the configuration is usable for serving.
func (c *Config) Validate() error {
	if c.Operator.Email == "" {
		return fmt.Errorf("operator.email is required")
	}
	if c.Operator.Secret == "" {
		return fmt.Errorf("operator.secret is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	switch c.LLM.Provider {
	case "openai", "gemini", "":
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}
	return nil
}

// Save writes the configuration to the given path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
