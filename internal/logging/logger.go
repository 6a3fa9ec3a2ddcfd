// Package logging provides config-driven categorized file-based logging.
// Logs are written to .quizsolver/logs/ with separate files per category.
// Logging is controlled by debug_mode - when false, no logs are written.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup and configuration
	CategoryServer   Category = "server"   // Inbound HTTP service
	CategoryChain    Category = "chain"    // Chain orchestration, retry policy
	CategoryFetch    Category = "fetch"    // Page rendering, file downloads
	CategoryMaterial Category = "material" // File decoding and normalization
	CategoryLLM      Category = "llm"      // LLM API calls
	CategorySandbox  Category = "sandbox"  // Generated-code execution
	CategorySubmit   Category = "submit"   // Answer submissions
	CategoryStore    Category = "store"    // Run-history persistence
)

// Settings mirrors the relevant parts of config.LoggingConfig to avoid a
// circular import.
type Settings struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

// StructuredLogEntry is the JSON log line format.
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"` // Unix milliseconds
	Category  string                 `json:"cat"`
	Level     string                 `json:"lvl"`
	Message   string                 `json:"msg"`
	RequestID string                 `json:"req,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers    = make(map[Category]*Logger)
	loggersMu  sync.RWMutex
	logsDir    string
	settings   Settings
	settingsMu sync.RWMutex
	logLevel   int // 0=debug, 1=info, 2=warn, 3=error
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory from settings.
// Should be called once at startup with the workspace path.
func Initialize(ws string, s Settings) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}

	applySettings(s)
	logsDir = filepath.Join(ws, ".quizsolver", "logs")

	if !s.DebugMode {
		return nil // Silent no-op in production mode
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== quizsolver logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", s.Level)
	return nil
}

// Reconfigure applies new settings at runtime (config hot-reload).
func Reconfigure(s Settings) {
	applySettings(s)
}

func applySettings(s Settings) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	settings = s
	switch s.Level {
	case "debug":
		logLevel = LevelDebug
	case "info", "":
		logLevel = LevelInfo
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settings.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	settingsMu.RLock()
	defer settingsMu.RUnlock()

	if !settings.DebugMode {
		return false
	}
	if settings.Categories == nil {
		return true // All enabled by default in debug mode
	}
	enabled, exists := settings.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}
	if logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix for easy rotation
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func jsonFormat() bool {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settings.JSONFormat
}

func (l *Logger) logJSON(level, msg string) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}
	l.logger.Printf("%s", data)
}

// Debug logs a debug message (only if level <= debug).
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if jsonFormat() {
		l.logJSON("debug", msg)
	} else {
		l.logger.Printf("[DEBUG] %s", msg)
	}
}

// Info logs an informational message (only if level <= info).
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if jsonFormat() {
		l.logJSON("info", msg)
	} else {
		l.logger.Printf("[INFO] %s", msg)
	}
}

// Warn logs a warning message (only if level <= warn).
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if jsonFormat() {
		l.logJSON("warn", msg)
	} else {
		l.logger.Printf("[WARN] %s", msg)
	}
}

// Error logs an error message (always logged if logger exists).
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if jsonFormat() {
		l.logJSON("error", msg)
	} else {
		l.logger.Printf("[ERROR] %s", msg)
	}
}

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootWarn logs warning to the boot category
func BootWarn(format string, args ...interface{}) {
	Get(CategoryBoot).Warn(format, args...)
}

// BootError logs error to the boot category
func BootError(format string, args ...interface{}) {
	Get(CategoryBoot).Error(format, args...)
}

// Server logs to the server category
func Server(format string, args ...interface{}) {
	Get(CategoryServer).Info(format, args...)
}

// ServerDebug logs debug to the server category
func ServerDebug(format string, args ...interface{}) {
	Get(CategoryServer).Debug(format, args...)
}

// ServerWarn logs warning to the server category
func ServerWarn(format string, args ...interface{}) {
	Get(CategoryServer).Warn(format, args...)
}

// ServerError logs error to the server category
func ServerError(format string, args ...interface{}) {
	Get(CategoryServer).Error(format, args...)
}

// Chain logs to the chain category
func Chain(format string, args ...interface{}) {
	Get(CategoryChain).Info(format, args...)
}

// ChainDebug logs debug to the chain category
func ChainDebug(format string, args ...interface{}) {
	Get(CategoryChain).Debug(format, args...)
}

// ChainWarn logs warning to the chain category
func ChainWarn(format string, args ...interface{}) {
	Get(CategoryChain).Warn(format, args...)
}

// ChainError logs error to the chain category
func ChainError(format string, args ...interface{}) {
	Get(CategoryChain).Error(format, args...)
}

// Fetch logs to the fetch category
func Fetch(format string, args ...interface{}) {
	Get(CategoryFetch).Info(format, args...)
}

// FetchDebug logs debug to the fetch category
func FetchDebug(format string, args ...interface{}) {
	Get(CategoryFetch).Debug(format, args...)
}

// FetchWarn logs warning to the fetch category
func FetchWarn(format string, args ...interface{}) {
	Get(CategoryFetch).Warn(format, args...)
}

// FetchError logs error to the fetch category
func FetchError(format string, args ...interface{}) {
	Get(CategoryFetch).Error(format, args...)
}

// Material logs to the material category
func Material(format string, args ...interface{}) {
	Get(CategoryMaterial).Info(format, args...)
}

// MaterialDebug logs debug to the material category
func MaterialDebug(format string, args ...interface{}) {
	Get(CategoryMaterial).Debug(format, args...)
}

// MaterialWarn logs warning to the material category
func MaterialWarn(format string, args ...interface{}) {
	Get(CategoryMaterial).Warn(format, args...)
}

// LLM logs to the llm category
func LLM(format string, args ...interface{}) {
	Get(CategoryLLM).Info(format, args...)
}

// LLMDebug logs debug to the llm category
func LLMDebug(format string, args ...interface{}) {
	Get(CategoryLLM).Debug(format, args...)
}

// LLMError logs error to the llm category
func LLMError(format string, args ...interface{}) {
	Get(CategoryLLM).Error(format, args...)
}

// Sandbox logs to the sandbox category
func Sandbox(format string, args ...interface{}) {
	Get(CategorySandbox).Info(format, args...)
}

// SandboxDebug logs debug to the sandbox category
func SandboxDebug(format string, args ...interface{}) {
	Get(CategorySandbox).Debug(format, args...)
}

// SandboxWarn logs warning to the sandbox category
func SandboxWarn(format string, args ...interface{}) {
	Get(CategorySandbox).Warn(format, args...)
}

// SandboxError logs error to the sandbox category
func SandboxError(format string, args ...interface{}) {
	Get(CategorySandbox).Error(format, args...)
}

// Submit logs to the submit category
func Submit(format string, args ...interface{}) {
	Get(CategorySubmit).Info(format, args...)
}

// SubmitDebug logs debug to the submit category
func SubmitDebug(format string, args ...interface{}) {
	Get(CategorySubmit).Debug(format, args...)
}

// SubmitError logs error to the submit category
func SubmitError(format string, args ...interface{}) {
	Get(CategorySubmit).Error(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreError logs error to the store category
func StoreError(format string, args ...interface{}) {
	Get(CategoryStore).Error(format, args...)
}

// =============================================================================
// REQUEST ID TRACING - Chain-run correlation
// =============================================================================

// RequestLogger provides run-scoped logging with a correlation ID.
type RequestLogger struct {
	logger    *Logger
	requestID string
	fields    map[string]interface{}
}

// WithRequestID creates a run-scoped logger for correlating chain runs.
func WithRequestID(category Category, requestID string) *RequestLogger {
	return &RequestLogger{
		logger:    Get(category),
		requestID: requestID,
		fields:    make(map[string]interface{}),
	}
}

// WithField adds a field to the request logger.
func (r *RequestLogger) WithField(key string, value interface{}) *RequestLogger {
	r.fields[key] = value
	return r
}

func (r *RequestLogger) formatMsg(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	if len(r.fields) > 0 {
		return fmt.Sprintf("[run:%s] %s | %v", r.requestID, msg, r.fields)
	}
	return fmt.Sprintf("[run:%s] %s", r.requestID, msg)
}

func (r *RequestLogger) Debug(format string, args ...interface{}) {
	if r.logger.logger == nil || logLevel > LevelDebug {
		return
	}
	r.logger.logger.Printf("[DEBUG] %s", r.formatMsg(format, args...))
}

func (r *RequestLogger) Info(format string, args ...interface{}) {
	if r.logger.logger == nil || logLevel > LevelInfo {
		return
	}
	r.logger.logger.Printf("[INFO] %s", r.formatMsg(format, args...))
}

func (r *RequestLogger) Warn(format string, args ...interface{}) {
	if r.logger.logger == nil || logLevel > LevelWarn {
		return
	}
	r.logger.logger.Printf("[WARN] %s", r.formatMsg(format, args...))
}

func (r *RequestLogger) Error(format string, args ...interface{}) {
	if r.logger.logger == nil {
		return
	}
	r.logger.logger.Printf("[ERROR] %s", r.formatMsg(format, args...))
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level.
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
