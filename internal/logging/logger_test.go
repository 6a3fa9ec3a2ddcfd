package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogging(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		CloseAll()
		applySettings(Settings{})
		logsDir = ""
	})
}

func TestDisabledModeIsNoOp(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Settings{DebugMode: false}))

	Chain("this should go nowhere")
	ChainError("neither should this")

	_, err := os.Stat(filepath.Join(ws, ".quizsolver", "logs"))
	assert.True(t, os.IsNotExist(err), "no logs directory in production mode")
}

func TestDebugModeWritesCategoryFile(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Settings{DebugMode: true, Level: "debug"}))

	Chain("chain message %d", 42)
	CloseAll()

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(ws, ".quizsolver", "logs", date+"_chain.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "chain message 42")
	assert.Contains(t, string(data), "[INFO]")
}

func TestCategoryFilter(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Settings{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{"fetch": false},
	}))

	Fetch("filtered out")
	Chain("kept")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	_, err := os.Stat(filepath.Join(ws, ".quizsolver", "logs", date+"_fetch.log"))
	assert.True(t, os.IsNotExist(err), "disabled categories never open files")

	data, err := os.ReadFile(filepath.Join(ws, ".quizsolver", "logs", date+"_chain.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "kept")
}

func TestLevelFiltering(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Settings{DebugMode: true, Level: "warn"}))

	l := Get(CategorySandbox)
	l.Debug("debug hidden")
	l.Info("info hidden")
	l.Warn("warn shown")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(ws, ".quizsolver", "logs", date+"_sandbox.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "warn shown")
}

func TestRequestLoggerPrefix(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Settings{DebugMode: true, Level: "debug"}))

	rlog := WithRequestID(CategoryChain, "abc12345")
	rlog.Info("question %d solved", 3)
	CloseAll()

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(ws, ".quizsolver", "logs", date+"_chain.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[run:abc12345]")
	assert.Contains(t, string(data), "question 3 solved")
}

func TestReconfigureTightensLevel(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Settings{DebugMode: true, Level: "debug"}))
	Reconfigure(Settings{DebugMode: true, Level: "error"})

	l := Get(CategoryStore)
	l.Info("hidden after reload")
	l.Error("still visible")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(ws, ".quizsolver", "logs", date+"_store.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden after reload")
	assert.Contains(t, string(data), "still visible")
}
