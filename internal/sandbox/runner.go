// Package sandbox executes generated Python analysis code in scratch
// directories, with materialized input files, a hard kill deadline, and
// a marker-block protocol for extracting results.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"quizsolver/internal/answer"
	"quizsolver/internal/logging"
	"quizsolver/internal/material"
)

// maxOutputBytes caps captured stdout/stderr per execution.
const maxOutputBytes = 4 << 20

// Result is the outcome of one code execution.
type Result struct {
	Succeeded    bool
	Value        answer.Value
	ErrorMessage string
}

// Runner owns a root scratch directory; each execution gets a private
// subdirectory that is deleted when the execution finishes.
type Runner struct {
	root    string
	python  string
	timeout time.Duration
}

// NewRunner creates a runner. python is the interpreter binary, timeout
// the hard kill deadline per execution.
func NewRunner(python string, timeout time.Duration) (*Runner, error) {
	root, err := os.MkdirTemp("", "quiz_exec_")
	if err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	if python == "" {
		python = "python3"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	logging.SandboxDebug("runner scratch root: %s", root)
	return &Runner{root: root, python: python, timeout: timeout}, nil
}

// Run executes code in a fresh scratch directory with files materialized
// under their prompt-visible names. The scratch directory is removed
// when the execution finishes, regardless of outcome.
func (r *Runner) Run(ctx context.Context, code string, files *material.Set) Result {
	timer := logging.StartTimer(logging.CategorySandbox, "code execution")
	defer timer.Stop()

	execDir, err := os.MkdirTemp(r.root, "run_")
	if err != nil {
		return Result{ErrorMessage: fmt.Sprintf("create scratch dir: %v", err)}
	}
	defer func() {
		if err := os.RemoveAll(execDir); err != nil {
			logging.SandboxWarn("scratch cleanup failed for %s: %v", execDir, err)
		}
	}()

	materialize(execDir, files)

	scriptPath := filepath.Join(execDir, "quiz_solution.py")
	if err := os.WriteFile(scriptPath, []byte(wrapCode(code, execDir)), 0644); err != nil {
		return Result{ErrorMessage: fmt.Sprintf("write script: %v", err)}
	}

	stdout, errMsg := r.runScript(ctx, scriptPath, execDir)
	if errMsg != "" {
		return Result{ErrorMessage: errMsg}
	}

	value, ok := parseOutput(stdout, execDir)
	if !ok {
		logging.SandboxWarn("no result marker block in output (%d bytes)", len(stdout))
		return Result{ErrorMessage: "could not extract result from execution"}
	}

	logging.Sandbox("execution succeeded, result: %s", value.String())
	return Result{Succeeded: true, Value: value}
}

// runScript launches the interpreter and returns captured stdout, or a
// non-empty error message on failure.
func (r *Runner) runScript(ctx context.Context, scriptPath, execDir string) (string, string) {
	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, r.python, scriptPath)
	cmd.Dir = execDir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, max: maxOutputBytes}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, max: maxOutputBytes}

	logging.SandboxDebug("running %s %s (timeout %s)", r.python, scriptPath, r.timeout)
	err := cmd.Run()

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			logging.SandboxWarn("execution killed after %s", r.timeout)
			return "", "Code execution timeout"
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderrText := truncateHead(stderrBuf.String(), 4000)
			logging.SandboxWarn("script exited %d: %s", exitErr.ExitCode(), stderrText)
			return "", fmt.Sprintf("Execution failed: %s", stderrText)
		}
		logging.SandboxError("script launch failed: %v", err)
		return "", err.Error()
	}

	return stdoutBuf.String(), ""
}

// Close removes the scratch root.
func (r *Runner) Close() {
	if err := os.RemoveAll(r.root); err != nil {
		logging.SandboxWarn("scratch root cleanup failed: %v", err)
	}
}

func truncateHead(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// limitedWriter caps total bytes written, discarding the rest.
type limitedWriter struct {
	w       io.Writer
	max     int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		return n, nil
	}
	remaining := lw.max - lw.written
	if int64(n) > remaining {
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
