// Package store persists chain runs and per-question attempts to SQLite
// so a chain's path can be reconstructed after the fact.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"quizsolver/internal/logging"
)

// RunStore records chain runs and attempts. All write methods are
// best-effort and nil-safe: a nil store or a failed insert never
// interrupts solving.
type RunStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// RunSummary is one chain run for listings.
type RunSummary struct {
	RunID      string
	InitialURL string
	Status     string
	Questions  int
	StartedAt  time.Time
	FinishedAt time.Time
}

// AttemptRecord is one question attempt for listings.
type AttemptRecord struct {
	QuestionURL    string
	QuestionNumber int
	Attempt        int
	Strategy       string
	Correct        bool
	Reason         string
	ElapsedMs      int64
}

// Open initializes the SQLite database at the given path.
func Open(path string) (*RunStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &RunStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the required tables.
func (s *RunStore) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		initial_url TEXT NOT NULL,
		status TEXT DEFAULT 'running',
		questions INTEGER DEFAULT 0,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME
	);
	`

	attemptsTable := `
	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		question_url TEXT NOT NULL,
		question_number INTEGER NOT NULL,
		attempt INTEGER NOT NULL,
		strategy TEXT,
		correct INTEGER DEFAULT 0,
		reason TEXT,
		elapsed_ms INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id);
	`

	for _, ddl := range []string{runsTable, attemptsTable} {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// BeginRun records the start of a chain run.
func (s *RunStore) BeginRun(runID, initialURL string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO runs (run_id, initial_url, status) VALUES (?, ?, 'running')`,
		runID, initialURL)
	if err != nil {
		logging.StoreError("begin run %s: %v", runID, err)
	}
}

// FinishRun records the end of a chain run.
func (s *RunStore) FinishRun(runID, status string, questions int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, questions = ?, finished_at = CURRENT_TIMESTAMP WHERE run_id = ?`,
		status, questions, runID)
	if err != nil {
		logging.StoreError("finish run %s: %v", runID, err)
	}
}

// RecordAttempt records one question attempt.
func (s *RunStore) RecordAttempt(runID, questionURL string, questionNumber, attempt int, strategy string, correct bool, reason string, elapsed time.Duration) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO attempts (run_id, question_url, question_number, attempt, strategy, correct, reason, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, questionURL, questionNumber, attempt, strategy, boolToInt(correct), reason, elapsed.Milliseconds())
	if err != nil {
		logging.StoreError("record attempt for %s: %v", questionURL, err)
	}
}

// RecentRuns returns the most recent chain runs, newest first.
func (s *RunStore) RecentRuns(limit int) ([]RunSummary, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT run_id, initial_url, status, questions, started_at, COALESCE(finished_at, started_at)
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.InitialURL, &r.Status, &r.Questions, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunAttempts returns every attempt for a run in chronological order.
func (s *RunStore) RunAttempts(runID string) ([]AttemptRecord, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT question_url, question_number, attempt, COALESCE(strategy, ''), correct, COALESCE(reason, ''), elapsed_ms
		 FROM attempts WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []AttemptRecord
	for rows.Next() {
		var a AttemptRecord
		var correct int
		if err := rows.Scan(&a.QuestionURL, &a.QuestionNumber, &a.Attempt, &a.Strategy, &correct, &a.Reason, &a.ElapsedMs); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Correct = correct != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *RunStore) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
