package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)

	s.BeginRun("run-1", "http://quiz.test/q/1")
	s.RecordAttempt("run-1", "http://quiz.test/q/1", 1, 1, "direct", false, "wrong", 1200*time.Millisecond)
	s.RecordAttempt("run-1", "http://quiz.test/q/1", 1, 2, "code_execution", true, "", 4800*time.Millisecond)
	s.FinishRun("run-1", "completed", 1)

	runs, err := s.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 1, runs[0].Questions)

	attempts, err := s.RunAttempts("run-1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "direct", attempts[0].Strategy)
	assert.False(t, attempts[0].Correct)
	assert.Equal(t, "wrong", attempts[0].Reason)
	assert.Equal(t, int64(1200), attempts[0].ElapsedMs)
	assert.Equal(t, "code_execution", attempts[1].Strategy)
	assert.True(t, attempts[1].Correct)
}

func TestRecentRunsLimit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		s.BeginRun(string(rune('a'+i)), "http://quiz.test")
	}
	runs, err := s.RecentRuns(3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestUnknownRunHasNoAttempts(t *testing.T) {
	s := openTestStore(t)

	attempts, err := s.RunAttempts("missing")
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *RunStore

	s.BeginRun("x", "url")
	s.RecordAttempt("x", "url", 1, 1, "direct", true, "", time.Second)
	s.FinishRun("x", "completed", 1)
	require.NoError(t, s.Close())

	runs, err := s.RecentRuns(10)
	require.NoError(t, err)
	assert.Nil(t, runs)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	s.BeginRun("run-1", "http://quiz.test")
	runs, err := s.RecentRuns(1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
