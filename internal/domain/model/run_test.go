package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRun_StartsRunningWithZeroCounts(t *testing.T) {
	run := NewRun("run-1", "proj-1", "abc123", "main", "octocat", TriggerPush, 0)

	assert.Equal(t, RunRunning, run.Status)
	assert.Equal(t, 0, run.Counts.Total())
	assert.False(t, run.StartedAt.IsZero())
	assert.True(t, run.CompletedAt.IsZero())
	assert.False(t, run.IsTerminal())
}

func TestRun_Complete(t *testing.T) {
	run := NewRun("run-1", "proj-1", "abc123", "main", "octocat", TriggerPush, 0)

	counts := SeverityCounts{Critical: 1, Low: 1}
	err := run.Complete(counts, "2 issues found")
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, run.Status)
	assert.Equal(t, counts, run.Counts)
	assert.Equal(t, "2 issues found", run.Summary)
	assert.False(t, run.CompletedAt.IsZero())
	assert.True(t, run.IsTerminal())
}

func TestRun_Fail(t *testing.T) {
	run := NewRun("run-1", "proj-1", "abc123", "main", "octocat", TriggerPush, 0)

	err := run.Fail(errors.New("fetch file content: boom"))
	require.NoError(t, err)

	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, "fetch file content: boom", run.Error)
	assert.Equal(t, 0, run.Counts.Total())
	assert.True(t, run.IsTerminal())
}

func TestRun_TerminalStatesNotReentered(t *testing.T) {
	completed := NewRun("run-1", "proj-1", "abc", "main", "a", TriggerPush, 0)
	require.NoError(t, completed.Complete(SeverityCounts{}, ""))

	assert.ErrorIs(t, completed.Complete(SeverityCounts{}, ""), ErrRunFinished)
	assert.ErrorIs(t, completed.Fail(errors.New("late")), ErrRunFinished)
	assert.Equal(t, RunCompleted, completed.Status)

	failed := NewRun("run-2", "proj-1", "abc", "main", "a", TriggerPush, 0)
	require.NoError(t, failed.Fail(errors.New("boom")))

	assert.ErrorIs(t, failed.Complete(SeverityCounts{}, ""), ErrRunFinished)
	assert.ErrorIs(t, failed.Fail(errors.New("again")), ErrRunFinished)
	assert.Equal(t, RunFailed, failed.Status)
}

func TestRun_RecordEmailStatus(t *testing.T) {
	run := NewRun("run-1", "proj-1", "abc", "main", "a", TriggerPush, 0)

	// Not legal while running.
	assert.Error(t, run.RecordEmailStatus(EmailSent))

	require.NoError(t, run.Complete(SeverityCounts{}, ""))
	require.NoError(t, run.RecordEmailStatus(EmailFailed))

	assert.Equal(t, EmailFailed, run.EmailStatus)
	assert.Equal(t, RunCompleted, run.Status, "email status must not alter run status")

	failed := NewRun("run-2", "proj-1", "abc", "main", "a", TriggerPush, 0)
	require.NoError(t, failed.Fail(errors.New("boom")))
	assert.Error(t, failed.RecordEmailStatus(EmailSent))
}
