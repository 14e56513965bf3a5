package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrRunFinished indicates an attempt to transition a run that has already
// reached a terminal state. Terminal states are never re-entered.
var ErrRunFinished = errors.New("analysis run already finished")

// AnalysisRun is one execution of the pipeline for a single commit or PR head.
//
// Lifecycle: a run is created in RunRunning state before any external work
// begins, then transitions exactly once to RunCompleted (via Complete) or
// RunFailed (via Fail). A run in RunRunning state has all-zero counts by
// construction.
type AnalysisRun struct {
	ID        string
	ProjectID string
	CommitSHA string
	Branch    string
	Trigger   TriggerType
	Status    RunStatus

	// Terminal-state fields. Zero-valued while the run is running.
	Counts  SeverityCounts
	Summary string
	Error   string

	Author   string
	PRNumber int // Zero for push-triggered runs.

	// EmailStatus reflects the last email delivery attempt. Set only on
	// completed runs, strictly after the terminal transition.
	EmailStatus EmailStatus

	StartedAt   time.Time
	CompletedAt time.Time
}

// NewRun creates a run in the running state for the given trigger.
func NewRun(id, projectID, commitSHA, branch, author string, trigger TriggerType, prNumber int) *AnalysisRun {
	return &AnalysisRun{
		ID:        id,
		ProjectID: projectID,
		CommitSHA: commitSHA,
		Branch:    branch,
		Trigger:   trigger,
		Status:    RunRunning,
		Author:    author,
		PRNumber:  prNumber,
		StartedAt: time.Now().UTC(),
	}
}

// Complete transitions the run from running to completed with its aggregated
// results. Returns ErrRunFinished if the run is already terminal.
func (r *AnalysisRun) Complete(counts SeverityCounts, summary string) error {
	if r.Status != RunRunning {
		return fmt.Errorf("complete run %s in state %s: %w", r.ID, r.Status, ErrRunFinished)
	}

	r.Status = RunCompleted
	r.Counts = counts
	r.Summary = summary
	r.CompletedAt = time.Now().UTC()
	return nil
}

// Fail transitions the run from running to failed, capturing the error
// message. Returns ErrRunFinished if the run is already terminal.
func (r *AnalysisRun) Fail(cause error) error {
	if r.Status != RunRunning {
		return fmt.Errorf("fail run %s in state %s: %w", r.ID, r.Status, ErrRunFinished)
	}

	r.Status = RunFailed
	if cause != nil {
		r.Error = cause.Error()
	}
	r.CompletedAt = time.Now().UTC()
	return nil
}

// RecordEmailStatus records the outcome of the last email delivery attempt.
// Delivery happens strictly after the terminal transition, so this is legal
// only on a completed run; it never alters Status.
func (r *AnalysisRun) RecordEmailStatus(status EmailStatus) error {
	if r.Status != RunCompleted {
		return fmt.Errorf("record email status on run %s in state %s", r.ID, r.Status)
	}

	r.EmailStatus = status
	return nil
}

// IsTerminal reports whether the run has reached completed or failed.
func (r *AnalysisRun) IsTerminal() bool {
	return r.Status == RunCompleted || r.Status == RunFailed
}
