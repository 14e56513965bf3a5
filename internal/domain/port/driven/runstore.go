package driven

import (
	"context"
	"errors"

	"github.com/ghostfounder/ghostreview/internal/domain/model"
)

// ErrRunNotFound indicates the requested analysis run does not exist.
var ErrRunNotFound = errors.New("analysis run not found")

// RunStore defines the driven port for analysis run persistence.
//
// A run's issue set is written exactly once, together with the terminal state,
// in Complete. Nothing is persisted for individual files before that single
// batch write; a mid-analysis failure discards all in-memory issues.
// Terminal writes return model.ErrRunFinished when the stored run is already
// completed or failed.
type RunStore interface {
	// Create persists a run in the running state before any external work
	// begins, so a crash mid-analysis leaves a durable, queryable record.
	Create(ctx context.Context, run model.AnalysisRun) error

	// Complete atomically writes the run's terminal state (counts, summary,
	// author, completion time) and its full issue set.
	Complete(ctx context.Context, run model.AnalysisRun, issues []model.CodeIssue) error

	// Fail writes the failed terminal state with the captured error message.
	Fail(ctx context.Context, run model.AnalysisRun) error

	// SetEmailStatus records the email delivery outcome on a completed run.
	SetEmailStatus(ctx context.Context, runID string, status model.EmailStatus) error

	// GetByID returns the run and its issue set. Issues are ordered by
	// severity (most severe first), then file path and line.
	GetByID(ctx context.Context, id string) (*model.AnalysisRun, []model.CodeIssue, error)

	// ListByProject returns the project's runs, most recent first.
	ListByProject(ctx context.Context, projectID string) ([]model.AnalysisRun, error)
}
