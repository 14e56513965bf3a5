package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ghostfounder/ghostreview/internal/domain/model"
	"github.com/ghostfounder/ghostreview/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunStore = (*RunRepo)(nil)

// RunRepo is the SQLite implementation of the RunStore port interface.
//
// Terminal writes guard on status = 'running' so a run that already reached
// completed or failed is never re-entered, regardless of caller behavior.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo backed by the given DB.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Create persists a run in the running state.
func (r *RunRepo) Create(ctx context.Context, run model.AnalysisRun) error {
	const query = `
		INSERT INTO analysis_runs (
			id, project_id, commit_sha, branch, trigger_type, status,
			author, pr_number, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		run.ID, run.ProjectID, run.CommitSHA, run.Branch,
		string(run.Trigger), string(run.Status),
		run.Author, run.PRNumber, formatTime(startedAt),
	)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}

	return nil
}

// Complete writes the run's terminal state and its full issue set in a single
// transaction. Returns model.ErrRunFinished if the stored run is already
// terminal, driven.ErrRunNotFound if it does not exist.
func (r *RunRepo) Complete(ctx context.Context, run model.AnalysisRun, issues []model.CodeIssue) error {
	const updateQuery = `
		UPDATE analysis_runs SET
			status = ?, critical_count = ?, high_count = ?, medium_count = ?,
			low_count = ?, info_count = ?, summary = ?, author = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`
	const issueQuery = `
		INSERT INTO code_issues (
			id, run_id, file_path, line, end_line, severity, category,
			message, explanation, suggested_fix, code_snippet
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete run %s: %w", run.ID, err)
	}
	defer tx.Rollback()

	completedAt := run.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	result, err := tx.ExecContext(ctx, updateQuery,
		string(model.RunCompleted),
		run.Counts.Critical, run.Counts.High, run.Counts.Medium,
		run.Counts.Low, run.Counts.Info,
		run.Summary, run.Author, formatTime(completedAt),
		run.ID, string(model.RunRunning),
	)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", run.ID, err)
	}

	if err := r.requireRunning(ctx, tx, result, run.ID); err != nil {
		return err
	}

	for _, issue := range issues {
		_, err := tx.ExecContext(ctx, issueQuery,
			issue.ID, run.ID, issue.FilePath, issue.Line, issue.EndLine,
			string(issue.Severity), issue.Category, issue.Message,
			issue.Explanation, issue.SuggestedFix, issue.CodeSnippet,
		)
		if err != nil {
			return fmt.Errorf("insert issue %s for run %s: %w", issue.ID, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete run %s: %w", run.ID, err)
	}

	return nil
}

// Fail writes the failed terminal state with the captured error message.
// Returns model.ErrRunFinished if the stored run is already terminal.
func (r *RunRepo) Fail(ctx context.Context, run model.AnalysisRun) error {
	const query = `
		UPDATE analysis_runs SET status = ?, error = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`

	completedAt := run.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		string(model.RunFailed), run.Error, formatTime(completedAt),
		run.ID, string(model.RunRunning),
	)
	if err != nil {
		return fmt.Errorf("fail run %s: %w", run.ID, err)
	}

	return r.requireRunning(ctx, r.db.Writer, result, run.ID)
}

// SetEmailStatus records the email delivery outcome on a completed run.
func (r *RunRepo) SetEmailStatus(ctx context.Context, runID string, status model.EmailStatus) error {
	const query = `UPDATE analysis_runs SET email_status = ? WHERE id = ? AND status = ?`

	result, err := r.db.Writer.ExecContext(ctx, query,
		string(status), runID, string(model.RunCompleted),
	)
	if err != nil {
		return fmt.Errorf("set email status for run %s: %w", runID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s is not completed: %w", runID, driven.ErrRunNotFound)
	}

	return nil
}

const runColumns = `id, project_id, commit_sha, branch, trigger_type, status,
       critical_count, high_count, medium_count, low_count, info_count,
       summary, error, author, pr_number, email_status, started_at, completed_at`

// GetByID returns the run and its issue set, issues ordered by severity (most
// severe first), then file path and line.
func (r *RunRepo) GetByID(ctx context.Context, id string) (*model.AnalysisRun, []model.CodeIssue, error) {
	runQuery := `SELECT ` + runColumns + ` FROM analysis_runs WHERE id = ?`
	const issueQuery = `
		SELECT id, run_id, file_path, line, end_line, severity, category,
		       message, explanation, suggested_fix, code_snippet
		FROM code_issues
		WHERE run_id = ?
		ORDER BY CASE severity
			WHEN 'critical' THEN 0
			WHEN 'high'     THEN 1
			WHEN 'medium'   THEN 2
			WHEN 'low'      THEN 3
			ELSE 4
		END, file_path, line
	`

	run, err := scanRun(r.db.Reader.QueryRowContext(ctx, runQuery, id))
	if err == sql.ErrNoRows {
		return nil, nil, driven.ErrRunNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get run %s: %w", id, err)
	}

	rows, err := r.db.Reader.QueryContext(ctx, issueQuery, id)
	if err != nil {
		return nil, nil, fmt.Errorf("query issues for run %s: %w", id, err)
	}
	defer rows.Close()

	issues := []model.CodeIssue{}
	for rows.Next() {
		var issue model.CodeIssue
		var severity string
		err := rows.Scan(
			&issue.ID, &issue.RunID, &issue.FilePath, &issue.Line, &issue.EndLine,
			&severity, &issue.Category, &issue.Message, &issue.Explanation,
			&issue.SuggestedFix, &issue.CodeSnippet,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("scan issue: %w", err)
		}
		issue.Severity = model.Severity(severity)
		issues = append(issues, issue)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate issues: %w", err)
	}

	return run, issues, nil
}

// ListByProject returns the project's runs, most recent first.
func (r *RunRepo) ListByProject(ctx context.Context, projectID string) ([]model.AnalysisRun, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs WHERE project_id = ? ORDER BY started_at DESC, id DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list runs for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var runs []model.AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// requireRunning distinguishes "run missing" from "run already terminal" when
// a guarded terminal update touched zero rows.
func (r *RunRepo) requireRunning(ctx context.Context, q execer, result sql.Result, runID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var status string
	err = q.QueryRowContext(ctx, `SELECT status FROM analysis_runs WHERE id = ?`, runID).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("run %s: %w", runID, driven.ErrRunNotFound)
	}
	if err != nil {
		return fmt.Errorf("check run %s status: %w", runID, err)
	}

	return fmt.Errorf("run %s in state %s: %w", runID, status, model.ErrRunFinished)
}

func scanRun(s scanner) (*model.AnalysisRun, error) {
	var run model.AnalysisRun
	var trigger, status, emailStatus string
	var startedAt string
	var completedAt sql.NullString

	err := s.Scan(
		&run.ID, &run.ProjectID, &run.CommitSHA, &run.Branch, &trigger, &status,
		&run.Counts.Critical, &run.Counts.High, &run.Counts.Medium,
		&run.Counts.Low, &run.Counts.Info,
		&run.Summary, &run.Error, &run.Author, &run.PRNumber, &emailStatus,
		&startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Trigger = model.TriggerType(trigger)
	run.Status = model.RunStatus(status)
	run.EmailStatus = model.EmailStatus(emailStatus)

	run.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}

	if completedAt.Valid && completedAt.String != "" {
		run.CompletedAt, err = parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
	}

	return &run, nil
}
