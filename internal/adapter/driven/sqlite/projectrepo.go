package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ghostfounder/ghostreview/internal/domain/model"
	"github.com/ghostfounder/ghostreview/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProjectStore = (*ProjectRepo)(nil)

// ProjectRepo is the SQLite implementation of the ProjectStore port interface.
type ProjectRepo struct {
	db *DB
}

// NewProjectRepo creates a new ProjectRepo backed by the given DB.
func NewProjectRepo(db *DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

const projectColumns = `id, user_id, owner_email, repo_owner, repo_name, github_repo_id,
       webhook_secret, webhook_id, status, custom_rules,
       email_on_push, email_on_pr, min_severity, extra_recipients,
       created_at, updated_at`

// Create inserts a new project. Custom rules and extra recipients are
// serialized as JSON arrays in TEXT columns.
func (r *ProjectRepo) Create(ctx context.Context, p model.Project) error {
	const query = `
		INSERT INTO projects (
			id, user_id, owner_email, repo_owner, repo_name, github_repo_id,
			webhook_secret, webhook_id, status, custom_rules,
			email_on_push, email_on_pr, min_severity, extra_recipients,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	rulesJSON, recipientsJSON, err := marshalProjectLists(p)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = r.db.Writer.ExecContext(ctx, query,
		p.ID, p.UserID, p.OwnerEmail, p.RepoOwner, p.RepoName, p.GitHubRepoID,
		p.WebhookSecret, p.WebhookID, string(p.Status), rulesJSON,
		boolToInt(p.Prefs.EmailOnPush), boolToInt(p.Prefs.EmailOnPR),
		string(p.Prefs.MinSeverity), recipientsJSON,
		formatTime(createdAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("create project %s: %w", p.RepoFullName(), err)
	}

	return nil
}

// GetByID retrieves a project by its id. Returns driven.ErrProjectNotFound if
// no project matches.
func (r *ProjectRepo) GetByID(ctx context.Context, id string) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`

	p, err := scanProject(r.db.Reader.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, driven.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}

	return p, nil
}

// GetByRepoID resolves a project by GitHub's numeric repository id. Returns
// driven.ErrProjectNotFound if no project is connected to that repository.
func (r *ProjectRepo) GetByRepoID(ctx context.Context, githubRepoID int64) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE github_repo_id = ?`

	p, err := scanProject(r.db.Reader.QueryRowContext(ctx, query, githubRepoID))
	if err == sql.ErrNoRows {
		return nil, driven.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project by repo id %d: %w", githubRepoID, err)
	}

	return p, nil
}

// ListByUser returns all projects owned by the given user, ordered by
// repository name.
func (r *ProjectRepo) ListByUser(ctx context.Context, userID string) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE user_id = ? ORDER BY repo_owner, repo_name`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects for user %s: %w", userID, err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	return projects, nil
}

// UpdateSettings replaces the project's custom rules and notification
// preferences.
func (r *ProjectRepo) UpdateSettings(ctx context.Context, id string, rules []string, prefs model.NotificationPrefs) error {
	const query = `
		UPDATE projects SET
			custom_rules = ?, email_on_push = ?, email_on_pr = ?,
			min_severity = ?, extra_recipients = ?, updated_at = ?
		WHERE id = ?
	`

	rulesJSON, recipientsJSON, err := marshalProjectLists(model.Project{CustomRules: rules, Prefs: prefs})
	if err != nil {
		return err
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		rulesJSON, boolToInt(prefs.EmailOnPush), boolToInt(prefs.EmailOnPR),
		string(prefs.MinSeverity), recipientsJSON, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update settings for project %s: %w", id, err)
	}

	return requireRow(result, id)
}

// UpdateStatus sets the project's monitoring status.
func (r *ProjectRepo) UpdateStatus(ctx context.Context, id string, status model.ProjectStatus) error {
	const query = `UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update status for project %s: %w", id, err)
	}

	return requireRow(result, id)
}

// SetWebhook records the GitHub hook id and HMAC secret after installation.
func (r *ProjectRepo) SetWebhook(ctx context.Context, id string, webhookID int64, secret string) error {
	const query = `UPDATE projects SET webhook_id = ?, webhook_secret = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, webhookID, secret, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set webhook for project %s: %w", id, err)
	}

	return requireRow(result, id)
}

// Delete removes a project. Runs and issues cascade via foreign keys.
func (r *ProjectRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM projects WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}

	return requireRow(result, id)
}

// requireRow converts a zero-rows-affected result into ErrProjectNotFound.
func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("project %s: %w", id, driven.ErrProjectNotFound)
	}
	return nil
}

func marshalProjectLists(p model.Project) (rulesJSON, recipientsJSON string, err error) {
	rules := p.CustomRules
	if rules == nil {
		rules = []string{}
	}
	rb, err := json.Marshal(rules)
	if err != nil {
		return "", "", fmt.Errorf("marshal custom rules: %w", err)
	}

	recipients := p.Prefs.ExtraRecipients
	if recipients == nil {
		recipients = []string{}
	}
	eb, err := json.Marshal(recipients)
	if err != nil {
		return "", "", fmt.Errorf("marshal extra recipients: %w", err)
	}

	return string(rb), string(eb), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*model.Project, error) {
	var p model.Project
	var status, minSeverity string
	var emailOnPush, emailOnPR int
	var rulesJSON, recipientsJSON string
	var createdAt, updatedAt string

	err := s.Scan(
		&p.ID, &p.UserID, &p.OwnerEmail, &p.RepoOwner, &p.RepoName, &p.GitHubRepoID,
		&p.WebhookSecret, &p.WebhookID, &status, &rulesJSON,
		&emailOnPush, &emailOnPR, &minSeverity, &recipientsJSON,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = model.ProjectStatus(status)
	p.Prefs.EmailOnPush = emailOnPush != 0
	p.Prefs.EmailOnPR = emailOnPR != 0
	p.Prefs.MinSeverity = model.Severity(minSeverity)

	if err := json.Unmarshal([]byte(rulesJSON), &p.CustomRules); err != nil {
		return nil, fmt.Errorf("unmarshal custom rules: %w", err)
	}
	if err := json.Unmarshal([]byte(recipientsJSON), &p.Prefs.ExtraRecipients); err != nil {
		return nil, fmt.Errorf("unmarshal extra recipients: %w", err)
	}

	p.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	p.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &p, nil
}

// formatTime produces the canonical text stored in datetime columns. Times
// are bound as strings so the stored value never depends on the driver's
// time.Time conversion.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
