package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ghostfounder/ghostreview/internal/domain/model"
	"github.com/ghostfounder/ghostreview/internal/domain/port/driven"
)

// Validation errors mapped to 400 responses by the HTTP adapter.
var (
	ErrInvalidSeverity = errors.New("invalid minimum severity")
	ErrInvalidStatus   = errors.New("invalid project status")
)

// ConnectParams carries the input for connecting a repository as a new
// project. Prefs defaults apply when nil.
type ConnectParams struct {
	UserID     string
	OwnerEmail string
	RepoOwner  string
	RepoName   string

	CustomRules []string
	Prefs       *model.NotificationPrefs
}

// ProjectService manages the project lifecycle: connecting a repository
// (including webhook installation), settings and status changes, and
// disconnection. Webhook teardown is best-effort; a teardown failure never
// blocks the state change that requested it.
type ProjectService struct {
	projects   driven.ProjectStore
	host       driven.RepoHost
	webhookURL string
}

// NewProjectService creates a ProjectService. webhookURL is the public
// callback URL shared by all installed hooks.
func NewProjectService(projects driven.ProjectStore, host driven.RepoHost, webhookURL string) *ProjectService {
	return &ProjectService{
		projects:   projects,
		host:       host,
		webhookURL: webhookURL,
	}
}

// Connect registers a repository as a new active project and installs its
// webhook with a freshly generated per-project secret. If hook installation
// fails the project record is rolled back and the error returned.
func (s *ProjectService) Connect(ctx context.Context, params ConnectParams) (*model.Project, error) {
	if params.RepoOwner == "" || params.RepoName == "" {
		return nil, errors.New("repository owner and name are required")
	}
	if params.OwnerEmail == "" {
		return nil, errors.New("owner email is required")
	}

	prefs := model.DefaultNotificationPrefs()
	if params.Prefs != nil {
		if !params.Prefs.MinSeverity.IsValid() {
			return nil, ErrInvalidSeverity
		}
		prefs = *params.Prefs
	}

	repoID, err := s.host.LookupRepoID(ctx, params.RepoOwner+"/"+params.RepoName)
	if err != nil {
		return nil, fmt.Errorf("resolving repository: %w", err)
	}

	secret, err := newWebhookSecret()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	project := model.Project{
		ID:            newID(),
		UserID:        params.UserID,
		OwnerEmail:    params.OwnerEmail,
		RepoOwner:     params.RepoOwner,
		RepoName:      params.RepoName,
		GitHubRepoID:  repoID,
		WebhookSecret: secret,
		Status:        model.ProjectActive,
		CustomRules:   params.CustomRules,
		Prefs:         prefs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	hookID, err := s.host.CreateWebhook(ctx, project.RepoFullName(), s.webhookURL, secret)
	if err != nil {
		if delErr := s.projects.Delete(ctx, project.ID); delErr != nil {
			slog.Error("rollback project create", "project", project.ID, "error", delErr)
		}
		return nil, fmt.Errorf("install webhook on %s: %w", project.RepoFullName(), err)
	}

	if err := s.projects.SetWebhook(ctx, project.ID, hookID, secret); err != nil {
		return nil, fmt.Errorf("record webhook: %w", err)
	}
	project.WebhookID = hookID

	slog.Info("project connected",
		"project", project.ID,
		"repo", project.RepoFullName(),
		"hook", hookID,
	)

	return &project, nil
}

// UpdateSettings replaces the project's custom rules and notification
// preferences.
func (s *ProjectService) UpdateSettings(ctx context.Context, id string, rules []string, prefs model.NotificationPrefs) error {
	if !prefs.MinSeverity.IsValid() {
		return ErrInvalidSeverity
	}
	return s.projects.UpdateSettings(ctx, id, rules, prefs)
}

// SetStatus changes the project's lifecycle status. Moving to stopped tears
// down the webhook best-effort; moving a stopped project back to active or
// paused reinstalls it.
func (s *ProjectService) SetStatus(ctx context.Context, id string, status model.ProjectStatus) (*model.Project, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.Status == status {
		return project, nil
	}

	switch {
	case status == model.ProjectStopped:
		s.teardownWebhook(ctx, project)
	case project.Status == model.ProjectStopped && project.WebhookID == 0:
		secret, err := newWebhookSecret()
		if err != nil {
			return nil, err
		}
		hookID, err := s.host.CreateWebhook(ctx, project.RepoFullName(), s.webhookURL, secret)
		if err != nil {
			return nil, fmt.Errorf("reinstall webhook on %s: %w", project.RepoFullName(), err)
		}
		if err := s.projects.SetWebhook(ctx, project.ID, hookID, secret); err != nil {
			return nil, fmt.Errorf("record webhook: %w", err)
		}
		project.WebhookID = hookID
		project.WebhookSecret = secret
	}

	if err := s.projects.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	project.Status = status

	return project, nil
}

// Delete disconnects the project: webhook teardown best-effort, then the
// project row and all run history (cascade).
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return err
	}

	s.teardownWebhook(ctx, project)

	return s.projects.Delete(ctx, id)
}

// teardownWebhook removes the project's hook from GitHub and clears the local
// record. Failures are logged and discarded so teardown never blocks the
// lifecycle change that requested it.
func (s *ProjectService) teardownWebhook(ctx context.Context, project *model.Project) {
	if project.WebhookID == 0 {
		return
	}

	if err := s.host.DeleteWebhook(ctx, project.RepoFullName(), project.WebhookID); err != nil {
		slog.Warn("webhook teardown failed",
			"project", project.ID,
			"repo", project.RepoFullName(),
			"hook", project.WebhookID,
			"error", err,
		)
		return
	}

	if err := s.projects.SetWebhook(ctx, project.ID, 0, ""); err != nil {
		slog.Error("clear webhook record", "project", project.ID, "error", err)
		return
	}
	project.WebhookID = 0
	project.WebhookSecret = ""
}

// newWebhookSecret generates a 32-byte random hex secret for HMAC signing.
func newWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating webhook secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
