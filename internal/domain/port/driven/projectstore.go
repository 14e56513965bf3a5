// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/ghostfounder/ghostreview/internal/domain/model"
)

// ErrProjectNotFound indicates the requested project does not exist.
var ErrProjectNotFound = errors.New("project not found")

// ProjectStore defines the driven port for project persistence.
// Lookup methods return ErrProjectNotFound when no project matches.
type ProjectStore interface {
	Create(ctx context.Context, project model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	// GetByRepoID resolves the destination project of an incoming webhook
	// delivery by GitHub's numeric repository id.
	GetByRepoID(ctx context.Context, githubRepoID int64) (*model.Project, error)
	ListByUser(ctx context.Context, userID string) ([]model.Project, error)
	// UpdateSettings replaces the project's custom rules and notification
	// preferences.
	UpdateSettings(ctx context.Context, id string, rules []string, prefs model.NotificationPrefs) error
	UpdateStatus(ctx context.Context, id string, status model.ProjectStatus) error
	// SetWebhook records the GitHub hook id and secret after hook installation.
	SetWebhook(ctx context.Context, id string, webhookID int64, secret string) error
	Delete(ctx context.Context, id string) error
}
