package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostfounder/ghostreview/internal/domain/model"
	"github.com/ghostfounder/ghostreview/internal/domain/port/driven"
)

const testWebhookURL = "https://app.ghostfounder.dev/webhooks/github"

func connectParams() ConnectParams {
	return ConnectParams{
		UserID:     "user-1",
		OwnerEmail: "owner@example.com",
		RepoOwner:  "octocat",
		RepoName:   "hello-world",
	}
}

func TestConnect(t *testing.T) {
	projects := newMemProjectStore()
	host := &stubHost{repoID: 4242, hookID: 777}
	svc := NewProjectService(projects, host, testWebhookURL)

	project, err := svc.Connect(context.Background(), connectParams())
	require.NoError(t, err)

	assert.NotEmpty(t, project.ID)
	assert.Equal(t, int64(4242), project.GitHubRepoID)
	assert.Equal(t, int64(777), project.WebhookID)
	assert.Equal(t, model.ProjectActive, project.Status)
	assert.Len(t, project.WebhookSecret, 64) // 32 random bytes, hex encoded
	assert.Equal(t, model.DefaultNotificationPrefs(), project.Prefs)

	require.Len(t, host.createdHooks, 1)
	assert.Equal(t, testWebhookURL, host.createdHooks[0])

	stored, err := projects.GetByRepoID(context.Background(), 4242)
	require.NoError(t, err)
	assert.Equal(t, project.ID, stored.ID)
	assert.Equal(t, int64(777), stored.WebhookID)
}

func TestConnect_WebhookFailureRollsBack(t *testing.T) {
	projects := newMemProjectStore()
	host := &stubHost{repoID: 4242, createHookErr: errors.New("admin access required")}
	svc := NewProjectService(projects, host, testWebhookURL)

	_, err := svc.Connect(context.Background(), connectParams())
	require.Error(t, err)

	_, err = projects.GetByRepoID(context.Background(), 4242)
	assert.ErrorIs(t, err, driven.ErrProjectNotFound)
}

func TestConnect_Validation(t *testing.T) {
	svc := NewProjectService(newMemProjectStore(), &stubHost{repoID: 1, hookID: 1}, testWebhookURL)

	params := connectParams()
	params.RepoName = ""
	_, err := svc.Connect(context.Background(), params)
	assert.Error(t, err)

	params = connectParams()
	params.OwnerEmail = ""
	_, err = svc.Connect(context.Background(), params)
	assert.Error(t, err)

	params = connectParams()
	params.Prefs = &model.NotificationPrefs{MinSeverity: "bogus"}
	_, err = svc.Connect(context.Background(), params)
	assert.ErrorIs(t, err, ErrInvalidSeverity)
}

func TestUpdateSettings(t *testing.T) {
	project := testProject()
	projects := newMemProjectStore(project)
	svc := NewProjectService(projects, &stubHost{}, testWebhookURL)

	prefs := model.DefaultNotificationPrefs()
	prefs.MinSeverity = model.SeverityHigh
	rules := []string{"no naked returns"}

	require.NoError(t, svc.UpdateSettings(context.Background(), project.ID, rules, prefs))

	stored, err := projects.GetByID(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, rules, stored.CustomRules)
	assert.Equal(t, model.SeverityHigh, stored.Prefs.MinSeverity)
}

func TestUpdateSettings_InvalidSeverity(t *testing.T) {
	svc := NewProjectService(newMemProjectStore(testProject()), &stubHost{}, testWebhookURL)

	err := svc.UpdateSettings(context.Background(), "proj-1", nil, model.NotificationPrefs{MinSeverity: "urgent"})
	assert.ErrorIs(t, err, ErrInvalidSeverity)
}

func TestSetStatus_StopTearsDownWebhook(t *testing.T) {
	project := testProject()
	projects := newMemProjectStore(project)
	host := &stubHost{}
	svc := NewProjectService(projects, host, testWebhookURL)

	updated, err := svc.SetStatus(context.Background(), project.ID, model.ProjectStopped)
	require.NoError(t, err)

	assert.Equal(t, model.ProjectStopped, updated.Status)
	assert.Equal(t, []int64{777}, host.deletedHooks)

	stored, err := projects.GetByID(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStopped, stored.Status)
	assert.Zero(t, stored.WebhookID)
	assert.Empty(t, stored.WebhookSecret)
}

func TestSetStatus_TeardownFailureStillStops(t *testing.T) {
	project := testProject()
	projects := newMemProjectStore(project)
	host := &stubHost{deleteHookErr: errors.New("hook gone")}
	svc := NewProjectService(projects, host, testWebhookURL)

	updated, err := svc.SetStatus(context.Background(), project.ID, model.ProjectStopped)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStopped, updated.Status)
}

func TestSetStatus_ReactivateReinstallsWebhook(t *testing.T) {
	project := testProject()
	project.Status = model.ProjectStopped
	project.WebhookID = 0
	project.WebhookSecret = ""
	projects := newMemProjectStore(project)
	host := &stubHost{hookID: 888}
	svc := NewProjectService(projects, host, testWebhookURL)

	updated, err := svc.SetStatus(context.Background(), project.ID, model.ProjectActive)
	require.NoError(t, err)

	assert.Equal(t, model.ProjectActive, updated.Status)
	assert.Equal(t, int64(888), updated.WebhookID)
	assert.NotEmpty(t, updated.WebhookSecret)
	assert.Len(t, host.createdHooks, 1)
}

func TestSetStatus_Invalid(t *testing.T) {
	svc := NewProjectService(newMemProjectStore(testProject()), &stubHost{}, testWebhookURL)

	_, err := svc.SetStatus(context.Background(), "proj-1", "archived")
	assert.Error(t, err)
}

func TestSetStatus_NoopWhenUnchanged(t *testing.T) {
	host := &stubHost{}
	svc := NewProjectService(newMemProjectStore(testProject()), host, testWebhookURL)

	updated, err := svc.SetStatus(context.Background(), "proj-1", model.ProjectActive)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectActive, updated.Status)
	assert.Empty(t, host.deletedHooks)
	assert.Empty(t, host.createdHooks)
}

func TestDelete(t *testing.T) {
	project := testProject()
	projects := newMemProjectStore(project)
	host := &stubHost{}
	svc := NewProjectService(projects, host, testWebhookURL)

	require.NoError(t, svc.Delete(context.Background(), project.ID))

	assert.Equal(t, []int64{777}, host.deletedHooks)
	_, err := projects.GetByID(context.Background(), project.ID)
	assert.ErrorIs(t, err, driven.ErrProjectNotFound)
}

func TestDelete_TeardownFailureStillDeletes(t *testing.T) {
	project := testProject()
	projects := newMemProjectStore(project)
	svc := NewProjectService(projects, &stubHost{deleteHookErr: errors.New("forbidden")}, testWebhookURL)

	require.NoError(t, svc.Delete(context.Background(), project.ID))

	_, err := projects.GetByID(context.Background(), project.ID)
	assert.ErrorIs(t, err, driven.ErrProjectNotFound)
}

func TestDelete_Unknown(t *testing.T) {
	svc := NewProjectService(newMemProjectStore(), &stubHost{}, testWebhookURL)

	err := svc.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, driven.ErrProjectNotFound)
}
