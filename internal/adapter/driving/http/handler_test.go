package httphandler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostfounder/ghostreview/internal/domain/model"
)

func doJSON(f *fixture, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := doJSON(f, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestConnectProject(t *testing.T) {
	f := newFixture(t)

	rec := doJSON(f, http.MethodPost, "/api/v1/projects", `{
		"user_id": "user-1",
		"owner_email": "owner@example.com",
		"repo_owner": "octocat",
		"repo_name": "hello-world"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID               string `json:"id"`
		RepoFull         string `json:"repo_full_name"`
		Status           string `json:"status"`
		WebhookInstalled bool   `json:"webhook_installed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "octocat/hello-world", resp.RepoFull)
	assert.Equal(t, "active", resp.Status)
	assert.True(t, resp.WebhookInstalled)

	// The secret must never appear in any API response.
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestConnectProject_InvalidBody(t *testing.T) {
	f := newFixture(t)

	rec := doJSON(f, http.MethodPost, "/api/v1/projects", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectProject_InvalidSeverity(t *testing.T) {
	f := newFixture(t)

	rec := doJSON(f, http.MethodPost, "/api/v1/projects", `{
		"user_id": "user-1",
		"owner_email": "owner@example.com",
		"repo_owner": "octocat",
		"repo_name": "hello-world",
		"notification_prefs": {"min_severity": "urgent"}
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProjects(t *testing.T) {
	f := newFixture(t, activeProject())

	rec := doJSON(f, http.MethodGet, "/api/v1/projects?user_id=user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
}

func TestListProjects_MissingUserID(t *testing.T) {
	f := newFixture(t)

	rec := doJSON(f, http.MethodGet, "/api/v1/projects", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProject_NotFound(t *testing.T) {
	f := newFixture(t)

	rec := doJSON(f, http.MethodGet, "/api/v1/projects/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t, activeProject())

	rec := doJSON(f, http.MethodPut, "/api/v1/projects/proj-1/settings", `{
		"custom_rules": ["no naked returns"],
		"notification_prefs": {
			"email_on_push": true,
			"min_severity": "high",
			"extra_recipients": ["cto@example.com"]
		}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := f.projects.GetByID(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"no naked returns"}, stored.CustomRules)
	assert.Equal(t, model.SeverityHigh, stored.Prefs.MinSeverity)
	assert.Equal(t, []string{"cto@example.com"}, stored.Prefs.ExtraRecipients)
}

func TestUpdateSettings_InvalidSeverity(t *testing.T) {
	f := newFixture(t, activeProject())

	rec := doJSON(f, http.MethodPut, "/api/v1/projects/proj-1/settings", `{
		"notification_prefs": {"min_severity": "urgent"}
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStatus_Stop(t *testing.T) {
	f := newFixture(t, activeProject())

	rec := doJSON(f, http.MethodPatch, "/api/v1/projects/proj-1/status", `{"status": "stopped"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := f.projects.GetByID(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStopped, stored.Status)
	assert.Equal(t, []int64{777}, f.host.deletedHooks)
}

func TestUpdateStatus_Invalid(t *testing.T) {
	f := newFixture(t, activeProject())

	rec := doJSON(f, http.MethodPatch, "/api/v1/projects/proj-1/status", `{"status": "archived"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteProject(t *testing.T) {
	f := newFixture(t, activeProject())

	rec := doJSON(f, http.MethodDelete, "/api/v1/projects/proj-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(f, http.MethodGet, "/api/v1/projects/proj-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns(t *testing.T) {
	f := newFixture(t, activeProject())
	body := pushPayload(4242)
	deliver(f, "push", body, sign("s3cret", body))

	rec := doJSON(f, http.MethodGet, "/api/v1/projects/proj-1/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []struct {
		Status string `json:"status"`
		Counts struct {
			Critical int `json:"critical"`
			Total    int `json:"total"`
		} `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "completed", resp[0].Status)
	assert.Equal(t, 1, resp[0].Counts.Critical)
}

func TestListRuns_UnknownProject(t *testing.T) {
	f := newFixture(t)

	rec := doJSON(f, http.MethodGet, "/api/v1/projects/nope/runs", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRun(t *testing.T) {
	f := newFixture(t, activeProject())
	body := pushPayload(4242)
	rec := deliver(f, "push", body, sign("s3cret", body))

	var created struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec2 := doJSON(f, http.MethodGet, "/api/v1/runs/"+created.RunID, "")
	require.Equal(t, http.StatusOK, rec2.Code)

	var resp struct {
		ID     string `json:"id"`
		Issues []struct {
			Severity string `json:"severity"`
			Message  string `json:"message"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp))
	assert.Equal(t, created.RunID, resp.ID)
	require.Len(t, resp.Issues, 1)
	assert.Equal(t, "critical", resp.Issues[0].Severity)
}

func TestGetRun_NotFound(t *testing.T) {
	f := newFixture(t)

	rec := doJSON(f, http.MethodGet, "/api/v1/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyze(t *testing.T) {
	f := newFixture(t, activeProject())

	rec := doJSON(f, http.MethodPost, "/api/v1/projects/proj-1/analyze", `{"commit_sha": "abc123def456"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Status  string `json:"status"`
		Trigger string `json:"trigger"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "push", resp.Trigger)
}

func TestAnalyze_MissingSHA(t *testing.T) {
	f := newFixture(t, activeProject())

	rec := doJSON(f, http.MethodPost, "/api/v1/projects/proj-1/analyze", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_StoppedProject(t *testing.T) {
	project := activeProject()
	project.Status = model.ProjectStopped
	f := newFixture(t, project)

	rec := doJSON(f, http.MethodPost, "/api/v1/projects/proj-1/analyze", `{"commit_sha": "abc123"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
