package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ghostfounder/ghostreview/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ProjectResponse is the JSON representation of a connected project.
type ProjectResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	OwnerEmail string `json:"owner_email"`
	RepoOwner  string `json:"repo_owner"`
	RepoName   string `json:"repo_name"`
	RepoFull   string `json:"repo_full_name"`
	Status     string `json:"status"`

	CustomRules     []string `json:"custom_rules"`
	EmailOnPush     bool     `json:"email_on_push"`
	EmailOnPR       bool     `json:"email_on_pr"`
	MinSeverity     string   `json:"min_severity"`
	ExtraRecipients []string `json:"extra_recipients"`

	WebhookInstalled bool   `json:"webhook_installed"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// SeverityCountsResponse is the per-severity counter block on a run.
type SeverityCountsResponse struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// RunResponse is the JSON representation of an analysis run.
type RunResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	CommitSHA string `json:"commit_sha"`
	Branch    string `json:"branch,omitempty"`
	Trigger   string `json:"trigger"`
	Status    string `json:"status"`
	Author    string `json:"author,omitempty"`
	PRNumber  int    `json:"pr_number,omitempty"`

	Counts      SeverityCountsResponse `json:"counts"`
	Summary     string                 `json:"summary,omitempty"`
	Error       string                 `json:"error,omitempty"`
	EmailStatus string                 `json:"email_status,omitempty"`

	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// RunDetailResponse is a run plus its full issue list.
type RunDetailResponse struct {
	RunResponse
	Issues []IssueResponse `json:"issues"`
}

// IssueResponse is the JSON representation of a single finding.
type IssueResponse struct {
	ID           string `json:"id"`
	FilePath     string `json:"file_path"`
	Line         int    `json:"line"`
	EndLine      int    `json:"end_line,omitempty"`
	Severity     string `json:"severity"`
	Category     string `json:"category,omitempty"`
	Message      string `json:"message"`
	Explanation  string `json:"explanation,omitempty"`
	SuggestedFix string `json:"suggested_fix,omitempty"`
	CodeSnippet  string `json:"code_snippet,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ConnectProjectRequest is the JSON body for the connect project endpoint.
type ConnectProjectRequest struct {
	UserID     string `json:"user_id"`
	OwnerEmail string `json:"owner_email"`
	RepoOwner  string `json:"repo_owner"`
	RepoName   string `json:"repo_name"`

	CustomRules []string           `json:"custom_rules,omitempty"`
	Prefs       *NotificationPrefs `json:"notification_prefs,omitempty"`
}

// NotificationPrefs is the JSON shape of a project's notification settings.
type NotificationPrefs struct {
	EmailOnPush     bool     `json:"email_on_push"`
	EmailOnPR       bool     `json:"email_on_pr"`
	MinSeverity     string   `json:"min_severity"`
	ExtraRecipients []string `json:"extra_recipients"`
}

// UpdateSettingsRequest is the JSON body for the settings endpoint.
type UpdateSettingsRequest struct {
	CustomRules []string          `json:"custom_rules"`
	Prefs       NotificationPrefs `json:"notification_prefs"`
}

// UpdateStatusRequest is the JSON body for the status endpoint.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AnalyzeRequest is the JSON body for the manual analyze endpoint.
type AnalyzeRequest struct {
	CommitSHA string `json:"commit_sha"`
}

func (p NotificationPrefs) toModel() model.NotificationPrefs {
	extras := p.ExtraRecipients
	if extras == nil {
		extras = []string{}
	}
	return model.NotificationPrefs{
		EmailOnPush:     p.EmailOnPush,
		EmailOnPR:       p.EmailOnPR,
		MinSeverity:     model.Severity(p.MinSeverity),
		ExtraRecipients: extras,
	}
}

// toProjectResponse converts a domain Project to its JSON representation.
// The webhook secret never leaves the server.
func toProjectResponse(p model.Project) ProjectResponse {
	rules := p.CustomRules
	if rules == nil {
		rules = []string{}
	}
	extras := p.Prefs.ExtraRecipients
	if extras == nil {
		extras = []string{}
	}

	return ProjectResponse{
		ID:         p.ID,
		UserID:     p.UserID,
		OwnerEmail: p.OwnerEmail,
		RepoOwner:  p.RepoOwner,
		RepoName:   p.RepoName,
		RepoFull:   p.RepoFullName(),
		Status:     string(p.Status),

		CustomRules:     rules,
		EmailOnPush:     p.Prefs.EmailOnPush,
		EmailOnPR:       p.Prefs.EmailOnPR,
		MinSeverity:     string(p.Prefs.MinSeverity),
		ExtraRecipients: extras,

		WebhookInstalled: p.WebhookID != 0,
		CreatedAt:        p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toRunResponse converts a domain AnalysisRun to its JSON representation.
func toRunResponse(run model.AnalysisRun) RunResponse {
	resp := RunResponse{
		ID:        run.ID,
		ProjectID: run.ProjectID,
		CommitSHA: run.CommitSHA,
		Branch:    run.Branch,
		Trigger:   string(run.Trigger),
		Status:    string(run.Status),
		Author:    run.Author,
		PRNumber:  run.PRNumber,

		Counts: SeverityCountsResponse{
			Critical: run.Counts.Critical,
			High:     run.Counts.High,
			Medium:   run.Counts.Medium,
			Low:      run.Counts.Low,
			Info:     run.Counts.Info,
			Total:    run.Counts.Total(),
		},
		Summary:     run.Summary,
		Error:       run.Error,
		EmailStatus: string(run.EmailStatus),

		StartedAt: run.StartedAt.UTC().Format(time.RFC3339),
	}

	if !run.CompletedAt.IsZero() {
		resp.CompletedAt = run.CompletedAt.UTC().Format(time.RFC3339)
	}

	return resp
}

// toRunDetailResponse converts a run and its issue list to the detail shape.
func toRunDetailResponse(run model.AnalysisRun, issues []model.CodeIssue) RunDetailResponse {
	out := RunDetailResponse{
		RunResponse: toRunResponse(run),
		Issues:      make([]IssueResponse, 0, len(issues)),
	}
	for _, issue := range issues {
		out.Issues = append(out.Issues, IssueResponse{
			ID:           issue.ID,
			FilePath:     issue.FilePath,
			Line:         issue.Line,
			EndLine:      issue.EndLine,
			Severity:     string(issue.Severity),
			Category:     issue.Category,
			Message:      issue.Message,
			Explanation:  issue.Explanation,
			SuggestedFix: issue.SuggestedFix,
			CodeSnippet:  issue.CodeSnippet,
		})
	}
	return out
}
