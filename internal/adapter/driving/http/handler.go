// Package httphandler is the HTTP driving adapter serving the REST API and
// the GitHub webhook ingress.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ghostfounder/ghostreview/internal/application"
	"github.com/ghostfounder/ghostreview/internal/domain/model"
	"github.com/ghostfounder/ghostreview/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	projects   driven.ProjectStore
	runs       driven.RunStore
	projectSvc *application.ProjectService
	pipeline   *application.PipelineService
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	projects driven.ProjectStore,
	runs driven.RunStore,
	projectSvc *application.ProjectService,
	pipeline *application.PipelineService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		projects:   projects,
		runs:       runs,
		projectSvc: projectSvc,
		pipeline:   pipeline,
		logger:     logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, wh *WebhookHandler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhooks/github", wh.Receive)

	mux.HandleFunc("POST /api/v1/projects", h.ConnectProject)
	mux.HandleFunc("GET /api/v1/projects", h.ListProjects)
	mux.HandleFunc("GET /api/v1/projects/{id}", h.GetProject)
	mux.HandleFunc("PUT /api/v1/projects/{id}/settings", h.UpdateSettings)
	mux.HandleFunc("PATCH /api/v1/projects/{id}/status", h.UpdateStatus)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", h.DeleteProject)
	mux.HandleFunc("GET /api/v1/projects/{id}/runs", h.ListRuns)
	mux.HandleFunc("POST /api/v1/projects/{id}/analyze", h.Analyze)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.GetRun)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := panicRecovery(logger, mux)
	wrapped = requestLogging(logger, wrapped)

	return wrapped
}

// ConnectProject registers a repository as a new project and installs its
// webhook.
func (h *Handler) ConnectProject(w http.ResponseWriter, r *http.Request) {
	var req ConnectProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := application.ConnectParams{
		UserID:      req.UserID,
		OwnerEmail:  req.OwnerEmail,
		RepoOwner:   req.RepoOwner,
		RepoName:    req.RepoName,
		CustomRules: req.CustomRules,
	}
	if req.Prefs != nil {
		prefs := req.Prefs.toModel()
		params.Prefs = &prefs
	}

	project, err := h.projectSvc.Connect(r.Context(), params)
	if err != nil {
		if errors.Is(err, application.ErrInvalidSeverity) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to connect project", "repo", req.RepoOwner+"/"+req.RepoName, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toProjectResponse(*project))
}

// ListProjects returns the projects belonging to the given user.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	projects, err := h.projects.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list projects", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, toProjectResponse(p))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetProject returns a single project by id.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, driven.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		h.logger.Error("failed to get project", "project", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(*project))
}

// UpdateSettings replaces the project's custom rules and notification
// preferences.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	err := h.projectSvc.UpdateSettings(r.Context(), id, req.CustomRules, req.Prefs.toModel())
	if err != nil {
		switch {
		case errors.Is(err, application.ErrInvalidSeverity):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, driven.ErrProjectNotFound):
			writeError(w, http.StatusNotFound, "project not found")
		default:
			h.logger.Error("failed to update settings", "project", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	project, err := h.projects.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to reload project", "project", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(*project))
}

// UpdateStatus changes the project's lifecycle status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	project, err := h.projectSvc.SetStatus(r.Context(), id, model.ProjectStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, driven.ErrProjectNotFound):
			writeError(w, http.StatusNotFound, "project not found")
		case errors.Is(err, application.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to update status", "project", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(*project))
}

// DeleteProject disconnects the project and drops its run history.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.projectSvc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, driven.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		h.logger.Error("failed to delete project", "project", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRuns returns the project's run history, most recent first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := h.projects.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, driven.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		h.logger.Error("failed to get project", "project", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	runs, err := h.runs.ListByProject(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list runs", "project", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRun returns a single run with its full issue list.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, issues, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, driven.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("failed to get run", "run", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toRunDetailResponse(*run, issues))
}

// Analyze triggers a manual analysis run for a specific commit.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CommitSHA == "" {
		writeError(w, http.StatusBadRequest, "commit_sha is required")
		return
	}

	id := r.PathValue("id")
	run, err := h.pipeline.Reanalyze(r.Context(), id, req.CommitSHA)
	if err != nil {
		switch {
		case errors.Is(err, driven.ErrProjectNotFound):
			writeError(w, http.StatusNotFound, "project not found")
			return
		case errors.Is(err, application.ErrProjectStopped):
			writeError(w, http.StatusConflict, "project is stopped")
			return
		}
		// The run itself failed; it is durable and reported as such.
		if run != nil {
			writeJSON(w, http.StatusOK, toRunResponse(*run))
			return
		}
		h.logger.Error("manual analysis failed", "project", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toRunResponse(*run))
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
