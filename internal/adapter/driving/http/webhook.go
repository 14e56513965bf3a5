package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v82/github"

	"github.com/ghostfounder/ghostreview/internal/application"
	"github.com/ghostfounder/ghostreview/internal/domain/model"
	"github.com/ghostfounder/ghostreview/internal/domain/port/driven"
)

// maxWebhookBody caps the accepted delivery payload size. GitHub itself caps
// payloads at 25 MB.
const maxWebhookBody = 10 << 20

// WebhookHandler is the GitHub webhook ingress. Deliveries are matched to a
// project by the repository's numeric id and authenticated with the
// project's HMAC secret over the raw request body before any parsing.
type WebhookHandler struct {
	projects driven.ProjectStore
	pipeline *application.PipelineService
	logger   *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(projects driven.ProjectStore, pipeline *application.PipelineService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		projects: projects,
		pipeline: pipeline,
		logger:   logger,
	}
}

// webhookResponse is the JSON body returned to GitHub for every accepted
// delivery.
type webhookResponse struct {
	Status    string `json:"status"`
	RunID     string `json:"run_id,omitempty"`
	RunStatus string `json:"run_status,omitempty"`
}

// Receive handles a single webhook delivery. A pipeline failure still
// answers 200: the run is durable and visible as failed, and a GitHub retry
// would only duplicate it.
func (wh *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	repoID := peekRepositoryID(body)
	if repoID == 0 {
		writeError(w, http.StatusBadRequest, "payload has no repository id")
		return
	}

	project, err := wh.projects.GetByRepoID(r.Context(), repoID)
	if err != nil {
		if errors.Is(err, driven.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "no project for repository")
			return
		}
		wh.logger.Error("webhook project lookup failed", "repo_id", repoID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if signature == "" {
		signature = r.Header.Get("X-Hub-Signature")
	}
	if signature == "" || project.WebhookSecret == "" {
		writeError(w, http.StatusUnauthorized, "missing signature")
		return
	}
	if err := gh.ValidateSignature(signature, body, []byte(project.WebhookSecret)); err != nil {
		wh.logger.Warn("webhook signature rejected", "project", project.ID, "error", err)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	eventType := gh.WebHookType(r)
	event, err := gh.ParseWebHook(eventType, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	switch ev := event.(type) {
	case *gh.PingEvent:
		writeJSON(w, http.StatusOK, webhookResponse{Status: "pong"})
	case *gh.PushEvent:
		wh.handlePush(w, r, *project, ev)
	case *gh.PullRequestEvent:
		wh.handlePullRequest(w, r, *project, ev)
	default:
		writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
	}
}

func (wh *WebhookHandler) handlePush(w http.ResponseWriter, r *http.Request, project model.Project, ev *gh.PushEvent) {
	// Branch deletions carry a zero after-sha and nothing to analyze.
	if ev.GetDeleted() || ev.GetAfter() == "" {
		writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
		return
	}

	pusher := ev.GetPusher().GetName()
	if pusher == "" {
		pusher = ev.GetSender().GetLogin()
	}

	run, err := wh.pipeline.HandlePush(r.Context(), project, application.PushEvent{
		HeadSHA: ev.GetAfter(),
		Branch:  strings.TrimPrefix(ev.GetRef(), "refs/heads/"),
		Pusher:  pusher,
	})
	wh.respond(w, run, err)
}

func (wh *WebhookHandler) handlePullRequest(w http.ResponseWriter, r *http.Request, project model.Project, ev *gh.PullRequestEvent) {
	switch ev.GetAction() {
	case "opened", "synchronize":
	default:
		writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
		return
	}

	pr := ev.GetPullRequest()
	run, err := wh.pipeline.HandlePullRequest(r.Context(), project, application.PullRequestEvent{
		Number:  ev.GetNumber(),
		HeadSHA: pr.GetHead().GetSHA(),
		Branch:  pr.GetHead().GetRef(),
		Author:  pr.GetUser().GetLogin(),
	})
	wh.respond(w, run, err)
}

// respond maps the pipeline outcome onto the delivery response. Gated skips
// and failed runs both acknowledge the delivery; only a stopped project
// rejects it.
func (wh *WebhookHandler) respond(w http.ResponseWriter, run *model.AnalysisRun, err error) {
	switch {
	case errors.Is(err, application.ErrProjectPaused):
		writeJSON(w, http.StatusOK, webhookResponse{Status: "skipped"})
	case errors.Is(err, application.ErrProjectStopped):
		writeError(w, http.StatusConflict, "project is stopped")
	case err != nil && run != nil:
		writeJSON(w, http.StatusOK, webhookResponse{
			Status:    "accepted",
			RunID:     run.ID,
			RunStatus: string(run.Status),
		})
	case err != nil:
		wh.logger.Error("webhook pipeline error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, webhookResponse{
			Status:    "accepted",
			RunID:     run.ID,
			RunStatus: string(run.Status),
		})
	}
}

// peekRepositoryID extracts repository.id from the raw payload without
// consuming or altering the bytes used for signature verification.
func peekRepositoryID(body []byte) int64 {
	var peek struct {
		Repository struct {
			ID int64 `json:"id"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return 0
	}
	return peek.Repository.ID
}
