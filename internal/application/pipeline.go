// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/ghostfounder/ghostreview/internal/domain/model"
	"github.com/ghostfounder/ghostreview/internal/domain/port/driven"
)

// Gating errors returned before a run is created.
var (
	// ErrProjectPaused is a gated skip: the webhook is acknowledged but no
	// analysis run is created.
	ErrProjectPaused = errors.New("project is paused")

	// ErrProjectStopped rejects the event outright.
	ErrProjectStopped = errors.New("project is stopped")
)

// PushEvent is the analysis-relevant slice of a GitHub push delivery.
type PushEvent struct {
	HeadSHA string
	Branch  string
	Pusher  string
}

// PullRequestEvent is the analysis-relevant slice of a GitHub pull_request
// delivery. Only opened and synchronize actions reach the pipeline.
type PullRequestEvent struct {
	Number  int
	HeadSHA string
	Branch  string
	Author  string
}

// PipelineService orchestrates the webhook-driven code-analysis pipeline:
// run creation, the sequential per-file analysis loop, aggregation, terminal
// persistence, and notification fan-out.
//
// Failure policy is two-tier. Dependent-context lookups are soft: failures
// are logged and discarded. File fetch, analysis, and summarization are hard:
// the first failure transitions the run to failed and discards all in-memory
// issues (nothing is persisted before the single terminal batch write).
// Notification failures occur strictly after the terminal transition and
// never alter run status.
type PipelineService struct {
	runs     driven.RunStore
	projects driven.ProjectStore
	host     driven.RepoHost
	analyzer driven.Analyzer
	mailer   driven.Mailer
}

// NewPipelineService creates a PipelineService with all required dependencies.
func NewPipelineService(
	runs driven.RunStore,
	projects driven.ProjectStore,
	host driven.RepoHost,
	analyzer driven.Analyzer,
	mailer driven.Mailer,
) *PipelineService {
	return &PipelineService{
		runs:     runs,
		projects: projects,
		host:     host,
		analyzer: analyzer,
		mailer:   mailer,
	}
}

// HandlePush runs the pipeline for a push event. The returned run reflects
// the terminal state; a non-nil error means the run failed (or was never
// created, for gated projects).
func (s *PipelineService) HandlePush(ctx context.Context, project model.Project, ev PushEvent) (*model.AnalysisRun, error) {
	if err := gateProject(project); err != nil {
		return nil, err
	}

	run := model.NewRun(newID(), project.ID, ev.HeadSHA, ev.Branch, ev.Pusher, model.TriggerPush, 0)
	return s.execute(ctx, project, run)
}

// HandlePullRequest runs the pipeline for a pull_request opened/synchronize
// event against the PR head commit.
func (s *PipelineService) HandlePullRequest(ctx context.Context, project model.Project, ev PullRequestEvent) (*model.AnalysisRun, error) {
	if err := gateProject(project); err != nil {
		return nil, err
	}

	run := model.NewRun(newID(), project.ID, ev.HeadSHA, ev.Branch, ev.Author, model.TriggerPullRequest, ev.Number)
	return s.execute(ctx, project, run)
}

// Reanalyze runs the pipeline for a specific commit on demand. This is the
// manual recovery path for failed runs; only a stopped project blocks it.
func (s *PipelineService) Reanalyze(ctx context.Context, projectID, sha string) (*model.AnalysisRun, error) {
	if sha == "" {
		return nil, errors.New("commit sha is required")
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status == model.ProjectStopped {
		return nil, ErrProjectStopped
	}

	run := model.NewRun(newID(), project.ID, sha, "", "", model.TriggerPush, 0)
	return s.execute(ctx, *project, run)
}

// gateProject applies project-status gating before any run is created.
func gateProject(project model.Project) error {
	switch project.Status {
	case model.ProjectPaused:
		return ErrProjectPaused
	case model.ProjectStopped:
		return ErrProjectStopped
	}
	return nil
}

// execute creates the run record, then drives analysis, aggregation, terminal
// persistence, and fan-out. The run is persisted in running state before any
// external work so a crash mid-analysis leaves a durable record.
func (s *PipelineService) execute(ctx context.Context, project model.Project, run *model.AnalysisRun) (*model.AnalysisRun, error) {
	if err := s.runs.Create(ctx, *run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	issues, summary, err := s.analyze(ctx, project, run)
	if err != nil {
		return run, s.failRun(ctx, run, err)
	}

	counts := model.CountBySeverity(issues)
	if err := run.Complete(counts, summary); err != nil {
		return run, err
	}
	if err := s.runs.Complete(ctx, *run, issues); err != nil {
		return run, fmt.Errorf("persist completed run: %w", err)
	}

	slog.Info("analysis run completed",
		"run", run.ID,
		"project", project.ID,
		"repo", project.RepoFullName(),
		"sha", run.CommitSHA,
		"issues", counts.Total(),
	)

	s.fanOut(ctx, project, run, issues)

	return run, nil
}

// analyze fetches the commit, drives the sequential per-file loop, and
// aggregates the results. All issues are held in memory until the caller's
// single terminal write; any hard failure discards them.
func (s *PipelineService) analyze(ctx context.Context, project model.Project, run *model.AnalysisRun) ([]model.CodeIssue, string, error) {
	commit, err := s.host.FetchCommit(ctx, project.RepoFullName(), run.CommitSHA)
	if err != nil {
		return nil, "", fmt.Errorf("fetch commit: %w", err)
	}

	if run.Author == "" {
		run.Author = commit.Author
	}

	var issues []model.CodeIssue
	for _, file := range commit.Files {
		if file.Status == "removed" {
			continue
		}

		fileIssues, err := s.analyzeFile(ctx, project, run.CommitSHA, commit.Message, file.Path)
		if err != nil {
			return nil, "", err
		}
		issues = append(issues, fileIssues...)
	}

	summary, err := s.analyzer.Summarize(ctx, commit.Message, issues)
	if err != nil {
		return nil, "", fmt.Errorf("summarize: %w", err)
	}

	for i := range issues {
		issues[i].ID = newID()
		issues[i].RunID = run.ID
	}

	return issues, summary, nil
}

// analyzeFile fetches one file at the target ref and submits it to the
// analyzer. The dependent-context lookup is a soft enhancement: its failure
// is logged and discarded, never aborting the file's analysis.
func (s *PipelineService) analyzeFile(ctx context.Context, project model.Project, sha, commitMessage, path string) ([]model.CodeIssue, error) {
	content, err := s.host.FetchFileContent(ctx, project.RepoFullName(), path, sha)
	if err != nil {
		return nil, fmt.Errorf("fetch file content %s: %w", path, err)
	}

	dependents, err := s.host.SearchDependents(ctx, project.RepoFullName(), path)
	if err != nil {
		slog.Warn("dependent lookup failed",
			"repo", project.RepoFullName(),
			"file", path,
			"error", err,
		)
		dependents = nil
	}

	fileIssues, err := s.analyzer.AnalyzeFile(ctx, driven.FileAnalysisRequest{
		FilePath:         path,
		Content:          content,
		Language:         detectLanguage(path),
		CommitMessage:    commitMessage,
		CustomRules:      project.CustomRules,
		DependentContext: dependents,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze file %s: %w", path, err)
	}

	return fileIssues, nil
}

// failRun transitions the run to its failed terminal state and persists it.
// The returned error is the original analysis failure.
func (s *PipelineService) failRun(ctx context.Context, run *model.AnalysisRun, cause error) error {
	if err := run.Fail(cause); err != nil {
		return err
	}

	if err := s.runs.Fail(ctx, *run); err != nil {
		slog.Error("persist failed run", "run", run.ID, "error", err)
	}

	slog.Error("analysis run failed",
		"run", run.ID,
		"project", run.ProjectID,
		"sha", run.CommitSHA,
		"error", cause,
	)

	return cause
}

// fanOut delivers the completed run to its notification channel. The two
// channels are mutually exclusive, keyed by trigger type, and each is an
// independent failure domain: neither can regress the run's terminal state.
func (s *PipelineService) fanOut(ctx context.Context, project model.Project, run *model.AnalysisRun, issues []model.CodeIssue) {
	switch run.Trigger {
	case model.TriggerPush:
		if !project.Prefs.EmailOnPush {
			return
		}
		s.sendEmailReport(ctx, project, run, issues)
	case model.TriggerPullRequest:
		s.postPRComment(ctx, project, run, issues)
	}
}

// sendEmailReport renders the HTML report and sends it to the owner plus any
// configured extra recipients. The recorded email status reflects the last
// send attempt; multi-recipient partial failure is not distinguished.
func (s *PipelineService) sendEmailReport(ctx context.Context, project model.Project, run *model.AnalysisRun, issues []model.CodeIssue) {
	recipients := project.Recipients()
	if len(recipients) == 0 {
		return
	}

	subject := emailSubject(project.RepoFullName(), *run)
	body := renderEmailHTML(buildEmailReport(project.RepoFullName(), *run, issues, project.Prefs.MinSeverity))

	status := model.EmailSent
	for _, to := range recipients {
		if err := s.mailer.Send(ctx, to, subject, body); err != nil {
			slog.Error("report email failed", "run", run.ID, "to", to, "error", err)
			status = model.EmailFailed
		} else {
			status = model.EmailSent
		}
	}

	if err := run.RecordEmailStatus(status); err != nil {
		slog.Error("record email status", "run", run.ID, "error", err)
		return
	}
	if err := s.runs.SetEmailStatus(ctx, run.ID, status); err != nil {
		slog.Error("persist email status", "run", run.ID, "error", err)
	}
}

// postPRComment posts the condensed report on the pull request. A post
// failure is logged and swallowed; the run is already completed.
func (s *PipelineService) postPRComment(ctx context.Context, project model.Project, run *model.AnalysisRun, issues []model.CodeIssue) {
	body := buildPRComment(*run, issues)

	if err := s.host.PostPRComment(ctx, project.RepoFullName(), run.PRNumber, body); err != nil {
		slog.Error("pr comment failed",
			"run", run.ID,
			"repo", project.RepoFullName(),
			"pr", run.PRNumber,
			"error", err,
		)
	}
}

// newID returns a lexicographically sortable unique id.
func newID() string {
	return ulid.Make().String()
}
