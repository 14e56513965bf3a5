package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/ghostfounder/ghostreview/internal/domain/model"
	"github.com/ghostfounder/ghostreview/internal/domain/port/driven"
)

// memProjectStore is an in-memory ProjectStore.
type memProjectStore struct {
	mu       sync.Mutex
	projects map[string]model.Project
}

func newMemProjectStore(projects ...model.Project) *memProjectStore {
	s := &memProjectStore{projects: make(map[string]model.Project)}
	for _, p := range projects {
		s.projects[p.ID] = p
	}
	return s
}

func (s *memProjectStore) Create(_ context.Context, project model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[project.ID] = project
	return nil
}

func (s *memProjectStore) GetByID(_ context.Context, id string) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, driven.ErrProjectNotFound
	}
	return &p, nil
}

func (s *memProjectStore) GetByRepoID(_ context.Context, githubRepoID int64) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.GitHubRepoID == githubRepoID {
			return &p, nil
		}
	}
	return nil, driven.ErrProjectNotFound
}

func (s *memProjectStore) ListByUser(_ context.Context, userID string) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Project
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memProjectStore) UpdateSettings(_ context.Context, id string, rules []string, prefs model.NotificationPrefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return driven.ErrProjectNotFound
	}
	p.CustomRules = rules
	p.Prefs = prefs
	s.projects[id] = p
	return nil
}

func (s *memProjectStore) UpdateStatus(_ context.Context, id string, status model.ProjectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return driven.ErrProjectNotFound
	}
	p.Status = status
	s.projects[id] = p
	return nil
}

func (s *memProjectStore) SetWebhook(_ context.Context, id string, webhookID int64, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return driven.ErrProjectNotFound
	}
	p.WebhookID = webhookID
	p.WebhookSecret = secret
	s.projects[id] = p
	return nil
}

func (s *memProjectStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return driven.ErrProjectNotFound
	}
	delete(s.projects, id)
	return nil
}

// memRunStore is an in-memory RunStore enforcing the terminal-write guard.
type memRunStore struct {
	mu     sync.Mutex
	runs   map[string]model.AnalysisRun
	issues map[string][]model.CodeIssue
}

func newMemRunStore() *memRunStore {
	return &memRunStore{
		runs:   make(map[string]model.AnalysisRun),
		issues: make(map[string][]model.CodeIssue),
	}
}

func (s *memRunStore) Create(_ context.Context, run model.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

func (s *memRunStore) Complete(_ context.Context, run model.AnalysisRun, issues []model.CodeIssue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.runs[run.ID]
	if !ok {
		return driven.ErrRunNotFound
	}
	if stored.Status != model.RunRunning {
		return model.ErrRunFinished
	}
	s.runs[run.ID] = run
	s.issues[run.ID] = issues
	return nil
}

func (s *memRunStore) Fail(_ context.Context, run model.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.runs[run.ID]
	if !ok {
		return driven.ErrRunNotFound
	}
	if stored.Status != model.RunRunning {
		return model.ErrRunFinished
	}
	s.runs[run.ID] = run
	return nil
}

func (s *memRunStore) SetEmailStatus(_ context.Context, runID string, status model.EmailStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.runs[runID]
	if !ok {
		return driven.ErrRunNotFound
	}
	stored.EmailStatus = status
	s.runs[runID] = stored
	return nil
}

func (s *memRunStore) GetByID(_ context.Context, id string) (*model.AnalysisRun, []model.CodeIssue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, nil, driven.ErrRunNotFound
	}
	return &run, s.issues[id], nil
}

func (s *memRunStore) ListByProject(_ context.Context, projectID string) ([]model.AnalysisRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AnalysisRun
	for _, run := range s.runs {
		if run.ProjectID == projectID {
			out = append(out, run)
		}
	}
	return out, nil
}

// only returns the single stored run, failing loudly when the store holds a
// different count.
func (s *memRunStore) only() (model.AnalysisRun, []model.CodeIssue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) != 1 {
		return model.AnalysisRun{}, nil, fmt.Errorf("expected exactly 1 run, have %d", len(s.runs))
	}
	for _, run := range s.runs {
		return run, s.issues[run.ID], nil
	}
	panic("unreachable")
}

func (s *memRunStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// stubHost is a canned RepoHost.
type stubHost struct {
	repoID    int64
	commit    *driven.Commit
	commitErr error

	files    map[string]string
	fetchErr map[string]error

	dependents    []string
	dependentsErr error

	hookID        int64
	createHookErr error
	deleteHookErr error

	commentErr error

	createdHooks []string // callbackURL values
	deletedHooks []int64
	comments     []postedComment
}

type postedComment struct {
	repo   string
	number int
	body   string
}

func (h *stubHost) LookupRepoID(context.Context, string) (int64, error) {
	if h.repoID == 0 {
		return 0, fmt.Errorf("repository not found")
	}
	return h.repoID, nil
}

func (h *stubHost) FetchCommit(context.Context, string, string) (*driven.Commit, error) {
	if h.commitErr != nil {
		return nil, h.commitErr
	}
	return h.commit, nil
}

func (h *stubHost) FetchFileContent(_ context.Context, _, path, _ string) (string, error) {
	if err := h.fetchErr[path]; err != nil {
		return "", err
	}
	content, ok := h.files[path]
	if !ok {
		return "", fmt.Errorf("no such file %s", path)
	}
	return content, nil
}

func (h *stubHost) SearchDependents(context.Context, string, string) ([]string, error) {
	if h.dependentsErr != nil {
		return nil, h.dependentsErr
	}
	return h.dependents, nil
}

func (h *stubHost) CreateWebhook(_ context.Context, _, callbackURL, _ string) (int64, error) {
	if h.createHookErr != nil {
		return 0, h.createHookErr
	}
	h.createdHooks = append(h.createdHooks, callbackURL)
	return h.hookID, nil
}

func (h *stubHost) DeleteWebhook(_ context.Context, _ string, hookID int64) error {
	if h.deleteHookErr != nil {
		return h.deleteHookErr
	}
	h.deletedHooks = append(h.deletedHooks, hookID)
	return nil
}

func (h *stubHost) PostPRComment(_ context.Context, repo string, number int, body string) error {
	if h.commentErr != nil {
		return h.commentErr
	}
	h.comments = append(h.comments, postedComment{repo: repo, number: number, body: body})
	return nil
}

// stubAnalyzer returns canned findings keyed by file path.
type stubAnalyzer struct {
	issuesByPath map[string][]model.CodeIssue
	analyzeErr   map[string]error

	summary      string
	summarizeErr error

	requests []driven.FileAnalysisRequest
}

func (a *stubAnalyzer) AnalyzeFile(_ context.Context, req driven.FileAnalysisRequest) ([]model.CodeIssue, error) {
	a.requests = append(a.requests, req)
	if err := a.analyzeErr[req.FilePath]; err != nil {
		return nil, err
	}
	return a.issuesByPath[req.FilePath], nil
}

func (a *stubAnalyzer) Summarize(context.Context, string, []model.CodeIssue) (string, error) {
	if a.summarizeErr != nil {
		return "", a.summarizeErr
	}
	return a.summary, nil
}

// stubMailer records sends and optionally fails per recipient.
type stubMailer struct {
	failFor map[string]error

	sent []sentMail
}

type sentMail struct {
	to      string
	subject string
	body    string
}

func (m *stubMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	if err := m.failFor[to]; err != nil {
		return err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

var (
	_ driven.ProjectStore = (*memProjectStore)(nil)
	_ driven.RunStore     = (*memRunStore)(nil)
	_ driven.RepoHost     = (*stubHost)(nil)
	_ driven.Analyzer     = (*stubAnalyzer)(nil)
	_ driven.Mailer       = (*stubMailer)(nil)
)
