package driven

import (
	"context"

	"github.com/ghostfounder/ghostreview/internal/domain/model"
)

// FileAnalysisRequest carries everything the analyzer needs to review a single
// changed file.
type FileAnalysisRequest struct {
	FilePath string
	Content  string
	Language string
	// CommitMessage gives the analyzer intent context for the change.
	CommitMessage string
	// CustomRules are the project's free-text review constraints.
	CustomRules []string
	// DependentContext holds paths of files that reference this one, gathered
	// best-effort. May be empty.
	DependentContext []string
}

// Analyzer defines the driven port for the LLM-based static analyzer.
type Analyzer interface {
	// AnalyzeFile reviews one file and returns severity-classified findings.
	// Returned issues carry no ID or RunID; the pipeline assigns both during
	// aggregation.
	AnalyzeFile(ctx context.Context, req FileAnalysisRequest) ([]model.CodeIssue, error)

	// Summarize produces the human-readable report text for a finished
	// analysis over the full issue list.
	Summarize(ctx context.Context, commitMessage string, issues []model.CodeIssue) (string, error)
}
