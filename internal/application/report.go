package application

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ghostfounder/ghostreview/internal/domain/model"
)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// maxCommentIssues caps the number of findings included in a PR comment.
const maxCommentIssues = 10

// renderEmailHTML converts a markdown report to sanitized HTML for email
// delivery. Returns empty string for empty input.
func renderEmailHTML(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

// emailSubject derives the email subject from the run's most severe finding.
func emailSubject(repoFullName string, run model.AnalysisRun) string {
	ref := shortSHA(run.CommitSHA)
	if highest, ok := run.Counts.Highest(); ok {
		return fmt.Sprintf("[%s] Code review: %s @ %s", highest, repoFullName, ref)
	}
	return fmt.Sprintf("Code review passed: %s @ %s", repoFullName, ref)
}

// buildEmailReport renders the full markdown report emailed after a push
// analysis. Findings below minSeverity are counted in the badge but omitted
// from the body.
func buildEmailReport(repoFullName string, run model.AnalysisRun, issues []model.CodeIssue, minSeverity model.Severity) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Code review report: %s\n\n", repoFullName)
	fmt.Fprintf(&b, "Commit `%s` on `%s` by %s\n\n", shortSHA(run.CommitSHA), run.Branch, run.Author)

	if run.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", run.Summary)
	}

	b.WriteString(countsBadge(run.Counts))
	b.WriteString("\n\n")

	included := filterBySeverity(issues, minSeverity)
	if len(included) == 0 {
		b.WriteString("No findings at or above the configured severity threshold.\n")
		return b.String()
	}

	sortBySeverity(included)
	for _, issue := range included {
		fmt.Fprintf(&b, "## %s — %s\n\n", strings.ToUpper(string(issue.Severity)), issue.Message)
		fmt.Fprintf(&b, "`%s:%d`", issue.FilePath, issue.Line)
		if issue.Category != "" {
			fmt.Fprintf(&b, " · %s", issue.Category)
		}
		b.WriteString("\n\n")

		if issue.Explanation != "" {
			fmt.Fprintf(&b, "%s\n\n", issue.Explanation)
		}
		if issue.CodeSnippet != "" {
			fmt.Fprintf(&b, "```\n%s\n```\n\n", issue.CodeSnippet)
		}
		if issue.SuggestedFix != "" {
			fmt.Fprintf(&b, "**Suggested fix:** %s\n\n", issue.SuggestedFix)
		}
	}

	return b.String()
}

// buildPRComment renders the condensed markdown report posted as a PR
// comment: a counts badge plus the top findings by severity.
func buildPRComment(run model.AnalysisRun, issues []model.CodeIssue) string {
	var b strings.Builder

	b.WriteString("## GhostFounder code review\n\n")
	b.WriteString(countsBadge(run.Counts))
	b.WriteString("\n\n")

	if run.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", run.Summary)
	}

	if len(issues) == 0 {
		b.WriteString("No issues found. :white_check_mark:\n")
		return b.String()
	}

	sorted := make([]model.CodeIssue, len(issues))
	copy(sorted, issues)
	sortBySeverity(sorted)

	shown := sorted
	if len(shown) > maxCommentIssues {
		shown = shown[:maxCommentIssues]
	}

	for _, issue := range shown {
		fmt.Fprintf(&b, "- **%s** `%s:%d` — %s\n", issue.Severity, issue.FilePath, issue.Line, issue.Message)
	}

	if remaining := len(sorted) - len(shown); remaining > 0 {
		fmt.Fprintf(&b, "\n…and %d more finding(s) in the full report.\n", remaining)
	}

	return b.String()
}

// countsBadge renders the per-severity counters as a single markdown line,
// most severe first.
func countsBadge(counts model.SeverityCounts) string {
	parts := make([]string, 0, len(model.Severities))
	for _, s := range model.Severities {
		parts = append(parts, fmt.Sprintf("**%s:** %d", s, counts.Get(s)))
	}
	return strings.Join(parts, " · ")
}

// filterBySeverity returns the issues at or above the threshold.
func filterBySeverity(issues []model.CodeIssue, threshold model.Severity) []model.CodeIssue {
	var out []model.CodeIssue
	for _, issue := range issues {
		if issue.Severity.AtLeast(threshold) {
			out = append(out, issue)
		}
	}
	return out
}

// sortBySeverity orders issues most severe first, then by file path and line.
// The sort is stable so equal findings keep their analysis order.
func sortBySeverity(issues []model.CodeIssue) {
	rank := func(s model.Severity) int {
		for i, known := range model.Severities {
			if known == s {
				return i
			}
		}
		return len(model.Severities)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if ri, rj := rank(issues[i].Severity), rank(issues[j].Severity); ri != rj {
			return ri < rj
		}
		if issues[i].FilePath != issues[j].FilePath {
			return issues[i].FilePath < issues[j].FilePath
		}
		return issues[i].Line < issues[j].Line
	})
}

// shortSHA abbreviates a commit sha for display.
func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
