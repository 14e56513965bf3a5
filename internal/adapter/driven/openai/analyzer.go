// Package openai implements the Analyzer port against an OpenAI-compatible
// chat completion API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ghostfounder/ghostreview/internal/domain/model"
	"github.com/ghostfounder/ghostreview/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Analyzer = (*Analyzer)(nil)

const analyzeSystemPrompt = `You are a senior code reviewer. Review the provided file and report ` +
	`problems as JSON: {"issues":[{"file_path":string,"line":int,"end_line":int,` +
	`"severity":"critical"|"high"|"medium"|"low"|"info","category":string,"message":string,` +
	`"explanation":string,"suggested_fix":string,"code_snippet":string}]}. ` +
	`Report only genuine problems. Respond with the JSON object and nothing else.`

const summarizeSystemPrompt = `You are a senior code reviewer writing the summary paragraph of a ` +
	`review report. Be concise and concrete. Respond with plain text only.`

// Analyzer implements the driven.Analyzer port using an OpenAI-compatible
// chat completion endpoint with JSON-object response formatting.
type Analyzer struct {
	client *openai.Client
	model  string
}

// NewAnalyzer creates an Analyzer for the given credentials. baseURL is
// optional; when set it overrides the provider endpoint (self-hosted
// gateways, test servers).
func NewAnalyzer(apiKey, baseURL, model string) *Analyzer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &Analyzer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// issuePayload mirrors the JSON shape the model is instructed to produce.
type issuePayload struct {
	FilePath     string `json:"file_path"`
	Line         int    `json:"line"`
	EndLine      int    `json:"end_line"`
	Severity     string `json:"severity"`
	Category     string `json:"category"`
	Message      string `json:"message"`
	Explanation  string `json:"explanation"`
	SuggestedFix string `json:"suggested_fix"`
	CodeSnippet  string `json:"code_snippet"`
}

type analyzeResponse struct {
	Issues []issuePayload `json:"issues"`
}

// AnalyzeFile reviews one file and returns severity-classified findings.
func (a *Analyzer) AnalyzeFile(ctx context.Context, req driven.FileAnalysisRequest) ([]model.CodeIssue, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analyzeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildAnalyzePrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", req.FilePath, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("analyze %s: empty completion", req.FilePath)
	}

	var payload analyzeResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("analyze %s: decode response: %w", req.FilePath, err)
	}

	issues := make([]model.CodeIssue, 0, len(payload.Issues))
	for _, p := range payload.Issues {
		issues = append(issues, mapIssue(p, req.FilePath))
	}

	return issues, nil
}

// Summarize produces the human-readable report text for a finished analysis.
func (a *Analyzer) Summarize(ctx context.Context, commitMessage string, issues []model.CodeIssue) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarizeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildSummarizePrompt(commitMessage, issues)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarize: empty completion")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// mapIssue converts a model response issue to the domain type. Severity is
// normalized: unknown values clamp to info rather than failing the run.
func mapIssue(p issuePayload, filePath string) model.CodeIssue {
	severity, err := model.ParseSeverity(strings.ToLower(strings.TrimSpace(p.Severity)))
	if err != nil {
		severity = model.SeverityInfo
	}

	path := p.FilePath
	if path == "" {
		path = filePath
	}

	endLine := p.EndLine
	if endLine < p.Line {
		endLine = p.Line
	}

	return model.CodeIssue{
		FilePath:     path,
		Line:         p.Line,
		EndLine:      endLine,
		Severity:     severity,
		Category:     p.Category,
		Message:      p.Message,
		Explanation:  p.Explanation,
		SuggestedFix: p.SuggestedFix,
		CodeSnippet:  p.CodeSnippet,
	}
}

func buildAnalyzePrompt(req driven.FileAnalysisRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "File: %s\nLanguage: %s\nCommit message: %s\n", req.FilePath, req.Language, req.CommitMessage)

	if len(req.CustomRules) > 0 {
		b.WriteString("\nProject review rules:\n")
		for _, rule := range req.CustomRules {
			fmt.Fprintf(&b, "- %s\n", rule)
		}
	}

	if len(req.DependentContext) > 0 {
		b.WriteString("\nFiles in this repository that reference this file:\n")
		for _, dep := range req.DependentContext {
			fmt.Fprintf(&b, "- %s\n", dep)
		}
	}

	fmt.Fprintf(&b, "\nFile content:\n```%s\n%s\n```\n", req.Language, req.Content)

	return b.String()
}

func buildSummarizePrompt(commitMessage string, issues []model.CodeIssue) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Commit message: %s\n", commitMessage)

	if len(issues) == 0 {
		b.WriteString("\nThe analysis found no issues. Write a one-sentence clean-report summary.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "\nThe analysis found %d issue(s):\n", len(issues))
	for _, issue := range issues {
		fmt.Fprintf(&b, "- [%s] %s:%d %s\n", issue.Severity, issue.FilePath, issue.Line, issue.Message)
	}
	b.WriteString("\nWrite a short summary paragraph for the report.\n")

	return b.String()
}
