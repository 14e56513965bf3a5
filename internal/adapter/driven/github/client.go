// Package github implements the RepoHost port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ghostfounder/ghostreview/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoHost = (*Client)(nil)

// maxDependents caps the best-effort code-search result size. The dependent
// list only enriches analyzer context, so a handful of paths is enough.
const maxDependents = 10

// Client implements the driven.RepoHost port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// LookupRepoID resolves a repository's immutable numeric id.
func (c *Client) LookupRepoID(ctx context.Context, repoFullName string) (int64, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return 0, err
	}

	r, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return 0, fmt.Errorf("fetching repository %s: %w", repoFullName, err)
	}

	logRateLimit(resp, repoFullName+"/repo", 0, 1)

	return r.GetID(), nil
}

// FetchCommit returns commit metadata and its changed-file list. File lists
// are paginated for large commits; pagination is handled automatically.
func (c *Client) FetchCommit(ctx context.Context, repoFullName, sha string) (*driven.Commit, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListOptions{PerPage: 100}
	var commit *driven.Commit

	for {
		rc, resp, err := c.gh.Repositories.GetCommit(ctx, owner, repo, sha, opts)
		if err != nil {
			return nil, fmt.Errorf("fetching commit %s@%s (page %d): %w", repoFullName, sha, opts.Page, err)
		}

		logRateLimit(resp, repoFullName+"/commit", opts.Page, len(rc.Files))

		if commit == nil {
			author := rc.GetAuthor().GetLogin()
			if author == "" {
				author = rc.GetCommit().GetAuthor().GetName()
			}
			commit = &driven.Commit{
				SHA:     rc.GetSHA(),
				Message: rc.GetCommit().GetMessage(),
				Author:  author,
			}
		}

		for _, f := range rc.Files {
			commit.Files = append(commit.Files, driven.CommitFile{
				Path:   f.GetFilename(),
				Status: f.GetStatus(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return commit, nil
}

// FetchFileContent returns the decoded content of a file at the given ref.
func (c *Client) FetchFileContent(ctx context.Context, repoFullName, path, ref string) (string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", err
	}

	file, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, path,
		&gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", fmt.Errorf("fetching %s/%s@%s: %w", repoFullName, path, ref, err)
	}
	if file == nil {
		return "", fmt.Errorf("fetching %s/%s@%s: path is a directory", repoFullName, path, ref)
	}

	logRateLimit(resp, repoFullName+"/contents", 0, 1)

	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding %s/%s@%s: %w", repoFullName, path, ref, err)
	}

	return content, nil
}

// SearchDependents performs a best-effort code search for files referencing
// the given file, returning at most maxDependents paths. Callers treat
// failures as soft.
func (c *Client) SearchDependents(ctx context.Context, repoFullName, path string) ([]string, error) {
	base := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		base = path[idx+1:]
	}
	// Strip the extension so "userstore.go" also matches "userstore" imports.
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}

	query := fmt.Sprintf("%q repo:%s", base, repoFullName)
	result, resp, err := c.gh.Search.Code(ctx, query, &gh.SearchOptions{
		ListOptions: gh.ListOptions{PerPage: maxDependents},
	})
	if err != nil {
		return nil, fmt.Errorf("searching dependents of %s/%s: %w", repoFullName, path, err)
	}

	logRateLimit(resp, repoFullName+"/search", 0, len(result.CodeResults))

	var paths []string
	for _, r := range result.CodeResults {
		p := r.GetPath()
		if p == "" || p == path {
			continue
		}
		paths = append(paths, p)
		if len(paths) == maxDependents {
			break
		}
	}

	return paths, nil
}

// CreateWebhook installs a push + pull_request webhook on the repository and
// returns GitHub's hook id.
func (c *Client) CreateWebhook(ctx context.Context, repoFullName, callbackURL, secret string) (int64, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return 0, err
	}

	hook := &gh.Hook{
		Events: []string{"push", "pull_request"},
		Active: gh.Ptr(true),
		Config: &gh.HookConfig{
			URL:         gh.Ptr(callbackURL),
			ContentType: gh.Ptr("json"),
			Secret:      gh.Ptr(secret),
			InsecureSSL: gh.Ptr("0"),
		},
	}

	created, resp, err := c.gh.Repositories.CreateHook(ctx, owner, repo, hook)
	if err != nil {
		return 0, fmt.Errorf("creating webhook on %s: %w", repoFullName, err)
	}

	logRateLimit(resp, repoFullName+"/hooks", 0, 1)

	return created.GetID(), nil
}

// DeleteWebhook removes a previously installed hook. A 404 is returned as an
// error; callers performing best-effort teardown log and discard it.
func (c *Client) DeleteWebhook(ctx context.Context, repoFullName string, hookID int64) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	if _, err := c.gh.Repositories.DeleteHook(ctx, owner, repo, hookID); err != nil {
		return fmt.Errorf("deleting webhook %d on %s: %w", hookID, repoFullName, err)
	}

	return nil
}

// PostPRComment posts a comment on a pull request via the issues API.
func (c *Client) PostPRComment(ctx context.Context, repoFullName string, prNumber int, body string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, resp, err := c.gh.Issues.CreateComment(ctx, owner, repo, prNumber, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("posting comment on %s#%d: %w", repoFullName, prNumber, err)
	}

	logRateLimit(resp, repoFullName+"/comments", 0, 1)

	return nil
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
