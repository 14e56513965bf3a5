package driven

import "context"

// CommitFile is one changed file within a commit, as reported by the
// repository host.
type CommitFile struct {
	Path string
	// Status is the host's change kind: "added", "modified", "removed",
	// "renamed".
	Status string
}

// Commit is the metadata and changed-file list for a single commit.
type Commit struct {
	SHA     string
	Message string
	Author  string
	Files   []CommitFile
}

// RepoHost defines the driven port for the repository hosting API. All
// operations are bearer-token authenticated against a single host account.
type RepoHost interface {
	// LookupRepoID resolves a repository's immutable numeric id. Webhook
	// payloads are matched to projects by this id, not by name.
	LookupRepoID(ctx context.Context, repoFullName string) (int64, error)

	// FetchCommit returns commit metadata and its changed-file list.
	FetchCommit(ctx context.Context, repoFullName, sha string) (*Commit, error)

	// FetchFileContent returns the decoded content of a file at the given ref.
	FetchFileContent(ctx context.Context, repoFullName, path, ref string) (string, error)

	// SearchDependents performs a best-effort code search for files in the
	// repository that reference the given file. Callers treat failures as
	// soft: the result only enriches analysis context.
	SearchDependents(ctx context.Context, repoFullName, path string) ([]string, error)

	// CreateWebhook installs a push + pull_request webhook on the repository
	// and returns the host's hook id.
	CreateWebhook(ctx context.Context, repoFullName, callbackURL, secret string) (int64, error)

	// DeleteWebhook removes a previously installed hook.
	DeleteWebhook(ctx context.Context, repoFullName string, hookID int64) error

	// PostPRComment posts a comment on a pull request via the issues API.
	PostPRComment(ctx context.Context, repoFullName string, prNumber int, body string) error
}
