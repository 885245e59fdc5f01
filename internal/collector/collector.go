package collector

import (
	"context"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
)

// Source is the read-only code-hosting API used by the pipeline.
// All methods share one request budget; a RATE_LIMITED error means stop.
type Source interface {
	// SearchUsers returns one page of users matching query, ordered by followers descending
	SearchUsers(ctx context.Context, query string, page, perPage int) (*domain.SearchPage, error)

	// GetUser returns the profile of username
	GetUser(ctx context.Context, username string) (*domain.Account, error)

	// ListRepositories returns up to limit repositories owned by username, most recently pushed first
	ListRepositories(ctx context.Context, username string, limit int) ([]*domain.Repository, error)

	// GetReadme returns the decoded README of owner/repo
	GetReadme(ctx context.Context, owner, repo string) (string, error)

	// ListCommits returns up to limit commits of owner/repo, filtered by author when set
	ListCommits(ctx context.Context, owner, repo, author string, limit int) ([]*domain.Commit, error)

	// ListGists returns up to limit public gists of username with file contents
	ListGists(ctx context.Context, username string, limit int) ([]*domain.Gist, error)

	// ListPushCommits returns commits carried by the public push events of username
	ListPushCommits(ctx context.Context, username string, limit int) ([]*domain.PushCommit, error)

	// ListPullRequests returns up to limit pull requests of owner/repo in any state
	ListPullRequests(ctx context.Context, owner, repo string, limit int) ([]*domain.PullRequest, error)
}
