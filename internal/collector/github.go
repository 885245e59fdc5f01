package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
)

const maxPerPage = 100

// Option configures the GitHub source
type Option func(*sourceConfig)

type sourceConfig struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	core       LimiterConfig
	search     LimiterConfig
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *sourceConfig) { c.logger = l }
}

// WithHTTPClient sets the base HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *sourceConfig) { c.httpClient = hc }
}

// WithBaseURL points the client at another API root, such as a GitHub Enterprise host or a test server
func WithBaseURL(u string) Option {
	return func(c *sourceConfig) { c.baseURL = u }
}

// WithLimiterConfigs overrides the core and search rate limiter settings
func WithLimiterConfigs(core, search LimiterConfig) Option {
	return func(c *sourceConfig) {
		c.core = core
		c.search = search
	}
}

// githubSource implements Source using the GitHub REST API
type githubSource struct {
	client *github.Client
	core   RateLimiter
	search RateLimiter
	logger *slog.Logger
}

// NewGitHubSource creates a new GitHub source. An empty token gives an
// unauthenticated client with a much smaller budget.
func NewGitHubSource(ctx context.Context, token string, opts ...Option) (Source, error) {
	cfg := sourceConfig{
		logger: slog.Default(),
		core:   CoreLimiterConfig(),
		search: SearchLimiterConfig(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	hc := cfg.httpClient
	if token != "" {
		if hc != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
		}
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		hc = oauth2.NewClient(ctx, ts)
	} else {
		cfg.logger.Warn("no GitHub token configured, using unauthenticated budget")
		cfg.core.Limit = 60
		cfg.search.Limit = 10
	}

	client := github.NewClient(hc)
	if cfg.baseURL != "" {
		base := cfg.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL %q: %w", cfg.baseURL, err)
		}
		client.BaseURL = u
	}

	return &githubSource{
		client: client,
		core:   NewRateLimiter(cfg.core, cfg.logger),
		search: NewRateLimiter(cfg.search, cfg.logger),
		logger: cfg.logger,
	}, nil
}

// SearchUsers returns one page of users ordered by followers
func (s *githubSource) SearchUsers(ctx context.Context, query string, page, perPage int) (*domain.SearchPage, error) {
	if err := s.search.Wait(ctx); err != nil {
		return nil, err
	}

	opts := &github.SearchOptions{
		Sort:        "followers",
		Order:       "desc",
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}
	result, resp, err := s.client.Search.Users(ctx, query, opts)
	s.updateRateLimitFromResponse(s.search, resp)
	if err != nil {
		return nil, classify("search users", resp, err)
	}

	out := &domain.SearchPage{Total: result.GetTotal()}
	for _, u := range result.Users {
		out.Accounts = append(out.Accounts, toAccount(u))
	}
	return out, nil
}

// GetUser returns a user profile
func (s *githubSource) GetUser(ctx context.Context, username string) (*domain.Account, error) {
	if err := s.core.Wait(ctx); err != nil {
		return nil, err
	}

	user, resp, err := s.client.Users.Get(ctx, username)
	s.updateRateLimitFromResponse(s.core, resp)
	if err != nil {
		return nil, classify("get user "+username, resp, err)
	}
	return toAccount(user), nil
}

// ListRepositories retrieves repositories owned by a user
func (s *githubSource) ListRepositories(ctx context.Context, username string, limit int) ([]*domain.Repository, error) {
	if err := s.core.Wait(ctx); err != nil {
		return nil, err
	}

	var all []*domain.Repository
	opts := &github.RepositoryListOptions{
		Type:        "owner",
		Sort:        "pushed",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: min(limit, maxPerPage)},
	}

	for {
		repos, resp, err := s.client.Repositories.List(ctx, username, opts)
		s.updateRateLimitFromResponse(s.core, resp)
		if err != nil {
			return nil, classify("list repositories for "+username, resp, err)
		}

		for _, repo := range repos {
			all = append(all, toRepository(username, repo))
			if len(all) >= limit {
				return all, nil
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage

		if err := s.core.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return all, nil
}

// GetReadme returns the decoded README content
func (s *githubSource) GetReadme(ctx context.Context, owner, repo string) (string, error) {
	if err := s.core.Wait(ctx); err != nil {
		return "", err
	}

	content, resp, err := s.client.Repositories.GetReadme(ctx, owner, repo, nil)
	s.updateRateLimitFromResponse(s.core, resp)
	if err != nil {
		return "", classify(fmt.Sprintf("get readme for %s/%s", owner, repo), resp, err)
	}

	text, err := content.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode readme for %s/%s: %w", owner, repo, err)
	}
	return text, nil
}

// ListCommits retrieves recent commits for a repository
func (s *githubSource) ListCommits(ctx context.Context, owner, repo, author string, limit int) ([]*domain.Commit, error) {
	if err := s.core.Wait(ctx); err != nil {
		return nil, err
	}

	opts := &github.CommitsListOptions{
		Author:      author,
		ListOptions: github.ListOptions{PerPage: min(limit, maxPerPage)},
	}
	commits, resp, err := s.client.Repositories.ListCommits(ctx, owner, repo, opts)
	s.updateRateLimitFromResponse(s.core, resp)
	if err != nil {
		// Empty repositories answer 409
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, nil
		}
		return nil, classify(fmt.Sprintf("list commits for %s/%s", owner, repo), resp, err)
	}

	out := make([]*domain.Commit, 0, len(commits))
	for _, c := range commits {
		commitAuthor := c.GetCommit().GetAuthor()
		out = append(out, &domain.Commit{
			SHA:         c.GetSHA(),
			Repo:        repo,
			AuthorLogin: c.GetAuthor().GetLogin(),
			AuthorName:  commitAuthor.GetName(),
			AuthorEmail: commitAuthor.GetEmail(),
			Message:     c.GetCommit().GetMessage(),
			Date:        commitAuthor.GetDate().Time,
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListGists retrieves public gists with their file contents. Each gist
// costs one extra request because listings omit content.
func (s *githubSource) ListGists(ctx context.Context, username string, limit int) ([]*domain.Gist, error) {
	if err := s.core.Wait(ctx); err != nil {
		return nil, err
	}

	opts := &github.GistListOptions{ListOptions: github.ListOptions{PerPage: min(limit, maxPerPage)}}
	gists, resp, err := s.client.Gists.List(ctx, username, opts)
	s.updateRateLimitFromResponse(s.core, resp)
	if err != nil {
		return nil, classify("list gists for "+username, resp, err)
	}

	var out []*domain.Gist
	for _, g := range gists {
		if len(out) >= limit {
			break
		}
		if err := s.core.Wait(ctx); err != nil {
			return out, err
		}
		full, resp, err := s.client.Gists.Get(ctx, g.GetID())
		s.updateRateLimitFromResponse(s.core, resp)
		if err != nil {
			err = classify("get gist "+g.GetID(), resp, err)
			if apperrors.IsRateLimited(err) {
				return out, err
			}
			s.logger.DebugContext(ctx, "skipping gist", "gist", g.GetID(), "error", err)
			continue
		}

		gist := &domain.Gist{ID: full.GetID(), Description: full.GetDescription()}
		for name, f := range full.Files {
			gist.Files = append(gist.Files, domain.GistFile{Filename: string(name), Content: f.GetContent()})
		}
		out = append(out, gist)
	}
	return out, nil
}

// ListPushCommits retrieves commits from the user's public push events
func (s *githubSource) ListPushCommits(ctx context.Context, username string, limit int) ([]*domain.PushCommit, error) {
	if err := s.core.Wait(ctx); err != nil {
		return nil, err
	}

	events, resp, err := s.client.Activity.ListEventsPerformedByUser(ctx, username, true, &github.ListOptions{PerPage: min(limit, maxPerPage)})
	s.updateRateLimitFromResponse(s.core, resp)
	if err != nil {
		return nil, classify("list events for "+username, resp, err)
	}

	var out []*domain.PushCommit
	for _, e := range events {
		if e.GetType() != "PushEvent" {
			continue
		}
		payload, err := e.ParsePayload()
		if err != nil {
			continue
		}
		push, ok := payload.(*github.PushEvent)
		if !ok {
			continue
		}
		for _, hc := range push.Commits {
			out = append(out, &domain.PushCommit{
				Repo:        e.GetRepo().GetName(),
				AuthorName:  hc.GetAuthor().GetName(),
				AuthorEmail: hc.GetAuthor().GetEmail(),
				Message:     hc.GetMessage(),
			})
		}
	}
	return out, nil
}

// ListPullRequests retrieves pull requests for a repository
func (s *githubSource) ListPullRequests(ctx context.Context, owner, repo string, limit int) ([]*domain.PullRequest, error) {
	if err := s.core.Wait(ctx); err != nil {
		return nil, err
	}

	opts := &github.PullRequestListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: min(limit, maxPerPage)},
	}
	prs, resp, err := s.client.PullRequests.List(ctx, owner, repo, opts)
	s.updateRateLimitFromResponse(s.core, resp)
	if err != nil {
		return nil, classify(fmt.Sprintf("list pull requests for %s/%s", owner, repo), resp, err)
	}

	out := make([]*domain.PullRequest, 0, len(prs))
	for _, pr := range prs {
		out = append(out, &domain.PullRequest{
			Repo:        repo,
			Number:      pr.GetNumber(),
			AuthorLogin: pr.GetUser().GetLogin(),
			Title:       pr.GetTitle(),
			Body:        pr.GetBody(),
			State:       pr.GetState(),
		})
	}
	return out, nil
}

// updateRateLimitFromResponse updates the limiter from response headers
func (s *githubSource) updateRateLimitFromResponse(rl RateLimiter, resp *github.Response) {
	if resp == nil || resp.Rate.Limit == 0 {
		return
	}
	rl.UpdateLimit(resp.Rate.Remaining, resp.Rate.Reset.Time)
}

// classify maps a go-github error onto the application error taxonomy
func classify(op string, resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return apperrors.NewRateLimitedError(op+": rate limit exhausted", err)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return apperrors.NewRateLimitedError(op+": secondary rate limit", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusForbidden, http.StatusTooManyRequests:
			return apperrors.NewRateLimitedError(op+": forbidden", err)
		case http.StatusNotFound:
			return &apperrors.AppError{Code: apperrors.ErrCodeNotFound, Message: op, Err: err}
		case http.StatusUnauthorized:
			return &apperrors.AppError{Code: apperrors.ErrCodeUnauthorized, Message: op, Err: err}
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func toAccount(u *github.User) *domain.Account {
	return &domain.Account{
		ID:              u.GetID(),
		Login:           u.GetLogin(),
		Type:            u.GetType(),
		Name:            u.GetName(),
		Company:         u.GetCompany(),
		Blog:            u.GetBlog(),
		Location:        u.GetLocation(),
		Email:           u.GetEmail(),
		Bio:             u.GetBio(),
		TwitterUsername: u.GetTwitterUsername(),
		HTMLURL:         u.GetHTMLURL(),
		Hireable:        u.GetHireable(),
		Followers:       u.GetFollowers(),
		Following:       u.GetFollowing(),
		PublicRepos:     u.GetPublicRepos(),
		PublicGists:     u.GetPublicGists(),
	}
}

func toRepository(owner string, repo *github.Repository) *domain.Repository {
	if login := repo.GetOwner().GetLogin(); login != "" {
		owner = login
	}
	return &domain.Repository{
		Owner:       owner,
		Name:        repo.GetName(),
		FullName:    repo.GetFullName(),
		Description: repo.GetDescription(),
		Fork:        repo.GetFork(),
		Stars:       repo.GetStargazersCount(),
		Forks:       repo.GetForksCount(),
		Language:    repo.GetLanguage(),
		PushedAt:    repo.GetPushedAt().Time,
	}
}
