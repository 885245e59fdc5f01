// Package collectortest provides an in-memory collector.Source for tests.
package collectortest

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
)

// Method names accepted by FailOn and Calls
const (
	MethodSearchUsers      = "SearchUsers"
	MethodGetUser          = "GetUser"
	MethodListRepositories = "ListRepositories"
	MethodGetReadme        = "GetReadme"
	MethodListCommits      = "ListCommits"
	MethodListGists        = "ListGists"
	MethodListPushCommits  = "ListPushCommits"
	MethodListPullRequests = "ListPullRequests"
)

// FakeSource is a scripted source. Repository-scoped maps are keyed by
// "owner/repo"; user-scoped maps by login.
type FakeSource struct {
	mu sync.Mutex

	Pages        map[int][]*domain.Account
	Users        map[string]*domain.Account
	Repos        map[string][]*domain.Repository
	Readmes      map[string]string
	Commits      map[string][]*domain.Commit
	Gists        map[string][]*domain.Gist
	PushCommits  map[string][]*domain.PushCommit
	PullRequests map[string][]*domain.PullRequest

	errs    map[string]error
	calls   map[string]int
	queries []string
}

// New returns an empty fake
func New() *FakeSource {
	return &FakeSource{
		Pages:        make(map[int][]*domain.Account),
		Users:        make(map[string]*domain.Account),
		Repos:        make(map[string][]*domain.Repository),
		Readmes:      make(map[string]string),
		Commits:      make(map[string][]*domain.Commit),
		Gists:        make(map[string][]*domain.Gist),
		PushCommits:  make(map[string][]*domain.PushCommit),
		PullRequests: make(map[string][]*domain.PullRequest),
		errs:         make(map[string]error),
		calls:        make(map[string]int),
	}
}

// AddUser registers a profile and its repositories
func (f *FakeSource) AddUser(a *domain.Account, repos ...*domain.Repository) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.Type == "" {
		a.Type = "User"
	}
	f.Users[a.Login] = a
	for _, r := range repos {
		if r.Owner == "" {
			r.Owner = a.Login
		}
	}
	f.Repos[a.Login] = repos
}

// FailOn makes every call of method fail with err
func (f *FakeSource) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

// FailOnKey makes calls of method for one key fail with err. The key is a
// login, "owner/repo", or a page number for SearchUsers.
func (f *FakeSource) FailOnKey(method, key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method+":"+key] = err
}

// Calls returns how many times method was called
func (f *FakeSource) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// CallsFor returns how many times method was called for key
func (f *FakeSource) CallsFor(method, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method+":"+key]
}

// Queries returns the search queries received
func (f *FakeSource) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func (f *FakeSource) record(method, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	f.calls[method+":"+key]++
	if err, ok := f.errs[method+":"+key]; ok {
		return err
	}
	return f.errs[method]
}

// SearchUsers implements collector.Source
func (f *FakeSource) SearchUsers(ctx context.Context, query string, page, perPage int) (*domain.SearchPage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if err := f.record(MethodSearchUsers, strconv.Itoa(page)); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	accounts := f.Pages[page]
	if len(accounts) > perPage {
		accounts = accounts[:perPage]
	}
	total := 0
	for _, p := range f.Pages {
		total += len(p)
	}
	return &domain.SearchPage{Total: total, Accounts: accounts}, nil
}

// GetUser implements collector.Source
func (f *FakeSource) GetUser(_ context.Context, username string) (*domain.Account, error) {
	if err := f.record(MethodGetUser, username); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.Users[username]
	if !ok {
		return nil, apperrors.NewNotFoundError("user " + username)
	}
	cp := *a
	return &cp, nil
}

// ListRepositories implements collector.Source
func (f *FakeSource) ListRepositories(_ context.Context, username string, limit int) ([]*domain.Repository, error) {
	if err := f.record(MethodListRepositories, username); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	repos := f.Repos[username]
	if len(repos) > limit {
		repos = repos[:limit]
	}
	return append([]*domain.Repository(nil), repos...), nil
}

// GetReadme implements collector.Source
func (f *FakeSource) GetReadme(_ context.Context, owner, repo string) (string, error) {
	key := owner + "/" + repo
	if err := f.record(MethodGetReadme, key); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.Readmes[key]
	if !ok {
		return "", apperrors.NewNotFoundError("readme " + key)
	}
	return text, nil
}

// ListCommits implements collector.Source
func (f *FakeSource) ListCommits(_ context.Context, owner, repo, author string, limit int) ([]*domain.Commit, error) {
	key := owner + "/" + repo
	if err := f.record(MethodListCommits, key); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Commit
	for _, c := range f.Commits[key] {
		if author != "" && c.AuthorLogin != "" && !strings.EqualFold(c.AuthorLogin, author) {
			continue
		}
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListGists implements collector.Source
func (f *FakeSource) ListGists(_ context.Context, username string, limit int) ([]*domain.Gist, error) {
	if err := f.record(MethodListGists, username); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	gists := f.Gists[username]
	if len(gists) > limit {
		gists = gists[:limit]
	}
	return gists, nil
}

// ListPushCommits implements collector.Source
func (f *FakeSource) ListPushCommits(_ context.Context, username string, limit int) ([]*domain.PushCommit, error) {
	if err := f.record(MethodListPushCommits, username); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	commits := f.PushCommits[username]
	if len(commits) > limit {
		commits = commits[:limit]
	}
	return commits, nil
}

// ListPullRequests implements collector.Source
func (f *FakeSource) ListPullRequests(_ context.Context, owner, repo string, limit int) ([]*domain.PullRequest, error) {
	key := owner + "/" + repo
	if err := f.record(MethodListPullRequests, key); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	prs := f.PullRequests[key]
	if len(prs) > limit {
		prs = prs[:limit]
	}
	return prs, nil
}

// Repo builds a repository for fixtures
func Repo(name string, stars int, fork bool, language string) *domain.Repository {
	return &domain.Repository{Name: name, Stars: stars, Fork: fork, Language: language, PushedAt: time.Now()}
}
