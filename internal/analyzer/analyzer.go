// Package analyzer evaluates one candidate against filter criteria,
// running the cheapest checks first so rejected profiles cost as few
// requests as possible.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tommynabo/TalentScope-sub000/internal/collector"
	"github.com/tommynabo/TalentScope-sub000/internal/contact"
	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
	"github.com/tommynabo/TalentScope-sub000/internal/scoring"
)

const (
	repoFetchLimit   = 100
	topRepoLimit     = 10
	readmeScanLimit  = 3
	commitScanLimit  = 2
	noActivityDays   = 1000
	recentPushWindow = 7 * 24 * time.Hour

	// DefaultMaxMonthsSinceLastCommit applies when recent activity is required without a window
	DefaultMaxMonthsSinceLastCommit = 6
)

// Rejection reasons
const (
	RejectNotIndividual = "not_individual"
	RejectFollowers     = "followers"
	RejectPublicRepos   = "public_repos"
	RejectSpanish       = "spanish_speaker"
	RejectOriginality   = "originality"
	RejectLanguage      = "language"
	RejectBootcamp      = "bootcamp_profile"
	RejectStars         = "stars"
	RejectForks         = "forks"
	RejectAppStore      = "app_store_link"
	RejectInactive      = "inactive"
	RejectScore         = "score"
)

// Result is the outcome of analyzing one candidate. Rejected results are
// not errors; Err is reserved for failed requests.
type Result struct {
	Account           *domain.Account
	Metrics           domain.DeveloperMetrics
	Score             domain.ScoreBreakdown
	Contact           *contact.Partial
	SpanishConfidence int
	TopRepos          []*domain.Repository
	Rejected          bool
	Reason            string
	Detail            string
}

// Identity returns the dedup identity discovered during analysis
func (r *Result) Identity() domain.CandidateIdentity {
	id := domain.CandidateIdentity{Username: r.Account.Login}
	if r.Contact != nil {
		if len(r.Contact.Emails) > 0 {
			id.Email = r.Contact.Emails[0]
		}
		if len(r.Contact.ContactURLs) > 0 {
			id.ContactURL = r.Contact.ContactURLs[0]
		}
	}
	return id
}

// Analyzer evaluates candidates
type Analyzer struct {
	source collector.Source
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithClock sets the time source used for recency
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// New creates an Analyzer
func New(src collector.Source, opts ...Option) *Analyzer {
	a := &Analyzer{source: src, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func reject(res *Result, reason, format string, args ...any) *Result {
	res.Rejected = true
	res.Reason = reason
	res.Detail = fmt.Sprintf(format, args...)
	return res
}

// Analyze evaluates hit, a search result, against criteria
func (a *Analyzer) Analyze(ctx context.Context, hit *domain.Account, criteria domain.FilterCriteria) (*Result, error) {
	res := &Result{Account: hit}
	if !hit.IsIndividual() {
		return reject(res, RejectNotIndividual, "account type %s", hit.Type), nil
	}

	account, err := a.source.GetUser(ctx, hit.Login)
	if err != nil {
		return nil, err
	}
	res.Account = account
	m := &res.Metrics
	m.Followers = account.Followers
	m.PublicRepos = account.PublicRepos

	if !account.IsIndividual() {
		return reject(res, RejectNotIndividual, "account type %s", account.Type), nil
	}
	if account.Followers < criteria.MinFollowers {
		return reject(res, RejectFollowers, "%d followers < %d", account.Followers, criteria.MinFollowers), nil
	}
	if account.PublicRepos < criteria.MinPublicRepos {
		return reject(res, RejectPublicRepos, "%d public repos < %d", account.PublicRepos, criteria.MinPublicRepos), nil
	}
	res.SpanishConfidence = SpanishConfidence(account)
	if criteria.RequireSpanishSpeaker {
		threshold := criteria.MinSpanishConfidence
		if threshold <= 0 {
			threshold = DefaultSpanishConfidence
		}
		if res.SpanishConfidence < threshold {
			return reject(res, RejectSpanish, "confidence %d < %d", res.SpanishConfidence, threshold), nil
		}
	}

	repos, err := a.source.ListRepositories(ctx, account.Login, repoFetchLimit)
	if err != nil {
		return nil, err
	}
	originals := make([]*domain.Repository, 0, len(repos))
	for _, r := range repos {
		if !r.Fork {
			originals = append(originals, r)
		}
	}
	m.RepoCount = len(repos)
	m.OriginalRepos = len(originals)
	m.ForkRepos = len(repos) - len(originals)
	m.OriginalityRatio = OriginalityRatio(repos)
	if criteria.MinOriginalityRatio > 0 && m.OriginalityRatio < criteria.MinOriginalityRatio {
		return reject(res, RejectOriginality, "originality %.0f%% < %.0f%%", m.OriginalityRatio, criteria.MinOriginalityRatio), nil
	}

	m.Languages = DetectLanguages(repos)
	if !MatchesLanguages(criteria.Languages, m.Languages) {
		return reject(res, RejectLanguage, "languages %v do not match %v", m.Languages, criteria.Languages), nil
	}

	if IsBootcampProfile(repos) {
		return reject(res, RejectBootcamp, "%d repos dominated by generic forks", len(repos)), nil
	}

	res.TopRepos = topRepos(originals, criteria.ExcludeGenericRepos)
	for _, r := range res.TopRepos {
		m.TopRepos = append(m.TopRepos, domain.RepoSummary{Name: r.Name, Stars: r.Stars, Forks: r.Forks, Language: r.Language})
		m.TotalStars += r.Stars
		m.TotalForks += r.Forks
	}
	if len(res.TopRepos) > 0 {
		m.AverageStars = float64(m.TotalStars) / float64(len(res.TopRepos))
	}
	if m.TotalStars < criteria.MinStars {
		return reject(res, RejectStars, "%d stars < %d", m.TotalStars, criteria.MinStars), nil
	}
	if criteria.MaxStars > 0 && m.TotalStars > criteria.MaxStars {
		return reject(res, RejectStars, "%d stars > %d", m.TotalStars, criteria.MaxStars), nil
	}
	if m.TotalForks < criteria.MinForks {
		return reject(res, RejectForks, "%d forks < %d", m.TotalForks, criteria.MinForks), nil
	}

	now := a.now()
	for _, r := range repos {
		if !r.PushedAt.IsZero() && now.Sub(r.PushedAt) <= recentPushWindow {
			m.RecentlyPushedRepos++
		}
	}

	if err := a.scanSignals(ctx, account.Login, res.TopRepos, m); err != nil {
		return nil, err
	}
	m.DaysSinceLastCommit = noActivityDays
	if m.LastCommitAt != nil {
		m.DaysSinceLastCommit = int(now.Sub(*m.LastCommitAt).Hours() / 24)
	}

	if criteria.RequireAppStoreLink && !m.HasAppStoreLink {
		return reject(res, RejectAppStore, "no app store link in top repositories"), nil
	}
	if criteria.RequireRecentActivity {
		months := criteria.MaxMonthsSinceLastCommit
		if months <= 0 {
			months = DefaultMaxMonthsSinceLastCommit
		}
		if m.DaysSinceLastCommit > months*30 {
			return reject(res, RejectInactive, "last commit %d days ago", m.DaysSinceLastCommit), nil
		}
	}

	res.Score = scoring.Score(*m)
	if res.Score.Normalized < criteria.Threshold() {
		return reject(res, RejectScore, "score %d < %d", res.Score.Normalized, criteria.Threshold()), nil
	}

	res.Contact = contact.FromProfile(account)
	a.logger.DebugContext(ctx, "candidate qualified", "username", account.Login, "score", res.Score.Normalized)
	return res, nil
}

// scanSignals reads READMEs for store links and recent commits for
// activity concurrently. Only rate limits and cancellation fail the scan.
func (a *Analyzer) scanSignals(ctx context.Context, username string, top []*domain.Repository, m *domain.DeveloperMetrics) error {
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	g.Go(func() error {
		for _, r := range top[:min(readmeScanLimit, len(top))] {
			text, err := a.source.GetReadme(gctx, r.Owner, r.Name)
			if err != nil {
				if fatal(err) {
					return err
				}
				continue
			}
			if found, url := DetectAppStore(text); found {
				mu.Lock()
				m.HasAppStoreLink = true
				m.AppStoreURL = url
				mu.Unlock()
				if url != "" {
					return nil
				}
			}
		}
		return nil
	})

	g.Go(func() error {
		for _, r := range top[:min(commitScanLimit, len(top))] {
			commits, err := a.source.ListCommits(gctx, r.Owner, r.Name, username, 1)
			if err != nil {
				if fatal(err) {
					return err
				}
				a.logger.DebugContext(gctx, "commit recency lookup failed", "repo", r.FullName, "error", err)
				continue
			}
			if len(commits) == 0 || commits[0].Date.IsZero() {
				continue
			}
			d := commits[0].Date
			mu.Lock()
			if m.LastCommitAt == nil || d.After(*m.LastCommitAt) {
				m.LastCommitAt = &d
			}
			mu.Unlock()
		}
		return nil
	})

	return g.Wait()
}

func fatal(err error) bool {
	return apperrors.IsRateLimited(err) || apperrors.IsCancelled(err)
}

// topRepos returns up to ten original repositories by stars
func topRepos(originals []*domain.Repository, excludeGeneric bool) []*domain.Repository {
	out := make([]*domain.Repository, 0, len(originals))
	for _, r := range originals {
		if excludeGeneric && IsGenericName(r.Name) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Stars > out[j].Stars })
	if len(out) > topRepoLimit {
		out = out[:topRepoLimit]
	}
	return out
}
