// Package contact discovers contact details for a developer through an
// ordered waterfall of independent research strategies.
package contact

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"

	"github.com/tommynabo/TalentScope-sub000/internal/collector"
	"github.com/tommynabo/TalentScope-sub000/internal/dedup"
	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
)

const (
	defaultCacheTTL      = time.Hour
	defaultWebsiteBudget = 15 * time.Second
	researchRepoLimit    = 30
)

type resultCache = sfcache.TieredCache[string, *domain.ContactResult]

// Engine runs the contact waterfall and caches results per username
type Engine struct {
	source        collector.Source
	strategies    []Strategy
	fetcher       Fetcher
	websiteBudget time.Duration
	ttl           time.Duration
	logger        *slog.Logger
	now           func() time.Time

	mu    sync.RWMutex
	cache *resultCache
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStrategies replaces the default waterfall
func WithStrategies(s ...Strategy) Option {
	return func(e *Engine) { e.strategies = s }
}

// WithFetcher sets the personal-website fetcher used by the default waterfall
func WithFetcher(f Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// WithWebsiteBudget bounds the total time spent on a personal website
func WithWebsiteBudget(d time.Duration) Option {
	return func(e *Engine) { e.websiteBudget = d }
}

// WithCacheTTL sets how long results stay cached
func WithCacheTTL(d time.Duration) Option {
	return func(e *Engine) { e.ttl = d }
}

// NewEngine creates an engine reading from src
func NewEngine(src collector.Source, opts ...Option) (*Engine, error) {
	e := &Engine{
		source:        src,
		websiteBudget: defaultWebsiteBudget,
		ttl:           defaultCacheTTL,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fetcher == nil {
		e.fetcher = NewHTTPFetcher(e.websiteBudget / 3)
	}
	if e.strategies == nil {
		e.strategies = DefaultStrategies(src, e.fetcher, e.websiteBudget)
	}

	cache, err := e.newCache()
	if err != nil {
		return nil, err
	}
	e.cache = cache
	return e, nil
}

func (e *Engine) newCache() (*resultCache, error) {
	cache, err := sfcache.NewTiered[string, *domain.ContactResult](
		null.New[string, *domain.ContactResult](), sfcache.TTL(e.ttl))
	if err != nil {
		return nil, fmt.Errorf("create contact cache: %w", err)
	}
	return cache, nil
}

// Strategies returns the names of the waterfall steps in order
func (e *Engine) Strategies() []string {
	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name()
	}
	return names
}

// ClearCache forgets every cached result
func (e *Engine) ClearCache() error {
	cache, err := e.newCache()
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.cache = cache
	e.mu.Unlock()
	return nil
}

// Research returns contact details for username. repos may be nil, in which
// case the engine lists them itself. Strategy failures are recorded on the
// result; an error is returned only for rate limits, cancellation, or a
// profile lookup failure that is worth retrying.
func (e *Engine) Research(ctx context.Context, username string, repos []*domain.Repository) (*domain.ContactResult, error) {
	e.mu.RLock()
	cache := e.cache
	e.mu.RUnlock()

	res, err := cache.GetSet(ctx, dedup.NormalizeUsername(username), func(ctx context.Context) (*domain.ContactResult, error) {
		return e.research(ctx, username, repos)
	}, e.ttl)
	if err != nil {
		return nil, err
	}
	return res.Clone(), nil
}

func (e *Engine) research(ctx context.Context, username string, repos []*domain.Repository) (*domain.ContactResult, error) {
	result := &domain.ContactResult{Username: username}
	subj := &Subject{Username: username, Repos: repos}

	profile, err := e.source.GetUser(ctx, username)
	switch {
	case err == nil:
		subj.Profile = profile
		result.Location = profile.Location
		result.Company = profile.Company
		result.Bio = profile.Bio
	case aborts(ctx, err):
		return nil, err
	case apperrors.IsNotFound(err):
		result.Errors = append(result.Errors, "profile: "+err.Error())
		return e.finish(result), nil
	default:
		return nil, fmt.Errorf("failed to load profile for %s: %w", username, err)
	}

	if subj.Repos == nil {
		listed, err := e.source.ListRepositories(ctx, username, researchRepoLimit)
		if err != nil {
			if aborts(ctx, err) {
				return nil, err
			}
			result.Errors = append(result.Errors, "repositories: "+err.Error())
		}
		subj.Repos = prioritize(listed)
	}

	acc := &accumulator{r: result}
	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result.Depth++
		partial, err := safeAttempt(ctx, s, subj)
		if err != nil {
			if aborts(ctx, err) {
				return nil, err
			}
			e.logger.DebugContext(ctx, "contact strategy failed", "username", username, "strategy", s.Name(), "error", err)
			result.Errors = append(result.Errors, s.Name()+": "+err.Error())
		}
		acc.merge(s.Name(), partial)
	}

	result = e.finish(result)
	e.logger.InfoContext(ctx, "contact research finished",
		"username", username, "quality", result.Quality, "sources", len(result.Sources), "errors", len(result.Errors))
	return result, nil
}

// aborts reports whether err ends the whole waterfall. A deadline that
// belongs to a single step only fails that step.
func aborts(ctx context.Context, err error) bool {
	if apperrors.IsRateLimited(err) {
		return true
	}
	return apperrors.IsCancelled(err) && ctx.Err() != nil
}

func (e *Engine) finish(r *domain.ContactResult) *domain.ContactResult {
	r.QualityScore, r.Quality = Assess(r, len(e.strategies))
	r.ResearchedAt = e.now()
	return r
}

// prioritize puts original repositories ahead of forks, keeping API order otherwise
func prioritize(repos []*domain.Repository) []*domain.Repository {
	out := make([]*domain.Repository, 0, len(repos))
	out = append(out, repos...)
	sort.SliceStable(out, func(i, j int) bool {
		return !out[i].Fork && out[j].Fork
	})
	return out
}
