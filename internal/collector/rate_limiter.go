package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
)

// RateLimiter manages one GitHub API rate limit bucket
type RateLimiter interface {
	Wait(ctx context.Context) error
	CheckLimit() (remaining int, resetTime time.Time, err error)
	UpdateLimit(remaining int, resetTime time.Time)
}

// LimiterConfig tunes a rate limiter
type LimiterConfig struct {
	Name     string
	Limit    int           // requests per window assumed before the first response
	MinDelay time.Duration // spacing between requests
	Reserve  int           // requests kept in reserve before waiting for reset
	MaxWait  time.Duration // longest wait for a reset; longer waits fail with RATE_LIMITED
}

// CoreLimiterConfig covers the REST endpoints
func CoreLimiterConfig() LimiterConfig {
	return LimiterConfig{Name: "core", Limit: 5000, MinDelay: 100 * time.Millisecond, Reserve: 10, MaxWait: time.Minute}
}

// SearchLimiterConfig covers the search endpoints, which have their own per-minute bucket
func SearchLimiterConfig() LimiterConfig {
	return LimiterConfig{Name: "search", Limit: 30, MinDelay: 2 * time.Second, Reserve: 1, MaxWait: time.Minute}
}

// githubRateLimiter implements RateLimiter for GitHub API
type githubRateLimiter struct {
	mu        sync.Mutex
	cfg       LimiterConfig
	remaining int
	resetTime time.Time
	pacer     *rate.Limiter
	logger    *slog.Logger
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg LimiterConfig, logger *slog.Logger) RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	pace := rate.Inf
	if cfg.MinDelay > 0 {
		pace = rate.Every(cfg.MinDelay)
	}
	return &githubRateLimiter{
		cfg:       cfg,
		remaining: cfg.Limit,
		resetTime: time.Now().Add(time.Hour),
		pacer:     rate.NewLimiter(pace, 1),
		logger:    logger,
	}
}

// Wait blocks until another call is allowed. When the bucket is nearly
// empty it waits for the reset, or fails with RATE_LIMITED if the reset is
// further away than MaxWait.
func (r *githubRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	remaining, reset := r.remaining, r.resetTime
	r.mu.Unlock()

	if remaining <= r.cfg.Reserve {
		wait := time.Until(reset)
		if wait > r.cfg.MaxWait {
			return apperrors.NewRateLimitedError(
				fmt.Sprintf("%s rate limit exhausted (%d remaining, resets in %v)", r.cfg.Name, remaining, wait.Round(time.Second)), nil)
		}
		if wait > 0 {
			r.logger.WarnContext(ctx, "rate limit low, waiting for reset",
				"bucket", r.cfg.Name, "remaining", remaining, "wait", wait.Round(time.Second))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		r.mu.Lock()
		if r.remaining <= r.cfg.Reserve {
			r.remaining = r.cfg.Limit
			r.resetTime = time.Now().Add(time.Hour)
		}
		r.mu.Unlock()
	}

	return r.pacer.Wait(ctx)
}

// CheckLimit returns the current rate limit status
func (r *githubRateLimiter) CheckLimit() (remaining int, resetTime time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining, r.resetTime, nil
}

// UpdateLimit updates the rate limit from API response headers
func (r *githubRateLimiter) UpdateLimit(remaining int, resetTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining = remaining
	r.resetTime = resetTime
}
