package contact

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/tommynabo/TalentScope-sub000/internal/dedup"
	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
)

// Subject is what a strategy researches
type Subject struct {
	Username string
	Profile  *domain.Account // nil when the profile could not be loaded
	Repos    []*domain.Repository
}

// Partial is what one strategy found
type Partial struct {
	Emails       []string
	ContactURLs  []string
	SocialHandle string
	Website      string
}

// Strategy is one step of the contact waterfall. Attempt may return findings
// together with an error when it only partly failed.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, subj *Subject) (*Partial, error)
}

// safeAttempt runs a strategy and turns a panic into an error
func safeAttempt(ctx context.Context, s Strategy, subj *Subject) (p *Partial, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Attempt(ctx, subj)
}

// accumulator merges partial findings: the first value wins the primary
// field, later distinct values become alternates.
type accumulator struct {
	r *domain.ContactResult
}

func (a *accumulator) merge(source string, p *Partial) {
	if p == nil {
		return
	}

	found := false
	for _, e := range p.Emails {
		found = a.addEmail(e) || found
	}
	for _, u := range p.ContactURLs {
		found = a.addContactURL(u) || found
	}
	if a.r.SocialHandle == "" && p.SocialHandle != "" {
		a.r.SocialHandle = p.SocialHandle
		found = true
	}
	if a.r.Website == "" && p.Website != "" {
		a.r.Website = p.Website
		found = true
	}

	if found && !slices.Contains(a.r.Sources, source) {
		a.r.Sources = append(a.r.Sources, source)
	}
}

func (a *accumulator) addEmail(e string) bool {
	e = strings.ToLower(strings.TrimSpace(e))
	if !IsValidEmail(e) || e == a.r.PrimaryEmail || slices.Contains(a.r.SecondaryEmails, e) {
		return false
	}
	if a.r.PrimaryEmail == "" {
		a.r.PrimaryEmail = e
	} else {
		a.r.SecondaryEmails = append(a.r.SecondaryEmails, e)
	}
	return true
}

func (a *accumulator) addContactURL(u string) bool {
	key := dedup.NormalizeURL(u)
	if key == "" || key == dedup.NormalizeURL(a.r.ContactURL) {
		return false
	}
	for _, alt := range a.r.AlternateURLs {
		if dedup.NormalizeURL(alt) == key {
			return false
		}
	}
	if a.r.ContactURL == "" {
		a.r.ContactURL = u
	} else {
		a.r.AlternateURLs = append(a.r.AlternateURLs, u)
	}
	return true
}

// forEachRepo calls fn for up to limit repositories. Rate limits and
// cancellation stop the loop; other failures are tolerated unless every
// repository failed.
func forEachRepo(ctx context.Context, repos []*domain.Repository, limit int, fn func(*domain.Repository) error) error {
	if len(repos) > limit {
		repos = repos[:limit]
	}

	var failed int
	var firstErr error
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(repo); err != nil {
			if aborts(ctx, err) {
				return err
			}
			if apperrors.IsNotFound(err) {
				continue
			}
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if failed > 0 && failed == len(repos) {
		return fmt.Errorf("%d of %d repositories failed: %w", failed, len(repos), firstErr)
	}
	return nil
}
