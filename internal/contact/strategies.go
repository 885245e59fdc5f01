package contact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tommynabo/TalentScope-sub000/internal/collector"
	"github.com/tommynabo/TalentScope-sub000/internal/domain"
)

// Strategy names, also used as source labels
const (
	SourceCommits = "commits"
	SourceProfile = "profile"
	SourceWebsite = "website"
	SourceReadme  = "readme"
	SourceGists   = "gists"
	SourceEvents  = "events"
	SourcePulls   = "pull_requests"
)

const (
	commitRepoLimit = 10
	commitsPerRepo  = 30
	readmeRepoLimit = 5
	gistLimit       = 5
	eventLimit      = 30
	pullRepoLimit   = 3
	pullsPerRepo    = 10
)

// DefaultStrategies returns the standard waterfall in order
func DefaultStrategies(src collector.Source, fetcher Fetcher, websiteBudget time.Duration) []Strategy {
	return []Strategy{
		&commitStrategy{src: src},
		profileStrategy{},
		&websiteStrategy{fetcher: fetcher, budget: websiteBudget},
		&readmeStrategy{src: src},
		&gistStrategy{src: src},
		&eventStrategy{src: src},
		&pullRequestStrategy{src: src},
	}
}

// commitStrategy reads author emails from the candidate's own commits
type commitStrategy struct {
	src collector.Source
}

func (s *commitStrategy) Name() string { return SourceCommits }

func (s *commitStrategy) Attempt(ctx context.Context, subj *Subject) (*Partial, error) {
	p := &Partial{}
	err := forEachRepo(ctx, subj.Repos, commitRepoLimit, func(repo *domain.Repository) error {
		commits, err := s.src.ListCommits(ctx, repo.Owner, repo.Name, subj.Username, commitsPerRepo)
		if err != nil {
			return err
		}
		for _, c := range commits {
			if c.AuthorLogin != "" && !strings.EqualFold(c.AuthorLogin, subj.Username) {
				continue
			}
			if IsValidEmail(c.AuthorEmail) {
				p.Emails = append(p.Emails, c.AuthorEmail)
			}
		}
		return nil
	})
	return p, err
}

// profileStrategy extracts contact details from the profile fields
type profileStrategy struct{}

func (profileStrategy) Name() string { return SourceProfile }

func (profileStrategy) Attempt(_ context.Context, subj *Subject) (*Partial, error) {
	if subj.Profile == nil {
		return nil, fmt.Errorf("profile unavailable")
	}
	return FromProfile(subj.Profile), nil
}

// FromProfile extracts what the profile itself reveals, without any request
func FromProfile(a *domain.Account) *Partial {
	text := strings.Join([]string{a.Bio, a.Name, a.Company, a.Location, a.Blog}, "\n")

	p := &Partial{}
	if IsValidEmail(a.Email) {
		p.Emails = append(p.Emails, strings.ToLower(a.Email))
	}
	p.Emails = append(p.Emails, ExtractEmails(text)...)
	p.ContactURLs = ExtractContactURLs(text)

	p.SocialHandle = a.TwitterUsername
	if p.SocialHandle == "" {
		p.SocialHandle = ExtractSocialHandle(text)
	}
	p.Website = NormalizeWebsite(a.Blog)
	return p
}

// readmeStrategy scans repository READMEs
type readmeStrategy struct {
	src collector.Source
}

func (s *readmeStrategy) Name() string { return SourceReadme }

func (s *readmeStrategy) Attempt(ctx context.Context, subj *Subject) (*Partial, error) {
	p := &Partial{}
	err := forEachRepo(ctx, originals(subj.Repos), readmeRepoLimit, func(repo *domain.Repository) error {
		text, err := s.src.GetReadme(ctx, repo.Owner, repo.Name)
		if err != nil {
			return err
		}
		collectText(p, text)
		return nil
	})
	return p, err
}

// gistStrategy scans public gist descriptions and files
type gistStrategy struct {
	src collector.Source
}

func (s *gistStrategy) Name() string { return SourceGists }

func (s *gistStrategy) Attempt(ctx context.Context, subj *Subject) (*Partial, error) {
	gists, err := s.src.ListGists(ctx, subj.Username, gistLimit)
	p := &Partial{}
	for _, g := range gists {
		collectText(p, g.Description)
		for _, f := range g.Files {
			collectText(p, f.Content)
		}
	}
	return p, err
}

// eventStrategy reads commit authors from public push events
type eventStrategy struct {
	src collector.Source
}

func (s *eventStrategy) Name() string { return SourceEvents }

func (s *eventStrategy) Attempt(ctx context.Context, subj *Subject) (*Partial, error) {
	commits, err := s.src.ListPushCommits(ctx, subj.Username, eventLimit)
	if err != nil {
		return nil, err
	}
	p := &Partial{}
	for _, c := range commits {
		if IsValidEmail(c.AuthorEmail) {
			p.Emails = append(p.Emails, c.AuthorEmail)
		}
	}
	return p, nil
}

// pullRequestStrategy scans the candidate's pull request descriptions
type pullRequestStrategy struct {
	src collector.Source
}

func (s *pullRequestStrategy) Name() string { return SourcePulls }

func (s *pullRequestStrategy) Attempt(ctx context.Context, subj *Subject) (*Partial, error) {
	p := &Partial{}
	err := forEachRepo(ctx, originals(subj.Repos), pullRepoLimit, func(repo *domain.Repository) error {
		prs, err := s.src.ListPullRequests(ctx, repo.Owner, repo.Name, pullsPerRepo)
		if err != nil {
			return err
		}
		for _, pr := range prs {
			if strings.EqualFold(pr.AuthorLogin, subj.Username) {
				collectText(p, pr.Title+"\n"+pr.Body)
			}
		}
		return nil
	})
	return p, err
}

func collectText(p *Partial, text string) {
	if text == "" {
		return
	}
	p.Emails = append(p.Emails, ExtractEmails(text)...)
	p.ContactURLs = append(p.ContactURLs, ExtractContactURLs(text)...)
	if p.SocialHandle == "" {
		p.SocialHandle = ExtractSocialHandle(text)
	}
}

func originals(repos []*domain.Repository) []*domain.Repository {
	out := make([]*domain.Repository, 0, len(repos))
	for _, r := range repos {
		if !r.Fork {
			out = append(out, r)
		}
	}
	return out
}
