package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommynabo/TalentScope-sub000/internal/collector/collectortest"
	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
)

func shipper(src *collectortest.FakeSource, now time.Time) *domain.Account {
	a := &domain.Account{
		Login:     "alice",
		Name:      "Alice",
		Email:     "alice@shipper.dev",
		Followers: 1200,
		Location:  "Madrid, Spain",
		Bio:       "Desarrolladora de apps en Flutter",
	}
	src.AddUser(a,
		collectortest.Repo("budget-app", 70, false, "Dart"),
		collectortest.Repo("flutter-kit", 60, false, "Dart"),
		collectortest.Repo("dotfiles", 50, false, "Shell"),
	)
	src.Readmes["alice/budget-app"] = "Get it on https://play.google.com/store/apps/details?id=dev.alice.budget"
	src.Commits["alice/budget-app"] = []*domain.Commit{
		{SHA: "abc", AuthorLogin: "alice", Date: now.Add(-10 * 24 * time.Hour)},
	}
	return a
}

func hitFor(a *domain.Account) *domain.Account {
	return &domain.Account{Login: a.Login, Type: "User"}
}

func TestAnalyzeRejectsLowFollowersBeforeRepoFetch(t *testing.T) {
	src := collectortest.New()
	src.AddUser(&domain.Account{Login: "bob", Followers: 5}, collectortest.Repo("app", 100, false, "Dart"))
	a := New(src)

	res, err := a.Analyze(context.Background(), &domain.Account{Login: "bob"}, domain.FilterCriteria{
		Languages:      []string{"dart"},
		MinFollowers:   10,
		ScoreThreshold: 60,
	})

	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Equal(t, RejectFollowers, res.Reason)
	assert.Equal(t, 0, src.Calls(collectortest.MethodListRepositories))
}

func TestAnalyzeRejectsOrganizationWithoutRequests(t *testing.T) {
	src := collectortest.New()
	a := New(src)

	res, err := a.Analyze(context.Background(), &domain.Account{Login: "acme", Type: "Organization"}, domain.FilterCriteria{})

	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Equal(t, RejectNotIndividual, res.Reason)
	assert.Equal(t, 0, src.Calls(collectortest.MethodGetUser))
}

func TestAnalyzeQualifiedShipper(t *testing.T) {
	now := time.Now()
	src := collectortest.New()
	acct := shipper(src, now)
	a := New(src, WithClock(func() time.Time { return now }))

	res, err := a.Analyze(context.Background(), hitFor(acct), domain.FilterCriteria{
		Languages:             []string{"flutter/dart"},
		MinFollowers:          100,
		RequireAppStoreLink:   true,
		RequireRecentActivity: true,
		RequireSpanishSpeaker: true,
	})

	require.NoError(t, err)
	require.False(t, res.Rejected, res.Detail)
	m := res.Metrics
	assert.Equal(t, 3, m.OriginalRepos)
	assert.Equal(t, 100.0, m.OriginalityRatio)
	assert.Equal(t, 180, m.TotalStars)
	assert.Equal(t, 60.0, m.AverageStars)
	assert.True(t, m.HasAppStoreLink)
	assert.Contains(t, m.AppStoreURL, "play.google.com")
	require.NotNil(t, m.LastCommitAt)
	assert.Equal(t, 10, m.DaysSinceLastCommit)
	assert.Equal(t, 3, m.RecentlyPushedRepos)
	assert.Equal(t, []string{"Dart", "Shell"}, m.Languages)
	assert.Equal(t, 100, res.Score.Normalized)
	assert.GreaterOrEqual(t, res.SpanishConfidence, DefaultSpanishConfidence)

	require.NotNil(t, res.Contact)
	assert.Equal(t, []string{"alice@shipper.dev"}, res.Contact.Emails)
	assert.Equal(t, domain.CandidateIdentity{Username: "alice", Email: "alice@shipper.dev"}, res.Identity())
}

func TestAnalyzeRejectsBootcampProfile(t *testing.T) {
	src := collectortest.New()
	src.AddUser(&domain.Account{Login: "carol", Followers: 50},
		collectortest.Repo("todo-list", 0, true, "JavaScript"),
		collectortest.Repo("calculator", 0, true, "JavaScript"),
		collectortest.Repo("weather-app", 0, true, "JavaScript"),
		collectortest.Repo("hello-world", 0, true, "JavaScript"),
		collectortest.Repo("react-tutorial", 0, true, "JavaScript"),
		collectortest.Repo("portfolio", 3, false, "HTML"),
	)
	a := New(src)

	res, err := a.Analyze(context.Background(), &domain.Account{Login: "carol"}, domain.FilterCriteria{})

	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Equal(t, RejectBootcamp, res.Reason)
	assert.Equal(t, 0, src.Calls(collectortest.MethodGetReadme))
}

func TestAnalyzeRejectsLowOriginality(t *testing.T) {
	src := collectortest.New()
	src.AddUser(&domain.Account{Login: "dave", Followers: 50},
		collectortest.Repo("linux", 0, true, "C"),
		collectortest.Repo("kubernetes", 0, true, "Go"),
		collectortest.Repo("react", 0, true, "JavaScript"),
		collectortest.Repo("mine", 10, false, "Go"),
	)
	a := New(src)

	res, err := a.Analyze(context.Background(), &domain.Account{Login: "dave"}, domain.FilterCriteria{MinOriginalityRatio: 50})

	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Equal(t, RejectOriginality, res.Reason)
	assert.Equal(t, 25.0, res.Metrics.OriginalityRatio)
}

func TestAnalyzeLanguageMatching(t *testing.T) {
	tests := []struct {
		name     string
		required []string
		rejected bool
	}{
		{name: "no requirement", required: nil},
		{name: "exact", required: []string{"go"}},
		{name: "one word of many", required: []string{"rust/go"}},
		{name: "mismatch", required: []string{"kotlin"}, rejected: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := collectortest.New()
			src.AddUser(&domain.Account{Login: "erin", Followers: 50}, collectortest.Repo("server", 5, false, "Go"))
			a := New(src)

			res, err := a.Analyze(context.Background(), &domain.Account{Login: "erin"}, domain.FilterCriteria{
				Languages:      tt.required,
				ScoreThreshold: 1,
			})

			require.NoError(t, err)
			assert.Equal(t, tt.rejected, res.Rejected, res.Detail)
			if tt.rejected {
				assert.Equal(t, RejectLanguage, res.Reason)
			}
		})
	}
}

func TestAnalyzeRecencyAndScoreGates(t *testing.T) {
	src := collectortest.New()
	src.AddUser(&domain.Account{Login: "frank", Followers: 10}, collectortest.Repo("lib", 0, false, "Go"))
	a := New(src)

	res, err := a.Analyze(context.Background(), &domain.Account{Login: "frank"}, domain.FilterCriteria{RequireRecentActivity: true})
	require.NoError(t, err)
	assert.Equal(t, RejectInactive, res.Reason)
	assert.Equal(t, 1000, res.Metrics.DaysSinceLastCommit)

	res, err = a.Analyze(context.Background(), &domain.Account{Login: "frank"}, domain.FilterCriteria{})
	require.NoError(t, err)
	assert.Equal(t, RejectScore, res.Reason)
	assert.Equal(t, 28, res.Score.Normalized)
}

func TestAnalyzeSpanishGate(t *testing.T) {
	src := collectortest.New()
	src.AddUser(&domain.Account{Login: "gina", Followers: 10, Location: "Berlin"}, collectortest.Repo("lib", 0, false, "Go"))
	a := New(src)

	res, err := a.Analyze(context.Background(), &domain.Account{Login: "gina"}, domain.FilterCriteria{RequireSpanishSpeaker: true})

	require.NoError(t, err)
	assert.Equal(t, RejectSpanish, res.Reason)
	assert.Equal(t, 0, src.Calls(collectortest.MethodListRepositories))
}

func TestAnalyzePropagatesRateLimit(t *testing.T) {
	now := time.Now()
	src := collectortest.New()
	acct := shipper(src, now)
	src.FailOn(collectortest.MethodGetReadme, apperrors.NewRateLimitedError("search quota exhausted", nil))
	a := New(src, WithClock(func() time.Time { return now }))

	res, err := a.Analyze(context.Background(), hitFor(acct), domain.FilterCriteria{})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, apperrors.IsRateLimited(err))
}

func TestAnalyzeIgnoresSignalLookupFailures(t *testing.T) {
	now := time.Now()
	src := collectortest.New()
	acct := shipper(src, now)
	src.FailOn(collectortest.MethodListCommits, apperrors.NewInternalError("boom", nil))
	a := New(src, WithClock(func() time.Time { return now }))

	res, err := a.Analyze(context.Background(), hitFor(acct), domain.FilterCriteria{ScoreThreshold: 1})

	require.NoError(t, err)
	assert.False(t, res.Rejected)
	assert.Nil(t, res.Metrics.LastCommitAt)
	assert.True(t, res.Metrics.HasAppStoreLink)
}

func TestAnalyzeUnknownUser(t *testing.T) {
	a := New(collectortest.New())

	_, err := a.Analyze(context.Background(), &domain.Account{Login: "ghost"}, domain.FilterCriteria{})

	assert.True(t, apperrors.IsNotFound(err))
}
