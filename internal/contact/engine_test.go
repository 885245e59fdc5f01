package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommynabo/TalentScope-sub000/internal/collector/collectortest"
	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
)

type stubFetcher struct {
	pages map[string]*Page
}

func (s stubFetcher) Fetch(_ context.Context, pageURL string) (*Page, error) {
	if p, ok := s.pages[pageURL]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("fetch %s: status 404", pageURL)
}

type failingStrategy struct {
	name  string
	panic bool
}

func (f failingStrategy) Name() string { return f.name }

func (f failingStrategy) Attempt(context.Context, *Subject) (*Partial, error) {
	if f.panic {
		panic("boom")
	}
	return nil, errors.New("upstream unavailable")
}

func shipperSource() *collectortest.FakeSource {
	src := collectortest.New()
	src.AddUser(&domain.Account{
		Login:           "alice",
		Bio:             "Mobile dev. linkedin.com/in/alice-dev",
		Blog:            "alice.dev",
		Location:        "Madrid",
		TwitterUsername: "alice_ships",
	},
		collectortest.Repo("app", 40, false, "Dart"),
		collectortest.Repo("lib", 10, false, "Dart"),
		collectortest.Repo("upstream", 0, true, "Go"),
	)
	src.Commits["alice/app"] = []*domain.Commit{{AuthorLogin: "alice", AuthorEmail: "alice@shipper.dev"}}
	src.Readmes["alice/lib"] = "Questions? hello@alice.dev"
	return src
}

func TestResearchFullWaterfall(t *testing.T) {
	src := shipperSource()
	fetcher := stubFetcher{pages: map[string]*Page{
		"https://alice.dev": {Emails: []string{"alice@shipper.dev"}},
	}}
	engine, err := NewEngine(src, WithFetcher(fetcher))
	require.NoError(t, err)

	res, err := engine.Research(context.Background(), "alice", nil)
	require.NoError(t, err)

	assert.Equal(t, "alice@shipper.dev", res.PrimaryEmail)
	assert.Equal(t, []string{"hello@alice.dev"}, res.SecondaryEmails)
	assert.Equal(t, "https://www.linkedin.com/in/alice-dev", res.ContactURL)
	assert.Equal(t, "alice_ships", res.SocialHandle)
	assert.Equal(t, "https://alice.dev", res.Website)
	assert.Equal(t, "Madrid", res.Location)
	assert.Equal(t, []string{SourceCommits, SourceProfile, SourceReadme}, res.Sources)
	assert.Equal(t, 7, res.Depth)
	assert.Empty(t, res.Errors)
	assert.Equal(t, domain.QualityExcellent, res.Quality)
	assert.InDelta(t, 1.0, res.QualityScore, 1e-9)
	assert.False(t, res.ResearchedAt.IsZero())
}

func TestResearchEveryStrategyFails(t *testing.T) {
	src := collectortest.New()
	src.AddUser(&domain.Account{Login: "bob"})

	var strategies []Strategy
	for i := range 7 {
		strategies = append(strategies, failingStrategy{name: fmt.Sprintf("s%d", i), panic: i == 3})
	}
	engine, err := NewEngine(src, WithStrategies(strategies...))
	require.NoError(t, err)

	res, err := engine.Research(context.Background(), "bob", nil)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, domain.QualityPoor, res.Quality)
	assert.Len(t, res.Errors, 7)
	assert.Contains(t, res.Errors[3], "panic")
	assert.Empty(t, res.PrimaryEmail)
	assert.Empty(t, res.Sources)
}

func TestResearchSourceFailuresAreRecorded(t *testing.T) {
	src := collectortest.New()
	src.AddUser(&domain.Account{Login: "carol"}, collectortest.Repo("tool", 3, false, "Go"))
	boom := errors.New("connection reset")
	for _, m := range []string{
		collectortest.MethodListCommits,
		collectortest.MethodGetReadme,
		collectortest.MethodListGists,
		collectortest.MethodListPushCommits,
		collectortest.MethodListPullRequests,
	} {
		src.FailOn(m, boom)
	}

	engine, err := NewEngine(src, WithFetcher(NopFetcher{}))
	require.NoError(t, err)

	res, err := engine.Research(context.Background(), "carol", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.QualityPoor, res.Quality)
	assert.Len(t, res.Errors, 5)
	assert.Equal(t, 7, res.Depth)
}

func TestResearchCachesPerUsername(t *testing.T) {
	src := shipperSource()
	engine, err := NewEngine(src, WithFetcher(NopFetcher{}))
	require.NoError(t, err)

	first, err := engine.Research(context.Background(), "alice", nil)
	require.NoError(t, err)
	second, err := engine.Research(context.Background(), "ALICE", nil)
	require.NoError(t, err)

	assert.Equal(t, first.PrimaryEmail, second.PrimaryEmail)
	assert.Equal(t, 1, src.Calls(collectortest.MethodGetUser))

	second.SecondaryEmails = append(second.SecondaryEmails, "mutated@copy.dev")
	third, err := engine.Research(context.Background(), "alice", nil)
	require.NoError(t, err)
	assert.NotContains(t, third.SecondaryEmails, "mutated@copy.dev")

	require.NoError(t, engine.ClearCache())
	_, err = engine.Research(context.Background(), "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls(collectortest.MethodGetUser))
}

func TestResearchRateLimitAborts(t *testing.T) {
	src := shipperSource()
	src.FailOn(collectortest.MethodListCommits, apperrors.NewRateLimitedError("core exhausted", nil))
	engine, err := NewEngine(src, WithFetcher(NopFetcher{}))
	require.NoError(t, err)

	_, err = engine.Research(context.Background(), "alice", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimited(err))
	assert.Equal(t, 0, src.Calls(collectortest.MethodGetReadme))
}

func TestResearchContinuesAfterSlowWebsite(t *testing.T) {
	blog := slowSite(t)
	src := collectortest.New()
	src.AddUser(&domain.Account{Login: "dana", Blog: blog.URL}, collectortest.Repo("notes", 5, false, "Go"))
	src.Readmes["dana/notes"] = "Contact: dana@builds.dev"
	engine, err := NewEngine(src, WithFetcher(NewHTTPFetcher(5*time.Second)), WithWebsiteBudget(300*time.Millisecond))
	require.NoError(t, err)

	res, err := engine.Research(context.Background(), "dana", nil)

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "dana@builds.dev", res.PrimaryEmail)
	assert.Contains(t, res.Sources, SourceReadme)
	assert.Equal(t, 7, res.Depth)
	assert.Contains(t, strings.Join(res.Errors, "\n"), SourceWebsite+": ")
}

func TestResearchProfileErrors(t *testing.T) {
	src := collectortest.New()
	src.FailOnKey(collectortest.MethodGetUser, "flaky", errors.New("timeout"))
	engine, err := NewEngine(src, WithFetcher(NopFetcher{}))
	require.NoError(t, err)

	res, err := engine.Research(context.Background(), "ghost", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.QualityPoor, res.Quality)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "profile")

	_, err = engine.Research(context.Background(), "flaky", nil)
	require.Error(t, err)
	assert.False(t, apperrors.IsRateLimited(err))
}

func TestResearchUsesProvidedRepos(t *testing.T) {
	src := shipperSource()
	engine, err := NewEngine(src, WithFetcher(NopFetcher{}))
	require.NoError(t, err)

	repos := []*domain.Repository{{Owner: "alice", Name: "app"}}
	res, err := engine.Research(context.Background(), "alice", repos)
	require.NoError(t, err)
	assert.Equal(t, "alice@shipper.dev", res.PrimaryEmail)
	assert.Equal(t, 0, src.Calls(collectortest.MethodListRepositories))
}

func TestStrategiesOrder(t *testing.T) {
	engine, err := NewEngine(collectortest.New(), WithFetcher(NopFetcher{}))
	require.NoError(t, err)
	assert.Equal(t, []string{
		SourceCommits, SourceProfile, SourceWebsite, SourceReadme, SourceGists, SourceEvents, SourcePulls,
	}, engine.Strategies())
}

func TestAssessTiers(t *testing.T) {
	tests := []struct {
		name string
		r    domain.ContactResult
		want domain.QualityTier
	}{
		{"nothing", domain.ContactResult{}, domain.QualityPoor},
		{"email with one source", domain.ContactResult{PrimaryEmail: "a@b.io", Sources: []string{"commits"}, Depth: 7}, domain.QualityFair},
		{"email and social", domain.ContactResult{PrimaryEmail: "a@b.io", SocialHandle: "a", Depth: 7}, domain.QualityGood},
		{"contact url and website", domain.ContactResult{ContactURL: "u", Website: "w"}, domain.QualityFair},
		{"email and url from three sources", domain.ContactResult{PrimaryEmail: "a@b.io", ContactURL: "u", Sources: []string{"a", "b", "c"}, Depth: 7}, domain.QualityExcellent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, tier := Assess(&tt.r, 7)
			assert.Equal(t, tt.want, tier)
		})
	}
}
