package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommynabo/TalentScope-sub000/internal/collector/collectortest"
	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
	"github.com/tommynabo/TalentScope-sub000/internal/events"
	"github.com/tommynabo/TalentScope-sub000/internal/query"
	"github.com/tommynabo/TalentScope-sub000/internal/runctl"
	"github.com/tommynabo/TalentScope-sub000/internal/storage"
	"github.com/tommynabo/TalentScope-sub000/internal/storage/memory"
)

var (
	campaign = domain.Campaign{ID: "camp-1", UserID: "user-1"}
	criteria = domain.FilterCriteria{Languages: []string{"go"}, MinFollowers: 10, ScoreThreshold: 1}
)

func addDev(src *collectortest.FakeSource, page int, login string, followers int) *domain.Account {
	src.Pages[page] = append(src.Pages[page], &domain.Account{Login: login, Type: "User"})
	acct := &domain.Account{Login: login, Followers: followers}
	src.AddUser(acct, collectortest.Repo(login+"-server", 12, false, "Go"))
	return acct
}

func usernames(records []*domain.CandidateRecord) []string {
	var out []string
	for _, r := range records {
		out = append(out, r.Username)
	}
	return out
}

func drain(ch chan events.Event) []events.Event {
	close(ch)
	var out []events.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestScanReturnsFewerThanTargetWithoutError(t *testing.T) {
	src := collectortest.New()
	addDev(src, 1, "ana", 50)
	addDev(src, 1, "low1", 2)
	addDev(src, 2, "ben", 80)
	addDev(src, 2, "low2", 3)
	addDev(src, 3, "cai", 20)
	addDev(src, 3, "low3", 1)
	store := memory.NewMemoryStorage()
	s := New(src, store)

	res, err := s.Scan(context.Background(), criteria, campaign, Options{TargetCount: 5, MaxPages: 3})

	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "ben", "cai"}, usernames(res.Candidates))
	assert.Equal(t, 3, res.Rejected)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, domain.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, domain.StopPageBudget, res.Run.StopReason)
	assert.Equal(t, 3, res.Run.Accepted)
	assert.Equal(t, 6, res.Run.Processed)
	assert.Equal(t, 3, src.Calls(collectortest.MethodSearchUsers))
	assert.Equal(t, []string{query.Build(criteria)}, src.Queries()[:1])

	n, err := store.CountCandidates(context.Background(), campaign)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	run, err := store.GetRun(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StopPageBudget, run.StopReason)
}

func TestScanStopsAtTargetAndEmptyPage(t *testing.T) {
	src := collectortest.New()
	for i := range 4 {
		addDev(src, 1, fmt.Sprintf("dev%d", i), 40)
	}
	s := New(src, nil)

	res, err := s.Scan(context.Background(), criteria, campaign, Options{TargetCount: 2})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 2)
	assert.Equal(t, domain.StopTargetReached, res.Run.StopReason)
	assert.Equal(t, 2, src.Calls(collectortest.MethodGetUser))

	res, err = New(src, nil).Scan(context.Background(), criteria, campaign, Options{TargetCount: 10})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 4)
	assert.Equal(t, domain.StopEmptyPage, res.Run.StopReason)
}

func TestScanNeverReturnsSameUsernameAcrossCalls(t *testing.T) {
	src := collectortest.New()
	for i := range 4 {
		addDev(src, 1, fmt.Sprintf("dev%d", i), 40)
	}
	store := memory.NewMemoryStorage()

	first, err := New(src, store).Scan(context.Background(), criteria, campaign, Options{TargetCount: 2})
	require.NoError(t, err)
	second, err := New(src, store).Scan(context.Background(), criteria, campaign, Options{TargetCount: 2})
	require.NoError(t, err)

	assert.Len(t, first.Candidates, 2)
	assert.Len(t, second.Candidates, 2)
	assert.NotContains(t, usernames(second.Candidates), first.Candidates[0].Username)
	assert.NotContains(t, usernames(second.Candidates), first.Candidates[1].Username)
	assert.Equal(t, 2, second.Skipped)

	other := domain.Campaign{ID: "camp-2", UserID: "user-1"}
	third, err := New(src, store).Scan(context.Background(), criteria, other, Options{TargetCount: 2})
	require.NoError(t, err)
	assert.Equal(t, usernames(first.Candidates), usernames(third.Candidates))
}

func TestScanSkipsCandidateWithKnownEmail(t *testing.T) {
	src := collectortest.New()
	addDev(src, 1, "ana", 40).Email = "shared@dev.io"
	addDev(src, 1, "ana-alt", 40).Email = "Shared@dev.io"
	addDev(src, 1, "ben", 40)
	ch := make(chan events.Event, 100)

	res, err := New(src, nil).Scan(context.Background(), criteria, campaign, Options{TargetCount: 5, Events: ch})

	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "ben"}, usernames(res.Candidates))
	assert.Equal(t, "shared@dev.io", res.Candidates[0].Email)
	assert.Equal(t, 1, res.Skipped)

	skipped := events.Filter(drain(ch), events.CandidateSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, "ana-alt", skipped[0].Username)
}

func TestScanReturnsPartialResultsOnRateLimit(t *testing.T) {
	src := collectortest.New()
	addDev(src, 1, "ana", 40)
	addDev(src, 2, "ben", 40)
	src.FailOnKey(collectortest.MethodSearchUsers, "2", apperrors.NewRateLimitedError("search quota exhausted", nil))
	store := memory.NewMemoryStorage()
	ch := make(chan events.Event, 100)

	res, err := New(src, store).Scan(context.Background(), criteria, campaign, Options{TargetCount: 5, Events: ch})

	require.NoError(t, err)
	assert.Equal(t, []string{"ana"}, usernames(res.Candidates))
	assert.Equal(t, domain.RunStatusCancelled, res.Run.Status)
	assert.Equal(t, domain.StopRateLimited, res.Run.StopReason)
	assert.Len(t, events.Filter(drain(ch), events.RateLimited), 1)

	n, err := store.CountCandidates(context.Background(), campaign)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestScanStopsWhenAnalysisIsRateLimited(t *testing.T) {
	src := collectortest.New()
	addDev(src, 1, "ana", 40)
	addDev(src, 1, "ben", 40)
	addDev(src, 1, "cai", 40)
	src.FailOnKey(collectortest.MethodGetUser, "ben", apperrors.NewRateLimitedError("core quota exhausted", nil))

	res, err := New(src, nil).Scan(context.Background(), criteria, campaign, Options{TargetCount: 5})

	require.NoError(t, err)
	assert.Equal(t, []string{"ana"}, usernames(res.Candidates))
	assert.Equal(t, domain.StopRateLimited, res.Run.StopReason)
	assert.Zero(t, src.CallsFor(collectortest.MethodGetUser, "cai"))
}

func TestScanSkipsFailedCandidates(t *testing.T) {
	src := collectortest.New()
	addDev(src, 1, "ana", 40)
	addDev(src, 1, "ben", 40)
	src.FailOnKey(collectortest.MethodListRepositories, "ana", apperrors.NewInternalError("boom", nil))

	res, err := New(src, nil).Scan(context.Background(), criteria, campaign, Options{TargetCount: 5})

	require.NoError(t, err)
	assert.Equal(t, []string{"ben"}, usernames(res.Candidates))
	assert.Equal(t, 1, res.Failed)
}

func TestScanSearchFailure(t *testing.T) {
	src := collectortest.New()
	src.FailOn(collectortest.MethodSearchUsers, errors.New("connection reset"))

	res, err := New(src, nil).Scan(context.Background(), criteria, campaign, Options{TargetCount: 5})

	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, domain.RunStatusFailed, res.Run.Status)
	assert.Equal(t, domain.StopSearchFailed, res.Run.StopReason)
}

func TestScanCancelled(t *testing.T) {
	src := collectortest.New()
	addDev(src, 1, "ana", 40)
	gate := runctl.New()
	gate.Cancel()

	res, err := New(src, nil).Scan(context.Background(), criteria, campaign, Options{TargetCount: 5, Gate: gate})

	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, domain.StopCancelled, res.Run.StopReason)
	assert.Zero(t, src.Calls(collectortest.MethodSearchUsers))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err = New(src, nil).Scan(ctx, criteria, campaign, Options{TargetCount: 5})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCancelled, res.Run.Status)
}

type brokenStore struct {
	storage.Storage
}

func (brokenStore) LoadDeduplicationSets(context.Context, domain.Campaign) (*domain.DedupSets, error) {
	return nil, errors.New("database is locked")
}

func (brokenStore) SaveCandidates(context.Context, domain.Campaign, []*domain.CandidateRecord) error {
	return errors.New("database is locked")
}

func (brokenStore) SaveRun(context.Context, *domain.PipelineRun) error {
	return errors.New("database is locked")
}

func TestScanSurvivesStorageFailures(t *testing.T) {
	src := collectortest.New()
	addDev(src, 1, "ana", 40)

	res, err := New(src, brokenStore{}).Scan(context.Background(), criteria, campaign, Options{TargetCount: 1})

	require.NoError(t, err)
	assert.Equal(t, []string{"ana"}, usernames(res.Candidates))
	assert.Equal(t, campaign.ID, res.Candidates[0].CampaignID)
	assert.NotEmpty(t, res.Candidates[0].ID)
}

func TestScanRejectsInvalidTarget(t *testing.T) {
	_, err := New(collectortest.New(), nil).Scan(context.Background(), criteria, campaign, Options{})

	assert.Equal(t, apperrors.ErrCodeBadRequest, apperrors.CodeOf(err))
}
