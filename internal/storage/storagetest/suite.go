// Package storagetest holds the behavior every Storage adapter must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
	"github.com/tommynabo/TalentScope-sub000/internal/storage"
)

var ignoreTimestamps = cmpopts.IgnoreFields(domain.CandidateRecord{}, "CreatedAt", "UpdatedAt")

func record(username string, score int) *domain.CandidateRecord {
	return &domain.CandidateRecord{
		ID:       "id-" + username,
		Username: username,
		Name:     "Dev " + username,
		Metrics: domain.DeveloperMetrics{
			Followers: 120,
			Languages: []string{"Go", "Dart"},
			TopRepos:  []domain.RepoSummary{{Name: "lib", Stars: 30}},
		},
		Score: domain.ScoreBreakdown{Total: score, Normalized: score},
	}
}

// Run exercises store against the shared contract
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	t.Run("save and load", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c := domain.Campaign{ID: "camp-1", UserID: "user-1"}

		low := record("low", 61)
		high := record("High", 90)
		high.Email = "high@dev.io"
		high.Contact = &domain.ContactResult{Username: "High", PrimaryEmail: "high@dev.io", Quality: domain.QualityGood}
		require.NoError(t, s.SaveCandidates(ctx, c, []*domain.CandidateRecord{low, high}))

		got, err := s.LoadCandidates(ctx, c)
		require.NoError(t, err)
		require.Len(t, got, 2)

		want := high.Clone()
		want.CampaignID, want.UserID = c.ID, c.UserID
		if diff := cmp.Diff(want, got[0], ignoreTimestamps); diff != "" {
			t.Errorf("first record mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, "low", got[1].Username)
		assert.False(t, got[0].CreatedAt.IsZero())
		assert.Empty(t, low.CampaignID, "input records must not be mutated")
	})

	t.Run("save is an idempotent upsert by username", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c := domain.Campaign{ID: "camp-1", UserID: "user-1"}

		require.NoError(t, s.SaveCandidates(ctx, c, []*domain.CandidateRecord{record("alice", 70)}))
		require.NoError(t, s.SaveCandidates(ctx, c, []*domain.CandidateRecord{record("alice", 70)}))
		updated := record("ALICE", 75)
		updated.ID = "other-id"
		updated.Email = "alice@dev.io"
		require.NoError(t, s.SaveCandidates(ctx, c, []*domain.CandidateRecord{updated}))

		n, err := s.CountCandidates(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.LoadCandidates(ctx, c)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "id-alice", got[0].ID)
		assert.Equal(t, "alice@dev.io", got[0].Email)
		assert.Equal(t, 75, got[0].Score.Normalized)
	})

	t.Run("campaigns are isolated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := domain.Campaign{ID: "camp-a", UserID: "user-1"}
		b := domain.Campaign{ID: "camp-a", UserID: "user-2"}

		require.NoError(t, s.SaveCandidates(ctx, a, []*domain.CandidateRecord{record("alice", 70)}))

		got, err := s.LoadCandidates(ctx, b)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("deduplication sets", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c := domain.Campaign{ID: "camp-1", UserID: "user-1"}

		withEmail := record("alice", 70)
		withEmail.Email = "alice@dev.io"
		withURL := record("bob", 65)
		withURL.ContactURL = "https://www.linkedin.com/in/bob"
		require.NoError(t, s.SaveCandidates(ctx, c, []*domain.CandidateRecord{withEmail, withURL, record("carol", 62)}))

		sets, err := s.LoadDeduplicationSets(ctx, c)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, sets.Usernames)
		assert.Equal(t, []string{"alice@dev.io"}, sets.Emails)
		assert.Equal(t, []string{"https://www.linkedin.com/in/bob"}, sets.ContactURLs)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c := domain.Campaign{ID: "camp-1", UserID: "user-1"}
		require.NoError(t, s.SaveCandidates(ctx, c, []*domain.CandidateRecord{record("alice", 70)}))

		require.NoError(t, s.DeleteCandidate(ctx, c, "Alice"))
		err := s.DeleteCandidate(ctx, c, "alice")
		assert.True(t, apperrors.IsNotFound(err))

		n, err := s.CountCandidates(ctx, c)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("runs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		run := domain.NewPipelineRun(domain.RunKindScan, domain.Campaign{ID: "camp-1", UserID: "user-1"})
		require.NoError(t, s.SaveRun(ctx, run))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatusRunning, got.Status)
		assert.Nil(t, got.FinishedAt)

		run.Accepted = 3
		run.Finish(domain.RunStatusCompleted, domain.StopTargetReached)
		require.NoError(t, s.SaveRun(ctx, run))

		got, err = s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunKindScan, got.Kind)
		assert.Equal(t, domain.RunStatusCompleted, got.Status)
		assert.Equal(t, domain.StopTargetReached, got.StopReason)
		assert.Equal(t, 3, got.Accepted)
		require.NotNil(t, got.FinishedAt)
		assert.WithinDuration(t, *run.FinishedAt, *got.FinishedAt, time.Second)

		_, err = s.GetRun(ctx, "missing")
		assert.True(t, apperrors.IsNotFound(err))
	})
}
