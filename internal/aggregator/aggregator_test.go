package aggregator

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	"github.com/tommynabo/TalentScope-sub000/internal/storage/memory"
)

func rec(username string, score int, langs ...string) *domain.CandidateRecord {
	return &domain.CandidateRecord{
		Username: username,
		Score:    domain.ScoreBreakdown{Normalized: score},
		Metrics:  domain.DeveloperMetrics{Languages: langs},
	}
}

func TestSummarize(t *testing.T) {
	a := rec("ana", 95, "Dart", "Go")
	a.Email = "ana@dev.io"
	a.Contact = &domain.ContactResult{Quality: domain.QualityExcellent}
	a.Metrics.HasAppStoreLink = true
	b := rec("ben", 72, "Go")
	b.ContactURL = "https://www.linkedin.com/in/ben"
	b.Contact = &domain.ContactResult{Quality: domain.QualityFair}
	c := rec("cai", 61, "Go", "Rust")
	d := rec("dan", 64)
	d.Contact = &domain.ContactResult{Quality: domain.QualityPoor}

	s := Summarize([]*domain.CandidateRecord{a, b, c, d})

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.WithEmail)
	assert.Equal(t, 1, s.WithContactURL)
	assert.Equal(t, 2, s.Reachable)
	assert.Equal(t, 50.0, s.ContactCoverage)
	assert.Equal(t, 3, s.Researched)
	assert.Equal(t, map[domain.QualityTier]int{
		domain.QualityExcellent: 1,
		domain.QualityFair:      1,
		domain.QualityPoor:      1,
	}, s.QualityTiers)
	assert.Equal(t, 1, s.AppShippers)
	assert.Equal(t, 61, s.MinScore)
	assert.Equal(t, 95, s.MaxScore)
	assert.Equal(t, 73.0, s.AverageScore)
	assert.Equal(t, 68.0, s.MedianScore)

	counts := make(map[string]int)
	for _, b := range s.ScoreBuckets {
		counts[b.Label] = b.Count
	}
	if diff := cmp.Diff(map[string]int{"0-59": 0, "60-69": 2, "70-79": 1, "80-89": 0, "90-100": 1}, counts); diff != "" {
		t.Errorf("buckets mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []domain.LanguageCount{
		{Language: "Go", Count: 3},
		{Language: "Dart", Count: 1},
		{Language: "Rust", Count: 1},
	}, s.TopLanguages)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)

	assert.Zero(t, s.Total)
	assert.Zero(t, s.ContactCoverage)
	assert.Len(t, s.ScoreBuckets, 5)
}

func TestCampaignSummaryFromStorage(t *testing.T) {
	store := memory.NewMemoryStorage()
	campaign := domain.Campaign{ID: "camp-1", UserID: "user-1"}
	require.NoError(t, store.SaveCandidates(context.Background(), campaign, []*domain.CandidateRecord{
		rec("ana", 80), rec("ben", 90),
	}))
	agg := NewAggregator(store)

	s, err := agg.CampaignSummary(context.Background(), campaign)
	require.NoError(t, err)
	assert.Equal(t, "camp-1", s.CampaignID)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 85.0, s.AverageScore)

	records, err := agg.Candidates(context.Background(), campaign)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ben", records[0].Username)
}
