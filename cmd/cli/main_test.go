package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommynabo/TalentScope-sub000/internal/config"
	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	"github.com/tommynabo/TalentScope-sub000/internal/events"
)

func TestScanCriteriaFlagsOverridePreset(t *testing.T) {
	t.Cleanup(func() {
		scanPreset, scanLanguages, scanThreshold = "", nil, 0
	})
	require.NoError(t, scanCmd.Flags().Set("preset", "proven-shippers"))
	require.NoError(t, scanCmd.Flags().Set("threshold", "40"))

	criteria, err := scanCriteria(scanCmd, &config.Config{})

	require.NoError(t, err)
	assert.Equal(t, 40, criteria.ScoreThreshold)
	assert.Equal(t, []string{"dart", "flutter"}, criteria.Languages)
	assert.True(t, criteria.RequireAppStoreLink)
}

func TestUpdatedRecords(t *testing.T) {
	records := []*domain.CandidateRecord{{Username: "Ana"}, {Username: "ben"}}
	results := []*domain.EnrichmentResult{
		{Username: "Ana", Success: true, Updated: &domain.CandidateRecord{Username: "Ana", Email: "ana@x.dev"}},
		{Username: "ben", Success: false, Error: "boom"},
	}

	out := updatedRecords(records, results)

	require.Len(t, out, 2)
	assert.Equal(t, "ana@x.dev", out[0].Email)
	assert.Same(t, records[1], out[1])
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "page 2: 30 users", describe(events.Event{Kind: events.PageFetched, Page: 2, Message: "30 users"}))
	assert.Equal(t, "  + ana (score 80)", describe(events.Event{Kind: events.CandidateAccepted, Username: "ana", Message: "score 80"}))
	assert.Empty(t, describe(events.Event{Kind: events.ScanStarted}))
	assert.Empty(t, describe(events.Event{Kind: events.BatchCompleted}))
}
