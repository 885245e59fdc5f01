// Package memory is a process-local Storage used by tests and by the
// "memory" storage type.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
	"github.com/tommynabo/TalentScope-sub000/internal/storage"
)

type campaignKey struct {
	campaign string
	user     string
}

// memoryStorage implements the Storage interface in memory
type memoryStorage struct {
	mu         sync.RWMutex
	candidates map[campaignKey]map[string]*domain.CandidateRecord
	runs       map[string]*domain.PipelineRun
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() storage.Storage {
	return &memoryStorage{
		candidates: make(map[campaignKey]map[string]*domain.CandidateRecord),
		runs:       make(map[string]*domain.PipelineRun),
	}
}

func keyOf(c domain.Campaign) campaignKey {
	return campaignKey{campaign: c.ID, user: c.UserID}
}

// Migrate is a no-op
func (s *memoryStorage) Migrate(ctx context.Context) error { return nil }

// SaveCandidates upserts records by lower-cased username
func (s *memoryStorage) SaveCandidates(ctx context.Context, campaign domain.Campaign, records []*domain.CandidateRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(campaign)
	set, ok := s.candidates[key]
	if !ok {
		set = make(map[string]*domain.CandidateRecord)
		s.candidates[key] = set
	}
	now := time.Now()
	for _, r := range records {
		id := strings.ToLower(r.Username)
		c := r.Clone()
		c.CampaignID = campaign.ID
		c.UserID = campaign.UserID
		c.UpdatedAt = now
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if prev, ok := set[id]; ok {
			c.ID = prev.ID
			c.CreatedAt = prev.CreatedAt
		}
		set[id] = c
	}
	return nil
}

// LoadCandidates returns copies of the stored records, ordered by score
func (s *memoryStorage) LoadCandidates(ctx context.Context, campaign domain.Campaign) ([]*domain.CandidateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.candidates[keyOf(campaign)]
	out := make([]*domain.CandidateRecord, 0, len(set))
	for _, r := range set {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score.Normalized != out[j].Score.Normalized {
			return out[i].Score.Normalized > out[j].Score.Normalized
		}
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out, nil
}

// DeleteCandidate removes one record
func (s *memoryStorage) DeleteCandidate(ctx context.Context, campaign domain.Campaign, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.candidates[keyOf(campaign)]
	id := strings.ToLower(username)
	if _, ok := set[id]; !ok {
		return apperrors.NewNotFoundError("candidate " + username)
	}
	delete(set, id)
	return nil
}

// CountCandidates returns the number of records in the campaign
func (s *memoryStorage) CountCandidates(ctx context.Context, campaign domain.Campaign) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candidates[keyOf(campaign)]), nil
}

// LoadDeduplicationSets returns the identities stored for the campaign
func (s *memoryStorage) LoadDeduplicationSets(ctx context.Context, campaign domain.Campaign) (*domain.DedupSets, error) {
	records, err := s.LoadCandidates(ctx, campaign)
	if err != nil {
		return nil, err
	}
	return storage.DedupSetsFrom(records), nil
}

// SaveRun upserts a run
func (s *memoryStorage) SaveRun(ctx context.Context, run *domain.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *run
	if run.FinishedAt != nil {
		t := *run.FinishedAt
		c.FinishedAt = &t
	}
	s.runs[run.ID] = &c
	return nil
}

// GetRun returns a stored run
func (s *memoryStorage) GetRun(ctx context.Context, id string) (*domain.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("run " + id)
	}
	c := *r
	return &c, nil
}

// Close is a no-op
func (s *memoryStorage) Close() error { return nil }
