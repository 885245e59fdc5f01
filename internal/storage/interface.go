package storage

import (
	"context"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
)

// Storage persists candidates and pipeline runs per campaign. Saves are
// upserts keyed by (campaign, user, lower(username)) and may be repeated.
type Storage interface {
	// Candidate operations
	SaveCandidates(ctx context.Context, campaign domain.Campaign, records []*domain.CandidateRecord) error
	LoadCandidates(ctx context.Context, campaign domain.Campaign) ([]*domain.CandidateRecord, error)
	DeleteCandidate(ctx context.Context, campaign domain.Campaign, username string) error
	CountCandidates(ctx context.Context, campaign domain.Campaign) (int, error)

	// Identity sets for deduplication
	LoadDeduplicationSets(ctx context.Context, campaign domain.Campaign) (*domain.DedupSets, error)

	// Pipeline runs
	SaveRun(ctx context.Context, run *domain.PipelineRun) error
	GetRun(ctx context.Context, id string) (*domain.PipelineRun, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}

// DedupSetsFrom collects the identity values of records
func DedupSetsFrom(records []*domain.CandidateRecord) *domain.DedupSets {
	sets := &domain.DedupSets{}
	for _, r := range records {
		sets.Usernames = append(sets.Usernames, r.Username)
		if r.Email != "" {
			sets.Emails = append(sets.Emails, r.Email)
		}
		if r.ContactURL != "" {
			sets.ContactURLs = append(sets.ContactURLs, r.ContactURL)
		}
	}
	return sets
}
