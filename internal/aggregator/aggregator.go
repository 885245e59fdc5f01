package aggregator

import (
	"context"
	"sort"
	"time"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	"github.com/tommynabo/TalentScope-sub000/internal/storage"
)

const topLanguageLimit = 5

// Aggregator builds campaign-level views over stored candidates
type Aggregator interface {
	// CampaignSummary summarizes the stored candidates of a campaign
	CampaignSummary(ctx context.Context, campaign domain.Campaign) (*domain.CampaignSummary, error)

	// Candidates returns the stored candidates of a campaign, best first
	Candidates(ctx context.Context, campaign domain.Campaign) ([]*domain.CandidateRecord, error)
}

// aggregator implements the Aggregator interface
type aggregator struct {
	storage storage.Storage
}

// NewAggregator creates a new aggregator
func NewAggregator(storage storage.Storage) Aggregator {
	return &aggregator{
		storage: storage,
	}
}

// CampaignSummary summarizes the stored candidates of a campaign
func (a *aggregator) CampaignSummary(ctx context.Context, campaign domain.Campaign) (*domain.CampaignSummary, error) {
	records, err := a.storage.LoadCandidates(ctx, campaign)
	if err != nil {
		return nil, err
	}
	s := Summarize(records)
	s.CampaignID = campaign.ID
	s.UserID = campaign.UserID
	return s, nil
}

// Candidates returns the stored candidates of a campaign, best first
func (a *aggregator) Candidates(ctx context.Context, campaign domain.Campaign) ([]*domain.CandidateRecord, error) {
	records, err := a.storage.LoadCandidates(ctx, campaign)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score.Normalized > records[j].Score.Normalized
	})
	return records, nil
}

// Summarize computes the summary of records without touching storage
func Summarize(records []*domain.CandidateRecord) *domain.CampaignSummary {
	s := &domain.CampaignSummary{
		Total:        len(records),
		QualityTiers: make(map[domain.QualityTier]int),
		ScoreBuckets: newBuckets(),
		GeneratedAt:  time.Now(),
	}
	if len(records) == 0 {
		return s
	}

	scores := make([]int, 0, len(records))
	languages := make(map[string]int)
	sum := 0
	for _, r := range records {
		if r.Email != "" {
			s.WithEmail++
		}
		if r.ContactURL != "" {
			s.WithContactURL++
		}
		if r.IsEnriched() {
			s.Reachable++
		}
		if r.Contact != nil {
			s.Researched++
			s.QualityTiers[r.Contact.Quality]++
		}
		if r.Metrics.HasAppStoreLink {
			s.AppShippers++
		}
		for _, l := range r.Metrics.Languages {
			languages[l]++
		}

		score := r.Score.Normalized
		scores = append(scores, score)
		sum += score
		for i := range s.ScoreBuckets {
			if score >= s.ScoreBuckets[i].Min && score <= s.ScoreBuckets[i].Max {
				s.ScoreBuckets[i].Count++
				break
			}
		}
	}

	sort.Ints(scores)
	s.MinScore = scores[0]
	s.MaxScore = scores[len(scores)-1]
	s.AverageScore = float64(sum) / float64(len(scores))
	s.MedianScore = median(scores)
	s.ContactCoverage = float64(s.Reachable) / float64(s.Total) * 100
	s.TopLanguages = topLanguages(languages, topLanguageLimit)
	return s
}

func newBuckets() []domain.ScoreBucket {
	return []domain.ScoreBucket{
		{Label: "0-59", Min: 0, Max: 59},
		{Label: "60-69", Min: 60, Max: 69},
		{Label: "70-79", Min: 70, Max: 79},
		{Label: "80-89", Min: 80, Max: 89},
		{Label: "90-100", Min: 90, Max: 100},
	}
}

func median(sorted []int) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

func topLanguages(counts map[string]int, limit int) []domain.LanguageCount {
	out := make([]domain.LanguageCount, 0, len(counts))
	for l, c := range counts {
		out = append(out, domain.LanguageCount{Language: l, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Language < out[j].Language
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
