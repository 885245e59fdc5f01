// Package scoring maps developer metrics to a weighted score.
package scoring

import "github.com/tommynabo/TalentScope-sub000/internal/domain"

// Sub-score maxima
const (
	MaxRepositoryQuality = 25
	MaxCodeActivity      = 20
	MaxCommunityPresence = 20
	MaxAppShipping       = 20
	MaxOriginality       = 15
)

type step struct {
	min    float64
	points int
}

var (
	repoQualitySteps = []step{{50, 25}, {20, 20}, {10, 15}, {5, 10}}
	communitySteps   = []step{{1000, 20}, {500, 15}, {100, 10}, {50, 7}}
	originalitySteps = []step{{90, 15}, {70, 12}, {50, 8}, {30, 3}}
)

// Score computes the breakdown for the metrics. It performs no I/O.
func Score(m domain.DeveloperMetrics) domain.ScoreBreakdown {
	b := domain.ScoreBreakdown{
		RepositoryQuality: stepped(m.AverageStars, repoQualitySteps, 5),
		CodeActivity:      activity(m.DaysSinceLastCommit),
		CommunityPresence: stepped(float64(m.Followers), communitySteps, 3),
		AppShipping:       5,
		Originality:       stepped(m.OriginalityRatio, originalitySteps, 0),
	}
	if m.HasAppStoreLink {
		b.AppShipping = MaxAppShipping
	}

	b.Total = b.RepositoryQuality + b.CodeActivity + b.CommunityPresence + b.AppShipping + b.Originality
	b.Normalized = clamp(b.Total, 0, 100)
	return b
}

func stepped(v float64, steps []step, floor int) int {
	for _, s := range steps {
		if v >= s.min {
			return s.points
		}
	}
	return floor
}

// activity treats a commit dated in the future as made today
func activity(days int) int {
	days = max(days, 0)
	switch {
	case days < 30:
		return 20
	case days < 90:
		return 15
	case days < 180:
		return 10
	case days < 365:
		return 5
	default:
		return 0
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
