package contact

import "github.com/tommynabo/TalentScope-sub000/internal/domain"

// Presence weights of the quality score
const (
	weightEmail      = 0.35
	weightContactURL = 0.25
	weightSocial     = 0.10
	weightWebsite    = 0.10
	weightSources    = 0.10
	weightDepth      = 0.10
)

// Assess scores a result in [0,1] and maps the score to a tier.
// waterfallSize is the number of strategies a full research runs.
func Assess(r *domain.ContactResult, waterfallSize int) (float64, domain.QualityTier) {
	var score float64
	if r.PrimaryEmail != "" {
		score += weightEmail
	}
	if r.ContactURL != "" {
		score += weightContactURL
	}
	if r.SocialHandle != "" {
		score += weightSocial
	}
	if r.Website != "" {
		score += weightWebsite
	}
	score += weightSources * min(float64(len(r.Sources))/3, 1)
	if waterfallSize > 0 {
		score += weightDepth * min(float64(r.Depth)/float64(waterfallSize), 1)
	}

	return score, Tier(score)
}

// Tier maps a quality score to its tier
func Tier(score float64) domain.QualityTier {
	switch {
	case score >= 0.7:
		return domain.QualityExcellent
	case score >= 0.5:
		return domain.QualityGood
	case score >= 0.3:
		return domain.QualityFair
	default:
		return domain.QualityPoor
	}
}
