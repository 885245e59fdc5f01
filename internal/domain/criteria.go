package domain

// DefaultScoreThreshold is applied when FilterCriteria.ScoreThreshold is zero
const DefaultScoreThreshold = 60

// FilterCriteria configures a discovery scan. It is never mutated by the pipeline.
type FilterCriteria struct {
	MinStars                 int      `json:"min_stars,omitempty" yaml:"min_stars,omitempty"`
	MaxStars                 int      `json:"max_stars,omitempty" yaml:"max_stars,omitempty"`
	MinForks                 int      `json:"min_forks,omitempty" yaml:"min_forks,omitempty"`
	Languages                []string `json:"languages,omitempty" yaml:"languages,omitempty"`
	MinPublicRepos           int      `json:"min_public_repos,omitempty" yaml:"min_public_repos,omitempty"`
	MinFollowers             int      `json:"min_followers,omitempty" yaml:"min_followers,omitempty"`
	MinContributionsPerMonth int      `json:"min_contributions_per_month,omitempty" yaml:"min_contributions_per_month,omitempty"`
	MinOriginalityRatio      float64  `json:"min_originality_ratio,omitempty" yaml:"min_originality_ratio,omitempty"`
	ExcludeGenericRepos      bool     `json:"exclude_generic_repos,omitempty" yaml:"exclude_generic_repos,omitempty"`
	RequireRecentActivity    bool     `json:"require_recent_activity,omitempty" yaml:"require_recent_activity,omitempty"`
	MaxMonthsSinceLastCommit int      `json:"max_months_since_last_commit,omitempty" yaml:"max_months_since_last_commit,omitempty"`
	RequireAppStoreLink      bool     `json:"require_app_store_link,omitempty" yaml:"require_app_store_link,omitempty"`
	RequireSpanishSpeaker    bool     `json:"require_spanish_speaker,omitempty" yaml:"require_spanish_speaker,omitempty"`
	MinSpanishConfidence     int      `json:"min_spanish_confidence,omitempty" yaml:"min_spanish_confidence,omitempty"`
	ScoreThreshold           int      `json:"score_threshold,omitempty" yaml:"score_threshold,omitempty"`
}

// Threshold returns the effective score threshold
func (c FilterCriteria) Threshold() int {
	if c.ScoreThreshold <= 0 {
		return DefaultScoreThreshold
	}
	return c.ScoreThreshold
}

// Preset is a named FilterCriteria
type Preset struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Criteria    FilterCriteria `json:"criteria" yaml:"criteria"`
}
