package domain

import "time"

// ScoreBucket counts candidates whose normalized score falls in [Min, Max]
type ScoreBucket struct {
	Label string `json:"label"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// LanguageCount is how many candidates list a language
type LanguageCount struct {
	Language string `json:"language"`
	Count    int    `json:"count"`
}

// CampaignSummary describes the stored candidates of a campaign
type CampaignSummary struct {
	CampaignID      string              `json:"campaign_id"`
	UserID          string              `json:"user_id"`
	Total           int                 `json:"total"`
	WithEmail       int                 `json:"with_email"`
	WithContactURL  int                 `json:"with_contact_url"`
	Reachable       int                 `json:"reachable"`
	ContactCoverage float64             `json:"contact_coverage"`
	Researched      int                 `json:"researched"`
	QualityTiers    map[QualityTier]int `json:"quality_tiers"`
	AppShippers     int                 `json:"app_shippers"`
	AverageScore    float64             `json:"average_score"`
	MedianScore     float64             `json:"median_score"`
	MinScore        int                 `json:"min_score"`
	MaxScore        int                 `json:"max_score"`
	ScoreBuckets    []ScoreBucket       `json:"score_buckets"`
	TopLanguages    []LanguageCount     `json:"top_languages,omitempty"`
	GeneratedAt     time.Time           `json:"generated_at"`
}
