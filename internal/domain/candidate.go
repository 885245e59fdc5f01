package domain

import (
	"slices"
	"time"
)

// Campaign scopes deduplication and persistence
type Campaign struct {
	ID     string `json:"campaign_id"`
	UserID string `json:"user_id"`
}

// CandidateIdentity is the dedup key of a candidate
type CandidateIdentity struct {
	Username   string
	Email      string
	ContactURL string
}

// DedupSets holds the raw identity values already stored for a campaign
type DedupSets struct {
	Usernames   []string
	Emails      []string
	ContactURLs []string
}

// RepoSummary is a repository that contributed to a candidate's metrics
type RepoSummary struct {
	Name     string `json:"name"`
	Stars    int    `json:"stars"`
	Forks    int    `json:"forks"`
	Language string `json:"language,omitempty"`
}

// DeveloperMetrics is derived once per candidate by the profile analyzer
type DeveloperMetrics struct {
	Followers           int           `json:"followers"`
	PublicRepos         int           `json:"public_repos"`
	RepoCount           int           `json:"repo_count"`
	OriginalRepos       int           `json:"original_repos"`
	ForkRepos           int           `json:"fork_repos"`
	OriginalityRatio    float64       `json:"originality_ratio"`
	TopRepos            []RepoSummary `json:"top_repos,omitempty"`
	TotalStars          int           `json:"total_stars"`
	AverageStars        float64       `json:"average_stars"`
	TotalForks          int           `json:"total_forks"`
	Languages           []string      `json:"languages,omitempty"`
	HasAppStoreLink     bool          `json:"has_app_store_link"`
	AppStoreURL         string        `json:"app_store_url,omitempty"`
	LastCommitAt        *time.Time    `json:"last_commit_at,omitempty"`
	DaysSinceLastCommit int           `json:"days_since_last_commit"`
	RecentlyPushedRepos int           `json:"recently_pushed_repos"`
}

// ScoreBreakdown is the weighted score of a candidate
type ScoreBreakdown struct {
	RepositoryQuality int `json:"repository_quality"`
	CodeActivity      int `json:"code_activity"`
	CommunityPresence int `json:"community_presence"`
	AppShipping       int `json:"app_shipping"`
	Originality       int `json:"originality"`
	Total             int `json:"total"`
	Normalized        int `json:"normalized"`
}

// CandidateRecord is an accepted candidate
type CandidateRecord struct {
	ID                string           `json:"id"`
	CampaignID        string           `json:"campaign_id"`
	UserID            string           `json:"user_id"`
	Username          string           `json:"username"`
	Name              string           `json:"name,omitempty"`
	Bio               string           `json:"bio,omitempty"`
	Location          string           `json:"location,omitempty"`
	Company           string           `json:"company,omitempty"`
	ProfileURL        string           `json:"profile_url,omitempty"`
	Email             string           `json:"email,omitempty"`
	ContactURL        string           `json:"contact_url,omitempty"`
	Website           string           `json:"website,omitempty"`
	SocialHandle      string           `json:"social_handle,omitempty"`
	SpanishConfidence int              `json:"spanish_confidence,omitempty"`
	Metrics           DeveloperMetrics `json:"metrics"`
	Score             ScoreBreakdown   `json:"score"`
	Contact           *ContactResult   `json:"contact,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Identity returns the dedup identity of the record
func (r *CandidateRecord) Identity() CandidateIdentity {
	return CandidateIdentity{Username: r.Username, Email: r.Email, ContactURL: r.ContactURL}
}

// IsEnriched reports whether the record already has a direct contact channel
func (r *CandidateRecord) IsEnriched() bool {
	return r.Email != "" || r.ContactURL != ""
}

// Clone returns a deep copy of the record
func (r *CandidateRecord) Clone() *CandidateRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Metrics.TopRepos = slices.Clone(r.Metrics.TopRepos)
	c.Metrics.Languages = slices.Clone(r.Metrics.Languages)
	if r.Metrics.LastCommitAt != nil {
		t := *r.Metrics.LastCommitAt
		c.Metrics.LastCommitAt = &t
	}
	c.Contact = r.Contact.Clone()
	return &c
}
