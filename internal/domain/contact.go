package domain

import (
	"slices"
	"time"
)

// QualityTier grades a contact research result
type QualityTier string

const (
	QualityExcellent QualityTier = "excellent"
	QualityGood      QualityTier = "good"
	QualityFair      QualityTier = "fair"
	QualityPoor      QualityTier = "poor"
)

// ContactResult is the outcome of contact research for one username
type ContactResult struct {
	Username        string      `json:"username"`
	PrimaryEmail    string      `json:"primary_email,omitempty"`
	SecondaryEmails []string    `json:"secondary_emails,omitempty"`
	ContactURL      string      `json:"contact_url,omitempty"`
	AlternateURLs   []string    `json:"alternate_urls,omitempty"`
	SocialHandle    string      `json:"social_handle,omitempty"`
	Website         string      `json:"website,omitempty"`
	Location        string      `json:"location,omitempty"`
	Company         string      `json:"company,omitempty"`
	Bio             string      `json:"bio,omitempty"`
	Quality         QualityTier `json:"quality"`
	QualityScore    float64     `json:"quality_score"`
	Sources         []string    `json:"sources,omitempty"`
	Depth           int         `json:"depth"`
	Errors          []string    `json:"errors,omitempty"`
	ResearchedAt    time.Time   `json:"researched_at"`
}

// Clone returns a deep copy of the result
func (c *ContactResult) Clone() *ContactResult {
	if c == nil {
		return nil
	}
	out := *c
	out.SecondaryEmails = slices.Clone(c.SecondaryEmails)
	out.AlternateURLs = slices.Clone(c.AlternateURLs)
	out.Sources = slices.Clone(c.Sources)
	out.Errors = slices.Clone(c.Errors)
	return &out
}
