package domain

import "time"

// EnrichmentState is the lifecycle state of a batch enrichment
type EnrichmentState string

const (
	EnrichmentIdle      EnrichmentState = "idle"
	EnrichmentRunning   EnrichmentState = "running"
	EnrichmentPaused    EnrichmentState = "paused"
	EnrichmentCompleted EnrichmentState = "completed"
	EnrichmentCancelled EnrichmentState = "cancelled"
)

// EnrichmentProgress is recomputed after every batch
type EnrichmentProgress struct {
	Total            int           `json:"total"`
	Processed        int           `json:"processed"`
	Succeeded        int           `json:"succeeded"`
	Failed           int           `json:"failed"`
	EmailsFound      int           `json:"emails_found"`
	ContactURLsFound int           `json:"contact_urls_found"`
	Current          string        `json:"current,omitempty"`
	PercentComplete  float64       `json:"percent_complete"`
	ETA              time.Duration `json:"eta"`
}

// EnrichmentResult is the outcome for one candidate
type EnrichmentResult struct {
	Username      string           `json:"username"`
	Original      *CandidateRecord `json:"original"`
	Updated       *CandidateRecord `json:"updated,omitempty"`
	Contact       *ContactResult   `json:"contact,omitempty"`
	UpdatedFields []string         `json:"updated_fields,omitempty"`
	Success       bool             `json:"success"`
	Error         string           `json:"error,omitempty"`
}

// EnrichmentStatus is a point-in-time view of an enrichment run
type EnrichmentStatus struct {
	State      EnrichmentState    `json:"state"`
	StopReason string             `json:"stop_reason,omitempty"`
	Progress   EnrichmentProgress `json:"progress"`
}
