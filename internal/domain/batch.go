package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunKind identifies what a pipeline run does
type RunKind string

const (
	RunKindScan   RunKind = "scan"
	RunKindEnrich RunKind = "enrich"
)

// RunStatus is the status of a pipeline run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// Stop reasons recorded on a finished run
const (
	StopTargetReached = "target_reached"
	StopPageBudget    = "page_budget"
	StopEmptyPage     = "empty_page"
	StopRateLimited   = "rate_limited"
	StopCancelled     = "cancelled"
	StopCompleted     = "completed"
	StopSearchFailed  = "search_failed"
)

// PipelineRun is the lifecycle record of one scan or enrichment
type PipelineRun struct {
	ID         string     `json:"id"`
	Kind       RunKind    `json:"kind"`
	CampaignID string     `json:"campaign_id"`
	UserID     string     `json:"user_id"`
	Status     RunStatus  `json:"status"`
	StopReason string     `json:"stop_reason,omitempty"`
	Accepted   int        `json:"accepted"`
	Processed  int        `json:"processed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewPipelineRun starts a run for the campaign
func NewPipelineRun(kind RunKind, campaign Campaign) *PipelineRun {
	return &PipelineRun{
		ID:         uuid.New().String(),
		Kind:       kind,
		CampaignID: campaign.ID,
		UserID:     campaign.UserID,
		Status:     RunStatusRunning,
		StartedAt:  time.Now(),
	}
}

// Finish marks the run as done
func (r *PipelineRun) Finish(status RunStatus, reason string) {
	now := time.Now()
	r.Status = status
	r.StopReason = reason
	r.FinishedAt = &now
}
