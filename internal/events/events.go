// Package events defines the structured progress stream emitted by scans
// and enrichment runs.
package events

import (
	"context"
	"time"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
)

// Kind identifies an event
type Kind string

const (
	ScanStarted       Kind = "scan_started"
	PageFetched       Kind = "page_fetched"
	CandidateSkipped  Kind = "candidate_skipped"
	CandidateRejected Kind = "candidate_rejected"
	CandidateAccepted Kind = "candidate_accepted"
	ScanFinished      Kind = "scan_finished"
	RateLimited       Kind = "rate_limited"
	EnrichStarted     Kind = "enrich_started"
	CandidateEnriched Kind = "candidate_enriched"
	CandidateFailed   Kind = "candidate_failed"
	BatchCompleted    Kind = "batch_completed"
	CheckpointSaved   Kind = "checkpoint_saved"
	EnrichPaused      Kind = "enrich_paused"
	EnrichResumed     Kind = "enrich_resumed"
	EnrichFinished    Kind = "enrich_finished"
)

// Event is one item of the stream
type Event struct {
	Kind     Kind                       `json:"kind"`
	RunID    string                     `json:"run_id,omitempty"`
	Username string                     `json:"username,omitempty"`
	Message  string                     `json:"message,omitempty"`
	Page     int                        `json:"page,omitempty"`
	Progress *domain.EnrichmentProgress `json:"progress,omitempty"`
	Time     time.Time                  `json:"time"`
}

// Emitter sends events to an optional channel. The zero value discards everything.
type Emitter struct {
	ch    chan<- Event
	runID string
}

// NewEmitter returns an emitter stamping events with runID
func NewEmitter(ch chan<- Event, runID string) *Emitter {
	return &Emitter{ch: ch, runID: runID}
}

// Emit delivers e, blocking until the consumer receives it or ctx is done
func (e *Emitter) Emit(ctx context.Context, ev Event) {
	if e == nil || e.ch == nil {
		return
	}
	if ev.RunID == "" {
		ev.RunID = e.runID
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case e.ch <- ev:
	case <-ctx.Done():
	}
}

// Filter returns the events of the given kinds, preserving order
func Filter(evs []Event, kinds ...Kind) []Event {
	var out []Event
	for _, ev := range evs {
		for _, k := range kinds {
			if ev.Kind == k {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}
