package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	"github.com/tommynabo/TalentScope-sub000/internal/events"
)

// checkpoint saves the full record set. Saves are serialized so a later
// snapshot is never overwritten by an earlier one, and each record is
// reconciled with its stored copy first so contact data written by anyone
// else since the run started survives.
func (e *Enricher) checkpoint(ctx context.Context, campaign domain.Campaign, records []*domain.CandidateRecord, emit *events.Emitter) {
	if e.store == nil || len(records) == 0 {
		return
	}
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	saveCtx := context.WithoutCancel(ctx)
	stored, err := e.store.LoadCandidates(saveCtx, campaign)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to load stored candidates, saving snapshot as is", "error", err)
	} else {
		records = reconcile(stored, records)
	}

	if err := e.store.SaveCandidates(saveCtx, campaign, records); err != nil {
		e.logger.ErrorContext(ctx, "checkpoint failed, continuing in memory", "count", len(records), "error", err)
		return
	}
	e.logger.DebugContext(ctx, "checkpoint saved", "count", len(records))
	emit.Emit(ctx, events.Event{Kind: events.CheckpointSaved, Message: fmt.Sprintf("%d records", len(records))})
}

// reconcile fills the records' contact fields from stored copies. A stored
// non-empty value always wins over the snapshot.
func reconcile(stored, records []*domain.CandidateRecord) []*domain.CandidateRecord {
	byName := make(map[string]*domain.CandidateRecord, len(stored))
	for _, r := range stored {
		byName[strings.ToLower(r.Username)] = r
	}

	out := make([]*domain.CandidateRecord, len(records))
	for i, rec := range records {
		prev, ok := byName[strings.ToLower(rec.Username)]
		if !ok {
			out[i] = rec
			continue
		}
		merged := rec.Clone()
		take := func(dst *string, v string) {
			if v != "" {
				*dst = v
			}
		}
		take(&merged.Email, prev.Email)
		take(&merged.ContactURL, prev.ContactURL)
		take(&merged.Website, prev.Website)
		take(&merged.SocialHandle, prev.SocialHandle)
		merged.Contact = MergeContact(prev.Contact, rec.Contact)
		out[i] = merged
	}
	return out
}

// startTicker checkpoints every CheckpointInterval until the returned
// function is called. The returned function may be called more than once.
func (e *Enricher) startTicker(ctx context.Context, campaign domain.Campaign, snapshot func() []*domain.CandidateRecord, emit *events.Emitter) func() {
	if e.store == nil || e.opts.CheckpointInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(e.opts.CheckpointInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.checkpoint(ctx, campaign, snapshot(), emit)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

func (e *Enricher) saveRun(ctx context.Context, run *domain.PipelineRun) {
	if e.store == nil {
		return
	}
	e.mu.Lock()
	r := *run
	e.mu.Unlock()
	if err := e.store.SaveRun(context.WithoutCancel(ctx), &r); err != nil {
		e.logger.WarnContext(ctx, "failed to save run", "run_id", run.ID, "error", err)
	}
}
