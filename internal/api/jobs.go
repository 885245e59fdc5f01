package api

import (
	"context"
	"sync"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	"github.com/tommynabo/TalentScope-sub000/internal/enrich"
)

type job struct {
	enricher *enrich.Enricher
	done     <-chan struct{}
}

// jobRegistry tracks background enrichments by run ID until they finish.
// A campaign has at most one enrichment at a time.
type jobRegistry struct {
	mu        sync.Mutex
	jobs      map[string]*job
	campaigns map[string]bool
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{jobs: make(map[string]*job), campaigns: make(map[string]bool)}
}

func campaignKey(c domain.Campaign) string {
	return c.UserID + "/" + c.ID
}

// reserve claims the campaign, returning false if an enrichment holds it
func (r *jobRegistry) reserve(c domain.Campaign) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := campaignKey(c)
	if r.campaigns[key] {
		return false
	}
	r.campaigns[key] = true
	return true
}

func (r *jobRegistry) release(c domain.Campaign) {
	r.mu.Lock()
	delete(r.campaigns, campaignKey(c))
	r.mu.Unlock()
}

// add registers a started job on a reserved campaign. Both are released
// once done is closed.
func (r *jobRegistry) add(runID string, c domain.Campaign, e *enrich.Enricher, done <-chan struct{}) {
	r.mu.Lock()
	r.jobs[runID] = &job{enricher: e, done: done}
	r.mu.Unlock()

	go func() {
		<-done
		r.mu.Lock()
		delete(r.jobs, runID)
		delete(r.campaigns, campaignKey(c))
		r.mu.Unlock()
	}()
}

func (r *jobRegistry) get(runID string) (*job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[runID]
	return j, ok
}

// cancelAll cancels every job and waits for them to finish or ctx to end
func (r *jobRegistry) cancelAll(ctx context.Context) error {
	r.mu.Lock()
	pending := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		pending = append(pending, j)
	}
	r.mu.Unlock()

	for _, j := range pending {
		j.enricher.Cancel()
	}
	for _, j := range pending {
		select {
		case <-j.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
