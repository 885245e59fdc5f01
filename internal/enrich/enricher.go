// Package enrich runs contact research over many candidates with bounded
// parallelism, retries, pause/resume/cancel and periodic checkpoints.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/sync/errgroup"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
	"github.com/tommynabo/TalentScope-sub000/internal/events"
	"github.com/tommynabo/TalentScope-sub000/internal/runctl"
	"github.com/tommynabo/TalentScope-sub000/internal/storage"
)

// etaPerCandidate is assumed until the first candidate completes
const etaPerCandidate = 2 * time.Second

// Updated field names reported in EnrichmentResult
const (
	FieldEmail        = "email"
	FieldContactURL   = "contact_url"
	FieldWebsite      = "website"
	FieldSocialHandle = "social_handle"
)

// Researcher discovers contact data for one username
type Researcher interface {
	Research(ctx context.Context, username string, repos []*domain.Repository) (*domain.ContactResult, error)
}

// Options tunes an enrichment run
type Options struct {
	Parallelism        int
	Delay              time.Duration
	MaxRetries         int
	CheckpointEvery    int
	CheckpointInterval time.Duration
	SkipEnriched       bool
	Events             chan<- events.Event
}

// DefaultOptions returns the conservative defaults
func DefaultOptions() Options {
	return Options{
		Parallelism:     1,
		Delay:           500 * time.Millisecond,
		MaxRetries:      2,
		CheckpointEvery: 5,
		SkipEnriched:    true,
	}
}

func (o Options) sanitized() Options {
	o.Parallelism = max(o.Parallelism, 1)
	o.Delay = max(o.Delay, 0)
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.CheckpointEvery <= 0 {
		o.CheckpointEvery = DefaultOptions().CheckpointEvery
	}
	return o
}

// Enricher runs one enrichment at a time and can be controlled while it runs
type Enricher struct {
	researcher Researcher
	store      storage.Storage
	opts       Options
	logger     *slog.Logger

	mu       sync.Mutex
	state    domain.EnrichmentState
	reason   string
	progress domain.EnrichmentProgress
	gate     *runctl.Gate
	run      *domain.PipelineRun

	saveMu sync.Mutex
}

// Option configures an Enricher
type Option func(*Enricher)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Enricher) { e.logger = l }
}

// New creates an Enricher. store may be nil, which disables checkpoints.
func New(r Researcher, store storage.Storage, opts Options, o ...Option) *Enricher {
	e := &Enricher{
		researcher: r,
		store:      store,
		opts:       opts.sanitized(),
		logger:     slog.Default(),
		state:      domain.EnrichmentIdle,
		gate:       runctl.New(),
	}
	for _, opt := range o {
		opt(e)
	}
	return e
}

// Status returns the current state and a progress snapshot
func (e *Enricher) Status() domain.EnrichmentStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.EnrichmentStatus{State: e.state, StopReason: e.reason, Progress: e.progress}
}

// Run returns a copy of the current or last pipeline run, or nil
func (e *Enricher) Run() *domain.PipelineRun {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return nil
	}
	r := *e.run
	return &r
}

// Pause stops new batches from starting. In-flight work completes.
func (e *Enricher) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != domain.EnrichmentRunning || !e.gate.Pause() {
		return false
	}
	e.state = domain.EnrichmentPaused
	return true
}

// Resume continues a paused run
func (e *Enricher) Resume() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != domain.EnrichmentPaused || !e.gate.Resume() {
		return false
	}
	e.state = domain.EnrichmentRunning
	return true
}

// Cancel stops issuing work; dispatched candidates still finish
func (e *Enricher) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gate.Cancel()
}

// start moves the enricher to running, refusing concurrent runs
func (e *Enricher) start(campaign domain.Campaign, total int) (*domain.PipelineRun, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case domain.EnrichmentRunning, domain.EnrichmentPaused:
		return nil, apperrors.NewConflictError("enrichment already in progress")
	case domain.EnrichmentCompleted, domain.EnrichmentCancelled:
		e.gate = runctl.New()
	}
	e.state = domain.EnrichmentRunning
	e.reason = ""
	e.progress = domain.EnrichmentProgress{Total: total, ETA: time.Duration(total) * etaPerCandidate}
	e.run = domain.NewPipelineRun(domain.RunKindEnrich, campaign)
	return e.run, nil
}

// Enrich researches records and merges discovered contacts into them.
// Records keep every field they already had. All records, enriched or
// not, are saved at checkpoints and at the end. Rate limits and
// cancellation stop the run early and return the results so far.
func (e *Enricher) Enrich(ctx context.Context, records []*domain.CandidateRecord, campaign domain.Campaign) ([]*domain.EnrichmentResult, error) {
	run, working, targets, err := e.begin(records, campaign)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, run, working, targets, campaign), nil
}

// Start runs Enrich in the background. It returns a copy of the registered
// run and a channel that is closed once the run has finished.
func (e *Enricher) Start(ctx context.Context, records []*domain.CandidateRecord, campaign domain.Campaign) (*domain.PipelineRun, <-chan struct{}, error) {
	run, working, targets, err := e.begin(records, campaign)
	if err != nil {
		return nil, nil, err
	}
	registered := *run
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.execute(ctx, run, working, targets, campaign)
	}()
	return &registered, done, nil
}

func (e *Enricher) begin(records []*domain.CandidateRecord, campaign domain.Campaign) (*domain.PipelineRun, []*domain.CandidateRecord, []int, error) {
	working := make([]*domain.CandidateRecord, len(records))
	var targets []int
	for i, r := range records {
		working[i] = r.Clone()
		if e.opts.SkipEnriched && r.IsEnriched() {
			continue
		}
		targets = append(targets, i)
	}
	run, err := e.start(campaign, len(targets))
	if err != nil {
		return nil, nil, nil, err
	}
	return run, working, targets, nil
}

func (e *Enricher) execute(ctx context.Context, run *domain.PipelineRun, working []*domain.CandidateRecord, targets []int, campaign domain.Campaign) []*domain.EnrichmentResult {
	e.mu.Lock()
	gate := e.gate
	e.mu.Unlock()

	emit := events.NewEmitter(e.opts.Events, run.ID)
	log := e.logger.With("run_id", run.ID, "campaign", campaign.ID)
	e.saveRun(ctx, run)

	log.InfoContext(ctx, "enrichment started", "total", len(targets), "skipped", len(working)-len(targets),
		"parallelism", e.opts.Parallelism)
	emit.Emit(ctx, events.Event{Kind: events.EnrichStarted, Message: fmt.Sprintf("%d candidates", len(targets))})

	snapshot := func() []*domain.CandidateRecord {
		e.mu.Lock()
		defer e.mu.Unlock()
		out := make([]*domain.CandidateRecord, len(working))
		for i, r := range working {
			out[i] = r.Clone()
		}
		return out
	}

	stopTicker := e.startTicker(ctx, campaign, snapshot, emit)
	defer stopTicker()

	started := time.Now()
	results := make([]*domain.EnrichmentResult, 0, len(targets))
	status, reason := domain.EnrichmentCompleted, domain.StopCompleted
	sinceCheckpoint := 0

	for start := 0; start < len(targets); start += e.opts.Parallelism {
		paused := gate.Paused()
		if paused {
			log.InfoContext(ctx, "enrichment paused")
			emit.Emit(ctx, events.Event{Kind: events.EnrichPaused})
		}
		if err := gate.Checkpoint(ctx); err != nil {
			status, reason = domain.EnrichmentCancelled, domain.StopCancelled
			break
		}
		if paused {
			log.InfoContext(ctx, "enrichment resumed")
			emit.Emit(ctx, events.Event{Kind: events.EnrichResumed})
		}
		if start > 0 && e.opts.Delay > 0 {
			if err := sleep(ctx, e.opts.Delay); err != nil {
				status, reason = domain.EnrichmentCancelled, domain.StopCancelled
				break
			}
		}

		batch := targets[start:min(start+e.opts.Parallelism, len(targets))]
		e.setCurrent(working[batch[0]].Username)

		outcomes := make([]*outcome, len(batch))
		var g errgroup.Group
		for i, idx := range batch {
			rec := working[idx].Clone()
			g.Go(func() error {
				outcomes[i] = e.enrichOne(ctx, rec)
				return nil
			})
		}
		_ = g.Wait()

		rateLimited := false
		e.mu.Lock()
		for i, idx := range batch {
			out := outcomes[i]
			p := &e.progress
			p.Processed++
			if out.Success {
				p.Succeeded++
				working[idx] = out.Updated.Clone()
				if out.Contact != nil && out.Contact.PrimaryEmail != "" {
					p.EmailsFound++
				}
				if out.Contact != nil && out.Contact.ContactURL != "" {
					p.ContactURLsFound++
				}
			} else {
				p.Failed++
			}
			if out.rateLimited {
				rateLimited = true
			}
		}
		e.progress.PercentComplete = float64(e.progress.Processed) / float64(len(targets)) * 100
		e.progress.ETA = eta(time.Since(started), e.progress.Processed, len(targets))
		progress := e.progress
		run.Processed = progress.Processed
		e.mu.Unlock()

		for _, out := range outcomes {
			kind := events.CandidateEnriched
			if !out.Success {
				kind = events.CandidateFailed
			}
			results = append(results, &out.EnrichmentResult)
			emit.Emit(ctx, events.Event{Kind: kind, Username: out.Username, Message: out.Error})
		}
		emit.Emit(ctx, events.Event{Kind: events.BatchCompleted, Progress: &progress})

		sinceCheckpoint += len(batch)
		if sinceCheckpoint >= e.opts.CheckpointEvery {
			sinceCheckpoint = 0
			e.checkpoint(ctx, campaign, snapshot(), emit)
		}

		if rateLimited {
			log.WarnContext(ctx, "rate limit reached, stopping enrichment")
			emit.Emit(ctx, events.Event{Kind: events.RateLimited})
			status, reason = domain.EnrichmentCancelled, domain.StopRateLimited
			break
		}
	}

	stopTicker()
	e.checkpoint(ctx, campaign, snapshot(), emit)

	e.mu.Lock()
	e.state = status
	e.reason = reason
	e.progress.Current = ""
	if status == domain.EnrichmentCompleted {
		e.progress.ETA = 0
	}
	runStatus := domain.RunStatusCompleted
	if status == domain.EnrichmentCancelled {
		runStatus = domain.RunStatusCancelled
	}
	run.Accepted = e.progress.Succeeded
	run.Finish(runStatus, reason)
	progress := e.progress
	e.mu.Unlock()
	e.saveRun(ctx, run)

	log.InfoContext(ctx, "enrichment finished", "state", status, "reason", reason,
		"processed", progress.Processed, "succeeded", progress.Succeeded, "failed", progress.Failed,
		"emails", progress.EmailsFound, "contact_urls", progress.ContactURLsFound)
	emit.Emit(context.WithoutCancel(ctx), events.Event{Kind: events.EnrichFinished, Message: reason, Progress: &progress})
	return results
}

func (e *Enricher) setCurrent(username string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress.Current = username
}

// outcome carries the rate-limit flag next to the public result
type outcome struct {
	domain.EnrichmentResult
	rateLimited bool
}

func (e *Enricher) enrichOne(ctx context.Context, rec *domain.CandidateRecord) *outcome {
	out := &outcome{EnrichmentResult: domain.EnrichmentResult{Username: rec.Username, Original: rec}}

	contact, err := retry.DoWithData(
		func() (*domain.ContactResult, error) {
			return e.researcher.Research(ctx, rec.Username, nil)
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.opts.MaxRetries)+1),
		retry.Delay(e.opts.Delay),
		retry.MaxJitter(max(e.opts.Delay/2, time.Millisecond)),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			e.logger.DebugContext(ctx, "retrying contact research", "username", rec.Username, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		out.Error = err.Error()
		out.rateLimited = apperrors.IsRateLimited(err)
		e.logger.WarnContext(ctx, "contact research failed", "username", rec.Username, "error", err)
		return out
	}

	out.Success = true
	out.Contact = contact
	out.Updated, out.UpdatedFields = Merge(rec, contact)
	return out
}

func retryable(err error) bool {
	return !apperrors.IsRateLimited(err) && !apperrors.IsCancelled(err) && !apperrors.IsNotFound(err)
}

// Merge copies discovered contact fields into a copy of rec, filling only
// fields that are empty, and reports which fields changed. An existing
// Contact keeps its primary values and gains the new secondaries.
func Merge(rec *domain.CandidateRecord, c *domain.ContactResult) (*domain.CandidateRecord, []string) {
	updated := rec.Clone()
	updated.Contact = MergeContact(rec.Contact, c)
	var fields []string

	fill := func(dst *string, v, name string) {
		if *dst == "" && v != "" {
			*dst = v
			fields = append(fields, name)
		}
	}
	fill(&updated.Email, c.PrimaryEmail, FieldEmail)
	fill(&updated.ContactURL, c.ContactURL, FieldContactURL)
	fill(&updated.Website, c.Website, FieldWebsite)
	fill(&updated.SocialHandle, c.SocialHandle, FieldSocialHandle)

	updated.UpdatedAt = time.Now()
	return updated, fields
}

// MergeContact combines an earlier research result with a newer one.
// Populated scalar fields of base win; emails, URLs and sources are unioned.
func MergeContact(base, found *domain.ContactResult) *domain.ContactResult {
	if base == nil {
		return found.Clone()
	}
	if found == nil {
		return base.Clone()
	}
	out := base.Clone()

	keep := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	keep(&out.PrimaryEmail, found.PrimaryEmail)
	keep(&out.ContactURL, found.ContactURL)
	keep(&out.SocialHandle, found.SocialHandle)
	keep(&out.Website, found.Website)
	keep(&out.Location, found.Location)
	keep(&out.Company, found.Company)
	keep(&out.Bio, found.Bio)

	out.SecondaryEmails = union(out.PrimaryEmail, out.SecondaryEmails, append([]string{found.PrimaryEmail}, found.SecondaryEmails...))
	out.AlternateURLs = union(out.ContactURL, out.AlternateURLs, append([]string{found.ContactURL}, found.AlternateURLs...))
	out.Sources = union("", out.Sources, found.Sources)
	out.Errors = slices.Clone(found.Errors)

	out.Depth = max(out.Depth, found.Depth)
	if found.QualityScore > out.QualityScore {
		out.QualityScore, out.Quality = found.QualityScore, found.Quality
	}
	if found.ResearchedAt.After(out.ResearchedAt) {
		out.ResearchedAt = found.ResearchedAt
	}
	return out
}

// union appends the values of add missing from have, ignoring case, empty
// values and primary
func union(primary string, have, add []string) []string {
	seen := make(map[string]bool, len(have)+1)
	if primary != "" {
		seen[strings.ToLower(primary)] = true
	}
	var out []string
	for _, v := range slices.Concat(have, add) {
		k := strings.ToLower(v)
		if v == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

func eta(elapsed time.Duration, processed, total int) time.Duration {
	remaining := total - processed
	if remaining <= 0 {
		return 0
	}
	if processed == 0 {
		return time.Duration(remaining) * etaPerCandidate
	}
	return elapsed / time.Duration(processed) * time.Duration(remaining)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
