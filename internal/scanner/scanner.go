// Package scanner drives paginated search results through deduplication,
// analysis and scoring until enough candidates are accepted.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tommynabo/TalentScope-sub000/internal/analyzer"
	"github.com/tommynabo/TalentScope-sub000/internal/collector"
	"github.com/tommynabo/TalentScope-sub000/internal/dedup"
	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
	"github.com/tommynabo/TalentScope-sub000/internal/events"
	"github.com/tommynabo/TalentScope-sub000/internal/query"
	"github.com/tommynabo/TalentScope-sub000/internal/runctl"
	"github.com/tommynabo/TalentScope-sub000/internal/storage"
)

const (
	DefaultMaxPages = 10
	DefaultPageSize = 30
)

// Options bounds one scan
type Options struct {
	TargetCount int
	MaxPages    int
	PageSize    int
	Events      chan<- events.Event
	Gate        *runctl.Gate
}

func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Gate == nil {
		o.Gate = runctl.New()
	}
	return o
}

// Result is what a scan accumulated, including when it stopped early
type Result struct {
	Run        *domain.PipelineRun
	Query      string
	Candidates []*domain.CandidateRecord
	Pages      int
	Skipped    int
	Rejected   int
	Failed     int
}

// Scanner runs discovery scans
type Scanner struct {
	source   collector.Source
	store    storage.Storage
	analyzer *analyzer.Analyzer
	logger   *slog.Logger
}

// Option configures a Scanner
type Option func(*Scanner)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithAnalyzer replaces the default analyzer
func WithAnalyzer(a *analyzer.Analyzer) Option {
	return func(s *Scanner) { s.analyzer = a }
}

// New creates a Scanner. store may be nil, in which case nothing is
// persisted and deduplication only covers the current scan.
func New(src collector.Source, store storage.Storage, opts ...Option) *Scanner {
	s := &Scanner{source: src, store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.analyzer == nil {
		s.analyzer = analyzer.New(src, analyzer.WithLogger(s.logger))
	}
	return s
}

// Scan fetches pages until opts.TargetCount candidates are accepted, the
// page budget is spent or a page comes back empty. Rate limits and
// cancellation end the scan early with the partial result; they are not
// returned as errors.
func (s *Scanner) Scan(ctx context.Context, criteria domain.FilterCriteria, campaign domain.Campaign, opts Options) (*Result, error) {
	if opts.TargetCount <= 0 {
		return nil, apperrors.NewBadRequestError("target count must be positive")
	}
	opts = opts.withDefaults()

	run := domain.NewPipelineRun(domain.RunKindScan, campaign)
	res := &Result{Run: run, Query: query.Build(criteria)}
	emit := events.NewEmitter(opts.Events, run.ID)
	log := s.logger.With("run_id", run.ID, "campaign", campaign.ID)

	s.saveRun(ctx, run)
	index := s.loadIndex(ctx, campaign)

	log.InfoContext(ctx, "scan started", "query", res.Query, "target", opts.TargetCount, "max_pages", opts.MaxPages)
	emit.Emit(ctx, events.Event{Kind: events.ScanStarted, Message: res.Query})

	status, reason := s.loop(ctx, criteria, campaign, opts, index, res, emit)

	run.Accepted = len(res.Candidates)
	run.Finish(status, reason)
	s.persist(ctx, campaign, res.Candidates)
	s.saveRun(ctx, run)

	log.InfoContext(ctx, "scan finished",
		"status", status, "reason", reason, "accepted", run.Accepted,
		"processed", run.Processed, "pages", res.Pages)
	emit.Emit(context.WithoutCancel(ctx), events.Event{
		Kind:    events.ScanFinished,
		Message: fmt.Sprintf("%s: %d accepted", reason, run.Accepted),
	})
	return res, nil
}

func (s *Scanner) loop(ctx context.Context, criteria domain.FilterCriteria, campaign domain.Campaign, opts Options, index *dedup.Index, res *Result, emit *events.Emitter) (domain.RunStatus, string) {
	run := res.Run
	for page := 1; page <= opts.MaxPages; page++ {
		if err := opts.Gate.Checkpoint(ctx); err != nil {
			return domain.RunStatusCancelled, domain.StopCancelled
		}

		results, err := s.source.SearchUsers(ctx, res.Query, page, opts.PageSize)
		if err != nil {
			return s.stopOnError(ctx, err, emit, page)
		}
		res.Pages = page
		emit.Emit(ctx, events.Event{Kind: events.PageFetched, Page: page, Message: fmt.Sprintf("%d users", len(results.Accounts))})
		if len(results.Accounts) == 0 {
			return domain.RunStatusCompleted, domain.StopEmptyPage
		}

		for _, hit := range results.Accounts {
			if err := opts.Gate.Checkpoint(ctx); err != nil {
				return domain.RunStatusCancelled, domain.StopCancelled
			}
			if index.IsKnownUsername(hit.Login) {
				res.Skipped++
				emit.Emit(ctx, events.Event{Kind: events.CandidateSkipped, Username: hit.Login, Page: page, Message: "already known"})
				continue
			}

			run.Processed++
			analysis, err := s.analyzer.Analyze(ctx, hit, criteria)
			if err != nil {
				if apperrors.IsRateLimited(err) || apperrors.IsCancelled(err) {
					return s.stopOnError(ctx, err, emit, page)
				}
				res.Failed++
				s.logger.WarnContext(ctx, "candidate analysis failed", "username", hit.Login, "error", err)
				emit.Emit(ctx, events.Event{Kind: events.CandidateSkipped, Username: hit.Login, Page: page, Message: err.Error()})
				continue
			}
			if analysis.Rejected {
				res.Rejected++
				emit.Emit(ctx, events.Event{Kind: events.CandidateRejected, Username: hit.Login, Page: page, Message: analysis.Reason + ": " + analysis.Detail})
				continue
			}

			identity := analysis.Identity()
			if index.IsKnown(identity) {
				res.Skipped++
				emit.Emit(ctx, events.Event{Kind: events.CandidateSkipped, Username: hit.Login, Page: page, Message: "contact already known"})
				continue
			}
			index.Record(identity)

			rec := newRecord(analysis, campaign)
			res.Candidates = append(res.Candidates, rec)
			emit.Emit(ctx, events.Event{
				Kind:     events.CandidateAccepted,
				Username: rec.Username,
				Page:     page,
				Message:  fmt.Sprintf("score %d", rec.Score.Normalized),
			})
			if len(res.Candidates) >= opts.TargetCount {
				return domain.RunStatusCompleted, domain.StopTargetReached
			}
		}
	}
	return domain.RunStatusCompleted, domain.StopPageBudget
}

func (s *Scanner) stopOnError(ctx context.Context, err error, emit *events.Emitter, page int) (domain.RunStatus, string) {
	switch {
	case apperrors.IsRateLimited(err):
		s.logger.WarnContext(ctx, "rate limit reached, returning partial results", "page", page, "error", err)
		emit.Emit(context.WithoutCancel(ctx), events.Event{Kind: events.RateLimited, Page: page, Message: err.Error()})
		return domain.RunStatusCancelled, domain.StopRateLimited
	case apperrors.IsCancelled(err):
		return domain.RunStatusCancelled, domain.StopCancelled
	default:
		s.logger.ErrorContext(ctx, "search failed", "page", page, "error", err)
		return domain.RunStatusFailed, domain.StopSearchFailed
	}
}

func (s *Scanner) loadIndex(ctx context.Context, campaign domain.Campaign) *dedup.Index {
	if s.store == nil {
		return dedup.New()
	}
	index, err := dedup.Load(ctx, s.store, campaign)
	if err != nil {
		s.logger.WarnContext(ctx, "continuing with an empty dedup index", "error", err)
	}
	return index
}

// persist saves accepted candidates. Failures are logged; the caller still
// receives the records.
func (s *Scanner) persist(ctx context.Context, campaign domain.Campaign, records []*domain.CandidateRecord) {
	if s.store == nil || len(records) == 0 {
		return
	}
	if err := s.store.SaveCandidates(context.WithoutCancel(ctx), campaign, records); err != nil {
		s.logger.ErrorContext(ctx, "failed to save candidates", "count", len(records), "error", err)
	}
}

func (s *Scanner) saveRun(ctx context.Context, run *domain.PipelineRun) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.WarnContext(ctx, "failed to save run", "run_id", run.ID, "error", err)
	}
}

func newRecord(a *analyzer.Result, campaign domain.Campaign) *domain.CandidateRecord {
	now := time.Now()
	acct := a.Account
	id := a.Identity()
	rec := &domain.CandidateRecord{
		ID:                uuid.New().String(),
		CampaignID:        campaign.ID,
		UserID:            campaign.UserID,
		Username:          acct.Login,
		Name:              acct.Name,
		Bio:               acct.Bio,
		Location:          acct.Location,
		Company:           acct.Company,
		ProfileURL:        acct.HTMLURL,
		Email:             id.Email,
		ContactURL:        id.ContactURL,
		SpanishConfidence: a.SpanishConfidence,
		Metrics:           a.Metrics,
		Score:             a.Score,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if rec.ProfileURL == "" {
		rec.ProfileURL = "https://github.com/" + acct.Login
	}
	if a.Contact != nil {
		rec.Website = a.Contact.Website
		rec.SocialHandle = a.Contact.SocialHandle
	}
	return rec
}
