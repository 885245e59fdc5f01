package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tommynabo/TalentScope-sub000/internal/aggregator"
	"github.com/tommynabo/TalentScope-sub000/internal/collector"
	"github.com/tommynabo/TalentScope-sub000/internal/config"
	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	"github.com/tommynabo/TalentScope-sub000/internal/enrich"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
	"github.com/tommynabo/TalentScope-sub000/internal/scanner"
	"github.com/tommynabo/TalentScope-sub000/internal/storage"
)

// Deps are the services the handler is built from
type Deps struct {
	Store       storage.Storage
	Source      collector.Source
	Researcher  enrich.Researcher
	Presets     *config.Presets
	ScanOptions scanner.Options
	Enrich      enrich.Options
	CORSOrigins []string
	Logger      *slog.Logger
}

// Handler handles API requests
type Handler struct {
	store       storage.Storage
	aggregator  aggregator.Aggregator
	presets     *config.Presets
	scanner     *scanner.Scanner
	researcher  enrich.Researcher
	scanOpts    scanner.Options
	enrichOpts  enrich.Options
	corsOrigins []string
	jobs        *jobRegistry
	logger      *slog.Logger
}

// NewHandler creates a new API handler
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:       d.Store,
		aggregator:  aggregator.NewAggregator(d.Store),
		presets:     d.Presets,
		scanner:     scanner.New(d.Source, d.Store, scanner.WithLogger(logger)),
		researcher:  d.Researcher,
		scanOpts:    d.ScanOptions,
		enrichOpts:  d.Enrich,
		corsOrigins: d.CORSOrigins,
		jobs:        newJobRegistry(),
		logger:      logger,
	}
}

// Shutdown cancels background enrichments and waits for their final
// checkpoint, or until ctx ends.
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.jobs.cancelAll(ctx)
}

type scanRequest struct {
	UserID      string                 `json:"user_id" binding:"required"`
	Preset      string                 `json:"preset"`
	Criteria    *domain.FilterCriteria `json:"criteria"`
	TargetCount int                    `json:"target_count" binding:"required,min=1"`
	MaxPages    int                    `json:"max_pages"`
}

// ScanResponse is the body of a finished scan
type ScanResponse struct {
	Run        *domain.PipelineRun       `json:"run"`
	Query      string                    `json:"query"`
	Candidates []*domain.CandidateRecord `json:"candidates"`
	Pages      int                       `json:"pages"`
	Skipped    int                       `json:"skipped"`
	Rejected   int                       `json:"rejected"`
	Failed     int                       `json:"failed"`
}

type enrichRequest struct {
	UserID          string `json:"user_id" binding:"required"`
	Parallelism     int    `json:"parallelism"`
	MaxRetries      *int   `json:"max_retries"`
	CheckpointEvery int    `json:"checkpoint_every"`
	SkipEnriched    *bool  `json:"skip_enriched"`
}

// RunResponse is a pipeline run with live progress while it is active
type RunResponse struct {
	Run    *domain.PipelineRun      `json:"run"`
	Status *domain.EnrichmentStatus `json:"status,omitempty"`
}

// HealthCheck returns the health status
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ListPresets returns the named filter presets
// GET /api/v1/presets
func (h *Handler) ListPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": h.presets.List(),
	})
}

// Scan runs a discovery scan and returns the accepted candidates
// POST /api/v1/campaigns/:campaign/scan
func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError(err.Error()))
		return
	}
	criteria, err := h.resolveCriteria(req)
	if err != nil {
		respondError(c, err)
		return
	}

	opts := h.scanOpts
	opts.TargetCount = req.TargetCount
	if req.MaxPages > 0 {
		opts.MaxPages = req.MaxPages
	}
	campaign := domain.Campaign{ID: c.Param("campaign"), UserID: req.UserID}

	res, err := h.scanner.Scan(c.Request.Context(), criteria, campaign, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": ScanResponse{
			Run:        res.Run,
			Query:      res.Query,
			Candidates: res.Candidates,
			Pages:      res.Pages,
			Skipped:    res.Skipped,
			Rejected:   res.Rejected,
			Failed:     res.Failed,
		},
	})
}

// resolveCriteria prefers explicit criteria over a preset
func (h *Handler) resolveCriteria(req scanRequest) (domain.FilterCriteria, error) {
	switch {
	case req.Criteria != nil:
		return *req.Criteria, nil
	case req.Preset != "":
		return h.presets.Get(req.Preset)
	default:
		return domain.FilterCriteria{}, apperrors.NewBadRequestError("either preset or criteria is required")
	}
}

// ListCandidates returns the stored candidates of a campaign
// GET /api/v1/campaigns/:campaign/candidates?user_id=
func (h *Handler) ListCandidates(c *gin.Context) {
	campaign, err := campaignFromQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	records, err := h.aggregator.Candidates(c.Request.Context(), campaign)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": records,
	})
}

// DeleteCandidate removes one candidate from a campaign
// DELETE /api/v1/campaigns/:campaign/candidates/:username?user_id=
func (h *Handler) DeleteCandidate(c *gin.Context) {
	campaign, err := campaignFromQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.store.DeleteCandidate(c.Request.Context(), campaign, c.Param("username")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSummary returns the campaign summary
// GET /api/v1/campaigns/:campaign/summary?user_id=
func (h *Handler) GetSummary(c *gin.Context) {
	campaign, err := campaignFromQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	summary, err := h.aggregator.CampaignSummary(c.Request.Context(), campaign)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": summary,
	})
}

// StartEnrichment researches contacts for every stored candidate of a
// campaign in the background
// POST /api/v1/campaigns/:campaign/enrich
func (h *Handler) StartEnrichment(c *gin.Context) {
	var req enrichRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError(err.Error()))
		return
	}
	campaign := domain.Campaign{ID: c.Param("campaign"), UserID: req.UserID}

	if !h.jobs.reserve(campaign) {
		respondError(c, apperrors.NewConflictError("enrichment already in progress for campaign "+campaign.ID))
		return
	}
	started := false
	defer func() {
		if !started {
			h.jobs.release(campaign)
		}
	}()

	records, err := h.store.LoadCandidates(c.Request.Context(), campaign)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(records) == 0 {
		respondError(c, apperrors.NewNotFoundError("candidates for campaign "+campaign.ID))
		return
	}

	e := enrich.New(h.researcher, h.store, h.enrichOptions(req), enrich.WithLogger(h.logger))
	run, done, err := e.Start(context.WithoutCancel(c.Request.Context()), records, campaign)
	if err != nil {
		respondError(c, err)
		return
	}
	started = true
	h.jobs.add(run.ID, campaign, e, done)

	c.JSON(http.StatusAccepted, gin.H{
		"data": RunResponse{Run: run},
	})
}

func (h *Handler) enrichOptions(req enrichRequest) enrich.Options {
	opts := h.enrichOpts
	opts.Events = nil
	if req.Parallelism > 0 {
		opts.Parallelism = req.Parallelism
	}
	if req.MaxRetries != nil {
		opts.MaxRetries = *req.MaxRetries
	}
	if req.CheckpointEvery > 0 {
		opts.CheckpointEvery = req.CheckpointEvery
	}
	if req.SkipEnriched != nil {
		opts.SkipEnriched = *req.SkipEnriched
	}
	return opts
}

// GetRun returns a run, with live progress while an enrichment is active
// GET /api/v1/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	id := c.Param("id")
	if j, ok := h.jobs.get(id); ok {
		c.JSON(http.StatusOK, gin.H{
			"data": liveRun(j),
		})
		return
	}

	run, err := h.store.GetRun(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": RunResponse{Run: run},
	})
}

// PauseRun pauses an active enrichment
// POST /api/v1/runs/:id/pause
func (h *Handler) PauseRun(c *gin.Context) {
	h.control(c, "paused", func(e *enrich.Enricher) bool { return e.Pause() })
}

// ResumeRun resumes a paused enrichment
// POST /api/v1/runs/:id/resume
func (h *Handler) ResumeRun(c *gin.Context) {
	h.control(c, "resumed", func(e *enrich.Enricher) bool { return e.Resume() })
}

// CancelRun cancels an active enrichment. Candidates already dispatched
// still finish and the run is checkpointed.
// POST /api/v1/runs/:id/cancel
func (h *Handler) CancelRun(c *gin.Context) {
	h.control(c, "cancelled", func(e *enrich.Enricher) bool {
		e.Cancel()
		return true
	})
}

func (h *Handler) control(c *gin.Context, verb string, apply func(*enrich.Enricher) bool) {
	id := c.Param("id")
	j, ok := h.jobs.get(id)
	if !ok {
		if _, err := h.store.GetRun(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		respondError(c, apperrors.NewConflictError("run "+id+" is not active"))
		return
	}
	if !apply(j.enricher) {
		respondError(c, apperrors.NewConflictError("run "+id+" cannot be "+verb+" while "+string(j.enricher.Status().State)))
		return
	}

	h.logger.InfoContext(c.Request.Context(), "run "+verb, "run_id", id)
	c.JSON(http.StatusOK, gin.H{
		"data": liveRun(j),
	})
}

func liveRun(j *job) RunResponse {
	status := j.enricher.Status()
	return RunResponse{Run: j.enricher.Run(), Status: &status}
}

// campaignFromQuery reads the campaign from the path and the owner from ?user_id=
func campaignFromQuery(c *gin.Context) (domain.Campaign, error) {
	userID := c.Query("user_id")
	if userID == "" {
		return domain.Campaign{}, apperrors.NewBadRequestError("user_id is required")
	}
	return domain.Campaign{ID: c.Param("campaign"), UserID: userID}, nil
}

// respondError sends an error response
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeUnauthorized:
			status = http.StatusUnauthorized
		case apperrors.ErrCodeForbidden:
			status = http.StatusForbidden
		case apperrors.ErrCodeBadRequest:
			status = http.StatusBadRequest
		case apperrors.ErrCodeRateLimited:
			status = http.StatusTooManyRequests
		case apperrors.ErrCodeConflict:
			status = http.StatusConflict
		case apperrors.ErrCodeCancelled:
			status = http.StatusRequestTimeout
		}
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrCodeInternal,
			"message": err.Error(),
		},
	})
}
