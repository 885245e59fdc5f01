package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
)

// Client is the API client for the TalentScope server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ScanRequest starts a synchronous scan. Criteria wins over Preset.
type ScanRequest struct {
	UserID      string                 `json:"user_id"`
	Preset      string                 `json:"preset,omitempty"`
	Criteria    *domain.FilterCriteria `json:"criteria,omitempty"`
	TargetCount int                    `json:"target_count"`
	MaxPages    int                    `json:"max_pages,omitempty"`
}

// ScanResult is what a scan accepted
type ScanResult struct {
	Run        *domain.PipelineRun       `json:"run"`
	Query      string                    `json:"query"`
	Candidates []*domain.CandidateRecord `json:"candidates"`
	Pages      int                       `json:"pages"`
	Skipped    int                       `json:"skipped"`
	Rejected   int                       `json:"rejected"`
	Failed     int                       `json:"failed"`
}

// EnrichRequest starts a background enrichment. Zero values keep the
// server defaults.
type EnrichRequest struct {
	UserID          string `json:"user_id"`
	Parallelism     int    `json:"parallelism,omitempty"`
	MaxRetries      *int   `json:"max_retries,omitempty"`
	CheckpointEvery int    `json:"checkpoint_every,omitempty"`
	SkipEnriched    *bool  `json:"skip_enriched,omitempty"`
}

// RunStatus is a run plus live progress while an enrichment is active
type RunStatus struct {
	Run    *domain.PipelineRun      `json:"run"`
	Status *domain.EnrichmentStatus `json:"status,omitempty"`
}

// ListPresets retrieves the named filter presets
func (c *Client) ListPresets(ctx context.Context) ([]domain.Preset, error) {
	var response struct {
		Data []domain.Preset `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/presets", nil, nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// Scan runs a scan on the server and waits for it to finish
func (c *Client) Scan(ctx context.Context, campaign string, req ScanRequest) (*ScanResult, error) {
	path := fmt.Sprintf("/api/v1/campaigns/%s/scan", url.PathEscape(campaign))

	var response struct {
		Data *ScanResult `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, path, nil, req, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// ListCandidates retrieves the stored candidates of a campaign
func (c *Client) ListCandidates(ctx context.Context, campaign domain.Campaign) ([]*domain.CandidateRecord, error) {
	path := fmt.Sprintf("/api/v1/campaigns/%s/candidates", url.PathEscape(campaign.ID))

	var response struct {
		Data []*domain.CandidateRecord `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, userParams(campaign), nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// DeleteCandidate removes a candidate from a campaign
func (c *Client) DeleteCandidate(ctx context.Context, campaign domain.Campaign, username string) error {
	path := fmt.Sprintf("/api/v1/campaigns/%s/candidates/%s", url.PathEscape(campaign.ID), url.PathEscape(username))
	return c.do(ctx, http.MethodDelete, path, userParams(campaign), nil, nil)
}

// GetSummary retrieves the campaign summary
func (c *Client) GetSummary(ctx context.Context, campaign domain.Campaign) (*domain.CampaignSummary, error) {
	path := fmt.Sprintf("/api/v1/campaigns/%s/summary", url.PathEscape(campaign.ID))

	var response struct {
		Data *domain.CampaignSummary `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, userParams(campaign), nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// StartEnrichment starts enriching a campaign and returns the new run
func (c *Client) StartEnrichment(ctx context.Context, campaign string, req EnrichRequest) (*RunStatus, error) {
	path := fmt.Sprintf("/api/v1/campaigns/%s/enrich", url.PathEscape(campaign))
	return c.runRequest(ctx, http.MethodPost, path, req)
}

// GetRun retrieves a run and its live progress
func (c *Client) GetRun(ctx context.Context, id string) (*RunStatus, error) {
	return c.runRequest(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(id), nil)
}

// PauseRun pauses an active enrichment
func (c *Client) PauseRun(ctx context.Context, id string) (*RunStatus, error) {
	return c.runRequest(ctx, http.MethodPost, "/api/v1/runs/"+url.PathEscape(id)+"/pause", nil)
}

// ResumeRun resumes a paused enrichment
func (c *Client) ResumeRun(ctx context.Context, id string) (*RunStatus, error) {
	return c.runRequest(ctx, http.MethodPost, "/api/v1/runs/"+url.PathEscape(id)+"/resume", nil)
}

// CancelRun cancels an active enrichment
func (c *Client) CancelRun(ctx context.Context, id string) (*RunStatus, error) {
	return c.runRequest(ctx, http.MethodPost, "/api/v1/runs/"+url.PathEscape(id)+"/cancel", nil)
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck(ctx context.Context) error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func (c *Client) runRequest(ctx context.Context, method, path string, body any) (*RunStatus, error) {
	var response struct {
		Data *RunStatus `json:"data"`
	}
	if err := c.do(ctx, method, path, nil, body, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

func userParams(campaign domain.Campaign) url.Values {
	params := url.Values{}
	params.Set("user_id", campaign.UserID)
	return params
}

// do sends a request and decodes the response into result. Error bodies
// are returned as *apperrors.AppError with the server's code.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, result any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	var body struct {
		Error struct {
			Code    apperrors.ErrCode `json:"code"`
			Message string            `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Error.Code == "" {
		return fmt.Errorf("API error: %s - %s", resp.Status, string(data))
	}
	return &apperrors.AppError{Code: body.Error.Code, Message: body.Error.Message}
}
