package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommynabo/TalentScope-sub000/internal/collector/collectortest"
	"github.com/tommynabo/TalentScope-sub000/internal/config"
	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	"github.com/tommynabo/TalentScope-sub000/internal/enrich"
	"github.com/tommynabo/TalentScope-sub000/internal/storage"
	"github.com/tommynabo/TalentScope-sub000/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type researcherFunc func(ctx context.Context, username string) (*domain.ContactResult, error)

func (f researcherFunc) Research(ctx context.Context, username string, _ []*domain.Repository) (*domain.ContactResult, error) {
	return f(ctx, username)
}

func foundContact(_ context.Context, username string) (*domain.ContactResult, error) {
	return &domain.ContactResult{Username: username, PrimaryEmail: username + "@found.dev", Quality: domain.QualityGood}, nil
}

type testServer struct {
	router  *gin.Engine
	handler *Handler
	store   storage.Storage
	source  *collectortest.FakeSource
}

func newTestServer(t *testing.T, r enrich.Researcher) *testServer {
	t.Helper()
	presets, err := config.LoadPresets("")
	require.NoError(t, err)

	src := collectortest.New()
	for _, login := range []string{"ana", "ben"} {
		src.Pages[1] = append(src.Pages[1], &domain.Account{Login: login, Type: "User"})
		src.AddUser(&domain.Account{Login: login, Followers: 40}, collectortest.Repo(login+"-server", 12, false, "Go"))
	}
	store := memory.NewMemoryStorage()
	opts := enrich.DefaultOptions()
	opts.Delay = 0

	h := NewHandler(Deps{
		Store:      store,
		Source:     src,
		Researcher: r,
		Presets:    presets,
		Enrich:     opts,
	})
	return &testServer{router: SetupRoutes(h), handler: h, store: store, source: src}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var body struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

var goCriteria = &domain.FilterCriteria{Languages: []string{"go"}, MinFollowers: 10, ScoreThreshold: 1}

func (s *testServer) scan(t *testing.T) ScanResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/campaigns/camp-1/scan", gin.H{
		"user_id": "user-1", "criteria": goCriteria, "target_count": 5, "max_pages": 1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeData[ScanResponse](t, w)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, researcherFunc(foundContact))

	w := s.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListPresets(t *testing.T) {
	s := newTestServer(t, researcherFunc(foundContact))

	w := s.do(t, http.MethodGet, "/api/v1/presets", nil)

	require.Equal(t, http.StatusOK, w.Code)
	presets := decodeData[[]domain.Preset](t, w)
	require.Len(t, presets, 10)
	assert.Equal(t, "proven-shippers", presets[0].Name)
}

func TestScanPersistsCandidates(t *testing.T) {
	s := newTestServer(t, researcherFunc(foundContact))

	res := s.scan(t)

	assert.Len(t, res.Candidates, 2)
	assert.Equal(t, domain.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, domain.StopPageBudget, res.Run.StopReason)

	w := s.do(t, http.MethodGet, "/api/v1/campaigns/camp-1/candidates?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]*domain.CandidateRecord](t, w), 2)

	w = s.do(t, http.MethodGet, "/api/v1/campaigns/camp-1/candidates?user_id=other", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeData[[]*domain.CandidateRecord](t, w))
}

func TestScanRequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   gin.H
		status int
		code   string
	}{
		{
			name:   "missing user",
			body:   gin.H{"preset": "full-stack", "target_count": 5},
			status: http.StatusBadRequest,
			code:   "BAD_REQUEST",
		},
		{
			name:   "missing target",
			body:   gin.H{"user_id": "user-1", "preset": "full-stack"},
			status: http.StatusBadRequest,
			code:   "BAD_REQUEST",
		},
		{
			name:   "no criteria",
			body:   gin.H{"user_id": "user-1", "target_count": 5},
			status: http.StatusBadRequest,
			code:   "BAD_REQUEST",
		},
		{
			name:   "unknown preset",
			body:   gin.H{"user_id": "user-1", "preset": "nope", "target_count": 5},
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, researcherFunc(foundContact))

			w := s.do(t, http.MethodPost, "/api/v1/campaigns/camp-1/scan", tt.body)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
			assert.Zero(t, s.source.Calls(collectortest.MethodSearchUsers))
		})
	}
}

func TestCandidatesRequireUser(t *testing.T) {
	s := newTestServer(t, researcherFunc(foundContact))

	w := s.do(t, http.MethodGet, "/api/v1/campaigns/camp-1/candidates", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteCandidate(t *testing.T) {
	s := newTestServer(t, researcherFunc(foundContact))
	s.scan(t)

	w := s.do(t, http.MethodDelete, "/api/v1/campaigns/camp-1/candidates/ANA?user_id=user-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/campaigns/camp-1/candidates/ana?user_id=user-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	n, err := s.store.CountCandidates(context.Background(), domain.Campaign{ID: "camp-1", UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetSummary(t *testing.T) {
	s := newTestServer(t, researcherFunc(foundContact))
	s.scan(t)

	w := s.do(t, http.MethodGet, "/api/v1/campaigns/camp-1/summary?user_id=user-1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	summary := decodeData[domain.CampaignSummary](t, w)
	assert.Equal(t, 2, summary.Total)
	assert.Zero(t, summary.WithEmail)
}

func TestEnrichmentRunsInBackground(t *testing.T) {
	s := newTestServer(t, researcherFunc(foundContact))
	s.scan(t)

	w := s.do(t, http.MethodPost, "/api/v1/campaigns/camp-1/enrich", gin.H{"user_id": "user-1", "parallelism": 2})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	run := decodeData[RunResponse](t, w).Run
	require.NotNil(t, run)
	assert.Equal(t, domain.RunKindEnrich, run.Kind)

	require.Eventually(t, func() bool {
		stored, err := s.store.GetRun(context.Background(), run.ID)
		return err == nil && stored.Status == domain.RunStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	w = s.do(t, http.MethodGet, "/api/v1/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decodeData[RunResponse](t, w).Run.Accepted)

	records, err := s.store.LoadCandidates(context.Background(), domain.Campaign{ID: "camp-1", UserID: "user-1"})
	require.NoError(t, err)
	for _, r := range records {
		assert.Equal(t, r.Username+"@found.dev", r.Email)
	}
}

func TestEnrichmentWithoutCandidates(t *testing.T) {
	s := newTestServer(t, researcherFunc(foundContact))

	w := s.do(t, http.MethodPost, "/api/v1/campaigns/empty/enrich", gin.H{"user_id": "user-1"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunControl(t *testing.T) {
	release := make(chan struct{})
	s := newTestServer(t, researcherFunc(func(ctx context.Context, username string) (*domain.ContactResult, error) {
		<-release
		return foundContact(ctx, username)
	}))
	s.scan(t)

	w := s.do(t, http.MethodPost, "/api/v1/campaigns/camp-1/enrich", gin.H{"user_id": "user-1"})
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decodeData[RunResponse](t, w).Run.ID

	w = s.do(t, http.MethodPost, "/api/v1/runs/"+id+"/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.EnrichmentPaused, decodeData[RunResponse](t, w).Status.State)

	w = s.do(t, http.MethodPost, "/api/v1/runs/"+id+"/pause", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/runs/"+id+"/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.EnrichmentRunning, decodeData[RunResponse](t, w).Status.State)

	w = s.do(t, http.MethodPost, "/api/v1/runs/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	close(release)

	require.Eventually(t, func() bool {
		run, err := s.store.GetRun(context.Background(), id)
		return err == nil && run.Status == domain.RunStatusCancelled
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, active := s.handler.jobs.get(id)
		return !active
	}, 5*time.Second, 10*time.Millisecond)
	w = s.do(t, http.MethodPost, "/api/v1/runs/"+id+"/resume", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestEnrichmentOnePerCampaign(t *testing.T) {
	release := make(chan struct{})
	s := newTestServer(t, researcherFunc(func(ctx context.Context, username string) (*domain.ContactResult, error) {
		<-release
		return foundContact(ctx, username)
	}))
	s.scan(t)

	w := s.do(t, http.MethodPost, "/api/v1/campaigns/camp-1/enrich", gin.H{"user_id": "user-1"})
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decodeData[RunResponse](t, w).Run.ID

	w = s.do(t, http.MethodPost, "/api/v1/campaigns/camp-1/enrich", gin.H{"user_id": "user-1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, w))

	w = s.do(t, http.MethodPost, "/api/v1/campaigns/camp-1/enrich", gin.H{"user_id": "user-2"})
	assert.Equal(t, http.StatusNotFound, w.Code, "other users are not blocked")

	close(release)
	require.Eventually(t, func() bool {
		_, active := s.handler.jobs.get(id)
		return !active
	}, 5*time.Second, 10*time.Millisecond)

	records, err := s.store.LoadCandidates(context.Background(), domain.Campaign{ID: "camp-1", UserID: "user-1"})
	require.NoError(t, err)
	for _, r := range records {
		assert.Equal(t, r.Username+"@found.dev", r.Email)
	}

	w = s.do(t, http.MethodPost, "/api/v1/campaigns/camp-1/enrich", gin.H{"user_id": "user-1", "skip_enriched": false})
	assert.Equal(t, http.StatusAccepted, w.Code, "the campaign is released once the run ends")
}

func TestRunNotFound(t *testing.T) {
	s := newTestServer(t, researcherFunc(foundContact))

	for _, path := range []string{"/api/v1/runs/missing", "/api/v1/runs/missing/pause"} {
		method := http.MethodGet
		if path != "/api/v1/runs/missing" {
			method = http.MethodPost
		}
		w := s.do(t, method, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestShutdownCancelsJobs(t *testing.T) {
	release := make(chan struct{})
	s := newTestServer(t, researcherFunc(func(ctx context.Context, username string) (*domain.ContactResult, error) {
		<-release
		return foundContact(ctx, username)
	}))
	s.scan(t)
	w := s.do(t, http.MethodPost, "/api/v1/campaigns/camp-1/enrich", gin.H{"user_id": "user-1"})
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decodeData[RunResponse](t, w).Run.ID

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.handler.Shutdown(ctx))

	run, err := s.store.GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.NotEqual(t, domain.RunStatusRunning, run.Status)
}
