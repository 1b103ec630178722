package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/shorts-autopilot/internal/analytics"
	"github.com/jonathan/shorts-autopilot/internal/config"
	"github.com/jonathan/shorts-autopilot/internal/db"
	"github.com/jonathan/shorts-autopilot/internal/metrics"
	"github.com/jonathan/shorts-autopilot/internal/scheduler"
	"github.com/jonathan/shorts-autopilot/internal/server/ratelimit"
	"github.com/jonathan/shorts-autopilot/internal/types"
	"github.com/jonathan/shorts-autopilot/internal/workflow"
)

const (
	failedJobID    = "11111111-1111-1111-1111-111111111111"
	completedJobID = "22222222-2222-2222-2222-222222222222"
	videoID        = "33333333-3333-3333-3333-333333333333"
)

// --- fakes ---

type fakeStore struct {
	niches       []types.ContentNiche
	jobs         map[string]*types.WorkflowJob
	videos       map[string]*types.VideoRecord
	lastFilters  types.JobFilters
	videoFilters db.VideoFilters
	err          error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		niches: []types.ContentNiche{
			{ID: "tech", Name: "Tech Tutorials", Credentials: types.PlatformCredentials{
				YouTube: &types.YouTubeCredentials{ClientID: "client", ClientSecret: "s3cr3t-value", RefreshToken: "r3fresh-value"},
			}},
			{ID: "fun", Name: "Random Fun"},
		},
		jobs: map[string]*types.WorkflowJob{
			failedJobID:    {ID: failedJobID, Type: types.JobTypeGenerate, Status: types.JobStatusFailed, NicheID: "tech"},
			completedJobID: {ID: completedJobID, Type: types.JobTypeGenerate, Status: types.JobStatusCompleted, NicheID: "tech"},
		},
		videos: map[string]*types.VideoRecord{
			videoID: {ID: videoID, NicheID: "tech", Status: types.VideoStatusPosted},
		},
	}
}

func (s *fakeStore) GetNiche(_ context.Context, id string) (*types.ContentNiche, error) {
	for i := range s.niches {
		if s.niches[i].ID == id {
			n := s.niches[i]
			return &n, nil
		}
	}
	return nil, s.err
}

func (s *fakeStore) ListNiches(context.Context) ([]types.ContentNiche, error) {
	return s.niches, s.err
}

func (s *fakeStore) GetJob(_ context.Context, id string) (*types.WorkflowJob, error) {
	return s.jobs[id], s.err
}

func (s *fakeStore) ListJobs(_ context.Context, filters types.JobFilters) ([]types.WorkflowJob, error) {
	s.lastFilters = filters
	var out []types.WorkflowJob
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out, s.err
}

func (s *fakeStore) GetVideo(_ context.Context, id string) (*types.VideoRecord, error) {
	return s.videos[id], s.err
}

func (s *fakeStore) ListVideos(_ context.Context, filters db.VideoFilters) ([]types.VideoRecord, error) {
	s.videoFilters = filters
	return nil, s.err
}

type fakeWorkflow struct {
	RunFunc   func(ctx context.Context, niche *types.ContentNiche) (*workflow.RunReport, error)
	RetryFunc func(ctx context.Context, jobID string) (*workflow.RunReport, error)
}

func (f *fakeWorkflow) RunWithReport(ctx context.Context, niche *types.ContentNiche) (*workflow.RunReport, error) {
	return f.RunFunc(ctx, niche)
}

func (f *fakeWorkflow) RetryWithReport(ctx context.Context, jobID string) (*workflow.RunReport, error) {
	return f.RetryFunc(ctx, jobID)
}

type fakeBatch struct {
	release chan struct{}
	started chan []string
}

func newFakeBatch() *fakeBatch {
	return &fakeBatch{release: make(chan struct{}), started: make(chan []string, 4)}
}

func (b *fakeBatch) RunAll(ctx context.Context, niches []types.ContentNiche) []scheduler.Outcome {
	ids := make([]string, len(niches))
	for i, n := range niches {
		ids[i] = n.ID
	}
	b.started <- ids
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return []scheduler.Outcome{{NicheID: ids[0], VideoID: "v"}}
}

type fakeCollector struct {
	CollectFunc func(ctx context.Context) (*analytics.Summary, error)
}

func (c *fakeCollector) CollectAll(ctx context.Context) (*analytics.Summary, error) {
	return c.CollectFunc(ctx)
}

// --- harness ---

type testServer struct {
	srv       *Server
	handler   http.Handler
	store     *fakeStore
	workflow  *fakeWorkflow
	batch     *fakeBatch
	collector *fakeCollector
	registry  *prometheus.Registry
	logs      *syncBuffer
}

// syncBuffer is a log sink that background runs and the test can share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	ts := &testServer{
		store: newFakeStore(),
		workflow: &fakeWorkflow{
			RunFunc: func(context.Context, *types.ContentNiche) (*workflow.RunReport, error) {
				return &workflow.RunReport{JobID: "job", VideoID: videoID}, nil
			},
			RetryFunc: func(context.Context, string) (*workflow.RunReport, error) {
				return &workflow.RunReport{JobID: "job-2", VideoID: videoID}, nil
			},
		},
		batch: newFakeBatch(),
		collector: &fakeCollector{CollectFunc: func(context.Context) (*analytics.Summary, error) {
			return &analytics.Summary{Niches: 2, Videos: 3, Posts: 4, Updated: 3, Failed: 1, Duration: 2 * time.Second}, nil
		}},
		registry: prometheus.NewRegistry(),
		logs:     &syncBuffer{},
	}
	recorder, err := metrics.NewRecorder(ts.registry)
	require.NoError(t, err)

	cfg := Config{
		RateLimit: &ratelimit.Config{Enabled: false},
		Logger:    log.New(ts.logs, "", 0),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg, Deps{
		Store:     ts.store,
		Workflow:  ts.workflow,
		Batch:     ts.batch,
		Collector: ts.collector,
		Metrics:   recorder,
		Gatherer:  ts.registry,
	})
	require.NoError(t, err)
	ts.srv = srv
	ts.handler = srv.Handler()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx) //nolint:errcheck
	})
	return ts
}

func (ts *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (ts *testServer) waitStarted(t *testing.T) []string {
	t.Helper()
	select {
	case ids := <-ts.batch.started:
		return ids
	case <-time.After(2 * time.Second):
		t.Fatal("batch run did not start")
		return nil
	}
}

// --- tests ---

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestGenerate_AllNichesInBackground(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/generate", "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp TriggerResponse
	decode(t, w, &resp)
	assert.Equal(t, "started", resp.Status)
	assert.Equal(t, []string{"tech", "fun"}, resp.NicheIDs)
	assert.Equal(t, []string{"tech", "fun"}, ts.waitStarted(t))

	// A second trigger while the first is running is rejected.
	w = ts.do(http.MethodPost, "/generate", `{"niche_id":"fun"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already in progress")

	// Retry shares the same guard.
	w = ts.do(http.MethodPost, "/jobs/"+failedJobID+"/retry", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	close(ts.batch.release)
	require.Eventually(t, func() bool { return !ts.srv.generating.Load() }, 2*time.Second, 10*time.Millisecond)

	w = ts.do(http.MethodPost, "/generate", `{"niche_id":"fun"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"fun"}, ts.waitStarted(t))
}

func TestGenerate_UnknownNicheReleasesGuard(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/generate", `{"niche_id":"nope"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, ts.srv.generating.Load())

	w = ts.do(http.MethodPost, "/generate", `{"niche_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate_NoNiches(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.store.niches = nil
	w := ts.do(http.MethodPost, "/generate", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateStream(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.workflow.RunFunc = func(ctx context.Context, niche *types.ContentNiche) (*workflow.RunReport, error) {
		progress := workflow.ProgressFrom(ctx)
		require.NotNil(t, progress)
		progress(workflow.ProgressEvent{JobID: "job", Step: workflow.StepCreateJob, Message: "Started " + niche.ID})
		progress(workflow.ProgressEvent{JobID: "job", Step: workflow.StepPost, Message: "Posted to 1 of 1 platforms"})
		return &workflow.RunReport{
			JobID:   "job",
			VideoID: videoID,
			Brief:   &types.CreativeBrief{Prompt: "a robot explains recursion"},
			Results: []workflow.PlatformResult{{
				Platform: types.PlatformYouTube,
				Post:     types.PlatformPost{Platform: types.PlatformYouTube, Status: types.PostStatusPosted, PostID: "yt1"},
			}},
		}, nil
	}

	w := ts.do(http.MethodPost, "/generate/stream", `{"niche_id":"tech"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event: step\n"))
	assert.Contains(t, body, "Started tech")
	assert.Contains(t, body, "event: complete\n")
	assert.Contains(t, body, `"post_id":"yt1"`)
	assert.Contains(t, body, `"prompt":"a robot explains recursion"`)
	assert.False(t, ts.srv.generating.Load())
}

func TestGenerateStream_Failure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.workflow.RunFunc = func(context.Context, *types.ContentNiche) (*workflow.RunReport, error) {
		return &workflow.RunReport{JobID: "job"}, &workflow.StepError{Step: workflow.StepGenerateVideo, Cause: errors.New("provider down")}
	}

	w := ts.do(http.MethodPost, "/generate/stream", `{"niche_id":"tech"}`)
	body := w.Body.String()
	assert.Contains(t, body, "event: error\n")
	assert.Contains(t, body, `"step":"generate_video"`)
	assert.Contains(t, body, `"status":"failed"`)

	w = ts.do(http.MethodPost, "/generate/stream", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetry(t *testing.T) {
	ts := newTestServer(t, nil)
	retried := make(chan string, 1)
	ts.workflow.RetryFunc = func(_ context.Context, jobID string) (*workflow.RunReport, error) {
		retried <- jobID
		return &workflow.RunReport{JobID: "new", VideoID: videoID}, nil
	}

	tests := []struct {
		name string
		id   string
		want int
	}{
		{name: "not a uuid", id: "abc", want: http.StatusBadRequest},
		{name: "unknown", id: "44444444-4444-4444-4444-444444444444", want: http.StatusNotFound},
		{name: "not failed", id: completedJobID, want: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/jobs/"+tt.id+"/retry", "")
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
	assert.Empty(t, retried, "rejected retries have no side effects")

	w := ts.do(http.MethodPost, "/jobs/"+failedJobID+"/retry", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp TriggerResponse
	decode(t, w, &resp)
	assert.Equal(t, failedJobID, resp.RetryOf)

	select {
	case id := <-retried:
		assert.Equal(t, failedJobID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not run")
	}
}

func TestCollect(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/analytics/collect", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp CollectResponse
	decode(t, w, &resp)
	assert.Equal(t, 2, resp.Niches)
	assert.Equal(t, 3, resp.Updated)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, int64(2000), resp.DurationMS)

	ts.collector.CollectFunc = func(context.Context) (*analytics.Summary, error) {
		return nil, errors.New("db down")
	}
	w = ts.do(http.MethodPost, "/analytics/collect", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, ts.srv.collecting.Load())
}

func TestCollect_Busy(t *testing.T) {
	ts := newTestServer(t, nil)
	entered := make(chan struct{})
	unblock := make(chan struct{})
	ts.collector.CollectFunc = func(context.Context) (*analytics.Summary, error) {
		close(entered)
		<-unblock
		return &analytics.Summary{}, nil
	}

	done := make(chan int)
	go func() { done <- ts.do(http.MethodPost, "/analytics/collect", "").Code }()
	<-entered

	assert.Equal(t, http.StatusConflict, ts.do(http.MethodPost, "/analytics/collect", "").Code)
	// Generation is guarded separately.
	assert.Equal(t, http.StatusAccepted, ts.do(http.MethodPost, "/generate", `{"niche_id":"fun"}`).Code)
	ts.waitStarted(t)

	metricsBody := ts.do(http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, metricsBody, `autopilot_trigger_busy{operation="collect"} 1`)

	close(unblock)
	assert.Equal(t, http.StatusOK, <-done)
	close(ts.batch.release)
}

func TestInspection(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/jobs?niche_id=tech&status=failed&limit=500", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.JobFilters{NicheID: "tech", Status: types.JobStatusFailed, Limit: maxListLimit}, ts.store.lastFilters)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/jobs?status=done", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/jobs?type=render", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/jobs?limit=0", "").Code)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/jobs/"+failedJobID, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/jobs/44444444-4444-4444-4444-444444444444", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/jobs/not-a-uuid", "").Code)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/videos/"+videoID, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/videos/44444444-4444-4444-4444-444444444444", "").Code)

	w = ts.do(http.MethodGet, "/niches/tech/videos?status=posted", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"videos":[],"count":0}`, w.Body.String())
	assert.Equal(t, "tech", ts.store.videoFilters.NicheID)
	assert.Equal(t, types.VideoStatusPosted, ts.store.videoFilters.Status)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/niches/tech/videos?status=archived", "").Code)

	ts.store.err = errors.New("connection reset")
	w = ts.do(http.MethodGet, "/jobs", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Database error")
}

func TestNiches_RedactSecrets(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/niches", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "s3cr3t-value")
	assert.NotContains(t, w.Body.String(), "r3fresh-value")
	assert.Contains(t, w.Body.String(), `"client_id":"client"`)

	w = ts.do(http.MethodGet, "/niches/tech", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "s3cr3t-value")
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/niches/nope", "").Code)
}

func TestAuth(t *testing.T) {
	auth := &config.TriggerAuthConfig{Secret: "test-secret-0123456789", ExpirationHours: 1}
	ts := newTestServer(t, func(c *Config) { c.Auth = auth })

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/generate", "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/jobs", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/metrics", "").Code)

	token, err := NewTokenService(auth).GenerateToken("cron")
	require.NoError(t, err)
	w := ts.do(http.MethodPost, "/generate", `{"niche_id":"tech"}`, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusAccepted, w.Code)
	ts.waitStarted(t)
	close(ts.batch.release)
	assert.Contains(t, ts.logs.String(), "triggered by cron")
}

func TestAssets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "videos", "tech"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "videos", "tech", "v1.mp4"), []byte("mp4-bytes"), 0o644))
	ts := newTestServer(t, func(c *Config) { c.AssetsDir = dir })

	w := ts.do(http.MethodGet, "/assets/videos/tech/v1.mp4", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mp4-bytes", w.Body.String())

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/assets/videos/tech/", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/assets/videos/tech/missing.mp4", "").Code)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *Config) {
		c.RateLimit = &ratelimit.Config{
			Enabled:         true,
			DefaultLimit:    1000,
			DefaultWindow:   time.Minute,
			EndpointConfigs: []ratelimit.EndpointConfig{{Path: "/analytics/collect", Method: "POST", Limit: 1, Window: time.Hour}},
		}
	})

	w := ts.do(http.MethodPost, "/analytics/collect", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = ts.do(http.MethodPost, "/analytics/collect", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
}
