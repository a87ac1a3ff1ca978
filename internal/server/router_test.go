package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/commit-digest/internal/config"
	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/jobs"
	"github.com/sevigo/commit-digest/internal/telemetry"
	"github.com/sevigo/commit-digest/internal/testutil"
)

const testSecret = "s3cret"

const pushBody = `{
	"ref": "refs/heads/main",
	"before": "0000000000000000000000000000000000000000",
	"repository": {"name": "widgets", "full_name": "acme/widgets", "owner": {"login": "acme"}},
	"installation": {"id": 42},
	"commits": [{"id": "aaa111", "message": "Add CSV export", "author": {"name": "Dana", "username": "dana"}}]
}`

type testEnv struct {
	f       *testutil.Fixture
	metrics *telemetry.Metrics
	router  http.Handler
}

func newTestEnv(t *testing.T, mode string) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := testutil.NewFixture(t)
	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)
	composer := jobs.NewComposer(f.Jobs, logger)
	processor := jobs.NewProcessor(f.Jobs, logger, jobs.WithClock(f.Clock.Now))

	cfg := &config.Config{
		GitHub:  config.GitHubConfig{WebhookSecret: testSecret},
		Webhook: config.WebhookConfig{Mode: mode},
	}
	router := NewRouter(cfg, Dependencies{
		Ingestor:       jobs.NewIngestor(f.Projects, f.Commits, composer, logger),
		Enqueuer:       composer,
		Jobs:           f.Jobs,
		Processor:      processor,
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, logger)
	return &testEnv{f: f, metrics: metrics, router: router}
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (e *testEnv) webhook(t *testing.T, event, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/github", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	req.Header.Set("X-Hub-Signature-256", signature)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, path, body))
	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, "direct")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	e := newTestEnv(t, "direct")
	rec := e.webhook(t, "push", pushBody, "sha256=deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1.0, promtest.ToFloat64(e.metrics.WebhooksReceived.WithLabelValues("push", "unauthorized")))

	jobList, err := e.f.Jobs.GetJobsByFilter(context.Background(), core.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobList)
}

func TestWebhook_PingAndIgnoredEvents(t *testing.T) {
	e := newTestEnv(t, "direct")
	body := `{"zen": "Design for failure."}`
	rec := e.webhook(t, "ping", body, sign([]byte(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pong")

	body = `{"action": "opened"}`
	rec = e.webhook(t, "issues", body, sign([]byte(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")

	body = `{"ref": "refs/tags/v1.0.0", "repository": {"name": "widgets", "full_name": "acme/widgets"}}`
	rec = e.webhook(t, "push", body, sign([]byte(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestWebhook_DirectPushCreatesPipeline(t *testing.T) {
	e := newTestEnv(t, "direct")
	ctx := context.Background()
	project := e.f.SeedProject(t, testutil.ProjectSeed{Credits: 5})

	rec := e.webhook(t, "push", pushBody, sign([]byte(pushBody)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "accepted", out["status"])
	assert.Equal(t, project.ID, out["project_id"])
	assert.EqualValues(t, 1, out["commits_created"])

	fetches, err := e.f.Jobs.GetJobsByFilter(ctx, core.JobFilter{Types: []core.JobType{core.JobTypeFetchDiff}})
	require.NoError(t, err)
	require.Len(t, fetches, 1)
	assert.Equal(t, jobs.PriorityFetchDiff, fetches[0].Priority)

	// Redelivery is a no-op.
	rec = e.webhook(t, "push", pushBody, sign([]byte(pushBody)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.EqualValues(t, 0, out["commits_created"])
	assert.Equal(t, 2.0, promtest.ToFloat64(e.metrics.WebhooksReceived.WithLabelValues("push", "accepted")))
}

func TestWebhook_DirectPushUnknownRepository(t *testing.T) {
	e := newTestEnv(t, "direct")
	rec := e.webhook(t, "push", pushBody, sign([]byte(pushBody)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhook_AsyncPushQueuesDelivery(t *testing.T) {
	e := newTestEnv(t, "async")
	ctx := context.Background()

	rec := e.webhook(t, "push", pushBody, sign([]byte(pushBody)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "queued", out["status"])

	job, err := e.f.Jobs.GetJob(ctx, out["job_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, core.JobTypeWebhookProcessing, job.Type)
	assert.Equal(t, jobs.PriorityWebhook, job.Priority)
	p := job.Data.(*core.WebhookProcessingPayload)
	assert.Equal(t, "delivery-1", p.DeliveryID)
	assert.Equal(t, int64(42), p.InstallationID)
	assert.JSONEq(t, pushBody, string(p.Payload))
}

func TestJobsAPI(t *testing.T) {
	e := newTestEnv(t, "direct")
	ctx := context.Background()
	e.f.SeedProject(t, testutil.ProjectSeed{})
	rec := e.webhook(t, "push", pushBody, sign([]byte(pushBody)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec, out := e.do(t, http.MethodGet, "/api/v1/jobs?status=pending&type=generate_summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, out["count"])
	summary := out["jobs"].([]any)[0].(map[string]any)
	summaryID := summary["id"].(string)
	assert.NotContains(t, summary, "depends_on", "list view omits dependency edges")

	rec, out = e.do(t, http.MethodGet, "/api/v1/jobs/"+summaryID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "generate_summary", out["type"])
	assert.Len(t, out["depends_on"], 1)

	rec, _ = e.do(t, http.MethodGet, "/api/v1/jobs?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = e.do(t, http.MethodGet, "/api/v1/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, out = e.do(t, http.MethodPost, "/api/v1/jobs/"+summaryID+"/cancel", bytes.NewBufferString(`{"reason": "not needed"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", out["status"])
	assert.Equal(t, "not needed", out["error"])

	rec, _ = e.do(t, http.MethodPost, "/api/v1/jobs/"+summaryID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, out = e.do(t, http.MethodPost, "/api/v1/jobs/"+summaryID+"/retry", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", out["status"])
	assert.EqualValues(t, 0, out["attempts"])

	rec, out = e.do(t, http.MethodGet, "/api/v1/jobs/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queue := out["queue"].(map[string]any)
	assert.EqualValues(t, 2, queue["total"])
	assert.Contains(t, out, "processor")

	job, err := e.f.Jobs.GetJob(ctx, summaryID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, job.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t, "direct")
	body := `{"zen": "ok"}`
	e.webhook(t, "ping", body, sign([]byte(body)))

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `commit_digest_webhooks_received_total{event="ping",result="ok"} 1`)
}
