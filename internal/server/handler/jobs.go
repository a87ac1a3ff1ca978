package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/jobs"
	"github.com/sevigo/commit-digest/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ProcessorInspector exposes the in-process view of the job processor.
type ProcessorInspector interface {
	GetStats() jobs.Stats
	GetActiveJobs() []jobs.ActiveJob
}

// JobsHandler serves the read and admin endpoints of the job queue.
type JobsHandler struct {
	store     storage.JobStore
	processor ProcessorInspector
	logger    *slog.Logger
	now       func() time.Time
}

// NewJobsHandler creates the handler. processor may be nil when the process
// does not run one.
func NewJobsHandler(store storage.JobStore, processor ProcessorInspector, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{store: store, processor: processor, logger: logger, now: time.Now}
}

// List handles GET /jobs?status=&type=&project_id=&commit_id=&limit=&offset=.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseJobFilter(r.URL.Query().Get)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.store.GetJobsByFilter(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	views := make([]jobs.JobView, 0, len(list))
	for _, j := range list {
		views = append(views, jobs.NewJobView(j, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views, "count": len(views)})
}

// Stats handles GET /jobs/stats.
func (h *JobsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetQueueStats(r.Context())
	if err != nil {
		h.logger.Error("failed to load queue stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load queue stats")
		return
	}
	resp := map[string]any{
		"queue": map[string]any{
			"counts":               stats.Counts,
			"total":                stats.Total,
			"oldest_pending_since": stats.OldestPendingSince,
		},
	}
	if h.processor != nil {
		resp["processor"] = h.processor.GetStats()
		resp["active_jobs"] = h.processor.GetActiveJobs()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /jobs/{id}.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		h.storeError(w, "get", id, err)
		return
	}
	deps, err := h.store.GetJobDependencies(r.Context(), id)
	if err != nil {
		h.storeError(w, "get", id, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs.NewJobView(job, deps))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /jobs/{id}/cancel with an optional {"reason": "..."} body.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req cancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "cancelled via API"
	}
	if err := h.store.CancelJob(r.Context(), id, req.Reason); err != nil {
		h.storeError(w, "cancel", id, err)
		return
	}
	h.logger.Info("job cancelled", "job_id", id, "reason", req.Reason)
	h.respondJob(r.Context(), w, id)
}

// Retry handles POST /jobs/{id}/retry. The job becomes ready immediately.
func (h *JobsHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.ScheduleRetry(r.Context(), id, h.now()); err != nil {
		h.storeError(w, "retry", id, err)
		return
	}
	h.logger.Info("job scheduled for retry", "job_id", id)
	h.respondJob(r.Context(), w, id)
}

func (h *JobsHandler) respondJob(ctx context.Context, w http.ResponseWriter, id string) {
	job, err := h.store.GetJob(ctx, id)
	if err != nil {
		h.storeError(w, "get", id, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs.NewJobView(job, nil))
}

func (h *JobsHandler) storeError(w http.ResponseWriter, op, id string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, storage.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("job store error", "op", op, "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ParseJobFilter builds a filter from query-style parameters. Status and type
// accept comma-separated lists.
func ParseJobFilter(get func(string) string) (core.JobFilter, error) {
	f := core.JobFilter{
		ProjectID: get("project_id"),
		CommitID:  get("commit_id"),
		Limit:     defaultListLimit,
	}
	for _, s := range splitList(get("status")) {
		st := core.JobStatus(s)
		if !st.Valid() {
			return f, fmt.Errorf("unknown status %q", s)
		}
		f.Statuses = append(f.Statuses, st)
	}
	for _, s := range splitList(get("type")) {
		jt := core.JobType(s)
		if !jt.Valid() {
			return f, fmt.Errorf("unknown job type %q", s)
		}
		f.Types = append(f.Types, jt)
	}
	if v := get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = min(n, maxListLimit)
	}
	if v := get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid offset %q", v)
		}
		f.Offset = n
	}
	return f, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
