// Package handler provides the HTTP handlers of the commit-digest service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/jobs"
	"github.com/sevigo/commit-digest/internal/telemetry"
)

const (
	ModeDirect = "direct"
	ModeAsync  = "async"
)

// PushIngestor creates commits and pipelines for a push inside the request.
type PushIngestor interface {
	IngestPush(ctx context.Context, ev *core.PushEvent) (*jobs.IngestResult, error)
}

// WebhookEnqueuer defers a delivery to a webhook_processing job.
type WebhookEnqueuer interface {
	EnqueueWebhook(ctx context.Context, payload *core.WebhookProcessingPayload) (*core.Job, error)
}

// WebhookHandler processes incoming webhooks from GitHub.
type WebhookHandler struct {
	secret   []byte
	mode     string
	ingestor PushIngestor
	enqueuer WebhookEnqueuer
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// NewWebhookHandler creates a webhook handler. Mode is ModeDirect or ModeAsync.
func NewWebhookHandler(secret, mode string, ingestor PushIngestor, enqueuer WebhookEnqueuer,
	metrics *telemetry.Metrics, logger *slog.Logger) *WebhookHandler {
	if mode == "" {
		mode = ModeDirect
	}
	return &WebhookHandler{
		secret:   []byte(secret),
		mode:     mode,
		ingestor: ingestor,
		enqueuer: enqueuer,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handle validates the signature and routes the event.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	eventType := github.WebHookType(r)
	payload, err := github.ValidatePayload(r, h.secret)
	if err != nil {
		h.logger.Warn("invalid webhook payload signature", "event", eventType, "error", err)
		h.observe(eventType, "unauthorized")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	switch eventType {
	case "ping":
		h.observe(eventType, "ok")
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
	case "push":
		h.handlePush(w, r, payload)
	default:
		h.logger.Debug("ignoring unhandled webhook event type", "type", eventType)
		h.observe(eventType, "ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "event": eventType})
	}
}

func (h *WebhookHandler) handlePush(w http.ResponseWriter, r *http.Request, payload []byte) {
	event, err := github.ParseWebHook("push", payload)
	if err != nil {
		h.logger.Error("could not parse push webhook", "error", err)
		h.observe("push", "invalid")
		writeError(w, http.StatusBadRequest, "could not parse webhook")
		return
	}
	push, ok := event.(*github.PushEvent)
	if !ok {
		h.observe("push", "invalid")
		writeError(w, http.StatusBadRequest, "unexpected payload for push event")
		return
	}

	if h.mode == ModeAsync {
		job, err := h.enqueuer.EnqueueWebhook(r.Context(), &core.WebhookProcessingPayload{
			DeliveryID:     github.DeliveryID(r),
			EventType:      "push",
			InstallationID: push.GetInstallation().GetID(),
			Payload:        json.RawMessage(payload),
		})
		if err != nil {
			h.logger.Error("failed to enqueue webhook delivery", "error", err)
			h.observe("push", "error")
			writeError(w, http.StatusInternalServerError, "failed to enqueue delivery")
			return
		}
		h.observe("push", "queued")
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "job_id": job.ID})
		return
	}

	ev, err := core.EventFromPush(push)
	if err != nil {
		h.logger.Debug("ignoring push", "reason", err.Error(), "repo", push.GetRepo().GetFullName())
		h.observe("push", "ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": err.Error()})
		return
	}

	res, err := h.ingestor.IngestPush(r.Context(), ev)
	if err != nil {
		if errors.Is(err, jobs.ErrUnknownRepository) {
			h.logger.Warn("push for unconfigured repository", "repo", ev.RepoFullName)
			h.observe("push", "unknown_repository")
			writeError(w, http.StatusNotFound, "repository is not configured")
			return
		}
		h.logger.Error("failed to ingest push", "repo", ev.RepoFullName, "error", err)
		h.observe("push", "error")
		writeError(w, http.StatusInternalServerError, "failed to ingest push")
		return
	}

	h.observe("push", "accepted")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":                   "accepted",
		"project_id":               res.ProjectID,
		"commits_created":          len(res.Created),
		"commits_skipped":          len(res.Skipped),
		"fetch_diff_job_ids":       res.FetchDiffJobIDs(),
		"generate_summary_job_ids": res.SummaryJobIDs(),
	})
}

func (h *WebhookHandler) observe(event, result string) {
	if h.metrics == nil {
		return
	}
	if event == "" {
		event = "unknown"
	}
	h.metrics.WebhooksReceived.WithLabelValues(event, result).Inc()
}
