package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/commit-digest/internal/core"
)

// WebhookProcessingHandler ingests webhook deliveries that were queued instead
// of handled inline.
type WebhookProcessingHandler struct {
	ingestor *Ingestor
	logger   *slog.Logger
}

func NewWebhookProcessingHandler(ingestor *Ingestor, logger *slog.Logger) *WebhookProcessingHandler {
	return &WebhookProcessingHandler{ingestor: ingestor, logger: logger}
}

func (h *WebhookProcessingHandler) Type() core.JobType { return core.JobTypeWebhookProcessing }

func (h *WebhookProcessingHandler) Validate(job *core.Job) error {
	return validatePayload[*core.WebhookProcessingPayload](job)
}

func (h *WebhookProcessingHandler) EstimatedDuration(*core.Job) time.Duration { return 2 * time.Second }

func (h *WebhookProcessingHandler) Handle(ctx context.Context, job *core.Job) (*core.JobResult, error) {
	p, err := payloadOf[*core.WebhookProcessingPayload](job)
	if err != nil {
		return nil, err
	}
	if p.EventType != "push" {
		return core.Succeeded(map[string]any{"ignored": true, "event_type": p.EventType}), nil
	}

	var raw github.PushEvent
	if err := json.Unmarshal(p.Payload, &raw); err != nil {
		return core.Failed("invalid_payload", fmt.Errorf("failed to decode push payload: %w", err), nil), nil
	}
	ev, err := core.EventFromPush(&raw)
	if err != nil {
		h.logger.Info("push ignored", "delivery_id", p.DeliveryID, "reason", err)
		return core.Succeeded(map[string]any{"ignored": true, "reason": err.Error()}), nil
	}
	if ev.InstallationID == 0 {
		ev.InstallationID = p.InstallationID
	}

	res, err := h.ingestor.IngestPush(ctx, ev)
	if err != nil {
		if errors.Is(err, ErrUnknownRepository) {
			return core.Failed("project_not_found", err, map[string]any{"repository": ev.RepoFullName}), nil
		}
		return core.Failed("ingest_failed", err, nil), nil
	}
	return core.Succeeded(map[string]any{
		"project_id":               res.ProjectID,
		"commits_created":          len(res.Created),
		"commits_skipped":          len(res.Skipped),
		"fetch_diff_job_ids":       res.FetchDiffJobIDs(),
		"generate_summary_job_ids": res.SummaryJobIDs(),
	}), nil
}
