package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/email"
)

// SendEmailHandler renders and delivers commit notifications. Every attempt is
// recorded in the email ledger before sending, so a retry never sends twice
// once a delivery has been confirmed.
type SendEmailHandler struct {
	commits  core.CommitStore
	projects core.ProjectStore
	sender   core.EmailSender
	tracker  core.EmailTracker
	renderer *email.Renderer
	from     string
	logger   *slog.Logger
}

func NewSendEmailHandler(commits core.CommitStore, projects core.ProjectStore, sender core.EmailSender,
	tracker core.EmailTracker, renderer *email.Renderer, from string, logger *slog.Logger) *SendEmailHandler {
	return &SendEmailHandler{
		commits:  commits,
		projects: projects,
		sender:   sender,
		tracker:  tracker,
		renderer: renderer,
		from:     from,
		logger:   logger,
	}
}

func (h *SendEmailHandler) Type() core.JobType { return core.JobTypeSendEmail }

func (h *SendEmailHandler) Validate(job *core.Job) error {
	return validatePayload[*core.SendEmailPayload](job)
}

func (h *SendEmailHandler) EstimatedDuration(*core.Job) time.Duration { return 5 * time.Second }

func (h *SendEmailHandler) Handle(ctx context.Context, job *core.Job) (*core.JobResult, error) {
	p, err := payloadOf[*core.SendEmailPayload](job)
	if err != nil {
		return nil, err
	}
	log := h.logger.With("job_id", job.ID, "project_id", p.ProjectID)

	project, err := h.projects.GetProject(ctx, p.ProjectID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Failed("project_not_found", err, nil), nil
		}
		return core.Failed("project_lookup_failed", err, nil), nil
	}

	commits := make([]*core.Commit, 0, len(p.CommitIDs))
	for _, id := range p.CommitIDs {
		c, err := h.commits.GetCommit(ctx, id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return core.Failed("commit_not_found", err, map[string]any{"commit_id": id}), nil
			}
			return core.Failed("commit_lookup_failed", err, nil), nil
		}
		if !c.HasSummary() {
			return core.Failed("commit_missing_summary",
				fmt.Errorf("commit %s has no summary yet", c.SHA), map[string]any{"commit_id": id}), nil
		}
		commits = append(commits, c)
	}

	recipients := p.Recipients
	if len(recipients) == 0 {
		recipients = project.EmailRecipients
	}
	if len(recipients) == 0 {
		return core.Failed("no_recipients",
			fmt.Errorf("project %s has no email recipients", project.ID), nil), nil
	}

	prior, err := h.tracker.ListEmailSendsForJob(ctx, job.ID)
	if err != nil {
		return core.Failed("email_ledger_failed", err, nil), nil
	}
	for _, s := range prior {
		if s.Status == core.EmailSendSent {
			log.Info("email already delivered by an earlier attempt", "email_send_id", s.ID, "attempt", s.Attempt)
			h.markSent(ctx, log, commits)
			return core.Succeeded(map[string]any{"skipped": true, "email_send_id": s.ID}), nil
		}
	}

	tmpl := p.TemplateType
	if tmpl == "" {
		tmpl = core.EmailTemplateSingleCommit
		if len(commits) > 1 {
			tmpl = core.EmailTemplateDigest
		}
	}
	subject, html, err := h.renderer.Render(email.RenderInput{
		Project:      project,
		Commits:      commits,
		TemplateType: tmpl,
		Subject:      p.Subject,
	})
	if err != nil {
		return core.Failed("render_failed", err, nil), nil
	}

	sendID, err := h.tracker.RecordEmailSend(ctx, &core.EmailSend{
		JobID:        job.ID,
		Attempt:      job.Attempts + 1,
		ProjectID:    project.ID,
		CommitIDs:    p.CommitIDs,
		Recipients:   recipients,
		Subject:      subject,
		TemplateType: tmpl,
		Status:       core.EmailSendPending,
	})
	if err != nil {
		return core.Failed("email_ledger_failed", err, nil), nil
	}

	err = h.sender.SendEmail(ctx, core.EmailMessage{To: recipients, From: h.from, Subject: subject, HTML: html})
	if err != nil {
		if merr := h.tracker.MarkEmailSendStatus(ctx, sendID, core.EmailSendFailed, err.Error()); merr != nil {
			log.Error("failed to record email failure", "email_send_id", sendID, "error", merr)
		}
		return core.Failed("email_send_failed", err, map[string]any{"email_send_id": sendID}), nil
	}
	if err := h.tracker.MarkEmailSendStatus(ctx, sendID, core.EmailSendSent, ""); err != nil {
		log.Error("failed to record email delivery", "email_send_id", sendID, "error", err)
	}
	h.markSent(ctx, log, commits)

	log.Info("email sent", "template", tmpl, "recipients", len(recipients), "commits", len(commits))
	return core.Succeeded(map[string]any{
		"email_send_id": sendID,
		"subject":       subject,
		"template_type": string(tmpl),
		"recipients":    len(recipients),
	}), nil
}

func (h *SendEmailHandler) markSent(ctx context.Context, log *slog.Logger, commits []*core.Commit) {
	for _, c := range commits {
		if err := h.commits.MarkCommitAsEmailSent(ctx, c.ID); err != nil {
			log.Warn("failed to flag commit as emailed", "commit", c.SHA, "error", err)
		}
	}
}
