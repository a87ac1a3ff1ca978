package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/storage"
)

// GenerateSummaryHandler summarizes a commit diff with the LLM, saves the
// summary, charges the project owner and enqueues the notification email.
type GenerateSummaryHandler struct {
	store      storage.JobStore
	commits    core.CommitStore
	projects   core.ProjectStore
	summarizer core.Summarizer
	billing    core.BillingLedger
	composer   *Composer
	logger     *slog.Logger
	now        func() time.Time
}

func NewGenerateSummaryHandler(store storage.JobStore, commits core.CommitStore, projects core.ProjectStore,
	summarizer core.Summarizer, billing core.BillingLedger, composer *Composer, logger *slog.Logger) *GenerateSummaryHandler {
	return &GenerateSummaryHandler{
		store:      store,
		commits:    commits,
		projects:   projects,
		summarizer: summarizer,
		billing:    billing,
		composer:   composer,
		logger:     logger,
		now:        time.Now,
	}
}

func (h *GenerateSummaryHandler) Type() core.JobType { return core.JobTypeGenerateSummary }

func (h *GenerateSummaryHandler) Validate(job *core.Job) error {
	return validatePayload[*core.GenerateSummaryPayload](job)
}

func (h *GenerateSummaryHandler) EstimatedDuration(*core.Job) time.Duration { return time.Minute }

func (h *GenerateSummaryHandler) Handle(ctx context.Context, job *core.Job) (*core.JobResult, error) {
	p, err := payloadOf[*core.GenerateSummaryPayload](job)
	if err != nil {
		return nil, err
	}

	commit, err := h.commits.GetCommit(ctx, p.CommitID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Failed("commit_not_found", err, nil), nil
		}
		return core.Failed("commit_lookup_failed", err, nil), nil
	}
	log := h.logger.With("job_id", job.ID, "commit", commit.SHA)

	projectID := p.ProjectID
	if projectID == "" {
		projectID = commit.ProjectID
	}
	project, err := h.projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Failed("project_not_found", err, nil), nil
		}
		return core.Failed("project_lookup_failed", err, nil), nil
	}

	// A retry after the summary was saved only needs the email follow-up.
	if commit.HasSummary() {
		emailJobID := h.maybeEnqueueEmail(ctx, log, commit, project)
		return core.Succeeded(map[string]any{
			"skipped":      true,
			"reason":       "already_summarized",
			"email_job_id": emailJobID,
		}), nil
	}

	if project.UserID == nil || *project.UserID == "" {
		return core.Failed("project_missing_user",
			fmt.Errorf("project %s has no billing user", project.ID), nil), nil
	}
	userID := *project.UserID

	diff, source, err := h.resolveDiff(ctx, job, p)
	if err != nil {
		return core.Failed("diff_lookup_failed", err, nil), nil
	}
	if diff == "" {
		return core.Failed("diff_unavailable",
			fmt.Errorf("no diff content for commit %s", commit.SHA), nil), nil
	}

	cost := h.billing.EstimateSummaryCredits(diff)
	ok, err := h.billing.HasCredits(ctx, userID, cost)
	if err != nil {
		return core.Failed("billing_check_failed", err, nil), nil
	}
	if !ok {
		return core.Failed("insufficient_credits", errors.New("Insufficient credits"),
			map[string]any{"required_credits": cost}), nil
	}

	customContext := p.CustomContext
	if customContext == "" {
		customContext = project.CustomContext
	}
	md := core.SummaryMetadata{
		Repository:    project.RepositoryFullName,
		CommitSHA:     commit.SHA,
		CommitMessage: commit.Message,
		Author:        commit.AuthorLogin,
		Branch:        commit.Branch,
	}
	if md.Author == "" {
		md.Author = commit.AuthorName
	}
	prTitle := ""
	if commit.PRNumber != nil {
		md.PRNumber = *commit.PRNumber
	}
	if commit.PRTitle != nil {
		prTitle = *commit.PRTitle
		md.PRTitle = prTitle
	}
	md.IssueRefs = ExtractIssueRefs(commit.Message, prTitle)

	summary, err := h.summarizer.ProcessDiff(ctx, diff, core.SummaryOptions{CustomContext: customContext, Metadata: md})
	if err != nil {
		return core.Failed("summarization_failed", err, nil), nil
	}

	changeType := string(summary.ChangeType)
	summarizedAt := h.now().UTC()
	err = h.commits.UpdateCommit(ctx, commit.ID, core.CommitUpdate{
		Summary:      &summary.Summary,
		ChangeType:   &changeType,
		Confidence:   &summary.Confidence,
		SummarizedAt: &summarizedAt,
	})
	if err != nil {
		return core.Failed("summary_save_failed", err, nil), nil
	}

	data := map[string]any{
		"summary":            summary.Summary,
		"change_type":        changeType,
		"confidence":         summary.Confidence,
		"tokens_used":        summary.TokensUsed,
		"processing_time_ms": summary.ProcessingTime.Milliseconds(),
		"template_used":      summary.TemplateUsed,
		"diff_source":        source,
		"credits_charged":    cost,
	}

	// The summary is already saved; a failed deduction is logged, not retried.
	description := fmt.Sprintf("Summary of %s@%s", project.RepositoryFullName, commit.ShortSHA())
	if err := h.billing.DeductCredits(ctx, userID, cost, description); err != nil {
		log.Error("failed to deduct credits after summarizing", "user_id", userID, "credits", cost, "error", err)
		data["credits_charged"] = 0
		data["billing_error"] = err.Error()
	}

	data["email_job_id"] = h.maybeEnqueueEmail(ctx, log, commit, project)
	return core.Succeeded(data), nil
}

// resolveDiff reads the diff from the payload, then the results of the jobs
// this job depends on, then any completed fetch_diff job of the commit.
func (h *GenerateSummaryHandler) resolveDiff(ctx context.Context, job *core.Job, p *core.GenerateSummaryPayload) (string, string, error) {
	if p.DiffContent != "" {
		return p.DiffContent, "payload", nil
	}

	deps, err := h.store.GetJobDependencies(ctx, job.ID)
	if err != nil {
		return "", "", fmt.Errorf("failed to load dependencies: %w", err)
	}
	for _, dep := range deps {
		upstream, err := h.store.GetJob(ctx, dep.DependsOnJobID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return "", "", fmt.Errorf("failed to load dependency %s: %w", dep.DependsOnJobID, err)
		}
		if res, ok := upstream.Result(); ok {
			if diff, ok := diffFromResult(res); ok {
				return diff, "dependency", nil
			}
		}
	}

	done, err := h.store.GetJobsByFilter(ctx, core.JobFilter{
		Types:    []core.JobType{core.JobTypeFetchDiff},
		Statuses: []core.JobStatus{core.JobStatusCompleted},
		CommitID: p.CommitID,
		Limit:    5,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to search fetch_diff jobs: %w", err)
	}
	for _, upstream := range done {
		if res, ok := upstream.Result(); ok {
			if diff, ok := diffFromResult(res); ok {
				return diff, "commit_history", nil
			}
		}
	}
	return "", "", nil
}

// diffFromResult reads diff_content from a job result, also accepting the
// older layout that nested it under "data".
func diffFromResult(res map[string]any) (string, bool) {
	if diff, ok := res["diff_content"].(string); ok && diff != "" {
		return diff, true
	}
	if nested, ok := res["data"].(map[string]any); ok {
		if diff, ok := nested["diff_content"].(string); ok && diff != "" {
			return diff, true
		}
	}
	return "", false
}

// maybeEnqueueEmail schedules the notification unless the project has no
// recipients, the commit was already emailed or an email job is in flight.
// Failures are logged; the summary stands either way.
func (h *GenerateSummaryHandler) maybeEnqueueEmail(ctx context.Context, log *slog.Logger, commit *core.Commit, project *core.Project) string {
	if len(project.EmailRecipients) == 0 || commit.EmailSent {
		return ""
	}
	inFlight, err := h.store.GetJobsByFilter(ctx, core.JobFilter{
		Types:    []core.JobType{core.JobTypeSendEmail},
		Statuses: []core.JobStatus{core.JobStatusPending, core.JobStatusRunning},
		CommitID: commit.ID,
		Limit:    1,
	})
	if err != nil {
		log.Warn("failed to check for pending email jobs", "error", err)
		return ""
	}
	if len(inFlight) > 0 {
		return inFlight[0].ID
	}
	job, err := h.composer.EnqueueEmail(ctx, project, []string{commit.ID}, core.EmailTemplateSingleCommit)
	if err != nil {
		log.Error("failed to enqueue email", "error", err)
		return ""
	}
	return job.ID
}
