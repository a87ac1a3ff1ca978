package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/storage"
)

// Pipeline priorities. Ingestion runs first so later stages have commits to work on.
const (
	PriorityWebhook         = 80
	PriorityFetchDiff       = 70
	PriorityGenerateSummary = 60
	PrioritySendEmail       = 50
)

// CommitPipelineInput describes the commit a pipeline is built for.
type CommitPipelineInput struct {
	Commit         *core.Commit
	Project        *core.Project
	Owner          string
	Repo           string
	InstallationID int64
}

// CommitPipeline holds the jobs created for one commit.
type CommitPipeline struct {
	FetchDiff       *core.Job
	GenerateSummary *core.Job
}

// Composer creates the job chains of the digest pipeline.
type Composer struct {
	store  storage.JobStore
	logger *slog.Logger
}

func NewComposer(store storage.JobStore, logger *slog.Logger) *Composer {
	return &Composer{store: store, logger: logger}
}

// ComposeCommitPipeline enqueues fetch_diff and a generate_summary that
// depends on it. If the second job cannot be created the first is removed.
func (c *Composer) ComposeCommitPipeline(ctx context.Context, in CommitPipelineInput) (*CommitPipeline, error) {
	commitID := in.Commit.ID
	projectID := in.Project.ID

	fetch, err := c.store.CreateJob(ctx, core.NewJob{
		Type:     core.JobTypeFetchDiff,
		Priority: PriorityFetchDiff,
		Data: &core.FetchDiffPayload{
			CommitID:        commitID,
			ProjectID:       projectID,
			RepositoryOwner: in.Owner,
			RepositoryName:  in.Repo,
			BaseSHA:         in.Commit.BaseSHA,
			HeadSHA:         in.Commit.SHA,
			InstallationID:  in.InstallationID,
		},
		CommitID:  &commitID,
		ProjectID: &projectID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue fetch_diff for %s: %w", in.Commit.SHA, err)
	}

	summary, err := c.store.CreateJob(ctx, core.NewJob{
		Type:     core.JobTypeGenerateSummary,
		Priority: PriorityGenerateSummary,
		Data: &core.GenerateSummaryPayload{
			CommitID:      commitID,
			ProjectID:     projectID,
			CustomContext: in.Project.CustomContext,
		},
		CommitID:  &commitID,
		ProjectID: &projectID,
		DependsOn: []string{fetch.ID},
	})
	if err != nil {
		if derr := c.store.DeleteJob(ctx, fetch.ID); derr != nil {
			c.logger.Error("failed to remove orphaned fetch_diff job", "job_id", fetch.ID, "error", derr)
		}
		return nil, fmt.Errorf("failed to enqueue generate_summary for %s: %w", in.Commit.SHA, err)
	}

	c.logger.Info("commit pipeline enqueued",
		"commit", in.Commit.SHA,
		"fetch_diff_job", fetch.ID,
		"generate_summary_job", summary.ID,
	)
	return &CommitPipeline{FetchDiff: fetch, GenerateSummary: summary}, nil
}

// HasPipeline reports whether any fetch_diff job exists for the commit.
func (c *Composer) HasPipeline(ctx context.Context, commitID string) (bool, error) {
	jobs, err := c.store.GetJobsByFilter(ctx, core.JobFilter{
		Types:    []core.JobType{core.JobTypeFetchDiff},
		CommitID: commitID,
		Limit:    1,
	})
	if err != nil {
		return false, err
	}
	return len(jobs) > 0, nil
}

// EnqueueWebhook defers ingestion of a webhook delivery.
func (c *Composer) EnqueueWebhook(ctx context.Context, payload *core.WebhookProcessingPayload) (*core.Job, error) {
	job, err := c.store.CreateJob(ctx, core.NewJob{
		Type:     core.JobTypeWebhookProcessing,
		Priority: PriorityWebhook,
		Data:     payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue webhook delivery %s: %w", payload.DeliveryID, err)
	}
	return job, nil
}

// EnqueueEmail schedules a notification for commits of project.
func (c *Composer) EnqueueEmail(ctx context.Context, project *core.Project, commitIDs []string, tmpl core.EmailTemplateType) (*core.Job, error) {
	projectID := project.ID
	nj := core.NewJob{
		Type:     core.JobTypeSendEmail,
		Priority: PrioritySendEmail,
		Data: &core.SendEmailPayload{
			CommitIDs:    commitIDs,
			ProjectID:    projectID,
			TemplateType: tmpl,
		},
		ProjectID: &projectID,
	}
	if len(commitIDs) == 1 {
		id := commitIDs[0]
		nj.CommitID = &id
	}
	job, err := c.store.CreateJob(ctx, nj)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue send_email: %w", err)
	}
	return job, nil
}
