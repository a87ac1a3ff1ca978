package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sevigo/commit-digest/internal/core"
)

// ErrUnknownRepository is returned when a push arrives for a repository no
// project is configured for.
var ErrUnknownRepository = errors.New("no project configured for repository")

const zeroSHA = "0000000000000000000000000000000000000000"

// IngestResult reports what a push produced.
type IngestResult struct {
	ProjectID string            `json:"project_id"`
	Created   []string          `json:"created_commit_ids"`
	Skipped   []string          `json:"skipped_shas"`
	Pipelines []*CommitPipeline `json:"-"`
}

// FetchDiffJobIDs lists the fetch_diff job ids of the created pipelines.
func (r *IngestResult) FetchDiffJobIDs() []string {
	ids := make([]string, 0, len(r.Pipelines))
	for _, p := range r.Pipelines {
		ids = append(ids, p.FetchDiff.ID)
	}
	return ids
}

// SummaryJobIDs lists the generate_summary job ids of the created pipelines.
func (r *IngestResult) SummaryJobIDs() []string {
	ids := make([]string, 0, len(r.Pipelines))
	for _, p := range r.Pipelines {
		ids = append(ids, p.GenerateSummary.ID)
	}
	return ids
}

// Ingestor turns push events into commit rows and job pipelines. The webhook
// endpoint uses it directly and the webhook_processing handler uses it for
// deferred deliveries.
type Ingestor struct {
	projects core.ProjectStore
	commits  core.CommitStore
	composer *Composer
	logger   *slog.Logger
}

func NewIngestor(projects core.ProjectStore, commits core.CommitStore, composer *Composer, logger *slog.Logger) *Ingestor {
	return &Ingestor{projects: projects, commits: commits, composer: composer, logger: logger}
}

// IngestPush records every new commit of ev and enqueues its pipeline. Commits
// already stored are skipped, unless they never got a pipeline, so redelivered
// pushes and retried jobs do not duplicate work.
func (i *Ingestor) IngestPush(ctx context.Context, ev *core.PushEvent) (*IngestResult, error) {
	project, err := i.projects.GetProjectByRepository(ctx, ev.RepoFullName)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRepository, ev.RepoFullName)
		}
		return nil, fmt.Errorf("failed to look up project for %s: %w", ev.RepoFullName, err)
	}

	installationID := ev.InstallationID
	if installationID == 0 && project.InstallationID != nil {
		installationID = *project.InstallationID
	}

	res := &IngestResult{ProjectID: project.ID}
	base := ev.Before
	if base == zeroSHA {
		base = ""
	}

	for _, pc := range ev.Commits {
		commitBase := base
		base = pc.SHA

		commit, created, err := i.ensureCommit(ctx, project, ev, pc, commitBase)
		if err != nil {
			return res, err
		}
		if !created {
			if commit.HasSummary() {
				res.Skipped = append(res.Skipped, pc.SHA)
				continue
			}
			has, err := i.composer.HasPipeline(ctx, commit.ID)
			if err != nil {
				return res, fmt.Errorf("failed to check pipeline of %s: %w", pc.SHA, err)
			}
			if has {
				res.Skipped = append(res.Skipped, pc.SHA)
				continue
			}
		} else {
			res.Created = append(res.Created, commit.ID)
		}

		pipeline, err := i.composer.ComposeCommitPipeline(ctx, CommitPipelineInput{
			Commit:         commit,
			Project:        project,
			Owner:          ev.RepoOwner,
			Repo:           ev.RepoName,
			InstallationID: installationID,
		})
		if err != nil {
			return res, err
		}
		res.Pipelines = append(res.Pipelines, pipeline)
	}

	i.logger.Info("push ingested",
		"repo", ev.RepoFullName,
		"branch", ev.Branch,
		"created", len(res.Created),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

func (i *Ingestor) ensureCommit(ctx context.Context, project *core.Project, ev *core.PushEvent, pc core.PushCommit, base string) (*core.Commit, bool, error) {
	existing, err := i.commits.GetCommitBySHA(ctx, project.ID, pc.SHA)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up commit %s: %w", pc.SHA, err)
	}

	commit := &core.Commit{
		ProjectID:   project.ID,
		SHA:         pc.SHA,
		BaseSHA:     base,
		Message:     strings.TrimSpace(pc.Message),
		AuthorName:  pc.AuthorName,
		AuthorEmail: pc.AuthorEmail,
		AuthorLogin: pc.AuthorLogin,
		Branch:      ev.Branch,
		URL:         pc.URL,
		CommittedAt: pc.Timestamp,
	}
	if err := i.commits.CreateCommit(ctx, commit); err != nil {
		return nil, false, fmt.Errorf("failed to store commit %s: %w", pc.SHA, err)
	}
	return commit, true, nil
}
