package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/github"
)

// FetchDiffHandler retrieves the diff of a commit against its base and stores
// the diff stats on the commit. When the base is unknown or unreachable it
// falls back to the head commit's parents.
type FetchDiffHandler struct {
	tokens   core.TokenProvider
	diffs    core.DiffProvider
	commits  core.CommitStore
	projects core.ProjectStore
	logger   *slog.Logger
}

func NewFetchDiffHandler(tokens core.TokenProvider, diffs core.DiffProvider, commits core.CommitStore,
	projects core.ProjectStore, logger *slog.Logger) *FetchDiffHandler {
	return &FetchDiffHandler{tokens: tokens, diffs: diffs, commits: commits, projects: projects, logger: logger}
}

func (h *FetchDiffHandler) Type() core.JobType { return core.JobTypeFetchDiff }

func (h *FetchDiffHandler) Validate(job *core.Job) error {
	return validatePayload[*core.FetchDiffPayload](job)
}

func (h *FetchDiffHandler) EstimatedDuration(*core.Job) time.Duration { return 10 * time.Second }

func (h *FetchDiffHandler) Handle(ctx context.Context, job *core.Job) (*core.JobResult, error) {
	p, err := payloadOf[*core.FetchDiffPayload](job)
	if err != nil {
		return nil, err
	}
	log := h.logger.With("job_id", job.ID, "commit", p.HeadSHA)

	commit, err := h.commits.GetCommit(ctx, p.CommitID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Failed("commit_not_found", err, nil), nil
		}
		return core.Failed("commit_lookup_failed", err, nil), nil
	}

	installationID, res := h.installationID(ctx, p, commit)
	if res != nil {
		return res, nil
	}
	token, err := h.tokens.GetInstallationToken(ctx, installationID)
	if err != nil {
		return core.Failed("installation_token_failed", err, map[string]any{"installation_id": installationID}), nil
	}
	repo := core.RepoRef{Owner: p.RepositoryOwner, Name: p.RepositoryName, Token: token}

	base := p.BaseSHA
	var diff *core.DiffResult
	if base != "" {
		diff, err = h.diffs.GetDiff(ctx, core.DiffRequest{Repo: repo, Base: base, Head: p.HeadSHA})
		if err != nil && !errors.Is(err, core.ErrRefNotFound) {
			return core.Failed("diff_fetch_failed", err, nil), nil
		}
		if err != nil {
			log.Warn("base commit not found, falling back to parents", "base", base)
		}
	}

	usedParent := false
	if diff == nil {
		var fallback *core.JobResult
		base, diff, fallback = h.diffAgainstParents(ctx, log, repo, p.HeadSHA)
		if fallback != nil {
			return fallback, nil
		}
		usedParent = true
	}

	req := core.DiffRequest{Repo: repo, Base: base, Head: p.HeadSHA}
	raw, err := h.diffs.GetDiffRaw(ctx, req)
	synthesized := false
	if err != nil || strings.TrimSpace(raw) == "" {
		if err != nil {
			log.Warn("raw diff unavailable, synthesizing from file patches", "error", err)
		}
		raw = github.SynthesizeDiff(diff.Files)
		synthesized = true
	}
	if strings.TrimSpace(raw) == "" {
		return core.Failed("empty_diff", fmt.Errorf("commit %s has no changes against %s", p.HeadSHA, base), nil), nil
	}

	stats := diff.Stats
	if stats.FilesChanged == 0 && len(diff.Files) > 0 {
		stats.FilesChanged = len(diff.Files)
	}
	if stats.Additions == 0 && stats.Deletions == 0 {
		stats.Additions, stats.Deletions = github.CountDiffLines(raw)
	}
	update := core.CommitUpdate{
		FilesChanged: &stats.FilesChanged,
		Additions:    &stats.Additions,
		Deletions:    &stats.Deletions,
	}
	if commit.PRNumber == nil {
		h.attachPullRequest(ctx, log, repo, p.HeadSHA, &update)
	}
	if err := h.commits.UpdateCommit(ctx, commit.ID, update); err != nil {
		return core.Failed("commit_update_failed", err, nil), nil
	}

	log.Info("diff fetched",
		"base", base,
		"files", stats.FilesChanged,
		"synthesized", synthesized,
		"used_parent_fallback", usedParent,
	)
	return core.Succeeded(map[string]any{
		"diff_content":         raw,
		"base_sha":             base,
		"head_sha":             p.HeadSHA,
		"files_changed":        stats.FilesChanged,
		"additions":            stats.Additions,
		"deletions":            stats.Deletions,
		"synthesized":          synthesized,
		"used_parent_fallback": usedParent,
	}), nil
}

// installationID resolves the installation from the payload, then the project.
func (h *FetchDiffHandler) installationID(ctx context.Context, p *core.FetchDiffPayload, commit *core.Commit) (int64, *core.JobResult) {
	if p.InstallationID > 0 {
		return p.InstallationID, nil
	}
	projectID := p.ProjectID
	if projectID == "" {
		projectID = commit.ProjectID
	}
	project, err := h.projects.GetProject(ctx, projectID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return 0, core.Failed("project_lookup_failed", err, nil)
	}
	if project != nil && project.InstallationID != nil && *project.InstallationID > 0 {
		return *project.InstallationID, nil
	}
	return 0, core.Failed("missing_installation_id",
		fmt.Errorf("no GitHub installation configured for project %s", projectID), nil)
}

// diffAgainstParents tries each parent of head in order and returns the first
// comparison that succeeds.
func (h *FetchDiffHandler) diffAgainstParents(ctx context.Context, log *slog.Logger, repo core.RepoRef,
	head string) (string, *core.DiffResult, *core.JobResult) {
	info, err := h.diffs.GetCommit(ctx, repo, head)
	if err != nil {
		if errors.Is(err, core.ErrRefNotFound) {
			return "", nil, core.Failed("head_commit_not_found", err, nil)
		}
		return "", nil, core.Failed("commit_lookup_failed", err, nil)
	}
	if len(info.Parents) == 0 {
		return "", nil, core.Failed("head_commit_has_no_parents",
			fmt.Errorf("commit %s has no parents to diff against", head), nil)
	}

	var lastErr error
	for _, parent := range info.Parents {
		diff, err := h.diffs.GetDiff(ctx, core.DiffRequest{Repo: repo, Base: parent, Head: head})
		if err == nil {
			return parent, diff, nil
		}
		log.Warn("diff against parent failed", "parent", parent, "error", err)
		lastErr = err
	}
	return "", nil, core.Failed("no_reachable_base_commit",
		fmt.Errorf("no parent of %s could be compared: %w", head, lastErr),
		map[string]any{"parents": info.Parents})
}

// attachPullRequest adds the first pull request containing head to update.
// Lookup failures are logged and ignored.
func (h *FetchDiffHandler) attachPullRequest(ctx context.Context, log *slog.Logger, repo core.RepoRef, head string, update *core.CommitUpdate) {
	prs, err := h.diffs.ListPullRequestsForCommit(ctx, repo, head)
	if err != nil {
		log.Debug("pull request lookup failed", "error", err)
		return
	}
	if len(prs) == 0 {
		return
	}
	pr := prs[0]
	update.PRNumber = &pr.Number
	update.PRTitle = &pr.Title
	update.PRURL = &pr.URL
}
