package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"

	"github.com/sevigo/commit-digest/internal/core"
)

// comparePageSize is the page size used when listing comparison files.
const comparePageSize = 100

type diffProvider struct {
	baseURL *url.URL
	logger  *slog.Logger
}

// NewDiffProvider returns a core.DiffProvider backed by the REST API. Each call
// authenticates with the token carried on its RepoRef. apiBaseURL may be empty
// for github.com.
func NewDiffProvider(apiBaseURL string, logger *slog.Logger) (core.DiffProvider, error) {
	p := &diffProvider{logger: logger}
	if apiBaseURL != "" {
		base, err := parseBaseURL(apiBaseURL)
		if err != nil {
			return nil, err
		}
		p.baseURL = base
	}
	return p, nil
}

func (p *diffProvider) client(ctx context.Context, token string) *github.Client {
	httpClient := http.DefaultClient
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}
	client := github.NewClient(httpClient)
	if p.baseURL != nil {
		client.BaseURL = p.baseURL
	}
	return client
}

// GetDiff compares base...head and returns the changed files with their patches.
func (p *diffProvider) GetDiff(ctx context.Context, req core.DiffRequest) (*core.DiffResult, error) {
	client := p.client(ctx, req.Repo.Token)
	cmp, _, err := client.Repositories.CompareCommits(ctx, req.Repo.Owner, req.Repo.Name, req.Base, req.Head,
		&github.ListOptions{PerPage: comparePageSize})
	if err != nil {
		p.logger.Warn("failed to compare commits", "repo", req.Repo.FullName(), "base", req.Base, "head", req.Head, "error", err)
		return nil, wrapRefError(err, "compare %s...%s", req.Base, req.Head)
	}

	result := &core.DiffResult{
		Commits:  cmp.GetTotalCommits(),
		AheadBy:  cmp.GetAheadBy(),
		BehindBy: cmp.GetBehindBy(),
		Status:   cmp.GetStatus(),
	}
	for _, f := range cmp.Files {
		file := core.DiffFile{
			Filename:         f.GetFilename(),
			PreviousFilename: f.GetPreviousFilename(),
			Status:           f.GetStatus(),
			Additions:        f.GetAdditions(),
			Deletions:        f.GetDeletions(),
			Changes:          f.GetChanges(),
			Patch:            f.GetPatch(),
		}
		result.Files = append(result.Files, file)
		result.Stats.Additions += file.Additions
		result.Stats.Deletions += file.Deletions
	}
	result.Stats.FilesChanged = len(result.Files)
	return result, nil
}

// GetDiffRaw returns the unified diff text of base...head.
func (p *diffProvider) GetDiffRaw(ctx context.Context, req core.DiffRequest) (string, error) {
	client := p.client(ctx, req.Repo.Token)
	diff, _, err := client.Repositories.CompareCommitsRaw(ctx, req.Repo.Owner, req.Repo.Name, req.Base, req.Head,
		github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", wrapRefError(err, "raw compare %s...%s", req.Base, req.Head)
	}
	return diff, nil
}

// GetCommit returns the commit's parents and headline metadata.
func (p *diffProvider) GetCommit(ctx context.Context, repo core.RepoRef, sha string) (*core.CommitInfo, error) {
	client := p.client(ctx, repo.Token)
	rc, _, err := client.Repositories.GetCommit(ctx, repo.Owner, repo.Name, sha, nil)
	if err != nil {
		return nil, wrapRefError(err, "get commit %s", sha)
	}

	info := &core.CommitInfo{
		SHA:     rc.GetSHA(),
		Message: rc.GetCommit().GetMessage(),
		Author:  rc.GetCommit().GetAuthor().GetName(),
	}
	for _, parent := range rc.Parents {
		if parent.GetSHA() != "" {
			info.Parents = append(info.Parents, parent.GetSHA())
		}
	}
	return info, nil
}

// ListPullRequestsForCommit returns the pull requests that contain sha.
func (p *diffProvider) ListPullRequestsForCommit(ctx context.Context, repo core.RepoRef, sha string) ([]core.PullRequestInfo, error) {
	client := p.client(ctx, repo.Token)
	prs, _, err := client.PullRequests.ListPullRequestsWithCommit(ctx, repo.Owner, repo.Name, sha, nil)
	if err != nil {
		return nil, wrapRefError(err, "list pull requests for %s", sha)
	}

	out := make([]core.PullRequestInfo, 0, len(prs))
	for _, pr := range prs {
		out = append(out, core.PullRequestInfo{
			Number:     pr.GetNumber(),
			Title:      pr.GetTitle(),
			URL:        pr.GetHTMLURL(),
			HeadBranch: pr.GetHead().GetRef(),
			State:      pr.GetState(),
		})
	}
	return out, nil
}

// wrapRefError maps 404 and 422 responses to core.ErrRefNotFound. Those are
// what the API returns for unknown or unreachable commits.
func wrapRefError(err error, format string, args ...any) error {
	op := fmt.Sprintf(format, args...)
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound, http.StatusUnprocessableEntity:
			return fmt.Errorf("failed to %s: %w: %v", op, core.ErrRefNotFound, err)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
