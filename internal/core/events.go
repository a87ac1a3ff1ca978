package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v73/github"
)

// PushEvent represents a simplified, internal view of a GitHub push webhook.
type PushEvent struct {
	// Repository details
	RepoOwner    string
	RepoName     string
	RepoFullName string

	Ref            string
	Branch         string
	Before         string
	After          string
	Pusher         string
	InstallationID int64

	Commits []PushCommit
}

// PushCommit is a single commit listed in a push.
type PushCommit struct {
	SHA         string
	Message     string
	AuthorName  string
	AuthorEmail string
	AuthorLogin string
	URL         string
	Timestamp   time.Time
	Distinct    bool
}

// EventFromPush transforms a raw GitHub PushEvent into the application's internal
// PushEvent representation. It acts as an anti-corruption layer: branch deletions,
// tag pushes and payloads missing repository data are rejected before any commit
// row or job is created.
func EventFromPush(event *github.PushEvent) (*PushEvent, error) {
	if event.GetDeleted() {
		return nil, fmt.Errorf("push deletes %s, nothing to digest", event.GetRef())
	}

	ref := event.GetRef()
	if !strings.HasPrefix(ref, "refs/heads/") {
		return nil, fmt.Errorf("push is not to a branch: %q", ref)
	}

	repo := event.GetRepo()
	if repo == nil || repo.GetFullName() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("repository information is missing from the event")
	}

	owner := repo.GetOwner().GetLogin()
	if owner == "" {
		owner = repo.GetOwner().GetName()
	}
	if owner == "" {
		owner, _, _ = strings.Cut(repo.GetFullName(), "/")
	}

	out := &PushEvent{
		RepoOwner:      owner,
		RepoName:       repo.GetName(),
		RepoFullName:   repo.GetFullName(),
		Ref:            ref,
		Branch:         strings.TrimPrefix(ref, "refs/heads/"),
		Before:         event.GetBefore(),
		After:          event.GetAfter(),
		Pusher:         event.GetPusher().GetName(),
		InstallationID: event.GetInstallation().GetID(),
	}

	for _, c := range event.Commits {
		if c == nil || c.GetID() == "" {
			continue
		}
		out.Commits = append(out.Commits, pushCommitFromHead(c))
	}
	if len(out.Commits) == 0 && event.GetHeadCommit().GetID() != "" {
		out.Commits = append(out.Commits, pushCommitFromHead(event.GetHeadCommit()))
	}
	if len(out.Commits) == 0 {
		return nil, fmt.Errorf("push to %s contains no commits", out.RepoFullName)
	}

	return out, nil
}

func pushCommitFromHead(c *github.HeadCommit) PushCommit {
	pc := PushCommit{
		SHA:         c.GetID(),
		Message:     c.GetMessage(),
		AuthorName:  c.GetAuthor().GetName(),
		AuthorEmail: c.GetAuthor().GetEmail(),
		AuthorLogin: c.GetAuthor().GetLogin(),
		URL:         c.GetURL(),
		Distinct:    c.GetDistinct(),
	}
	if ts := c.GetTimestamp(); !ts.IsZero() {
		pc.Timestamp = ts.Time
	}
	return pc
}
