package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/db"
	"github.com/sevigo/commit-digest/internal/storage"
)

// Fixture bundles real stores over one test database.
type Fixture struct {
	DB       *db.DB
	Clock    *ManualClock
	Jobs     storage.JobStore
	Commits  core.CommitStore
	Projects core.ProjectStore
	Billing  storage.BillingLedger
	Emails   core.EmailTracker
}

// NewFixture opens a fresh database. The job store runs on the manual clock and
// does not retry failed writes.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	conn := NewDB(t)
	clock := NewManualClock()
	return &Fixture{
		DB:       conn,
		Clock:    clock,
		Jobs:     storage.NewJobStore(conn.DB, storage.WithClock(clock.Now), storage.WithWriteRetries(1, 0)),
		Commits:  storage.NewCommitStore(conn.DB),
		Projects: storage.NewProjectStore(conn.DB),
		Billing:  storage.NewBillingLedger(conn.DB),
		Emails:   storage.NewEmailTracker(conn.DB),
	}
}

// ProjectSeed describes a project to create. Zero values pick test defaults.
type ProjectSeed struct {
	Repository     string
	Credits        int
	NoUser         bool
	InstallationID int64
	Recipients     []string
}

// SeedProject creates a billing user (unless NoUser) and a project.
func (f *Fixture) SeedProject(t *testing.T, seed ProjectSeed) *core.Project {
	t.Helper()
	ctx := context.Background()
	if seed.Repository == "" {
		seed.Repository = "acme/widgets"
	}

	p := &core.Project{
		Name:               seed.Repository,
		RepositoryFullName: seed.Repository,
		EmailRecipients:    seed.Recipients,
	}
	if !seed.NoUser {
		userID, err := f.Billing.CreateUser(ctx, "owner@"+seed.Repository, seed.Credits)
		require.NoError(t, err)
		p.UserID = &userID
	}
	if seed.InstallationID != 0 {
		id := seed.InstallationID
		p.InstallationID = &id
	}
	require.NoError(t, f.Projects.CreateProject(ctx, p))
	return p
}

// SeedCommit creates a commit of project p.
func (f *Fixture) SeedCommit(t *testing.T, p *core.Project, sha string) *core.Commit {
	t.Helper()
	c := &core.Commit{
		ProjectID:   p.ID,
		SHA:         sha,
		BaseSHA:     fmt.Sprintf("%s-base", sha),
		Message:     "Fix login redirect (ABC-123, #42)",
		AuthorName:  "Dana Developer",
		AuthorEmail: "dana@example.com",
		AuthorLogin: "dana",
		Branch:      "main",
		CommittedAt: f.Clock.Now(),
	}
	require.NoError(t, f.Commits.CreateCommit(context.Background(), c))
	return c
}
