package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/storage"
	"github.com/sevigo/commit-digest/internal/testutil"
)

func TestProjectStore(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	p := f.SeedProject(t, testutil.ProjectSeed{
		Repository:     "Acme/Widgets",
		InstallationID: 77,
		Recipients:     []string{"team@acme.dev"},
	})

	got, err := f.Projects.GetProjectByRepository(ctx, "acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	require.NotNil(t, got.InstallationID)
	assert.Equal(t, int64(77), *got.InstallationID)
	assert.Equal(t, []string{"team@acme.dev"}, got.EmailRecipients)
	require.NotNil(t, got.UserID)

	_, err = f.Projects.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCommitStore(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()
	p := f.SeedProject(t, testutil.ProjectSeed{})
	c := f.SeedCommit(t, p, "abc1234def")

	bySHA, err := f.Commits.GetCommitBySHA(ctx, p.ID, "abc1234def")
	require.NoError(t, err)
	assert.Equal(t, c.ID, bySHA.ID)
	assert.False(t, bySHA.HasSummary())
	assert.Equal(t, "abc1234", bySHA.ShortSHA())

	summary := "Fixes the login redirect loop."
	changeType := string(core.ChangeTypeBugfix)
	confidence := 0.9
	files, adds := 2, 14
	now := time.Now()
	require.NoError(t, f.Commits.UpdateCommit(ctx, c.ID, core.CommitUpdate{
		Summary:      &summary,
		ChangeType:   &changeType,
		Confidence:   &confidence,
		SummarizedAt: &now,
		FilesChanged: &files,
		Additions:    &adds,
	}))
	require.NoError(t, f.Commits.MarkCommitAsEmailSent(ctx, c.ID))

	got, err := f.Commits.GetCommit(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.HasSummary())
	assert.Equal(t, summary, *got.Summary)
	assert.Equal(t, "bugfix", *got.ChangeType)
	assert.InDelta(t, 0.9, *got.Confidence, 0.0001)
	assert.Equal(t, 2, got.FilesChanged)
	assert.Equal(t, 14, got.Additions)
	assert.True(t, got.EmailSent)

	assert.ErrorIs(t, f.Commits.UpdateCommit(ctx, "missing", core.CommitUpdate{Summary: &summary}), storage.ErrNotFound)
	assert.ErrorIs(t, f.Commits.MarkCommitAsEmailSent(ctx, "missing"), storage.ErrNotFound)
}

func TestBillingLedger(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()
	p := f.SeedProject(t, testutil.ProjectSeed{Credits: 1})
	userID := *p.UserID

	ok, err := f.Billing.HasCredits(ctx, userID, f.Billing.EstimateSummaryCredits("diff"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.Billing.DeductCredits(ctx, userID, 1, "summary"))
	balance, err := f.Billing.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	ok, err = f.Billing.HasCredits(ctx, userID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, f.Billing.DeductCredits(ctx, userID, 1, "summary"), storage.ErrInsufficientCredits)
	assert.ErrorIs(t, f.Billing.DeductCredits(ctx, "ghost", 1, "summary"), storage.ErrNotFound)

	require.NoError(t, f.Billing.AddCredits(ctx, userID, 5, "top-up"))
	balance, err = f.Billing.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 5, balance)
}

func TestEmailTracker(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	send := &core.EmailSend{
		JobID:        "job-1",
		Attempt:      1,
		ProjectID:    "p-1",
		CommitIDs:    []string{"c-1"},
		Recipients:   []string{"team@acme.dev"},
		Subject:      "New commit",
		TemplateType: core.EmailTemplateSingleCommit,
	}
	id, err := f.Emails.RecordEmailSend(ctx, send)
	require.NoError(t, err)

	_, err = f.Emails.RecordEmailSend(ctx, &core.EmailSend{JobID: "job-1", Attempt: 1, ProjectID: "p-1",
		TemplateType: core.EmailTemplateSingleCommit})
	assert.Error(t, err, "same job attempt must not be recorded twice")

	require.NoError(t, f.Emails.MarkEmailSendStatus(ctx, id, core.EmailSendSent, ""))

	sends, err := f.Emails.ListEmailSendsForJob(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, sends, 1)
	assert.Equal(t, core.EmailSendSent, sends[0].Status)
	assert.NotNil(t, sends[0].SentAt)
	assert.Equal(t, []string{"c-1"}, sends[0].CommitIDs)

	assert.ErrorIs(t, f.Emails.MarkEmailSendStatus(ctx, "missing", core.EmailSendFailed, "x"), storage.ErrNotFound)
}
