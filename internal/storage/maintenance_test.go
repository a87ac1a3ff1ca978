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

func TestCleanupCompletedJobs(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	old, err := f.Jobs.CreateJob(ctx, fetchDiffJob(10))
	require.NoError(t, err)
	_, err = f.Jobs.MarkJobAsRunning(ctx, old.ID)
	require.NoError(t, err)
	require.NoError(t, f.Jobs.MarkJobAsCompleted(ctx, old.ID, nil))

	f.Clock.Advance(6 * 24 * time.Hour)
	recent, err := f.Jobs.CreateJob(ctx, fetchDiffJob(10))
	require.NoError(t, err)
	_, err = f.Jobs.MarkJobAsRunning(ctx, recent.ID)
	require.NoError(t, err)
	require.NoError(t, f.Jobs.MarkJobAsCompleted(ctx, recent.ID, nil))

	f.Clock.Advance(2 * 24 * time.Hour)
	n, err := f.Jobs.CleanupCompletedJobs(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.Jobs.GetJob(ctx, old.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.Jobs.GetJob(ctx, recent.ID)
	assert.NoError(t, err)
}

func TestCleanupExpiredJobs_CancelsDependents(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	in := fetchDiffJob(70)
	expires := testutil.Epoch.Add(time.Minute)
	in.ExpiresAt = &expires
	expiring, err := f.Jobs.CreateJob(ctx, in)
	require.NoError(t, err)
	dependent, err := f.Jobs.CreateJob(ctx, summaryJob(60, expiring.ID))
	require.NoError(t, err)

	n, err := f.Jobs.CleanupExpiredJobs(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.Clock.Advance(5 * time.Minute)
	n, err = f.Jobs.CleanupExpiredJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.Jobs.GetJob(ctx, dependent.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCancelled, got.Status)
	assert.Empty(t, readyIDs(t, f.Jobs, 10))
}

func TestGetStaleRunningJobs(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	early, err := f.Jobs.CreateJob(ctx, fetchDiffJob(10))
	require.NoError(t, err)
	_, err = f.Jobs.MarkJobAsRunning(ctx, early.ID)
	require.NoError(t, err)

	f.Clock.Advance(10 * time.Minute)
	late, err := f.Jobs.CreateJob(ctx, fetchDiffJob(10))
	require.NoError(t, err)
	_, err = f.Jobs.MarkJobAsRunning(ctx, late.ID)
	require.NoError(t, err)
	_, err = f.Jobs.CreateJob(ctx, fetchDiffJob(10))
	require.NoError(t, err)

	stale, err := f.Jobs.GetStaleRunningJobs(ctx, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, early.ID, stale[0].ID)

	all, err := f.Jobs.GetStaleRunningJobs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, early.ID, all[0].ID)
	assert.Equal(t, late.ID, all[1].ID)
}

func TestCancelBlockedJobs_PropagatesDownChain(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	in := fetchDiffJob(70)
	in.MaxAttempts = 1
	root, err := f.Jobs.CreateJob(ctx, in)
	require.NoError(t, err)
	middle, err := f.Jobs.CreateJob(ctx, summaryJob(60, root.ID))
	require.NoError(t, err)
	leaf, err := f.Jobs.CreateJob(ctx, summaryJob(50, middle.ID))
	require.NoError(t, err)
	unrelated, err := f.Jobs.CreateJob(ctx, fetchDiffJob(10))
	require.NoError(t, err)

	_, err = f.Jobs.MarkJobAsRunning(ctx, root.ID)
	require.NoError(t, err)
	_, err = f.Jobs.MarkJobAsFailed(ctx, root.ID, core.JobFailure{Message: "boom"})
	require.NoError(t, err)

	n, err := f.Jobs.CancelBlockedJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, id := range []string{middle.ID, leaf.ID} {
		got, err := f.Jobs.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.JobStatusCancelled, got.Status)
	}
	got, err := f.Jobs.GetJob(ctx, unrelated.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, got.Status)
}
