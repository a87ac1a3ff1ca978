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

func TestMarkJobAsRunning_ConditionalClaim(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	job, err := f.Jobs.CreateJob(ctx, fetchDiffJob(10))
	require.NoError(t, err)

	running, err := f.Jobs.MarkJobAsRunning(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusRunning, running.Status)
	require.NotNil(t, running.StartedAt)
	assert.True(t, running.StartedAt.Equal(testutil.Epoch))

	_, err = f.Jobs.MarkJobAsRunning(ctx, job.ID)
	assert.ErrorIs(t, err, storage.ErrJobNotClaimable)

	_, err = f.Jobs.MarkJobAsRunning(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMarkJobAsCompleted_StoresResult(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	in := fetchDiffJob(10)
	in.Context = map[string]any{"source": "webhook"}
	job, err := f.Jobs.CreateJob(ctx, in)
	require.NoError(t, err)
	_, err = f.Jobs.MarkJobAsRunning(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, f.Jobs.MarkJobAsCompleted(ctx, job.ID, map[string]any{"diff_content": "diff --git"}))

	got, err := f.Jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, "webhook", got.Context["source"])
	result, ok := got.Result()
	require.True(t, ok)
	assert.Equal(t, "diff --git", result["diff_content"])

	err = f.Jobs.MarkJobAsCompleted(ctx, job.ID, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
}

func TestMarkJobAsFailed_RetryLadder(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	in := fetchDiffJob(10)
	in.MaxAttempts = 3
	job, err := f.Jobs.CreateJob(ctx, in)
	require.NoError(t, err)

	expectedDelays := []time.Duration{time.Second, 2 * time.Second}
	for attempt, delay := range expectedDelays {
		_, err := f.Jobs.MarkJobAsRunning(ctx, job.ID)
		require.NoError(t, err)

		got, err := f.Jobs.MarkJobAsFailed(ctx, job.ID, core.JobFailure{
			Message: "ECONNRESET",
			Details: map[string]any{"reason": "network"},
		})
		require.NoError(t, err)
		assert.Equal(t, core.JobStatusPending, got.Status)
		assert.Equal(t, attempt+1, got.Attempts)
		assert.Nil(t, got.StartedAt, "started_at must be cleared on retry")
		require.NotNil(t, got.RetryAfter)
		assert.True(t, got.RetryAfter.Equal(f.Clock.Now().Add(delay)), "attempt %d", attempt)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "ECONNRESET", *got.ErrorMessage)
		assert.Equal(t, "network", got.ErrorDetails["reason"])

		f.Clock.Advance(delay)
	}

	_, err = f.Jobs.MarkJobAsRunning(ctx, job.ID)
	require.NoError(t, err)
	got, err := f.Jobs.MarkJobAsFailed(ctx, job.ID, core.JobFailure{Message: "ECONNRESET"})
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
	assert.LessOrEqual(t, got.Attempts, got.MaxAttempts)
	assert.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.RetryAfter)
}

func TestMarkJobAsFailed_TerminalSkipsRetries(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	job, err := f.Jobs.CreateJob(ctx, fetchDiffJob(10))
	require.NoError(t, err)
	_, err = f.Jobs.MarkJobAsRunning(ctx, job.ID)
	require.NoError(t, err)

	got, err := f.Jobs.MarkJobAsFailed(ctx, job.ID, core.JobFailure{Message: "token limit exceeded", Terminal: true})
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, true, got.ErrorDetails["terminal"])
}

func TestMarkJobAsFailed_ExplicitRetryAfterAndIdempotency(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	job, err := f.Jobs.CreateJob(ctx, fetchDiffJob(10))
	require.NoError(t, err)
	_, err = f.Jobs.MarkJobAsRunning(ctx, job.ID)
	require.NoError(t, err)

	retryAt := testutil.Epoch.Add(time.Hour)
	got, err := f.Jobs.MarkJobAsFailed(ctx, job.ID, core.JobFailure{Message: "rate limited", RetryAfter: &retryAt})
	require.NoError(t, err)
	require.NotNil(t, got.RetryAfter)
	assert.True(t, got.RetryAfter.Equal(retryAt))

	// The job already left running: a second failure pass must not count again.
	_, err = f.Jobs.MarkJobAsFailed(ctx, job.ID, core.JobFailure{Message: "orphaned on restart"})
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	again, err := f.Jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Attempts)
}

func TestScheduleRetry_ResetsFailedJob(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	in := fetchDiffJob(10)
	in.MaxAttempts = 1
	job, err := f.Jobs.CreateJob(ctx, in)
	require.NoError(t, err)
	_, err = f.Jobs.MarkJobAsRunning(ctx, job.ID)
	require.NoError(t, err)
	failed, err := f.Jobs.MarkJobAsFailed(ctx, job.ID, core.JobFailure{Message: "boom"})
	require.NoError(t, err)
	require.Equal(t, core.JobStatusFailed, failed.Status)

	require.NoError(t, f.Jobs.ScheduleRetry(ctx, job.ID, testutil.Epoch))

	got, err := f.Jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, got.Status)
	assert.Equal(t, 0, got.Attempts)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, []string{job.ID}, readyIDs(t, f.Jobs, 5))

	_, err = f.Jobs.MarkJobAsRunning(ctx, job.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Jobs.ScheduleRetry(ctx, job.ID, testutil.Epoch), storage.ErrInvalidTransition)
}

func TestCancelJob(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	job, err := f.Jobs.CreateJob(ctx, fetchDiffJob(10))
	require.NoError(t, err)

	require.NoError(t, f.Jobs.CancelJob(ctx, job.ID, "operator request"))
	got, err := f.Jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCancelled, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "operator request", *got.ErrorMessage)

	assert.ErrorIs(t, f.Jobs.CancelJob(ctx, job.ID, ""), storage.ErrInvalidTransition)
	assert.ErrorIs(t, f.Jobs.CancelJob(ctx, "missing", ""), storage.ErrNotFound)
}

func TestJobDependencies(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	a, err := f.Jobs.CreateJob(ctx, fetchDiffJob(70))
	require.NoError(t, err)
	b, err := f.Jobs.CreateJob(ctx, summaryJob(60))
	require.NoError(t, err)
	c, err := f.Jobs.CreateJob(ctx, summaryJob(60))
	require.NoError(t, err)

	_, err = f.Jobs.AddJobDependency(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, storage.ErrSelfDependency)

	dep, err := f.Jobs.AddJobDependency(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, dep.JobID)

	_, err = f.Jobs.AddJobDependency(ctx, b.ID, a.ID)
	assert.ErrorIs(t, err, storage.ErrDuplicateDependency)

	_, err = f.Jobs.AddJobDependency(ctx, c.ID, b.ID)
	require.NoError(t, err)
	_, err = f.Jobs.AddJobDependency(ctx, a.ID, c.ID)
	assert.ErrorIs(t, err, storage.ErrDependencyCycle)

	_, err = f.Jobs.AddJobDependency(ctx, b.ID, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, f.Jobs.RemoveJobDependency(ctx, b.ID, a.ID))
	deps, err := f.Jobs.GetJobDependencies(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, deps)
	assert.ErrorIs(t, f.Jobs.RemoveJobDependency(ctx, b.ID, a.ID), storage.ErrNotFound)
}
