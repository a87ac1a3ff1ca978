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

func fetchDiffJob(priority int) core.NewJob {
	return core.NewJob{
		Type:     core.JobTypeFetchDiff,
		Priority: priority,
		Data: &core.FetchDiffPayload{
			CommitID:        "c-1",
			RepositoryOwner: "acme",
			RepositoryName:  "widgets",
			BaseSHA:         "aaa",
			HeadSHA:         "bbb",
		},
	}
}

func summaryJob(priority int, dependsOn ...string) core.NewJob {
	return core.NewJob{
		Type:      core.JobTypeGenerateSummary,
		Priority:  priority,
		Data:      &core.GenerateSummaryPayload{CommitID: "c-1"},
		DependsOn: dependsOn,
	}
}

func readyIDs(t *testing.T, store storage.JobStore, limit int) []string {
	t.Helper()
	ready, err := store.GetReadyJobs(context.Background(), limit)
	require.NoError(t, err)
	ids := make([]string, 0, len(ready))
	for _, r := range ready {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestCreateJob_AppliesDefaults(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	job, err := f.Jobs.CreateJob(ctx, fetchDiffJob(0))
	require.NoError(t, err)

	got, err := f.Jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, got.Status)
	assert.Equal(t, 0, got.Priority)
	assert.Equal(t, core.DefaultMaxAttempts, got.MaxAttempts)
	assert.Equal(t, 0, got.Attempts)
	assert.True(t, got.ScheduledFor.Equal(testutil.Epoch))
	assert.Nil(t, got.StartedAt)

	payload, ok := got.Data.(*core.FetchDiffPayload)
	require.True(t, ok)
	assert.Equal(t, "bbb", payload.HeadSHA)
}

func TestCreateJob_RejectsInvalidInput(t *testing.T) {
	f := testutil.NewFixture(t)
	past := testutil.Epoch.Add(-time.Hour)

	tests := []struct {
		name   string
		mutate func(n *core.NewJob)
	}{
		{"unknown type", func(n *core.NewJob) { n.Type = "resize_image" }},
		{"missing payload", func(n *core.NewJob) { n.Data = nil }},
		{"payload type mismatch", func(n *core.NewJob) { n.Data = &core.GenerateSummaryPayload{CommitID: "c"} }},
		{"priority too high", func(n *core.NewJob) { n.Priority = 101 }},
		{"priority negative", func(n *core.NewJob) { n.Priority = -1 }},
		{"max attempts too high", func(n *core.NewJob) { n.MaxAttempts = 11 }},
		{"expires before scheduled", func(n *core.NewJob) {
			n.ScheduledFor = testutil.Epoch
			n.ExpiresAt = &past
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := fetchDiffJob(10)
			tt.mutate(&in)
			_, err := f.Jobs.CreateJob(context.Background(), in)
			assert.ErrorIs(t, err, core.ErrInvalidJob)
		})
	}
}

func TestCreateJob_WithDependencies(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	diff, err := f.Jobs.CreateJob(ctx, fetchDiffJob(70))
	require.NoError(t, err)
	summary, err := f.Jobs.CreateJob(ctx, summaryJob(60, diff.ID))
	require.NoError(t, err)

	deps, err := f.Jobs.GetJobDependencies(ctx, summary.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, diff.ID, deps[0].DependsOnJobID)

	_, err = f.Jobs.CreateJob(ctx, summaryJob(60, "missing"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = f.Jobs.CreateJob(ctx, summaryJob(60, diff.ID, diff.ID))
	assert.ErrorIs(t, err, storage.ErrDuplicateDependency)
}

func TestGetReadyJobs_OrdersByPriorityThenSchedule(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	low, err := f.Jobs.CreateJob(ctx, fetchDiffJob(10))
	require.NoError(t, err)

	earlier := fetchDiffJob(50)
	earlier.ScheduledFor = testutil.Epoch.Add(-time.Minute)
	highEarly, err := f.Jobs.CreateJob(ctx, earlier)
	require.NoError(t, err)
	highLate, err := f.Jobs.CreateJob(ctx, fetchDiffJob(50))
	require.NoError(t, err)

	assert.Equal(t, []string{highEarly.ID, highLate.ID, low.ID}, readyIDs(t, f.Jobs, 10))
	assert.Equal(t, []string{highEarly.ID}, readyIDs(t, f.Jobs, 1))
	assert.Empty(t, readyIDs(t, f.Jobs, 0))
}

func TestGetReadyJobs_ExcludesFutureRetryBlockedAndExpired(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	future := fetchDiffJob(10)
	future.ScheduledFor = testutil.Epoch.Add(time.Hour)
	futureJob, err := f.Jobs.CreateJob(ctx, future)
	require.NoError(t, err)

	expiring := fetchDiffJob(10)
	expires := testutil.Epoch.Add(time.Minute)
	expiring.ExpiresAt = &expires
	expiringJob, err := f.Jobs.CreateJob(ctx, expiring)
	require.NoError(t, err)

	blocked, err := f.Jobs.CreateJob(ctx, fetchDiffJob(10))
	require.NoError(t, err)
	retryAt := testutil.Epoch.Add(10 * time.Minute)
	require.NoError(t, f.Jobs.ScheduleRetry(ctx, blocked.ID, retryAt))

	assert.Equal(t, []string{expiringJob.ID}, readyIDs(t, f.Jobs, 10))

	f.Clock.Advance(2 * time.Minute)
	assert.Empty(t, readyIDs(t, f.Jobs, 10), "expired job must not be ready")

	f.Clock.Advance(10 * time.Minute)
	assert.Equal(t, []string{blocked.ID}, readyIDs(t, f.Jobs, 10))

	f.Clock.Advance(time.Hour)
	assert.ElementsMatch(t, []string{blocked.ID, futureJob.ID}, readyIDs(t, f.Jobs, 10))
}

func TestGetReadyJobs_UnsatisfiedDependencyNeverReady(t *testing.T) {
	orders := [][]int{{0, 1}, {1, 0}}

	for _, order := range orders {
		f := testutil.NewFixture(t)
		ctx := context.Background()

		a, err := f.Jobs.CreateJob(ctx, fetchDiffJob(70))
		require.NoError(t, err)
		b, err := f.Jobs.CreateJob(ctx, fetchDiffJob(70))
		require.NoError(t, err)
		dependent, err := f.Jobs.CreateJob(ctx, summaryJob(90, a.ID, b.ID))
		require.NoError(t, err)

		deps := []string{a.ID, b.ID}
		for i, idx := range order {
			assert.NotContains(t, readyIDs(t, f.Jobs, 10), dependent.ID)

			_, err := f.Jobs.MarkJobAsRunning(ctx, deps[idx])
			require.NoError(t, err)
			assert.NotContains(t, readyIDs(t, f.Jobs, 10), dependent.ID, "running dependency")

			require.NoError(t, f.Jobs.MarkJobAsCompleted(ctx, deps[idx], nil))
			if i < len(order)-1 {
				assert.NotContains(t, readyIDs(t, f.Jobs, 10), dependent.ID, "one dependency still pending")
			}
		}
		assert.Equal(t, []string{dependent.ID}, readyIDs(t, f.Jobs, 10))
	}
}

func TestGetJobsByFilter(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	projectID := "p-1"
	withProject := fetchDiffJob(80)
	withProject.ProjectID = &projectID
	a, err := f.Jobs.CreateJob(ctx, withProject)
	require.NoError(t, err)
	b, err := f.Jobs.CreateJob(ctx, summaryJob(20))
	require.NoError(t, err)
	_, err = f.Jobs.MarkJobAsRunning(ctx, b.ID)
	require.NoError(t, err)

	byStatus, err := f.Jobs.GetJobsByFilter(ctx, core.JobFilter{Statuses: []core.JobStatus{core.JobStatusRunning}})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, b.ID, byStatus[0].ID)

	byProject, err := f.Jobs.GetJobsByFilter(ctx, core.JobFilter{ProjectID: projectID})
	require.NoError(t, err)
	require.Len(t, byProject, 1)
	assert.Equal(t, a.ID, byProject[0].ID)

	minPriority := 50
	byPriority, err := f.Jobs.GetJobsByFilter(ctx, core.JobFilter{
		Types:       []core.JobType{core.JobTypeFetchDiff, core.JobTypeGenerateSummary},
		MinPriority: &minPriority,
	})
	require.NoError(t, err)
	require.Len(t, byPriority, 1)
	assert.Equal(t, a.ID, byPriority[0].ID)

	all, err := f.Jobs.GetJobsByFilter(ctx, core.JobFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetQueueStats(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	older := fetchDiffJob(10)
	older.ScheduledFor = testutil.Epoch.Add(-30 * time.Minute)
	_, err := f.Jobs.CreateJob(ctx, older)
	require.NoError(t, err)
	running, err := f.Jobs.CreateJob(ctx, fetchDiffJob(10))
	require.NoError(t, err)
	_, err = f.Jobs.MarkJobAsRunning(ctx, running.ID)
	require.NoError(t, err)

	stats, err := f.Jobs.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Counts[core.JobStatusPending])
	assert.Equal(t, int64(1), stats.Counts[core.JobStatusRunning])
	assert.Equal(t, int64(0), stats.Counts[core.JobStatusFailed])
	require.NotNil(t, stats.OldestPendingSince)
	assert.True(t, stats.OldestPendingSince.Equal(older.ScheduledFor))
}

func TestUpdateAndDeleteJob(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	job, err := f.Jobs.CreateJob(ctx, fetchDiffJob(10))
	require.NoError(t, err)

	priority := 99
	updated, err := f.Jobs.UpdateJob(ctx, job.ID, core.JobUpdate{Priority: &priority})
	require.NoError(t, err)
	assert.Equal(t, 99, updated.Priority)

	bad := core.JobStatus("paused")
	_, err = f.Jobs.UpdateJob(ctx, job.ID, core.JobUpdate{Status: &bad})
	assert.ErrorIs(t, err, core.ErrInvalidJob)

	tooHigh := 500
	_, err = f.Jobs.UpdateJob(ctx, job.ID, core.JobUpdate{Priority: &tooHigh})
	assert.ErrorIs(t, err, core.ErrInvalidJob)

	attempts := core.DefaultMaxAttempts + 1
	_, err = f.Jobs.UpdateJob(ctx, job.ID, core.JobUpdate{Attempts: &attempts})
	assert.ErrorIs(t, err, core.ErrInvalidJob)

	two, one := 2, 1
	updated, err = f.Jobs.UpdateJob(ctx, job.ID, core.JobUpdate{Attempts: &two})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Attempts)
	_, err = f.Jobs.UpdateJob(ctx, job.ID, core.JobUpdate{MaxAttempts: &one})
	assert.ErrorIs(t, err, core.ErrInvalidJob)
	_, err = f.Jobs.UpdateJob(ctx, job.ID, core.JobUpdate{Attempts: &one, MaxAttempts: &one})
	require.NoError(t, err)

	_, err = f.Jobs.UpdateJob(ctx, "nope", core.JobUpdate{Priority: &priority})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, f.Jobs.DeleteJob(ctx, job.ID))
	_, err = f.Jobs.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, f.Jobs.DeleteJob(ctx, job.ID), storage.ErrNotFound)
}
