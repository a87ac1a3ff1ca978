package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/jobs"
)

func init() { //nolint:gochecknoinits // deterministic output in tests
	color.NoColor = true
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]string{"": formatTable, "JSON": formatJSON, "yml": formatYAML, "table": formatTable} {
		got, err := parseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := parseFormat("xml")
	assert.Error(t, err)
}

func TestWriteStructured_YAMLUsesJSONKeys(t *testing.T) {
	commitID := "c1"
	view := jobs.NewJobView(&core.Job{
		ID:          "job-1",
		Type:        core.JobTypeFetchDiff,
		Status:      core.JobStatusFailed,
		MaxAttempts: 3,
		CommitID:    &commitID,
	}, []core.JobDependency{{DependsOnJobID: "job-0"}})

	var buf bytes.Buffer
	ok, err := writeStructured(&buf, formatYAML, view)
	require.True(t, ok)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "commit_id: c1")
	assert.Contains(t, buf.String(), "max_attempts: 3")
	assert.Contains(t, buf.String(), "- job-0")

	buf.Reset()
	ok, err = writeStructured(&buf, formatTable, view)
	assert.False(t, ok)
	assert.NoError(t, err)
	assert.Zero(t, buf.Len())
}

func TestWriteJobsTable(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := "ECONNRESET"
	views := []jobs.JobView{
		jobs.NewJobView(&core.Job{
			ID: "0123456789abcdef", Type: core.JobTypeGenerateSummary, Status: core.JobStatusPending,
			Priority: 60, Attempts: 1, MaxAttempts: 3, ErrorMessage: &msg, CreatedAt: now.Add(-90 * time.Second),
		}, nil),
	}
	var buf bytes.Buffer
	require.NoError(t, writeJobsTable(&buf, views, now))
	out := buf.String()
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "1/3")
	assert.Contains(t, out, "1m30s ago")
	assert.Contains(t, out, "ECONNRESET")
}

func TestResultWithoutDiff(t *testing.T) {
	out := resultWithoutDiff(map[string]any{"diff_content": "abcd", "files_changed": 2})
	assert.Equal(t, "<4 bytes>", out["diff_content"])
	assert.Equal(t, 2, out["files_changed"])
}

func TestSummaryMarkdown(t *testing.T) {
	summary := "Adds CSV export to the reports page."
	changeType := "feature"
	confidence := 0.8
	pr := 42
	prTitle := "CSV export"
	c := &core.Commit{
		SHA:          "aaa1111222233334444",
		Message:      "Add CSV export (ABC-7)\n\nLonger body",
		AuthorName:   "Dana",
		Branch:       "main",
		Summary:      &summary,
		ChangeType:   &changeType,
		Confidence:   &confidence,
		PRNumber:     &pr,
		PRTitle:      &prTitle,
		FilesChanged: 2,
		Additions:    10,
		Deletions:    3,
	}
	md := summaryMarkdown(c, "acme/widgets")
	assert.Contains(t, md, "# acme/widgets @ aaa1111\n")
	assert.Contains(t, md, "**Add CSV export (ABC-7)**")
	assert.NotContains(t, md, "Longer body")
	assert.Contains(t, md, "_by Dana · on `main` · feature · confidence 0.80_")
	assert.Contains(t, md, summary)
	assert.Contains(t, md, "Files changed: 2 (+10 / -3)")
	assert.Contains(t, md, "Pull request: #42 CSV export")
	assert.Contains(t, md, "Issues: ABC-7")

	md = summaryMarkdown(&core.Commit{SHA: "bbb", Message: "wip", AuthorName: "Sam"}, "")
	assert.Contains(t, md, "# bbb\n")
	assert.Contains(t, md, "No summary has been generated")
}

func TestRenderStats(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	oldest := now.Add(-time.Minute)
	out := renderStats(&core.QueueStats{
		Counts:             map[core.JobStatus]int64{core.JobStatusPending: 4, core.JobStatusFailed: 1},
		Total:              5,
		OldestPendingSince: &oldest,
	}, now)
	assert.Contains(t, out, "Job queue")
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "4")
	assert.Contains(t, out, "pending since 1m0s ago")
}

type fakeQueue struct {
	stats   *core.QueueStats
	jobs    []*core.Job
	err     error
	filters []core.JobFilter
}

func (f *fakeQueue) GetQueueStats(context.Context) (*core.QueueStats, error) {
	return f.stats, f.err
}

func (f *fakeQueue) GetJobsByFilter(_ context.Context, filter core.JobFilter) ([]*core.Job, error) {
	f.filters = append(f.filters, filter)
	return f.jobs, nil
}

func TestWatchModel(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQueue{
		stats: &core.QueueStats{Counts: map[core.JobStatus]int64{core.JobStatusRunning: 1}, Total: 1},
		jobs: []*core.Job{{
			ID: "job-running-1", Type: core.JobTypeFetchDiff, Status: core.JobStatusRunning,
			Attempts: 0, MaxAttempts: 3, CreatedAt: now,
		}},
	}
	m := newWatchModel(q, time.Second, 20, ThemeCyan)
	m.now = func() time.Time { return now }

	msg := m.load()()
	snap, ok := msg.(snapshotMsg)
	require.True(t, ok)
	require.NoError(t, snap.err)
	assert.Equal(t, 20, q.filters[0].Limit)
	assert.Empty(t, q.filters[0].Statuses)

	_, cmd := m.Update(snap)
	assert.NotNil(t, cmd, "a snapshot schedules the next tick")
	assert.False(t, m.loading)
	require.Len(t, m.table.Rows(), 1)
	assert.Equal(t, "job-runn", m.table.Rows()[0][0])
	assert.Contains(t, m.View(), "total")

	// f cycles to the pending filter and reloads.
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []core.JobStatus{core.JobStatusPending}, q.filters[1].Statuses)

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	assert.Equal(t, ThemeMatrix, m.theme)

	q.err = errors.New("db down")
	_, _ = m.Update(m.load()())
	assert.Contains(t, m.View(), "db down")
	require.Len(t, m.table.Rows(), 1, "rows survive a failed refresh")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
