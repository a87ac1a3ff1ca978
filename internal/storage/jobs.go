package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sevigo/commit-digest/internal/core"
)

// JobStore is the single writer of job records and dependency edges.
type JobStore interface {
	CreateJob(ctx context.Context, in core.NewJob) (*core.Job, error)
	GetJob(ctx context.Context, id string) (*core.Job, error)
	UpdateJob(ctx context.Context, id string, update core.JobUpdate) (*core.Job, error)
	DeleteJob(ctx context.Context, id string) error
	GetReadyJobs(ctx context.Context, limit int) ([]core.ReadyJob, error)
	GetJobsByFilter(ctx context.Context, filter core.JobFilter) ([]*core.Job, error)
	GetQueueStats(ctx context.Context) (*core.QueueStats, error)

	AddJobDependency(ctx context.Context, jobID, dependsOnJobID string) (*core.JobDependency, error)
	RemoveJobDependency(ctx context.Context, jobID, dependsOnJobID string) error
	GetJobDependencies(ctx context.Context, jobID string) ([]core.JobDependency, error)

	MarkJobAsRunning(ctx context.Context, id string) (*core.Job, error)
	MarkJobAsCompleted(ctx context.Context, id string, result map[string]any) error
	MarkJobAsFailed(ctx context.Context, id string, failure core.JobFailure) (*core.Job, error)
	ScheduleRetry(ctx context.Context, id string, retryAfter time.Time) error
	CancelJob(ctx context.Context, id string, reason string) error

	CleanupCompletedJobs(ctx context.Context, daysOld int) (int64, error)
	CleanupExpiredJobs(ctx context.Context) (int64, error)
	GetStaleRunningJobs(ctx context.Context, timeout time.Duration) ([]*core.Job, error)
	CancelBlockedJobs(ctx context.Context) (int64, error)
}

const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

const jobColumns = `id, type, status, priority, data, context, commit_id, project_id,
	attempts, max_attempts, retry_after, started_at, completed_at, error_message,
	error_details, scheduled_for, expires_at, created_at, updated_at`

type jobRow struct {
	ID           string         `db:"id"`
	Type         string         `db:"type"`
	Status       string         `db:"status"`
	Priority     int            `db:"priority"`
	Data         string         `db:"data"`
	Context      string         `db:"context"`
	CommitID     sql.NullString `db:"commit_id"`
	ProjectID    sql.NullString `db:"project_id"`
	Attempts     int            `db:"attempts"`
	MaxAttempts  int            `db:"max_attempts"`
	RetryAfter   sql.NullTime   `db:"retry_after"`
	StartedAt    sql.NullTime   `db:"started_at"`
	CompletedAt  sql.NullTime   `db:"completed_at"`
	ErrorMessage sql.NullString `db:"error_message"`
	ErrorDetails sql.NullString `db:"error_details"`
	ScheduledFor time.Time      `db:"scheduled_for"`
	ExpiresAt    sql.NullTime   `db:"expires_at"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *jobRow) toJob() (*core.Job, error) {
	jobType := core.JobType(r.Type)
	payload, err := core.DecodePayload(jobType, []byte(r.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", r.ID, err)
	}

	job := &core.Job{
		ID:           r.ID,
		Type:         jobType,
		Status:       core.JobStatus(r.Status),
		Priority:     r.Priority,
		Data:         payload,
		Context:      map[string]any{},
		CommitID:     nullString(r.CommitID),
		ProjectID:    nullString(r.ProjectID),
		Attempts:     r.Attempts,
		MaxAttempts:  r.MaxAttempts,
		RetryAfter:   nullTime(r.RetryAfter),
		StartedAt:    nullTime(r.StartedAt),
		CompletedAt:  nullTime(r.CompletedAt),
		ErrorMessage: nullString(r.ErrorMessage),
		ScheduledFor: r.ScheduledFor.UTC(),
		ExpiresAt:    nullTime(r.ExpiresAt),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.Context != "" {
		if err := json.Unmarshal([]byte(r.Context), &job.Context); err != nil {
			return nil, fmt.Errorf("failed to decode context of job %s: %w", r.ID, err)
		}
	}
	if r.ErrorDetails.Valid && r.ErrorDetails.String != "" {
		if err := json.Unmarshal([]byte(r.ErrorDetails.String), &job.ErrorDetails); err != nil {
			return nil, fmt.Errorf("failed to decode error details of job %s: %w", r.ID, err)
		}
	}
	return job, nil
}

// JobStoreOption configures a job store.
type JobStoreOption func(*jobStore)

// WithClock replaces the wall clock. Times are always stored in UTC.
func WithClock(now func() time.Time) JobStoreOption {
	return func(s *jobStore) { s.clock = now }
}

// WithRetryBackoff sets the backoff applied by MarkJobAsFailed when the caller
// does not provide an explicit retry time.
func WithRetryBackoff(base, maxDelay time.Duration) JobStoreOption {
	return func(s *jobStore) {
		s.backoffBase = base
		s.backoffMax = maxDelay
	}
}

// WithWriteRetries sets how often lifecycle writes are attempted and the fixed
// delay between attempts.
func WithWriteRetries(attempts int, delay time.Duration) JobStoreOption {
	return func(s *jobStore) {
		s.writeAttempts = attempts
		s.writeDelay = delay
	}
}

type jobStore struct {
	db            *sqlx.DB
	clock         func() time.Time
	backoffBase   time.Duration
	backoffMax    time.Duration
	writeAttempts int
	writeDelay    time.Duration
}

// NewJobStore creates a JobStore over a postgres or sqlite3 connection.
func NewJobStore(db *sqlx.DB, opts ...JobStoreOption) JobStore {
	s := &jobStore{
		db:            db,
		clock:         time.Now,
		backoffBase:   time.Second,
		backoffMax:    30 * time.Second,
		writeAttempts: defaultWriteAttempts,
		writeDelay:    defaultWriteDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *jobStore) now() time.Time {
	return s.clock().UTC()
}

// CreateJob validates the input, applies defaults and persists the job together
// with its dependency edges in one transaction.
func (s *jobStore) CreateJob(ctx context.Context, in core.NewJob) (*core.Job, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	job := &core.Job{
		ID:           uuid.NewString(),
		Type:         in.Type,
		Status:       core.JobStatusPending,
		Priority:     in.Priority,
		Data:         in.Data,
		Context:      in.Context,
		CommitID:     in.CommitID,
		ProjectID:    in.ProjectID,
		MaxAttempts:  in.MaxAttempts,
		ScheduledFor: in.ScheduledFor.UTC(),
		ExpiresAt:    utcPtr(in.ExpiresAt),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = core.DefaultMaxAttempts
	}
	if in.ScheduledFor.IsZero() {
		job.ScheduledFor = now
	}
	if job.Context == nil {
		job.Context = map[string]any{}
	}

	data, err := json.Marshal(job.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job payload: %w", err)
	}
	jobContext, err := json.Marshal(job.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job context: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := tx.Rebind(`INSERT INTO jobs (id, type, status, priority, data, context, commit_id, project_id,
		attempts, max_attempts, scheduled_for, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query, job.ID, job.Type, job.Status, job.Priority, string(data),
		string(jobContext), job.CommitID, job.ProjectID, job.MaxAttempts, job.ScheduledFor, job.ExpiresAt,
		job.CreatedAt, job.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	seen := make(map[string]bool, len(in.DependsOn))
	for _, dep := range in.DependsOn {
		if seen[dep] {
			return nil, fmt.Errorf("%w: %s -> %s", ErrDuplicateDependency, job.ID, dep)
		}
		seen[dep] = true
		if _, err := insertDependency(ctx, tx, job.ID, dep, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit job: %w", err)
	}
	return job, nil
}

func (s *jobStore) GetJob(ctx context.Context, id string) (*core.Job, error) {
	return getJob(ctx, s.db, id)
}

func getJob(ctx context.Context, q sqlx.ExtContext, id string) (*core.Job, error) {
	var row jobRow
	query := q.Rebind(`SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`)
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return row.toJob()
}

// UpdateJob applies a partial update. Status changes keep the started_at and
// completed_at invariants, and attempts may never exceed max_attempts.
func (s *jobStore) UpdateJob(ctx context.Context, id string, update core.JobUpdate) (*core.Job, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	sets := []string{"updated_at = ?"}
	args := []any{now}
	add := func(clause string, arg any) {
		sets = append(sets, clause)
		args = append(args, arg)
	}

	if update.Status != nil {
		add("status = ?", *update.Status)
		switch *update.Status {
		case core.JobStatusPending:
			sets = append(sets, "started_at = NULL", "completed_at = NULL")
		case core.JobStatusRunning:
			add("started_at = COALESCE(started_at, ?)", now)
		default:
			add("completed_at = COALESCE(completed_at, ?)", now)
		}
	}
	if update.Priority != nil {
		add("priority = ?", *update.Priority)
	}
	if update.Data != nil {
		data, err := json.Marshal(update.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode job payload: %w", err)
		}
		add("data = ?", string(data))
	}
	if update.Context != nil {
		raw, err := json.Marshal(update.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to encode job context: %w", err)
		}
		add("context = ?", string(raw))
	}
	if update.Attempts != nil {
		add("attempts = ?", *update.Attempts)
	}
	if update.MaxAttempts != nil {
		add("max_attempts = ?", *update.MaxAttempts)
	}
	if update.RetryAfter != nil {
		add("retry_after = ?", update.RetryAfter.UTC())
	}
	if update.ScheduledFor != nil {
		add("scheduled_for = ?", update.ScheduledFor.UTC())
	}
	if update.ExpiresAt != nil {
		add("expires_at = ?", update.ExpiresAt.UTC())
	}
	if update.ErrorMessage != nil {
		add("error_message = ?", *update.ErrorMessage)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := loadLifecycle(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	attempts, maxAttempts := current.Attempts, current.MaxAttempts
	if update.Attempts != nil {
		attempts = *update.Attempts
	}
	if update.MaxAttempts != nil {
		maxAttempts = *update.MaxAttempts
	}
	if attempts > maxAttempts {
		return nil, fmt.Errorf("%w: attempts %d exceed max_attempts %d", core.ErrInvalidJob, attempts, maxAttempts)
	}

	args = append(args, id)
	query := tx.Rebind(`UPDATE jobs SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update job %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit job update: %w", err)
	}
	return s.GetJob(ctx, id)
}

// DeleteJob removes a job; its dependency edges cascade.
func (s *jobStore) DeleteJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM jobs WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetReadyJobs selects pending, due, unexpired jobs whose dependencies have all
// completed, in one statement.
func (s *jobStore) GetReadyJobs(ctx context.Context, limit int) ([]core.ReadyJob, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := s.now()
	query := s.db.Rebind(`
		SELECT j.id, j.type, j.priority, j.scheduled_for
		FROM jobs j
		WHERE j.status = 'pending'
		  AND j.scheduled_for <= ?
		  AND (j.retry_after IS NULL OR j.retry_after <= ?)
		  AND (j.expires_at IS NULL OR j.expires_at > ?)
		  AND NOT EXISTS (
		      SELECT 1
		      FROM job_dependencies d
		      JOIN jobs dep ON dep.id = d.depends_on_job_id
		      WHERE d.job_id = j.id AND dep.status <> 'completed'
		  )
		ORDER BY j.priority DESC, j.scheduled_for ASC
		LIMIT ?`)

	var rows []struct {
		ID           string    `db:"id"`
		Type         string    `db:"type"`
		Priority     int       `db:"priority"`
		ScheduledFor time.Time `db:"scheduled_for"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, now, now, now, limit); err != nil {
		return nil, fmt.Errorf("failed to select ready jobs: %w", err)
	}

	ready := make([]core.ReadyJob, 0, len(rows))
	for _, r := range rows {
		ready = append(ready, core.ReadyJob{
			ID:           r.ID,
			Type:         core.JobType(r.Type),
			Priority:     r.Priority,
			ScheduledFor: r.ScheduledFor.UTC(),
		})
	}
	return ready, nil
}

// GetJobsByFilter returns jobs matching the filter, newest first.
func (s *jobStore) GetJobsByFilter(ctx context.Context, filter core.JobFilter) ([]*core.Job, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN (?)")
		args = append(args, filter.Statuses)
	}
	if len(filter.Types) > 0 {
		where = append(where, "type IN (?)")
		args = append(args, filter.Types)
	}
	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.CommitID != "" {
		where = append(where, "commit_id = ?")
		args = append(args, filter.CommitID)
	}
	if filter.MinPriority != nil {
		where = append(where, "priority >= ?")
		args = append(args, *filter.MinPriority)
	}
	if filter.MaxPriority != nil {
		where = append(where, "priority <= ?")
		args = append(args, *filter.MaxPriority)
	}
	if filter.CreatedAfter != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.CreatedAfter.UTC())
	}
	if filter.CreatedBefore != nil {
		where = append(where, "created_at <= ?")
		args = append(args, filter.CreatedBefore.UTC())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultFilterLimit
	}
	if limit > maxFilterLimit {
		limit = maxFilterLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build job filter: %w", err)
	}

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to filter jobs: %w", err)
	}
	return rowsToJobs(rows)
}

// GetQueueStats counts jobs per status and reports the oldest pending job.
func (s *jobStore) GetQueueStats(ctx context.Context) (*core.QueueStats, error) {
	var counts []struct {
		Status string `db:"status"`
		Count  int64  `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &counts, `SELECT status, COUNT(*) AS n FROM jobs GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	stats := &core.QueueStats{Counts: make(map[core.JobStatus]int64, len(core.AllJobStatuses))}
	for _, st := range core.AllJobStatuses {
		stats.Counts[st] = 0
	}
	for _, c := range counts {
		stats.Counts[core.JobStatus(c.Status)] = c.Count
		stats.Total += c.Count
	}

	var oldest []time.Time
	if err := s.db.SelectContext(ctx, &oldest,
		`SELECT scheduled_for FROM jobs WHERE status = 'pending' ORDER BY scheduled_for ASC LIMIT 1`); err != nil {
		return nil, fmt.Errorf("failed to find oldest pending job: %w", err)
	}
	if len(oldest) > 0 {
		t := oldest[0].UTC()
		stats.OldestPendingSince = &t
	}
	return stats, nil
}

func rowsToJobs(rows []jobRow) ([]*core.Job, error) {
	jobs := make([]*core.Job, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toJob()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
