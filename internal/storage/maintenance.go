package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/sevigo/commit-digest/internal/core"
)

// maxBlockedPasses bounds how far cancellation propagates down a chain per call.
const maxBlockedPasses = 10

// CleanupCompletedJobs deletes completed jobs that finished more than daysOld days ago.
func (s *jobStore) CleanupCompletedJobs(ctx context.Context, daysOld int) (int64, error) {
	if daysOld < 0 {
		return 0, fmt.Errorf("daysOld must not be negative: %d", daysOld)
	}
	cutoff := s.now().AddDate(0, 0, -daysOld)
	query := s.db.Rebind(`DELETE FROM jobs WHERE status = 'completed' AND completed_at < ?`)
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up completed jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CleanupExpiredJobs purges jobs past expires_at that are not running. Pending
// dependents of a purged job are cancelled first so they do not become ready
// when the edge cascades away.
func (s *jobStore) CleanupExpiredJobs(ctx context.Context) (int64, error) {
	now := s.now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cancelDependents := tx.Rebind(`UPDATE jobs SET status = 'cancelled', completed_at = ?, updated_at = ?,
		error_message = 'dependency expired'
		WHERE status = 'pending' AND id IN (
			SELECT d.job_id FROM job_dependencies d
			JOIN jobs e ON e.id = d.depends_on_job_id
			WHERE e.expires_at IS NOT NULL AND e.expires_at < ?
			  AND e.status NOT IN ('running', 'completed')
		)`)
	if _, err := tx.ExecContext(ctx, cancelDependents, now, now, now); err != nil {
		return 0, fmt.Errorf("failed to cancel dependents of expired jobs: %w", err)
	}

	purge := tx.Rebind(`DELETE FROM jobs WHERE expires_at IS NOT NULL AND expires_at < ? AND status <> 'running'`)
	res, err := tx.ExecContext(ctx, purge, now)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired jobs: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit expired job cleanup: %w", err)
	}
	return n, nil
}

// GetStaleRunningJobs returns jobs running for longer than timeout. A zero
// timeout returns every running job.
func (s *jobStore) GetStaleRunningJobs(ctx context.Context, timeout time.Duration) ([]*core.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = 'running'`
	var args []any
	if timeout > 0 {
		query += ` AND (started_at IS NULL OR started_at < ?)`
		args = append(args, s.now().Add(-timeout))
	}
	query += ` ORDER BY started_at ASC, id ASC`

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to select stale running jobs: %w", err)
	}
	return rowsToJobs(rows)
}

// CancelBlockedJobs cancels pending jobs that depend on a failed or cancelled
// job. Such jobs can never become ready.
func (s *jobStore) CancelBlockedJobs(ctx context.Context) (int64, error) {
	query := s.db.Rebind(`UPDATE jobs SET status = 'cancelled', completed_at = ?, updated_at = ?,
		error_message = 'dependency did not complete'
		WHERE status = 'pending' AND EXISTS (
			SELECT 1 FROM job_dependencies d
			JOIN jobs dep ON dep.id = d.depends_on_job_id
			WHERE d.job_id = jobs.id AND dep.status IN ('failed', 'cancelled')
		)`)

	var total int64
	for pass := 0; pass < maxBlockedPasses; pass++ {
		now := s.now()
		res, err := s.db.ExecContext(ctx, query, now, now)
		if err != nil {
			return total, fmt.Errorf("failed to cancel blocked jobs: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
		if n == 0 {
			break
		}
	}
	return total, nil
}
