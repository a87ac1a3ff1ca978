package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sevigo/commit-digest/internal/core"
)

type lifecycleRow struct {
	Status      string `db:"status"`
	Attempts    int    `db:"attempts"`
	MaxAttempts int    `db:"max_attempts"`
	Context     string `db:"context"`
}

func loadLifecycle(ctx context.Context, tx *sqlx.Tx, id string) (*lifecycleRow, error) {
	var row lifecycleRow
	query := tx.Rebind(`SELECT status, attempts, max_attempts, context FROM jobs WHERE id = ?`)
	if err := tx.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	return &row, nil
}

// MarkJobAsRunning claims a pending job. The update is conditional on the job
// still being pending, so two processors can never both run it.
func (s *jobStore) MarkJobAsRunning(ctx context.Context, id string) (*core.Job, error) {
	err := withWriteRetry(ctx, s.writeAttempts, s.writeDelay, func() error {
		now := s.now()
		query := s.db.Rebind(`UPDATE jobs SET status = 'running', started_at = ?, completed_at = NULL, updated_at = ?
			WHERE id = ? AND status = 'pending'`)
		res, err := s.db.ExecContext(ctx, query, now, now, id)
		if err != nil {
			return fmt.Errorf("failed to mark job %s running: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
		if _, err := s.GetJob(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("job %s: %w", id, ErrJobNotClaimable)
	})
	if err != nil {
		return nil, err
	}
	return s.GetJob(ctx, id)
}

// MarkJobAsCompleted finishes a running job and stores result at context["result"].
func (s *jobStore) MarkJobAsCompleted(ctx context.Context, id string, result map[string]any) error {
	return withWriteRetry(ctx, s.writeAttempts, s.writeDelay, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row, err := loadLifecycle(ctx, tx, id)
		if err != nil {
			return err
		}
		if core.JobStatus(row.Status) != core.JobStatusRunning {
			return fmt.Errorf("%w: cannot complete job %s in status %s", ErrInvalidTransition, id, row.Status)
		}

		jobContext := map[string]any{}
		if row.Context != "" {
			if err := json.Unmarshal([]byte(row.Context), &jobContext); err != nil {
				return fmt.Errorf("failed to decode context of job %s: %w", id, err)
			}
		}
		if result == nil {
			result = map[string]any{}
		}
		jobContext[core.ResultContextKey] = result
		raw, err := json.Marshal(jobContext)
		if err != nil {
			return fmt.Errorf("failed to encode result of job %s: %w", id, err)
		}

		now := s.now()
		query := tx.Rebind(`UPDATE jobs SET status = 'completed', completed_at = ?, updated_at = ?,
			context = ?, retry_after = NULL WHERE id = ? AND status = 'running'`)
		if _, err := tx.ExecContext(ctx, query, now, now, string(raw), id); err != nil {
			return fmt.Errorf("failed to mark job %s completed: %w", id, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit completion of job %s: %w", id, err)
		}
		return nil
	})
}

// MarkJobAsFailed records a failed execution of a running job. It increments
// attempts and either returns the job to pending with a retry time or fails it
// permanently when attempts are exhausted or the failure is terminal.
func (s *jobStore) MarkJobAsFailed(ctx context.Context, id string, failure core.JobFailure) (*core.Job, error) {
	err := withWriteRetry(ctx, s.writeAttempts, s.writeDelay, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row, err := loadLifecycle(ctx, tx, id)
		if err != nil {
			return err
		}
		if core.JobStatus(row.Status) != core.JobStatusRunning {
			return fmt.Errorf("%w: cannot fail job %s in status %s", ErrInvalidTransition, id, row.Status)
		}

		now := s.now()
		next := row.Attempts + 1
		if next > row.MaxAttempts {
			next = row.MaxAttempts
		}

		details := map[string]any{}
		for k, v := range failure.Details {
			details[k] = v
		}
		details["attempt"] = next
		details["failed_at"] = now.Format(time.RFC3339Nano)
		if failure.Terminal {
			details["terminal"] = true
		}
		rawDetails, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode error details: %w", err)
		}

		var query string
		var args []any
		if failure.Terminal || next >= row.MaxAttempts {
			query = `UPDATE jobs SET status = 'failed', attempts = ?, completed_at = ?, retry_after = NULL,
				error_message = ?, error_details = ?, updated_at = ? WHERE id = ? AND status = 'running'`
			args = []any{next, now, failure.Message, string(rawDetails), now, id}
		} else {
			retryAt := now.Add(RetryDelay(row.Attempts, s.backoffBase, s.backoffMax))
			if failure.RetryAfter != nil {
				retryAt = failure.RetryAfter.UTC()
			}
			query = `UPDATE jobs SET status = 'pending', attempts = ?, started_at = NULL, retry_after = ?,
				error_message = ?, error_details = ?, updated_at = ? WHERE id = ? AND status = 'running'`
			args = []any{next, retryAt, failure.Message, string(rawDetails), now, id}
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("failed to mark job %s failed: %w", id, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit failure of job %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetJob(ctx, id)
}

// ScheduleRetry makes a pending, failed or cancelled job eligible again at
// retryAfter. Jobs that had ended get a fresh attempt budget.
func (s *jobStore) ScheduleRetry(ctx context.Context, id string, retryAfter time.Time) error {
	return withWriteRetry(ctx, s.writeAttempts, s.writeDelay, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row, err := loadLifecycle(ctx, tx, id)
		if err != nil {
			return err
		}

		attempts := row.Attempts
		switch core.JobStatus(row.Status) {
		case core.JobStatusPending:
		case core.JobStatusFailed, core.JobStatusCancelled:
			attempts = 0
		default:
			return fmt.Errorf("%w: cannot retry job %s in status %s", ErrInvalidTransition, id, row.Status)
		}

		now := s.now()
		query := tx.Rebind(`UPDATE jobs SET status = 'pending', attempts = ?, retry_after = ?, started_at = NULL,
			completed_at = NULL, updated_at = ? WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, query, attempts, retryAfter.UTC(), now, id); err != nil {
			return fmt.Errorf("failed to schedule retry of job %s: %w", id, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit retry of job %s: %w", id, err)
		}
		return nil
	})
}

// CancelJob administratively cancels a pending or running job. A running
// handler is not interrupted; its completion is rejected as an invalid transition.
func (s *jobStore) CancelJob(ctx context.Context, id string, reason string) error {
	return withWriteRetry(ctx, s.writeAttempts, s.writeDelay, func() error {
		now := s.now()
		if reason == "" {
			reason = "cancelled"
		}
		query := s.db.Rebind(`UPDATE jobs SET status = 'cancelled', completed_at = ?, updated_at = ?, error_message = ?
			WHERE id = ? AND status IN ('pending', 'running')`)
		res, err := s.db.ExecContext(ctx, query, now, now, reason, id)
		if err != nil {
			return fmt.Errorf("failed to cancel job %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
		job, err := s.GetJob(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: cannot cancel job %s in status %s", ErrInvalidTransition, id, job.Status)
	})
}

// RetryDelay is base * 2^attempts capped at maxDelay.
func RetryDelay(attempts int, base, maxDelay time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}
