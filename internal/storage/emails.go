package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sevigo/commit-digest/internal/core"
)

type emailSendRow struct {
	ID           string         `db:"id"`
	JobID        string         `db:"job_id"`
	Attempt      int            `db:"attempt"`
	ProjectID    string         `db:"project_id"`
	CommitIDs    string         `db:"commit_ids"`
	Recipients   string         `db:"recipients"`
	Subject      string         `db:"subject"`
	TemplateType string         `db:"template_type"`
	Status       string         `db:"status"`
	Error        sql.NullString `db:"error"`
	CreatedAt    time.Time      `db:"created_at"`
	SentAt       sql.NullTime   `db:"sent_at"`
}

type emailTracker struct {
	db *sqlx.DB
}

// NewEmailTracker creates the email send ledger.
func NewEmailTracker(db *sqlx.DB) core.EmailTracker {
	return &emailTracker{db: db}
}

// RecordEmailSend stores a pending send. A second record for the same
// (job, attempt) violates the unique key and is returned as an error.
func (t *emailTracker) RecordEmailSend(ctx context.Context, send *core.EmailSend) (string, error) {
	if send.ID == "" {
		send.ID = uuid.NewString()
	}
	if send.Status == "" {
		send.Status = core.EmailSendPending
	}
	send.CreatedAt = time.Now().UTC()

	commitIDs, err := json.Marshal(nonNil(send.CommitIDs))
	if err != nil {
		return "", fmt.Errorf("failed to encode commit ids: %w", err)
	}
	recipients, err := json.Marshal(nonNil(send.Recipients))
	if err != nil {
		return "", fmt.Errorf("failed to encode recipients: %w", err)
	}

	query := t.db.Rebind(`INSERT INTO email_sends (id, job_id, attempt, project_id, commit_ids, recipients,
		subject, template_type, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := t.db.ExecContext(ctx, query, send.ID, send.JobID, send.Attempt, send.ProjectID, string(commitIDs),
		string(recipients), send.Subject, send.TemplateType, send.Status, send.CreatedAt); err != nil {
		return "", fmt.Errorf("failed to record email send for job %s attempt %d: %w", send.JobID, send.Attempt, err)
	}
	return send.ID, nil
}

func (t *emailTracker) MarkEmailSendStatus(ctx context.Context, id string, status core.EmailSendStatus, errMsg string) error {
	var sentAt *time.Time
	if status == core.EmailSendSent {
		now := time.Now().UTC()
		sentAt = &now
	}
	var errValue *string
	if errMsg != "" {
		errValue = &errMsg
	}
	query := t.db.Rebind(`UPDATE email_sends SET status = ?, error = ?, sent_at = ? WHERE id = ?`)
	res, err := t.db.ExecContext(ctx, query, status, errValue, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to update email send %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("email send %s: %w", id, ErrNotFound)
	}
	return nil
}

func (t *emailTracker) ListEmailSendsForJob(ctx context.Context, jobID string) ([]core.EmailSend, error) {
	var rows []emailSendRow
	query := t.db.Rebind(`SELECT id, job_id, attempt, project_id, commit_ids, recipients, subject, template_type,
		status, error, created_at, sent_at FROM email_sends WHERE job_id = ? ORDER BY attempt ASC`)
	if err := t.db.SelectContext(ctx, &rows, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list email sends of job %s: %w", jobID, err)
	}

	sends := make([]core.EmailSend, 0, len(rows))
	for _, r := range rows {
		send := core.EmailSend{
			ID:           r.ID,
			JobID:        r.JobID,
			Attempt:      r.Attempt,
			ProjectID:    r.ProjectID,
			Subject:      r.Subject,
			TemplateType: core.EmailTemplateType(r.TemplateType),
			Status:       core.EmailSendStatus(r.Status),
			Error:        nullString(r.Error),
			CreatedAt:    r.CreatedAt.UTC(),
			SentAt:       nullTime(r.SentAt),
		}
		if err := json.Unmarshal([]byte(r.CommitIDs), &send.CommitIDs); err != nil {
			return nil, fmt.Errorf("failed to decode commit ids of email send %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(r.Recipients), &send.Recipients); err != nil {
			return nil, fmt.Errorf("failed to decode recipients of email send %s: %w", r.ID, err)
		}
		sends = append(sends, send)
	}
	return sends, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
