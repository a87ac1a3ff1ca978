package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sevigo/commit-digest/internal/core"
)

const commitColumns = `id, project_id, sha, base_sha, message, author_name, author_email, author_login,
	branch, url, committed_at, pr_number, pr_title, pr_url, summary, change_type, confidence,
	files_changed, additions, deletions, email_sent, summarized_at, created_at, updated_at`

type commitRow struct {
	ID           string          `db:"id"`
	ProjectID    string          `db:"project_id"`
	SHA          string          `db:"sha"`
	BaseSHA      string          `db:"base_sha"`
	Message      string          `db:"message"`
	AuthorName   string          `db:"author_name"`
	AuthorEmail  string          `db:"author_email"`
	AuthorLogin  string          `db:"author_login"`
	Branch       string          `db:"branch"`
	URL          string          `db:"url"`
	CommittedAt  time.Time       `db:"committed_at"`
	PRNumber     sql.NullInt64   `db:"pr_number"`
	PRTitle      sql.NullString  `db:"pr_title"`
	PRURL        sql.NullString  `db:"pr_url"`
	Summary      sql.NullString  `db:"summary"`
	ChangeType   sql.NullString  `db:"change_type"`
	Confidence   sql.NullFloat64 `db:"confidence"`
	FilesChanged int             `db:"files_changed"`
	Additions    int             `db:"additions"`
	Deletions    int             `db:"deletions"`
	EmailSent    bool            `db:"email_sent"`
	SummarizedAt sql.NullTime    `db:"summarized_at"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r *commitRow) toCommit() *core.Commit {
	c := &core.Commit{
		ID:           r.ID,
		ProjectID:    r.ProjectID,
		SHA:          r.SHA,
		BaseSHA:      r.BaseSHA,
		Message:      r.Message,
		AuthorName:   r.AuthorName,
		AuthorEmail:  r.AuthorEmail,
		AuthorLogin:  r.AuthorLogin,
		Branch:       r.Branch,
		URL:          r.URL,
		CommittedAt:  r.CommittedAt.UTC(),
		PRTitle:      nullString(r.PRTitle),
		PRURL:        nullString(r.PRURL),
		Summary:      nullString(r.Summary),
		ChangeType:   nullString(r.ChangeType),
		FilesChanged: r.FilesChanged,
		Additions:    r.Additions,
		Deletions:    r.Deletions,
		EmailSent:    r.EmailSent,
		SummarizedAt: nullTime(r.SummarizedAt),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.PRNumber.Valid {
		n := int(r.PRNumber.Int64)
		c.PRNumber = &n
	}
	if r.Confidence.Valid {
		f := r.Confidence.Float64
		c.Confidence = &f
	}
	return c
}

type commitStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewCommitStore creates the commit data access.
func NewCommitStore(db *sqlx.DB) core.CommitStore {
	return &commitStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *commitStore) CreateCommit(ctx context.Context, c *core.Commit) error {
	now := s.now()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CommittedAt.IsZero() {
		c.CommittedAt = now
	}
	c.CreatedAt, c.UpdatedAt = now, now

	query := s.db.Rebind(`INSERT INTO commits (id, project_id, sha, base_sha, message, author_name, author_email,
		author_login, branch, url, committed_at, pr_number, pr_title, pr_url, email_sent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, c.ID, c.ProjectID, c.SHA, c.BaseSHA, c.Message, c.AuthorName,
		c.AuthorEmail, c.AuthorLogin, c.Branch, c.URL, c.CommittedAt.UTC(), c.PRNumber, c.PRTitle, c.PRURL,
		c.EmailSent, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert commit %s: %w", c.SHA, err)
	}
	return nil
}

func (s *commitStore) GetCommit(ctx context.Context, id string) (*core.Commit, error) {
	return s.getOne(ctx, `SELECT `+commitColumns+` FROM commits WHERE id = ?`, id)
}

func (s *commitStore) GetCommitBySHA(ctx context.Context, projectID, sha string) (*core.Commit, error) {
	return s.getOne(ctx, `SELECT `+commitColumns+` FROM commits WHERE project_id = ? AND sha = ?`, projectID, sha)
}

func (s *commitStore) getOne(ctx context.Context, query string, args ...any) (*core.Commit, error) {
	var row commitRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("commit: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	return row.toCommit(), nil
}

func (s *commitStore) UpdateCommit(ctx context.Context, id string, u core.CommitUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{s.now()}
	add := func(clause string, arg any) {
		sets = append(sets, clause)
		args = append(args, arg)
	}
	if u.Summary != nil {
		add("summary = ?", *u.Summary)
	}
	if u.ChangeType != nil {
		add("change_type = ?", *u.ChangeType)
	}
	if u.Confidence != nil {
		add("confidence = ?", *u.Confidence)
	}
	if u.SummarizedAt != nil {
		add("summarized_at = ?", u.SummarizedAt.UTC())
	}
	if u.FilesChanged != nil {
		add("files_changed = ?", *u.FilesChanged)
	}
	if u.Additions != nil {
		add("additions = ?", *u.Additions)
	}
	if u.Deletions != nil {
		add("deletions = ?", *u.Deletions)
	}
	if u.PRNumber != nil {
		add("pr_number = ?", *u.PRNumber)
	}
	if u.PRTitle != nil {
		add("pr_title = ?", *u.PRTitle)
	}
	if u.PRURL != nil {
		add("pr_url = ?", *u.PRURL)
	}

	args = append(args, id)
	query := s.db.Rebind(`UPDATE commits SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update commit %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("commit %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *commitStore) MarkCommitAsEmailSent(ctx context.Context, id string) error {
	query := s.db.Rebind(`UPDATE commits SET email_sent = ?, updated_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, true, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark commit %s as emailed: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("commit %s: %w", id, ErrNotFound)
	}
	return nil
}
