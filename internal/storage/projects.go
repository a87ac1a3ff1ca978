package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sevigo/commit-digest/internal/core"
)

type projectRow struct {
	ID                 string         `db:"id"`
	Name               string         `db:"name"`
	RepositoryFullName string         `db:"repository_full_name"`
	UserID             sql.NullString `db:"user_id"`
	InstallationID     sql.NullInt64  `db:"installation_id"`
	EmailRecipients    string         `db:"email_recipients"`
	CustomContext      string         `db:"custom_context"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (r *projectRow) toProject() (*core.Project, error) {
	p := &core.Project{
		ID:                 r.ID,
		Name:               r.Name,
		RepositoryFullName: r.RepositoryFullName,
		UserID:             nullString(r.UserID),
		CustomContext:      r.CustomContext,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
	if r.InstallationID.Valid {
		id := r.InstallationID.Int64
		p.InstallationID = &id
	}
	if r.EmailRecipients != "" {
		if err := json.Unmarshal([]byte(r.EmailRecipients), &p.EmailRecipients); err != nil {
			return nil, fmt.Errorf("failed to decode recipients of project %s: %w", r.ID, err)
		}
	}
	return p, nil
}

type projectStore struct {
	db *sqlx.DB
}

// NewProjectStore creates the project data access.
func NewProjectStore(db *sqlx.DB) core.ProjectStore {
	return &projectStore{db: db}
}

func (s *projectStore) CreateProject(ctx context.Context, p *core.Project) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now

	recipients := p.EmailRecipients
	if recipients == nil {
		recipients = []string{}
	}
	raw, err := json.Marshal(recipients)
	if err != nil {
		return fmt.Errorf("failed to encode recipients: %w", err)
	}

	query := s.db.Rebind(`INSERT INTO projects (id, name, repository_full_name, user_id, installation_id,
		email_recipients, custom_context, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.RepositoryFullName, p.UserID, p.InstallationID,
		string(raw), p.CustomContext, p.CreatedAt, p.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert project %s: %w", p.RepositoryFullName, err)
	}
	return nil
}

func (s *projectStore) GetProject(ctx context.Context, id string) (*core.Project, error) {
	return s.getOne(ctx, `SELECT * FROM projects WHERE id = ?`, id)
}

// GetProjectByRepository matches the repository full name case-insensitively.
func (s *projectStore) GetProjectByRepository(ctx context.Context, fullName string) (*core.Project, error) {
	return s.getOne(ctx, `SELECT * FROM projects WHERE LOWER(repository_full_name) = LOWER(CAST(? AS TEXT))`, fullName)
}

func (s *projectStore) getOne(ctx context.Context, query string, args ...any) (*core.Project, error) {
	var row projectRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return row.toProject()
}
