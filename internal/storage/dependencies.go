package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sevigo/commit-digest/internal/core"
)

// maxDependencyDepth bounds the cycle walk. Pipelines are short linear chains.
const maxDependencyDepth = 32

type dependencyRow struct {
	ID             string    `db:"id"`
	JobID          string    `db:"job_id"`
	DependsOnJobID string    `db:"depends_on_job_id"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r dependencyRow) toDependency() core.JobDependency {
	return core.JobDependency{
		ID:             r.ID,
		JobID:          r.JobID,
		DependsOnJobID: r.DependsOnJobID,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

// AddJobDependency records that jobID must not start before dependsOnJobID completed.
func (s *jobStore) AddJobDependency(ctx context.Context, jobID, dependsOnJobID string) (*core.JobDependency, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := requireJob(ctx, tx, jobID); err != nil {
		return nil, err
	}
	if err := checkCycle(ctx, tx, jobID, dependsOnJobID); err != nil {
		return nil, err
	}
	dep, err := insertDependency(ctx, tx, jobID, dependsOnJobID, s.now())
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit dependency: %w", err)
	}
	return dep, nil
}

func (s *jobStore) RemoveJobDependency(ctx context.Context, jobID, dependsOnJobID string) error {
	query := s.db.Rebind(`DELETE FROM job_dependencies WHERE job_id = ? AND depends_on_job_id = ?`)
	res, err := s.db.ExecContext(ctx, query, jobID, dependsOnJobID)
	if err != nil {
		return fmt.Errorf("failed to remove dependency: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("dependency %s -> %s: %w", jobID, dependsOnJobID, ErrNotFound)
	}
	return nil
}

// GetJobDependencies lists the edges where jobID is the dependent job.
func (s *jobStore) GetJobDependencies(ctx context.Context, jobID string) ([]core.JobDependency, error) {
	var rows []dependencyRow
	query := s.db.Rebind(`SELECT id, job_id, depends_on_job_id, created_at
		FROM job_dependencies WHERE job_id = ? ORDER BY created_at ASC, id ASC`)
	if err := s.db.SelectContext(ctx, &rows, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list dependencies of %s: %w", jobID, err)
	}
	deps := make([]core.JobDependency, 0, len(rows))
	for _, r := range rows {
		deps = append(deps, r.toDependency())
	}
	return deps, nil
}

// insertDependency validates and writes one edge inside tx.
func insertDependency(ctx context.Context, tx *sqlx.Tx, jobID, dependsOnJobID string, now time.Time) (*core.JobDependency, error) {
	if jobID == dependsOnJobID {
		return nil, fmt.Errorf("%w: %s", ErrSelfDependency, jobID)
	}
	if err := requireJob(ctx, tx, dependsOnJobID); err != nil {
		return nil, err
	}

	var existing int
	query := tx.Rebind(`SELECT COUNT(*) FROM job_dependencies WHERE job_id = ? AND depends_on_job_id = ?`)
	if err := tx.GetContext(ctx, &existing, query, jobID, dependsOnJobID); err != nil {
		return nil, fmt.Errorf("failed to check dependency: %w", err)
	}
	if existing > 0 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrDuplicateDependency, jobID, dependsOnJobID)
	}

	dep := &core.JobDependency{
		ID:             uuid.NewString(),
		JobID:          jobID,
		DependsOnJobID: dependsOnJobID,
		CreatedAt:      now,
	}
	insert := tx.Rebind(`INSERT INTO job_dependencies (id, job_id, depends_on_job_id, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insert, dep.ID, dep.JobID, dep.DependsOnJobID, dep.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert dependency: %w", err)
	}
	return dep, nil
}

func requireJob(ctx context.Context, tx *sqlx.Tx, id string) error {
	var found string
	err := tx.GetContext(ctx, &found, tx.Rebind(`SELECT id FROM jobs WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up job %s: %w", id, err)
	}
	return nil
}

// checkCycle walks the dependencies of dependsOnJobID and rejects the edge if
// jobID is reachable from it.
func checkCycle(ctx context.Context, tx *sqlx.Tx, jobID, dependsOnJobID string) error {
	frontier := []string{dependsOnJobID}
	visited := map[string]bool{}
	query := tx.Rebind(`SELECT depends_on_job_id FROM job_dependencies WHERE job_id = ?`)

	for depth := 0; len(frontier) > 0 && depth < maxDependencyDepth; depth++ {
		var next []string
		for _, id := range frontier {
			if visited[id] {
				continue
			}
			visited[id] = true
			var upstream []string
			if err := tx.SelectContext(ctx, &upstream, query, id); err != nil {
				return fmt.Errorf("failed to walk dependencies: %w", err)
			}
			for _, up := range upstream {
				if up == jobID {
					return fmt.Errorf("%w: %s -> %s", ErrDependencyCycle, jobID, dependsOnJobID)
				}
				next = append(next, up)
			}
		}
		frontier = next
	}
	return nil
}
