package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"conduit-backend/domain/workflow"
	pkgerrors "conduit-backend/pkg/errors"
)

// ProjectStore is the Postgres implementation of the project store port.
// The start node is created by a storage trigger in the same transaction
// as the project row.
type ProjectStore struct {
	db *sql.DB
}

// NewProjectStore creates a Postgres-backed project store
func NewProjectStore(db *sql.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// CreateProject inserts a project; its start node is seeded by the store
func (s *ProjectStore) CreateProject(ctx context.Context, name, description string) (workflow.Project, error) {
	p := workflow.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
	}

	const q = `
INSERT INTO projects (id, name, description)
VALUES ($1, $2, $3)
RETURNING created_at, updated_at;
`
	err := s.db.QueryRowContext(ctx, q, p.ID, p.Name, p.Description).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return workflow.Project{}, pkgerrors.NewDatabaseError("create project", err)
	}
	return p, nil
}

// GetProject returns a project by id
func (s *ProjectStore) GetProject(ctx context.Context, id string) (workflow.Project, error) {
	const q = `
SELECT id, name, description, created_at, updated_at
FROM projects
WHERE id = $1;
`
	var p workflow.Project
	err := s.db.QueryRowContext(ctx, q, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.Project{}, pkgerrors.NewNotFoundError("project " + id)
		}
		return workflow.Project{}, pkgerrors.NewDatabaseError("get project", err)
	}
	return p, nil
}

// ListProjects returns all projects, newest first
func (s *ProjectStore) ListProjects(ctx context.Context) ([]workflow.Project, error) {
	const q = `
SELECT id, name, description, created_at, updated_at
FROM projects
ORDER BY created_at DESC;
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list projects", err)
	}
	defer rows.Close()

	out := make([]workflow.Project, 0, 16)
	for rows.Next() {
		var p workflow.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan project", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list projects", err)
	}
	return out, nil
}

// DeleteProject deletes a project; nodes and edges cascade at the store
func (s *ProjectStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return pkgerrors.NewDatabaseError("delete project", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.NewDatabaseError("delete project", err)
	}
	if affected == 0 {
		return pkgerrors.NewNotFoundError("project " + id)
	}
	return nil
}
