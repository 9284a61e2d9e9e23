package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"conduit-backend/domain/workflow"
	pkgerrors "conduit-backend/pkg/errors"
)

// ToolStore is the Postgres implementation of the tool store port
type ToolStore struct {
	db *sql.DB
}

// NewToolStore creates a Postgres-backed tool store
func NewToolStore(db *sql.DB) *ToolStore {
	return &ToolStore{db: db}
}

// CreateTool inserts a tool after validating its payloads
func (s *ToolStore) CreateTool(ctx context.Context, tool workflow.Tool) (workflow.Tool, error) {
	if err := tool.Validate(); err != nil {
		return workflow.Tool{}, err
	}
	if tool.ID == "" {
		tool.ID = uuid.New().String()
	}

	const q = `
INSERT INTO tools (id, name, method, endpoint, headers, body)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at, updated_at;
`
	err := s.db.QueryRowContext(ctx, q,
		tool.ID, tool.Name, tool.Method, tool.Endpoint, tool.Headers, tool.Body).
		Scan(&tool.CreatedAt, &tool.UpdatedAt)
	if err != nil {
		return workflow.Tool{}, pkgerrors.NewDatabaseError("create tool", err)
	}
	return tool, nil
}

// GetTool returns a tool by id
func (s *ToolStore) GetTool(ctx context.Context, id string) (workflow.Tool, error) {
	const q = `
SELECT id, name, method, endpoint, headers, body, created_at, updated_at
FROM tools
WHERE id = $1;
`
	var t workflow.Tool
	err := s.db.QueryRowContext(ctx, q, id).
		Scan(&t.ID, &t.Name, &t.Method, &t.Endpoint, &t.Headers, &t.Body,
			&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.Tool{}, pkgerrors.NewNotFoundError("tool " + id)
		}
		return workflow.Tool{}, pkgerrors.NewDatabaseError("get tool", err)
	}
	return t, nil
}

// ListTools returns all tools
func (s *ToolStore) ListTools(ctx context.Context) ([]workflow.Tool, error) {
	const q = `
SELECT id, name, method, endpoint, headers, body, created_at, updated_at
FROM tools
ORDER BY name;
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list tools", err)
	}
	defer rows.Close()

	out := make([]workflow.Tool, 0, 16)
	for rows.Next() {
		var t workflow.Tool
		if err := rows.Scan(&t.ID, &t.Name, &t.Method, &t.Endpoint,
			&t.Headers, &t.Body, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan tool", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list tools", err)
	}
	return out, nil
}

// UpdateTool replaces a tool definition
func (s *ToolStore) UpdateTool(ctx context.Context, id string, tool workflow.Tool) (workflow.Tool, error) {
	if err := tool.Validate(); err != nil {
		return workflow.Tool{}, err
	}

	const q = `
UPDATE tools SET
    name       = $2,
    method     = $3,
    endpoint   = $4,
    headers    = $5,
    body       = $6,
    updated_at = now()
WHERE id = $1
RETURNING created_at, updated_at;
`
	tool.ID = id
	err := s.db.QueryRowContext(ctx, q,
		id, tool.Name, tool.Method, tool.Endpoint, tool.Headers, tool.Body).
		Scan(&tool.CreatedAt, &tool.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.Tool{}, pkgerrors.NewNotFoundError("tool " + id)
		}
		return workflow.Tool{}, pkgerrors.NewDatabaseError("update tool", err)
	}
	return tool, nil
}

// DeleteTool deletes a tool; node references are cleared by the store's
// ON DELETE SET NULL.
func (s *ToolStore) DeleteTool(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tools WHERE id = $1`, id)
	if err != nil {
		return pkgerrors.NewDatabaseError("delete tool", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.NewDatabaseError("delete tool", err)
	}
	if affected == 0 {
		return pkgerrors.NewNotFoundError("tool " + id)
	}
	return nil
}
