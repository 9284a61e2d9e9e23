package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"conduit-backend/domain/workflow"
	pkgerrors "conduit-backend/pkg/errors"
)

// GraphStore is the Postgres implementation of the graph store port
type GraphStore struct {
	db *sql.DB
}

// NewGraphStore creates a Postgres-backed graph store
func NewGraphStore(db *sql.DB) *GraphStore {
	return &GraphStore{db: db}
}

const fetchNodesQuery = `
SELECT n.id, n.project_id, n.title, n.prompt, n.node_type, n.tool_id, n.x, n.y,
       n.created_at, n.updated_at,
       t.id, t.name, t.method, t.endpoint, t.headers, t.body
FROM nodes n
LEFT JOIN tools t ON t.id = n.tool_id
WHERE n.project_id = $1
ORDER BY n.created_at;
`

// FetchNodes returns the durable node snapshot with tools inlined
func (s *GraphStore) FetchNodes(ctx context.Context, projectID string) ([]workflow.Node, error) {
	rows, err := s.db.QueryContext(ctx, fetchNodesQuery, projectID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("fetch nodes", err)
	}
	defer rows.Close()

	out := make([]workflow.Node, 0, 16)
	for rows.Next() {
		var (
			n        workflow.Node
			toolID   sql.NullString
			tID      sql.NullString
			tName    sql.NullString
			tMethod  sql.NullString
			tEndp    sql.NullString
			tHeaders workflow.Payload
			tBody    workflow.Payload
		)
		if err := rows.Scan(
			&n.ID, &n.ProjectID, &n.Title, &n.Prompt, &n.Kind, &toolID,
			&n.Position.X, &n.Position.Y, &n.CreatedAt, &n.UpdatedAt,
			&tID, &tName, &tMethod, &tEndp, &tHeaders, &tBody,
		); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan node", err)
		}
		n.ToolID = toolID.String
		if tID.Valid {
			n.Tool = &workflow.Tool{
				ID:       tID.String,
				Name:     tName.String,
				Method:   workflow.HTTPMethod(tMethod.String),
				Endpoint: tEndp.String,
				Headers:  tHeaders,
				Body:     tBody,
			}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("fetch nodes", err)
	}
	return out, nil
}

const fetchEdgesQuery = `
SELECT id, project_id, source_id, target_id, label, prompt, created_at, updated_at
FROM edges
WHERE project_id = $1
ORDER BY created_at;
`

// FetchEdges returns the durable edge snapshot
func (s *GraphStore) FetchEdges(ctx context.Context, projectID string) ([]workflow.Edge, error) {
	rows, err := s.db.QueryContext(ctx, fetchEdgesQuery, projectID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("fetch edges", err)
	}
	defer rows.Close()

	out := make([]workflow.Edge, 0, 16)
	for rows.Next() {
		var e workflow.Edge
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.SourceID, &e.TargetID,
			&e.Label, &e.Prompt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan edge", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("fetch edges", err)
	}
	return out, nil
}

const upsertNodeQuery = `
INSERT INTO nodes (id, project_id, title, prompt, node_type, tool_id, x, y)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    title      = EXCLUDED.title,
    prompt     = EXCLUDED.prompt,
    tool_id    = EXCLUDED.tool_id,
    x          = EXCLUDED.x,
    y          = EXCLUDED.y,
    updated_at = now()
WHERE nodes.project_id = EXCLUDED.project_id;
`

// ReplaceGraph atomically overwrites a project's whole node/edge set.
// Non-start nodes and all edges are deleted, the supplied nodes upserted,
// the supplied edges inserted fresh, and the project timestamp bumped; a
// failure at any step rolls the whole transaction back. The conflict
// branch never touches node_type and only fires within the project: the
// sole surviving same-project row it can hit is the start node, whose kind
// is immutable, and a collision with another project's row aborts the
// save.
func (s *GraphStore) ReplaceGraph(ctx context.Context, projectID string, nodes []workflow.Node, edges []workflow.Edge) (time.Time, error) {
	if err := assertStartNode(projectID, nodes); err != nil {
		return time.Time{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, pkgerrors.NewDatabaseError("begin replace graph", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE project_id = $1`, projectID); err != nil {
		return time.Time{}, pkgerrors.NewDatabaseError("clear edges", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM nodes WHERE project_id = $1 AND node_type <> 'start'`, projectID); err != nil {
		return time.Time{}, pkgerrors.NewDatabaseError("clear nodes", err)
	}

	for _, n := range nodes {
		result, err := tx.ExecContext(ctx, upsertNodeQuery,
			n.ID, projectID, n.Title, n.Prompt, n.Kind, nullString(n.ToolID),
			n.Position.X, n.Position.Y)
		if err != nil {
			return time.Time{}, pkgerrors.NewDatabaseError("upsert node", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return time.Time{}, pkgerrors.NewDatabaseError("upsert node", err)
		}
		// The conflict branch is skipped when the colliding row belongs to
		// another project; the save must not reach across project lines.
		if affected == 0 {
			return time.Time{}, pkgerrors.NewInvariantViolationError(
				"node " + n.ID + " belongs to another project")
		}
	}

	for _, e := range edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO edges (id, project_id, source_id, target_id, label, prompt)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, projectID, e.SourceID, e.TargetID, e.Label, e.Prompt); err != nil {
			return time.Time{}, pkgerrors.NewDatabaseError("insert edge", err)
		}
	}

	var updatedAt time.Time
	err = tx.QueryRowContext(ctx,
		`UPDATE projects SET updated_at = now() WHERE id = $1 RETURNING updated_at`,
		projectID).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, pkgerrors.NewNotFoundError("project " + projectID)
		}
		return time.Time{}, pkgerrors.NewDatabaseError("bump project", err)
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, pkgerrors.NewDatabaseError("commit replace graph", err)
	}
	return updatedAt, nil
}

// CreateNode inserts a single node
func (s *GraphStore) CreateNode(ctx context.Context, node workflow.Node) (workflow.Node, error) {
	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if err := node.Validate(); err != nil {
		return workflow.Node{}, err
	}

	const q = `
INSERT INTO nodes (id, project_id, title, prompt, node_type, tool_id, x, y)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at;
`
	err := s.db.QueryRowContext(ctx, q,
		node.ID, node.ProjectID, node.Title, node.Prompt, node.Kind,
		nullString(node.ToolID), node.Position.X, node.Position.Y).
		Scan(&node.CreatedAt, &node.UpdatedAt)
	if err != nil {
		return workflow.Node{}, pkgerrors.NewDatabaseError("create node", err)
	}
	return node, nil
}

const updateNodeQuery = `
UPDATE nodes SET
    title      = COALESCE($2, title),
    prompt     = COALESCE($3, prompt),
    node_type  = COALESCE($4, node_type),
    tool_id    = CASE WHEN $5 THEN $6 ELSE tool_id END,
    x          = COALESCE($7, x),
    y          = COALESCE($8, y),
    updated_at = now()
WHERE id = $1
RETURNING id, project_id, title, prompt, node_type, tool_id, x, y, created_at, updated_at;
`

// UpdateNode applies a partial update to a single node. A kind change is
// checked against the stored row first so a start node's kind stays
// immutable.
func (s *GraphStore) UpdateNode(ctx context.Context, id string, patch workflow.NodePatch) (workflow.Node, error) {
	if patch.Kind != nil {
		var current workflow.Node
		err := s.db.QueryRowContext(ctx,
			`SELECT id, node_type FROM nodes WHERE id = $1`, id).
			Scan(&current.ID, &current.Kind)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return workflow.Node{}, pkgerrors.NewNotFoundError("node " + id)
			}
			return workflow.Node{}, pkgerrors.NewDatabaseError("update node", err)
		}
		if err := workflow.ValidateStartNodePatch(current, patch); err != nil {
			return workflow.Node{}, err
		}
	}

	var x, y *float64
	if patch.Position != nil {
		x, y = &patch.Position.X, &patch.Position.Y
	}
	var toolID sql.NullString
	if patch.ToolID != nil && *patch.ToolID != "" {
		toolID = sql.NullString{String: *patch.ToolID, Valid: true}
	}

	var (
		n      workflow.Node
		dbTool sql.NullString
	)
	err := s.db.QueryRowContext(ctx, updateNodeQuery,
		id, patch.Title, patch.Prompt, patch.Kind, patch.ToolID != nil, toolID, x, y).
		Scan(&n.ID, &n.ProjectID, &n.Title, &n.Prompt, &n.Kind, &dbTool,
			&n.Position.X, &n.Position.Y, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.Node{}, pkgerrors.NewNotFoundError("node " + id)
		}
		return workflow.Node{}, pkgerrors.NewDatabaseError("update node", err)
	}
	n.ToolID = dbTool.String
	return n, nil
}

// DeleteNode deletes a single node. The statement refuses start nodes by
// kind; the storage trigger enforces the same rule for out-of-band writers.
func (s *GraphStore) DeleteNode(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM nodes WHERE id = $1 AND node_type <> 'start'`, id)
	if err != nil {
		return pkgerrors.NewDatabaseError("delete node", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.NewDatabaseError("delete node", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM nodes WHERE id = $1)`, id).Scan(&exists); err != nil {
			return pkgerrors.NewDatabaseError("delete node", err)
		}
		if exists {
			return pkgerrors.NewInvariantViolationError("the start node cannot be deleted")
		}
		return pkgerrors.NewNotFoundError("node " + id)
	}
	return nil
}

// CreateEdge inserts a single edge
func (s *GraphStore) CreateEdge(ctx context.Context, edge workflow.Edge) (workflow.Edge, error) {
	if edge.ID == "" {
		edge.ID = uuid.New().String()
	}
	if err := edge.Validate(); err != nil {
		return workflow.Edge{}, err
	}

	const q = `
INSERT INTO edges (id, project_id, source_id, target_id, label, prompt)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at, updated_at;
`
	err := s.db.QueryRowContext(ctx, q,
		edge.ID, edge.ProjectID, edge.SourceID, edge.TargetID, edge.Label, edge.Prompt).
		Scan(&edge.CreatedAt, &edge.UpdatedAt)
	if err != nil {
		return workflow.Edge{}, pkgerrors.NewDatabaseError("create edge", err)
	}
	return edge, nil
}

const updateEdgeQuery = `
UPDATE edges SET
    source_id  = COALESCE($2, source_id),
    target_id  = COALESCE($3, target_id),
    label      = COALESCE($4, label),
    prompt     = COALESCE($5, prompt),
    updated_at = now()
WHERE id = $1
RETURNING id, project_id, source_id, target_id, label, prompt, created_at, updated_at;
`

// UpdateEdge applies a partial update to a single edge
func (s *GraphStore) UpdateEdge(ctx context.Context, id string, patch workflow.EdgePatch) (workflow.Edge, error) {
	var e workflow.Edge
	err := s.db.QueryRowContext(ctx, updateEdgeQuery,
		id, patch.SourceID, patch.TargetID, patch.Label, patch.Prompt).
		Scan(&e.ID, &e.ProjectID, &e.SourceID, &e.TargetID, &e.Label, &e.Prompt,
			&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.Edge{}, pkgerrors.NewNotFoundError("edge " + id)
		}
		return workflow.Edge{}, pkgerrors.NewDatabaseError("update edge", err)
	}
	return e, nil
}

// DeleteEdge deletes a single edge
func (s *GraphStore) DeleteEdge(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM edges WHERE id = $1`, id)
	if err != nil {
		return pkgerrors.NewDatabaseError("delete edge", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.NewDatabaseError("delete edge", err)
	}
	if affected == 0 {
		return pkgerrors.NewNotFoundError("edge " + id)
	}
	return nil
}

// assertStartNode rejects a replacement node set without the project's
// start node, before any transaction is opened.
func assertStartNode(projectID string, nodes []workflow.Node) error {
	for _, n := range nodes {
		if n.IsStart() && n.ID == workflow.StartNodeID(projectID) {
			return nil
		}
	}
	return pkgerrors.NewInvariantViolationError("replacement node set has no start node")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
