// Package abstractions defines the persistence ports. The domain and
// application layers depend on these interfaces, never on a concrete store.
package abstractions

import (
	"context"
	"time"

	"conduit-backend/domain/workflow"
)

// GraphStore is the remote store adapter for a project's workflow graph.
//
// FetchNodes returns each node with its referenced tool inlined (read-side
// join); absence of a tool is an explicit nil field, never an error.
//
// ReplaceGraph is a single atomic transaction: it rejects a node set with
// no start node, deletes all existing non-start nodes and all edges for
// the project, upserts the supplied nodes (keyed by id, bumping the
// modification timestamp), inserts the supplied edges fresh, and bumps the
// project's modification timestamp — all-or-nothing. The start node is
// never deleted; its title and prompt still flow through the upsert. The
// returned time is the project's new modification timestamp.
type GraphStore interface {
	FetchNodes(ctx context.Context, projectID string) ([]workflow.Node, error)
	FetchEdges(ctx context.Context, projectID string) ([]workflow.Edge, error)
	ReplaceGraph(ctx context.Context, projectID string, nodes []workflow.Node, edges []workflow.Edge) (time.Time, error)

	// Single-entity operations for interactive, non-batch edits. Deleting a
	// start node or changing its kind fails with an invariant violation
	// before the store is contacted.
	CreateNode(ctx context.Context, node workflow.Node) (workflow.Node, error)
	UpdateNode(ctx context.Context, id string, patch workflow.NodePatch) (workflow.Node, error)
	DeleteNode(ctx context.Context, id string) error
	CreateEdge(ctx context.Context, edge workflow.Edge) (workflow.Edge, error)
	UpdateEdge(ctx context.Context, id string, patch workflow.EdgePatch) (workflow.Edge, error)
	DeleteEdge(ctx context.Context, id string) error
}

// ProjectStore persists projects. Creating a project creates its start
// node as a side effect; deleting one cascades to its nodes and edges.
type ProjectStore interface {
	CreateProject(ctx context.Context, name, description string) (workflow.Project, error)
	GetProject(ctx context.Context, id string) (workflow.Project, error)
	ListProjects(ctx context.Context) ([]workflow.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// ToolStore persists tools, which are shared across projects. Deleting a
// tool clears the reference on nodes that point at it.
type ToolStore interface {
	CreateTool(ctx context.Context, tool workflow.Tool) (workflow.Tool, error)
	GetTool(ctx context.Context, id string) (workflow.Tool, error)
	ListTools(ctx context.Context) ([]workflow.Tool, error)
	UpdateTool(ctx context.Context, id string, tool workflow.Tool) (workflow.Tool, error)
	DeleteTool(ctx context.Context, id string) error
}
