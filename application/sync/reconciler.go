// Package sync holds the two halves of graph synchronization: merging
// remote change events into the local model, and pushing the local model
// out through the atomic whole-graph save.
package sync

import (
	"context"

	"go.uber.org/zap"

	"conduit-backend/domain/workflow"
	"conduit-backend/infrastructure/realtime"
)

// ToolResolver fetches a tool definition when a node change event arrives
// without its joined tool.
type ToolResolver interface {
	GetTool(ctx context.Context, id string) (workflow.Tool, error)
}

// Reconciler merges server-pushed change events into a graph model that
// may hold unsaved local edits. The policy is last-writer-wins at entity
// granularity: an incoming remote event overwrites local edits to the same
// entity. That is a deliberate trade-off, not conflict detection waiting
// to be added. Reconciliation never touches the dirty flag, which tracks
// local-vs-last-save divergence only.
type Reconciler struct {
	graph  *workflow.Graph
	tools  ToolResolver
	logger *zap.Logger
}

// NewReconciler creates a reconciler bound to one graph model
func NewReconciler(graph *workflow.Graph, tools ToolResolver, logger *zap.Logger) *Reconciler {
	return &Reconciler{graph: graph, tools: tools, logger: logger}
}

// Apply merges one change event into the graph. Applying the same event
// twice yields the same state as applying it once, which is what makes
// at-least-once delivery and echoes of our own saves safe. A failed
// supplemental tool fetch logs and leaves state unchanged rather than
// crashing the session.
func (r *Reconciler) Apply(ctx context.Context, ev realtime.ChangeEvent) {
	switch ev.Table {
	case realtime.TableNodes:
		r.applyNode(ctx, ev)
	case realtime.TableEdges:
		r.applyEdge(ev)
	default:
		r.logger.Warn("ignoring change event for unknown table",
			zap.String("table", string(ev.Table)))
	}
}

func (r *Reconciler) applyNode(ctx context.Context, ev realtime.ChangeEvent) {
	if ev.Node == nil {
		r.logger.Warn("node change event without node payload", zap.String("kind", string(ev.Kind)))
		return
	}

	if ev.Kind == realtime.ChangeDelete {
		r.graph.DropNode(ev.Node.ID)
		return
	}

	node := *ev.Node
	if node.ToolID != "" && node.Tool == nil {
		tool, err := r.tools.GetTool(ctx, node.ToolID)
		if err != nil {
			r.logger.Error("tool re-resolution failed, leaving node unchanged",
				zap.String("node_id", node.ID),
				zap.String("tool_id", node.ToolID),
				zap.Error(err))
			return
		}
		node.Tool = &tool
	}
	r.graph.ApplyNode(node)
}

func (r *Reconciler) applyEdge(ev realtime.ChangeEvent) {
	if ev.Edge == nil {
		r.logger.Warn("edge change event without edge payload", zap.String("kind", string(ev.Kind)))
		return
	}

	if ev.Kind == realtime.ChangeDelete {
		r.graph.DropEdge(ev.Edge.ID)
		return
	}
	r.graph.ApplyEdge(*ev.Edge)
}
