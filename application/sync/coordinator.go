package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"conduit-backend/domain/workflow"
	"conduit-backend/infrastructure/persistence/abstractions"
)

// SaveState is a save attempt's position in its lifecycle
type SaveState string

const (
	SaveIdle       SaveState = "idle"
	SaveValidating SaveState = "validating"
	SavePersisting SaveState = "persisting"
	SaveSucceeded  SaveState = "succeeded"
	SaveFailed     SaveState = "failed"
)

// SaveCoordinator drives one graph's atomic whole-graph save. It validates
// locally, snapshots the graph, and hands the snapshot to the store's
// ReplaceGraph. It does not serialize overlapping saves; that is the
// caller's responsibility.
type SaveCoordinator struct {
	store  abstractions.GraphStore
	logger *zap.Logger

	state   SaveState
	savedAt time.Time
}

// NewSaveCoordinator creates a save coordinator
func NewSaveCoordinator(store abstractions.GraphStore, logger *zap.Logger) *SaveCoordinator {
	return &SaveCoordinator{store: store, logger: logger, state: SaveIdle}
}

// State returns the current save state
func (c *SaveCoordinator) State() SaveState {
	return c.state
}

// LastSavedAt returns the project modification timestamp recorded by the
// last successful save.
func (c *SaveCoordinator) LastSavedAt() time.Time {
	return c.savedAt
}

// Save validates and persists the graph. A validation failure short-
// circuits with no store call. On failure of either phase the dirty flag
// is left set so no local work is lost, and the error is surfaced to the
// caller verbatim; there is no silent retry.
func (c *SaveCoordinator) Save(ctx context.Context, graph *workflow.Graph) error {
	c.state = SaveValidating
	if err := graph.AssertSaveable(); err != nil {
		c.state = SaveFailed
		return err
	}

	c.state = SavePersisting
	nodes, edges := graph.Snapshot()
	savedAt, err := c.store.ReplaceGraph(ctx, graph.ProjectID(), nodes, edges)
	if err != nil {
		c.state = SaveFailed
		c.logger.Warn("graph save failed",
			zap.String("project_id", graph.ProjectID()),
			zap.Error(err))
		return err
	}

	c.state = SaveSucceeded
	c.savedAt = savedAt
	graph.MarkSaved()
	c.logger.Info("graph saved",
		zap.String("project_id", graph.ProjectID()),
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)))
	return nil
}
