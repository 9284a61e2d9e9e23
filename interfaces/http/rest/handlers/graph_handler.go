package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	gsync "conduit-backend/application/sync"
	"conduit-backend/domain/workflow"
	"conduit-backend/infrastructure/persistence/abstractions"
	"conduit-backend/pkg/common"
	pkgerrors "conduit-backend/pkg/errors"
)

// GraphHandler serves a project's workflow graph: one read of the full
// node/edge set, and one atomic whole-graph save.
type GraphHandler struct {
	store    abstractions.GraphStore
	projects abstractions.ProjectStore
	logger   *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(store abstractions.GraphStore, projects abstractions.ProjectStore, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{store: store, projects: projects, logger: logger}
}

// GraphResponse is the full graph payload for one project
type GraphResponse struct {
	ProjectID string          `json:"project_id"`
	Nodes     []workflow.Node `json:"nodes"`
	Edges     []workflow.Edge `json:"edges"`
}

// SaveGraphRequest is the replacement node/edge set for a save
type SaveGraphRequest struct {
	Nodes []workflow.Node `json:"nodes"`
	Edges []workflow.Edge `json:"edges"`
}

// SaveGraphResponse reports the save outcome
type SaveGraphResponse struct {
	SavedAt time.Time `json:"saved_at"`
}

// GetGraph handles GET /projects/{projectID}/graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	if _, err := h.projects.GetProject(r.Context(), projectID); err != nil {
		common.RespondAppError(w, err)
		return
	}

	nodes, err := h.store.FetchNodes(r.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to fetch nodes", zap.String("projectID", projectID), zap.Error(err))
		common.RespondAppError(w, err)
		return
	}
	edges, err := h.store.FetchEdges(r.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to fetch edges", zap.String("projectID", projectID), zap.Error(err))
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, GraphResponse{
		ProjectID: projectID,
		Nodes:     nodes,
		Edges:     edges,
	})
}

// SaveGraph handles PUT /projects/{projectID}/graph. The submitted set
// replaces the stored graph atomically; a set without the project's
// start node is rejected without touching the store.
func (h *GraphHandler) SaveGraph(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req SaveGraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}

	if _, err := h.projects.GetProject(r.Context(), projectID); err != nil {
		common.RespondAppError(w, err)
		return
	}

	// Path wins over whatever project ids ride along in the payload.
	for i := range req.Nodes {
		req.Nodes[i].ProjectID = projectID
	}
	for i := range req.Edges {
		req.Edges[i].ProjectID = projectID
	}
	for _, n := range req.Nodes {
		if err := n.Validate(); err != nil {
			common.RespondAppError(w, err)
			return
		}
	}
	for _, e := range req.Edges {
		if err := e.Validate(); err != nil {
			common.RespondAppError(w, err)
			return
		}
	}

	graph := workflow.NewGraph(projectID)
	graph.Load(req.Nodes, req.Edges)

	saver := gsync.NewSaveCoordinator(h.store, h.logger)
	if err := saver.Save(r.Context(), graph); err != nil {
		h.logger.Error("failed to save graph", zap.String("projectID", projectID), zap.Error(err))
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, SaveGraphResponse{SavedAt: saver.LastSavedAt()})
}
