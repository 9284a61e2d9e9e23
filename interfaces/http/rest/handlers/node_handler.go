package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"conduit-backend/domain/workflow"
	"conduit-backend/infrastructure/persistence/abstractions"
	"conduit-backend/pkg/common"
	pkgerrors "conduit-backend/pkg/errors"
	"conduit-backend/pkg/utils"
)

// NodeHandler handles single-node HTTP requests, for interactive edits
// outside a whole-graph save.
type NodeHandler struct {
	store  abstractions.GraphStore
	logger *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(store abstractions.GraphStore, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{store: store, logger: logger}
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	Title  string            `json:"title,omitempty" validate:"omitempty,max=200"`
	Prompt string            `json:"prompt,omitempty"`
	Kind   workflow.NodeKind `json:"node_type" validate:"required,oneof=default tool"`
	ToolID string            `json:"tool_id,omitempty"`
	X      float64           `json:"x"`
	Y      float64           `json:"y"`
}

// CreateNode handles POST /projects/{projectID}/nodes. Start nodes are
// created with their project, never through this endpoint.
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, err)
		return
	}

	node := workflow.Node{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Title:     req.Title,
		Prompt:    req.Prompt,
		Kind:      req.Kind,
		ToolID:    req.ToolID,
		Position:  workflow.Position{X: req.X, Y: req.Y},
	}

	created, err := h.store.CreateNode(r.Context(), node)
	if err != nil {
		h.logger.Error("failed to create node", zap.String("projectID", projectID), zap.Error(err))
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, created)
}

// UpdateNode handles PATCH /nodes/{nodeID}. Changing a start node's kind
// is refused.
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")

	var patch workflow.NodePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}

	updated, err := h.store.UpdateNode(r.Context(), nodeID, patch)
	if err != nil {
		h.logger.Error("failed to update node", zap.String("nodeID", nodeID), zap.Error(err))
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, updated)
}

// DeleteNode handles DELETE /nodes/{nodeID}. Start nodes are refused.
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")

	if err := h.store.DeleteNode(r.Context(), nodeID); err != nil {
		h.logger.Error("failed to delete node", zap.String("nodeID", nodeID), zap.Error(err))
		common.RespondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
