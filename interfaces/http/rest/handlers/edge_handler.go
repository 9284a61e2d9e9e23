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

// EdgeHandler handles single-edge HTTP requests
type EdgeHandler struct {
	store  abstractions.GraphStore
	logger *zap.Logger
}

// NewEdgeHandler creates a new edge handler
func NewEdgeHandler(store abstractions.GraphStore, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{store: store, logger: logger}
}

// CreateEdgeRequest represents the request body for creating an edge.
// Endpoints are not checked against existing nodes; an edge may point at
// a node that arrives later.
type CreateEdgeRequest struct {
	SourceID string `json:"source_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required"`
	Label    string `json:"label,omitempty" validate:"omitempty,max=200"`
	Prompt   string `json:"prompt,omitempty"`
}

// CreateEdge handles POST /projects/{projectID}/edges
func (h *EdgeHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req CreateEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, err)
		return
	}

	edge := workflow.Edge{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		SourceID:  req.SourceID,
		TargetID:  req.TargetID,
		Label:     req.Label,
		Prompt:    req.Prompt,
	}

	created, err := h.store.CreateEdge(r.Context(), edge)
	if err != nil {
		h.logger.Error("failed to create edge", zap.String("projectID", projectID), zap.Error(err))
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, created)
}

// UpdateEdge handles PATCH /edges/{edgeID}
func (h *EdgeHandler) UpdateEdge(w http.ResponseWriter, r *http.Request) {
	edgeID := chi.URLParam(r, "edgeID")

	var patch workflow.EdgePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}

	updated, err := h.store.UpdateEdge(r.Context(), edgeID, patch)
	if err != nil {
		h.logger.Error("failed to update edge", zap.String("edgeID", edgeID), zap.Error(err))
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, updated)
}

// DeleteEdge handles DELETE /edges/{edgeID}
func (h *EdgeHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	edgeID := chi.URLParam(r, "edgeID")

	if err := h.store.DeleteEdge(r.Context(), edgeID); err != nil {
		h.logger.Error("failed to delete edge", zap.String("edgeID", edgeID), zap.Error(err))
		common.RespondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
