package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"conduit-backend/domain/workflow"
	"conduit-backend/infrastructure/persistence/abstractions"
	"conduit-backend/pkg/common"
	pkgerrors "conduit-backend/pkg/errors"
)

// ToolHandler handles tool HTTP requests. Tools are shared across
// projects.
type ToolHandler struct {
	tools  abstractions.ToolStore
	logger *zap.Logger
}

// NewToolHandler creates a new tool handler
func NewToolHandler(tools abstractions.ToolStore, logger *zap.Logger) *ToolHandler {
	return &ToolHandler{tools: tools, logger: logger}
}

// CreateTool handles POST /tools. Header and body payloads that are not
// JSON objects are rejected; the raw text is preserved in the error so
// the editor can surface what it received.
func (h *ToolHandler) CreateTool(w http.ResponseWriter, r *http.Request) {
	var tool workflow.Tool
	if err := json.NewDecoder(r.Body).Decode(&tool); err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}

	created, err := h.tools.CreateTool(r.Context(), tool)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, created)
}

// GetTool handles GET /tools/{toolID}
func (h *ToolHandler) GetTool(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "toolID")

	tool, err := h.tools.GetTool(r.Context(), toolID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, tool)
}

// ListTools handles GET /tools
func (h *ToolHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := h.tools.ListTools(r.Context())
	if err != nil {
		h.logger.Error("failed to list tools", zap.Error(err))
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, tools)
}

// UpdateTool handles PUT /tools/{toolID}
func (h *ToolHandler) UpdateTool(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "toolID")

	var tool workflow.Tool
	if err := json.NewDecoder(r.Body).Decode(&tool); err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}

	updated, err := h.tools.UpdateTool(r.Context(), toolID, tool)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, updated)
}

// DeleteTool handles DELETE /tools/{toolID}. Nodes referencing the tool
// keep working; their reference is cleared.
func (h *ToolHandler) DeleteTool(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "toolID")

	if err := h.tools.DeleteTool(r.Context(), toolID); err != nil {
		h.logger.Error("failed to delete tool", zap.String("toolID", toolID), zap.Error(err))
		common.RespondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
