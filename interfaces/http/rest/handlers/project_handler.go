package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"conduit-backend/infrastructure/persistence/abstractions"
	"conduit-backend/pkg/common"
	pkgerrors "conduit-backend/pkg/errors"
	"conduit-backend/pkg/utils"
)

// ProjectHandler handles project-related HTTP requests
type ProjectHandler struct {
	projects abstractions.ProjectStore
	logger   *zap.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projects abstractions.ProjectStore, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

// CreateProjectRequest represents the request body for creating a project
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// CreateProject handles POST /projects. The created project comes back
// with its start node already seeded.
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, err)
		return
	}

	project, err := h.projects.CreateProject(r.Context(), req.Name, req.Description)
	if err != nil {
		h.logger.Error("failed to create project", zap.String("name", req.Name), zap.Error(err))
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, project)
}

// GetProject handles GET /projects/{projectID}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	project, err := h.projects.GetProject(r.Context(), projectID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, project)
}

// ListProjects handles GET /projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListProjects(r.Context())
	if err != nil {
		h.logger.Error("failed to list projects", zap.Error(err))
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, projects)
}

// DeleteProject handles DELETE /projects/{projectID}. Nodes and edges go
// with the project.
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	if err := h.projects.DeleteProject(r.Context(), projectID); err != nil {
		h.logger.Error("failed to delete project", zap.String("projectID", projectID), zap.Error(err))
		common.RespondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
