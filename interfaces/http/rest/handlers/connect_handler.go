package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"conduit-backend/infrastructure/persistence/abstractions"
	"conduit-backend/pkg/auth"
	"conduit-backend/pkg/common"
	pkgerrors "conduit-backend/pkg/errors"
	"conduit-backend/pkg/utils"
)

// ConnectHandler hands out voice session credentials: a fresh room and a
// participant token that dispatches the workflow agent into it.
type ConnectHandler struct {
	minter    *auth.TokenMinter
	projects  abstractions.ProjectStore
	serverURL string
	logger    *zap.Logger
}

// NewConnectHandler creates a new connect handler
func NewConnectHandler(minter *auth.TokenMinter, projects abstractions.ProjectStore, serverURL string, logger *zap.Logger) *ConnectHandler {
	return &ConnectHandler{minter: minter, projects: projects, serverURL: serverURL, logger: logger}
}

// ConnectRequest represents the request body for starting a voice session
type ConnectRequest struct {
	ProjectID       string `json:"project_id" validate:"required"`
	ParticipantName string `json:"participant_name,omitempty" validate:"omitempty,max=100"`
}

// ConnectResponse carries everything the client needs to join the room
type ConnectResponse struct {
	ServerURL        string `json:"serverUrl"`
	RoomName         string `json:"roomName"`
	ParticipantToken string `json:"participantToken"`
	ParticipantName  string `json:"participantName"`
}

// Connect handles POST /connect
func (h *ConnectHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, err)
		return
	}

	// The project id rides into the room as metadata, so it has to name a
	// real project before we mint anything.
	if _, err := h.projects.GetProject(r.Context(), req.ProjectID); err != nil {
		common.RespondAppError(w, err)
		return
	}

	suffix := uuid.New().String()[:8]
	roomName := fmt.Sprintf("conduit_room_%s", suffix)
	identity := fmt.Sprintf("user_%s", suffix)
	participantName := req.ParticipantName
	if participantName == "" {
		participantName = "user"
	}

	token, err := h.minter.Mint(identity, participantName, roomName, req.ProjectID)
	if err != nil {
		h.logger.Error("failed to mint participant token",
			zap.String("projectID", req.ProjectID),
			zap.Error(err),
		)
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, ConnectResponse{
		ServerURL:        h.serverURL,
		RoomName:         roomName,
		ParticipantToken: token,
		ParticipantName:  participantName,
	})
}
