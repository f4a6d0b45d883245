package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"wbzero-canvas/application/services"
	"wbzero-canvas/pkg/auth"
	"wbzero-canvas/pkg/common"
	appErrors "wbzero-canvas/pkg/errors"
	"wbzero-canvas/pkg/utils"
)

// EdgeHandler handles edge-related HTTP requests
type EdgeHandler struct {
	service *services.CanvasService
	logger  *zap.Logger
}

// NewEdgeHandler creates a new edge handler
func NewEdgeHandler(service *services.CanvasService, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{service: service, logger: logger}
}

// CreateEdgeRequest represents the request body for creating an edge
type CreateEdgeRequest struct {
	FromNodeID string  `json:"from_node_id" validate:"required"`
	ToNodeID   string  `json:"to_node_id" validate:"required"`
	Label      *string `json:"label,omitempty"`
}

// CreateEdge handles POST /canvases/{canvasID}/edges
func (h *EdgeHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateEdgeRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	edge, err := h.service.CreateEdge(r.Context(), user.UserID, chi.URLParam(r, "canvasID"), services.CreateEdgeInput{
		FromNodeID: req.FromNodeID,
		ToNodeID:   req.ToNodeID,
		Label:      req.Label,
	})
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, map[string]interface{}{"edge": edge})
}

// DeleteEdge handles DELETE /canvases/{canvasID}/edges/{edgeID}
func (h *EdgeHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.service.DeleteEdge(r.Context(), user.UserID, chi.URLParam(r, "canvasID"), chi.URLParam(r, "edgeID")); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}
	common.RespondSuccess(w)
}
