package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"wbzero-canvas/application/services"
	"wbzero-canvas/domain/graph"
	"wbzero-canvas/pkg/auth"
	"wbzero-canvas/pkg/common"
	appErrors "wbzero-canvas/pkg/errors"
	"wbzero-canvas/pkg/utils"
)

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	service *services.CanvasService
	logger  *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(service *services.CanvasService, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{service: service, logger: logger}
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	Label     string   `json:"label" validate:"omitempty,max=500"`
	Type      *string  `json:"type,omitempty"`
	Content   *string  `json:"content,omitempty"`
	ChapterID *string  `json:"chapter_id,omitempty"`
	ImageID   *string  `json:"image_id,omitempty"`
	PositionX *float64 `json:"position_x,omitempty"`
	PositionY *float64 `json:"position_y,omitempty"`
	Color     *string  `json:"color,omitempty"`
}

// CreateNode handles POST /canvases/{canvasID}/nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateNodeRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	node, err := h.service.CreateNode(r.Context(), user.UserID, chi.URLParam(r, "canvasID"), services.CreateNodeInput{
		Label:     req.Label,
		Type:      req.Type,
		Content:   req.Content,
		ChapterID: req.ChapterID,
		ImageID:   req.ImageID,
		PositionX: req.PositionX,
		PositionY: req.PositionY,
		Color:     req.Color,
	})
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, map[string]interface{}{"node": node})
}

// UpdateNode handles PUT /canvases/{canvasID}/nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var patch graph.NodePatch
	if err := common.ParseJSONBody(w, r, &patch, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	node, err := h.service.UpdateNode(r.Context(), user.UserID, chi.URLParam(r, "canvasID"), chi.URLParam(r, "nodeID"), patch)
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"node": node})
}

// DeleteNode handles DELETE /canvases/{canvasID}/nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.service.DeleteNode(r.Context(), user.UserID, chi.URLParam(r, "canvasID"), chi.URLParam(r, "nodeID")); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}
	common.RespondSuccess(w)
}
