// Package handlers implements the HTTP endpoints of the canvas API. Every
// handler resolves the caller from the request context; ownership failures
// come back from the service layer as not-found.
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

const maxBodyBytes = 1 << 20

// CanvasHandler handles canvas-level HTTP requests
type CanvasHandler struct {
	service *services.CanvasService
	logger  *zap.Logger
}

// NewCanvasHandler creates a new canvas handler
func NewCanvasHandler(service *services.CanvasService, logger *zap.Logger) *CanvasHandler {
	return &CanvasHandler{service: service, logger: logger}
}

// CreateCanvasRequest represents the request body for creating a canvas
type CreateCanvasRequest struct {
	Title string `json:"title" validate:"omitempty,max=200"`
}

// ListCanvases handles GET /projects/{projectID}/canvases
func (h *CanvasHandler) ListCanvases(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	canvases, err := h.service.ListCanvases(r.Context(), user.UserID, chi.URLParam(r, "projectID"))
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"canvases": canvases})
}

// CreateCanvas handles POST /projects/{projectID}/canvases
func (h *CanvasHandler) CreateCanvas(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateCanvasRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	canvas, err := h.service.CreateCanvas(r.Context(), user.UserID, chi.URLParam(r, "projectID"), req.Title)
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, map[string]interface{}{"canvas": canvas})
}

// GetCanvas handles GET /canvases/{canvasID}
func (h *CanvasHandler) GetCanvas(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	canvas, err := h.service.GetCanvas(r.Context(), user.UserID, chi.URLParam(r, "canvasID"))
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"canvas": canvas})
}

// GetCanvasData handles GET /canvases/{canvasID}/data
func (h *CanvasHandler) GetCanvasData(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	data, err := h.service.GetCanvasData(r.Context(), user.UserID, chi.URLParam(r, "canvasID"))
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, data)
}

// UpdateCanvas handles PUT /canvases/{canvasID}
func (h *CanvasHandler) UpdateCanvas(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var patch graph.CanvasPatch
	if err := common.ParseJSONBody(w, r, &patch, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	canvas, err := h.service.UpdateCanvas(r.Context(), user.UserID, chi.URLParam(r, "canvasID"), patch)
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"canvas": canvas})
}

// DeleteCanvas handles DELETE /canvases/{canvasID}
func (h *CanvasHandler) DeleteCanvas(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.service.DeleteCanvas(r.Context(), user.UserID, chi.URLParam(r, "canvasID")); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}
	common.RespondSuccess(w)
}
