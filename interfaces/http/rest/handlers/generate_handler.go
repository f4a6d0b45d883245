package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"wbzero-canvas/application/services"
	"wbzero-canvas/pkg/auth"
	"wbzero-canvas/pkg/common"
	appErrors "wbzero-canvas/pkg/errors"
)

// GenerateHandler handles bulk generation requests
type GenerateHandler struct {
	generator *services.Generator
	logger    *zap.Logger
}

// NewGenerateHandler creates a new generate handler
func NewGenerateHandler(generator *services.Generator, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{generator: generator, logger: logger}
}

// GenerateRequest represents the request body for generation
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateResponse reports what was added to the canvas
type GenerateResponse struct {
	Success      bool `json:"success"`
	NodesCreated int  `json:"nodesCreated"`
	EdgesCreated int  `json:"edgesCreated"`
}

// Generate handles POST /canvases/{canvasID}/generate
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req GenerateRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.generator.Generate(r.Context(), user.UserID, chi.URLParam(r, "canvasID"), req.Prompt)
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, GenerateResponse{
		Success:      true,
		NodesCreated: result.NodesCreated,
		EdgesCreated: result.EdgesCreated,
	})
}
