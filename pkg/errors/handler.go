package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// errorBody is the wire shape for every failed request.
type errorBody struct {
	Error string `json:"error"`
}

// WriteHTTP maps an error to its HTTP response. AppErrors carry their own
// status; anything else is an opaque 500. Internal detail is logged, never
// sent to the caller.
func WriteHTTP(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	if appErr := GetAppError(err); appErr != nil {
		status = appErr.HTTPStatus
		message = appErr.Message
		if status >= 500 && appErr.Type == ErrorTypeDatabase {
			message = "internal server error"
		}
	}

	if status >= 500 && logger != nil {
		logger.Error("request failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: message})
}
