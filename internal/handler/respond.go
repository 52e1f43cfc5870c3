package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"hearth/pkg/errors"
	"hearth/pkg/logger"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError maps an error to its HTTP shape. Anything that is not an
// AppError is treated as internal and its detail stays in the logs.
func respondError(w http.ResponseWriter, err error, log *logger.Logger) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.NewInternalError("Internal server error", err)
	}
	respondAppError(w, appErr, log)
}

func respondAppError(w http.ResponseWriter, appErr *errors.AppError, log *logger.Logger) {
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.WithError(appErr).Error("Request failed")
	} else {
		log.WithError(appErr).Debug("Request rejected")
	}

	response := &errors.ErrorResponse{}
	response.Error.Type = appErr.Type
	response.Error.Code = appErr.Code
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	respondJSON(w, appErr.StatusCode, response)
}
