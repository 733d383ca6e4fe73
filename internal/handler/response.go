package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"phone-auth-service/internal/service"
	"phone-auth-service/internal/util"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		util.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// respondState writes {status, message} merged with data.
func respondState(w http.ResponseWriter, statusCode int, state service.ResponseState, data map[string]interface{}) {
	payload := map[string]interface{}{
		"status":  state,
		"message": state.Message(),
	}
	for k, v := range data {
		payload[k] = v
	}
	respondJSON(w, statusCode, payload)
}

// respondError writes the error envelope. Anything that is not an AuthError
// is reported as fallback.
func respondError(w http.ResponseWriter, err error, fallback service.ErrorCode) {
	var ae *service.AuthError
	if !errors.As(err, &ae) {
		ae = service.NewAuthError(fallback, err)
	}

	status := ae.Code.Status()
	if status >= http.StatusInternalServerError {
		util.Error("HTTP error response",
			zap.String("code", string(ae.Code)),
			zap.Int("status_code", status),
			zap.Error(err))
	}

	payload := map[string]interface{}{
		"status":  ae.Code,
		"error":   ae.Code,
		"message": ae.Code.Message(),
	}
	if len(ae.Errors) > 0 {
		payload["errors"] = ae.Errors
	}
	respondJSON(w, status, payload)
}
