package common

import (
	"encoding/json"
	"net/http"
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/logging"
)

// APIResponse is the envelope of every JSON response
type APIResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	Code         string `json:"code,omitempty"`
	ResponseTime string `json:"response_time"`
	Data         any    `json:"data,omitempty"`
}

// RespondSuccess sends a standardized JSON success response.
func RespondSuccess(w http.ResponseWriter, initTime time.Time, message string, data any, statusCode ...int) {
	code := http.StatusOK
	if len(statusCode) > 0 {
		code = statusCode[0]
	}

	writeJSON(w, code, APIResponse{
		Status:       string(constants.APIStatusOk),
		Message:      message,
		ResponseTime: GetResponseTime(initTime),
		Data:         data,
	})
}

// RespondError sends a standardized JSON error response. errCode is the
// machine readable code, empty when there is none.
func RespondError(w http.ResponseWriter, initTime time.Time, errCode string, message string, statusCode int) {
	writeJSON(w, statusCode, APIResponse{
		Status:       string(constants.APIStatusError),
		Message:      message,
		Code:         errCode,
		ResponseTime: GetResponseTime(initTime),
	})
}

// writeJSON marshals data and writes it to the HTTP response.
func writeJSON(w http.ResponseWriter, code int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("JSON encode failed", "error", err)
	}
}
