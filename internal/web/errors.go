package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with full technical details server-side and returned
// to the client as a JSON body with a user-friendly message, a suggested
// action and a support code from core.MapError.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/comexcl/internal/catalog"
	"github.com/JonMunkholm/comexcl/internal/core"
	"github.com/JonMunkholm/comexcl/internal/download"
	"github.com/JonMunkholm/comexcl/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status of a run error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, core.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNoMatchingResource), errors.Is(err, core.ErrNoDataFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrUpstream), errors.Is(err, download.ErrDownload):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrPersistenceDisabled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its user-facing JSON form.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	if errors.Is(err, errBadRequest) {
		resp = ErrorResponse{
			Error:   err.Error(),
			Message: "Invalid request",
			Action:  "Send {\"ano\": 1900-2100, \"mes\": 1-12, \"limit\": >= 1}",
			Code:    "REQ001",
		}
	}

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", resp.Code,
	)

	writeJSON(w, status, resp)
}
