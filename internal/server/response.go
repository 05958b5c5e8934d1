package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/smartdevs17/activity-feed/pkg/utils"
)

// writeJSON writes a JSON response
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	errorResponse := map[string]interface{}{
		"error":     message,
		"code":      code,
		"status":    status,
		"timestamp": time.Now().UTC(),
	}

	if err != nil {
		entry := s.requestLogger(r).WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			// Driver and SQL text stays in the log
			entry.Error(message)
		} else {
			errorResponse["details"] = err.Error()
			entry.Debug(message)
		}
	}

	s.writeJSON(w, status, errorResponse)
}

// writeAppError maps an error onto its HTTP status and writes it
func (s *HTTPServer) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)

	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		s.writeError(w, r, status, appErr.Code, appErr.Message, err)
		return
	}
	s.writeError(w, r, status, utils.ErrCodeInternal, http.StatusText(status), err)
}

// statusForError maps application error codes to HTTP statuses
func statusForError(err error) int {
	switch utils.ErrorCode(err) {
	case utils.ErrCodeValidation:
		return http.StatusBadRequest
	case utils.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case utils.ErrCodeNotFound:
		return http.StatusNotFound
	case utils.ErrCodeConcurrency:
		return http.StatusConflict
	case utils.ErrCodeStorageUnavailable:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
