// Package apierr maps domain errors to HTTP responses.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// Response is the body of every error reply.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// Status returns the HTTP status for err. ErrMissingField is checked before
// ErrBadRequest because it wraps it.
func Status(err error) int {
	switch {
	case errors.Is(err, domain.ErrMissingField):
		return http.StatusNotAcceptable
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Write replies with the status mapped from err. Unmapped errors are logged
// and answered with a generic message.
func Write(w http.ResponseWriter, r *http.Request, err error, log logger.Logger) {
	status := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err))
		msg = "internal server error"
	}
	WriteStatus(w, status, msg)
}

// WriteStatus replies with an explicit status and message.
func WriteStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    msg,
	})
}
