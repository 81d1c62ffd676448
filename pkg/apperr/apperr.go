// Package apperr defines the error taxonomy shared by every layer of the
// service. Callers wrap these sentinels with fmt.Errorf("...: %w") and match
// them with errors.Is.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrValidation = errors.New("validation failure")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrExpired    = errors.New("expired")
	ErrIO         = errors.New("storage failure")
	ErrConflict   = errors.New("conflict")
)

// Status maps err to the HTTP status code and the message that is safe to
// show to a client. Anything outside the taxonomy is an internal error and
// its details are never exposed.
func Status(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrExpired):
		return http.StatusBadRequest, "Link expired, request a new one"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "Conflict"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
