package response

import (
	"errors"
	"net/http"

	"platform/internal/apperr"
)

// DeniedMessage is the uniform text every denial returns, regardless of
// whether the target exists. The precise reason lives in audit records.
const DeniedMessage = "access denied"

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Retryable  bool        `json:"retryable,omitempty"`
	Current    string      `json:"current_state,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// FromError maps a taxonomy error to its HTTP status and safe body.
// Denials collapse to the uniform generic message; conflicts attach the
// current valid state; unavailability is flagged retryable.
func FromError(err error) (int, Response) {
	switch {
	case errors.Is(err, apperr.ErrDenied):
		return http.StatusForbidden, Error(http.StatusForbidden, DeniedMessage)
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest, Error(http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		resp := Error(http.StatusConflict, "conflicting state")
		var conflict *apperr.Conflict
		if errors.As(err, &conflict) {
			resp.Current = conflict.Current
		}
		return http.StatusConflict, resp
	case errors.Is(err, apperr.ErrUnavailable):
		resp := Error(http.StatusServiceUnavailable, "temporarily unavailable, retry later")
		resp.Retryable = true
		return http.StatusServiceUnavailable, resp
	default:
		return http.StatusInternalServerError, Error(http.StatusInternalServerError, err.Error())
	}
}
