package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"spendplan/internal/core"
	"spendplan/internal/log"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Pending []string `json:"pending,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// statusFor maps domain errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest, "invalid_body"
	case errors.Is(err, core.ErrEmptyUser):
		return http.StatusBadRequest, "missing_user_id"
	case errors.Is(err, core.ErrNoData):
		return http.StatusNotFound, "no_data"
	case errors.Is(err, core.ErrGoalNotFound):
		return http.StatusNotFound, "goal_not_found"
	case errors.Is(err, core.ErrJobNotFound):
		return http.StatusNotFound, "job_not_found"
	case errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrUnknownCategory),
		errors.Is(err, core.ErrInvalidGoal):
		return http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return 499, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail writes err as JSON. Server errors are logged and their text kept
// out of the response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op,
			log.FieldError, err,
			log.FieldPath, r.URL.Path)
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}
