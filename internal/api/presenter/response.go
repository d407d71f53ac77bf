package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/bottlecrm/authd/internal/auth"
)

type ErrorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	correlationID, _ := r.Context().Value("correlation_id").(string)
	resp := ErrorResponse{
		Error:         msg,
		CorrelationID: correlationID,
	}
	JSON(w, r, resp, status)
}

// Err translates an error into an HTTP response. Auth failures carry their
// own status and a stable code; anything else is a generic 500 whose cause
// stays in the log, not the response.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		correlationID, _ := r.Context().Value("correlation_id").(string)
		if authErr.Wrapped != nil {
			log.Ctx(r.Context()).Warn().Err(authErr.Wrapped).
				Str("code", string(authErr.Code)).Msg("request failed")
		}
		JSON(w, r, ErrorResponse{
			Error:         authErr.Message,
			Code:          string(authErr.Code),
			CorrelationID: correlationID,
		}, authErr.Status)
		return
	}

	log.Ctx(r.Context()).Error().Err(err).Msg("unhandled error")
	Error(w, r, "internal server error", http.StatusInternalServerError)
}
