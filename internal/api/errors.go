package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/backend"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/controller"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

type errorResponse struct {
	Error       string `json:"error"`
	Code        string `json:"code,omitempty"`
	DeclineCode string `json:"decline_code,omitempty"`
}

// statusFor maps controller, SDK and backend failures to HTTP statuses.
func statusFor(err error) int {
	var te *terminal.Error
	switch {
	case errors.Is(err, controller.ErrInvalidBackendURL):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrUnknownReader):
		return http.StatusNotFound
	case errors.Is(err, controller.ErrBusy),
		errors.Is(err, controller.ErrNoReader),
		errors.Is(err, controller.ErrNotInitialized),
		errors.Is(err, controller.ErrNotCancelable),
		errors.Is(err, controller.ErrAlreadyInitialized),
		errors.Is(err, controller.ErrNoReadersDiscovered):
		return http.StatusConflict
	case errors.As(err, &te):
		return http.StatusUnprocessableEntity
	case errors.Is(err, backend.ErrUnavailable),
		errors.Is(err, backend.ErrRequestFailed),
		errors.Is(err, backend.ErrBadResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var te *terminal.Error
	if errors.As(err, &te) {
		resp.Error = te.Message
		resp.Code = te.Code
		resp.DeclineCode = te.DeclineCode
	}
	ev := logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = logger.Error()
	}
	ev.Err(err).Int("status", status).Msg("request failed")
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody tolerates an empty body so bodiless POSTs work.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
