package api

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/session"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

type sessionResponse struct {
	Session        session.Session `json:"session"`
	View           session.View    `json:"view"`
	PendingPayment bool            `json:"pending_payment"`
}

func newSessionResponse(s session.Session) sessionResponse {
	return sessionResponse{Session: s, View: s.View(), PendingPayment: s.HasPendingPayment()}
}

// RegisterSessionRoutes exposes the session snapshot and the backend URL form.
// - GET  /api/session
// - POST /api/session/backend-url {"url": "..."}
func RegisterSessionRoutes(mux *http.ServeMux, c SessionController, logger zerolog.Logger) {
	mux.Handle("GET /api/session", instrument(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, newSessionResponse(c.Snapshot()))
	}, "api.session"))

	mux.Handle("POST /api/session/backend-url", instrument(func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(logger, r, "setBackendURL")
		var body struct {
			URL string `json:"url"`
		}
		if err := decodeBody(r, &body); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if err := c.SetBackendURL(r.Context(), body.URL); err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(c.Snapshot()))
	}, "api.session.backend_url"))
}

type connectionResponse struct {
	Connection terminal.Connection `json:"connection"`
	Session    sessionResponse     `json:"session"`
}

// RegisterReaderRoutes exposes reader discovery and the connection lifecycle.
func RegisterReaderRoutes(mux *http.ServeMux, c SessionController, logger zerolog.Logger) {
	mux.Handle("POST /api/readers/discover", instrument(func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(logger, r, "discoverReaders")
		var body struct {
			Simulated bool `json:"simulated"`
		}
		if err := decodeBody(r, &body); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		readers, err := c.DiscoverReaders(r.Context(), body.Simulated)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"readers": readers})
	}, "api.readers.discover"))

	mux.Handle("POST /api/readers/connect", instrument(func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(logger, r, "connectToReader")
		var body struct {
			ReaderID string           `json:"reader_id"`
			Reader   *terminal.Reader `json:"reader"`
		}
		if err := decodeBody(r, &body); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		var (
			conn terminal.Connection
			err  error
		)
		switch {
		case body.Reader != nil:
			conn, err = c.ConnectToReader(r.Context(), *body.Reader)
		case strings.TrimSpace(body.ReaderID) != "":
			conn, err = c.ConnectToDiscoveredReader(r.Context(), strings.TrimSpace(body.ReaderID))
		default:
			http.Error(w, "reader_id or reader required", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, connectionResponse{Connection: conn, Session: newSessionResponse(c.Snapshot())})
	}, "api.readers.connect"))

	mux.Handle("POST /api/readers/simulator", instrument(func(w http.ResponseWriter, r *http.Request) {
		conn, err := c.UseSimulator(r.Context())
		if err != nil {
			writeError(w, requestLogger(logger, r, "useSimulator"), err)
			return
		}
		writeJSON(w, http.StatusOK, connectionResponse{Connection: conn, Session: newSessionResponse(c.Snapshot())})
	}, "api.readers.simulator"))

	mux.Handle("POST /api/readers/register", instrument(func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(logger, r, "registerAndConnectNewReader")
		var body struct {
			Label            string `json:"label"`
			RegistrationCode string `json:"registration_code"`
		}
		if err := decodeBody(r, &body); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(body.RegistrationCode) == "" {
			http.Error(w, "registration_code required", http.StatusBadRequest)
			return
		}
		conn, err := c.RegisterAndConnectNewReader(r.Context(), body.Label, body.RegistrationCode)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, connectionResponse{Connection: conn, Session: newSessionResponse(c.Snapshot())})
	}, "api.readers.register"))

	mux.Handle("POST /api/readers/disconnect", instrument(func(w http.ResponseWriter, r *http.Request) {
		if err := c.DisconnectReader(r.Context()); err != nil {
			writeError(w, requestLogger(logger, r, "disconnectReader"), err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(c.Snapshot()))
	}, "api.readers.disconnect"))
}
