package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/authz"
)

// RegisterWorkflowRoutes exposes the payment workflows. Every route requires
// the operator relation on the terminal object.
// - POST /api/workflows/line-items
// - POST /api/workflows/collect-payment (blocks until the card is presented)
// - POST /api/workflows/cancel-payment
// - POST /api/workflows/save-card
func RegisterWorkflowRoutes(mux *http.ServeMux, c SessionController, az authz.Client, service string, logger zerolog.Logger) {
	guard := authz.Require(az, func(*http.Request) (string, string) {
		return authz.TerminalObject(service), authz.RelationOperator
	})
	guarded := func(h http.HandlerFunc, operation string) http.Handler {
		return instrument(guard(h).ServeHTTP, operation)
	}

	mux.Handle("POST /api/workflows/line-items", guarded(func(w http.ResponseWriter, r *http.Request) {
		if err := c.UpdateLineItems(r.Context()); err != nil {
			writeError(w, requestLogger(logger, r, "updateLineItems"), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}, "api.workflows.line_items"))

	mux.Handle("POST /api/workflows/collect-payment", guarded(func(w http.ResponseWriter, r *http.Request) {
		intent, err := c.CollectCardPayment(r.Context())
		if err != nil {
			writeError(w, requestLogger(logger, r, "collectCardPayment"), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"payment_intent": intent})
	}, "api.workflows.collect_payment"))

	mux.Handle("POST /api/workflows/cancel-payment", guarded(func(w http.ResponseWriter, r *http.Request) {
		if err := c.CancelPendingPayment(r.Context()); err != nil {
			writeError(w, requestLogger(logger, r, "cancelPendingPayment"), err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(c.Snapshot()))
	}, "api.workflows.cancel_payment"))

	mux.Handle("POST /api/workflows/save-card", guarded(func(w http.ResponseWriter, r *http.Request) {
		customer, err := c.SaveCardForFutureUse(r.Context())
		if err != nil {
			writeError(w, requestLogger(logger, r, "saveCardForFutureUse"), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	}, "api.workflows.save_card"))
}
