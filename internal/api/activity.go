package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/activity"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/controller"
)

// RegisterActivityRoutes exposes the collaborator activity log and alerts.
// - GET /api/logs[?limit=N][&source=history]
// - GET /api/alerts (drains the queue)
func RegisterActivityRoutes(mux *http.ServeMux, rec *activity.Recorder, history History, alerts *controller.AlertQueue, logger zerolog.Logger) {
	mux.Handle("GET /api/logs", instrument(func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		if r.URL.Query().Get("source") == "history" {
			if history == nil {
				http.Error(w, "activity history unavailable", http.StatusServiceUnavailable)
				return
			}
			entries, err := history.ListActivity(r.Context(), limit)
			if err != nil {
				reqLogger := requestLogger(logger, r, "listActivity")
				reqLogger.Error().Err(err).Msg("history query failed")
				http.Error(w, "query failed", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"entries": nonNil(entries)})
			return
		}

		var entries []activity.Entry
		if rec != nil {
			entries = rec.Entries()
		}
		if limit > 0 && len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": nonNil(entries)})
	}, "api.logs"))

	mux.Handle("GET /api/alerts", instrument(func(w http.ResponseWriter, _ *http.Request) {
		out := []controller.Alert{}
		if alerts != nil {
			out = alerts.Drain()
		}
		writeJSON(w, http.StatusOK, map[string]any{"alerts": out})
	}, "api.alerts"))
}

func nonNil(entries []activity.Entry) []activity.Entry {
	if entries == nil {
		return []activity.Entry{}
	}
	return entries
}
