// Package api exposes the session controller to the operator UI over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/activity"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/authz"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/backend"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/controller"
	xlog "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/log"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/session"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

// SessionController is the part of *controller.Controller the routes drive.
type SessionController interface {
	Snapshot() session.Session
	SetBackendURL(ctx context.Context, rawURL string) error
	DiscoverReaders(ctx context.Context, useSimulator bool) ([]terminal.Reader, error)
	ConnectToReader(ctx context.Context, reader terminal.Reader) (terminal.Connection, error)
	ConnectToDiscoveredReader(ctx context.Context, readerID string) (terminal.Connection, error)
	UseSimulator(ctx context.Context) (terminal.Connection, error)
	RegisterAndConnectNewReader(ctx context.Context, label, registrationCode string) (terminal.Connection, error)
	DisconnectReader(ctx context.Context) error
	UpdateLineItems(ctx context.Context) error
	CollectCardPayment(ctx context.Context) (backend.PaymentIntent, error)
	CancelPendingPayment(ctx context.Context) error
	SaveCardForFutureUse(ctx context.Context) (backend.Customer, error)
}

var _ SessionController = (*controller.Controller)(nil)

// History serves persisted activity. *postgres.Repository satisfies it.
type History interface {
	ListActivity(ctx context.Context, limit int) ([]activity.Entry, error)
}

// Deps groups what the handler needs. History and Authz may be nil.
type Deps struct {
	Controller  SessionController
	Alerts      *controller.AlertQueue
	Recorder    *activity.Recorder
	History     History
	Authz       authz.Client
	ServiceName string
}

// NewHandler builds the operator API mux.
func NewHandler(d Deps) http.Handler {
	if d.Authz == nil {
		d.Authz = authz.NoopClient{}
	}
	logger := xlog.WithComponent("api")

	mux := http.NewServeMux()
	RegisterSessionRoutes(mux, d.Controller, logger)
	RegisterReaderRoutes(mux, d.Controller, logger)
	RegisterWorkflowRoutes(mux, d.Controller, d.Authz, d.ServiceName, logger)
	RegisterActivityRoutes(mux, d.Recorder, d.History, d.Alerts, logger)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// instrument wraps a handler with tracing named after the route's operation.
func instrument(h http.HandlerFunc, operation string) http.Handler {
	return otelhttp.NewHandler(h, operation)
}

func requestLogger(base zerolog.Logger, r *http.Request, operation string) zerolog.Logger {
	return base.With().
		Str(xlog.FieldOperation, operation).
		Str("remote", r.RemoteAddr).
		Logger()
}
