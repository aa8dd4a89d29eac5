package activity

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/backend"
	xlog "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/log"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/telemetry"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

const redacted = "[redacted]"

type watcher struct {
	rec          *Recorder
	collaborator string
	tracer       trace.Tracer
	logger       zerolog.Logger
}

func newWatcher(rec *Recorder, collaborator string) watcher {
	return watcher{
		rec:          rec,
		collaborator: collaborator,
		tracer:       otel.Tracer("terminal-reader-demo/activity"),
		logger:       xlog.WithComponent("activity").With().Str(xlog.FieldCollaborator, collaborator).Logger(),
	}
}

// observe runs call inside a span and journals it. view, when set, replaces
// the response in the journal.
func observe[T any](ctx context.Context, w watcher, method string, request any, view func(T) any, call func(context.Context) (T, error)) (T, error) {
	ctx, span := w.tracer.Start(ctx, w.collaborator+"."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("collaborator", w.collaborator),
			attribute.String("method", method),
		))
	started := time.Now()
	res, err := call(ctx)
	elapsed := time.Since(started)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	telemetry.RecordCall(w.collaborator, method, err, elapsed)

	entry := Entry{
		Collaborator: w.collaborator,
		Method:       method,
		Request:      encode(request),
		StartedAt:    started.UTC(),
		DurationMS:   elapsed.Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
		w.logger.Warn().Err(err).Str(xlog.FieldMethod, method).Int64(xlog.FieldDuration, entry.DurationMS).Msg("call failed")
	} else {
		var shown any = res
		if view != nil {
			shown = view(res)
		}
		entry.Response = encode(shown)
		w.logger.Debug().Str(xlog.FieldMethod, method).Int64(xlog.FieldDuration, entry.DurationMS).Msg("call ok")
	}
	if w.rec != nil {
		w.rec.Record(ctx, entry)
	}
	return res, err
}

type watchedBackend struct {
	next backend.API
	w    watcher
}

// WatchBackend journals every call made through api.
func WatchBackend(api backend.API, rec *Recorder) backend.API {
	return &watchedBackend{next: api, w: newWatcher(rec, CollaboratorBackend)}
}

func (b *watchedBackend) CreateConnectionToken(ctx context.Context) (backend.ConnectionToken, error) {
	hide := func(backend.ConnectionToken) any { return map[string]string{"secret": redacted} }
	return observe(ctx, b.w, "createConnectionToken", nil, hide, b.next.CreateConnectionToken)
}

func (b *watchedBackend) RegisterDevice(ctx context.Context, label, registrationCode string) (terminal.Reader, error) {
	req := map[string]string{"label": label, "registration_code": registrationCode}
	return observe(ctx, b.w, "registerDevice", req, nil, func(ctx context.Context) (terminal.Reader, error) {
		return b.next.RegisterDevice(ctx, label, registrationCode)
	})
}

func (b *watchedBackend) CreatePaymentIntent(ctx context.Context, params backend.PaymentIntentParams) (backend.CreatedPaymentIntent, error) {
	hide := func(pi backend.CreatedPaymentIntent) any { return map[string]string{"intent": pi.ID, "secret": redacted} }
	return observe(ctx, b.w, "createPaymentIntent", params, hide, func(ctx context.Context) (backend.CreatedPaymentIntent, error) {
		return b.next.CreatePaymentIntent(ctx, params)
	})
}

func (b *watchedBackend) CapturePaymentIntent(ctx context.Context, paymentIntentID string) (backend.PaymentIntent, error) {
	req := map[string]string{"payment_intent_id": paymentIntentID}
	return observe(ctx, b.w, "capturePaymentIntent", req, nil, func(ctx context.Context) (backend.PaymentIntent, error) {
		return b.next.CapturePaymentIntent(ctx, paymentIntentID)
	})
}

func (b *watchedBackend) SaveSourceToCustomer(ctx context.Context, sourceID string) (backend.Customer, error) {
	req := map[string]string{"source_id": sourceID}
	return observe(ctx, b.w, "saveSourceToCustomer", req, nil, func(ctx context.Context) (backend.Customer, error) {
		return b.next.SaveSourceToCustomer(ctx, sourceID)
	})
}

func hideClientSecret(pi terminal.PaymentIntent) any {
	pi.ClientSecret = ""
	return pi
}

type watchedTerminal struct {
	next terminal.Terminal
	w    watcher
}

// WatchTerminal journals every SDK call made through t.
func WatchTerminal(t terminal.Terminal, rec *Recorder) terminal.Terminal {
	return &watchedTerminal{next: t, w: newWatcher(rec, CollaboratorTerminal)}
}

func (t *watchedTerminal) DiscoverReaders(ctx context.Context, cfg terminal.DiscoveryConfig) ([]terminal.Reader, error) {
	req := map[string]string{"method": string(cfg.Method)}
	return observe(ctx, t.w, "discoverReaders", req, nil, func(ctx context.Context) ([]terminal.Reader, error) {
		return t.next.DiscoverReaders(ctx, cfg)
	})
}

func (t *watchedTerminal) ConnectReader(ctx context.Context, reader terminal.Reader) (terminal.Connection, error) {
	return observe(ctx, t.w, "connectReader", reader, nil, func(ctx context.Context) (terminal.Connection, error) {
		return t.next.ConnectReader(ctx, reader)
	})
}

func (t *watchedTerminal) DisconnectReader(ctx context.Context) error {
	_, err := observe(ctx, t.w, "disconnectReader", nil, nil, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.next.DisconnectReader(ctx)
	})
	return err
}

func (t *watchedTerminal) SetReaderDisplay(ctx context.Context, display terminal.Display) error {
	_, err := observe(ctx, t.w, "setReaderDisplay", display, nil, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.next.SetReaderDisplay(ctx, display)
	})
	return err
}

func (t *watchedTerminal) CollectPaymentMethod(ctx context.Context, clientSecret string) (terminal.PaymentIntent, error) {
	req := map[string]string{"payment_intent_id": terminal.IntentIDFromSecret(clientSecret)}
	return observe(ctx, t.w, "collectPaymentMethod", req, hideClientSecret, func(ctx context.Context) (terminal.PaymentIntent, error) {
		return t.next.CollectPaymentMethod(ctx, clientSecret)
	})
}

func (t *watchedTerminal) CancelCollectPaymentMethod(ctx context.Context) error {
	_, err := observe(ctx, t.w, "cancelCollectPaymentMethod", nil, nil, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.next.CancelCollectPaymentMethod(ctx)
	})
	return err
}

func (t *watchedTerminal) ConfirmPaymentIntent(ctx context.Context, intent terminal.PaymentIntent) (terminal.PaymentIntent, error) {
	req := map[string]string{"payment_intent_id": intent.ID}
	return observe(ctx, t.w, "confirmPaymentIntent", req, hideClientSecret, func(ctx context.Context) (terminal.PaymentIntent, error) {
		return t.next.ConfirmPaymentIntent(ctx, intent)
	})
}

func (t *watchedTerminal) ReadSource(ctx context.Context) (terminal.Source, error) {
	return observe(ctx, t.w, "readSource", nil, nil, t.next.ReadSource)
}
