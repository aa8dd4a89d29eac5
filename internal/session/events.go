package session

import (
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

// Event is a fact the controller feeds into Apply.
type Event interface {
	Name() string
}

type (
	Started       struct{}
	BackendURLSet struct{ URL string }

	ReadersDiscovered struct{ Readers []terminal.Reader }
	ReaderConnected   struct{ Reader terminal.Reader }
	// ReaderDisconnected follows an operator disconnect. Status is kept.
	ReaderDisconnected struct{}
	// UnexpectedDisconnect is reported by the SDK when the link drops.
	UnexpectedDisconnect struct{}
	// ConnectionStatusChanged clears the reader on every report, including
	// "connected".
	ConnectionStatusChanged struct{ Status terminal.ConnectionStatus }

	PaymentIntentCreated struct{ Secret string }
	CollectRequested     struct{}
	CollectSettled       struct{}
	CollectCanceled      struct{}
	PaymentCaptured      struct{}
)

func (Started) Name() string                 { return "started" }
func (BackendURLSet) Name() string           { return "backend_url_set" }
func (ReadersDiscovered) Name() string       { return "readers_discovered" }
func (ReaderConnected) Name() string         { return "reader_connected" }
func (ReaderDisconnected) Name() string      { return "reader_disconnected" }
func (UnexpectedDisconnect) Name() string    { return "unexpected_disconnect" }
func (ConnectionStatusChanged) Name() string { return "connection_status_changed" }
func (PaymentIntentCreated) Name() string    { return "payment_intent_created" }
func (CollectRequested) Name() string        { return "collect_requested" }
func (CollectSettled) Name() string          { return "collect_settled" }
func (CollectCanceled) Name() string         { return "collect_canceled" }
func (PaymentCaptured) Name() string         { return "payment_captured" }

// Apply returns the session after ev. The input is never modified and the
// result shares no slices or pointers with it. Unknown events return a copy
// of s unchanged.
func Apply(s Session, ev Event) Session {
	next := s.Clone()

	switch e := ev.(type) {
	case Started:
		if next.Status == StatusUninitialized {
			next.Status = StatusAwaitingBackendURL
		}
	case BackendURLSet:
		next.BackendURL = e.URL
		next.Status = StatusSelectingReader
	case ReadersDiscovered:
		next.DiscoveredReaders = append([]terminal.Reader{}, e.Readers...)
	case ReaderConnected:
		r := e.Reader
		next.Reader = &r
		next.DiscoveredReaders = []terminal.Reader{}
		next.Status = StatusWorkflows
	case ReaderDisconnected:
		next.Reader = nil
	case UnexpectedDisconnect:
		next.ConnectionStatus = terminal.StatusNotConnected
		next.Reader = nil
	case ConnectionStatusChanged:
		next.ConnectionStatus = e.Status
		next.Reader = nil
	case PaymentIntentCreated:
		next.PendingPaymentIntentSecret = e.Secret
	case CollectRequested:
		next.CancelablePayment = true
	case CollectSettled, CollectCanceled:
		next.CancelablePayment = false
	case PaymentCaptured:
		next.PendingPaymentIntentSecret = ""
		next.CancelablePayment = false
	}
	return next
}
