// Package session holds the operator session value and its transition
// function. The controller owns the only mutable copy; everything here is
// plain data.
package session

import (
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

// Status drives which part of the operator UI is shown.
type Status string

const (
	StatusUninitialized      Status = "uninitialized"
	StatusAwaitingBackendURL Status = "awaiting_backend_url"
	StatusSelectingReader    Status = "selecting_reader"
	StatusWorkflows          Status = "workflows"
)

// View is the screen derived from a session.
type View string

const (
	ViewBackendURLForm  View = "backend_url_form"
	ViewReaderSelection View = "reader_selection"
	ViewWorkflows       View = "workflows"
)

// Session is the operator's view of the terminal: backend, reader link and
// the payment in progress.
type Session struct {
	Status                     Status                    `json:"status"`
	BackendURL                 string                    `json:"backend_url,omitempty"`
	ConnectionStatus           terminal.ConnectionStatus `json:"connection_status"`
	DiscoveredReaders          []terminal.Reader         `json:"discovered_readers"`
	Reader                     *terminal.Reader          `json:"reader,omitempty"`
	PendingPaymentIntentSecret string                    `json:"-"`
	CancelablePayment          bool                      `json:"cancelable_payment"`
}

// New returns the session as it exists before Start.
func New() Session {
	return Session{
		Status:            StatusUninitialized,
		ConnectionStatus:  terminal.StatusNotConnected,
		DiscoveredReaders: []terminal.Reader{},
	}
}

// HasPendingPayment reports whether an intent was created but not captured.
func (s Session) HasPendingPayment() bool {
	return s.PendingPaymentIntentSecret != ""
}

// View derives the screen: the backend form until a backend is set, reader
// selection while no reader is connected, workflows otherwise.
func (s Session) View() View {
	switch {
	case s.BackendURL == "" && s.Reader == nil:
		return ViewBackendURLForm
	case s.Reader == nil:
		return ViewReaderSelection
	default:
		return ViewWorkflows
	}
}

// Clone returns a copy that shares no memory with s.
func (s Session) Clone() Session {
	out := s
	out.DiscoveredReaders = append([]terminal.Reader{}, s.DiscoveredReaders...)
	if s.Reader != nil {
		r := *s.Reader
		out.Reader = &r
	}
	return out
}
