package api

import (
	"context"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/activity"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/backend"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/session"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

// fakeController returns zero values unless a hook is set.
type fakeController struct {
	snapshot    session.Session
	setURL      func(string) error
	discover    func(bool) ([]terminal.Reader, error)
	connect     func(terminal.Reader) (terminal.Connection, error)
	connectByID func(string) (terminal.Connection, error)
	register    func(label, code string) (terminal.Connection, error)
	collect     func() (backend.PaymentIntent, error)
	cancel      func() error
	lineItems   func() error
}

func (f *fakeController) Snapshot() session.Session { return f.snapshot }

func (f *fakeController) SetBackendURL(_ context.Context, raw string) error {
	if f.setURL != nil {
		return f.setURL(raw)
	}
	return nil
}

func (f *fakeController) DiscoverReaders(_ context.Context, sim bool) ([]terminal.Reader, error) {
	if f.discover != nil {
		return f.discover(sim)
	}
	return nil, nil
}

func (f *fakeController) ConnectToReader(_ context.Context, r terminal.Reader) (terminal.Connection, error) {
	if f.connect != nil {
		return f.connect(r)
	}
	return terminal.Connection{Reader: r}, nil
}

func (f *fakeController) ConnectToDiscoveredReader(_ context.Context, id string) (terminal.Connection, error) {
	if f.connectByID != nil {
		return f.connectByID(id)
	}
	return terminal.Connection{Reader: terminal.Reader{ID: id}}, nil
}

func (f *fakeController) UseSimulator(context.Context) (terminal.Connection, error) {
	return terminal.Connection{Reader: terminal.SimulatedReader}, nil
}

func (f *fakeController) RegisterAndConnectNewReader(_ context.Context, label, code string) (terminal.Connection, error) {
	if f.register != nil {
		return f.register(label, code)
	}
	return terminal.Connection{}, nil
}

func (f *fakeController) DisconnectReader(context.Context) error { return nil }

func (f *fakeController) UpdateLineItems(context.Context) error {
	if f.lineItems != nil {
		return f.lineItems()
	}
	return nil
}

func (f *fakeController) CollectCardPayment(context.Context) (backend.PaymentIntent, error) {
	if f.collect != nil {
		return f.collect()
	}
	return backend.PaymentIntent{}, nil
}

func (f *fakeController) CancelPendingPayment(context.Context) error {
	if f.cancel != nil {
		return f.cancel()
	}
	return nil
}

func (f *fakeController) SaveCardForFutureUse(context.Context) (backend.Customer, error) {
	return backend.Customer{ID: "cus_fake"}, nil
}

type denyAll struct{}

func (denyAll) Check(context.Context, string, string, string) (bool, error) { return false, nil }

type staticHistory struct {
	entries   []activity.Entry
	err       error
	lastLimit int
}

func (h *staticHistory) ListActivity(_ context.Context, limit int) ([]activity.Entry, error) {
	h.lastLimit = limit
	return h.entries, h.err
}
