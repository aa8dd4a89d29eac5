package controller

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/backend"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

type mockBackend struct{ mock.Mock }

func (m *mockBackend) CreateConnectionToken(ctx context.Context) (backend.ConnectionToken, error) {
	args := m.Called(ctx)
	return args.Get(0).(backend.ConnectionToken), args.Error(1)
}

func (m *mockBackend) RegisterDevice(ctx context.Context, label, registrationCode string) (terminal.Reader, error) {
	args := m.Called(ctx, label, registrationCode)
	return args.Get(0).(terminal.Reader), args.Error(1)
}

func (m *mockBackend) CreatePaymentIntent(ctx context.Context, params backend.PaymentIntentParams) (backend.CreatedPaymentIntent, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(backend.CreatedPaymentIntent), args.Error(1)
}

func (m *mockBackend) CapturePaymentIntent(ctx context.Context, id string) (backend.PaymentIntent, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(backend.PaymentIntent), args.Error(1)
}

func (m *mockBackend) SaveSourceToCustomer(ctx context.Context, sourceID string) (backend.Customer, error) {
	args := m.Called(ctx, sourceID)
	return args.Get(0).(backend.Customer), args.Error(1)
}

type mockTerminal struct{ mock.Mock }

func (m *mockTerminal) DiscoverReaders(ctx context.Context, cfg terminal.DiscoveryConfig) ([]terminal.Reader, error) {
	args := m.Called(ctx, cfg)
	readers, _ := args.Get(0).([]terminal.Reader)
	return readers, args.Error(1)
}

func (m *mockTerminal) ConnectReader(ctx context.Context, reader terminal.Reader) (terminal.Connection, error) {
	args := m.Called(ctx, reader)
	return args.Get(0).(terminal.Connection), args.Error(1)
}

func (m *mockTerminal) DisconnectReader(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockTerminal) SetReaderDisplay(ctx context.Context, display terminal.Display) error {
	return m.Called(ctx, display).Error(0)
}

func (m *mockTerminal) CollectPaymentMethod(ctx context.Context, clientSecret string) (terminal.PaymentIntent, error) {
	args := m.Called(ctx, clientSecret)
	return args.Get(0).(terminal.PaymentIntent), args.Error(1)
}

func (m *mockTerminal) CancelCollectPaymentMethod(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockTerminal) ConfirmPaymentIntent(ctx context.Context, intent terminal.PaymentIntent) (terminal.PaymentIntent, error) {
	args := m.Called(ctx, intent)
	return args.Get(0).(terminal.PaymentIntent), args.Error(1)
}

func (m *mockTerminal) ReadSource(ctx context.Context) (terminal.Source, error) {
	args := m.Called(ctx)
	return args.Get(0).(terminal.Source), args.Error(1)
}
