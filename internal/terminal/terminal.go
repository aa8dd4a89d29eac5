// Package terminal defines the card-reader SDK contract the session
// controller depends on, plus an in-process simulated implementation.
package terminal

import "context"

// Terminal is the reader SDK surface. Every call is a single request/response
// exchange; failures are reported as *Error where the SDK produced them.
type Terminal interface {
	DiscoverReaders(ctx context.Context, cfg DiscoveryConfig) ([]Reader, error)
	ConnectReader(ctx context.Context, reader Reader) (Connection, error)
	DisconnectReader(ctx context.Context) error
	SetReaderDisplay(ctx context.Context, display Display) error
	CollectPaymentMethod(ctx context.Context, clientSecret string) (PaymentIntent, error)
	CancelCollectPaymentMethod(ctx context.Context) error
	ConfirmPaymentIntent(ctx context.Context, intent PaymentIntent) (PaymentIntent, error)
	ReadSource(ctx context.Context) (Source, error)
}

// Listener receives the SDK's out-of-band notifications. It is registered
// once, when the SDK is created.
type Listener interface {
	// FetchConnectionToken must return a fresh connection token secret. An
	// error fails the SDK operation that needed the token.
	FetchConnectionToken(ctx context.Context) (string, error)
	UnexpectedReaderDisconnect()
	ConnectionStatusChanged(status ConnectionStatus)
}

// Factory creates an SDK instance bound to a listener.
type Factory func(l Listener) (Terminal, error)
