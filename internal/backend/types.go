package backend

import (
	"context"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

// API is the operator-run backend the session controller talks to.
type API interface {
	CreateConnectionToken(ctx context.Context) (ConnectionToken, error)
	RegisterDevice(ctx context.Context, label, registrationCode string) (terminal.Reader, error)
	CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (CreatedPaymentIntent, error)
	CapturePaymentIntent(ctx context.Context, paymentIntentID string) (PaymentIntent, error)
	SaveSourceToCustomer(ctx context.Context, sourceID string) (Customer, error)
}

type ConnectionToken struct {
	Secret string `json:"secret"`
}

// PaymentIntentParams amounts are in minor units.
type PaymentIntentParams struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

// CreatedPaymentIntent is what the backend returns from intent creation:
// the intent id and the client secret used by the reader.
type CreatedPaymentIntent struct {
	ID     string `json:"intent"`
	Secret string `json:"secret"`
}

// PaymentIntent is the captured intent as reported by the backend.
type PaymentIntent struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	AmountReceived int64  `json:"amount_received"`
	Currency       string `json:"currency"`
	Description    string `json:"description,omitempty"`
}

type Customer struct {
	ID            string `json:"id"`
	Email         string `json:"email,omitempty"`
	DefaultSource string `json:"default_source,omitempty"`
}
