package terminal

import (
	"fmt"
	"strings"
)

// Reader describes a physical or simulated card reader. The JSON shape
// matches the reader objects returned by the backend's register endpoint.
type Reader struct {
	ID              string `json:"id"`
	Label           string `json:"label,omitempty"`
	SerialNumber    string `json:"serial_number,omitempty"`
	DeviceType      string `json:"device_type,omitempty"`
	DeviceSWVersion string `json:"device_sw_version,omitempty"`
	IPAddress       string `json:"ip_address,omitempty"`
	Location        string `json:"location,omitempty"`
	Status          string `json:"status,omitempty"`
	Simulated       bool   `json:"simulated,omitempty"`
}

// Connection is the result of a successful connect.
type Connection struct {
	Reader Reader `json:"reader"`
}

// DiscoveryMethod selects which readers a discovery scan returns.
type DiscoveryMethod string

const (
	DiscoverySimulated  DiscoveryMethod = "simulated"
	DiscoveryRegistered DiscoveryMethod = "registered"
)

type DiscoveryConfig struct {
	Method DiscoveryMethod
}

// ConnectionStatus mirrors the reader link state reported by the SDK.
type ConnectionStatus string

const (
	StatusNotConnected ConnectionStatus = "not_connected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// LineItem amounts are in minor units.
type LineItem struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Quantity    int    `json:"quantity"`
}

type Cart struct {
	LineItems []LineItem `json:"lineItems"`
	Tax       int64      `json:"tax"`
	Total     int64      `json:"total"`
	Currency  string     `json:"currency"`
}

// Display is what the reader shows to the customer. Only carts are supported.
type Display struct {
	Type string `json:"type"`
	Cart Cart   `json:"cart"`
}

const DisplayTypeCart = "cart"

// PaymentIntent is the SDK view of a payment intent during collect/confirm.
type PaymentIntent struct {
	ID            string `json:"id"`
	ClientSecret  string `json:"client_secret,omitempty"`
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

const (
	IntentRequiresPaymentMethod = "requires_payment_method"
	IntentRequiresConfirmation  = "requires_confirmation"
	IntentRequiresCapture       = "requires_capture"
)

// Source is a card read without charging it.
type Source struct {
	ID    string `json:"id"`
	Brand string `json:"brand,omitempty"`
	Last4 string `json:"last4,omitempty"`
}

// IntentIDFromSecret derives the intent id from a client secret of the form
// "<id>_secret_<suffix>". Secrets without that marker are returned as is.
func IntentIDFromSecret(secret string) string {
	if i := strings.Index(secret, "_secret_"); i > 0 {
		return secret[:i]
	}
	return secret
}

// TestCard selects how the simulator's presented card behaves.
type TestCard string

const (
	TestCardApproved  TestCard = "approved"
	TestCardDeclined  TestCard = "declined"
	TestCardReadError TestCard = "read_error"
)

func ParseTestCard(raw string) (TestCard, error) {
	switch TestCard(strings.ToLower(strings.TrimSpace(raw))) {
	case TestCardApproved:
		return TestCardApproved, nil
	case TestCardDeclined:
		return TestCardDeclined, nil
	case TestCardReadError:
		return TestCardReadError, nil
	}
	return "", fmt.Errorf("unknown test card %q", raw)
}
